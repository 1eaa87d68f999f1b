package fees_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/payflowhq/payflow/pkg/fees"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculate_FreePlanGoldenValues(t *testing.T) {
	b := fees.Calculate(dec("100.00"), "free")

	assert.True(t, dec("3.20").Equal(b.ProcessorFee), "processor fee: got %s", b.ProcessorFee)
	assert.True(t, dec("0.010").Equal(b.MarkupPercentage))
	assert.True(t, dec("1.00").Equal(b.MarkupAmount), "markup: got %s", b.MarkupAmount)
	assert.True(t, dec("4.20").Equal(b.TotalFee), "total: got %s", b.TotalFee)
	assert.True(t, dec("4.20").Equal(b.EffectiveRate), "rate: got %s", b.EffectiveRate)
}

func TestCalculate_PlanMarkupTiers(t *testing.T) {
	cases := []struct {
		slug   string
		markup string
	}{
		{"free", "0.010"},
		{"starter", "0.008"},
		{"pro", "0.005"},
		{"business", "0.003"},
		{"enterprise", "0.001"},
	}

	for _, tc := range cases {
		t.Run(tc.slug, func(t *testing.T) {
			b := fees.Calculate(dec("100.00"), tc.slug)
			assert.True(t, dec(tc.markup).Equal(b.MarkupPercentage))
		})
	}
}

func TestCalculate_UnknownPlanFallsBackToFree(t *testing.T) {
	b := fees.Calculate(dec("100.00"), "platinum-legacy")
	assert.True(t, dec("0.010").Equal(b.MarkupPercentage),
		"unknown plan must get the conservative free-tier markup")
}

func TestCalculate_ZeroAmount(t *testing.T) {
	b := fees.Calculate(decimal.Zero, "pro")

	assert.True(t, b.EffectiveRate.IsZero(), "zero amount must not divide by zero")
	assert.True(t, dec("0.30").Equal(b.ProcessorFee), "flat fee still applies")
	assert.True(t, b.MarkupAmount.IsZero())
}

func TestCalculate_RoundsHalfUp(t *testing.T) {
	// 10.15 * 0.029 + 0.30 = 0.594...35 → 0.59; markup 10.15*0.010 = 0.1015 → 0.10
	b := fees.Calculate(dec("10.15"), "free")
	assert.True(t, dec("0.59").Equal(b.ProcessorFee), "got %s", b.ProcessorFee)
	assert.True(t, dec("0.10").Equal(b.MarkupAmount), "got %s", b.MarkupAmount)

	// 12.50 * 0.010 = 0.125 → half-up → 0.13
	b = fees.Calculate(dec("12.50"), "free")
	assert.True(t, dec("0.13").Equal(b.MarkupAmount), "half cent must round up, got %s", b.MarkupAmount)
}

func TestMonthlySummary_Empty(t *testing.T) {
	s := fees.MonthlySummary(nil)

	assert.Zero(t, s.TransactionCount)
	assert.True(t, s.TotalVolume.IsZero())
	assert.True(t, s.TotalFees.IsZero())
	assert.True(t, s.AverageFeeRate.IsZero())
}

func TestMonthlySummary_Aggregates(t *testing.T) {
	txs := []fees.Transaction{
		{PaymentAmount: dec("100.00"), ProcessorFeeAmount: dec("3.20"), MarkupAmount: dec("1.00")},
		{PaymentAmount: dec("200.00"), ProcessorFeeAmount: dec("6.10"), MarkupAmount: dec("2.00")},
	}

	s := fees.MonthlySummary(txs)

	assert.Equal(t, 2, s.TransactionCount)
	assert.True(t, dec("300.00").Equal(s.TotalVolume))
	assert.True(t, dec("9.30").Equal(s.TotalProcessorFees))
	assert.True(t, dec("3.00").Equal(s.TotalMarkup))
	assert.True(t, dec("12.30").Equal(s.TotalFees))
	// 12.30 / 300 * 100 = 4.10
	assert.True(t, dec("4.10").Equal(s.AverageFeeRate), "got %s", s.AverageFeeRate)
}
