// Package fees computes processor fees and per-plan markup for payments.
//
// All arithmetic uses shopspring/decimal; monetary outputs are rounded
// half-up to two decimal places at the boundary, never mid-calculation.
package fees

import (
	"github.com/shopspring/decimal"
)

var (
	// Processor's standard card fee: 2.9% + 0.30 per transaction.
	processorPercentageFee = decimal.NewFromFloat(0.029)
	processorFlatFee       = decimal.NewFromFloat(0.30)

	// Markup percentage per plan. Free tier carries the highest markup;
	// unknown slugs fall back to it deliberately so a misconfigured plan
	// never undercharges.
	planMarkups = map[string]decimal.Decimal{
		"free":       decimal.NewFromFloat(0.010),
		"starter":    decimal.NewFromFloat(0.008),
		"pro":        decimal.NewFromFloat(0.005),
		"business":   decimal.NewFromFloat(0.003),
		"enterprise": decimal.NewFromFloat(0.001),
	}

	hundred = decimal.NewFromInt(100)
)

// Breakdown is the fee decomposition for a single payment.
type Breakdown struct {
	ProcessorFee     decimal.Decimal `json:"processor_fee"`
	MarkupPercentage decimal.Decimal `json:"markup_percentage"`
	MarkupAmount     decimal.Decimal `json:"markup_amount"`
	TotalFee         decimal.Decimal `json:"total_fee"`
	EffectiveRate    decimal.Decimal `json:"effective_rate"`
}

// MarkupFor returns the markup percentage for a plan slug,
// falling back to the free-tier markup for unrecognized slugs.
func MarkupFor(planSlug string) decimal.Decimal {
	if m, ok := planMarkups[planSlug]; ok {
		return m
	}
	return planMarkups["free"]
}

// Calculate computes the fee breakdown for a payment amount under a plan.
// A zero amount yields a zero effective rate instead of dividing by zero.
func Calculate(amount decimal.Decimal, planSlug string) Breakdown {
	markupPct := MarkupFor(planSlug)

	processorFee := amount.Mul(processorPercentageFee).Add(processorFlatFee)
	markupAmount := amount.Mul(markupPct)
	totalFee := processorFee.Add(markupAmount)

	effectiveRate := decimal.Zero
	if amount.IsPositive() {
		effectiveRate = totalFee.Div(amount).Mul(hundred)
	}

	return Breakdown{
		ProcessorFee:     processorFee.Round(2),
		MarkupPercentage: markupPct,
		MarkupAmount:     markupAmount.Round(2),
		TotalFee:         totalFee.Round(2),
		EffectiveRate:    effectiveRate.Round(2),
	}
}

// Transaction is the slice of a payment record the monthly aggregation needs.
type Transaction struct {
	PaymentAmount      decimal.Decimal
	ProcessorFeeAmount decimal.Decimal
	MarkupAmount       decimal.Decimal
}

// Summary aggregates a month of transactions.
type Summary struct {
	TotalVolume        decimal.Decimal `json:"total_payment_volume"`
	TotalProcessorFees decimal.Decimal `json:"total_processor_fees"`
	TotalMarkup        decimal.Decimal `json:"total_markup"`
	TotalFees          decimal.Decimal `json:"total_fees"`
	TransactionCount   int             `json:"transaction_count"`
	AverageFeeRate     decimal.Decimal `json:"average_fee_rate"`
}

// MonthlySummary sums transactions into volume, fees and average rate.
// An empty slice returns the explicit zero summary.
func MonthlySummary(txs []Transaction) Summary {
	if len(txs) == 0 {
		return Summary{
			TotalVolume:        decimal.Zero,
			TotalProcessorFees: decimal.Zero,
			TotalMarkup:        decimal.Zero,
			TotalFees:          decimal.Zero,
			AverageFeeRate:     decimal.Zero,
		}
	}

	var volume, processorFees, markup decimal.Decimal
	for _, tx := range txs {
		volume = volume.Add(tx.PaymentAmount)
		processorFees = processorFees.Add(tx.ProcessorFeeAmount)
		markup = markup.Add(tx.MarkupAmount)
	}

	totalFees := processorFees.Add(markup)
	avgRate := decimal.Zero
	if volume.IsPositive() {
		avgRate = totalFees.Div(volume).Mul(hundred)
	}

	return Summary{
		TotalVolume:        volume.Round(2),
		TotalProcessorFees: processorFees.Round(2),
		TotalMarkup:        markup.Round(2),
		TotalFees:          totalFees.Round(2),
		TransactionCount:   len(txs),
		AverageFeeRate:     avgRate.Round(2),
	}
}
