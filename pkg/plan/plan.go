// Package plan exposes the read-only subscription plan catalog.
//
// The catalog is reference data: rows are seeded by migrations and never
// mutated by the billing core, with one exception — lazily created processor
// price ids are cached back onto the plan row so the conversion sweep does
// not recreate prices on every run.
package plan

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrPlanNotFound = errors.New("subscription plan not found")

// BasicSlug is the designated paid plan trials convert into, and the lowest
// paid tier for upgrade-prompt purposes.
const BasicSlug = "basic"

// Plan is one catalog row.
type Plan struct {
	ID          uuid.UUID
	Name        string
	Slug        string
	Description string

	PriceMonthly decimal.Decimal
	PriceYearly  decimal.Decimal

	// Cached processor ids; empty until lazily created.
	ProcessorPriceIDMonthly string
	ProcessorPriceIDYearly  string
	ProcessorProductID      string

	Features                 []string
	TransactionFeePercentage decimal.Decimal
	MaxInvoicesPerMonth      *int
	MaxCustomers             *int
	MaxSeats                 *int

	HasCustomBranding   bool
	HasPrioritySupport  bool
	HasRecurringBilling bool
	HasAnalytics        bool

	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsFree reports whether the plan has no monthly price.
func (p *Plan) IsFree() bool {
	return p.PriceMonthly.IsZero()
}

// PriceFor returns the price for a billing cycle; yearly falls back to
// twelve monthly payments when no yearly price is configured.
func (p *Plan) PriceFor(yearly bool) decimal.Decimal {
	if !yearly {
		return p.PriceMonthly
	}
	if p.PriceYearly.IsPositive() {
		return p.PriceYearly
	}
	return p.PriceMonthly.Mul(decimal.NewFromInt(12))
}
