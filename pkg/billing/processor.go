package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Processor is the minimal payment-processor capability the billing core
// consumes. Implementations wrap the official provider SDK and keep all
// provider-specific quirks internal; every method is a fallible remote call
// whose errors wrap ErrProcessor so callers can tell them apart from
// persistence failures.
type Processor interface {
	// CreateCustomer mints a customer profile and returns its processor id.
	CreateCustomer(ctx context.Context, params CreateCustomerParams) (string, error)

	// CreatePrice creates a recurring price for a plan and returns its id.
	// Used lazily when a plan has no cached processor price.
	CreatePrice(ctx context.Context, params CreatePriceParams) (string, error)

	// CreateSubscription creates a recurring billing subscription. When
	// BillingCycleAnchor is non-zero and in the past, the processor charges
	// back-dated to that moment.
	CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*SubscriptionRef, error)

	// CancelSubscription cancels a processor subscription, either at period
	// end or immediately.
	CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) error

	// CreateCharge creates a one-off charge against a customer.
	CreateCharge(ctx context.Context, params CreateChargeParams) (string, error)
}

// CreateCustomerParams identifies the customer to mint.
type CreateCustomerParams struct {
	Email    string
	Name     string
	UserID   string // stored as processor metadata for webhook correlation
	TenantID string
}

// CreatePriceParams describes a recurring price.
type CreatePriceParams struct {
	ProductName string
	Description string
	Amount      decimal.Decimal // major currency units
	Currency    string          // ISO 4217, lowercase
	Interval    BillingInterval
}

// BillingInterval is the recurring billing cadence.
type BillingInterval string

const (
	IntervalMonthly BillingInterval = "month"
	IntervalYearly  BillingInterval = "year"
)

// CreateSubscriptionParams describes a recurring subscription.
type CreateSubscriptionParams struct {
	CustomerID         string
	PriceID            string
	BillingCycleAnchor time.Time         // zero means bill from now
	Metadata           map[string]string // correlation data echoed in webhooks
}

// SubscriptionRef is the processor's view of a created subscription.
type SubscriptionRef struct {
	ID                 string
	Status             string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
}

// CreateChargeParams describes a one-off charge.
type CreateChargeParams struct {
	CustomerID  string
	Amount      decimal.Decimal
	Currency    string
	Description string
	Metadata    map[string]string
}
