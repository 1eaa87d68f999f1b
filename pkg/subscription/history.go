package subscription

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillingReason classifies why a billing record was written.
type BillingReason string

const (
	ReasonSubscriptionCreate BillingReason = "subscription_create"
	ReasonSubscriptionUpdate BillingReason = "subscription_update"
	ReasonSubscriptionCycle  BillingReason = "subscription_cycle"
)

// BillingStatus is the settlement outcome of a billing record.
type BillingStatus string

const (
	BillingSucceeded BillingStatus = "succeeded"
	BillingFailed    BillingStatus = "failed"
)

// BillingRecord is an append-only audit row written whenever the processor
// charges (or fails to charge) an account.
type BillingRecord struct {
	ID             uuid.UUID
	AccountID      uuid.UUID
	SubscriptionID uuid.UUID
	Amount         decimal.Decimal
	Currency       string
	Status         BillingStatus
	Reason         BillingReason
	PeriodStart    *time.Time
	PeriodEnd      *time.Time
	CreatedAt      time.Time
}

// NewBillingRecord builds a record for the given subscription and charge
// outcome.
func NewBillingRecord(sub *Subscription, amount decimal.Decimal, currency string, status BillingStatus, reason BillingReason) *BillingRecord {
	return &BillingRecord{
		ID:             uuid.New(),
		AccountID:      sub.AccountID,
		SubscriptionID: sub.ID,
		Amount:         amount,
		Currency:       currency,
		Status:         status,
		Reason:         reason,
		PeriodStart:    sub.CurrentPeriodStart,
		PeriodEnd:      sub.CurrentPeriodEnd,
		CreatedAt:      time.Now().UTC(),
	}
}
