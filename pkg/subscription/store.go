package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store abstracts subscription persistence. All read/write operations are
// scoped by account id; cross-tenant listing exists only for the sweeps.
type Store interface {
	// GetByAccount returns the account's subscription or ErrNotFound.
	GetByAccount(ctx context.Context, accountID uuid.UUID) (*Subscription, error)
	// GetByProcessorCustomer resolves a subscription from the payment
	// processor's customer id, used by webhook handling.
	GetByProcessorCustomer(ctx context.Context, customerID string) (*Subscription, error)
	// GetByProcessorSubscription resolves a subscription from the payment
	// processor's subscription id.
	GetByProcessorSubscription(ctx context.Context, subID string) (*Subscription, error)
	// Create inserts a new subscription. The one-row-per-account constraint
	// surfaces as ErrAlreadyExists.
	Create(ctx context.Context, sub *Subscription) error
	// Update persists the full mutable state of an existing subscription.
	Update(ctx context.Context, sub *Subscription) error
	// ListExpiredTrials returns trial subscriptions whose trial end has
	// passed and that carry a processor customer id.
	ListExpiredTrials(ctx context.Context, now time.Time) ([]*Subscription, error)
	// ListTrialsEndingWithin returns trials ending within the next n days.
	ListTrialsEndingWithin(ctx context.Context, now time.Time, days int) ([]*Subscription, error)
	// CreateBillingRecord appends a billing audit row.
	CreateBillingRecord(ctx context.Context, rec *BillingRecord) error
	// WithTenantLock runs fn while holding an exclusive per-identity lock,
	// serializing concurrent subscription creation for the same user.
	WithTenantLock(ctx context.Context, identity string, fn func(ctx context.Context) error) error
}
