package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/payflowhq/payflow/pkg/pg"
	"github.com/payflowhq/payflow/pkg/tenantlock"
)

const subscriptionColumns = `
	id, user_id, account_id, plan_id, status,
	trial_start_date, trial_end_date,
	current_period_start, current_period_end,
	processor_customer_id, processor_subscription_id,
	card_last_four, card_brand,
	cancel_at_period_end, canceled_at,
	created_at, updated_at`

// PGStore is the Postgres-backed Store. Queries run on the pool, or on the
// transaction bound into ctx by WithinTransaction / WithTenantLock.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a Postgres-backed subscription store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) q(ctx context.Context) pg.Querier {
	return pg.QuerierFromContext(ctx, s.pool)
}

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var sub Subscription
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.AccountID, &sub.PlanID, &sub.Status,
		&sub.TrialStartDate, &sub.TrialEndDate,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd,
		&sub.ProcessorCustomerID, &sub.ProcessorSubscriptionID,
		&sub.CardLastFour, &sub.CardBrand,
		&sub.CancelAtPeriodEnd, &sub.CanceledAt,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (s *PGStore) GetByAccount(ctx context.Context, accountID uuid.UUID) (*Subscription, error) {
	const query = `
		SELECT ` + subscriptionColumns + `
		FROM user_subscriptions
		WHERE account_id = $1`

	return scanSubscription(s.q(ctx).QueryRow(ctx, query, accountID))
}

func (s *PGStore) GetByProcessorCustomer(ctx context.Context, customerID string) (*Subscription, error) {
	const query = `
		SELECT ` + subscriptionColumns + `
		FROM user_subscriptions
		WHERE processor_customer_id = $1`

	return scanSubscription(s.q(ctx).QueryRow(ctx, query, customerID))
}

func (s *PGStore) GetByProcessorSubscription(ctx context.Context, subID string) (*Subscription, error) {
	const query = `
		SELECT ` + subscriptionColumns + `
		FROM user_subscriptions
		WHERE processor_subscription_id = $1`

	return scanSubscription(s.q(ctx).QueryRow(ctx, query, subID))
}

func (s *PGStore) Create(ctx context.Context, sub *Subscription) error {
	const query = `
		INSERT INTO user_subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := s.q(ctx).Exec(ctx, query,
		sub.ID, sub.UserID, sub.AccountID, sub.PlanID, sub.Status,
		sub.TrialStartDate, sub.TrialEndDate,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.ProcessorCustomerID, sub.ProcessorSubscriptionID,
		sub.CardLastFour, sub.CardBrand,
		sub.CancelAtPeriodEnd, sub.CanceledAt,
		sub.CreatedAt, sub.UpdatedAt,
	)
	if pg.IsConstraintViolation(err) {
		return errors.Join(ErrAlreadyExists, err)
	}
	return err
}

func (s *PGStore) Update(ctx context.Context, sub *Subscription) error {
	const query = `
		UPDATE user_subscriptions SET
			plan_id = $2, status = $3,
			trial_start_date = $4, trial_end_date = $5,
			current_period_start = $6, current_period_end = $7,
			processor_customer_id = $8, processor_subscription_id = $9,
			card_last_four = $10, card_brand = $11,
			cancel_at_period_end = $12, canceled_at = $13,
			updated_at = $14
		WHERE id = $1`

	tag, err := s.q(ctx).Exec(ctx, query,
		sub.ID, sub.PlanID, sub.Status,
		sub.TrialStartDate, sub.TrialEndDate,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.ProcessorCustomerID, sub.ProcessorSubscriptionID,
		sub.CardLastFour, sub.CardBrand,
		sub.CancelAtPeriodEnd, sub.CanceledAt,
		sub.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) ListExpiredTrials(ctx context.Context, now time.Time) ([]*Subscription, error) {
	const query = `
		SELECT ` + subscriptionColumns + `
		FROM user_subscriptions
		WHERE status = 'trial'
		  AND trial_end_date < $1
		  AND processor_customer_id <> ''
		ORDER BY trial_end_date ASC`

	return s.list(ctx, query, now.UTC())
}

func (s *PGStore) ListTrialsEndingWithin(ctx context.Context, now time.Time, days int) ([]*Subscription, error) {
	const query = `
		SELECT ` + subscriptionColumns + `
		FROM user_subscriptions
		WHERE status = 'trial'
		  AND trial_end_date >= $1
		  AND trial_end_date < $2
		ORDER BY trial_end_date ASC`

	now = now.UTC()
	return s.list(ctx, query, now, now.AddDate(0, 0, days))
}

func (s *PGStore) list(ctx context.Context, query string, args ...any) ([]*Subscription, error) {
	rows, err := s.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *PGStore) CreateBillingRecord(ctx context.Context, rec *BillingRecord) error {
	const query = `
		INSERT INTO billing_history (
			id, account_id, subscription_id, amount, currency,
			status, reason, period_start, period_end, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.q(ctx).Exec(ctx, query,
		rec.ID, rec.AccountID, rec.SubscriptionID, rec.Amount, rec.Currency,
		rec.Status, rec.Reason, rec.PeriodStart, rec.PeriodEnd, rec.CreatedAt,
	)
	return err
}

// WithTenantLock serializes fn across processes using a transaction-scoped
// advisory lock derived from the caller's identity. The lock releases with
// the transaction on every exit path.
func (s *PGStore) WithTenantLock(ctx context.Context, identity string, fn func(ctx context.Context) error) error {
	return pg.WithinAdvisoryLock(ctx, s.pool, tenantlock.Key(identity), fn)
}
