package account

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/payflowhq/payflow/pkg/pg"
	"github.com/payflowhq/payflow/pkg/tenantlock"
)

// PGStore is the Postgres-backed Store. Queries run on the pool, or on the
// transaction bound into ctx by WithinUserLock.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a Postgres-backed account store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) q(ctx context.Context) pg.Querier {
	return pg.QuerierFromContext(ctx, s.pool)
}

func (s *PGStore) EarliestMembership(ctx context.Context, userID string) (*UserAccount, error) {
	const query = `
		SELECT id, user_id, account_id, role, created_at, updated_at
		FROM user_accounts
		WHERE user_id = $1
		ORDER BY created_at ASC
		LIMIT 1`

	var m UserAccount
	err := s.q(ctx).QueryRow(ctx, query, userID).Scan(
		&m.ID, &m.UserID, &m.AccountID, &m.Role, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrNoMembership
		}
		return nil, err
	}
	return &m, nil
}

func (s *PGStore) GetAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	const query = `
		SELECT id, name, slug, created_at, updated_at
		FROM accounts
		WHERE id = $1`

	var a Account
	err := s.q(ctx).QueryRow(ctx, query, id).Scan(
		&a.ID, &a.Name, &a.Slug, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *PGStore) CreateAccount(ctx context.Context, acc *Account) error {
	const query = `
		INSERT INTO accounts (id, name, slug, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.q(ctx).Exec(ctx, query, acc.ID, acc.Name, acc.Slug, acc.CreatedAt, acc.UpdatedAt)
	if pg.IsConstraintViolation(err) {
		return errors.Join(ErrAlreadyExists, err)
	}
	return err
}

func (s *PGStore) CreateMembership(ctx context.Context, m *UserAccount) error {
	const query = `
		INSERT INTO user_accounts (id, user_id, account_id, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
		m.UpdatedAt = m.CreatedAt
	}

	_, err := s.q(ctx).Exec(ctx, query, m.ID, m.UserID, m.AccountID, m.Role, m.CreatedAt, m.UpdatedAt)
	if pg.IsConstraintViolation(err) {
		return errors.Join(ErrAlreadyExists, err)
	}
	return err
}

// WithinUserLock serializes fn per user via pg_advisory_xact_lock. A plain
// transactional re-check is not enough here: under read committed two
// concurrent creators both see no membership and nothing in the schema
// collides for fresh account ids, so without the lock each would insert its
// own account.
func (s *PGStore) WithinUserLock(ctx context.Context, userID string, fn func(ctx context.Context) error) error {
	return pg.WithinAdvisoryLock(ctx, s.pool, tenantlock.Key(userID), fn)
}
