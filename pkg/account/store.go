package account

import (
	"context"

	"github.com/google/uuid"
)

// Store is the persistence contract for accounts and memberships.
//
// Implementations must translate duplicate-key failures into ErrAlreadyExists
// and missing rows into ErrNoMembership / ErrAccountNotFound so callers never
// inspect driver error text.
type Store interface {
	// EarliestMembership returns the earliest-created membership for a user,
	// or ErrNoMembership.
	EarliestMembership(ctx context.Context, userID string) (*UserAccount, error)

	// GetAccount returns an account by id, or ErrAccountNotFound.
	GetAccount(ctx context.Context, id uuid.UUID) (*Account, error)

	// CreateAccount inserts an account row.
	CreateAccount(ctx context.Context, acc *Account) error

	// CreateMembership inserts a membership row.
	CreateMembership(ctx context.Context, m *UserAccount) error

	// WithinUserLock runs fn inside a transaction that holds an exclusive
	// lock keyed by userID, so concurrent default-account creations for the
	// same user serialize across processes. Store calls inside fn bind to
	// the transaction; it commits when fn returns nil and rolls back
	// otherwise.
	WithinUserLock(ctx context.Context, userID string, fn func(ctx context.Context) error) error
}
