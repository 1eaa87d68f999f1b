package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx operations shared by pools and transactions.
// Stores accept it so the same query code runs inside and outside transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Beginner starts transactions; satisfied by *pgxpool.Pool and *pgx.Conn.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type txCtxKey struct{}

// QuerierFromContext returns the transaction bound to ctx by WithinTransaction,
// or fallback when the context carries no transaction.
func QuerierFromContext(ctx context.Context, fallback Querier) Querier {
	if tx, ok := ctx.Value(txCtxKey{}).(pgx.Tx); ok {
		return tx
	}
	return fallback
}

// WithinTransaction runs fn inside a transaction bound to the context.
// The transaction commits when fn returns nil and rolls back otherwise.
// The deferred rollback also fires when fn panics, so the connection goes
// back to the pool and any transaction-scoped advisory lock is released
// while the panic keeps unwinding; after a commit or an explicit rollback
// it is a no-op.
func WithinTransaction(ctx context.Context, db Beginner, fn func(ctx context.Context) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	txCtx := context.WithValue(ctx, txCtxKey{}, tx)
	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, rbErr)
		}
		return err
	}

	return tx.Commit(ctx)
}

// WithinAdvisoryLock runs fn inside a transaction holding pg_advisory_xact_lock
// on key. Concurrent callers with the same key serialize; the lock releases
// with the transaction on every exit path, panics included.
func WithinAdvisoryLock(ctx context.Context, db Beginner, key int64, fn func(ctx context.Context) error) error {
	return WithinTransaction(ctx, db, func(txCtx context.Context) error {
		q := QuerierFromContext(txCtx, nil)
		if _, err := q.Exec(txCtx, "SELECT pg_advisory_xact_lock($1)", key); err != nil {
			return err
		}
		return fn(txCtx)
	})
}
