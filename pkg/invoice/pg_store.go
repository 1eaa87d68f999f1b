package invoice

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/payflowhq/payflow/pkg/pg"
)

// PGStore is the Postgres-backed invoice read store.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) ListOverdue(ctx context.Context, now time.Time) ([]*Overdue, error) {
	const query = `
		SELECT
			i.id, i.account_id, i.customer_id, i.number, i.status,
			i.amount, i.currency, i.due_date, i.created_at, i.updated_at,
			c.name, c.email, COALESCE(c.phone, '')
		FROM invoices i
		JOIN customers c ON i.customer_id = c.id
		WHERE i.status NOT IN ('paid', 'cancelled')
		  AND i.due_date < $1`

	q := pg.QuerierFromContext(ctx, s.pool)
	rows, err := q.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Overdue
	for rows.Next() {
		var o Overdue
		if err := rows.Scan(
			&o.ID, &o.AccountID, &o.CustomerID, &o.Number, &o.Status,
			&o.Amount, &o.Currency, &o.DueDate, &o.CreatedAt, &o.UpdatedAt,
			&o.CustomerName, &o.CustomerEmail, &o.CustomerPhone,
		); err != nil {
			return nil, err
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}
