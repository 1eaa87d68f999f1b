package dunning

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/payflowhq/payflow/pkg/pg"
)

// PGStore is the Postgres-backed RuleStore and HistoryStore.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a Postgres-backed dunning store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) q(ctx context.Context) pg.Querier {
	return pg.QuerierFromContext(ctx, s.pool)
}

func (s *PGStore) ListActive(ctx context.Context) ([]*Rule, error) {
	const query = `
		SELECT id, account_id, name, offset_days, channel, subject, template,
		       is_active, created_at, updated_at
		FROM dunning_rules
		WHERE is_active
		ORDER BY account_id, offset_days ASC`

	rows, err := s.q(ctx).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*Rule
	for rows.Next() {
		var r Rule
		err := rows.Scan(
			&r.ID, &r.AccountID, &r.Name, &r.OffsetDays, &r.Channel,
			&r.Subject, &r.Template, &r.IsActive, &r.CreatedAt, &r.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		rules = append(rules, &r)
	}
	return rules, rows.Err()
}

func (s *PGStore) Exists(ctx context.Context, invoiceID, ruleID uuid.UUID) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM dunning_history
			WHERE invoice_id = $1 AND rule_id = $2
		)`

	var exists bool
	err := s.q(ctx).QueryRow(ctx, query, invoiceID, ruleID).Scan(&exists)
	return exists, err
}

func (s *PGStore) Record(ctx context.Context, h *History) error {
	const query = `
		INSERT INTO dunning_history (id, account_id, invoice_id, rule_id, channel, recipient, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.q(ctx).Exec(ctx, query,
		h.ID, h.AccountID, h.InvoiceID, h.RuleID, h.Channel, h.Recipient, h.SentAt,
	)
	if pg.IsConstraintViolation(err) {
		return errors.Join(ErrAlreadySent, err)
	}
	return err
}
