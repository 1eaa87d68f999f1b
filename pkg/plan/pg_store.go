package plan

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/payflowhq/payflow/pkg/pg"
)

const planColumns = `
	id, name, slug, description,
	price_monthly, price_yearly,
	processor_price_id_monthly, processor_price_id_yearly, processor_product_id,
	features, transaction_fee_percentage,
	max_invoices_per_month, max_customers, max_seats,
	has_custom_branding, has_priority_support, has_recurring_billing, has_analytics,
	is_active, created_at, updated_at`

// PGStore is the Postgres-backed plan catalog.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) q(ctx context.Context) pg.Querier {
	return pg.QuerierFromContext(ctx, s.pool)
}

func scanPlan(row pgx.Row) (*Plan, error) {
	var p Plan
	err := row.Scan(
		&p.ID, &p.Name, &p.Slug, &p.Description,
		&p.PriceMonthly, &p.PriceYearly,
		&p.ProcessorPriceIDMonthly, &p.ProcessorPriceIDYearly, &p.ProcessorProductID,
		&p.Features, &p.TransactionFeePercentage,
		&p.MaxInvoicesPerMonth, &p.MaxCustomers, &p.MaxSeats,
		&p.HasCustomBranding, &p.HasPrioritySupport, &p.HasRecurringBilling, &p.HasAnalytics,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *PGStore) GetBySlug(ctx context.Context, slug string) (*Plan, error) {
	query := `SELECT ` + planColumns + ` FROM subscription_plans WHERE slug = $1 AND is_active`
	return scanPlan(s.q(ctx).QueryRow(ctx, query, slug))
}

func (s *PGStore) GetByID(ctx context.Context, id uuid.UUID) (*Plan, error) {
	query := `SELECT ` + planColumns + ` FROM subscription_plans WHERE id = $1`
	return scanPlan(s.q(ctx).QueryRow(ctx, query, id))
}

func (s *PGStore) ListActive(ctx context.Context) ([]*Plan, error) {
	query := `SELECT ` + planColumns + ` FROM subscription_plans WHERE is_active ORDER BY price_monthly ASC`

	rows, err := s.q(ctx).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []*Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func (s *PGStore) CachePriceID(ctx context.Context, planID uuid.UUID, priceID string, yearly bool) error {
	column := "processor_price_id_monthly"
	if yearly {
		column = "processor_price_id_yearly"
	}
	query := `UPDATE subscription_plans SET ` + column + ` = $1, updated_at = now() WHERE id = $2`

	_, err := s.q(ctx).Exec(ctx, query, priceID, planID)
	return err
}
