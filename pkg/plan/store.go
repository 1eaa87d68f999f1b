package plan

import (
	"context"

	"github.com/google/uuid"
)

// Store is the catalog read contract, plus the single write the billing core
// performs: caching a lazily created processor price id.
type Store interface {
	// GetBySlug returns an active plan by slug, or ErrPlanNotFound.
	GetBySlug(ctx context.Context, slug string) (*Plan, error)

	// GetByID returns a plan by id, or ErrPlanNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*Plan, error)

	// ListActive returns all active plans ordered by monthly price.
	ListActive(ctx context.Context) ([]*Plan, error)

	// CachePriceID stores a processor price id on the plan row so later
	// conversions reuse it instead of minting a new price.
	CachePriceID(ctx context.Context, planID uuid.UUID, priceID string, yearly bool) error
}
