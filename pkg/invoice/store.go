package invoice

import (
	"context"
	"time"
)

// Store is the invoice read contract the dunning engine depends on.
type Store interface {
	// ListOverdue returns invoices across all tenants whose due date has
	// passed and whose status is neither paid nor cancelled, joined with
	// their customer's contact details.
	ListOverdue(ctx context.Context, now time.Time) ([]*Overdue, error)
}
