package dunning

import (
	"context"

	"github.com/google/uuid"
)

// RuleStore is the rule read contract for the sweep.
type RuleStore interface {
	// ListActive returns active rules across all accounts; the engine
	// matches them against invoices of the same account only.
	ListActive(ctx context.Context) ([]*Rule, error)
}

// HistoryStore persists sent reminders and enforces at-most-once delivery
// per (invoice, rule) pair.
type HistoryStore interface {
	// Exists reports whether a reminder was already recorded for the pair.
	Exists(ctx context.Context, invoiceID, ruleID uuid.UUID) (bool, error)
	// Record inserts a sent reminder. A duplicate pair returns
	// ErrAlreadySent, closing the race between two overlapping sweeps.
	Record(ctx context.Context, h *History) error
}
