package invoice

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory invoice read store for tests.
type MemoryStore struct {
	mu       sync.Mutex
	invoices []*Overdue
}

// NewMemoryStore creates an in-memory store seeded with the given rows.
func NewMemoryStore(invoices ...*Overdue) *MemoryStore {
	s := &MemoryStore{}
	for _, inv := range invoices {
		cp := *inv
		s.invoices = append(s.invoices, &cp)
	}
	return s
}

// Add seeds one more row.
func (s *MemoryStore) Add(inv *Overdue) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *inv
	s.invoices = append(s.invoices, &cp)
}

func (s *MemoryStore) ListOverdue(_ context.Context, now time.Time) ([]*Overdue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now = now.UTC()
	var out []*Overdue
	for _, inv := range s.invoices {
		if inv.Status == StatusPaid || inv.Status == StatusCancelled {
			continue
		}
		if inv.DueDate.UTC().Before(now) {
			cp := *inv
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}
