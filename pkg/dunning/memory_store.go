package dunning

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory RuleStore and HistoryStore for tests.
type MemoryStore struct {
	mu      sync.Mutex
	rules   []*Rule
	history map[[2]uuid.UUID]*History // (invoice, rule) -> record
}

// NewMemoryStore creates an empty in-memory dunning store.
func NewMemoryStore(rules ...*Rule) *MemoryStore {
	s := &MemoryStore{history: make(map[[2]uuid.UUID]*History)}
	for _, r := range rules {
		cp := *r
		s.rules = append(s.rules, &cp)
	}
	return s
}

func (s *MemoryStore) ListActive(_ context.Context) ([]*Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Rule
	for _, r := range s.rules {
		if r.IsActive {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OffsetDays < out[j].OffsetDays })
	return out, nil
}

func (s *MemoryStore) Exists(_ context.Context, invoiceID, ruleID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.history[[2]uuid.UUID{invoiceID, ruleID}]
	return ok, nil
}

func (s *MemoryStore) Record(_ context.Context, h *History) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := [2]uuid.UUID{h.InvoiceID, h.RuleID}
	if _, ok := s.history[key]; ok {
		return ErrAlreadySent
	}
	cp := *h
	s.history[key] = &cp
	return nil
}

// History returns a snapshot of recorded reminders, for test assertions.
func (s *MemoryStore) History() []History {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]History, 0, len(s.history))
	for _, h := range s.history {
		out = append(out, *h)
	}
	return out
}
