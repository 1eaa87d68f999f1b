package plan

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory plan catalog for tests.
type MemoryStore struct {
	mu    sync.RWMutex
	plans map[uuid.UUID]*Plan
}

func NewMemoryStore(plans ...*Plan) *MemoryStore {
	s := &MemoryStore{plans: make(map[uuid.UUID]*Plan)}
	for _, p := range plans {
		cp := *p
		s.plans[p.ID] = &cp
	}
	return s
}

func (s *MemoryStore) GetBySlug(_ context.Context, slug string) (*Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.plans {
		if p.Slug == slug && p.IsActive {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrPlanNotFound
}

func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.plans[id]
	if !ok {
		return nil, ErrPlanNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ListActive(_ context.Context) ([]*Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Plan
	for _, p := range s.plans {
		if p.IsActive {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PriceMonthly.LessThan(out[j].PriceMonthly)
	})
	return out, nil
}

func (s *MemoryStore) CachePriceID(_ context.Context, planID uuid.UUID, priceID string, yearly bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.plans[planID]
	if !ok {
		return ErrPlanNotFound
	}
	if yearly {
		p.ProcessorPriceIDYearly = priceID
	} else {
		p.ProcessorPriceIDMonthly = priceID
	}
	return nil
}
