package subscription

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/payflowhq/payflow/pkg/tenantlock"
)

// MemoryStore is an in-memory Store for tests and local development.
// WithTenantLock serializes callers per identity through an in-process
// tenant mutex, mirroring the advisory-lock semantics of the Postgres store.
type MemoryStore struct {
	mu      sync.Mutex
	subs    map[uuid.UUID]*Subscription
	history []*BillingRecord
	locks   *tenantlock.Mutex
}

// NewMemoryStore creates an empty in-memory subscription store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subs:  make(map[uuid.UUID]*Subscription),
		locks: tenantlock.NewMutex(),
	}
}

func (s *MemoryStore) GetByAccount(_ context.Context, accountID uuid.UUID) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subs {
		if sub.AccountID == accountID {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetByProcessorCustomer(_ context.Context, customerID string) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subs {
		if sub.ProcessorCustomerID != "" && sub.ProcessorCustomerID == customerID {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetByProcessorSubscription(_ context.Context, subID string) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subs {
		if sub.ProcessorSubscriptionID != "" && sub.ProcessorSubscriptionID == subID {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Create(_ context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.subs {
		if existing.AccountID == sub.AccountID {
			return ErrAlreadyExists
		}
	}

	cp := *sub
	s.subs[sub.ID] = &cp
	return nil
}

func (s *MemoryStore) Update(_ context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[sub.ID]; !ok {
		return ErrNotFound
	}
	cp := *sub
	s.subs[sub.ID] = &cp
	return nil
}

func (s *MemoryStore) ListExpiredTrials(_ context.Context, now time.Time) ([]*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now = now.UTC()
	var out []*Subscription
	for _, sub := range s.subs {
		if sub.Status != StatusTrial || sub.TrialEndDate == nil || sub.ProcessorCustomerID == "" {
			continue
		}
		if sub.TrialEndDate.UTC().Before(now) {
			cp := *sub
			out = append(out, &cp)
		}
	}
	sortByTrialEnd(out)
	return out, nil
}

func (s *MemoryStore) ListTrialsEndingWithin(_ context.Context, now time.Time, days int) ([]*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now = now.UTC()
	cutoff := now.AddDate(0, 0, days)
	var out []*Subscription
	for _, sub := range s.subs {
		if sub.Status != StatusTrial || sub.TrialEndDate == nil {
			continue
		}
		end := sub.TrialEndDate.UTC()
		if !end.Before(now) && end.Before(cutoff) {
			cp := *sub
			out = append(out, &cp)
		}
	}
	sortByTrialEnd(out)
	return out, nil
}

func sortByTrialEnd(subs []*Subscription) {
	sort.Slice(subs, func(i, j int) bool {
		return subs[i].TrialEndDate.Before(*subs[j].TrialEndDate)
	})
}

func (s *MemoryStore) CreateBillingRecord(_ context.Context, rec *BillingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.history = append(s.history, &cp)
	return nil
}

func (s *MemoryStore) WithTenantLock(ctx context.Context, identity string, fn func(ctx context.Context) error) error {
	release, err := s.locks.Acquire(ctx, identity)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

// Subscriptions returns a snapshot of all rows, for test assertions.
func (s *MemoryStore) Subscriptions() []Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, *sub)
	}
	return out
}

// BillingRecords returns a snapshot of the billing history, for test assertions.
func (s *MemoryStore) BillingRecords() []BillingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]BillingRecord, 0, len(s.history))
	for _, rec := range s.history {
		out = append(out, *rec)
	}
	return out
}
