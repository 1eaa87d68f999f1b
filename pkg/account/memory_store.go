package account

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/payflowhq/payflow/pkg/tenantlock"
)

// MemoryStore is an in-memory Store for tests and local development.
// Individual operations lock only for the duration of the call, mirroring
// read-committed visibility; WithinUserLock serializes callers per user the
// way the Postgres store does with advisory locks, and nothing else does.
type MemoryStore struct {
	mu          sync.Mutex
	accounts    map[uuid.UUID]*Account
	slugs       map[string]struct{}
	memberships []*UserAccount

	locks *tenantlock.Mutex
}

// NewMemoryStore creates an empty in-memory account store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[uuid.UUID]*Account),
		slugs:    make(map[string]struct{}),
		locks:    tenantlock.NewMutex(),
	}
}

func (s *MemoryStore) EarliestMembership(_ context.Context, userID string) (*UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found []*UserAccount
	for _, m := range s.memberships {
		if m.UserID == userID {
			found = append(found, m)
		}
	}
	if len(found) == 0 {
		return nil, ErrNoMembership
	}

	sort.Slice(found, func(i, j int) bool { return found[i].CreatedAt.Before(found[j].CreatedAt) })
	cp := *found[0]
	return &cp, nil
}

func (s *MemoryStore) GetAccount(_ context.Context, id uuid.UUID) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *acc
	return &cp, nil
}

func (s *MemoryStore) CreateAccount(_ context.Context, acc *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[acc.ID]; exists {
		return ErrAlreadyExists
	}
	if _, exists := s.slugs[acc.Slug]; exists {
		return ErrAlreadyExists
	}

	cp := *acc
	s.accounts[acc.ID] = &cp
	s.slugs[acc.Slug] = struct{}{}
	return nil
}

func (s *MemoryStore) CreateMembership(_ context.Context, m *UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.memberships {
		if existing.UserID == m.UserID && existing.AccountID == m.AccountID {
			return ErrAlreadyExists
		}
	}

	cp := *m
	s.memberships = append(s.memberships, &cp)
	return nil
}

func (s *MemoryStore) WithinUserLock(ctx context.Context, userID string, fn func(ctx context.Context) error) error {
	release, err := s.locks.Acquire(ctx, userID)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

// Memberships returns a snapshot of all membership rows, for test assertions.
func (s *MemoryStore) Memberships() []UserAccount {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]UserAccount, 0, len(s.memberships))
	for _, m := range s.memberships {
		out = append(out, *m)
	}
	return out
}

// Accounts returns a snapshot of all account rows, for test assertions.
func (s *MemoryStore) Accounts() []Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, *a)
	}
	return out
}
