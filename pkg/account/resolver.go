package account

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Resolver maps an authenticated user identity to its owning account,
// creating a default account on first access. Resolution is a prerequisite
// for every tenant-scoped operation, so any failure other than a resolvable
// creation race propagates as-is.
type Resolver struct {
	store Store
	log   *slog.Logger

	cacheTTL time.Duration
	mu       sync.RWMutex
	cache    map[string]cacheEntry
}

type cacheEntry struct {
	accountID uuid.UUID
	expiresAt time.Time
}

// ResolverOption configures the resolver.
type ResolverOption func(*Resolver)

// WithCacheTTL overrides how long resolved account ids are cached in-process.
func WithCacheTTL(ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		if ttl > 0 {
			r.cacheTTL = ttl
		}
	}
}

// NewResolver creates a tenant resolver.
func NewResolver(store Store, log *slog.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:    store,
		log:      log,
		cacheTTL: 5 * time.Minute,
		cache:    make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the account id owning userID. When the user has no
// membership yet, a default account plus an admin membership are created
// under a per-user lock with a re-check once the lock is held; a racer that
// still collides on insert is resolved by re-reading the winner, never
// surfaced as an error.
func (r *Resolver) Resolve(ctx context.Context, userID string) (uuid.UUID, error) {
	if id, ok := r.cached(userID); ok {
		return id, nil
	}

	m, err := r.store.EarliestMembership(ctx, userID)
	if err == nil {
		r.remember(userID, m.AccountID)
		return m.AccountID, nil
	}
	if !errors.Is(err, ErrNoMembership) {
		return uuid.Nil, err
	}

	accountID, err := r.createDefault(ctx, userID)
	if err != nil {
		return uuid.Nil, err
	}

	r.remember(userID, accountID)
	return accountID, nil
}

func (r *Resolver) createDefault(ctx context.Context, userID string) (uuid.UUID, error) {
	var accountID uuid.UUID

	err := r.store.WithinUserLock(ctx, userID, func(txCtx context.Context) error {
		// Another request may have created the account between our lookup
		// and taking the lock; with the per-user lock held this re-check is
		// authoritative.
		if m, err := r.store.EarliestMembership(txCtx, userID); err == nil {
			accountID = m.AccountID
			return nil
		} else if !errors.Is(err, ErrNoMembership) {
			return err
		}

		id := uuid.New()
		acc, err := NewAccount(DefaultName(userID), DefaultSlug(userID, id))
		if err != nil {
			return err
		}
		acc.ID = id

		if err := r.store.CreateAccount(txCtx, acc); err != nil {
			return err
		}
		if err := r.store.CreateMembership(txCtx, NewMembership(userID, acc.ID, RoleAdmin)); err != nil {
			return err
		}

		r.log.InfoContext(txCtx, "created default account for user",
			"user_id", userID, "account_id", acc.ID, "slug", acc.Slug)
		accountID = acc.ID
		return nil
	})
	if err == nil {
		return accountID, nil
	}

	// Lost the creation race: the winner's membership is now visible.
	if errors.Is(err, ErrAlreadyExists) {
		m, lookupErr := r.store.EarliestMembership(ctx, userID)
		if lookupErr != nil {
			return uuid.Nil, errors.Join(err, lookupErr)
		}
		r.log.InfoContext(ctx, "account created concurrently, using winner",
			"user_id", userID, "account_id", m.AccountID)
		return m.AccountID, nil
	}

	return uuid.Nil, err
}

func (r *Resolver) cached(userID string) (uuid.UUID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.cache[userID]
	if !ok || time.Now().After(e.expiresAt) {
		return uuid.Nil, false
	}
	return e.accountID, true
}

func (r *Resolver) remember(userID string, accountID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[userID] = cacheEntry{accountID: accountID, expiresAt: time.Now().Add(r.cacheTTL)}
}

// Invalidate drops the cached resolution for a user, e.g. after the user
// switches accounts.
func (r *Resolver) Invalidate(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, userID)
}
