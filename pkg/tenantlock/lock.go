// Package tenantlock provides mutual exclusion scoped to a tenant identity.
//
// Keys are derived from a CRC32 checksum of the tenant's string identity,
// masked to a non-negative 31-bit integer so the same value can drive a
// Postgres advisory lock, an in-process mutex table, or a Redis lock.
package tenantlock

import (
	"context"
	"hash/crc32"
	"sync"
)

// Key derives a stable non-negative 31-bit lock key from a tenant identity.
// The same identity always maps to the same key, so concurrent requests for
// one tenant serialize while different tenants proceed in parallel.
func Key(identity string) int64 {
	return int64(crc32.ChecksumIEEE([]byte(identity)) & 0x7FFFFFFF)
}

// Locker serializes work keyed by tenant identity. Acquire blocks until the
// lock is held or ctx is done; TryAcquire never blocks. Both return a release
// function that must be called on every exit path.
type Locker interface {
	Acquire(ctx context.Context, identity string) (release func(), err error)
	TryAcquire(ctx context.Context, identity string) (release func(), ok bool, err error)
}

// Mutex is an in-process Locker backed by a refcounted mutex table.
// Entries are removed once the last holder or waiter releases, so the table
// does not grow with the number of tenants ever seen.
type Mutex struct {
	mu      sync.Mutex
	entries map[int64]*mutexEntry
}

type mutexEntry struct {
	mu   sync.Mutex
	refs int
}

// NewMutex creates an in-process tenant mutex.
func NewMutex() *Mutex {
	return &Mutex{entries: make(map[int64]*mutexEntry)}
}

func (m *Mutex) entry(key int64) *mutexEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		e = &mutexEntry{}
		m.entries[key] = e
	}
	e.refs++
	return e
}

func (m *Mutex) put(key int64, e *mutexEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}

// Acquire blocks until the tenant's mutex is held.
func (m *Mutex) Acquire(_ context.Context, identity string) (func(), error) {
	key := Key(identity)
	e := m.entry(key)
	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			m.put(key, e)
		})
	}, nil
}

// TryAcquire attempts to take the tenant's mutex without blocking.
func (m *Mutex) TryAcquire(_ context.Context, identity string) (func(), bool, error) {
	key := Key(identity)
	e := m.entry(key)
	if !e.mu.TryLock() {
		m.put(key, e)
		return nil, false, nil
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			m.put(key, e)
		})
	}, true, nil
}
