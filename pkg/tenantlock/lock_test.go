package tenantlock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payflowhq/payflow/pkg/tenantlock"
)

func TestKey_StableAndNonNegative(t *testing.T) {
	k1 := tenantlock.Key("user-123")
	k2 := tenantlock.Key("user-123")
	assert.Equal(t, k1, k2)
	assert.GreaterOrEqual(t, k1, int64(0))
	assert.LessOrEqual(t, k1, int64(0x7FFFFFFF))

	assert.NotEqual(t, tenantlock.Key("user-123"), tenantlock.Key("user-456"))
}

func TestMutex_SerializesSameTenant(t *testing.T) {
	m := tenantlock.NewMutex()
	ctx := context.Background()

	var inCritical, max int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := m.Acquire(ctx, "tenant-a")
			require.NoError(t, err)
			defer release()

			mu.Lock()
			inCritical++
			if inCritical > max {
				max = inCritical
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inCritical--
			mu.Unlock()
		}()
	}

	wg.Wait()
	assert.Equal(t, 1, max)
}

func TestMutex_DifferentTenantsDoNotBlock(t *testing.T) {
	m := tenantlock.NewMutex()
	ctx := context.Background()

	releaseA, err := m.Acquire(ctx, "tenant-a")
	require.NoError(t, err)
	defer releaseA()

	releaseB, ok, err := m.TryAcquire(ctx, "tenant-b")
	require.NoError(t, err)
	require.True(t, ok)
	releaseB()
}

func TestMutex_TryAcquireContended(t *testing.T) {
	m := tenantlock.NewMutex()
	ctx := context.Background()

	release, err := m.Acquire(ctx, "tenant-a")
	require.NoError(t, err)

	_, ok, err := m.TryAcquire(ctx, "tenant-a")
	require.NoError(t, err)
	assert.False(t, ok)

	release()

	release2, ok, err := m.TryAcquire(ctx, "tenant-a")
	require.NoError(t, err)
	assert.True(t, ok)
	release2()
}

func TestMutex_ReleaseIdempotent(t *testing.T) {
	m := tenantlock.NewMutex()
	release, err := m.Acquire(context.Background(), "tenant-a")
	require.NoError(t, err)

	release()
	assert.NotPanics(t, release)
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisLocker_TryAcquire(t *testing.T) {
	client := newTestRedis(t)
	locker := tenantlock.NewRedisLocker(client, time.Minute)
	ctx := context.Background()

	release, ok, err := locker.TryAcquire(ctx, "tenant-a")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryAcquire(ctx, "tenant-a")
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be rejected while lock is held")

	release()

	release2, ok, err := locker.TryAcquire(ctx, "tenant-a")
	require.NoError(t, err)
	assert.True(t, ok, "lock must be reacquirable after release")
	release2()
}

func TestRedisLocker_IndependentTenants(t *testing.T) {
	client := newTestRedis(t)
	locker := tenantlock.NewRedisLocker(client, time.Minute)
	ctx := context.Background()

	releaseA, ok, err := locker.TryAcquire(ctx, "tenant-a")
	require.NoError(t, err)
	require.True(t, ok)
	defer releaseA()

	releaseB, ok, err := locker.TryAcquire(ctx, "tenant-b")
	require.NoError(t, err)
	require.True(t, ok)
	releaseB()
}

func TestRedisLocker_AcquireWaitsForRelease(t *testing.T) {
	client := newTestRedis(t)
	locker := tenantlock.NewRedisLocker(client, time.Minute)
	ctx := context.Background()

	release, ok, err := locker.TryAcquire(ctx, "tenant-a")
	require.NoError(t, err)
	require.True(t, ok)

	done := make(chan struct{})
	go func() {
		r, err := locker.Acquire(ctx, "tenant-a")
		assert.NoError(t, err)
		r()
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	release()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Acquire did not obtain the lock after release")
	}
}

func TestRedisLocker_AcquireRespectsContext(t *testing.T) {
	client := newTestRedis(t)
	locker := tenantlock.NewRedisLocker(client, time.Minute)

	release, ok, err := locker.TryAcquire(context.Background(), "tenant-a")
	require.NoError(t, err)
	require.True(t, ok)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_, err = locker.Acquire(ctx, "tenant-a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
