package tenantlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotHeld is returned when a release finds the lock already expired
// or taken over by another holder.
var ErrLockNotHeld = errors.New("tenantlock: lock not held")

// releaseScript deletes the lock key only when it still carries our token,
// so an expired lock reacquired by someone else is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker for multi-process deployments, backed by a
// SET NX PX lock with a holder token. The TTL bounds how long a crashed
// holder can block others.
type RedisLocker struct {
	client    *redis.Client
	ttl       time.Duration
	retryWait time.Duration
	prefix    string
}

// NewRedisLocker creates a Redis-backed tenant locker. A zero ttl defaults
// to one minute.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisLocker{
		client:    client,
		ttl:       ttl,
		retryWait: 100 * time.Millisecond,
		prefix:    "tenantlock:",
	}
}

func (l *RedisLocker) keyName(identity string) string {
	return fmt.Sprintf("%s%d", l.prefix, Key(identity))
}

// Acquire blocks, polling until the lock is obtained or ctx is done.
func (l *RedisLocker) Acquire(ctx context.Context, identity string) (func(), error) {
	for {
		release, ok, err := l.TryAcquire(ctx, identity)
		if err != nil {
			return nil, err
		}
		if ok {
			return release, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryWait):
		}
	}
}

// TryAcquire attempts a single SET NX. ok=false means another holder has the lock.
func (l *RedisLocker) TryAcquire(ctx context.Context, identity string) (func(), bool, error) {
	key := l.keyName(identity)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// Release must succeed even when the acquiring context is gone.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = releaseScript.Run(rctx, l.client, []string{key}, token).Result()
	}
	return release, true, nil
}
