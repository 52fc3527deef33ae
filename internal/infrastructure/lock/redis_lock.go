package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// RedisLock holds the run lock in Redis so hosts sharing a cache also share
// exclusion. The key expires after ttl, matching the file lock's stale reclaim.
type RedisLock struct {
	locker *redislock.Client
	key    string
	ttl    time.Duration
}

// NewRedisLock creates a Redis-backed run lock
func NewRedisLock(client *redis.Client, key string, ttl time.Duration) *RedisLock {
	if key == "" {
		key = "catalogsync:run-lock"
	}
	return &RedisLock{locker: redislock.New(client), key: key, ttl: ttl}
}

// Acquire implements Locker
func (l *RedisLock) Acquire(ctx context.Context) (Lease, error) {
	held, err := l.locker.Obtain(ctx, l.key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockHeld
	}
	if err != nil {
		return nil, fmt.Errorf("lock: obtain redis lock: %w", err)
	}
	return &redisLease{lock: held}, nil
}

type redisLease struct {
	lock *redislock.Lock
}

// Release ignores locks that already expired
func (r *redisLease) Release(ctx context.Context) error {
	err := r.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return nil
	}
	return err
}

var _ Locker = (*RedisLock)(nil)
