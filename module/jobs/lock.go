package jobs

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// Locker is the advisory lock that elects one process instance as the job
// runner. It is best-effort: self-expiring via TTL, so a crashed holder is
// superseded once its TTL lapses.
type Locker interface {
	Acquire(ctx context.Context, key, holder string, ttl time.Duration) (bool, error)
	Refresh(ctx context.Context, key, holder string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, holder string) error
}

type redisLocker struct {
	rdb *redis.Client
}

func NewRedisLocker(rdb *redis.Client) Locker {
	return &redisLocker{rdb: rdb}
}

func (l *redisLocker) Acquire(ctx context.Context, key, holder string, ttl time.Duration) (bool, error) {
	return l.rdb.SetNX(ctx, key, holder, ttl).Result()
}

// Refresh re-arms the TTL only while we still own the lock. The get/set pair
// is not atomic; that is acceptable for an advisory lock whose failure mode
// is duplicated idempotent work.
func (l *redisLocker) Refresh(ctx context.Context, key, holder string, ttl time.Duration) (bool, error) {
	current, err := l.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		// expired under us; try to take it back
		return l.rdb.SetNX(ctx, key, holder, ttl).Result()
	}
	if err != nil {
		return false, err
	}
	if current != holder {
		return false, nil
	}
	if err := l.rdb.Set(ctx, key, holder, ttl).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (l *redisLocker) Release(ctx context.Context, key, holder string) error {
	current, err := l.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if current != holder {
		return nil
	}
	return l.rdb.Del(ctx, key).Err()
}
