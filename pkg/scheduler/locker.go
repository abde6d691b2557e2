package scheduler

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// Locker serializes dispatch runs across instances
type Locker interface {
	// Acquire takes the named lock for at most ttl; false means another
	// holder has it
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)

	// Release frees the named lock
	Release(ctx context.Context, name string) error
}

// RedisLocker implements Locker with a Redis SETNX key. The TTL bounds how
// long a crashed instance can block dispatch.
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker creates a Redis-backed locker
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

// Acquire takes the lock if nobody holds it
func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, "lock:"+name, time.Now().Format(time.RFC3339), ttl).Result()
}

// Release drops the lock
func (l *RedisLocker) Release(ctx context.Context, name string) error {
	return l.client.Del(ctx, "lock:"+name).Err()
}

// NoopLocker always grants the lock. Single-instance deployments use it when
// no Redis address is configured.
type NoopLocker struct{}

// Acquire always succeeds
func (NoopLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	return true, nil
}

// Release does nothing
func (NoopLocker) Release(ctx context.Context, name string) error {
	return nil
}
