// Package ratelimit throttles failed logins with Redis counters.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps failures talking to Redis.
var ErrRedisUnavailable = errors.New("ratelimit: redis unavailable")

const keyPrefix = "arabia:login:"

// Limiter counts failed attempts per key in a fixed window.
type Limiter struct {
	redis       redis.UniversalClient
	maxAttempts int
	window      time.Duration
}

// New creates a Limiter that blocks a key after maxAttempts failures
// until window elapses from the first failure.
func New(client redis.UniversalClient, maxAttempts int, window time.Duration) (*Limiter, error) {
	if client == nil {
		return nil, errors.New("ratelimit: redis client is required")
	}
	if maxAttempts <= 0 {
		return nil, errors.New("ratelimit: max attempts must be positive")
	}
	if window <= 0 {
		return nil, errors.New("ratelimit: window must be positive")
	}
	return &Limiter{redis: client, maxAttempts: maxAttempts, window: window}, nil
}

// Allow reports whether key is still under its failure budget.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := l.redis.Get(ctx, redisKey(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return true, nil
		}
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return count < int64(l.maxAttempts), nil
}

// Fail records one failed attempt.
func (l *Limiter) Fail(ctx context.Context, key string) error {
	k := redisKey(key)
	count, err := l.redis.Incr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	// TTL is set on the first hit only, so the window does not slide.
	if count == 1 {
		if err := l.redis.Expire(ctx, k, l.window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return nil
}

// Reset clears the counter, typically after a successful login.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if err := l.redis.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func redisKey(key string) string {
	return keyPrefix + strings.ToLower(strings.TrimSpace(key))
}
