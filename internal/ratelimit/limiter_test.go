package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"arabia.app/internal/auth"
)

var _ auth.LoginThrottle = (*Limiter)(nil)

func newTestLimiter(t *testing.T, max int, window time.Duration) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	l, err := New(client, max, window)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	return l, mr
}

func TestLimiterBlocksAfterMaxFailures(t *testing.T) {
	l, _ := newTestLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "a@example.com")
		if err != nil || !ok {
			t.Fatalf("attempt %d: allow=%v err=%v", i, ok, err)
		}
		if err := l.Fail(ctx, "a@example.com"); err != nil {
			t.Fatalf("fail: %v", err)
		}
	}
	ok, err := l.Allow(ctx, "A@Example.com ")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if ok {
		t.Fatalf("expected key to be blocked after 3 failures")
	}
	if ok, _ := l.Allow(ctx, "b@example.com"); !ok {
		t.Fatalf("unrelated key should not be blocked")
	}
}

func TestLimiterWindowExpires(t *testing.T) {
	l, mr := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	if err := l.Fail(ctx, "k"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if ttl := mr.TTL(keyPrefix + "k"); ttl != time.Minute {
		t.Fatalf("ttl = %v, want 1m", ttl)
	}
	if ok, _ := l.Allow(ctx, "k"); ok {
		t.Fatalf("expected blocked")
	}
	mr.FastForward(time.Minute + time.Second)
	if ok, _ := l.Allow(ctx, "k"); !ok {
		t.Fatalf("expected allowed after window")
	}
}

func TestLimiterResetClearsCounter(t *testing.T) {
	l, mr := newTestLimiter(t, 2, time.Minute)
	ctx := context.Background()

	_ = l.Fail(ctx, "k")
	_ = l.Fail(ctx, "k")
	if ok, _ := l.Allow(ctx, "k"); ok {
		t.Fatalf("expected blocked after two failures")
	}
	if err := l.Reset(ctx, "k"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if mr.Exists(keyPrefix + "k") {
		t.Fatalf("counter survived reset")
	}
	if ok, _ := l.Allow(ctx, "k"); !ok {
		t.Fatalf("expected allowed after reset")
	}
}

func TestLimiterRedisDown(t *testing.T) {
	l, mr := newTestLimiter(t, 2, time.Minute)
	mr.Close()
	if _, err := l.Allow(context.Background(), "k"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := New(nil, 1, time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
