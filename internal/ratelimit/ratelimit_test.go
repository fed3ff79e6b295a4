package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexten32/Task-Management-System-sub000/internal/config"
)

type brokenStore struct{}

func (brokenStore) Take(context.Context, string, int, time.Duration, time.Time) (Result, error) {
	return Result{}, errors.New("dial tcp: connection refused")
}

func fixedClock(l *Limiter, t *time.Time) {
	l.now = func() time.Time { return *t }
}

func TestPoliciesFromConfig(t *testing.T) {
	p := PoliciesFromConfig(config.RateLimitConfig{
		Window: 15 * time.Minute, Unauthenticated: 1000, Authenticated: 1500, AuthRoute: 10,
	})

	assert.Equal(t, Policy{Name: PolicyUnauthenticated, Limit: 1000, Window: 15 * time.Minute}, p.Unauthenticated)
	assert.Equal(t, 1500, p.Authenticated.Limit)
	assert.Equal(t, 10, p.AuthRoute.Limit)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "ratelimit:auth_route:ip:10.0.0.1", Key(PolicyAuthRoute, "ip", "10.0.0.1"))
}

func TestLimiter_ThousandthAllowedThousandFirstRejected(t *testing.T) {
	l := NewLimiter(NewMemoryStore(), true, nil)
	start := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	now := start
	fixedClock(l, &now)
	p := Policy{Name: PolicyUnauthenticated, Limit: 1000, Window: 15 * time.Minute}
	key := Key(p.Name, "ip", "203.0.113.7")

	for i := 1; i <= 1000; i++ {
		now = start.Add(time.Duration(i) * 100 * time.Millisecond)
		d, err := l.Allow(context.Background(), p, key)
		require.NoError(t, err)
		require.True(t, d.Allowed, "request %d", i)
	}

	d, err := l.Allow(context.Background(), p, key)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	// Oldest hit was at start+100ms, so it leaves the window 15m after that.
	assert.Equal(t, start.Add(100*time.Millisecond+15*time.Minute).Sub(now), d.RetryAfter)
}

func TestLimiter_RejectedHitsAreNotRecorded(t *testing.T) {
	l := NewLimiter(NewMemoryStore(), true, nil)
	start := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	now := start
	fixedClock(l, &now)
	p := Policy{Name: PolicyAuthRoute, Limit: 2, Window: time.Minute}

	for i := 0; i < 2; i++ {
		d, _ := l.Allow(context.Background(), p, "k")
		assert.True(t, d.Allowed)
	}
	for i := 0; i < 5; i++ {
		now = now.Add(time.Second)
		d, _ := l.Allow(context.Background(), p, "k")
		assert.False(t, d.Allowed)
	}

	// Both recorded hits expire at start+1m; the rejected ones must not extend the window.
	now = start.Add(time.Minute + time.Millisecond)
	d, err := l.Allow(context.Background(), p, "k")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := NewLimiter(NewMemoryStore(), true, nil)
	p := Policy{Name: PolicyAuthRoute, Limit: 1, Window: time.Minute}

	d, _ := l.Allow(context.Background(), p, Key(p.Name, "ip", "a"))
	assert.True(t, d.Allowed)
	d, _ = l.Allow(context.Background(), p, Key(p.Name, "ip", "b"))
	assert.True(t, d.Allowed)
	d, _ = l.Allow(context.Background(), p, Key(p.Name, "ip", "a"))
	assert.False(t, d.Allowed)
}

func TestLimiter_StoreFailure(t *testing.T) {
	p := Policy{Name: PolicyAuthenticated, Limit: 10, Window: time.Minute}

	t.Run("fail open admits", func(t *testing.T) {
		d, err := NewLimiter(brokenStore{}, true, nil).Allow(context.Background(), p, "k")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.True(t, d.Degraded)
	})

	t.Run("fail closed errors", func(t *testing.T) {
		_, err := NewLimiter(brokenStore{}, false, nil).Allow(context.Background(), p, "k")
		var unavailable *ErrStoreUnavailable
		assert.True(t, errors.As(err, &unavailable))
	})
}
