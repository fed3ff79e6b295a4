// Package ratelimit implements sliding-window-log request throttling over a
// counter store shared by every API instance.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dexten32/Task-Management-System-sub000/internal/config"
)

// Policy names.
const (
	PolicyUnauthenticated = "global_unauthenticated"
	PolicyAuthenticated   = "global_authenticated"
	PolicyAuthRoute       = "auth_route"
)

// Policy is a limit of Limit hits per rolling Window.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Policies is the configured set of policies.
type Policies struct {
	Unauthenticated Policy
	Authenticated   Policy
	AuthRoute       Policy
}

// PoliciesFromConfig builds the three policies from configuration.
func PoliciesFromConfig(cfg config.RateLimitConfig) Policies {
	return Policies{
		Unauthenticated: Policy{Name: PolicyUnauthenticated, Limit: cfg.Unauthenticated, Window: cfg.Window},
		Authenticated:   Policy{Name: PolicyAuthenticated, Limit: cfg.Authenticated, Window: cfg.Window},
		AuthRoute:       Policy{Name: PolicyAuthRoute, Limit: cfg.AuthRoute, Window: cfg.Window},
	}
}

// Result is the outcome of recording one hit against a key.
type Result struct {
	Allowed bool
	// Count is the number of hits in the window after this request.
	Count int
	// Oldest is the timestamp of the oldest hit still inside the window.
	// Zero when the window is empty.
	Oldest time.Time
}

// Store atomically prunes hits older than now-window, then records a hit
// at now only if fewer than limit remain. Rejected hits are not recorded.
type Store interface {
	Take(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error)
}

// Decision is what the middleware acts on.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// RetryAfter is how long until the oldest hit leaves the window. Only
	// set on rejection.
	RetryAfter time.Duration
	// Degraded is set when the store failed and the request was admitted
	// because the limiter fails open.
	Degraded bool
}

var (
	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_decisions_total",
			Help: "Rate limit decisions by policy and result",
		},
		[]string{"policy", "result"},
	)

	storeErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ratelimit_store_errors_total",
			Help: "Counter store failures seen by the rate limiter",
		},
	)
)

// ErrStoreUnavailable is returned by Allow when the counter store fails and
// the limiter is configured to fail closed.
type ErrStoreUnavailable struct {
	Err error
}

func (e *ErrStoreUnavailable) Error() string {
	return fmt.Sprintf("rate limit store unavailable: %v", e.Err)
}

func (e *ErrStoreUnavailable) Unwrap() error { return e.Err }

// Limiter applies policies against a Store.
type Limiter struct {
	store    Store
	failOpen bool
	logger   *slog.Logger
	now      func() time.Time
}

// NewLimiter creates a Limiter. With failOpen, a store error admits the
// request; otherwise Allow returns *ErrStoreUnavailable.
func NewLimiter(store Store, failOpen bool, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		store:    store,
		failOpen: failOpen,
		logger:   logger.With("component", "rate_limiter"),
		now:      time.Now,
	}
}

// Key builds the counter key for a policy and identity, where kind is "ip"
// or "user".
func Key(policy, kind, identity string) string {
	return "ratelimit:" + policy + ":" + kind + ":" + identity
}

// Allow records a hit for key under p and reports whether it is admitted.
func (l *Limiter) Allow(ctx context.Context, p Policy, key string) (Decision, error) {
	now := l.now()
	res, err := l.store.Take(ctx, key, p.Limit, p.Window, now)
	if err != nil {
		storeErrorsTotal.Inc()
		l.logger.ErrorContext(ctx, "rate limit store failure",
			"policy", p.Name,
			"fail_open", l.failOpen,
			"error", err)
		if l.failOpen {
			decisionsTotal.WithLabelValues(p.Name, "degraded").Inc()
			return Decision{Allowed: true, Limit: p.Limit, Remaining: p.Limit, Degraded: true}, nil
		}
		return Decision{}, &ErrStoreUnavailable{Err: err}
	}

	d := Decision{Allowed: res.Allowed, Limit: p.Limit, Remaining: p.Limit - res.Count}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !res.Allowed {
		d.RetryAfter = retryAfter(res.Oldest, p.Window, now)
		decisionsTotal.WithLabelValues(p.Name, "rejected").Inc()
		return d, nil
	}
	decisionsTotal.WithLabelValues(p.Name, "allowed").Inc()
	return d, nil
}

func retryAfter(oldest time.Time, window time.Duration, now time.Time) time.Duration {
	if oldest.IsZero() {
		return window
	}
	d := oldest.Add(window).Sub(now)
	if d < time.Millisecond {
		return time.Millisecond
	}
	return d
}
