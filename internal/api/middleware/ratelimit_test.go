package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexten32/Task-Management-System-sub000/internal/domain"
	"github.com/dexten32/Task-Management-System-sub000/internal/ratelimit"
)

type failingStore struct{}

func (failingStore) Take(context.Context, string, int, time.Duration, time.Time) (ratelimit.Result, error) {
	return ratelimit.Result{}, errors.New("redis: connection refused")
}

func testPolicies() ratelimit.Policies {
	return ratelimit.Policies{
		Unauthenticated: ratelimit.Policy{Name: ratelimit.PolicyUnauthenticated, Limit: 3, Window: 15 * time.Minute},
		Authenticated:   ratelimit.Policy{Name: ratelimit.PolicyAuthenticated, Limit: 5, Window: 15 * time.Minute},
		AuthRoute:       ratelimit.Policy{Name: ratelimit.PolicyAuthRoute, Limit: 2, Window: 15 * time.Minute},
	}
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

func hit(h http.Handler, ip string, caller *domain.Caller) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/tasks/recent", nil)
	req.RemoteAddr = ip + ":52100"
	if caller != nil {
		req = req.WithContext(domain.WithCaller(req.Context(), *caller))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRateLimit_Global_Unauthenticated(t *testing.T) {
	m := NewRateLimitMiddleware(ratelimit.NewLimiter(ratelimit.NewMemoryStore(), true, nil), testPolicies())
	h := m.Global(okHandler)

	for i := 0; i < 3; i++ {
		rr := hit(h, "10.0.0.1", nil)
		require.Equal(t, http.StatusOK, rr.Code, "request %d", i+1)
		assert.Equal(t, "3", rr.Header().Get("X-RateLimit-Limit"))
	}

	rr := hit(h, "10.0.0.1", nil)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	var body RateLimitResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Greater(t, body.RetryAfterMs, int64(0))
	assert.LessOrEqual(t, body.RetryAfterMs, (15 * time.Minute).Milliseconds())

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.2", nil).Code, "other IPs have their own window")
}

func TestRateLimit_Global_AuthenticatedUsesUserKey(t *testing.T) {
	m := NewRateLimitMiddleware(ratelimit.NewLimiter(ratelimit.NewMemoryStore(), true, nil), testPolicies())
	h := m.Global(okHandler)
	a := &domain.Caller{ID: uuid.New(), Role: domain.RoleEmployee}
	b := &domain.Caller{ID: uuid.New(), Role: domain.RoleEmployee}

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, hit(h, "10.0.0.1", a).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1", a).Code)
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1", b).Code, "same IP, different user")
}

func TestRateLimit_AuthRoute(t *testing.T) {
	m := NewRateLimitMiddleware(ratelimit.NewLimiter(ratelimit.NewMemoryStore(), true, nil), testPolicies())
	h := m.AuthRoute(okHandler)

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.9", nil).Code)
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.9", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.9", nil).Code)
}

func TestRateLimit_StoreFailure(t *testing.T) {
	open := NewRateLimitMiddleware(ratelimit.NewLimiter(failingStore{}, true, nil), testPolicies())
	rr := hit(open.Global(okHandler), "10.0.0.1", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("X-RateLimit-Limit"))

	closed := NewRateLimitMiddleware(ratelimit.NewLimiter(failingStore{}, false, nil), testPolicies())
	rr = hit(closed.Global(okHandler), "10.0.0.1", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "redis")
}
