package middleware

import (
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/dexten32/Task-Management-System-sub000/internal/api/shared"
	"github.com/dexten32/Task-Management-System-sub000/internal/domain"
	"github.com/dexten32/Task-Management-System-sub000/internal/platform/logger"
	"github.com/dexten32/Task-Management-System-sub000/internal/ratelimit"
)

// RateLimitResponse is the 429 body.
type RateLimitResponse struct {
	Error        string `json:"error"`
	TraceID      string `json:"trace_id,omitempty"`
	RetryAfterMs int64  `json:"retry_after_ms"`
}

// RateLimitMiddleware throttles requests with a ratelimit.Limiter.
type RateLimitMiddleware struct {
	limiter  *ratelimit.Limiter
	policies ratelimit.Policies
}

// NewRateLimitMiddleware creates a RateLimitMiddleware.
func NewRateLimitMiddleware(limiter *ratelimit.Limiter, policies ratelimit.Policies) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter, policies: policies}
}

// Global applies the authenticated policy keyed by user id when the context
// carries a caller, and the unauthenticated policy keyed by client IP
// otherwise.
func (m *RateLimitMiddleware) Global(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if caller, ok := domain.CallerFromContext(r.Context()); ok && caller.Authenticated() {
			p := m.policies.Authenticated
			m.apply(w, r, next, p, ratelimit.Key(p.Name, "user", caller.ID.String()))
			return
		}
		p := m.policies.Unauthenticated
		m.apply(w, r, next, p, ratelimit.Key(p.Name, "ip", clientIP(r)))
	})
}

// AuthRoute applies the login/signup policy keyed by client IP.
func (m *RateLimitMiddleware) AuthRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := m.policies.AuthRoute
		m.apply(w, r, next, p, ratelimit.Key(p.Name, "ip", clientIP(r)))
	})
}

func (m *RateLimitMiddleware) apply(w http.ResponseWriter, r *http.Request, next http.Handler, p ratelimit.Policy, key string) {
	d, err := m.limiter.Allow(r.Context(), p, key)
	if err != nil {
		msg := "An unexpected error occurred"
		var unavailable *ratelimit.ErrStoreUnavailable
		if errors.As(err, &unavailable) {
			msg = "Service temporarily unavailable"
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, msg, err)
		return
	}

	if !d.Degraded {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	}

	if !d.Allowed {
		logger.FromContext(r.Context()).Warn("rate limit exceeded",
			"policy", p.Name,
			"retry_after_ms", d.RetryAfter.Milliseconds())
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
		shared.RespondWithJSON(w, r, http.StatusTooManyRequests, RateLimitResponse{
			Error:        "Too many requests",
			TraceID:      shared.GetTraceID(r.Context()),
			RetryAfterMs: d.RetryAfter.Milliseconds(),
		})
		return
	}

	next.ServeHTTP(w, r)
}

// clientIP is the host part of RemoteAddr, which chi's RealIP middleware has
// already rewritten from proxy headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
