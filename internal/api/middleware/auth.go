package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dexten32/Task-Management-System-sub000/internal/api/shared"
	"github.com/dexten32/Task-Management-System-sub000/internal/domain"
	"github.com/dexten32/Task-Management-System-sub000/internal/platform/logger"
	"github.com/dexten32/Task-Management-System-sub000/internal/service/auth"
)

// AuthMiddleware provides JWT authentication for routes.
type AuthMiddleware struct {
	jwtService auth.JWTService
	// rejected wraps the 401 response for requests without a valid token.
	rejected func(http.Handler) http.Handler
}

// NewAuthMiddleware creates a new AuthMiddleware with the given dependencies.
func NewAuthMiddleware(jwtService auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
	}
}

// LimitRejections returns a copy of m whose 401 responses are first passed
// through limit. With the rate limiter as limit, requests that never
// authenticate are still counted against the client IP.
func (m *AuthMiddleware) LimitRejections(limit func(http.Handler) http.Handler) *AuthMiddleware {
	c := *m
	c.rejected = limit
	return &c
}

func (m *AuthMiddleware) reject(w http.ResponseWriter, r *http.Request, msg string) {
	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithError(w, r, http.StatusUnauthorized, msg)
	})
	if m.rejected != nil {
		h = m.rejected(h)
	}
	h.ServeHTTP(w, r)
}

// Authenticate validates the bearer token and stores the caller identity
// (id, role, department) in the request context. The request-scoped logger
// is extended with the user id.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.reject(w, r, "Authorization header required")
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			m.reject(w, r, "Invalid authorization format")
			return
		}

		claims, err := m.jwtService.ValidateToken(r.Context(), strings.TrimSpace(token))
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				m.reject(w, r, "Token expired")
			case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenNotYetValid):
				m.reject(w, r, "Invalid token")
			default:
				shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Authentication error", err)
			}
			return
		}

		caller := claims.Caller()
		ctx := domain.WithCaller(r.Context(), caller)
		log := logger.FromContext(ctx).With(
			slog.String("user_id", caller.ID.String()),
			slog.String("role", string(caller.Role)))
		ctx = logger.WithLogger(ctx, log)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
