package middleware

import (
	"log/slog"
	"net/http"

	"github.com/dexten32/Task-Management-System-sub000/internal/api/shared"
	"github.com/dexten32/Task-Management-System-sub000/internal/platform/logger"
)

// NewTraceMiddleware returns middleware that assigns each request a trace ID,
// echoes it in the X-Trace-ID header and stores a request-scoped logger
// carrying it in the context.
func NewTraceMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.SetTraceID(r.Context())
			traceID := shared.GetTraceID(ctx)

			log := base.With(slog.String("trace_id", traceID))
			ctx = logger.WithLogger(ctx, log)

			log.Debug("request started",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))

			w.Header().Set(shared.TraceIDHeader, traceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
