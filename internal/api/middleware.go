package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/star/skygeo/internal/httputil"
	"github.com/star/skygeo/internal/metrics"
)

type ctxKey int

const requestIDKey ctxKey = iota

// maxRequestIDLen caps a caller-supplied X-Request-ID.
const maxRequestIDLen = 64

// RequestID returns the request ID stored by the logging middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

// loggingMiddleware assigns a request ID (reusing a sane incoming
// X-Request-ID) and logs one line per request.
func loggingMiddleware(logger *zap.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			id := r.Header.Get("X-Request-ID")
			if id == "" || len(id) > maxRequestIDLen {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)

			sr := httputil.NewStatusRecorder(w)
			next.ServeHTTP(sr, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))

			level := zapcore.InfoLevel
			if probePath(r.URL.Path) {
				level = zapcore.DebugLevel
			}
			if ce := logger.Check(level, "request"); ce != nil {
				ce.Write(
					zap.String("component", "api"),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", sr.StatusCode),
					zap.Int64("duration_ms", time.Since(start).Milliseconds()),
					zap.Int64("bytes", sr.Bytes),
					zap.String("remote_ip", httputil.ClientIP(r, trustProxy)),
					zap.String("request_id", id),
				)
			}
		})
	}
}

// rateLimitMiddleware rejects clients that exceed their token bucket with
// 429. Probe paths are never limited.
func rateLimitMiddleware(limiter *ipRateLimiter, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || probePath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if !limiter.allow(httputil.ClientIP(r, trustProxy)) {
				metrics.IncRateLimited()
				w.Header().Set("Retry-After", "1")
				writeError(w, r, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
