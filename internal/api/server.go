// Package api serves the conversion library over HTTP. Every conversion
// route is a GET taking comma-separated columns, batched element-wise.
package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/star/skygeo/internal/auth"
	"github.com/star/skygeo/internal/health"
	"github.com/star/skygeo/internal/metrics"
	"github.com/star/skygeo/internal/stream"
	"github.com/star/skygeo/internal/tracing"
	"github.com/star/skygeo/sidereal"
)

// Config holds the server settings.
type Config struct {
	Addr       string
	Auth       auth.Config
	TrustProxy bool

	// RateLimitRPS of zero disables per-client rate limiting.
	RateLimitRPS   float64
	RateLimitBurst int

	DefaultEllipsoid string
	SiderealModel    sidereal.Model
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *zap.Logger
	cfg        Config
	limiter    *ipRateLimiter
	readiness  *health.Readiness
	now        func() time.Time
}

// NewServer creates a configured HTTP server. streamHandler may be nil, in
// which case the tracking stream is not served.
func NewServer(cfg Config, logger *zap.Logger, streamHandler *stream.Handler, readiness *health.Readiness) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if readiness == nil {
		readiness = &health.Readiness{}
	}
	if cfg.DefaultEllipsoid == "" {
		cfg.DefaultEllipsoid = "wgs84"
	}

	s := &Server{
		logger:    logger,
		cfg:       cfg,
		readiness: readiness,
		now:       time.Now,
	}
	if cfg.RateLimitRPS > 0 {
		s.limiter = newIPRateLimiter(rate.Limit(cfg.RateLimitRPS), max(cfg.RateLimitBurst, 1))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", readiness.Readyz)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/ellipsoids", s.handleEllipsoids)
	mux.HandleFunc("GET /api/v1/nvector/from-geodetic", s.convert("nvector_from_geodetic", nvectorFromGeodetic))
	mux.HandleFunc("GET /api/v1/nvector/to-geodetic", s.convert("nvector_to_geodetic", nvectorToGeodetic))
	mux.HandleFunc("GET /api/v1/nvector/from-ecef", s.convert("nvector_from_ecef", nvectorFromECEF))
	mux.HandleFunc("GET /api/v1/nvector/to-ecef", s.convert("nvector_to_ecef", nvectorToECEF))
	mux.HandleFunc("GET /api/v1/geodetic/to-ecef", s.convert("geodetic_to_ecef", geodeticToECEF))
	mux.HandleFunc("GET /api/v1/ecef/to-geodetic", s.convert("ecef_to_geodetic", ecefToGeodetic))
	mux.HandleFunc("GET /api/v1/sky/radec", s.convert("azel_to_radec", s.skyRaDec))
	mux.HandleFunc("GET /api/v1/sky/azel", s.convert("radec_to_azel", s.skyAzEl))
	mux.HandleFunc("GET /api/v1/sky/aer", s.convert("geodetic_to_aer", skyAER))
	if streamHandler != nil {
		mux.HandleFunc("GET /api/v1/stream/track", streamHandler.HandleTrack)
	}

	// Build middleware chain: metrics -> tracing -> logging -> rate limit -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth, logger)(handler)
	handler = rateLimitMiddleware(s.limiter, cfg.TrustProxy)(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = tracing.Middleware(handler)
	handler = metrics.Middleware(handler)
	s.handler = handler

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          zap.NewStdLog(logger.With(zap.String("component", "http"))),
	}
	return s
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// HTTPServer returns the underlying *http.Server for external control.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe marks the service ready and starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.readiness.SetReady(true)
	return s.httpServer.ListenAndServe()
}

// Shutdown marks the service not ready, then drains connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.readiness.SetReady(false)
	return s.httpServer.Shutdown(ctx)
}

// RunJanitor evicts idle rate-limit buckets until ctx is done.
func (s *Server) RunJanitor(ctx context.Context) {
	if s.limiter == nil {
		return
	}
	s.limiter.run(ctx, time.Minute, 10*time.Minute)
}
