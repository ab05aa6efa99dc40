// Package stream serves Server-Sent Events that track a fixed point on the
// celestial sphere from a fixed observer. Clients connect via
// GET /api/v1/stream/track?ra=&dec=&lat=&lon=&step= and receive the target's
// azimuth and elevation every step seconds.
//
// SSE message format:
//
//	data: {"type":"position","t":"2026-02-06T04:00:00Z","az":123.4,"el":45.6,"above_horizon":true}\n\n
//
// First message is always metadata describing the target and observer. A
// position for the connection time follows immediately, then one per step.
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval of silence.
package stream

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/star/skygeo/coord"
	"github.com/star/skygeo/internal/httputil"
	"github.com/star/skygeo/internal/metrics"
	"github.com/star/skygeo/sidereal"
	"github.com/star/skygeo/sky"
)

// Config holds streaming configuration.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	MaxTotal           int           // Max concurrent streams overall (default: 1000).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	TrustProxy         bool          // Key limits on X-Forwarded-For / X-Real-IP.
}

// Handler manages SSE tracking connections.
type Handler struct {
	config  Config
	model   sidereal.Model
	limiter *streamLimiter
	logger  *zap.Logger
	now     func() time.Time
}

// NewHandler creates a streaming handler that evaluates positions with the
// given sidereal model unless a request overrides it.
func NewHandler(config Config, model sidereal.Model, logger *zap.Logger) *Handler {
	if config.MaxConcurrentPerIP <= 0 {
		config.MaxConcurrentPerIP = 10
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		config:  config,
		model:   model,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP, config.MaxTotal),
		logger:  logger.With(zap.String("component", "stream")),
		now:     time.Now,
	}
}

// trackRequest is a validated /stream/track query.
type trackRequest struct {
	target   sky.Equatorial
	observer sky.Observer
	step     time.Duration
	opts     []coord.Option
	units    coord.AngleUnit
	model    sidereal.Model
}

func (h *Handler) parseTrack(r *http.Request) (trackRequest, error) {
	q := r.URL.Query()
	req := trackRequest{step: 5 * time.Second, units: coord.UnitDegrees, model: h.model}

	if v := q.Get("step"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 60 {
			return req, fmt.Errorf("invalid step parameter, must be 1-60")
		}
		req.step = time.Duration(n) * time.Second
	}

	switch q.Get("units") {
	case "", "deg":
	case "rad":
		req.units = coord.UnitRadians
	default:
		return req, fmt.Errorf("invalid units parameter, must be deg or rad")
	}

	if v := q.Get("model"); v != "" {
		m, err := sidereal.ParseModel(v)
		if err != nil {
			return req, err
		}
		req.model = m
	}

	vals := make(map[string]float64, 4)
	for _, name := range []string{"ra", "dec", "lat", "lon"} {
		v := q.Get(name)
		if v == "" {
			return req, fmt.Errorf("missing %s parameter", name)
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return req, fmt.Errorf("invalid %s parameter, must be a finite number", name)
		}
		vals[name] = f
	}
	req.target = sky.Equatorial{RA: vals["ra"], Dec: vals["dec"]}
	req.observer = sky.Observer{Lat: vals["lat"], Lon: vals["lon"]}
	req.opts = []coord.Option{coord.WithUnit(req.units), coord.WithSiderealModel(req.model)}
	return req, nil
}

// HandleTrack serves the SSE position stream.
// GET /api/v1/stream/track?ra=166.5&dec=55&lat=65&lon=-148&step=5
func (h *Handler) HandleTrack(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseTrack(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Enforce the concurrent stream limit per IP.
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			zap.String("remote_ip", ip),
			zap.Int("current_count", h.limiter.count(ip)),
			zap.Int("total", h.limiter.total()),
		)
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()

	start := time.Now()
	h.logger.Info("stream connected",
		zap.String("remote_ip", ip),
		zap.String("user_agent", r.Header.Get("User-Agent")),
		zap.Duration("step", req.step),
	)

	c := &client{w: w, rc: http.NewResponseController(w), logger: h.logger}

	defer func() {
		h.limiter.release(ip)
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			zap.String("remote_ip", ip),
			zap.Int("duration_seconds", int(time.Since(start).Seconds())),
			zap.Int64("messages", c.messagesSent),
			zap.Int64("bytes", c.bytesSent),
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	c.flusher = flusher

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// The server's WriteTimeout would cut long-lived streams; each write
	// sets its own deadline instead.
	if err := c.rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", zap.Error(err))
	}

	// Jittered retry (3-7s) spreads reconnects after a restart.
	if err := c.sendRetry(time.Duration(3000+rand.IntN(4000)) * time.Millisecond); err != nil {
		metrics.IncStreamErrors("send_error")
		return
	}

	if err := c.sendJSON(buildMetadataMessage(req)); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (metadata)", zap.String("remote_ip", ip), zap.Error(err))
		return
	}
	if err := c.sendJSON(buildPositionMessage(req, h.now())); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error", zap.String("remote_ip", ip), zap.Error(err))
		return
	}

	ticker := time.NewTicker(req.step)
	defer ticker.Stop()

	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if err := c.sendJSON(buildPositionMessage(req, h.now())); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", zap.String("remote_ip", ip), zap.Error(err))
				return
			}
			keepalive.Reset(h.config.KeepaliveInterval)

		case <-keepalive.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", zap.String("remote_ip", ip), zap.Error(err))
				return
			}
		}
	}
}

func buildMetadataMessage(req trackRequest) metadataMessage {
	return metadataMessage{
		Type:          "metadata",
		Target:        req.target,
		Observer:      req.observer,
		StepSeconds:   int(req.step / time.Second),
		Units:         req.units.String(),
		SiderealModel: req.model.String(),
	}
}

func buildPositionMessage(req trackRequest, t time.Time) positionMessage {
	hz := sky.RaDecToAzEl(req.target, req.observer, t, req.opts...)
	return positionMessage{
		Type:         "position",
		T:            t.UTC().Format(time.RFC3339),
		Az:           hz.Az,
		El:           hz.El,
		AboveHorizon: hz.El > 0,
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// SSE message payload types.

type metadataMessage struct {
	Type          string         `json:"type"`
	Target        sky.Equatorial `json:"target"`
	Observer      sky.Observer   `json:"observer"`
	StepSeconds   int            `json:"step_seconds"`
	Units         string         `json:"units"`
	SiderealModel string         `json:"sidereal_model"`
}

type positionMessage struct {
	Type         string  `json:"type"`
	T            string  `json:"t"`
	Az           float64 `json:"az"`
	El           float64 `json:"el"`
	AboveHorizon bool    `json:"above_horizon"`
}
