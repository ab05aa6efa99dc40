// Package metrics registers the Prometheus collectors for the HTTP API,
// conversion workload and SSE streams.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/star/skygeo/internal/httputil"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skygeo_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skygeo_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	conversionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skygeo_conversions_total",
			Help: "Conversion requests served, by operation.",
		},
		[]string{"operation"},
	)

	conversionElements = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skygeo_conversion_elements",
			Help:    "Number of elements per conversion request.",
			Buckets: []float64{1, 10, 100, 1000, 10000},
		},
		[]string{"operation"},
	)

	rateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "skygeo_rate_limited_total",
			Help: "Requests rejected by the per-client rate limiter.",
		},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skygeo_stream_connections_total",
			Help: "SSE connection events.",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "skygeo_streams_active",
			Help: "Currently open SSE streams.",
		},
	)

	streamMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "skygeo_stream_messages_total",
			Help: "SSE data messages sent.",
		},
	)

	streamBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "skygeo_stream_bytes_total",
			Help: "Bytes written to SSE streams.",
		},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skygeo_stream_errors_total",
			Help: "SSE stream errors, by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		conversionsTotal,
		conversionElements,
		rateLimitedTotal,
		streamConnectionsTotal,
		streamsActive,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
	)
}

// knownRoutes are the paths served by the API. Anything else is labelled
// "other" to keep label cardinality bounded.
var knownRoutes = map[string]bool{
	"/":                             true,
	"/healthz":                      true,
	"/readyz":                       true,
	"/metrics":                      true,
	"/api/v1/ellipsoids":            true,
	"/api/v1/nvector/from-geodetic": true,
	"/api/v1/nvector/to-geodetic":   true,
	"/api/v1/nvector/from-ecef":     true,
	"/api/v1/nvector/to-ecef":       true,
	"/api/v1/geodetic/to-ecef":      true,
	"/api/v1/ecef/to-geodetic":      true,
	"/api/v1/sky/radec":             true,
	"/api/v1/sky/azel":              true,
	"/api/v1/sky/aer":               true,
	"/api/v1/stream/track":          true,
}

// NormalizeRoute maps a request path to a bounded label value.
func NormalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := httputil.NewStatusRecorder(w)

		next.ServeHTTP(rw, r)

		route := NormalizeRoute(r.URL.Path)
		httpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rw.StatusCode)).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// ObserveConversion counts one served conversion of n elements.
func ObserveConversion(operation string, n int) {
	conversionsTotal.WithLabelValues(operation).Inc()
	conversionElements.WithLabelValues(operation).Observe(float64(n))
}

func IncRateLimited() { rateLimitedTotal.Inc() }

// IncStreamConnections records a "connect" or "disconnect" event.
func IncStreamConnections(event string) { streamConnectionsTotal.WithLabelValues(event).Inc() }

func IncStreamsActive() { streamsActive.Inc() }
func DecStreamsActive() { streamsActive.Dec() }
func IncStreamMessages() { streamMessagesTotal.Inc() }

func AddStreamBytes(n int64) { streamBytesTotal.Add(float64(n)) }

func IncStreamErrors(reason string) { streamErrorsTotal.WithLabelValues(reason).Inc() }
