package tracing

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
	return sr
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestMiddlewareRecordsSpan(t *testing.T) {
	sr := installRecorder(t)

	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, child := Start(r.Context(), "convert")
		child.End()
		w.WriteHeader(http.StatusBadRequest)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/sky/radec?az=1", nil))

	spans := sr.Ended()
	require.Len(t, spans, 2)

	child, server := spans[0], spans[1]
	assert.Equal(t, "convert", child.Name())
	assert.Equal(t, "GET /api/v1/sky/radec", server.Name())
	assert.Equal(t, server.SpanContext().TraceID(), child.SpanContext().TraceID())
	assert.Equal(t, server.SpanContext().SpanID(), child.Parent().SpanID())

	code, ok := attrValue(server.Attributes(), "http.response.status_code")
	require.True(t, ok)
	assert.Equal(t, int64(http.StatusBadRequest), code.AsInt64())
	route, _ := attrValue(server.Attributes(), "http.route")
	assert.Equal(t, "/api/v1/sky/radec", route.AsString())
	assert.Equal(t, codes.Unset, server.Status().Code)
}

func TestMiddlewareRedactsAccessToken(t *testing.T) {
	sr := installRecorder(t)

	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/stream/track?ra=1&dec=2&lat=3&lon=4&access_token=s3cret", nil))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	for _, kv := range spans[0].Attributes() {
		assert.NotContains(t, kv.Value.Emit(), "s3cret", "attribute %s", kv.Key)
	}
	query, ok := attrValue(spans[0].Attributes(), "url.query")
	require.True(t, ok)
	assert.Equal(t, "dec=2&lat=3&lon=4&ra=1", query.AsString())
}

func TestMiddlewareContinuesIncomingTrace(t *testing.T) {
	sr := installRecorder(t)

	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	req := httptest.NewRequest("GET", "/wp-admin", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	h.ServeHTTP(httptest.NewRecorder(), req)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET other", spans[0].Name())
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", spans[0].SpanContext().TraceID().String())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), Config{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	_, span := otel.Tracer("test").Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
}

func TestInitTracingStdout(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := initTracing(context.Background(), Config{
		Enabled:     true,
		ServiceName: "skygeo-test",
		Exporter:    "stdout",
		SampleRatio: 1,
	}, &buf, nil)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "exported-span")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, buf.String(), "exported-span")
	assert.Contains(t, buf.String(), "skygeo-test")

	otel.SetTracerProvider(sdktrace.NewTracerProvider())
}

func TestInitTracingUnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), Config{Enabled: true, Exporter: "carrier-pigeon"}, nil)
	assert.ErrorContains(t, err, "unsupported tracing exporter")
}

func TestShutdownWithTimeout(t *testing.T) {
	called := false
	ShutdownWithTimeout(context.Background(), func(ctx context.Context) error {
		called = true
		_, ok := ctx.Deadline()
		assert.True(t, ok, "shutdown context should carry a deadline")
		return nil
	}, zap.NewNop())
	assert.True(t, called)

	ShutdownWithTimeout(context.Background(), nil, nil)
}
