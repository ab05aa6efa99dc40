package api

import (
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// brokenWriter fails every body write and counts status lines.
type brokenWriter struct {
	header      http.Header
	headerCalls int
}

func (b *brokenWriter) Header() http.Header       { return b.header }
func (b *brokenWriter) WriteHeader(int)           { b.headerCalls++ }
func (b *brokenWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestWriteResponseWriteFailure(t *testing.T) {
	w := &brokenWriter{header: http.Header{}}
	r := httptest.NewRequest("GET", "/api/v1/ellipsoids", nil)

	err := writeResponse(w, r, http.StatusOK, ecefResponse{X: []float64{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write response")
	assert.Equal(t, 1, w.headerCalls, "status line must be sent once")
}

func TestWriteResponseEncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/v1/geodetic/to-ecef", nil)

	err := writeResponse(w, r, http.StatusOK, ecefResponse{X: []float64{math.NaN()}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encode response")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"could not encode response"}`, w.Body.String())
}

func TestWriteResponseMsgpackEncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/v1/geodetic/to-ecef?format=msgpack", nil)

	err := writeResponse(w, r, http.StatusOK, map[string]any{"bad": make(chan int)})
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/x-msgpack", w.Header().Get("Content-Type"))
}

func TestEllipsoidsWriteFailureLogged(t *testing.T) {
	s := testServer(t, Config{})
	core, logs := observer.New(zapcore.ErrorLevel)
	s.logger = zap.New(core)

	w := &brokenWriter{header: http.Header{}}
	s.handleEllipsoids(w, httptest.NewRequest("GET", "/api/v1/ellipsoids", nil))

	assert.Equal(t, 1, w.headerCalls)
	entries := logs.FilterMessage("response failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "list_ellipsoids", entries[0].ContextMap()["operation"])
}
