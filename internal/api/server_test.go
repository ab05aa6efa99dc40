package api

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/star/skygeo/internal/auth"
	"github.com/star/skygeo/internal/health"
	"github.com/star/skygeo/internal/stream"
	"github.com/star/skygeo/sidereal"
)

var fixedNow = time.Date(2014, 4, 6, 8, 0, 0, 0, time.UTC)

func testServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	s := NewServer(cfg, zap.NewNop(), stream.NewHandler(stream.Config{}, sidereal.IAU82, zap.NewNop()), nil)
	s.now = func() time.Time { return fixedNow }
	return s
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest("GET", target, nil))
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

// floatsAt extracts a []float64 from a decoded JSON array field.
func floatsAt(t *testing.T, body map[string]any, key string) []float64 {
	t.Helper()
	raw, ok := body[key].([]any)
	require.True(t, ok, "field %q missing or not an array: %v", key, body[key])
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = v.(float64)
	}
	return out
}

func TestGeodeticToECEF(t *testing.T) {
	s := testServer(t, Config{})
	w := get(t, s, "/api/v1/geodetic/to-ecef?lat=42&lon=-82&alt=200")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	body := decode(t, w)
	assert.InDelta(t, 660675.251824733, floatsAt(t, body, "x")[0], 1e-3)
	assert.InDelta(t, -4700948.683162267, floatsAt(t, body, "y")[0], 1e-3)
	assert.InDelta(t, 4245737.662222386, floatsAt(t, body, "z")[0], 1e-3)
}

func TestECEFToGeodeticRoundTrip(t *testing.T) {
	s := testServer(t, Config{})
	w := get(t, s, "/api/v1/ecef/to-geodetic?x=660675.251824733&y=-4700948.683162267&z=4245737.662222386")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.InDelta(t, 42, floatsAt(t, body, "lat")[0], 1e-9)
	assert.InDelta(t, -82, floatsAt(t, body, "lon")[0], 1e-9)
	assert.InDelta(t, 200, floatsAt(t, body, "alt")[0], 1e-6)
}

func TestNVectorRoutes(t *testing.T) {
	s := testServer(t, Config{})

	w := get(t, s, "/api/v1/nvector/from-geodetic?lat=0,90&lon=0")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	n1, n3 := floatsAt(t, body, "n1"), floatsAt(t, body, "n3")
	require.Len(t, n1, 2)
	assert.InDelta(t, 1, n1[0], 1e-12)
	assert.InDelta(t, 0, n1[1], 1e-12)
	assert.InDelta(t, 0, n3[0], 1e-12)
	assert.InDelta(t, 1, n3[1], 1e-12)

	w = get(t, s, "/api/v1/nvector/to-geodetic?n1=0&n2=0&n3=1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body = decode(t, w)
	assert.InDelta(t, 90, floatsAt(t, body, "lat")[0], 1e-12)
	assert.InDelta(t, 0, floatsAt(t, body, "lon")[0], 1e-12)

	w = get(t, s, "/api/v1/nvector/to-ecef?n1=1&n2=0&n3=0&alt=100")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body = decode(t, w)
	assert.InDelta(t, 6378237, floatsAt(t, body, "x")[0], 1e-6)

	w = get(t, s, "/api/v1/nvector/from-ecef?x=6378237&y=0&z=0")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body = decode(t, w)
	assert.InDelta(t, 1, floatsAt(t, body, "n1")[0], 1e-12)
}

func TestSkyRoutes(t *testing.T) {
	s := testServer(t, Config{})

	w := get(t, s, "/api/v1/sky/radec?az=180.1&el=80&lat=65&lon=-148&time=2014-04-06T08:00:00Z")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.InDelta(t, 166.5032081149338, floatsAt(t, body, "ra")[0], 1e-6)
	assert.InDelta(t, 55.000011165405752, floatsAt(t, body, "dec")[0], 1e-6)
	assert.Equal(t, "iau82", body["sidereal_model"])
	assert.Equal(t, "2014-04-06T08:00:00Z", body["time"])

	// Without a time parameter the server clock is used.
	w = get(t, s, "/api/v1/sky/azel?ra=166.5032081149338&dec=55.000011165405752&lat=65&lon=-148")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body = decode(t, w)
	assert.InDelta(t, 180.1, floatsAt(t, body, "az")[0], 1e-6)
	assert.InDelta(t, 80, floatsAt(t, body, "el")[0], 1e-6)

	w = get(t, s, "/api/v1/sky/azel?ra=166.5&dec=55&lat=65&lon=-148&model=meeus-apparent")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "meeus-apparent", decode(t, w)["sidereal_model"])
}

func TestSkyRadians(t *testing.T) {
	s := testServer(t, Config{})
	deg := math.Pi / 180
	q := "/api/v1/sky/radec?units=rad&time=2014-04-06T08:00:00Z" +
		"&az=" + strconv.FormatFloat(180.1*deg, 'g', -1, 64) +
		"&el=" + strconv.FormatFloat(80*deg, 'g', -1, 64) +
		"&lat=" + strconv.FormatFloat(65*deg, 'g', -1, 64) +
		"&lon=" + strconv.FormatFloat(-148*deg, 'g', -1, 64)

	w := get(t, s, q)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.InDelta(t, 166.5032081149338*deg, floatsAt(t, body, "ra")[0], 1e-8)
	assert.InDelta(t, 55.000011165405752*deg, floatsAt(t, body, "dec")[0], 1e-8)
}

func TestSkyAER(t *testing.T) {
	s := testServer(t, Config{})
	w := get(t, s, "/api/v1/sky/aer?lat=42.00258197425376&lon=-81.99775196006746&alt=1139.7017995752394&lat0=42&lon0=-82&alt0=200")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.InDelta(t, 33, floatsAt(t, body, "az")[0], 1e-6)
	assert.InDelta(t, 70, floatsAt(t, body, "el")[0], 1e-6)
	assert.InDelta(t, 1000, floatsAt(t, body, "range")[0], 1e-4)
}

func TestBroadcastColumns(t *testing.T) {
	s := testServer(t, Config{})
	w := get(t, s, "/api/v1/geodetic/to-ecef?lat=0,10,20&lon=5")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, floatsAt(t, decode(t, w), "x"), 3)
}

func TestEllipsoids(t *testing.T) {
	s := testServer(t, Config{DefaultEllipsoid: "grs80"})
	w := get(t, s, "/api/v1/ellipsoids")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Ellipsoids []ellipsoidInfo `json:"ellipsoids"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Ellipsoids)

	defaults := 0
	for _, e := range resp.Ellipsoids {
		if e.Default {
			defaults++
			assert.Equal(t, "grs80", e.Name)
		}
		if e.Name == "wgs84" {
			assert.Equal(t, 6378137.0, e.SemiMajorAxis)
			assert.InDelta(t, 1/298.257223563, e.Flattening, 1e-12)
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestEllipsoidSelection(t *testing.T) {
	s := testServer(t, Config{})
	wgs := decode(t, get(t, s, "/api/v1/geodetic/to-ecef?lat=45&lon=0"))
	clarke := decode(t, get(t, s, "/api/v1/geodetic/to-ecef?lat=45&lon=0&ellipsoid=clarke1866"))
	assert.NotEqual(t, floatsAt(t, wgs, "x")[0], floatsAt(t, clarke, "x")[0])
}

func TestBadRequests(t *testing.T) {
	s := testServer(t, Config{})

	tests := []struct {
		name    string
		target  string
		wantMsg string
	}{
		{"missing column", "/api/v1/geodetic/to-ecef?lat=1", "missing lon"},
		{"non-numeric", "/api/v1/geodetic/to-ecef?lat=1&lon=abc", "invalid lon"},
		{"NaN", "/api/v1/nvector/from-geodetic?lat=NaN&lon=0", "invalid lat"},
		{"empty element", "/api/v1/nvector/from-geodetic?lat=1,,2&lon=0", "index 1"},
		{"shape mismatch", "/api/v1/geodetic/to-ecef?lat=1,2&lon=1,2,3", "shape mismatch"},
		{"unknown ellipsoid", "/api/v1/geodetic/to-ecef?lat=1&lon=1&ellipsoid=flat-earth", "invalid ellipsoid"},
		{"bad units", "/api/v1/geodetic/to-ecef?lat=1&lon=1&units=grad", "invalid units"},
		{"bad model", "/api/v1/sky/azel?ra=1&dec=1&lat=1&lon=1&model=sundial", "invalid model"},
		{"bad time", "/api/v1/sky/azel?ra=1&dec=1&lat=1&lon=1&time=yesterday", "invalid time"},
		{"observer list", "/api/v1/sky/azel?ra=1&dec=1&lat=1,2&lon=1", "invalid lat"},
		{"missing observer", "/api/v1/sky/aer?lat=1&lon=1&lat0=1", "missing lon0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, s, tt.target)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decode(t, w)["error"], tt.wantMsg)
		})
	}
}

func TestElementBudget(t *testing.T) {
	s := testServer(t, Config{})

	tests := []struct {
		name       string
		n          int
		wantStatus int
	}{
		{"at the limit", maxElements, http.StatusOK},
		{"over the limit", maxElements + 1, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lat := strings.TrimSuffix(strings.Repeat("1,", tt.n), ",")
			w := get(t, s, "/api/v1/nvector/from-geodetic?lon=0&lat="+lat)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusBadRequest {
				resp := decode(t, w)
				assert.NotNil(t, resp["error"])
				assert.Equal(t, float64(maxElements), resp["max_elements"])
			}
		})
	}
}

func TestMsgpackFormat(t *testing.T) {
	s := testServer(t, Config{})
	w := get(t, s, "/api/v1/geodetic/to-ecef?lat=42&lon=-82&alt=200&format=msgpack")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-msgpack", w.Header().Get("Content-Type"))

	var resp ecefResponse
	dec := msgpack.NewDecoder(w.Body)
	dec.SetCustomStructTag("json")
	require.NoError(t, dec.Decode(&resp))
	require.Len(t, resp.X, 1)
	assert.InDelta(t, 660675.251824733, resp.X[0], 1e-3)

	// Errors honour the format too.
	w = get(t, s, "/api/v1/geodetic/to-ecef?lat=42&format=msgpack")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/x-msgpack", w.Header().Get("Content-Type"))
}

func TestAuth(t *testing.T) {
	s := testServer(t, Config{Auth: auth.Config{Enabled: true, Token: "s3cret"}})

	assert.Equal(t, http.StatusOK, get(t, s, "/healthz").Code)
	assert.Equal(t, http.StatusOK, get(t, s, "/metrics").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, s, "/api/v1/ellipsoids").Code)

	req := httptest.NewRequest("GET", "/api/v1/ellipsoids", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit(t *testing.T) {
	s := testServer(t, Config{RateLimitRPS: 0.001, RateLimitBurst: 2})

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, get(t, s, "/api/v1/ellipsoids").Code, "request %d", i+1)
	}
	w := get(t, s, "/api/v1/ellipsoids")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// Probes stay reachable.
	assert.Equal(t, http.StatusOK, get(t, s, "/healthz").Code)

	// A different client has its own bucket.
	req := httptest.NewRequest("GET", "/api/v1/ellipsoids", nil)
	req.RemoteAddr = "198.51.100.7:4000"
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiterEvict(t *testing.T) {
	l := newIPRateLimiter(1, 1)
	now := fixedNow
	l.now = func() time.Time { return now }

	l.allow("a")
	now = now.Add(5 * time.Minute)
	l.allow("b")
	now = now.Add(6 * time.Minute)

	assert.Equal(t, 1, l.evict(10*time.Minute))
	assert.Equal(t, 1, l.size())
}

func TestRequestID(t *testing.T) {
	s := testServer(t, Config{})

	w := get(t, s, "/api/v1/ellipsoids")
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)

	req := httptest.NewRequest("GET", "/api/v1/ellipsoids", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	req = httptest.NewRequest("GET", "/api/v1/ellipsoids", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", maxRequestIDLen+1))
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}

func TestReadiness(t *testing.T) {
	rd := &health.Readiness{}
	s := NewServer(Config{Addr: "127.0.0.1:0"}, zap.NewNop(), nil, rd)

	assert.Equal(t, http.StatusServiceUnavailable, get(t, s, "/readyz").Code)
	rd.SetReady(true)
	assert.Equal(t, http.StatusOK, get(t, s, "/readyz").Code)

	require.NoError(t, s.Shutdown(context.Background()))
	assert.False(t, rd.Ready())
	assert.Equal(t, http.StatusServiceUnavailable, get(t, s, "/readyz").Code)
}

func TestStreamRouteWired(t *testing.T) {
	s := testServer(t, Config{})
	w := get(t, s, "/api/v1/stream/track?ra=1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	s = NewServer(Config{}, zap.NewNop(), nil, nil)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/v1/stream/track?ra=1").Code)
}

func TestUnknownRoute(t *testing.T) {
	s := testServer(t, Config{})
	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/v2/nothing").Code)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/ellipsoids", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
