package api

import (
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/star/skygeo/coord"
	"github.com/star/skygeo/ellipsoid"
	"github.com/star/skygeo/geodetic"
	"github.com/star/skygeo/internal/metrics"
	"github.com/star/skygeo/internal/tracing"
	"github.com/star/skygeo/nvector"
	"github.com/star/skygeo/sky"
	"github.com/star/skygeo/topocentric"
)

// convertFunc runs one conversion and returns the response body and the
// number of elements it covered.
type convertFunc func(p *params) (any, int, error)

// convert adapts a convertFunc into a handler: it parses the shared options,
// maps client errors to 400, and records metrics and a span per call.
func (s *Server) convert(operation string, fn convertFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := s.parseParams(r.URL.Query())
		if err != nil {
			s.fail(w, r, operation, err)
			return
		}

		_, span := tracing.Start(r.Context(), "convert "+operation)
		body, n, err := fn(p)
		span.SetAttributes(attribute.Int("skygeo.elements", n), attribute.String("skygeo.units", p.units.String()))
		span.End()
		if err != nil {
			s.fail(w, r, operation, err)
			return
		}

		metrics.ObserveConversion(operation, n)
		if err := writeResponse(w, r, http.StatusOK, body); err != nil {
			s.logResponseError(r, operation, err)
		}
	}
}

func (s *Server) logResponseError(r *http.Request, operation string, err error) {
	s.logger.Error("response failed",
		zap.String("component", "api"),
		zap.String("operation", operation),
		zap.String("request_id", RequestID(r.Context())),
		zap.Error(err),
	)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, operation string, err error) {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		writeError(w, r, http.StatusBadRequest, errorResponse{Error: reqErr.msg, MaxElements: reqErr.maxElements})
	case errors.Is(err, coord.ErrShapeMismatch),
		errors.Is(err, ellipsoid.ErrInvalidEllipsoid),
		errors.Is(err, topocentric.ErrNegativeRange):
		writeError(w, r, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		s.logger.Error("conversion failed",
			zap.String("component", "api"),
			zap.String("operation", operation),
			zap.String("request_id", RequestID(r.Context())),
			zap.Error(err),
		)
		writeError(w, r, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

type ellipsoidInfo struct {
	Name                string  `json:"name"`
	SemiMajorAxis       float64 `json:"semimajor_axis"`
	SemiMinorAxis       float64 `json:"semiminor_axis"`
	Flattening          float64 `json:"flattening"`
	EccentricitySquared float64 `json:"eccentricity_squared"`
	Default             bool    `json:"default"`
}

func (s *Server) handleEllipsoids(w http.ResponseWriter, r *http.Request) {
	presets := ellipsoid.Presets()
	out := make([]ellipsoidInfo, len(presets))
	for i, e := range presets {
		out[i] = ellipsoidInfo{
			Name:                e.Name,
			SemiMajorAxis:       e.SemiMajorAxis,
			SemiMinorAxis:       e.SemiMinorAxis,
			Flattening:          e.Flattening(),
			EccentricitySquared: e.EccentricitySquared(),
			Default:             e.Name == s.cfg.DefaultEllipsoid,
		}
	}
	if err := writeResponse(w, r, http.StatusOK, map[string]any{"ellipsoids": out}); err != nil {
		s.logResponseError(r, "list_ellipsoids", err)
	}
}

type nvectorResponse struct {
	N1 []float64 `json:"n1"`
	N2 []float64 `json:"n2"`
	N3 []float64 `json:"n3"`
}

type latLonResponse struct {
	Lat []float64 `json:"lat"`
	Lon []float64 `json:"lon"`
}

type geodeticResponse struct {
	Lat []float64 `json:"lat"`
	Lon []float64 `json:"lon"`
	Alt []float64 `json:"alt"`
}

type ecefResponse struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
	Z []float64 `json:"z"`
}

type equatorialResponse struct {
	RA            []float64 `json:"ra"`
	Dec           []float64 `json:"dec"`
	Time          string    `json:"time"`
	SiderealModel string    `json:"sidereal_model"`
}

type horizontalResponse struct {
	Az            []float64 `json:"az"`
	El            []float64 `json:"el"`
	Time          string    `json:"time"`
	SiderealModel string    `json:"sidereal_model"`
}

type aerResponse struct {
	Az    []float64 `json:"az"`
	El    []float64 `json:"el"`
	Range []float64 `json:"range"`
}

// columns parses each named list parameter in order.
func (p *params) columns(names ...string) ([][]float64, error) {
	out := make([][]float64, len(names))
	for i, name := range names {
		col, err := p.floats(name)
		if err != nil {
			return nil, err
		}
		out[i] = col
	}
	return out, nil
}

func nvectorFromGeodetic(p *params) (any, int, error) {
	c, err := p.columns("lat", "lon")
	if err != nil {
		return nil, 0, err
	}
	n, err := checkSize(len(c[0]), len(c[1]))
	if err != nil {
		return nil, 0, err
	}
	n1, n2, n3, err := nvector.FromGeodeticBatch(c[0], c[1], p.options()...)
	if err != nil {
		return nil, 0, err
	}
	return nvectorResponse{N1: n1, N2: n2, N3: n3}, n, nil
}

func nvectorToGeodetic(p *params) (any, int, error) {
	c, err := p.columns("n1", "n2", "n3")
	if err != nil {
		return nil, 0, err
	}
	n, err := checkSize(len(c[0]), len(c[1]), len(c[2]))
	if err != nil {
		return nil, 0, err
	}
	lat, lon, err := nvector.ToGeodeticBatch(c[0], c[1], c[2], p.options()...)
	if err != nil {
		return nil, 0, err
	}
	return latLonResponse{Lat: lat, Lon: lon}, n, nil
}

func nvectorFromECEF(p *params) (any, int, error) {
	c, err := p.columns("x", "y", "z")
	if err != nil {
		return nil, 0, err
	}
	n, err := checkSize(len(c[0]), len(c[1]), len(c[2]))
	if err != nil {
		return nil, 0, err
	}
	n1, n2, n3, err := nvector.FromECEFBatch(c[0], c[1], c[2], p.options()...)
	if err != nil {
		return nil, 0, err
	}
	return nvectorResponse{N1: n1, N2: n2, N3: n3}, n, nil
}

func nvectorToECEF(p *params) (any, int, error) {
	c, err := p.columns("n1", "n2", "n3")
	if err != nil {
		return nil, 0, err
	}
	alt, err := p.floatsOr("alt", 0)
	if err != nil {
		return nil, 0, err
	}
	n, err := checkSize(len(c[0]), len(c[1]), len(c[2]), len(alt))
	if err != nil {
		return nil, 0, err
	}
	x, y, z, err := nvector.ToECEFBatch(c[0], c[1], c[2], alt, p.options()...)
	if err != nil {
		return nil, 0, err
	}
	return ecefResponse{X: x, Y: y, Z: z}, n, nil
}

func geodeticToECEF(p *params) (any, int, error) {
	c, err := p.columns("lat", "lon")
	if err != nil {
		return nil, 0, err
	}
	alt, err := p.floatsOr("alt", 0)
	if err != nil {
		return nil, 0, err
	}
	n, err := checkSize(len(c[0]), len(c[1]), len(alt))
	if err != nil {
		return nil, 0, err
	}
	x, y, z, err := geodetic.ToECEFBatch(c[0], c[1], alt, p.options()...)
	if err != nil {
		return nil, 0, err
	}
	return ecefResponse{X: x, Y: y, Z: z}, n, nil
}

func ecefToGeodetic(p *params) (any, int, error) {
	c, err := p.columns("x", "y", "z")
	if err != nil {
		return nil, 0, err
	}
	n, err := checkSize(len(c[0]), len(c[1]), len(c[2]))
	if err != nil {
		return nil, 0, err
	}
	lat, lon, alt, err := geodetic.FromECEFBatch(c[0], c[1], c[2], p.options()...)
	if err != nil {
		return nil, 0, err
	}
	return geodeticResponse{Lat: lat, Lon: lon, Alt: alt}, n, nil
}

// skyInputs parses the observer and instant shared by the sky routes.
func (s *Server) skyInputs(p *params) (sky.Observer, time.Time, error) {
	lat, err := p.scalar("lat")
	if err != nil {
		return sky.Observer{}, time.Time{}, err
	}
	lon, err := p.scalar("lon")
	if err != nil {
		return sky.Observer{}, time.Time{}, err
	}
	t, err := p.instant("time", s.now)
	if err != nil {
		return sky.Observer{}, time.Time{}, err
	}
	return sky.Observer{Lat: lat, Lon: lon}, t, nil
}

func (s *Server) skyRaDec(p *params) (any, int, error) {
	c, err := p.columns("az", "el")
	if err != nil {
		return nil, 0, err
	}
	obs, t, err := s.skyInputs(p)
	if err != nil {
		return nil, 0, err
	}
	n, err := checkSize(len(c[0]), len(c[1]))
	if err != nil {
		return nil, 0, err
	}
	ra, dec, err := sky.AzElToRaDecBatch(c[0], c[1], obs, t, p.options()...)
	if err != nil {
		return nil, 0, err
	}
	return equatorialResponse{RA: ra, Dec: dec, Time: t.Format(time.RFC3339Nano), SiderealModel: p.model.String()}, n, nil
}

func (s *Server) skyAzEl(p *params) (any, int, error) {
	c, err := p.columns("ra", "dec")
	if err != nil {
		return nil, 0, err
	}
	obs, t, err := s.skyInputs(p)
	if err != nil {
		return nil, 0, err
	}
	n, err := checkSize(len(c[0]), len(c[1]))
	if err != nil {
		return nil, 0, err
	}
	az, el, err := sky.RaDecToAzElBatch(c[0], c[1], obs, t, p.options()...)
	if err != nil {
		return nil, 0, err
	}
	return horizontalResponse{Az: az, El: el, Time: t.Format(time.RFC3339Nano), SiderealModel: p.model.String()}, n, nil
}

func skyAER(p *params) (any, int, error) {
	c, err := p.columns("lat", "lon")
	if err != nil {
		return nil, 0, err
	}
	alt, err := p.floatsOr("alt", 0)
	if err != nil {
		return nil, 0, err
	}
	var obs geodetic.Point
	if obs.Lat, err = p.scalar("lat0"); err != nil {
		return nil, 0, err
	}
	if obs.Lon, err = p.scalar("lon0"); err != nil {
		return nil, 0, err
	}
	if obs.Alt, err = p.scalarOr("alt0", 0); err != nil {
		return nil, 0, err
	}
	n, err := checkSize(len(c[0]), len(c[1]), len(alt))
	if err != nil {
		return nil, 0, err
	}
	az, el, rng, err := topocentric.GeodeticToAERBatch(c[0], c[1], alt, obs, p.options()...)
	if err != nil {
		return nil, 0, err
	}
	return aerResponse{Az: az, El: el, Range: rng}, n, nil
}
