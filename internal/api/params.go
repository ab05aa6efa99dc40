package api

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/star/skygeo/coord"
	"github.com/star/skygeo/ellipsoid"
	"github.com/star/skygeo/sidereal"
)

// maxElements bounds the work a single conversion request can ask for.
const maxElements = 10000

// requestError is a client mistake reported as 400.
type requestError struct {
	msg         string
	maxElements int
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// params wraps a conversion query with the options shared by every route.
type params struct {
	q     url.Values
	units coord.AngleUnit
	ell   ellipsoid.Ellipsoid
	model sidereal.Model
}

func (s *Server) parseParams(q url.Values) (*params, error) {
	p := &params{q: q, model: s.cfg.SiderealModel}

	switch q.Get("units") {
	case "", "deg":
		p.units = coord.UnitDegrees
	case "rad":
		p.units = coord.UnitRadians
	default:
		return nil, badRequest("invalid units parameter %q, must be deg or rad", q.Get("units"))
	}

	name := q.Get("ellipsoid")
	if name == "" {
		name = s.cfg.DefaultEllipsoid
	}
	e, err := ellipsoid.FromName(name)
	if err != nil {
		return nil, err
	}
	p.ell = e

	if v := q.Get("model"); v != "" {
		m, err := sidereal.ParseModel(v)
		if err != nil {
			return nil, badRequest("invalid model parameter: %v", err)
		}
		p.model = m
	}
	return p, nil
}

// options returns the library options selected by the query.
func (p *params) options() []coord.Option {
	return []coord.Option{
		coord.WithUnit(p.units),
		coord.WithEllipsoid(p.ell),
		coord.WithSiderealModel(p.model),
	}
}

// floats parses a required comma-separated list of finite numbers.
func (p *params) floats(name string) ([]float64, error) {
	v := p.q.Get(name)
	if v == "" {
		return nil, badRequest("missing %s parameter", name)
	}
	if n := strings.Count(v, ",") + 1; n > maxElements {
		return nil, tooMany(n)
	}

	parts := strings.Split(v, ",")
	out := make([]float64, len(parts))
	for i, s := range parts {
		f, err := parseFinite(s)
		if err != nil {
			return nil, badRequest("invalid %s parameter at index %d: %v", name, i, err)
		}
		out[i] = f
	}
	return out, nil
}

// floatsOr is floats with a scalar default when the parameter is absent.
func (p *params) floatsOr(name string, def float64) ([]float64, error) {
	if p.q.Get(name) == "" {
		return []float64{def}, nil
	}
	return p.floats(name)
}

// scalar parses a required single number.
func (p *params) scalar(name string) (float64, error) {
	v := p.q.Get(name)
	if v == "" {
		return 0, badRequest("missing %s parameter", name)
	}
	f, err := parseFinite(v)
	if err != nil {
		return 0, badRequest("invalid %s parameter: %v", name, err)
	}
	return f, nil
}

func (p *params) scalarOr(name string, def float64) (float64, error) {
	if p.q.Get(name) == "" {
		return def, nil
	}
	return p.scalar(name)
}

// instant parses an RFC 3339 time, defaulting to now.
func (p *params) instant(name string, now func() time.Time) (time.Time, error) {
	v := p.q.Get(name)
	if v == "" {
		return now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, badRequest("invalid %s parameter, must be RFC 3339", name)
	}
	return t, nil
}

// checkSize applies broadcasting to the argument lengths and enforces the
// element budget.
func checkSize(lens ...int) (int, error) {
	n, err := coord.BroadcastLen(lens...)
	if err != nil {
		return 0, err
	}
	if n > maxElements {
		return 0, tooMany(n)
	}
	return n, nil
}

func tooMany(n int) error {
	return &requestError{
		msg:         fmt.Sprintf("too many elements: %d exceeds the maximum of %d", n, maxElements),
		maxElements: maxElements,
	}
}

func parseFinite(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("must be finite")
	}
	return f, nil
}
