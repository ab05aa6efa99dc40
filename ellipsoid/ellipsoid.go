// Package ellipsoid describes reference ellipsoids of revolution used to relate
// geodetic coordinates to Earth-Centered Earth-Fixed (ECEF) positions.
//
// The presets are the standard published Earth ellipsoids, defined by their
// semi-major axis and inverse flattening. WGS84 is the default everywhere an
// ellipsoid is optional.
package ellipsoid

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrInvalidEllipsoid is returned for unknown preset names and for axes that do
// not describe an oblate (or spherical) ellipsoid.
var ErrInvalidEllipsoid = errors.New("invalid ellipsoid")

// Ellipsoid is a reference ellipsoid of revolution.
type Ellipsoid struct {
	Name          string  `json:"name"`
	SemiMajorAxis float64 `json:"semimajor_axis"` // meters
	SemiMinorAxis float64 `json:"semiminor_axis"` // meters
}

// WGS84 is the World Geodetic System 1984 ellipsoid (NIMA TR8350.2).
var WGS84 = fromInverseFlattening("wgs84", 6378137.0, 298.257223563)

var presets = map[string]Ellipsoid{
	"wgs84":             WGS84,
	"wgs72":             fromInverseFlattening("wgs72", 6378135.0, 298.26),
	"grs80":             fromInverseFlattening("grs80", 6378137.0, 298.257222101),
	"clarke1866":        {Name: "clarke1866", SemiMajorAxis: 6378206.4, SemiMinorAxis: 6356583.8},
	"airy1830":          {Name: "airy1830", SemiMajorAxis: 6377563.396, SemiMinorAxis: 6356256.909},
	"bessel1841":        fromInverseFlattening("bessel1841", 6377397.155, 299.1528128),
	"international1924": fromInverseFlattening("international1924", 6378388.0, 297.0),
	"everest1830":       fromInverseFlattening("everest1830", 6377276.345, 300.8017),
	"krasovsky1940":     fromInverseFlattening("krasovsky1940", 6378245.0, 298.3),
}

func fromInverseFlattening(name string, a, invF float64) Ellipsoid {
	return Ellipsoid{Name: name, SemiMajorAxis: a, SemiMinorAxis: a * (1 - 1/invF)}
}

// New builds a custom ellipsoid from its semi-major and semi-minor axes in meters.
func New(name string, a, b float64) (Ellipsoid, error) {
	e := Ellipsoid{Name: name, SemiMajorAxis: a, SemiMinorAxis: b}
	if err := e.Validate(); err != nil {
		return Ellipsoid{}, err
	}
	return e, nil
}

// FromFlattening builds a custom ellipsoid from the semi-major axis and the
// inverse flattening 1/f. An infinite inverse flattening gives a sphere.
func FromFlattening(name string, a, invF float64) (Ellipsoid, error) {
	if math.IsNaN(invF) || invF <= 1 {
		return Ellipsoid{}, fmt.Errorf("%w: inverse flattening %g must be greater than 1", ErrInvalidEllipsoid, invF)
	}
	e := fromInverseFlattening(name, a, invF)
	if err := e.Validate(); err != nil {
		return Ellipsoid{}, err
	}
	return e, nil
}

// FromName returns a preset by case-insensitive name.
func FromName(name string) (Ellipsoid, error) {
	e, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Ellipsoid{}, fmt.Errorf("%w: unknown name %q", ErrInvalidEllipsoid, name)
	}
	return e, nil
}

// Names lists the preset names in sorted order.
func Names() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Presets returns all presets sorted by name.
func Presets() []Ellipsoid {
	names := Names()
	out := make([]Ellipsoid, len(names))
	for i, name := range names {
		out[i] = presets[name]
	}
	return out
}

// Validate reports whether the axes describe a usable ellipsoid: both finite and
// positive, with the semi-minor axis not exceeding the semi-major axis.
func (e Ellipsoid) Validate() error {
	a, b := e.SemiMajorAxis, e.SemiMinorAxis
	if math.IsNaN(a) || math.IsInf(a, 0) || a <= 0 {
		return fmt.Errorf("%w: semi-major axis %g must be positive and finite", ErrInvalidEllipsoid, a)
	}
	if math.IsNaN(b) || math.IsInf(b, 0) || b <= 0 {
		return fmt.Errorf("%w: semi-minor axis %g must be positive and finite", ErrInvalidEllipsoid, b)
	}
	if b > a {
		return fmt.Errorf("%w: semi-minor axis %g exceeds semi-major axis %g", ErrInvalidEllipsoid, b, a)
	}
	return nil
}

// IsZero reports whether e is the zero value, which callers treat as "unset".
func (e Ellipsoid) IsZero() bool {
	return e == Ellipsoid{}
}

// Flattening returns f = (a - b) / a.
func (e Ellipsoid) Flattening() float64 {
	return (e.SemiMajorAxis - e.SemiMinorAxis) / e.SemiMajorAxis
}

// EccentricitySquared returns the first eccentricity squared, e² = (a² - b²) / a².
func (e Ellipsoid) EccentricitySquared() float64 {
	a2 := e.SemiMajorAxis * e.SemiMajorAxis
	return (a2 - e.SemiMinorAxis*e.SemiMinorAxis) / a2
}

// Eccentricity returns the first eccentricity.
func (e Ellipsoid) Eccentricity() float64 {
	return math.Sqrt(e.EccentricitySquared())
}

func (e Ellipsoid) String() string {
	return fmt.Sprintf("%s(a=%.4f m, b=%.4f m)", e.Name, e.SemiMajorAxis, e.SemiMinorAxis)
}
