// Package coord holds the call options, angle handling and broadcasting rules
// shared by the conversion packages.
//
// Every public angle input and output is in degrees unless Radians is passed.
// Longitudes come back in (-180, 180]; azimuth and right ascension in [0, 360).
package coord

import (
	"math"

	"github.com/star/skygeo/ellipsoid"
	"github.com/star/skygeo/sidereal"
)

// AngleUnit is the unit of every public angle argument and result.
type AngleUnit int

const (
	UnitDegrees AngleUnit = iota
	UnitRadians
)

func (u AngleUnit) String() string {
	if u == UnitRadians {
		return "rad"
	}
	return "deg"
}

// Options is the resolved configuration of a conversion call.
type Options struct {
	Unit      AngleUnit
	Ellipsoid ellipsoid.Ellipsoid
	Sidereal  sidereal.Model

	ellipsoidName string
}

// Option configures a conversion call.
type Option func(*Options)

// Degrees selects degrees for angle inputs and outputs (the default).
func Degrees() Option {
	return func(o *Options) { o.Unit = UnitDegrees }
}

// Radians selects radians for angle inputs and outputs.
func Radians() Option {
	return func(o *Options) { o.Unit = UnitRadians }
}

// WithUnit selects the angle unit explicitly.
func WithUnit(u AngleUnit) Option {
	return func(o *Options) { o.Unit = u }
}

// WithEllipsoid selects an explicit ellipsoid. The zero value means WGS84.
func WithEllipsoid(e ellipsoid.Ellipsoid) Option {
	return func(o *Options) {
		o.Ellipsoid = e
		o.ellipsoidName = ""
	}
}

// WithEllipsoidName selects a named preset. Unknown names surface as
// ellipsoid.ErrInvalidEllipsoid from the functions that use the ellipsoid.
// An empty name means WGS84.
func WithEllipsoidName(name string) Option {
	return func(o *Options) {
		o.ellipsoidName = name
		o.Ellipsoid = ellipsoid.Ellipsoid{}
	}
}

// WithSiderealModel selects the sidereal time model used by sky conversions.
func WithSiderealModel(m sidereal.Model) Option {
	return func(o *Options) { o.Sidereal = m }
}

// Apply folds opts over the defaults without checking the ellipsoid. It is
// what ellipsoid-independent functions use.
func Apply(opts ...Option) Options {
	o := Options{Unit: UnitDegrees, Sidereal: sidereal.IAU82}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// Resolve folds opts and resolves the ellipsoid: a name is looked up, an unset
// ellipsoid becomes WGS84, and an explicit one is validated.
func Resolve(opts ...Option) (Options, error) {
	o := Apply(opts...)
	switch {
	case o.ellipsoidName != "":
		e, err := ellipsoid.FromName(o.ellipsoidName)
		if err != nil {
			return Options{}, err
		}
		o.Ellipsoid = e
		o.ellipsoidName = ""
	case o.Ellipsoid.IsZero():
		o.Ellipsoid = ellipsoid.WGS84
	default:
		if err := o.Ellipsoid.Validate(); err != nil {
			return Options{}, err
		}
	}
	return o, nil
}

// ToRadians converts an angle given in the caller's unit to radians.
func (o Options) ToRadians(v float64) float64 {
	if o.Unit == UnitRadians {
		return v
	}
	return v * math.Pi / 180
}

// FromRadians converts an angle in radians to the caller's unit.
func (o Options) FromRadians(rad float64) float64 {
	if o.Unit == UnitRadians {
		return rad
	}
	return rad * 180 / math.Pi
}

// Turn is a full revolution in the caller's unit.
func (o Options) Turn() float64 {
	if o.Unit == UnitRadians {
		return 2 * math.Pi
	}
	return 360
}

// WrapSigned maps v (caller's unit) into (-turn/2, turn/2].
func (o Options) WrapSigned(v float64) float64 {
	return WrapSigned(v, o.Turn())
}

// WrapPositive maps v (caller's unit) into [0, turn).
func (o Options) WrapPositive(v float64) float64 {
	return WrapPositive(v, o.Turn())
}

// WrapSigned maps v into (-turn/2, turn/2].
func WrapSigned(v, turn float64) float64 {
	r := math.Remainder(v, turn)
	if r <= -turn/2 {
		r += turn
	}
	return r
}

// WrapPositive maps v into [0, turn).
func WrapPositive(v, turn float64) float64 {
	r := math.Mod(v, turn)
	if r < 0 {
		r += turn
	}
	if r >= turn {
		r = 0
	}
	return r
}
