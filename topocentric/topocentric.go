// Package topocentric converts between ECEF or geodetic positions and an
// observer's local East-North-Up frame, and between ENU and look angles
// (azimuth, elevation, slant range).
//
// Azimuth: 0 = North, measured clockwise. Elevation: 0 = horizon, 90 = zenith.
// Distances are meters.
package topocentric

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/star/skygeo/coord"
	"github.com/star/skygeo/geodetic"
)

// ErrNegativeRange is returned for a slant range below zero.
var ErrNegativeRange = errors.New("slant range must be in [0, +Inf)")

// clampDistance zeroes ENU components shorter than a millimetre so that
// azimuth is stable for targets directly overhead.
const clampDistance = 1e-3

// ENU is a vector in an observer's local East-North-Up frame.
type ENU struct {
	East  float64 `json:"east"`
	North float64 `json:"north"`
	Up    float64 `json:"up"`
}

// AER holds azimuth, elevation, and slant range from an observer to a target.
type AER struct {
	Az    float64 `json:"az"`
	El    float64 `json:"el"`
	Range float64 `json:"range"`
}

// rotation returns the matrix whose rows are the East, North and Up unit
// vectors of the frame at lat, lon (radians).
func rotation(lat, lon float64) *r3.Mat {
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)
	return r3.NewMat([]float64{
		-sinLon, cosLon, 0,
		-sinLat * cosLon, -sinLat * sinLon, cosLat,
		cosLat * cosLon, cosLat * sinLon, sinLat,
	})
}

// ECEFToENU returns the ENU vector from observer obs to ECEF position p.
func ECEFToENU(p r3.Vec, obs geodetic.Point, opts ...coord.Option) (ENU, error) {
	o, err := coord.Resolve(opts...)
	if err != nil {
		return ENU{}, err
	}
	lat, lon := o.ToRadians(obs.Lat), o.ToRadians(obs.Lon)
	origin := geodetic.ToECEFRad(o.Ellipsoid, lat, lon, obs.Alt)

	v := rotation(lat, lon).MulVec(r3.Sub(p, origin))
	return ENU{East: v.X, North: v.Y, Up: v.Z}, nil
}

// ENUToECEF returns the ECEF position at enu relative to observer obs.
func ENUToECEF(enu ENU, obs geodetic.Point, opts ...coord.Option) (r3.Vec, error) {
	o, err := coord.Resolve(opts...)
	if err != nil {
		return r3.Vec{}, err
	}
	lat, lon := o.ToRadians(obs.Lat), o.ToRadians(obs.Lon)
	origin := geodetic.ToECEFRad(o.Ellipsoid, lat, lon, obs.Alt)

	d := rotation(lat, lon).MulVecTrans(r3.Vec{X: enu.East, Y: enu.North, Z: enu.Up})
	return r3.Add(origin, d), nil
}

// ENUToAER converts a local ENU vector to look angles. Components under a
// millimetre are treated as zero.
func ENUToAER(enu ENU, opts ...coord.Option) AER {
	o := coord.Apply(opts...)
	e, n, u := clamp(enu.East), clamp(enu.North), clamp(enu.Up)

	r := math.Hypot(e, n)
	return AER{
		Az:    o.WrapPositive(o.FromRadians(math.Atan2(e, n))),
		El:    o.FromRadians(math.Atan2(u, r)),
		Range: math.Hypot(r, u),
	}
}

// AERToENU converts look angles to a local ENU vector.
func AERToENU(aer AER, opts ...coord.Option) (ENU, error) {
	if aer.Range < 0 {
		return ENU{}, fmt.Errorf("%w: got %g", ErrNegativeRange, aer.Range)
	}
	o := coord.Apply(opts...)
	sinAz, cosAz := math.Sincos(o.ToRadians(aer.Az))
	sinEl, cosEl := math.Sincos(o.ToRadians(aer.El))

	r := aer.Range * cosEl
	return ENU{East: r * sinAz, North: r * cosAz, Up: aer.Range * sinEl}, nil
}

// ECEFToAER returns the look angles from observer obs to ECEF position p.
func ECEFToAER(p r3.Vec, obs geodetic.Point, opts ...coord.Option) (AER, error) {
	enu, err := ECEFToENU(p, obs, opts...)
	if err != nil {
		return AER{}, err
	}
	return ENUToAER(enu, opts...), nil
}

// AERToECEF returns the ECEF position seen at aer from observer obs.
func AERToECEF(aer AER, obs geodetic.Point, opts ...coord.Option) (r3.Vec, error) {
	enu, err := AERToENU(aer, opts...)
	if err != nil {
		return r3.Vec{}, err
	}
	return ENUToECEF(enu, obs, opts...)
}

// GeodeticToAER returns the look angles from observer obs to target.
func GeodeticToAER(target, obs geodetic.Point, opts ...coord.Option) (AER, error) {
	p, err := geodetic.ToECEF(target, opts...)
	if err != nil {
		return AER{}, err
	}
	return ECEFToAER(p, obs, opts...)
}

// AERToGeodetic returns the geodetic position seen at aer from observer obs.
func AERToGeodetic(aer AER, obs geodetic.Point, opts ...coord.Option) (geodetic.Point, error) {
	p, err := AERToECEF(aer, obs, opts...)
	if err != nil {
		return geodetic.Point{}, err
	}
	return geodetic.FromECEF(p, opts...)
}

func clamp(v float64) float64 {
	if math.Abs(v) < clampDistance {
		return 0
	}
	return v
}
