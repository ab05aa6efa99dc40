// Package nvector converts between geodetic coordinates, ECEF positions and
// n-vectors, the unit normal to the ellipsoid at a point.
//
// An n-vector is an r3.Vec with X, Y and Z holding n1, n2 and n3 in the ECEF
// axes. It carries direction only, so altitude is dropped on the way in and
// must be supplied on the way out.
package nvector

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/star/skygeo/coord"
	"github.com/star/skygeo/geodetic"
)

// FromGeodetic returns the n-vector for a geodetic latitude and longitude.
// The n-vector is a direction, so a valid ellipsoid option does not change
// it; an invalid one is still reported.
func FromGeodetic(lat, lon float64, opts ...coord.Option) (r3.Vec, error) {
	o, err := coord.Resolve(opts...)
	if err != nil {
		return r3.Vec{}, err
	}
	return fromGeodeticRad(o.ToRadians(lat), o.ToRadians(lon)), nil
}

// ToGeodetic returns the latitude and longitude of a unit n-vector. The
// vector is not renormalised. A polar vector (n1 = n2 = 0) has longitude 0.
func ToGeodetic(n r3.Vec, opts ...coord.Option) (lat, lon float64, err error) {
	o, err := coord.Resolve(opts...)
	if err != nil {
		return 0, 0, err
	}
	la, lo := toGeodeticRad(n)
	return o.FromRadians(la), o.WrapSigned(o.FromRadians(lo)), nil
}

// FromECEF returns the n-vector of the ellipsoid normal through p.
func FromECEF(p r3.Vec, opts ...coord.Option) (r3.Vec, error) {
	o, err := coord.Resolve(opts...)
	if err != nil {
		return r3.Vec{}, err
	}
	lat, lon, _ := geodetic.FromECEFRad(o.Ellipsoid, p)
	return fromGeodeticRad(lat, lon), nil
}

// ToECEF returns the ECEF position at altitude alt (meters) along the
// ellipsoid normal n.
func ToECEF(n r3.Vec, alt float64, opts ...coord.Option) (r3.Vec, error) {
	o, err := coord.Resolve(opts...)
	if err != nil {
		return r3.Vec{}, err
	}
	lat, lon := toGeodeticRad(n)
	return geodetic.ToECEFRad(o.Ellipsoid, lat, lon, alt), nil
}

// Normalize returns the unit vector along n. The zero vector yields NaNs.
func Normalize(n r3.Vec) r3.Vec {
	return r3.Unit(n)
}

func fromGeodeticRad(lat, lon float64) r3.Vec {
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)
	return r3.Vec{
		X: cosLat * cosLon,
		Y: cosLat * sinLon,
		Z: sinLat,
	}
}

func toGeodeticRad(n r3.Vec) (lat, lon float64) {
	// Rounding can push a unit n3 a few ulps past 1.
	lat = math.Asin(math.Max(-1, math.Min(1, n.Z)))
	if n.X != 0 || n.Y != 0 {
		lon = math.Atan2(n.Y, n.X)
	}
	return lat, lon
}
