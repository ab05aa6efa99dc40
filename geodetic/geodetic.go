// Package geodetic converts between geodetic latitude/longitude/altitude and
// Earth-Centered Earth-Fixed (ECEF) Cartesian coordinates on a reference
// ellipsoid. ECEF positions are gonum r3 vectors in meters.
package geodetic

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/star/skygeo/coord"
	"github.com/star/skygeo/ellipsoid"
)

// Point is a geodetic position. Lat and Lon are in the caller's angle unit,
// Alt is meters above the ellipsoid.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`
}

const maxIterations = 10

// ToECEF converts a geodetic point to ECEF meters.
func ToECEF(pt Point, opts ...coord.Option) (r3.Vec, error) {
	o, err := coord.Resolve(opts...)
	if err != nil {
		return r3.Vec{}, err
	}
	return ToECEFRad(o.Ellipsoid, o.ToRadians(pt.Lat), o.ToRadians(pt.Lon), pt.Alt), nil
}

// FromECEF converts an ECEF position in meters to a geodetic point. The
// longitude is in (-180, 180]; at the poles and the center it is 0.
func FromECEF(p r3.Vec, opts ...coord.Option) (Point, error) {
	o, err := coord.Resolve(opts...)
	if err != nil {
		return Point{}, err
	}
	lat, lon, alt := FromECEFRad(o.Ellipsoid, p)
	return Point{
		Lat: o.FromRadians(lat),
		Lon: o.WrapSigned(o.FromRadians(lon)),
		Alt: alt,
	}, nil
}

// ToECEFRad is the radians kernel of ToECEF. The ellipsoid is not validated.
func ToECEFRad(e ellipsoid.Ellipsoid, lat, lon, alt float64) r3.Vec {
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)

	// Radius of curvature in the prime vertical.
	n := e.Transverse(lat)
	b2a2 := (e.SemiMinorAxis * e.SemiMinorAxis) / (e.SemiMajorAxis * e.SemiMajorAxis)

	return r3.Vec{
		X: (n + alt) * cosLat * cosLon,
		Y: (n + alt) * cosLat * sinLon,
		Z: (n*b2a2 + alt) * sinLat,
	}
}

// FromECEFRad is the radians kernel of FromECEF, using Bowring's iteration.
// Converges in 2-3 iterations for points near the surface.
func FromECEFRad(e ellipsoid.Ellipsoid, p r3.Vec) (lat, lon, alt float64) {
	e2 := e.EccentricitySquared()
	a := e.SemiMajorAxis

	if p.X != 0 || p.Y != 0 {
		lon = math.Atan2(p.Y, p.X)
	}
	rho := math.Hypot(p.X, p.Y)

	// Initial estimate.
	lat = math.Atan2(p.Z, rho*(1-e2))
	for i := 0; i < maxIterations; i++ {
		sinLat := math.Sin(lat)
		n := a / math.Sqrt(1-e2*sinLat*sinLat)
		next := math.Atan2(p.Z+e2*n*sinLat, rho)
		if math.Abs(next-lat) < 1e-15 {
			lat = next
			break
		}
		lat = next
	}

	// h = ρ·cosφ + z·sinφ − a·sqrt(1 − e²sin²φ), valid at the poles too.
	sinLat, cosLat := math.Sincos(lat)
	alt = rho*cosLat + p.Z*sinLat - a*math.Sqrt(1-e2*sinLat*sinLat)

	return lat, lon, alt
}
