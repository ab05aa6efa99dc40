package ellipsoid

import "math"

// Radii of curvature at geodetic latitude lat (radians), in meters.

// Transverse returns the radius of curvature in the prime vertical, N.
func (e Ellipsoid) Transverse(lat float64) float64 {
	s := math.Sin(lat)
	return e.SemiMajorAxis / math.Sqrt(1-e.EccentricitySquared()*s*s)
}

// Meridian returns the radius of curvature in the meridian plane, M.
func (e Ellipsoid) Meridian(lat float64) float64 {
	s := math.Sin(lat)
	w2 := 1 - e.EccentricitySquared()*s*s
	return e.SemiMajorAxis * (1 - e.EccentricitySquared()) / math.Sqrt(w2*w2*w2)
}

// Parallel returns the radius of the circle of latitude, N·cos(lat).
func (e Ellipsoid) Parallel(lat float64) float64 {
	return math.Cos(lat) * e.Transverse(lat)
}

// GeocentricRadius returns the distance from the center to the ellipsoid
// surface at geodetic latitude lat.
func (e Ellipsoid) GeocentricRadius(lat float64) float64 {
	s, c := math.Sincos(lat)
	a, b := e.SemiMajorAxis, e.SemiMinorAxis
	num := (a*a*c)*(a*a*c) + (b*b*s)*(b*b*s)
	den := (a*c)*(a*c) + (b*s)*(b*s)
	return math.Sqrt(num / den)
}
