// Package sky converts between horizontal coordinates (azimuth, elevation)
// seen by an observer on the Earth and equatorial coordinates (right
// ascension, declination) at a given instant.
//
// The conversion rotates the observer's South-West-Up frame about the West
// axis into the hour-angle frame, then offsets by local sidereal time.
// Azimuth is measured clockwise from north. Right ascension and azimuth are
// returned in [0, 360); declination and elevation in [-90, 90].
package sky

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/star/skygeo/coord"
	"github.com/star/skygeo/sidereal"
)

// zenithEps is the horizontal extent below which a direction is treated as
// the zenith or nadir and given azimuth 0.
const zenithEps = 1e-12

var westAxis = r3.Vec{Y: 1}

// Horizontal is an observer-relative direction.
type Horizontal struct {
	Az float64 `json:"az"`
	El float64 `json:"el"`
}

// Equatorial is a direction on the celestial sphere.
type Equatorial struct {
	RA  float64 `json:"ra"`
	Dec float64 `json:"dec"`
}

// Observer is a geodetic position on the Earth. Lon is east-positive.
type Observer struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// AzElToRaDec returns the equatorial coordinates of the direction hz seen by
// obs at t. Angles are not range checked.
func AzElToRaDec(hz Horizontal, obs Observer, t time.Time, opts ...coord.Option) Equatorial {
	o := coord.Apply(opts...)
	lst := sidereal.Local(t, o.ToRadians(obs.Lon), o.Sidereal)
	return azElToRaDec(o, hz.Az, hz.El, o.ToRadians(obs.Lat), lst)
}

// RaDecToAzEl returns the horizontal coordinates of eq seen by obs at t.
func RaDecToAzEl(eq Equatorial, obs Observer, t time.Time, opts ...coord.Option) Horizontal {
	o := coord.Apply(opts...)
	lst := sidereal.Local(t, o.ToRadians(obs.Lon), o.Sidereal)
	return raDecToAzEl(o, eq.RA, eq.Dec, o.ToRadians(obs.Lat), lst)
}

func azElToRaDec(o coord.Options, az, el, lat, lst float64) Equatorial {
	ha, dec := HorizonToHourAngle(o.ToRadians(az), o.ToRadians(el), lat)
	return Equatorial{
		RA:  o.WrapPositive(o.FromRadians(lst - ha)),
		Dec: o.FromRadians(dec),
	}
}

func raDecToAzEl(o coord.Options, ra, dec, lat, lst float64) Horizontal {
	az, el := HourAngleToHorizon(lst-o.ToRadians(ra), o.ToRadians(dec), lat)
	return Horizontal{
		Az: o.WrapPositive(o.FromRadians(az)),
		El: o.FromRadians(el),
	}
}

// HorizonToHourAngle converts azimuth and elevation seen from latitude lat
// to local hour angle (westward) and declination. All values are radians.
// At a celestial pole the hour angle is 0.
func HorizonToHourAngle(az, el, lat float64) (ha, dec float64) {
	sinEl, cosEl := math.Sincos(el)
	sinAz, cosAz := math.Sincos(az)

	// South, West, Up.
	swu := r3.Vec{X: -cosEl * cosAz, Y: -cosEl * sinAz, Z: sinEl}
	v := r3.NewRotation(math.Pi/2-lat, westAxis).Rotate(swu)

	horiz := math.Hypot(v.X, v.Y)
	dec = math.Atan2(v.Z, horiz)
	if horiz < zenithEps {
		return 0, dec
	}
	return math.Atan2(v.Y, v.X), dec
}

// HourAngleToHorizon is the inverse of HorizonToHourAngle. The returned
// azimuth is in (-π, π].
func HourAngleToHorizon(ha, dec, lat float64) (az, el float64) {
	sinDec, cosDec := math.Sincos(dec)
	sinHa, cosHa := math.Sincos(ha)

	hv := r3.Vec{X: cosDec * cosHa, Y: cosDec * sinHa, Z: sinDec}
	swu := r3.NewRotation(lat-math.Pi/2, westAxis).Rotate(hv)

	horiz := math.Hypot(swu.X, swu.Y)
	el = math.Atan2(swu.Z, horiz)
	if horiz < zenithEps {
		return 0, el
	}
	return math.Atan2(-swu.Y, -swu.X), el
}
