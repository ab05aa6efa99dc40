package sky

import (
	"math"
	"time"

	"github.com/star/skygeo/coord"
	"github.com/star/skygeo/sidereal"
)

// Classical spherical-trigonometry conversions (Vallado, Fundamentals of
// Astrodynamics and Applications, algorithms 27 and 28). Degrees in and out.

func valladoAzElToRaDec(az, el, lat, lon float64, t time.Time) (ra, dec float64) {
	az, el, lat = rad(az), rad(el), rad(lat)
	lst := sidereal.Local(t, rad(lon), sidereal.IAU82)

	dec = math.Asin(math.Sin(el)*math.Sin(lat) + math.Cos(el)*math.Cos(lat)*math.Cos(az))
	lha := math.Atan2(
		-(math.Sin(az)*math.Cos(el))/math.Cos(dec),
		(math.Sin(el)-math.Sin(lat)*math.Sin(dec))/(math.Cos(dec)*math.Cos(lat)),
	)
	return coord.WrapPositive(deg(lst-lha), 360), deg(dec)
}

func valladoRaDecToAzEl(ra, dec, lat, lon float64, t time.Time) (az, el float64) {
	ra, dec, lat = rad(ra), rad(dec), rad(lat)
	lst := sidereal.Local(t, rad(lon), sidereal.IAU82)

	lha := lst - ra
	el = math.Asin(math.Sin(lat)*math.Sin(dec) + math.Cos(lat)*math.Cos(dec)*math.Cos(lha))
	az = math.Atan2(
		-math.Sin(lha)*math.Cos(dec)/math.Cos(el),
		(math.Sin(dec)-math.Sin(el)*math.Sin(lat))/(math.Cos(el)*math.Cos(lat)),
	)
	return coord.WrapPositive(deg(az), 360), deg(el)
}

func rad(d float64) float64 { return d * math.Pi / 180 }
func deg(r float64) float64 { return r * 180 / math.Pi }
