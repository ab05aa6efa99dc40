// Package sidereal computes Julian dates and Greenwich/local sidereal time, the
// rotation angle that relates the Earth-fixed frame to the celestial equator.
//
// The default model is the IAU-82 mean sidereal time as given by Vallado,
// "Fundamentals of Astrodynamics and Applications", Eq. 3-47. The Meeus models
// (Astronomical Algorithms, ch. 12) are available for callers that want the
// apparent sidereal time, which adds the equation of the equinoxes.
package sidereal

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	msidereal "github.com/soniakeys/meeus/v3/sidereal"
)

// j2000 is the Julian Date of the J2000.0 epoch (January 1, 2000, 12:00:00 TT).
const j2000 = 2451545.0

// Model selects the sidereal time formulation.
type Model int

const (
	// IAU82 is the IAU-82 mean sidereal time (Vallado Eq. 3-47).
	IAU82 Model = iota
	// MeeusMean is Meeus' mean sidereal time (Eq. 12.4).
	MeeusMean
	// MeeusApparent is Meeus' apparent sidereal time, corrected for nutation.
	MeeusApparent
)

var modelNames = map[Model]string{
	IAU82:         "iau82",
	MeeusMean:     "meeus-mean",
	MeeusApparent: "meeus-apparent",
}

func (m Model) String() string {
	if s, ok := modelNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Model(%d)", int(m))
}

// ParseModel maps a model name (as returned by String) back to a Model.
func ParseModel(s string) (Model, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range modelNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown sidereal model %q", s)
}

// JulianDate converts a time.Time (UTC) to Julian Date.
// Uses the standard astronomical algorithm valid for dates after March 1, 4801 BC.
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	y := float64(t.Year())
	m := float64(t.Month())
	d := float64(t.Day())
	h := float64(t.Hour())
	min := float64(t.Minute())
	s := float64(t.Second()) + float64(t.Nanosecond())/1e9

	// Jan/Feb count as months 13/14 of the previous year.
	if m <= 2 {
		y -= 1
		m += 12
	}

	A := math.Floor(y / 100)
	B := 2 - A + math.Floor(A/4)

	jd := math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + d + B - 1524.5
	jd += (h + min/60.0 + s/3600.0) / 24.0

	return jd
}

// GMST calculates Greenwich Mean Sidereal Time in radians, in [0, 2π), using the IAU-82 model.
//
//	θ_GMST = 67310.54841 + (876600h + 8640184.812866)*T + 0.093104*T² - 6.2e-6*T³
//
// where T is Julian centuries of UT1 from J2000.0, result is in seconds of time.
// UT1 is approximated by UTC.
func GMST(t time.Time) float64 {
	tUT1 := (JulianDate(t) - j2000) / 36525.0

	// 876600h = 876600 * 3600 = 3155760000 seconds.
	gmstSec := 67310.54841 +
		(3155760000.0+8640184.812866)*tUT1 +
		0.093104*tUT1*tUT1 -
		6.2e-6*tUT1*tUT1*tUT1

	gmstSec = math.Mod(gmstSec, 86400.0)
	if gmstSec < 0 {
		gmstSec += 86400.0
	}
	return gmstSec / 86400.0 * 2.0 * math.Pi
}

// Greenwich returns the Greenwich sidereal time in radians, in [0, 2π), for model m.
// Unknown models fall back to IAU82.
func Greenwich(t time.Time, m Model) float64 {
	switch m {
	case MeeusMean:
		return wrap(msidereal.Mean(julian.TimeToJD(t.UTC())).Rad())
	case MeeusApparent:
		return wrap(msidereal.Apparent(julian.TimeToJD(t.UTC())).Rad())
	default:
		return GMST(t)
	}
}

// Local returns the local sidereal time in radians, in [0, 2π), for an observer
// at east-positive longitude lon (radians).
func Local(t time.Time, lon float64, m Model) float64 {
	return wrap(Greenwich(t, m) + lon)
}

func wrap(rad float64) float64 {
	r := math.Mod(rad, 2*math.Pi)
	if r < 0 {
		r += 2 * math.Pi
	}
	if r >= 2*math.Pi {
		r = 0
	}
	return r
}
