package sky

import (
	"time"

	"github.com/star/skygeo/coord"
	"github.com/star/skygeo/sidereal"
)

// AzElToRaDecBatch is the column form of AzElToRaDec. The observer and
// instant apply to every element.
func AzElToRaDecBatch(az, el []float64, obs Observer, t time.Time, opts ...coord.Option) (ra, dec []float64, err error) {
	n, err := coord.BroadcastLen(len(az), len(el))
	if err != nil {
		return nil, nil, err
	}
	o := coord.Apply(opts...)
	lat := o.ToRadians(obs.Lat)
	lst := sidereal.Local(t, o.ToRadians(obs.Lon), o.Sidereal)

	ra, dec = make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		eq := azElToRaDec(o, coord.At(az, i), coord.At(el, i), lat, lst)
		ra[i], dec[i] = eq.RA, eq.Dec
	}
	return ra, dec, nil
}

// RaDecToAzElBatch is the column form of RaDecToAzEl.
func RaDecToAzElBatch(ra, dec []float64, obs Observer, t time.Time, opts ...coord.Option) (az, el []float64, err error) {
	n, err := coord.BroadcastLen(len(ra), len(dec))
	if err != nil {
		return nil, nil, err
	}
	o := coord.Apply(opts...)
	lat := o.ToRadians(obs.Lat)
	lst := sidereal.Local(t, o.ToRadians(obs.Lon), o.Sidereal)

	az, el = make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		hz := raDecToAzEl(o, coord.At(ra, i), coord.At(dec, i), lat, lst)
		az[i], el[i] = hz.Az, hz.El
	}
	return az, el, nil
}
