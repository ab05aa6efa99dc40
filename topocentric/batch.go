package topocentric

import (
	"github.com/star/skygeo/coord"
	"github.com/star/skygeo/geodetic"
)

// GeodeticToAERBatch is the column form of GeodeticToAER for targets seen
// from one observer.
func GeodeticToAERBatch(lat, lon, alt []float64, obs geodetic.Point, opts ...coord.Option) (az, el, rng []float64, err error) {
	n, err := coord.BroadcastLen(len(lat), len(lon), len(alt))
	if err != nil {
		return nil, nil, nil, err
	}
	if _, err := coord.Resolve(opts...); err != nil {
		return nil, nil, nil, err
	}

	az, el, rng = make([]float64, n), make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		target := geodetic.Point{Lat: coord.At(lat, i), Lon: coord.At(lon, i), Alt: coord.At(alt, i)}
		aer, err := GeodeticToAER(target, obs, opts...)
		if err != nil {
			return nil, nil, nil, err
		}
		az[i], el[i], rng[i] = aer.Az, aer.El, aer.Range
	}
	return az, el, rng, nil
}
