package geodetic

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/star/skygeo/coord"
)

// ToECEFBatch converts columns of geodetic coordinates to ECEF. Columns must
// share a length or have length 1. Each element equals the ToECEF result.
func ToECEFBatch(lat, lon, alt []float64, opts ...coord.Option) (x, y, z []float64, err error) {
	n, err := coord.BroadcastLen(len(lat), len(lon), len(alt))
	if err != nil {
		return nil, nil, nil, err
	}
	o, err := coord.Resolve(opts...)
	if err != nil {
		return nil, nil, nil, err
	}

	x, y, z = make([]float64, n), make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		p := ToECEFRad(o.Ellipsoid, o.ToRadians(coord.At(lat, i)), o.ToRadians(coord.At(lon, i)), coord.At(alt, i))
		x[i], y[i], z[i] = p.X, p.Y, p.Z
	}
	return x, y, z, nil
}

// FromECEFBatch converts columns of ECEF coordinates to geodetic. Each element
// equals the FromECEF result.
func FromECEFBatch(x, y, z []float64, opts ...coord.Option) (lat, lon, alt []float64, err error) {
	n, err := coord.BroadcastLen(len(x), len(y), len(z))
	if err != nil {
		return nil, nil, nil, err
	}
	o, err := coord.Resolve(opts...)
	if err != nil {
		return nil, nil, nil, err
	}

	lat, lon, alt = make([]float64, n), make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		la, lo, h := FromECEFRad(o.Ellipsoid, r3.Vec{X: coord.At(x, i), Y: coord.At(y, i), Z: coord.At(z, i)})
		lat[i] = o.FromRadians(la)
		lon[i] = o.WrapSigned(o.FromRadians(lo))
		alt[i] = h
	}
	return lat, lon, alt, nil
}
