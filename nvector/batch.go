package nvector

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/star/skygeo/coord"
	"github.com/star/skygeo/geodetic"
)

// FromGeodeticBatch is the column form of FromGeodetic.
func FromGeodeticBatch(lat, lon []float64, opts ...coord.Option) (n1, n2, n3 []float64, err error) {
	n, err := coord.BroadcastLen(len(lat), len(lon))
	if err != nil {
		return nil, nil, nil, err
	}
	o, err := coord.Resolve(opts...)
	if err != nil {
		return nil, nil, nil, err
	}

	n1, n2, n3 = make([]float64, n), make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		v := fromGeodeticRad(o.ToRadians(coord.At(lat, i)), o.ToRadians(coord.At(lon, i)))
		n1[i], n2[i], n3[i] = v.X, v.Y, v.Z
	}
	return n1, n2, n3, nil
}

// ToGeodeticBatch is the column form of ToGeodetic.
func ToGeodeticBatch(n1, n2, n3 []float64, opts ...coord.Option) (lat, lon []float64, err error) {
	n, err := coord.BroadcastLen(len(n1), len(n2), len(n3))
	if err != nil {
		return nil, nil, err
	}
	o, err := coord.Resolve(opts...)
	if err != nil {
		return nil, nil, err
	}

	lat, lon = make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		la, lo := toGeodeticRad(r3.Vec{X: coord.At(n1, i), Y: coord.At(n2, i), Z: coord.At(n3, i)})
		lat[i] = o.FromRadians(la)
		lon[i] = o.WrapSigned(o.FromRadians(lo))
	}
	return lat, lon, nil
}

// FromECEFBatch is the column form of FromECEF.
func FromECEFBatch(x, y, z []float64, opts ...coord.Option) (n1, n2, n3 []float64, err error) {
	n, err := coord.BroadcastLen(len(x), len(y), len(z))
	if err != nil {
		return nil, nil, nil, err
	}
	o, err := coord.Resolve(opts...)
	if err != nil {
		return nil, nil, nil, err
	}

	n1, n2, n3 = make([]float64, n), make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		lat, lon, _ := geodetic.FromECEFRad(o.Ellipsoid, r3.Vec{X: coord.At(x, i), Y: coord.At(y, i), Z: coord.At(z, i)})
		v := fromGeodeticRad(lat, lon)
		n1[i], n2[i], n3[i] = v.X, v.Y, v.Z
	}
	return n1, n2, n3, nil
}

// ToECEFBatch is the column form of ToECEF. alt is in meters.
func ToECEFBatch(n1, n2, n3, alt []float64, opts ...coord.Option) (x, y, z []float64, err error) {
	n, err := coord.BroadcastLen(len(n1), len(n2), len(n3), len(alt))
	if err != nil {
		return nil, nil, nil, err
	}
	o, err := coord.Resolve(opts...)
	if err != nil {
		return nil, nil, nil, err
	}

	x, y, z = make([]float64, n), make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		lat, lon := toGeodeticRad(r3.Vec{X: coord.At(n1, i), Y: coord.At(n2, i), Z: coord.At(n3, i)})
		p := geodetic.ToECEFRad(o.Ellipsoid, lat, lon, coord.At(alt, i))
		x[i], y[i], z[i] = p.X, p.Y, p.Z
	}
	return x, y, z, nil
}
