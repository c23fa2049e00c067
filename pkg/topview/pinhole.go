// Package topview turns a single depth inference into a top-down obstacle
// set: per-pixel depth is unprojected to camera-frame 3-D points, filtered
// by validity range, rasterized into a discretized top view, and reduced to
// one nearest obstacle per lateral bin.
package topview

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Pinhole is an intrinsic camera model. It is built once at startup from
// the per-robot intrinsics matrix and immutable afterwards.
type Pinhole struct {
	k *mat.Dense

	// Cached inverse entries for the per-pixel unprojection loop.
	ifx, ify float64
	icx, icy float64
}

// NewPinhole builds the camera model from focal lengths and principal
// point, both in pixels.
func NewPinhole(fx, fy, cx, cy float64) (*Pinhole, error) {
	k := mat.NewDense(3, 3, []float64{
		fx, 0, cx,
		0, fy, cy,
		0, 0, 1,
	})

	var kinv mat.Dense
	if err := kinv.Inverse(k); err != nil {
		return nil, fmt.Errorf("intrinsics matrix not invertible: %w", err)
	}

	return &Pinhole{
		k:   k,
		ifx: kinv.At(0, 0),
		icx: kinv.At(0, 2),
		ify: kinv.At(1, 1),
		icy: kinv.At(1, 2),
	}, nil
}

// K returns the intrinsics matrix.
func (p *Pinhole) K() mat.Matrix {
	return p.k
}

// Unproject maps pixel (u, v) at depth z to camera-frame (X, Y) in meters.
// X is right, Y is down, Z (= z) is forward.
func (p *Pinhole) Unproject(u, v, z float64) (x, y float64) {
	return (p.ifx*u + p.icx) * z, (p.ify*v + p.icy) * z
}
