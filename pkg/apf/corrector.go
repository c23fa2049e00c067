// Package apf applies artificial-potential-field correction to sampled
// trajectory batches: each trajectory is rigidly rotated away from the
// strongest nearby repulsive force so heading changes while shape is
// preserved.
package apf

import (
	"math"

	"github.com/teslashibe/go-explore/pkg/model"
	"github.com/teslashibe/go-explore/pkg/topview"
)

const (
	// minDistance guards the inverse-cube singularity.
	minDistance = 1e-6

	// maxCorrection bounds the heading correction so the corrector can
	// bias a trajectory but never reverse its intent.
	maxCorrection = math.Pi / 4
)

// Corrector perturbs trajectory batches away from mapped obstacles.
type Corrector struct {
	// InfluenceRange is the radius inside which an obstacle repels,
	// exclusive at the boundary.
	InfluenceRange float64

	// Scale converts normalized displacement steps into meters. For a
	// policy emitting normalized motion this is maxV / tickRate.
	Scale float64
}

// New creates a corrector.
func New(influenceRange, scale float64) *Corrector {
	return &Corrector{InfluenceRange: influenceRange, Scale: scale}
}

// RepulsiveForce sums inverse-cube repulsion at a ground position from all
// obstacles within the influence range. Obstacles at or beyond the range,
// or closer than the singularity threshold, contribute nothing.
func (c *Corrector) RepulsiveForce(x, y float64, obstacles []topview.ObstaclePoint) (fx, fy float64) {
	for _, obs := range obstacles {
		vx := x - obs.Forward
		vy := y - obs.Lateral
		d := math.Hypot(vx, vy)
		if d < minDistance || d >= c.InfluenceRange {
			continue
		}
		// 1/d^3 decay: only near-field obstacles matter.
		s := 1 / (d * d * d)
		fx += s * vx / d
		fy += s * vy / d
	}
	return fx, fy
}

// Apply corrects each trajectory in the batch against the obstacle set and
// returns the corrected batch. With no obstacles the batch passes through
// with its values unchanged.
//
// Per trajectory only the single step with the largest repulsive-force
// magnitude drives the correction; summing over steps would over-correct
// for incidental far contacts.
func (c *Corrector) Apply(batch model.Batch, obstacles topview.ObstacleSet) model.Batch {
	if obstacles.Empty() {
		return batch
	}

	out := batch.Clone()
	for i := 0; i < out.Samples; i++ {
		var maxFx, maxFy, maxMag float64
		var accX, accY float64
		for j := 0; j < out.Steps; j++ {
			dx, dy := out.At(i, j)
			accX += dx
			accY += dy

			fx, fy := c.RepulsiveForce(accX*c.Scale, accY*c.Scale, obstacles.Points)
			if mag := math.Hypot(fx, fy); mag > maxMag {
				maxMag = mag
				maxFx, maxFy = fx, fy
			}
		}

		angle := CorrectionAngle(maxFx, maxFy)
		rotateTrajectory(out, i, angle)
	}
	return out
}

// CorrectionAngle converts a force vector into a bounded heading
// correction. A zero vector corrects by zero.
func CorrectionAngle(fx, fy float64) float64 {
	angle := math.Atan2(fy, fx)
	if angle > maxCorrection {
		return maxCorrection
	}
	if angle < -maxCorrection {
		return -maxCorrection
	}
	return angle
}

// rotateTrajectory applies a rigid 2-D rotation to every step of
// trajectory i, redirecting heading while preserving shape.
func rotateTrajectory(b model.Batch, i int, angle float64) {
	if angle == 0 {
		return
	}
	cos, sin := math.Cos(angle), math.Sin(angle)
	for j := 0; j < b.Steps; j++ {
		dx, dy := b.At(i, j)
		b.Set(i, j, cos*dx-sin*dy, sin*dx+cos*dy)
	}
}
