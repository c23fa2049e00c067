package apf

import (
	"math"
	"testing"

	"github.com/teslashibe/go-explore/pkg/model"
	"github.com/teslashibe/go-explore/pkg/topview"
)

func obstacleSet(points ...topview.ObstaclePoint) topview.ObstacleSet {
	return topview.ObstacleSet{Points: points, Revision: 1}
}

func TestRepulsiveForce_BoundaryExclusive(t *testing.T) {
	c := New(1.0, 1.0)

	// Obstacle at distance exactly the influence range: zero contribution.
	fx, fy := c.RepulsiveForce(0, 0, []topview.ObstaclePoint{{Forward: 1.0, Lateral: 0}})
	if fx != 0 || fy != 0 {
		t.Errorf("Force at exact range = (%v, %v), want zero", fx, fy)
	}

	// Just inside the range it repels.
	fx, _ = c.RepulsiveForce(0, 0, []topview.ObstaclePoint{{Forward: 0.999, Lateral: 0}})
	if fx >= 0 {
		t.Errorf("Expected negative-forward repulsion just inside range, got fx = %v", fx)
	}
}

func TestRepulsiveForce_SingularityGuard(t *testing.T) {
	c := New(1.0, 1.0)
	fx, fy := c.RepulsiveForce(0.5, 0.5, []topview.ObstaclePoint{{Forward: 0.5, Lateral: 0.5}})
	if fx != 0 || fy != 0 {
		t.Errorf("Coincident obstacle must contribute zero, got (%v, %v)", fx, fy)
	}
}

func TestRepulsiveForce_InverseCubeDecay(t *testing.T) {
	c := New(10.0, 1.0)
	near, _ := c.RepulsiveForce(0, 0, []topview.ObstaclePoint{{Forward: 0.5}})
	far, _ := c.RepulsiveForce(0, 0, []topview.ObstaclePoint{{Forward: 1.0}})

	// Doubling the distance: |f| = 1/d^3 so the ratio is 8.
	if ratio := math.Abs(near) / math.Abs(far); math.Abs(ratio-8) > 1e-9 {
		t.Errorf("Expected 8x force at half distance, got ratio %v", ratio)
	}
}

func TestCorrectionAngle_Bounded(t *testing.T) {
	cases := []struct{ fx, fy float64 }{
		{0, 0},
		{1, 0},
		{-1, 0},
		{0, 1},
		{0, -1},
		{-3, 2},
		{1e-12, -1e9},
	}
	for _, tc := range cases {
		angle := CorrectionAngle(tc.fx, tc.fy)
		if angle < -math.Pi/4 || angle > math.Pi/4 {
			t.Errorf("CorrectionAngle(%v, %v) = %v, outside [-pi/4, pi/4]", tc.fx, tc.fy, angle)
		}
	}

	if CorrectionAngle(0, 0) != 0 {
		t.Error("Zero force vector must give zero correction")
	}
}

func TestRotation_IdentityAndRoundTrip(t *testing.T) {
	b := model.NewBatch(1, 3)
	b.Set(0, 0, 0.3, 0.1)
	b.Set(0, 1, 0.2, -0.2)
	b.Set(0, 2, 0.1, 0.4)

	// Zero angle is the identity.
	zero := b.Clone()
	rotateTrajectory(zero, 0, 0)
	for j := 0; j < 3; j++ {
		ax, ay := b.At(0, j)
		bx, by := zero.At(0, j)
		if ax != bx || ay != by {
			t.Errorf("Zero rotation changed step %d: (%v,%v) vs (%v,%v)", j, ax, ay, bx, by)
		}
	}

	// Rotate by theta then -theta restores the original.
	theta := 0.7
	round := b.Clone()
	rotateTrajectory(round, 0, theta)
	rotateTrajectory(round, 0, -theta)
	for j := 0; j < 3; j++ {
		ax, ay := b.At(0, j)
		bx, by := round.At(0, j)
		if math.Abs(ax-bx) > 1e-12 || math.Abs(ay-by) > 1e-12 {
			t.Errorf("Round-trip rotation drifted at step %d: (%v,%v) vs (%v,%v)", j, ax, ay, bx, by)
		}
	}
}

func TestApply_EmptyObstaclesPassThrough(t *testing.T) {
	c := New(1.0, 1.0)
	b := model.NewBatch(2, 2)
	b.Set(0, 0, 0.3, 0.0)
	b.Set(0, 1, 0.2, 0.1)
	b.Set(1, 0, -0.1, 0.2)

	out := c.Apply(b, topview.ObstacleSet{})
	for i := range b.Data {
		if out.Data[i] != b.Data[i] {
			t.Fatalf("Pass-through changed value at %d: %v vs %v", i, out.Data[i], b.Data[i])
		}
	}
}

func TestApply_SingleObstacleDeflects(t *testing.T) {
	// Obstacle dead ahead at forward 0.5; one step scaled to ground
	// position (forward 0.3, lateral 0).
	c := New(1.0, 1.0)
	b := model.NewBatch(1, 1)
	b.Set(0, 0, 0.3, 0.0)

	set := obstacleSet(topview.ObstaclePoint{Forward: 0.5, Lateral: 0})

	fx, fy := c.RepulsiveForce(0.3, 0, set.Points)
	if fx >= 0 {
		t.Errorf("Expected repulsion in the negative-forward direction, got fx = %v", fx)
	}
	if fy != 0 {
		t.Errorf("Expected no lateral force component, got fy = %v", fy)
	}

	out := c.Apply(b, set)
	dx, dy := out.At(0, 0)
	angle := math.Atan2(dy, dx)
	if angle == 0 {
		t.Error("Expected a nonzero heading correction")
	}
	if math.Abs(angle) > math.Pi/4+1e-12 {
		t.Errorf("Correction %v exceeds clamp bound", angle)
	}
	// Rigid rotation preserves step length.
	if got := math.Hypot(dx, dy); math.Abs(got-0.3) > 1e-12 {
		t.Errorf("Rotation changed step length: %v, want 0.3", got)
	}
}

func TestApply_WorstStepDrivesCorrection(t *testing.T) {
	// Two trajectories: one passes near the obstacle, one stays far away.
	// Only the close one should rotate.
	c := New(1.0, 1.0)
	b := model.NewBatch(2, 2)
	b.Set(0, 0, 0.3, 0.0)
	b.Set(0, 1, 0.15, 0.0) // accumulates to 0.45, close to the obstacle
	b.Set(1, 0, -0.5, 0.0) // heads away
	b.Set(1, 1, -0.5, 0.0)

	set := obstacleSet(topview.ObstaclePoint{Forward: 0.5, Lateral: 0})
	out := c.Apply(b, set)

	// Trajectory 0 turns.
	if dx, dy := out.At(0, 0); dx == 0.3 && dy == 0 {
		t.Error("Near trajectory was not corrected")
	}

	// Trajectory 1 is beyond influence at every step (distances 1.0 and
	// 1.5, boundary exclusive) so it is untouched.
	if dx, dy := out.At(1, 0); dx != -0.5 || dy != 0 {
		t.Errorf("Far trajectory changed: (%v, %v)", dx, dy)
	}
}
