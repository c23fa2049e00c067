package viz

import (
	"image"
	"testing"

	"github.com/teslashibe/go-explore/pkg/model"
)

func TestTrajectoryPixels_StartsAtRobot(t *testing.T) {
	b := model.NewBatch(1, 2)
	pts := trajectoryPixels(b, 0, 160, 228)

	if len(pts) != 3 {
		t.Fatalf("Expected start point plus one per step, got %d points", len(pts))
	}
	if pts[0] != image.Pt(160, 228) {
		t.Errorf("First point must be the robot anchor, got %v", pts[0])
	}
}

func TestTrajectoryPixels_ForwardGoesUp(t *testing.T) {
	b := model.NewBatch(1, 2)
	b.Set(0, 0, 1.0, 0) // 1m forward
	b.Set(0, 1, 1.0, 0) // 2m accumulated

	pts := trajectoryPixels(b, 0, 160, 228)

	if pts[1].Y >= 228 {
		t.Errorf("Forward motion should move up the image, got y=%d", pts[1].Y)
	}
	if pts[2].Y >= pts[1].Y {
		t.Errorf("Accumulated forward motion should keep rising: %d then %d", pts[1].Y, pts[2].Y)
	}
	if pts[1].X != 160 || pts[2].X != 160 {
		t.Error("Pure forward motion should not move laterally")
	}
	// 3 px per meter.
	if pts[1].Y != 228-3 || pts[2].Y != 228-6 {
		t.Errorf("Expected 3 px/m scaling, got y=%d,%d", pts[1].Y, pts[2].Y)
	}
}

func TestTrajectoryPixels_LateralGoesLeft(t *testing.T) {
	b := model.NewBatch(1, 1)
	b.Set(0, 0, 0, 2.0) // 2m to the robot's left

	pts := trajectoryPixels(b, 0, 160, 228)
	if pts[1].X != 160-6 {
		t.Errorf("Expected x=154 for 2m lateral, got %d", pts[1].X)
	}
	if pts[1].Y != 228 {
		t.Errorf("Pure lateral motion should stay on the anchor row, got y=%d", pts[1].Y)
	}
}

func TestTrajectoryColor_Encoding(t *testing.T) {
	if trajectoryColor(0, false) != primaryColor {
		t.Error("Primary uncorrected trajectory should be green")
	}
	if trajectoryColor(3, false) != sampleColor {
		t.Error("Secondary uncorrected trajectories should share the sample color")
	}
	if trajectoryColor(0, true) != primaryCorr {
		t.Error("Primary corrected trajectory should switch color")
	}
	if trajectoryColor(1, true) != sampleCorr {
		t.Error("Secondary corrected trajectories should switch color")
	}
}
