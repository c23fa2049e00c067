package diffusion

import (
	"math"
	"math/rand"
	"testing"

	"github.com/teslashibe/go-explore/pkg/model"
)

func TestScheduler_TimestepsDescending(t *testing.T) {
	s := NewScheduler(10)
	if err := s.SetTimesteps(10); err != nil {
		t.Fatalf("SetTimesteps failed: %v", err)
	}

	ts := s.Timesteps()
	if len(ts) != 10 {
		t.Fatalf("Expected 10 timesteps, got %d", len(ts))
	}
	if ts[0] != 9 || ts[len(ts)-1] != 0 {
		t.Errorf("Expected sequence 9..0, got first=%d last=%d", ts[0], ts[len(ts)-1])
	}
	for i := 1; i < len(ts); i++ {
		if ts[i] >= ts[i-1] {
			t.Fatalf("Timesteps not strictly descending at %d: %v", i, ts)
		}
	}
}

func TestScheduler_SetTimestepsOutOfRange(t *testing.T) {
	s := NewScheduler(10)
	if err := s.SetTimesteps(0); err == nil {
		t.Error("Expected error for zero inference steps")
	}
	if err := s.SetTimesteps(11); err == nil {
		t.Error("Expected error for more inference steps than train steps")
	}
}

func TestScheduler_StepIsDeterministic(t *testing.T) {
	s := NewScheduler(10)
	if err := s.SetTimesteps(10); err != nil {
		t.Fatal(err)
	}

	sample := model.NewBatch(2, 3)
	noise := model.NewBatch(2, 3)
	rng := rand.New(rand.NewSource(7))
	for i := range sample.Data {
		sample.Data[i] = rng.NormFloat64()
		noise.Data[i] = rng.NormFloat64()
	}

	a := s.Step(noise, 5, sample.Clone(), rand.New(rand.NewSource(42)))
	b := s.Step(noise, 5, sample.Clone(), rand.New(rand.NewSource(42)))

	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("Step not bit-identical at %d: %v vs %v", i, a.Data[i], b.Data[i])
		}
	}
}

func TestScheduler_FinalStepAddsNoNoise(t *testing.T) {
	s := NewScheduler(10)
	if err := s.SetTimesteps(10); err != nil {
		t.Fatal(err)
	}

	sample := model.NewBatch(1, 2)
	sample.Set(0, 0, 0.4, -0.2)
	noise := model.NewBatch(1, 2)

	// Different seeds must not matter at t=0.
	a := s.Step(noise, 0, sample.Clone(), rand.New(rand.NewSource(1)))
	b := s.Step(noise, 0, sample.Clone(), rand.New(rand.NewSource(2)))

	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("t=0 step depends on rng: %v vs %v", a.Data, b.Data)
		}
	}
}

func TestScheduler_StepContractsTowardClippedRange(t *testing.T) {
	s := NewScheduler(10)
	if err := s.SetTimesteps(10); err != nil {
		t.Fatal(err)
	}

	// A wildly out-of-range sample with zero predicted noise must land in
	// a bounded region: x0 is clipped to [-1, 1] before reconstruction.
	sample := model.NewBatch(1, 1)
	sample.Set(0, 0, 50, -50)
	noise := model.NewBatch(1, 1)

	out := s.Step(noise, 0, sample, rand.New(rand.NewSource(0)))
	dx, dy := out.At(0, 0)
	if math.Abs(dx) > 1.0001 || math.Abs(dy) > 1.0001 {
		t.Errorf("Final step output outside clipped range: (%v, %v)", dx, dy)
	}
}
