package diffusion

import (
	"testing"

	"github.com/teslashibe/go-explore/pkg/model"
)

func testConfig(seed int64) Config {
	return Config{
		NumSamples:        4,
		LenTrajPred:       8,
		NumDiffusionIters: 10,
		ImageHeight:       96,
		ImageWidth:        96,
		Seed:              seed,
	}
}

func contextFrames(n int) [][]byte {
	frames := make([][]byte, n)
	for i := range frames {
		frames[i] = []byte{byte(i)}
	}
	return frames
}

func TestSampler_FixedSeedIsBitIdentical(t *testing.T) {
	runOnce := func() model.Batch {
		policy := model.NewMockPolicy()
		s, err := NewSampler(testConfig(1234), policy, policy)
		if err != nil {
			t.Fatalf("NewSampler failed: %v", err)
		}
		batch, err := s.Sample(contextFrames(4))
		if err != nil {
			t.Fatalf("Sample failed: %v", err)
		}
		return batch
	}

	a := runOnce()
	b := runOnce()

	if a.Samples != 4 || a.Steps != 8 {
		t.Fatalf("Unexpected batch shape: %dx%d", a.Samples, a.Steps)
	}
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("Batches differ at %d: %v vs %v", i, a.Data[i], b.Data[i])
		}
	}
}

func TestSampler_DifferentSeedsDiffer(t *testing.T) {
	policy := model.NewMockPolicy()

	s1, err := NewSampler(testConfig(1), policy, policy)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := NewSampler(testConfig(2), policy, policy)
	if err != nil {
		t.Fatal(err)
	}

	a, err := s1.Sample(contextFrames(4))
	if err != nil {
		t.Fatal(err)
	}
	b, err := s2.Sample(contextFrames(4))
	if err != nil {
		t.Fatal(err)
	}

	same := true
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("Different seeds produced identical batches")
	}
}

func TestSampler_RunsEveryTimestep(t *testing.T) {
	policy := model.NewMockPolicy()
	s, err := NewSampler(testConfig(9), policy, policy)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Sample(contextFrames(4)); err != nil {
		t.Fatal(err)
	}

	if got := policy.PredictCalls(); got != 10 {
		t.Errorf("Expected 10 noise predictions, got %d", got)
	}
	if got := policy.EncodeCalls(); got != 1 {
		t.Errorf("Expected 1 vision encoding per tick, got %d", got)
	}
}

func TestActions_Unnormalize(t *testing.T) {
	state := model.NewBatch(1, 3)
	state.Set(0, 0, -1, -1) // bottom of the native range
	state.Set(0, 1, 1, 1)   // top
	state.Set(0, 2, 0, 0)   // midpoint

	out := Actions(state)

	if dx, dy := out.At(0, 0); dx != actionMin[0] || dy != actionMin[1] {
		t.Errorf("At(-1,-1) = (%v, %v), want (%v, %v)", dx, dy, actionMin[0], actionMin[1])
	}
	if dx, dy := out.At(0, 1); dx != actionMax[0] || dy != actionMax[1] {
		t.Errorf("At(1,1) = (%v, %v), want (%v, %v)", dx, dy, actionMax[0], actionMax[1])
	}
	if dx, dy := out.At(0, 2); dx != (actionMin[0]+actionMax[0])/2 || dy != (actionMin[1]+actionMax[1])/2 {
		t.Errorf("At(0,0) = (%v, %v), want midpoint", dx, dy)
	}
}
