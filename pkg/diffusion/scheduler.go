// Package diffusion implements denoising trajectory sampling: a DDPM
// scheduler with a squared-cosine noise schedule and the iterative loop
// that refines pure noise into a batch of candidate trajectories.
package diffusion

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/teslashibe/go-explore/pkg/model"
)

const (
	maxBeta     = 0.999
	minVariance = 1e-20
)

// Scheduler is a DDPM noise scheduler with the squaredcos_cap_v2 beta
// schedule, epsilon prediction and sample clipping to [-1, 1].
type Scheduler struct {
	trainSteps    int
	alphasCumprod []float64
	timesteps     []int
	strideDiv     int
}

// NewScheduler creates a scheduler with the given number of training
// timesteps.
func NewScheduler(trainSteps int) *Scheduler {
	s := &Scheduler{trainSteps: trainSteps}

	alphaBar := func(t float64) float64 {
		c := math.Cos((t + 0.008) / 1.008 * math.Pi / 2)
		return c * c
	}

	s.alphasCumprod = make([]float64, trainSteps)
	cumprod := 1.0
	for i := 0; i < trainSteps; i++ {
		t1 := float64(i) / float64(trainSteps)
		t2 := float64(i+1) / float64(trainSteps)
		beta := math.Min(1-alphaBar(t2)/alphaBar(t1), maxBeta)
		cumprod *= 1 - beta
		s.alphasCumprod[i] = cumprod
	}

	return s
}

// SetTimesteps precomputes the descending inference timestep sequence for
// n denoising iterations.
func (s *Scheduler) SetTimesteps(n int) error {
	if n <= 0 || n > s.trainSteps {
		return fmt.Errorf("inference steps %d out of range (1..%d)", n, s.trainSteps)
	}

	stride := s.trainSteps / n
	s.strideDiv = stride
	s.timesteps = make([]int, 0, n)
	for i := n - 1; i >= 0; i-- {
		s.timesteps = append(s.timesteps, i*stride)
	}
	return nil
}

// Timesteps returns the precomputed descending sequence. SetTimesteps must
// have been called.
func (s *Scheduler) Timesteps() []int {
	return s.timesteps
}

// Step applies one denoising update: given the predicted noise at timestep
// t, it moves sample to the next lower-noise state. For t > 0 the update
// adds schedule-scaled noise drawn from rng, so a fixed seed gives
// bit-identical results.
func (s *Scheduler) Step(noisePred model.Batch, t int, sample model.Batch, rng *rand.Rand) model.Batch {
	acpT := s.alphasCumprod[t]
	acpPrev := 1.0
	if prevT := t - s.strideDiv; prevT >= 0 {
		acpPrev = s.alphasCumprod[prevT]
	}

	betaProd := 1 - acpT
	currentAlpha := acpT / acpPrev
	currentBeta := 1 - currentAlpha

	// Reconstruct the clean sample from the noise estimate, clipped to the
	// model's native [-1, 1] action range.
	x0 := make([]float64, len(sample.Data))
	copy(x0, sample.Data)
	floats.AddScaled(x0, -math.Sqrt(betaProd), noisePred.Data)
	floats.Scale(1/math.Sqrt(acpT), x0)
	for i, v := range x0 {
		x0[i] = math.Max(-1, math.Min(1, v))
	}

	coefX0 := math.Sqrt(acpPrev) * currentBeta / betaProd
	coefXt := math.Sqrt(currentAlpha) * (1 - acpPrev) / betaProd

	prev := model.NewBatch(sample.Samples, sample.Steps)
	floats.AddScaled(prev.Data, coefX0, x0)
	floats.AddScaled(prev.Data, coefXt, sample.Data)

	if t > 0 {
		variance := math.Max((1-acpPrev)/(1-acpT)*currentBeta, minVariance)
		sigma := math.Sqrt(variance)
		for i := range prev.Data {
			prev.Data[i] += sigma * rng.NormFloat64()
		}
	}

	return prev
}
