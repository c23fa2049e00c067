package diffusion

import (
	"fmt"
	"math/rand"

	"github.com/teslashibe/go-explore/pkg/model"
)

// Action statistics the policy was trained with. Model outputs live in
// [-1, 1] and un-normalize into these displacement ranges.
var (
	actionMin = [2]float64{-2.5, -4}
	actionMax = [2]float64{5, 4}
)

// Config holds sampler parameters.
type Config struct {
	NumSamples        int
	LenTrajPred       int
	NumDiffusionIters int
	ImageHeight       int
	ImageWidth        int
	Seed              int64
}

// Sampler turns a context window into a batch of candidate trajectories by
// iterative denoising. One instance is used per node; Sample is called once
// per planning tick.
type Sampler struct {
	cfg       Config
	encoder   model.VisionEncoder
	predictor model.NoisePredictor
	scheduler *Scheduler
	rng       *rand.Rand
}

// NewSampler wires the sampler to its policy networks. The seed fixes the
// random stream: two samplers with equal seeds and inputs produce
// bit-identical batches.
func NewSampler(cfg Config, encoder model.VisionEncoder, predictor model.NoisePredictor) (*Sampler, error) {
	if cfg.NumSamples <= 0 || cfg.LenTrajPred <= 0 || cfg.NumDiffusionIters <= 0 {
		return nil, fmt.Errorf("num samples, trajectory length and diffusion iterations must be positive")
	}

	scheduler := NewScheduler(cfg.NumDiffusionIters)
	if err := scheduler.SetTimesteps(cfg.NumDiffusionIters); err != nil {
		return nil, err
	}

	return &Sampler{
		cfg:       cfg,
		encoder:   encoder,
		predictor: predictor,
		scheduler: scheduler,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Sample runs one full denoising pass conditioned on the context window
// (ordered JPEG frames, oldest first) and returns the trajectory batch in
// displacement units. The denoising state is scoped to this call.
func (s *Sampler) Sample(obs [][]byte) (model.Batch, error) {
	// Exploration runs goal-free: the goal slot is filled with noise and
	// masked out, matching how the policy was trained for both modes.
	goal := make([]float32, 3*s.cfg.ImageHeight*s.cfg.ImageWidth)
	for i := range goal {
		goal[i] = float32(s.rng.NormFloat64())
	}

	cond, err := s.encoder.Encode(obs, goal, true)
	if err != nil {
		return model.Batch{}, fmt.Errorf("vision encoding: %w", err)
	}

	state := model.NewBatch(s.cfg.NumSamples, s.cfg.LenTrajPred)
	for i := range state.Data {
		state.Data[i] = s.rng.NormFloat64()
	}

	// Strictly ordered: each timestep's output is the next one's input.
	for _, t := range s.scheduler.Timesteps() {
		noisePred, err := s.predictor.Predict(state, t, cond)
		if err != nil {
			return model.Batch{}, fmt.Errorf("noise prediction at timestep %d: %w", t, err)
		}
		state = s.scheduler.Step(noisePred, t, state, s.rng)
	}

	return Actions(state), nil
}

// Actions converts a final denoising state from the model's native [-1, 1]
// range into (dx, dy) displacement units.
func Actions(state model.Batch) model.Batch {
	out := model.NewBatch(state.Samples, state.Steps)
	for i := 0; i < state.Samples; i++ {
		for j := 0; j < state.Steps; j++ {
			nx, ny := state.At(i, j)
			dx := (nx + 1) / 2 * (actionMax[0] - actionMin[0]) + actionMin[0]
			dy := (ny + 1) / 2 * (actionMax[1] - actionMin[1]) + actionMin[1]
			out.Set(i, j, dx, dy)
		}
	}
	return out
}
