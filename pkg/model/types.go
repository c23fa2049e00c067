// Package model defines the neural-network boundary of the exploration
// pipeline. The networks themselves are opaque: this package specifies
// their input/output tensor shapes, provides ONNX-backed implementations
// via OpenCV's DNN module, and deterministic mocks for testing.
package model

// Batch holds sampled trajectories as a dense (Samples, Steps, 2) tensor.
// Index 0 is the canonical trajectory used for publishing; the ordering of
// the remaining entries carries no meaning beyond diversity.
type Batch struct {
	Samples int
	Steps   int
	Data    []float64 // row-major, len = Samples*Steps*2
}

// NewBatch allocates a zeroed batch.
func NewBatch(samples, steps int) Batch {
	return Batch{
		Samples: samples,
		Steps:   steps,
		Data:    make([]float64, samples*steps*2),
	}
}

// At returns step j of trajectory i as (dx, dy).
func (b Batch) At(i, j int) (float64, float64) {
	k := (i*b.Steps + j) * 2
	return b.Data[k], b.Data[k+1]
}

// Set writes step j of trajectory i.
func (b Batch) Set(i, j int, dx, dy float64) {
	k := (i*b.Steps + j) * 2
	b.Data[k] = dx
	b.Data[k+1] = dy
}

// Clone returns a deep copy.
func (b Batch) Clone() Batch {
	out := Batch{Samples: b.Samples, Steps: b.Steps, Data: make([]float64, len(b.Data))}
	copy(out.Data, b.Data)
	return out
}

// Flatten32 returns the batch contents as float32 in row-major order, the
// layout used on the sampled-actions wire message.
func (b Batch) Flatten32() []float32 {
	out := make([]float32, len(b.Data))
	for i, v := range b.Data {
		out[i] = float32(v)
	}
	return out
}

// DepthMap is a per-pixel metric depth prediction for one frame.
type DepthMap struct {
	Width  int
	Height int
	Data   []float32 // row-major, len = Width*Height, meters
}

// At returns the depth at pixel (row v, column u).
func (d DepthMap) At(v, u int) float32 {
	return d.Data[v*d.Width+u]
}
