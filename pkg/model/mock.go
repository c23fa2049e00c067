package model

import (
	"fmt"
	"sync/atomic"
)

// MockDepth is a deterministic depth estimator for testing.
// It returns a fixed depth map, or the configured error.
type MockDepth struct {
	Map DepthMap
	Err error

	inferCalls atomic.Int64
}

// NewMockDepth creates a mock that returns a uniform depth map.
func NewMockDepth(width, height int, depth float32) *MockDepth {
	m := DepthMap{Width: width, Height: height, Data: make([]float32, width*height)}
	for i := range m.Data {
		m.Data[i] = depth
	}
	return &MockDepth{Map: m}
}

// Infer returns the configured depth map.
func (m *MockDepth) Infer(jpeg []byte) (DepthMap, error) {
	m.inferCalls.Add(1)
	if m.Err != nil {
		return DepthMap{}, m.Err
	}
	return m.Map, nil
}

// InferCalls returns how many times Infer has been invoked.
func (m *MockDepth) InferCalls() int64 {
	return m.inferCalls.Load()
}

// Close is a no-op.
func (m *MockDepth) Close() error { return nil }

// MockPolicy is a deterministic policy backend for testing. Encode returns
// a fixed conditioning vector; Predict scales the sample by NoiseGain so
// the denoising loop contracts toward a repeatable trajectory batch.
type MockPolicy struct {
	Cond      []float32
	NoiseGain float64
	EncodeErr error

	encodeCalls  atomic.Int64
	predictCalls atomic.Int64
}

// NewMockPolicy creates a mock with a small conditioning vector.
func NewMockPolicy() *MockPolicy {
	return &MockPolicy{
		Cond:      []float32{0.1, 0.2, 0.3, 0.4},
		NoiseGain: 0.5,
	}
}

// Encode returns the configured conditioning vector.
func (m *MockPolicy) Encode(obs [][]byte, goal []float32, goalMasked bool) ([]float32, error) {
	m.encodeCalls.Add(1)
	if m.EncodeErr != nil {
		return nil, m.EncodeErr
	}
	if len(obs) == 0 {
		return nil, fmt.Errorf("empty context window")
	}
	return m.Cond, nil
}

// Predict returns the sample scaled by NoiseGain. Deterministic in its
// inputs, which is what the seeded-sampling tests rely on.
func (m *MockPolicy) Predict(sample Batch, timestep int, cond []float32) (Batch, error) {
	m.predictCalls.Add(1)
	out := NewBatch(sample.Samples, sample.Steps)
	for i, v := range sample.Data {
		out.Data[i] = v * m.NoiseGain
	}
	return out, nil
}

// EncodeCalls returns how many times Encode has been invoked.
func (m *MockPolicy) EncodeCalls() int64 { return m.encodeCalls.Load() }

// PredictCalls returns how many times Predict has been invoked.
func (m *MockPolicy) PredictCalls() int64 { return m.predictCalls.Load() }

// Close is a no-op.
func (m *MockPolicy) Close() error { return nil }
