package model

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// VisionEncoder condenses the context window plus a goal image into a
// single conditioning vector.
//
// obs is the ordered context window (oldest first) as JPEG frames. goal is
// an image-shaped tensor (3, H, W); during exploration it is pure noise and
// goalMasked marks it as absent so the policy runs goal-free.
type VisionEncoder interface {
	Encode(obs [][]byte, goal []float32, goalMasked bool) ([]float32, error)
	Close() error
}

// NoisePredictor predicts the noise component of a denoising state.
//
// sample has shape (Samples, Steps, 2); cond is the conditioning vector
// shared by every sample in the batch. The returned batch has the same
// shape as sample.
type NoisePredictor interface {
	Predict(sample Batch, timestep int, cond []float32) (Batch, error)
	Close() error
}

// ONNXPolicy backs both policy calls with ONNX networks through OpenCV's
// DNN module.
//
// Vision encoder inputs: obs_img (1, 3*(ctx+1), H, W), goal_img (1, 3, H, W),
// goal_mask (1). Output: the conditioning vector.
// Noise predictor inputs: sample (N, L, 2), timestep (1), global_cond (N, D).
// Output: predicted noise (N, L, 2).
type ONNXPolicy struct {
	encoder   gocv.Net
	noisePred gocv.Net
	imageSize image.Point // policy input size (W, H)
	mu        sync.Mutex
}

// NewONNXPolicy loads the vision encoder and noise prediction networks.
// imageH and imageW are the policy's input image dimensions.
func NewONNXPolicy(encoderPath, noisePredPath string, imageH, imageW int) (*ONNXPolicy, error) {
	for _, path := range []string{encoderPath, noisePredPath} {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("model file not found: %s", path)
		}
	}

	encoder := gocv.ReadNetFromONNX(encoderPath)
	if encoder.Empty() {
		return nil, fmt.Errorf("failed to load vision encoder from %s", encoderPath)
	}

	noisePred := gocv.ReadNetFromONNX(noisePredPath)
	if noisePred.Empty() {
		encoder.Close()
		return nil, fmt.Errorf("failed to load noise predictor from %s", noisePredPath)
	}

	for _, net := range []*gocv.Net{&encoder, &noisePred} {
		net.SetPreferableBackend(gocv.NetBackendDefault)
		net.SetPreferableTarget(gocv.NetTargetCPU)
	}

	return &ONNXPolicy{
		encoder:   encoder,
		noisePred: noisePred,
		imageSize: image.Pt(imageW, imageH),
	}, nil
}

// Encode runs the vision encoder over the context window.
func (p *ONNXPolicy) Encode(obs [][]byte, goal []float32, goalMasked bool) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w, h := p.imageSize.X, p.imageSize.Y
	if len(goal) != 3*h*w {
		return nil, fmt.Errorf("goal tensor shape mismatch: got %d values, want %d", len(goal), 3*h*w)
	}

	// Stack the context frames channel-wise into one (1, 3*n, H, W) blob.
	obsBlob := gocv.NewMatWithSizes([]int{1, 3 * len(obs), h, w}, gocv.MatTypeCV32F)
	defer obsBlob.Close()

	obsData, err := obsBlob.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("obs blob: %w", err)
	}

	for i, jpeg := range obs {
		img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
		if err != nil {
			return nil, fmt.Errorf("decode context frame %d: %w", i, err)
		}
		frameBlob := gocv.BlobFromImage(img, 1.0/255.0, p.imageSize, gocv.NewScalar(0, 0, 0, 0), true, false)
		img.Close()

		frameData, err := frameBlob.DataPtrFloat32()
		if err != nil {
			frameBlob.Close()
			return nil, fmt.Errorf("context frame %d blob: %w", i, err)
		}
		copy(obsData[i*3*h*w:(i+1)*3*h*w], frameData)
		frameBlob.Close()
	}

	goalBlob := gocv.NewMatWithSizes([]int{1, 3, h, w}, gocv.MatTypeCV32F)
	defer goalBlob.Close()
	goalData, err := goalBlob.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("goal blob: %w", err)
	}
	copy(goalData, goal)

	maskBlob := gocv.NewMatWithSizes([]int{1}, gocv.MatTypeCV32F)
	defer maskBlob.Close()
	if goalMasked {
		maskBlob.SetFloatAt(0, 0, 1)
	}

	p.encoder.SetInput(obsBlob, "obs_img")
	p.encoder.SetInput(goalBlob, "goal_img")
	p.encoder.SetInput(maskBlob, "goal_mask")

	output := p.encoder.Forward("")
	defer output.Close()

	outData, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read conditioning vector: %w", err)
	}

	cond := make([]float32, len(outData))
	copy(cond, outData)
	return cond, nil
}

// Predict runs one noise-prediction pass over the whole batch.
func (p *ONNXPolicy) Predict(sample Batch, timestep int, cond []float32) (Batch, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sampleBlob := gocv.NewMatWithSizes([]int{sample.Samples, sample.Steps, 2}, gocv.MatTypeCV32F)
	defer sampleBlob.Close()
	sampleData, err := sampleBlob.DataPtrFloat32()
	if err != nil {
		return Batch{}, fmt.Errorf("sample blob: %w", err)
	}
	for i, v := range sample.Data {
		sampleData[i] = float32(v)
	}

	tsBlob := gocv.NewMatWithSizes([]int{1}, gocv.MatTypeCV32F)
	defer tsBlob.Close()
	tsBlob.SetFloatAt(0, 0, float32(timestep))

	// Replicate the conditioning vector across the batch.
	condBlob := gocv.NewMatWithSizes([]int{sample.Samples, len(cond)}, gocv.MatTypeCV32F)
	defer condBlob.Close()
	condData, err := condBlob.DataPtrFloat32()
	if err != nil {
		return Batch{}, fmt.Errorf("cond blob: %w", err)
	}
	for i := 0; i < sample.Samples; i++ {
		copy(condData[i*len(cond):(i+1)*len(cond)], cond)
	}

	p.noisePred.SetInput(sampleBlob, "sample")
	p.noisePred.SetInput(tsBlob, "timestep")
	p.noisePred.SetInput(condBlob, "global_cond")

	output := p.noisePred.Forward("")
	defer output.Close()

	outData, err := output.DataPtrFloat32()
	if err != nil {
		return Batch{}, fmt.Errorf("read noise prediction: %w", err)
	}
	if len(outData) != len(sample.Data) {
		return Batch{}, fmt.Errorf("noise prediction shape mismatch: got %d values, want %d", len(outData), len(sample.Data))
	}

	noise := NewBatch(sample.Samples, sample.Steps)
	for i, v := range outData {
		noise.Data[i] = float64(v)
	}
	return noise, nil
}

// Close releases both networks.
func (p *ONNXPolicy) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.encoder.Close(); err != nil {
		return err
	}
	return p.noisePred.Close()
}
