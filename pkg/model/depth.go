package model

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// DepthEstimator runs monocular depth inference on one frame.
// Implementations must be safe for repeated sequential calls; the pipeline
// never calls Infer concurrently.
type DepthEstimator interface {
	// Infer predicts per-pixel metric depth for a JPEG frame.
	Infer(jpeg []byte) (DepthMap, error)

	// Close releases resources.
	Close() error
}

// ONNXDepth runs a metric depth network through OpenCV's DNN module.
// Input: (1, 3, H, W) RGB in [0,1]. Output: (1, 1, H, W) depth in meters.
type ONNXDepth struct {
	net       gocv.Net
	inputSize image.Point
	mu        sync.Mutex
}

// NewONNXDepth loads the depth network from an ONNX file.
func NewONNXDepth(modelPath string, width, height int) (*ONNXDepth, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}

	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load depth model from %s", modelPath)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &ONNXDepth{
		net:       net,
		inputSize: image.Pt(width, height),
	}, nil
}

// Infer predicts per-pixel depth for the frame.
func (d *ONNXDepth) Infer(jpeg []byte) (DepthMap, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return DepthMap{}, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return DepthMap{}, fmt.Errorf("empty image")
	}

	blob := gocv.BlobFromImage(img, 1.0/255.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")

	output := d.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return DepthMap{}, fmt.Errorf("read depth output: %w", err)
	}

	w, h := d.inputSize.X, d.inputSize.Y
	if len(data) < w*h {
		return DepthMap{}, fmt.Errorf("depth output shape mismatch: got %d values, want %d", len(data), w*h)
	}

	depth := DepthMap{Width: w, Height: h, Data: make([]float32, w*h)}
	copy(depth.Data, data[:w*h])
	return depth, nil
}

// Close releases the network.
func (d *ONNXDepth) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
