package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Kinematics holds the robot's motion limits from robot.yaml.
type Kinematics struct {
	MaxV      float64 `yaml:"max_v"`      // m/s
	MaxW      float64 `yaml:"max_w"`      // rad/s
	FrameRate float64 `yaml:"frame_rate"` // Hz, drives the planning tick
}

// ModelSource points at the files backing one named model.
type ModelSource struct {
	ConfigPath        string `yaml:"config_path"`
	VisionEncoderPath string `yaml:"vision_encoder_path"`
	NoisePredPath     string `yaml:"noise_pred_path"`
	DepthPath         string `yaml:"depth_path"`
}

// ModelParams are the hyperparameters of a trained policy.
type ModelParams struct {
	ContextSize       int    `yaml:"context_size"`
	LenTrajPred       int    `yaml:"len_traj_pred"`
	NumDiffusionIters int    `yaml:"num_diffusion_iters"`
	ImageSize         [2]int `yaml:"image_size"` // height, width
	Normalize         bool   `yaml:"normalize"`
}

// Intrinsics is a pinhole camera matrix loaded from a per-robot file.
type Intrinsics struct {
	Fx float64 `yaml:"fx"`
	Fy float64 `yaml:"fy"`
	Cx float64 `yaml:"cx"`
	Cy float64 `yaml:"cy"`
}

// LoadKinematics reads robot.yaml.
func LoadKinematics(path string) (Kinematics, error) {
	var k Kinematics
	if err := readYAML(path, &k); err != nil {
		return Kinematics{}, err
	}
	if k.FrameRate <= 0 {
		return Kinematics{}, fmt.Errorf("%s: frame_rate must be positive, got %v", path, k.FrameRate)
	}
	if k.MaxV <= 0 {
		return Kinematics{}, fmt.Errorf("%s: max_v must be positive, got %v", path, k.MaxV)
	}
	return k, nil
}

// LoadModelSource resolves a model name against models.yaml. Unknown model
// names are a fatal startup condition for callers.
func LoadModelSource(path, name string) (ModelSource, error) {
	sources := map[string]ModelSource{}
	if err := readYAML(path, &sources); err != nil {
		return ModelSource{}, err
	}
	src, ok := sources[name]
	if !ok {
		return ModelSource{}, fmt.Errorf("unknown model %q in %s", name, path)
	}
	return src, nil
}

// LoadModelParams reads the hyperparameter file a ModelSource points at.
func LoadModelParams(path string) (ModelParams, error) {
	var p ModelParams
	if err := readYAML(path, &p); err != nil {
		return ModelParams{}, err
	}
	if p.ContextSize <= 0 || p.LenTrajPred <= 0 || p.NumDiffusionIters <= 0 {
		return ModelParams{}, fmt.Errorf("%s: context_size, len_traj_pred and num_diffusion_iters must be positive", path)
	}
	if p.ImageSize[0] <= 0 || p.ImageSize[1] <= 0 {
		return ModelParams{}, fmt.Errorf("%s: image_size must be positive", path)
	}
	return p, nil
}

// LoadIntrinsics reads a camera matrix file. The path is resolved relative
// to dir when not absolute.
func LoadIntrinsics(dir, path string) (Intrinsics, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	var in Intrinsics
	if err := readYAML(path, &in); err != nil {
		return Intrinsics{}, err
	}
	if in.Fx <= 0 || in.Fy <= 0 {
		return Intrinsics{}, fmt.Errorf("%s: fx and fy must be positive", path)
	}
	return in, nil
}

func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
