package topview

import (
	"fmt"
	"math"
	"time"

	"github.com/teslashibe/go-explore/internal/log"
	"github.com/teslashibe/go-explore/pkg/contextbuf"
	"github.com/teslashibe/go-explore/pkg/model"
)

// minForward is the floor applied after the safety-margin shift so an
// obstacle can never collapse onto the robot origin.
const minForward = 1e-3

// groundPlaneY rejects depth returns from the ground plane and below the
// horizon. Camera Y points down.
const groundPlaneY = -0.05

// ObstaclePoint is one mapped obstacle in robot-relative ground-plane
// coordinates. Forward and Lateral are meters; Depth is the raw measured
// depth the point was derived from, before the safety-margin shift.
type ObstaclePoint struct {
	Forward float64
	Lateral float64
	Depth   float64
}

// ObstacleSet is the most recent complete set of obstacle points, one per
// occupied lateral bin. It is a value: the projector replaces it wholesale
// on each depth inference, and consumers read it without blocking the next
// update. An empty set signals a clear path, not a fault.
type ObstacleSet struct {
	Points   []ObstaclePoint
	Revision uint64
	Stamp    time.Time
}

// Empty reports whether no obstacles are mapped.
func (s ObstacleSet) Empty() bool {
	return len(s.Points) == 0
}

// Config holds projection parameters.
type Config struct {
	GridWidth    int // top-view pixels
	GridHeight   int
	SamplingStep int // lateral column spacing, pixels

	SafetyMargin       float64 // meters, subtracted from measured depth
	ProximityThreshold float64 // meters, sensing range
}

// DefaultConfig returns the grid geometry used on every supported robot.
// Safety margin and proximity threshold are per-robot and must be set by
// the caller.
func DefaultConfig() Config {
	return Config{
		GridWidth:    400,
		GridHeight:   400,
		SamplingStep: 5,
	}
}

// Projector owns the obstacle set. Update runs depth inference on a frame
// and replaces the set; a failed inference leaves the previous set intact.
type Projector struct {
	cfg        Config
	depth      model.DepthEstimator
	cam        *Pinhole
	resolution float64 // pixels per meter

	latest ObstacleSet
}

// New creates a projector.
func New(cfg Config, depth model.DepthEstimator, cam *Pinhole) (*Projector, error) {
	if cfg.GridWidth <= 0 || cfg.GridHeight <= 0 || cfg.SamplingStep <= 0 {
		return nil, fmt.Errorf("grid dimensions and sampling step must be positive")
	}
	if cfg.ProximityThreshold <= 0 {
		return nil, fmt.Errorf("proximity threshold must be positive, got %v", cfg.ProximityThreshold)
	}

	return &Projector{
		cfg:        cfg,
		depth:      depth,
		cam:        cam,
		resolution: float64(cfg.GridWidth) / cfg.ProximityThreshold,
	}, nil
}

// Update runs depth inference on the frame and atomically replaces the
// obstacle set. On inference failure the previous set is retained.
func (p *Projector) Update(frame contextbuf.Frame) error {
	depthMap, err := p.depth.Infer(frame.JPEG)
	if err != nil {
		log.Warn("depth inference failed, keeping previous obstacle set",
			"error", err, "revision", p.latest.Revision)
		return fmt.Errorf("depth inference: %w", err)
	}

	set := p.project(depthMap, frame.Stamp)
	set.Revision = p.latest.Revision + 1
	p.latest = set

	log.Debug("obstacle set updated",
		"obstacles", len(set.Points), "revision", set.Revision)
	return nil
}

// Obstacles returns the latest obstacle set.
func (p *Projector) Obstacles() ObstacleSet {
	return p.latest
}

// project rasterizes a depth map into the sampled obstacle set.
func (p *Projector) project(m model.DepthMap, stamp time.Time) ObstacleSet {
	type cell struct {
		occupied bool
		point    ObstaclePoint
	}
	columns := make([]cell, p.cfg.GridWidth/p.cfg.SamplingStep+1)

	for v := 0; v < m.Height; v++ {
		for u := 0; u < m.Width; u++ {
			z := float64(m.At(v, u))
			if z <= 0 || z > p.cfg.ProximityThreshold {
				continue
			}

			x, y := p.cam.Unproject(float64(u), float64(v), z)
			if y < groundPlaneY {
				continue
			}

			zShift := math.Max(z-p.cfg.SafetyMargin, minForward)

			imgX := int(float64(p.cfg.GridWidth)/2 + x*p.resolution)
			imgY := int(float64(p.cfg.GridHeight) - zShift*p.resolution)
			if imgX < 0 || imgX >= p.cfg.GridWidth || imgY < 0 || imgY >= p.cfg.GridHeight {
				continue // outside the grid, silently discarded
			}

			// Only columns on the sampling stride are kept; within a
			// column only the closest surface matters for avoidance.
			if imgX%p.cfg.SamplingStep != 0 {
				continue
			}
			bin := imgX / p.cfg.SamplingStep
			if columns[bin].occupied && columns[bin].point.Forward <= zShift {
				continue
			}
			columns[bin] = cell{
				occupied: true,
				point: ObstaclePoint{
					Forward: zShift,
					Lateral: -x,
					Depth:   z,
				},
			}
		}
	}

	set := ObstacleSet{Stamp: stamp}
	for _, c := range columns {
		if c.occupied {
			set.Points = append(set.Points, c.point)
		}
	}
	return set
}
