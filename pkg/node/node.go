// Package node wires the exploration pipeline: frames arriving on the bus
// feed the context buffer and the depth projector; a fixed-rate tick runs
// sampling, potential-field correction and publishing. Both callbacks run
// on one dispatch goroutine, to completion, one at a time, so the shared
// obstacle set and context buffer need no locking.
package node

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-explore/internal/config"
	"github.com/teslashibe/go-explore/internal/log"
	"github.com/teslashibe/go-explore/pkg/apf"
	"github.com/teslashibe/go-explore/pkg/bus"
	"github.com/teslashibe/go-explore/pkg/contextbuf"
	"github.com/teslashibe/go-explore/pkg/diffusion"
	"github.com/teslashibe/go-explore/pkg/model"
	"github.com/teslashibe/go-explore/pkg/topview"
	"github.com/teslashibe/go-explore/pkg/viz"
)

// defaultInfluenceRange is the obstacle repulsion radius in meters.
const defaultInfluenceRange = 1.0

// ctxInterval is the minimum spacing between frames admitted to the
// context window.
const ctxInterval = 250 * time.Millisecond

// Config holds the node's resolved startup configuration.
type Config struct {
	Robot      config.Robot
	Kinematics config.Kinematics
	Params     config.ModelParams

	ModelName      string
	WaypointIndex  int
	NumSamples     int
	InfluenceRange float64 // 0 selects the default
}

// Node is the perception-to-motion control loop.
type Node struct {
	cfg Config
	id  string

	bus       bus.Bus
	buffer    *contextbuf.Buffer
	gate      *contextbuf.Gate
	projector *topview.Projector
	sampler   *diffusion.Sampler
	corrector *apf.Corrector

	frames chan contextbuf.Frame

	// Seams for tests.
	now    func() time.Time
	render func([]byte, model.Batch, bool) ([]byte, error)
}

// New assembles a node from its components.
func New(cfg Config, b bus.Bus, projector *topview.Projector, sampler *diffusion.Sampler) (*Node, error) {
	if cfg.WaypointIndex < 0 || cfg.WaypointIndex >= cfg.Params.LenTrajPred {
		return nil, fmt.Errorf("waypoint index %d out of range (trajectory length %d)",
			cfg.WaypointIndex, cfg.Params.LenTrajPred)
	}

	influence := cfg.InfluenceRange
	if influence == 0 {
		influence = defaultInfluenceRange
	}

	return &Node{
		cfg:       cfg,
		id:        uuid.NewString(),
		bus:       b,
		buffer:    contextbuf.New(cfg.Params.ContextSize),
		gate:      contextbuf.NewGate(ctxInterval),
		projector: projector,
		sampler:   sampler,
		corrector: apf.New(influence, cfg.Kinematics.MaxV/cfg.Kinematics.FrameRate),
		frames:    make(chan contextbuf.Frame, 1),
		now:       time.Now,
		render:    viz.Render,
	}, nil
}

// Run subscribes to the image topic and drives both callbacks from one
// goroutine until the context is cancelled.
func (n *Node) Run(ctx context.Context) error {
	if err := n.bus.Subscribe(n.cfg.Robot.Topics.Image, n.onImageMessage); err != nil {
		return fmt.Errorf("subscribe to %s: %w", n.cfg.Robot.Topics.Image, err)
	}

	n.logStartup()

	ticker := time.NewTicker(time.Duration(float64(time.Second) / n.cfg.Kinematics.FrameRate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-n.frames:
			n.HandleFrame(f)
		case <-ticker.C:
			n.Tick()
		}
	}
}

// onImageMessage decodes an inbound frame envelope and hands the frame to
// the dispatch loop. The channel keeps only the newest pending frame.
func (n *Node) onImageMessage(data []byte) {
	msg, err := bus.ParseMessage(data)
	if err != nil {
		log.Warn("malformed image message dropped", "error", err)
		return
	}
	if msg.Type != bus.TypeFrame {
		return
	}

	var fd bus.FrameData
	if err := msg.ParseData(&fd); err != nil {
		log.Warn("malformed frame payload dropped", "error", err)
		return
	}

	f := contextbuf.Frame{
		JPEG:   fd.Data,
		Width:  fd.Width,
		Height: fd.Height,
		Stamp:  time.UnixMilli(fd.Stamp),
	}

	for {
		select {
		case n.frames <- f:
			return
		default:
		}
		select {
		case <-n.frames: // evict the stale pending frame
		default:
		}
	}
}

// HandleFrame is the frame-arrival callback: gate, buffer, then a
// synchronous depth update. A failed depth inference keeps the previous
// obstacle set.
func (n *Node) HandleFrame(f contextbuf.Frame) {
	if !n.gate.Accept(n.now()) {
		return
	}

	n.buffer.Push(f)

	if err := n.projector.Update(f); err != nil {
		log.Warn("obstacle update skipped", "error", err)
	}
}

// Tick is the timer callback: sample, correct, publish, visualize. With
// insufficient context it is a no-op, which is the normal case at startup.
func (n *Node) Tick() {
	if !n.buffer.Ready() {
		log.Debug("tick skipped, insufficient context",
			"have", n.buffer.Len(), "need", n.cfg.Params.ContextSize+1)
		return
	}

	snapshot := n.buffer.Snapshot()
	obs := make([][]byte, len(snapshot))
	for i, f := range snapshot {
		obs[i] = f.JPEG
	}

	batch, err := n.sampler.Sample(obs)
	if err != nil {
		log.Error("trajectory sampling failed, skipping tick", "error", err)
		return
	}

	obstacles := n.projector.Obstacles()
	corrected := !obstacles.Empty()
	batch = n.corrector.Apply(batch, obstacles)

	n.publishActions(batch)
	n.publishViz(batch, corrected)
}

// publishActions emits the waypoint and the flattened batch.
func (n *Node) publishActions(batch model.Batch) {
	flat := bus.FlattenBatch(batch.Flatten32())
	if err := n.publish(n.cfg.Robot.Topics.SampledActions, bus.TypeSampledActions, flat); err != nil {
		log.Error("failed to publish sampled actions", "error", err)
	}

	wx, wy := batch.At(0, n.cfg.WaypointIndex)
	if n.cfg.Params.Normalize {
		scale := n.cfg.Kinematics.MaxV / n.cfg.Kinematics.FrameRate
		wx *= scale
		wy *= scale
	}

	wp := bus.WaypointData{X: float32(wx), Y: float32(wy)}
	if err := n.publish(n.cfg.Robot.Topics.Waypoint, bus.TypeWaypoint, wp); err != nil {
		log.Error("failed to publish waypoint", "error", err)
	}
}

// publishViz renders and emits the trajectory overlay on the latest frame.
func (n *Node) publishViz(batch model.Batch, corrected bool) {
	latest, ok := n.buffer.Latest()
	if !ok {
		return
	}

	overlay, err := n.render(latest.JPEG, batch, corrected)
	if err != nil {
		log.Warn("overlay rendering failed", "error", err)
		return
	}

	fd := bus.FrameData{
		Width:  latest.Width,
		Height: latest.Height,
		Format: "jpeg",
		Data:   overlay,
		Stamp:  latest.Stamp.UnixMilli(),
	}
	if err := n.publish(n.cfg.Robot.Topics.TrajectoryViz, bus.TypeTrajectoryViz, fd); err != nil {
		log.Error("failed to publish visualization", "error", err)
	}
}

func (n *Node) publish(topic string, msgType bus.MessageType, payload interface{}) error {
	msg, err := bus.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	msg.NodeID = n.id
	raw, err := msg.Bytes()
	if err != nil {
		return err
	}
	return n.bus.Publish(topic, raw)
}

// logStartup dumps the resolved parameters once, before the loop starts.
func (n *Node) logStartup() {
	log.Info("exploration node initialised",
		"robot", n.cfg.Robot.Name,
		"model", n.cfg.ModelName,
		"image_topic", n.cfg.Robot.Topics.Image,
	)
	log.Info("robot configuration",
		"max_v", n.cfg.Kinematics.MaxV,
		"max_w", n.cfg.Kinematics.MaxW,
		"frame_rate_hz", n.cfg.Kinematics.FrameRate,
		"safety_margin_m", n.cfg.Robot.SafetyMargin,
		"proximity_threshold_m", n.cfg.Robot.ProximityThreshold,
		"image_size", fmt.Sprintf("%dx%d", n.cfg.Robot.ImageWidth, n.cfg.Robot.ImageHeight),
	)
	log.Info("model configuration",
		"context_size", n.cfg.Params.ContextSize,
		"context_interval", ctxInterval,
		"len_traj_pred", n.cfg.Params.LenTrajPred,
		"num_diffusion_iters", n.cfg.Params.NumDiffusionIters,
		"normalize", n.cfg.Params.Normalize,
	)
	log.Info("execution parameters",
		"waypoint_index", n.cfg.WaypointIndex,
		"num_samples", n.cfg.NumSamples,
		"influence_range_m", n.corrector.InfluenceRange,
		"waypoint_topic", n.cfg.Robot.Topics.Waypoint,
		"sampled_actions_topic", n.cfg.Robot.Topics.SampledActions,
		"trajectory_viz_topic", n.cfg.Robot.Topics.TrajectoryViz,
	)
}
