// Explore runs the perception-to-motion loop for one robot: camera frames
// in from the bus, diffusion-sampled trajectories with obstacle correction
// out to the waypoint and visualization topics.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-explore/internal/config"
	"github.com/teslashibe/go-explore/internal/log"
	"github.com/teslashibe/go-explore/pkg/bus"
	"github.com/teslashibe/go-explore/pkg/diffusion"
	"github.com/teslashibe/go-explore/pkg/model"
	"github.com/teslashibe/go-explore/pkg/node"
	"github.com/teslashibe/go-explore/pkg/topview"
)

func main() {
	var (
		robotName   string
		modelName   string
		waypointIdx int
		numSamples  int
		configDir   string
		busEndpoint string
		seed        int64
		logLevel    string
	)

	root := &cobra.Command{
		Use:   "explore",
		Short: "Diffusion-policy exploration node for mobile robots",
		Long: `Explore subscribes to a robot's camera topic, samples candidate
trajectories from a diffusion policy, pushes them away from obstacles seen
in monocular depth, and publishes the selected waypoint plus a trajectory
overlay for debugging.`,
		Example: fmt.Sprintf("  explore --robot locobot\n  explore --robot robomaster --model nomad --waypoint 2\n\nSupported robots: %v", config.RobotNames()),
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Init(logLevel)

			robot, err := config.RobotByName(robotName)
			if err != nil {
				return err
			}

			kin, err := config.LoadKinematics(filepath.Join(configDir, "robot.yaml"))
			if err != nil {
				return fmt.Errorf("load kinematics: %w", err)
			}

			src, err := config.LoadModelSource(filepath.Join(configDir, "models.yaml"), modelName)
			if err != nil {
				return fmt.Errorf("resolve model: %w", err)
			}
			params, err := config.LoadModelParams(src.ConfigPath)
			if err != nil {
				return fmt.Errorf("load model params: %w", err)
			}

			intr, err := config.LoadIntrinsics(configDir, robot.IntrinsicsPath)
			if err != nil {
				return fmt.Errorf("load intrinsics: %w", err)
			}
			cam, err := topview.NewPinhole(intr.Fx, intr.Fy, intr.Cx, intr.Cy)
			if err != nil {
				return fmt.Errorf("camera model: %w", err)
			}

			depth, err := model.NewONNXDepth(src.DepthPath, robot.ImageWidth, robot.ImageHeight)
			if err != nil {
				return fmt.Errorf("load depth model: %w", err)
			}
			defer depth.Close()

			policy, err := model.NewONNXPolicy(src.VisionEncoderPath, src.NoisePredPath,
				params.ImageSize[0], params.ImageSize[1])
			if err != nil {
				return fmt.Errorf("load policy model: %w", err)
			}
			defer policy.Close()

			tvCfg := topview.DefaultConfig()
			tvCfg.SafetyMargin = robot.SafetyMargin
			tvCfg.ProximityThreshold = robot.ProximityThreshold
			projector, err := topview.New(tvCfg, depth, cam)
			if err != nil {
				return fmt.Errorf("obstacle projector: %w", err)
			}

			sampler, err := diffusion.NewSampler(diffusion.Config{
				NumSamples:        numSamples,
				LenTrajPred:       params.LenTrajPred,
				NumDiffusionIters: params.NumDiffusionIters,
				ImageHeight:       params.ImageSize[0],
				ImageWidth:        params.ImageSize[1],
				Seed:              seed,
			}, policy, policy)
			if err != nil {
				return fmt.Errorf("trajectory sampler: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			wsBus, err := bus.NewWSBus(bus.DefaultWSConfig(busEndpoint))
			if err != nil {
				return fmt.Errorf("bus: %w", err)
			}
			defer wsBus.Close()
			if err := wsBus.ConnectWithRetry(ctx); err != nil {
				return fmt.Errorf("connect to %s: %w", busEndpoint, err)
			}

			n, err := node.New(node.Config{
				Robot:         robot,
				Kinematics:    kin,
				Params:        params,
				ModelName:     modelName,
				WaypointIndex: waypointIdx,
				NumSamples:    numSamples,
			}, wsBus, projector, sampler)
			if err != nil {
				return err
			}

			if err := n.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			log.Info("exploration node stopped")
			return nil
		},
	}

	root.Flags().StringVar(&robotName, "robot", "locobot", "robot platform to drive")
	root.Flags().StringVar(&modelName, "model", "nomad", "model name from models.yaml")
	root.Flags().IntVar(&waypointIdx, "waypoint", 2, "index into the predicted trajectory to publish")
	root.Flags().IntVar(&numSamples, "num-samples", 8, "candidate trajectories per tick")
	root.Flags().StringVar(&configDir, "config-dir", "config", "directory holding robot.yaml, models.yaml and intrinsics")
	root.Flags().StringVar(&busEndpoint, "bus", "ws://localhost:8765", "message bus broker URL")
	root.Flags().Int64Var(&seed, "seed", 0, "random seed for the diffusion sampler")
	root.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	if err := root.Execute(); err != nil {
		log.Error("explore failed", "error", err)
		os.Exit(1)
	}
}
