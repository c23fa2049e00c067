// Package config provides the static configuration surface for the
// exploration node: the per-robot table, kinematic limits from robot.yaml,
// and the model registry from models.yaml. Everything here is resolved once
// at startup and immutable afterwards.
package config

import (
	"fmt"
	"sort"
)

// Topics holds the bus topic names for one robot.
type Topics struct {
	Image          string
	Waypoint       string
	SampledActions string
	TrajectoryViz  string
}

// Robot is the resolved per-robot configuration. Values are fixed per
// platform and selected once by name at startup.
type Robot struct {
	Name   string
	Topics Topics

	// Camera
	ImageWidth     int
	ImageHeight    int
	IntrinsicsPath string
	DistortionPath string // fisheye lenses only
	Fisheye        bool

	// Obstacle projection
	SafetyMargin       float64 // meters subtracted from measured depth
	ProximityThreshold float64 // meters, sensing range for obstacles
}

// robots is the closed set of supported platforms.
var robots = map[string]Robot{
	"locobot": {
		Name: "locobot",
		Topics: Topics{
			Image:          "/robot1/camera/image",
			Waypoint:       "/robot1/waypoint",
			SampledActions: "/robot1/sampled_actions",
			TrajectoryViz:  "/robot1/trajectory_viz",
		},
		ImageWidth:         320,
		ImageHeight:        240,
		IntrinsicsPath:     "intrinsics/fisheye.yaml",
		DistortionPath:     "intrinsics/fisheye_distortion.yaml",
		Fisheye:            true,
		SafetyMargin:       0.05,
		ProximityThreshold: 1.0,
	},
	"locobot2": {
		Name: "locobot2",
		Topics: Topics{
			Image:          "/robot3/camera/image",
			Waypoint:       "/robot3/waypoint",
			SampledActions: "/robot3/sampled_actions",
			TrajectoryViz:  "/robot3/trajectory_viz",
		},
		ImageWidth:         320,
		ImageHeight:        240,
		IntrinsicsPath:     "intrinsics/fisheye.yaml",
		DistortionPath:     "intrinsics/fisheye_distortion.yaml",
		Fisheye:            true,
		SafetyMargin:       0.05,
		ProximityThreshold: 1.0,
	},
	"robomaster": {
		Name: "robomaster",
		Topics: Topics{
			Image:          "/camera/image_color",
			Waypoint:       "/robot3/waypoint",
			SampledActions: "/robot3/sampled_actions",
			TrajectoryViz:  "/robot3/trajectory_viz",
		},
		ImageWidth:         640,
		ImageHeight:        360,
		IntrinsicsPath:     "intrinsics/robomaster.yaml",
		SafetyMargin:       -0.1,
		ProximityThreshold: 1.3,
	},
	"turtlebot4": {
		Name: "turtlebot4",
		Topics: Topics{
			Image:          "/robot2/oakd/rgb/preview/image_raw",
			Waypoint:       "/robot2/waypoint",
			SampledActions: "/robot2/sampled_actions",
			TrajectoryViz:  "/robot2/trajectory_viz",
		},
		ImageWidth:         320,
		ImageHeight:        200,
		IntrinsicsPath:     "intrinsics/turtlebot4.yaml",
		SafetyMargin:       0.2,
		ProximityThreshold: 1.4,
	},
}

// RobotByName resolves a robot configuration. Unknown names are a fatal
// startup condition for callers.
func RobotByName(name string) (Robot, error) {
	r, ok := robots[name]
	if !ok {
		return Robot{}, fmt.Errorf("unknown robot type: %q (supported: %v)", name, RobotNames())
	}
	return r, nil
}

// RobotNames returns the supported robot names, sorted.
func RobotNames() []string {
	names := make([]string, 0, len(robots))
	for name := range robots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
