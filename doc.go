// Package lerobot provides real-time control for SO-101 robot arms.
//
// This is a Go implementation compatible with HuggingFace LeRobot: a leader
// arm drives a follower arm in real time, episodes can be recorded to disk
// for training, and trained policies can be composed into primitive networks
// that run on the robot.
//
// # Installation
//
//	go install github.com/gwillem/lerobot/cmd/lerobot@latest
//
// # Usage
//
// First, run setup to detect and calibrate your robot arms:
//
//	lerobot setup
//
// Then start teleoperation:
//
//	lerobot teleoperate
//
// Record a dataset:
//
//	lerobot record --task "pick up the cube" --episodes 10
//
// Run a primitive network:
//
//	lerobot mpn --config network.yaml
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/lerobot: CLI with setup, teleoperate, record and mpn commands
//   - pkg/robot: Arm control, calibration, observation capture and the
//     relative-target safety clamp
//   - pkg/control: Fixed-rate control loop, policy inference pipeline and
//     the warmup/record/reset session helpers
//   - pkg/events: Concurrent control-event flags fed by foot switches and
//     the keyboard
//   - pkg/mpn: Motion-primitive networks, a state machine over
//     policies, interpolation moves and triggered transitions
//   - pkg/tensor: Small dense float32 tensors for observations and actions
package lerobot
