// Package control implements the fixed-rate control loop driving a
// manipulator: each tick senses, selects an action (teleoperated,
// policy-driven, or human override), clamps, actuates, optionally records a
// frame, and paces itself to the target rate.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gwillem/lerobot/pkg/events"
	"github.com/gwillem/lerobot/pkg/robot"
)

// ErrConfiguration marks option combinations rejected before the loop
// starts. Never recoverable by retry.
var ErrConfiguration = errors.New("invalid control configuration")

// ErrActuation marks robot failures to apply an action. Propagated to the
// caller; the loop has no retry policy of its own.
var ErrActuation = errors.New("actuation failure")

// Robot is the manipulator capability the loop drives. Implemented by
// robot.Manipulator; all calls are synchronous and blocking.
type Robot interface {
	Connect(ctx context.Context) error
	IsConnected() bool
	RobotType() string
	CaptureObservation(ctx context.Context) (robot.Observation, error)
	SendAction(ctx context.Context, action robot.Action) (robot.Action, error)
	TeleopStep(ctx context.Context, recordData bool) (robot.Observation, robot.Action, error)
	ReverseTeleopStep(ctx context.Context) error
}

// Recorder persists episode frames. The dataset format is the recorder's
// business.
type Recorder interface {
	AddFrame(frame map[string]any) error
	FPS() int
}

// Options parameterizes one control-loop run.
type Options struct {
	// ControlTime bounds the run; zero means run until exit_early.
	ControlTime time.Duration
	// FPS is the target tick rate; zero disables pacing.
	FPS int
	// Teleoperate drives the follower directly from the leader arm.
	// Mutually exclusive with Policy.
	Teleoperate bool
	// Interactive enables human-in-the-loop overrides: frames are
	// recorded only while the intervention flag is set, and the leader
	// mirrors the follower between interventions. Requires Policy.
	Interactive bool
	// DisplayData emits actions and images to the telemetry sink.
	DisplayData bool
	// Task labels recorded frames. Required when Recorder is set.
	Task string
	// EpisodeIndex tags log lines; owned by the caller's episode loop.
	EpisodeIndex int

	Policy    Policy
	Recorder  Recorder
	Events    *events.Bus
	Telemetry Telemetry
	Logger    *slog.Logger
}

func (o *Options) validate() error {
	if o.Teleoperate && o.Policy != nil {
		return fmt.Errorf("%w: teleoperate and policy are mutually exclusive", ErrConfiguration)
	}
	if o.Interactive && o.Policy == nil {
		return fmt.Errorf("%w: interactive mode requires a policy", ErrConfiguration)
	}
	if o.Recorder != nil && o.Task == "" {
		return fmt.Errorf("%w: recording requires a task label", ErrConfiguration)
	}
	if o.Recorder != nil && o.FPS > 0 && o.Recorder.FPS() != o.FPS {
		return fmt.Errorf("%w: recorder fps (%d) does not match requested fps (%d)",
			ErrConfiguration, o.Recorder.FPS(), o.FPS)
	}
	return nil
}

// Run executes the control loop until ControlTime elapses, exit_early is
// raised, or the context is canceled.
func Run(ctx context.Context, r Robot, opts Options) error {
	if err := opts.validate(); err != nil {
		return err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	telemetry := opts.Telemetry
	if telemetry == nil {
		telemetry = NoopTelemetry{}
	}
	bus := opts.Events
	if bus == nil {
		bus = events.NewDefault(logger)
	}

	if !r.IsConnected() {
		if err := r.Connect(ctx); err != nil {
			return fmt.Errorf("connect robot: %w", err)
		}
	}

	if opts.Policy != nil {
		opts.Policy.Reset()
	}

	var period time.Duration
	if opts.FPS > 0 {
		period = time.Second / time.Duration(opts.FPS)
	}

	start := time.Now()
	frameIndex := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		tickStart := time.Now()
		snapshot := bus.Snapshot()

		var (
			obs    robot.Observation
			action robot.Action
			err    error
		)

		if opts.Teleoperate || snapshot[events.Intervention] {
			// The human is driving; a policy, if any, must restart
			// cleanly when it takes over again.
			if opts.Policy != nil {
				opts.Policy.Reset()
			}
			obs, action, err = r.TeleopStep(ctx, true)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrActuation, err)
			}
		} else {
			obs, err = r.CaptureObservation(ctx)
			if err != nil {
				return fmt.Errorf("capture observation: %w", err)
			}
			obs.Labels["task"] = opts.Task
			obs.Labels["robot_type"] = policyLabel(opts.Policy, r)

			if opts.Policy != nil {
				predicted, err := predictAction(ctx, obs, opts.Policy)
				if err != nil {
					return err
				}
				// The safety clamp may truncate the goal, so the
				// action recorded is the one actually sent.
				action, err = r.SendAction(ctx, predicted)
				if err != nil {
					return fmt.Errorf("%w: %w", ErrActuation, err)
				}
			}

			if opts.Interactive {
				if err := r.ReverseTeleopStep(ctx); err != nil {
					return fmt.Errorf("%w: %w", ErrActuation, err)
				}
			}
		}

		// In interactive mode only intervened frames are worth keeping.
		if opts.Recorder != nil && (!opts.Interactive || snapshot[events.Intervention]) {
			if err := opts.Recorder.AddFrame(buildFrame(obs, action, opts.Task)); err != nil {
				return fmt.Errorf("record frame: %w", err)
			}
		}

		if opts.DisplayData && !events.Headless() {
			emitDisplayData(telemetry, obs, action)
		}

		if period > 0 {
			waitRemaining(ctx, period, time.Since(tickStart))
		}

		logTickInfo(logger, time.Since(tickStart), opts.FPS, opts.EpisodeIndex, frameIndex)
		frameIndex++

		// Read the flag fresh rather than from the tick-start snapshot
		// so a press during this tick still exits now.
		if exit, _ := bus.Get(events.ExitEarly); exit {
			bus.Set(events.ExitEarly, false)
			logger.Info("exit_early raised, leaving control loop", "frames", frameIndex)
			return nil
		}

		if opts.ControlTime > 0 && time.Since(start) >= opts.ControlTime {
			return nil
		}
	}
}

// policyLabel picks the robot-type label recorded with autonomous frames:
// the policy's own, when it declares one, else the hardware's.
func policyLabel(p Policy, r Robot) string {
	if p != nil {
		if t := policyRobotType(p); t != "" {
			return t
		}
	}
	return r.RobotType()
}

// buildFrame flattens an observation/action pair for the recorder.
func buildFrame(obs robot.Observation, action robot.Action, task string) map[string]any {
	frame := make(map[string]any, len(obs.Data)+len(action)+2)
	for k, v := range obs.Data {
		frame[k] = v
	}
	for k, v := range obs.Labels {
		frame[k] = v
	}
	for k, v := range action {
		frame[k] = v
	}
	frame["task"] = task
	return frame
}

// emitDisplayData sends the applied action scalars and the observation's
// image channels to the telemetry sink. Fire-and-forget.
func emitDisplayData(t Telemetry, obs robot.Observation, action robot.Action) {
	for name, v := range action {
		for i, x := range v.Data {
			t.Scalar(fmt.Sprintf("sent_%s_%d", name, i), float64(x))
		}
	}
	for _, key := range obs.ImageKeys() {
		t.Image(key, obs.Data[key])
	}
}
