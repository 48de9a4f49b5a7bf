// Package mpn implements a motion-primitive network: a directed graph of
// control primitives traversed under condition-guarded transitions, driving
// the same robot capability as the fixed-rate control loop.
package mpn

import (
	"context"
	"math"
	"time"

	"github.com/gwillem/lerobot/pkg/control"
	"github.com/gwillem/lerobot/pkg/robot"
	"github.com/gwillem/lerobot/pkg/tensor"
)

// Observation/action keys produced and consumed by the built-in primitives
// and conditions.
const (
	// EEPoseKey is the action entry holding an end-effector goal pose.
	EEPoseKey = "ee_pose"
	// EEPositionKey is the observation entry holding the current
	// end-effector position.
	EEPositionKey = "ee_position"
)

// Primitive is one self-contained unit of autonomous behavior. Internal
// execution state (elapsed time, queues) is cleared by Reset, which runs
// every time the machine enters the primitive.
type Primitive interface {
	Name() string
	SelectAction(ctx context.Context, obs robot.Observation) (robot.Action, error)
	Reset()
	// Terminal marks the designated completion primitive. A terminal
	// primitive never acts and may have no outgoing transitions.
	Terminal() bool
}

// Condition guards a transition: evaluated against the tick's observation.
type Condition interface {
	IsTriggered(obs robot.Observation) (bool, error)
}

// PolicyPrimitive delegates action selection to an opaque decision
// capability.
type PolicyPrimitive struct {
	name   string
	policy control.Policy
}

// NewPolicyPrimitive wraps a policy as a network primitive.
func NewPolicyPrimitive(name string, policy control.Policy) *PolicyPrimitive {
	return &PolicyPrimitive{name: name, policy: policy}
}

func (p *PolicyPrimitive) Name() string { return p.name }

func (p *PolicyPrimitive) SelectAction(ctx context.Context, obs robot.Observation) (robot.Action, error) {
	return p.policy.SelectAction(ctx, obs)
}

func (p *PolicyPrimitive) Reset() { p.policy.Reset() }

func (p *PolicyPrimitive) Terminal() bool { return false }

// LinearInterpolationPrimitive moves the end effector along a straight line
// from a start to an end pose over a fixed duration, advancing an internal
// clock by one timestep per tick.
type LinearInterpolationPrimitive struct {
	name     string
	start    []float64
	end      []float64
	duration time.Duration
	step     time.Duration
	elapsed  time.Duration
}

// DefaultInterpolationStep is the per-tick time advance when none is
// configured.
const DefaultInterpolationStep = 100 * time.Millisecond

// NewLinearInterpolationPrimitive creates an interpolation from start to
// end over duration. step is the per-tick advance; zero selects
// DefaultInterpolationStep.
func NewLinearInterpolationPrimitive(name string, start, end []float64, duration, step time.Duration) *LinearInterpolationPrimitive {
	if step <= 0 {
		step = DefaultInterpolationStep
	}
	return &LinearInterpolationPrimitive{
		name:     name,
		start:    start,
		end:      end,
		duration: duration,
		step:     step,
	}
}

func (p *LinearInterpolationPrimitive) Name() string { return p.name }

func (p *LinearInterpolationPrimitive) SelectAction(ctx context.Context, obs robot.Observation) (robot.Action, error) {
	t := 1.0
	if p.duration > 0 {
		t = math.Min(p.elapsed.Seconds()/p.duration.Seconds(), 1.0)
	}
	pose := tensor.New(len(p.start))
	for i := range p.start {
		pose.Data[i] = float32((1-t)*p.start[i] + t*p.end[i])
	}
	p.elapsed += p.step
	return robot.Action{EEPoseKey: pose}, nil
}

// Reset rewinds the interpolation clock; runs on every entry.
func (p *LinearInterpolationPrimitive) Reset() { p.elapsed = 0 }

func (p *LinearInterpolationPrimitive) Terminal() bool { return false }

// TerminalPrimitive signals network completion. It never acts.
type TerminalPrimitive struct {
	name string
}

// NewTerminalPrimitive creates the completion marker node.
func NewTerminalPrimitive(name string) *TerminalPrimitive {
	return &TerminalPrimitive{name: name}
}

func (p *TerminalPrimitive) Name() string { return p.name }

func (p *TerminalPrimitive) SelectAction(ctx context.Context, obs robot.Observation) (robot.Action, error) {
	return robot.Action{}, nil
}

func (p *TerminalPrimitive) Reset() {}

func (p *TerminalPrimitive) Terminal() bool { return true }
