package robot

import (
	"context"
	"fmt"

	"github.com/gwillem/lerobot/pkg/tensor"
)

// Camera captures frames as [H,W,C] tensors with values in [0,255].
type Camera interface {
	Name() string
	Read(ctx context.Context) (*tensor.Tensor, error)
}

// Manipulator is a leader/follower manipulator over Feetech serial buses.
// It implements the robot capability consumed by the control loop and the
// primitive state machine.
type Manipulator struct {
	cfg       manipulatorConfig
	leaders   map[string]*Arm
	followers map[string]*Arm
	cameras   map[string]Camera
	connected bool
}

type manipulatorConfig struct {
	robotType         string
	leader            ArmConfig
	follower          ArmConfig
	maxRelativeTarget float64
}

// DefaultArmName is the key used for the single leader/follower pair of an
// SO-101 setup.
const DefaultArmName = "main"

// NewManipulator creates a disconnected manipulator from a configuration.
// Call Connect before use.
func NewManipulator(cfg *Config, cameras ...Camera) *Manipulator {
	robotType := cfg.RobotType
	if robotType == "" {
		robotType = "so101"
	}
	cams := make(map[string]Camera, len(cameras))
	for _, c := range cameras {
		cams[c.Name()] = c
	}
	return &Manipulator{
		cfg: manipulatorConfig{
			robotType:         robotType,
			leader:            cfg.Leader,
			follower:          cfg.Follower,
			maxRelativeTarget: cfg.MaxRelativeTarget,
		},
		leaders:   make(map[string]*Arm),
		followers: make(map[string]*Arm),
		cameras:   cams,
	}
}

// Connect opens the serial buses for all configured arms. Connecting an
// already-connected manipulator is an error.
func (m *Manipulator) Connect(ctx context.Context) error {
	if m.connected {
		return fmt.Errorf("manipulator already connected")
	}

	leader, err := NewArm(m.cfg.leader.Port, m.cfg.leader.Calibration)
	if err != nil {
		return fmt.Errorf("connect leader arm: %w", err)
	}

	follower, err := NewArm(m.cfg.follower.Port, m.cfg.follower.Calibration)
	if err != nil {
		leader.Close()
		return fmt.Errorf("connect follower arm: %w", err)
	}

	m.leaders[DefaultArmName] = leader
	m.followers[DefaultArmName] = follower
	m.connected = true
	return nil
}

// IsConnected reports whether the serial buses are open.
func (m *Manipulator) IsConnected() bool {
	return m.connected
}

// Disconnect disables follower torque and closes all buses.
func (m *Manipulator) Disconnect() error {
	if !m.connected {
		return nil
	}

	ctx := context.Background()
	var errs []error
	for _, arm := range m.followers {
		if err := arm.Disable(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for _, arm := range m.leaders {
		if err := arm.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, arm := range m.followers {
		if err := arm.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	m.leaders = make(map[string]*Arm)
	m.followers = make(map[string]*Arm)
	m.connected = false

	if len(errs) > 0 {
		return fmt.Errorf("disconnect errors: %v", errs)
	}
	return nil
}

// RobotType identifies the hardware variant, recorded alongside episodes.
func (m *Manipulator) RobotType() string {
	return m.cfg.robotType
}

// MaxRelativeTarget returns the per-command motion bound for the safety
// clamp. Zero means unclamped.
func (m *Manipulator) MaxRelativeTarget() float64 {
	return m.cfg.maxRelativeTarget
}

// LeaderArms returns the named leader arms.
func (m *Manipulator) LeaderArms() map[string]*Arm {
	return m.leaders
}

// FollowerArms returns the named follower arms.
func (m *Manipulator) FollowerArms() map[string]*Arm {
	return m.followers
}

// Cameras returns the named cameras.
func (m *Manipulator) Cameras() map[string]Camera {
	return m.cameras
}

// CaptureObservation reads the follower state and all camera frames.
func (m *Manipulator) CaptureObservation(ctx context.Context) (Observation, error) {
	obs := NewObservation()

	positions, err := m.followers[DefaultArmName].ReadPositions(ctx)
	if err != nil {
		return obs, fmt.Errorf("capture observation: %w", err)
	}
	obs.Data[StateKey] = PositionsToVector(positions)

	for name, cam := range m.cameras {
		frame, err := cam.Read(ctx)
		if err != nil {
			return obs, fmt.Errorf("capture camera %s: %w", name, err)
		}
		obs.Data[ImagePrefix+name] = frame
	}

	return obs, nil
}

// SendAction clamps the goal against the follower's present position and
// writes it. The returned action holds the positions actually commanded.
func (m *Manipulator) SendAction(ctx context.Context, action Action) (Action, error) {
	goalVec, ok := action[ActionKey]
	if !ok {
		return nil, fmt.Errorf("send action: missing %q entry", ActionKey)
	}
	goal := VectorToPositions(goalVec)

	follower := m.followers[DefaultArmName]
	if m.cfg.maxRelativeTarget > 0 {
		present, err := follower.ReadPositions(ctx)
		if err != nil {
			return nil, fmt.Errorf("send action: %w", err)
		}
		goal = SafeGoalPosition(goal, present, m.cfg.maxRelativeTarget)
	}

	if err := follower.WritePositions(ctx, goal); err != nil {
		return nil, fmt.Errorf("send action: %w", err)
	}

	return Action{ActionKey: PositionsToVector(goal)}, nil
}

// TeleopStep performs one teleoperation step: the leader arm is made
// passive, its pose is read and applied to the follower. When recordData is
// set the resulting observation and applied action are returned for the
// recorder; otherwise both are zero values.
func (m *Manipulator) TeleopStep(ctx context.Context, recordData bool) (Observation, Action, error) {
	leader := m.leaders[DefaultArmName]
	follower := m.followers[DefaultArmName]

	// The human moves the leader by hand, so its torque must stay off.
	if leader.TorqueEnabled() {
		if err := leader.Disable(ctx); err != nil {
			return Observation{}, nil, fmt.Errorf("teleop step: disable leader: %w", err)
		}
	}

	goal, err := leader.ReadPositions(ctx)
	if err != nil {
		return Observation{}, nil, fmt.Errorf("teleop step: %w", err)
	}

	if m.cfg.maxRelativeTarget > 0 {
		present, err := follower.ReadPositions(ctx)
		if err != nil {
			return Observation{}, nil, fmt.Errorf("teleop step: %w", err)
		}
		goal = SafeGoalPosition(goal, present, m.cfg.maxRelativeTarget)
	}

	if err := follower.WritePositions(ctx, goal); err != nil {
		return Observation{}, nil, fmt.Errorf("teleop step: %w", err)
	}

	if !recordData {
		return Observation{}, nil, nil
	}

	obs, err := m.CaptureObservation(ctx)
	if err != nil {
		return Observation{}, nil, err
	}
	return obs, Action{ActionKey: PositionsToVector(goal)}, nil
}

// ReverseTeleopStep mirrors the follower's pose back onto the leader, used
// between interventions so the leader tracks the policy's motion. The leader
// goal is clamped against its own present position; reading it back slows
// the tick, which is expected in this mode.
func (m *Manipulator) ReverseTeleopStep(ctx context.Context) error {
	leader := m.leaders[DefaultArmName]
	follower := m.followers[DefaultArmName]

	if !leader.TorqueEnabled() {
		if err := leader.Enable(ctx); err != nil {
			return fmt.Errorf("reverse teleop: enable leader: %w", err)
		}
	}

	goal, err := follower.ReadPositions(ctx)
	if err != nil {
		return fmt.Errorf("reverse teleop: %w", err)
	}

	if m.cfg.maxRelativeTarget > 0 {
		present, err := leader.ReadPositions(ctx)
		if err != nil {
			return fmt.Errorf("reverse teleop: %w", err)
		}
		goal = SafeGoalPosition(goal, present, m.cfg.maxRelativeTarget)
	}

	if err := leader.WritePositions(ctx, goal); err != nil {
		return fmt.Errorf("reverse teleop: %w", err)
	}
	return nil
}
