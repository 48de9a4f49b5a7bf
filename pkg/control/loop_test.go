package control

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gwillem/lerobot/pkg/events"
	"github.com/gwillem/lerobot/pkg/robot"
	"github.com/gwillem/lerobot/pkg/tensor"
)

type fakeRobot struct {
	connected    bool
	connectCalls int
	captures     int
	sends        int
	teleopSteps  int
	reverses     int
	clampTo      float32 // when non-zero, SendAction caps every element
	sendErr      error
}

func (f *fakeRobot) Connect(ctx context.Context) error {
	f.connectCalls++
	f.connected = true
	return nil
}

func (f *fakeRobot) IsConnected() bool { return f.connected }

func (f *fakeRobot) RobotType() string { return "so101" }

func (f *fakeRobot) CaptureObservation(ctx context.Context) (robot.Observation, error) {
	f.captures++
	obs := robot.NewObservation()
	obs.Data[robot.StateKey] = tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6})
	obs.Data[robot.ImagePrefix+"front"] = tensor.New(2, 2, 3)
	return obs, nil
}

func (f *fakeRobot) SendAction(ctx context.Context, action robot.Action) (robot.Action, error) {
	f.sends++
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	applied := robot.Action{}
	for k, v := range action {
		c := v.Clone()
		if f.clampTo > 0 {
			for i, x := range c.Data {
				if x > f.clampTo {
					c.Data[i] = f.clampTo
				}
			}
		}
		applied[k] = c
	}
	return applied, nil
}

func (f *fakeRobot) TeleopStep(ctx context.Context, recordData bool) (robot.Observation, robot.Action, error) {
	f.teleopSteps++
	obs := robot.NewObservation()
	obs.Data[robot.StateKey] = tensor.FromSlice([]float32{0, 0, 0, 0, 0, 0})
	return obs, robot.Action{robot.ActionKey: tensor.FromSlice([]float32{1, 1, 1, 1, 1, 1})}, nil
}

func (f *fakeRobot) ReverseTeleopStep(ctx context.Context) error {
	f.reverses++
	return nil
}

type fakePolicy struct {
	resets  int
	selects int
	lastObs robot.Observation
	action  []float32
}

func (p *fakePolicy) Reset() { p.resets++ }

func (p *fakePolicy) SelectAction(ctx context.Context, obs robot.Observation) (robot.Action, error) {
	p.selects++
	p.lastObs = obs
	out := p.action
	if out == nil {
		out = []float32{9, 9, 9, 9, 9, 9}
	}
	return robot.Action{robot.ActionKey: tensor.FromSlice(out).Unsqueeze()}, nil
}

type fakeRecorder struct {
	fps    int
	frames []map[string]any
}

func (r *fakeRecorder) AddFrame(frame map[string]any) error {
	r.frames = append(r.frames, frame)
	return nil
}

func (r *fakeRecorder) FPS() int { return r.fps }

func TestRun_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{
			name: "teleoperate with policy",
			opts: Options{Teleoperate: true, Policy: &fakePolicy{}},
		},
		{
			name: "interactive without policy",
			opts: Options{Interactive: true},
		},
		{
			name: "recorder without task",
			opts: Options{Recorder: &fakeRecorder{fps: 10}},
		},
		{
			name: "recorder fps mismatch",
			opts: Options{Recorder: &fakeRecorder{fps: 30}, Task: "pick", FPS: 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Run(context.Background(), &fakeRobot{}, tt.opts)
			if !errors.Is(err, ErrConfiguration) {
				t.Errorf("err = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestRun_ConnectsWhenDisconnected(t *testing.T) {
	r := &fakeRobot{}
	opts := Options{Teleoperate: true, ControlTime: time.Millisecond}
	if err := Run(context.Background(), r, opts); err != nil {
		t.Fatal(err)
	}
	if r.connectCalls != 1 {
		t.Errorf("connect calls = %d, want 1", r.connectCalls)
	}
}

func TestRun_PacedTickCount(t *testing.T) {
	r := &fakeRobot{connected: true}
	start := time.Now()
	err := Run(context.Background(), r, Options{
		Teleoperate: true,
		ControlTime: 400 * time.Millisecond,
		FPS:         10,
	})
	elapsed := time.Since(start)
	if err != nil {
		t.Fatal(err)
	}
	if r.teleopSteps < 1 || r.teleopSteps > 4 {
		t.Errorf("ticks = %d, want 1..4 at 10 fps over 0.4s", r.teleopSteps)
	}
	if elapsed < 400*time.Millisecond {
		t.Errorf("loop returned after %v, want >= 400ms", elapsed)
	}
}

func TestRun_ExitEarlyClearsFlagAndStops(t *testing.T) {
	r := &fakeRobot{connected: true}
	bus := events.NewDefault(nil)
	bus.Set(events.ExitEarly, true)

	err := Run(context.Background(), r, Options{Teleoperate: true, Events: bus})
	if err != nil {
		t.Fatal(err)
	}
	if r.teleopSteps != 1 {
		t.Errorf("ticks = %d, want 1 (exit after first tick)", r.teleopSteps)
	}
	if v, _ := bus.Get(events.ExitEarly); v {
		t.Error("exit_early not cleared on exit")
	}
}

func TestRun_AutonomousPredictsClampsRecords(t *testing.T) {
	r := &fakeRobot{connected: true, clampTo: 5}
	p := &fakePolicy{}
	rec := &fakeRecorder{fps: 10}
	bus := events.NewDefault(nil)
	bus.Set(events.ExitEarly, true) // single tick

	err := Run(context.Background(), r, Options{
		Policy:   p,
		Recorder: rec,
		Task:     "pick cube",
		FPS:      10,
		Events:   bus,
	})
	if err != nil {
		t.Fatal(err)
	}

	if r.captures != 1 || r.sends != 1 || p.selects != 1 {
		t.Fatalf("captures=%d sends=%d selects=%d, want 1 each", r.captures, r.sends, p.selects)
	}
	// Policy.Reset runs once before the loop.
	if p.resets != 1 {
		t.Errorf("policy resets = %d, want 1", p.resets)
	}

	if len(rec.frames) != 1 {
		t.Fatalf("recorded frames = %d, want 1", len(rec.frames))
	}
	frame := rec.frames[0]
	if frame["task"] != "pick cube" {
		t.Errorf("frame task = %v", frame["task"])
	}
	// The recorded action is the clamped one the robot applied, not the
	// policy's raw output of 9s.
	act, ok := frame[robot.ActionKey].(*tensor.Tensor)
	if !ok {
		t.Fatal("frame missing action tensor")
	}
	for i, x := range act.Data {
		if x != 5 {
			t.Errorf("action[%d] = %v, want clamped 5", i, x)
		}
	}
}

func TestRun_PredictionPipelineNormalizesImages(t *testing.T) {
	r := &fakeRobot{connected: true}
	p := &fakePolicy{}
	bus := events.NewDefault(nil)
	bus.Set(events.ExitEarly, true)

	if err := Run(context.Background(), r, Options{Policy: p, Events: bus}); err != nil {
		t.Fatal(err)
	}

	img := p.lastObs.Data[robot.ImagePrefix+"front"]
	// [1,C,H,W] after batch dim + channel-first conversion.
	want := []int{1, 3, 2, 2}
	if len(img.Shape) != len(want) {
		t.Fatalf("image shape = %v, want %v", img.Shape, want)
	}
	for i := range want {
		if img.Shape[i] != want[i] {
			t.Fatalf("image shape = %v, want %v", img.Shape, want)
		}
	}

	state := p.lastObs.Data[robot.StateKey]
	if len(state.Shape) != 2 || state.Shape[0] != 1 {
		t.Errorf("state shape = %v, want batch dim added", state.Shape)
	}
}

func TestRun_InterventionUsesTeleopAndResetsPolicy(t *testing.T) {
	r := &fakeRobot{connected: true}
	p := &fakePolicy{}
	bus := events.NewDefault(nil)
	bus.Set(events.Intervention, true)
	bus.Set(events.ExitEarly, true)

	err := Run(context.Background(), r, Options{Policy: p, Interactive: true, Events: bus})
	if err != nil {
		t.Fatal(err)
	}
	if r.teleopSteps != 1 {
		t.Errorf("teleop steps = %d, want 1 (intervention tick)", r.teleopSteps)
	}
	if p.selects != 0 {
		t.Errorf("policy selects = %d, want 0 during intervention", p.selects)
	}
	// Reset before the loop plus reset on the intervened tick.
	if p.resets != 2 {
		t.Errorf("policy resets = %d, want 2", p.resets)
	}
}

func TestRun_InteractiveRecordsOnlyInterventions(t *testing.T) {
	r := &fakeRobot{connected: true}
	rec := &fakeRecorder{fps: 0}
	bus := events.NewDefault(nil)
	bus.Set(events.ExitEarly, true)

	err := Run(context.Background(), r, Options{
		Policy:      &fakePolicy{},
		Interactive: true,
		Recorder:    rec,
		Task:        "pick",
		Events:      bus,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.frames) != 0 {
		t.Errorf("frames = %d, want 0 without intervention", len(rec.frames))
	}
	// The leader mirrors the follower between interventions.
	if r.reverses != 1 {
		t.Errorf("reverse teleop steps = %d, want 1", r.reverses)
	}
}

func TestRun_ActuationFailurePropagates(t *testing.T) {
	sendErr := errors.New("servo rejected goal")
	r := &fakeRobot{connected: true, sendErr: sendErr}

	err := Run(context.Background(), r, Options{Policy: &fakePolicy{}})
	if !errors.Is(err, ErrActuation) {
		t.Errorf("err = %v, want ErrActuation", err)
	}
	if !errors.Is(err, sendErr) {
		t.Errorf("err = %v, want wrapped robot error", err)
	}
}

func TestRun_ContextCancel(t *testing.T) {
	r := &fakeRobot{connected: true}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Run(ctx, r, Options{Teleoperate: true})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRecordEpisode_TeleoperatesWithoutPolicy(t *testing.T) {
	r := &fakeRobot{connected: true}
	rec := &fakeRecorder{fps: 0}
	bus := events.NewDefault(nil)
	bus.Set(events.ExitEarly, true)

	err := RecordEpisode(context.Background(), r, Options{
		Recorder: rec,
		Task:     "pick",
		Events:   bus,
	})
	if err != nil {
		t.Fatal(err)
	}
	if r.teleopSteps != 1 {
		t.Errorf("teleop steps = %d, want 1", r.teleopSteps)
	}
	if len(rec.frames) != 1 {
		t.Errorf("frames = %d, want 1", len(rec.frames))
	}
}

func TestWarmup_NeverRecords(t *testing.T) {
	r := &fakeRobot{connected: true}
	rec := &fakeRecorder{fps: 0}
	bus := events.NewDefault(nil)
	bus.Set(events.ExitEarly, true)

	// Warmup strips the recorder even when a caller passes one.
	err := Warmup(context.Background(), r, Options{
		Teleoperate: true,
		Recorder:    rec,
		Events:      bus,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.frames) != 0 {
		t.Errorf("frames = %d, want 0 during warmup", len(rec.frames))
	}
}

func TestWaitRemaining_NeverNegative(t *testing.T) {
	start := time.Now()
	waitRemaining(context.Background(), 10*time.Millisecond, 50*time.Millisecond)
	if elapsed := time.Since(start); elapsed > 5*time.Millisecond {
		t.Errorf("overrun tick slept %v, want no sleep", elapsed)
	}
}
