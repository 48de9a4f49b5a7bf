package control

import (
	"context"
	"time"
)

// Warmup runs a teleoperated warm-up window before recording: the operator
// gets the arms moving, nothing is persisted.
func Warmup(ctx context.Context, r Robot, opts Options) error {
	opts.Recorder = nil
	opts.Policy = nil
	opts.Task = ""
	opts.Interactive = false
	return Run(ctx, r, opts)
}

// RecordEpisode records one episode. The follower is teleoperated when no
// policy is supplied, policy-driven otherwise. Both are the same per-tick
// algorithm as Run; this only fixes the mode.
func RecordEpisode(ctx context.Context, r Robot, opts Options) error {
	opts.Teleoperate = opts.Policy == nil
	return Run(ctx, r, opts)
}

// ResetEnvironment runs a teleoperated reset window between episodes so the
// operator can put the scene back. One tick period is waited out first to
// let the arms settle.
func ResetEnvironment(ctx context.Context, r Robot, opts Options) error {
	if opts.FPS > 0 {
		waitRemaining(ctx, time.Second/time.Duration(opts.FPS), 0)
	}
	opts.Teleoperate = true
	opts.Policy = nil
	opts.Recorder = nil
	opts.Interactive = false
	opts.Task = ""
	return Run(ctx, r, opts)
}
