package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/gwillem/lerobot/pkg/events"
	"github.com/gwillem/lerobot/pkg/robot"
)

// loadManipulator builds a manipulator from the saved configuration,
// exiting with a setup hint when configuration is missing.
func loadManipulator() (*robot.Manipulator, *robot.Config) {
	cfg, err := robot.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "No configuration found. Run 'lerobot setup' first.")
		os.Exit(1)
	}
	if cfg.Leader.Port == "" || cfg.Follower.Port == "" {
		fmt.Fprintln(os.Stderr, "Arms not configured. Run 'lerobot setup' first.")
		os.Exit(1)
	}
	if !cfg.Leader.IsCalibrated() || !cfg.Follower.IsCalibrated() {
		fmt.Fprintln(os.Stderr, "Arms not calibrated. Run 'lerobot setup' first.")
		os.Exit(1)
	}
	return robot.NewManipulator(cfg), cfg
}

// attachFootSwitches wires pedal devices given as event:path[:toggle] specs.
func attachFootSwitches(bus *events.Bus, specs []string, logger *slog.Logger) error {
	for _, spec := range specs {
		parts := strings.Split(spec, ":")
		if len(parts) < 2 {
			return fmt.Errorf("bad foot switch spec %q, want event:device[:toggle]", spec)
		}
		mode := events.Momentary
		if len(parts) > 2 && parts[2] == "toggle" {
			mode = events.Toggle
		}
		if _, err := events.NewFootSwitch(bus, parts[0], parts[1], mode, logger); err != nil {
			return err
		}
	}
	return nil
}

// chanWriter forwards log lines to a channel, dropping when full so logging
// can never stall the control loop.
type chanWriter struct {
	ch chan string
}

func (w chanWriter) Write(p []byte) (int, error) {
	select {
	case w.ch <- strings.TrimRight(string(p), "\n"):
	default:
	}
	return len(p), nil
}
