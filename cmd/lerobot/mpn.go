package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gwillem/lerobot/pkg/control"
	"github.com/gwillem/lerobot/pkg/mpn"
)

type NetworkCommand struct {
	Config string `long:"config" required:"true" description:"Primitive network YAML file"`
}

func (c *NetworkCommand) Execute(args []string) error {
	manipulator, _ := loadManipulator()
	defer manipulator.Disconnect()

	logger := slog.Default()

	cfg, err := mpn.LoadConfig(c.Config)
	if err != nil {
		return err
	}

	// Policy and classifier checkpoints need an inference backend, which
	// this binary does not ship. Networks built from interpolation and
	// terminal primitives run as-is.
	loaders := mpn.Loaders{
		Policy: func(path string) (control.Policy, error) {
			return nil, fmt.Errorf("no policy backend available for %q", path)
		},
		Classifier: func(path string) (mpn.Classifier, error) {
			return nil, fmt.Errorf("no classifier backend available for %q", path)
		},
	}

	machine, err := mpn.Build(cfg, loaders, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := manipulator.Connect(ctx); err != nil {
		return err
	}

	reason, err := machine.Run(ctx, manipulator)
	if err != nil {
		return err
	}
	fmt.Printf("network stopped: %s\n", reason)
	return nil
}
