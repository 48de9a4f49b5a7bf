package events

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/eiannone/keyboard"
	"github.com/mattn/go-isatty"
)

// Headless reports whether no interactive terminal is attached. The answer
// cannot change at runtime, so it is computed once per process.
var Headless = sync.OnceValue(func() bool {
	return !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd())
})

// Keyboard listens for control keys on the terminal and publishes the
// corresponding flags:
//
//	right arrow -> exit_early
//	left arrow  -> exit_early + rerecord_episode
//	escape      -> exit_early + stop_recording
type Keyboard struct {
	bus    *Bus
	logger *slog.Logger

	stopped atomic.Bool
	done    chan struct{}
}

// NewKeyboard starts the listener goroutine. In a headless environment it
// returns (nil, nil): camera display and keyboard control are simply not
// available, which is a warning, not an error. Callers must nil-check.
func NewKeyboard(bus *Bus, logger *slog.Logger) (*Keyboard, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if Headless() {
		logger.Warn("headless environment detected, keyboard control disabled")
		return nil, nil
	}

	if err := keyboard.Open(); err != nil {
		return nil, fmt.Errorf("open keyboard: %w", err)
	}

	k := &Keyboard{
		bus:    bus,
		logger: logger,
		done:   make(chan struct{}),
	}
	bus.Attach(k)
	go k.run()
	return k, nil
}

// Name identifies the source in logs.
func (k *Keyboard) Name() string {
	return "keyboard"
}

func (k *Keyboard) run() {
	defer close(k.done)

	for {
		_, key, err := keyboard.GetKey()
		if k.stopped.Load() {
			return
		}
		if err != nil {
			// A single bad read must not take the listener down.
			k.logger.Warn("keyboard read failed", "err", err)
			continue
		}
		k.handleKey(key)
	}
}

// handleKey maps one key press onto bus flags. Errors are logged and never
// terminate the listener.
func (k *Keyboard) handleKey(key keyboard.Key) {
	switch key {
	case keyboard.KeyArrowRight:
		k.logger.Info("right arrow pressed, exiting loop early")
		k.set(ExitEarly)
	case keyboard.KeyArrowLeft:
		k.logger.Info("left arrow pressed, exiting loop and rerecording last episode")
		k.set(RerecordEpisode)
		k.set(ExitEarly)
	case keyboard.KeyEsc:
		k.logger.Info("escape pressed, stopping data recording")
		k.set(StopRecording)
		k.set(ExitEarly)
	}
}

func (k *Keyboard) set(name string) {
	if err := k.bus.Set(name, true); err != nil {
		k.logger.Warn("keyboard publish failed", "event", name, "err", err)
	}
}

// Reset is a no-op: the keyboard holds no latch state.
func (k *Keyboard) Reset() {}

// Stop terminates the listener. Idempotent.
func (k *Keyboard) Stop() {
	if k.stopped.Swap(true) {
		return
	}
	keyboard.Close()
}

// Done is closed when the listener goroutine has exited.
func (k *Keyboard) Done() <-chan struct{} {
	return k.done
}
