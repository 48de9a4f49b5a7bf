package events

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	evdev "github.com/holoplot/go-evdev"
)

// ErrDeviceUnavailable is returned when a configured input device path does
// not exist or cannot be opened.
var ErrDeviceUnavailable = errors.New("input device unavailable")

// Mode selects how pedal presses map to the published flag.
type Mode int

const (
	// Momentary publishes true while the pedal is held down.
	Momentary Mode = iota
	// Toggle flips the published flag on every press; releases are ignored.
	Toggle
)

func (m Mode) String() string {
	if m == Toggle {
		return "toggle"
	}
	return "momentary"
}

// inputDevice is the slice of *evdev.InputDevice the reader goroutine needs,
// split out so tests can feed synthetic key events.
type inputDevice interface {
	ReadOne() (*evdev.InputEvent, error)
	Close() error
}

// FootSwitch reads key events from one pedal device on a dedicated
// goroutine and publishes them as a single bus flag. No other writer may
// touch that flag.
type FootSwitch struct {
	bus    *Bus
	event  string
	mode   Mode
	dev    inputDevice
	logger *slog.Logger

	stopped atomic.Bool
	done    chan struct{}

	mu    sync.Mutex
	latch bool // toggle state, cleared by Reset
}

// NewFootSwitch opens the device and starts the reading goroutine. The
// event name must be recognized by the bus. The source attaches itself to
// the bus for Reset/Stop handling.
func NewFootSwitch(bus *Bus, eventName, devicePath string, mode Mode, logger *slog.Logger) (*FootSwitch, error) {
	if !bus.Has(eventName) {
		return nil, fmt.Errorf("foot switch: %w: %q", ErrUnknownEvent, eventName)
	}

	dev, err := evdev.Open(devicePath)
	if err != nil {
		return nil, fmt.Errorf("foot switch %s: %w: %v", devicePath, ErrDeviceUnavailable, err)
	}

	fs := newFootSwitch(bus, eventName, dev, mode, logger)
	fs.logger.Info("foot switch listening", "event", eventName, "device", devicePath, "mode", mode)
	return fs, nil
}

// newFootSwitch wires an already-open device; used directly by tests.
func newFootSwitch(bus *Bus, eventName string, dev inputDevice, mode Mode, logger *slog.Logger) *FootSwitch {
	if logger == nil {
		logger = slog.Default()
	}
	fs := &FootSwitch{
		bus:    bus,
		event:  eventName,
		mode:   mode,
		dev:    dev,
		logger: logger,
		done:   make(chan struct{}),
	}
	bus.Attach(fs)
	go fs.run()
	return fs
}

// Name identifies the source in logs.
func (fs *FootSwitch) Name() string {
	return "footswitch/" + fs.event
}

func (fs *FootSwitch) run() {
	defer close(fs.done)

	for {
		ev, err := fs.dev.ReadOne()
		if fs.stopped.Load() {
			return
		}
		if err != nil {
			// The device read is blocking; an error here means the
			// device was closed or unplugged. Nothing to retry.
			fs.logger.Warn("foot switch read failed, stopping", "event", fs.event, "err", err)
			return
		}
		if ev.Type != evdev.EV_KEY {
			continue
		}
		switch ev.Value {
		case 1: // key down
			fs.keyDown()
		case 0: // key up
			fs.keyUp()
		}
	}
}

func (fs *FootSwitch) keyDown() {
	if fs.mode == Toggle {
		fs.mu.Lock()
		fs.latch = !fs.latch
		v := fs.latch
		fs.mu.Unlock()
		fs.publish(v)
		return
	}
	fs.publish(true)
}

func (fs *FootSwitch) keyUp() {
	if fs.mode == Toggle {
		return
	}
	fs.publish(false)
}

func (fs *FootSwitch) publish(v bool) {
	if err := fs.bus.Set(fs.event, v); err != nil {
		fs.logger.Warn("foot switch publish failed", "event", fs.event, "err", err)
		return
	}
	fs.logger.Debug("foot switch", "event", fs.event, "value", v)
}

// Reset clears the toggle latch. The bus clears the published flag itself.
func (fs *FootSwitch) Reset() {
	fs.mu.Lock()
	fs.latch = false
	fs.mu.Unlock()
}

// Stop requests termination. Closing the device unblocks the pending read
// on platforms that support it; otherwise the goroutine exits on the next
// device event.
func (fs *FootSwitch) Stop() {
	if fs.stopped.Swap(true) {
		return
	}
	if err := fs.dev.Close(); err != nil {
		fs.logger.Warn("foot switch close failed", "event", fs.event, "err", err)
	}
}

// Done is closed when the reading goroutine has exited.
func (fs *FootSwitch) Done() <-chan struct{} {
	return fs.done
}
