// Package events aggregates asynchronous human inputs (foot pedals, a
// keyboard listener) into named boolean flags read by the control loop once
// per tick. Each flag has exactly one writer: its owning input source, or
// the loop itself for loop-internal flags.
package events

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Event names recognized by the control loop.
const (
	ExitEarly       = "exit_early"
	RerecordEpisode = "rerecord_episode"
	StopRecording   = "stop_recording"
	Intervention    = "intervention"
)

// ErrUnknownEvent is returned when a flag name was not declared at
// construction. The name set is fixed for the life of the bus.
var ErrUnknownEvent = errors.New("unknown event")

// JoinTimeout bounds how long Stop waits for each source goroutine. A
// source stuck in a blocking device read past the timeout is abandoned and
// logged, not killed.
const JoinTimeout = time.Second

// Source is an asynchronous input that publishes into a Bus from its own
// goroutine.
type Source interface {
	// Name identifies the source in logs.
	Name() string
	// Reset clears any internal latch state (e.g. a toggle switch).
	Reset()
	// Stop requests termination of the reading goroutine. Best-effort:
	// the goroutine may be blocked in a device read.
	Stop()
	// Done is closed when the reading goroutine has exited.
	Done() <-chan struct{}
}

// Bus holds the flag map and the input sources feeding it.
type Bus struct {
	mu      sync.RWMutex
	flags   map[string]bool
	sources []Source
	logger  *slog.Logger
}

// New creates a bus recognizing exactly the given flag names, all false.
func New(logger *slog.Logger, names ...string) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	flags := make(map[string]bool, len(names))
	for _, n := range names {
		flags[n] = false
	}
	return &Bus{flags: flags, logger: logger}
}

// NewDefault creates a bus with the standard control-loop flags.
func NewDefault(logger *slog.Logger) *Bus {
	return New(logger, ExitEarly, RerecordEpisode, StopRecording, Intervention)
}

// Attach registers a source so Reset and Stop reach it. Sources normally
// attach themselves at construction.
func (b *Bus) Attach(src Source) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sources = append(b.sources, src)
}

// Has reports whether the bus recognizes the flag name.
func (b *Bus) Has(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.flags[name]
	return ok
}

// Get returns the current value of a flag.
func (b *Bus) Get(name string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.flags[name]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
	return v, nil
}

// Set updates a flag. Only the flag's owning writer should call this.
func (b *Bus) Set(name string, value bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.flags[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
	b.flags[name] = value
	return nil
}

// Snapshot returns a point-in-time copy of all flags, safe to read without
// further locking. The control loop takes one snapshot per tick.
func (b *Bus) Snapshot() map[string]bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]bool, len(b.flags))
	for k, v := range b.flags {
		out[k] = v
	}
	return out
}

// Reset clears every flag to false and resets each source's internal latch
// state. Safe to call between episodes and idempotent.
func (b *Bus) Reset() {
	b.mu.Lock()
	for k := range b.flags {
		b.flags[k] = false
	}
	sources := append([]Source(nil), b.sources...)
	b.mu.Unlock()

	for _, src := range sources {
		src.Reset()
	}
}

// Stop requests termination of every source and joins each with a bounded
// wait. A source that fails to exit within JoinTimeout is abandoned: its
// goroutine leaks until the underlying device read returns, which is a
// documented limitation of blocking device I/O, not an error.
func (b *Bus) Stop() {
	b.mu.Lock()
	sources := b.sources
	b.sources = nil
	b.mu.Unlock()

	for _, src := range sources {
		src.Stop()
	}
	for _, src := range sources {
		select {
		case <-src.Done():
		case <-time.After(JoinTimeout):
			b.logger.Warn("input source did not stop in time, abandoning",
				"source", src.Name(), "timeout", JoinTimeout)
		}
	}
}
