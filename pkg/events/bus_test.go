package events

import (
	"errors"
	"sync"
	"testing"
)

func TestBus_InitialState(t *testing.T) {
	b := New(nil, "a", "b")

	for _, name := range []string{"a", "b"} {
		v, err := b.Get(name)
		if err != nil {
			t.Fatalf("Get(%q): %v", name, err)
		}
		if v {
			t.Errorf("Get(%q) = true, want false after construction", name)
		}
	}
}

func TestBus_UnknownEvent(t *testing.T) {
	b := New(nil, "a")

	if _, err := b.Get("nope"); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("Get unknown: err = %v, want ErrUnknownEvent", err)
	}
	if err := b.Set("nope", true); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("Set unknown: err = %v, want ErrUnknownEvent", err)
	}
}

func TestBus_SetGetSnapshot(t *testing.T) {
	b := NewDefault(nil)

	if err := b.Set(ExitEarly, true); err != nil {
		t.Fatal(err)
	}

	snap := b.Snapshot()
	if !snap[ExitEarly] {
		t.Error("snapshot missing exit_early=true")
	}
	if snap[Intervention] {
		t.Error("snapshot has intervention=true, want false")
	}

	// The snapshot is a copy: mutating it must not affect the bus.
	snap[Intervention] = true
	if v, _ := b.Get(Intervention); v {
		t.Error("mutating snapshot leaked into bus")
	}
}

func TestBus_ResetClearsFlagsAndSources(t *testing.T) {
	b := NewDefault(nil)
	src := &fakeSource{done: make(chan struct{})}
	b.Attach(src)

	b.Set(ExitEarly, true)
	b.Set(StopRecording, true)

	b.Reset()
	b.Reset() // idempotent

	for name, v := range b.Snapshot() {
		if v {
			t.Errorf("after reset, %q = true", name)
		}
	}
	if src.resets.Load() != 2 {
		t.Errorf("source resets = %d, want 2", src.resets.Load())
	}
}

func TestBus_StopJoinsSources(t *testing.T) {
	b := NewDefault(nil)
	src := &fakeSource{done: make(chan struct{})}
	b.Attach(src)

	b.Stop()

	if !src.stopped.Load() {
		t.Error("source was not stopped")
	}
}

func TestBus_ConcurrentWriters(t *testing.T) {
	b := New(nil, "a", "b")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := "a"
			if i%2 == 0 {
				name = "b"
			}
			for j := 0; j < 100; j++ {
				b.Set(name, j%2 == 0)
				b.Snapshot()
			}
		}(i)
	}
	wg.Wait()
}
