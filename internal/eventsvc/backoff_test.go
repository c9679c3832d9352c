package eventsvc

import (
	"testing"
	"time"
)

func TestDefaultBackoffConfig(t *testing.T) {
	cfg := DefaultBackoffConfig()

	if cfg.Initial != 50*time.Millisecond {
		t.Errorf("Initial = %v, want 50ms", cfg.Initial)
	}
	if cfg.Max != 1*time.Second {
		t.Errorf("Max = %v, want 1s", cfg.Max)
	}
	if cfg.Multiplier != 1.7 {
		t.Errorf("Multiplier = %v, want 1.7", cfg.Multiplier)
	}
	if cfg.JitterPct != 0.4 {
		t.Errorf("JitterPct = %v, want 0.4", cfg.JitterPct)
	}
}

func TestBackoff_Growth(t *testing.T) {
	bo := newBackoff(BackoffConfig{
		Initial:    100 * time.Millisecond,
		Max:        10 * time.Second,
		Multiplier: 2.0,
		JitterPct:  0, // deterministic
	})

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
	}
	for i, w := range want {
		if got := bo.next(); got != w {
			t.Errorf("attempt %d: delay = %v, want %v", i, got, w)
		}
	}
}

func TestBackoff_CappedAtMax(t *testing.T) {
	bo := newBackoff(BackoffConfig{
		Initial:    100 * time.Millisecond,
		Max:        300 * time.Millisecond,
		Multiplier: 2.0,
		JitterPct:  0,
	})

	for i := 0; i < 10; i++ {
		if got := bo.next(); got > 300*time.Millisecond {
			t.Errorf("attempt %d: delay = %v, want <= 300ms", i, got)
		}
	}
}

func TestBackoff_JitterBounds(t *testing.T) {
	cfg := BackoffConfig{
		Initial:    100 * time.Millisecond,
		Max:        100 * time.Millisecond,
		Multiplier: 1.0,
		JitterPct:  0.4, // ±20%
	}

	for i := 0; i < 100; i++ {
		bo := newBackoff(cfg)
		got := bo.next()
		if got < 80*time.Millisecond || got > 120*time.Millisecond {
			t.Fatalf("delay = %v, want within [80ms, 120ms]", got)
		}
	}
}
