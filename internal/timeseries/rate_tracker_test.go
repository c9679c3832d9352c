package timeseries

import (
	"sync"
	"testing"
	"time"
)

// mockClock provides deterministic time for testing.
type mockClock struct {
	mu   sync.Mutex
	time time.Time
}

func newMockClock(t time.Time) *mockClock {
	return &mockClock{time: t}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.time
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.time = c.time.Add(d)
}

// TestRateTracker_Total tests that the queried total flows through to stats.
func TestRateTracker_Total(t *testing.T) {
	tests := []struct {
		name  string
		total int64
	}{
		{name: "zero", total: 0},
		{name: "small", total: 7},
		{name: "large", total: 1_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newMockClock(time.Now())
			tracker := NewRateTrackerWithClock(clock)

			stats := tracker.GetStats(tt.total)
			if stats.Total != tt.total {
				t.Errorf("Total = %d, want %d", stats.Total, tt.total)
			}
		})
	}
}

// TestRateTracker_RollingRate tests rate calculation for various patterns.
func TestRateTracker_RollingRate(t *testing.T) {
	t.Run("constant rate", func(t *testing.T) {
		baseTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		clock := newMockClock(baseTime)
		tracker := NewRateTrackerWithClock(clock)

		// Simulate 2 captures/minute for 10 minutes, sampled every second
		var total int64
		for i := 0; i < 600; i++ {
			if i%30 == 29 {
				total++
			}
			clock.Advance(1 * time.Second)
			tracker.RecordSample(total)
		}

		stats := tracker.GetStats(total)

		// Should be approximately 2 captures/min in every window
		if stats.PerMin1m < 1.5 || stats.PerMin1m > 2.5 {
			t.Errorf("PerMin1m = %f, want ~2", stats.PerMin1m)
		}
		if stats.PerMin5m < 1.5 || stats.PerMin5m > 2.5 {
			t.Errorf("PerMin5m = %f, want ~2", stats.PerMin5m)
		}
		if stats.PerMinOverall < 1.5 || stats.PerMinOverall > 2.5 {
			t.Errorf("PerMinOverall = %f, want ~2", stats.PerMinOverall)
		}
	})

	t.Run("burst then idle", func(t *testing.T) {
		baseTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		clock := newMockClock(baseTime)
		tracker := NewRateTrackerWithClock(clock)

		// 10 captures in the first minute
		var total int64
		for i := 0; i < 60; i++ {
			if i%6 == 5 {
				total++
			}
			clock.Advance(1 * time.Second)
			tracker.RecordSample(total)
		}

		// Then 5 minutes of nothing
		for i := 0; i < 300; i++ {
			clock.Advance(1 * time.Second)
			tracker.RecordSample(total)
		}

		stats := tracker.GetStats(total)

		// The last minute saw no captures
		if stats.PerMin1m != 0 {
			t.Errorf("PerMin1m = %f, want 0 after idle period", stats.PerMin1m)
		}

		// The burst is still inside the 15 minute window
		if stats.PerMin15m <= 0 {
			t.Errorf("PerMin15m = %f, want > 0 (burst within window)", stats.PerMin15m)
		}
	})

	t.Run("window larger than history", func(t *testing.T) {
		baseTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		clock := newMockClock(baseTime)
		tracker := NewRateTrackerWithClock(clock)

		// Only 30 seconds of history, 1 capture
		for i := 0; i < 30; i++ {
			clock.Advance(1 * time.Second)
			tracker.RecordSample(1)
		}

		stats := tracker.GetStats(1)

		// 1 capture in 30s = 2/min, computed from available history
		if stats.PerMin15m < 1.5 || stats.PerMin15m > 2.5 {
			t.Errorf("PerMin15m = %f, want ~2 from partial history", stats.PerMin15m)
		}
	})
}

// TestRateTracker_RingBufferWrap verifies the ring buffer overwrites the
// oldest samples once full.
func TestRateTracker_RingBufferWrap(t *testing.T) {
	baseTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := newMockClock(baseTime)
	tracker := NewRateTrackerWithClock(clock)

	// Fill well past capacity
	for i := 0; i < ringBufferSize+100; i++ {
		clock.Advance(1 * time.Second)
		tracker.RecordSample(int64(i))
	}

	if got := tracker.SampleCount(); got != ringBufferSize {
		t.Errorf("SampleCount = %d, want %d", got, ringBufferSize)
	}

	// Stats must still be computable and sane
	stats := tracker.GetStats(int64(ringBufferSize + 100))
	if stats.PerMin1m <= 0 {
		t.Errorf("PerMin1m = %f, want > 0 after wrap", stats.PerMin1m)
	}
}

// TestRateTracker_Reset verifies Reset clears history and restarts tracking.
func TestRateTracker_Reset(t *testing.T) {
	baseTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := newMockClock(baseTime)
	tracker := NewRateTrackerWithClock(clock)

	for i := 0; i < 120; i++ {
		clock.Advance(1 * time.Second)
		tracker.RecordSample(int64(i))
	}

	tracker.Reset()

	if got := tracker.SampleCount(); got != 1 {
		t.Errorf("SampleCount after Reset = %d, want 1", got)
	}

	clock.Advance(1 * time.Minute)
	tracker.RecordSample(3)
	stats := tracker.GetStats(3)

	if stats.PerMinOverall < 2.5 || stats.PerMinOverall > 3.5 {
		t.Errorf("PerMinOverall after Reset = %f, want ~3", stats.PerMinOverall)
	}
}

// TestRateTracker_Concurrent exercises concurrent sampling and reads.
func TestRateTracker_Concurrent(t *testing.T) {
	tracker := NewRateTracker()

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if g%2 == 0 {
					tracker.RecordSample(int64(i))
				} else {
					_ = tracker.GetStats(int64(i))
				}
			}
		}(g)
	}
	wg.Wait()

	if tracker.SampleCount() == 0 {
		t.Error("expected samples after concurrent writes")
	}
}
