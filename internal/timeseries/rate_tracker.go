// Package timeseries provides time-windowed rate tracking for booth activity.
//
// It samples a cumulative counter (typically the photo capture count) and
// computes rolling rates over configurable windows (1m, 5m, 15m). The booth
// dashboard and the exit summary use it to answer "how busy is this booth
// right now" without scraping Prometheus.
//
// Thread-safe: RecordSample() acquires a write lock on the ring buffer,
// GetStats() a read lock. Memory: ~22KB for 900 samples (15 minutes at
// 1 sample/sec).
package timeseries

import (
	"sync"
	"time"
)

const (
	// ringBufferSize is the number of samples to retain (15 minutes at
	// 1 sample/sec)
	ringBufferSize = 900

	// Window durations for rolling rates
	window1m  = 1 * time.Minute
	window5m  = 5 * time.Minute
	window15m = 15 * time.Minute
)

// Clock interface for testing with deterministic time.
type Clock interface {
	Now() time.Time
}

// realClock uses time.Now() for production.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// sample represents a point-in-time snapshot of a cumulative counter.
type sample struct {
	timestamp time.Time
	count     int64
}

// RateTracker samples a cumulative event counter and computes rolling
// per-minute rates over configurable time windows.
//
// Unlike a self-counting accumulator, the tracker does not own the counter:
// callers pass the current cumulative total on every RecordSample. That keeps
// a single source of truth (the booth service's capture count) and makes
// double counting impossible.
//
// Usage:
//
//	tracker := timeseries.NewRateTracker()
//	// ... periodic sampling (e.g., every 1s via ticker)
//	tracker.RecordSample(service.Captures())
//	// ... get stats for dashboard / exit summary
//	stats := tracker.GetStats(service.Captures())
type RateTracker struct {
	// Ring buffer of samples for rolling rate calculation
	samples  []sample
	writeIdx int // Next write position in ring buffer
	mu       sync.RWMutex

	// Start time for overall rate calculation
	startTime time.Time

	// Clock for testability
	clock Clock
}

// RateStats contains computed rolling rates at a point in time.
type RateStats struct {
	// Total is the cumulative event count at the time of the query
	Total int64

	// Rolling rates (events per minute)
	PerMin1m  float64 // Rate over the last minute
	PerMin5m  float64 // Rate over the last 5 minutes
	PerMin15m float64 // Rate over the last 15 minutes

	// PerMinOverall is the rate since tracking started
	PerMinOverall float64
}

// NewRateTracker creates a new tracker with the real clock.
func NewRateTracker() *RateTracker {
	return NewRateTrackerWithClock(realClock{})
}

// NewRateTrackerWithClock creates a tracker with a custom clock for testing.
func NewRateTrackerWithClock(clock Clock) *RateTracker {
	now := clock.Now()
	t := &RateTracker{
		samples:   make([]sample, 0, ringBufferSize),
		startTime: now,
		clock:     clock,
	}
	// Record initial sample at t=0 with count 0
	t.samples = append(t.samples, sample{timestamp: now, count: 0})
	return t
}

// RecordSample records the given cumulative count with the current timestamp.
// Call this periodically (e.g., every 1 second via ticker).
func (t *RateTracker) RecordSample(total int64) {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	newSample := sample{timestamp: now, count: total}

	if len(t.samples) < ringBufferSize {
		// Buffer not yet full - append
		t.samples = append(t.samples, newSample)
	} else {
		// Buffer full - overwrite oldest
		t.samples[t.writeIdx] = newSample
		t.writeIdx = (t.writeIdx + 1) % ringBufferSize
	}
}

// GetStats computes rates against the given current cumulative count.
// Always returns valid data (uses the available history when a window
// reaches past the oldest sample).
func (t *RateTracker) GetStats(total int64) RateStats {
	now := t.clock.Now()

	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := RateStats{Total: total}

	elapsed := now.Sub(t.startTime).Minutes()
	if elapsed > 0 {
		stats.PerMinOverall = float64(total) / elapsed
	}

	stats.PerMin1m = t.rateOverWindow(now, total, window1m)
	stats.PerMin5m = t.rateOverWindow(now, total, window5m)
	stats.PerMin15m = t.rateOverWindow(now, total, window15m)

	return stats
}

// rateOverWindow calculates events per minute over the specified window.
// Must be called with mu held (at least RLock).
func (t *RateTracker) rateOverWindow(now time.Time, total int64, window time.Duration) float64 {
	if len(t.samples) == 0 {
		return 0
	}

	targetTime := now.Add(-window)

	// Find the sample closest to (but not after) targetTime
	var bestSample *sample
	var bestDiff time.Duration = -1

	for i := range t.samples {
		s := &t.samples[i]
		if s.timestamp.After(targetTime) {
			continue // Sample is within the window, skip
		}
		diff := targetTime.Sub(s.timestamp)
		if bestDiff < 0 || diff < bestDiff {
			bestSample = s
			bestDiff = diff
		}
	}

	// If no sample before targetTime, use the oldest sample we have
	if bestSample == nil {
		bestSample = t.oldestSample()
	}

	if bestSample == nil {
		return 0
	}

	events := total - bestSample.count
	actualElapsed := now.Sub(bestSample.timestamp).Minutes()

	if actualElapsed <= 0 {
		return 0 // Avoid division by zero
	}

	return float64(events) / actualElapsed
}

// oldestSample returns the oldest sample in the ring buffer.
// Must be called with mu held.
func (t *RateTracker) oldestSample() *sample {
	if len(t.samples) == 0 {
		return nil
	}

	if len(t.samples) < ringBufferSize {
		// Buffer not full yet - oldest is at index 0
		return &t.samples[0]
	}

	// Buffer full - oldest is at writeIdx (next to be overwritten)
	return &t.samples[t.writeIdx]
}

// Reset clears all samples and restarts tracking.
func (t *RateTracker) Reset() {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.samples = t.samples[:0]
	t.samples = append(t.samples, sample{timestamp: now, count: 0})
	t.writeIdx = 0
	t.startTime = now
}

// SampleCount returns the number of samples in the ring buffer.
// Useful for testing.
func (t *RateTracker) SampleCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.samples)
}
