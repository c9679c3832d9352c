// Package stats tracks event service call latencies for the shutdown
// summary. Percentiles come from a T-Digest so a long-running booth never
// accumulates unbounded samples.
package stats

import (
	"sync"
	"time"

	"github.com/influxdata/tdigest"
)

// Tracker aggregates call latencies across all event service operations.
type Tracker struct {
	mu     sync.Mutex
	digest *tdigest.TDigest
	byOp   map[string]int64
	calls  int64
	errors int64
	max    time.Duration
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		digest: tdigest.NewWithCompression(100), // ~100 centroids, ~10KB
		byOp:   make(map[string]int64),
	}
}

// Record adds one completed call.
func (t *Tracker) Record(op string, dur time.Duration, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.digest.Add(dur.Seconds(), 1)
	t.byOp[op]++
	t.calls++
	if err != nil {
		t.errors++
	}
	if dur > t.max {
		t.max = dur
	}
}

// Calls returns the total number of recorded calls.
func (t *Tracker) Calls() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Summary is a latency snapshot for the shutdown report.
type Summary struct {
	Calls  int64
	Errors int64
	ByOp   map[string]int64

	P50 time.Duration
	P95 time.Duration
	P99 time.Duration
	Max time.Duration
}

// Snapshot computes the current percentiles.
func (t *Tracker) Snapshot() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	byOp := make(map[string]int64, len(t.byOp))
	for k, v := range t.byOp {
		byOp[k] = v
	}

	s := Summary{
		Calls:  t.calls,
		Errors: t.errors,
		ByOp:   byOp,
		Max:    t.max,
	}
	if t.calls > 0 {
		s.P50 = secondsToDuration(t.digest.Quantile(0.50))
		s.P95 = secondsToDuration(t.digest.Quantile(0.95))
		s.P99 = secondsToDuration(t.digest.Quantile(0.99))
	}
	return s
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
