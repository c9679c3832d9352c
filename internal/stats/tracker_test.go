package stats

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestTrackerEmpty(t *testing.T) {
	tr := NewTracker()

	s := tr.Snapshot()
	if s.Calls != 0 || s.Errors != 0 {
		t.Errorf("empty snapshot = %+v", s)
	}
	if s.P50 != 0 || s.P99 != 0 {
		t.Errorf("empty tracker reported percentiles: p50=%v p99=%v", s.P50, s.P99)
	}
}

func TestTrackerRecordsCallsAndErrors(t *testing.T) {
	tr := NewTracker()

	tr.Record("capture", 2*time.Millisecond, nil)
	tr.Record("capture", 4*time.Millisecond, nil)
	tr.Record("say", time.Millisecond, errors.New("speaker offline"))

	s := tr.Snapshot()
	if s.Calls != 3 {
		t.Errorf("calls = %d, want 3", s.Calls)
	}
	if s.Errors != 1 {
		t.Errorf("errors = %d, want 1", s.Errors)
	}
	if s.ByOp["capture"] != 2 || s.ByOp["say"] != 1 {
		t.Errorf("by op = %v", s.ByOp)
	}
	if s.Max != 4*time.Millisecond {
		t.Errorf("max = %v, want 4ms", s.Max)
	}
}

func TestTrackerPercentilesOrdered(t *testing.T) {
	tr := NewTracker()

	for i := 1; i <= 1000; i++ {
		tr.Record("capture", time.Duration(i)*time.Millisecond, nil)
	}

	s := tr.Snapshot()
	if s.P50 <= 0 {
		t.Fatalf("p50 = %v, want positive", s.P50)
	}
	if s.P50 > s.P95 || s.P95 > s.P99 {
		t.Errorf("percentiles out of order: p50=%v p95=%v p99=%v", s.P50, s.P95, s.P99)
	}
	if s.P99 > s.Max {
		t.Errorf("p99 %v exceeds max %v", s.P99, s.Max)
	}

	// p50 of 1..1000ms should land near 500ms; T-Digest is approximate.
	if s.P50 < 400*time.Millisecond || s.P50 > 600*time.Millisecond {
		t.Errorf("p50 = %v, want around 500ms", s.P50)
	}
}

func TestTrackerConcurrentRecord(t *testing.T) {
	tr := NewTracker()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				tr.Record("wink", time.Millisecond, nil)
			}
		}()
	}
	wg.Wait()

	if got := tr.Calls(); got != 800 {
		t.Errorf("calls = %d, want 800", got)
	}
}
