package asynctask

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestSubmitRoundTrip(t *testing.T) {
	e := New(2)
	defer e.Shutdown(true)

	ref, err := e.Submit(func() (any, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	value, err := ref.Result(time.Second)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if value != 42 {
		t.Errorf("value = %v, want 42", value)
	}
	if !ref.Done() {
		t.Error("Done() should be true after Result returns")
	}
}

func TestSubmitPropagatesError(t *testing.T) {
	e := New(1)
	defer e.Shutdown(true)

	boom := errors.New("boom")
	ref, err := e.Submit(func() (any, error) {
		return nil, boom
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if _, err := ref.Result(time.Second); !errors.Is(err, boom) {
		t.Errorf("Result error = %v, want %v", err, boom)
	}
}

func TestResultTimeout(t *testing.T) {
	e := New(1)
	defer e.Shutdown(true)

	release := make(chan struct{})
	ref, _ := e.Submit(func() (any, error) {
		<-release
		return nil, nil
	})

	if _, err := ref.Result(20 * time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Errorf("Result error = %v, want ErrTimeout", err)
	}
	close(release)
}

func TestTaskPanicCaptured(t *testing.T) {
	e := New(1)
	defer e.Shutdown(true)

	ref, _ := e.Submit(func() (any, error) {
		panic("kaboom")
	})

	_, err := ref.Result(time.Second)
	if err == nil {
		t.Fatal("expected error from panicking task")
	}
}

func TestSubmitAfterShutdown(t *testing.T) {
	e := New(1)
	e.Shutdown(true)

	if _, err := e.Submit(func() (any, error) { return nil, nil }); !errors.Is(err, ErrClosed) {
		t.Errorf("Submit after Shutdown = %v, want ErrClosed", err)
	}
}

func TestShutdownDrainsQueue(t *testing.T) {
	e := New(1)

	var mu sync.Mutex
	ran := 0
	for i := 0; i < 5; i++ {
		if _, err := e.Submit(func() (any, error) {
			mu.Lock()
			ran++
			mu.Unlock()
			return nil, nil
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	e.Shutdown(true)

	mu.Lock()
	defer mu.Unlock()
	if ran != 5 {
		t.Errorf("ran = %d, want 5 (queued tasks must flush on shutdown)", ran)
	}
}

func TestRegistryEviction(t *testing.T) {
	e := New(1)
	defer e.Shutdown(true)

	ref, _ := e.Submit(func() (any, error) { return "ok", nil })

	if _, err := ref.Result(time.Second); err != nil {
		t.Fatalf("Result: %v", err)
	}

	// Eviction happens after complete; give the worker's deferred cleanup a
	// moment to run.
	deadline := time.Now().Add(time.Second)
	for e.InFlight() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("completed task was not evicted from the registry")
		}
		time.Sleep(time.Millisecond)
	}

	if _, ok := e.Lookup(ref.ID()); ok {
		t.Error("Lookup should miss after eviction")
	}
}

func TestIdentifierUniqueness(t *testing.T) {
	e := New(2)
	defer e.Shutdown(true)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ref, err := e.Submit(func() (any, error) { return nil, nil })
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if seen[ref.ID()] {
			t.Fatalf("duplicate task id %s", ref.ID())
		}
		seen[ref.ID()] = true
	}
}

func TestTaskRefSerializationDegrades(t *testing.T) {
	e := New(1)
	defer e.Shutdown(true)

	ref, _ := e.Submit(func() (any, error) { return "value", nil })
	ref.Result(time.Second)

	// Serializing yields exactly the identifier string.
	data, err := json.Marshal(ref)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `"` + ref.ID() + `"`
	if string(data) != want {
		t.Errorf("serialized = %s, want %s", data, want)
	}

	// Deserializing yields a detached ref: id only, no behavior.
	var remote TaskRef
	if err := json.Unmarshal(data, &remote); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if remote.ID() != ref.ID() {
		t.Errorf("remote id = %s, want %s", remote.ID(), ref.ID())
	}
	if remote.Done() {
		t.Error("detached ref must not report done")
	}
	if _, err := remote.Result(time.Millisecond); !errors.Is(err, ErrDetached) {
		t.Errorf("detached Result = %v, want ErrDetached", err)
	}
	if err := remote.Err(); !errors.Is(err, ErrDetached) {
		t.Errorf("detached Err = %v, want ErrDetached", err)
	}
}
