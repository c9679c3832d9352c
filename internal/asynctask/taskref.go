package asynctask

import (
	"errors"
	"time"
)

var (
	// ErrTimeout is returned by Result when the deadline passes first.
	ErrTimeout = errors.New("asynctask: result wait timed out")

	// ErrDetached is returned by a TaskRef that was deserialized outside its
	// owning process. Such a ref carries only the identifier; the future it
	// named is not valid here.
	ErrDetached = errors.New("asynctask: detached task reference")
)

// TaskRef is an opaque handle to an in-flight asynchronous call. It is only
// meaningful within the process that submitted the task; across a process
// boundary it degrades to its bare identifier string.
type TaskRef struct {
	id       string
	done     chan struct{}
	value    any
	err      error
	detached bool
}

// ID returns the task's unique identifier.
func (t *TaskRef) ID() string { return t.id }

// Done reports whether the task has completed, without blocking.
func (t *TaskRef) Done() bool {
	if t.detached {
		return false
	}
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Result blocks up to timeout for completion and returns the callable's value
// or its error. A timeout <= 0 waits indefinitely.
func (t *TaskRef) Result(timeout time.Duration) (any, error) {
	if t.detached {
		return nil, ErrDetached
	}
	if timeout <= 0 {
		<-t.done
		return t.value, t.err
	}
	select {
	case <-t.done:
		return t.value, t.err
	case <-time.After(timeout):
		return nil, ErrTimeout
	}
}

// Err returns the task's error if it completed, ErrDetached for a
// deserialized ref, and nil while still running.
func (t *TaskRef) Err() error {
	if t.detached {
		return ErrDetached
	}
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// MarshalText serializes the ref to exactly its identifier. The future is not
// recoverable on the receiving side; the identifier can only be used to ask
// the owning process about status.
func (t *TaskRef) MarshalText() ([]byte, error) {
	return []byte(t.id), nil
}

// UnmarshalText produces a detached ref carrying only the identifier.
func (t *TaskRef) UnmarshalText(data []byte) error {
	t.id = string(data)
	t.detached = true
	t.done = nil
	t.value = nil
	t.err = nil
	return nil
}

// complete records the outcome and releases waiters. Called exactly once by
// the owning executor's worker.
func (t *TaskRef) complete(value any, err error) {
	t.value = value
	t.err = err
	close(t.done)
}
