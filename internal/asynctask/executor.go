// Package asynctask runs fire-and-forget or awaitable work off the calling
// thread within one process.
//
// Subsystems use an Executor so that callback dispatch (capture, dizzy, say)
// never blocks their hardware monitoring loop. Each submission is tracked in
// a registry keyed by a random identifier, so a caller can later poll for
// completion; entries are evicted as tasks finish, bounding the registry to
// in-flight work only.
package asynctask

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrClosed is returned by Submit after Shutdown.
var ErrClosed = errors.New("asynctask: executor is shut down")

// DefaultWorkers matches the appliance's historical pool size: operations
// requested while another is in progress are meant to be dispatchable, which
// needs at least two workers.
const DefaultWorkers = 2

// Func is a unit of asynchronous work.
type Func func() (any, error)

// Executor is a bounded worker pool with a registry of in-flight tasks.
type Executor struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []*queued
	closed  bool
	pending map[string]*TaskRef

	wg sync.WaitGroup
}

type queued struct {
	ref *TaskRef
	fn  Func
}

// New creates an Executor with the given worker count (DefaultWorkers if
// workers <= 0).
func New(workers int) *Executor {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	e := &Executor{pending: make(map[string]*TaskRef)}
	e.cond = sync.NewCond(&e.mu)

	e.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go e.worker()
	}
	return e
}

// Submit enqueues fn and returns immediately with a handle. Each submission
// gets a fresh random 128-bit identifier, so identifiers never collide over
// the executor's lifetime.
func (e *Executor) Submit(fn Func) (*TaskRef, error) {
	if fn == nil {
		return nil, errors.New("asynctask: nil func")
	}

	ref := &TaskRef{
		id:   uuid.NewString(),
		done: make(chan struct{}),
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	e.pending[ref.id] = ref
	e.queue = append(e.queue, &queued{ref: ref, fn: fn})
	e.mu.Unlock()
	e.cond.Signal()

	return ref, nil
}

// Lookup returns the in-flight task with the given identifier. Completed
// tasks are evicted, so a miss means either "never existed" or "already
// finished"; callers treat both as done-and-forgotten.
func (e *Executor) Lookup(id string) (*TaskRef, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ref, ok := e.pending[id]
	return ref, ok
}

// InFlight returns the number of tasks submitted but not yet completed.
func (e *Executor) InFlight() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// Shutdown stops accepting new work. Queued tasks still run; if wait is true,
// Shutdown blocks until all workers drain and exit.
func (e *Executor) Shutdown(wait bool) {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.cond.Broadcast()

	if wait {
		e.wg.Wait()
	}
}

// worker pops queued tasks until the executor is closed and drained.
func (e *Executor) worker() {
	defer e.wg.Done()

	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.closed {
			e.cond.Wait()
		}
		if len(e.queue) == 0 && e.closed {
			e.mu.Unlock()
			return
		}
		q := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()

		e.run(q)
	}
}

// run executes one task, capturing panics as errors rather than letting them
// take down the pool.
func (e *Executor) run(q *queued) {
	defer func() {
		e.mu.Lock()
		delete(e.pending, q.ref.id)
		e.mu.Unlock()
	}()

	defer func() {
		if r := recover(); r != nil {
			q.ref.complete(nil, fmt.Errorf("asynctask: task panicked: %v", r))
		}
	}()

	value, err := q.fn()
	q.ref.complete(value, err)
}
