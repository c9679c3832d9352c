// Package coord carries the process-shared shutdown coordination flags.
//
// Two independent one-way latches are shared by every subsystem: the exit
// flag (graceful shutdown requested) and the halt flag (hardware halt button
// pressed). Once set, a latch is never cleared for the lifetime of the
// appliance. Subsystem loops poll these cooperatively.
package coord

import (
	"sync"
	"sync/atomic"
)

// Flags is the shared-state handle injected into every subsystem entry point.
// The parent holds the authoritative latches; children hold a remote-backed
// implementation that mirrors them.
type Flags interface {
	// ExitRequested reports whether graceful shutdown has been requested.
	ExitRequested() bool

	// HaltRequested reports whether a hardware halt has been requested.
	HaltRequested() bool

	// RequestExit latches the exit flag. Safe to call repeatedly.
	RequestExit()

	// RequestHalt latches the halt flag and implies RequestExit.
	RequestHalt()

	// ExitChan is closed once the exit flag latches, for select loops.
	ExitChan() <-chan struct{}
}

// Local is the in-process implementation of Flags, used by the parent and by
// tests. Latching is idempotent.
type Local struct {
	exit atomic.Bool
	halt atomic.Bool

	exitCh   chan struct{}
	exitOnce sync.Once

	// onExit/onHalt fire once on the first latch, for rebroadcast hooks.
	onExit func()
	onHalt func()
}

// NewLocal creates a fresh pair of unlatched flags.
func NewLocal() *Local {
	return &Local{exitCh: make(chan struct{})}
}

// OnLatch registers hooks invoked the first time each flag latches.
// Must be called before the flags are shared.
func (l *Local) OnLatch(onExit, onHalt func()) {
	l.onExit = onExit
	l.onHalt = onHalt
}

// ExitRequested implements Flags.
func (l *Local) ExitRequested() bool { return l.exit.Load() }

// HaltRequested implements Flags.
func (l *Local) HaltRequested() bool { return l.halt.Load() }

// RequestExit implements Flags.
func (l *Local) RequestExit() {
	if l.exit.CompareAndSwap(false, true) {
		if l.onExit != nil {
			l.onExit()
		}
	}
	l.exitOnce.Do(func() { close(l.exitCh) })
}

// RequestHalt implements Flags. A halt always implies an exit so that
// subsystems watching only the exit flag still stop.
func (l *Local) RequestHalt() {
	if l.halt.CompareAndSwap(false, true) {
		if l.onHalt != nil {
			l.onHalt()
		}
	}
	l.RequestExit()
}

// ExitChan implements Flags.
func (l *Local) ExitChan() <-chan struct{} { return l.exitCh }

var _ Flags = (*Local)(nil)
