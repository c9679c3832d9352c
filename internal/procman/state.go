// Package procman owns the lifecycle of the child processes backing the
// appliance's hardware and UI subsystems.
package procman

// State tracks a child process through its lifecycle.
//
// A child is spawned, becomes running once its proxy connection to the
// parent's event service is confirmed, and leaves running only through the
// manager's terminate protocol or its own observation of the shared
// exit/halt flags.
type State int32

const (
	// StateSpawned means the OS process exists but has not yet confirmed
	// its proxy connection.
	StateSpawned State = iota

	// StateRunning means the child announced a successful proxy connection
	// and is executing its subsystem loop.
	StateRunning

	// StateExited means the child stopped on its own with status 0.
	StateExited

	// StateFailed means the child stopped on its own with a non-zero
	// status (failed proxy connection, unhandled subsystem error).
	StateFailed

	// StateKilled means the child ignored graceful termination and was
	// forcibly killed.
	StateKilled
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateSpawned:
		return "spawned"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateFailed:
		return "failed"
	case StateKilled:
		return "killed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the process has stopped for good.
func (s State) IsTerminal() bool {
	return s == StateExited || s == StateFailed || s == StateKilled
}
