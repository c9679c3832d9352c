package procman

import (
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// Child is the parent-side handle for one spawned subsystem process.
//
// All fields are owned by the Manager; callers observe a child through its
// accessor methods, which are safe for concurrent use.
type Child struct {
	subsystem  string
	instanceID string

	cmd    *exec.Cmd
	pid    int
	logger *slog.Logger

	// Read ends of the stdout/stderr capture pipes. Nil when the stream
	// is passed through instead of captured.
	stdoutR *os.File
	stderrR *os.File

	// readers joins the per-stream capture goroutines.
	readers sync.WaitGroup

	state    atomic.Int32
	exitCode atomic.Int32

	// waitDone closes after cmd.Wait returns and the exit state is
	// recorded.
	waitDone chan struct{}
}

// Subsystem returns the registered subsystem name this child runs.
func (c *Child) Subsystem() string { return c.subsystem }

// InstanceID returns the unique id assigned to this spawn. The child
// announces it back over the event service when its proxy connection is up.
func (c *Child) InstanceID() string { return c.instanceID }

// Pid returns the OS process id.
func (c *Child) Pid() int { return c.pid }

// State returns the child's current lifecycle state.
func (c *Child) State() State { return State(c.state.Load()) }

// ExitCode returns the process exit status. Valid only once State is
// terminal; before that it returns -1.
func (c *Child) ExitCode() int {
	if !c.State().IsTerminal() {
		return -1
	}
	return int(c.exitCode.Load())
}

// IsAlive reports whether the OS process is still running.
func (c *Child) IsAlive() bool {
	select {
	case <-c.waitDone:
		return false
	default:
		return !c.State().IsTerminal()
	}
}

// Join waits up to timeout for the process to stop. It reports whether the
// process stopped within the window.
func (c *Child) Join(timeout time.Duration) bool {
	select {
	case <-c.waitDone:
		return true
	case <-time.After(timeout):
		return false
	}
}

// transition moves the child to next unless it already reached a terminal
// state. It returns the state actually in effect afterwards.
func (c *Child) transition(next State) State {
	for {
		cur := State(c.state.Load())
		if cur.IsTerminal() {
			return cur
		}
		if c.state.CompareAndSwap(int32(cur), int32(next)) {
			return next
		}
	}
}

// signalGroup delivers sig to the child's process group, falling back to the
// process itself when the group signal fails.
func (c *Child) signalGroup(sig syscall.Signal) error {
	if err := syscall.Kill(-c.pid, sig); err == nil {
		return nil
	}
	return c.cmd.Process.Signal(sig)
}

// closeReadEnds closes the capture pipe read ends, unblocking any reader
// goroutine still parked in a read.
func (c *Child) closeReadEnds() {
	if c.stdoutR != nil {
		c.stdoutR.Close()
	}
	if c.stderrR != nil {
		c.stderrR.Close()
	}
}
