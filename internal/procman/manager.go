package procman

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/sketchbooth/sketchbooth/internal/logging"
	"github.com/sketchbooth/sketchbooth/internal/subsystem"
)

var (
	// ErrNotSubsystem is returned when Start is handed a value that does not
	// satisfy the subsystem contract.
	ErrNotSubsystem = errors.New("procman: value does not implement subsystem.Subsystem")

	// ErrNotRegistered is returned when the subsystem is not in the registry,
	// meaning a spawned child could never resolve it.
	ErrNotRegistered = errors.New("procman: subsystem not registered")
)

// Environment variables carrying the spawn contract to the child process.
// The child re-executes the parent binary; these tell it which subsystem to
// run and where the parent's event service listens.
const (
	EnvSubsystem  = "SKETCHBOOTH_SUBSYSTEM"
	EnvEventAddr  = "SKETCHBOOTH_EVENT_ADDR"
	EnvEventToken = "SKETCHBOOTH_EVENT_TOKEN"
	EnvInstanceID = "SKETCHBOOTH_INSTANCE_ID"
)

const (
	// DefaultJoinTimeout bounds the graceful-shutdown window per child
	// before escalating to SIGKILL.
	DefaultJoinTimeout = 1 * time.Second

	// readerJoinTimeout bounds waiting for the capture goroutines after a
	// child is gone.
	readerJoinTimeout = 2 * time.Second
)

// Callbacks contains optional hooks for manager events.
type Callbacks struct {
	// OnStateChange fires when a child's state changes.
	OnStateChange func(sub string, oldState, newState State)

	// OnSpawn fires once a child process starts.
	OnSpawn func(sub string, pid int)

	// OnExit fires when a child process stops, however it stopped.
	OnExit func(sub string, exitCode int, uptime time.Duration)

	// OnLine fires for every captured output line, keyed by stream
	// ("stdout" or "stderr").
	OnLine func(sub, stream string)
}

// Config holds configuration for creating a Manager.
type Config struct {
	// Executable is the binary spawned for every child. Empty means
	// re-execute the current binary.
	Executable string

	// EventAddr and EventToken locate the parent's event service; they are
	// handed to each child through the environment.
	EventAddr  string
	EventToken string

	// JoinTimeout bounds graceful termination per child. Zero means
	// DefaultJoinTimeout.
	JoinTimeout time.Duration

	Logger    *slog.Logger
	Callbacks Callbacks
}

// Manager spawns subsystem child processes and owns their shutdown.
//
// Each child gets its own OS process running the same binary in subsystem
// mode, its stdout/stderr captured through pipes into the parent's logger.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	children []*Child
}

// New creates a Manager.
func New(cfg Config) (*Manager, error) {
	if cfg.Executable == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve own executable: %w", err)
		}
		cfg.Executable = exe
	}
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = DefaultJoinTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{cfg: cfg, logger: logger}, nil
}

// StartOption adjusts how a single child is spawned.
type StartOption func(*startOptions)

type startOptions struct {
	captureStdout bool
	captureStderr bool
	stripANSI     bool
	filter        logging.LineFilter
}

// WithoutStdoutCapture passes the child's stdout through to the parent's
// instead of piping it into the log.
func WithoutStdoutCapture() StartOption {
	return func(o *startOptions) { o.captureStdout = false }
}

// WithoutStderrCapture passes the child's stderr through to the parent's.
func WithoutStderrCapture() StartOption {
	return func(o *startOptions) { o.captureStderr = false }
}

// WithANSIFilter controls stripping of terminal escape sequences from
// captured lines. Stripping is on by default.
func WithANSIFilter(strip bool) StartOption {
	return func(o *startOptions) { o.stripANSI = strip }
}

// WithLineFilter installs a custom transform applied to every captured line
// after the built-in filters. Returning "" drops the line.
func WithLineFilter(f logging.LineFilter) StartOption {
	return func(o *startOptions) { o.filter = f }
}

// Start spawns a child process for sub and begins capturing its output.
//
// sub is accepted as any so that arbitrary values can be offered for
// spawning, but only values satisfying subsystem.Subsystem are runnable;
// anything else fails with ErrNotSubsystem before a process is created.
func (m *Manager) Start(sub any, args []string, opts ...StartOption) (*Child, error) {
	s, ok := sub.(subsystem.Subsystem)
	if !ok {
		return nil, fmt.Errorf("%w (got %T)", ErrNotSubsystem, sub)
	}
	name := s.Name()
	if _, registered := subsystem.Lookup(name); !registered {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}

	o := startOptions{captureStdout: true, captureStderr: true, stripANSI: true}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Child{
		subsystem:  name,
		instanceID: uuid.NewString(),
		logger:     logging.ForSubsystem(m.logger, name),
		waitDone:   make(chan struct{}),
	}

	cmd := exec.Command(m.cfg.Executable, args...)
	cmd.Env = append(os.Environ(),
		EnvSubsystem+"="+name,
		EnvEventAddr+"="+m.cfg.EventAddr,
		EnvEventToken+"="+m.cfg.EventToken,
		EnvInstanceID+"="+c.instanceID,
	)

	// Children get their own process group so the kill escalation cannot
	// take the parent down with it.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	filter := logging.CaptureFilter(o.stripANSI, o.filter)

	var stdoutW, stderrW *os.File
	closeAll := func() {
		for _, f := range []*os.File{c.stdoutR, stdoutW, c.stderrR, stderrW} {
			if f != nil {
				f.Close()
			}
		}
	}

	if o.captureStdout {
		var err error
		c.stdoutR, stdoutW, err = os.Pipe()
		if err != nil {
			return nil, fmt.Errorf("stdout pipe: %w", err)
		}
		cmd.Stdout = stdoutW
	} else {
		cmd.Stdout = os.Stdout
	}
	if o.captureStderr {
		var err error
		c.stderrR, stderrW, err = os.Pipe()
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("stderr pipe: %w", err)
		}
		cmd.Stderr = stderrW
	} else {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		closeAll()
		return nil, fmt.Errorf("spawn %s: %w", name, err)
	}

	// Close the parent's write ends after Start() so the readers see EOF
	// when the child exits.
	if stdoutW != nil {
		stdoutW.Close()
	}
	if stderrW != nil {
		stderrW.Close()
	}

	c.cmd = cmd
	c.pid = cmd.Process.Pid

	c.logger.Info("subsystem_spawned",
		"instance_id", c.instanceID,
		"pid", c.pid,
	)
	if m.cfg.Callbacks.OnSpawn != nil {
		m.cfg.Callbacks.OnSpawn(name, c.pid)
	}

	if c.stdoutR != nil {
		c.readers.Add(1)
		go m.captureStream(c, c.stdoutR, "stdout", slog.LevelInfo, filter)
	}
	if c.stderrR != nil {
		c.readers.Add(1)
		go m.captureStream(c, c.stderrR, "stderr", slog.LevelWarn, filter)
	}

	go m.reap(c, time.Now())

	m.mu.Lock()
	m.children = append(m.children, c)
	m.mu.Unlock()

	return c, nil
}

// captureStream re-logs one child output stream line by line under the
// parent's logger until EOF.
func (m *Manager) captureStream(c *Child, r *os.File, stream string, level slog.Level, filter logging.LineFilter) {
	defer c.readers.Done()

	scanner := bufio.NewScanner(r)
	// Raw lines can exceed the truncation cap; the filter trims them after
	// the scanner has read them whole.
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		line := filter(scanner.Text())
		if line == "" {
			continue
		}
		c.logger.Log(nil, level, line, "stream", stream)
		if m.cfg.Callbacks.OnLine != nil {
			m.cfg.Callbacks.OnLine(c.subsystem, stream)
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		c.logger.Debug("capture_stream_ended", "stream", stream, "error", err)
	}
}

// reap waits for the child process and records its exit.
func (m *Manager) reap(c *Child, started time.Time) {
	waitErr := c.cmd.Wait()
	uptime := time.Since(started)
	code := extractExitCode(waitErr)
	c.exitCode.Store(int32(code))

	next := StateExited
	if code != 0 {
		next = StateFailed
	}
	old := c.State()
	final := c.transition(next)
	close(c.waitDone)

	c.logger.Info("subsystem_exited",
		"instance_id", c.instanceID,
		"pid", c.pid,
		"exit_code", code,
		"uptime", uptime.Round(time.Millisecond).String(),
	)
	if m.cfg.Callbacks.OnStateChange != nil && old != final {
		m.cfg.Callbacks.OnStateChange(c.subsystem, old, final)
	}
	if m.cfg.Callbacks.OnExit != nil {
		m.cfg.Callbacks.OnExit(c.subsystem, code, uptime)
	}
}

// MarkRunning confirms a child's proxy connection, moving it from spawned to
// running. The event service calls this when the child announces readiness.
func (m *Manager) MarkRunning(instanceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.children {
		if c.instanceID != instanceID {
			continue
		}
		if c.State() != StateSpawned {
			return
		}
		if c.state.CompareAndSwap(int32(StateSpawned), int32(StateRunning)) {
			c.logger.Info("subsystem_running", "instance_id", instanceID, "pid", c.pid)
			if m.cfg.Callbacks.OnStateChange != nil {
				m.cfg.Callbacks.OnStateChange(c.subsystem, StateSpawned, StateRunning)
			}
		}
		return
	}
	m.logger.Warn("ready_announcement_for_unknown_child", "instance_id", instanceID)
}

// Children returns a snapshot of all children ever started, in spawn order.
func (m *Manager) Children() []*Child {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Child, len(m.children))
	copy(out, m.children)
	return out
}

// Alive reports how many children are still running.
func (m *Manager) Alive() int {
	n := 0
	for _, c := range m.Children() {
		if c.IsAlive() {
			n++
		}
	}
	return n
}

// Terminate stops every child, in spawn order. Each child gets SIGTERM and a
// bounded window to exit; stragglers are SIGKILLed with a warning. Capture
// pipes are closed afterwards and the reader goroutines joined.
func (m *Manager) Terminate() {
	for _, c := range m.Children() {
		m.terminateChild(c)
	}

	done := make(chan struct{})
	go func() {
		for _, c := range m.Children() {
			c.readers.Wait()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(readerJoinTimeout):
		m.logger.Warn("capture_reader_join_timeout", "timeout", readerJoinTimeout.String())
	}
}

func (m *Manager) terminateChild(c *Child) {
	defer c.closeReadEnds()

	if !c.IsAlive() {
		return
	}

	if err := c.signalGroup(syscall.SIGTERM); err != nil {
		c.logger.Debug("sigterm_failed", "pid", c.pid, "error", err)
	}
	if c.Join(m.cfg.JoinTimeout) {
		return
	}

	c.logger.Warn("force_killing_subsystem",
		"subsystem", c.subsystem,
		"pid", c.pid,
		"timeout", m.cfg.JoinTimeout.String(),
	)
	prev := c.State()
	if c.transition(StateKilled) == StateKilled && prev != StateKilled {
		if m.cfg.Callbacks.OnStateChange != nil {
			m.cfg.Callbacks.OnStateChange(c.subsystem, prev, StateKilled)
		}
	}
	if err := c.signalGroup(syscall.SIGKILL); err != nil {
		c.logger.Debug("sigkill_failed", "pid", c.pid, "error", err)
	}
	c.Join(m.cfg.JoinTimeout)
}

// extractExitCode extracts the exit code from a Wait() error.
func extractExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				// Signal exit: 128 + signal number
				return 128 + int(status.Signal())
			}
			return status.ExitStatus()
		}
	}

	return 1
}
