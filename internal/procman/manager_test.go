package procman

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sketchbooth/sketchbooth/internal/booth"
	"github.com/sketchbooth/sketchbooth/internal/coord"
	"github.com/sketchbooth/sketchbooth/internal/eventsvc"
	"github.com/sketchbooth/sketchbooth/internal/logging"
	"github.com/sketchbooth/sketchbooth/internal/subsystem"
)

// TestMain doubles as the child process entry point. When the test binary is
// re-executed by a Manager it carries the spawn environment, and we route
// straight into RunChild instead of the test runner.
func TestMain(m *testing.M) {
	registerTestSubsystems()
	if InChildMode() {
		os.Exit(RunChild(nil))
	}
	os.Exit(m.Run())
}

const printerLines = 25

// funcSubsystem adapts a function into a Subsystem for tests.
type funcSubsystem struct {
	name string
	run  func(ctx context.Context, svc eventsvc.Invoker, logger *slog.Logger,
		flags coord.Flags, args []string) error
}

func (f funcSubsystem) Name() string { return f.name }

func (f funcSubsystem) HookUp(ctx context.Context, svc eventsvc.Invoker, logger *slog.Logger,
	flags coord.Flags, args []string) error {
	return f.run(ctx, svc, logger, flags, args)
}

var registerOnce sync.Once

func registerTestSubsystems() {
	registerOnce.Do(func() {
		subsystem.Register(funcSubsystem{"pm-capture-once", func(_ context.Context, svc eventsvc.Invoker, _ *slog.Logger, _ coord.Flags, _ []string) error {
			return svc.Capture()
		}})
		subsystem.Register(funcSubsystem{"pm-idle", func(_ context.Context, _ eventsvc.Invoker, _ *slog.Logger, flags coord.Flags, _ []string) error {
			<-flags.ExitChan()
			return nil
		}})
		subsystem.Register(funcSubsystem{"pm-stubborn", func(_ context.Context, _ eventsvc.Invoker, _ *slog.Logger, _ coord.Flags, _ []string) error {
			for {
				time.Sleep(50 * time.Millisecond)
			}
		}})
		subsystem.Register(funcSubsystem{"pm-failing", func(_ context.Context, _ eventsvc.Invoker, _ *slog.Logger, _ coord.Flags, _ []string) error {
			return errors.New("sensor wedged")
		}})
		subsystem.Register(funcSubsystem{"pm-printer", func(_ context.Context, _ eventsvc.Invoker, _ *slog.Logger, _ coord.Flags, _ []string) error {
			for i := 0; i < printerLines; i++ {
				fmt.Printf("capture-line-%03d\n", i)
			}
			return nil
		}})
	})
}

// lockedBuffer is a goroutine-safe log sink for asserting on captured output.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	mgr  *Manager
	svc  *booth.Service
	srv  *eventsvc.Server
	logs *lockedBuffer
}

// newHarness brings up a real event service on a random port and a Manager
// that re-executes this test binary for children.
func newHarness(t *testing.T, joinTimeout time.Duration) *harness {
	t.Helper()

	logs := &lockedBuffer{}
	logger := logging.NewLoggerWithWriter(logs, "text", "debug")

	flags := coord.NewLocal()
	svc := booth.NewService(booth.Config{
		Logger:   logger,
		Flags:    flags,
		ImageDir: t.TempDir(),
	})

	var mgr *Manager
	srv := eventsvc.NewServer(eventsvc.ServerConfig{
		Host:    "127.0.0.1",
		Port:    -1,
		Token:   eventsvc.NewToken(),
		Logger:  logger,
		Service: svc,
		Flags:   flags,
		OnChildReady: func(id string) {
			if mgr != nil {
				mgr.MarkRunning(id)
			}
		},
	})
	if err := srv.Start(); err != nil {
		t.Fatalf("start event service: %v", err)
	}
	t.Cleanup(srv.Shutdown)

	mgr, err := New(Config{
		Executable:  os.Args[0],
		EventAddr:   srv.Addr(),
		EventToken:  srv.Token(),
		JoinTimeout: joinTimeout,
		Logger:      logger,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	t.Cleanup(mgr.Terminate)

	return &harness{mgr: mgr, svc: svc, srv: srv, logs: logs}
}

func mustLookup(t *testing.T, name string) subsystem.Subsystem {
	t.Helper()
	sub, ok := subsystem.Lookup(name)
	if !ok {
		t.Fatalf("test subsystem %q not registered", name)
	}
	return sub
}

func waitForState(t *testing.T, c *Child, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("child %s stuck in %s, want %s", c.Subsystem(), c.State(), want)
}

func TestStartRejectsNonSubsystem(t *testing.T) {
	mgr, err := New(Config{Executable: os.Args[0]})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	for _, v := range []any{42, "gpio-trigger", struct{}{}, nil} {
		if _, err := mgr.Start(v, nil); !errors.Is(err, ErrNotSubsystem) {
			t.Errorf("Start(%T) error = %v, want ErrNotSubsystem", v, err)
		}
	}
	if len(mgr.Children()) != 0 {
		t.Errorf("rejected starts still recorded %d children", len(mgr.Children()))
	}
}

func TestStartRejectsUnregisteredSubsystem(t *testing.T) {
	mgr, err := New(Config{Executable: os.Args[0]})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	ghost := funcSubsystem{"pm-ghost", func(context.Context, eventsvc.Invoker, *slog.Logger, coord.Flags, []string) error {
		return nil
	}}
	if _, err := mgr.Start(ghost, nil); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("Start(unregistered) error = %v, want ErrNotRegistered", err)
	}
}

func TestChildRunsOperationAndExitsCleanly(t *testing.T) {
	h := newHarness(t, DefaultJoinTimeout)

	c, err := h.mgr.Start(mustLookup(t, "pm-capture-once"), nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !c.Join(10 * time.Second) {
		t.Fatal("child did not exit")
	}

	if got := c.State(); got != StateExited {
		t.Errorf("state = %s, want %s", got, StateExited)
	}
	if got := c.ExitCode(); got != ExitOK {
		t.Errorf("exit code = %d, want %d", got, ExitOK)
	}
	if got := h.svc.Captures(); got != 1 {
		t.Errorf("captures = %d, want 1 (proxy call did not land)", got)
	}
}

func TestChildReadyAnnouncementMarksRunning(t *testing.T) {
	h := newHarness(t, 300*time.Millisecond)

	c, err := h.mgr.Start(mustLookup(t, "pm-stubborn"), nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForState(t, c, StateRunning, 10*time.Second)
}

func TestTerminateGraceful(t *testing.T) {
	h := newHarness(t, 5*time.Second)

	c, err := h.mgr.Start(mustLookup(t, "pm-idle"), nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForState(t, c, StateRunning, 10*time.Second)

	h.mgr.Terminate()

	if got := c.State(); got != StateExited {
		t.Errorf("state = %s, want %s", got, StateExited)
	}
	if got := c.ExitCode(); got != ExitOK {
		t.Errorf("exit code = %d, want %d", got, ExitOK)
	}
	if strings.Contains(h.logs.String(), "force_killing_subsystem") {
		t.Error("graceful shutdown escalated to SIGKILL")
	}
}

func TestTerminateForceKillsStuckChild(t *testing.T) {
	h := newHarness(t, 500*time.Millisecond)

	c, err := h.mgr.Start(mustLookup(t, "pm-stubborn"), nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForState(t, c, StateRunning, 10*time.Second)

	start := time.Now()
	h.mgr.Terminate()
	elapsed := time.Since(start)

	if got := c.State(); got != StateKilled {
		t.Errorf("state = %s, want %s", got, StateKilled)
	}
	if elapsed > 5*time.Second {
		t.Errorf("terminate took %s, escalation window not bounded", elapsed)
	}
	if !strings.Contains(h.logs.String(), "force_killing_subsystem") {
		t.Error("no force-kill warning logged")
	}
	if h.mgr.Alive() != 0 {
		t.Error("children still alive after Terminate")
	}
}

func TestChildFailurePropagatesExitCode(t *testing.T) {
	h := newHarness(t, DefaultJoinTimeout)

	c, err := h.mgr.Start(mustLookup(t, "pm-failing"), nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !c.Join(10 * time.Second) {
		t.Fatal("child did not exit")
	}

	if got := c.State(); got != StateFailed {
		t.Errorf("state = %s, want %s", got, StateFailed)
	}
	if got := c.ExitCode(); got != ExitSubsystemError {
		t.Errorf("exit code = %d, want %d", got, ExitSubsystemError)
	}
}

func TestCaptureFidelity(t *testing.T) {
	h := newHarness(t, DefaultJoinTimeout)

	var lineMu sync.Mutex
	lines := map[string]int{}
	h.mgr.cfg.Callbacks.OnLine = func(sub, stream string) {
		lineMu.Lock()
		lines[stream]++
		lineMu.Unlock()
	}

	c, err := h.mgr.Start(mustLookup(t, "pm-printer"), nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !c.Join(10 * time.Second) {
		t.Fatal("child did not exit")
	}
	h.mgr.Terminate() // joins the capture readers

	// Every printed line must surface as exactly one log record, in order.
	var got []string
	for _, logLine := range strings.Split(h.logs.String(), "\n") {
		if i := strings.Index(logLine, "capture-line-"); i >= 0 {
			got = append(got, logLine[i:i+len("capture-line-000")])
		}
	}
	if len(got) != printerLines {
		t.Fatalf("captured %d lines, want %d", len(got), printerLines)
	}
	for i, line := range got {
		want := fmt.Sprintf("capture-line-%03d", i)
		if line != want {
			t.Errorf("line %d = %q, want %q (ordering lost)", i, line, want)
		}
	}

	lineMu.Lock()
	stdout := lines["stdout"]
	lineMu.Unlock()
	if stdout < printerLines {
		t.Errorf("OnLine saw %d stdout lines, want at least %d", stdout, printerLines)
	}
}
