//go:build integration

// Package integration contains end-to-end tests that exercise the full booth:
// a real orchestrator spawning real child processes (this test binary
// re-executed) talking back over the embedded event service.
// Run with: go test -tags=integration ./tests/integration/...
package integration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sketchbooth/sketchbooth/internal/config"
	"github.com/sketchbooth/sketchbooth/internal/coord"
	"github.com/sketchbooth/sketchbooth/internal/eventsvc"
	"github.com/sketchbooth/sketchbooth/internal/logging"
	"github.com/sketchbooth/sketchbooth/internal/orchestrator"
	"github.com/sketchbooth/sketchbooth/internal/procman"
	"github.com/sketchbooth/sketchbooth/internal/subsystem"
)

// TestMain doubles as the child entry point: a spawned subsystem re-executes
// this binary with the spawn environment set, and we route into RunChild.
func TestMain(m *testing.M) {
	registerE2ESubsystems()
	if procman.InChildMode() {
		os.Exit(procman.RunChild(nil))
	}
	os.Exit(m.Run())
}

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

func registerE2ESubsystems() {
	registerOnce.Do(func() {
		subsystem.Register(funcSubsystem{"e2e-capture-once", func(_ context.Context, svc eventsvc.Invoker, _ *slog.Logger, _ coord.Flags, _ []string) error {
			return svc.Capture()
		}})
		subsystem.Register(funcSubsystem{"e2e-stubborn", func(_ context.Context, _ eventsvc.Invoker, _ *slog.Logger, _ coord.Flags, _ []string) error {
			for {
				time.Sleep(50 * time.Millisecond)
			}
		}})
		subsystem.Register(funcSubsystem{"e2e-failing", func(_ context.Context, _ eventsvc.Invoker, _ *slog.Logger, _ coord.Flags, _ []string) error {
			return errors.New("sensor wedged")
		}})
	})
}

// newBoothConfig builds a config for a short bounded run with no preflight
// and all listeners on random ports.
func newBoothConfig(t *testing.T, subsystems []string, duration time.Duration) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Subsystems = subsystems
	cfg.Duration = duration
	cfg.JoinTimeout = 1 * time.Second
	cfg.ImageDir = t.TempDir()
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.SkipPreflight = true
	return cfg
}

func runBooth(t *testing.T, cfg *config.Config) *orchestrator.Orchestrator {
	t.Helper()
	logger := logging.NewLoggerWithWriter(io.Discard, "text", "error")
	reg := prometheus.NewRegistry()
	orch := orchestrator.NewWithRegistry(cfg, logger, "test", reg, reg)

	if err := orch.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return orch
}

// subsystemRow finds a subsystem's final state in the dashboard snapshot.
func subsystemRow(t *testing.T, orch *orchestrator.Orchestrator, name string) (state string, exitCode int) {
	t.Helper()
	for _, row := range orch.DashboardSnapshot().Subsystems {
		if row.Name == name {
			return row.State, row.ExitCode
		}
	}
	t.Fatalf("subsystem %q not in snapshot", name)
	return "", 0
}

// TestIntegration_CaptureAndCleanExit runs a booth whose only subsystem takes
// one photo over the proxy and exits. The parent must record the capture and
// see a clean child exit.
func TestIntegration_CaptureAndCleanExit(t *testing.T) {
	cfg := newBoothConfig(t, []string{"e2e-capture-once"}, 2*time.Second)

	orch := runBooth(t, cfg)

	if got := orch.Service().Captures(); got != 1 {
		t.Errorf("Captures = %d, want 1", got)
	}
	state, exitCode := subsystemRow(t, orch, "e2e-capture-once")
	if state != "exited" {
		t.Errorf("state = %q, want exited", state)
	}
	if exitCode != 0 {
		t.Errorf("exit code = %d, want 0", exitCode)
	}
}

// TestIntegration_StubbornChildForceKilled runs a subsystem that ignores the
// exit flag. Shutdown must escalate to SIGKILL after the join timeout and
// still complete promptly.
func TestIntegration_StubbornChildForceKilled(t *testing.T) {
	cfg := newBoothConfig(t, []string{"e2e-stubborn"}, 1*time.Second)

	start := time.Now()
	orch := runBooth(t, cfg)
	elapsed := time.Since(start)

	// duration (1s) + join timeout (1s) + reader join and teardown slack
	if elapsed > 10*time.Second {
		t.Errorf("run took %v, force kill should bound shutdown", elapsed)
	}
	state, _ := subsystemRow(t, orch, "e2e-stubborn")
	if state != "killed" {
		t.Errorf("state = %q, want killed", state)
	}
}

// TestIntegration_FailingChildDoesNotFailParent runs a subsystem whose hookup
// returns an error. The child exits nonzero; the parent run still completes
// cleanly.
func TestIntegration_FailingChildDoesNotFailParent(t *testing.T) {
	cfg := newBoothConfig(t, []string{"e2e-failing"}, 2*time.Second)

	orch := runBooth(t, cfg)

	state, exitCode := subsystemRow(t, orch, "e2e-failing")
	if state != "failed" {
		t.Errorf("state = %q, want failed", state)
	}
	if exitCode != procman.ExitSubsystemError {
		t.Errorf("exit code = %d, want %d", exitCode, procman.ExitSubsystemError)
	}
}
