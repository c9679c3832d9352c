package orchestrator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sketchbooth/sketchbooth/internal/config"
	"github.com/sketchbooth/sketchbooth/internal/logging"
	"github.com/sketchbooth/sketchbooth/internal/procman"
)

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.ImageDir = t.TempDir()
	cfg.SkipPreflight = true

	reg := prometheus.NewRegistry()
	logger := logging.NewLoggerWithWriter(os.Stderr, "text", "error")
	return NewWithRegistry(cfg, logger, "test", reg, reg)
}

func TestNewWiresComponents(t *testing.T) {
	o := newTestOrchestrator(t)

	if o.service == nil || o.server == nil || o.flags == nil || o.tracker == nil {
		t.Fatal("orchestrator missing components")
	}

	snap := o.DashboardSnapshot()
	if len(snap.Subsystems) != 0 {
		t.Errorf("fresh orchestrator already has %d subsystems", len(snap.Subsystems))
	}
	if snap.Captures != 0 || snap.Recording {
		t.Errorf("fresh snapshot = %+v", snap)
	}
}

func TestDashboardSnapshotReflectsService(t *testing.T) {
	o := newTestOrchestrator(t)

	if err := o.service.Capture(); err != nil {
		t.Fatalf("capture: %v", err)
	}
	o.service.ToggleRecording()

	snap := o.DashboardSnapshot()
	if snap.Captures != 1 {
		t.Errorf("captures = %d, want 1", snap.Captures)
	}
	if !snap.Recording {
		t.Error("recording flag not reflected")
	}
	if snap.LastCapture == "" {
		t.Error("last capture path empty")
	}
}

func TestSpawnSubsystemsRejectsUnknownName(t *testing.T) {
	o := newTestOrchestrator(t)
	o.config.Subsystems = []string{"teleporter"}

	mgr, err := procman.New(procman.Config{Executable: "/bin/true", Logger: o.logger})
	if err != nil {
		t.Fatal(err)
	}
	o.manager = mgr

	if err := o.spawnSubsystems(); err == nil || !strings.Contains(err.Error(), "teleporter") {
		t.Errorf("spawnSubsystems error = %v, want unknown subsystem", err)
	}
}

func TestHaltCommand(t *testing.T) {
	t.Run("configured_command_runs", func(t *testing.T) {
		o := newTestOrchestrator(t)
		marker := filepath.Join(t.TempDir(), "halted")
		o.config.HaltCommand = "touch " + marker

		o.halt()

		if _, err := os.Stat(marker); err != nil {
			t.Errorf("halt command did not run: %v", err)
		}
	})

	t.Run("empty_command_logs_only", func(t *testing.T) {
		o := newTestOrchestrator(t)
		o.config.HaltCommand = ""
		o.halt() // must not panic or execute anything
	})
}

func TestExitCodeLabel(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, "(clean)"},
		{1, "(error)"},
		{2, "(unknown name)"},
		{3, "(connect failed)"},
		{137, "(SIGKILL)"},
		{143, "(SIGTERM)"},
		{42, ""},
	}
	for _, tt := range tests {
		if got := exitCodeLabel(tt.code); got != tt.want {
			t.Errorf("exitCodeLabel(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	if got := formatDuration(90 * time.Second); got != "00:01:30" {
		t.Errorf("formatDuration = %q, want 00:01:30", got)
	}
}
