// Package orchestrator wires the booth together: the shared event service,
// the process manager spawning subsystem children, metrics, and shutdown.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sketchbooth/sketchbooth/internal/booth"
	"github.com/sketchbooth/sketchbooth/internal/config"
	"github.com/sketchbooth/sketchbooth/internal/coord"
	"github.com/sketchbooth/sketchbooth/internal/eventsvc"
	"github.com/sketchbooth/sketchbooth/internal/metrics"
	"github.com/sketchbooth/sketchbooth/internal/preflight"
	"github.com/sketchbooth/sketchbooth/internal/procman"
	"github.com/sketchbooth/sketchbooth/internal/stats"
	"github.com/sketchbooth/sketchbooth/internal/subsystem"
	"github.com/sketchbooth/sketchbooth/internal/timeseries"
	"github.com/sketchbooth/sketchbooth/internal/tui"
)

// Orchestrator coordinates all components of a booth run.
type Orchestrator struct {
	config  *config.Config
	logger  *slog.Logger
	version string

	flags         *coord.Local
	service       *booth.Service
	server        *eventsvc.Server
	manager       *procman.Manager
	collector     *metrics.Collector
	metricsServer *metrics.Server
	tracker       *stats.Tracker
	rate          *timeseries.RateTracker

	tuiProgram *tea.Program

	startTime time.Time
}

// New creates an Orchestrator with the given configuration.
func New(cfg *config.Config, logger *slog.Logger, version string) *Orchestrator {
	return NewWithRegistry(cfg, logger, version, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewWithRegistry creates an Orchestrator registering its metrics on the
// given registry. Tests use this to avoid collisions on the default registry.
func NewWithRegistry(cfg *config.Config, logger *slog.Logger, version string,
	reg prometheus.Registerer, gatherer prometheus.Gatherer) *Orchestrator {

	flags := coord.NewLocal()
	tracker := stats.NewTracker()
	collector := metrics.NewCollectorWithRegistry(metrics.CollectorConfig{Version: version}, reg)

	service := booth.NewService(booth.Config{
		Logger:             logger,
		Flags:              flags,
		ImageDir:           cfg.ImageDir,
		DelayedCaptureWait: cfg.DelayedCaptureWait,
	})

	o := &Orchestrator{
		config:        cfg,
		logger:        logger,
		version:       version,
		flags:         flags,
		service:       service,
		collector:     collector,
		metricsServer: metrics.NewServerWithGatherer(cfg.MetricsAddr, logger, gatherer),
		tracker:       tracker,
		rate:          timeseries.NewRateTracker(),
	}

	// The embedded listener uses -1 for "pick a free port".
	port := cfg.EventPort
	if port == 0 {
		port = -1
	}
	o.server = eventsvc.NewServer(eventsvc.ServerConfig{
		Host:    cfg.EventHost,
		Port:    port,
		Token:   eventsvc.NewToken(),
		Logger:  logger,
		Service: service,
		Flags:   flags,
		RecordCall: func(op string, dur time.Duration, err error) {
			collector.ObserveCall(op, dur, err)
			tracker.Record(op, dur, err)
		},
		OnChildReady: func(instanceID string) {
			if o.manager != nil {
				o.manager.MarkRunning(instanceID)
			}
		},
	})

	return o
}

// Run executes the booth. It blocks until shutdown is requested by signal,
// by a subsystem (close operation), or by the configured duration elapsing.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.startTime = time.Now()

	if !o.config.SkipPreflight {
		result := preflight.RunAll(preflight.Params{
			Subsystems: len(o.config.Subsystems),
			ImageDir:   o.config.ImageDir,
			EventHost:  o.config.EventHost,
			EventPort:  o.config.EventPort,
		})
		preflight.PrintResults(result)
		if !result.Passed {
			return fmt.Errorf("preflight checks failed (use -skip-preflight to override)")
		}
	} else if err := os.MkdirAll(o.config.ImageDir, 0o755); err != nil {
		return fmt.Errorf("image dir: %w", err)
	}

	if err := o.server.Start(); err != nil {
		return fmt.Errorf("event service: %w", err)
	}
	defer o.server.Shutdown()

	if err := o.metricsServer.Start(); err != nil {
		return fmt.Errorf("metrics server: %w", err)
	}

	mgr, err := procman.New(procman.Config{
		EventAddr:   o.server.Addr(),
		EventToken:  o.server.Token(),
		JoinTimeout: o.config.JoinTimeout,
		Logger:      o.logger,
		Callbacks: procman.Callbacks{
			OnSpawn: func(sub string, pid int) {
				o.collector.SubsystemSpawned(sub)
				o.collector.SubsystemState(sub, procman.StateSpawned.String())
			},
			OnStateChange: func(sub string, oldState, newState procman.State) {
				o.collector.SubsystemState(sub, newState.String())
				if newState == procman.StateKilled {
					o.collector.SubsystemForceKilled(sub)
				}
			},
			OnExit: func(sub string, exitCode int, uptime time.Duration) {
				o.collector.SubsystemExited(sub, exitCode)
			},
			OnLine: func(sub, stream string) {
				o.collector.LineCaptured(sub, stream)
			},
		},
	})
	if err != nil {
		return err
	}
	o.manager = mgr

	if err := o.spawnSubsystems(); err != nil {
		o.manager.Terminate()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)
	go func() {
		for sig := range sigCh {
			if o.flags.ExitRequested() {
				continue
			}
			o.logger.Info("received_signal", "signal", sig.String())
			o.flags.RequestExit()
		}
	}()

	tickerDone := make(chan struct{})
	go o.refreshGauges(tickerDone)

	if o.config.TUIEnabled {
		o.startTUI()
	}

	var durationTimer <-chan time.Time
	if o.config.Duration > 0 {
		durationTimer = time.After(o.config.Duration)
	}

	select {
	case <-o.flags.ExitChan():
		o.logger.Info("exit_flag_latched")
	case <-durationTimer:
		o.logger.Info("duration_elapsed", "duration", o.config.Duration.String())
		o.flags.RequestExit()
	case <-ctx.Done():
		o.logger.Info("context_cancelled")
		o.flags.RequestExit()
	}

	o.shutdown(tickerDone)
	return nil
}

// spawnSubsystems starts one child per configured subsystem.
func (o *Orchestrator) spawnSubsystems() error {
	for _, name := range o.config.Subsystems {
		sub, ok := subsystem.Lookup(name)
		if !ok {
			return fmt.Errorf("unknown subsystem %q", name)
		}
		args := o.config.SubsystemArgs[name]
		if _, err := o.manager.Start(sub, args); err != nil {
			return fmt.Errorf("spawn %s: %w", name, err)
		}
	}
	o.logger.Info("subsystems_spawned", "count", len(o.config.Subsystems))
	return nil
}

// refreshGauges keeps the derived metrics current until shutdown.
func (o *Orchestrator) refreshGauges(done <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			o.collector.Tick()
			o.collector.SetAlive(o.manager.Alive())
			o.collector.SetTasksInFlight(o.service.InFlight())
			o.collector.SetFlags(o.flags.ExitRequested(), o.flags.HaltRequested())
			o.rate.RecordSample(int64(o.service.Captures()))
		}
	}
}

func (o *Orchestrator) startTUI() {
	p := tea.NewProgram(
		tui.New(tui.Config{MetricsAddr: o.config.MetricsAddr, Source: o}),
		tea.WithAltScreen(),
	)
	o.tuiProgram = p
	go func() {
		if _, err := p.Run(); err != nil {
			o.logger.Warn("tui_error", "error", err)
		}
		// Quitting the dashboard quits the booth.
		o.flags.RequestExit()
	}()
}

// shutdown tears everything down in dependency order: children first so
// their last proxy calls still land, then the service, then the listeners.
func (o *Orchestrator) shutdown(tickerDone chan struct{}) {
	o.logger.Info("shutting_down")

	o.manager.Terminate()
	o.service.Shutdown()
	close(tickerDone)

	if o.tuiProgram != nil {
		tui.SendQuit(o.tuiProgram)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.metricsServer.Shutdown(shutdownCtx); err != nil {
		o.logger.Warn("metrics_server_shutdown_error", "error", err)
	}

	if o.flags.HaltRequested() {
		o.halt()
	}

	o.printExitSummary()
}

// halt powers the appliance down when configured to, and otherwise just says
// it would have.
func (o *Orchestrator) halt() {
	if o.config.HaltCommand == "" {
		o.logger.Info("halt_requested", "action", "none configured, skipping poweroff")
		return
	}
	o.logger.Info("halting", "command", o.config.HaltCommand)
	cmd := exec.Command("sh", "-c", o.config.HaltCommand)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		o.logger.Error("halt_command_failed", "error", err)
	}
}

// printExitSummary prints a summary of the booth run.
func (o *Orchestrator) printExitSummary() {
	sum := o.collector.Summarize()
	lat := o.tracker.Snapshot()

	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════════════")
	fmt.Println("                        sketchbooth Exit Summary")
	fmt.Println("═══════════════════════════════════════════════════════════════════")
	fmt.Printf("Run Duration:           %s\n", formatDuration(time.Since(o.startTime)))
	fmt.Printf("Subsystems Spawned:     %d\n", sum.Spawns)
	fmt.Printf("Photos Captured:        %d\n", o.service.Captures())
	if rate := o.rate.GetStats(int64(o.service.Captures())); rate.PerMinOverall > 0 {
		fmt.Printf("Capture Rate:           %.1f/min\n", rate.PerMinOverall)
	}
	fmt.Println()

	if len(sum.ExitCodes) > 0 {
		fmt.Println("Exit Codes:")
		for code, count := range sum.ExitCodes {
			fmt.Printf("  %3d %-16s %d\n", code, exitCodeLabel(code), count)
		}
		if sum.ForceKills > 0 {
			fmt.Printf("  Force Kills:          %d\n", sum.ForceKills)
		}
		fmt.Println()
	}

	if lat.Calls > 0 {
		fmt.Println("Event Service Calls:")
		fmt.Printf("  Total:                %d (%d errors)\n", lat.Calls, lat.Errors)
		fmt.Printf("  Latency P50:          %s\n", lat.P50)
		fmt.Printf("  Latency P95:          %s\n", lat.P95)
		fmt.Printf("  Latency P99:          %s\n", lat.P99)
		fmt.Println()
	}

	fmt.Printf("Metrics endpoint was: http://%s/metrics\n", o.config.MetricsAddr)
	fmt.Println("═══════════════════════════════════════════════════════════════════")
}

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// exitCodeLabel returns a human-readable label for common exit codes.
func exitCodeLabel(code int) string {
	switch code {
	case procman.ExitOK:
		return "(clean)"
	case procman.ExitSubsystemError:
		return "(error)"
	case procman.ExitUnknownName:
		return "(unknown name)"
	case procman.ExitConnectFailed:
		return "(connect failed)"
	case 137:
		return "(SIGKILL)"
	case 143:
		return "(SIGTERM)"
	default:
		return ""
	}
}

// DashboardSnapshot implements tui.Source.
func (o *Orchestrator) DashboardSnapshot() tui.Snapshot {
	snap := tui.Snapshot{
		Captures:       o.service.Captures(),
		LastCapture:    o.service.LastCapture(),
		Recording:      o.service.Recording(),
		TasksQueued:    o.service.InFlight(),
		CapturesPerMin: o.rate.GetStats(int64(o.service.Captures())).PerMin1m,
		Calls:          o.tracker.Snapshot(),
		ExitLatched:    o.flags.ExitRequested(),
		HaltLatched:    o.flags.HaltRequested(),
	}
	if o.manager != nil {
		for _, c := range o.manager.Children() {
			snap.Subsystems = append(snap.Subsystems, tui.SubsystemRow{
				Name:     c.Subsystem(),
				State:    c.State().String(),
				PID:      c.Pid(),
				ExitCode: c.ExitCode(),
			})
		}
	}
	return snap
}

// Service returns the event service for external access.
func (o *Orchestrator) Service() *booth.Service {
	return o.service
}

// Flags returns the shared coordination flags.
func (o *Orchestrator) Flags() *coord.Local {
	return o.flags
}
