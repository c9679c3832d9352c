package procman

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sketchbooth/sketchbooth/internal/eventsvc"
	"github.com/sketchbooth/sketchbooth/internal/logging"
	"github.com/sketchbooth/sketchbooth/internal/subsystem"
)

// Exit codes a child process reports back to the manager.
const (
	ExitOK             = 0
	ExitSubsystemError = 1
	ExitUnknownName    = 2
	ExitConnectFailed  = 3
)

const connectTimeout = 5 * time.Second

// InChildMode reports whether this process was spawned as a subsystem child.
func InChildMode() bool {
	return os.Getenv(EnvSubsystem) != ""
}

// RunChild is the entry point of a spawned subsystem process. It resolves the
// subsystem named in the environment, connects back to the parent's event
// service, announces readiness, and runs the subsystem loop until the shared
// flags say stop. The returned value is the process exit code.
//
// The parent captures this process's stdout and re-logs it at info level and
// stderr at warn level, so the child logs to stdout.
func RunChild(args []string) int {
	name := os.Getenv(EnvSubsystem)
	logger := logging.ForSubsystem(
		logging.NewLoggerWithWriter(os.Stdout, os.Getenv("SKETCHBOOTH_LOG_FORMAT"), os.Getenv("SKETCHBOOTH_LOG_LEVEL")),
		name,
	)

	sub, ok := subsystem.Lookup(name)
	if !ok {
		logger.Error("unknown_subsystem", "name", name, "known", subsystem.Names())
		return ExitUnknownName
	}

	addr := os.Getenv(EnvEventAddr)
	token := os.Getenv(EnvEventToken)
	client, err := eventsvc.Connect(addr, token, connectTimeout, logger)
	if err != nil {
		logger.Error("event_service_connect_failed", "addr", addr, "error", err)
		return ExitConnectFailed
	}
	defer client.Disconnect()

	flags, err := client.Flags()
	if err != nil {
		logger.Error("coordination_state_unavailable", "error", err)
		return ExitConnectFailed
	}

	// Signals only latch the shared exit flag. Leaving the process is the
	// subsystem loop's job; a loop that never checks the flag is force
	// killed by the manager instead.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for sig := range sigCh {
			if flags.ExitRequested() {
				continue
			}
			logger.Info("signal_received", "signal", sig.String())
			flags.RequestExit()
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-flags.ExitChan()
		cancel()
	}()

	if err := client.AnnounceReady(os.Getenv(EnvInstanceID)); err != nil {
		logger.Warn("ready_announcement_failed", "error", err)
	}

	logger.Info("subsystem_starting", "pid", os.Getpid())
	if err := sub.HookUp(ctx, client, logger, flags, args); err != nil {
		logger.Error("subsystem_error", "error", err)
		return ExitSubsystemError
	}
	logger.Info("subsystem_stopping")
	return ExitOK
}
