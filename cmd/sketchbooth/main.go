// Package main provides the sketchbooth CLI entry point.
//
// sketchbooth is a photo booth appliance orchestrator. One parent process
// owns the camera, printer and speaker behind a shared event service, and
// every input surface (GPIO button, IR remote, web GUI, sensors) runs in its
// own supervised child process talking back over a local proxy connection.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sketchbooth/sketchbooth/internal/config"
	"github.com/sketchbooth/sketchbooth/internal/logging"
	"github.com/sketchbooth/sketchbooth/internal/orchestrator"
	"github.com/sketchbooth/sketchbooth/internal/procman"
	"github.com/sketchbooth/sketchbooth/internal/subsystem"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/sketchbooth
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	subsystem.RegisterDefaults()

	// A spawned child carries the subsystem name in its environment and
	// never touches the parent's flag surface.
	if procman.InChildMode() {
		return procman.RunChild(os.Args[1:])
	}

	// Handle version flag early (before flag parsing)
	if len(os.Args) > 1 {
		arg := os.Args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("sketchbooth %s\n", version)
			return 0
		}
	}

	// Parse command-line flags
	cfg, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	if cfg.ListSubsystems {
		for _, name := range subsystem.Names() {
			fmt.Println(name)
		}
		return 0
	}

	// Initialize logger
	// When TUI is enabled, suppress logs to avoid interfering with TUI rendering
	var logger *slog.Logger
	if cfg.TUIEnabled {
		logger = logging.NewLoggerWithWriter(io.Discard, "json", "info")
	} else {
		logger = logging.NewLogger(cfg.LogFormat, cfg.LogLevel, cfg.Verbose)
	}
	logging.SetDefault(logger)

	// Validate configuration
	if err := config.Validate(cfg, subsystem.Names); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	// Apply --check mode modifications
	if cfg.Check {
		config.ApplyCheckMode(cfg)
		logger.Info("check_mode_enabled", "duration", cfg.Duration)
	}

	// Log startup
	logger.Info("starting",
		"version", version,
		"subsystems", strings.Join(cfg.Subsystems, ","),
		"image_dir", cfg.ImageDir,
		"metrics_addr", cfg.MetricsAddr,
	)

	// Print startup banner
	if !cfg.TUIEnabled {
		printBanner(cfg)
	}

	// Create and run orchestrator
	orch := orchestrator.New(cfg, logger, version)
	if err := orch.Run(context.Background()); err != nil {
		logger.Error("orchestrator_failed", "error", err)
		return 1
	}

	return 0
}

// printBanner prints the startup banner.
func printBanner(cfg *config.Config) {
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                          sketchbooth                              ║")
	fmt.Println("║            Photo Booth Appliance Orchestration                    ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Subsystems:  %s\n", strings.Join(cfg.Subsystems, ", "))
	fmt.Printf("  Images:      %s\n", cfg.ImageDir)
	fmt.Printf("  Metrics:     http://%s/metrics\n", cfg.MetricsAddr)
	if cfg.Duration > 0 {
		fmt.Printf("  Duration:    %s\n", cfg.Duration)
	}
	if cfg.HaltCommand != "" {
		fmt.Printf("  Halt:        %s\n", cfg.HaltCommand)
	}
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop.")
	fmt.Println()
}
