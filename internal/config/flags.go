package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// subsystemList is a custom flag type for the comma-separated -subsystems flag.
type subsystemList []string

func (s *subsystemList) String() string {
	return strings.Join(*s, ",")
}

func (s *subsystemList) Set(value string) error {
	*s = nil
	for _, name := range strings.Split(value, ",") {
		if name = strings.TrimSpace(name); name != "" {
			*s = append(*s, name)
		}
	}
	return nil
}

// ParseFlags parses command-line flags and returns a Config. The config file
// named by -config is merged over the defaults first, so flags always win.
func ParseFlags() (*Config, error) {
	cfg := DefaultConfig()

	// The file has to land before flag registration so explicit flags
	// override it, which means finding -config ahead of flag.Parse.
	if path := configPathFromArgs(os.Args[1:]); path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
		cfg.ConfigFile = path
	}

	var subs subsystemList

	// Custom usage message
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `sketchbooth - photo booth appliance orchestrator

Usage:
  sketchbooth [flags]

Orchestration Flags:
`)
		printFlagCategory([]string{"subsystems", "duration", "join-timeout", "config"})

		fmt.Fprintf(os.Stderr, "\nBooth:\n")
		printFlagCategory([]string{"image-dir", "capture-wait", "halt-command"})

		fmt.Fprintf(os.Stderr, "\nEvent Service:\n")
		printFlagCategory([]string{"event-host", "event-port"})

		fmt.Fprintf(os.Stderr, "\nObservability:\n")
		printFlagCategory([]string{"metrics", "v", "log-format", "log-level"})

		fmt.Fprintf(os.Stderr, "\nDashboard:\n")
		printFlagCategory([]string{"tui"})

		fmt.Fprintf(os.Stderr, "\nDiagnostics:\n")
		printFlagCategory([]string{"list-subsystems", "check", "skip-preflight"})

		fmt.Fprintf(os.Stderr, `
Examples:
  # Run with the web GUI only on a random proxy port
  sketchbooth -subsystems web-gui

  # Appliance setup: GPIO button, IR remote and web GUI, halting for real
  sketchbooth -subsystems gpio-trigger,ir-receiver,web-gui -halt-command "systemctl poweroff"

  # One-shot smoke test
  sketchbooth -check -v

`)
	}

	// Orchestration
	flag.Var(&subs, "subsystems", "Comma-separated subsystem names to spawn")
	flag.DurationVar(&cfg.Duration, "duration", cfg.Duration, "Run duration (0 = forever)")
	flag.DurationVar(&cfg.JoinTimeout, "join-timeout", cfg.JoinTimeout, "Graceful shutdown window per child before SIGKILL")
	flag.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "YAML config file merged under the flags")

	// Booth
	flag.StringVar(&cfg.ImageDir, "image-dir", cfg.ImageDir, "Directory captures are written to")
	flag.DurationVar(&cfg.DelayedCaptureWait, "capture-wait", cfg.DelayedCaptureWait, "Countdown before a delayed capture fires")
	flag.StringVar(&cfg.HaltCommand, "halt-command", cfg.HaltCommand, "Command run on halt request (empty = log only)")

	// Event service
	flag.StringVar(&cfg.EventHost, "event-host", cfg.EventHost, "Event service listen host")
	flag.IntVar(&cfg.EventPort, "event-port", cfg.EventPort, "Event service listen port (0 = random)")

	// Observability
	flag.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics address")
	flag.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")

	// Dashboard
	flag.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Enable live terminal dashboard")

	// Diagnostics
	flag.BoolVar(&cfg.ListSubsystems, "list-subsystems", cfg.ListSubsystems, "Print registered subsystem names and exit")
	flag.BoolVar(&cfg.Check, "check", cfg.Check, "Validate config and run for 10 seconds")
	flag.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")

	flag.Parse()

	if subs != nil {
		cfg.Subsystems = subs
	}

	return cfg, nil
}

// configPathFromArgs extracts the -config value without consuming any flags.
func configPathFromArgs(args []string) string {
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" || args[i] == "--config":
			if i+1 < len(args) {
				return args[i+1]
			}
		case strings.HasPrefix(args[i], "-config="):
			return strings.TrimPrefix(args[i], "-config=")
		case strings.HasPrefix(args[i], "--config="):
			return strings.TrimPrefix(args[i], "--config=")
		}
	}
	return ""
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(names []string) {
	flag.VisitAll(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				fmt.Fprintf(os.Stderr, "  -%s %s\n    \t%s", f.Name, flagType(f), f.Usage)
				if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "0s" && f.DefValue != "[]" {
					fmt.Fprintf(os.Stderr, " (default %s)", f.DefValue)
				}
				fmt.Fprintln(os.Stderr)
				return
			}
		}
	})
}

// flagType returns a type hint for the flag value.
func flagType(f *flag.Flag) string {
	switch f.DefValue {
	case "true", "false":
		return ""
	}

	if strings.HasSuffix(f.DefValue, "s") || strings.HasSuffix(f.DefValue, "m") || strings.HasSuffix(f.DefValue, "h") {
		return "duration"
	}

	if _, err := fmt.Sscanf(f.DefValue, "%d", new(int)); err == nil {
		return "int"
	}

	return "string"
}
