// Package config provides configuration management for sketchbooth.
package config

import "time"

// Config holds all configuration options for the booth orchestrator.
type Config struct {
	// Orchestration
	Subsystems  []string      `json:"subsystems" yaml:"subsystems"`
	Duration    time.Duration `json:"duration" yaml:"duration"` // 0 = forever
	JoinTimeout time.Duration `json:"join_timeout" yaml:"join_timeout"`

	// SubsystemArgs carries per-subsystem spawn arguments, keyed by
	// subsystem name. Settable from the config file only.
	SubsystemArgs map[string][]string `json:"subsystem_args" yaml:"subsystem_args"`

	// Booth
	ImageDir           string        `json:"image_dir" yaml:"image_dir"`
	DelayedCaptureWait time.Duration `json:"delayed_capture_wait" yaml:"delayed_capture_wait"`

	// Halt behavior. Empty means log the halt instead of running anything,
	// which is what you want everywhere except on the appliance itself.
	HaltCommand string `json:"halt_command" yaml:"halt_command"`

	// Event service
	EventHost string `json:"event_host" yaml:"event_host"`
	EventPort int    `json:"event_port" yaml:"event_port"` // 0 = random free port

	// Observability
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr"`
	Verbose     bool   `json:"verbose" yaml:"verbose"`
	LogFormat   string `json:"log_format" yaml:"log_format"` // json, text
	LogLevel    string `json:"log_level" yaml:"log_level"`

	// Dashboard
	TUIEnabled bool `json:"tui" yaml:"tui"`

	// Diagnostic modes
	ListSubsystems bool `json:"list_subsystems" yaml:"-"`
	Check          bool `json:"check" yaml:"-"`
	SkipPreflight  bool `json:"skip_preflight" yaml:"skip_preflight"`

	// ConfigFile is the path of the YAML file merged over the defaults,
	// before flags. Empty means no file.
	ConfigFile string `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Orchestration
		Subsystems:  []string{"web-gui"},
		Duration:    0, // forever
		JoinTimeout: 1 * time.Second,

		// Booth
		ImageDir:           "images",
		DelayedCaptureWait: 5 * time.Second,

		// Event service
		EventHost: "127.0.0.1",
		EventPort: 0,

		// Observability
		MetricsAddr: "0.0.0.0:17092",
		Verbose:     false,
		LogFormat:   "json",
		LogLevel:    "info",

		// Dashboard
		TUIEnabled: false,
	}
}
