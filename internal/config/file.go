package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileOverlay mirrors Config with pointer fields so that keys absent from
// the file leave the current value alone. Durations are Go duration strings
// ("5s", "1m30s").
type fileOverlay struct {
	Subsystems    []string            `yaml:"subsystems"`
	Duration      *string             `yaml:"duration"`
	JoinTimeout   *string             `yaml:"join_timeout"`
	SubsystemArgs map[string][]string `yaml:"subsystem_args"`

	ImageDir           *string `yaml:"image_dir"`
	DelayedCaptureWait *string `yaml:"delayed_capture_wait"`
	HaltCommand        *string `yaml:"halt_command"`

	EventHost *string `yaml:"event_host"`
	EventPort *int    `yaml:"event_port"`

	MetricsAddr *string `yaml:"metrics_addr"`
	Verbose     *bool   `yaml:"verbose"`
	LogFormat   *string `yaml:"log_format"`
	LogLevel    *string `yaml:"log_level"`

	TUIEnabled    *bool `yaml:"tui"`
	SkipPreflight *bool `yaml:"skip_preflight"`
}

// LoadFile merges the YAML file at path into cfg. Keys absent from the file
// keep their current values, so callers can layer a file over the defaults
// and flags over the file.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	return mergeYAML(data, cfg)
}

func mergeYAML(data []byte, cfg *Config) error {
	var o fileOverlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if o.Subsystems != nil {
		cfg.Subsystems = o.Subsystems
	}
	if o.SubsystemArgs != nil {
		cfg.SubsystemArgs = o.SubsystemArgs
	}
	if err := setDuration(&cfg.Duration, o.Duration, "duration"); err != nil {
		return err
	}
	if err := setDuration(&cfg.JoinTimeout, o.JoinTimeout, "join_timeout"); err != nil {
		return err
	}
	if err := setDuration(&cfg.DelayedCaptureWait, o.DelayedCaptureWait, "delayed_capture_wait"); err != nil {
		return err
	}

	setString(&cfg.ImageDir, o.ImageDir)
	setString(&cfg.HaltCommand, o.HaltCommand)
	setString(&cfg.EventHost, o.EventHost)
	setString(&cfg.MetricsAddr, o.MetricsAddr)
	setString(&cfg.LogFormat, o.LogFormat)
	setString(&cfg.LogLevel, o.LogLevel)

	if o.EventPort != nil {
		cfg.EventPort = *o.EventPort
	}
	setBool(&cfg.Verbose, o.Verbose)
	setBool(&cfg.TUIEnabled, o.TUIEnabled)
	setBool(&cfg.SkipPreflight, o.SkipPreflight)

	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *string, field string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return fmt.Errorf("config file %s: %w", field, err)
	}
	*dst = d
	return nil
}
