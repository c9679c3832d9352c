package config

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// KnownSubsystems lets callers inject the registered subsystem names so
// Validate can reject typos before anything is spawned.
type KnownSubsystems func() []string

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing the problem.
func Validate(cfg *Config, known KnownSubsystems) error {
	var errs []error

	// At least one subsystem, unless a diagnostic mode will exit early.
	if len(cfg.Subsystems) == 0 && !cfg.ListSubsystems {
		errs = append(errs, ValidationError{
			Field:   "subsystems",
			Message: "at least one subsystem is required",
		})
	}

	if known != nil {
		valid := map[string]bool{}
		for _, name := range known() {
			valid[name] = true
		}
		seen := map[string]bool{}
		for _, name := range cfg.Subsystems {
			if !valid[name] {
				errs = append(errs, ValidationError{
					Field:   "subsystems",
					Message: fmt.Sprintf("unknown subsystem %q", name),
				})
			}
			if seen[name] {
				errs = append(errs, ValidationError{
					Field:   "subsystems",
					Message: fmt.Sprintf("subsystem %q listed twice", name),
				})
			}
			seen[name] = true
		}
	}

	if cfg.JoinTimeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "join_timeout",
			Message: "must be positive",
		})
	}

	if cfg.Duration < 0 {
		errs = append(errs, ValidationError{
			Field:   "duration",
			Message: "must be zero (forever) or positive",
		})
	}

	if cfg.DelayedCaptureWait < 0 {
		errs = append(errs, ValidationError{
			Field:   "delayed_capture_wait",
			Message: "must not be negative",
		})
	}

	if cfg.ImageDir == "" {
		errs = append(errs, ValidationError{
			Field:   "image_dir",
			Message: "must not be empty",
		})
	}

	if cfg.EventPort < 0 || cfg.EventPort > 65535 {
		errs = append(errs, ValidationError{
			Field:   "event_port",
			Message: fmt.Sprintf("must be 0-65535 (got %d)", cfg.EventPort),
		})
	}

	// Log format must be valid
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.LogLevel] {
		errs = append(errs, ValidationError{
			Field:   "log_level",
			Message: fmt.Sprintf("must be debug, info, warn or error (got %q)", cfg.LogLevel),
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// ApplyCheckMode modifies config for --check mode.
func ApplyCheckMode(cfg *Config) {
	cfg.Duration = 10 * time.Second
	cfg.Verbose = true
	cfg.TUIEnabled = false
}
