package subsystem

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sketchbooth/sketchbooth/internal/coord"
	"github.com/sketchbooth/sketchbooth/internal/eventsvc"
)

// GPIOTrigger watches the physical capture button and the halt button.
//
// Pin state is read from sysfs-style value files so the subsystem stays at
// the driver's interface boundary: "1" means pressed. A short press captures
// a photo, holding the button past the hold threshold prints the previous
// capture instead, and the halt button latches the system-halt flag.
type GPIOTrigger struct{}

func (GPIOTrigger) Name() string { return "gpio-trigger" }

func (GPIOTrigger) HookUp(ctx context.Context, svc eventsvc.Invoker, logger *slog.Logger,
	flags coord.Flags, args []string) error {

	fs := flag.NewFlagSet("gpio-trigger", flag.ContinueOnError)
	capturePin := fs.String("capture-pin", "", "value file for the capture button")
	haltPin := fs.String("halt-pin", "", "value file for the halt button")
	poll := fs.Duration("poll", 20*time.Millisecond, "pin polling interval")
	hold := fs.Duration("hold", 2*time.Second, "hold duration that triggers a print")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger.Info("gpio_trigger_started", "capture_pin", *capturePin, "halt_pin", *haltPin)

	var pressedAt time.Time
	ticker := time.NewTicker(*poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-flags.ExitChan():
			logger.Info("gpio_trigger_stopping")
			return nil
		case <-ticker.C:
		}

		if pinHigh(*haltPin) {
			logger.Warn("halt_button_pressed")
			flags.RequestHalt()
			return nil
		}

		high := pinHigh(*capturePin)
		switch {
		case high && pressedAt.IsZero():
			pressedAt = time.Now()
		case !high && !pressedAt.IsZero():
			held := time.Since(pressedAt)
			pressedAt = time.Time{}
			if held >= *hold {
				logger.Info("capture_button_held", "duration", held.String())
				if err := svc.PrintLast(); err != nil {
					logger.Warn("print_request_failed", "error", err)
				}
			} else {
				logger.Info("capture_button_pressed")
				if err := svc.Capture(); err != nil {
					logger.Warn("capture_request_failed", "error", err)
				}
			}
		}
	}
}

// pinHigh reads a pin value file. Missing files read as low so the loop
// tolerates absent hardware.
func pinHigh(path string) bool {
	if path == "" {
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "1"
}
