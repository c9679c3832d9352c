package subsystem

import (
	"context"
	"encoding/binary"
	"flag"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/sketchbooth/sketchbooth/internal/coord"
	"github.com/sketchbooth/sketchbooth/internal/eventsvc"
)

// ClapDetector listens to a raw PCM amplitude stream (signed 16-bit LE mono)
// and triggers a capture when it hears two claps inside the pair window.
//
// The stream source is a file path so tests and development machines can
// feed it from a FIFO; on the appliance it is the capture device.
type ClapDetector struct{}

func (ClapDetector) Name() string { return "clap-detector" }

func (ClapDetector) HookUp(ctx context.Context, svc eventsvc.Invoker, logger *slog.Logger,
	flags coord.Flags, args []string) error {

	fs := flag.NewFlagSet("clap-detector", flag.ContinueOnError)
	device := fs.String("device", "", "PCM stream path (S16_LE mono)")
	threshold := fs.Int("threshold", 20000, "amplitude that counts as a clap")
	window := fs.Duration("window", 1500*time.Millisecond, "max gap between the two claps")
	debounce := fs.Duration("debounce", 200*time.Millisecond, "min gap between the two claps")
	if err := fs.Parse(args); err != nil {
		return err
	}

	f, err := os.Open(*device)
	if err != nil {
		return err
	}
	defer f.Close()

	logger.Info("clap_detector_started",
		"device", *device,
		"threshold", *threshold,
		"window", window.String(),
	)

	det := clapState{
		threshold: int16(*threshold),
		window:    *window,
		debounce:  *debounce,
	}

	buf := make([]byte, 4096)
	for {
		if flags.ExitRequested() || ctx.Err() != nil {
			logger.Info("clap_detector_stopping")
			return nil
		}

		n, err := f.Read(buf)
		if err != nil {
			if err == io.EOF {
				// FIFO writers come and go; keep polling.
				time.Sleep(50 * time.Millisecond)
				continue
			}
			return err
		}

		if det.feed(buf[:n], time.Now()) {
			logger.Info("double_clap_detected")
			if err := svc.Capture(); err != nil {
				logger.Warn("capture_request_failed", "error", err)
			}
		}
	}
}

// clapState tracks clap timing across reads.
type clapState struct {
	threshold int16
	window    time.Duration
	debounce  time.Duration

	lastClap time.Time
	inClap   bool
}

// feed scans one buffer of samples and reports whether a double clap
// completed inside it.
func (c *clapState) feed(buf []byte, now time.Time) bool {
	fired := false
	for i := 0; i+1 < len(buf); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(buf[i:]))
		if sample < 0 {
			sample = -sample
		}

		loud := sample >= c.threshold
		if !loud {
			c.inClap = false
			continue
		}
		if c.inClap {
			// Still inside the same clap burst.
			continue
		}
		c.inClap = true

		if !c.lastClap.IsZero() {
			gap := now.Sub(c.lastClap)
			if gap >= c.debounce && gap <= c.window {
				c.lastClap = time.Time{}
				fired = true
				continue
			}
		}
		c.lastClap = now
	}
	return fired
}
