package subsystem

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/sketchbooth/sketchbooth/internal/coord"
	"github.com/sketchbooth/sketchbooth/internal/eventsvc"
)

// IRReceiver consumes decoded remote-control key events from a lircd-style
// unix socket. Each line looks like:
//
//	<hexcode> <repeat> <keyname> <remote>
//
// Key bindings: KEY_OK captures, holding it (the 2s repeat) schedules a
// delayed capture, KEY_RECORD toggles recording, KEY_INFO winks.
type IRReceiver struct{}

func (IRReceiver) Name() string { return "ir-receiver" }

// repeat count (hex, as lircd prints it) at the default repeat rate that
// corresponds to ~2s of holding the key down
const irHoldRepeatHex = "14"

func (IRReceiver) HookUp(ctx context.Context, svc eventsvc.Invoker, logger *slog.Logger,
	flags coord.Flags, args []string) error {

	fs := flag.NewFlagSet("ir-receiver", flag.ContinueOnError)
	socketPath := fs.String("socket", "/var/run/lirc/lircd", "lircd socket path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	conn, err := net.Dial("unix", *socketPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	logger.Info("ir_receiver_started", "socket", *socketPath)

	reader := bufio.NewReader(conn)
	for {
		if flags.ExitRequested() || ctx.Err() != nil {
			logger.Info("ir_receiver_stopping")
			return nil
		}

		// Bounded reads keep the exit-flag poll alive while the remote is
		// idle.
		conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		line, err := reader.ReadString('\n')
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			return err
		}

		dispatchIRKey(strings.Fields(line), svc, logger)
	}
}

func dispatchIRKey(fields []string, svc eventsvc.Invoker, logger *slog.Logger) {
	if len(fields) < 3 {
		return
	}
	repeat := fields[1]
	key := fields[2]

	var err error
	switch key {
	case "KEY_OK", "KEY_CAMERA":
		switch repeat {
		case "00":
			logger.Info("ir_capture", "key", key)
			err = svc.Capture()
		case irHoldRepeatHex:
			logger.Info("ir_delayed_capture", "key", key)
			_, err = svc.DelayedCapture()
		default:
			return
		}
	case "KEY_RECORD":
		if repeat != "00" {
			return
		}
		logger.Info("ir_toggle_recording")
		err = svc.ToggleRecording()
	case "KEY_INFO":
		if repeat != "00" {
			return
		}
		logger.Debug("ir_wink")
		err = svc.Wink()
	default:
		return
	}

	if err != nil {
		logger.Warn("ir_dispatch_failed", "key", key, "error", err)
	}
}
