// Package booth implements the shared event service: the single object in
// the parent process whose operations every subsystem invokes remotely.
//
// Exactly one authoritative Service exists, owned by the parent. Children
// only ever hold proxies, so the service's internal state (capture counter,
// last capture path, recording flag) is mutated from the parent's dispatch
// path only.
package booth

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/sketchbooth/sketchbooth/internal/asynctask"
	"github.com/sketchbooth/sketchbooth/internal/coord"
)

// Config holds the service's construction parameters.
type Config struct {
	Logger *slog.Logger
	Flags  *coord.Local

	// ImageDir is where captures are written.
	ImageDir string

	// DelayedCaptureWait is the countdown before a delayed capture fires.
	DelayedCaptureWait time.Duration

	// Optional drivers; nil selects a no-op implementation.
	Camera  Camera
	Printer Printer
	Speaker Speaker
	Lamp    StatusLamp
}

// Service is the event service implementation.
type Service struct {
	logger *slog.Logger
	flags  *coord.Local

	camera   Camera
	printer  Printer
	speaker  Speaker
	lamp     StatusLamp
	imageDir string
	wait     time.Duration

	executor *asynctask.Executor

	mu          sync.Mutex
	captures    int
	lastCapture string
	recording   bool
}

// NewService builds the authoritative event service. Missing drivers fall
// back to no-ops so the orchestration layer runs anywhere.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		logger:   logger,
		flags:    cfg.Flags,
		camera:   cfg.Camera,
		printer:  cfg.Printer,
		speaker:  cfg.Speaker,
		lamp:     cfg.Lamp,
		imageDir: cfg.ImageDir,
		wait:     cfg.DelayedCaptureWait,
		executor: asynctask.New(asynctask.DefaultWorkers),
	}
	if s.camera == nil {
		s.camera = noopCamera{logger: logger}
	}
	if s.printer == nil {
		s.printer = noopPrinter{logger: logger}
	}
	if s.speaker == nil {
		s.speaker = noopSpeaker{logger: logger}
	}
	if s.lamp == nil {
		s.lamp = noopLamp{logger: logger}
	}
	if s.wait <= 0 {
		s.wait = 3 * time.Second
	}
	return s
}

// Capture takes a photo immediately.
func (s *Service) Capture() error {
	s.mu.Lock()
	n := s.captures
	path := filepath.Join(s.imageDir, fmt.Sprintf("image%04d.jpg", n))
	s.mu.Unlock()

	s.logger.Info("capture", "path", path, "number", n)
	if err := s.camera.Capture(path); err != nil {
		s.logger.Error("capture_failed", "path", path, "error", err)
		return err
	}

	s.mu.Lock()
	s.captures++
	s.lastCapture = path
	s.mu.Unlock()
	return nil
}

// DelayedCapture schedules a capture after the configured countdown and
// returns immediately with an async task handle. The countdown runs on the
// service's own executor so the dispatch path is never blocked.
func (s *Service) DelayedCapture() (*asynctask.TaskRef, error) {
	s.logger.Info("delayed_capture_scheduled", "wait", s.wait.String())
	return s.executor.Submit(func() (any, error) {
		time.Sleep(s.wait)
		return nil, s.Capture()
	})
}

// PrintLast submits the most recent capture for printing. A no-op when
// nothing has been captured yet.
func (s *Service) PrintLast() error {
	s.mu.Lock()
	path := s.lastCapture
	s.mu.Unlock()

	if path == "" {
		s.logger.Warn("print_skipped", "reason", "no capture yet")
		return nil
	}
	s.logger.Info("print", "path", path)
	return s.printer.Print(path)
}

// Say speaks the given text through the appliance speaker.
func (s *Service) Say(text string) error {
	s.logger.Info("say", "text", text)
	return s.speaker.Say(text)
}

// Wink flashes the face LEDs.
func (s *Service) Wink() error {
	s.logger.Debug("wink")
	return s.lamp.Wink()
}

// Dizzy runs the "shaken" LED animation. Triggered by the accelerometer.
func (s *Service) Dizzy() error {
	s.logger.Debug("dizzy")
	return s.lamp.Dizzy()
}

// ToggleRecording flips the recording flag and returns the new value.
func (s *Service) ToggleRecording() bool {
	s.mu.Lock()
	s.recording = !s.recording
	now := s.recording
	s.mu.Unlock()

	s.logger.Info("toggle_recording", "recording", now)
	return now
}

// Close requests a graceful application shutdown.
func (s *Service) Close() error {
	s.logger.Info("close_requested")
	if s.flags != nil {
		s.flags.RequestExit()
	}
	return nil
}

// TaskStatus reports whether the async task with the given identifier is
// still in flight. Children cannot deserialize a live future, so this is the
// lookup call they use instead.
func (s *Service) TaskStatus(id string) (done bool, err error) {
	ref, ok := s.executor.Lookup(id)
	if !ok {
		// Evicted on completion, so a miss means finished (or never existed).
		return true, nil
	}
	return ref.Done(), ref.Err()
}

// Captures returns the number of successful captures so far.
func (s *Service) Captures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captures
}

// LastCapture returns the path of the most recent capture, or "".
func (s *Service) LastCapture() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCapture
}

// InFlight returns the number of queued or running background tasks.
func (s *Service) InFlight() int {
	return s.executor.InFlight()
}

// Recording reports the current recording flag.
func (s *Service) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

// Shutdown flushes the service's async work.
func (s *Service) Shutdown() {
	s.executor.Shutdown(true)
}
