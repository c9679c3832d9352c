package booth

import "log/slog"

// The appliance's hardware drivers are external collaborators. The service
// only ever talks to them through these interfaces, so the orchestration
// layer can run (and be tested) with no hardware attached.

// Camera captures a still image to the given path.
type Camera interface {
	Capture(path string) error
}

// Printer submits a rendered image for printing.
type Printer interface {
	Print(path string) error
}

// Speaker produces audible output.
type Speaker interface {
	Say(text string) error
}

// StatusLamp drives the appliance's face LEDs.
type StatusLamp interface {
	Wink() error
	Dizzy() error
}

// Noop implementations are used whenever a driver is absent (development
// machines, headless test runs).

type noopCamera struct{ logger *slog.Logger }

func (c noopCamera) Capture(path string) error {
	c.logger.Debug("camera_noop_capture", "path", path)
	return nil
}

type noopPrinter struct{ logger *slog.Logger }

func (p noopPrinter) Print(path string) error {
	p.logger.Debug("printer_noop_print", "path", path)
	return nil
}

type noopSpeaker struct{ logger *slog.Logger }

func (s noopSpeaker) Say(text string) error {
	s.logger.Debug("speaker_noop_say", "text", text)
	return nil
}

type noopLamp struct{ logger *slog.Logger }

func (l noopLamp) Wink() error {
	l.logger.Debug("lamp_noop_wink")
	return nil
}

func (l noopLamp) Dizzy() error {
	l.logger.Debug("lamp_noop_dizzy")
	return nil
}
