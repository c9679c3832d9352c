package eventsvc

import "github.com/sketchbooth/sketchbooth/internal/booth"

// Local adapts the in-process booth service to the Invoker contract. The
// parent (and tests) use it where a subsystem would use the remote proxy.
type Local struct {
	svc *booth.Service
}

// NewLocal wraps the authoritative service.
func NewLocal(svc *booth.Service) *Local {
	return &Local{svc: svc}
}

func (l *Local) Capture() error { return l.svc.Capture() }

func (l *Local) DelayedCapture() (string, error) {
	ref, err := l.svc.DelayedCapture()
	if err != nil {
		return "", err
	}
	return ref.ID(), nil
}

func (l *Local) Say(text string) error { return l.svc.Say(text) }
func (l *Local) Close() error          { return l.svc.Close() }
func (l *Local) Wink() error           { return l.svc.Wink() }
func (l *Local) Dizzy() error          { return l.svc.Dizzy() }

func (l *Local) ToggleRecording() error {
	l.svc.ToggleRecording()
	return nil
}

func (l *Local) PrintLast() error { return l.svc.PrintLast() }

func (l *Local) TaskStatus(id string) (bool, error) {
	return l.svc.TaskStatus(id)
}

var _ Invoker = (*Local)(nil)
