// Package eventsvc publishes the shared event service to child processes.
//
// The parent embeds a NATS server on a loopback address guarded by an auth
// token; that pair is the pre-agreed endpoint every child must present to
// connect. Children talk to the service through thin request/reply stubs, so
// the one authoritative object is only ever mutated in the parent.
package eventsvc

import "github.com/google/uuid"

// Invoker is the callable surface of the event service as seen by
// subsystems. Calls are fire-and-forget by convention: the error reports only
// whether the call was accepted, never a domain result.
//
// Both the parent-local adapter and the child-side proxy satisfy this, so a
// subsystem cannot tell which side of the process boundary it runs on.
type Invoker interface {
	Capture() error

	// DelayedCapture schedules a countdown capture and returns the async
	// task identifier, usable with TaskStatus.
	DelayedCapture() (string, error)

	Say(text string) error
	Close() error
	Wink() error
	Dizzy() error
	ToggleRecording() error
	PrintLast() error

	// TaskStatus asks the owning process whether the async task identified
	// by id has finished.
	TaskStatus(id string) (done bool, err error)
}

// NewToken generates a fresh authentication token for the proxy endpoint.
func NewToken() string {
	return uuid.NewString()
}

// Subjects of the proxy protocol. Operation calls are requests on
// event.<op>; coordination flags ride on coord.*; children announce
// themselves on proc.ready.<instance-id>.
const (
	subjectEventPrefix = "event."
	SubjectCoordExit   = "coord.exit"
	SubjectCoordHalt   = "coord.halt"
	SubjectCoordState  = "coord.state"
	SubjectRequestExit = "coord.request.exit"
	SubjectRequestHalt = "coord.request.halt"
	SubjectReadyPrefix = "proc.ready."
	SubjectTaskStatus  = "task.status"
)

// Operation names carried in the event.<op> subject suffix.
const (
	opCapture         = "capture"
	opDelayedCapture  = "delayed_capture"
	opSay             = "say"
	opClose           = "close"
	opWink            = "wink"
	opDizzy           = "dizzy"
	opToggleRecording = "toggle_recording"
	opPrintLast       = "print_last"
)
