package eventsvc

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/sketchbooth/sketchbooth/internal/coord"
)

const callTimeout = 5 * time.Second

// Client is the child-side proxy handle to the parent's event service. It
// satisfies Invoker; every method is a synchronous request whose reply only
// acknowledges acceptance.
type Client struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// Connect dials the parent's proxy endpoint, retrying with jittered backoff
// until the timeout budget is spent. A freshly spawned child can beat the
// parent's accept loop by a few milliseconds; retrying absorbs that race.
// A child that still cannot connect has no way to participate, so callers
// treat an error here as fatal.
func Connect(addr, token string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	if timeout <= 0 {
		timeout = readyTimeout
	}
	deadline := time.Now().Add(timeout)
	bo := newBackoff(DefaultBackoffConfig())

	var nc *nats.Conn
	var err error
	for {
		nc, err = nats.Connect(addr,
			nats.Token(token),
			nats.Timeout(time.Until(deadline)),
			nats.MaxReconnects(3),
			nats.ReconnectWait(250*time.Millisecond),
		)
		if err == nil {
			return &Client{nc: nc, logger: logger}, nil
		}

		delay := bo.next()
		if time.Now().Add(delay).After(deadline) {
			return nil, fmt.Errorf("connect to event service at %s: %w", addr, err)
		}
		logger.Debug("event_service_dial_retry", "addr", addr, "delay", delay, "error", err)
		time.Sleep(delay)
	}
}

// AnnounceReady tells the parent this child's proxy connection is live.
// The process manager moves the child into its running state on receipt.
func (c *Client) AnnounceReady(instanceID string) error {
	if err := c.nc.Publish(SubjectReadyPrefix+instanceID, nil); err != nil {
		return err
	}
	return c.nc.Flush()
}

// Flags returns a coord.Flags view backed by the parent's authoritative
// latches: broadcasts latch the local mirror, requests go to the parent.
func (c *Client) Flags() (coord.Flags, error) {
	r := &remoteFlags{local: coord.NewLocal(), nc: c.nc}

	if _, err := c.nc.Subscribe(SubjectCoordExit, func(*nats.Msg) { r.local.RequestExit() }); err != nil {
		return nil, err
	}
	if _, err := c.nc.Subscribe(SubjectCoordHalt, func(*nats.Msg) { r.local.RequestHalt() }); err != nil {
		return nil, err
	}

	// Catch up on flags latched before this child connected.
	msg, err := c.nc.Request(SubjectCoordState, nil, callTimeout)
	if err != nil {
		return nil, fmt.Errorf("fetch coordination state: %w", err)
	}
	if replyBool(msg.Data, "halt") {
		r.local.RequestHalt()
	}
	if replyBool(msg.Data, "exit") {
		r.local.RequestExit()
	}

	return r, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	err := c.call(opClose, nil)
	c.nc.Close()
	return err
}

// Disconnect drops the connection without invoking the close operation.
func (c *Client) Disconnect() {
	c.nc.Close()
}

func (c *Client) call(op string, payload []byte) error {
	msg, err := c.nc.Request(subjectEventPrefix+op, payload, callTimeout)
	if err != nil {
		return fmt.Errorf("event service %s: %w", op, err)
	}
	return decodeReply(msg.Data)
}

// Capture implements Invoker.
func (c *Client) Capture() error { return c.call(opCapture, nil) }

// DelayedCapture implements Invoker.
func (c *Client) DelayedCapture() (string, error) {
	msg, err := c.nc.Request(subjectEventPrefix+opDelayedCapture, nil, callTimeout)
	if err != nil {
		return "", fmt.Errorf("event service %s: %w", opDelayedCapture, err)
	}
	if err := decodeReply(msg.Data); err != nil {
		return "", err
	}
	return replyText(msg.Data, "task_id"), nil
}

// Say implements Invoker.
func (c *Client) Say(text string) error { return c.call(opSay, encodeRequest(text)) }

// Wink implements Invoker.
func (c *Client) Wink() error { return c.call(opWink, nil) }

// Dizzy implements Invoker.
func (c *Client) Dizzy() error { return c.call(opDizzy, nil) }

// ToggleRecording implements Invoker.
func (c *Client) ToggleRecording() error { return c.call(opToggleRecording, nil) }

// PrintLast implements Invoker.
func (c *Client) PrintLast() error { return c.call(opPrintLast, nil) }

// TaskStatus implements Invoker.
func (c *Client) TaskStatus(id string) (bool, error) {
	msg, err := c.nc.Request(SubjectTaskStatus, encodeTaskQuery(id), callTimeout)
	if err != nil {
		return false, fmt.Errorf("event service task status: %w", err)
	}
	if err := decodeReply(msg.Data); err != nil {
		return false, err
	}
	return replyBool(msg.Data, "done"), nil
}

var _ Invoker = (*Client)(nil)

// remoteFlags mirrors the parent's latches in a child process.
type remoteFlags struct {
	local *coord.Local
	nc    *nats.Conn
}

func (r *remoteFlags) ExitRequested() bool { return r.local.ExitRequested() }
func (r *remoteFlags) HaltRequested() bool { return r.local.HaltRequested() }

func (r *remoteFlags) RequestExit() {
	// Latch locally first so the caller's own loop stops even if the parent
	// is already gone.
	r.local.RequestExit()
	r.nc.Publish(SubjectRequestExit, nil)
	r.nc.Flush()
}

func (r *remoteFlags) RequestHalt() {
	r.local.RequestHalt()
	r.nc.Publish(SubjectRequestHalt, nil)
	r.nc.Flush()
}

func (r *remoteFlags) ExitChan() <-chan struct{} { return r.local.ExitChan() }

var _ coord.Flags = (*remoteFlags)(nil)
