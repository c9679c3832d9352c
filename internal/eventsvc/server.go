package eventsvc

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/sketchbooth/sketchbooth/internal/booth"
	"github.com/sketchbooth/sketchbooth/internal/coord"
)

const readyTimeout = 5 * time.Second

// ServerConfig holds construction parameters for the proxy endpoint.
type ServerConfig struct {
	// Host and Port form the listen address handed to children. Port -1
	// selects a random free port (used by tests).
	Host string
	Port int

	// Token is the shared authentication key every child must present.
	Token string

	Logger  *slog.Logger
	Service *booth.Service
	Flags   *coord.Local

	// RecordCall, when set, observes every dispatched operation.
	RecordCall func(op string, dur time.Duration, err error)

	// OnChildReady, when set, is invoked with the instance id of each child
	// that announces a successful proxy connection.
	OnChildReady func(instanceID string)
}

// Server hosts the one authoritative event service behind an embedded NATS
// listener. All operation dispatch happens on a single subscription, so
// calls from concurrent children are serialized onto the service.
type Server struct {
	cfg    ServerConfig
	logger *slog.Logger

	ns *natsserver.Server
	nc *nats.Conn
}

// NewServer creates an unstarted proxy server.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, logger: logger}
}

// Start brings up the embedded listener and wires the dispatch
// subscriptions. Must be called before any child is spawned.
func (s *Server) Start() error {
	opts := &natsserver.Options{
		Host:          s.cfg.Host,
		Port:          s.cfg.Port,
		Authorization: s.cfg.Token,
		NoLog:         true,
		NoSigs:        true,
	}

	ns, err := natsserver.NewServer(opts)
	if err != nil {
		return fmt.Errorf("proxy listener: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(readyTimeout) {
		ns.Shutdown()
		return fmt.Errorf("proxy listener not ready within %s", readyTimeout)
	}
	s.ns = ns

	nc, err := nats.Connect(ns.ClientURL(), nats.Token(s.cfg.Token), nats.Name("eventsvc-server"))
	if err != nil {
		ns.Shutdown()
		return fmt.Errorf("proxy self-connect: %w", err)
	}
	s.nc = nc

	// One subscription for all operations keeps dispatch serialized.
	if _, err := nc.Subscribe(subjectEventPrefix+">", s.handleEvent); err != nil {
		return fmt.Errorf("subscribe events: %w", err)
	}
	if _, err := nc.Subscribe(SubjectTaskStatus, s.handleTaskStatus); err != nil {
		return fmt.Errorf("subscribe task status: %w", err)
	}
	if _, err := nc.Subscribe(SubjectRequestExit, func(*nats.Msg) { s.cfg.Flags.RequestExit() }); err != nil {
		return fmt.Errorf("subscribe exit requests: %w", err)
	}
	if _, err := nc.Subscribe(SubjectRequestHalt, func(*nats.Msg) { s.cfg.Flags.RequestHalt() }); err != nil {
		return fmt.Errorf("subscribe halt requests: %w", err)
	}
	if _, err := nc.Subscribe(SubjectCoordState, s.handleCoordState); err != nil {
		return fmt.Errorf("subscribe coord state: %w", err)
	}
	if _, err := nc.Subscribe(SubjectReadyPrefix+">", s.handleReady); err != nil {
		return fmt.Errorf("subscribe readiness: %w", err)
	}

	// Rebroadcast latch transitions so children need not poll the parent.
	s.cfg.Flags.OnLatch(
		func() { s.publish(SubjectCoordExit) },
		func() { s.publish(SubjectCoordHalt) },
	)

	s.logger.Info("event_service_listening", "addr", s.Addr())
	return nil
}

// Addr returns the client URL children connect to.
func (s *Server) Addr() string {
	return s.ns.ClientURL()
}

// Token returns the shared authentication key.
func (s *Server) Token() string {
	return s.cfg.Token
}

// Shutdown stops the listener. Children still connected observe a closed
// connection; by this point they have been terminated by the process manager.
func (s *Server) Shutdown() {
	if s.nc != nil {
		s.nc.Close()
	}
	if s.ns != nil {
		s.ns.Shutdown()
		s.ns.WaitForShutdown()
	}
}

func (s *Server) publish(subject string) {
	if s.nc == nil || s.nc.IsClosed() {
		return
	}
	if err := s.nc.Publish(subject, nil); err != nil {
		s.logger.Warn("coord_publish_failed", "subject", subject, "error", err)
	}
	s.nc.Flush()
}

// handleEvent dispatches one operation call onto the service.
func (s *Server) handleEvent(msg *nats.Msg) {
	op := strings.TrimPrefix(msg.Subject, subjectEventPrefix)
	start := time.Now()

	var reply []byte
	var opErr error

	switch op {
	case opCapture:
		opErr = s.cfg.Service.Capture()
		reply = replyFor(opErr, "", false, false)
	case opDelayedCapture:
		ref, err := s.cfg.Service.DelayedCapture()
		opErr = err
		if err != nil {
			reply = encodeErr(err)
		} else {
			reply = encodeOK(ref.ID(), false, false)
		}
	case opSay:
		opErr = s.cfg.Service.Say(requestText(msg.Data))
		reply = replyFor(opErr, "", false, false)
	case opClose:
		opErr = s.cfg.Service.Close()
		reply = replyFor(opErr, "", false, false)
	case opWink:
		opErr = s.cfg.Service.Wink()
		reply = replyFor(opErr, "", false, false)
	case opDizzy:
		opErr = s.cfg.Service.Dizzy()
		reply = replyFor(opErr, "", false, false)
	case opToggleRecording:
		s.cfg.Service.ToggleRecording()
		reply = encodeOK("", false, false)
	case opPrintLast:
		opErr = s.cfg.Service.PrintLast()
		reply = replyFor(opErr, "", false, false)
	default:
		opErr = fmt.Errorf("unknown operation %q", op)
		reply = encodeErr(opErr)
	}

	if s.cfg.RecordCall != nil {
		s.cfg.RecordCall(op, time.Since(start), opErr)
	}

	// Replies are best effort: a child that vanished mid-call is not an
	// error worth surfacing.
	if err := msg.Respond(reply); err != nil {
		s.logger.Debug("event_reply_failed", "op", op, "error", err)
	}
}

func (s *Server) handleTaskStatus(msg *nats.Msg) {
	done, err := s.cfg.Service.TaskStatus(requestID(msg.Data))
	if err != nil {
		msg.Respond(encodeErr(err))
		return
	}
	msg.Respond(encodeOK("", done, true))
}

func (s *Server) handleCoordState(msg *nats.Msg) {
	msg.Respond(encodeFlagState(s.cfg.Flags.ExitRequested(), s.cfg.Flags.HaltRequested()))
}

func (s *Server) handleReady(msg *nats.Msg) {
	instanceID := strings.TrimPrefix(msg.Subject, SubjectReadyPrefix)
	s.logger.Debug("child_ready", "instance_id", instanceID)
	if s.cfg.OnChildReady != nil {
		s.cfg.OnChildReady(instanceID)
	}
}

func replyFor(err error, taskID string, done, haveDone bool) []byte {
	if err != nil {
		return encodeErr(err)
	}
	return encodeOK(taskID, done, haveDone)
}
