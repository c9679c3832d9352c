// Package metrics provides Prometheus metrics for sketchbooth.
//
// Everything is aggregate: a booth runs a handful of subsystems, so
// per-subsystem label cardinality is not a concern the way per-request
// labels would be.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// --- Panel 1: Booth Overview ---
var (
	boothInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sketchbooth_info",
			Help: "Information about the booth (value always 1)",
		},
		[]string{"version"},
	)

	boothSubsystemState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sketchbooth_subsystem_state",
			Help: "Current state per subsystem (1 = in this state)",
		},
		[]string{"subsystem", "state"},
	)

	boothSubsystemsAlive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sketchbooth_subsystems_alive",
			Help: "Subsystem child processes currently alive",
		},
	)

	boothUptimeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sketchbooth_uptime_seconds",
			Help: "Seconds since the orchestrator started",
		},
	)
)

// --- Panel 2: Process Lifecycle ---
var (
	boothSpawnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sketchbooth_subsystem_spawns_total",
			Help: "Total subsystem child processes spawned",
		},
		[]string{"subsystem"},
	)

	boothExitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sketchbooth_subsystem_exits_total",
			Help: "Total subsystem child exits by exit code",
		},
		[]string{"subsystem", "exit_code"},
	)

	boothForceKillsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sketchbooth_subsystem_force_kills_total",
			Help: "Subsystem children that ignored graceful termination",
		},
		[]string{"subsystem"},
	)

	boothCapturedLinesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sketchbooth_captured_lines_total",
			Help: "Child output lines re-logged by the parent",
		},
		[]string{"subsystem", "stream"},
	)
)

// --- Panel 3: Event Service ---
var (
	boothEventCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sketchbooth_event_calls_total",
			Help: "Event service operations dispatched, by outcome",
		},
		[]string{"op", "outcome"},
	)

	boothEventCallSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "sketchbooth_event_call_duration_seconds",
			Help: "Event service operation dispatch latency",
			Buckets: []float64{
				0.0005, 0.001, 0.0025, 0.005, 0.01,
				0.025, 0.05, 0.1, 0.25, 0.5, 1.0,
			},
		},
		[]string{"op"},
	)

	boothCapturesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sketchbooth_captures_total",
			Help: "Photos captured since start",
		},
	)

	boothTasksInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sketchbooth_tasks_in_flight",
			Help: "Background tasks currently queued or running",
		},
	)
)

// --- Panel 4: Coordination ---
var (
	boothExitFlag = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sketchbooth_exit_flag",
			Help: "Shared exit flag (1 = latched)",
		},
	)

	boothHaltFlag = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sketchbooth_halt_flag",
			Help: "Shared halt flag (1 = latched)",
		},
	)
)

// subsystemStates is every state label published for the one-hot gauge.
var subsystemStates = []string{"spawned", "running", "exited", "failed", "killed"}

// Collector manages all Prometheus metrics for the booth.
type Collector struct {
	startTime time.Time

	mu         sync.Mutex
	exitCodes  map[int]int64
	forceKills int64
	spawns     int64
	callsByOp  map[string]int64
	callErrors int64
}

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	Version string
}

// NewCollector creates a collector registered on the default registry.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector with a custom registry.
// Useful for testing.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := &Collector{
		startTime: time.Now(),
		exitCodes: make(map[int]int64),
		callsByOp: make(map[string]int64),
	}

	registry.MustRegister(
		// Panel 1: Booth Overview
		boothInfo,
		boothSubsystemState,
		boothSubsystemsAlive,
		boothUptimeSeconds,

		// Panel 2: Process Lifecycle
		boothSpawnsTotal,
		boothExitsTotal,
		boothForceKillsTotal,
		boothCapturedLinesTotal,

		// Panel 3: Event Service
		boothEventCallsTotal,
		boothEventCallSeconds,
		boothCapturesTotal,
		boothTasksInFlight,

		// Panel 4: Coordination
		boothExitFlag,
		boothHaltFlag,
	)

	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	boothInfo.WithLabelValues(version).Set(1)

	return c
}

// SubsystemSpawned records a new child process.
func (c *Collector) SubsystemSpawned(subsystem string) {
	boothSpawnsTotal.WithLabelValues(subsystem).Inc()
	c.mu.Lock()
	c.spawns++
	c.mu.Unlock()
}

// SubsystemState publishes the one-hot state gauge for a subsystem.
func (c *Collector) SubsystemState(subsystem, state string) {
	for _, s := range subsystemStates {
		v := 0.0
		if s == state {
			v = 1.0
		}
		boothSubsystemState.WithLabelValues(subsystem, s).Set(v)
	}
}

// SubsystemExited records a child exit.
func (c *Collector) SubsystemExited(subsystem string, exitCode int) {
	boothExitsTotal.WithLabelValues(subsystem, strconv.Itoa(exitCode)).Inc()
	c.mu.Lock()
	c.exitCodes[exitCode]++
	c.mu.Unlock()
}

// SubsystemForceKilled records a SIGKILL escalation.
func (c *Collector) SubsystemForceKilled(subsystem string) {
	boothForceKillsTotal.WithLabelValues(subsystem).Inc()
	c.mu.Lock()
	c.forceKills++
	c.mu.Unlock()
}

// LineCaptured counts one re-logged child output line.
func (c *Collector) LineCaptured(subsystem, stream string) {
	boothCapturedLinesTotal.WithLabelValues(subsystem, stream).Inc()
}

// SetAlive publishes the live child count.
func (c *Collector) SetAlive(n int) {
	boothSubsystemsAlive.Set(float64(n))
}

// ObserveCall records one event service dispatch.
func (c *Collector) ObserveCall(op string, dur time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	boothEventCallsTotal.WithLabelValues(op, outcome).Inc()
	boothEventCallSeconds.WithLabelValues(op).Observe(dur.Seconds())
	if op == "capture" && err == nil {
		boothCapturesTotal.Inc()
	}

	c.mu.Lock()
	c.callsByOp[op]++
	if err != nil {
		c.callErrors++
	}
	c.mu.Unlock()
}

// SetTasksInFlight publishes the background task gauge.
func (c *Collector) SetTasksInFlight(n int) {
	boothTasksInFlight.Set(float64(n))
}

// SetFlags publishes the coordination flag gauges.
func (c *Collector) SetFlags(exit, halt bool) {
	boothExitFlag.Set(boolGauge(exit))
	boothHaltFlag.Set(boolGauge(halt))
}

// Tick refreshes derived gauges. Call periodically.
func (c *Collector) Tick() {
	boothUptimeSeconds.Set(time.Since(c.startTime).Seconds())
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Summary is a point-in-time aggregate for the shutdown report.
type Summary struct {
	Uptime     time.Duration
	Spawns     int64
	ExitCodes  map[int]int64
	ForceKills int64
	CallsByOp  map[string]int64
	CallErrors int64
}

// Summarize returns totals for the exit summary log line.
func (c *Collector) Summarize() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	codes := make(map[int]int64, len(c.exitCodes))
	for k, v := range c.exitCodes {
		codes[k] = v
	}
	calls := make(map[string]int64, len(c.callsByOp))
	for k, v := range c.callsByOp {
		calls[k] = v
	}
	return Summary{
		Uptime:     time.Since(c.startTime),
		Spawns:     c.spawns,
		ExitCodes:  codes,
		ForceKills: c.forceKills,
		CallsByOp:  calls,
		CallErrors: c.callErrors,
	}
}
