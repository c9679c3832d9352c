package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sketchbooth/sketchbooth/internal/stats"
)

// refreshInterval is how often the dashboard pulls a fresh snapshot.
const refreshInterval = 500 * time.Millisecond

// TickMsg drives the periodic refresh.
type TickMsg time.Time

// QuitMsg tells the dashboard to exit; the orchestrator sends it on shutdown.
type QuitMsg struct{}

// SubsystemRow is one line of the process table.
type SubsystemRow struct {
	Name     string
	State    string
	PID      int
	ExitCode int // -1 while alive
}

// Snapshot is everything the dashboard renders on one tick.
type Snapshot struct {
	Subsystems []SubsystemRow

	Captures       int
	LastCapture    string
	Recording      bool
	TasksQueued    int
	CapturesPerMin float64

	Calls stats.Summary

	ExitLatched bool
	HaltLatched bool
}

// Source provides dashboard snapshots. The orchestrator implements this.
type Source interface {
	DashboardSnapshot() Snapshot
}

// Config holds dashboard configuration.
type Config struct {
	MetricsAddr string
	Source      Source
}

// Model is the bubbletea model for the booth dashboard.
type Model struct {
	metricsAddr string
	source      Source

	snapshot   Snapshot
	startTime  time.Time
	lastUpdate time.Time

	width  int
	height int

	quitting bool
}

// New builds the dashboard model.
func New(cfg Config) Model {
	now := time.Now()
	return Model{
		metricsAddr: cfg.MetricsAddr,
		source:      cfg.Source,
		startTime:   now,
		lastUpdate:  now,
		width:       80,
		height:      24,
	}
}

// Init starts the refresh ticker.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles key presses, resizes and refresh ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		m.refresh()
		return m, tickCmd()

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit
	case "r":
		m.refresh()
		return m, nil
	}
	return m, nil
}

func (m *Model) refresh() {
	if m.source != nil {
		m.snapshot = m.source.DashboardSnapshot()
	}
	m.lastUpdate = time.Now()
}

// View renders the dashboard, or nothing once quitting.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.render()
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Elapsed returns the time since the booth started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// SendQuit delivers a QuitMsg to a running program.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}

// formatDuration renders HH:MM:SS.
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// formatMs renders a latency in milliseconds, falling back to microseconds
// for sub-millisecond values.
func formatMs(d time.Duration) string {
	ms := d.Milliseconds()
	if ms == 0 && d > 0 {
		return fmt.Sprintf("%d µs", d.Microseconds())
	}
	return fmt.Sprintf("%d ms", ms)
}
