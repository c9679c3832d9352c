package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// render builds the whole dashboard.
func (m Model) render() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("sketchbooth"))
	b.WriteString("\n")
	b.WriteString(m.renderStatusLine())
	b.WriteString("\n\n")
	b.WriteString(m.renderSubsystems())
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderBooth(), " ", m.renderCalls()))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("q quit  r refresh"))
	b.WriteString("\n")

	return b.String()
}

func (m Model) renderStatusLine() string {
	parts := []string{
		baseStyle.Render("up " + formatDuration(m.Elapsed())),
	}
	if m.metricsAddr != "" {
		parts = append(parts, mutedStyle.Render("metrics "+m.metricsAddr))
	}
	if m.snapshot.HaltLatched {
		parts = append(parts, statusError.Render("HALTING"))
	} else if m.snapshot.ExitLatched {
		parts = append(parts, statusWarning.Render("SHUTTING DOWN"))
	}
	return strings.Join(parts, mutedStyle.Render("  |  "))
}

func (m Model) renderSubsystems() string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Subsystems"))
	b.WriteString("\n")

	if len(m.snapshot.Subsystems) == 0 {
		b.WriteString(mutedStyle.Render("  (none spawned yet)"))
		return boxStyle.Render(b.String())
	}

	for _, row := range m.snapshot.Subsystems {
		line := fmt.Sprintf("  %-16s %s", row.Name, stateStyle(row.State).Render(fmt.Sprintf("%-8s", row.State)))
		if row.PID > 0 {
			line += mutedStyle.Render(fmt.Sprintf(" pid %d", row.PID))
		}
		if row.ExitCode >= 0 {
			line += mutedStyle.Render(fmt.Sprintf(" exit %d", row.ExitCode))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) renderBooth() string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Booth"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  captures  %d", m.snapshot.Captures))
	if m.snapshot.CapturesPerMin > 0 {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("  (%.1f/min)", m.snapshot.CapturesPerMin)))
	}
	b.WriteString("\n")

	last := m.snapshot.LastCapture
	if last == "" {
		last = mutedStyle.Render("(none)")
	}
	b.WriteString("  last      " + last + "\n")

	rec := mutedStyle.Render("off")
	if m.snapshot.Recording {
		rec = statusOK.Render("on")
	}
	b.WriteString("  recording " + rec + "\n")
	b.WriteString(fmt.Sprintf("  tasks     %d", m.snapshot.TasksQueued))

	return boxStyle.Render(b.String())
}

func (m Model) renderCalls() string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Event Calls"))
	b.WriteString("\n")

	c := m.snapshot.Calls
	b.WriteString(fmt.Sprintf("  total  %d", c.Calls))
	if c.Errors > 0 {
		b.WriteString("  " + statusError.Render(fmt.Sprintf("errors %d", c.Errors)))
	}
	b.WriteString("\n")

	if c.Calls > 0 {
		b.WriteString(fmt.Sprintf("  p50 %s  p95 %s  p99 %s",
			formatMs(c.P50), formatMs(c.P95), formatMs(c.P99)))
	} else {
		b.WriteString(mutedStyle.Render("  (no calls yet)"))
	}

	return boxStyle.Render(b.String())
}
