// Package tui provides a live terminal dashboard for the booth.
//
// Bubble Tea drives the application loop, Lipgloss handles styling. The
// dashboard shows subsystem process states, booth activity and event service
// call latencies.
package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Booth palette: magenta accents on a dark background
var (
	colorPrimary   = lipgloss.Color("#D946EF") // Magenta
	colorSecondary = lipgloss.Color("#38BDF8") // Sky blue

	colorSuccess = lipgloss.Color("#4ADE80") // Green
	colorWarning = lipgloss.Color("#FACC15") // Yellow
	colorError   = lipgloss.Color("#F87171") // Red

	colorText      = lipgloss.Color("#F3F4F6") // Near white
	colorTextMuted = lipgloss.Color("#6B7280") // Gray
	colorBorder    = lipgloss.Color("#4B5563") // Border gray
)

var (
	baseStyle = lipgloss.NewStyle().Foreground(colorText)

	mutedStyle = lipgloss.NewStyle().Foreground(colorTextMuted)

	titleStyle = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)

	sectionStyle = lipgloss.NewStyle().Foreground(colorSecondary).Bold(true)

	statusOK = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)

	statusWarning = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)

	statusError = lipgloss.NewStyle().Foreground(colorError).Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorPrimary).
			Bold(true).
			Padding(0, 1).
			MarginBottom(1)
)

// stateStyle picks a style for a subsystem state name.
func stateStyle(state string) lipgloss.Style {
	switch state {
	case "running":
		return statusOK
	case "spawned":
		return statusWarning
	case "failed", "killed":
		return statusError
	default:
		return mutedStyle
	}
}
