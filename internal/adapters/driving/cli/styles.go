package cli

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
)

// Palette colours.
var (
	colourPrimary = lipgloss.Color("#7C3AED")
	colourMuted   = lipgloss.Color("#6C7086")
	colourSuccess = lipgloss.Color("#A6E3A1")
	colourWarning = lipgloss.Color("#F9E2AF")
	colourError   = lipgloss.Color("#F38BA8")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colourPrimary)
	mutedStyle   = lipgloss.NewStyle().Foreground(colourMuted)
	warningStyle = lipgloss.NewStyle().Foreground(colourWarning)

	severityStyles = map[domain.Severity]lipgloss.Style{
		domain.SeverityLow:    lipgloss.NewStyle().Foreground(colourSuccess),
		domain.SeverityMedium: lipgloss.NewStyle().Foreground(colourWarning),
		domain.SeverityHigh:   lipgloss.NewStyle().Bold(true).Foreground(colourError),
	}
)

// severityBadge renders a severity padded to a fixed width.
func severityBadge(s domain.Severity) string {
	label := string(s)
	if label == "" {
		label = "-"
	}
	style, ok := severityStyles[s]
	if !ok {
		style = mutedStyle
	}
	return style.Width(6).Render(label)
}

// signed formats a delta with an explicit sign.
func signed(n int) string {
	switch {
	case n > 0:
		return lipgloss.NewStyle().Foreground(colourError).Render("+" + strconv.Itoa(n))
	case n < 0:
		return lipgloss.NewStyle().Foreground(colourSuccess).Render(strconv.Itoa(n))
	default:
		return mutedStyle.Render("0")
	}
}
