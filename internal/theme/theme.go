package theme

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for top-level section headers and the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// PanelStyle wraps overlay content such as help and the command palette.
var PanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// ErrorStyle renders inline error text.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(ColorRed).
	Bold(true)

// TableHeaderStyle is applied to bubbles/table headers.
var TableHeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Padding(0, 1).
	BorderStyle(lipgloss.NormalBorder()).
	BorderForeground(ColorBorder).
	BorderBottom(true)

// TableCellStyle is applied to bubbles/table cells.
var TableCellStyle = lipgloss.NewStyle().
	Padding(0, 1)

// TableSelectedStyle highlights the focused table row.
var TableSelectedStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue)

// StatusColor maps a delivery status to a color. Statuses are free-form,
// so matching is case-insensitive and unknown values fall back to gray.
func StatusColor(status string) lipgloss.AdaptiveColor {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "delivered", "sent", "success":
		return ColorGreen
	case "pending", "queued", "processing", "retrying":
		return ColorYellow
	case "failed", "bounced", "error", "rejected":
		return ColorRed
	default:
		return ColorGray
	}
}

// StatusStyle returns a color-coded style for a delivery status.
func StatusStyle(status string) lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(StatusColor(status))
}

// ConnectionStyle returns the style for a push connection indicator.
func ConnectionStyle(connected bool) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Background(ColorBlue)
	if connected {
		return base.Foreground(ColorGreen)
	}
	return base.Foreground(ColorRed)
}
