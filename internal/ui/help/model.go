package help

import (
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notification-monitor/internal/keys"
	"github.com/nhle/notification-monitor/internal/theme"
)

// Endpoints describes where the monitor is pointed, shown under the
// key bindings.
type Endpoints struct {
	ListURL string
	PushURL string
}

// Model is the help overlay view.
type Model struct {
	keys      *keys.KeyMap
	help      help.Model
	endpoints Endpoints
	width     int
	height    int
}

// New creates a new help view model.
func New(k *keys.KeyMap, endpoints Endpoints, width, height int) Model {
	h := help.New()
	h.Width = width
	h.ShowAll = true
	return Model{
		keys:      k,
		help:      h,
		endpoints: endpoints,
		width:     width,
		height:    height,
	}
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the help overlay.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	sections := []string{
		titleStyle.Render("Keyboard Shortcuts"),
		m.help.View(m.keys),
	}

	if m.endpoints.ListURL != "" || m.endpoints.PushURL != "" {
		sections = append(sections,
			"",
			titleStyle.Render("Endpoints"),
			theme.HelpStyle.Render(fmt.Sprintf("list  %s", m.endpoints.ListURL)),
			theme.HelpStyle.Render(fmt.Sprintf("push  %s", m.endpoints.PushURL)),
		)
	}

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	return theme.PanelStyle.
		Width(max(m.width-4, 0)).
		Height(max(m.height-4, 0)).
		Render(content)
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
