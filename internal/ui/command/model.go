package command

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notification-monitor/internal/theme"
)

// Names of the palette commands.
const (
	Refresh = "refresh"
	History = "history"
	Prune   = "prune"
	Help    = "help"
	Quit    = "quit"
)

// Commands lists every palette command, used for tab completion.
var Commands = []string{Refresh, History, Prune, Help, Quit}

// aliases maps shorthand to full command names.
var aliases = map[string]string{
	"r":    Refresh,
	"sync": Refresh,
	"h":    History,
	"q":    Quit,
	"exit": Quit,
}

// CommandMsg is emitted when the user executes a command. It carries the
// canonical command name.
type CommandMsg string

// CancelMsg is emitted when the palette is dismissed.
type CancelMsg struct{}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	err    string
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "refresh, history, prune, help, quit"
	ti.Prompt = ": "
	ti.ShowSuggestions = true
	ti.SetSuggestions(Commands)
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Resolve maps user input to a canonical command name. ok is false for
// unknown commands.
func Resolve(input string) (string, bool) {
	name := strings.ToLower(strings.TrimSpace(input))
	if full, ok := aliases[name]; ok {
		return full, true
	}
	for _, c := range Commands {
		if c == name {
			return c, true
		}
	}
	return "", false
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "esc":
			m.input.Reset()
			m.err = ""
			return m, func() tea.Msg { return CancelMsg{} }
		case "enter":
			raw := m.input.Value()
			if strings.TrimSpace(raw) == "" {
				return m, nil
			}
			name, ok := Resolve(raw)
			if !ok {
				m.err = "unknown command: " + strings.TrimSpace(raw)
				return m, nil
			}
			m.input.Reset()
			m.err = ""
			return m, func() tea.Msg { return CommandMsg(name) }
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	parts := []string{titleStyle.Render("Command Palette"), m.input.View()}
	if m.err != "" {
		parts = append(parts, "", theme.ErrorStyle.Render(m.err))
	}

	return theme.PanelStyle.
		Width(max(m.width-4, 0)).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
