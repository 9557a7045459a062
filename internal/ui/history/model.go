// Package history shows recent refresh runs and push connection events
// from the sync history store.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/nhle/notification-monitor/internal/keys"
	"github.com/nhle/notification-monitor/internal/model"
	"github.com/nhle/notification-monitor/internal/store"
	"github.com/nhle/notification-monitor/internal/theme"
)

// Reader is the subset of the store the history view needs.
type Reader interface {
	RecentRefreshes(ctx context.Context, limit int) ([]model.RefreshResult, error)
	RecentConnections(ctx context.Context, limit int) ([]model.ConnectionEvent, error)
	RefreshStats(ctx context.Context) (store.RefreshStats, error)
}

// LoadedMsg carries history rows loaded from the store.
type LoadedMsg struct {
	Refreshes   []model.RefreshResult
	Connections []model.ConnectionEvent
	Stats       store.RefreshStats
	Err         error
}

// CloseMsg asks the parent to leave the history view.
type CloseMsg struct{}

const pageSize = 100

// Model is the sync history view.
type Model struct {
	reader  Reader
	keys    *keys.KeyMap
	table   table.Model
	loaded  LoadedMsg
	loading bool
	now     func() time.Time
	width   int
	height  int
}

// New creates a history view. reader may be nil when history is disabled.
func New(r Reader, k *keys.KeyMap, width, height int) Model {
	t := table.New(
		table.WithColumns(columns(width)),
		table.WithFocused(true),
		table.WithHeight(max(height-4, 1)),
	)
	t.SetStyles(table.Styles{
		Header:   theme.TableHeaderStyle,
		Cell:     theme.TableCellStyle,
		Selected: theme.TableSelectedStyle,
	})

	return Model{
		reader: r,
		keys:   k,
		table:  t,
		now:    time.Now,
		width:  width,
		height: height,
	}
}

// Load returns a command that reads recent history from the store.
func (m *Model) Load() tea.Cmd {
	if m.reader == nil {
		return nil
	}
	m.loading = true
	r := m.reader
	return func() tea.Msg {
		ctx := context.Background()
		var msg LoadedMsg
		msg.Refreshes, msg.Err = r.RecentRefreshes(ctx, pageSize)
		if msg.Err != nil {
			return msg
		}
		msg.Connections, msg.Err = r.RecentConnections(ctx, 5)
		if msg.Err != nil {
			return msg
		}
		msg.Stats, msg.Err = r.RefreshStats(ctx)
		return msg
	}
}

// Update handles loaded data and navigation.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		m.loading = false
		m.loaded = msg
		m.table.SetRows(m.rows(msg.Refreshes))
		m.table.GotoTop()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.History):
			return m, func() tea.Msg { return CloseMsg{} }
		case key.Matches(msg, m.keys.Refresh):
			return m, m.Load()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) rows(runs []model.RefreshResult) []table.Row {
	now := m.now()
	rows := make([]table.Row, 0, len(runs))
	for _, r := range runs {
		outcome := "ok"
		if r.Failed() {
			outcome = r.Error
		}
		rows = append(rows, table.Row{
			humanize.RelTime(r.FinishedAt, now, "ago", "from now"),
			string(r.Trigger),
			humanize.Comma(int64(r.RecordCount)),
			r.Duration().Round(time.Millisecond).String(),
			outcome,
		})
	}
	return rows
}

// View renders the summary line, the connection strip and the runs table.
func (m Model) View() string {
	if m.reader == nil {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			theme.HelpStyle.Render("Sync history is disabled (history.enabled: false)"))
	}
	if m.loaded.Err != nil {
		return lipgloss.NewStyle().Padding(1, 2).Render(
			theme.ErrorStyle.Render("loading history: " + m.loaded.Err.Error()))
	}
	if m.loading && len(m.loaded.Refreshes) == 0 {
		return lipgloss.NewStyle().Padding(1, 2).Render("Loading history...")
	}

	st := m.loaded.Stats
	summary := fmt.Sprintf(
		"%s refreshes  %s failed  startup %d  push %d  manual %d",
		humanize.Comma(int64(st.Total)),
		humanize.Comma(int64(st.Failed)),
		st.Startup, st.Push, st.Manual,
	)

	conn := "no connection events"
	if len(m.loaded.Connections) > 0 {
		latest := m.loaded.Connections[0]
		conn = fmt.Sprintf("push %s %s", latest.State, humanize.RelTime(latest.At, m.now(), "ago", "from now"))
		if latest.Error != "" {
			conn += " (" + latest.Error + ")"
		}
		conn = theme.ConnectionStyle(latest.State == model.StateConnected).
			UnsetBackground().
			Render(conn)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		lipgloss.NewStyle().Bold(true).Padding(0, 1).Render(summary),
		lipgloss.NewStyle().Padding(0, 1).Render(conn),
		"",
		m.table.View(),
	)
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.table.SetColumns(columns(width))
	m.table.SetWidth(width)
	m.table.SetHeight(max(height-4, 1))
}

func columns(width int) []table.Column {
	outcome := width - 16 - 10 - 9 - 10 - 10
	if outcome < 10 {
		outcome = 10
	}
	return []table.Column{
		{Title: "Finished", Width: 16},
		{Title: "Trigger", Width: 10},
		{Title: "Records", Width: 9},
		{Title: "Took", Width: 10},
		{Title: "Outcome", Width: outcome},
	}
}
