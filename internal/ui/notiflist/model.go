// Package notiflist renders the live notification table.
package notiflist

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notification-monitor/internal/keys"
	"github.com/nhle/notification-monitor/internal/model"
	"github.com/nhle/notification-monitor/internal/theme"
)

// Fixed column widths; the recipient column takes the rest.
const (
	idWidth     = 26
	statusWidth = 12
	timeWidth   = 18
	minRecWidth = 12
)

// Model is the notification table. While it has no records it shows a
// loading spinner instead of an empty table.
type Model struct {
	table   table.Model
	spinner spinner.Model
	keys    *keys.KeyMap
	records []model.DisplayRecord
	width   int
	height  int
}

// New creates an empty, loading notification table.
func New(k *keys.KeyMap, width, height int) Model {
	t := table.New(
		table.WithColumns(columns(width)),
		table.WithFocused(true),
		table.WithHeight(tableHeight(height)),
	)
	t.SetStyles(table.Styles{
		Header:   theme.TableHeaderStyle,
		Cell:     theme.TableCellStyle,
		Selected: theme.TableSelectedStyle,
	})

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorBlue)

	return Model{
		table:   t,
		spinner: sp,
		keys:    k,
		records: []model.DisplayRecord{},
		width:   width,
		height:  height,
	}
}

// Init starts the loading spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// HasData reports whether there is anything to show.
func (m Model) HasData() bool {
	return len(m.records) > 0
}

// Records returns the rows currently displayed.
func (m Model) Records() []model.DisplayRecord {
	return m.records
}

// SetRecords replaces the displayed rows wholesale, keeping the cursor
// in range. It returns the spinner tick when the table becomes empty so
// the loading indicator animates again.
func (m *Model) SetRecords(records []model.DisplayRecord) tea.Cmd {
	wasEmpty := !m.HasData()
	m.records = records

	rows := make([]table.Row, 0, len(records))
	for _, r := range records {
		rows = append(rows, table.Row{r.ID, r.Recipient, r.Status, r.RelativeTime})
	}
	m.table.SetRows(rows)

	if c := m.table.Cursor(); c >= len(rows) {
		m.table.SetCursor(max(len(rows)-1, 0))
	}

	if !wasEmpty && !m.HasData() {
		return m.spinner.Tick
	}
	return nil
}

// Selected returns the record under the cursor.
func (m Model) Selected() (model.DisplayRecord, bool) {
	c := m.table.Cursor()
	if c < 0 || c >= len(m.records) {
		return model.DisplayRecord{}, false
	}
	return m.records[c], true
}

// Update handles navigation keys and spinner ticks.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.HasData() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Down):
			m.table.MoveDown(1)
			return m, nil
		case key.Matches(msg, m.keys.Up):
			m.table.MoveUp(1)
			return m, nil
		case key.Matches(msg, m.keys.Top):
			m.table.GotoTop()
			return m, nil
		case key.Matches(msg, m.keys.End):
			m.table.GotoBottom()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the table, or the loading state when there is no data.
func (m Model) View() string {
	if !m.HasData() {
		return m.viewLoading()
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.table.View(),
		m.viewFooter(),
	)
}

func (m Model) viewLoading() string {
	content := fmt.Sprintf("%s Loading notifications...", m.spinner.View())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

// viewFooter shows the selected record's status and per-status counts,
// each in its status color.
func (m Model) viewFooter() string {
	counts := make(map[string]int)
	for _, r := range m.records {
		counts[r.Status]++
	}
	statuses := make([]string, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)

	parts := make([]string, 0, len(statuses)+1)
	parts = append(parts, fmt.Sprintf("%d notifications", len(m.records)))
	for _, s := range statuses {
		label := s
		if label == "" {
			label = "unknown"
		}
		parts = append(parts, theme.StatusStyle(s).Render(fmt.Sprintf("%d %s", counts[s], label)))
	}

	footer := strings.Join(parts, "  ")
	if sel, ok := m.Selected(); ok && sel.Status != "" {
		footer += "  " + theme.HelpStyle.Render("selected:") + " " + theme.StatusStyle(sel.Status).Render(sel.Status)
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(footer)
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.table.SetColumns(columns(width))
	m.table.SetWidth(width)
	m.table.SetHeight(tableHeight(height))
}

func columns(width int) []table.Column {
	// Each cell is padded by one column on both sides.
	rec := width - idWidth - statusWidth - timeWidth - 8
	if rec < minRecWidth {
		rec = minRecWidth
	}
	return []table.Column{
		{Title: "ID", Width: idWidth},
		{Title: "Recipient", Width: rec},
		{Title: "Status", Width: statusWidth},
		{Title: "Time", Width: timeWidth},
	}
}

// tableHeight leaves room for the footer line.
func tableHeight(height int) int {
	if height-1 < 1 {
		return 1
	}
	return height - 1
}
