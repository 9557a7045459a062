package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/nhle/notification-monitor/internal/keys"
	"github.com/nhle/notification-monitor/internal/model"
	"github.com/nhle/notification-monitor/internal/store"
	appsync "github.com/nhle/notification-monitor/internal/sync"
	"github.com/nhle/notification-monitor/internal/theme"
	"github.com/nhle/notification-monitor/internal/ui"
	"github.com/nhle/notification-monitor/internal/ui/command"
	helpview "github.com/nhle/notification-monitor/internal/ui/help"
	"github.com/nhle/notification-monitor/internal/ui/history"
	"github.com/nhle/notification-monitor/internal/ui/notiflist"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewHistory
	ViewHelp
	ViewCommand
)

// clockTickMsg redraws the header date.
type clockTickMsg time.Time

// controllerStartedMsg reports the outcome of starting the controller.
type controllerStartedMsg struct {
	err error
}

// prunedMsg reports the outcome of pruning sync history.
type prunedMsg struct {
	keep int
	err  error
}

// Options configures the root model.
type Options struct {
	Controller *appsync.Controller

	// History is nil when sync history is disabled.
	History     store.Store
	HistoryKeep int

	Endpoints helpview.Endpoints
	Now       func() time.Time
	Log       zerolog.Logger
}

// Model is the root Bubble Tea model. It routes between views and
// renders the header with the push connection state.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap

	controller  *appsync.Controller
	history     store.Store
	historyKeep int
	log         zerolog.Logger
	now         func() time.Time

	list        notiflist.Model
	historyView history.Model
	helpView    helpview.Model
	commandView command.Model

	connState model.ConnectionState
	lastSync  model.RefreshResult
	today     time.Time
	flash     string
	ready     bool
	quitting  bool
}

// New creates the root application model.
func New(opts Options) Model {
	k := keys.DefaultKeyMap()
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	var reader history.Reader
	if opts.History != nil {
		reader = opts.History
	}

	return Model{
		currentView: ViewList,
		keys:        k,
		controller:  opts.Controller,
		history:     opts.History,
		historyKeep: opts.HistoryKeep,
		log:         opts.Log.With().Str("component", "app").Logger(),
		now:         now,
		list:        notiflist.New(k, 80, 22),
		historyView: history.New(reader, k, 80, 22),
		helpView:    helpview.New(k, opts.Endpoints, 80, 22),
		commandView: command.New(80, 22),
		connState:   model.StateDisconnected,
		today:       now(),
	}
}

// Init starts the controller and subscribes to list and connection
// updates.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.startController(),
		m.list.Init(),
		m.controller.Synchronizer().WaitForUpdate(),
		m.controller.WaitForConnectionChange(),
		m.tickClock(),
	)
}

func (m Model) startController() tea.Cmd {
	c := m.controller
	return func() tea.Msg {
		return controllerStartedMsg{err: c.Start(context.Background())}
	}
}

// tickClock schedules a header redraw at the next minute boundary.
func (m Model) tickClock() tea.Cmd {
	now := m.now()
	next := now.Truncate(time.Minute).Add(time.Minute)
	return tea.Tick(next.Sub(now), func(t time.Time) tea.Msg {
		return clockTickMsg(t)
	})
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.list.SetSize(w, h)
		m.historyView.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		return m, nil

	case controllerStartedMsg:
		if msg.err != nil {
			m.log.Error().Err(msg.err).Msg("starting controller")
			m.flash = "push channel unavailable: " + msg.err.Error()
		}
		return m, nil

	case appsync.ListUpdatedMsg:
		m.lastSync = msg.Result
		if msg.Result.Failed() {
			m.log.Debug().Str("error", msg.Result.Error).Uint64("generation", msg.Generation).Msg("list cleared after failed fetch")
		}
		cmds := []tea.Cmd{
			m.list.SetRecords(msg.Records),
			m.controller.Synchronizer().WaitForUpdate(),
		}
		if m.currentView == ViewHistory {
			cmds = append(cmds, m.historyView.Load())
		}
		return m, tea.Batch(cmds...)

	case appsync.ConnectionStateMsg:
		m.connState = msg.State
		return m, m.controller.WaitForConnectionChange()

	case clockTickMsg:
		m.today = time.Time(msg)
		return m, m.tickClock()

	case prunedMsg:
		if msg.err != nil {
			m.flash = "prune failed: " + msg.err.Error()
		} else {
			m.flash = fmt.Sprintf("history pruned to the newest %d runs", msg.keep)
		}
		if m.currentView == ViewHistory {
			return m, m.historyView.Load()
		}
		return m, nil

	case history.CloseMsg:
		m.currentView = ViewList
		return m, nil

	case command.CancelMsg:
		m.currentView = m.previousView
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m.executeCommand(string(msg))

	case tea.KeyMsg:
		if m.currentView == ViewCommand {
			break
		}
		switch {
		case msg.String() == "ctrl+c":
			return m.quit()

		case key.Matches(msg, m.keys.Quit):
			if m.currentView == ViewList {
				return m.quit()
			}

		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case key.Matches(msg, m.keys.Back):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}

		case key.Matches(msg, m.keys.Command):
			m.previousView = m.currentView
			m.currentView = ViewCommand
			return m, m.commandView.Focus()

		case key.Matches(msg, m.keys.Refresh):
			if m.currentView == ViewList {
				m.flash = ""
				return m, m.controller.RefreshNow()
			}

		case key.Matches(msg, m.keys.History):
			if m.currentView == ViewList {
				m.previousView = m.currentView
				m.currentView = ViewHistory
				return m, m.historyView.Load()
			}
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
// Spinner ticks always go to the list so the loading state keeps moving.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	if _, isKey := msg.(tea.KeyMsg); !isKey {
		if m.currentView != ViewList {
			m.list, cmd = m.list.Update(msg)
			var viewCmd tea.Cmd
			m, viewCmd = m.updateView(msg)
			return m, tea.Batch(cmd, viewCmd)
		}
	}

	return m.updateView(msg)
}

func (m Model) updateView(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		m.list, cmd = m.list.Update(msg)
	case ViewHistory:
		m.historyView, cmd = m.historyView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// executeCommand handles a command from the command palette.
func (m Model) executeCommand(name string) (tea.Model, tea.Cmd) {
	switch name {
	case command.Refresh:
		m.currentView = ViewList
		return m, m.controller.RefreshNow()
	case command.History:
		m.previousView = ViewList
		m.currentView = ViewHistory
		return m, m.historyView.Load()
	case command.Prune:
		return m, m.prune()
	case command.Help:
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil
	case command.Quit:
		return m.quit()
	default:
		return m, nil
	}
}

func (m Model) prune() tea.Cmd {
	if m.history == nil {
		return func() tea.Msg {
			return prunedMsg{err: fmt.Errorf("sync history is disabled")}
		}
	}
	s, keep := m.history, m.historyKeep
	return func() tea.Msg {
		return prunedMsg{keep: keep, err: s.Prune(context.Background(), keep)}
	}
}

// quit stops the controller before exiting so no refresh outlives the UI.
func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.controller.Stop()
	return m, tea.Quit
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(ui.Title(m.today), m.headerStatus()...)
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, m.renderContent(), statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewHistory:
		return m.historyView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return m.list.View()
	}
}

// headerStatus returns the right-hand header segments: push state and
// when the list last changed. Fetch failures show only as an empty list.
func (m Model) headerStatus() []string {
	connected := m.connState == model.StateConnected
	label := "○ offline"
	if connected {
		label = "● live"
	}
	segments := []string{theme.ConnectionStyle(connected).Render(label)}

	if !m.lastSync.FinishedAt.IsZero() {
		segments = append(segments, "synced "+humanize.RelTime(m.lastSync.FinishedAt, m.now(), "ago", "from now"))
	}
	return segments
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.flash != "" && m.currentView == ViewList {
		return m.flash
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | tab complete | esc back"
	case ViewHistory:
		return "esc back | r reload | j/k scroll"
	default:
		return "q quit | ? help | r refresh | h history | : command"
	}
}
