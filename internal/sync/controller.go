package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/nhle/notification-monitor/internal/model"
	"github.com/nhle/notification-monitor/internal/push"
)

// ConnectionStateMsg is a tea.Msg sent when the push connection state
// changes.
type ConnectionStateMsg struct {
	State model.ConnectionState
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithDebounce coalesces bursts of push-triggered refreshes into one
// trailing refresh after d of quiet. Zero refreshes once per event.
func WithDebounce(d time.Duration) ControllerOption {
	return func(c *Controller) {
		c.debounce = d
	}
}

// WithControllerLogger sets the logger.
func WithControllerLogger(l zerolog.Logger) ControllerOption {
	return func(c *Controller) {
		c.log = l.With().Str("component", "controller").Logger()
	}
}

// WithConnectionObserver records push connection transitions.
func WithConnectionObserver(o push.ConnectionObserver) ControllerOption {
	return func(c *Controller) {
		c.connObserver = o
	}
}

// Controller ties a Synchronizer to a push Listener for the lifetime of
// one session. It performs the startup refresh, turns push events into
// refreshes and tears everything down on Stop.
type Controller struct {
	sync         *Synchronizer
	listener     *push.Listener
	pushAddr     string
	debounce     time.Duration
	connObserver push.ConnectionObserver
	log          zerolog.Logger

	mu      gosync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	timer   *time.Timer
	wg      gosync.WaitGroup
}

// NewController creates a stopped controller. pushAddr is the push
// channel address (ws:// or wss://).
func NewController(s *Synchronizer, t push.Transport, pushAddr string, opts ...ControllerOption) *Controller {
	c := &Controller{
		sync:     s,
		pushAddr: pushAddr,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.listener = push.NewListener(t, c, c.connObserver, c.log)
	return c
}

// Start opens the push connection and performs one unconditional
// refresh in the background. Calling Start on a running controller is a
// no-op. If the push connection cannot be started, Start returns the
// error and the controller stays stopped with no refresh issued.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	// Events delivered before running is set wait on c.mu.
	if err := c.listener.Start(runCtx, c.pushAddr); err != nil {
		cancel()
		c.log.Error().Err(err).Msg("starting push listener")
		return err
	}

	c.ctx, c.cancel = runCtx, cancel
	c.running = true
	c.spawnLocked(model.TriggerStartup)
	return nil
}

// RequestRefresh schedules a push-triggered refresh. It never blocks and
// does nothing once the controller is stopped.
func (c *Controller) RequestRefresh() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}

	if c.debounce <= 0 {
		c.spawnLocked(model.TriggerPush)
		return
	}

	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.running {
			c.spawnLocked(model.TriggerPush)
		}
	})
}

// RefreshNow returns a tea.Cmd that runs a manual refresh. Its result
// reaches the UI through the synchronizer like any other commit.
func (c *Controller) RefreshNow() tea.Cmd {
	return func() tea.Msg {
		c.mu.Lock()
		if c.running {
			c.spawnLocked(model.TriggerManual)
		}
		c.mu.Unlock()
		return nil
	}
}

// Stop closes the push connection, cancels in-flight refreshes and
// waits for background work to finish. Safe to call more than once.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.cancel()
	c.mu.Unlock()

	c.listener.Stop()
	c.wg.Wait()
	c.log.Info().Msg("controller stopped")
}

// Running reports whether the controller has been started and not stopped.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Synchronizer returns the owned synchronizer.
func (c *Controller) Synchronizer() *Synchronizer {
	return c.sync
}

// State returns the push connection state.
func (c *Controller) State() model.ConnectionState {
	return c.listener.State()
}

// PushStats returns push message counters.
func (c *Controller) PushStats() push.Stats {
	return c.listener.Stats()
}

// WaitForConnectionChange returns a tea.Cmd that blocks until the push
// connection state changes and reports the new state.
func (c *Controller) WaitForConnectionChange() tea.Cmd {
	return func() tea.Msg {
		<-c.listener.StateChanges()
		return ConnectionStateMsg{State: c.listener.State()}
	}
}

// spawnLocked starts one refresh goroutine. c.mu must be held.
func (c *Controller) spawnLocked(trigger model.RefreshTrigger) {
	ctx := c.ctx
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.sync.Refresh(ctx, trigger); err != nil && !errors.Is(err, context.Canceled) {
			c.log.Debug().Err(err).Str("trigger", string(trigger)).Msg("refresh failed")
		}
	}()
}
