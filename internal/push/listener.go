// Package push maintains the push channel connection and turns
// qualifying events into refresh requests.
package push

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/notification-monitor/internal/model"
)

// Refresher is told when the notification list may be stale.
type Refresher interface {
	RequestRefresh()
}

// ConnectionObserver records connection transitions.
type ConnectionObserver interface {
	RecordConnection(ctx context.Context, ev model.ConnectionEvent) error
}

// Stats counts inbound messages by outcome.
type Stats struct {
	Received  uint64
	Forwarded uint64
	Ignored   uint64
	Dropped   uint64
}

// Listener holds one push connection for the lifetime of its owner. It
// only tracks connection state and forwards qualifying events; it never
// touches the notification list.
type Listener struct {
	transport Transport
	refresher Refresher
	observer  ConnectionObserver
	log       zerolog.Logger

	mu      sync.Mutex
	state   model.ConnectionState
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	changes chan struct{}

	received  atomic.Uint64
	forwarded atomic.Uint64
	ignored   atomic.Uint64
	dropped   atomic.Uint64
}

// NewListener creates a disconnected listener. observer may be nil.
func NewListener(t Transport, r Refresher, observer ConnectionObserver, log zerolog.Logger) *Listener {
	return &Listener{
		transport: t,
		refresher: r,
		observer:  observer,
		log:       log.With().Str("component", "push-listener").Logger(),
		state:     model.StateDisconnected,
		changes:   make(chan struct{}, 1),
	}
}

// Start opens the push connection to addr in the background. Calling
// Start while already running is a no-op, so one session never holds
// two connections.
func (l *Listener) Start(ctx context.Context, addr string) error {
	if addr == "" {
		return errors.New("push channel address is empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.running = true
	l.cancel = cancel
	l.done = done

	// The handler is bound once per connection scope.
	h := &listenerHandler{l: l}

	go func() {
		defer close(done)
		if err := l.transport.Run(runCtx, addr, h); err != nil && !errors.Is(err, context.Canceled) {
			l.log.Warn().Err(err).Msg("push transport stopped")
		}
		l.setState(model.StateDisconnected, nil)
	}()

	l.log.Info().Str("addr", addr).Msg("push listener started")
	return nil
}

// Stop releases the connection and waits for the transport to exit. It
// is safe to call more than once and before Start.
func (l *Listener) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	cancel := l.cancel
	done := l.done
	l.mu.Unlock()

	cancel()
	<-done
	l.log.Info().Msg("push listener stopped")
}

// Running reports whether Start has been called without a matching Stop.
func (l *Listener) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// State returns the current connection state.
func (l *Listener) State() model.ConnectionState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// StateChanges is signalled after each state transition. At most one
// signal is pending; read State for the current value.
func (l *Listener) StateChanges() <-chan struct{} {
	return l.changes
}

// Stats returns message counters.
func (l *Listener) Stats() Stats {
	return Stats{
		Received:  l.received.Load(),
		Forwarded: l.forwarded.Load(),
		Ignored:   l.ignored.Load(),
		Dropped:   l.dropped.Load(),
	}
}

func (l *Listener) setState(state model.ConnectionState, cause error) {
	l.mu.Lock()
	if l.state == state {
		l.mu.Unlock()
		return
	}
	l.state = state
	l.mu.Unlock()

	select {
	case l.changes <- struct{}{}:
	default:
	}

	ev := model.ConnectionEvent{State: state, At: time.Now()}
	if cause != nil {
		ev.Error = cause.Error()
	}
	if l.observer != nil {
		if err := l.observer.RecordConnection(context.Background(), ev); err != nil {
			l.log.Error().Err(err).Msg("recording connection event")
		}
	}
}

// handleMessage decodes one inbound message and forwards it if it
// qualifies. Malformed messages are dropped; unknown kinds are ignored.
func (l *Listener) handleMessage(data []byte) {
	l.received.Add(1)

	ev, err := DecodeEvent(data)
	if err != nil {
		l.dropped.Add(1)
		l.log.Warn().Err(err).Int("bytes", len(data)).Msg("dropping push message")
		return
	}

	if !ev.Kind.Qualifying() {
		l.ignored.Add(1)
		l.log.Debug().Str("kind", string(ev.Kind)).Msg("ignoring push event")
		return
	}

	l.forwarded.Add(1)
	l.log.Debug().Str("kind", string(ev.Kind)).Msg("push event, requesting refresh")
	l.refresher.RequestRefresh()
}

// listenerHandler adapts Listener to the Handler interface.
type listenerHandler struct {
	l *Listener
}

func (h *listenerHandler) OnConnect() {
	h.l.log.Info().Msg("push channel connected")
	h.l.setState(model.StateConnected, nil)
}

func (h *listenerHandler) OnDisconnect(err error) {
	h.l.log.Info().Err(err).Msg("push channel disconnected")
	h.l.setState(model.StateDisconnected, err)
}

func (h *listenerHandler) OnMessage(data []byte) {
	h.l.handleMessage(data)
}
