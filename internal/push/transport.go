package push

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Handler receives connection transitions and messages from a Transport.
// Calls for one Run are never concurrent.
type Handler interface {
	OnConnect()
	OnDisconnect(err error)
	OnMessage(data []byte)
}

// Transport owns the push connection: dialing, reading, keepalive and
// reconnecting with backoff. Run blocks until ctx is done.
type Transport interface {
	Run(ctx context.Context, addr string, h Handler) error
}

// TransportOption configures a WebSocketTransport.
type TransportOption func(*WebSocketTransport)

// WithBackoff sets the reconnect backoff bounds.
func WithBackoff(minWait, maxWait time.Duration) TransportOption {
	return func(t *WebSocketTransport) {
		t.minBackoff = minWait
		t.maxBackoff = maxWait
	}
}

// WithKeepalive sets the ping interval and how long to wait for a pong
// (or any frame) before the connection is considered dead.
func WithKeepalive(pingInterval, pongWait time.Duration) TransportOption {
	return func(t *WebSocketTransport) {
		t.pingInterval = pingInterval
		t.pongWait = pongWait
	}
}

// WithDialer replaces the default websocket dialer.
func WithDialer(d *websocket.Dialer) TransportOption {
	return func(t *WebSocketTransport) {
		t.dialer = d
	}
}

// WebSocketTransport is a Transport over gorilla/websocket. After a
// failed dial or a dropped connection it waits 1s, 2s, 4s, ... up to
// maxBackoff before dialing again; a successful connect resets the wait.
type WebSocketTransport struct {
	dialer       *websocket.Dialer
	header       http.Header
	minBackoff   time.Duration
	maxBackoff   time.Duration
	pingInterval time.Duration
	pongWait     time.Duration
	log          zerolog.Logger
}

// NewWebSocketTransport creates a transport with default backoff and
// keepalive settings.
func NewWebSocketTransport(log zerolog.Logger, opts ...TransportOption) *WebSocketTransport {
	t := &WebSocketTransport{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		header:       http.Header{},
		minBackoff:   time.Second,
		maxBackoff:   30 * time.Second,
		pingInterval: 25 * time.Second,
		pongWait:     60 * time.Second,
		log:          log.With().Str("component", "ws-transport").Logger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Run dials addr and serves the connection, reconnecting until ctx is
// done. It returns ctx.Err().
func (t *WebSocketTransport) Run(ctx context.Context, addr string, h Handler) error {
	wait := t.minBackoff
	for {
		conn, _, err := t.dialer.DialContext(ctx, addr, t.header)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			t.log.Warn().Err(err).Str("addr", addr).Dur("retry_in", wait).Msg("push dial failed")
			if !sleepCtx(ctx, wait) {
				return ctx.Err()
			}
			wait = nextBackoff(wait, t.maxBackoff)
			continue
		}

		wait = t.minBackoff
		h.OnConnect()
		err = t.serve(ctx, conn, h)
		h.OnDisconnect(err)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		t.log.Info().Err(err).Str("addr", addr).Dur("retry_in", wait).Msg("push connection lost")
		if !sleepCtx(ctx, wait) {
			return ctx.Err()
		}
		wait = nextBackoff(wait, t.maxBackoff)
	}
}

// Dial opens one connection to addr and closes it again. It is a
// connectivity check and does not deliver messages.
func (t *WebSocketTransport) Dial(ctx context.Context, addr string) error {
	conn, _, err := t.dialer.DialContext(ctx, addr, t.header)
	if err != nil {
		return err
	}
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return conn.Close()
}

// serve runs the read loop for one connection. It returns when the
// connection fails or ctx is done.
func (t *WebSocketTransport) serve(ctx context.Context, conn *websocket.Conn, h Handler) error {
	done := make(chan struct{})
	defer close(done)

	_ = conn.SetReadDeadline(time.Now().Add(t.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(t.pongWait))
	})

	// Close the connection when ctx ends to unblock ReadMessage, and
	// keep it alive with pings meanwhile.
	go func() {
		ticker := time.NewTicker(t.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				_ = conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second),
				)
				_ = conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					_ = conn.Close()
					return
				}
			}
		}
	}()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errors.New("closed by server")
			}
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(t.pongWait))

		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			h.OnMessage(data)
		}
	}
}

// nextBackoff doubles cur, capped at maxWait.
func nextBackoff(cur, maxWait time.Duration) time.Duration {
	next := cur * 2
	if next > maxWait {
		next = maxWait
	}
	return next
}

// sleepCtx waits for d or ctx, reporting whether the full wait elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
