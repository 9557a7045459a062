package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu          sync.Mutex
	connects    int
	disconnects int
	messages    []string
}

func (h *recordingHandler) OnConnect() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connects++
}

func (h *recordingHandler) OnDisconnect(error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnects++
}

func (h *recordingHandler) OnMessage(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, string(data))
}

func (h *recordingHandler) snapshot() (int, int, []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connects, h.disconnects, append([]string(nil), h.messages...)
}

// newPushServer starts a websocket server that runs serve for every
// accepted connection and returns its ws:// address.
func newPushServer(t *testing.T, serve func(conn *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func runTransport(t *testing.T, tr *WebSocketTransport, addr string, h Handler) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = tr.Run(ctx, addr, h)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func TestWebSocketTransportDeliversMessages(t *testing.T) {
	addr := newPushServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"kind":"RECORD_ADDED"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"kind":"RECORD_UPDATED"}`))
		// Hold the connection until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	h := &recordingHandler{}
	runTransport(t, NewWebSocketTransport(zerolog.Nop()), addr, h)

	require.Eventually(t, func() bool {
		_, _, msgs := h.snapshot()
		return len(msgs) == 2
	}, 2*time.Second, 10*time.Millisecond)

	connects, disconnects, msgs := h.snapshot()
	assert.Equal(t, 1, connects)
	assert.Zero(t, disconnects)
	assert.Equal(t, []string{`{"kind":"RECORD_ADDED"}`, `{"kind":"RECORD_UPDATED"}`}, msgs)
}

func TestWebSocketTransportReconnects(t *testing.T) {
	var accepted atomic.Int32
	addr := newPushServer(t, func(conn *websocket.Conn) {
		if accepted.Add(1) == 1 {
			// Drop the first connection straight away.
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	h := &recordingHandler{}
	tr := NewWebSocketTransport(zerolog.Nop(), WithBackoff(10*time.Millisecond, 50*time.Millisecond))
	runTransport(t, tr, addr, h)

	require.Eventually(t, func() bool {
		connects, _, _ := h.snapshot()
		return connects == 2
	}, 2*time.Second, 10*time.Millisecond)

	_, disconnects, _ := h.snapshot()
	assert.Equal(t, 1, disconnects)
}

func TestWebSocketTransportRetriesFailedDial(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "not a websocket endpoint", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	addr := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	h := &recordingHandler{}
	tr := NewWebSocketTransport(zerolog.Nop(), WithBackoff(5*time.Millisecond, 20*time.Millisecond))
	runTransport(t, tr, addr, h)

	require.Eventually(t, func() bool { return attempts.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	connects, _, _ := h.snapshot()
	assert.Zero(t, connects)
}

func TestWebSocketTransportStopsOnCancel(t *testing.T) {
	closed := make(chan struct{})
	addr := newPushServer(t, func(conn *websocket.Conn) {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	h := &recordingHandler{}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- NewWebSocketTransport(zerolog.Nop()).Run(ctx, addr, h) }()

	require.Eventually(t, func() bool {
		connects, _, _ := h.snapshot()
		return connects == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	waitDone(t, closed)

	_, disconnects, _ := h.snapshot()
	assert.Equal(t, 1, disconnects)
}

func TestWebSocketTransportDial(t *testing.T) {
	addr := newPushServer(t, func(conn *websocket.Conn) {
		_, _, _ = conn.ReadMessage()
	})

	tr := NewWebSocketTransport(zerolog.Nop())
	assert.NoError(t, tr.Dial(context.Background(), addr))
	assert.Error(t, tr.Dial(context.Background(), "ws://127.0.0.1:1/ws"))
}

func TestNextBackoff(t *testing.T) {
	d := time.Second
	var got []time.Duration
	for i := 0; i < 7; i++ {
		got = append(got, d)
		d = nextBackoff(d, 30*time.Second)
	}
	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second,
	}, got)
}
