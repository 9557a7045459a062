package push

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notification-monitor/internal/model"
)

type countingRefresher struct {
	n atomic.Int32
}

func (r *countingRefresher) RequestRefresh() { r.n.Add(1) }

type connRecorder struct {
	mu     sync.Mutex
	events []model.ConnectionEvent
}

func (r *connRecorder) RecordConnection(_ context.Context, ev model.ConnectionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *connRecorder) States() []model.ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.ConnectionState, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.State)
	}
	return out
}

// scriptTransport replays a fixed sequence against the handler, then
// waits for ctx. It records every handler it was given.
type scriptTransport struct {
	script func(h Handler)

	mu       sync.Mutex
	runs     int
	handlers []Handler
}

func (s *scriptTransport) Run(ctx context.Context, _ string, h Handler) error {
	s.mu.Lock()
	s.runs++
	s.handlers = append(s.handlers, h)
	s.mu.Unlock()

	if s.script != nil {
		s.script(h)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *scriptTransport) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

func TestListenerForwardsOnlyQualifyingEvents(t *testing.T) {
	ref := &countingRefresher{}
	done := make(chan struct{})
	tr := &scriptTransport{script: func(h Handler) {
		h.OnConnect()
		h.OnMessage([]byte(`{"kind":"RECORD_ADDED"}`))
		h.OnMessage([]byte(`{"kind":"RECORD_UPDATED","body":{"_id":"a1"}}`))
		h.OnMessage([]byte(`{"kind":"RECORD_DELETED"}`))
		h.OnMessage([]byte(`{"kind":"FUTURE_KIND"}`))
		h.OnMessage([]byte(`{{{`))
		h.OnMessage(nil)
		close(done)
	}}

	l := NewListener(tr, ref, nil, zerolog.Nop())
	require.NoError(t, l.Start(context.Background(), "ws://example.test/ws"))
	defer l.Stop()
	waitDone(t, done)

	assert.Equal(t, int32(2), ref.n.Load())
	assert.Equal(t, Stats{Received: 6, Forwarded: 2, Ignored: 2, Dropped: 2}, l.Stats())
}

func TestListenerConnectionStates(t *testing.T) {
	rec := &connRecorder{}
	done := make(chan struct{})
	tr := &scriptTransport{script: func(h Handler) {
		h.OnConnect()
		h.OnDisconnect(errors.New("reset by peer"))
		h.OnConnect()
		close(done)
	}}

	l := NewListener(tr, &countingRefresher{}, rec, zerolog.Nop())
	assert.Equal(t, model.StateDisconnected, l.State())

	require.NoError(t, l.Start(context.Background(), "ws://example.test/ws"))
	waitDone(t, done)
	assert.Equal(t, model.StateConnected, l.State())

	select {
	case <-l.StateChanges():
	default:
		t.Fatal("expected a pending state change signal")
	}

	l.Stop()
	assert.Equal(t, model.StateDisconnected, l.State())
	assert.Equal(t, []model.ConnectionState{
		model.StateConnected,
		model.StateDisconnected,
		model.StateConnected,
		model.StateDisconnected,
	}, rec.States())

	rec.mu.Lock()
	assert.Equal(t, "reset by peer", rec.events[1].Error)
	rec.mu.Unlock()
}

func TestListenerStartIsIdempotent(t *testing.T) {
	tr := &scriptTransport{}
	l := NewListener(tr, &countingRefresher{}, nil, zerolog.Nop())

	require.NoError(t, l.Start(context.Background(), "ws://example.test/ws"))
	require.NoError(t, l.Start(context.Background(), "ws://example.test/ws"))
	defer l.Stop()

	require.Eventually(t, func() bool { return tr.Runs() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, tr.Runs())
	assert.True(t, l.Running())
}

func TestListenerHandlerBoundOncePerStart(t *testing.T) {
	tr := &scriptTransport{}
	l := NewListener(tr, &countingRefresher{}, nil, zerolog.Nop())

	require.NoError(t, l.Start(context.Background(), "ws://a/ws"))
	require.Eventually(t, func() bool { return tr.Runs() == 1 }, time.Second, 5*time.Millisecond)
	l.Stop()

	require.NoError(t, l.Start(context.Background(), "ws://a/ws"))
	require.Eventually(t, func() bool { return tr.Runs() == 2 }, time.Second, 5*time.Millisecond)
	l.Stop()

	tr.mu.Lock()
	defer tr.mu.Unlock()
	require.Len(t, tr.handlers, 2)
	assert.NotSame(t, tr.handlers[0], tr.handlers[1])
}

func TestListenerStopWithoutStart(t *testing.T) {
	l := NewListener(&scriptTransport{}, &countingRefresher{}, nil, zerolog.Nop())
	l.Stop()
	l.Stop()
	assert.False(t, l.Running())
}

func TestListenerStartRejectsEmptyAddress(t *testing.T) {
	l := NewListener(&scriptTransport{}, &countingRefresher{}, nil, zerolog.Nop())
	require.Error(t, l.Start(context.Background(), ""))
	assert.False(t, l.Running())
}

func TestListenerStopsWithParentContext(t *testing.T) {
	tr := &scriptTransport{script: func(h Handler) { h.OnConnect() }}
	l := NewListener(tr, &countingRefresher{}, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, l.Start(ctx, "ws://a/ws"))
	require.Eventually(t, func() bool { return l.State() == model.StateConnected }, time.Second, 5*time.Millisecond)

	cancel()
	assert.Eventually(t, func() bool { return l.State() == model.StateDisconnected }, time.Second, 5*time.Millisecond)
	l.Stop()
}

func waitDone(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}
