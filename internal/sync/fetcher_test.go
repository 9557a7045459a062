package sync

import (
	"context"
	gosync "sync"
	"testing"
	"time"

	"github.com/nhle/notification-monitor/internal/model"
)

// scriptedCall is one scripted FetchNotifications response. If release
// is non-nil the call blocks until it is closed or ctx is done.
type scriptedCall struct {
	records []model.RawNotification
	err     error
	release chan struct{}
	entered chan struct{}
}

// scriptedFetcher returns scripted responses in call order. Once the
// script runs out it repeats fallback.
type scriptedFetcher struct {
	mu       gosync.Mutex
	calls    []*scriptedCall
	fallback scriptedCall
	count    int
}

func (f *scriptedFetcher) push(c *scriptedCall) *scriptedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.entered == nil {
		c.entered = make(chan struct{})
	}
	f.calls = append(f.calls, c)
	return c
}

func (f *scriptedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

func (f *scriptedFetcher) FetchNotifications(ctx context.Context) ([]model.RawNotification, error) {
	f.mu.Lock()
	f.count++
	call := &f.fallback
	if len(f.calls) > 0 {
		call = f.calls[0]
		f.calls = f.calls[1:]
	}
	f.mu.Unlock()

	if call.entered != nil {
		close(call.entered)
	}
	if call.release != nil {
		select {
		case <-call.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return call.records, call.err
}

func rawRecord(id, to, status string) model.RawNotification {
	return model.RawNotification{
		ID:      id,
		Payload: &model.EmailPayload{To: to},
		Status:  &status,
	}
}

// waitClosed fails the test if ch is not closed within a second.
func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

type recordingObserver struct {
	mu      gosync.Mutex
	results []model.RefreshResult
}

func (o *recordingObserver) RecordRefresh(_ context.Context, r model.RefreshResult) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, r)
	return nil
}

func (o *recordingObserver) Results() []model.RefreshResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]model.RefreshResult, len(o.results))
	copy(out, o.results)
	return out
}
