package sync

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notification-monitor/internal/model"
	"github.com/nhle/notification-monitor/internal/source"
)

func newTestSynchronizer(f source.Fetcher, opts ...Option) *Synchronizer {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(f, opts...)
}

func TestNewSynchronizerStartsEmpty(t *testing.T) {
	s := newTestSynchronizer(&scriptedFetcher{})

	assert.False(t, s.HasData())
	assert.Empty(t, s.Snapshot())
	assert.Zero(t, s.Generation())
}

func TestRefreshCommitsFetchedRecords(t *testing.T) {
	f := &scriptedFetcher{}
	ts := "2024-01-01T11:55:00Z"
	f.push(&scriptedCall{records: []model.RawNotification{
		{ID: "a1", Payload: &model.EmailPayload{To: "x@y.com"}, Status: strPtr("delivered"), Timestamp: &ts},
		{ID: "b2", Payload: &model.EmailPayload{To: "z@y.com"}},
	}})
	s := newTestSynchronizer(f)

	require.NoError(t, s.Refresh(context.Background(), model.TriggerStartup))

	assert.True(t, s.HasData())
	assert.Equal(t, []model.DisplayRecord{
		{ID: "a1", Recipient: "x@y.com", Status: "delivered", RelativeTime: "5 minutes ago"},
		{ID: "b2", Recipient: "z@y.com"},
	}, s.Snapshot())
	assert.Equal(t, uint64(1), s.Generation())

	last := s.LastResult()
	assert.Equal(t, model.TriggerStartup, last.Trigger)
	assert.Equal(t, 2, last.RecordCount)
	assert.False(t, last.Failed())
	assert.NotEmpty(t, last.ID)
}

func TestRefreshRecomputesRelativeTimeEachFetch(t *testing.T) {
	ts := "2024-01-01T11:55:00Z"
	f := &scriptedFetcher{fallback: scriptedCall{records: []model.RawNotification{
		{ID: "a1", Payload: &model.EmailPayload{To: "x@y.com"}, Status: strPtr("sent"), Timestamp: &ts},
	}}}

	var mu gosync.Mutex
	now := fixedNow
	s := New(f, WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}))

	require.NoError(t, s.Refresh(context.Background(), model.TriggerStartup))
	assert.Equal(t, "5 minutes ago", s.Snapshot()[0].RelativeTime)

	mu.Lock()
	now = fixedNow.Add(2 * time.Hour)
	mu.Unlock()

	// The clock moving alone does not touch the committed list.
	assert.Equal(t, "5 minutes ago", s.Snapshot()[0].RelativeTime)

	require.NoError(t, s.Refresh(context.Background(), model.TriggerPush))
	assert.Equal(t, "2 hours ago", s.Snapshot()[0].RelativeTime)
	assert.Equal(t, 2, f.Calls())
}

func TestRefreshFailureClearsList(t *testing.T) {
	f := &scriptedFetcher{}
	f.push(&scriptedCall{records: []model.RawNotification{
		rawRecord("a1", "x@y.com", "delivered"),
		rawRecord("b2", "z@y.com", "pending"),
	}})
	f.push(&scriptedCall{err: &source.StatusError{StatusCode: 500, Method: "GET", URL: "http://x/api/email/list"}})
	s := newTestSynchronizer(f)

	require.NoError(t, s.Refresh(context.Background(), model.TriggerStartup))
	require.Len(t, s.Snapshot(), 2)

	err := s.Refresh(context.Background(), model.TriggerPush)
	require.Error(t, err)
	assert.True(t, source.IsStatusError(err))

	assert.False(t, s.HasData())
	assert.Empty(t, s.Snapshot())
	assert.Equal(t, uint64(2), s.Generation())
	assert.True(t, s.LastResult().Failed())
	assert.Zero(t, s.LastResult().RecordCount)
}

func TestRefreshAfterFailureRecovers(t *testing.T) {
	f := &scriptedFetcher{}
	f.push(&scriptedCall{err: errors.New("connection refused")})
	f.push(&scriptedCall{records: []model.RawNotification{rawRecord("a1", "x@y.com", "pending")}})
	s := newTestSynchronizer(f)

	require.Error(t, s.Refresh(context.Background(), model.TriggerStartup))
	assert.False(t, s.HasData())

	require.NoError(t, s.Refresh(context.Background(), model.TriggerManual))
	assert.True(t, s.HasData())
	assert.Equal(t, "a1", s.Snapshot()[0].ID)
}

func TestRefreshTimeoutIsOrdinaryFailure(t *testing.T) {
	f := &scriptedFetcher{}
	f.push(&scriptedCall{records: []model.RawNotification{rawRecord("a1", "x@y.com", "pending")}})
	f.push(&scriptedCall{release: make(chan struct{})})
	s := newTestSynchronizer(f, WithFetchTimeout(20*time.Millisecond))

	require.NoError(t, s.Refresh(context.Background(), model.TriggerStartup))
	require.True(t, s.HasData())

	err := s.Refresh(context.Background(), model.TriggerPush)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, s.HasData())
}

func TestLastCompletedRefreshWins(t *testing.T) {
	f := &scriptedFetcher{}
	slow := f.push(&scriptedCall{
		records: []model.RawNotification{rawRecord("a1", "slow@y.com", "delivered")},
		release: make(chan struct{}),
	})
	fast := f.push(&scriptedCall{
		records: []model.RawNotification{rawRecord("b2", "fast@y.com", "pending")},
	})
	s := newTestSynchronizer(f)

	var wg gosync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, s.Refresh(context.Background(), model.TriggerPush))
	}()
	waitClosed(t, slow.entered, "slow fetch to start")

	require.NoError(t, s.Refresh(context.Background(), model.TriggerPush))
	waitClosed(t, fast.entered, "fast fetch to start")
	assert.Equal(t, "fast@y.com", s.Snapshot()[0].Recipient)

	close(slow.release)
	wg.Wait()

	got := s.Snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].ID)
	assert.Equal(t, "slow@y.com", got[0].Recipient)
	assert.Equal(t, uint64(2), s.Generation())
}

func TestLateFailureWinsOverEarlierSuccess(t *testing.T) {
	f := &scriptedFetcher{}
	slow := f.push(&scriptedCall{err: errors.New("boom"), release: make(chan struct{})})
	f.push(&scriptedCall{records: []model.RawNotification{rawRecord("b2", "z@y.com", "pending")}})
	s := newTestSynchronizer(f)

	done := make(chan error, 1)
	go func() { done <- s.Refresh(context.Background(), model.TriggerPush) }()
	waitClosed(t, slow.entered, "slow fetch to start")

	require.NoError(t, s.Refresh(context.Background(), model.TriggerPush))
	assert.True(t, s.HasData())

	close(slow.release)
	require.Error(t, <-done)
	assert.False(t, s.HasData())
}

func TestConcurrentRefreshesNeverMixLists(t *testing.T) {
	f := &scriptedFetcher{fallback: scriptedCall{records: []model.RawNotification{
		rawRecord("a1", "x@y.com", "pending"),
		rawRecord("b2", "z@y.com", "pending"),
		rawRecord("c3", "w@y.com", "pending"),
	}}}
	s := newTestSynchronizer(f)

	var wg gosync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Refresh(context.Background(), model.TriggerPush)
		}()
	}
	for i := 0; i < 50; i++ {
		snap := s.Snapshot()
		assert.Contains(t, []int{0, 3}, len(snap))
	}
	wg.Wait()

	assert.Len(t, s.Snapshot(), 3)
	assert.Equal(t, uint64(20), s.Generation())
	assert.Equal(t, 20, f.Calls())
}

func TestSnapshotIsACopy(t *testing.T) {
	f := &scriptedFetcher{fallback: scriptedCall{records: []model.RawNotification{rawRecord("a1", "x@y.com", "pending")}}}
	s := newTestSynchronizer(f)
	require.NoError(t, s.Refresh(context.Background(), model.TriggerStartup))

	snap := s.Snapshot()
	snap[0].Status = "mutated"

	assert.Equal(t, "pending", s.Snapshot()[0].Status)
}

func TestObserverReceivesEveryRefresh(t *testing.T) {
	f := &scriptedFetcher{}
	f.push(&scriptedCall{records: []model.RawNotification{rawRecord("a1", "x@y.com", "pending")}})
	f.push(&scriptedCall{err: errors.New("boom")})
	obs := &recordingObserver{}
	s := newTestSynchronizer(f, WithObserver(obs))

	require.NoError(t, s.Refresh(context.Background(), model.TriggerStartup))
	require.Error(t, s.Refresh(context.Background(), model.TriggerManual))

	results := obs.Results()
	require.Len(t, results, 2)
	assert.Equal(t, model.TriggerStartup, results[0].Trigger)
	assert.Equal(t, 1, results[0].RecordCount)
	assert.Equal(t, uint64(1), results[0].Generation)
	assert.Equal(t, model.TriggerManual, results[1].Trigger)
	assert.Equal(t, "boom", results[1].Error)
	assert.Equal(t, uint64(2), results[1].Generation)
}

func TestWaitForUpdateDeliversLatestList(t *testing.T) {
	f := &scriptedFetcher{}
	f.push(&scriptedCall{records: []model.RawNotification{rawRecord("a1", "x@y.com", "pending")}})
	f.push(&scriptedCall{records: []model.RawNotification{rawRecord("b2", "z@y.com", "delivered")}})
	s := newTestSynchronizer(f)

	require.NoError(t, s.Refresh(context.Background(), model.TriggerStartup))
	require.NoError(t, s.Refresh(context.Background(), model.TriggerPush))

	msg := s.WaitForUpdate()()
	updated, ok := msg.(ListUpdatedMsg)
	require.True(t, ok)
	assert.True(t, updated.HasData())
	assert.Equal(t, uint64(2), updated.Generation)
	require.Len(t, updated.Records, 1)
	assert.Equal(t, "b2", updated.Records[0].ID)

	select {
	case <-s.updated:
		t.Fatal("second commit should have coalesced into the first wake-up")
	default:
	}
}
