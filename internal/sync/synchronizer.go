package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nhle/notification-monitor/internal/model"
	"github.com/nhle/notification-monitor/internal/source"
)

// ListUpdatedMsg is a tea.Msg sent after a commit. It carries the list
// as of the moment the UI picked it up, which is never older than the
// commit that woke it.
type ListUpdatedMsg struct {
	Records    []model.DisplayRecord
	Generation uint64
	Result     model.RefreshResult
}

// HasData reports whether the carried list is non-empty.
func (m ListUpdatedMsg) HasData() bool {
	return len(m.Records) > 0
}

// Observer receives the outcome of every completed refresh.
type Observer interface {
	RecordRefresh(ctx context.Context, result model.RefreshResult) error
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithObserver registers an observer for refresh outcomes.
func WithObserver(o Observer) Option {
	return func(s *Synchronizer) {
		s.observer = o
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Synchronizer) {
		s.log = l.With().Str("component", "synchronizer").Logger()
	}
}

// WithClock overrides time.Now, used for relative time and timings.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) {
		s.now = now
	}
}

// WithFetchTimeout bounds each fetch. A timeout is an ordinary failure.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Synchronizer) {
		s.timeout = d
	}
}

// Synchronizer owns the displayed notification list. Refresh fetches,
// normalizes and commits as one unit; commits replace the list
// wholesale, so readers never see a mix of two fetches.
type Synchronizer struct {
	fetcher  source.Fetcher
	observer Observer
	log      zerolog.Logger
	now      func() time.Time
	timeout  time.Duration

	mu         gosync.RWMutex
	records    []model.DisplayRecord
	generation uint64
	last       model.RefreshResult

	// updated holds at most one pending wake-up for the UI. Readers
	// take the current snapshot when woken, so dropping a send while one
	// is pending loses nothing.
	updated chan struct{}
}

// New creates a Synchronizer with an empty list.
func New(f source.Fetcher, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		fetcher: f,
		log:     zerolog.Nop(),
		now:     time.Now,
		records: []model.DisplayRecord{},
		updated: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh issues one bulk fetch and commits the result. On any failure
// it commits an empty list and returns the error; the previous list is
// never kept. Concurrent calls are allowed: whichever completes last
// determines the final list.
func (s *Synchronizer) Refresh(ctx context.Context, trigger model.RefreshTrigger) error {
	started := s.now()

	fetchCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	raws, err := s.fetcher.FetchNotifications(fetchCtx)

	records := []model.DisplayRecord{}
	if err == nil {
		records = ToDisplayRecords(raws, s.now())
	}

	result := model.RefreshResult{
		ID:          uuid.New().String(),
		Trigger:     trigger,
		StartedAt:   started,
		RecordCount: len(records),
	}
	if err != nil {
		result.Error = err.Error()
	}

	result = s.commit(records, result)

	if err != nil {
		s.log.Warn().Err(err).
			Str("trigger", string(trigger)).
			Uint64("generation", result.Generation).
			Msg("fetch failed, cleared notification list")
	} else {
		s.log.Debug().
			Str("trigger", string(trigger)).
			Int("records", result.RecordCount).
			Uint64("generation", result.Generation).
			Dur("took", result.Duration()).
			Msg("notification list refreshed")
	}

	if s.observer != nil {
		if obsErr := s.observer.RecordRefresh(context.WithoutCancel(ctx), result); obsErr != nil {
			s.log.Error().Err(obsErr).Msg("recording refresh result")
		}
	}

	return err
}

// commit swaps in records and wakes the UI. It stamps the generation
// and finish time under the lock so they follow completion order.
func (s *Synchronizer) commit(records []model.DisplayRecord, result model.RefreshResult) model.RefreshResult {
	s.mu.Lock()
	s.generation++
	result.Generation = s.generation
	result.FinishedAt = s.now()
	s.records = records
	s.last = result
	s.mu.Unlock()

	select {
	case s.updated <- struct{}{}:
	default:
	}

	return result
}

// Snapshot returns a copy of the current list.
func (s *Synchronizer) Snapshot() []model.DisplayRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.DisplayRecord, len(s.records))
	copy(out, s.records)
	return out
}

// HasData reports whether the current list is non-empty. The UI shows
// a loading state until it is.
func (s *Synchronizer) HasData() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records) > 0
}

// Generation is the number of commits so far.
func (s *Synchronizer) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// LastResult returns the most recently committed refresh outcome.
func (s *Synchronizer) LastResult() model.RefreshResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// message builds a ListUpdatedMsg from the current state.
func (s *Synchronizer) message() ListUpdatedMsg {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]model.DisplayRecord, len(s.records))
	copy(records, s.records)
	return ListUpdatedMsg{
		Records:    records,
		Generation: s.generation,
		Result:     s.last,
	}
}

// WaitForUpdate returns a tea.Cmd that blocks until the next commit and
// then delivers the current list. Call it again after handling each
// ListUpdatedMsg to keep listening.
func (s *Synchronizer) WaitForUpdate() tea.Cmd {
	return func() tea.Msg {
		<-s.updated
		return s.message()
	}
}
