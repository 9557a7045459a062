package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nhle/notification-monitor/internal/model"
)

// RecordRefresh inserts one refresh outcome. A missing ID is generated.
func (s *SQLiteStore) RecordRefresh(ctx context.Context, r model.RefreshResult) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_runs (
			id, trigger, started_at, finished_at, record_count, generation, error
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Trigger), r.StartedAt.UTC(), r.FinishedAt.UTC(),
		r.RecordCount, int64(r.Generation), r.Error,
	)
	if err != nil {
		return fmt.Errorf("recording refresh %s: %w", r.ID, err)
	}
	return nil
}

// RecentRefreshes returns up to limit refresh runs, newest first.
func (s *SQLiteStore) RecentRefreshes(ctx context.Context, limit int) ([]model.RefreshResult, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, trigger, started_at, finished_at, record_count, generation, error
		FROM refresh_runs
		ORDER BY finished_at DESC, generation DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying refresh runs: %w", err)
	}
	defer rows.Close()

	results := []model.RefreshResult{}
	for rows.Next() {
		var (
			r       model.RefreshResult
			trigger string
			gen     int64
		)
		if err := rows.Scan(
			&r.ID, &trigger, &r.StartedAt, &r.FinishedAt,
			&r.RecordCount, &gen, &r.Error,
		); err != nil {
			return nil, fmt.Errorf("scanning refresh row: %w", err)
		}
		r.Trigger = model.RefreshTrigger(trigger)
		r.Generation = uint64(gen)
		results = append(results, r)
	}

	return results, rows.Err()
}

// RefreshStats counts recorded refresh runs by outcome and trigger.
func (s *SQLiteStore) RefreshStats(ctx context.Context) (RefreshStats, error) {
	var st RefreshStats
	err := s.db.GetContext(ctx, &st, `
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN error != '' THEN 1 ELSE 0 END), 0) AS failed,
			COALESCE(SUM(CASE WHEN trigger = 'startup' THEN 1 ELSE 0 END), 0) AS startup,
			COALESCE(SUM(CASE WHEN trigger = 'push' THEN 1 ELSE 0 END), 0) AS push,
			COALESCE(SUM(CASE WHEN trigger = 'manual' THEN 1 ELSE 0 END), 0) AS manual
		FROM refresh_runs`)
	if err != nil {
		return RefreshStats{}, fmt.Errorf("counting refresh runs: %w", err)
	}
	return st, nil
}

// RecordConnection inserts one push connection transition.
func (s *SQLiteStore) RecordConnection(ctx context.Context, ev model.ConnectionEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO connection_events (id, state, error, at) VALUES (?, ?, ?, ?)",
		ev.ID, string(ev.State), ev.Error, ev.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording connection event: %w", err)
	}
	return nil
}

// RecentConnections returns up to limit connection events, newest first.
func (s *SQLiteStore) RecentConnections(ctx context.Context, limit int) ([]model.ConnectionEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	events := []model.ConnectionEvent{}
	err := s.db.SelectContext(ctx, &events, `
		SELECT id, state, error, at
		FROM connection_events
		ORDER BY at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying connection events: %w", err)
	}
	return events, nil
}

// Prune keeps the newest keep rows of each history table and deletes
// the rest. keep <= 0 is a no-op.
func (s *SQLiteStore) Prune(ctx context.Context, keep int) error {
	if keep <= 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM refresh_runs WHERE id NOT IN (
			SELECT id FROM refresh_runs ORDER BY finished_at DESC, generation DESC LIMIT ?
		)`, keep); err != nil {
		return fmt.Errorf("pruning refresh runs: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM connection_events WHERE id NOT IN (
			SELECT id FROM connection_events ORDER BY at DESC, rowid DESC LIMIT ?
		)`, keep); err != nil {
		return fmt.Errorf("pruning connection events: %w", err)
	}

	return tx.Commit()
}
