package store

import (
	"context"

	"github.com/nhle/notification-monitor/internal/model"
)

// Store records sync history: one row per completed refresh and one per
// push connection transition. It never holds the notification list.
type Store interface {
	// === Refresh runs ===

	RecordRefresh(ctx context.Context, result model.RefreshResult) error
	RecentRefreshes(ctx context.Context, limit int) ([]model.RefreshResult, error)
	RefreshStats(ctx context.Context) (RefreshStats, error)

	// === Connection events ===

	RecordConnection(ctx context.Context, ev model.ConnectionEvent) error
	RecentConnections(ctx context.Context, limit int) ([]model.ConnectionEvent, error)

	// === Maintenance ===

	Prune(ctx context.Context, keep int) error
	Close() error
}

// RefreshStats summarises all recorded refresh runs.
type RefreshStats struct {
	Total   int `db:"total"`
	Failed  int `db:"failed"`
	Startup int `db:"startup"`
	Push    int `db:"push"`
	Manual  int `db:"manual"`
}
