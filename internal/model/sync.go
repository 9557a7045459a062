package model

import "time"

// RefreshTrigger records what caused a refresh.
type RefreshTrigger string

const (
	TriggerStartup RefreshTrigger = "startup"
	TriggerPush    RefreshTrigger = "push"
	TriggerManual  RefreshTrigger = "manual"
)

// RefreshResult describes one completed refresh, successful or not.
type RefreshResult struct {
	ID          string         `json:"id" db:"id"`
	Trigger     RefreshTrigger `json:"trigger" db:"trigger"`
	StartedAt   time.Time      `json:"started_at" db:"started_at"`
	FinishedAt  time.Time      `json:"finished_at" db:"finished_at"`
	RecordCount int            `json:"record_count" db:"record_count"`
	Generation  uint64         `json:"generation" db:"generation"`

	// Error is empty on success.
	Error string `json:"error,omitempty" db:"error"`
}

// Failed reports whether the refresh committed the fail-safe empty list.
func (r RefreshResult) Failed() bool {
	return r.Error != ""
}

// Duration is the wall time between issue and commit.
func (r RefreshResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// ConnectionState is the push channel state as seen by the listener.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnected    ConnectionState = "connected"
)

// ConnectionEvent is a recorded push channel transition.
type ConnectionEvent struct {
	ID    string          `json:"id" db:"id"`
	State ConnectionState `json:"state" db:"state"`
	Error string          `json:"error,omitempty" db:"error"`
	At    time.Time       `json:"at" db:"at"`
}
