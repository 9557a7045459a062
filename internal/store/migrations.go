package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS refresh_runs (
	id           TEXT PRIMARY KEY,
	trigger      TEXT NOT NULL CHECK(trigger IN ('startup', 'push', 'manual')),
	started_at   DATETIME NOT NULL,
	finished_at  DATETIME NOT NULL,
	record_count INTEGER NOT NULL DEFAULT 0,
	generation   INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_refresh_runs_finished ON refresh_runs(finished_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS connection_events (
	id    TEXT PRIMARY KEY,
	state TEXT NOT NULL CHECK(state IN ('connected', 'disconnected')),
	error TEXT NOT NULL DEFAULT '',
	at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_connection_events_at ON connection_events(at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
