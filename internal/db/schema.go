package db

// SchemaVersion is the current database schema version
const SchemaVersion = 3

const schema = `
-- Local mirror of server entities, keyed by current best-known identity.
-- The key is rewritten (old row deleted, new row inserted in one tx) when a
-- CREATE is confirmed and the temporary identity is reconciled.
CREATE TABLE IF NOT EXISTS records (
    kind TEXT NOT NULL,
    id TEXT NOT NULL,
    data JSON NOT NULL,
    pending INTEGER NOT NULL DEFAULT 0,
    last_synced_at DATETIME,
    PRIMARY KEY (kind, id)
);

-- Durable ordered log of pending mutations. seq_id defines total replay
-- order; rows are never reordered, only skipped (done) or retried.
CREATE TABLE IF NOT EXISTS action_queue (
    seq_id INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_kind TEXT NOT NULL,
    op TEXT NOT NULL,
    target_id TEXT NOT NULL,
    payload JSON NOT NULL,
    enqueued_at DATETIME NOT NULL,
    attempt_count INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'pending',
    last_error TEXT NOT NULL DEFAULT '',
    next_attempt_at DATETIME
);

-- Temporary identity -> server identity, append-only.
CREATE TABLE IF NOT EXISTS id_map (
    temp_id TEXT PRIMARY KEY,
    server_id TEXT NOT NULL,
    entity_kind TEXT NOT NULL,
    recorded_at DATETIME NOT NULL
);

-- Schema info table for version tracking
CREATE TABLE IF NOT EXISTS schema_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_records_kind ON records(kind);
CREATE INDEX IF NOT EXISTS idx_records_pending ON records(kind, pending);
CREATE INDEX IF NOT EXISTS idx_queue_status ON action_queue(status);
CREATE INDEX IF NOT EXISTS idx_queue_target ON action_queue(target_id);
CREATE INDEX IF NOT EXISTS idx_id_map_server ON id_map(server_id);
`

// Migration defines a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations is the list of all database migrations in order
var Migrations = []Migration{
	// Version 1 is the initial schema - no migration needed
	{
		Version:     2,
		Description: "Add next_attempt_at for retry backoff scheduling",
		SQL:         `ALTER TABLE action_queue ADD COLUMN next_attempt_at DATETIME;`,
	},
	{
		Version:     3,
		Description: "Add target index for cascade failure lookups",
		SQL:         `CREATE INDEX IF NOT EXISTS idx_queue_target ON action_queue(target_id);`,
	},
}
