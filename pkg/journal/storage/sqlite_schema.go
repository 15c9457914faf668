package storage

// SchemaVersion is the current sessions schema version.
const SchemaVersion = 1

// sqliteSchema creates the sessions table. Times are Unix nanoseconds so
// both drivers sort and compare them the same way.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    request_id TEXT NOT NULL,
    remote_addr TEXT NOT NULL,
    query TEXT NOT NULL DEFAULT '',
    started_at INTEGER NOT NULL,
    ended_at INTEGER NOT NULL,
    upstream_status INTEGER NOT NULL DEFAULT 0,
    bytes_relayed INTEGER NOT NULL DEFAULT 0,
    chunks INTEGER NOT NULL DEFAULT 0,
    outcome TEXT NOT NULL,
    error TEXT
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);
CREATE INDEX IF NOT EXISTS idx_sessions_outcome ON sessions(outcome);
CREATE INDEX IF NOT EXISTS idx_sessions_request_id ON sessions(request_id);
`

const sqliteInsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, strftime('%s', 'now'))
ON CONFLICT(version) DO NOTHING;
`

const sqliteGetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`
