package store

// schemaVersionV1 is the current schema version.
const schemaVersionV1 = 1

// schemaV1 holds the pipeline persistence model: append-only artifacts,
// the signoff ledger, and per-stage pipeline state records.
var schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

CREATE TABLE IF NOT EXISTS artifacts (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	intent     TEXT NOT NULL,
	version    TEXT NOT NULL,
	stage      TEXT NOT NULL,
	run_id     TEXT NOT NULL UNIQUE,
	created_at INTEGER NOT NULL,
	stale      INTEGER NOT NULL DEFAULT 0,
	payload    BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_artifacts_key
	ON artifacts(intent, version, stage, created_at);

CREATE TABLE IF NOT EXISTS signoffs (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	intent     TEXT NOT NULL,
	version    TEXT NOT NULL,
	reviewer   TEXT NOT NULL,
	decision   TEXT NOT NULL,
	notes      TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_signoffs_key ON signoffs(intent, version, seq);

CREATE TABLE IF NOT EXISTS stages (
	intent     TEXT NOT NULL,
	version    TEXT NOT NULL,
	stage      TEXT NOT NULL,
	status     TEXT NOT NULL,
	run_id     TEXT,
	updated_at INTEGER NOT NULL,
	stale      INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (intent, version, stage)
);
`
