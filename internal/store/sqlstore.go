package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db     *sql.DB
	writes keyedMutex
	clk    clock

	// artifactDir, when non-empty, mirrors every saved artifact to
	// <dir>/<intent>/<version>/<stage>/<run_id>.json and release artifacts
	// additionally to <dir>/release/release.json.
	artifactDir string
}

// Option configures a SqlStore at Open time.
type Option func(*SqlStore)

// WithArtifactDir enables on-disk mirroring of artifact payloads.
func WithArtifactDir(dir string) Option {
	return func(s *SqlStore) { s.artifactDir = dir }
}

// Open opens or creates a SQLite DB at path and runs migrations.
// Creates the parent directory (e.g. .relgate) if it does not exist.
func Open(path string, opts ...Option) (*SqlStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SqlStore{db: db}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqlStore) migrate() error {
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableCount == 0 {
		if _, err := s.db.Exec(schemaV1); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", schemaVersionV1); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
		return nil
	}

	var v int
	err = s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v != schemaVersionV1 {
		return fmt.Errorf("unknown schema version %d", v)
	}
	return nil
}

// Close closes the underlying database.
func (s *SqlStore) Close() error { return s.db.Close() }

// --- Artifacts ---

// SaveArtifact commits one stage output. The row is committed before the
// mirror file is written, so a torn mirror write never leaves a dangling
// index entry.
func (s *SqlStore) SaveArtifact(a *Artifact) (int64, error) {
	if a == nil {
		return 0, errors.New("artifact is nil")
	}
	if a.Intent == "" || a.Version == "" || a.Stage == "" || a.RunID == "" {
		return 0, errors.New("artifact requires intent, version, stage and run id")
	}
	unlock := s.writes.lock(a.Intent + "@" + a.Version)
	defer unlock()

	a.CreatedAt = s.clk.now()
	res, err := s.db.Exec(
		"INSERT INTO artifacts(intent, version, stage, run_id, created_at, stale, payload) VALUES(?,?,?,?,?,0,?)",
		a.Intent, a.Version, a.Stage, a.RunID, a.CreatedAt, a.Payload,
	)
	if err != nil {
		return 0, fmt.Errorf("insert artifact: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("artifact id: %w", err)
	}
	a.ID = id

	if s.artifactDir != "" {
		if err := s.mirror(a); err != nil {
			return 0, err
		}
	}
	return id, nil
}

func (s *SqlStore) mirror(a *Artifact) error {
	dir := filepath.Join(s.artifactDir, a.Intent, a.Version, a.Stage)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	path := filepath.Join(dir, a.RunID+".json")
	if err := os.WriteFile(path, a.Payload, 0644); err != nil {
		return fmt.Errorf("mirror artifact: %w", err)
	}
	if a.Stage == "release" {
		relDir := filepath.Join(s.artifactDir, "release")
		if err := os.MkdirAll(relDir, 0755); err != nil {
			return fmt.Errorf("create release dir: %w", err)
		}
		if err := os.WriteFile(filepath.Join(relDir, "release.json"), a.Payload, 0644); err != nil {
			return fmt.Errorf("write release file: %w", err)
		}
	}
	return nil
}

func scanArtifact(row interface{ Scan(...any) error }) (*Artifact, error) {
	var a Artifact
	var stale int
	err := row.Scan(&a.ID, &a.Intent, &a.Version, &a.Stage, &a.RunID, &a.CreatedAt, &stale, &a.Payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan artifact: %w", err)
	}
	a.Stale = stale != 0
	return &a, nil
}

const artifactCols = "id, intent, version, stage, run_id, created_at, stale, payload"

// GetArtifact returns the artifact with the given row id, or nil.
func (s *SqlStore) GetArtifact(id int64) (*Artifact, error) {
	return scanArtifact(s.db.QueryRow("SELECT "+artifactCols+" FROM artifacts WHERE id=?", id))
}

// ArtifactByRunID returns the artifact with the given run id, or nil.
func (s *SqlStore) ArtifactByRunID(runID string) (*Artifact, error) {
	return scanArtifact(s.db.QueryRow("SELECT "+artifactCols+" FROM artifacts WHERE run_id=?", runID))
}

// LatestArtifact returns the newest non-stale artifact for the key, or nil.
func (s *SqlStore) LatestArtifact(intent, version, stage string) (*Artifact, error) {
	return scanArtifact(s.db.QueryRow(
		"SELECT "+artifactCols+" FROM artifacts WHERE intent=? AND version=? AND stage=? AND stale=0 ORDER BY created_at DESC LIMIT 1",
		intent, version, stage,
	))
}

// LatestArtifactAny returns the newest non-stale artifact for a stage across
// all intents, or nil.
func (s *SqlStore) LatestArtifactAny(stage string) (*Artifact, error) {
	return scanArtifact(s.db.QueryRow(
		"SELECT "+artifactCols+" FROM artifacts WHERE stage=? AND stale=0 ORDER BY created_at DESC LIMIT 1",
		stage,
	))
}

// ListArtifacts returns all artifacts for an intent+version, oldest first.
func (s *SqlStore) ListArtifacts(intent, version string) ([]*Artifact, error) {
	rows, err := s.db.Query(
		"SELECT "+artifactCols+" FROM artifacts WHERE intent=? AND version=? ORDER BY created_at ASC",
		intent, version,
	)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()
	var out []*Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkStale flags all artifacts and stage records for the given stages.
func (s *SqlStore) MarkStale(intent, version string, stages []string) error {
	unlock := s.writes.lock(intent + "@" + version)
	defer unlock()
	for _, stage := range stages {
		if _, err := s.db.Exec(
			"UPDATE artifacts SET stale=1 WHERE intent=? AND version=? AND stage=?",
			intent, version, stage,
		); err != nil {
			return fmt.Errorf("mark artifacts stale (%s): %w", stage, err)
		}
		if _, err := s.db.Exec(
			"UPDATE stages SET stale=1 WHERE intent=? AND version=? AND stage=?",
			intent, version, stage,
		); err != nil {
			return fmt.Errorf("mark stage stale (%s): %w", stage, err)
		}
	}
	return nil
}

// --- Signoff ledger ---

// AppendSignoff appends one ledger record and returns its sequence number.
// Records are never updated or deleted.
func (s *SqlStore) AppendSignoff(r *SignoffRecord) (int64, error) {
	if r == nil {
		return 0, errors.New("signoff is nil")
	}
	unlock := s.writes.lock(r.Intent + "@" + r.Version)
	defer unlock()

	r.CreatedAt = s.clk.now()
	res, err := s.db.Exec(
		"INSERT INTO signoffs(intent, version, reviewer, decision, notes, created_at) VALUES(?,?,?,?,?,?)",
		r.Intent, r.Version, r.Reviewer, r.Decision, r.Notes, r.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("append signoff: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("signoff seq: %w", err)
	}
	r.Seq = seq
	return seq, nil
}

func scanSignoff(row interface{ Scan(...any) error }) (*SignoffRecord, error) {
	var r SignoffRecord
	var notes sql.NullString
	err := row.Scan(&r.Seq, &r.Intent, &r.Version, &r.Reviewer, &r.Decision, &notes, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan signoff: %w", err)
	}
	r.Notes = notes.String
	return &r, nil
}

const signoffCols = "seq, intent, version, reviewer, decision, notes, created_at"

// ActiveSignoff returns the most recent (highest sequence) record for the
// candidate, or nil. History behind it is preserved but not active.
func (s *SqlStore) ActiveSignoff(intent, version string) (*SignoffRecord, error) {
	return scanSignoff(s.db.QueryRow(
		"SELECT "+signoffCols+" FROM signoffs WHERE intent=? AND version=? ORDER BY seq DESC LIMIT 1",
		intent, version,
	))
}

// ListSignoffs returns the full ledger for a candidate, oldest first.
func (s *SqlStore) ListSignoffs(intent, version string) ([]*SignoffRecord, error) {
	rows, err := s.db.Query(
		"SELECT "+signoffCols+" FROM signoffs WHERE intent=? AND version=? ORDER BY seq ASC",
		intent, version,
	)
	if err != nil {
		return nil, fmt.Errorf("list signoffs: %w", err)
	}
	defer rows.Close()
	var out []*SignoffRecord
	for rows.Next() {
		r, err := scanSignoff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- Pipeline state records ---

// SetStage upserts the state record for one stage, clearing its stale flag.
func (s *SqlStore) SetStage(st *StageState) error {
	if st == nil {
		return errors.New("stage state is nil")
	}
	unlock := s.writes.lock(st.Intent + "@" + st.Version)
	defer unlock()

	st.UpdatedAt = s.clk.now()
	_, err := s.db.Exec(
		`INSERT INTO stages(intent, version, stage, status, run_id, updated_at, stale)
		 VALUES(?,?,?,?,?,?,0)
		 ON CONFLICT(intent, version, stage)
		 DO UPDATE SET status=excluded.status, run_id=excluded.run_id, updated_at=excluded.updated_at, stale=0`,
		st.Intent, st.Version, st.Stage, st.Status, st.RunID, st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("set stage: %w", err)
	}
	return nil
}

func scanStage(row interface{ Scan(...any) error }) (*StageState, error) {
	var st StageState
	var runID sql.NullString
	var stale int
	err := row.Scan(&st.Intent, &st.Version, &st.Stage, &st.Status, &runID, &st.UpdatedAt, &stale)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan stage: %w", err)
	}
	st.RunID = runID.String
	st.Stale = stale != 0
	return &st, nil
}

const stageCols = "intent, version, stage, status, run_id, updated_at, stale"

// GetStage returns the state record for one stage, or nil.
func (s *SqlStore) GetStage(intent, version, stage string) (*StageState, error) {
	return scanStage(s.db.QueryRow(
		"SELECT "+stageCols+" FROM stages WHERE intent=? AND version=? AND stage=?",
		intent, version, stage,
	))
}

// ListStages returns all stage records for a candidate.
func (s *SqlStore) ListStages(intent, version string) ([]*StageState, error) {
	rows, err := s.db.Query(
		"SELECT "+stageCols+" FROM stages WHERE intent=? AND version=? ORDER BY updated_at ASC",
		intent, version,
	)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()
	var out []*StageState
	for rows.Next() {
		st, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
