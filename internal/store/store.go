// Package store is the artifact store for the release gate pipeline. Every
// stage output (reports, gate decisions, canary sessions, releases), the
// signoff ledger, and the per-intent pipeline state records are persisted
// here. Artifacts are append-only; superseded artifacts are flagged stale,
// never deleted. Domain and CLI use only the Store interface; the
// implementation is SQLite or in-memory.
package store

import (
	"sync"
	"time"
)

// DefaultDBPath is the default relative path for the SQLite DB.
// Open() creates the parent dir (e.g. .relgate).
const DefaultDBPath = ".relgate/relgate.db"

// DefaultArtifactDir is where artifact JSON files are mirrored on disk.
// The release file at <dir>/release/release.json is the externally
// observable signal of a finalized release.
const DefaultArtifactDir = "artifacts"

// Stage keys artifacts are indexed under. One key per producing stage.
const (
	StageSimulate      = "simulate"
	StageTest          = "test"
	StageGate          = "gate"
	StageCanaryPrepare = "canary-prepare"
	StageCanaryRun     = "canary-run"
	StageRelease       = "release"
)

// Artifact is one persisted stage output. Payload holds the stage's own JSON
// document; the store only indexes it.
type Artifact struct {
	ID        int64
	Intent    string
	Version   string
	Stage     string // stage key, e.g. "test", "gate", "release"
	RunID     string // uuid assigned by the producing stage
	CreatedAt int64  // unix nanoseconds, strictly increasing per store
	Stale     bool   // true once a prior stage re-ran
	Payload   []byte
}

// SignoffRecord is one append-only entry in the human signoff ledger.
// Seq is store-assigned and strictly monotonic per store, so no two records
// for the same candidate can tie.
type SignoffRecord struct {
	Seq       int64
	Intent    string
	Version   string
	Reviewer  string
	Decision  string // "approved" or "rejected"
	Notes     string
	CreatedAt int64 // unix nanoseconds
}

// StageState is the persisted pipeline state-machine record for one stage of
// one intent+version. Multiple orchestrator processes observe the pipeline
// through these rows rather than through ambient process state.
type StageState struct {
	Intent    string
	Version   string
	Stage     string
	Status    string // "completed", "failed", ...
	RunID     string // run id of the artifact that completed the stage
	UpdatedAt int64
	Stale     bool
}

// Store is the persistence facade for the pipeline.
type Store interface {
	// Artifacts (append-only; Latest* skip stale rows)
	SaveArtifact(a *Artifact) (int64, error)
	GetArtifact(id int64) (*Artifact, error)
	ArtifactByRunID(runID string) (*Artifact, error)
	LatestArtifact(intent, version, stage string) (*Artifact, error)
	// LatestArtifactAny resolves "latest" for a stage across all intents.
	LatestArtifactAny(stage string) (*Artifact, error)
	ListArtifacts(intent, version string) ([]*Artifact, error)
	// MarkStale flips the stale flag on all artifacts and stage records for
	// the given downstream stages. Nothing is deleted.
	MarkStale(intent, version string, stages []string) error

	// Signoff ledger
	AppendSignoff(r *SignoffRecord) (int64, error)
	ActiveSignoff(intent, version string) (*SignoffRecord, error)
	ListSignoffs(intent, version string) ([]*SignoffRecord, error)

	// Pipeline state records
	SetStage(s *StageState) error
	GetStage(intent, version, stage string) (*StageState, error)
	ListStages(intent, version string) ([]*StageState, error)

	Close() error
}

// keyedMutex serializes writes per intent+version key. Reads stay lock-free
// against committed rows; only writers for the same candidate queue up.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// clock hands out strictly increasing unix-nanosecond timestamps, so latest
// resolution and signoff ordering never tie even on coarse system clocks.
type clock struct {
	mu   sync.Mutex
	last int64
}

func (c *clock) now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := time.Now().UnixNano()
	if n <= c.last {
		n = c.last + 1
	}
	c.last = n
	return n
}
