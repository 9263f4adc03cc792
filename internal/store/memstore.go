package store

import (
	"errors"
	"sync"
)

// MemStore is an in-memory Store for tests and dry experiments. Same
// semantics as SqlStore, no files.
type MemStore struct {
	mu        sync.Mutex
	clk       clock
	artifacts []*Artifact
	nextID    int64
	signoffs  []*SignoffRecord
	nextSeq   int64
	stages    map[string]*StageState // key: intent@version/stage
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{stages: make(map[string]*StageState)}
}

func stageKey(intent, version, stage string) string {
	return intent + "@" + version + "/" + stage
}

// Close is a no-op for MemStore.
func (s *MemStore) Close() error { return nil }

// --- Artifacts ---

func (s *MemStore) SaveArtifact(a *Artifact) (int64, error) {
	if a == nil {
		return 0, errors.New("artifact is nil")
	}
	if a.Intent == "" || a.Version == "" || a.Stage == "" || a.RunID == "" {
		return 0, errors.New("artifact requires intent, version, stage and run id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	cp := *a
	cp.ID = s.nextID
	cp.CreatedAt = s.clk.now()
	cp.Payload = append([]byte(nil), a.Payload...)
	s.artifacts = append(s.artifacts, &cp)
	a.ID = cp.ID
	a.CreatedAt = cp.CreatedAt
	return cp.ID, nil
}

func (s *MemStore) GetArtifact(id int64) (*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.artifacts {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemStore) ArtifactByRunID(runID string) (*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.artifacts {
		if a.RunID == runID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemStore) LatestArtifact(intent, version, stage string) (*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *Artifact
	for _, a := range s.artifacts {
		if a.Stale || a.Intent != intent || a.Version != version || a.Stage != stage {
			continue
		}
		if best == nil || a.CreatedAt > best.CreatedAt {
			best = a
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (s *MemStore) LatestArtifactAny(stage string) (*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *Artifact
	for _, a := range s.artifacts {
		if a.Stale || a.Stage != stage {
			continue
		}
		if best == nil || a.CreatedAt > best.CreatedAt {
			best = a
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (s *MemStore) ListArtifacts(intent, version string) ([]*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Artifact
	for _, a := range s.artifacts {
		if a.Intent == intent && a.Version == version {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemStore) MarkStale(intent, version string, stages []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	match := make(map[string]bool, len(stages))
	for _, st := range stages {
		match[st] = true
	}
	for _, a := range s.artifacts {
		if a.Intent == intent && a.Version == version && match[a.Stage] {
			a.Stale = true
		}
	}
	for _, st := range stages {
		if rec, ok := s.stages[stageKey(intent, version, st)]; ok {
			rec.Stale = true
		}
	}
	return nil
}

// --- Signoff ledger ---

func (s *MemStore) AppendSignoff(r *SignoffRecord) (int64, error) {
	if r == nil {
		return 0, errors.New("signoff is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	cp := *r
	cp.Seq = s.nextSeq
	cp.CreatedAt = s.clk.now()
	s.signoffs = append(s.signoffs, &cp)
	r.Seq = cp.Seq
	r.CreatedAt = cp.CreatedAt
	return cp.Seq, nil
}

func (s *MemStore) ActiveSignoff(intent, version string) (*SignoffRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.signoffs) - 1; i >= 0; i-- {
		r := s.signoffs[i]
		if r.Intent == intent && r.Version == version {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemStore) ListSignoffs(intent, version string) ([]*SignoffRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*SignoffRecord
	for _, r := range s.signoffs {
		if r.Intent == intent && r.Version == version {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- Pipeline state records ---

func (s *MemStore) SetStage(st *StageState) error {
	if st == nil {
		return errors.New("stage state is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *st
	cp.UpdatedAt = s.clk.now()
	cp.Stale = false
	s.stages[stageKey(st.Intent, st.Version, st.Stage)] = &cp
	st.UpdatedAt = cp.UpdatedAt
	return nil
}

func (s *MemStore) GetStage(intent, version, stage string) (*StageState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.stages[stageKey(intent, version, stage)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *MemStore) ListStages(intent, version string) ([]*StageState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*StageState
	for _, rec := range s.stages {
		if rec.Intent == intent && rec.Version == version {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}
