// Package release fuses the gate decision, canary session and human signoff
// into the final release artifact, and re-verifies existing artifacts. The
// finalizer is the sole writer of release artifacts; verification never
// writes.
package release

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"relgate/internal/canary"
	"relgate/internal/gate"
	"relgate/internal/logging"
	"relgate/internal/signoff"
	"relgate/internal/store"
)

// Verdict is the final release decision.
type Verdict string

const (
	VerdictReleased Verdict = "released"
	VerdictBlocked  Verdict = "blocked"
)

// Artifact is the persisted record of a release decision and its supporting
// evidence. Immutable once written.
type Artifact struct {
	ReleaseID       string    `json:"release_id"`
	IntentID        string    `json:"intent_id"`
	Version         string    `json:"version"`
	GateRunID       string    `json:"gate_run_id"`
	CanaryRunID     string    `json:"canary_run_id"`
	CanarySessionID string    `json:"canary_session_id"`
	SignoffSeq      int64     `json:"signoff_seq"`
	SignoffReviewer string    `json:"signoff_reviewer"`
	FinalVerdict    Verdict   `json:"final_verdict"`
	CreatedAt       time.Time `json:"created_at"`
}

// IncompleteReleaseError reports why finalization cannot proceed: every
// missing, failing or rejected input is listed.
type IncompleteReleaseError struct {
	IntentID string
	Version  string
	Reasons  []string
}

func (e *IncompleteReleaseError) Error() string {
	return fmt.Sprintf("release %s@%s incomplete: %s",
		e.IntentID, e.Version, strings.Join(e.Reasons, "; "))
}

// Finalizer gathers the release inputs and writes the release artifact.
type Finalizer struct {
	st store.Store
}

// NewFinalizer returns a finalizer over the given store.
func NewFinalizer(st store.Store) *Finalizer {
	return &Finalizer{st: st}
}

// Finalize fuses the latest gate decision, latest completed canary session
// and active signoff for the candidate. Idempotent: re-finalizing with
// unchanged inputs returns the existing artifact (second return true)
// instead of writing a new one.
func (f *Finalizer) Finalize(intentID, version string) (*Artifact, bool, error) {
	var reasons []string

	gateArt, decision, err := f.loadGate(intentID, version)
	if err != nil {
		return nil, false, err
	}
	switch {
	case decision == nil:
		reasons = append(reasons, "no gate decision recorded")
	case decision.Verdict != gate.VerdictPass:
		reasons = append(reasons, fmt.Sprintf("gate decision %s verdict is %q", decision.RunID, decision.Verdict))
	}

	canaryArt, session, err := f.loadCanary(intentID, version)
	if err != nil {
		return nil, false, err
	}
	switch {
	case session == nil:
		reasons = append(reasons, "no canary run recorded")
	case session.State != canary.StateCompleted:
		reasons = append(reasons, fmt.Sprintf("canary session %s is %q, not eligible", session.SessionID, session.State))
	}

	sign, err := f.st.ActiveSignoff(intentID, version)
	if err != nil {
		return nil, false, fmt.Errorf("load signoff: %w", err)
	}
	switch {
	case sign == nil:
		reasons = append(reasons, "no signoff recorded")
	case sign.Decision != signoff.DecisionApproved:
		reasons = append(reasons, fmt.Sprintf("active signoff by %s is %q", sign.Reviewer, sign.Decision))
	case gateArt != nil && sign.CreatedAt <= gateArt.CreatedAt:
		reasons = append(reasons, "active signoff predates the gate decision")
	}

	if len(reasons) > 0 {
		return nil, false, &IncompleteReleaseError{IntentID: intentID, Version: version, Reasons: reasons}
	}

	// Idempotency: unchanged inputs yield the existing artifact.
	if existing, err := f.latestRelease(intentID, version); err != nil {
		return nil, false, err
	} else if existing != nil &&
		existing.GateRunID == gateArt.RunID &&
		existing.CanaryRunID == canaryArt.RunID &&
		existing.SignoffSeq == sign.Seq {
		return existing, true, nil
	}

	art := &Artifact{
		ReleaseID:       uuid.NewString(),
		IntentID:        intentID,
		Version:         version,
		GateRunID:       gateArt.RunID,
		CanaryRunID:     canaryArt.RunID,
		CanarySessionID: session.SessionID,
		SignoffSeq:      sign.Seq,
		SignoffReviewer: sign.Reviewer,
		FinalVerdict:    VerdictReleased,
		CreatedAt:       time.Now().UTC(),
	}
	payload, err := json.Marshal(art)
	if err != nil {
		return nil, false, fmt.Errorf("encode release: %w", err)
	}
	if _, err := f.st.SaveArtifact(&store.Artifact{
		Intent: intentID, Version: version, Stage: store.StageRelease,
		RunID: art.ReleaseID, Payload: payload,
	}); err != nil {
		return nil, false, fmt.Errorf("persist release: %w", err)
	}
	logging.New("release").Info("finalized",
		"intent", intentID, "version", version, "release_id", art.ReleaseID)
	return art, false, nil
}

func (f *Finalizer) loadGate(intentID, version string) (*store.Artifact, *gate.Decision, error) {
	art, err := f.st.LatestArtifact(intentID, version, store.StageGate)
	if err != nil {
		return nil, nil, fmt.Errorf("load gate decision: %w", err)
	}
	if art == nil {
		return nil, nil, nil
	}
	var d gate.Decision
	if err := json.Unmarshal(art.Payload, &d); err != nil {
		return nil, nil, fmt.Errorf("decode gate decision %s: %w", art.RunID, err)
	}
	return art, &d, nil
}

func (f *Finalizer) loadCanary(intentID, version string) (*store.Artifact, *canary.Session, error) {
	art, err := f.st.LatestArtifact(intentID, version, store.StageCanaryRun)
	if err != nil {
		return nil, nil, fmt.Errorf("load canary run: %w", err)
	}
	if art == nil {
		return nil, nil, nil
	}
	var s canary.Session
	if err := json.Unmarshal(art.Payload, &s); err != nil {
		return nil, nil, fmt.Errorf("decode canary session %s: %w", art.RunID, err)
	}
	return art, &s, nil
}

func (f *Finalizer) latestRelease(intentID, version string) (*Artifact, error) {
	art, err := f.st.LatestArtifact(intentID, version, store.StageRelease)
	if err != nil {
		return nil, fmt.Errorf("load release: %w", err)
	}
	if art == nil {
		return nil, nil
	}
	var a Artifact
	if err := json.Unmarshal(art.Payload, &a); err != nil {
		return nil, fmt.Errorf("decode release %s: %w", art.RunID, err)
	}
	return &a, nil
}
