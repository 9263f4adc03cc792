package release

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"relgate/internal/canary"
	"relgate/internal/gate"
	"relgate/internal/store"
)

func finalized(t *testing.T) (store.Store, *Artifact) {
	t.Helper()
	st := readyStore(t)
	art, _, err := NewFinalizer(st).Finalize("triage", "1.0")
	if err != nil {
		t.Fatal(err)
	}
	return st, art
}

func TestVerify_CleanRelease(t *testing.T) {
	st, want := finalized(t)
	c := NewChecker(st)

	byID, err := c.Verify(want.ReleaseID, "", "")
	if err != nil {
		t.Fatalf("verify by id: %v", err)
	}
	if byID.ReleaseID != want.ReleaseID {
		t.Errorf("resolved %s, want %s", byID.ReleaseID, want.ReleaseID)
	}

	latest, err := c.Verify(SelectorLatest, "", "")
	if err != nil {
		t.Fatalf("verify latest: %v", err)
	}
	if latest.ReleaseID != want.ReleaseID {
		t.Errorf("latest resolved %s, want %s", latest.ReleaseID, want.ReleaseID)
	}
}

func TestVerify_LatestScopedToIntent(t *testing.T) {
	st, want := finalized(t)
	// A newer release for a different intent must not shadow the scoped one.
	other := &Artifact{
		ReleaseID: "other-rel", IntentID: "other", Version: "9",
		GateRunID: "g", CanaryRunID: "c", FinalVerdict: VerdictReleased,
	}
	payload, _ := json.Marshal(other)
	if _, err := st.SaveArtifact(&store.Artifact{
		Intent: "other", Version: "9", Stage: store.StageRelease,
		RunID: "other-rel", Payload: payload,
	}); err != nil {
		t.Fatal(err)
	}

	got, err := NewChecker(st).Verify(SelectorLatest, "triage", "1.0")
	if err != nil {
		t.Fatalf("scoped verify: %v", err)
	}
	if got.ReleaseID != want.ReleaseID {
		t.Errorf("scoped latest = %s, want %s", got.ReleaseID, want.ReleaseID)
	}
}

func TestVerify_AbortedCanaryNamesCanaryStage(t *testing.T) {
	_, art := finalized(t)
	// Rewrite history: replace the canary session the release references
	// with an aborted one under the same run id in a fresh store.
	st2 := store.NewMemStore()
	saveGate(t, st2, art.GateRunID, gate.VerdictPass)
	saveCanary(t, st2, art.CanaryRunID, canary.StateAborted)
	approve(t, st2)
	payload, _ := json.Marshal(art)
	if _, err := st2.SaveArtifact(&store.Artifact{
		Intent: "triage", Version: "1.0", Stage: store.StageRelease,
		RunID: art.ReleaseID, Payload: payload,
	}); err != nil {
		t.Fatal(err)
	}

	_, err := NewChecker(st2).Verify(art.ReleaseID, "", "")
	var ie *IntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("want IntegrityError, got %v", err)
	}
	found := false
	for _, p := range ie.Problems {
		if strings.Contains(p, "canary") && strings.Contains(p, `"aborted"`) {
			found = true
		}
	}
	if !found {
		t.Errorf("problems must name the canary stage: %v", ie.Problems)
	}
}

func TestVerify_DanglingReferences(t *testing.T) {
	st := store.NewMemStore()
	art := &Artifact{
		ReleaseID: "rel-1", IntentID: "triage", Version: "1.0",
		GateRunID: "ghost-gate", CanaryRunID: "ghost-canary",
		SignoffSeq: 42, FinalVerdict: VerdictReleased,
	}
	payload, _ := json.Marshal(art)
	if _, err := st.SaveArtifact(&store.Artifact{
		Intent: "triage", Version: "1.0", Stage: store.StageRelease,
		RunID: "rel-1", Payload: payload,
	}); err != nil {
		t.Fatal(err)
	}

	_, err := NewChecker(st).Verify("rel-1", "", "")
	var ie *IntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("want IntegrityError, got %v", err)
	}
	if len(ie.Problems) != 3 {
		t.Errorf("problems = %v, want dangling gate+canary+signoff", ie.Problems)
	}
}

func TestVerify_UnknownSelector(t *testing.T) {
	st, _ := finalized(t)
	_, err := NewChecker(st).Verify("no-such-release", "", "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestVerify_NoReleasesYet(t *testing.T) {
	_, err := NewChecker(store.NewMemStore()).Verify(SelectorLatest, "", "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
