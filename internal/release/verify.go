package release

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"relgate/internal/canary"
	"relgate/internal/gate"
	"relgate/internal/signoff"
	"relgate/internal/store"
)

// SelectorLatest resolves to the release artifact with the greatest creation
// timestamp (per intent when scoped, global otherwise).
const SelectorLatest = "latest"

// ErrNotFound is returned when a verify selector resolves to no release
// artifact.
var ErrNotFound = errors.New("release not found")

// IntegrityError lists every broken invariant a verification found.
type IntegrityError struct {
	ReleaseID string
	Problems  []string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("release %s integrity: %s", e.ReleaseID, strings.Join(e.Problems, "; "))
}

// Checker re-validates existing release artifacts. Read-only: it never
// mutates the store.
type Checker struct {
	st store.Store
}

// NewChecker returns a checker over the given store.
func NewChecker(st store.Store) *Checker {
	return &Checker{st: st}
}

// Verify resolves the selector (a release id or SelectorLatest) and
// re-checks the artifact's structural integrity: every referenced id must
// resolve, the gate verdict must be pass, the canary session completed and
// the signoff approved. All broken invariants are reported at once. intentID
// and version scope the "latest" resolution; empty means global.
func (c *Checker) Verify(selector, intentID, version string) (*Artifact, error) {
	row, err := c.resolve(selector, intentID, version)
	if err != nil {
		return nil, err
	}

	var art Artifact
	if err := json.Unmarshal(row.Payload, &art); err != nil {
		return nil, fmt.Errorf("decode release %s: %w", row.RunID, err)
	}

	var problems []string
	addProblem := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if art.FinalVerdict != VerdictReleased {
		addProblem("final verdict is %q, want %q", art.FinalVerdict, VerdictReleased)
	}

	// Gate reference.
	gateRow, err := c.st.ArtifactByRunID(art.GateRunID)
	if err != nil {
		return nil, fmt.Errorf("resolve gate reference: %w", err)
	}
	if gateRow == nil {
		addProblem("gate decision %s does not resolve", art.GateRunID)
	} else {
		var d gate.Decision
		if err := json.Unmarshal(gateRow.Payload, &d); err != nil {
			addProblem("gate decision %s is undecodable: %v", art.GateRunID, err)
		} else {
			if d.Verdict != gate.VerdictPass {
				addProblem("gate decision %s verdict is %q", d.RunID, d.Verdict)
			}
			if d.IntentID != art.IntentID || d.Version != art.Version {
				addProblem("gate decision %s belongs to %s@%s", d.RunID, d.IntentID, d.Version)
			}
		}
	}

	// Canary reference.
	canaryRow, err := c.st.ArtifactByRunID(art.CanaryRunID)
	if err != nil {
		return nil, fmt.Errorf("resolve canary reference: %w", err)
	}
	if canaryRow == nil {
		addProblem("canary run %s does not resolve", art.CanaryRunID)
	} else {
		var s canary.Session
		if err := json.Unmarshal(canaryRow.Payload, &s); err != nil {
			addProblem("canary session %s is undecodable: %v", art.CanaryRunID, err)
		} else {
			if s.State != canary.StateCompleted {
				addProblem("canary session %s state is %q", s.SessionID, s.State)
			}
			if s.IntentID != art.IntentID || s.Version != art.Version {
				addProblem("canary session %s belongs to %s@%s", s.SessionID, s.IntentID, s.Version)
			}
		}
	}

	// Signoff reference.
	records, err := c.st.ListSignoffs(art.IntentID, art.Version)
	if err != nil {
		return nil, fmt.Errorf("resolve signoff reference: %w", err)
	}
	var signRec *store.SignoffRecord
	for _, r := range records {
		if r.Seq == art.SignoffSeq {
			signRec = r
			break
		}
	}
	if signRec == nil {
		addProblem("signoff #%d does not resolve", art.SignoffSeq)
	} else if signRec.Decision != signoff.DecisionApproved {
		addProblem("signoff #%d by %s is %q", signRec.Seq, signRec.Reviewer, signRec.Decision)
	}

	if len(problems) > 0 {
		return &art, &IntegrityError{ReleaseID: art.ReleaseID, Problems: problems}
	}
	return &art, nil
}

func (c *Checker) resolve(selector, intentID, version string) (*store.Artifact, error) {
	if selector == "" || selector == SelectorLatest {
		var row *store.Artifact
		var err error
		if intentID != "" && version != "" {
			row, err = c.st.LatestArtifact(intentID, version, store.StageRelease)
		} else {
			row, err = c.st.LatestArtifactAny(store.StageRelease)
		}
		if err != nil {
			return nil, fmt.Errorf("resolve latest release: %w", err)
		}
		if row == nil {
			return nil, fmt.Errorf("resolve latest: %w", ErrNotFound)
		}
		return row, nil
	}

	row, err := c.st.ArtifactByRunID(selector)
	if err != nil {
		return nil, fmt.Errorf("resolve release %s: %w", selector, err)
	}
	if row == nil || row.Stage != store.StageRelease {
		return nil, fmt.Errorf("release %s: %w", selector, ErrNotFound)
	}
	return row, nil
}
