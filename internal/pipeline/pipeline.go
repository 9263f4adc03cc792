// Package pipeline drives the release pipeline for one intent+version
// through its stage order: validated, simulated, tested, gated,
// canary-prepared, canary-run, signed-off, finalized. Stage progress is
// persisted in the store, so any number of orchestrator processes observe
// the same pipeline. Re-running a completed stage marks every downstream
// stage stale; stale stages must re-run before finalization.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"relgate/internal/canary"
	"relgate/internal/gate"
	"relgate/internal/intent"
	"relgate/internal/logging"
	"relgate/internal/release"
	"relgate/internal/run"
	"relgate/internal/sample"
	"relgate/internal/store"
)

// Stage record statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// stageSignoff names the ledger prerequisite in out-of-order errors. It is
// not an artifact stage; the ledger keeps its own records.
const stageSignoff = "signoff"

// stageOrder is the canonical stage sequence. Every persisted stage marks
// the stages after it stale when it re-runs.
var stageOrder = []string{
	store.StageSimulate,
	store.StageTest,
	store.StageGate,
	store.StageCanaryPrepare,
	store.StageCanaryRun,
	store.StageRelease,
}

// OutOfOrderError reports a stage invoked before its prerequisite is
// satisfied. Missing names the prerequisite stage; Reason says what is
// wrong with it.
type OutOfOrderError struct {
	IntentID string
	Version  string
	Stage    string // the stage that was requested
	Missing  string // the prerequisite stage that blocks it
	Reason   string
}

func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("pipeline: %s blocked for %s@%s: stage %q %s",
		e.Stage, e.IntentID, e.Version, e.Missing, e.Reason)
}

// Orchestrator runs pipeline stages against a store. It owns artifact and
// stage-record persistence; the stage packages themselves stay store-free.
type Orchestrator struct {
	st  store.Store
	log *slog.Logger
}

// New returns an orchestrator over the given store.
func New(st store.Store) *Orchestrator {
	return &Orchestrator{st: st, log: logging.New("pipeline")}
}

// Simulate validates the intent and executes a dry-run cohort. n <= 0 runs
// the full scenario set. The report is persisted under the simulate stage
// and all downstream stages are marked stale.
func (o *Orchestrator) Simulate(ctx context.Context, spec *intent.Spec, r *run.Runner, n int, seed int64, agentID, modelID string) (*run.Report, error) {
	if err := intent.Validate(spec); err != nil {
		return nil, err
	}
	set := sample.Full(spec)
	if n > 0 {
		set = sample.Draw(spec, n, seed)
	}
	report, err := r.Run(ctx, set, agentID, modelID, run.KindSimulation)
	if err != nil {
		return nil, fmt.Errorf("simulate %s: %w", spec.Key(), err)
	}
	if err := o.persist(store.StageSimulate, report.RunID, spec, report); err != nil {
		return nil, err
	}
	return report, nil
}

// Test validates the intent and executes a live cohort; n <= 0 runs the
// full scenario set. Requires a completed, non-stale simulation.
func (o *Orchestrator) Test(ctx context.Context, spec *intent.Spec, r *run.Runner, n int, seed int64, agentID, modelID string) (*run.Report, error) {
	if err := intent.Validate(spec); err != nil {
		return nil, err
	}
	if err := o.requirePrior(spec, store.StageTest, store.StageSimulate); err != nil {
		return nil, err
	}
	set := sample.Full(spec)
	if n > 0 {
		set = sample.Draw(spec, n, seed)
	}
	report, err := r.Run(ctx, set, agentID, modelID, run.KindTest)
	if err != nil {
		return nil, fmt.Errorf("test %s: %w", spec.Key(), err)
	}
	if err := o.persist(store.StageTest, report.RunID, spec, report); err != nil {
		return nil, err
	}
	return report, nil
}

// EvaluateGate applies the intent's gate policy to the latest live test
// report. The decision is persisted whether it passes or fails; a failing
// decision simply blocks the canary stage.
func (o *Orchestrator) EvaluateGate(spec *intent.Spec) (*gate.Decision, error) {
	if err := o.requirePrior(spec, store.StageGate, store.StageTest); err != nil {
		return nil, err
	}
	art, err := o.st.LatestArtifact(spec.ID, spec.Version, store.StageTest)
	if err != nil {
		return nil, fmt.Errorf("load test report: %w", err)
	}
	if art == nil {
		return nil, o.outOfOrder(spec, store.StageGate, store.StageTest, "has no report artifact")
	}
	var report run.Report
	if err := json.Unmarshal(art.Payload, &report); err != nil {
		return nil, fmt.Errorf("decode test report %s: %w", art.RunID, err)
	}
	decision, err := gate.Evaluate(&report, spec.Gate)
	if err != nil {
		return nil, err
	}
	decision.RunID = uuid.NewString()
	decision.Timestamp = time.Now().UTC()
	if err := o.persist(store.StageGate, decision.RunID, spec, decision); err != nil {
		return nil, err
	}
	o.log.Info("gate decided",
		"intent", spec.ID, "version", spec.Version,
		"verdict", string(decision.Verdict), "pass_rate", decision.PassRate)
	return decision, nil
}

// CanaryPrepare samples a canary cohort for a candidate that passed the
// gate. At most one active session per candidate: a prepared session must
// be run (or superseded by a stage re-run) before another is prepared.
func (o *Orchestrator) CanaryPrepare(spec *intent.Spec, n int) (*canary.Session, error) {
	if err := o.requirePrior(spec, store.StageCanaryPrepare, store.StageGate); err != nil {
		return nil, err
	}
	decision, err := o.loadGate(spec)
	if err != nil {
		return nil, err
	}
	if decision.Verdict != gate.VerdictPass {
		return nil, o.outOfOrder(spec, store.StageCanaryPrepare, store.StageGate,
			fmt.Sprintf("verdict is %q, canary requires a passing gate", decision.Verdict))
	}
	if active, err := o.activeSession(spec); err != nil {
		return nil, err
	} else if active != nil {
		return nil, fmt.Errorf("pipeline: canary session %s for %s is still %s",
			active.SessionID, spec.Key(), active.State)
	}
	session := canary.NewSession(spec, n)
	if err := o.persist(store.StageCanaryPrepare, uuid.NewString(), spec, session); err != nil {
		return nil, err
	}
	return session, nil
}

// CanaryRun executes the prepared cohort. The session is persisted whether
// it completes or aborts; an aborted session keeps its partial outcomes and
// records the stage as failed, so finalization refuses it.
func (o *Orchestrator) CanaryRun(ctx context.Context, spec *intent.Spec, r *run.Runner, agentID, modelID string) (*canary.Session, error) {
	if err := o.requirePrior(spec, store.StageCanaryRun, store.StageCanaryPrepare); err != nil {
		return nil, err
	}
	session, err := o.activeSession(spec)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, o.outOfOrder(spec, store.StageCanaryRun, store.StageCanaryPrepare, "has no unconsumed session")
	}

	runErr := session.Run(ctx, r, spec.Canary, agentID, modelID)
	status := StatusCompleted
	if runErr != nil {
		status = StatusFailed
	}
	if err := o.persistStatus(store.StageCanaryRun, uuid.NewString(), status, spec, session); err != nil {
		return nil, err
	}
	return session, runErr
}

// Finalize fuses the candidate's gate decision, canary session and signoff
// into a release artifact. A candidate with no signoff record at all is out
// of order, not incomplete; stale stages block finalization outright. What
// is recorded but failing or rejected is collected by the finalizer into
// one IncompleteReleaseError.
func (o *Orchestrator) Finalize(intentID, version string) (*release.Artifact, bool, error) {
	rec, err := o.st.ActiveSignoff(intentID, version)
	if err != nil {
		return nil, false, fmt.Errorf("load signoff: %w", err)
	}
	if rec == nil {
		return nil, false, &OutOfOrderError{IntentID: intentID, Version: version,
			Stage: store.StageRelease, Missing: stageSignoff, Reason: "has not been recorded"}
	}
	for _, stage := range stageOrder[:len(stageOrder)-1] {
		rec, err := o.st.GetStage(intentID, version, stage)
		if err != nil {
			return nil, false, fmt.Errorf("load stage %s: %w", stage, err)
		}
		if rec != nil && rec.Stale {
			return nil, false, &OutOfOrderError{IntentID: intentID, Version: version,
				Stage: store.StageRelease, Missing: stage, Reason: "is stale and must re-run"}
		}
	}
	art, existing, err := release.NewFinalizer(o.st).Finalize(intentID, version)
	if err != nil {
		return nil, false, err
	}
	if !existing {
		if err := o.setStage(intentID, version, store.StageRelease, StatusCompleted, art.ReleaseID); err != nil {
			return nil, false, err
		}
		o.log.Info("release finalized",
			"intent", intentID, "version", version, "release", art.ReleaseID)
	}
	return art, existing, nil
}

// Stages returns the persisted stage records for a candidate, in pipeline
// order.
func (o *Orchestrator) Stages(intentID, version string) ([]*store.StageState, error) {
	recs, err := o.st.ListStages(intentID, version)
	if err != nil {
		return nil, err
	}
	byStage := make(map[string]*store.StageState, len(recs))
	for _, rec := range recs {
		byStage[rec.Stage] = rec
	}
	ordered := make([]*store.StageState, 0, len(recs))
	for _, stage := range stageOrder {
		if rec, ok := byStage[stage]; ok {
			ordered = append(ordered, rec)
		}
	}
	return ordered, nil
}

// requirePrior checks that the prerequisite stage completed and is not
// stale.
func (o *Orchestrator) requirePrior(spec *intent.Spec, stage, prior string) error {
	rec, err := o.st.GetStage(spec.ID, spec.Version, prior)
	if err != nil {
		return fmt.Errorf("load stage %s: %w", prior, err)
	}
	switch {
	case rec == nil:
		return o.outOfOrder(spec, stage, prior, "has not completed")
	case rec.Stale:
		return o.outOfOrder(spec, stage, prior, "is stale and must re-run")
	case rec.Status != StatusCompleted:
		return o.outOfOrder(spec, stage, prior, fmt.Sprintf("is %q, not %q", rec.Status, StatusCompleted))
	}
	return nil
}

func (o *Orchestrator) outOfOrder(spec *intent.Spec, stage, missing, reason string) error {
	return &OutOfOrderError{
		IntentID: spec.ID, Version: spec.Version,
		Stage: stage, Missing: missing, Reason: reason,
	}
}

// loadGate decodes the latest non-stale gate decision.
func (o *Orchestrator) loadGate(spec *intent.Spec) (*gate.Decision, error) {
	art, err := o.st.LatestArtifact(spec.ID, spec.Version, store.StageGate)
	if err != nil {
		return nil, fmt.Errorf("load gate decision: %w", err)
	}
	if art == nil {
		return nil, o.outOfOrder(spec, store.StageCanaryPrepare, store.StageGate, "has no decision artifact")
	}
	var decision gate.Decision
	if err := json.Unmarshal(art.Payload, &decision); err != nil {
		return nil, fmt.Errorf("decode gate decision %s: %w", art.RunID, err)
	}
	return &decision, nil
}

// activeSession returns the latest prepared session that no canary run has
// consumed yet, or nil.
func (o *Orchestrator) activeSession(spec *intent.Spec) (*canary.Session, error) {
	prepArt, err := o.st.LatestArtifact(spec.ID, spec.Version, store.StageCanaryPrepare)
	if err != nil {
		return nil, fmt.Errorf("load canary session: %w", err)
	}
	if prepArt == nil {
		return nil, nil
	}
	var prep canary.Session
	if err := json.Unmarshal(prepArt.Payload, &prep); err != nil {
		return nil, fmt.Errorf("decode canary session %s: %w", prepArt.RunID, err)
	}
	if !prep.Active() {
		return nil, nil
	}
	runArt, err := o.st.LatestArtifact(spec.ID, spec.Version, store.StageCanaryRun)
	if err != nil {
		return nil, fmt.Errorf("load canary run: %w", err)
	}
	if runArt != nil {
		var done canary.Session
		if err := json.Unmarshal(runArt.Payload, &done); err != nil {
			return nil, fmt.Errorf("decode canary run %s: %w", runArt.RunID, err)
		}
		if done.SessionID == prep.SessionID {
			return nil, nil
		}
	}
	return &prep, nil
}

// persist writes the stage artifact and a completed stage record, then
// marks every downstream stage stale.
func (o *Orchestrator) persist(stage, runID string, spec *intent.Spec, payload any) error {
	return o.persistStatus(stage, runID, StatusCompleted, spec, payload)
}

func (o *Orchestrator) persistStatus(stage, runID, status string, spec *intent.Spec, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s artifact: %w", stage, err)
	}
	if _, err := o.st.SaveArtifact(&store.Artifact{
		Intent:  spec.ID,
		Version: spec.Version,
		Stage:   stage,
		RunID:   runID,
		Payload: raw,
	}); err != nil {
		return fmt.Errorf("save %s artifact: %w", stage, err)
	}
	if err := o.setStage(spec.ID, spec.Version, stage, status, runID); err != nil {
		return err
	}
	if err := o.st.MarkStale(spec.ID, spec.Version, downstream(stage)); err != nil {
		return fmt.Errorf("mark downstream of %s stale: %w", stage, err)
	}
	return nil
}

func (o *Orchestrator) setStage(intentID, version, stage, status, runID string) error {
	if err := o.st.SetStage(&store.StageState{
		Intent:  intentID,
		Version: version,
		Stage:   stage,
		Status:  status,
		RunID:   runID,
	}); err != nil {
		return fmt.Errorf("record stage %s: %w", stage, err)
	}
	return nil
}

// downstream lists the stages after the given one in pipeline order.
func downstream(stage string) []string {
	for i, s := range stageOrder {
		if s == stage {
			return stageOrder[i+1:]
		}
	}
	return nil
}
