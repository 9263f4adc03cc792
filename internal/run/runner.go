package run

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"relgate/internal/agent"
	"relgate/internal/logging"
	"relgate/internal/sample"
)

// Config bounds the worker pool and the per-scenario retry budget.
type Config struct {
	Workers int           // concurrent executions; default 5
	Timeout time.Duration // per-attempt wall clock; default 10s
	Retries int           // transport retries after the first attempt; default 2
	Backoff time.Duration // base backoff, doubled per retry; default 200ms
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 5
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	switch {
	case c.Retries == 0:
		c.Retries = 2
	case c.Retries < 0:
		// Negative disables retries entirely.
		c.Retries = 0
	}
	if c.Backoff <= 0 {
		c.Backoff = 200 * time.Millisecond
	}
	return c
}

// Runner executes scenario cohorts against one executor. The same Runner
// serves the simulate, test and canary stages; only the mode differs.
type Runner struct {
	exec agent.Executor
	cfg  Config
}

// New returns a Runner with defaults applied.
func New(exec agent.Executor, cfg Config) *Runner {
	return &Runner{exec: exec, cfg: cfg.withDefaults()}
}

// Run executes every scenario in the set and returns a report of the given
// kind. A fatal executor error cancels the remaining in-flight executions
// and fails the stage as a whole: no report is returned and nothing is meant
// to be persisted.
func (r *Runner) Run(ctx context.Context, set sample.Set, agentID, modelID string, kind Kind) (*Report, error) {
	report, err := r.RunPartial(ctx, set, agentID, modelID, kind)
	if err != nil {
		// Already-completed outcomes are discarded: the stage fails whole.
		return nil, err
	}
	return report, nil
}

// RunPartial executes like Run but, when a fatal error aborts the cohort,
// returns the outcomes that had already completed (in sample order) together
// with the error. The canary stage uses this to retain partial metrics for
// diagnosis.
func (r *Runner) RunPartial(ctx context.Context, set sample.Set, agentID, modelID string, kind Kind) (*Report, error) {
	mode := agent.ModeLive
	if kind == KindSimulation {
		mode = agent.ModeDryRun
	}

	logger := logging.New("runner")
	logger.Info("stage execution starting",
		"kind", string(kind), "intent", set.IntentID, "version", set.Version,
		"scenarios", len(set.Scenarios), "workers", r.cfg.Workers)

	// Index-ordered results: report order == sample order regardless of
	// completion order. done marks the slots actually written, so a partial
	// report never contains zero-valued outcomes.
	outcomes := make([]Outcome, len(set.Scenarios))
	done := make([]bool, len(set.Scenarios))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i, sc := range set.Scenarios {
		i, sc := i, sc
		g.Go(func() error {
			out, err := r.executeOne(gctx, agent.Call{
				Scenario: sc, AgentID: agentID, ModelID: modelID, Mode: mode,
			})
			if err != nil {
				return err
			}
			outcomes[i] = *out
			done[i] = true
			return nil
		})
	}
	runErr := g.Wait()

	completed := make([]Outcome, 0, len(outcomes))
	for i, ok := range done {
		if ok {
			completed = append(completed, outcomes[i])
		}
	}

	report := &Report{
		RunID:      uuid.NewString(),
		IntentID:   set.IntentID,
		Version:    set.Version,
		Kind:       kind,
		AgentID:    agentID,
		ModelID:    modelID,
		SampleSeed: set.Seed,
		Truncated:  set.Truncated,
		Timestamp:  time.Now().UTC(),
		Outcomes:   completed,
		PassRate:   passRate(completed),
	}
	if runErr != nil {
		logger.Error("stage execution failed",
			"kind", string(kind), "completed", len(completed), "error", runErr)
		return report, runErr
	}
	logger.Info("stage execution done",
		"kind", string(kind), "run_id", report.RunID, "pass_rate", report.PassRate)
	return report, nil
}

// executeOne runs a single scenario with the retry budget. Transport errors
// (including per-attempt timeouts) are retried with doubling backoff; a
// semantic failure is recorded immediately and never retried. Fatal errors
// and group cancellation propagate as errors.
func (r *Runner) executeOne(ctx context.Context, call agent.Call) (*Outcome, error) {
	out := Outcome{
		ScenarioID: call.Scenario.ID,
		Category:   call.Scenario.Category,
		AgentID:    call.AgentID,
		ModelID:    call.ModelID,
	}

	var lastErr error
	backoff := r.cfg.Backoff
	for attempt := 0; attempt <= r.cfg.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		out.Attempts = attempt + 1

		attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		start := time.Now()
		result, err := r.exec.Execute(attemptCtx, call)
		out.LatencyMS = float64(time.Since(start)) / float64(time.Millisecond)
		cancel()

		if err != nil {
			var fatal *agent.FatalError
			if errors.As(err, &fatal) {
				return nil, fmt.Errorf("scenario %s: %w", call.Scenario.ID, err)
			}
			if ctx.Err() != nil {
				// The stage was cancelled, not this attempt's deadline.
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		out.RawOutput = result.Raw
		ok, reason := call.Scenario.Expect.Matches(result.Raw, result.Fields)
		if ok {
			out.Success = true
		} else {
			out.FailureKind = FailureSemantic
			out.FailureReason = reason
		}
		return &out, nil
	}

	out.FailureKind = FailureTransport
	out.FailureReason = fmt.Sprintf("retry budget exhausted after %d attempt(s): %v", out.Attempts, lastErr)
	return &out, nil
}
