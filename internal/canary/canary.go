// Package canary runs a limited-scope live cohort against the candidate and
// collects production-like metrics before release. A session moves through
// prepared → running → completed, or aborts on a fatal execution error while
// retaining whatever metrics were already collected.
package canary

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"relgate/internal/intent"
	"relgate/internal/logging"
	"relgate/internal/run"
	"relgate/internal/sample"
)

// State is the canary session lifecycle state.
type State string

const (
	StatePrepared  State = "prepared"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
)

// DefaultSampleSize is used when neither the CLI nor the intent's canary
// policy sets a cohort size.
const DefaultSampleSize = 5

// Metrics are the observations collected from a canary cohort.
type Metrics struct {
	PassRate     float64 `json:"pass_rate"`
	ErrorRate    float64 `json:"error_rate"` // transport failures / executed
	LatencyP50MS float64 `json:"latency_p50_ms"`
	LatencyP95MS float64 `json:"latency_p95_ms"`
	Executed     int     `json:"executed"`
}

// Session is one canary attempt for an intent+version.
type Session struct {
	SessionID   string        `json:"session_id"`
	IntentID    string        `json:"intent_id"`
	Version     string        `json:"version"`
	State       State         `json:"state"`
	Cohort      sample.Set    `json:"cohort"`
	AgentID     string        `json:"agent_id,omitempty"`
	ModelID     string        `json:"model_id,omitempty"`
	Outcomes    []run.Outcome `json:"outcomes,omitempty"`
	Metrics     *Metrics      `json:"metrics,omitempty"`
	Breaches    []string      `json:"breaches,omitempty"`
	AbortReason string        `json:"abort_reason,omitempty"`
	PreparedAt  time.Time     `json:"prepared_at"`
	FinishedAt  *time.Time    `json:"finished_at,omitempty"`
}

// Active reports whether the session still claims the candidate's canary
// slot (at most one active session per intent+version).
func (s *Session) Active() bool {
	return s.State == StatePrepared || s.State == StateRunning
}

// NewSession prepares a canary session with a freshly sampled cohort. The
// canary seed is independent of the gate-test sample seed to avoid bias;
// n <= 0 falls back to the intent's canary policy, then to DefaultSampleSize.
func NewSession(spec *intent.Spec, n int) *Session {
	if n <= 0 {
		n = spec.Canary.SampleSize
	}
	if n <= 0 {
		n = DefaultSampleSize
	}
	return &Session{
		SessionID:  uuid.NewString(),
		IntentID:   spec.ID,
		Version:    spec.Version,
		State:      StatePrepared,
		Cohort:     sample.Draw(spec, n, sample.CanarySeed),
		PreparedAt: time.Now().UTC(),
	}
}

// Run executes the prepared cohort. On a fatal execution error the session
// is aborted, the error surfaced, and partial outcomes/metrics retained for
// diagnosis; an aborted session is never eligible for finalization.
func (s *Session) Run(ctx context.Context, runner *run.Runner, policy intent.CanaryPolicy, agentID, modelID string) error {
	if s.State != StatePrepared {
		return fmt.Errorf("canary session %s is %s, want %s", s.SessionID, s.State, StatePrepared)
	}

	logger := logging.New("canary")
	s.State = StateRunning
	s.AgentID = agentID
	s.ModelID = modelID

	report, err := runner.RunPartial(ctx, s.Cohort, agentID, modelID, run.KindCanary)
	now := time.Now().UTC()
	s.FinishedAt = &now
	if report != nil {
		s.Outcomes = report.Outcomes
		m := ComputeMetrics(report.Outcomes)
		s.Metrics = &m
	}
	if err != nil {
		s.State = StateAborted
		s.AbortReason = err.Error()
		logger.Error("canary aborted",
			"session", s.SessionID, "completed", len(s.Outcomes), "error", err)
		return fmt.Errorf("canary session %s aborted: %w", s.SessionID, err)
	}

	s.State = StateCompleted
	s.Breaches = CheckPolicy(*s.Metrics, policy)
	logger.Info("canary completed",
		"session", s.SessionID, "pass_rate", s.Metrics.PassRate,
		"error_rate", s.Metrics.ErrorRate, "breaches", len(s.Breaches))
	return nil
}

// ComputeMetrics folds a cohort's outcomes into canary metrics.
func ComputeMetrics(outcomes []run.Outcome) Metrics {
	m := Metrics{Executed: len(outcomes)}
	if len(outcomes) == 0 {
		return m
	}
	passed, transport := 0, 0
	latencies := make([]float64, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Success {
			passed++
		}
		if o.FailureKind == run.FailureTransport {
			transport++
		}
		latencies = append(latencies, o.LatencyMS)
	}
	m.PassRate = float64(passed) / float64(len(outcomes))
	m.ErrorRate = float64(transport) / float64(len(outcomes))
	m.LatencyP50MS = percentile(latencies, 50)
	m.LatencyP95MS = percentile(latencies, 95)
	return m
}

// CheckPolicy returns a breach string per canary threshold the metrics
// exceed; empty means the canary is clean.
func CheckPolicy(m Metrics, p intent.CanaryPolicy) []string {
	var breaches []string
	if p.MaxErrorRate > 0 && m.ErrorRate > p.MaxErrorRate {
		breaches = append(breaches, fmt.Sprintf("error rate %g > %g", m.ErrorRate, p.MaxErrorRate))
	}
	if p.MaxLatencyP95 > 0 && m.LatencyP95MS > p.MaxLatencyP95 {
		breaches = append(breaches, fmt.Sprintf("latency p95 %.2fms > %.2fms", m.LatencyP95MS, p.MaxLatencyP95))
	}
	return breaches
}

// percentile computes the nearest-rank percentile over a copy of values.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	rank := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
