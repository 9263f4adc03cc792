package canary

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"relgate/internal/agent"
	"relgate/internal/intent"
	"relgate/internal/run"
	"relgate/internal/sample"
)

func canarySpec(n int) *intent.Spec {
	s := &intent.Spec{
		ID: "triage", Version: "1.0",
		Gate:   intent.GatePolicy{MinPassRate: 0.8},
		Canary: intent.CanaryPolicy{SampleSize: 3, MaxErrorRate: 0.5, MaxLatencyP95: 5000},
	}
	for i := 0; i < n; i++ {
		s.Scenarios = append(s.Scenarios, intent.Scenario{
			ID:     fmt.Sprintf("S%d", i+1),
			Input:  map[string]string{"text": "refund request"},
			Expect: intent.Expect{Equals: map[string]string{"queue": "billing"}},
		})
	}
	return s
}

func testRunner(exec agent.Executor) *run.Runner {
	return run.New(exec, run.Config{Workers: 2, Timeout: time.Second, Retries: -1, Backoff: time.Millisecond})
}

func TestNewSession_CohortIndependentOfGateSample(t *testing.T) {
	spec := canarySpec(10)
	s := NewSession(spec, 5)
	if s.State != StatePrepared || !s.Active() {
		t.Fatalf("state = %s", s.State)
	}
	if len(s.Cohort.Scenarios) != 5 {
		t.Fatalf("cohort = %d", len(s.Cohort.Scenarios))
	}
	gateSet := sample.Draw(spec, 5, sample.DefaultSeed)
	if cmp.Equal(gateSet.IDs(), s.Cohort.IDs()) {
		t.Error("canary cohort must not mirror the gate-test sample")
	}
}

func TestNewSession_SizeFallsBackToPolicy(t *testing.T) {
	spec := canarySpec(10)
	if got := len(NewSession(spec, 0).Cohort.Scenarios); got != 3 {
		t.Errorf("policy fallback cohort = %d, want 3", got)
	}
	spec.Canary.SampleSize = 0
	if got := len(NewSession(spec, 0).Cohort.Scenarios); got != DefaultSampleSize {
		t.Errorf("default cohort = %d, want %d", got, DefaultSampleSize)
	}
}

func TestRun_Completes(t *testing.T) {
	spec := canarySpec(6)
	s := NewSession(spec, 4)
	if err := s.Run(context.Background(), testRunner(agent.NewStub()), spec.Canary, "stub", "rules-v1"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.State != StateCompleted || s.Active() {
		t.Errorf("state = %s", s.State)
	}
	if s.Metrics == nil || s.Metrics.PassRate != 1.0 || s.Metrics.Executed != 4 {
		t.Errorf("metrics = %+v", s.Metrics)
	}
	if len(s.Breaches) != 0 {
		t.Errorf("breaches = %v", s.Breaches)
	}
	if s.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}
}

func TestRun_AbortRetainsPartialMetrics(t *testing.T) {
	spec := canarySpec(6)
	s := NewSession(spec, 4)

	stub := agent.NewStub()
	// Fail the last cohort member fatally; serial execution keeps the
	// earlier outcomes deterministic.
	last := s.Cohort.IDs()[3]
	stub.FailScenario(last, &agent.FatalError{Err: errors.New("endpoint gone")})
	runner := run.New(stub, run.Config{Workers: 1, Timeout: time.Second, Retries: -1, Backoff: time.Millisecond})

	err := s.Run(context.Background(), runner, spec.Canary, "stub", "rules-v1")
	if err == nil {
		t.Fatal("expected abort error")
	}
	if s.State != StateAborted {
		t.Fatalf("state = %s, want aborted", s.State)
	}
	if s.AbortReason == "" {
		t.Error("abort reason missing")
	}
	if len(s.Outcomes) != 3 || s.Metrics == nil || s.Metrics.Executed != 3 {
		t.Errorf("partial outcomes = %d, metrics = %+v", len(s.Outcomes), s.Metrics)
	}
}

func TestRun_RequiresPreparedState(t *testing.T) {
	spec := canarySpec(3)
	s := NewSession(spec, 2)
	s.State = StateCompleted
	if err := s.Run(context.Background(), testRunner(agent.NewStub()), spec.Canary, "stub", "rules-v1"); err == nil {
		t.Error("expected state error")
	}
}

func TestComputeMetrics(t *testing.T) {
	outcomes := []run.Outcome{
		{Success: true, LatencyMS: 10},
		{Success: true, LatencyMS: 20},
		{Success: false, LatencyMS: 30, FailureKind: run.FailureSemantic},
		{Success: false, LatencyMS: 400, FailureKind: run.FailureTransport},
	}
	m := ComputeMetrics(outcomes)
	if m.PassRate != 0.5 || m.ErrorRate != 0.25 || m.Executed != 4 {
		t.Errorf("metrics = %+v", m)
	}
	if m.LatencyP50MS != 20 || m.LatencyP95MS != 400 {
		t.Errorf("latency p50=%v p95=%v", m.LatencyP50MS, m.LatencyP95MS)
	}
}

func TestCheckPolicy(t *testing.T) {
	m := Metrics{ErrorRate: 0.3, LatencyP95MS: 900}
	breaches := CheckPolicy(m, intent.CanaryPolicy{MaxErrorRate: 0.2, MaxLatencyP95: 400})
	if len(breaches) != 2 {
		t.Fatalf("breaches = %v", breaches)
	}
	if breaches := CheckPolicy(m, intent.CanaryPolicy{}); len(breaches) != 0 {
		t.Errorf("unset thresholds must not breach: %v", breaches)
	}
}
