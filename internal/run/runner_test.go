package run

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"relgate/internal/agent"
	"relgate/internal/intent"
	"relgate/internal/sample"
)

// billingSpec builds an intent whose scenarios the stub routes correctly
// except the ones whose text carries no keyword.
func billingSpec(n int) *intent.Spec {
	s := &intent.Spec{ID: "triage", Version: "1.0", Gate: intent.GatePolicy{MinPassRate: 0.8}}
	for i := 0; i < n; i++ {
		s.Scenarios = append(s.Scenarios, intent.Scenario{
			ID:       fmt.Sprintf("S%d", i+1),
			Category: "billing",
			Input:    map[string]string{"text": fmt.Sprintf("charge dispute %d", i+1)},
			Expect:   intent.Expect{Equals: map[string]string{"queue": "billing"}},
		})
	}
	return s
}

func testCfg() Config {
	return Config{Workers: 3, Timeout: time.Second, Retries: 2, Backoff: time.Millisecond}
}

func TestRun_AllPass(t *testing.T) {
	spec := billingSpec(5)
	r := New(agent.NewStub(), testCfg())

	report, err := r.Run(context.Background(), sample.Full(spec), "stub", "rules-v1", KindTest)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Kind != KindTest || report.PassRate != 1.0 {
		t.Errorf("kind=%s pass_rate=%v", report.Kind, report.PassRate)
	}
	if report.RunID == "" {
		t.Error("run id missing")
	}
	for _, o := range report.Outcomes {
		if !o.Success || o.Attempts != 1 {
			t.Errorf("outcome %s: success=%v attempts=%d", o.ScenarioID, o.Success, o.Attempts)
		}
	}
}

func TestRun_PreservesSampleOrder(t *testing.T) {
	spec := billingSpec(8)
	r := New(agent.NewStub(), testCfg())

	set := sample.Full(spec)
	report, err := r.Run(context.Background(), set, "stub", "rules-v1", KindSimulation)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, o := range report.Outcomes {
		got = append(got, o.ScenarioID)
	}
	if diff := cmp.Diff(set.IDs(), got); diff != "" {
		t.Errorf("outcome order != sample order:\n%s", diff)
	}
}

func TestRun_SemanticFailureNotRetried(t *testing.T) {
	spec := billingSpec(2)
	// S2 expects a queue the stub will never produce for this text.
	spec.Scenarios[1].Expect = intent.Expect{Equals: map[string]string{"queue": "howto"}}

	stub := agent.NewStub()
	r := New(stub, testCfg())
	report, err := r.Run(context.Background(), sample.Full(spec), "stub", "rules-v1", KindTest)
	if err != nil {
		t.Fatal(err)
	}
	if report.PassRate != 0.5 {
		t.Errorf("pass rate = %v, want 0.5", report.PassRate)
	}
	o := report.Outcomes[1]
	if o.Success || o.FailureKind != FailureSemantic {
		t.Errorf("outcome = %+v, want semantic failure", o)
	}
	if got := stub.Calls("S2"); got != 1 {
		t.Errorf("semantic failure was retried: %d calls", got)
	}
}

func TestRun_TransientRetriedThenSucceeds(t *testing.T) {
	spec := billingSpec(1)
	stub := agent.NewStub()
	stub.FailScenarioOnce("S1", errors.New("connection reset"))

	r := New(stub, testCfg())
	report, err := r.Run(context.Background(), sample.Full(spec), "stub", "rules-v1", KindTest)
	if err != nil {
		t.Fatal(err)
	}
	o := report.Outcomes[0]
	if !o.Success || o.Attempts != 2 {
		t.Errorf("outcome = %+v, want success on attempt 2", o)
	}
}

func TestRun_RetryBudgetExhausted(t *testing.T) {
	spec := billingSpec(1)
	stub := agent.NewStub()
	stub.FailScenario("S1", errors.New("connection reset"))

	r := New(stub, testCfg())
	report, err := r.Run(context.Background(), sample.Full(spec), "stub", "rules-v1", KindTest)
	if err != nil {
		t.Fatal(err)
	}
	o := report.Outcomes[0]
	if o.Success || o.FailureKind != FailureTransport || o.Attempts != 3 {
		t.Errorf("outcome = %+v, want transport failure after 3 attempts", o)
	}
	if !strings.Contains(o.FailureReason, "retry budget exhausted") {
		t.Errorf("reason = %q", o.FailureReason)
	}
}

func TestRun_FatalCancelsStage(t *testing.T) {
	spec := billingSpec(6)
	stub := agent.NewStub()
	stub.FailScenario("S3", &agent.FatalError{Err: errors.New("endpoint gone")})

	r := New(stub, testCfg())
	report, err := r.Run(context.Background(), sample.Full(spec), "stub", "rules-v1", KindTest)
	if err == nil {
		t.Fatal("expected stage failure")
	}
	var fatal *agent.FatalError
	if !errors.As(err, &fatal) {
		t.Errorf("want FatalError in chain, got %v", err)
	}
	if report != nil {
		t.Error("no report may be produced for a failed stage")
	}
}

// slowExec blocks until its context is done, simulating a hung transport.
type slowExec struct{}

func (s *slowExec) Execute(ctx context.Context, _ agent.Call) (*agent.Outcome, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRun_TimeoutIsRetryable(t *testing.T) {
	spec := billingSpec(1)
	cfg := Config{Workers: 1, Timeout: 5 * time.Millisecond, Retries: 1, Backoff: time.Millisecond}
	r := New(&slowExec{}, cfg)

	report, err := r.Run(context.Background(), sample.Full(spec), "stub", "rules-v1", KindTest)
	if err != nil {
		t.Fatalf("timeouts must be absorbed into outcomes, got %v", err)
	}
	o := report.Outcomes[0]
	if o.Success || o.FailureKind != FailureTransport || o.Attempts != 2 {
		t.Errorf("outcome = %+v, want transport failure after retry", o)
	}
}

func TestRunPartial_RetainsCompletedOutcomes(t *testing.T) {
	spec := billingSpec(4)
	stub := agent.NewStub()
	stub.FailScenario("S4", &agent.FatalError{Err: errors.New("endpoint gone")})

	// Serial workers so S1-S3 complete before S4 aborts the cohort.
	cfg := Config{Workers: 1, Timeout: time.Second, Retries: -1, Backoff: time.Millisecond}
	r := New(stub, cfg)
	report, err := r.RunPartial(context.Background(), sample.Full(spec), "stub", "rules-v1", KindCanary)
	if err == nil {
		t.Fatal("expected fatal error")
	}
	if report == nil {
		t.Fatal("partial report must be returned")
	}
	if len(report.Outcomes) != 3 {
		t.Fatalf("completed outcomes = %d, want 3", len(report.Outcomes))
	}
	for i, o := range report.Outcomes {
		if want := fmt.Sprintf("S%d", i+1); o.ScenarioID != want {
			t.Errorf("outcome[%d] = %s, want %s", i, o.ScenarioID, want)
		}
	}
}

func TestCategoryRates(t *testing.T) {
	r := &Report{Outcomes: []Outcome{
		{ScenarioID: "S1", Category: "billing", Success: true},
		{ScenarioID: "S2", Category: "billing", Success: false},
		{ScenarioID: "S3", Category: "bugs", Success: true},
		{ScenarioID: "S4", Success: true}, // uncategorized, excluded
	}}
	want := map[string]float64{"billing": 0.5, "bugs": 1.0}
	if diff := cmp.Diff(want, r.CategoryRates()); diff != "" {
		t.Errorf("rates:\n%s", diff)
	}
}
