// Package gate applies an intent's threshold policy to a live test report
// and produces the pre-canary gate decision.
package gate

import (
	"fmt"
	"sort"
	"time"

	"relgate/internal/intent"
	"relgate/internal/run"
)

// Verdict is the gate outcome.
type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictFail Verdict = "fail"
)

// Decision is the immutable gate decision for one test report. RunID and
// Timestamp are assigned by the persisting caller; everything else is a pure
// function of (report, policy).
type Decision struct {
	RunID         string             `json:"run_id"`
	IntentID      string             `json:"intent_id"`
	Version       string             `json:"version"`
	ReportRunID   string             `json:"report_run_id"`
	Policy        intent.GatePolicy  `json:"policy"`
	PassRate      float64            `json:"pass_rate"`
	CategoryRates map[string]float64 `json:"category_rates,omitempty"`
	Verdict       Verdict            `json:"verdict"`
	Reasons       []string           `json:"reasons,omitempty"`
	Timestamp     time.Time          `json:"timestamp"`
}

// Evaluate computes the gate verdict for a live test report. Pass iff the
// overall pass rate meets the policy minimum and every configured category
// minimum is met. Reasons name each unmet criterion; sorted so identical
// inputs always yield the identical decision.
func Evaluate(report *run.Report, policy intent.GatePolicy) (*Decision, error) {
	if report == nil {
		return nil, fmt.Errorf("gate: report is nil")
	}
	if report.Kind != run.KindTest {
		return nil, fmt.Errorf("gate: requires a test report, got %s report %s", report.Kind, report.RunID)
	}

	d := &Decision{
		IntentID:      report.IntentID,
		Version:       report.Version,
		ReportRunID:   report.RunID,
		Policy:        policy,
		PassRate:      report.PassRate,
		CategoryRates: report.CategoryRates(),
	}

	var reasons []string
	if report.PassRate < policy.MinPassRate {
		reasons = append(reasons, fmt.Sprintf("overall pass rate %g < %g", report.PassRate, policy.MinPassRate))
	}

	var cats []string
	for cat := range policy.CategoryMin {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	for _, cat := range cats {
		min := policy.CategoryMin[cat]
		rate, ok := d.CategoryRates[cat]
		if !ok {
			reasons = append(reasons, fmt.Sprintf("category %q has no outcomes in report", cat))
			continue
		}
		if rate < min {
			reasons = append(reasons, fmt.Sprintf("category %q pass rate %g < %g", cat, rate, min))
		}
	}

	d.Reasons = reasons
	if len(reasons) == 0 {
		d.Verdict = VerdictPass
	} else {
		d.Verdict = VerdictFail
	}
	return d, nil
}
