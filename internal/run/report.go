// Package run is the shared execution core behind the simulate, test and
// canary stages: it fans a scenario cohort out to the agent executor through
// a bounded worker pool and folds the outcomes into a report.
package run

import (
	"time"
)

// Kind distinguishes dry-run reports from live ones. Kind is part of a
// report's identity: a simulation report never satisfies a gate that
// requires a test report.
type Kind string

const (
	KindSimulation Kind = "simulation"
	KindTest       Kind = "test"
	KindCanary     Kind = "canary"
)

// FailureKind classifies why an outcome did not pass.
type FailureKind string

const (
	// FailureSemantic: the agent answered but the outcome predicate failed.
	// Never retried.
	FailureSemantic FailureKind = "semantic"
	// FailureTransport: the executor failed at the transport level and the
	// retry budget ran out.
	FailureTransport FailureKind = "transport"
)

// Outcome is the immutable record of one scenario execution.
type Outcome struct {
	ScenarioID    string      `json:"scenario_id"`
	Category      string      `json:"category,omitempty"`
	AgentID       string      `json:"agent_id"`
	ModelID       string      `json:"model_id"`
	Success       bool        `json:"success"`
	LatencyMS     float64     `json:"latency_ms"`
	Attempts      int         `json:"attempts"`
	RawOutput     string      `json:"raw_output,omitempty"`
	FailureKind   FailureKind `json:"failure_kind,omitempty"`
	FailureReason string      `json:"failure_reason,omitempty"`
}

// Report aggregates the outcomes of one stage execution. Outcomes are stored
// in the original sample order regardless of completion order.
type Report struct {
	RunID      string    `json:"run_id"`
	IntentID   string    `json:"intent_id"`
	Version    string    `json:"version"`
	Kind       Kind      `json:"kind"`
	AgentID    string    `json:"agent_id"`
	ModelID    string    `json:"model_id"`
	SampleSeed int64     `json:"sample_seed"`
	Truncated  bool      `json:"truncated,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Outcomes   []Outcome `json:"outcomes"`
	PassRate   float64   `json:"pass_rate"`
}

// passRate computes passed/total, 0 for an empty report.
func passRate(outcomes []Outcome) float64 {
	if len(outcomes) == 0 {
		return 0
	}
	passed := 0
	for _, o := range outcomes {
		if o.Success {
			passed++
		}
	}
	return float64(passed) / float64(len(outcomes))
}

// CategoryRates computes per-category pass rates for outcomes that carry a
// category.
func (r *Report) CategoryRates() map[string]float64 {
	total := map[string]int{}
	passed := map[string]int{}
	for _, o := range r.Outcomes {
		if o.Category == "" {
			continue
		}
		total[o.Category]++
		if o.Success {
			passed[o.Category]++
		}
	}
	rates := make(map[string]float64, len(total))
	for cat, n := range total {
		rates[cat] = float64(passed[cat]) / float64(n)
	}
	return rates
}
