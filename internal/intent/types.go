// Package intent defines the declarative behavior specification consumed by
// the release gate pipeline: an identified, versioned set of scenarios plus
// the gate and canary policies a candidate must satisfy before release.
package intent

import (
	"fmt"
	"strings"
)

// Spec is a validated intent document. Immutable once validated for a given
// pipeline run; every stage reads it, none mutates it.
type Spec struct {
	ID        string       `yaml:"id" json:"id"`
	Version   string       `yaml:"version" json:"version"`
	Purpose   string       `yaml:"purpose,omitempty" json:"purpose,omitempty"`
	Owner     Owner        `yaml:"owner,omitempty" json:"owner,omitempty"`
	Gate      GatePolicy   `yaml:"gate" json:"gate"`
	Canary    CanaryPolicy `yaml:"canary,omitempty" json:"canary,omitempty"`
	Scenarios []Scenario   `yaml:"scenarios" json:"scenarios"`
}

// Key returns the intent+version key used for artifact scoping.
func (s *Spec) Key() string { return s.ID + "@" + s.Version }

// Owner identifies who is accountable for the intent.
type Owner struct {
	Name  string `yaml:"name,omitempty" json:"name,omitempty"`
	Email string `yaml:"email,omitempty" json:"email,omitempty"`
	Team  string `yaml:"team,omitempty" json:"team,omitempty"`
}

// GatePolicy is the threshold policy applied to a live test report.
type GatePolicy struct {
	// MinPassRate is the overall pass-rate floor in [0,1].
	MinPassRate float64 `yaml:"min_pass_rate" json:"min_pass_rate"`
	// CategoryMin maps scenario categories to per-category pass-rate floors.
	CategoryMin map[string]float64 `yaml:"category_min,omitempty" json:"category_min,omitempty"`
}

// CanaryPolicy bounds the metrics a canary run must stay within.
type CanaryPolicy struct {
	SampleSize    int     `yaml:"sample_size,omitempty" json:"sample_size,omitempty"`
	MaxErrorRate  float64 `yaml:"max_error_rate,omitempty" json:"max_error_rate,omitempty"`
	MaxLatencyP95 float64 `yaml:"max_latency_p95_ms,omitempty" json:"max_latency_p95_ms,omitempty"`
}

// Scenario is one input/expected-outcome pair within an intent.
type Scenario struct {
	ID       string            `yaml:"id" json:"id"`
	Category string            `yaml:"category,omitempty" json:"category,omitempty"`
	Input    map[string]string `yaml:"input" json:"input"`
	Expect   Expect            `yaml:"expect" json:"expect"`
}

// Expect is a structural outcome predicate. All configured clauses must hold;
// it is never an exact-match on the raw output.
type Expect struct {
	// Contains lists substrings that must appear in the raw output.
	Contains []string `yaml:"contains,omitempty" json:"contains,omitempty"`
	// Equals maps structured output fields to required values.
	Equals map[string]string `yaml:"equals,omitempty" json:"equals,omitempty"`
	// Fields lists structured output fields that must merely be present.
	Fields []string `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// Empty reports whether the predicate has no clauses at all.
func (e Expect) Empty() bool {
	return len(e.Contains) == 0 && len(e.Equals) == 0 && len(e.Fields) == 0
}

// Matches evaluates the predicate against a raw output string and the
// structured fields extracted from it. On failure the second return names
// the first unmet clause.
func (e Expect) Matches(raw string, fields map[string]string) (bool, string) {
	for _, want := range e.Contains {
		if !strings.Contains(raw, want) {
			return false, fmt.Sprintf("output does not contain %q", want)
		}
	}
	for field, want := range e.Equals {
		got, ok := fields[field]
		if !ok {
			return false, fmt.Sprintf("field %q missing", field)
		}
		if got != want {
			return false, fmt.Sprintf("field %q = %q, want %q", field, got, want)
		}
	}
	for _, field := range e.Fields {
		if _, ok := fields[field]; !ok {
			return false, fmt.Sprintf("field %q missing", field)
		}
	}
	return true, ""
}

// ScenarioByID returns the scenario with the given id, or nil.
func (s *Spec) ScenarioByID(id string) *Scenario {
	for i := range s.Scenarios {
		if s.Scenarios[i].ID == id {
			return &s.Scenarios[i]
		}
	}
	return nil
}
