package intent

import (
	"fmt"
	"sort"
	"strings"
)

// Violation is one structural or semantic problem found in an intent document.
type Violation struct {
	Field   string // dotted path, e.g. "scenarios[2].id"
	Message string
}

func (v Violation) String() string {
	if v.Field == "" {
		return v.Message
	}
	return v.Field + ": " + v.Message
}

// ValidationError carries every violation found in one pass, so an author can
// fix all of them at once instead of replaying the validator.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "intent invalid (%d violation(s)):", len(e.Violations))
	for _, v := range e.Violations {
		b.WriteString("\n  - ")
		b.WriteString(v.String())
	}
	return b.String()
}

// Validate checks an intent document structurally and semantically. It
// returns nil or a *ValidationError listing every violation found. Pure
// function of the document.
func Validate(s *Spec) error {
	var vs []Violation
	add := func(field, format string, args ...any) {
		vs = append(vs, Violation{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if s.ID == "" {
		add("id", "required")
	}
	if s.Version == "" {
		add("version", "required")
	}

	if s.Gate.MinPassRate < 0 || s.Gate.MinPassRate > 1 {
		add("gate.min_pass_rate", "must be in [0,1], got %v", s.Gate.MinPassRate)
	}
	for cat, min := range s.Gate.CategoryMin {
		if min < 0 || min > 1 {
			add(fmt.Sprintf("gate.category_min[%s]", cat), "must be in [0,1], got %v", min)
		}
	}

	if s.Canary.SampleSize < 0 {
		add("canary.sample_size", "must be >= 0, got %d", s.Canary.SampleSize)
	}
	if s.Canary.MaxErrorRate < 0 || s.Canary.MaxErrorRate > 1 {
		add("canary.max_error_rate", "must be in [0,1], got %v", s.Canary.MaxErrorRate)
	}
	if s.Canary.MaxLatencyP95 < 0 {
		add("canary.max_latency_p95_ms", "must be >= 0, got %v", s.Canary.MaxLatencyP95)
	}

	if len(s.Scenarios) == 0 {
		add("scenarios", "at least one scenario is required")
	}

	seen := make(map[string]bool, len(s.Scenarios))
	categories := make(map[string]bool)
	for i, sc := range s.Scenarios {
		field := fmt.Sprintf("scenarios[%d]", i)
		if sc.ID == "" {
			add(field+".id", "required")
		} else if seen[sc.ID] {
			add(field+".id", "duplicate scenario id %q", sc.ID)
		}
		seen[sc.ID] = true
		if sc.Category != "" {
			categories[sc.Category] = true
		}
		if sc.Expect.Empty() {
			add(field+".expect", "at least one predicate clause is required")
		}
	}

	// Category minimums must reference categories that actually occur.
	var cats []string
	for cat := range s.Gate.CategoryMin {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	for _, cat := range cats {
		if !categories[cat] {
			add(fmt.Sprintf("gate.category_min[%s]", cat), "no scenario has this category")
		}
	}

	if len(vs) > 0 {
		return &ValidationError{Violations: vs}
	}
	return nil
}
