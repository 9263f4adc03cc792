package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// rule maps an input keyword to a routing queue.
type rule struct {
	keyword string
	queue   string
}

// defaultRules is the deterministic keyword table for the stub. Mirrors the
// kind of baseline routing agent an intent is typically bootstrapped with.
var defaultRules = []rule{
	{"payment", "billing"},
	{"charge", "billing"},
	{"invoice", "billing"},
	{"refund", "billing"},
	{"crash", "bug"},
	{"error", "bug"},
	{"fail", "bug"},
	{"how", "howto"},
	{"where", "howto"},
}

// Stub is a deterministic rule-based executor for calibration and tests. It
// routes on keywords in the scenario's "text" input and never mutates
// anything, so it honors the dry-run contract trivially.
type Stub struct {
	mu sync.Mutex
	// FailWith, when set for a scenario id, makes Execute return that error
	// (for exercising retry and cancellation paths).
	failWith map[string]error
	// calls counts Execute invocations per scenario id.
	calls map[string]int
}

// NewStub returns a stub executor with the default keyword rules.
func NewStub() *Stub {
	return &Stub{failWith: make(map[string]error), calls: make(map[string]int)}
}

// FailScenario makes every Execute call for the scenario id return err.
func (s *Stub) FailScenario(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith[id] = err
}

// FailScenarioOnce makes only the next Execute call for the id fail.
func (s *Stub) FailScenarioOnce(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith[id] = &onceError{err: err}
}

// Calls reports how many times the scenario was executed.
func (s *Stub) Calls(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[id]
}

type onceError struct {
	err  error
	used bool
}

func (o *onceError) Error() string { return o.err.Error() }
func (o *onceError) Unwrap() error { return o.err }

// Execute routes the scenario input deterministically. It consults the
// injected failure table first so tests can simulate transport errors.
func (s *Stub) Execute(ctx context.Context, call Call) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.calls[call.Scenario.ID]++
	if err, ok := s.failWith[call.Scenario.ID]; ok {
		if once, isOnce := err.(*onceError); isOnce {
			if !once.used {
				once.used = true
				s.mu.Unlock()
				return nil, once.err
			}
		} else {
			s.mu.Unlock()
			return nil, err
		}
	}
	s.mu.Unlock()

	text := strings.ToLower(call.Scenario.Input["text"])
	queue := "general"
	for _, r := range defaultRules {
		if strings.Contains(text, r.keyword) {
			queue = r.queue
			break
		}
	}

	fields := map[string]string{
		"queue": queue,
		"agent": call.AgentID,
		"model": call.ModelID,
	}
	raw := fmt.Sprintf("scenario %s routed to queue=%s", call.Scenario.ID, queue)
	if queue == "general" {
		raw += " (uncertain, needs review)"
		fields["note"] = "uncertain"
	}
	return &Outcome{Raw: raw, Fields: fields}, nil
}
