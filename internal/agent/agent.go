// Package agent defines the execution boundary to the system under test: an
// external agent/model that answers one scenario at a time. The pipeline only
// knows this capability; what the agent actually is stays out of scope.
package agent

import (
	"context"

	"relgate/internal/intent"
)

// Mode marks whether an execution may attribute side effects to production.
type Mode string

const (
	// ModeDryRun must not trigger real side-effecting actions. This is a
	// contract on the executor, passed through, not enforced here.
	ModeDryRun Mode = "dry-run"
	// ModeLive is a real execution against the named agent.
	ModeLive Mode = "live"
)

// Call is one scenario execution request.
type Call struct {
	Scenario intent.Scenario
	AgentID  string
	ModelID  string
	Mode     Mode
}

// Outcome is the structured result of one scenario execution. Predicate
// evaluation against it happens in the execution core, not here.
type Outcome struct {
	Raw    string            // raw agent output
	Fields map[string]string // structured fields extracted from the output
}

// Executor executes one scenario against a named agent and model. An error
// return means a transport-level failure (timeout, connection); a wrong
// answer is not an error, it is an Outcome the predicate will reject.
type Executor interface {
	Execute(ctx context.Context, call Call) (*Outcome, error)
}

// FatalError marks an executor failure that must cancel the whole stage
// instead of being retried (e.g. the agent endpoint is gone).
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return "fatal executor error: " + e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }
