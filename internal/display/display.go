// Package display provides human-readable names for machine codes.
//
// Rule: code is for machines, words are for humans.
// Use these functions in CLI output, markdown reports, logs, and docs.
// Keep raw codes for JSON fields, map keys, and equality comparisons.
package display

import "strings"

// --- Pipeline Stages ---

var stages = map[string]string{
	"simulate":       "Simulation",
	"test":           "Live Test",
	"gate":           "Gate Evaluation",
	"canary-prepare": "Canary Prepare",
	"canary-run":     "Canary Run",
	"release":        "Release",
}

// Stage returns the human-readable name for a stage key.
// Unknown keys are returned as-is.
func Stage(key string) string {
	if name, ok := stages[key]; ok {
		return name
	}
	return key
}

// StageWithCode returns "Gate Evaluation (gate)" format for dual-audience
// contexts.
func StageWithCode(key string) string {
	if name, ok := stages[key]; ok {
		return name + " (" + key + ")"
	}
	return key
}

// StagePath converts a slice of stage keys to a human-readable path.
// ["simulate", "test"] -> "Simulation -> Live Test"
func StagePath(keys []string) string {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = Stage(k)
	}
	return strings.Join(names, " → ")
}

// --- Verdicts and States ---

var verdicts = map[string]string{
	"pass":     "Pass",
	"fail":     "Fail",
	"released": "Released",
	"blocked":  "Blocked",
}

// Verdict returns the human-readable name for a gate or release verdict.
func Verdict(code string) string {
	if name, ok := verdicts[code]; ok {
		return name
	}
	return code
}

var sessionStates = map[string]string{
	"prepared":  "Prepared",
	"running":   "Running",
	"completed": "Completed",
	"aborted":   "Aborted",
}

// SessionState returns the human-readable name for a canary session state.
func SessionState(code string) string {
	if name, ok := sessionStates[code]; ok {
		return name
	}
	return code
}

// --- Failures and Decisions ---

var failureKinds = map[string]string{
	"semantic":  "Semantic Failure",
	"transport": "Transport Failure",
}

// FailureKind returns the human-readable name for an outcome failure kind.
func FailureKind(code string) string {
	if name, ok := failureKinds[code]; ok {
		return name
	}
	return code
}

var decisions = map[string]string{
	"approved": "Approved",
	"rejected": "Rejected",
}

// Decision returns the human-readable name for a signoff decision.
func Decision(code string) string {
	if name, ok := decisions[code]; ok {
		return name
	}
	return code
}
