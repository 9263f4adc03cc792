// Package signoff is the human approval ledger for release candidates.
// Records are append-only: history is preserved, and only the most recent
// record is active for finalization purposes.
package signoff

import (
	"errors"
	"fmt"

	"relgate/internal/logging"
	"relgate/internal/store"
)

// Decisions a reviewer can record.
const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// ErrReviewerRequired is returned when a record carries no reviewer identity.
var ErrReviewerRequired = errors.New("signoff: reviewer is required")

// Ledger appends and reads signoff records for release candidates. Sequence
// numbers come from the store and are strictly monotonic, so two records for
// the same candidate can never tie.
type Ledger struct {
	st store.Store
}

// NewLedger returns a ledger backed by the given store.
func NewLedger(st store.Store) *Ledger {
	return &Ledger{st: st}
}

// Approve appends an approval record and returns it.
func (l *Ledger) Approve(intentID, version, reviewer, notes string) (*store.SignoffRecord, error) {
	return l.append(intentID, version, reviewer, notes, DecisionApproved)
}

// Reject appends a rejection record and returns it.
func (l *Ledger) Reject(intentID, version, reviewer, notes string) (*store.SignoffRecord, error) {
	return l.append(intentID, version, reviewer, notes, DecisionRejected)
}

func (l *Ledger) append(intentID, version, reviewer, notes, decision string) (*store.SignoffRecord, error) {
	if reviewer == "" {
		return nil, ErrReviewerRequired
	}
	rec := &store.SignoffRecord{
		Intent:   intentID,
		Version:  version,
		Reviewer: reviewer,
		Decision: decision,
		Notes:    notes,
	}
	if _, err := l.st.AppendSignoff(rec); err != nil {
		return nil, fmt.Errorf("append signoff: %w", err)
	}
	logging.New("signoff").Info("recorded",
		"intent", intentID, "version", version,
		"reviewer", reviewer, "decision", decision, "seq", rec.Seq)
	return rec, nil
}

// Active returns the record that currently speaks for the candidate, or nil
// when no signoff has ever been recorded.
func (l *Ledger) Active(intentID, version string) (*store.SignoffRecord, error) {
	return l.st.ActiveSignoff(intentID, version)
}

// History returns the candidate's full ledger, oldest first.
func (l *Ledger) History(intentID, version string) ([]*store.SignoffRecord, error) {
	return l.st.ListSignoffs(intentID, version)
}
