package format

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"relgate/internal/canary"
	"relgate/internal/display"
	"relgate/internal/gate"
	"relgate/internal/run"
	"relgate/internal/store"
)

// FmtRate renders a pass/error rate as a percentage, "80.0%".
func FmtRate(r float64) string {
	return fmt.Sprintf("%.1f%%", r*100)
}

// FmtMillis renders a millisecond latency, "12.5ms".
func FmtMillis(ms float64) string {
	return fmt.Sprintf("%.1fms", ms)
}

// FmtStamp renders a store unix-nanosecond timestamp.
func FmtStamp(ns int64) string {
	if ns == 0 {
		return "-"
	}
	return time.Unix(0, ns).UTC().Format(time.RFC3339)
}

// Mark returns "✓" for true and "✗" for false.
func Mark(v bool) string {
	if v {
		return "✓"
	}
	return "✗"
}

// Truncate shortens s to maxLen characters, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// Report renders a simulation or test report, one row per scenario, with
// the overall pass rate in the footer.
func Report(r *run.Report, m Mode) string {
	tb := NewTable(m)
	tb.Header("Scenario", "Category", "OK", "Latency", "Attempts", "Failure")
	for _, o := range r.Outcomes {
		failure := ""
		if !o.Success {
			failure = fmt.Sprintf("%s: %s", o.FailureKind, Truncate(o.FailureReason, 60))
		}
		tb.Row(o.ScenarioID, o.Category, Mark(o.Success), FmtMillis(o.LatencyMS), o.Attempts, failure)
	}
	tb.Footer("", "", "", "", "pass rate", FmtRate(r.PassRate))
	tb.Columns(MarkCol(3), NumCol(4), NumCol(5))
	return tb.String()
}

// Decision renders a gate decision: verdict, rates against policy, reasons.
func Decision(d *gate.Decision, m Mode) string {
	tb := NewTable(m)
	tb.Header("Criterion", "Observed", "Required", "OK")
	tb.Row("overall pass rate", FmtRate(d.PassRate), FmtRate(d.Policy.MinPassRate),
		Mark(d.PassRate >= d.Policy.MinPassRate))
	for _, cat := range sortedKeys(d.Policy.CategoryMin) {
		min := d.Policy.CategoryMin[cat]
		rate, seen := d.CategoryRates[cat]
		observed := "no outcomes"
		if seen {
			observed = FmtRate(rate)
		}
		tb.Row("category "+cat, observed, FmtRate(min), Mark(seen && rate >= min))
	}
	tb.Columns(MarkCol(4))
	out := fmt.Sprintf("verdict: %s\n%s", d.Verdict, tb.String())
	if len(d.Reasons) > 0 {
		out += "\nreasons:\n  - " + strings.Join(d.Reasons, "\n  - ")
	}
	return out
}

// Stages renders pipeline stage records in pipeline order.
func Stages(recs []*store.StageState, m Mode) string {
	tb := NewTable(m)
	tb.Header("Stage", "Status", "Run", "Stale", "Updated")
	for _, rec := range recs {
		stale := ""
		if rec.Stale {
			stale = "stale"
		}
		tb.Row(display.StageWithCode(rec.Stage), rec.Status, Truncate(rec.RunID, 12), stale, FmtStamp(rec.UpdatedAt))
	}
	return tb.String()
}

// Session renders a canary session summary with its collected metrics.
func Session(s *canary.Session, m Mode) string {
	tb := NewTable(m)
	tb.Header("Metric", "Value")
	tb.Row("state", display.SessionState(string(s.State)))
	tb.Row("cohort", len(s.Cohort.Scenarios))
	if s.Metrics != nil {
		tb.Row("executed", s.Metrics.Executed)
		tb.Row("pass rate", FmtRate(s.Metrics.PassRate))
		tb.Row("error rate", FmtRate(s.Metrics.ErrorRate))
		tb.Row("latency p50", FmtMillis(s.Metrics.LatencyP50MS))
		tb.Row("latency p95", FmtMillis(s.Metrics.LatencyP95MS))
	}
	out := fmt.Sprintf("session %s for %s@%s\n%s", s.SessionID, s.IntentID, s.Version, tb.String())
	if len(s.Breaches) > 0 {
		out += "\nbreaches:\n  - " + strings.Join(s.Breaches, "\n  - ")
	}
	if s.AbortReason != "" {
		out += "\naborted: " + s.AbortReason
	}
	return out
}

// Signoffs renders the ledger history, newest last; the active record is
// the final row.
func Signoffs(recs []*store.SignoffRecord, m Mode) string {
	tb := NewTable(m)
	tb.Header("Seq", "Decision", "Reviewer", "Notes", "Recorded")
	for _, rec := range recs {
		tb.Row(rec.Seq, display.Decision(rec.Decision), rec.Reviewer, Truncate(rec.Notes, 40), FmtStamp(rec.CreatedAt))
	}
	tb.Columns(NumCol(1))
	return tb.String()
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
