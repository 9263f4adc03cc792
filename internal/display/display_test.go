package display

import "testing"

func TestStage(t *testing.T) {
	cases := []struct {
		key, want string
	}{
		{"simulate", "Simulation"},
		{"test", "Live Test"},
		{"gate", "Gate Evaluation"},
		{"canary-prepare", "Canary Prepare"},
		{"canary-run", "Canary Run"},
		{"release", "Release"},
		{"unknown", "unknown"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Stage(tc.key); got != tc.want {
			t.Errorf("Stage(%q) = %q, want %q", tc.key, got, tc.want)
		}
	}
}

func TestStageWithCode(t *testing.T) {
	if got := StageWithCode("gate"); got != "Gate Evaluation (gate)" {
		t.Errorf("got %q", got)
	}
	if got := StageWithCode("unknown"); got != "unknown" {
		t.Errorf("got %q", got)
	}
}

func TestStagePath(t *testing.T) {
	got := StagePath([]string{"simulate", "test", "gate"})
	want := "Simulation → Live Test → Gate Evaluation"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestVerdict(t *testing.T) {
	if got := Verdict("pass"); got != "Pass" {
		t.Errorf("got %q", got)
	}
	if got := Verdict("x999"); got != "x999" {
		t.Errorf("got %q", got)
	}
}

func TestSessionState(t *testing.T) {
	if got := SessionState("aborted"); got != "Aborted" {
		t.Errorf("got %q", got)
	}
}

func TestFailureKind(t *testing.T) {
	if got := FailureKind("transport"); got != "Transport Failure" {
		t.Errorf("got %q", got)
	}
}

func TestDecision(t *testing.T) {
	if got := Decision("approved"); got != "Approved" {
		t.Errorf("got %q", got)
	}
}
