package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"relgate/internal/intent"
	"relgate/internal/pipeline"
	"relgate/internal/release"
	"relgate/internal/sample"
)

// runCLI executes the root command in-process with fresh output capture.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// writeIntent marshals the spec to a YAML file under dir.
func writeIntent(t *testing.T, dir string, spec *intent.Spec) string {
	t.Helper()
	data, err := yaml.Marshal(spec)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "intent.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// routerSpec builds a ten-scenario intent the stub executor fully passes,
// then flips the expectation on failDrawn of the scenarios the default
// sample of five would draw, so the live pass rate is known in advance.
func routerSpec(t *testing.T, failDrawn int) *intent.Spec {
	t.Helper()
	spec := &intent.Spec{
		ID:      "support-triage",
		Version: "2.1.0",
		Purpose: "route inbound tickets",
		Gate:    intent.GatePolicy{MinPassRate: 0.8},
		Canary:  intent.CanaryPolicy{SampleSize: 3, MaxErrorRate: 0.5},
	}
	for i := 0; i < 10; i++ {
		spec.Scenarios = append(spec.Scenarios, intent.Scenario{
			ID:       fmt.Sprintf("s%02d", i+1),
			Category: "core",
			Input:    map[string]string{"text": "payment declined twice"},
			Expect:   intent.Expect{Equals: map[string]string{"queue": "billing"}},
		})
	}
	drawn := sample.Draw(spec, 5, sample.DefaultSeed).IDs()
	if len(drawn) != 5 {
		t.Fatalf("drew %d scenarios, want 5", len(drawn))
	}
	for i := 0; i < failDrawn; i++ {
		sc := spec.ScenarioByID(drawn[i])
		sc.Expect = intent.Expect{Equals: map[string]string{"queue": "bug"}}
	}
	return spec
}

func pipelineArgs(dir string, args ...string) []string {
	base := []string{
		"--db", filepath.Join(dir, "relgate.db"),
		"--artifact-dir", filepath.Join(dir, "artifacts"),
	}
	return append(args, base...)
}

func TestE2EReleaseFlow(t *testing.T) {
	dir := t.TempDir()
	spec := routerSpec(t, 1) // 4/5 drawn scenarios pass
	path := writeIntent(t, dir, spec)

	out, err := runCLI(t, pipelineArgs(dir, "validate", "--intent", path)...)
	if err != nil {
		t.Fatalf("validate: %v\n%s", err, out)
	}

	out, err = runCLI(t, pipelineArgs(dir, "simulate", "--intent", path, "--sample", "5")...)
	if err != nil {
		t.Fatalf("simulate: %v\n%s", err, out)
	}

	out, err = runCLI(t, pipelineArgs(dir, "test", "--intent", path, "--sample", "5")...)
	if err != nil {
		t.Fatalf("test: %v\n%s", err, out)
	}
	if !strings.Contains(out, "80.0%") {
		t.Errorf("test output missing 80.0%% pass rate:\n%s", out)
	}

	out, err = runCLI(t, pipelineArgs(dir, "gate", "evaluate", "--intent", path)...)
	if err != nil {
		t.Fatalf("gate evaluate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "verdict: pass") {
		t.Errorf("expected passing verdict:\n%s", out)
	}

	out, err = runCLI(t, pipelineArgs(dir, "canary", "prepare", "--intent", path)...)
	if err != nil {
		t.Fatalf("canary prepare: %v\n%s", err, out)
	}
	out, err = runCLI(t, pipelineArgs(dir, "canary", "run", "--intent", path)...)
	if err != nil {
		t.Fatalf("canary run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Completed") {
		t.Errorf("expected completed canary:\n%s", out)
	}

	out, err = runCLI(t, pipelineArgs(dir, "signoff", "approve", "--intent", path, "--reviewer", "E2E Bot")...)
	if err != nil {
		t.Fatalf("signoff approve: %v\n%s", err, out)
	}

	out, err = runCLI(t, pipelineArgs(dir, "gate", "finalize", "--intent", path)...)
	if err != nil {
		t.Fatalf("gate finalize: %v\n%s", err, out)
	}
	if !strings.Contains(out, "released") {
		t.Errorf("expected released verdict:\n%s", out)
	}
	releaseFile := filepath.Join(dir, "artifacts", "release", "release.json")
	if _, err := os.Stat(releaseFile); err != nil {
		t.Errorf("release.json not materialized: %v", err)
	}

	out, err = runCLI(t, pipelineArgs(dir, "verify", "--release", "latest")...)
	if err != nil {
		t.Fatalf("verify: %v\n%s", err, out)
	}
	if !strings.Contains(out, "no integrity errors") {
		t.Errorf("expected clean verify:\n%s", out)
	}

	out, err = runCLI(t, pipelineArgs(dir, "status", "--intent", path)...)
	if err != nil {
		t.Fatalf("status: %v\n%s", err, out)
	}
	if !strings.Contains(out, "release") {
		t.Errorf("expected release stage in status:\n%s", out)
	}
}

func TestE2EGateBlocksRelease(t *testing.T) {
	dir := t.TempDir()
	spec := routerSpec(t, 2) // 3/5 drawn scenarios pass
	path := writeIntent(t, dir, spec)

	if out, err := runCLI(t, pipelineArgs(dir, "simulate", "--intent", path, "--sample", "5")...); err != nil {
		t.Fatalf("simulate: %v\n%s", err, out)
	}
	if out, err := runCLI(t, pipelineArgs(dir, "test", "--intent", path, "--sample", "5")...); err != nil {
		t.Fatalf("test: %v\n%s", err, out)
	}

	out, err := runCLI(t, pipelineArgs(dir, "gate", "evaluate", "--intent", path)...)
	if err == nil {
		t.Fatalf("gate evaluate passed, want blocked:\n%s", out)
	}
	if got := exitCode(err); got != 3 {
		t.Errorf("exit code = %d, want 3", got)
	}
	if !strings.Contains(out, "overall pass rate 0.6 < 0.8") {
		t.Errorf("expected exact gate reason:\n%s", out)
	}

	// Finalizing before anyone signs off is out of order, not incomplete.
	_, err = runCLI(t, pipelineArgs(dir, "gate", "finalize", "--intent", path)...)
	var ooo *pipeline.OutOfOrderError
	if !errors.As(err, &ooo) {
		t.Fatalf("finalize err = %v, want OutOfOrderError", err)
	}
	if ooo.Missing != "signoff" {
		t.Errorf("missing stage = %q, want signoff", ooo.Missing)
	}

	// With an approval on file the failing gate is what blocks the release.
	if out, err := runCLI(t, pipelineArgs(dir, "signoff", "approve", "--intent", path, "--reviewer", "E2E Bot")...); err != nil {
		t.Fatalf("approve: %v\n%s", err, out)
	}
	_, err = runCLI(t, pipelineArgs(dir, "gate", "finalize", "--intent", path)...)
	var inc *release.IncompleteReleaseError
	if !errors.As(err, &inc) {
		t.Fatalf("finalize err = %v, want IncompleteReleaseError", err)
	}
	if got := exitCode(err); got != 3 {
		t.Errorf("exit code = %d, want 3", got)
	}
}

func TestSchemaRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "skeleton.yaml")
	if out, err := runCLI(t, pipelineArgs(dir, "schema", "--out", path)...); err != nil {
		t.Fatalf("schema: %v\n%s", err, out)
	}
	if out, err := runCLI(t, pipelineArgs(dir, "validate", "--intent", path)...); err != nil {
		t.Fatalf("skeleton does not validate: %v\n%s", err, out)
	}
}

func TestMissingIntentExitsTwo(t *testing.T) {
	dir := t.TempDir()
	_, err := runCLI(t, pipelineArgs(dir, "validate", "--intent", filepath.Join(dir, "nope.yaml"))...)
	if err == nil {
		t.Fatal("expected error for missing intent file")
	}
	if got := exitCode(err); got != 2 {
		t.Errorf("exit code = %d, want 2", got)
	}
}
