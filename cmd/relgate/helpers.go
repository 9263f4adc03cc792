package main

import (
	"errors"
	"io/fs"
	"time"

	"github.com/spf13/pflag"

	"relgate/internal/agent"
	"relgate/internal/format"
	"relgate/internal/intent"
	"relgate/internal/pipeline"
	"relgate/internal/release"
	"relgate/internal/run"
	"relgate/internal/store"
)

// errGateBlocked marks a gate or finalize refusal so the driver can exit 3.
var errGateBlocked = errors.New("blocked")

// Exit codes: 0 success, 1 stage or internal failure, 2 missing input or
// unknown artifact, 3 gate/finalize blocked.
func exitCode(err error) int {
	var incomplete *release.IncompleteReleaseError
	var integrity *release.IntegrityError
	switch {
	case errors.As(err, &incomplete), errors.As(err, &integrity), errors.Is(err, errGateBlocked):
		return 3
	case errors.Is(err, release.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return 2
	}
	return 1
}

// openStore opens the SQLite store from the persistent flags. Callers own
// the Close.
func openStore() (*store.SqlStore, error) {
	return store.Open(rootFlags.dbPath, store.WithArtifactDir(rootFlags.artifactDir))
}

// withPipeline opens the store, builds the orchestrator and hands both to
// fn, closing the store afterwards.
func withPipeline(fn func(*pipeline.Orchestrator, *store.SqlStore) error) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(pipeline.New(st), st)
}

func loadIntent(path string) (*intent.Spec, error) {
	return intent.LoadFromPath(path)
}

// execFlags are shared by every command that executes scenarios.
type execFlags struct {
	agentID string
	modelID string
	workers int
	timeout time.Duration
	retries int
}

func addExecFlags(f *pflag.FlagSet, ef *execFlags) {
	f.StringVar(&ef.agentID, "agent", "stub", "Agent identifier under evaluation")
	f.StringVar(&ef.modelID, "model", "rules-v1", "Model identifier backing the agent")
	f.IntVar(&ef.workers, "workers", 0, "Worker pool size (0 = default)")
	f.DurationVar(&ef.timeout, "timeout", 0, "Per-scenario timeout (0 = default)")
	f.IntVar(&ef.retries, "retries", 0, "Transport retry budget (0 = default, negative = disabled)")
}

func newRunner(f execFlags) *run.Runner {
	return run.New(agent.NewStub(), run.Config{
		Workers: f.workers,
		Timeout: f.timeout,
		Retries: f.retries,
	})
}

func tableMode() format.Mode {
	return format.ModeFor(rootFlags.markdown)
}
