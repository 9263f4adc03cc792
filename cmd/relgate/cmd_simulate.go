package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"relgate/internal/format"
	"relgate/internal/pipeline"
	"relgate/internal/sample"
	"relgate/internal/store"
)

var simulateFlags struct {
	intentPath string
	sampleSize int
	seed       int64
	exec       execFlags
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Dry-run a sampled cohort against the candidate agent",
	Long: "Simulate validates the intent, draws a seeded scenario sample and\n" +
		"executes it in dry-run mode. Nothing outside the pipeline is mutated.",
	RunE: runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simulateFlags.intentPath, "intent", "", "Path to the intent document (required)")
	f.IntVar(&simulateFlags.sampleSize, "sample", 0, "Sample size (0 = full scenario set)")
	f.Int64Var(&simulateFlags.seed, "seed", sample.DefaultSeed, "Sampling seed")
	addExecFlags(f, &simulateFlags.exec)

	_ = simulateCmd.MarkFlagRequired("intent")
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	spec, err := loadIntent(simulateFlags.intentPath)
	if err != nil {
		return err
	}
	return withPipeline(func(o *pipeline.Orchestrator, _ *store.SqlStore) error {
		report, err := o.Simulate(cmd.Context(), spec, newRunner(simulateFlags.exec),
			simulateFlags.sampleSize, simulateFlags.seed,
			simulateFlags.exec.agentID, simulateFlags.exec.modelID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "simulation %s for %s\n", report.RunID, spec.Key())
		if report.Truncated {
			fmt.Fprintf(out, "note: sample truncated to the full pool of %d scenarios\n", len(report.Outcomes))
		}
		fmt.Fprintln(out, format.Report(report, tableMode()))
		return nil
	})
}
