package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"relgate/internal/format"
	"relgate/internal/pipeline"
	"relgate/internal/sample"
	"relgate/internal/store"
)

var testFlags struct {
	intentPath string
	sampleSize int
	seed       int64
	exec       execFlags
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run the scenario cohort live and record a test report",
	Long: "Test executes scenarios in live mode and records the report the\n" +
		"gate evaluates. Requires a completed simulation for the candidate.",
	RunE: runLiveTest,
}

func init() {
	f := testCmd.Flags()
	f.StringVar(&testFlags.intentPath, "intent", "", "Path to the intent document (required)")
	f.IntVar(&testFlags.sampleSize, "sample", 0, "Sample size (0 = full scenario set)")
	f.Int64Var(&testFlags.seed, "seed", sample.DefaultSeed, "Sampling seed")
	addExecFlags(f, &testFlags.exec)

	_ = testCmd.MarkFlagRequired("intent")
}

func runLiveTest(cmd *cobra.Command, _ []string) error {
	spec, err := loadIntent(testFlags.intentPath)
	if err != nil {
		return err
	}
	return withPipeline(func(o *pipeline.Orchestrator, _ *store.SqlStore) error {
		report, err := o.Test(cmd.Context(), spec, newRunner(testFlags.exec),
			testFlags.sampleSize, testFlags.seed,
			testFlags.exec.agentID, testFlags.exec.modelID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "test %s for %s\n", report.RunID, spec.Key())
		fmt.Fprintln(out, format.Report(report, tableMode()))
		return nil
	})
}
