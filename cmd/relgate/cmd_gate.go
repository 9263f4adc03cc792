package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"relgate/internal/format"
	"relgate/internal/gate"
	"relgate/internal/pipeline"
	"relgate/internal/store"
)

var gateFlags struct {
	intentPath string
}

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Evaluate the gate policy or finalize the release",
}

var gateEvaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Apply the intent's gate policy to the latest test report",
	RunE:  runGateEvaluate,
}

var gateFinalizeCmd = &cobra.Command{
	Use:   "finalize",
	Short: "Fuse gate, canary and signoff into the release artifact",
	RunE:  runGateFinalize,
}

func init() {
	f := gateCmd.PersistentFlags()
	f.StringVar(&gateFlags.intentPath, "intent", "", "Path to the intent document (required)")
	_ = gateCmd.MarkPersistentFlagRequired("intent")

	gateCmd.AddCommand(gateEvaluateCmd)
	gateCmd.AddCommand(gateFinalizeCmd)
}

func runGateEvaluate(cmd *cobra.Command, _ []string) error {
	spec, err := loadIntent(gateFlags.intentPath)
	if err != nil {
		return err
	}
	return withPipeline(func(o *pipeline.Orchestrator, _ *store.SqlStore) error {
		decision, err := o.EvaluateGate(spec)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), format.Decision(decision, tableMode()))
		if decision.Verdict != gate.VerdictPass {
			return fmt.Errorf("gate for %s: %w", spec.Key(), errGateBlocked)
		}
		return nil
	})
}

func runGateFinalize(cmd *cobra.Command, _ []string) error {
	spec, err := loadIntent(gateFlags.intentPath)
	if err != nil {
		return err
	}
	return withPipeline(func(o *pipeline.Orchestrator, _ *store.SqlStore) error {
		art, existing, err := o.Finalize(spec.ID, spec.Version)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if existing {
			fmt.Fprintf(out, "release %s already finalized for %s (inputs unchanged)\n", art.ReleaseID, spec.Key())
		} else {
			fmt.Fprintf(out, "release %s finalized for %s: %s\n", art.ReleaseID, spec.Key(), art.FinalVerdict)
		}
		fmt.Fprintf(out, "gate run %s, canary run %s, signoff #%d by %s\n",
			art.GateRunID, art.CanaryRunID, art.SignoffSeq, art.SignoffReviewer)
		return nil
	})
}
