package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"relgate/internal/format"
	"relgate/internal/pipeline"
	"relgate/internal/store"
)

var canaryFlags struct {
	intentPath string
	sampleSize int
	exec       execFlags
}

var canaryCmd = &cobra.Command{
	Use:   "canary",
	Short: "Prepare and run the limited-scope canary cohort",
}

var canaryPrepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Sample a canary cohort for a candidate that passed the gate",
	RunE:  runCanaryPrepare,
}

var canaryRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the prepared canary cohort and collect metrics",
	RunE:  runCanaryRun,
}

func init() {
	pf := canaryCmd.PersistentFlags()
	pf.StringVar(&canaryFlags.intentPath, "intent", "", "Path to the intent document (required)")
	_ = canaryCmd.MarkPersistentFlagRequired("intent")

	canaryPrepareCmd.Flags().IntVar(&canaryFlags.sampleSize, "sample", 0,
		"Cohort size (0 = intent's canary policy)")
	addExecFlags(canaryRunCmd.Flags(), &canaryFlags.exec)

	canaryCmd.AddCommand(canaryPrepareCmd)
	canaryCmd.AddCommand(canaryRunCmd)
}

func runCanaryPrepare(cmd *cobra.Command, _ []string) error {
	spec, err := loadIntent(canaryFlags.intentPath)
	if err != nil {
		return err
	}
	return withPipeline(func(o *pipeline.Orchestrator, _ *store.SqlStore) error {
		session, err := o.CanaryPrepare(spec, canaryFlags.sampleSize)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "prepared canary session %s for %s (cohort %d)\n",
			session.SessionID, spec.Key(), len(session.Cohort.Scenarios))
		return nil
	})
}

func runCanaryRun(cmd *cobra.Command, _ []string) error {
	spec, err := loadIntent(canaryFlags.intentPath)
	if err != nil {
		return err
	}
	return withPipeline(func(o *pipeline.Orchestrator, _ *store.SqlStore) error {
		session, runErr := o.CanaryRun(cmd.Context(), spec, newRunner(canaryFlags.exec),
			canaryFlags.exec.agentID, canaryFlags.exec.modelID)
		if session != nil {
			fmt.Fprintln(cmd.OutOrStdout(), format.Session(session, tableMode()))
		}
		return runErr
	})
}
