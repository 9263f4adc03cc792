package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"relgate/internal/format"
	"relgate/internal/pipeline"
	"relgate/internal/store"
)

var statusFlags struct {
	intentPath string
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline stage progress for a candidate",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusFlags.intentPath, "intent", "", "Path to the intent document (required)")
	_ = statusCmd.MarkFlagRequired("intent")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	spec, err := loadIntent(statusFlags.intentPath)
	if err != nil {
		return err
	}
	return withPipeline(func(o *pipeline.Orchestrator, _ *store.SqlStore) error {
		recs, err := o.Stages(spec.ID, spec.Version)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(recs) == 0 {
			fmt.Fprintf(out, "no pipeline activity for %s\n", spec.Key())
			return nil
		}
		fmt.Fprintf(out, "pipeline for %s\n", spec.Key())
		fmt.Fprintln(out, format.Stages(recs, tableMode()))
		return nil
	})
}
