package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"relgate/internal/pipeline"
	"relgate/internal/release"
	"relgate/internal/store"
)

var verifyFlags struct {
	selector   string
	intentPath string
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Re-check a finalized release's referential integrity",
	Long: "Verify re-resolves every artifact a release references and reports\n" +
		"all broken invariants at once. Read-only: the store is never mutated.",
	RunE: runVerify,
}

func init() {
	f := verifyCmd.Flags()
	f.StringVar(&verifyFlags.selector, "release", release.SelectorLatest,
		"Release id, or \"latest\"")
	f.StringVar(&verifyFlags.intentPath, "intent", "",
		"Intent document scoping \"latest\" to one candidate (optional)")
}

func runVerify(cmd *cobra.Command, _ []string) error {
	intentID, version := "", ""
	if verifyFlags.intentPath != "" {
		spec, err := loadIntent(verifyFlags.intentPath)
		if err != nil {
			return err
		}
		intentID, version = spec.ID, spec.Version
	}
	return withPipeline(func(_ *pipeline.Orchestrator, st *store.SqlStore) error {
		art, err := release.NewChecker(st).Verify(verifyFlags.selector, intentID, version)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "release %s for %s@%s verified: %s, no integrity errors\n",
			art.ReleaseID, art.IntentID, art.Version, art.FinalVerdict)
		return nil
	})
}
