package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"relgate/internal/format"
	"relgate/internal/pipeline"
	"relgate/internal/signoff"
	"relgate/internal/store"
)

var signoffFlags struct {
	intentPath string
	reviewer   string
	notes      string
}

var signoffCmd = &cobra.Command{
	Use:   "signoff",
	Short: "Record or inspect human release approvals",
}

var signoffApproveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Append an approval to the signoff ledger",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runSignoffDecide(cmd, signoff.DecisionApproved)
	},
}

var signoffRejectCmd = &cobra.Command{
	Use:   "reject",
	Short: "Append a rejection to the signoff ledger",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runSignoffDecide(cmd, signoff.DecisionRejected)
	},
}

var signoffShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the signoff ledger for a candidate",
	RunE:  runSignoffShow,
}

func init() {
	pf := signoffCmd.PersistentFlags()
	pf.StringVar(&signoffFlags.intentPath, "intent", "", "Path to the intent document (required)")
	_ = signoffCmd.MarkPersistentFlagRequired("intent")

	for _, c := range []*cobra.Command{signoffApproveCmd, signoffRejectCmd} {
		f := c.Flags()
		f.StringVar(&signoffFlags.reviewer, "reviewer", "", "Reviewer identity (required)")
		f.StringVar(&signoffFlags.notes, "notes", "", "Free-form review notes")
		_ = c.MarkFlagRequired("reviewer")
	}

	signoffCmd.AddCommand(signoffApproveCmd)
	signoffCmd.AddCommand(signoffRejectCmd)
	signoffCmd.AddCommand(signoffShowCmd)
}

func runSignoffDecide(cmd *cobra.Command, decision string) error {
	spec, err := loadIntent(signoffFlags.intentPath)
	if err != nil {
		return err
	}
	return withPipeline(func(_ *pipeline.Orchestrator, st *store.SqlStore) error {
		ledger := signoff.NewLedger(st)
		var rec *store.SignoffRecord
		if decision == signoff.DecisionApproved {
			rec, err = ledger.Approve(spec.ID, spec.Version, signoffFlags.reviewer, signoffFlags.notes)
		} else {
			rec, err = ledger.Reject(spec.ID, spec.Version, signoffFlags.reviewer, signoffFlags.notes)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "signoff #%d recorded for %s: %s by %s\n",
			rec.Seq, spec.Key(), rec.Decision, rec.Reviewer)
		return nil
	})
}

func runSignoffShow(cmd *cobra.Command, _ []string) error {
	spec, err := loadIntent(signoffFlags.intentPath)
	if err != nil {
		return err
	}
	return withPipeline(func(_ *pipeline.Orchestrator, st *store.SqlStore) error {
		recs, err := signoff.NewLedger(st).History(spec.ID, spec.Version)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(recs) == 0 {
			fmt.Fprintf(out, "no signoff records for %s\n", spec.Key())
			return nil
		}
		fmt.Fprintln(out, format.Signoffs(recs, tableMode()))
		active := recs[len(recs)-1]
		fmt.Fprintf(out, "active: #%d %s by %s\n", active.Seq, active.Decision, active.Reviewer)
		return nil
	})
}
