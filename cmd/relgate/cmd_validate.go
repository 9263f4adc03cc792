package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"relgate/internal/format"
	"relgate/internal/intent"
)

var validateFlags struct {
	intentPath string
	show       bool
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate an intent document without running anything",
	RunE:  runValidate,
}

func init() {
	f := validateCmd.Flags()
	f.StringVar(&validateFlags.intentPath, "intent", "", "Path to the intent document (YAML or JSON, required)")
	f.BoolVar(&validateFlags.show, "show", false, "Print a summary of the parsed intent")

	_ = validateCmd.MarkFlagRequired("intent")
}

func runValidate(cmd *cobra.Command, _ []string) error {
	spec, err := loadIntent(validateFlags.intentPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "intent %s is valid (%d scenarios)\n", spec.Key(), len(spec.Scenarios))
	if !validateFlags.show {
		return nil
	}

	tb := format.NewTable(tableMode())
	tb.Header("Scenario", "Category", "Predicate")
	for _, sc := range spec.Scenarios {
		tb.Row(sc.ID, sc.Category, describeExpect(sc.Expect))
	}
	fmt.Fprintf(out, "purpose: %s\n", spec.Purpose)
	if spec.Owner.Team != "" || spec.Owner.Name != "" {
		fmt.Fprintf(out, "owner: %s %s\n", spec.Owner.Name, spec.Owner.Team)
	}
	fmt.Fprintf(out, "gate: min pass rate %s", format.FmtRate(spec.Gate.MinPassRate))
	if len(spec.Gate.CategoryMin) > 0 {
		fmt.Fprintf(out, " (%d category minimums)", len(spec.Gate.CategoryMin))
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, tb.String())
	return nil
}

func describeExpect(e intent.Expect) string {
	clauses := 0
	clauses += len(e.Contains)
	clauses += len(e.Equals)
	clauses += len(e.Fields)
	return fmt.Sprintf("%d clause(s)", clauses)
}
