package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"relgate/internal/intent"
)

var schemaFlags struct {
	out string
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the canonical intent document skeleton",
	RunE:  runSchema,
}

func init() {
	schemaCmd.Flags().StringVarP(&schemaFlags.out, "out", "o", "", "Write the skeleton to a file instead of stdout")
}

func runSchema(cmd *cobra.Command, _ []string) error {
	if schemaFlags.out == "" {
		fmt.Fprint(cmd.OutOrStdout(), intent.Skeleton)
		return nil
	}
	if err := os.WriteFile(schemaFlags.out, []byte(intent.Skeleton), 0o644); err != nil {
		return fmt.Errorf("write skeleton: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote intent skeleton to %s\n", schemaFlags.out)
	return nil
}
