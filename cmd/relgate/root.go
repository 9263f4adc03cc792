package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"relgate/internal/logging"
	"relgate/internal/store"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	logLevel    string
	logFormat   string
	dbPath      string
	artifactDir string
	markdown    bool
}

var rootCmd = &cobra.Command{
	Use:   "relgate",
	Short: "Release gate pipeline for intent-driven agent rollouts",
	Long: "Relgate drives a release candidate through validation, dry-run\n" +
		"simulation, live testing, gate evaluation, canary and signoff,\n" +
		"and fuses the results into a final release artifact.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logging.Init(logging.ParseLevel(rootFlags.logLevel), rootFlags.logFormat)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&rootFlags.logFormat, "log-format", "text", "Log format (text, json)")
	pf.StringVar(&rootFlags.dbPath, "db", store.DefaultDBPath, "Store DB path")
	pf.StringVar(&rootFlags.artifactDir, "artifact-dir", store.DefaultArtifactDir, "Artifact mirror directory")
	pf.BoolVar(&rootFlags.markdown, "markdown", false, "Render tables as Markdown")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(gateCmd)
	rootCmd.AddCommand(canaryCmd)
	rootCmd.AddCommand(signoffCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}
