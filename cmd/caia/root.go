package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "caia",
	Short: "Idea-to-issues decomposition pipeline",
	Long: `Caia turns a free-form project idea into a validated work
breakdown and replicates it into an external issue tracker.

The pipeline decomposes an idea through seven levels, from initiative
down to atomic units, runs it through a quality gate with bounded
rework, analyzes risk and effort in parallel streams, and bulk-creates
the hierarchy as linked tracker issues with rate limiting and
partial-failure handling.

Typical usage:
  caia run "Build a customer portal" --create
  caia resume <hierarchy-id>
  caia list`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
