package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "reprime",
	Short: "Decay-prevention engine for long-lived memory stores",
	Long:  "Reprime watches a memory store for retention decay and runs progressive-revelation priming sessions to reinstate items before they fade out.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
}
