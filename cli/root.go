// Package cli implements the allpairs command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const appVersion = "1.0.0"

var rootCmd = &cobra.Command{
	Use:     "allpairs",
	Short:   "All-pairs inter-node bandwidth validation",
	Long:    "allpairs exercises every unordered pair of cluster nodes exactly once,\nin parallel-safe rounds, through an external bandwidth benchmark.",
	Version: appVersion,
}

// Execute runs the command tree.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}
