// Package cli implements the hearthd command-line interface using Cobra.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hearthd",
	Short: "hearthd — local multi-model inference server",
	Long: `hearthd serves an OpenAI-compatible API over a pool of locally
hosted model instances, sharing GPU residency and task concurrency across
every declared model.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
