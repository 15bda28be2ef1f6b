// Package cli implements cortexctl, the cortexd command-line interface,
// using Cobra. Each subcommand is a thin wrapper around the same
// packages the daemon wires — there is no command-specific logic here
// beyond flag parsing and output formatting.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cortexctl",
	Short: "cortexctl — inspect and operate the cortexd cognitive substrate",
	Long: `cortexctl is the operator CLI for cortexd, the in-process cognitive
operations substrate: self-healing, real-time learning, and knowledge
compression running behind one shared store and message bus.`,
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
