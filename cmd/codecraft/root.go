package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "codecraft",
	Short: "CodeCraft - policy evaluation and refactor orchestration engine",
	Long: `CodeCraft is a code-governance service that evaluates source code against
versioned policy rule sets and orchestrates automated refactor runs.

It provides:
  - Policy rule-set import, validation, and cataloging
  - Regex-based policy scanning with deterministic findings
  - Pluggable transform adapters (built-in stub or model-backed)
  - Compliance scoring with severity-weighted violation reduction
  - Asynchronous refactor runs with polling, plus a synchronous path`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
