package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	dryRun  bool
	verbose bool
	output  string
	cfgFile string
)

// rootCmd is the base command when ralph is called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "ralph",
	Short: "Verified-loop task orchestrator",
	Long: `ralph drives an external agent CLI through a verified IMPL, TEST, GATES,
REVIEW loop, one task at a time, and resists a managed agent gaming its own
pass/fail signal.

Commands:
  init    Scaffold a config and empty task list
  scan    Check that the configured agent tool and gates are reachable
  run     Drive the task loop to completion
  verify  Run post-completion gate and service verification`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		syncConfigFlagToEnv()
	},
}

// Execute runs the root command and exits the process with its result.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(2)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "show what would run without executing")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "output format (table, jsonl)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .ralph/config.yaml)")
}

func syncConfigFlagToEnv() {
	path := strings.TrimSpace(cfgFile)
	if path == "" {
		return
	}
	_ = os.Setenv("RALPH_CONFIG", path)
}

// VerbosePrintf prints only when verbose mode is enabled.
func VerbosePrintf(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
