package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentops/ralph/internal/config"
	"github.com/agentops/ralph/internal/coordinator"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run post-completion gate and service verification",
	Long: `verify re-runs the full gate sequence and starts every configured
service, waiting for its health paths to return 2xx, without running the
task loop. Use it after a full run to confirm nothing regressed.`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(nil)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	code, result, err := coordinator.Verify(cmd.Context(), coordinator.VerifyOptions{
		Config: cfg,
		Root:   root,
	})
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "gates passed: %v, services ready: %v\n", result.GatesPassed, result.ServicesReady)
	if len(result.FailedServices) > 0 {
		fmt.Fprintf(w, "failed services: %v\n", result.FailedServices)
	}

	os.Exit(code)
	return nil
}
