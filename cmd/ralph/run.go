package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentops/ralph/internal/config"
	"github.com/agentops/ralph/internal/coordinator"
	"github.com/agentops/ralph/internal/executor"
	"github.com/agentops/ralph/internal/types"
)

var (
	runSingleTask    string
	runStartFrom     string
	runGatePhase     string
	runStateDir      string
	runResume        bool
	runMaxIterations int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drive the task loop to completion",
	Long: `run loads the configured task list and drives the Implementation, Test
Writing, Gates, Fix, and Review state machine once per pending task, in
priority order, until every task passes or one fails.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runSingleTask, "task", "", "run only this task id")
	runCmd.Flags().StringVar(&runStartFrom, "start-from", "", "skip pending tasks with id below this one")
	runCmd.Flags().StringVar(&runGatePhase, "gate-phase", "full", "gate phase to run after TEST (build, full, none)")
	runCmd.Flags().StringVar(&runStateDir, "state-dir", "", "override the session state directory (default: .ralph)")
	runCmd.Flags().StringVar(&agentTool, "agent-tool", "claude", "agent CLI binary to invoke")
	runCmd.Flags().BoolVar(&runResume, "resume", false, "skip tasks already marked passing in a prior session's task status")
	runCmd.Flags().IntVar(&runMaxIterations, "iteration-cap", 0, "override limits.max_iterations for this invocation (0: use config)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(nil)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runMaxIterations > 0 {
		cfg.Limits.MaxIterations = runMaxIterations
	}

	code, summary, err := coordinator.Run(ctx, coordinator.Options{
		Config:     cfg,
		Root:       root,
		StateDir:   runStateDir,
		Invoke:     defaultInvoker(cfg),
		GatePhase:  runGatePhase,
		SingleTask: runSingleTask,
		StartFrom:  runStartFrom,
		DryRun:     dryRun,
		Resume:     runResume,
		Verbosef:   VerbosePrintf,
	})
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "session %s: %s (%d/%d tasks passed, %s)\n",
		summary.SessionID, summary.Status, summary.TasksPassed, summary.TasksTotal, summary.Duration)

	os.Exit(code)
	return nil
}

// defaultInvoker shells out to the configured agent CLI (claude -p <prompt>),
// applying the role's configured timeout from cfg.Agents.
//
// Grounded on the teacher's cmd/ao/rpi_phased_stream.go spawnRuntimeDirectImpl
// (exec.CommandContext(ctx, command, "-p", prompt)).
func defaultInvoker(cfg *config.Config) func(ctx context.Context, role types.AgentRole, promptText string) (executor.Result, error) {
	return func(ctx context.Context, role types.AgentRole, promptText string) (executor.Result, error) {
		agentCfg := cfg.Agents[role]
		deadline := agentCfg.Timeout
		if deadline == 0 {
			deadline = cfg.Limits.AgentTimeout
		}
		return executor.Run(ctx, executor.Options{
			Args:     []string{agentTool, "-p", promptText},
			Deadline: deadline,
		})
	}
}
