// Package coordinator implements C9: the top-level driver that loads
// configuration and a task list, opens a session, runs the C8 task loop
// once per pending task in priority order, and reports a run summary and
// exit code.
//
// Grounded on the teacher's cmd/ao/rpi_phased.go runPhasedEngine (the
// top-level function that resolves a worktree, opens a ledger, drives the
// phased engine task-by-task, and maps the outcome to a process exit code)
// and cmd/ao/rpi_status.go's aggregate-summary rendering — generalized from
// a single worktree-scoped run to an ordered multi-task list driven by the
// session/task-status artifacts C3 owns.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agentops/ralph/internal/bus"
	"github.com/agentops/ralph/internal/config"
	"github.com/agentops/ralph/internal/executor"
	"github.com/agentops/ralph/internal/guardrail"
	"github.com/agentops/ralph/internal/loop"
	"github.com/agentops/ralph/internal/rpi"
	"github.com/agentops/ralph/internal/session"
	"github.com/agentops/ralph/internal/types"
)

// worktreeOpTimeout bounds every individual git plumbing call the worktree
// lifecycle makes (create, merge, remove, branch heal).
const worktreeOpTimeout = 30 * time.Second

// Exit codes, the stable contract from spec.md §6.1.
const (
	ExitSuccess          = 0
	ExitUsageConfig      = 2
	ExitTaskFailed       = 3
	ExitGateFatal        = 4
	ExitUIVerifyFailed   = 5
	ExitTampering        = 6
	ExitUserAbort        = 7
	ExitAgentUnavailable = 8
	ExitServiceStartup   = 9
)

// Options configures one coordinator run.
type Options struct {
	Config *config.Config
	Root   string // working directory / repository root the loop operates in

	// StateDir holds the session, task-status, and timeline artifacts.
	// Defaults to Root/.ralph.
	StateDir string

	Invoke loop.AgentInvoker

	// GatePhase selects which of the config's gate lists the task loop's
	// GATES phase runs: "build", "full" (default), or "none".
	GatePhase string

	SingleTask string // run only this task id, if set
	StartFrom  string // skip ordered tasks before this id, if set
	DryRun     bool   // list tasks and exit without running anything

	// Resume cross-checks the session's task-status store against the
	// loaded task list before the run starts, marking any task the store
	// already has passing as passing here too. This covers a task list
	// document that was regenerated or replaced without the passes the
	// coordinator previously wrote back to it (spec.md §4.9).
	Resume bool

	// Verbosef, if set, receives progress messages from worktree isolation
	// (cfg.Git.WorktreeIsolation) the way the task loop's own events do not
	// cover: creation, merge, and cleanup of the sibling git worktree.
	Verbosef func(string, ...any)
}

// Summary is the aggregate result of a Run call.
type Summary struct {
	SessionID   string
	TasksTotal  int
	TasksPassed int
	TasksFailed int
	Duration    time.Duration
	Status      string // "completed", "failed", or "aborted"
}

// Run drives the full coordinator lifecycle described in spec.md §4.9 and
// returns the process exit code this invocation should report.
func Run(ctx context.Context, opts Options) (int, Summary, error) {
	start := time.Now()

	if opts.Config == nil {
		return ExitUsageConfig, Summary{}, ErrNoConfig
	}
	cfg := opts.Config

	tl, err := LoadTaskList(cfg.TaskSource.Path)
	if err != nil {
		return ExitUsageConfig, Summary{}, err
	}
	if err := types.ValidateTaskList(tl); err != nil {
		return ExitUsageConfig, Summary{}, fmt.Errorf("coordinator: invalid task list: %w", err)
	}
	if opts.SingleTask != "" {
		found := false
		for _, tk := range tl.Tasks {
			if tk.ID == opts.SingleTask {
				found = true
				break
			}
		}
		if !found {
			return ExitUsageConfig, Summary{}, fmt.Errorf("%w: %s", ErrTaskNotFound, opts.SingleTask)
		}
	}

	// Resolved once, before any worktree chdir below, so a relative
	// task_source path keeps pointing at the caller's task list rather than
	// a same-named file inside an isolated worktree checkout.
	taskListPath, err := filepath.Abs(cfg.TaskSource.Path)
	if err != nil {
		return ExitUsageConfig, Summary{}, fmt.Errorf("coordinator: resolve task list path: %w", err)
	}

	if opts.DryRun {
		return ExitSuccess, Summary{TasksTotal: len(tl.Tasks), Status: "dry-run"}, nil
	}

	stateDir := opts.StateDir
	if stateDir == "" {
		stateDir = filepath.Join(opts.Root, ".ralph")
	}

	store, err := session.New(stateDir)
	if err != nil {
		return ExitUsageConfig, Summary{}, err
	}

	if opts.Resume {
		if ts, rerr := store.ReadTaskStatus(); rerr != nil {
			if errors.Is(rerr, session.ErrTampering) {
				return ExitTampering, Summary{}, rerr
			}
			return ExitUsageConfig, Summary{}, rerr
		} else {
			for i := range tl.Tasks {
				if entry, ok := ts.Tasks[tl.Tasks[i].ID]; ok && entry.Passes {
					tl.Tasks[i].Passes = true
				}
			}
		}
	}

	b, err := bus.Open(filepath.Join(stateDir, "timeline.jsonl"), rpi.GenerateRunID(), nil)
	if err != nil {
		return ExitUsageConfig, Summary{}, err
	}
	defer b.Close()

	branch, _ := rpi.GetCurrentBranch(opts.Root, 5*time.Second)
	commit, _ := headCommit(ctx, opts.Root)

	sess, err := store.CreateSession(cfg.TaskSource.Path, branch, commit)
	if err != nil {
		return ExitUsageConfig, Summary{}, err
	}
	_, _ = b.Emit(types.EventSessionStarted, map[string]any{
		"session_id": sess.SessionID, "task_source": cfg.TaskSource.Path,
	})

	summary := Summary{SessionID: sess.SessionID, TasksTotal: len(tl.Tasks)}
	status := "completed"
	exitCode := ExitSuccess

	engineRoot := opts.Root
	if cfg.Git.WorktreeIsolation {
		worktreeRoot, cleanup, werr := prepareWorktree(opts.Root, cfg, opts.Verbosef)
		if werr != nil {
			return ExitUsageConfig, Summary{}, fmt.Errorf("coordinator: %w", werr)
		}
		engineRoot = worktreeRoot
		defer func() { cleanup(status == "completed") }()
	}

	enforcer := guardrail.New(engineRoot, cfg.TestPaths, b).
		SetAllowModifyExistingTestFiles(cfg.Guardrail.Resolve())
	gateSpecs := selectGates(cfg, opts.GatePhase)

runLoop:
	for {
		if ctx.Err() != nil {
			status = "aborted"
			exitCode = ExitUserAbort
			break
		}

		task, ok := nextTask(tl, opts.SingleTask, opts.StartFrom)
		if !ok {
			break
		}

		_, _ = b.Emit(types.EventTaskStarted, map[string]any{"task": task.ID})

		engine := &loop.Engine{
			Invoke:        opts.Invoke,
			Bus:           b,
			Guardrail:     enforcer,
			GateSpecs:     gateSpecs,
			Root:          engineRoot,
			SessionToken:  sess.SessionToken,
			MaxIterations: cfg.Limits.MaxIterations,
		}

		outcome, runErr := engine.Run(ctx, task)
		if runErr != nil {
			status, exitCode = classifyEngineError(runErr)
			_, _ = b.Emit(types.EventTaskFailed, map[string]any{"task": task.ID, "reason": runErr.Error()})
			break runLoop
		}

		if !outcome.Done {
			summary.TasksFailed++
			_, _ = b.Emit(types.EventTaskFailed, map[string]any{"task": task.ID, "reason": outcome.FailureReason})
			_ = recordTaskOutcome(store, task.ID, false, outcome.Iterations, outcome.FailureReason)
			status = "failed"
			exitCode = ExitTaskFailed
			break runLoop
		}

		task.Passes = true
		summary.TasksPassed++
		if mutErr := recordTaskOutcome(store, task.ID, true, outcome.Iterations, ""); mutErr != nil {
			if errors.Is(mutErr, session.ErrTampering) {
				_, _ = b.Emit(types.EventChecksumFailed, map[string]any{"task": task.ID})
				status = "failed"
				exitCode = ExitTampering
				break runLoop
			}
			return ExitUsageConfig, summary, mutErr
		}
		// The coordinator is the task list's sole writer (spec.md §4.9): persist
		// passes=true back to the document itself, not just to the task-status
		// store, so a later invocation against the same file sees it as done.
		if saveErr := SaveTaskList(taskListPath, tl); saveErr != nil {
			return ExitUsageConfig, summary, saveErr
		}
		_, _ = b.Emit(types.EventChecksumOK, map[string]any{"task": task.ID})
		_, _ = b.Emit(types.EventTaskCompleted, map[string]any{"task": task.ID, "iterations": outcome.Iterations})
	}

	_ = store.MarkEnded(status)
	summary.Duration = time.Since(start)
	summary.Status = status
	_, _ = b.Emit(types.EventSessionEnded, map[string]any{
		"status": status, "tasks_total": summary.TasksTotal,
		"tasks_passed": summary.TasksPassed, "tasks_failed": summary.TasksFailed,
	})

	return exitCode, summary, nil
}

func recordTaskOutcome(store *session.Store, taskID string, passes bool, iterations int, failure string) error {
	return store.MutateTaskStatus(func(ts *types.TaskStatus) error {
		entry := types.TaskEntryStatus{Passes: passes, Iterations: iterations}
		if failure != "" {
			entry.LastFailure = &failure
		}
		ts.Tasks[taskID] = entry
		return nil
	})
}

// classifyEngineError maps a loop.Engine.Run error to the terminal session
// status and stable exit code it represents.
func classifyEngineError(err error) (status string, exitCode int) {
	switch {
	case errors.Is(err, loop.ErrAborted):
		return "aborted", ExitUserAbort
	case errors.Is(err, executor.ErrSpawn):
		return "failed", ExitAgentUnavailable
	default:
		return "failed", ExitTaskFailed
	}
}

func selectGates(cfg *config.Config, phase string) []types.GateSpec {
	switch phase {
	case "build":
		return cfg.Gates.Build
	case "none":
		return nil
	default:
		return cfg.Gates.Full
	}
}

// nextTask picks the next task to run given the single-task and start-from
// selectors, falling back to priority-ascending-then-id ordering.
func nextTask(tl *types.TaskList, single, startFrom string) (*types.Task, bool) {
	if single != "" {
		t, ok := tl.TaskByID(single)
		if !ok || t.Passes {
			return nil, false
		}
		return t, true
	}
	if startFrom == "" {
		return tl.NextPending()
	}

	var best *types.Task
	for i := range tl.Tasks {
		t := &tl.Tasks[i]
		if t.Passes || t.ID < startFrom {
			continue
		}
		if best == nil || t.Priority < best.Priority || (t.Priority == best.Priority && t.ID < best.ID) {
			best = t
		}
	}
	return best, best != nil
}

// headCommit resolves the current HEAD commit SHA via C1, best-effort: a
// non-git working directory yields an empty string rather than failing the
// run, since git_branch/git_commit are descriptive session metadata only.
func headCommit(ctx context.Context, root string) (string, error) {
	res, err := executor.Run(ctx, executor.Options{
		Args: []string{"git", "rev-parse", "HEAD"}, Dir: root, Deadline: 5 * time.Second,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// prepareWorktree isolates the run in a sibling git worktree (rpi.CreateWorktree)
// and chdirs the process into it for the duration of the run, so both the gate
// runner (which execs relative to Engine.Root) and the agent invoker (which execs
// relative to the process's working directory) operate on the isolated checkout
// instead of the caller's working tree.
//
// Grounded on the teacher's cmd/ao/rpi_phased.go runPhasedEngine, which does the
// same os.Chdir-for-the-duration-of-the-run dance around a worktree it resolves
// the same way.
func prepareWorktree(root string, cfg *config.Config, verbosef func(string, ...any)) (worktreeRoot string, cleanup func(success bool), err error) {
	repoRoot, err := rpi.GetRepoRoot(root, worktreeOpTimeout)
	if err != nil {
		return "", nil, fmt.Errorf("worktree isolation: %w", err)
	}

	if _, _, err := rpi.EnsureAttachedBranch(repoRoot, worktreeOpTimeout, cfg.Git.BaseBranch); err != nil {
		return "", nil, fmt.Errorf("worktree isolation: heal detached HEAD: %w", err)
	}

	worktreePath, runID, err := rpi.CreateWorktree(root, worktreeOpTimeout, verbosef)
	if err != nil {
		return "", nil, fmt.Errorf("worktree isolation: create worktree: %w", err)
	}

	origDir, err := os.Getwd()
	if err != nil {
		_ = rpi.RemoveWorktree(repoRoot, worktreePath, runID, worktreeOpTimeout)
		return "", nil, err
	}
	if err := os.Chdir(worktreePath); err != nil {
		_ = rpi.RemoveWorktree(repoRoot, worktreePath, runID, worktreeOpTimeout)
		return "", nil, fmt.Errorf("worktree isolation: chdir into worktree: %w", err)
	}

	cleanup = func(success bool) {
		_ = os.Chdir(origDir)
		if success {
			if mergeErr := rpi.MergeWorktree(repoRoot, worktreePath, runID, worktreeOpTimeout, verbosef); mergeErr != nil {
				if verbosef != nil {
					verbosef("worktree isolation: merge failed, worktree left in place at %s: %v\n", worktreePath, mergeErr)
				}
				return
			}
		}
		if rmErr := rpi.RemoveWorktree(repoRoot, worktreePath, runID, worktreeOpTimeout); rmErr != nil && verbosef != nil {
			verbosef("worktree isolation: cleanup failed for %s: %v\n", worktreePath, rmErr)
		}
	}
	return worktreePath, cleanup, nil
}
