// Package loop implements C8: the per-task IMPL/TEST/GATES/FIX/REVIEW state
// machine, run once per task by the Run Coordinator.
//
// Generalized from the teacher's cmd/ao/rpi_phased_processing.go retry-with-
// feedback cycle (attempt counter checked against state.Opts.MaxRetries,
// verdict-driven re-entry into the same phase or escalation) — that file's
// three-phase discovery/implementation/validation shape and cobra-global
// coupling don't transfer, but its core discipline does: bound retries by a
// shared counter, carry the failure text forward as the next prompt's
// feedback, and log every transition before acting on it.
package loop

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentops/ralph/internal/bus"
	"github.com/agentops/ralph/internal/executor"
	"github.com/agentops/ralph/internal/gate"
	"github.com/agentops/ralph/internal/guardrail"
	"github.com/agentops/ralph/internal/prompt"
	"github.com/agentops/ralph/internal/signal"
	"github.com/agentops/ralph/internal/types"
)

// AgentInvoker runs one agent invocation for role with the given prompt
// text and returns its captured result. A non-nil error means the
// subprocess itself could not be run or timed out at the infrastructure
// level (executor.ErrSpawn) — anything the agent merely failed to do
// correctly is reported through res.ExitCode / res.Stdout instead.
type AgentInvoker func(ctx context.Context, role types.AgentRole, promptText string) (executor.Result, error)

// Outcome is the task-level result of a Run call.
type Outcome struct {
	Done          bool
	FailureReason string
	Iterations    int
}

// Engine runs the C8 state machine for one task at a time.
type Engine struct {
	Invoke        AgentInvoker
	Bus           *bus.Bus
	Guardrail     *guardrail.Enforcer
	GateSpecs     []types.GateSpec
	Root          string
	SessionToken  string
	MaxIterations int
}

type phase string

const (
	phaseImpl   phase = "impl"
	phaseTest   phase = "test"
	phaseGates  phase = "gates"
	phaseReview phase = "review"
	phaseFix    phase = "fix"
)

// Run drives task through the state machine until it reaches DONE or the
// iteration budget is exhausted. A returned error is an infrastructure
// failure (agent spawn error, gate runner error); a non-nil Outcome with
// FailureReason set is a normal policy outcome (task.failed).
func (e *Engine) Run(ctx context.Context, task *types.Task) (Outcome, error) {
	cur := phaseImpl
	iterations := 0
	var feedback string
	var fixFeedback string
	var testDeclared string
	fixLoopActive := false

	e.emit(types.EventTaskStarted, map[string]any{"task": task.ID})

	for {
		if ctx.Err() != nil {
			if fixLoopActive {
				e.emit(types.EventFixLoopEnded, map[string]any{"task": task.ID, "reason": "aborted"})
				fixLoopActive = false
			}
			return Outcome{FailureReason: "aborted", Iterations: iterations}, ErrAborted
		}

		switch cur {
		case phaseImpl, phaseTest, phaseReview, phaseFix:
			if iterations >= e.MaxIterations {
				if fixLoopActive {
					e.emit(types.EventFixLoopEnded, map[string]any{"task": task.ID, "reason": "max_iterations"})
					fixLoopActive = false
				}
				e.emit(types.EventTaskFailed, map[string]any{"task": task.ID, "reason": "max_iterations"})
				return Outcome{FailureReason: "max_iterations", Iterations: iterations}, nil
			}
			iterations++
		}

		e.emit(types.EventIterationStart, map[string]any{"task": task.ID, "iteration": iterations, "phase": string(cur)})

		switch cur {
		case phaseImpl:
			ok, nextFeedback, err := e.runImpl(ctx, task, feedback)
			if err != nil {
				return Outcome{Iterations: iterations}, err
			}
			if !ok {
				feedback = nextFeedback
				e.emit(types.EventIterationEnd, map[string]any{"task": task.ID, "iteration": iterations})
				continue
			}
			feedback = ""
			cur = phaseTest

		case phaseTest:
			ok, nextFeedback, declared, err := e.runTest(ctx, task)
			if err != nil {
				return Outcome{Iterations: iterations}, err
			}
			if !ok {
				feedback = nextFeedback
				e.emit(types.EventIterationEnd, map[string]any{"task": task.ID, "iteration": iterations})
				continue
			}
			testDeclared = declared
			cur = phaseGates

		case phaseGates:
			allPassed, gateFeedback, err := e.runGates(ctx)
			if err != nil {
				return Outcome{Iterations: iterations}, err
			}
			if !allPassed {
				if !fixLoopActive {
					e.emit(types.EventFixLoopStarted, map[string]any{"task": task.ID})
					fixLoopActive = true
				}
				fixFeedback = gateFeedback
				cur = phaseFix
				continue
			}
			if fixLoopActive {
				e.emit(types.EventFixLoopEnded, map[string]any{"task": task.ID, "reason": "gates_passed"})
				fixLoopActive = false
			}
			cur = phaseReview

		case phaseFix:
			e.emit(types.EventFixLoopIter, map[string]any{"task": task.ID, "iteration": iterations})
			ok, nextFeedback, err := e.runFix(ctx, task, fixFeedback)
			if err != nil {
				return Outcome{Iterations: iterations}, err
			}
			if !ok {
				fixFeedback = nextFeedback
				e.emit(types.EventIterationEnd, map[string]any{"task": task.ID, "iteration": iterations})
				continue
			}
			cur = phaseGates

		case phaseReview:
			approved, ok, nextFeedback, err := e.runReview(ctx, task, testDeclared)
			if err != nil {
				return Outcome{Iterations: iterations}, err
			}
			if !ok {
				feedback = nextFeedback
				e.emit(types.EventIterationEnd, map[string]any{"task": task.ID, "iteration": iterations})
				continue
			}
			if !approved {
				feedback = nextFeedback
				cur = phaseImpl
				continue
			}
			return Outcome{Done: true, Iterations: iterations}, nil
		}
	}
}

func (e *Engine) runImpl(ctx context.Context, task *types.Task, feedback string) (bool, string, error) {
	p, err := prompt.Assemble(prompt.Input{
		Role:         types.RoleImplementation,
		Task:         *task,
		SessionToken: e.SessionToken,
		Feedback:     feedback,
	})
	if err != nil {
		return false, "", err
	}

	res, err := e.invoke(ctx, types.RoleImplementation, p)
	if err != nil {
		return false, "", err
	}

	sig, serr := signal.Expect(res.Stdout, types.SignalTaskDone, e.SessionToken)
	if serr != nil {
		return false, e.rejectSignal(task, "implementation", serr), nil
	}
	e.emit(types.EventSignalAccepted, map[string]any{"task": task.ID, "phase": "implementation"})
	_ = sig
	return true, "", nil
}

func (e *Engine) runTest(ctx context.Context, task *types.Task) (bool, string, string, error) {
	var pre guardrail.Snapshot
	if e.Guardrail != nil {
		var err error
		pre, err = e.Guardrail.Snapshot(ctx)
		if err != nil {
			return false, "", "", err
		}
	}

	var allow []string
	if e.Guardrail != nil {
		allow = e.Guardrail.AllowPatterns
	}
	p, err := prompt.Assemble(prompt.Input{
		Role:          types.RoleTestWriting,
		Task:          *task,
		SessionToken:  e.SessionToken,
		AllowPatterns: allow,
	})
	if err != nil {
		return false, "", "", err
	}

	res, err := e.invoke(ctx, types.RoleTestWriting, p)
	if err != nil {
		return false, "", "", err
	}

	sig, serr := signal.Expect(res.Stdout, types.SignalTestsDone, e.SessionToken)
	if serr != nil {
		return false, e.rejectSignal(task, "test-writing", serr), "", nil
	}

	var kept []guardrail.Change
	if e.Guardrail != nil {
		kept, err = e.Guardrail.Enforce(ctx, pre)
		if err != nil {
			return false, "", "", err
		}
	}
	if e.Guardrail != nil && len(kept) == 0 {
		// Spec: "a guardrail revert that leaves no declared test files is
		// treated as a signal failure for TEST, not as a silent success."
		return false, "guardrail reverted every change; no allow-listed test files remain — write tests under the permitted paths", "", nil
	}

	e.emit(types.EventSignalAccepted, map[string]any{"task": task.ID, "phase": "test-writing"})
	return true, "", sig.Content, nil
}

func (e *Engine) runGates(ctx context.Context) (bool, string, error) {
	e.emit(types.EventGatesStarted, nil)
	sink := func(kind types.EventKind, payload map[string]any) { e.emit(kind, payload) }
	agg, err := gate.Run(ctx, e.GateSpecs, e.Root, sink)
	if err != nil {
		return false, "", err
	}
	e.emit(types.EventGatesCompleted, map[string]any{"all_fatal_passed": agg.AllFatalPassed})

	if agg.AllFatalPassed {
		return true, "", nil
	}

	var sb strings.Builder
	for _, r := range agg.Results {
		if r.Status == gate.StatusFailed && r.Fatal {
			fmt.Fprintf(&sb, "gate %q failed (fatal):\n%s\n", r.Name, r.Output)
		}
	}
	return false, sb.String(), nil
}

func (e *Engine) runFix(ctx context.Context, task *types.Task, failureText string) (bool, string, error) {
	p, err := prompt.Assemble(prompt.Input{
		Role:         types.RoleFix,
		Task:         *task,
		SessionToken: e.SessionToken,
		Feedback:     failureText,
	})
	if err != nil {
		return false, "", err
	}

	res, err := e.invoke(ctx, types.RoleFix, p)
	if err != nil {
		return false, "", err
	}

	_, serr := signal.Expect(res.Stdout, types.SignalFixDone, e.SessionToken)
	if serr != nil {
		return false, e.rejectSignal(task, "fix", serr), nil
	}
	e.emit(types.EventSignalAccepted, map[string]any{"task": task.ID, "phase": "fix"})
	return true, "", nil
}

// runReview returns (approved, signalOK, feedback, err). signalOK false
// means retry REVIEW itself (no valid signal of either review kind yet);
// approved is only meaningful when signalOK is true.
func (e *Engine) runReview(ctx context.Context, task *types.Task, declaredOutput string) (bool, bool, string, error) {
	p, err := prompt.Assemble(prompt.Input{
		Role:         types.RoleReview,
		Task:         *task,
		SessionToken: e.SessionToken,
	})
	if err != nil {
		return false, false, "", err
	}

	res, err := e.invoke(ctx, types.RoleReview, p)
	if err != nil {
		return false, false, "", err
	}

	sig := lastReviewSignal(res.Stdout)
	if sig == nil {
		return false, false, e.rejectSignal(task, "review", signal.ErrNoSignal), nil
	}
	if sig.SessionToken != e.SessionToken {
		return false, false, e.rejectSignal(task, "review", signal.ErrInvalidToken), nil
	}

	e.emit(types.EventSignalAccepted, map[string]any{"task": task.ID, "phase": "review"})
	if sig.Kind == types.SignalReviewApproved {
		return true, true, "", nil
	}
	return false, true, sig.Content, nil
}

// lastReviewSignal returns the last review-approved or review-rejected
// marker in output, whichever kind it is (the review phase accepts either
// as its terminal signal, unlike every other phase's single required kind).
func lastReviewSignal(output string) *types.Signal {
	var found *types.Signal
	for _, sig := range signal.ParseAll(output) {
		if sig.Kind != types.SignalReviewApproved && sig.Kind != types.SignalReviewRejected {
			continue
		}
		s := sig
		found = &s
	}
	return found
}

func (e *Engine) invoke(ctx context.Context, role types.AgentRole, promptText string) (executor.Result, error) {
	e.emit(types.EventAgentStarted, map[string]any{"role": string(role)})
	res, err := e.Invoke(ctx, role, promptText)
	if err != nil {
		e.emit(types.EventAgentFailed, map[string]any{"role": string(role), "error": err.Error()})
		return res, err
	}
	e.emit(types.EventAgentCompleted, map[string]any{"role": string(role), "timed_out": res.TimedOut, "exit_code": res.ExitCode})
	return res, nil
}

func (e *Engine) rejectSignal(task *types.Task, phaseName string, cause error) string {
	reason := "no_signal"
	if cause == signal.ErrInvalidToken {
		reason = "invalid_token"
	}
	e.emit(types.EventSignalRejected, map[string]any{"task": task.ID, "phase": phaseName, "reason": reason})
	return fmt.Sprintf("your previous %s attempt was rejected: %v. Re-read the instructions and emit the required signal with the exact session token.", phaseName, cause)
}

func (e *Engine) emit(kind types.EventKind, payload map[string]any) {
	if e.Bus == nil {
		return
	}
	_, _ = e.Bus.Emit(kind, payload)
}
