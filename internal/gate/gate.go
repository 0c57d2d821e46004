// Package gate implements C6: it evaluates an ordered list of quality gates
// against the working tree, honoring per-gate preconditions and fatality.
//
// Generalized from the teacher's internal/ratchet.GateChecker — a closed
// switch over fixed RPI steps, each hand-written to call out to `bd`/git and
// return a *GateResult — into a data-driven evaluator over []types.GateSpec,
// with every external check routed through the executor (C1) instead of a
// bespoke exec.CommandContext call per step.
package gate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agentops/ralph/internal/executor"
	"github.com/agentops/ralph/internal/types"
)

// Status is the terminal disposition of one gate's evaluation.
type Status string

const (
	StatusPassed       Status = "passed"
	StatusFailed       Status = "failed"
	StatusSkipped      Status = "skipped"       // precondition file absent
	StatusNotAttempted Status = "not_attempted" // earlier fatal gate halted the run
)

// outputTailLimit bounds how much of a failing gate's combined output is
// captured into GateResult and the gate.fail event payload.
const outputTailLimit = 4000

// Result is the outcome of evaluating a single gate.
type Result struct {
	Name     string
	Status   Status
	Fatal    bool
	Duration time.Duration
	Output   string
	Err      error
}

// AggregateResult is the outcome of a whole gate sequence.
type AggregateResult struct {
	AllFatalPassed bool
	Results        []Result
}

// EventSink receives gate.pass/gate.fail notifications as the runner
// evaluates each spec; callers typically pass bus.Bus.Emit.
type EventSink func(kind types.EventKind, payload map[string]any)

// Run evaluates specs in order against root, the repo/worktree root
// preconditions are resolved relative to. A fatal failure halts the
// remaining sequence; non-fatal failures are recorded and evaluation
// continues.
func Run(ctx context.Context, specs []types.GateSpec, root string, sink EventSink) (AggregateResult, error) {
	agg := AggregateResult{AllFatalPassed: true}
	halted := false

	for _, spec := range specs {
		if halted {
			agg.Results = append(agg.Results, Result{Name: spec.Name, Status: StatusNotAttempted, Fatal: spec.Fatal})
			continue
		}

		if spec.PreconditionFile != "" {
			if _, err := os.Stat(filepath.Join(root, spec.PreconditionFile)); err != nil {
				agg.Results = append(agg.Results, Result{Name: spec.Name, Status: StatusSkipped, Fatal: spec.Fatal})
				continue
			}
		}

		res, err := runOne(ctx, spec, root)
		if err != nil {
			return agg, fmt.Errorf("gate %q: %w", spec.Name, err)
		}
		agg.Results = append(agg.Results, res)

		if sink != nil {
			emitResult(sink, res)
		}

		if res.Status == StatusFailed {
			if spec.Fatal {
				agg.AllFatalPassed = false
				halted = true
			}
		}
	}
	return agg, nil
}

func runOne(ctx context.Context, spec types.GateSpec, root string) (Result, error) {
	runCtx := ctx
	out, err := executor.Run(runCtx, executor.Options{
		Args:     spec.Command,
		Dir:      root,
		Deadline: spec.Timeout,
	})
	if err != nil {
		return Result{}, err
	}

	status := StatusPassed
	if out.ExitCode != 0 {
		status = StatusFailed
	}

	return Result{
		Name:     spec.Name,
		Status:   status,
		Fatal:    spec.Fatal,
		Duration: out.Duration,
		Output:   tail(out.Stdout+out.Stderr, outputTailLimit),
	}, nil
}

func emitResult(sink EventSink, res Result) {
	switch res.Status {
	case StatusPassed:
		sink(types.EventGatePass, map[string]any{
			"gate":        res.Name,
			"duration_ms": res.Duration.Milliseconds(),
		})
	case StatusFailed:
		sink(types.EventGateFail, map[string]any{
			"gate":        res.Name,
			"duration_ms": res.Duration.Milliseconds(),
			"fatal":       res.Fatal,
			"output":      res.Output,
		})
	}
}

func tail(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[len(s)-limit:]
}
