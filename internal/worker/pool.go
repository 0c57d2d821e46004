// Package worker implements the optional parallel-mode execution primitive
// from spec.md §5: given disjoint partition groups of tasks, run one serial
// task loop per group, with groups themselves running concurrently. The
// core is not required to guarantee correctness for overlapping groups —
// producing non-overlapping groups is the partitioner's job, not this
// package's.
//
// Adapted from the teacher's generic internal/worker/pool.go fan-out pool
// (fixed worker count, job channel, order-preserving result slice),
// narrowed from arbitrary string-keyed processing to running one
// GroupRunner per task partition.
package worker

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"github.com/agentops/ralph/internal/types"
)

// GroupRunner drives one partition group's task loop to completion,
// returning the first error encountered (or nil if every task in the
// group finished).
type GroupRunner func(ctx context.Context, group []*types.Task) error

// GroupResult pairs a partition group's index with its outcome.
type GroupResult struct {
	Index int
	Err   error
}

// Pool runs up to a fixed number of partition groups at once.
type Pool struct {
	concurrency int
}

// New returns a Pool with the given concurrency. concurrency <= 0 defaults
// to runtime.NumCPU().
func New(concurrency int) *Pool {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	return &Pool{concurrency: concurrency}
}

// Run executes run once per group, at most p.concurrency at a time, and
// returns one GroupResult per group in group order.
func (p *Pool) Run(ctx context.Context, groups [][]*types.Task, run GroupRunner) []GroupResult {
	if len(groups) == 0 {
		return nil
	}

	workers := p.concurrency
	if workers > len(groups) {
		workers = len(groups)
	}

	type job struct {
		index int
		group []*types.Task
	}

	jobs := make(chan job, len(groups))
	results := make([]GroupResult, len(groups))
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j.index] = GroupResult{Index: j.index, Err: run(ctx, j.group)}
			}
		}()
	}

	for i, g := range groups {
		jobs <- job{index: i, group: g}
	}
	close(jobs)
	wg.Wait()

	return results
}

// Partition splits tasks into disjoint groups of at most size each,
// ordered by priority ascending then id, matching spec.md §4.1's task
// ordering. This is a placeholder partitioner (fixed-size chunking, no
// file-overlap estimation); a real overlap-aware partitioner is out of
// scope for the core per spec.md §5.
func Partition(tasks []*types.Task, size int) [][]*types.Task {
	if size <= 0 || len(tasks) == 0 {
		if len(tasks) == 0 {
			return nil
		}
		size = len(tasks)
	}

	ordered := make([]*types.Task, len(tasks))
	copy(ordered, tasks)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.ID < b.ID
	})

	var groups [][]*types.Task
	for i := 0; i < len(ordered); i += size {
		end := i + size
		if end > len(ordered) {
			end = len(ordered)
		}
		groups = append(groups, ordered[i:end])
	}
	return groups
}
