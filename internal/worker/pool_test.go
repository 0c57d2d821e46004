package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agentops/ralph/internal/types"
)

func TestNewPoolDefaultConcurrency(t *testing.T) {
	p := New(0)
	if p.concurrency != runtime.NumCPU() {
		t.Errorf("expected concurrency %d, got %d", runtime.NumCPU(), p.concurrency)
	}
	p2 := New(-1)
	if p2.concurrency != runtime.NumCPU() {
		t.Errorf("expected concurrency %d for -1, got %d", runtime.NumCPU(), p2.concurrency)
	}
}

func TestRunEmptyGroups(t *testing.T) {
	p := New(2)
	results := p.Run(context.Background(), nil, func(ctx context.Context, g []*types.Task) error { return nil })
	if results != nil {
		t.Errorf("expected nil results for no groups, got %v", results)
	}
}

func task(id string) *types.Task { return &types.Task{ID: id} }

func TestRunPreservesGroupOrderAndCapturesErrors(t *testing.T) {
	p := New(4)
	groups := [][]*types.Task{
		{task("T-001")},
		{task("T-002")},
		{task("T-003")},
	}

	results := p.Run(context.Background(), groups, func(ctx context.Context, g []*types.Task) error {
		if g[0].ID == "T-002" {
			return fmt.Errorf("group %s failed", g[0].ID)
		}
		return nil
	})

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Index != i {
			t.Errorf("result[%d].Index = %d", i, r.Index)
		}
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Errorf("expected groups 0 and 2 to succeed")
	}
	if results[1].Err == nil {
		t.Errorf("expected group 1 to fail")
	}
}

func TestRunActuallyRunsGroupsConcurrently(t *testing.T) {
	p := New(4)
	groups := make([][]*types.Task, 8)
	for i := range groups {
		groups[i] = []*types.Task{task(fmt.Sprintf("T-%03d", i))}
	}

	var maxConcurrent, current int64
	p.Run(context.Background(), groups, func(ctx context.Context, g []*types.Task) error {
		c := atomic.AddInt64(&current, 1)
		for {
			old := atomic.LoadInt64(&maxConcurrent)
			if c <= old || atomic.CompareAndSwapInt64(&maxConcurrent, old, c) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt64(&current, -1)
		return nil
	})

	if atomic.LoadInt64(&maxConcurrent) < 2 {
		t.Errorf("expected concurrent execution, got sequential")
	}
}

func TestPartitionOrdersByPriorityThenID(t *testing.T) {
	tasks := []*types.Task{
		{ID: "T-003", Priority: 1},
		{ID: "T-001", Priority: 2},
		{ID: "T-002", Priority: 1},
	}

	groups := Partition(tasks, 2)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0][0].ID != "T-002" || groups[0][1].ID != "T-003" {
		t.Errorf("expected priority-1 tasks ordered by id first, got %v", groups[0])
	}
	if groups[1][0].ID != "T-001" {
		t.Errorf("expected T-001 in the last group, got %v", groups[1])
	}
}

func TestPartitionEmptyInput(t *testing.T) {
	if groups := Partition(nil, 2); groups != nil {
		t.Errorf("expected nil groups for no tasks, got %v", groups)
	}
}
