package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentops/ralph/internal/types"
)

func TestNextPendingOrdersByPriorityThenID(t *testing.T) {
	tl := &types.TaskList{
		Tasks: []types.Task{
			{ID: "T-002", Priority: 1, Passes: false, AcceptanceCriteria: []string{"a"}},
			{ID: "T-001", Priority: 1, Passes: false, AcceptanceCriteria: []string{"a"}},
			{ID: "T-003", Priority: 0, Passes: false, AcceptanceCriteria: []string{"a"}},
		},
	}

	next, ok := tl.NextPending()
	require.True(t, ok)
	assert.Equal(t, "T-003", next.ID, "lowest priority wins regardless of list order")
}

func TestNextPendingSkipsCompletedTasks(t *testing.T) {
	tl := &types.TaskList{
		Tasks: []types.Task{
			{ID: "T-001", Priority: 0, Passes: true, AcceptanceCriteria: []string{"a"}},
			{ID: "T-002", Priority: 1, Passes: false, AcceptanceCriteria: []string{"a"}},
		},
	}

	next, ok := tl.NextPending()
	require.True(t, ok)
	assert.Equal(t, "T-002", next.ID)
}

func TestNextPendingAllDone(t *testing.T) {
	tl := &types.TaskList{
		Tasks: []types.Task{{ID: "T-001", Passes: true, AcceptanceCriteria: []string{"a"}}},
	}
	_, ok := tl.NextPending()
	assert.False(t, ok)
}

func TestValidateTaskListRejectsBadID(t *testing.T) {
	tl := &types.TaskList{Tasks: []types.Task{{ID: "bad-id", AcceptanceCriteria: []string{"a"}}}}
	err := types.ValidateTaskList(tl)
	assert.ErrorIs(t, err, types.ErrInvalidTaskID)
}

func TestValidateTaskListRejectsDuplicateID(t *testing.T) {
	tl := &types.TaskList{Tasks: []types.Task{
		{ID: "T-001", AcceptanceCriteria: []string{"a"}},
		{ID: "T-001", AcceptanceCriteria: []string{"b"}},
	}}
	err := types.ValidateTaskList(tl)
	assert.ErrorIs(t, err, types.ErrDuplicateTaskID)
}

func TestValidateTaskListRejectsEmptyCriteria(t *testing.T) {
	tl := &types.TaskList{Tasks: []types.Task{{ID: "T-001"}}}
	err := types.ValidateTaskList(tl)
	assert.ErrorIs(t, err, types.ErrEmptyAcceptanceCriteria)
}

func TestTaskByID(t *testing.T) {
	tl := &types.TaskList{Tasks: []types.Task{{ID: "T-001"}, {ID: "T-002"}}}
	task, ok := tl.TaskByID("T-002")
	require.True(t, ok)
	assert.Equal(t, "T-002", task.ID)

	_, ok = tl.TaskByID("T-999")
	assert.False(t, ok)
}
