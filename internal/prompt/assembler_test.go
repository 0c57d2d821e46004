package prompt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentops/ralph/internal/prompt"
	"github.com/agentops/ralph/internal/types"
)

func baseTask() types.Task {
	return types.Task{
		ID:                 "T-001",
		Title:              "add foo",
		Description:        "implement the foo endpoint",
		AcceptanceCriteria: []string{"returns 200", "returns json body"},
	}
}

func TestAssembleIsPureFunction(t *testing.T) {
	in := prompt.Input{Role: types.RoleImplementation, Task: baseTask(), SessionToken: "ralph-tok"}
	a, err := prompt.Assemble(in)
	require.NoError(t, err)
	b, err := prompt.Assemble(in)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestAssembleImplementationEmbedsTokenAndCriteria(t *testing.T) {
	in := prompt.Input{Role: types.RoleImplementation, Task: baseTask(), SessionToken: "ralph-tok"}
	out, err := prompt.Assemble(in)
	require.NoError(t, err)
	assert.Contains(t, out, "ralph-tok")
	assert.Contains(t, out, "returns 200")
	assert.Contains(t, out, "<task-done session=\"ralph-tok\">")
}

func TestAssembleTestWritingEmbedsAllowList(t *testing.T) {
	in := prompt.Input{
		Role:          types.RoleTestWriting,
		Task:          baseTask(),
		SessionToken:  "ralph-tok",
		AllowPatterns: []string{"**/*_test.go", "tests/**"},
	}
	out, err := prompt.Assemble(in)
	require.NoError(t, err)
	assert.Contains(t, out, "**/*_test.go")
	assert.Contains(t, out, "tests/**")
	assert.Contains(t, out, "<tests-done session=\"ralph-tok\">")
}

func TestAssembleReviewIsReadOnlyWithBothOutcomes(t *testing.T) {
	in := prompt.Input{Role: types.RoleReview, Task: baseTask(), SessionToken: "ralph-tok"}
	out, err := prompt.Assemble(in)
	require.NoError(t, err)
	assert.Contains(t, out, "read-only")
	assert.Contains(t, out, "review-approved")
	assert.Contains(t, out, "review-rejected")
}

func TestAssembleFixEmbedsFeedbackScopedToFailure(t *testing.T) {
	in := prompt.Input{
		Role:         types.RoleFix,
		Task:         baseTask(),
		SessionToken: "ralph-tok",
		Feedback:     "gate \"lint\" failed: undefined variable x",
	}
	out, err := prompt.Assemble(in)
	require.NoError(t, err)
	assert.Contains(t, out, "undefined variable x")
	assert.Contains(t, out, "<fix-done session=\"ralph-tok\">")
}

func TestAssembleUnknownRoleErrors(t *testing.T) {
	_, err := prompt.Assemble(prompt.Input{Role: types.AgentRole("bogus"), Task: baseTask(), SessionToken: "x"})
	assert.Error(t, err)
}

func TestRequiredSignalMapsEveryRole(t *testing.T) {
	roles := []types.AgentRole{
		types.RoleImplementation, types.RoleTestWriting, types.RoleReview,
		types.RoleFix, types.RolePlanning,
	}
	for _, r := range roles {
		_, ok := prompt.RequiredSignal(r)
		assert.True(t, ok, "role %s should have a required signal", r)
	}
}
