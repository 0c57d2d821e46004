package guardrail

import "errors"

// ErrNotGitRepo names the case where dir is not inside a git worktree. Take
// and Diff do not return it: outside a git worktree they fall back to a
// plain directory walk.
var ErrNotGitRepo = errors.New("guardrail: not a git repository")

// ErrOutputsMissing is returned when the post-revert worktree no longer
// contains the files the agent declared as its outputs.
var ErrOutputsMissing = errors.New("guardrail: declared outputs missing after revert")
