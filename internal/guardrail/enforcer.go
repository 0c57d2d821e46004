package guardrail

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentops/ralph/internal/bus"
	"github.com/agentops/ralph/internal/types"
)

// Enforcer wraps the test-writing phase: it snapshots the working tree,
// lets the agent run, then reverts anything outside AllowPatterns. It is
// also reusable, un-configured-differently, as the standing audit for any
// other write-restricted role (spec.md §4.7's "none" write policy gets a
// zero-tolerance Enforcer with an empty allow-list).
type Enforcer struct {
	Root          string
	AllowPatterns []string
	Bus           *bus.Bus

	// AllowModifyExistingTestFiles resolves spec.md §9: whether a
	// modification to a file that already existed before the snapshot is
	// kept when its path matches AllowPatterns, or reverted regardless of
	// the match because it predates this phase. Defaults to true (allow)
	// via New; set via SetAllowModifyExistingTestFiles.
	AllowModifyExistingTestFiles bool
}

// New returns an Enforcer rooted at dir. A nil or empty allow list falls
// back to DefaultAllowPatterns.
func New(dir string, allow []string, b *bus.Bus) *Enforcer {
	if len(allow) == 0 {
		allow = DefaultAllowPatterns
	}
	return &Enforcer{Root: dir, AllowPatterns: allow, Bus: b, AllowModifyExistingTestFiles: true}
}

// SetAllowModifyExistingTestFiles overrides the default-true policy for
// modifications to pre-existing allow-listed files.
func (e *Enforcer) SetAllowModifyExistingTestFiles(v bool) *Enforcer {
	e.AllowModifyExistingTestFiles = v
	return e
}

// Snapshot captures the pre-agent working tree state.
func (e *Enforcer) Snapshot(ctx context.Context) (Snapshot, error) {
	return Take(ctx, e.Root)
}

// Enforce diffs the working tree against pre, reverts every change whose
// path does not match the allow-list, and returns the changes that were
// left standing (i.e. the ones the agent was permitted to make).
func (e *Enforcer) Enforce(ctx context.Context, pre Snapshot) ([]Change, error) {
	changes, err := pre.Diff(ctx)
	if err != nil {
		return nil, fmt.Errorf("guardrail: diff: %w", err)
	}

	var kept []Change
	for _, c := range changes {
		allowed := Matches(e.AllowPatterns, c.Path)
		blockedModify := allowed && c.Kind == Modified && !e.AllowModifyExistingTestFiles
		if allowed && !blockedModify {
			kept = append(kept, c)
			continue
		}

		reason := e.revert(pre, c)
		if blockedModify {
			reason = "modifies a pre-existing allow-listed file, guardrail.allow_modify_existing_test_files is false"
		}
		if e.Bus != nil {
			_, _ = e.Bus.Emit(types.EventGuardrailRevert, map[string]any{
				"path":   c.Path,
				"kind":   string(c.Kind),
				"reason": reason,
			})
		}
	}
	return kept, nil
}

// revert undoes a single disallowed change: added files are deleted,
// modified or deleted files are restored to their pre-agent content.
func (e *Enforcer) revert(pre Snapshot, c Change) string {
	abs := filepath.Join(e.Root, c.Path)
	switch c.Kind {
	case Added:
		if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
			return fmt.Sprintf("outside allow-list, delete failed: %v", err)
		}
		return "outside allow-list"
	case Modified, Deleted:
		content, ok := pre.originalContent(c.Path)
		if !ok {
			return "outside allow-list, no prior content to restore"
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return fmt.Sprintf("outside allow-list, restore failed: %v", err)
		}
		if err := os.WriteFile(abs, content, 0o644); err != nil {
			return fmt.Sprintf("outside allow-list, restore failed: %v", err)
		}
		return "outside allow-list"
	default:
		return "outside allow-list"
	}
}

// OutputsPresent reports whether every declared path still exists in the
// working tree after enforcement (spec.md §4.5: "the agent's completion
// signal is accepted only if the post-revert worktree still contains its
// declared outputs").
func (e *Enforcer) OutputsPresent(declared []string) error {
	var missing []string
	for _, p := range declared {
		if _, err := os.Stat(filepath.Join(e.Root, p)); err != nil {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrOutputsMissing, missing)
	}
	return nil
}
