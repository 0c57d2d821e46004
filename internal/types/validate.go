package types

import (
	"fmt"
	"regexp"
)

var taskIDPattern = regexp.MustCompile(`^T-\d{3}$`)

// ValidateTaskList checks the bit-level contract from spec.md §6.3: ids
// match ^T-\d{3}$, ids are unique, and acceptanceCriteria is non-empty.
func ValidateTaskList(tl *TaskList) error {
	seen := make(map[string]bool, len(tl.Tasks))
	for _, t := range tl.Tasks {
		if !taskIDPattern.MatchString(t.ID) {
			return fmt.Errorf("%w: %q", ErrInvalidTaskID, t.ID)
		}
		if seen[t.ID] {
			return fmt.Errorf("%w: %q", ErrDuplicateTaskID, t.ID)
		}
		seen[t.ID] = true
		if len(t.AcceptanceCriteria) == 0 {
			return fmt.Errorf("%w: task %q", ErrEmptyAcceptanceCriteria, t.ID)
		}
		for _, st := range t.Subtasks {
			if len(st.AcceptanceCriteria) == 0 {
				return fmt.Errorf("%w: subtask %q of %q", ErrEmptyAcceptanceCriteria, st.ID, t.ID)
			}
		}
	}
	return nil
}
