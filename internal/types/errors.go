package types

import "errors"

// Sentinel errors shared across packages, following the teacher's
// per-package errors.go convention (internal/rpi/errors.go,
// internal/ratchet/errors.go in the source this was generalized from).
var (
	// ErrTaskNotFound is returned when a task id does not exist in a TaskList.
	ErrTaskNotFound = errors.New("types: task not found")

	// ErrDuplicateTaskID is returned when a TaskList contains two tasks
	// with the same id, violating the uniqueness invariant.
	ErrDuplicateTaskID = errors.New("types: duplicate task id")

	// ErrInvalidTaskID is returned when an id does not match ^T-\d{3}$.
	ErrInvalidTaskID = errors.New("types: task id must match T-NNN")

	// ErrEmptyAcceptanceCriteria is returned when a task has none.
	ErrEmptyAcceptanceCriteria = errors.New("types: acceptanceCriteria must be non-empty")
)
