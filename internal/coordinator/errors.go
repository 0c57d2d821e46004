package coordinator

import "errors"

// ErrNoConfig is returned when Run is called without a configuration.
var ErrNoConfig = errors.New("coordinator: config is required")

// ErrTaskNotFound is returned when a single-task selection names an id the
// task list does not contain.
var ErrTaskNotFound = errors.New("coordinator: task not found")
