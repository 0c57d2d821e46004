package executor

import "errors"

// ErrSpawn is returned when the child process could not be started at all
// (binary not found, permission denied).
var ErrSpawn = errors.New("executor: spawn failed")

// ErrTimeout is returned when the deadline elapsed before the child exited.
var ErrTimeout = errors.New("executor: deadline exceeded")
