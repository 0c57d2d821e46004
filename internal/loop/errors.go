package loop

import "errors"

// ErrMaxIterations is the policy outcome (not a Go-level failure) when a
// task exhausts its iteration budget without reaching DONE.
var ErrMaxIterations = errors.New("loop: max iterations exhausted")

// ErrAborted is returned when the run is cancelled mid-task.
var ErrAborted = errors.New("loop: aborted")
