package session

import "errors"

// ErrTampering is returned by ReadTaskStatus when the on-disk integrity
// digest does not match the canonical serialization of the status file.
// Per spec.md §4.3 this is fail-closed: the caller must abort the run.
var ErrTampering = errors.New("session: task status integrity digest mismatch")

// ErrNoSession is returned when no session metadata exists yet.
var ErrNoSession = errors.New("session: no active session")
