package signal

import "errors"

// ErrNoSignal is returned when the expected marker is absent from agent
// output entirely.
var ErrNoSignal = errors.New("signal: no completion signal found")

// ErrInvalidToken is returned when a marker of the expected kind is present
// but its session attribute does not match the active session token.
var ErrInvalidToken = errors.New("signal: session token mismatch")
