package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// GenerateRunID returns a 16-hex-char crypto-random identifier, the same
// entropy source the teacher's internal/rpi.GenerateRunID uses for its
// worktree run ids, adapted here to produce the nonce suffix of a session
// token rather than a worktree directory name.
func GenerateRunID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%016x", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// GenerateToken returns a fresh session token of the form
// ralph-YYYYMMDD-HHMMSS-<16 hex>, per spec.md §3/§4.3. It is an anti-replay
// nonce, not a security boundary against a malicious host (spec.md §1
// Non-goals).
func GenerateToken(now time.Time) string {
	return fmt.Sprintf("ralph-%s-%s", now.UTC().Format("20060102-150405"), GenerateRunID())
}

// NewSessionID returns a human-sortable session id derived from the start
// time, distinct from the opaque token.
func NewSessionID(now time.Time) string {
	return now.UTC().Format("20060102T150405Z")
}
