package bus

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentops/ralph/internal/types"
)

// Record is one persisted timeline line. It carries the spec.md §6.3 event
// contract ({ts, event, ...payload}) plus the hash-chain fields SPEC_FULL.md
// §3 supplements it with, adapted from the teacher's cmd/ao/rpi_ledger.go
// append-only ledger so the timeline itself is tamper-evident end to end.
type Record struct {
	EventID     string         `json:"event_id"`
	RunID       string         `json:"run_id"`
	TS          string         `json:"ts"`
	Kind        types.EventKind `json:"event"`
	Payload     map[string]any `json:"payload,omitempty"`
	PrevHash    string         `json:"prev_hash"`
	PayloadHash string         `json:"payload_hash"`
	Hash        string         `json:"hash"`
}

func newRecord(runID string, kind types.EventKind, payload map[string]any, prevHash string) (Record, error) {
	r := Record{
		EventID:  uuid.NewString(),
		RunID:    runID,
		TS:       time.Now().UTC().Format(time.RFC3339Nano),
		Kind:     kind,
		Payload:  payload,
		PrevHash: prevHash,
	}
	payloadHash, hash, err := computeHashes(r)
	if err != nil {
		return Record{}, err
	}
	r.PayloadHash = payloadHash
	r.Hash = hash
	return r, nil
}

// hashedFields is the hashed subset of a record, marshalled deterministically
// (sorted map keys, via encoding/json's stable map ordering).
type hashedFields struct {
	EventID  string         `json:"event_id"`
	RunID    string         `json:"run_id"`
	TS       string         `json:"ts"`
	Kind     types.EventKind `json:"event"`
	Payload  map[string]any `json:"payload,omitempty"`
	PrevHash string         `json:"prev_hash"`
}

func computeHashes(r Record) (payloadHash string, hash string, err error) {
	payloadBytes, err := json.Marshal(r.Payload)
	if err != nil {
		return "", "", fmt.Errorf("bus: marshal payload: %w", err)
	}
	ph := sha256.Sum256(payloadBytes)
	payloadHash = hex.EncodeToString(ph[:])

	hf := hashedFields{
		EventID:  r.EventID,
		RunID:    r.RunID,
		TS:       r.TS,
		Kind:     r.Kind,
		Payload:  r.Payload,
		PrevHash: r.PrevHash,
	}
	hfBytes, err := json.Marshal(hf)
	if err != nil {
		return "", "", fmt.Errorf("bus: marshal record: %w", err)
	}
	full := sha256.Sum256(append(hfBytes, []byte(payloadHash)...))
	hash = hex.EncodeToString(full[:])
	return payloadHash, hash, nil
}

// VerifyChain checks hash-chain integrity across an ordered slice of
// records, as rpi_ledger.go's VerifyRPILedgerChain does for the teacher's
// ledger. Returns the 1-based index of the first broken record, or 0 if the
// whole chain verifies.
func VerifyChain(records []Record) (brokenAt int, err error) {
	prevHash := ""
	for i, r := range records {
		if r.PrevHash != prevHash {
			return i + 1, fmt.Errorf("bus: record %d: prev_hash mismatch: got %q want %q", i+1, r.PrevHash, prevHash)
		}
		payloadHash, hash, err := computeHashes(r)
		if err != nil {
			return i + 1, err
		}
		if r.PayloadHash != payloadHash {
			return i + 1, fmt.Errorf("bus: record %d: payload_hash mismatch", i+1)
		}
		if r.Hash != hash {
			return i + 1, fmt.Errorf("bus: record %d: hash mismatch", i+1)
		}
		prevHash = r.Hash
	}
	return 0, nil
}

// ToEvent converts a persisted Record back into the public types.Event.
func (r Record) ToEvent() types.Event {
	ts, _ := time.Parse(time.RFC3339Nano, r.TS)
	return types.Event{Timestamp: ts, Kind: r.Kind, Payload: r.Payload}
}
