package formatter

import (
	"encoding/json"
	"io"

	"github.com/agentops/ralph/internal/bus"
)

// JSONL renders the run timeline as newline-delimited JSON, one event per
// line — the same shape the timeline is stored in on disk (spec.md §6.3),
// used by `status --output=jsonl` to stream events to another tool instead
// of a human.
//
// Adapted from the teacher's internal/formatter/jsonl.go session-summary
// encoder (same json.Encoder/SetEscapeHTML(false)/one-object-per-line
// shape); narrowed from a conversation-transcript summary to a bus.Record.
type JSONL struct {
	Pretty bool
}

// NewJSONL returns a JSONL formatter with compact (non-pretty) output.
func NewJSONL() *JSONL {
	return &JSONL{}
}

// Extension returns the conventional file extension for this format.
func (j *JSONL) Extension() string { return ".jsonl" }

// Write encodes every record to w, one JSON object per line.
func (j *JSONL) Write(w io.Writer, records []bus.Record) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if j.Pretty {
		encoder.SetIndent("", "  ")
	}
	for _, r := range records {
		if err := encoder.Encode(r); err != nil {
			return err
		}
	}
	return nil
}
