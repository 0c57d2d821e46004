package formatter

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/agentops/ralph/internal/bus"
	"github.com/agentops/ralph/internal/types"
)

func TestNewJSONL(t *testing.T) {
	f := NewJSONL()
	if f.Pretty {
		t.Error("Pretty should be false by default")
	}
	if f.Extension() != ".jsonl" {
		t.Errorf("Extension() = %q, want .jsonl", f.Extension())
	}
}

func sampleRecords() []bus.Record {
	return []bus.Record{
		{EventID: "e1", RunID: "run1", TS: "2026-01-01T00:00:00Z", Kind: types.EventSessionStarted, Payload: map[string]any{"session_id": "s1"}},
		{EventID: "e2", RunID: "run1", TS: "2026-01-01T00:00:01Z", Kind: types.EventTaskStarted, Payload: map[string]any{"task": "T-001"}},
	}
}

func TestJSONLWriteOneObjectPerLine(t *testing.T) {
	f := NewJSONL()
	var buf bytes.Buffer
	if err := f.Write(&buf, sampleRecords()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	lines := bytes.Split(bytes.TrimRight(buf.Bytes(), "\n"), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var first map[string]any
	if err := json.Unmarshal(lines[0], &first); err != nil {
		t.Fatalf("line 0 is not valid JSON: %v", err)
	}
	if first["event"] != string(types.EventSessionStarted) {
		t.Errorf("event = %v, want %v", first["event"], types.EventSessionStarted)
	}
}

func TestJSONLWriteEmptyRecordsProducesNoOutput(t *testing.T) {
	f := NewJSONL()
	var buf bytes.Buffer
	if err := f.Write(&buf, nil); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected empty output, got %q", buf.String())
	}
}

func TestJSONLWritePrettyIndents(t *testing.T) {
	f := &JSONL{Pretty: true}
	var buf bytes.Buffer
	if err := f.Write(&buf, sampleRecords()[:1]); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("\n  ")) {
		t.Errorf("expected indented output, got:\n%s", buf.String())
	}
}
