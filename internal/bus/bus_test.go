package bus_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentops/ralph/internal/bus"
	"github.com/agentops/ralph/internal/types"
)

func TestEmitAppendsDurablyAndVerifies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timeline.jsonl")
	b, err := bus.Open(path, "run-1", nil)
	require.NoError(t, err)

	_, err = b.Emit(types.EventSessionStarted, map[string]any{"x": 1})
	require.NoError(t, err)
	_, err = b.Emit(types.EventTaskStarted, map[string]any{"task": "T-001"})
	require.NoError(t, err)
	require.NoError(t, b.Close())

	records, err := bus.Load(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, types.EventSessionStarted, records[0].Kind)
	assert.Equal(t, "", records[0].PrevHash)
	assert.Equal(t, records[0].Hash, records[1].PrevHash)

	brokenAt, err := bus.VerifyChain(records)
	assert.NoError(t, err)
	assert.Equal(t, 0, brokenAt)
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timeline.jsonl")
	b, err := bus.Open(path, "run-1", nil)
	require.NoError(t, err)
	_, _ = b.Emit(types.EventSessionStarted, nil)
	_, _ = b.Emit(types.EventTaskStarted, map[string]any{"task": "T-001"})
	require.NoError(t, b.Close())

	records, err := bus.Load(path)
	require.NoError(t, err)
	records[1].Payload["task"] = "T-999"

	brokenAt, err := bus.VerifyChain(records)
	assert.Error(t, err)
	assert.Equal(t, 2, brokenAt)
}

func TestSubscribersReceiveInEmissionOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timeline.jsonl")
	b, err := bus.Open(path, "run-1", nil)
	require.NoError(t, err)
	defer b.Close()

	var kinds []types.EventKind
	b.Subscribe("", func(e types.Event) { kinds = append(kinds, e.Kind) })

	_, _ = b.Emit(types.EventTaskStarted, nil)
	_, _ = b.Emit(types.EventGatesStarted, nil)
	_, _ = b.Emit(types.EventTaskCompleted, nil)

	assert.Equal(t, []types.EventKind{
		types.EventTaskStarted, types.EventGatesStarted, types.EventTaskCompleted,
	}, kinds)
}

func TestPanickingSubscriberDoesNotBreakEmit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timeline.jsonl")
	b, err := bus.Open(path, "run-1", nil)
	require.NoError(t, err)
	defer b.Close()

	b.Subscribe(types.EventTaskStarted, func(types.Event) { panic("boom") })

	called := false
	b.Subscribe(types.EventTaskStarted, func(types.Event) { called = true })

	_, err = b.Emit(types.EventTaskStarted, nil)
	require.NoError(t, err)
	assert.True(t, called, "second subscriber still runs after the first panics")
}

func TestReopenContinuesHashChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timeline.jsonl")
	b1, err := bus.Open(path, "run-1", nil)
	require.NoError(t, err)
	_, _ = b1.Emit(types.EventSessionStarted, nil)
	require.NoError(t, b1.Close())

	b2, err := bus.Open(path, "run-1", nil)
	require.NoError(t, err)
	_, err = b2.Emit(types.EventTaskStarted, nil)
	require.NoError(t, err)
	require.NoError(t, b2.Close())

	records, err := bus.Load(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	brokenAt, err := bus.VerifyChain(records)
	assert.NoError(t, err)
	assert.Equal(t, 0, brokenAt)
}
