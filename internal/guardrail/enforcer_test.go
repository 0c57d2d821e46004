package guardrail_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentops/ralph/internal/guardrail"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	abs := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func TestEnforceRevertsDisallowedAddedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", "package main\n")

	e := guardrail.New(dir, nil, nil)
	pre, err := e.Snapshot(context.Background())
	require.NoError(t, err)

	writeFile(t, dir, "sneaky.go", "package main\n// not allowed here\n")

	kept, err := e.Enforce(context.Background(), pre)
	require.NoError(t, err)
	assert.Empty(t, kept)
	_, statErr := os.Stat(filepath.Join(dir, "sneaky.go"))
	assert.True(t, os.IsNotExist(statErr), "disallowed added file should be deleted")
}

// TestEnforceScenarioS4GuardrailRevert covers scenario S4: a test-writing
// phase writes both an allowed test file and a disallowed source file in
// the same pass. The disallowed file must be reverted to its pre-phase
// content (here: restored to "original\n", since it existed before) while
// the allowed file survives.
func TestEnforceScenarioS4GuardrailRevert(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/main.py", "original\n")

	e := guardrail.New(dir, []string{"tests/**"}, nil)
	pre, err := e.Snapshot(context.Background())
	require.NoError(t, err)

	writeFile(t, dir, "tests/test_a.py", "def test_a(): pass\n")
	writeFile(t, dir, "src/main.py", "sneaky change\n")

	kept, err := e.Enforce(context.Background(), pre)
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, "tests/test_a.py", kept[0].Path)

	data, err := os.ReadFile(filepath.Join(dir, "src/main.py"))
	require.NoError(t, err)
	assert.Equal(t, "original\n", string(data), "disallowed modification must be reverted to pre-phase content")

	_, err = os.Stat(filepath.Join(dir, "tests/test_a.py"))
	assert.NoError(t, err, "allowed test file must survive")
}

func TestEnforceKeepsAllowlistedTestFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", "package main\n")

	e := guardrail.New(dir, nil, nil)
	pre, err := e.Snapshot(context.Background())
	require.NoError(t, err)

	writeFile(t, dir, "main_test.go", "package main\nfunc TestX(t *testing.T) {}\n")

	kept, err := e.Enforce(context.Background(), pre)
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, "main_test.go", kept[0].Path)
}

func TestEnforceRestoresDisallowedModification(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", "original content\n")

	e := guardrail.New(dir, nil, nil)
	pre, err := e.Snapshot(context.Background())
	require.NoError(t, err)

	writeFile(t, dir, "main.go", "tampered content\n")

	_, err = e.Enforce(context.Background(), pre)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "main.go"))
	require.NoError(t, err)
	assert.Equal(t, "original content\n", string(data))
}

func TestOutputsPresentDetectsMissingDeclaredOutput(t *testing.T) {
	dir := t.TempDir()
	e := guardrail.New(dir, nil, nil)
	err := e.OutputsPresent([]string{"never_written.go"})
	assert.ErrorIs(t, err, guardrail.ErrOutputsMissing)
}

func TestOutputsPresentPassesWhenDeclaredFilesExist(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "handler_test.go", "package main\n")
	e := guardrail.New(dir, nil, nil)
	assert.NoError(t, e.OutputsPresent([]string{"handler_test.go"}))
}

func TestEnforceDefaultKeepsModifiedAllowlistedExistingFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main_test.go", "package main\nfunc TestX(t *testing.T) {}\n")

	e := guardrail.New(dir, nil, nil)
	pre, err := e.Snapshot(context.Background())
	require.NoError(t, err)

	writeFile(t, dir, "main_test.go", "package main\nfunc TestX(t *testing.T) { /* extended */ }\n")

	kept, err := e.Enforce(context.Background(), pre)
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, "main_test.go", kept[0].Path)
}

func TestEnforceCanRevertModifiedAllowlistedExistingFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main_test.go", "package main\nfunc TestX(t *testing.T) {}\n")

	e := guardrail.New(dir, nil, nil).SetAllowModifyExistingTestFiles(false)
	pre, err := e.Snapshot(context.Background())
	require.NoError(t, err)

	writeFile(t, dir, "main_test.go", "package main\nfunc TestX(t *testing.T) { /* tampered */ }\n")

	kept, err := e.Enforce(context.Background(), pre)
	require.NoError(t, err)
	assert.Empty(t, kept, "modification to a pre-existing allow-listed file must be reverted when disabled")

	data, err := os.ReadFile(filepath.Join(dir, "main_test.go"))
	require.NoError(t, err)
	assert.Equal(t, "package main\nfunc TestX(t *testing.T) {}\n", string(data))
}

func TestMatchesSupportsDoubleStar(t *testing.T) {
	assert.True(t, guardrail.Matches([]string{"**/*_test.go"}, "internal/foo/bar_test.go"))
	assert.False(t, guardrail.Matches([]string{"**/*_test.go"}, "internal/foo/bar.go"))
	assert.True(t, guardrail.Matches([]string{"tests/**"}, "tests/fixtures/a/b.txt"))
}

func TestMatchesDoubleStarSlashAlsoMatchesRootLevelFile(t *testing.T) {
	assert.True(t, guardrail.Matches([]string{"**/*_test.go"}, "main_test.go"))
	assert.True(t, guardrail.Matches([]string{"**/testdata/**"}, "testdata/fixture.json"))
}
