package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentops/ralph/internal/types"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "table", cfg.Output)
	assert.False(t, cfg.Verbose)
	assert.Equal(t, "tasks.json", cfg.TaskSource.Path)
	assert.Equal(t, 10, cfg.Limits.MaxIterations)
	assert.Equal(t, "main", cfg.Git.BaseBranch)
	assert.NotEmpty(t, cfg.Gates.Build)
	assert.NotEmpty(t, cfg.Gates.Full)
}

func TestMergeOverridesOnlySetFields(t *testing.T) {
	dst := Default()
	src := &Config{
		Output: "json",
		Limits: Limits{MaxIterations: 5},
	}

	result := merge(dst, src)
	assert.Equal(t, "json", result.Output)
	assert.Equal(t, 5, result.Limits.MaxIterations)
	assert.Equal(t, "main", result.Git.BaseBranch, "unset src fields must not clobber dst")
}

func TestMergeReplacesGateListsWholesale(t *testing.T) {
	dst := Default()
	src := &Config{
		Gates: Gates{Build: []types.GateSpec{{Name: "custom", Command: []string{"echo", "hi"}}}},
	}

	result := merge(dst, src)
	require.Len(t, result.Gates.Build, 1)
	assert.Equal(t, "custom", result.Gates.Build[0].Name)
}

func TestLoadReadsProjectConfigOverHome(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".ralph"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".ralph", "config.yaml"), []byte("output: json\n"), 0o644))
	t.Setenv("HOME", home)

	dir := t.TempDir()
	projectCfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(projectCfgPath, []byte("output: yaml\n"), 0o644))
	t.Setenv("RALPH_CONFIG", projectCfgPath)

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "yaml", cfg.Output)
}

func TestLoadAppliesEnvOverProjectConfig(t *testing.T) {
	dir := t.TempDir()
	projectCfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(projectCfgPath, []byte("output: yaml\n"), 0o644))
	t.Setenv("RALPH_CONFIG", projectCfgPath)
	t.Setenv("RALPH_OUTPUT", "json")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Output)
}

func TestLoadAppliesFlagOverridesLast(t *testing.T) {
	dir := t.TempDir()
	projectCfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(projectCfgPath, []byte("output: yaml\n"), 0o644))
	t.Setenv("RALPH_CONFIG", projectCfgPath)
	t.Setenv("RALPH_OUTPUT", "json")

	cfg, err := Load(&Config{Output: "table"})
	require.NoError(t, err)
	assert.Equal(t, "table", cfg.Output)
}

func TestApplyEnvParsesDurationAndInt(t *testing.T) {
	t.Setenv("RALPH_MAX_ITERATIONS", "20")
	t.Setenv("RALPH_AGENT_TIMEOUT", "30s")

	cfg := applyEnv(Default())
	assert.Equal(t, 20, cfg.Limits.MaxIterations)
	assert.Equal(t, 30*time.Second, cfg.Limits.AgentTimeout)
}

func TestLoadFromPathMissingFileIsNotAnError(t *testing.T) {
	cfg, err := loadFromPath(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestGuardrailAllowModifyExistingTestFilesDefaultsTrue(t *testing.T) {
	assert.True(t, Default().Guardrail.Resolve())
}

func TestMergeCanDisableGuardrailAllowModifyExistingTestFiles(t *testing.T) {
	dst := Default()
	disallow := false
	src := &Config{Guardrail: Guardrail{AllowModifyExistingTestFiles: &disallow}}

	result := merge(dst, src)
	assert.False(t, result.Guardrail.Resolve())
}

func TestApplyEnvSetsGuardrailAllowModifyExistingTestFiles(t *testing.T) {
	t.Setenv("RALPH_GUARDRAIL_ALLOW_MODIFY_EXISTING_TEST_FILES", "false")

	cfg := applyEnv(Default())
	assert.False(t, cfg.Guardrail.Resolve())
}
