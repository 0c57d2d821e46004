// Package config loads ralph's configuration from (highest to lowest
// priority): command-line flags, environment variables (RALPH_*), a project
// config (.ralph/config.yaml in cwd), a home config (~/.ralph/config.yaml),
// and built-in defaults.
//
// Structure and precedence are carried over from the teacher's
// internal/config package; the schema itself is rewritten for spec.md
// §6.2's task_source/services/gates/test_paths/agents/limits/git document.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agentops/ralph/internal/types"
)

// TaskSource locates the task list document.
type TaskSource struct {
	Path   string `yaml:"path" json:"path"`
	Format string `yaml:"format" json:"format"`
}

// Service describes one post-completion-verification service dependency.
type Service struct {
	StartCommands  []string      `yaml:"start_commands" json:"start_commands"`
	Port           int           `yaml:"port" json:"port"`
	HealthPaths    []string      `yaml:"health_paths" json:"health_paths"`
	StartupTimeout time.Duration `yaml:"startup_timeout" json:"startup_timeout"`
}

// Gates holds the two ordered gate-phase lists.
type Gates struct {
	Build []types.GateSpec `yaml:"build" json:"build"`
	Full  []types.GateSpec `yaml:"full" json:"full"`
}

// Agent is the per-role tuning knobs spec.md §6.2 asks for; it supplements
// (does not replace) the closed-variant types.RoleSpec prompt/signal/write
// contract, which is fixed per role rather than user-configurable.
type Agent struct {
	ModelHint        string        `yaml:"model_hint" json:"model_hint"`
	Timeout          time.Duration `yaml:"timeout" json:"timeout"`
	AllowedToolHints []string      `yaml:"allowed_tool_hints" json:"allowed_tool_hints"`
}

// Limits bounds the task loop's retry/iteration budgets.
type Limits struct {
	AgentTimeout         time.Duration `yaml:"agent_timeout" json:"agent_timeout"`
	MaxIterations        int           `yaml:"max_iterations" json:"max_iterations"`
	PostVerifyIterations int           `yaml:"post_verify_iterations" json:"post_verify_iterations"`
	UIFixIterations      int           `yaml:"ui_fix_iterations" json:"ui_fix_iterations"`
}

// Git carries the base branch and remote the Run Coordinator uses for
// worktree isolation and branch naming.
type Git struct {
	BaseBranch string `yaml:"base_branch" json:"base_branch"`
	Remote     string `yaml:"remote" json:"remote"`

	// WorktreeIsolation, if true, runs the task loop inside a sibling git
	// worktree checked out from HEAD (internal/rpi.CreateWorktree) and
	// merges it back into the branch checked out in the caller's repository
	// once the session ends successfully, rather than operating directly in
	// the caller's working tree. BaseBranch only serves as the prefix of the
	// recovery branch created when that repository's HEAD is detached.
	WorktreeIsolation bool `yaml:"worktree_isolation" json:"worktree_isolation"`
}

// Guardrail tunes the test-writing phase's write-enforcement policy.
type Guardrail struct {
	// AllowModifyExistingTestFiles resolves spec.md §9's open question:
	// whether the agent may modify a test file that already existed before
	// the phase ran (as opposed to creating a new one), when that file's
	// path matches the allow-list. Default true: allow if already
	// allow-listed. False reverts such modifications, leaving only newly
	// created allow-listed files standing.
	//
	// A pointer so merge can tell "a config file set this to false" apart
	// from "no config file mentioned it" (ordinary bools can't carry that
	// distinction against a true default).
	AllowModifyExistingTestFiles *bool `yaml:"allow_modify_existing_test_files" json:"allow_modify_existing_test_files"`
}

// Resolve reads AllowModifyExistingTestFiles, defaulting to true when unset.
func (g Guardrail) Resolve() bool {
	return g.AllowModifyExistingTestFiles == nil || *g.AllowModifyExistingTestFiles
}

// Config is the full ralph configuration document (spec.md §6.2).
type Config struct {
	Output     string                    `yaml:"output" json:"output"`
	Verbose    bool                      `yaml:"verbose" json:"verbose"`
	TaskSource TaskSource                `yaml:"task_source" json:"task_source"`
	Services   map[string]Service        `yaml:"services" json:"services"`
	Gates      Gates                     `yaml:"gates" json:"gates"`
	TestPaths  []string                  `yaml:"test_paths" json:"test_paths"`
	Agents     map[types.AgentRole]Agent `yaml:"agents" json:"agents"`
	Limits     Limits                    `yaml:"limits" json:"limits"`
	Git        Git                       `yaml:"git" json:"git"`
	Guardrail  Guardrail                 `yaml:"guardrail" json:"guardrail"`
}

// Default returns the built-in configuration baseline.
func Default() *Config {
	return &Config{
		Output: "table",
		TaskSource: TaskSource{
			Path:   "tasks.json",
			Format: "json",
		},
		Services: map[string]Service{},
		Gates: Gates{
			Build: []types.GateSpec{
				{Name: "build", Command: []string{"go", "build", "./..."}, Timeout: 2 * time.Minute, Fatal: true},
			},
			Full: []types.GateSpec{
				{Name: "build", Command: []string{"go", "build", "./..."}, Timeout: 2 * time.Minute, Fatal: true},
				{Name: "test", Command: []string{"go", "test", "./..."}, Timeout: 5 * time.Minute, Fatal: true},
				{Name: "vet", Command: []string{"go", "vet", "./..."}, Timeout: time.Minute, Fatal: false},
			},
		},
		TestPaths: nil, // nil means: fall back to guardrail.DefaultAllowPatterns
		Agents: map[types.AgentRole]Agent{
			types.RoleImplementation: {Timeout: 10 * time.Minute},
			types.RoleTestWriting:    {Timeout: 10 * time.Minute},
			types.RoleReview:         {Timeout: 5 * time.Minute},
			types.RoleFix:            {Timeout: 10 * time.Minute},
			types.RolePlanning:       {Timeout: 5 * time.Minute},
		},
		Limits: Limits{
			AgentTimeout:         10 * time.Minute,
			MaxIterations:        10,
			PostVerifyIterations: 3,
			UIFixIterations:      3,
		},
		Git: Git{
			BaseBranch: "main",
			Remote:     "origin",
		},
		// Guardrail.AllowModifyExistingTestFiles left nil: defaults to true.
	}
}

// Load resolves the full precedence chain: flags > env > project > home >
// defaults. flagOverrides may be nil.
func Load(flagOverrides *Config) (*Config, error) {
	cfg := Default()

	if homeCfg, err := loadFromPath(homeConfigPath()); err == nil && homeCfg != nil {
		cfg = merge(cfg, homeCfg)
	}
	if projectCfg, err := loadFromPath(projectConfigPath()); err == nil && projectCfg != nil {
		cfg = merge(cfg, projectCfg)
	} else if err != nil {
		return nil, fmt.Errorf("config: load project config: %w", err)
	}

	cfg = applyEnv(cfg)

	if flagOverrides != nil {
		cfg = merge(cfg, flagOverrides)
	}
	return cfg, nil
}

func homeConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ralph", "config.yaml")
}

func projectConfigPath() string {
	if override := strings.TrimSpace(os.Getenv("RALPH_CONFIG")); override != "" {
		return override
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(cwd, ".ralph", "config.yaml")
}

func loadFromPath(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) *Config {
	if v := os.Getenv("RALPH_OUTPUT"); v != "" {
		cfg.Output = v
	}
	if v := os.Getenv("RALPH_VERBOSE"); v == "true" || v == "1" {
		cfg.Verbose = true
	}
	if v := os.Getenv("RALPH_TASK_SOURCE"); v != "" {
		cfg.TaskSource.Path = v
	}
	if v := os.Getenv("RALPH_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Limits.MaxIterations = n
		}
	}
	if v := os.Getenv("RALPH_AGENT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Limits.AgentTimeout = d
		}
	}
	if v := os.Getenv("RALPH_GIT_BASE_BRANCH"); v != "" {
		cfg.Git.BaseBranch = v
	}
	if v := os.Getenv("RALPH_WORKTREE_ISOLATION"); v == "true" || v == "1" {
		cfg.Git.WorktreeIsolation = true
	}
	if v := os.Getenv("RALPH_GUARDRAIL_ALLOW_MODIFY_EXISTING_TEST_FILES"); v != "" {
		allow := v == "true" || v == "1"
		cfg.Guardrail.AllowModifyExistingTestFiles = &allow
	}
	return cfg
}

// merge overlays every non-zero field of src onto dst and returns dst.
func merge(dst, src *Config) *Config {
	if src.Output != "" {
		dst.Output = src.Output
	}
	if src.Verbose {
		dst.Verbose = true
	}
	if src.TaskSource.Path != "" {
		dst.TaskSource.Path = src.TaskSource.Path
	}
	if src.TaskSource.Format != "" {
		dst.TaskSource.Format = src.TaskSource.Format
	}
	if len(src.Services) > 0 {
		if dst.Services == nil {
			dst.Services = map[string]Service{}
		}
		for k, v := range src.Services {
			dst.Services[k] = v
		}
	}
	if len(src.Gates.Build) > 0 {
		dst.Gates.Build = src.Gates.Build
	}
	if len(src.Gates.Full) > 0 {
		dst.Gates.Full = src.Gates.Full
	}
	if len(src.TestPaths) > 0 {
		dst.TestPaths = src.TestPaths
	}
	if len(src.Agents) > 0 {
		if dst.Agents == nil {
			dst.Agents = map[types.AgentRole]Agent{}
		}
		for role, a := range src.Agents {
			dst.Agents[role] = a
		}
	}
	if src.Limits.AgentTimeout != 0 {
		dst.Limits.AgentTimeout = src.Limits.AgentTimeout
	}
	if src.Limits.MaxIterations != 0 {
		dst.Limits.MaxIterations = src.Limits.MaxIterations
	}
	if src.Limits.PostVerifyIterations != 0 {
		dst.Limits.PostVerifyIterations = src.Limits.PostVerifyIterations
	}
	if src.Limits.UIFixIterations != 0 {
		dst.Limits.UIFixIterations = src.Limits.UIFixIterations
	}
	if src.Git.BaseBranch != "" {
		dst.Git.BaseBranch = src.Git.BaseBranch
	}
	if src.Git.Remote != "" {
		dst.Git.Remote = src.Git.Remote
	}
	if src.Git.WorktreeIsolation {
		dst.Git.WorktreeIsolation = true
	}
	if src.Guardrail.AllowModifyExistingTestFiles != nil {
		dst.Guardrail.AllowModifyExistingTestFiles = src.Guardrail.AllowModifyExistingTestFiles
	}
	return dst
}
