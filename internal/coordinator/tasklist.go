package coordinator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/agentops/ralph/internal/types"
)

// LoadTaskList reads and parses the task list document at path. Format is
// inferred from the file extension; anything other than .yaml/.yml is
// treated as JSON, matching spec.md §6.3's bit-level contract ("task list —
// JSON object").
func LoadTaskList(path string) (*types.TaskList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("coordinator: read task list %s: %w", path, err)
	}

	var tl types.TaskList
	if isYAML(path) {
		if err := yaml.Unmarshal(data, &tl); err != nil {
			return nil, fmt.Errorf("coordinator: parse task list %s: %w", path, err)
		}
		return &tl, nil
	}
	if err := json.Unmarshal(data, &tl); err != nil {
		return nil, fmt.Errorf("coordinator: parse task list %s: %w", path, err)
	}
	return &tl, nil
}

// SaveTaskList writes tl back to path, in the same format LoadTaskList would
// infer for it. The Run Coordinator is the task list's sole writer (spec.md
// §4.9: "the coordinator exclusively owns the TaskList on disk; agents read
// it, only the coordinator writes passes") — callers elsewhere in this
// module must never write the task list document directly.
func SaveTaskList(path string, tl *types.TaskList) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(tl)
	} else {
		data, err = json.MarshalIndent(tl, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("coordinator: encode task list %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("coordinator: write task list %s: %w", path, err)
	}
	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}
