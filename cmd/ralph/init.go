package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/agentops/ralph/internal/config"
	"github.com/agentops/ralph/internal/types"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold a config and empty task list",
	Long: `Write .ralph/config.yaml with the built-in defaults and an empty
tasks.json. Each file is written only if it does not already exist;
--force overwrites both.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing config and task list")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "would write .ralph/config.yaml and tasks.json")
		return nil
	}

	if err := os.MkdirAll(".ralph", 0o755); err != nil {
		return fmt.Errorf("init: %w", err)
	}

	cfgPath := filepath.Join(".ralph", "config.yaml")
	if err := writeIfAbsent(cfgPath, initForce, func() ([]byte, error) {
		return yaml.Marshal(config.Default())
	}); err != nil {
		return err
	}

	if err := writeIfAbsent("tasks.json", initForce, func() ([]byte, error) {
		tl := types.TaskList{Project: filepath.Base(mustGetwd()), Tasks: []types.Task{}}
		return json.MarshalIndent(tl, "", "  ")
	}); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "wrote .ralph/config.yaml and tasks.json")
	return nil
}

func writeIfAbsent(path string, force bool, generate func() ([]byte, error)) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
	}
	data, err := generate()
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("init: write %s: %w", path, err)
	}
	return nil
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "ralph-project"
	}
	return wd
}
