package main

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentops/ralph/internal/config"
	"github.com/agentops/ralph/internal/coordinator"
	"github.com/agentops/ralph/internal/formatter"
)

var (
	scanJSON  bool
	agentTool string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Check that the configured agent tool and gates are reachable",
	Long: `scan loads the config, then checks that git and the agent CLI named by
--agent-tool are on PATH and that the task list parses; a full-gate command
whose binary is not on PATH is reported as a warning. It never spawns the
agent.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "output results as JSON")
	scanCmd.Flags().StringVar(&agentTool, "agent-tool", "claude", "agent CLI binary expected on PATH")
	rootCmd.AddCommand(scanCmd)
}

type scanCheck struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Detail   string `json:"detail"`
	Required bool   `json:"required"`
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(nil)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	checks := []scanCheck{
		checkBinary("git", true),
		checkBinary(agentTool, true),
		checkTaskList(cfg),
		checkGates(cfg),
	}

	w := cmd.OutOrStdout()
	if scanJSON {
		data, err := json.MarshalIndent(checks, "", "  ")
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		fmt.Fprintln(w, string(data))
	} else {
		t := formatter.NewTable(w, "CHECK", "STATUS", "DETAIL")
		for _, c := range checks {
			t.AddRow(c.Name, c.Status, c.Detail)
		}
		if err := t.Render(); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
	}

	for _, c := range checks {
		if c.Required && c.Status != "pass" {
			return fmt.Errorf("scan: one or more required checks failed")
		}
	}
	return nil
}

func checkBinary(name string, required bool) scanCheck {
	path, err := exec.LookPath(name)
	if err != nil {
		return scanCheck{Name: name, Status: "fail", Detail: "not found on PATH", Required: required}
	}
	return scanCheck{Name: name, Status: "pass", Detail: path, Required: required}
}

func checkTaskList(cfg *config.Config) scanCheck {
	tl, err := coordinator.LoadTaskList(cfg.TaskSource.Path)
	if err != nil {
		return scanCheck{Name: "task list", Status: "fail", Detail: err.Error(), Required: true}
	}
	return scanCheck{
		Name:     "task list",
		Status:   "pass",
		Detail:   fmt.Sprintf("%s (%d tasks)", cfg.TaskSource.Path, len(tl.Tasks)),
		Required: true,
	}
}

func checkGates(cfg *config.Config) scanCheck {
	var missing []string
	for _, g := range cfg.Gates.Full {
		if len(g.Command) == 0 {
			continue
		}
		if _, err := exec.LookPath(g.Command[0]); err != nil {
			missing = append(missing, g.Command[0])
		}
	}
	if len(missing) > 0 {
		return scanCheck{
			Name:     "gate commands",
			Status:   "warn",
			Detail:   "not found on PATH: " + strings.Join(missing, ", "),
			Required: false,
		}
	}
	return scanCheck{Name: "gate commands", Status: "pass", Detail: "all reachable", Required: false}
}
