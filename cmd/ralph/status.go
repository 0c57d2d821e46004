package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/agentops/ralph/internal/bus"
	"github.com/agentops/ralph/internal/formatter"
)

var statusStateDir string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the run timeline recorded so far",
	Long: `status reads .ralph/timeline.jsonl and prints its events. --output=jsonl
streams the records verbatim for another tool to consume; the default
table view is a human-scannable summary.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusStateDir, "state-dir", "", "override the session state directory (default: .ralph)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	stateDir := statusStateDir
	if stateDir == "" {
		stateDir = ".ralph"
	}

	records, err := bus.Load(filepath.Join(stateDir, "timeline.jsonl"))
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}

	w := cmd.OutOrStdout()
	if output == "jsonl" {
		return formatter.NewJSONL().Write(w, records)
	}

	t := formatter.NewTable(w, "TIME", "EVENT", "PAYLOAD")
	t.SetMaxWidth(2, 80) // payload dumps are unbounded; keep the table scannable
	for _, r := range records {
		t.AddRow(r.TS, string(r.Kind), fmt.Sprintf("%v", r.Payload))
	}
	if err := t.Render(); err != nil {
		return fmt.Errorf("status: %w", err)
	}

	if len(records) == 0 {
		fmt.Fprintln(os.Stderr, "no timeline recorded yet — run `ralph run` first")
	}
	return nil
}
