package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "conductor",
	Short: "Task decomposition and execution orchestration engine",
	Long: `Conductor assesses incoming work, decomposes complex requirements into
dependency graphs of subtasks, prioritizes them, and dispatches them to
capability-matched workers with retries, circuit breaking, and quality
gates on every completion.

Core capabilities:
- Scores requirement complexity and splits work that warrants it
- Orders subtasks by impact, urgency, resource fit, alignment, and risk
- Matches subtasks to workers by capability and load
- Retries failures with exponential backoff and escalates exhaustion
- Gates completions on per-dimension quality thresholds and approvals`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(workersCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
