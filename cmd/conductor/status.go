package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/conductor-dev/conductor/internal/config"
	"github.com/conductor-dev/conductor/internal/store"
	"github.com/conductor-dev/conductor/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status [task-id]",
	Short: "Show persisted task state",
	Long: `Display tasks recorded in the conductor database.

Without arguments, lists recent tasks. With a task ID, shows that
task's subtasks and gate evaluations.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	path := cfg.Store.Path
	if path == "" {
		path = store.DefaultPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Println("No tasks recorded. Run 'conductor run <requirement.yaml>' to start.")
		return nil
	}

	db, err := store.Open(path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	if len(args) == 1 {
		return displayTask(db, args[0])
	}
	return displayRecentTasks(db)
}

func displayRecentTasks(db *store.DB) error {
	tasks, err := db.ListTasks()
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	if len(tasks) == 0 {
		fmt.Println("No tasks recorded.")
		return nil
	}

	fmt.Println("Recent tasks:")
	shown := 0
	for _, t := range tasks {
		age := formatDuration(time.Since(t.CreatedAt))
		fmt.Printf("  %s  %-10s %q (%s ago)\n", t.ID, colorStatus(string(t.Status)), t.Name, age)
		shown++
		if shown >= 10 {
			break
		}
	}
	return nil
}

func displayTask(db *store.DB, taskID string) error {
	task, err := db.GetTask(taskID)
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		return fmt.Errorf("task %s not found", taskID)
	}

	fmt.Printf("Task %s: %s\n", task.ID, task.Name)
	fmt.Printf("  Status: %s\n", colorStatus(string(task.Status)))
	if task.BlockedReason != "" {
		fmt.Printf("  Blocked: %s\n", task.BlockedReason)
	}
	if task.Error != "" {
		fmt.Printf("  Error: %s\n", task.Error)
	}
	fmt.Printf("  Created: %s ago\n", formatDuration(time.Since(task.CreatedAt)))
	if task.CompletedAt != nil {
		fmt.Printf("  Finished: %s ago\n", formatDuration(time.Since(*task.CompletedAt)))
	}

	subtasks, err := db.ListSubtasks(taskID)
	if err != nil {
		return fmt.Errorf("list subtasks: %w", err)
	}
	if len(subtasks) > 0 {
		fmt.Println("  Subtasks:")
		for _, st := range subtasks {
			extra := ""
			if st.AssignedTo != "" {
				extra = fmt.Sprintf(" worker=%s", st.AssignedTo)
			}
			if st.BlockedReason != "" {
				extra += fmt.Sprintf(" (%s)", st.BlockedReason)
			}
			fmt.Printf("    %-20s %-12s attempts=%d%s\n", st.Name,
				colorStatus(string(st.Status)), st.Attempts, extra)
		}
	}

	gates, err := db.ListGateResults(taskID)
	if err != nil {
		return fmt.Errorf("list gate results: %w", err)
	}
	for _, g := range gates {
		if g.Scope != models.GateScopeTask {
			continue
		}
		fmt.Printf("  Gate: %s overall=%.1f\n", g.Verdict, g.OverallScore)
	}
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}
