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

var cancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Cancel a recorded task",
	Long: `Mark a persisted task and its unfinished subtasks as blocked.

Canceling a task that already reached a terminal state is a no-op.`,
	Args: cobra.ExactArgs(1),
	RunE: runCancel,
}

func runCancel(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	path := cfg.Store.Path
	if path == "" {
		path = store.DefaultPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("task %s not found", args[0])
	}

	db, err := store.Open(path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	changed, err := cancelStoredTask(db, args[0])
	if err != nil {
		return err
	}
	if changed {
		fmt.Printf("Task %s canceled.\n", args[0])
	} else {
		fmt.Printf("Task %s already finished; nothing to cancel.\n", args[0])
	}
	return nil
}

// cancelStoredTask blocks a recorded task and its unfinished subtasks.
// Idempotent, and a no-op on terminal or already-canceled tasks. The
// returned bool reports whether anything changed.
func cancelStoredTask(db *store.DB, taskID string) (bool, error) {
	task, err := db.GetTask(taskID)
	if err != nil {
		return false, fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		return false, fmt.Errorf("task %s not found", taskID)
	}
	if task.Status.Terminal() || task.Status == models.TaskStatusBlocked {
		return false, nil
	}

	subtasks, err := db.ListSubtasks(taskID)
	if err != nil {
		return false, fmt.Errorf("list subtasks: %w", err)
	}
	for _, st := range subtasks {
		switch st.Status {
		case models.SubtaskStatusCompleted, models.SubtaskStatusFailed,
			models.SubtaskStatusBlocked:
			// Finished subtasks keep their state.
		default:
			st.Status = models.SubtaskStatusBlocked
			st.BlockedReason = "task canceled"
			if err := db.SaveSubtask(st); err != nil {
				return false, fmt.Errorf("save subtask: %w", err)
			}
		}
	}

	task.Status = models.TaskStatusBlocked
	task.BlockedReason = "canceled"
	task.UpdatedAt = time.Now()
	if err := db.SaveTask(task); err != nil {
		return false, fmt.Errorf("save task: %w", err)
	}
	return true, nil
}
