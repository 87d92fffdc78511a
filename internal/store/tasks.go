package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/conductor-dev/conductor/pkg/models"
)

// SaveTask inserts or replaces a task record.
func (db *DB) SaveTask(t *models.Task) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO tasks
			(id, name, complexity, decomposed, status, blocked_reason, error, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Name, t.Complexity, t.Decomposed, string(t.Status), t.BlockedReason, t.Error,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt), formatNullableTime(t.CompletedAt))
	if err != nil {
		return fmt.Errorf("save task %s: %w", t.ID, err)
	}
	return nil
}

// GetTask retrieves a task by ID. Returns nil without error when absent.
func (db *DB) GetTask(id string) (*models.Task, error) {
	row := db.QueryRow(`
		SELECT id, name, complexity, decomposed, status, blocked_reason, error, created_at, updated_at, completed_at
		FROM tasks WHERE id = ?
	`, id)

	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, nil
}

// ListTasks returns all tasks, newest first.
func (db *DB) ListTasks() ([]*models.Task, error) {
	rows, err := db.Query(`
		SELECT id, name, complexity, decomposed, status, blocked_reason, error, created_at, updated_at, completed_at
		FROM tasks ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*models.Task, error) {
	var t models.Task
	var blockedReason, errMsg sql.NullString
	var createdAt, updatedAt string
	var completedAt sql.NullString

	err := row.Scan(&t.ID, &t.Name, &t.Complexity, &t.Decomposed, &t.Status,
		&blockedReason, &errMsg, &createdAt, &updatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	t.BlockedReason = blockedReason.String
	t.Error = errMsg.String
	t.CreatedAt, _ = parseTime(createdAt)
	t.UpdatedAt, _ = parseTime(updatedAt)
	t.CompletedAt = parseNullableTime(completedAt)
	return &t, nil
}

// SaveSubtasks writes a task's subtasks in one transaction.
func (db *DB) SaveSubtasks(subtasks []*models.Subtask) error {
	return db.Transaction(func(tx *sql.Tx) error {
		for _, st := range subtasks {
			if err := insertSubtask(tx, st); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveSubtask inserts or replaces one subtask record.
func (db *DB) SaveSubtask(st *models.Subtask) error {
	return db.Transaction(func(tx *sql.Tx) error {
		return insertSubtask(tx, st)
	})
}

func insertSubtask(tx *sql.Tx, st *models.Subtask) error {
	dependsOn, err := json.Marshal(st.DependsOn)
	if err != nil {
		return fmt.Errorf("marshal depends_on: %w", err)
	}
	capabilities, err := json.Marshal(st.Capabilities)
	if err != nil {
		return fmt.Errorf("marshal capabilities: %w", err)
	}

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO subtasks
			(id, task_id, name, depends_on, capabilities, effort, status, assigned_to,
			 attempts, deadline, next_attempt_at, blocked_reason, output, error, enqueued_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, st.ID, st.TaskID, st.Name, string(dependsOn), string(capabilities), st.Effort,
		string(st.Status), st.AssignedTo, st.Attempts,
		formatNullableTime(st.Deadline), formatNullableTime(st.NextAttemptAt),
		st.BlockedReason, st.Output, st.Error, formatTime(st.EnqueuedAt), formatNullableTime(st.CompletedAt))
	if err != nil {
		return fmt.Errorf("save subtask %s: %w", st.ID, err)
	}
	return nil
}

// GetSubtask retrieves a subtask by ID. Returns nil without error when absent.
func (db *DB) GetSubtask(id string) (*models.Subtask, error) {
	row := db.QueryRow(subtaskSelect+" WHERE id = ?", id)
	st, err := scanSubtask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subtask %s: %w", id, err)
	}
	return st, nil
}

// ListSubtasks returns a task's subtasks in enqueue order.
func (db *DB) ListSubtasks(taskID string) ([]*models.Subtask, error) {
	rows, err := db.Query(subtaskSelect+" WHERE task_id = ? ORDER BY enqueued_at, id", taskID)
	if err != nil {
		return nil, fmt.Errorf("list subtasks for %s: %w", taskID, err)
	}
	defer rows.Close()

	var out []*models.Subtask
	for rows.Next() {
		st, err := scanSubtask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subtask: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

const subtaskSelect = `
	SELECT id, task_id, name, depends_on, capabilities, effort, status, assigned_to,
	       attempts, deadline, next_attempt_at, blocked_reason, output, error, enqueued_at, completed_at
	FROM subtasks`

func scanSubtask(row scanner) (*models.Subtask, error) {
	var st models.Subtask
	var dependsOn, capabilities sql.NullString
	var assignedTo, blockedReason, output, errMsg sql.NullString
	var deadline, nextAttemptAt, completedAt sql.NullString
	var enqueuedAt string

	err := row.Scan(&st.ID, &st.TaskID, &st.Name, &dependsOn, &capabilities, &st.Effort,
		&st.Status, &assignedTo, &st.Attempts, &deadline, &nextAttemptAt,
		&blockedReason, &output, &errMsg, &enqueuedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if dependsOn.Valid && dependsOn.String != "" {
		if err := json.Unmarshal([]byte(dependsOn.String), &st.DependsOn); err != nil {
			return nil, fmt.Errorf("unmarshal depends_on: %w", err)
		}
	}
	if capabilities.Valid && capabilities.String != "" {
		if err := json.Unmarshal([]byte(capabilities.String), &st.Capabilities); err != nil {
			return nil, fmt.Errorf("unmarshal capabilities: %w", err)
		}
	}
	st.AssignedTo = assignedTo.String
	st.BlockedReason = blockedReason.String
	st.Output = output.String
	st.Error = errMsg.String
	st.Deadline = parseNullableTime(deadline)
	st.NextAttemptAt = parseNullableTime(nextAttemptAt)
	st.EnqueuedAt, _ = parseTime(enqueuedAt)
	st.CompletedAt = parseNullableTime(completedAt)
	return &st, nil
}
