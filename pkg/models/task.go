package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has been accepted but not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusDecomposing indicates the task is being split into subtasks.
	TaskStatusDecomposing TaskStatus = "decomposing"
	// TaskStatusRunning indicates at least one subtask is executing.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusBlocked indicates the task cannot proceed without intervention.
	TaskStatusBlocked TaskStatus = "blocked"
	// TaskStatusCompleted indicates every subtask completed and the quality gate passed.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed terminally.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusDecomposing, TaskStatusRunning,
		TaskStatusBlocked, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is a terminal state.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Task represents a submitted unit of work. Once submitted it is owned
// exclusively by the engine until it reaches a terminal state.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// Name is the short description of the task.
	Name string `json:"name"`
	// Complexity is the assessed complexity score (0-10).
	Complexity float64 `json:"complexity"`
	// Decomposed indicates whether the task was split into a subtask graph.
	Decomposed bool `json:"decomposed"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// BlockedReason explains why the task is blocked, if it is.
	BlockedReason string `json:"blocked_reason,omitempty"`
	// Error contains the error message if the task failed.
	Error string `json:"error,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the task last changed state.
	UpdatedAt time.Time `json:"updated_at"`
	// CompletedAt is when the task reached a terminal state, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
