package models

import "time"

// SubtaskStatus represents the current state of a subtask in the
// orchestrator's lifecycle state machine.
type SubtaskStatus string

const (
	// SubtaskStatusPending indicates the subtask is waiting on dependencies.
	SubtaskStatusPending SubtaskStatus = "pending"
	// SubtaskStatusReady indicates every dependency completed and the subtask
	// is eligible for assignment.
	SubtaskStatusReady SubtaskStatus = "ready"
	// SubtaskStatusAssigned indicates the subtask has been matched to a worker.
	SubtaskStatusAssigned SubtaskStatus = "assigned"
	// SubtaskStatusRunning indicates a worker is executing the subtask.
	SubtaskStatusRunning SubtaskStatus = "running"
	// SubtaskStatusRetryPending indicates a failed attempt is waiting out its
	// backoff delay before re-entering the ready set.
	SubtaskStatusRetryPending SubtaskStatus = "retry_pending"
	// SubtaskStatusBlocked indicates the subtask cannot proceed without intervention.
	SubtaskStatusBlocked SubtaskStatus = "blocked"
	// SubtaskStatusCompleted indicates the subtask finished and passed its gate.
	SubtaskStatusCompleted SubtaskStatus = "completed"
	// SubtaskStatusFailed indicates the subtask failed.
	SubtaskStatusFailed SubtaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s SubtaskStatus) Valid() bool {
	switch s {
	case SubtaskStatusPending, SubtaskStatusReady, SubtaskStatusAssigned,
		SubtaskStatusRunning, SubtaskStatusRetryPending, SubtaskStatusBlocked,
		SubtaskStatusCompleted, SubtaskStatusFailed:
		return true
	default:
		return false
	}
}

// Subtask is a node in a task's execution plan. Subtasks are created by the
// decomposer and never outlive their parent task.
type Subtask struct {
	// ID is the unique identifier for this subtask.
	ID string `json:"id"`
	// TaskID is the parent task this subtask belongs to.
	TaskID string `json:"task_id"`
	// Name is the short description of the subtask.
	Name string `json:"name"`
	// DependsOn lists subtask IDs that must complete before this one.
	DependsOn []string `json:"depends_on,omitempty"`
	// Capabilities lists the capability tags a worker must advertise to run this.
	Capabilities []string `json:"capabilities"`
	// Effort is the estimated effort weight used for critical-path computation.
	Effort float64 `json:"effort"`
	// Status is the current lifecycle state.
	Status SubtaskStatus `json:"status"`
	// AssignedTo is the ID of the worker executing this subtask, if any.
	AssignedTo string `json:"assigned_to,omitempty"`
	// Attempts is the number of execution attempts made so far.
	Attempts int `json:"attempts"`
	// Deadline is the optional completion deadline driving urgency decay.
	Deadline *time.Time `json:"deadline,omitempty"`
	// NextAttemptAt is when a retry-pending subtask re-enters the ready set.
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
	// BlockedReason explains why the subtask is blocked, if it is.
	BlockedReason string `json:"blocked_reason,omitempty"`
	// Output is the result payload reported by the worker.
	Output string `json:"output,omitempty"`
	// Error contains the last execution error, if any.
	Error string `json:"error,omitempty"`
	// EnqueuedAt is when the subtask entered the engine; it is the FIFO
	// tie-break key for equal priority scores.
	EnqueuedAt time.Time `json:"enqueued_at"`
	// CompletedAt is when the subtask completed, if applicable.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// RequiresCapability returns true if the subtask requires the given tag.
func (s *Subtask) RequiresCapability(tag string) bool {
	for _, c := range s.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the subtask.
func (s *Subtask) Clone() *Subtask {
	if s == nil {
		return nil
	}
	cp := *s
	if s.DependsOn != nil {
		cp.DependsOn = append([]string(nil), s.DependsOn...)
	}
	if s.Capabilities != nil {
		cp.Capabilities = append([]string(nil), s.Capabilities...)
	}
	return &cp
}
