package events

import "time"

// Event is the base interface for all bus events.
type Event interface {
	EventType() string
	Subject() string
}

// Topic constants.
const (
	TopicTask       = "task"
	TopicSubtask    = "subtask"
	TopicEscalation = "escalation"
	TopicAlert      = "alert"
)

// Event type constants.
const (
	EventTypeTaskSubmitted     = "task.submitted"
	EventTypeTaskCompleted     = "task.completed"
	EventTypeTaskBlocked       = "task.blocked"
	EventTypeTaskFailed        = "task.failed"
	EventTypeTaskCanceled      = "task.canceled"
	EventTypeSubtaskAssigned   = "subtask.assigned"
	EventTypeSubtaskCompleted  = "subtask.completed"
	EventTypeSubtaskFailed     = "subtask.failed"
	EventTypeSubtaskRetry      = "subtask.retry"
	EventTypeCapacityExceeded  = "subtask.capacity_exceeded"
	EventTypeEscalationRaised  = "escalation.raised"
	EventTypeGateAlert         = "alert.gate_failure"
)

// AlertSeverity grades quality gate failure alerts.
type AlertSeverity string

const (
	// SeverityWarning marks subtask-level or near-threshold failures.
	SeverityWarning AlertSeverity = "warning"
	// SeverityCritical marks task-level or far-below-threshold failures.
	SeverityCritical AlertSeverity = "critical"
)

// TaskSubmitted is published when a task is accepted by the engine.
type TaskSubmitted struct {
	ID         string
	Name       string
	Complexity float64
	Decomposed bool
	Timestamp  time.Time
}

func (e TaskSubmitted) EventType() string { return EventTypeTaskSubmitted }
func (e TaskSubmitted) Subject() string   { return e.ID }

// TaskCompleted is published when a task clears its task-level gate.
type TaskCompleted struct {
	ID        string
	Timestamp time.Time
}

func (e TaskCompleted) EventType() string { return EventTypeTaskCompleted }
func (e TaskCompleted) Subject() string   { return e.ID }

// TaskBlocked is published when a task transitions to blocked.
type TaskBlocked struct {
	ID        string
	Reason    string
	Timestamp time.Time
}

func (e TaskBlocked) EventType() string { return EventTypeTaskBlocked }
func (e TaskBlocked) Subject() string   { return e.ID }

// TaskFailed is published when a task fails terminally.
type TaskFailed struct {
	ID        string
	Reason    string
	Timestamp time.Time
}

func (e TaskFailed) EventType() string { return EventTypeTaskFailed }
func (e TaskFailed) Subject() string   { return e.ID }

// TaskCanceled is published when a cancellation takes effect.
type TaskCanceled struct {
	ID        string
	Timestamp time.Time
}

func (e TaskCanceled) EventType() string { return EventTypeTaskCanceled }
func (e TaskCanceled) Subject() string   { return e.ID }

// SubtaskAssigned is published when a subtask is dispatched to a worker.
type SubtaskAssigned struct {
	ID        string
	TaskID    string
	WorkerID  string
	Score     float64
	Timestamp time.Time
}

func (e SubtaskAssigned) EventType() string { return EventTypeSubtaskAssigned }
func (e SubtaskAssigned) Subject() string   { return e.ID }

// SubtaskCompleted is published when a subtask passes its gate.
type SubtaskCompleted struct {
	ID        string
	TaskID    string
	WorkerID  string
	Attempts  int
	Duration  time.Duration
	Timestamp time.Time
}

func (e SubtaskCompleted) EventType() string { return EventTypeSubtaskCompleted }
func (e SubtaskCompleted) Subject() string   { return e.ID }

// SubtaskFailed is published on a failed execution attempt.
type SubtaskFailed struct {
	ID        string
	TaskID    string
	WorkerID  string
	Attempt   int
	Err       string
	Timestamp time.Time
}

func (e SubtaskFailed) EventType() string { return EventTypeSubtaskFailed }
func (e SubtaskFailed) Subject() string   { return e.ID }

// SubtaskRetry is published when a failed subtask is scheduled for retry.
type SubtaskRetry struct {
	ID        string
	TaskID    string
	Attempt   int
	Delay     time.Duration
	Timestamp time.Time
}

func (e SubtaskRetry) EventType() string { return EventTypeSubtaskRetry }
func (e SubtaskRetry) Subject() string   { return e.ID }

// CapacityExceeded is published when no matching worker has spare capacity
// for a ready subtask. Non-fatal; the subtask is retried next tick.
type CapacityExceeded struct {
	ID           string
	TaskID       string
	Capabilities []string
	Timestamp    time.Time
}

func (e CapacityExceeded) EventType() string { return EventTypeCapacityExceeded }
func (e CapacityExceeded) Subject() string   { return e.ID }

// EscalationRaised is published when a non-recoverable failure is surfaced
// for human attention: exhausted retries, a dependency cycle, or a gate
// failure that blocks the task.
type EscalationRaised struct {
	TaskID    string
	SubtaskID string
	Reason    string
	Attempts  int
	Timestamp time.Time
}

func (e EscalationRaised) EventType() string { return EventTypeEscalationRaised }
func (e EscalationRaised) Subject() string   { return e.TaskID }

// GateAlert is published when a quality gate evaluation fails.
type GateAlert struct {
	TaskID    string
	SubtaskID string
	Severity  AlertSeverity
	Score     float64
	Threshold float64
	Reason    string
	Timestamp time.Time
}

func (e GateAlert) EventType() string { return EventTypeGateAlert }
func (e GateAlert) Subject() string   { return e.TaskID }
