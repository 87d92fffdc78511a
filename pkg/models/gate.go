package models

import "time"

// ApprovalStatus represents the state of a required approval.
type ApprovalStatus string

const (
	// ApprovalApproved indicates the approval was granted.
	ApprovalApproved ApprovalStatus = "approved"
	// ApprovalRejected indicates the approval was denied.
	ApprovalRejected ApprovalStatus = "rejected"
	// ApprovalPending indicates the approval has not been decided.
	ApprovalPending ApprovalStatus = "pending"
)

// Verdict is the overall outcome of a quality gate evaluation.
type Verdict string

const (
	// VerdictPassed indicates all dimensions cleared their thresholds and
	// every required approval was granted.
	VerdictPassed Verdict = "passed"
	// VerdictFailed indicates a threshold miss or a rejected approval.
	VerdictFailed Verdict = "failed"
	// VerdictPending indicates scores passed but approvals are outstanding.
	VerdictPending Verdict = "pending"
)

// GateScope identifies whether a gate result applies to a subtask or to the
// aggregate task output.
type GateScope string

const (
	// GateScopeSubtask marks a per-subtask gate evaluation.
	GateScopeSubtask GateScope = "subtask"
	// GateScopeTask marks a task-level gate evaluation.
	GateScopeTask GateScope = "task"
)

// DimensionScore is a single quality dimension measured against its threshold.
type DimensionScore struct {
	// Name is the dimension identifier (e.g. "correctness").
	Name string `json:"name"`
	// Score is the measured value (0-100).
	Score float64 `json:"score"`
	// Threshold is the minimum acceptable value.
	Threshold float64 `json:"threshold"`
	// Passed indicates whether Score met Threshold.
	Passed bool `json:"passed"`
}

// Approval is a required sign-off and its current status.
type Approval struct {
	// Name identifies the approver or approval kind.
	Name string `json:"name"`
	// Status is the current decision.
	Status ApprovalStatus `json:"status"`
}

// GateResult records one quality gate evaluation.
type GateResult struct {
	// ID is the unique identifier for this evaluation.
	ID string `json:"id"`
	// TaskID is the task this result belongs to.
	TaskID string `json:"task_id"`
	// SubtaskID is the subtask evaluated, empty for task-level results.
	SubtaskID string `json:"subtask_id,omitempty"`
	// Scope indicates subtask-level or task-level evaluation.
	Scope GateScope `json:"scope"`
	// Dimensions holds the per-dimension scores and thresholds.
	Dimensions []DimensionScore `json:"dimensions"`
	// Approvals holds the required-approval list and statuses.
	Approvals []Approval `json:"approvals,omitempty"`
	// OverallScore is the aggregated score across dimensions.
	OverallScore float64 `json:"overall_score"`
	// Verdict is the combined outcome.
	Verdict Verdict `json:"verdict"`
	// EvaluatedAt is when the gate ran.
	EvaluatedAt time.Time `json:"evaluated_at"`
}
