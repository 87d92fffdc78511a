package models

import "time"

// Goal is one declared sub-goal within a requirement. Goals become subtasks
// when the requirement is decomposed.
type Goal struct {
	// Name identifies the goal; dependency references use this name.
	Name string `json:"name" yaml:"name"`
	// Capabilities lists the capability tags needed to execute the goal.
	Capabilities []string `json:"capabilities" yaml:"capabilities"`
	// Effort is the estimated effort weight (defaults to 1).
	Effort float64 `json:"effort,omitempty" yaml:"effort,omitempty"`
	// DependsOn lists the names of goals that must complete first.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	// Consumes lists artifacts this goal reads.
	Consumes []string `json:"consumes,omitempty" yaml:"consumes,omitempty"`
	// Produces lists artifacts this goal publishes.
	Produces []string `json:"produces,omitempty" yaml:"produces,omitempty"`
	// Ordered marks the goal as part of a strictly ordered sequence.
	Ordered bool `json:"ordered,omitempty" yaml:"ordered,omitempty"`
	// Deadline is the optional per-goal deadline.
	Deadline *time.Time `json:"deadline,omitempty" yaml:"deadline,omitempty"`
}

// Requirement is the payload submitted with a task. It is the sole input to
// the complexity assessor and the decomposer.
type Requirement struct {
	// Name is the short task title.
	Name string `json:"name" yaml:"name"`
	// Description is the free-form statement of the work.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Goals declares the known sub-goals of the work.
	Goals []Goal `json:"goals" yaml:"goals"`
	// ScopeSize is the declared scope (components or files touched).
	ScopeSize int `json:"scope_size,omitempty" yaml:"scope_size,omitempty"`
	// Deadline is the optional overall deadline, inherited by goals that
	// declare none of their own.
	Deadline *time.Time `json:"deadline,omitempty" yaml:"deadline,omitempty"`
	// RequiredApprovals names the sign-offs the task-level gate must collect.
	RequiredApprovals []string `json:"required_approvals,omitempty" yaml:"required_approvals,omitempty"`
}

// PriorityHints carries the caller-supplied scoring factors for a submission.
// Impact components and alignment are static for the task's lifetime; risk is
// dynamic and may be revised by context-change notifications.
type PriorityHints struct {
	// BusinessImpact is the business impact component (1-10).
	BusinessImpact float64 `json:"business_impact" yaml:"business_impact"`
	// SystemImpact is the system impact component (1-10).
	SystemImpact float64 `json:"system_impact" yaml:"system_impact"`
	// UserImpact is the user impact component (1-10).
	UserImpact float64 `json:"user_impact" yaml:"user_impact"`
	// TechnicalImpact is the technical impact component (1-10).
	TechnicalImpact float64 `json:"technical_impact" yaml:"technical_impact"`
	// Alignment is the strategic alignment multiplier (1-10).
	Alignment float64 `json:"alignment" yaml:"alignment"`
	// Risk is the probability-weighted cost of delay or failure (1-10).
	Risk float64 `json:"risk" yaml:"risk"`
}
