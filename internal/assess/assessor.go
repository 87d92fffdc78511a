// Package assess provides complexity assessment for submitted requirements.
// Assessment is a pure function of the requirement plus static configuration;
// it decides whether a task takes the single-unit path or is decomposed.
package assess

import (
	"fmt"
	"strings"

	"github.com/conductor-dev/conductor/internal/config"
	"github.com/conductor-dev/conductor/pkg/models"
)

// ValidationError indicates a malformed submission payload. Tasks failing
// validation are rejected synchronously and never created.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid requirement: %s: %s", e.Field, e.Reason)
}

// Assessment is the result of scoring a requirement.
type Assessment struct {
	// Score is the complexity score in [0,10].
	Score float64
	// Decompose recommends splitting the task into a subtask graph.
	Decompose bool
	// SubGoals is the estimated sub-goal count.
	SubGoals int
	// Capabilities is the number of distinct capability tags required.
	Capabilities int
	// ScopeSize is the declared scope size.
	ScopeSize int
}

// Assessor scores requirements against a configurable complexity threshold.
type Assessor struct {
	cfg config.ComplexityConfig
}

// New creates an Assessor with the given complexity configuration.
func New(cfg config.ComplexityConfig) *Assessor {
	return &Assessor{cfg: cfg}
}

// Assess validates and scores a requirement. Returns a *ValidationError if
// the payload is malformed. No side effects.
func (a *Assessor) Assess(req *models.Requirement) (Assessment, error) {
	if err := Validate(req); err != nil {
		return Assessment{}, err
	}

	subGoals := estimateSubGoals(req)
	caps := countCapabilities(req)
	scope := req.ScopeSize
	if scope == 0 {
		scope = subGoals
	}

	// Each signal saturates at 10 before weighting so one oversized factor
	// cannot dominate the blend.
	score := a.cfg.SubGoalWeight*saturate(float64(subGoals)*2) +
		a.cfg.DiversityWeight*saturate(float64(caps)*2.5) +
		a.cfg.ScopeWeight*saturate(float64(scope))

	if score > 10 {
		score = 10
	}
	if score < 0 {
		score = 0
	}

	return Assessment{
		Score:        score,
		Decompose:    score >= a.cfg.Threshold,
		SubGoals:     subGoals,
		Capabilities: caps,
		ScopeSize:    scope,
	}, nil
}

// Threshold returns the configured decomposition threshold.
func (a *Assessor) Threshold() float64 {
	return a.cfg.Threshold
}

// Validate checks a requirement for structural problems. Exported so the
// engine can reject submissions before creating any task record.
func Validate(req *models.Requirement) error {
	if req == nil {
		return &ValidationError{Field: "requirement", Reason: "payload is nil"}
	}
	if strings.TrimSpace(req.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if len(req.Goals) == 0 && strings.TrimSpace(req.Description) == "" {
		return &ValidationError{Field: "goals", Reason: "at least one goal or a description is required"}
	}
	if req.ScopeSize < 0 {
		return &ValidationError{Field: "scope_size", Reason: "must not be negative"}
	}

	seen := make(map[string]bool, len(req.Goals))
	for i, goal := range req.Goals {
		if strings.TrimSpace(goal.Name) == "" {
			return &ValidationError{Field: fmt.Sprintf("goals[%d].name", i), Reason: "must not be empty"}
		}
		if seen[goal.Name] {
			return &ValidationError{Field: fmt.Sprintf("goals[%d].name", i), Reason: fmt.Sprintf("duplicate goal %q", goal.Name)}
		}
		seen[goal.Name] = true
		if len(goal.Capabilities) == 0 {
			return &ValidationError{Field: fmt.Sprintf("goals[%d].capabilities", i), Reason: "at least one capability tag is required"}
		}
		if goal.Effort < 0 {
			return &ValidationError{Field: fmt.Sprintf("goals[%d].effort", i), Reason: "must not be negative"}
		}
	}
	for i, goal := range req.Goals {
		for _, dep := range goal.DependsOn {
			if !seen[dep] {
				return &ValidationError{
					Field:  fmt.Sprintf("goals[%d].depends_on", i),
					Reason: fmt.Sprintf("unknown goal %q", dep),
				}
			}
		}
	}

	return nil
}

// ValidateHints range-checks caller-supplied priority factors.
func ValidateHints(h models.PriorityHints) error {
	check := func(field string, v float64) error {
		if v < 0 || v > 10 {
			return &ValidationError{Field: field, Reason: fmt.Sprintf("must be in [0,10], got %v", v)}
		}
		return nil
	}
	if err := check("business_impact", h.BusinessImpact); err != nil {
		return err
	}
	if err := check("system_impact", h.SystemImpact); err != nil {
		return err
	}
	if err := check("user_impact", h.UserImpact); err != nil {
		return err
	}
	if err := check("technical_impact", h.TechnicalImpact); err != nil {
		return err
	}
	if err := check("alignment", h.Alignment); err != nil {
		return err
	}
	return check("risk", h.Risk)
}

// estimateSubGoals counts declared goals, falling back to content analysis
// of the description when none are declared.
func estimateSubGoals(req *models.Requirement) int {
	if len(req.Goals) > 0 {
		return len(req.Goals)
	}

	// Distinct items in the description suggest distinct pieces of work.
	lower := strings.ToLower(req.Description)
	separators := []string{",", " and ", " then ", "\n-", "\n*"}
	count := 1
	for _, sep := range separators {
		if strings.Contains(lower, sep) {
			if c := strings.Count(lower, sep) + 1; c > count {
				count = c
			}
		}
	}
	return count
}

// countCapabilities returns the number of distinct capability tags.
func countCapabilities(req *models.Requirement) int {
	tags := make(map[string]bool)
	for _, goal := range req.Goals {
		for _, c := range goal.Capabilities {
			tags[c] = true
		}
	}
	if len(tags) == 0 {
		return 1
	}
	return len(tags)
}

func saturate(v float64) float64 {
	if v > 10 {
		return 10
	}
	return v
}
