package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/conductor-dev/conductor/internal/assess"
	"github.com/conductor-dev/conductor/internal/decompose"
	"github.com/conductor-dev/conductor/internal/events"
	"github.com/conductor-dev/conductor/internal/graph"
	"github.com/conductor-dev/conductor/internal/priority"
	"github.com/conductor-dev/conductor/pkg/models"
)

// Submit validates, assesses, and plans a task, returning its ID. Malformed
// payloads are rejected synchronously with a *assess.ValidationError and no
// task is created. A decomposition that produces a dependency cycle still
// creates the task; it is marked Blocked and surfaced via status and an
// escalation event.
func (e *Engine) Submit(req *models.Requirement, hints models.PriorityHints) (string, error) {
	if err := assess.Validate(req); err != nil {
		return "", err
	}
	if err := assess.ValidateHints(hints); err != nil {
		return "", err
	}

	e.mu.Lock()
	assessor := e.assessor
	e.mu.Unlock()

	assessment, err := assessor.Assess(req)
	if err != nil {
		return "", err
	}

	now := time.Now()
	task := &models.Task{
		ID:         uuid.New().String(),
		Name:       req.Name,
		Complexity: assessment.Score,
		Status:     models.TaskStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	state := &taskState{
		task:     task,
		req:      req,
		hints:    hints,
		subtasks: make(map[string]*models.Subtask),
		scores:   make(map[string]priority.Scored),
		inflight: make(map[string]context.CancelFunc),
		backoffs: make(map[string]*backoff.ExponentialBackOff),
		capacity: make(map[string]bool),
	}

	if assessment.Decompose {
		task.Status = models.TaskStatusDecomposing
		task.Decomposed = true

		plan, err := e.decomposer.Decompose(task.ID, req)
		if err != nil {
			if errors.Is(err, graph.ErrDependencyCycle) {
				e.blockOnCycle(state, err)
			} else {
				return "", fmt.Errorf("decompose: %w", err)
			}
		} else {
			e.adoptPlan(state, plan)
		}
	} else {
		e.adoptPlan(state, singleUnitPlan(task.ID, req, assessment))
	}

	for _, name := range req.RequiredApprovals {
		state.approvals = append(state.approvals, models.Approval{
			Name:   name,
			Status: models.ApprovalPending,
		})
	}

	e.mu.Lock()
	e.tasks[task.ID] = state
	e.mu.Unlock()

	e.persistTask(task)
	for _, st := range state.subtasks {
		e.persistSubtask(st)
	}

	e.logger.Log("[submit] task %s (%s) complexity %.1f decomposed=%v subtasks=%d",
		task.ID, task.Name, task.Complexity, task.Decomposed, len(state.subtasks))
	e.publish(events.TopicTask, events.TaskSubmitted{
		ID:         task.ID,
		Name:       task.Name,
		Complexity: task.Complexity,
		Decomposed: task.Decomposed,
		Timestamp:  now,
	})

	e.poke()
	return task.ID, nil
}

// adoptPlan installs a decomposition plan and moves the task to Pending.
func (e *Engine) adoptPlan(state *taskState, plan *decompose.Plan) {
	state.graph = plan.Graph
	for _, st := range plan.Subtasks {
		state.subtasks[st.ID] = st
	}
	state.task.Status = models.TaskStatusPending
	state.task.UpdatedAt = time.Now()
}

// blockOnCycle marks a task Blocked after a cycle was detected during
// decomposition. Never auto-resolved; correction requires resubmission.
func (e *Engine) blockOnCycle(state *taskState, cause error) {
	now := time.Now()
	state.task.Status = models.TaskStatusBlocked
	state.task.BlockedReason = cause.Error()
	state.task.UpdatedAt = now

	e.logger.Log("[submit] task %s blocked: %v", state.task.ID, cause)
	e.publish(events.TopicTask, events.TaskBlocked{
		ID:        state.task.ID,
		Reason:    cause.Error(),
		Timestamp: now,
	})
	e.publish(events.TopicEscalation, events.EscalationRaised{
		TaskID:    state.task.ID,
		Reason:    cause.Error(),
		Timestamp: now,
	})
}

// singleUnitPlan wraps a below-threshold requirement into a one-node plan
// executed directly, bypassing the decomposer.
func singleUnitPlan(taskID string, req *models.Requirement, assessment assess.Assessment) *decompose.Plan {
	capabilities := make([]string, 0, 4)
	seen := make(map[string]bool)
	effort := 0.0
	for _, goal := range req.Goals {
		effort += goal.Effort
		for _, c := range goal.Capabilities {
			if !seen[c] {
				seen[c] = true
				capabilities = append(capabilities, c)
			}
		}
	}
	if len(capabilities) == 0 {
		capabilities = []string{"general"}
	}
	if effort == 0 {
		effort = 1
	}

	st := &models.Subtask{
		ID:           uuid.New().String(),
		TaskID:       taskID,
		Name:         req.Name,
		Capabilities: capabilities,
		Effort:       effort,
		Status:       models.SubtaskStatusPending,
		Deadline:     req.Deadline,
		EnqueuedAt:   time.Now(),
	}

	g, err := graph.Build([]*models.Subtask{st})
	if err != nil {
		// A single node cannot cycle.
		panic(fmt.Sprintf("single-unit plan: %v", err))
	}
	return &decompose.Plan{
		Subtasks:           []*models.Subtask{st},
		Graph:              g,
		Strategy:           decompose.StrategySequential,
		CriticalPath:       []string{st.ID},
		CriticalPathEffort: effort,
	}
}
