package orchestrator

import (
	"fmt"
	"sort"

	"github.com/conductor-dev/conductor/internal/priority"
	"github.com/conductor-dev/conductor/pkg/models"
)

// PriorityExplanation is the factor breakdown behind a subtask's most
// recently computed score.
type PriorityExplanation struct {
	Score   float64          `json:"score"`
	Factors priority.Factors `json:"factors"`
}

// SubtaskView pairs a subtask snapshot with its priority explanation.
type SubtaskView struct {
	Subtask  models.Subtask       `json:"subtask"`
	Priority *PriorityExplanation `json:"priority,omitempty"`
}

// TaskView is a read-only snapshot of a task's state.
type TaskView struct {
	Task      models.Task         `json:"task"`
	Subtasks  []SubtaskView       `json:"subtasks"`
	Approvals []models.Approval   `json:"approvals,omitempty"`
	Gates     []models.GateResult `json:"gates,omitempty"`
}

// GetStatus returns a snapshot of a task: status, subtask graph view in
// dependency order, and priority explanations. Read-only and never blocks
// on scheduling work.
func (e *Engine) GetStatus(taskID string) (*TaskView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("get status %s: %w", taskID, ErrTaskNotFound)
	}

	view := &TaskView{
		Task:      *state.task,
		Approvals: cloneApprovals(state.approvals),
	}
	for _, res := range state.gates {
		view.Gates = append(view.Gates, *res)
	}

	if state.graph != nil {
		for _, st := range state.graph.Subtasks() {
			current := state.subtasks[st.ID]
			sv := SubtaskView{Subtask: *current.Clone()}
			if scored, ok := state.scores[st.ID]; ok {
				sv.Priority = &PriorityExplanation{
					Score:   scored.Score,
					Factors: scored.Factors,
				}
			}
			view.Subtasks = append(view.Subtasks, sv)
		}
	}
	return view, nil
}

// Tasks returns snapshots of every known task, newest first by creation.
func (e *Engine) Tasks() []models.Task {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]models.Task, 0, len(e.tasks))
	for _, state := range e.tasks {
		out = append(out, *state.task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
