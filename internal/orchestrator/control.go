package orchestrator

import (
	"fmt"
	"time"

	"github.com/conductor-dev/conductor/internal/events"
	"github.com/conductor-dev/conductor/pkg/models"
)

// RegisterWorker adds a worker to the pool. The new capacity takes effect
// at the next scheduling tick.
func (e *Engine) RegisterWorker(w *models.Worker) error {
	if w != nil && w.RegisteredAt.IsZero() {
		w.RegisteredAt = time.Now()
	}
	if err := e.registry.Register(w); err != nil {
		return err
	}
	e.persistWorker(w)
	e.logger.Log("[workers] registered %s capabilities=%v capacity=%d", w.ID, w.Capabilities, w.Capacity)
	e.poke()
	return nil
}

// DeregisterWorker removes a worker from the pool. In-flight work on the
// worker runs to completion; nothing new is dispatched to it.
func (e *Engine) DeregisterWorker(id string) error {
	if _, err := e.registry.Deregister(id); err != nil {
		return err
	}
	e.removeWorker(id)
	e.logger.Log("[workers] deregistered %s", id)
	e.poke()
	return nil
}

// Workers returns a snapshot of the registered pool.
func (e *Engine) Workers() []*models.Worker {
	return e.registry.List()
}

// NotifyContextChange updates a task's dynamic priority factors and
// triggers recomputation. Static factors (impact, alignment) are never
// changed here; the graph is not mutated.
func (e *Engine) NotifyContextChange(taskID string, hints models.PriorityHints) error {
	e.mu.Lock()
	state, ok := e.tasks[taskID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("notify context change %s: %w", taskID, ErrTaskNotFound)
	}
	if hints.Risk != 0 {
		state.hints.Risk = hints.Risk
	}
	e.mu.Unlock()

	e.logger.Log("[context] task %s risk=%.1f", taskID, hints.Risk)
	e.poke()
	return nil
}

// Cancel stops a task. Idempotent, and a no-op on terminal tasks.
// Subtasks that are not running are blocked immediately; running subtasks
// receive context cancellation and are never force-killed.
func (e *Engine) Cancel(taskID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.tasks[taskID]
	if !ok {
		return fmt.Errorf("cancel %s: %w", taskID, ErrTaskNotFound)
	}
	if state.task.Status.Terminal() || state.canceled {
		return nil
	}

	now := time.Now()
	state.canceled = true
	for _, st := range state.subtasks {
		switch st.Status {
		case models.SubtaskStatusRunning, models.SubtaskStatusCompleted,
			models.SubtaskStatusFailed, models.SubtaskStatusBlocked:
			// Running subtasks get cooperative cancellation below;
			// terminal ones keep their state.
		default:
			st.Status = models.SubtaskStatusBlocked
			st.BlockedReason = "task canceled"
			e.persistSubtask(st)
		}
	}
	for _, cancel := range state.inflight {
		cancel()
	}

	state.task.Status = models.TaskStatusBlocked
	state.task.BlockedReason = "canceled"
	state.task.UpdatedAt = now
	e.persistTask(state.task)

	e.logger.Log("[cancel] task %s", taskID)
	e.publish(events.TopicTask, events.TaskCanceled{ID: taskID, Timestamp: now})
	return nil
}

// SetApproval records a decision for a required approval and, once all
// subtasks have completed, re-runs the task-level gate.
func (e *Engine) SetApproval(taskID, name string, status models.ApprovalStatus) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.tasks[taskID]
	if !ok {
		return fmt.Errorf("set approval %s: %w", taskID, ErrTaskNotFound)
	}

	found := false
	for i := range state.approvals {
		if state.approvals[i].Name == name {
			state.approvals[i].Status = status
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("set approval %s: approval %q not required", taskID, name)
	}

	e.logger.Log("[approval] task %s %s=%s", taskID, name, status)
	e.maybeFinishTask(state)
	return nil
}

// Archive evicts a terminal task from the engine's in-memory table. The
// persisted record survives and stays readable through the store; only
// GetStatus and the scheduler forget the task. Archiving a task that has
// not reached a terminal state is an error.
func (e *Engine) Archive(taskID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.tasks[taskID]
	if !ok {
		return fmt.Errorf("archive %s: %w", taskID, ErrTaskNotFound)
	}
	if !state.task.Status.Terminal() {
		return fmt.Errorf("archive %s: task is %s, not terminal", taskID, state.task.Status)
	}

	delete(e.tasks, taskID)
	e.logger.Log("[archive] task %s (%s)", taskID, state.task.Status)
	return nil
}
