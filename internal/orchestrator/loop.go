package orchestrator

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/conductor-dev/conductor/internal/events"
	"github.com/conductor-dev/conductor/internal/gate"
	"github.com/conductor-dev/conductor/internal/priority"
	"github.com/conductor-dev/conductor/pkg/models"
)

// runLoop is the coordinator. It is the only goroutine that transitions
// task and subtask state; completions and external pokes funnel into it.
func (e *Engine) runLoop(ctx context.Context) {
	defer close(e.done)

	e.mu.Lock()
	interval := e.cfg.Priority.TickInterval
	e.mu.Unlock()
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.cancelInflight()
			return
		case c := <-e.completions:
			e.handleCompletion(c)
			e.schedule(ctx)
		case <-e.kick:
			e.schedule(ctx)
		case <-ticker.C:
			e.schedule(ctx)
		}
	}
}

// cancelInflight signals cancellation to every running execution.
func (e *Engine) cancelInflight() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, state := range e.tasks {
		for _, cancel := range state.inflight {
			cancel()
		}
	}
}

// schedule runs one scheduling pass: promote newly ready subtasks, rank
// the ready set, and dispatch in priority order to matching workers.
func (e *Engine) schedule(ctx context.Context) {
	if e.runner == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	var inputs []priority.Input
	owner := make(map[string]*taskState)

	for _, state := range e.tasks {
		if state.canceled || !schedulable(state.task.Status) {
			continue
		}
		for _, st := range state.subtasks {
			switch st.Status {
			case models.SubtaskStatusPending:
				if state.graph.DependenciesCompleted(st.ID) {
					st.Status = models.SubtaskStatusReady
				}
			case models.SubtaskStatusRetryPending:
				if st.NextAttemptAt != nil && !now.Before(*st.NextAttemptAt) {
					st.Status = models.SubtaskStatusReady
					st.NextAttemptAt = nil
				}
			}
			if st.Status != models.SubtaskStatusReady {
				continue
			}
			owner[st.ID] = state
			inputs = append(inputs, priority.Input{
				Subtask:     st,
				Hints:       state.hints,
				Downstream:  state.graph.Downstream(st.ID),
				ResourceFit: e.registry.Fit(st.Capabilities),
			})
		}
	}

	if len(inputs) == 0 {
		return
	}

	ranked := e.priorities.Rank(inputs, now)
	for _, scored := range ranked {
		state := owner[scored.Subtask.ID]
		state.scores[scored.Subtask.ID] = scored
	}

	for _, scored := range ranked {
		st := scored.Subtask
		state := owner[st.ID]

		candidates := e.registry.Match(st.Capabilities)
		if len(candidates) == 0 {
			// Stays Ready; recorded once per wait, re-evaluated next tick.
			if !state.capacity[st.ID] {
				state.capacity[st.ID] = true
				condition := &CapacityExceededError{SubtaskID: st.ID, Capabilities: st.Capabilities}
				e.logger.Log("[schedule] %v", condition)
				e.publish(events.TopicSubtask, events.CapacityExceeded{
					ID:           st.ID,
					TaskID:       st.TaskID,
					Capabilities: st.Capabilities,
					Timestamp:    now,
				})
			}
			continue
		}

		w := candidates[0]
		if err := e.registry.Acquire(w.ID); err != nil {
			continue
		}
		delete(state.capacity, st.ID)
		e.dispatch(ctx, state, st, w.ID, scored.Score)
	}
}

func schedulable(s models.TaskStatus) bool {
	return s == models.TaskStatusPending || s == models.TaskStatusRunning
}

// dispatch hands one ready subtask to a worker. Caller holds e.mu and has
// already reserved worker capacity.
func (e *Engine) dispatch(ctx context.Context, state *taskState, st *models.Subtask, workerID string, score float64) {
	now := time.Now()
	st.Status = models.SubtaskStatusAssigned
	st.AssignedTo = workerID
	st.Attempts++
	st.Error = ""

	if state.task.Status == models.TaskStatusPending {
		state.task.Status = models.TaskStatusRunning
		state.task.UpdatedAt = now
		e.persistTask(state.task)
	}

	timeout := e.cfg.Execution.SubtaskTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	subCtx, cancel := context.WithTimeout(ctx, timeout)
	state.inflight[st.ID] = cancel

	st.Status = models.SubtaskStatusRunning
	e.persistSubtask(st)

	e.logger.Log("[dispatch] subtask %s (%s) -> worker %s, attempt %d, score %.1f",
		st.ID, st.Name, workerID, st.Attempts, score)
	e.publish(events.TopicSubtask, events.SubtaskAssigned{
		ID:        st.ID,
		TaskID:    st.TaskID,
		WorkerID:  workerID,
		Score:     score,
		Timestamp: now,
	})

	clone := st.Clone()
	go func() {
		res, err := e.registry.Execute(subCtx, workerID, clone, e.runner)
		cancel()
		select {
		case e.completions <- completion{
			taskID:    clone.TaskID,
			subtaskID: clone.ID,
			workerID:  workerID,
			started:   now,
			result:    res,
			err:       err,
		}:
		case <-ctx.Done():
		}
	}()
}

// handleCompletion processes one finished execution attempt.
func (e *Engine) handleCompletion(c completion) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.registry.Release(c.workerID)

	state, ok := e.tasks[c.taskID]
	if !ok {
		return
	}
	st, ok := state.subtasks[c.subtaskID]
	if !ok {
		return
	}
	delete(state.inflight, c.subtaskID)

	if state.canceled {
		st.Status = models.SubtaskStatusBlocked
		st.BlockedReason = "task canceled"
		e.persistSubtask(st)
		return
	}

	if c.err != nil {
		e.failAttempt(state, st, c.workerID, c.err.Error())
		return
	}

	st.Output = c.result.Output
	gateRes := e.gate.EvaluateSubtask(st.TaskID, st.ID, c.result.Dimensions)
	state.gates = append(state.gates, gateRes)
	e.persistGate(gateRes)

	if gateRes.Verdict != models.VerdictPassed {
		e.failAttempt(state, st, c.workerID, "quality gate failed")
		return
	}

	now := time.Now()
	st.Status = models.SubtaskStatusCompleted
	st.CompletedAt = &now
	state.graph.MarkComplete(st.ID)
	delete(state.backoffs, st.ID)
	e.persistSubtask(st)

	e.logger.Log("[complete] subtask %s done after %d attempt(s)", st.ID, st.Attempts)
	e.publish(events.TopicSubtask, events.SubtaskCompleted{
		ID:        st.ID,
		TaskID:    st.TaskID,
		WorkerID:  c.workerID,
		Attempts:  st.Attempts,
		Duration:  now.Sub(c.started),
		Timestamp: now,
	})

	e.maybeFinishTask(state)
}

// failAttempt routes a failed execution or gate miss into the retry path,
// blocking the subtask and escalating once the retry budget is exhausted.
func (e *Engine) failAttempt(state *taskState, st *models.Subtask, workerID, reason string) {
	now := time.Now()
	st.Error = reason

	e.logger.Log("[fail] subtask %s attempt %d: %s", st.ID, st.Attempts, reason)
	e.publish(events.TopicSubtask, events.SubtaskFailed{
		ID:        st.ID,
		TaskID:    st.TaskID,
		WorkerID:  workerID,
		Attempt:   st.Attempts,
		Err:       reason,
		Timestamp: now,
	})

	limit := e.cfg.Execution.RetryLimit
	if limit <= 0 {
		limit = 3
	}
	if st.Attempts < limit {
		delay := e.nextBackoff(state, st.ID)
		next := now.Add(delay)
		st.Status = models.SubtaskStatusRetryPending
		st.NextAttemptAt = &next
		e.persistSubtask(st)

		e.publish(events.TopicSubtask, events.SubtaskRetry{
			ID:        st.ID,
			TaskID:    st.TaskID,
			Attempt:   st.Attempts,
			Delay:     delay,
			Timestamp: now,
		})
		return
	}

	st.Status = models.SubtaskStatusBlocked
	st.BlockedReason = "retry limit exhausted: " + reason
	e.persistSubtask(st)

	e.publish(events.TopicEscalation, events.EscalationRaised{
		TaskID:    st.TaskID,
		SubtaskID: st.ID,
		Reason:    st.BlockedReason,
		Attempts:  st.Attempts,
		Timestamp: now,
	})
	e.blockTask(state, st.BlockedReason)
}

// blockTask marks a task Blocked. Every subtask is required, so a blocked
// subtask leaves no path to completion.
func (e *Engine) blockTask(state *taskState, reason string) {
	if state.task.Status.Terminal() || state.task.Status == models.TaskStatusBlocked {
		return
	}
	now := time.Now()
	state.task.Status = models.TaskStatusBlocked
	state.task.BlockedReason = reason
	state.task.UpdatedAt = now
	e.persistTask(state.task)

	e.publish(events.TopicTask, events.TaskBlocked{
		ID:        state.task.ID,
		Reason:    reason,
		Timestamp: now,
	})
}

// nextBackoff returns the next retry delay for a subtask, maintaining one
// exponential schedule per subtask across its attempts.
func (e *Engine) nextBackoff(state *taskState, subtaskID string) time.Duration {
	b, ok := state.backoffs[subtaskID]
	if !ok {
		cfg := e.cfg.Execution.Backoff
		b = backoff.NewExponentialBackOff()
		if cfg.InitialInterval > 0 {
			b.InitialInterval = cfg.InitialInterval
		}
		if cfg.MaxInterval > 0 {
			b.MaxInterval = cfg.MaxInterval
		}
		if cfg.Multiplier > 0 {
			b.Multiplier = cfg.Multiplier
		}
		b.RandomizationFactor = cfg.RandomizationFactor
		b.MaxElapsedTime = 0
		b.Reset()
		state.backoffs[subtaskID] = b
	}
	return b.NextBackOff()
}

// maybeFinishTask runs the task-level gate once every subtask completed.
// Caller holds e.mu.
func (e *Engine) maybeFinishTask(state *taskState) {
	if !state.graph.AllCompleted() || state.task.Status.Terminal() {
		return
	}

	dims := aggregateDimensions(state)
	gateRes := e.gate.EvaluateTask(state.task.ID, dims, cloneApprovals(state.approvals))
	state.gates = append(state.gates, gateRes)
	e.persistGate(gateRes)

	now := time.Now()
	switch gateRes.Verdict {
	case models.VerdictPassed:
		state.task.Status = models.TaskStatusCompleted
		state.task.CompletedAt = &now
		state.task.UpdatedAt = now
		e.persistTask(state.task)

		e.logger.Log("[complete] task %s", state.task.ID)
		e.publish(events.TopicTask, events.TaskCompleted{ID: state.task.ID, Timestamp: now})

	case models.VerdictPending:
		// Scores cleared; waiting on approvals. Re-evaluated on SetApproval.
		e.logger.Log("[gate] task %s pending approvals", state.task.ID)

	case models.VerdictFailed:
		if rejected, ok := gate.RejectedApproval(gateRes); ok {
			reason := "approval rejected: " + rejected.Name
			e.blockTask(state, reason)
			e.publish(events.TopicEscalation, events.EscalationRaised{
				TaskID:    state.task.ID,
				Reason:    reason,
				Timestamp: now,
			})
			return
		}

		state.task.Status = models.TaskStatusFailed
		state.task.Error = "task-level quality gate failed"
		state.task.UpdatedAt = now
		e.persistTask(state.task)

		e.publish(events.TopicTask, events.TaskFailed{
			ID:        state.task.ID,
			Reason:    state.task.Error,
			Timestamp: now,
		})
		e.publish(events.TopicEscalation, events.EscalationRaised{
			TaskID:    state.task.ID,
			Reason:    state.task.Error,
			Timestamp: now,
		})
	}
}

// aggregateDimensions averages each dimension's final subtask-level score
// across the task's subtasks.
func aggregateDimensions(state *taskState) map[string]float64 {
	latest := make(map[string]*models.GateResult)
	for _, res := range state.gates {
		if res.Scope == models.GateScopeSubtask {
			latest[res.SubtaskID] = res
		}
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, res := range latest {
		for _, d := range res.Dimensions {
			sums[d.Name] += d.Score
			counts[d.Name]++
		}
	}

	out := make(map[string]float64, len(sums))
	for name, sum := range sums {
		out[name] = sum / float64(counts[name])
	}
	return out
}

func cloneApprovals(approvals []models.Approval) []models.Approval {
	if approvals == nil {
		return nil
	}
	return append([]models.Approval(nil), approvals...)
}
