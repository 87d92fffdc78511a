// Package decompose breaks complex requirements into dependency-ordered
// subtask graphs.
package decompose

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/conductor-dev/conductor/internal/graph"
	"github.com/conductor-dev/conductor/pkg/models"
)

// Strategy describes how a plan's subtasks can be scheduled.
type Strategy string

const (
	// StrategySequential means every subtask depends on its predecessor.
	StrategySequential Strategy = "sequential"
	// StrategyParallel means no subtask depends on any other.
	StrategyParallel Strategy = "parallel"
	// StrategyHybrid means the graph mixes chains and independent branches.
	StrategyHybrid Strategy = "hybrid"
)

// Plan is the output of decomposing one task.
type Plan struct {
	Subtasks []*models.Subtask
	Graph    *graph.Graph
	Strategy Strategy
	// CriticalPath is the longest effort-weighted chain through the graph.
	CriticalPath []string
	// CriticalPathEffort is the summed effort along CriticalPath.
	CriticalPathEffort float64
}

// Decomposer turns requirements into executable subtask plans.
type Decomposer struct{}

// New creates a Decomposer.
func New() *Decomposer {
	return &Decomposer{}
}

// Decompose builds a subtask plan for the task from the requirement's goals.
// Dependencies come from three sources: explicit depends_on declarations,
// produces/consumes artifact matching, and ordered-goal chaining. Cycles in
// the combined edge set are rejected with graph.ErrDependencyCycle.
func (d *Decomposer) Decompose(taskID string, req *models.Requirement) (*Plan, error) {
	if len(req.Goals) == 0 {
		return nil, fmt.Errorf("decompose task %s: requirement has no goals", taskID)
	}

	now := time.Now()
	nameToID := make(map[string]string, len(req.Goals))
	subtasks := make([]*models.Subtask, len(req.Goals))

	for i, goal := range req.Goals {
		id := uuid.New().String()
		nameToID[goal.Name] = id

		effort := goal.Effort
		if effort == 0 {
			effort = 1
		}
		deadline := goal.Deadline
		if deadline == nil {
			deadline = req.Deadline
		}

		subtasks[i] = &models.Subtask{
			ID:           id,
			TaskID:       taskID,
			Name:         goal.Name,
			Capabilities: append([]string(nil), goal.Capabilities...),
			Effort:       effort,
			Status:       models.SubtaskStatusPending,
			Deadline:     deadline,
			EnqueuedAt:   now,
		}
	}

	if err := d.wireDependencies(req, subtasks, nameToID); err != nil {
		return nil, err
	}

	g, err := graph.Build(subtasks)
	if err != nil {
		return nil, fmt.Errorf("decompose task %s: %w", taskID, err)
	}

	path, effort := g.CriticalPath()
	return &Plan{
		Subtasks:           g.Subtasks(),
		Graph:              g,
		Strategy:           classify(subtasks),
		CriticalPath:       path,
		CriticalPathEffort: effort,
	}, nil
}

// wireDependencies populates each subtask's DependsOn from the requirement.
func (d *Decomposer) wireDependencies(req *models.Requirement, subtasks []*models.Subtask, nameToID map[string]string) error {
	producers := make(map[string][]string)
	for i, goal := range req.Goals {
		for _, artifact := range goal.Produces {
			producers[artifact] = append(producers[artifact], subtasks[i].ID)
		}
	}

	for i, goal := range req.Goals {
		deps := make(map[string]bool)

		for _, depName := range goal.DependsOn {
			depID, ok := nameToID[depName]
			if !ok {
				return fmt.Errorf("goal %q depends on unknown goal %q", goal.Name, depName)
			}
			deps[depID] = true
		}

		// A goal consuming an artifact waits for every goal producing it.
		for _, artifact := range goal.Consumes {
			for _, prodID := range producers[artifact] {
				if prodID != subtasks[i].ID {
					deps[prodID] = true
				}
			}
		}

		// Ordered goals chain onto the previous ordered goal.
		if goal.Ordered && i > 0 {
			for j := i - 1; j >= 0; j-- {
				if req.Goals[j].Ordered {
					deps[subtasks[j].ID] = true
					break
				}
			}
		}

		// Sorted so the wire order is stable across runs.
		ids := make([]string, 0, len(deps))
		for depID := range deps {
			ids = append(ids, depID)
		}
		sort.Strings(ids)
		subtasks[i].DependsOn = append(subtasks[i].DependsOn, ids...)
	}
	return nil
}

// classify inspects the edge structure to label the plan's strategy.
func classify(subtasks []*models.Subtask) Strategy {
	withDeps := 0
	for _, st := range subtasks {
		if len(st.DependsOn) > 0 {
			withDeps++
		}
	}
	switch {
	case withDeps == 0:
		return StrategyParallel
	case withDeps == len(subtasks)-1 && isChain(subtasks):
		return StrategySequential
	default:
		return StrategyHybrid
	}
}

// isChain reports whether the graph is a single linear chain.
func isChain(subtasks []*models.Subtask) bool {
	dependedOn := make(map[string]int)
	for _, st := range subtasks {
		if len(st.DependsOn) > 1 {
			return false
		}
		for _, dep := range st.DependsOn {
			dependedOn[dep]++
		}
	}
	for _, n := range dependedOn {
		if n > 1 {
			return false
		}
	}
	return len(dependedOn) == len(subtasks)-1
}
