// Package graph provides the dependency graph over a task's subtasks.
// The graph is validated at construction via topological sort and is
// immutable afterwards; only completion marks change.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gammazero/toposort"

	"github.com/conductor-dev/conductor/pkg/models"
)

// ErrDependencyCycle indicates the subtask graph contains a circular
// dependency. Construction rejects such graphs before any execution begins.
var ErrDependencyCycle = errors.New("dependency cycle detected")

// Graph is a directed acyclic graph of subtask dependencies. Edges point from
// a subtask to the subtasks it is blocked by.
type Graph struct {
	mu sync.RWMutex
	// nodes maps subtask ID to the subtask itself.
	nodes map[string]*models.Subtask
	// edges maps subtask ID to the IDs it depends on.
	edges map[string][]string
	// dependents maps subtask ID to the IDs that depend on it.
	dependents map[string][]string
	// completed tracks which subtasks have been marked complete.
	completed map[string]bool
	// order is the topological order computed at build time.
	order []string
}

// Build constructs a validated graph from a slice of subtasks.
// Returns ErrDependencyCycle (wrapped) if the edge set contains a cycle, or
// an error if a dependency references an unknown subtask.
func Build(subtasks []*models.Subtask) (*Graph, error) {
	g := &Graph{
		nodes:      make(map[string]*models.Subtask, len(subtasks)),
		edges:      make(map[string][]string, len(subtasks)),
		dependents: make(map[string][]string),
		completed:  make(map[string]bool),
	}

	for _, st := range subtasks {
		if _, exists := g.nodes[st.ID]; exists {
			return nil, fmt.Errorf("duplicate subtask id %q", st.ID)
		}
		g.nodes[st.ID] = st
		g.edges[st.ID] = nil
	}

	for _, st := range subtasks {
		for _, depID := range st.DependsOn {
			if _, exists := g.nodes[depID]; !exists {
				return nil, fmt.Errorf("subtask %s depends on unknown subtask %s", st.ID, depID)
			}
			g.edges[st.ID] = append(g.edges[st.ID], depID)
			g.dependents[depID] = append(g.dependents[depID], st.ID)
		}
	}

	order, err := g.topoSort()
	if err != nil {
		return nil, err
	}
	g.order = order

	return g, nil
}

// topoSort runs a topological sort over the edge set and returns the order,
// or ErrDependencyCycle if the sort fails.
func (g *Graph) topoSort() ([]string, error) {
	var edges []toposort.Edge
	for id, deps := range g.edges {
		if len(deps) == 0 {
			edges = append(edges, toposort.Edge{nil, id})
			continue
		}
		for _, depID := range deps {
			edges = append(edges, toposort.Edge{depID, id})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDependencyCycle, err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}

	if len(order) != len(g.nodes) {
		var missing []string
		seen := make(map[string]bool, len(order))
		for _, id := range order {
			seen[id] = true
		}
		for id := range g.nodes {
			if !seen[id] {
				missing = append(missing, id)
			}
		}
		sort.Strings(missing)
		return nil, fmt.Errorf("topological sort lost %d subtasks: %s", len(missing), strings.Join(missing, ", "))
	}

	return order, nil
}

// Order returns the topological order computed at build time.
func (g *Graph) Order() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.order...)
}

// Ready returns subtask IDs whose dependencies are all completed and which
// are not themselves completed. These form the candidate set for scheduling.
func (g *Graph) Ready() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []string
	for id := range g.nodes {
		if g.completed[id] {
			continue
		}

		satisfied := true
		for _, depID := range g.edges[id] {
			if !g.completed[depID] {
				satisfied = false
				break
			}
		}
		if satisfied {
			ready = append(ready, id)
		}
	}

	sort.Strings(ready)
	return ready
}

// DependenciesCompleted returns true if every dependency of the given
// subtask has been marked complete.
func (g *Graph) DependenciesCompleted(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, depID := range g.edges[id] {
		if !g.completed[depID] {
			return false
		}
	}
	return true
}

// MarkComplete marks a subtask as completed, unblocking its dependents in
// subsequent Ready calls.
func (g *Graph) MarkComplete(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completed[id] = true
}

// Completed returns true if the subtask has been marked complete.
func (g *Graph) Completed(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.completed[id]
}

// AllCompleted returns true when every subtask in the graph is complete.
func (g *Graph) AllCompleted() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for id := range g.nodes {
		if !g.completed[id] {
			return false
		}
	}
	return true
}

// Get returns the subtask for a given ID, or nil if not found.
func (g *Graph) Get(id string) *models.Subtask {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// Size returns the number of subtasks in the graph.
func (g *Graph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Subtasks returns all subtasks in topological order.
func (g *Graph) Subtasks() []*models.Subtask {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*models.Subtask, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Dependencies returns the IDs the given subtask depends on.
func (g *Graph) Dependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.edges[id]...)
}

// Dependents returns the IDs that directly depend on the given subtask.
func (g *Graph) Dependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.dependents[id]...)
}

// Downstream returns the number of subtasks transitively blocked on the
// given subtask. The priority engine uses this as an urgency boost: a
// subtask holding up a long chain outranks an equally urgent leaf.
func (g *Graph) Downstream(id string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[string]bool)
	var walk func(string)
	walk = func(cur string) {
		for _, dep := range g.dependents[cur] {
			if !seen[dep] {
				seen[dep] = true
				walk(dep)
			}
		}
	}
	walk(id)
	return len(seen)
}

// CriticalPath returns the longest effort-weighted path through the graph
// and its total effort. The decomposer records it so urgency weighting can
// favor subtasks on the path.
func (g *Graph) CriticalPath() ([]string, float64) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	// Longest path ending at each node, walked in topological order.
	best := make(map[string]float64, len(g.order))
	prev := make(map[string]string, len(g.order))

	var endID string
	var endCost float64
	for _, id := range g.order {
		effort := g.nodes[id].Effort
		if effort <= 0 {
			effort = 1
		}
		cost := effort
		for _, depID := range g.edges[id] {
			if c := best[depID] + effort; c > cost {
				cost = c
				prev[id] = depID
			}
		}
		best[id] = cost
		if cost > endCost {
			endCost = cost
			endID = id
		}
	}

	if endID == "" {
		return nil, 0
	}

	var path []string
	for id := endID; id != ""; id = prev[id] {
		path = append(path, id)
		if _, ok := prev[id]; !ok {
			break
		}
	}
	// Reverse into dependency-first order.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, endCost
}
