package models

import "time"

// Worker represents a registered execution worker. Worker records persist
// across tasks and are removed only on explicit deregistration. Load and
// capacity are mutated only by the orchestrator's serialized decision point.
type Worker struct {
	// ID is the unique identifier for this worker.
	ID string `json:"id"`
	// Capabilities is the set of capability tags this worker advertises.
	Capabilities []string `json:"capabilities"`
	// Load is the number of subtasks currently assigned to this worker.
	Load int `json:"load"`
	// Capacity is the maximum concurrent subtasks this worker accepts.
	Capacity int `json:"capacity"`
	// RegisteredAt is when the worker was registered.
	RegisteredAt time.Time `json:"registered_at"`
}

// HasCapabilities returns true if the worker advertises every required tag.
// Matching is set intersection, not type identity: a worker qualifies for a
// subtask when its capability set covers the subtask's requirements.
func (w *Worker) HasCapabilities(required []string) bool {
	for _, tag := range required {
		found := false
		for _, c := range w.Capabilities {
			if c == tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Available returns true if the worker has spare capacity.
func (w *Worker) Available() bool {
	return w.Load < w.Capacity
}

// Clone returns a deep copy of the worker record.
func (w *Worker) Clone() *Worker {
	if w == nil {
		return nil
	}
	cp := *w
	if w.Capabilities != nil {
		cp.Capabilities = append([]string(nil), w.Capabilities...)
	}
	return &cp
}
