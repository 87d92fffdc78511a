// Package worker tracks registered workers, their capabilities and load,
// and guards dispatch with per-worker circuit breakers.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sony/gobreaker"

	"github.com/conductor-dev/conductor/internal/config"
	"github.com/conductor-dev/conductor/pkg/models"
)

var (
	// ErrNotFound is returned when a worker ID is not registered.
	ErrNotFound = errors.New("worker not registered")
	// ErrDuplicate is returned when registering an already known worker ID.
	ErrDuplicate = errors.New("worker already registered")
	// ErrAtCapacity is returned when a worker has no free slots.
	ErrAtCapacity = errors.New("worker at capacity")
)

// Registry is the in-memory worker pool. All methods are safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	workers  map[string]*models.Worker
	breakers map[string]*gobreaker.CircuitBreaker
	cfg      config.ExecutionConfig
}

// NewRegistry creates an empty Registry.
func NewRegistry(cfg config.ExecutionConfig) *Registry {
	return &Registry{
		workers:  make(map[string]*models.Worker),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		cfg:      cfg,
	}
}

// Register adds a worker to the pool.
func (r *Registry) Register(w *models.Worker) error {
	if w == nil || w.ID == "" {
		return fmt.Errorf("register worker: missing ID")
	}
	if len(w.Capabilities) == 0 {
		return fmt.Errorf("register worker %s: no capabilities", w.ID)
	}
	if w.Capacity <= 0 {
		return fmt.Errorf("register worker %s: capacity must be positive", w.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.workers[w.ID]; ok {
		return fmt.Errorf("register worker %s: %w", w.ID, ErrDuplicate)
	}
	r.workers[w.ID] = w.Clone()
	return nil
}

// Deregister removes a worker and returns its final state. The worker's
// breaker is dropped with it.
func (r *Registry) Deregister(id string) (*models.Worker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[id]
	if !ok {
		return nil, fmt.Errorf("deregister worker %s: %w", id, ErrNotFound)
	}
	delete(r.workers, id)
	delete(r.breakers, id)
	return w, nil
}

// Get returns a copy of the worker's current state.
func (r *Registry) Get(id string) (*models.Worker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[id]
	if !ok {
		return nil, fmt.Errorf("worker %s: %w", id, ErrNotFound)
	}
	return w.Clone(), nil
}

// List returns copies of all workers, sorted by ID.
func (r *Registry) List() []*models.Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Worker, 0, len(r.workers))
	for _, w := range r.workers {
		out = append(out, w.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Match returns available workers covering all required capabilities,
// least loaded first. Workers with an open breaker are skipped.
func (r *Registry) Match(required []string) []*models.Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Worker
	for id, w := range r.workers {
		if !w.Available() || !w.HasCapabilities(required) {
			continue
		}
		if cb, ok := r.breakers[id]; ok && cb.State() == gobreaker.StateOpen {
			continue
		}
		out = append(out, w.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Load != out[j].Load {
			return out[i].Load < out[j].Load
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Fit scores how well the current pool serves a capability set, in [0,10].
// Zero means no registered worker covers the set. Otherwise the score
// scales with the free share of covering workers' capacity, bottoming out
// at 2 when all of them are saturated.
func (r *Registry) Fit(required []string) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var free, total int
	for _, w := range r.workers {
		if !w.HasCapabilities(required) {
			continue
		}
		total += w.Capacity
		free += w.Capacity - w.Load
	}
	if total == 0 {
		return 0
	}
	return 2 + 8*float64(free)/float64(total)
}

// Acquire reserves one slot on the worker.
func (r *Registry) Acquire(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[id]
	if !ok {
		return fmt.Errorf("acquire worker %s: %w", id, ErrNotFound)
	}
	if w.Load >= w.Capacity {
		return fmt.Errorf("acquire worker %s: %w", id, ErrAtCapacity)
	}
	w.Load++
	return nil
}

// Release frees one slot on the worker. No-op if the worker is gone or idle.
func (r *Registry) Release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.workers[id]; ok && w.Load > 0 {
		w.Load--
	}
}

// TotalFree returns the number of unoccupied slots across the pool.
func (r *Registry) TotalFree() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	free := 0
	for _, w := range r.workers {
		free += w.Capacity - w.Load
	}
	return free
}

// Execute runs a subtask on the worker through its circuit breaker.
// Consecutive failures open the breaker, taking the worker out of Match
// rotation until the cooldown elapses. Context cancellation does not count
// against the breaker.
func (r *Registry) Execute(ctx context.Context, workerID string, st *models.Subtask, runner Runner) (*Result, error) {
	r.mu.RLock()
	w, ok := r.workers[workerID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("execute on worker %s: %w", workerID, ErrNotFound)
	}
	snapshot := w.Clone()

	res, err := r.breaker(workerID).Execute(func() (interface{}, error) {
		return runner.Execute(ctx, snapshot, st)
	})
	if err != nil {
		return nil, err
	}
	return res.(*Result), nil
}

// BreakerState reports the breaker state for a worker. Workers that have
// never executed report the closed state.
func (r *Registry) BreakerState(workerID string) gobreaker.State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cb, ok := r.breakers[workerID]; ok {
		return cb.State()
	}
	return gobreaker.StateClosed
}

func (r *Registry) breaker(workerID string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[workerID]; ok {
		return cb
	}

	threshold := r.cfg.BreakerThreshold
	if threshold == 0 {
		threshold = 5
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        workerID,
		MaxRequests: 1,
		Timeout:     r.cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// Cancellation reflects the caller, not worker health.
			return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})
	r.breakers[workerID] = cb
	return cb
}
