package worker

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/conductor-dev/conductor/pkg/models"
)

// LocalRunner simulates subtask execution in-process. Each run sleeps
// proportionally to the subtask's declared effort and reports a fixed
// set of dimension scores, with a small deterministic spread derived
// from the subtask ID. It exists so the engine can be exercised without
// a real worker fleet attached.
type LocalRunner struct {
	// BaseLatency is the sleep per unit of effort.
	BaseLatency time.Duration
	// Scores are the dimension scores reported for every completion.
	Scores map[string]float64
}

// NewLocalRunner returns a runner with a 50ms effort unit and a single
// quality dimension scoring 90.
func NewLocalRunner() *LocalRunner {
	return &LocalRunner{
		BaseLatency: 50 * time.Millisecond,
		Scores:      map[string]float64{"quality": 90},
	}
}

// Execute sleeps for the simulated duration, honoring cancellation,
// then reports the configured scores with per-subtask jitter.
func (r *LocalRunner) Execute(ctx context.Context, w *models.Worker, st *models.Subtask) (*Result, error) {
	effort := st.Effort
	if effort <= 0 {
		effort = 1
	}
	d := time.Duration(effort * float64(r.BaseLatency))

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	dims := make(map[string]float64, len(r.Scores))
	for name, score := range r.Scores {
		dims[name] = clampScore(score + jitter(st.ID+name))
	}
	return &Result{
		Output:     fmt.Sprintf("%s completed by %s", st.Name, w.ID),
		Dimensions: dims,
	}, nil
}

// jitter maps a string to a stable offset in [-3, +3].
func jitter(s string) float64 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return float64(h.Sum32()%7) - 3
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
