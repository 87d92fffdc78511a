package worker

import (
	"context"

	"github.com/conductor-dev/conductor/pkg/models"
)

// Result is a worker's output for one subtask. Dimensions carries the
// self-reported quality scores the gate evaluates.
type Result struct {
	Output     string
	Dimensions map[string]float64
}

// Runner executes a subtask on behalf of a worker. Implementations must
// honor ctx cancellation.
type Runner interface {
	Execute(ctx context.Context, w *models.Worker, st *models.Subtask) (*Result, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, w *models.Worker, st *models.Subtask) (*Result, error)

func (f RunnerFunc) Execute(ctx context.Context, w *models.Worker, st *models.Subtask) (*Result, error) {
	return f(ctx, w, st)
}
