// Package priority scores and orders ready subtasks for dispatch.
package priority

import (
	"sort"
	"time"

	"github.com/conductor-dev/conductor/internal/config"
	"github.com/conductor-dev/conductor/pkg/models"
)

// Factors are the scored inputs for one subtask, each in [0,10].
type Factors struct {
	Impact      float64
	Urgency     float64
	ResourceFit float64
	Alignment   float64
	Risk        float64
}

// Scored pairs a subtask with its computed priority.
type Scored struct {
	Subtask *models.Subtask
	Factors Factors
	// Score is the weighted blend mapped onto [0,100].
	Score float64
}

// Input carries the per-subtask context the engine needs beyond the
// subtask itself.
type Input struct {
	Subtask *models.Subtask
	Hints   models.PriorityHints
	// Downstream is the count of subtasks transitively blocked on this one.
	Downstream int
	// ResourceFit is the [0,10] match between required capabilities and
	// currently available workers.
	ResourceFit float64
}

// Engine computes priority scores from configured weights.
type Engine struct {
	cfg config.PriorityConfig
}

// New creates an Engine with the given priority configuration.
func New(cfg config.PriorityConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Score blends factors into a single [0,100] priority. Risk subtracts.
func (e *Engine) Score(f Factors) float64 {
	w := e.cfg.Weights
	raw := w.Impact*f.Impact +
		w.Urgency*f.Urgency +
		w.ResourceFit*f.ResourceFit +
		w.Alignment*f.Alignment -
		w.Risk*f.Risk
	return clamp(raw*10, 0, 100)
}

// Urgency computes time-decay urgency for a deadline, in [1,10]. Subtasks
// without a deadline sit at DefaultUrgency. Urgency never decreases as now
// advances toward the deadline, and saturates at 10 once it passes.
func (e *Engine) Urgency(now time.Time, deadline *time.Time) float64 {
	base := e.cfg.DefaultUrgency
	if base < 1 {
		base = 1
	}
	if deadline == nil {
		return base
	}
	remaining := deadline.Sub(now)
	if remaining <= 0 {
		return 10
	}
	horizon := e.cfg.UrgencyHorizon
	if horizon <= 0 {
		horizon = 24 * time.Hour
	}
	if remaining >= horizon {
		return base
	}
	frac := 1 - float64(remaining)/float64(horizon)
	return clamp(base+(10-base)*frac, 1, 10)
}

// Evaluate computes the full factor set and score for one subtask.
func (e *Engine) Evaluate(in Input, now time.Time) Scored {
	urgency := e.Urgency(now, in.Subtask.Deadline)
	// Subtasks gating many others get an urgency boost so bottlenecks
	// clear first.
	urgency = clamp(urgency+float64(in.Downstream)*e.cfg.DownstreamBoost, 1, 10)

	f := Factors{
		Impact:      impact(in.Hints),
		Urgency:     urgency,
		ResourceFit: clamp(in.ResourceFit, 0, 10),
		Alignment:   defaulted(in.Hints.Alignment, 5),
		Risk:        clamp(in.Hints.Risk, 0, 10),
	}
	return Scored{Subtask: in.Subtask, Factors: f, Score: e.Score(f)}
}

// Rank evaluates and sorts a batch, highest score first. Ties break on
// earliest EnqueuedAt, then lexicographic ID, so ordering is deterministic.
func (e *Engine) Rank(inputs []Input, now time.Time) []Scored {
	scored := make([]Scored, len(inputs))
	for i, in := range inputs {
		scored[i] = e.Evaluate(in, now)
	}
	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Subtask.EnqueuedAt.Equal(b.Subtask.EnqueuedAt) {
			return a.Subtask.EnqueuedAt.Before(b.Subtask.EnqueuedAt)
		}
		return a.Subtask.ID < b.Subtask.ID
	})
	return scored
}

// impact averages the caller-supplied impact hints, defaulting each to 5.
func impact(h models.PriorityHints) float64 {
	sum := defaulted(h.BusinessImpact, 5) +
		defaulted(h.SystemImpact, 5) +
		defaulted(h.UserImpact, 5) +
		defaulted(h.TechnicalImpact, 5)
	return sum / 4
}

func defaulted(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return clamp(v, 0, 10)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
