// Package gate evaluates quality dimensions and required approvals before
// work is accepted.
package gate

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/conductor-dev/conductor/internal/config"
	"github.com/conductor-dev/conductor/internal/events"
	"github.com/conductor-dev/conductor/pkg/models"
)

// defaultDimensionThreshold applies to reported dimensions with no
// configured threshold.
const defaultDimensionThreshold = 70.0

// Gate scores results against configured thresholds and approval rules.
type Gate struct {
	cfg config.GateConfig
	bus *events.Bus
}

// New creates a Gate. bus may be nil; alerts are then dropped.
func New(cfg config.GateConfig, bus *events.Bus) *Gate {
	return &Gate{cfg: cfg, bus: bus}
}

// EvaluateSubtask gates one subtask's output. Subtask gates have no
// approval step.
func (g *Gate) EvaluateSubtask(taskID, subtaskID string, dims map[string]float64) *models.GateResult {
	res := g.evaluate(dims, nil)
	res.TaskID = taskID
	res.SubtaskID = subtaskID
	res.Scope = models.GateScopeSubtask
	g.alert(res)
	return res
}

// EvaluateTask gates the aggregate task output, including any required
// approvals. Passing scores with undecided approvals yield VerdictPending.
func (g *Gate) EvaluateTask(taskID string, dims map[string]float64, approvals []models.Approval) *models.GateResult {
	res := g.evaluate(dims, approvals)
	res.TaskID = taskID
	res.Scope = models.GateScopeTask
	g.alert(res)
	return res
}

// RejectedApproval returns the first rejected approval, if any. Callers use
// this to distinguish an approval rejection from a score miss.
func RejectedApproval(res *models.GateResult) (models.Approval, bool) {
	for _, a := range res.Approvals {
		if a.Status == models.ApprovalRejected {
			return a, true
		}
	}
	return models.Approval{}, false
}

func (g *Gate) evaluate(dims map[string]float64, approvals []models.Approval) *models.GateResult {
	res := &models.GateResult{
		ID:          uuid.New().String(),
		Approvals:   approvals,
		EvaluatedAt: time.Now(),
	}

	// Configured dimensions are required. A dimension the worker did
	// not report scores zero and fails.
	scores := make(map[string]float64, len(dims))
	for name, score := range dims {
		scores[name] = score
	}
	for name := range g.cfg.Dimensions {
		if _, ok := scores[name]; !ok {
			scores[name] = 0
		}
	}

	allPassed := true
	for _, name := range sortedKeys(scores) {
		threshold, ok := g.cfg.Dimensions[name]
		if !ok {
			threshold = defaultDimensionThreshold
		}
		score := scores[name]
		passed := score >= threshold
		if !passed {
			allPassed = false
		}
		res.Dimensions = append(res.Dimensions, models.DimensionScore{
			Name:      name,
			Score:     score,
			Threshold: threshold,
			Passed:    passed,
		})
	}

	res.OverallScore = g.aggregate(res.Dimensions)

	switch {
	case !allPassed || res.OverallScore < g.cfg.OverallThreshold:
		res.Verdict = models.VerdictFailed
	case anyRejected(approvals):
		res.Verdict = models.VerdictFailed
	case anyPending(approvals):
		res.Verdict = models.VerdictPending
	default:
		res.Verdict = models.VerdictPassed
	}
	return res
}

// aggregate combines dimension scores. Safety-critical dimensions force
// min aggregation so a weak score cannot hide behind a strong mean.
func (g *Gate) aggregate(dims []models.DimensionScore) float64 {
	if len(dims) == 0 {
		return 0
	}
	mode := g.cfg.Aggregation
	if g.hasSafetyCritical(dims) {
		mode = "min"
	}
	if mode == "min" {
		min := dims[0].Score
		for _, d := range dims[1:] {
			if d.Score < min {
				min = d.Score
			}
		}
		return min
	}
	sum := 0.0
	for _, d := range dims {
		sum += d.Score
	}
	return sum / float64(len(dims))
}

func (g *Gate) hasSafetyCritical(dims []models.DimensionScore) bool {
	for _, name := range g.cfg.SafetyCritical {
		for _, d := range dims {
			if d.Name == name {
				return true
			}
		}
	}
	return false
}

// alert publishes a GateAlert for failed evaluations. Safety-critical or
// task-level failures are critical, the rest warnings.
func (g *Gate) alert(res *models.GateResult) {
	if g.bus == nil || res.Verdict != models.VerdictFailed {
		return
	}

	severity := events.SeverityWarning
	reason := "quality score below threshold"
	if a, ok := RejectedApproval(res); ok {
		reason = "approval rejected: " + a.Name
		severity = events.SeverityCritical
	}
	if res.Scope == models.GateScopeTask {
		severity = events.SeverityCritical
	}
	for _, d := range res.Dimensions {
		if !d.Passed && g.isSafetyCritical(d.Name) {
			severity = events.SeverityCritical
			reason = "safety-critical dimension failed: " + d.Name
			break
		}
	}

	g.bus.Publish(events.TopicAlert, events.GateAlert{
		TaskID:    res.TaskID,
		SubtaskID: res.SubtaskID,
		Severity:  severity,
		Score:     res.OverallScore,
		Threshold: g.cfg.OverallThreshold,
		Reason:    reason,
		Timestamp: time.Now(),
	})
}

func anyRejected(approvals []models.Approval) bool {
	for _, a := range approvals {
		if a.Status == models.ApprovalRejected {
			return true
		}
	}
	return false
}

func anyPending(approvals []models.Approval) bool {
	for _, a := range approvals {
		if a.Status == models.ApprovalPending {
			return true
		}
	}
	return false
}

func (g *Gate) isSafetyCritical(name string) bool {
	for _, sc := range g.cfg.SafetyCritical {
		if sc == name {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
