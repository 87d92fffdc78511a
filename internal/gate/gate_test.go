package gate

import (
	"testing"
	"time"

	"github.com/conductor-dev/conductor/internal/config"
	"github.com/conductor-dev/conductor/internal/events"
	"github.com/conductor-dev/conductor/pkg/models"
)

func testConfig() config.GateConfig {
	return config.GateConfig{
		OverallThreshold: 85,
		Dimensions: map[string]float64{
			"correctness":  80,
			"completeness": 75,
		},
		Aggregation: "mean",
	}
}

func TestEvaluateSubtaskPass(t *testing.T) {
	g := New(testConfig(), nil)
	res := g.EvaluateSubtask("t1", "s1", map[string]float64{
		"correctness":  95,
		"completeness": 90,
	})

	if res.Verdict != models.VerdictPassed {
		t.Fatalf("Verdict = %s, want passed (overall %v)", res.Verdict, res.OverallScore)
	}
	if res.Scope != models.GateScopeSubtask || res.SubtaskID != "s1" {
		t.Errorf("scope/subtask = %s/%s, want subtask/s1", res.Scope, res.SubtaskID)
	}
	if res.OverallScore != 92.5 {
		t.Errorf("OverallScore = %v, want 92.5", res.OverallScore)
	}
}

func TestEvaluateDimensionMiss(t *testing.T) {
	g := New(testConfig(), nil)
	res := g.EvaluateSubtask("t1", "s1", map[string]float64{
		"correctness":  95,
		"completeness": 60,
	})

	if res.Verdict != models.VerdictFailed {
		t.Fatalf("Verdict = %s, want failed on completeness miss", res.Verdict)
	}
	for _, d := range res.Dimensions {
		if d.Name == "completeness" && d.Passed {
			t.Error("completeness marked passed below threshold")
		}
		if d.Name == "correctness" && !d.Passed {
			t.Error("correctness marked failed above threshold")
		}
	}
}

func TestEvaluateMissingRequiredDimension(t *testing.T) {
	g := New(testConfig(), nil)
	res := g.EvaluateSubtask("t1", "s1", map[string]float64{"correctness": 95})

	if res.Verdict != models.VerdictFailed {
		t.Fatalf("Verdict = %s, want failed when a required dimension is unreported", res.Verdict)
	}
	found := false
	for _, d := range res.Dimensions {
		if d.Name == "completeness" {
			found = true
			if d.Score != 0 || d.Passed {
				t.Errorf("unreported dimension = %+v, want score 0, failed", d)
			}
		}
	}
	if !found {
		t.Error("unreported required dimension missing from result")
	}
}

func TestEvaluateUnknownDimensionDefaultThreshold(t *testing.T) {
	g := New(config.GateConfig{OverallThreshold: 50, Aggregation: "mean"}, nil)
	res := g.EvaluateSubtask("t1", "s1", map[string]float64{"style": 70})
	if res.Dimensions[0].Threshold != defaultDimensionThreshold {
		t.Errorf("Threshold = %v, want default %v", res.Dimensions[0].Threshold, defaultDimensionThreshold)
	}
	if res.Verdict != models.VerdictPassed {
		t.Errorf("Verdict = %s, want passed at the default threshold", res.Verdict)
	}
}

func TestSafetyCriticalForcesMin(t *testing.T) {
	cfg := testConfig()
	cfg.SafetyCritical = []string{"correctness"}
	g := New(cfg, nil)

	// Mean would be 87.5 and pass; min is 80 and fails the overall bar.
	res := g.EvaluateSubtask("t1", "s1", map[string]float64{
		"correctness":  80,
		"completeness": 95,
	})
	if res.OverallScore != 80 {
		t.Errorf("OverallScore = %v, want min 80", res.OverallScore)
	}
	if res.Verdict != models.VerdictFailed {
		t.Errorf("Verdict = %s, want failed under min aggregation", res.Verdict)
	}
}

func TestEvaluateTaskApprovals(t *testing.T) {
	g := New(testConfig(), nil)
	dims := map[string]float64{"correctness": 95, "completeness": 90}

	tests := []struct {
		name      string
		approvals []models.Approval
		want      models.Verdict
	}{
		{"all approved", []models.Approval{{Name: "security", Status: models.ApprovalApproved}}, models.VerdictPassed},
		{"one pending", []models.Approval{{Name: "security", Status: models.ApprovalPending}}, models.VerdictPending},
		{"one rejected", []models.Approval{
			{Name: "security", Status: models.ApprovalApproved},
			{Name: "legal", Status: models.ApprovalRejected},
		}, models.VerdictFailed},
		{"none required", nil, models.VerdictPassed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := g.EvaluateTask("t1", dims, tt.approvals)
			if res.Verdict != tt.want {
				t.Errorf("Verdict = %s, want %s", res.Verdict, tt.want)
			}
		})
	}
}

func TestRejectedApproval(t *testing.T) {
	res := &models.GateResult{Approvals: []models.Approval{
		{Name: "a", Status: models.ApprovalApproved},
		{Name: "b", Status: models.ApprovalRejected},
	}}
	a, ok := RejectedApproval(res)
	if !ok || a.Name != "b" {
		t.Errorf("RejectedApproval = %+v, %v, want b, true", a, ok)
	}
	if _, ok := RejectedApproval(&models.GateResult{}); ok {
		t.Error("RejectedApproval reported a rejection on an empty result")
	}
}

func TestFailureEmitsAlert(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	alerts := bus.Subscribe(events.TopicAlert, 4)

	cfg := testConfig()
	cfg.SafetyCritical = []string{"correctness"}
	g := New(cfg, bus)

	g.EvaluateSubtask("t1", "s1", map[string]float64{
		"correctness":  40,
		"completeness": 90,
	})

	select {
	case ev := <-alerts:
		alert, ok := ev.(events.GateAlert)
		if !ok {
			t.Fatalf("event type = %T, want GateAlert", ev)
		}
		if alert.Severity != events.SeverityCritical {
			t.Errorf("Severity = %s, want critical for safety-critical miss", alert.Severity)
		}
		if alert.TaskID != "t1" || alert.SubtaskID != "s1" {
			t.Errorf("alert subject = %s/%s, want t1/s1", alert.TaskID, alert.SubtaskID)
		}
	case <-time.After(time.Second):
		t.Fatal("no alert published for failed gate")
	}
}

func TestPassEmitsNoAlert(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	alerts := bus.Subscribe(events.TopicAlert, 4)

	g := New(testConfig(), bus)
	g.EvaluateSubtask("t1", "s1", map[string]float64{
		"correctness":  95,
		"completeness": 90,
	})

	select {
	case ev := <-alerts:
		t.Fatalf("unexpected alert %v for passing gate", ev)
	case <-time.After(50 * time.Millisecond):
	}
}
