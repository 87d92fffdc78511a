package assess

import (
	"errors"
	"testing"

	"github.com/conductor-dev/conductor/internal/config"
	"github.com/conductor-dev/conductor/pkg/models"
)

func goal(name string, caps ...string) models.Goal {
	return models.Goal{Name: name, Capabilities: caps}
}

func TestAssessSimpleRequirement(t *testing.T) {
	a := New(config.Default().Complexity)
	req := &models.Requirement{
		Name:  "rename field",
		Goals: []models.Goal{goal("rename", "code")},
	}

	got, err := a.Assess(req)
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if got.Decompose {
		t.Errorf("single-goal requirement should not decompose, score=%v", got.Score)
	}
	if got.SubGoals != 1 || got.Capabilities != 1 {
		t.Errorf("signals = %d goals, %d caps, want 1, 1", got.SubGoals, got.Capabilities)
	}
}

func TestAssessComplexRequirement(t *testing.T) {
	a := New(config.Default().Complexity)
	req := &models.Requirement{
		Name:      "launch payments",
		ScopeSize: 9,
		Goals: []models.Goal{
			goal("schema", "db"),
			goal("api", "backend"),
			goal("ui", "frontend"),
			goal("billing", "backend", "payments"),
			goal("tests", "qa"),
		},
	}

	got, err := a.Assess(req)
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if !got.Decompose {
		t.Errorf("multi-goal requirement should decompose, score=%v threshold=%v", got.Score, a.Threshold())
	}
	if got.Capabilities != 5 {
		t.Errorf("Capabilities = %d, want 5", got.Capabilities)
	}
}

func TestAssessScoreBounds(t *testing.T) {
	a := New(config.Default().Complexity)
	goals := make([]models.Goal, 40)
	for i := range goals {
		goals[i] = goal(string(rune('a'+i%26))+string(rune('0'+i/26)), "cap")
	}
	req := &models.Requirement{Name: "huge", Goals: goals, ScopeSize: 100}

	got, err := a.Assess(req)
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if got.Score < 0 || got.Score > 10 {
		t.Errorf("Score = %v, want within [0,10]", got.Score)
	}
}

func TestAssessMonotoneInSubGoals(t *testing.T) {
	a := New(config.Default().Complexity)
	prev := -1.0
	for n := 1; n <= 8; n++ {
		goals := make([]models.Goal, n)
		for i := range goals {
			goals[i] = goal(string(rune('a'+i)), "cap")
		}
		got, err := a.Assess(&models.Requirement{Name: "r", Goals: goals})
		if err != nil {
			t.Fatalf("Assess(%d goals): %v", n, err)
		}
		if got.Score < prev {
			t.Fatalf("score dropped from %v to %v at %d goals", prev, got.Score, n)
		}
		prev = got.Score
	}
}

func TestAssessDescriptionFallback(t *testing.T) {
	a := New(config.Default().Complexity)
	req := &models.Requirement{
		Name:        "migrate",
		Description: "export data, transform records, import into the new cluster, verify counts",
	}

	got, err := a.Assess(req)
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if got.SubGoals < 3 {
		t.Errorf("SubGoals = %d, want at least 3 from description analysis", got.SubGoals)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name string
		req  *models.Requirement
	}{
		{"nil payload", nil},
		{"empty name", &models.Requirement{Goals: []models.Goal{goal("g", "c")}}},
		{"no goals or description", &models.Requirement{Name: "r"}},
		{"negative scope", &models.Requirement{Name: "r", ScopeSize: -1, Goals: []models.Goal{goal("g", "c")}}},
		{"unnamed goal", &models.Requirement{Name: "r", Goals: []models.Goal{goal("", "c")}}},
		{"duplicate goal", &models.Requirement{Name: "r", Goals: []models.Goal{goal("g", "c"), goal("g", "c")}}},
		{"no capabilities", &models.Requirement{Name: "r", Goals: []models.Goal{{Name: "g"}}}},
		{"negative effort", &models.Requirement{Name: "r", Goals: []models.Goal{{Name: "g", Capabilities: []string{"c"}, Effort: -1}}}},
		{"unknown dependency", &models.Requirement{Name: "r", Goals: []models.Goal{{Name: "g", Capabilities: []string{"c"}, DependsOn: []string{"missing"}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.req)
			if err == nil {
				t.Fatal("Validate returned nil, want error")
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("error type = %T, want *ValidationError", err)
			}
		})
	}
}

func TestValidateHints(t *testing.T) {
	if err := ValidateHints(models.PriorityHints{BusinessImpact: 5, Risk: 3}); err != nil {
		t.Errorf("in-range hints rejected: %v", err)
	}
	if err := ValidateHints(models.PriorityHints{Risk: 11}); err == nil {
		t.Error("out-of-range risk accepted")
	}
	if err := ValidateHints(models.PriorityHints{Alignment: -2}); err == nil {
		t.Error("negative alignment accepted")
	}
}
