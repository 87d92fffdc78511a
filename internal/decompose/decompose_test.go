package decompose

import (
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/conductor-dev/conductor/internal/graph"
	"github.com/conductor-dev/conductor/pkg/models"
)

func TestDecomposeParallelGoals(t *testing.T) {
	d := New()
	req := &models.Requirement{
		Name: "independent work",
		Goals: []models.Goal{
			{Name: "a", Capabilities: []string{"code"}},
			{Name: "b", Capabilities: []string{"code"}},
			{Name: "c", Capabilities: []string{"docs"}},
		},
	}

	plan, err := d.Decompose("task-1", req)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if plan.Strategy != StrategyParallel {
		t.Errorf("Strategy = %s, want %s", plan.Strategy, StrategyParallel)
	}
	if len(plan.Subtasks) != 3 {
		t.Fatalf("got %d subtasks, want 3", len(plan.Subtasks))
	}
	for _, st := range plan.Subtasks {
		if st.TaskID != "task-1" {
			t.Errorf("subtask %s TaskID = %s, want task-1", st.Name, st.TaskID)
		}
		if st.Status != models.SubtaskStatusPending {
			t.Errorf("subtask %s Status = %s, want pending", st.Name, st.Status)
		}
		if len(st.DependsOn) != 0 {
			t.Errorf("subtask %s has unexpected deps %v", st.Name, st.DependsOn)
		}
	}
}

func TestDecomposeExplicitDependencies(t *testing.T) {
	d := New()
	req := &models.Requirement{
		Name: "chain",
		Goals: []models.Goal{
			{Name: "schema", Capabilities: []string{"db"}},
			{Name: "api", Capabilities: []string{"backend"}, DependsOn: []string{"schema"}},
			{Name: "ui", Capabilities: []string{"frontend"}, DependsOn: []string{"api"}},
		},
	}

	plan, err := d.Decompose("task-1", req)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if plan.Strategy != StrategySequential {
		t.Errorf("Strategy = %s, want %s", plan.Strategy, StrategySequential)
	}
	byName := indexByName(plan.Subtasks)
	if got := byName["api"].DependsOn; len(got) != 1 || got[0] != byName["schema"].ID {
		t.Errorf("api deps = %v, want [%s]", got, byName["schema"].ID)
	}
}

func TestDecomposeArtifactMatching(t *testing.T) {
	d := New()
	req := &models.Requirement{
		Name: "pipeline",
		Goals: []models.Goal{
			{Name: "extract", Capabilities: []string{"etl"}, Produces: []string{"raw"}},
			{Name: "transform", Capabilities: []string{"etl"}, Consumes: []string{"raw"}, Produces: []string{"clean"}},
			{Name: "load", Capabilities: []string{"etl"}, Consumes: []string{"clean"}},
			{Name: "report", Capabilities: []string{"docs"}},
		},
	}

	plan, err := d.Decompose("task-1", req)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if plan.Strategy != StrategyHybrid {
		t.Errorf("Strategy = %s, want %s", plan.Strategy, StrategyHybrid)
	}
	byName := indexByName(plan.Subtasks)
	if got := byName["transform"].DependsOn; len(got) != 1 || got[0] != byName["extract"].ID {
		t.Errorf("transform deps = %v, want extract only", got)
	}
	if got := byName["load"].DependsOn; len(got) != 1 || got[0] != byName["transform"].ID {
		t.Errorf("load deps = %v, want transform only", got)
	}
	if len(byName["report"].DependsOn) != 0 {
		t.Errorf("report should be independent, deps = %v", byName["report"].DependsOn)
	}
}

func TestDecomposeOrderedChaining(t *testing.T) {
	d := New()
	req := &models.Requirement{
		Name: "release",
		Goals: []models.Goal{
			{Name: "build", Capabilities: []string{"ci"}, Ordered: true},
			{Name: "lint", Capabilities: []string{"ci"}},
			{Name: "deploy", Capabilities: []string{"ops"}, Ordered: true},
		},
	}

	plan, err := d.Decompose("task-1", req)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	byName := indexByName(plan.Subtasks)
	if got := byName["deploy"].DependsOn; len(got) != 1 || got[0] != byName["build"].ID {
		t.Errorf("deploy deps = %v, want build (previous ordered goal)", got)
	}
	if len(byName["lint"].DependsOn) != 0 {
		t.Errorf("lint should stay independent, deps = %v", byName["lint"].DependsOn)
	}
}

func TestDecomposeCycleRejected(t *testing.T) {
	d := New()
	req := &models.Requirement{
		Name: "tangled",
		Goals: []models.Goal{
			{Name: "a", Capabilities: []string{"c"}, DependsOn: []string{"b"}},
			{Name: "b", Capabilities: []string{"c"}, DependsOn: []string{"a"}},
		},
	}

	_, err := d.Decompose("task-1", req)
	if !errors.Is(err, graph.ErrDependencyCycle) {
		t.Fatalf("error = %v, want ErrDependencyCycle", err)
	}
}

func TestDecomposeUnknownDependency(t *testing.T) {
	d := New()
	req := &models.Requirement{
		Name: "broken",
		Goals: []models.Goal{
			{Name: "a", Capabilities: []string{"c"}, DependsOn: []string{"ghost"}},
		},
	}
	if _, err := d.Decompose("task-1", req); err == nil {
		t.Fatal("expected error for unknown dependency")
	}
}

func TestDecomposeCriticalPath(t *testing.T) {
	d := New()
	req := &models.Requirement{
		Name: "weighted",
		Goals: []models.Goal{
			{Name: "a", Capabilities: []string{"c"}, Effort: 2},
			{Name: "b", Capabilities: []string{"c"}, Effort: 3, DependsOn: []string{"a"}},
			{Name: "c", Capabilities: []string{"c"}, Effort: 1, DependsOn: []string{"a"}},
			{Name: "d", Capabilities: []string{"c"}, Effort: 1, DependsOn: []string{"b", "c"}},
		},
	}

	plan, err := d.Decompose("task-1", req)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if plan.CriticalPathEffort != 6 {
		t.Errorf("CriticalPathEffort = %v, want 6", plan.CriticalPathEffort)
	}
	if len(plan.CriticalPath) != 3 {
		t.Errorf("CriticalPath = %v, want 3 nodes", plan.CriticalPath)
	}
}

func TestDecomposeDeadlineInheritance(t *testing.T) {
	d := New()
	reqDeadline := time.Now().Add(24 * time.Hour)
	goalDeadline := time.Now().Add(6 * time.Hour)
	req := &models.Requirement{
		Name:     "due",
		Deadline: &reqDeadline,
		Goals: []models.Goal{
			{Name: "urgent", Capabilities: []string{"c"}, Deadline: &goalDeadline},
			{Name: "normal", Capabilities: []string{"c"}},
		},
	}

	plan, err := d.Decompose("task-1", req)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	byName := indexByName(plan.Subtasks)
	if !byName["urgent"].Deadline.Equal(goalDeadline) {
		t.Errorf("urgent deadline = %v, want goal deadline", byName["urgent"].Deadline)
	}
	if !byName["normal"].Deadline.Equal(reqDeadline) {
		t.Errorf("normal deadline = %v, want inherited requirement deadline", byName["normal"].Deadline)
	}
}

func TestDecomposeDependencyOrderStable(t *testing.T) {
	req := &models.Requirement{
		Name: "fan-in",
		Goals: []models.Goal{
			{Name: "a", Capabilities: []string{"c"}, Produces: []string{"art"}},
			{Name: "b", Capabilities: []string{"c"}, Produces: []string{"art"}},
			{Name: "c", Capabilities: []string{"c"}, Produces: []string{"art"}},
			{Name: "d", Capabilities: []string{"c"}, Produces: []string{"art"}},
			{Name: "sink", Capabilities: []string{"c"}, Consumes: []string{"art"}},
		},
	}

	d := New()
	plan, err := d.Decompose("task-1", req)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}

	sink := indexByName(plan.Subtasks)["sink"]
	if len(sink.DependsOn) != 4 {
		t.Fatalf("sink DependsOn = %v, want 4 producers", sink.DependsOn)
	}
	if !sort.StringsAreSorted(sink.DependsOn) {
		t.Errorf("DependsOn not sorted: %v", sink.DependsOn)
	}
}

func indexByName(subtasks []*models.Subtask) map[string]*models.Subtask {
	m := make(map[string]*models.Subtask, len(subtasks))
	for _, st := range subtasks {
		m[st.Name] = st
	}
	return m
}
