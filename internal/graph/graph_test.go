package graph

import (
	"errors"
	"testing"

	"github.com/conductor-dev/conductor/pkg/models"
)

func subtask(id string, deps ...string) *models.Subtask {
	return &models.Subtask{ID: id, DependsOn: deps, Effort: 1}
}

func TestBuildSimpleChain(t *testing.T) {
	g, err := Build([]*models.Subtask{
		subtask("a"),
		subtask("b", "a"),
		subtask("c", "b"),
	})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if g.Size() != 3 {
		t.Errorf("expected 3 nodes, got %d", g.Size())
	}

	order := g.Order()
	pos := make(map[string]int)
	for i, id := range order {
		pos[id] = i
	}
	if pos["a"] > pos["b"] || pos["b"] > pos["c"] {
		t.Errorf("topological order violated: %v", order)
	}
}

func TestBuildRejectsCycle(t *testing.T) {
	_, err := Build([]*models.Subtask{
		subtask("a", "c"),
		subtask("b", "a"),
		subtask("c", "b"),
	})
	if err == nil {
		t.Fatal("expected cycle error, got nil")
	}
	if !errors.Is(err, ErrDependencyCycle) {
		t.Errorf("expected ErrDependencyCycle, got %v", err)
	}
}

func TestBuildRejectsSelfDependency(t *testing.T) {
	_, err := Build([]*models.Subtask{subtask("a", "a")})
	if err == nil {
		t.Fatal("expected error for self-dependency")
	}
	if !errors.Is(err, ErrDependencyCycle) {
		t.Errorf("expected ErrDependencyCycle, got %v", err)
	}
}

func TestBuildRejectsUnknownDependency(t *testing.T) {
	_, err := Build([]*models.Subtask{subtask("a", "ghost")})
	if err == nil {
		t.Fatal("expected error for unknown dependency")
	}
	if errors.Is(err, ErrDependencyCycle) {
		t.Error("unknown dependency should not report a cycle")
	}
}

func TestReadyProgression(t *testing.T) {
	// Diamond: a -> {b, c} -> d
	g, err := Build([]*models.Subtask{
		subtask("a"),
		subtask("b", "a"),
		subtask("c", "a"),
		subtask("d", "b", "c"),
	})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	ready := g.Ready()
	if len(ready) != 1 || ready[0] != "a" {
		t.Fatalf("expected only a ready, got %v", ready)
	}

	g.MarkComplete("a")
	ready = g.Ready()
	if len(ready) != 2 {
		t.Fatalf("expected b and c ready after a, got %v", ready)
	}

	g.MarkComplete("b")
	ready = g.Ready()
	if len(ready) != 1 || ready[0] != "c" {
		t.Fatalf("expected only c ready, got %v", ready)
	}

	g.MarkComplete("c")
	ready = g.Ready()
	if len(ready) != 1 || ready[0] != "d" {
		t.Fatalf("expected d ready after b and c, got %v", ready)
	}

	g.MarkComplete("d")
	if !g.AllCompleted() {
		t.Error("expected all subtasks completed")
	}
	if len(g.Ready()) != 0 {
		t.Error("expected empty ready set when all completed")
	}
}

func TestDependenciesCompleted(t *testing.T) {
	g, err := Build([]*models.Subtask{
		subtask("a"),
		subtask("b", "a"),
	})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if g.DependenciesCompleted("b") {
		t.Error("b's dependencies should not be completed yet")
	}
	g.MarkComplete("a")
	if !g.DependenciesCompleted("b") {
		t.Error("b's dependencies should be completed after a")
	}
}

func TestDownstream(t *testing.T) {
	// a blocks b, c, d; c blocks d.
	g, err := Build([]*models.Subtask{
		subtask("a"),
		subtask("b", "a"),
		subtask("c", "a"),
		subtask("d", "c"),
	})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if got := g.Downstream("a"); got != 3 {
		t.Errorf("expected downstream(a)=3, got %d", got)
	}
	if got := g.Downstream("c"); got != 1 {
		t.Errorf("expected downstream(c)=1, got %d", got)
	}
	if got := g.Downstream("d"); got != 0 {
		t.Errorf("expected downstream(d)=0, got %d", got)
	}
}

func TestCriticalPath(t *testing.T) {
	// Chain a(2) -> b(3) -> d(1); branch a(2) -> c(1).
	sts := []*models.Subtask{
		{ID: "a", Effort: 2},
		{ID: "b", Effort: 3, DependsOn: []string{"a"}},
		{ID: "c", Effort: 1, DependsOn: []string{"a"}},
		{ID: "d", Effort: 1, DependsOn: []string{"b"}},
	}
	g, err := Build(sts)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	path, cost := g.CriticalPath()
	want := []string{"a", "b", "d"}
	if len(path) != len(want) {
		t.Fatalf("expected path %v, got %v", want, path)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Fatalf("expected path %v, got %v", want, path)
		}
	}
	if cost != 6 {
		t.Errorf("expected critical path effort 6, got %v", cost)
	}
}

func TestDependentsLookup(t *testing.T) {
	g, err := Build([]*models.Subtask{
		subtask("a"),
		subtask("b", "a"),
		subtask("c", "a"),
	})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	deps := g.Dependents("a")
	if len(deps) != 2 {
		t.Errorf("expected 2 dependents of a, got %v", deps)
	}
	if len(g.Dependents("b")) != 0 {
		t.Error("expected no dependents of b")
	}
}
