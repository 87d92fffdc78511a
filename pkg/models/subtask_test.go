package models

import "testing"

func TestSubtaskStatusValid(t *testing.T) {
	valid := []SubtaskStatus{
		SubtaskStatusPending,
		SubtaskStatusReady,
		SubtaskStatusAssigned,
		SubtaskStatusRunning,
		SubtaskStatusRetryPending,
		SubtaskStatusBlocked,
		SubtaskStatusCompleted,
		SubtaskStatusFailed,
	}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("expected status %q to be valid", s)
		}
	}

	if SubtaskStatus("decomposing").Valid() {
		t.Error("decomposing is a task status, not a subtask status")
	}
}

func TestSubtaskRequiresCapability(t *testing.T) {
	st := &Subtask{Capabilities: []string{"build", "test"}}

	if !st.RequiresCapability("build") {
		t.Error("expected subtask to require build")
	}
	if st.RequiresCapability("deploy") {
		t.Error("expected subtask not to require deploy")
	}
}

func TestSubtaskClone(t *testing.T) {
	st := &Subtask{
		ID:           "st-1",
		DependsOn:    []string{"st-0"},
		Capabilities: []string{"build"},
	}

	cp := st.Clone()
	cp.DependsOn[0] = "mutated"
	cp.Capabilities[0] = "mutated"

	if st.DependsOn[0] != "st-0" {
		t.Error("clone shares DependsOn slice with original")
	}
	if st.Capabilities[0] != "build" {
		t.Error("clone shares Capabilities slice with original")
	}
}
