package orchestrator

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTaskNotFound is returned for operations on unknown task IDs.
	ErrTaskNotFound = errors.New("task not found")
	// ErrStopped is returned when the engine is not running.
	ErrStopped = errors.New("engine stopped")
)

// CapacityExceededError records that no registered worker could serve a
// ready subtask's capability set this tick. Non-fatal; the subtask stays
// ready and is re-evaluated next tick.
type CapacityExceededError struct {
	SubtaskID    string
	Capabilities []string
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("no worker capacity for subtask %s (capabilities %s)",
		e.SubtaskID, strings.Join(e.Capabilities, ","))
}
