package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/conductor-dev/conductor/internal/events"
	"github.com/conductor-dev/conductor/internal/orchestrator"
	"github.com/conductor-dev/conductor/pkg/models"
)

// requirementFile is the on-disk submission format: the requirement
// itself plus optional priority hints and workers to register.
type requirementFile struct {
	Path        string               `yaml:"-"`
	Requirement models.Requirement   `yaml:",inline"`
	Hints       models.PriorityHints `yaml:"hints"`
	Workers     []workerSpec         `yaml:"workers"`
}

type workerSpec struct {
	ID           string   `yaml:"id"`
	Capabilities []string `yaml:"capabilities"`
	Capacity     int      `yaml:"capacity"`
}

func loadRequirementFile(path string) (*requirementFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	rf := &requirementFile{Path: path}
	if err := yaml.Unmarshal(data, rf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return rf, nil
}

// registerWorkers registers workers from --worker flags and requirement
// files, falling back to a default simulated pool when neither supplies
// any.
func registerWorkers(engine *orchestrator.Engine, files []*requirementFile) error {
	registered := 0

	for _, spec := range runWorkers {
		w, err := parseWorkerSpec(spec)
		if err != nil {
			return err
		}
		if err := engine.RegisterWorker(w); err != nil {
			return fmt.Errorf("register worker %s: %w", w.ID, err)
		}
		registered++
	}

	for _, rf := range files {
		for _, ws := range rf.Workers {
			w := &models.Worker{ID: ws.ID, Capabilities: ws.Capabilities, Capacity: ws.Capacity}
			if err := engine.RegisterWorker(w); err != nil {
				return fmt.Errorf("%s: register worker %s: %w", rf.Path, ws.ID, err)
			}
			registered++
		}
	}

	if registered > 0 {
		return nil
	}

	// Default pool: enough general workers to exercise parallel dispatch,
	// covering every capability the requirements mention.
	caps := collectCapabilities(files)
	for i := 1; i <= 3; i++ {
		w := &models.Worker{
			ID:           fmt.Sprintf("local-%d", i),
			Capabilities: caps,
			Capacity:     2,
		}
		if err := engine.RegisterWorker(w); err != nil {
			return fmt.Errorf("register worker %s: %w", w.ID, err)
		}
	}
	return nil
}

// parseWorkerSpec parses id:capacity:cap1+cap2.
func parseWorkerSpec(spec string) (*models.Worker, error) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid worker spec %q, want id:capacity:cap1+cap2", spec)
	}
	capacity, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid worker capacity in %q: %w", spec, err)
	}
	return &models.Worker{
		ID:           parts[0],
		Capacity:     capacity,
		Capabilities: strings.Split(parts[2], "+"),
	}, nil
}

func collectCapabilities(files []*requirementFile) []string {
	seen := make(map[string]bool)
	var caps []string
	for _, rf := range files {
		for _, g := range rf.Requirement.Goals {
			for _, c := range g.Capabilities {
				if !seen[c] {
					seen[c] = true
					caps = append(caps, c)
				}
			}
		}
	}
	if len(caps) == 0 {
		caps = []string{"general"}
	}
	return caps
}

// streamEvents prints engine events as they happen.
func streamEvents(ch <-chan events.Event) {
	dim := color.New(color.Faint)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	for ev := range ch {
		switch e := ev.(type) {
		case events.TaskSubmitted:
			fmt.Printf("submitted %s %q complexity=%.1f decomposed=%t\n", e.ID, e.Name, e.Complexity, e.Decomposed)
		case events.SubtaskAssigned:
			dim.Printf("  assign  %s -> %s score=%.1f\n", e.ID, e.WorkerID, e.Score)
		case events.SubtaskCompleted:
			green.Printf("  done    %s worker=%s attempts=%d in %s\n", e.ID, e.WorkerID, e.Attempts, e.Duration.Round(time.Millisecond))
		case events.SubtaskFailed:
			yellow.Printf("  fail    %s attempt=%d: %s\n", e.ID, e.Attempt, e.Err)
		case events.SubtaskRetry:
			yellow.Printf("  retry   %s attempt=%d in %s\n", e.ID, e.Attempt, e.Delay.Round(time.Millisecond))
		case events.CapacityExceeded:
			yellow.Printf("  waiting %s, no worker free for %v\n", e.ID, e.Capabilities)
		case events.EscalationRaised:
			red.Printf("  escalate task=%s subtask=%s after %d attempts: %s\n", e.TaskID, e.SubtaskID, e.Attempts, e.Reason)
		case events.GateAlert:
			red.Printf("  gate    %s severity=%s score=%.1f threshold=%.1f: %s\n", e.TaskID, e.Severity, e.Score, e.Threshold, e.Reason)
		case events.TaskCompleted:
			green.Printf("completed %s\n", e.ID)
		case events.TaskBlocked:
			red.Printf("blocked   %s: %s\n", e.ID, e.Reason)
		case events.TaskFailed:
			red.Printf("failed    %s: %s\n", e.ID, e.Reason)
		case events.TaskCanceled:
			yellow.Printf("canceled  %s\n", e.ID)
		}
	}
}

// printTaskView renders a task summary with its subtasks and gates.
func printTaskView(view *orchestrator.TaskView) {
	fmt.Printf("Task %s: %s\n", view.Task.ID, view.Task.Name)
	fmt.Printf("  Status: %s\n", colorStatus(string(view.Task.Status)))
	if view.Task.BlockedReason != "" {
		fmt.Printf("  Blocked: %s\n", view.Task.BlockedReason)
	}
	fmt.Printf("  Complexity: %.1f  Decomposed: %t\n", view.Task.Complexity, view.Task.Decomposed)

	if len(view.Subtasks) > 0 {
		fmt.Println("  Subtasks:")
		for _, sv := range view.Subtasks {
			line := fmt.Sprintf("    %-20s %-12s attempts=%d", sv.Subtask.Name,
				colorStatus(string(sv.Subtask.Status)), sv.Subtask.Attempts)
			if sv.Priority != nil {
				line += fmt.Sprintf(" priority=%.1f", sv.Priority.Score)
			}
			fmt.Println(line)
		}
	}

	if len(view.Approvals) > 0 {
		fmt.Println("  Approvals:")
		for _, a := range view.Approvals {
			fmt.Printf("    %s: %s\n", a.Name, a.Status)
		}
	}

	for _, g := range view.Gates {
		if g.Scope != models.GateScopeTask {
			continue
		}
		fmt.Printf("  Gate: %s overall=%.1f\n", g.Verdict, g.OverallScore)
	}
}

func pendingApprovals(view *orchestrator.TaskView) []string {
	var pending []string
	for _, a := range view.Approvals {
		if a.Status == models.ApprovalPending {
			pending = append(pending, a.Name)
		}
	}
	return pending
}

func allSubtasksDone(view *orchestrator.TaskView) bool {
	for _, sv := range view.Subtasks {
		if sv.Subtask.Status != models.SubtaskStatusCompleted {
			return false
		}
	}
	return len(view.Subtasks) > 0
}

func colorStatus(status string) string {
	switch status {
	case "completed":
		return color.GreenString(status)
	case "failed", "blocked":
		return color.RedString(status)
	case "running", "assigned":
		return color.CyanString(status)
	case "retry_pending":
		return color.YellowString(status)
	default:
		return status
	}
}
