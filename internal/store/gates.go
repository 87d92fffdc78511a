package store

import (
	"encoding/json"
	"fmt"

	"github.com/conductor-dev/conductor/pkg/models"
)

// SaveGateResult records one gate evaluation.
func (db *DB) SaveGateResult(res *models.GateResult) error {
	dimensions, err := json.Marshal(res.Dimensions)
	if err != nil {
		return fmt.Errorf("marshal dimensions: %w", err)
	}
	approvals, err := json.Marshal(res.Approvals)
	if err != nil {
		return fmt.Errorf("marshal approvals: %w", err)
	}

	_, err = db.Exec(`
		INSERT OR REPLACE INTO gate_results
			(id, task_id, subtask_id, scope, dimensions, approvals, overall_score, verdict, evaluated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, res.ID, res.TaskID, res.SubtaskID, string(res.Scope), string(dimensions), string(approvals),
		res.OverallScore, string(res.Verdict), formatTime(res.EvaluatedAt))
	if err != nil {
		return fmt.Errorf("save gate result %s: %w", res.ID, err)
	}
	return nil
}

// ListGateResults returns a task's gate evaluations in evaluation order.
func (db *DB) ListGateResults(taskID string) ([]*models.GateResult, error) {
	rows, err := db.Query(`
		SELECT id, task_id, subtask_id, scope, dimensions, approvals, overall_score, verdict, evaluated_at
		FROM gate_results WHERE task_id = ? ORDER BY evaluated_at, id
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list gate results for %s: %w", taskID, err)
	}
	defer rows.Close()

	var out []*models.GateResult
	for rows.Next() {
		var res models.GateResult
		var dimensions, approvals, evaluatedAt string
		err := rows.Scan(&res.ID, &res.TaskID, &res.SubtaskID, &res.Scope,
			&dimensions, &approvals, &res.OverallScore, &res.Verdict, &evaluatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan gate result: %w", err)
		}
		if dimensions != "" && dimensions != "null" {
			if err := json.Unmarshal([]byte(dimensions), &res.Dimensions); err != nil {
				return nil, fmt.Errorf("unmarshal dimensions: %w", err)
			}
		}
		if approvals != "" && approvals != "null" {
			if err := json.Unmarshal([]byte(approvals), &res.Approvals); err != nil {
				return nil, fmt.Errorf("unmarshal approvals: %w", err)
			}
		}
		res.EvaluatedAt, _ = parseTime(evaluatedAt)
		out = append(out, &res)
	}
	return out, rows.Err()
}
