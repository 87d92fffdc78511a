package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/conductor-dev/conductor/pkg/models"
)

// SaveWorker inserts or replaces a worker record.
func (db *DB) SaveWorker(w *models.Worker) error {
	capabilities, err := json.Marshal(w.Capabilities)
	if err != nil {
		return fmt.Errorf("marshal capabilities for worker %s: %w", w.ID, err)
	}

	_, err = db.Exec(`
		INSERT OR REPLACE INTO workers
			(id, capabilities, load, capacity, registered_at)
		VALUES (?, ?, ?, ?, ?)
	`, w.ID, string(capabilities), w.Load, w.Capacity, formatTime(w.RegisteredAt))
	if err != nil {
		return fmt.Errorf("save worker %s: %w", w.ID, err)
	}
	return nil
}

// GetWorker retrieves a worker by ID. Returns nil without error when absent.
func (db *DB) GetWorker(id string) (*models.Worker, error) {
	row := db.QueryRow(`
		SELECT id, capabilities, load, capacity, registered_at
		FROM workers WHERE id = ?
	`, id)

	w, err := scanWorker(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get worker %s: %w", id, err)
	}
	return w, nil
}

// ListWorkers returns all registered workers, oldest registration first.
func (db *DB) ListWorkers() ([]*models.Worker, error) {
	rows, err := db.Query(`
		SELECT id, capabilities, load, capacity, registered_at
		FROM workers ORDER BY registered_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	defer rows.Close()

	var out []*models.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, fmt.Errorf("scan worker: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// DeleteWorker removes a worker record. Deleting an absent worker is not
// an error.
func (db *DB) DeleteWorker(id string) error {
	if _, err := db.Exec(`DELETE FROM workers WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete worker %s: %w", id, err)
	}
	return nil
}

func scanWorker(row scanner) (*models.Worker, error) {
	var w models.Worker
	var capabilities sql.NullString
	var registeredAt string

	err := row.Scan(&w.ID, &capabilities, &w.Load, &w.Capacity, &registeredAt)
	if err != nil {
		return nil, err
	}

	if capabilities.String != "" && capabilities.String != "null" {
		if err := json.Unmarshal([]byte(capabilities.String), &w.Capabilities); err != nil {
			return nil, fmt.Errorf("unmarshal capabilities: %w", err)
		}
	}

	w.RegisteredAt, err = parseTime(registeredAt)
	if err != nil {
		return nil, fmt.Errorf("parse registered_at: %w", err)
	}
	return &w, nil
}
