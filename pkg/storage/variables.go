package storage

import (
	"fmt"

	"github.com/dshills/nodeflow/pkg/domain/types"
	"github.com/dshills/nodeflow/pkg/value"
)

// LoadDefaults returns the persisted variable defaults of a graph. A graph
// with nothing stored yields an empty map.
func (r *SQLiteExecutionRepository) LoadDefaults(graphID types.GraphID) (map[string]value.Value, error) {
	rows, err := r.db.Query("SELECT name, value FROM variable_defaults WHERE graph_id = ?", graphID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query variable defaults: %w", err)
	}
	defer func() { _ = rows.Close() }()

	defaults := make(map[string]value.Value)
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan variable default: %w", err)
		}
		v, ok := value.ParseJSON(raw)
		if !ok {
			return nil, fmt.Errorf("variable %s: invalid stored value %q", name, raw)
		}
		defaults[name] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating variable defaults: %w", err)
	}
	return defaults, nil
}

// SaveDefaults replaces the persisted variable defaults of a graph.
func (r *SQLiteExecutionRepository) SaveDefaults(graphID types.GraphID, values map[string]value.Value) error {
	if graphID == "" {
		return fmt.Errorf("graph ID cannot be empty")
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM variable_defaults WHERE graph_id = ?", graphID.String()); err != nil {
		return fmt.Errorf("failed to clear variable defaults: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO variable_defaults (graph_id, name, value) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare variable insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for name, v := range values {
		if _, err := stmt.Exec(graphID.String(), name, v.JSON()); err != nil {
			return fmt.Errorf("failed to save variable %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit variable defaults: %w", err)
	}
	return nil
}

// ClearDefaults forgets the persisted variable defaults of a graph.
func (r *SQLiteExecutionRepository) ClearDefaults(graphID types.GraphID) error {
	if _, err := r.db.Exec("DELETE FROM variable_defaults WHERE graph_id = ?", graphID.String()); err != nil {
		return fmt.Errorf("failed to clear variable defaults: %w", err)
	}
	return nil
}

// ListDefaultGraphs returns the graphs that have persisted defaults.
func (r *SQLiteExecutionRepository) ListDefaultGraphs() ([]types.GraphID, error) {
	rows, err := r.db.Query("SELECT DISTINCT graph_id FROM variable_defaults ORDER BY graph_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query variable defaults: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []types.GraphID
	for rows.Next() {
		var id types.GraphID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan graph ID: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
