package storage

import (
	"database/sql"
	"fmt"
)

// MigrationVersion tracks the current database schema version.
const MigrationVersion = 2

var migrations = []func(*sql.Tx) error{
	applyMigration1,
	applyMigration2,
}

// InitializeDatabase creates or upgrades the SQLite schema for run history
// and persisted variable defaults.
func InitializeDatabase(db *sql.DB) error {
	migrationsTable := `
	CREATE TABLE IF NOT EXISTS migrations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		version INTEGER NOT NULL UNIQUE,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := db.Exec(migrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	var currentVersion int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to check migration version: %w", err)
	}

	for i := currentVersion; i < len(migrations); i++ {
		if err := applyMigration(db, i+1, migrations[i]); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", i+1, err)
		}
	}

	return nil
}

func applyMigration(db *sql.DB, version int, apply func(*sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := apply(tx); err != nil {
		return err
	}

	if _, err := tx.Exec("INSERT INTO migrations (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}

func execAll(tx *sql.Tx, what string, statements ...string) error {
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create %s: %w", what, err)
		}
	}
	return nil
}

// applyMigration1 creates the run history tables.
func applyMigration1(tx *sql.Tx) error {
	executionsTable := `
	CREATE TABLE executions (
		id TEXT PRIMARY KEY,
		graph_id TEXT NOT NULL,
		graph_name TEXT NOT NULL,
		graph_version TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP,
		steps INTEGER NOT NULL DEFAULT 0,
		warnings INTEGER NOT NULL DEFAULT 0,
		error_type TEXT,
		error_message TEXT,
		error_node_id TEXT,
		error_context TEXT,
		variables TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	if err := execAll(tx, "executions table", executionsTable,
		"CREATE INDEX idx_executions_graph_id ON executions(graph_id, started_at DESC);",
		"CREATE INDEX idx_executions_status ON executions(status, started_at DESC);",
		"CREATE INDEX idx_executions_started_at ON executions(started_at DESC);",
	); err != nil {
		return err
	}

	// seq keeps node executions in activation order.
	nodeExecutionsTable := `
	CREATE TABLE node_executions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		execution_id TEXT NOT NULL,
		node_id TEXT NOT NULL,
		node_type TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP,
		port TEXT,
		inputs TEXT,
		outputs TEXT,
		error_type TEXT,
		error_message TEXT,
		error_context TEXT,
		FOREIGN KEY (execution_id) REFERENCES executions(id) ON DELETE CASCADE
	);`

	if err := execAll(tx, "node_executions table", nodeExecutionsTable,
		"CREATE INDEX idx_node_executions_execution_id ON node_executions(execution_id, seq);",
		"CREATE INDEX idx_node_executions_status ON node_executions(status);",
	); err != nil {
		return err
	}

	variableSnapshotsTable := `
	CREATE TABLE variable_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		execution_id TEXT NOT NULL,
		node_execution_id TEXT,
		variable_name TEXT NOT NULL,
		old_value TEXT,
		new_value TEXT,
		timestamp TIMESTAMP NOT NULL,
		FOREIGN KEY (execution_id) REFERENCES executions(id) ON DELETE CASCADE
	);`

	return execAll(tx, "variable_snapshots table", variableSnapshotsTable,
		"CREATE INDEX idx_variable_snapshots_execution_id ON variable_snapshots(execution_id, id);",
	)
}

// applyMigration2 creates the persisted variable defaults table.
func applyMigration2(tx *sql.Tx) error {
	variableDefaultsTable := `
	CREATE TABLE variable_defaults (
		graph_id TEXT NOT NULL,
		name TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (graph_id, name)
	);`

	return execAll(tx, "variable_defaults table", variableDefaultsTable)
}
