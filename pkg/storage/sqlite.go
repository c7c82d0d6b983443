package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/dshills/nodeflow/pkg/domain/execution"
	"github.com/dshills/nodeflow/pkg/domain/types"
	"github.com/dshills/nodeflow/pkg/value"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// SQLiteExecutionRepository stores run history and variable defaults in a
// single SQLite database.
type SQLiteExecutionRepository struct {
	db *sql.DB
}

var (
	_ execution.ExecutionRepository = (*SQLiteExecutionRepository)(nil)
	_ execution.VariableStore       = (*SQLiteExecutionRepository)(nil)
)

// DefaultDir returns ~/.nodeflow, the base directory for local state.
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".nodeflow"), nil
}

// NewSQLiteExecutionRepository opens the repository at ~/.nodeflow/nodeflow.db.
func NewSQLiteExecutionRepository() (*SQLiteExecutionRepository, error) {
	baseDir, err := DefaultDir()
	if err != nil {
		return nil, err
	}
	return NewSQLiteExecutionRepositoryWithPath(filepath.Join(baseDir, "nodeflow.db"))
}

// NewSQLiteExecutionRepositoryWithPath opens a repository at dbPath, creating
// the directory and schema as needed.
func NewSQLiteExecutionRepositoryWithPath(dbPath string) (*SQLiteExecutionRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := InitializeDatabase(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &SQLiteExecutionRepository{db: db}, nil
}

// Close closes the database connection.
func (r *SQLiteExecutionRepository) Close() error {
	return r.db.Close()
}

// Save persists an execution, updating it if the ID already exists.
func (r *SQLiteExecutionRepository) Save(exec *execution.Execution) error {
	if exec == nil {
		return fmt.Errorf("cannot save nil execution")
	}

	var errorType, errorMessage, errorNodeID, errorContext sql.NullString
	if exec.Error != nil {
		errorType = nullString(string(exec.Error.Type))
		errorMessage = sql.NullString{String: exec.Error.Message, Valid: true}
		if exec.Error.Err != nil {
			if errorMessage.String == "" {
				errorMessage.String = exec.Error.Err.Error()
			} else {
				errorMessage.String += ": " + exec.Error.Err.Error()
			}
		}
		errorNodeID = nullString(string(exec.Error.NodeID))
		errorContext = marshalNull(exec.Error.Context, len(exec.Error.Context) > 0)
	}

	query := `
		INSERT INTO executions (
			id, graph_id, graph_name, graph_version, status, started_at, completed_at,
			steps, warnings, error_type, error_message, error_node_id, error_context, variables
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			completed_at = excluded.completed_at,
			steps = excluded.steps,
			warnings = excluded.warnings,
			error_type = excluded.error_type,
			error_message = excluded.error_message,
			error_node_id = excluded.error_node_id,
			error_context = excluded.error_context,
			variables = excluded.variables
	`

	_, err := r.db.Exec(query,
		exec.ID.String(),
		exec.GraphID.String(),
		exec.GraphName,
		exec.GraphVersion,
		string(exec.Status),
		exec.StartedAt,
		nullTime(exec.CompletedAt),
		exec.Steps,
		exec.Warnings,
		errorType,
		errorMessage,
		errorNodeID,
		errorContext,
		marshalNull(exec.Variables, len(exec.Variables) > 0),
	)
	if err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}
	return nil
}

const executionColumns = `
	SELECT id, graph_id, graph_name, graph_version, status, started_at, completed_at,
	       steps, warnings, error_type, error_message, error_node_id, error_context, variables
	FROM executions`

// Load retrieves an execution and its node executions by ID.
func (r *SQLiteExecutionRepository) Load(id types.ExecutionID) (*execution.Execution, error) {
	if id.IsZero() {
		return nil, fmt.Errorf("execution ID cannot be empty")
	}

	exec, err := scanExecution(r.db.QueryRow(executionColumns+" WHERE id = ?", id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("execution %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load execution: %w", err)
	}

	nodeExecs, err := r.loadNodeExecutions(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load node executions: %w", err)
	}
	exec.NodeExecutions = nodeExecs

	return exec, nil
}

// List returns the most recent executions, newest first.
func (r *SQLiteExecutionRepository) List(limit int) ([]*execution.Execution, error) {
	if limit < 0 {
		return nil, fmt.Errorf("limit cannot be negative: %d", limit)
	}
	query := executionColumns + " ORDER BY started_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return r.queryExecutions(query)
}

// ListByGraph returns all executions of one graph, newest first.
func (r *SQLiteExecutionRepository) ListByGraph(graphID types.GraphID) ([]*execution.Execution, error) {
	return r.queryExecutions(executionColumns+" WHERE graph_id = ? ORDER BY started_at DESC", graphID.String())
}

// ListByStatus returns all executions with a specific status.
func (r *SQLiteExecutionRepository) ListByStatus(status execution.Status) ([]*execution.Execution, error) {
	return r.queryExecutions(executionColumns+" WHERE status = ? ORDER BY started_at DESC", string(status))
}

// Node executions are not loaded by list queries; use Load for the full record.
func (r *SQLiteExecutionRepository) queryExecutions(query string, args ...interface{}) ([]*execution.Execution, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	executions := make([]*execution.Execution, 0)
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		executions = append(executions, exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}
	return executions, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanExecution(row scanner) (*execution.Execution, error) {
	var exec execution.Execution
	var completedAt sql.NullTime
	var errorType, errorMessage, errorNodeID, errorContext, variables sql.NullString

	err := row.Scan(
		&exec.ID,
		&exec.GraphID,
		&exec.GraphName,
		&exec.GraphVersion,
		&exec.Status,
		&exec.StartedAt,
		&completedAt,
		&exec.Steps,
		&exec.Warnings,
		&errorType,
		&errorMessage,
		&errorNodeID,
		&errorContext,
		&variables,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		exec.CompletedAt = completedAt.Time
	}

	if errorType.Valid {
		exec.Error = &execution.ExecutionError{
			Type:    execution.ErrorType(errorType.String),
			Message: errorMessage.String,
			NodeID:  types.NodeID(errorNodeID.String),
		}
		if errorContext.Valid {
			var ctx map[string]interface{}
			if err := json.Unmarshal([]byte(errorContext.String), &ctx); err == nil {
				exec.Error.Context = ctx
			}
		}
	}

	if variables.Valid {
		var vars map[string]value.Value
		if err := json.Unmarshal([]byte(variables.String), &vars); err == nil {
			exec.Variables = vars
		}
	}

	return &exec, nil
}

func (r *SQLiteExecutionRepository) loadNodeExecutions(execID types.ExecutionID) ([]*execution.NodeExecution, error) {
	query := `
		SELECT id, execution_id, node_id, node_type, status, started_at, completed_at,
		       port, inputs, outputs, error_type, error_message, error_context
		FROM node_executions
		WHERE execution_id = ?
		ORDER BY seq
	`

	rows, err := r.db.Query(query, execID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query node executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	nodeExecs := make([]*execution.NodeExecution, 0, 32)
	for rows.Next() {
		var ne execution.NodeExecution
		var completedAt sql.NullTime
		var port, inputs, outputs, errorType, errorMessage, errorContext sql.NullString

		err := rows.Scan(
			&ne.ID,
			&ne.ExecutionID,
			&ne.NodeID,
			&ne.NodeType,
			&ne.Status,
			&ne.StartedAt,
			&completedAt,
			&port,
			&inputs,
			&outputs,
			&errorType,
			&errorMessage,
			&errorContext,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node execution: %w", err)
		}

		if completedAt.Valid {
			ne.CompletedAt = completedAt.Time
		}
		ne.Port = port.String
		ne.Inputs = unmarshalValues(inputs)
		ne.Outputs = unmarshalValues(outputs)

		if errorType.Valid {
			ne.Error = &execution.NodeError{
				Type:    execution.ErrorType(errorType.String),
				Message: errorMessage.String,
			}
			if errorContext.Valid {
				var ctx map[string]interface{}
				if err := json.Unmarshal([]byte(errorContext.String), &ctx); err == nil {
					ne.Error.Context = ctx
				}
			}
		}

		nodeExecs = append(nodeExecs, &ne)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating node executions: %w", err)
	}
	return nodeExecs, nil
}

// Delete removes an execution; node executions and snapshots cascade.
func (r *SQLiteExecutionRepository) Delete(id types.ExecutionID) error {
	if id.IsZero() {
		return fmt.Errorf("execution ID cannot be empty")
	}

	result, err := r.db.Exec("DELETE FROM executions WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("failed to delete execution: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("execution %s: %w", id, ErrNotFound)
	}
	return nil
}

// SaveNodeExecution persists a node execution record, updating it if the ID
// already exists.
func (r *SQLiteExecutionRepository) SaveNodeExecution(nodeExec *execution.NodeExecution) error {
	if nodeExec == nil {
		return fmt.Errorf("cannot save nil node execution")
	}

	var errorType, errorMessage, errorContext sql.NullString
	if nodeExec.Error != nil {
		errorType = nullString(string(nodeExec.Error.Type))
		errorMessage = sql.NullString{String: nodeExec.Error.Message, Valid: true}
		errorContext = marshalNull(nodeExec.Error.Context, len(nodeExec.Error.Context) > 0)
	}

	query := `
		INSERT INTO node_executions (
			id, execution_id, node_id, node_type, status, started_at, completed_at,
			port, inputs, outputs, error_type, error_message, error_context
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			completed_at = excluded.completed_at,
			port = excluded.port,
			outputs = excluded.outputs,
			error_type = excluded.error_type,
			error_message = excluded.error_message,
			error_context = excluded.error_context
	`

	_, err := r.db.Exec(query,
		string(nodeExec.ID),
		nodeExec.ExecutionID.String(),
		nodeExec.NodeID.String(),
		nodeExec.NodeType,
		string(nodeExec.Status),
		nodeExec.StartedAt,
		nullTime(nodeExec.CompletedAt),
		nullString(nodeExec.Port),
		marshalNull(nodeExec.Inputs, len(nodeExec.Inputs) > 0),
		marshalNull(nodeExec.Outputs, len(nodeExec.Outputs) > 0),
		errorType,
		errorMessage,
		errorContext,
	)
	if err != nil {
		return fmt.Errorf("failed to save node execution: %w", err)
	}
	return nil
}

// SaveVariableSnapshot appends a variable change to the audit trail of a run.
func (r *SQLiteExecutionRepository) SaveVariableSnapshot(executionID types.ExecutionID, snapshot *execution.VariableSnapshot) error {
	if snapshot == nil {
		return fmt.Errorf("cannot save nil variable snapshot")
	}
	if executionID.IsZero() {
		return fmt.Errorf("execution ID cannot be empty")
	}

	query := `
		INSERT INTO variable_snapshots (
			execution_id, node_execution_id, variable_name, old_value, new_value, timestamp
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		executionID.String(),
		nullString(string(snapshot.NodeExecutionID)),
		snapshot.VariableName,
		snapshot.OldValue.JSON(),
		snapshot.NewValue.JSON(),
		snapshot.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save variable snapshot: %w", err)
	}
	return nil
}

// LoadVariableSnapshots returns the variable changes of a run in order.
func (r *SQLiteExecutionRepository) LoadVariableSnapshots(executionID types.ExecutionID) ([]execution.VariableSnapshot, error) {
	query := `
		SELECT node_execution_id, variable_name, old_value, new_value, timestamp
		FROM variable_snapshots
		WHERE execution_id = ?
		ORDER BY id
	`

	rows, err := r.db.Query(query, executionID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query variable snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshots []execution.VariableSnapshot
	for rows.Next() {
		var s execution.VariableSnapshot
		var nodeExecID sql.NullString
		var oldValue, newValue string
		if err := rows.Scan(&nodeExecID, &s.VariableName, &oldValue, &newValue, &s.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan variable snapshot: %w", err)
		}
		s.NodeExecutionID = types.NodeExecutionID(nodeExecID.String)
		s.OldValue, _ = value.ParseJSON(oldValue)
		s.NewValue, _ = value.ParseJSON(newValue)
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating variable snapshots: %w", err)
	}
	return snapshots, nil
}

func unmarshalValues(s sql.NullString) map[string]value.Value {
	out := make(map[string]value.Value)
	if s.Valid {
		_ = json.Unmarshal([]byte(s.String), &out)
	}
	return out
}

func marshalNull(v interface{}, present bool) sql.NullString {
	if !present {
		return sql.NullString{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(data), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
