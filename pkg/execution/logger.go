package execution

import (
	"errors"
	"log/slog"

	"github.com/dshills/nodeflow/pkg/domain/execution"
	"github.com/dshills/nodeflow/pkg/domain/types"
)

// ErrNoRepository is returned by history queries when no repository is configured.
var ErrNoRepository = errors.New("no repository configured")

// Logger handles execution logging to persistent storage. Storage failures
// are logged and never fail a run.
type Logger struct {
	repository execution.ExecutionRepository
	log        *slog.Logger
}

// NewLogger creates a new execution logger. repo may be nil.
func NewLogger(repo execution.ExecutionRepository, log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{repository: repo, log: log}
}

// LogExecutionStart records the start of a run.
func (l *Logger) LogExecutionStart(exec *execution.Execution) {
	if l.repository == nil {
		return
	}
	if err := l.repository.Save(exec); err != nil {
		l.log.Warn("failed to log execution start", "run_id", exec.ID, "error", err)
	}
}

// LogExecutionComplete records the final state of a run.
func (l *Logger) LogExecutionComplete(exec *execution.Execution) {
	if l.repository == nil {
		return
	}
	if err := l.repository.Save(exec); err != nil {
		l.log.Warn("failed to log execution completion", "run_id", exec.ID, "error", err)
	}
}

// LogNodeExecution records one flow-node activation.
func (l *Logger) LogNodeExecution(nodeExec *execution.NodeExecution) {
	if l.repository == nil {
		return
	}
	if err := l.repository.SaveNodeExecution(nodeExec); err != nil {
		l.log.Warn("failed to log node execution",
			"run_id", nodeExec.ExecutionID, "node_id", nodeExec.NodeID, "error", err)
	}
}

// LogVariableChange records a variable assignment.
func (l *Logger) LogVariableChange(executionID types.ExecutionID, snapshot execution.VariableSnapshot) {
	if l.repository == nil {
		return
	}
	if err := l.repository.SaveVariableSnapshot(executionID, &snapshot); err != nil {
		l.log.Warn("failed to log variable change",
			"run_id", executionID, "variable", snapshot.VariableName, "error", err)
	}
}

// GetExecutionLogs retrieves a run from storage.
func (l *Logger) GetExecutionLogs(executionID types.ExecutionID) (*execution.Execution, error) {
	if l.repository == nil {
		return nil, ErrNoRepository
	}
	return l.repository.Load(executionID)
}

// ListExecutions returns the most recent runs.
func (l *Logger) ListExecutions(limit int) ([]*execution.Execution, error) {
	if l.repository == nil {
		return nil, ErrNoRepository
	}
	return l.repository.List(limit)
}

// ListExecutionsByGraph retrieves all runs of one graph.
func (l *Logger) ListExecutionsByGraph(graphID types.GraphID) ([]*execution.Execution, error) {
	if l.repository == nil {
		return nil, ErrNoRepository
	}
	return l.repository.ListByGraph(graphID)
}

// DeleteExecution removes a run from storage.
func (l *Logger) DeleteExecution(executionID types.ExecutionID) error {
	if l.repository == nil {
		return ErrNoRepository
	}
	return l.repository.Delete(executionID)
}
