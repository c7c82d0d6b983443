package execution

import (
	"github.com/dshills/nodeflow/pkg/domain/types"
	"github.com/dshills/nodeflow/pkg/value"
)

// ExecutionRepository persists run history.
type ExecutionRepository interface {
	// Save persists an execution, replacing any earlier copy.
	Save(execution *Execution) error

	// Load retrieves an execution by its ID.
	// Returns an error if the execution is not found.
	Load(id types.ExecutionID) (*Execution, error)

	// List returns the most recent executions, newest first. A limit of 0 means no limit.
	List(limit int) ([]*Execution, error)

	// ListByGraph returns all executions of one graph, newest first.
	ListByGraph(graphID types.GraphID) ([]*Execution, error)

	// ListByStatus returns all executions with a specific status.
	ListByStatus(status Status) ([]*Execution, error)

	// Delete removes an execution and all its related data from storage.
	Delete(id types.ExecutionID) error

	// SaveNodeExecution persists a node execution record.
	SaveNodeExecution(nodeExec *NodeExecution) error

	// SaveVariableSnapshot appends a variable change to the audit trail of a run.
	SaveVariableSnapshot(executionID types.ExecutionID, snapshot *VariableSnapshot) error
}

// VariableStore persists variable defaults between runs.
type VariableStore interface {
	// LoadDefaults returns the stored defaults of a graph; missing graphs yield an empty map.
	LoadDefaults(graphID types.GraphID) (map[string]value.Value, error)

	// SaveDefaults replaces the stored defaults of a graph.
	SaveDefaults(graphID types.GraphID, values map[string]value.Value) error

	// ClearDefaults forgets the stored defaults of a graph.
	ClearDefaults(graphID types.GraphID) error
}
