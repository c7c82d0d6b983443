package execution

import (
	"fmt"
	"time"

	"github.com/dshills/nodeflow/pkg/domain/types"
	"github.com/dshills/nodeflow/pkg/value"
)

// Execution represents a single run of a graph.
// It is the root entity of the Execution aggregate.
type Execution struct {
	// ID is the unique identifier for this execution.
	ID types.ExecutionID
	// GraphID references the graph being executed.
	GraphID types.GraphID
	// GraphName is the graph name at execution time.
	GraphName string
	// GraphVersion captures the graph version at execution time.
	GraphVersion string
	// Status is the current execution state.
	Status Status
	// StartedAt is when the execution was created/initialized.
	StartedAt time.Time
	// CompletedAt is when the execution finished (zero if still running).
	CompletedAt time.Time
	// Error contains error details if the execution failed or was cancelled.
	Error *ExecutionError
	// Warnings counts non-fatal problems logged during the run.
	Warnings int
	// Steps counts flow-node activations.
	Steps int
	// Context holds the runtime state during execution.
	Context *ExecutionContext
	// NodeExecutions tracks the history of node executions in order.
	NodeExecutions []*NodeExecution
	// Variables holds the final variable values once the run ends.
	Variables map[string]value.Value
}

// NewExecution creates a new execution for a graph.
// The execution starts in Pending status with an initialized context.
func NewExecution(graphID types.GraphID, graphVersion string, inputs map[string]value.Value, opts ...ContextOption) (*Execution, error) {
	if graphID == "" {
		return nil, fmt.Errorf("graph ID cannot be empty")
	}
	if graphVersion == "" {
		return nil, fmt.Errorf("graph version cannot be empty")
	}

	return &Execution{
		ID:             types.NewExecutionID(),
		GraphID:        graphID,
		GraphVersion:   graphVersion,
		Status:         StatusPending,
		StartedAt:      time.Now(),
		Context:        NewExecutionContext(inputs, opts...),
		NodeExecutions: []*NodeExecution{},
	}, nil
}

// Start transitions the execution from Pending to Running.
// Returns an error if the execution is not in Pending status.
func (e *Execution) Start() error {
	if e.Status != StatusPending {
		return fmt.Errorf("cannot start execution: expected status Pending, got %s", e.Status)
	}

	e.Status = StatusRunning
	e.StartedAt = time.Now()
	return nil
}

// Complete marks the execution as successfully completed.
// Returns an error if the execution is not in Running status.
func (e *Execution) Complete() error {
	if e.Status != StatusRunning {
		return fmt.Errorf("cannot complete execution: expected status Running, got %s", e.Status)
	}

	e.Status = StatusCompleted
	e.finish()
	return nil
}

// Fail marks the execution as failed with error details.
// Pending executions may fail too: a malformed graph aborts before the run starts.
func (e *Execution) Fail(err *ExecutionError) error {
	if e.Status != StatusRunning && e.Status != StatusPending {
		return fmt.Errorf("cannot fail execution: expected status Running, got %s", e.Status)
	}

	if err != nil && err.Timestamp.IsZero() {
		err.Timestamp = time.Now()
	}

	e.Status = StatusFailed
	e.Error = err
	e.finish()
	return nil
}

// Cancel marks the execution as cancelled.
// Returns an error if the execution is not in Running status.
func (e *Execution) Cancel() error {
	if e.Status != StatusRunning {
		return fmt.Errorf("cannot cancel execution: expected status Running, got %s", e.Status)
	}

	e.Status = StatusCancelled
	e.Error = NewExecutionError(ErrorTypeCancelled, "", "execution stopped", nil)
	e.finish()
	return nil
}

func (e *Execution) finish() {
	e.CompletedAt = time.Now()
	if e.Context != nil {
		e.Variables = e.Context.CreateSnapshot()
	}
}

// AddNodeExecution appends a node execution to the history.
func (e *Execution) AddNodeExecution(nodeExec *NodeExecution) error {
	if nodeExec == nil {
		return fmt.Errorf("node execution cannot be nil")
	}

	if nodeExec.ExecutionID.IsZero() {
		nodeExec.ExecutionID = e.ID
	}
	if nodeExec.ID == "" {
		nodeExec.ID = types.NewNodeExecutionID()
	}

	e.NodeExecutions = append(e.NodeExecutions, nodeExec)
	return nil
}

// Duration returns the total execution time.
// Returns 0 if the execution hasn't completed yet.
func (e *Execution) Duration() time.Duration {
	if e.CompletedAt.IsZero() {
		return 0
	}
	return e.CompletedAt.Sub(e.StartedAt)
}
