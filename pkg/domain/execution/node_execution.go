package execution

import (
	"time"

	"github.com/dshills/nodeflow/pkg/domain/types"
	"github.com/dshills/nodeflow/pkg/value"
)

// NodeExecution records one activation of a flow node within a run.
type NodeExecution struct {
	// ID is the unique identifier for this node execution.
	ID types.NodeExecutionID
	// ExecutionID is the parent execution reference.
	ExecutionID types.ExecutionID
	// NodeID identifies which node was executed.
	NodeID types.NodeID
	// NodeType is the catalog type of the node (e.g. "Branch", "Click").
	NodeType string
	// Status is the current status of this node execution.
	Status NodeStatus
	// StartedAt is when the node execution began.
	StartedAt time.Time
	// CompletedAt is when the node execution finished (zero if still running).
	CompletedAt time.Time
	// Inputs contains the resolved input values.
	Inputs map[string]value.Value
	// Outputs contains the output values written to the memo table.
	Outputs map[string]value.Value
	// Port is the flow output control left through, empty when the node ended the flow.
	Port string
	// Error contains error details if a collaborator failed.
	Error *NodeError
}

// NewNodeExecution creates a new node execution record.
func NewNodeExecution(executionID types.ExecutionID, nodeID types.NodeID, nodeType string) *NodeExecution {
	return &NodeExecution{
		ID:          types.NewNodeExecutionID(),
		ExecutionID: executionID,
		NodeID:      nodeID,
		NodeType:    nodeType,
		Status:      NodeStatusPending,
		Inputs:      make(map[string]value.Value),
		Outputs:     make(map[string]value.Value),
	}
}

// Start marks the node execution as started.
func (ne *NodeExecution) Start() {
	ne.Status = NodeStatusRunning
	ne.StartedAt = time.Now()
}

// Complete marks the node execution as completed with outputs and the chosen port.
func (ne *NodeExecution) Complete(outputs map[string]value.Value, port string) {
	ne.Status = NodeStatusCompleted
	ne.CompletedAt = time.Now()
	ne.Port = port
	if outputs != nil {
		ne.Outputs = outputs
	}
}

// Fail marks the node execution as failed. Control still continues through port.
func (ne *NodeExecution) Fail(err *NodeError, port string) {
	ne.Status = NodeStatusFailed
	ne.CompletedAt = time.Now()
	ne.Port = port
	ne.Error = err
}

// Skip marks a disabled node that passed control through.
func (ne *NodeExecution) Skip() {
	ne.Status = NodeStatusSkipped
	ne.CompletedAt = time.Now()
}

// Duration returns the execution time for this node.
// Returns 0 if the node hasn't completed yet.
func (ne *NodeExecution) Duration() time.Duration {
	if ne.CompletedAt.IsZero() {
		return 0
	}
	return ne.CompletedAt.Sub(ne.StartedAt)
}
