package execution

import (
	"time"

	"github.com/dshills/nodeflow/pkg/domain/types"
	"github.com/dshills/nodeflow/pkg/value"
)

// VariableSnapshot is an immutable record of one variable assignment.
type VariableSnapshot struct {
	// Timestamp records when the variable value changed.
	Timestamp time.Time
	// NodeExecutionID identifies which node execution made the change (empty if not from a node).
	NodeExecutionID types.NodeExecutionID
	// VariableName is the name of the variable that changed.
	VariableName string
	// OldValue is the previous value (Null on first assignment).
	OldValue value.Value
	// NewValue is the new value after the change.
	NewValue value.Value
}

// NewVariableSnapshot creates a new variable snapshot.
func NewVariableSnapshot(
	variableName string,
	oldValue, newValue value.Value,
	nodeExecID types.NodeExecutionID,
) VariableSnapshot {
	return VariableSnapshot{
		Timestamp:       time.Now(),
		NodeExecutionID: nodeExecID,
		VariableName:    variableName,
		OldValue:        oldValue,
		NewValue:        newValue,
	}
}
