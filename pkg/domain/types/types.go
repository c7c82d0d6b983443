// Package types defines core domain identifiers for nodeflow.
package types

import "github.com/google/uuid"

// GraphID is a unique identifier for a graph.
type GraphID string

// NodeID is a unique identifier for a node within a graph.
type NodeID string

// ExecutionID is a unique identifier for one run of a graph.
type ExecutionID string

// NodeExecutionID is a unique identifier for one node activation within a run.
type NodeExecutionID string

// NewExecutionID generates a new unique execution ID.
func NewExecutionID() ExecutionID {
	return ExecutionID(uuid.NewString())
}

// String returns the string representation of an ExecutionID.
func (id ExecutionID) String() string {
	return string(id)
}

// IsZero returns true if the ExecutionID is the zero value.
func (id ExecutionID) IsZero() bool {
	return id == ""
}

// String returns the string representation of a GraphID.
func (id GraphID) String() string {
	return string(id)
}

// String returns the string representation of a NodeID.
func (id NodeID) String() string {
	return string(id)
}

// NewNodeExecutionID generates a new unique node execution ID.
func NewNodeExecutionID() NodeExecutionID {
	return NodeExecutionID(uuid.NewString())
}
