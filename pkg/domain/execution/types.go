// Package execution defines the Execution aggregate and the per-run
// ExecutionContext for nodeflow graph runs.
package execution

import (
	"fmt"
	"time"

	"github.com/dshills/nodeflow/pkg/domain/types"
)

// Status represents the current state of a graph execution.
type Status string

const (
	// StatusPending indicates the execution is created but not yet started.
	StatusPending Status = "pending"
	// StatusRunning indicates the execution is currently in progress.
	StatusRunning Status = "running"
	// StatusCompleted indicates the execution finished successfully.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the execution hit a fatal error and stopped.
	StatusFailed Status = "failed"
	// StatusCancelled indicates the stop flag ended the execution.
	StatusCancelled Status = "cancelled"
)

// IsTerminal returns true if the status represents a terminal state (execution has finished).
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// NodeStatus represents the current state of a node execution.
type NodeStatus string

const (
	// NodeStatusPending indicates the node is waiting to be executed.
	NodeStatusPending NodeStatus = "pending"
	// NodeStatusRunning indicates the node is currently executing.
	NodeStatusRunning NodeStatus = "running"
	// NodeStatusCompleted indicates the node finished its effect.
	NodeStatusCompleted NodeStatus = "completed"
	// NodeStatusFailed indicates a collaborator call of the node failed.
	NodeStatusFailed NodeStatus = "failed"
	// NodeStatusSkipped indicates the node was disabled and passed control through.
	NodeStatusSkipped NodeStatus = "skipped"
)

// ErrorType categorizes execution errors.
type ErrorType string

const (
	// ErrorTypeValidation indicates a malformed graph. Always fatal, raised before any side effect.
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeCycle indicates the recursion ceiling was exceeded on an evaluation chain.
	ErrorTypeCycle ErrorType = "cycle"
	// ErrorTypeCollaborator indicates a capability backend (shell, HTTP, screen...) failed.
	ErrorTypeCollaborator ErrorType = "collaborator"
	// ErrorTypeTimeout indicates a run exceeded its deadline.
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeCancelled indicates the stop flag was observed.
	ErrorTypeCancelled ErrorType = "cancelled"
	// ErrorTypeExecution indicates any other runtime failure.
	ErrorTypeExecution ErrorType = "execution"
)

// Fatal reports whether errors of this type halt a run.
func (t ErrorType) Fatal() bool {
	return t == ErrorTypeValidation || t == ErrorTypeExecution || t == ErrorTypeTimeout
}

// ExecutionError represents detailed error information for failed executions.
type ExecutionError struct {
	// Type categorizes the error for appropriate handling.
	Type ErrorType
	// Message is a human-readable error description.
	Message string
	// NodeID identifies where the error occurred (if applicable).
	NodeID types.NodeID
	// Context provides additional error context.
	Context map[string]interface{}
	// Timestamp records when the error occurred.
	Timestamp time.Time
	// Err is the underlying cause, if any.
	Err error
}

// NewExecutionError builds an ExecutionError stamped with the current time.
func NewExecutionError(typ ErrorType, nodeID types.NodeID, message string, cause error) *ExecutionError {
	return &ExecutionError{
		Type:      typ,
		Message:   message,
		NodeID:    nodeID,
		Timestamp: time.Now(),
		Err:       cause,
	}
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.NodeID != "" {
		return fmt.Sprintf("[%s] node %s: %s", e.Type, e.NodeID, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Type, msg)
}

// Unwrap returns the underlying cause.
func (e *ExecutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NodeError represents error information specific to a node execution failure.
type NodeError struct {
	// Type categorizes the error.
	Type ErrorType
	// Message is a human-readable error description.
	Message string
	// Context provides additional error context.
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// TraceEntry represents a single event in the execution trace.
type TraceEntry struct {
	// NodeID identifies which node this trace entry is for.
	NodeID types.NodeID
	// Event describes what happened (e.g., "started", "completed", "failed").
	Event string
	// Timestamp records when this event occurred.
	Timestamp time.Time
}
