// Package errors provides the error wrapper used for failed collaborator calls.
package errors

import (
	"fmt"
	"log/slog"
	"time"
)

// OperationalError wraps a failure of an external operation (shell, HTTP,
// capture, file access) with the run and node it happened in.
type OperationalError struct {
	Operation  string                 // What operation was being performed
	GraphID    string                 // Which graph
	RunID      string                 // Which run
	NodeID     string                 // Which node (if applicable)
	Timestamp  time.Time              // When error occurred
	Attributes map[string]interface{} // Additional context (optional)
	Cause      error                  // Underlying error
}

// NewOperationalError wraps cause. It returns nil when cause is nil.
func NewOperationalError(operation, graphID, runID, nodeID string, cause error) *OperationalError {
	return NewOperationalErrorWithAttrs(operation, graphID, runID, nodeID, cause, nil)
}

// NewOperationalErrorWithAttrs wraps cause with extra attributes. It returns nil when cause is nil.
func NewOperationalErrorWithAttrs(operation, graphID, runID, nodeID string, cause error, attrs map[string]interface{}) *OperationalError {
	if cause == nil {
		return nil
	}
	return &OperationalError{
		Operation:  operation,
		GraphID:    graphID,
		RunID:      runID,
		NodeID:     nodeID,
		Timestamp:  time.Now(),
		Attributes: attrs,
		Cause:      cause,
	}
}

// Error implements the error interface.
func (e *OperationalError) Error() string {
	if e == nil {
		return "<nil OperationalError>"
	}
	if e.NodeID != "" {
		return fmt.Sprintf("%s: graph=%s run=%s node=%s: %v", e.Operation, e.GraphID, e.RunID, e.NodeID, e.Cause)
	}
	return fmt.Sprintf("%s: graph=%s run=%s: %v", e.Operation, e.GraphID, e.RunID, e.Cause)
}

// Unwrap returns the underlying error.
func (e *OperationalError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// LogValue renders the error as a slog group.
func (e *OperationalError) LogValue() slog.Value {
	if e == nil {
		return slog.StringValue("<nil>")
	}
	attrs := []slog.Attr{
		slog.String("operation", e.Operation),
		slog.String("graph_id", e.GraphID),
		slog.String("run_id", e.RunID),
		slog.String("cause", fmt.Sprint(e.Cause)),
	}
	if e.NodeID != "" {
		attrs = append(attrs, slog.String("node_id", e.NodeID))
	}
	for k, v := range e.Attributes {
		attrs = append(attrs, slog.Any(k, v))
	}
	return slog.GroupValue(attrs...)
}
