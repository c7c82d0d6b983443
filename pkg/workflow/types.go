package workflow

import (
	"errors"

	"github.com/google/uuid"
)

// Common graph errors
var (
	// ErrGraphNotFound is returned when a graph cannot be found
	ErrGraphNotFound = errors.New("graph not found")

	// ErrNoEntry is returned when a graph has no enabled Entry node
	ErrNoEntry = errors.New("graph has no entry node")

	// ErrMultipleEntries is returned when a graph has more than one enabled Entry node
	ErrMultipleEntries = errors.New("graph has more than one entry node")

	// ErrNodeNotFound is returned when a node ID does not resolve
	ErrNodeNotFound = errors.New("node not found")

	// ErrPortNotFound is returned when a port name is not declared by the node type
	ErrPortNotFound = errors.New("port not found")
)

// GraphID is a unique identifier for a graph
type GraphID string

// String returns the string representation of the GraphID
func (g GraphID) String() string {
	return string(g)
}

// NewGraphID generates a new unique GraphID
func NewGraphID() GraphID {
	return GraphID(uuid.New().String())
}

// NewNodeID generates a new unique node identifier
func NewNodeID() string {
	return uuid.New().String()
}
