// Package testutil provides graph builders, recording collaborators and an
// HTTP test server for package tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dshills/nodeflow/pkg/value"
	"github.com/dshills/nodeflow/pkg/workflow"
)

// GraphBuilder assembles graphs for tests. Every step fails the test on error.
type GraphBuilder struct {
	t testing.TB
	g *workflow.Graph
}

// NewGraph starts a graph with the given name.
func NewGraph(t testing.TB, name string) *GraphBuilder {
	t.Helper()
	g, err := workflow.NewGraph(name, "")
	require.NoError(t, err)
	return &GraphBuilder{t: t, g: g}
}

// NodeOption configures a node added by a GraphBuilder.
type NodeOption func(*workflow.Node)

// Named binds the node to a variable.
func Named(name string) NodeOption {
	return func(n *workflow.Node) { n.Name = name }
}

// Literal sets the literal value of an input.
func Literal(port string, v value.Value) NodeOption {
	return func(n *workflow.Node) { n.SetInput(port, v) }
}

// Disabled disables the node.
func Disabled() NodeOption {
	return func(n *workflow.Node) { n.Disabled = true }
}

// Var declares a variable.
func (b *GraphBuilder) Var(name string, typ value.DataType, def value.Value) *GraphBuilder {
	b.t.Helper()
	require.NoError(b.t, b.g.AddVariable(&workflow.Variable{Name: name, Type: typ, Default: def}))
	return b
}

// Node adds a node.
func (b *GraphBuilder) Node(id string, typ workflow.NodeType, opts ...NodeOption) *GraphBuilder {
	b.t.Helper()
	n := &workflow.Node{ID: id, Type: typ, Inputs: make(map[string]value.Value)}
	for _, opt := range opts {
		opt(n)
	}
	require.NoError(b.t, b.g.AddNode(n))
	return b
}

// Flow connects a flow output to the In input of another node.
func (b *GraphBuilder) Flow(from, port, to string) *GraphBuilder {
	b.t.Helper()
	return b.Wire(from, port, to, workflow.PortIn)
}

// Wire connects any output to any input.
func (b *GraphBuilder) Wire(from, fromPort, to, toPort string) *GraphBuilder {
	b.t.Helper()
	_, err := b.g.Connect(
		workflow.Endpoint{Node: from, Port: fromPort},
		workflow.Endpoint{Node: to, Port: toPort},
	)
	require.NoError(b.t, err)
	return b
}

// Build validates and returns the graph.
func (b *GraphBuilder) Build() *workflow.Graph {
	b.t.Helper()
	require.NoError(b.t, b.g.Validate())
	return b.g
}
