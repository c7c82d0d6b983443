package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/dshills/nodeflow/pkg/value"
)

// GraphMetadata contains descriptive information about a graph
type GraphMetadata struct {
	Author       string    `json:"author,omitempty" yaml:"author,omitempty"`
	Created      time.Time `json:"created,omitempty" yaml:"created,omitempty"`
	LastModified time.Time `json:"last_modified,omitempty" yaml:"last_modified,omitempty"`
	Tags         []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Graph is a node graph: nodes, the connections between their ports, and
// the variables they share. A graph may contain cycles.
type Graph struct {
	ID          GraphID
	Name        string
	Version     string
	Description string
	Metadata    GraphMetadata
	Variables   []*Variable
	Nodes       []*Node
	Connections []*Connection
}

// NewGraph creates a new graph with the given name and description
func NewGraph(name, description string) (*Graph, error) {
	if name == "" {
		return nil, errors.New("graph name cannot be empty")
	}

	return &Graph{
		ID:          NewGraphID(),
		Name:        name,
		Version:     "1.0.0",
		Description: description,
		Metadata: GraphMetadata{
			Created:      time.Now(),
			LastModified: time.Now(),
		},
		Variables:   make([]*Variable, 0),
		Nodes:       make([]*Node, 0),
		Connections: make([]*Connection, 0),
	}, nil
}

// AddNode adds a node to the graph. A missing ID is generated.
// Duplicate IDs are accepted here and reported by Validate.
func (g *Graph) AddNode(node *Node) error {
	if node == nil {
		return errors.New("cannot add nil node")
	}
	if node.ID == "" {
		node.ID = NewNodeID()
	}

	g.Nodes = append(g.Nodes, node)
	g.touch()
	return nil
}

// RemoveNode removes a node from the graph and all connections attached to it
func (g *Graph) RemoveNode(nodeID string) error {
	found := false
	nodes := make([]*Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID != nodeID {
			nodes = append(nodes, n)
		} else {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	g.Nodes = nodes

	conns := make([]*Connection, 0, len(g.Connections))
	for _, c := range g.Connections {
		if c.From.Node != nodeID && c.To.Node != nodeID {
			conns = append(conns, c)
		}
	}
	g.Connections = conns

	g.touch()
	return nil
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (*Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return nil, false
}

// EntryNode returns the single enabled Entry node.
func (g *Graph) EntryNode() (*Node, error) {
	var entry *Node
	for _, n := range g.Nodes {
		if n.Type != TypeEntry || !n.Enabled() {
			continue
		}
		if entry != nil {
			return nil, ErrMultipleEntries
		}
		entry = n
	}
	if entry == nil {
		return nil, ErrNoEntry
	}
	return entry, nil
}

// Connect links an output port to an input port. Both ports must be declared
// by their node types and have compatible data types. A data input accepts
// one connection and a flow output drives one connection.
func (g *Graph) Connect(from, to Endpoint) (*Connection, error) {
	src, ok := g.Node(from.Node)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, from.Node)
	}
	dst, ok := g.Node(to.Node)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, to.Node)
	}
	out, err := outputPort(src, from.Port)
	if err != nil {
		return nil, err
	}
	in, err := inputPort(dst, to.Port)
	if err != nil {
		return nil, err
	}
	if !out.Type.Compatible(in.Type) {
		return nil, fmt.Errorf("cannot connect %s (%s) to %s (%s): incompatible types", from, out.Type, to, in.Type)
	}
	for _, c := range g.Connections {
		if in.Type != value.TypeFlow && c.To == to {
			return nil, fmt.Errorf("input %s is already connected", to)
		}
		if out.Type == value.TypeFlow && c.From == from {
			return nil, fmt.Errorf("flow output %s is already connected", from)
		}
	}

	c := &Connection{From: from, To: to}
	g.Connections = append(g.Connections, c)
	g.touch()
	return c, nil
}

// Disconnect removes the connection between two endpoints
func (g *Graph) Disconnect(from, to Endpoint) error {
	for i, c := range g.Connections {
		if c.From == from && c.To == to {
			g.Connections = append(g.Connections[:i:i], g.Connections[i+1:]...)
			g.touch()
			return nil
		}
	}
	return fmt.Errorf("connection not found: %s -> %s", from, to)
}

// AddVariable adds a variable to the graph
// Duplicate names are accepted here and reported by Validate.
func (g *Graph) AddVariable(variable *Variable) error {
	if variable == nil {
		return errors.New("cannot add nil variable")
	}

	g.Variables = append(g.Variables, variable)
	g.touch()
	return nil
}

// GetVariable retrieves a variable by name
func (g *Graph) GetVariable(name string) (*Variable, error) {
	if name == "" {
		return nil, errors.New("variable name cannot be empty")
	}

	for _, v := range g.Variables {
		if v.Name == name {
			return v, nil
		}
	}

	return nil, fmt.Errorf("variable not found: %s", name)
}

// RemoveVariable removes a variable from the graph
func (g *Graph) RemoveVariable(name string) error {
	for i, v := range g.Variables {
		if v.Name == name {
			g.Variables = append(g.Variables[:i:i], g.Variables[i+1:]...)
			g.touch()
			return nil
		}
	}
	return fmt.Errorf("variable not found: %s", name)
}

// SetVariableDefault replaces the stored default of a variable
func (g *Graph) SetVariableDefault(name string, v value.Value) error {
	variable, err := g.GetVariable(name)
	if err != nil {
		return err
	}
	variable.Default = variable.Assign(v)
	g.touch()
	return nil
}

// Ports returns the ports of a concrete node: the declared ports plus the
// members of any port family that are connected or carry a literal.
func (g *Graph) Ports(n *Node) (inputs, outputs []PortSpec) {
	spec, ok := n.Spec()
	if !ok {
		return nil, nil
	}
	inputs = append(inputs, spec.Inputs...)
	outputs = append(outputs, spec.Outputs...)

	if f := spec.InputFamily; f != nil {
		seen := map[string]bool{}
		for port := range n.Inputs {
			if _, ok := f.Member(port); ok {
				seen[port] = true
			}
		}
		for _, c := range g.Connections {
			if c.To.Node == n.ID {
				if _, ok := f.Member(c.To.Port); ok {
					seen[c.To.Port] = true
				}
			}
		}
		inputs = append(inputs, familyPorts(f, seen)...)
	}
	if f := spec.OutputFamily; f != nil {
		seen := map[string]bool{}
		for _, c := range g.Connections {
			if c.From.Node == n.ID {
				if _, ok := f.Member(c.From.Port); ok {
					seen[c.From.Port] = true
				}
			}
		}
		outputs = append(outputs, familyPorts(f, seen)...)
	}
	return inputs, outputs
}

func familyPorts(f *PortFamily, seen map[string]bool) []PortSpec {
	last := -1
	for name := range seen {
		if i, _ := f.Member(name); i > last {
			last = i
		}
	}
	var out []PortSpec
	for i := f.Start; i <= last; i++ {
		out = append(out, f.spec(f.Name(i)))
	}
	return out
}

func (g *Graph) touch() {
	g.Metadata.LastModified = time.Now()
}

func outputPort(n *Node, port string) (PortSpec, error) {
	spec, ok := n.Spec()
	if !ok {
		return PortSpec{}, fmt.Errorf("node %s: unknown node type: %s", n.ID, n.Type)
	}
	p, ok := spec.Output(port)
	if !ok {
		return PortSpec{}, fmt.Errorf("%w: %s has no output %q", ErrPortNotFound, n.Type, port)
	}
	return p, nil
}

func inputPort(n *Node, port string) (PortSpec, error) {
	spec, ok := n.Spec()
	if !ok {
		return PortSpec{}, fmt.Errorf("node %s: unknown node type: %s", n.ID, n.Type)
	}
	p, ok := spec.Input(port)
	if !ok {
		return PortSpec{}, fmt.Errorf("%w: %s has no input %q", ErrPortNotFound, n.Type, port)
	}
	return p, nil
}
