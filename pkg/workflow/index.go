package workflow

// Index is a read-only lookup structure over a graph snapshot.
type Index struct {
	nodes   map[string]*Node
	sources map[Endpoint]Endpoint
	targets map[Endpoint][]Endpoint
}

// NewIndex builds an index of g's nodes and connections.
func NewIndex(g *Graph) *Index {
	idx := &Index{
		nodes:   make(map[string]*Node, len(g.Nodes)),
		sources: make(map[Endpoint]Endpoint, len(g.Connections)),
		targets: make(map[Endpoint][]Endpoint, len(g.Connections)),
	}
	for _, n := range g.Nodes {
		idx.nodes[n.ID] = n
	}
	for _, c := range g.Connections {
		idx.sources[c.To] = c.From
		idx.targets[c.From] = append(idx.targets[c.From], c.To)
	}
	return idx
}

// Node returns the node with the given ID.
func (i *Index) Node(id string) (*Node, bool) {
	n, ok := i.nodes[id]
	return n, ok
}

// Source returns the output feeding a data input.
func (i *Index) Source(node, port string) (Endpoint, bool) {
	e, ok := i.sources[Endpoint{Node: node, Port: port}]
	return e, ok
}

// Targets returns the inputs driven by an output.
func (i *Index) Targets(node, port string) []Endpoint {
	return i.targets[Endpoint{Node: node, Port: port}]
}

// Connected reports whether an input has a source.
func (i *Index) Connected(node, port string) bool {
	_, ok := i.sources[Endpoint{Node: node, Port: port}]
	return ok
}
