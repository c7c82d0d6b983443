package workflow

// GraphRepository defines the interface for graph persistence
type GraphRepository interface {
	// Save persists a graph to storage
	Save(graph *Graph) error

	// Load retrieves a graph by name
	Load(name string) (*Graph, error)

	// Delete removes a graph from storage
	Delete(name string) error

	// List returns the names of all stored graphs
	List() ([]string, error)
}
