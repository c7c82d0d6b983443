package execution

import (
	"fmt"
	"sync"

	"github.com/dshills/nodeflow/pkg/value"
	"github.com/dshills/nodeflow/pkg/workflow"
)

// Outputs maps output port names to values.
type Outputs map[string]value.Value

// ValueFunc computes every data output of a value node. It never fails:
// collaborator problems are reported through Call.Fail and typed defaults.
type ValueFunc func(c *Call) Outputs

// FlowFunc performs the effect of a flow node and returns the flow output
// control leaves through, or "" to end the path. Data outputs are written
// with Call.Set before returning. A non-nil error ends the run; handlers only
// return the interruption errors produced by the suspension helpers.
type FlowFunc func(c *Call) (string, error)

// Registry maps node types to their handlers.
type Registry struct {
	mu    sync.RWMutex
	value map[workflow.NodeType]ValueFunc
	flow  map[workflow.NodeType]FlowFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		value: make(map[workflow.NodeType]ValueFunc),
		flow:  make(map[workflow.NodeType]FlowFunc),
	}
}

// RegisterValue installs the handler of a value node type.
func (r *Registry) RegisterValue(t workflow.NodeType, fn ValueFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.value[t] = fn
}

// RegisterFlow installs the handler of a flow node type.
func (r *Registry) RegisterFlow(t workflow.NodeType, fn FlowFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flow[t] = fn
}

// Value returns the handler of a value node type.
func (r *Registry) Value(t workflow.NodeType) (ValueFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.value[t]
	return fn, ok
}

// Flow returns the handler of a flow node type.
func (r *Registry) Flow(t workflow.NodeType) (FlowFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.flow[t]
	return fn, ok
}

// Missing lists catalog types without a handler of the matching kind.
func (r *Registry) Missing() []workflow.NodeType {
	var missing []workflow.NodeType
	for _, spec := range workflow.Catalog() {
		if spec.Type == workflow.TypeNotes {
			continue
		}
		var ok bool
		if spec.Flow {
			_, ok = r.Flow(spec.Type)
		} else {
			_, ok = r.Value(spec.Type)
		}
		if !ok {
			missing = append(missing, spec.Type)
		}
	}
	return missing
}

// Clone returns an independent copy of r.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := NewRegistry()
	for t, fn := range r.value {
		c.value[t] = fn
	}
	for t, fn := range r.flow {
		c.flow[t] = fn
	}
	return c
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns a copy of the registry holding a handler for every
// catalog node type.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		r := NewRegistry()
		registerControl(r)
		registerValues(r)
		registerSystem(r)
		registerInput(r)
		registerScreen(r)
		if missing := r.Missing(); len(missing) > 0 {
			panic(fmt.Sprintf("execution: no handler for %v", missing))
		}
		defaultRegistry = r
	})
	return defaultRegistry.Clone()
}
