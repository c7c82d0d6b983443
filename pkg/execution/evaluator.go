package execution

import (
	"errors"
	"fmt"

	"github.com/dshills/nodeflow/pkg/domain/execution"
	"github.com/dshills/nodeflow/pkg/domain/types"
	"github.com/dshills/nodeflow/pkg/value"
	"github.com/dshills/nodeflow/pkg/workflow"
)

// errCycle unwinds an evaluation chain cut off at the depth ceiling. Only the
// deepest level logs it; callers above treat the chain as producing nothing.
var errCycle = errors.New("evaluation depth exceeded")

// result is one evaluated output.
type result struct {
	value    value.Value
	ok       bool
	volatile bool
}

func (r *Run) key(nodeID, port string) execution.OutputKey {
	return execution.OutputKey{NodeID: types.NodeID(nodeID), Port: port}
}

// output evaluates one output of a node. Value nodes are computed on demand
// and memoized; flow node outputs exist only once the node has run.
func (r *Run) output(nodeID, port string) (result, error) {
	memo := r.state.Memo()
	if e, ok := memo.Lookup(r.key(nodeID, port)); ok {
		return result{value: e.Value, ok: true, volatile: e.Volatile || e.Stored}, nil
	}

	node, ok := r.index.Node(nodeID)
	if !ok {
		return result{}, nil
	}
	spec, ok := node.Spec()
	if !ok {
		return result{}, nil
	}
	if spec.Flow {
		return result{volatile: true}, nil
	}
	if !node.Enabled() {
		return result{}, nil
	}
	fn, ok := r.engine.registry.Value(node.Type)
	if !ok {
		r.warn(node.ID, fmt.Sprintf("no handler for %s", node.Type))
		return result{}, nil
	}

	if !r.state.Descend() {
		r.cycle(node, port)
		return result{}, errCycle
	}
	c := r.newCall(node, spec, "", nil)
	outs := fn(c)
	r.state.Ascend()
	if c.aborted {
		return result{volatile: c.volatile}, errCycle
	}

	for p, v := range outs {
		memo.Remember(r.key(node.ID, p), v, c.volatile)
	}
	v, ok := outs[port]
	return result{value: v, ok: ok, volatile: c.volatile}, nil
}

// resolveInput evaluates the source of a data input, falling back to the
// node literal, the catalog default and the zero value of the port type.
func (r *Run) resolveInput(node *workflow.Node, port string) (result, error) {
	src, ok := r.index.Source(node.ID, port)
	if !ok {
		return result{value: r.fallback(node, port)}, nil
	}
	res, err := r.output(src.Node, src.Port)
	if err != nil || !res.ok {
		return result{value: r.fallback(node, port), volatile: res.volatile}, err
	}
	return res, nil
}

// fallback is the value of an input with no usable source.
func (r *Run) fallback(node *workflow.Node, port string) value.Value {
	if v, ok := node.Literal(port); ok {
		return v
	}
	spec, ok := node.Spec()
	if !ok {
		return value.Null
	}
	p, ok := spec.Input(port)
	if !ok {
		return value.Null
	}
	if !p.Default.IsNull() {
		return p.Default
	}
	return value.Zero(p.Type)
}

// EvaluateOutput evaluates one output of a node. The second result is false
// when the output has no value: an unknown node or port, a flow node that has
// not run yet, a disabled node or an evaluation cut off at the depth ceiling.
// It must only be called from node handlers or on a prepared run that has not
// been started.
func (r *Run) EvaluateOutput(nodeID, port string) (value.Value, bool) {
	res, err := r.output(nodeID, port)
	if err != nil {
		return value.Null, false
	}
	return res.value, res.ok
}

// EvaluateInput resolves a data input of a node the way handlers see it.
// The same restrictions as EvaluateOutput apply.
func (r *Run) EvaluateInput(nodeID, port string) value.Value {
	node, ok := r.index.Node(nodeID)
	if !ok {
		return value.Null
	}
	res, _ := r.resolveInput(node, port)
	return res.value
}
