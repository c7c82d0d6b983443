package execution

import (
	"context"
	"log/slog"
	"time"

	"github.com/dshills/nodeflow/pkg/capability"
	"github.com/dshills/nodeflow/pkg/domain/execution"
	"github.com/dshills/nodeflow/pkg/domain/types"
	nferrors "github.com/dshills/nodeflow/pkg/errors"
	"github.com/dshills/nodeflow/pkg/value"
	"github.com/dshills/nodeflow/pkg/workflow"
)

// Call is a handler's view of one node activation.
type Call struct {
	run   *Run
	node  *workflow.Node
	spec  *workflow.NodeSpec
	entry string
	flow  bool
	rec   *execution.NodeExecution

	inputs   map[string]value.Value
	outputs  Outputs
	failure  *execution.NodeError
	volatile bool
	aborted  bool
}

func (r *Run) newCall(node *workflow.Node, spec *workflow.NodeSpec, entry string, rec *execution.NodeExecution) *Call {
	c := &Call{
		run:     r,
		node:    node,
		spec:    spec,
		entry:   entry,
		flow:    spec.Flow,
		rec:     rec,
		outputs: make(Outputs),
	}
	if c.flow {
		c.inputs = make(map[string]value.Value)
	}
	return c
}

// Context returns the run context. It is cancelled when the run ends.
func (c *Call) Context() context.Context { return c.run.ctx }

// Node returns the node being activated.
func (c *Call) Node() *workflow.Node { return c.node }

// Entry returns the flow input control arrived on; empty for value nodes.
func (c *Call) Entry() string { return c.entry }

// Caps returns the run's collaborators.
func (c *Call) Caps() capability.Set { return c.run.caps }

// Limits returns the run limits.
func (c *Call) Limits() Limits { return c.run.limits }

// Now reads the run clock.
func (c *Call) Now() time.Time { return c.run.now() }

// Input resolves a data input: the connected output, else the node literal,
// else the catalog default, else the zero value of the port type.
func (c *Call) Input(port string) value.Value {
	if c.aborted {
		return c.run.fallback(c.node, port)
	}
	res, err := c.run.resolveInput(c.node, port)
	if res.volatile {
		c.volatile = true
	}
	if err != nil && !c.flow {
		c.aborted = true
	}
	if c.inputs != nil {
		c.inputs[port] = res.value
	}
	return res.value
}

// Int resolves an input and coerces it to an integer.
func (c *Call) Int(port string) int64 { return c.Input(port).ToInteger() }

// Float resolves an input and coerces it to a float.
func (c *Call) Float(port string) float64 { return c.Input(port).ToFloat() }

// String resolves an input and coerces it to a string.
func (c *Call) String(port string) string { return c.Input(port).ToString() }

// Bool resolves an input and coerces it to a boolean.
func (c *Call) Bool(port string) bool { return c.Input(port).ToBool() }

// Connected reports whether an input has a source or a literal.
func (c *Call) Connected(port string) bool {
	if c.run.index.Connected(c.node.ID, port) {
		return true
	}
	_, ok := c.node.Literal(port)
	return ok
}

// Volatile marks the outputs being computed as dependent on run state.
func (c *Call) Volatile() { c.volatile = true }

// Once pins the outputs for the rest of the run even when the inputs read
// run state.
func (c *Call) Once() { c.volatile = false }

// Variable reads a variable.
func (c *Call) Variable(name string) (value.Value, bool) {
	c.volatile = true
	return c.run.state.GetVariable(name)
}

// Variables returns a copy of every variable.
func (c *Call) Variables() map[string]value.Value {
	c.volatile = true
	return c.run.state.CreateSnapshot()
}

// SetVariable assigns a variable, coercing to its declared type. Undeclared
// names are created with the value as given.
func (c *Call) SetVariable(name string, v value.Value) value.Value {
	if decl, err := c.run.graph.GetVariable(name); err == nil {
		v = decl.Assign(v)
	}
	var id types.NodeExecutionID
	if c.rec != nil {
		id = c.rec.ID
	}
	snapshot := c.run.state.SetVariableWithNode(name, v, id)
	c.run.persistent.LogVariableChange(c.run.ID, snapshot)
	return v
}

// Set writes a data output of a flow node to the memo table.
func (c *Call) Set(port string, v value.Value) {
	c.outputs[port] = v
	if c.flow {
		c.run.state.Memo().Store(c.run.key(c.node.ID, port), v)
	}
}

// Follow runs the flow path attached to one of the node's outputs and
// returns once it has completed.
func (c *Call) Follow(port string) error {
	return c.run.follow(c.node, port)
}

// Log emits a log event about the node.
func (c *Call) Log(level slog.Level, msg string, attrs ...any) {
	c.run.log(c.node, level, msg, attrMap(attrs))
}

// Info emits an info event about the node.
func (c *Call) Info(msg string, attrs ...any) { c.Log(slog.LevelInfo, msg, attrs...) }

// Warn emits a warning about the node.
func (c *Call) Warn(msg string, attrs ...any) { c.Log(slog.LevelWarn, msg, attrs...) }

// Fail reports a collaborator failure. The run continues; the node record is
// marked failed.
func (c *Call) Fail(op string, err error) {
	opErr := nferrors.NewOperationalError(op, c.run.graph.Name, c.run.ID.String(), c.node.ID, err)
	c.failure = &execution.NodeError{
		Type:    execution.ErrorTypeCollaborator,
		Message: opErr.Error(),
		Context: map[string]interface{}{"operation": op},
	}
	c.run.log(c.node, slog.LevelWarn, op+" failed", map[string]any{
		"error":      opErr,
		"error_type": string(execution.ErrorTypeCollaborator),
	})
}

// Sleep suspends the node for d.
func (c *Call) Sleep(d time.Duration) error { return c.run.sleep(d) }

// PollUntil evaluates cond every interval until it holds or timeout elapses.
func (c *Call) PollUntil(interval, timeout time.Duration, cond func() bool) (bool, error) {
	return c.run.pollUntil(interval, timeout, cond)
}

// AwaitSignal waits for Run.Continue on this node.
func (c *Call) AwaitSignal() error { return c.run.awaitSignal(c.node.ID) }

// Dispatch runs a blocking collaborator call off the run goroutine.
func (c *Call) Dispatch(fn func(ctx context.Context) error) error {
	return c.run.dispatch(fn)
}

// Halted returns the run's unwinding error when err was caused by a stop,
// cancellation or deadline, and nil for ordinary collaborator errors.
func (c *Call) Halted(err error) error {
	if err == nil {
		return nil
	}
	return c.run.checkpoint()
}

// Refresh invalidates outputs computed from run state so that inputs read
// afterwards observe the outside world again.
func (c *Call) Refresh() { c.run.state.Memo().Advance() }

// FamilyOutputs lists the connected members of the node's output family in order.
func (c *Call) FamilyOutputs() []string {
	return c.run.familyOutputs(c.node, c.spec.OutputFamily)
}

// FamilyInputs lists the members of the node's input family that have a
// source or a literal, stopping at the first gap.
func (c *Call) FamilyInputs() []string {
	family := c.spec.InputFamily
	if family == nil {
		return nil
	}
	var ports []string
	for i := family.Start; ; i++ {
		name := family.Name(i)
		if !c.Connected(name) {
			return ports
		}
		ports = append(ports, name)
	}
}

func attrMap(attrs []any) map[string]any {
	if len(attrs) == 0 {
		return nil
	}
	m := make(map[string]any, len(attrs)/2)
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		m[key] = attrs[i+1]
	}
	return m
}
