package execution

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dshills/nodeflow/pkg/domain/execution"
	"github.com/dshills/nodeflow/pkg/domain/types"
	"github.com/dshills/nodeflow/pkg/workflow"
)

// ExecuteFlow runs the flow path starting at nodeID, entered through port.
// It iterates along single flow edges and only nests for loop bodies and
// sequence arms. The same restrictions as EvaluateOutput apply.
func (r *Run) ExecuteFlow(nodeID, port string) error {
	return r.executeFlow(nodeID, port)
}

func (r *Run) executeFlow(nodeID, port string) error {
	for nodeID != "" {
		if err := r.checkpoint(); err != nil {
			return err
		}
		node, ok := r.index.Node(nodeID)
		if !ok {
			r.warn("", fmt.Sprintf("flow target %q not found", nodeID))
			return nil
		}
		next, err := r.activate(node, port)
		if err != nil {
			return err
		}
		if next == "" {
			return nil
		}
		nodeID, port = r.flowTarget(node.ID, next)
	}
	return nil
}

// flowTarget returns the node and input a flow output leads to.
func (r *Run) flowTarget(nodeID, port string) (string, string) {
	targets := r.index.Targets(nodeID, port)
	if len(targets) == 0 {
		return "", ""
	}
	return targets[0].Node, targets[0].Port
}

// follow runs the body attached to a flow output as one nesting level.
func (r *Run) follow(node *workflow.Node, port string) error {
	target, entry := r.flowTarget(node.ID, port)
	if target == "" {
		return nil
	}
	if !r.state.Descend() {
		r.cycle(node, port)
		return nil
	}
	defer r.state.Ascend()
	return r.executeFlow(target, entry)
}

// familyOutputs lists the connected members of an output family in order.
func (r *Run) familyOutputs(node *workflow.Node, family *workflow.PortFamily) []string {
	if family == nil {
		return nil
	}
	type member struct {
		index int
		port  string
	}
	var members []member
	seen := make(map[string]bool)
	for _, conn := range r.graph.Connections {
		if conn.From.Node != node.ID || seen[conn.From.Port] {
			continue
		}
		if i, ok := family.Member(conn.From.Port); ok {
			seen[conn.From.Port] = true
			members = append(members, member{index: i, port: conn.From.Port})
		}
	}
	sort.Slice(members, func(a, b int) bool { return members[a].index < members[b].index })

	out := make([]string, len(members))
	for i, m := range members {
		out[i] = m.port
	}
	return out
}

// activate runs one flow node and returns the output control leaves through.
func (r *Run) activate(node *workflow.Node, port string) (string, error) {
	spec, ok := node.Spec()
	if !ok || !spec.Flow {
		r.warn(node.ID, fmt.Sprintf("%s is not a flow node", node.Type))
		return "", nil
	}
	if r.limits.MaxSteps > 0 && r.steps >= r.limits.MaxSteps {
		return "", errStepLimit
	}
	r.steps++

	nodeID := types.NodeID(node.ID)
	rec := execution.NewNodeExecution(r.ID, nodeID, string(node.Type))
	rec.Start()
	r.state.SetCurrentNode(&nodeID)
	r.state.RecordTrace(nodeID, "active")
	r.emit(Event{Kind: EventNodeActive, NodeID: nodeID, NodeType: node.Type,
		Level: slog.LevelInfo, Message: node.Title()})

	next, err := r.invoke(node, spec, port, rec)

	r.state.RecordTrace(nodeID, "inactive")
	r.state.SetCurrentNode(nil)
	_ = r.exec.AddNodeExecution(rec)
	r.persistent.LogNodeExecution(rec)
	r.emit(Event{Kind: EventNodeInactive, NodeID: nodeID, NodeType: node.Type,
		Level: slog.LevelInfo, Message: node.Title(), Attrs: map[string]any{"port": next}})
	return next, err
}

func (r *Run) invoke(node *workflow.Node, spec *workflow.NodeSpec, port string, rec *execution.NodeExecution) (next string, err error) {
	if !node.Enabled() {
		rec.Skip()
		if _, ok := spec.Output(workflow.PortNext); ok {
			return workflow.PortNext, nil
		}
		return "", nil
	}
	fn, ok := r.engine.registry.Flow(node.Type)
	if !ok {
		r.warn(node.ID, fmt.Sprintf("no handler for %s", node.Type))
		rec.Skip()
		return "", nil
	}

	// A panicking handler fails its node and the run, not the process.
	defer func() {
		if p := recover(); p != nil {
			msg := fmt.Sprintf("handler panicked: %v", p)
			r.log(node, slog.LevelError, msg, map[string]any{"error_type": string(execution.ErrorTypeExecution)})
			rec.Fail(&execution.NodeError{Type: execution.ErrorTypeExecution, Message: msg}, "")
			next = ""
			err = execution.NewExecutionError(execution.ErrorTypeExecution, types.NodeID(node.ID), msg, nil)
		}
	}()

	c := r.newCall(node, spec, port, rec)
	rec.Inputs = c.inputs
	next, err = fn(c)
	if err != nil {
		typ := execution.ErrorTypeCancelled
		var execErr *execution.ExecutionError
		if errors.As(err, &execErr) {
			typ = execErr.Type
		}
		rec.Fail(&execution.NodeError{
			Type:    typ,
			Message: err.Error(),
		}, "")
		rec.Outputs = c.outputs
		return "", err
	}
	if c.failure != nil {
		rec.Fail(c.failure, next)
		rec.Outputs = c.outputs
	} else {
		rec.Complete(c.outputs, next)
	}
	return next, nil
}
