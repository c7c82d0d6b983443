package execution

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/nodeflow/pkg/domain/types"
	"github.com/dshills/nodeflow/pkg/value"
)

// DefaultMaxDepth bounds recursive evaluation and flow nesting.
const DefaultMaxDepth = 256

// ExecutionContext holds the runtime state of one graph run: variables,
// memoized outputs, the shared stop flag and the recursion depth.
// All operations are thread-safe.
type ExecutionContext struct {
	// CurrentNodeID is the node currently being executed (nil if not running).
	CurrentNodeID *types.NodeID
	// variables stores the current variable values.
	variables map[string]value.Value
	// variableHistory is an append-only log of variable changes for audit trail.
	variableHistory []VariableSnapshot
	// executionTrace records the execution path through the graph.
	executionTrace []TraceEntry

	memo     *MemoTable
	stop     *atomic.Bool
	depth    int
	maxDepth int

	// mu protects the variables, history, trace and depth.
	mu sync.RWMutex
}

// ContextOption configures a new ExecutionContext.
type ContextOption func(*ExecutionContext)

// WithStopFlag shares a stop flag owned by the caller.
func WithStopFlag(flag *atomic.Bool) ContextOption {
	return func(c *ExecutionContext) {
		if flag != nil {
			c.stop = flag
		}
	}
}

// WithMaxDepth overrides the recursion ceiling.
func WithMaxDepth(n int) ContextOption {
	return func(c *ExecutionContext) {
		if n > 0 {
			c.maxDepth = n
		}
	}
}

// NewExecutionContext creates a new execution context with optional initial variables.
func NewExecutionContext(initialVars map[string]value.Value, opts ...ContextOption) *ExecutionContext {
	ctx := &ExecutionContext{
		variables:       make(map[string]value.Value, len(initialVars)),
		variableHistory: []VariableSnapshot{},
		executionTrace:  []TraceEntry{},
		memo:            NewMemoTable(),
		stop:            &atomic.Bool{},
		maxDepth:        DefaultMaxDepth,
	}
	for key, v := range initialVars {
		ctx.variables[key] = v
	}
	for _, opt := range opts {
		opt(ctx)
	}
	return ctx
}

// Memo returns the run's memoization table.
func (ctx *ExecutionContext) Memo() *MemoTable {
	return ctx.memo
}

// GetVariable retrieves a variable value by name.
// Returns (value, true) if the variable exists, (Null, false) otherwise.
func (ctx *ExecutionContext) GetVariable(name string) (value.Value, bool) {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()

	v, exists := ctx.variables[name]
	return v, exists
}

// SetVariable sets a variable value and records the change in the audit trail.
func (ctx *ExecutionContext) SetVariable(name string, v value.Value) {
	ctx.SetVariableWithNode(name, v, "")
}

// SetVariableWithNode sets a variable value, records which node made the
// change, and invalidates memoized outputs derived from variables.
func (ctx *ExecutionContext) SetVariableWithNode(name string, v value.Value, nodeExecID types.NodeExecutionID) VariableSnapshot {
	ctx.mu.Lock()
	old := ctx.variables[name]
	ctx.variables[name] = v
	snapshot := NewVariableSnapshot(name, old, v, nodeExecID)
	ctx.variableHistory = append(ctx.variableHistory, snapshot)
	ctx.mu.Unlock()

	ctx.memo.Advance()
	return snapshot
}

// GetVariableHistory returns a copy of the variable change history.
func (ctx *ExecutionContext) GetVariableHistory() []VariableSnapshot {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()

	history := make([]VariableSnapshot, len(ctx.variableHistory))
	copy(history, ctx.variableHistory)
	return history
}

// RecordTrace adds an entry to the execution trace.
func (ctx *ExecutionContext) RecordTrace(nodeID types.NodeID, event string) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	ctx.executionTrace = append(ctx.executionTrace, TraceEntry{
		NodeID:    nodeID,
		Event:     event,
		Timestamp: time.Now(),
	})
}

// GetExecutionTrace returns a copy of the execution trace.
func (ctx *ExecutionContext) GetExecutionTrace() []TraceEntry {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()

	trace := make([]TraceEntry, len(ctx.executionTrace))
	copy(trace, ctx.executionTrace)
	return trace
}

// SetCurrentNode sets the currently executing node.
// Pass nil to clear the current node.
func (ctx *ExecutionContext) SetCurrentNode(nodeID *types.NodeID) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	ctx.CurrentNodeID = nodeID
}

// CreateSnapshot returns a point-in-time copy of all variables.
func (ctx *ExecutionContext) CreateSnapshot() map[string]value.Value {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()

	snapshot := make(map[string]value.Value, len(ctx.variables))
	for key, v := range ctx.variables {
		snapshot[key] = v
	}
	return snapshot
}

// Stop sets the shared stop flag.
func (ctx *ExecutionContext) Stop() {
	ctx.stop.Store(true)
}

// Stopped reports whether the stop flag is set.
func (ctx *ExecutionContext) Stopped() bool {
	return ctx.stop.Load()
}

// StopFlag returns the shared flag so collaborators can observe it.
func (ctx *ExecutionContext) StopFlag() *atomic.Bool {
	return ctx.stop
}

// Descend enters one recursion level. It returns false, without
// entering, when the ceiling would be exceeded.
func (ctx *ExecutionContext) Descend() bool {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	if ctx.depth >= ctx.maxDepth {
		return false
	}
	ctx.depth++
	return true
}

// Ascend leaves one recursion level.
func (ctx *ExecutionContext) Ascend() {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	if ctx.depth > 0 {
		ctx.depth--
	}
}

// Depth returns the current recursion depth.
func (ctx *ExecutionContext) Depth() int {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.depth
}

// MaxDepth returns the recursion ceiling.
func (ctx *ExecutionContext) MaxDepth() int {
	return ctx.maxDepth
}
