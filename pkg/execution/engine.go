// Package execution runs node graphs: the pull-based value evaluator, the
// push-based flow executor, the suspension helpers and the built-in node
// handlers.
package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dshills/nodeflow/internal/ctxlog"
	"github.com/dshills/nodeflow/pkg/capability"
	"github.com/dshills/nodeflow/pkg/domain/execution"
	"github.com/dshills/nodeflow/pkg/domain/types"
	"github.com/dshills/nodeflow/pkg/transform"
	"github.com/dshills/nodeflow/pkg/value"
	"github.com/dshills/nodeflow/pkg/workflow"
)

// Limits bounds the work a single run may do.
type Limits struct {
	// MaxDepth is the ceiling on evaluation recursion and flow nesting.
	MaxDepth int
	// MaxLoopIterations caps every ForLoop, WhileLoop and ForLoopAsync.
	MaxLoopIterations int
	// PollInterval is how often suspended nodes recheck the stop flag.
	PollInterval time.Duration
	// MaxSteps bounds flow-node activations per run; 0 means unlimited.
	MaxSteps int
	// EventBuffer is the capacity of the channel returned by Run.Events.
	EventBuffer int
}

// DefaultLimits returns the standard limits.
func DefaultLimits() Limits {
	return Limits{
		MaxDepth:          execution.DefaultMaxDepth,
		MaxLoopIterations: 1000,
		PollInterval:      50 * time.Millisecond,
		EventBuffer:       1024,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxDepth <= 0 {
		l.MaxDepth = d.MaxDepth
	}
	if l.MaxLoopIterations <= 0 {
		l.MaxLoopIterations = d.MaxLoopIterations
	}
	if l.PollInterval <= 0 {
		l.PollInterval = d.PollInterval
	}
	if l.MaxSteps < 0 {
		l.MaxSteps = 0
	}
	if l.EventBuffer <= 0 {
		l.EventBuffer = d.EventBuffer
	}
	return l
}

// RunOptions configures one run.
type RunOptions struct {
	// Inputs override variable defaults by name.
	Inputs map[string]value.Value
	// PersistVariables loads defaults from the variable store before the run
	// and writes final values back afterwards.
	PersistVariables bool
	// Timeout ends the run with a timeout error; 0 means no deadline.
	Timeout time.Duration
	// StopFlag is shared with the caller; setting it stops the run.
	StopFlag *atomic.Bool
}

// Engine executes graphs. An Engine is safe for concurrent use; each run
// owns its own state.
type Engine struct {
	registry   *Registry
	caps       capability.Set
	repository execution.ExecutionRepository
	variables  execution.VariableStore
	limits     Limits
	logger     *slog.Logger
	observers  []Observer
	evaluator  *transform.Evaluator
}

// Option configures an Engine.
type Option func(*Engine)

// WithCapabilities sets the collaborators nodes call.
func WithCapabilities(caps capability.Set) Option {
	return func(e *Engine) { e.caps = caps }
}

// WithRepository enables run history persistence.
func WithRepository(repo execution.ExecutionRepository) Option {
	return func(e *Engine) { e.repository = repo }
}

// WithVariableStore enables persisted variable defaults.
func WithVariableStore(store execution.VariableStore) Option {
	return func(e *Engine) { e.variables = store }
}

// WithLimits overrides the run limits. Zero fields keep their defaults.
func WithLimits(l Limits) Option {
	return func(e *Engine) { e.limits = l.withDefaults() }
}

// WithLogger sets the logger events are mirrored to.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRegistry replaces the node handler registry.
func WithRegistry(r *Registry) Option {
	return func(e *Engine) {
		if r != nil {
			e.registry = r
		}
	}
}

// WithObserver adds a callback invoked synchronously for every event.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// NewEngine creates an engine with the default registry and limits.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		limits:    DefaultLimits(),
		logger:    slog.Default(),
		evaluator: transform.NewEvaluator(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = DefaultRegistry()
	}
	e.caps = e.caps.WithDefaults()
	return e
}

// Limits returns the limits runs are started with.
func (e *Engine) Limits() Limits {
	return e.limits
}

// Execute runs g to completion and returns the finished execution.
func (e *Engine) Execute(ctx context.Context, g *workflow.Graph, opts RunOptions) (*execution.Execution, error) {
	run, err := e.Start(ctx, g, opts)
	if err != nil {
		return nil, err
	}
	return run.Wait()
}

// Start validates g and launches a run on a background goroutine.
func (e *Engine) Start(ctx context.Context, g *workflow.Graph, opts RunOptions) (*Run, error) {
	run, err := e.Prepare(ctx, g, opts)
	if err != nil {
		return nil, err
	}
	run.Start()
	return run, nil
}

// Prepare validates g and builds a run without starting it. Until Run.Start
// is called the run's evaluator may be driven directly from the caller's
// goroutine. A prepared run that is never started must be released with
// Run.Discard.
func (e *Engine) Prepare(ctx context.Context, g *workflow.Graph, opts RunOptions) (*Run, error) {
	if g == nil {
		return nil, execution.NewExecutionError(execution.ErrorTypeValidation, "", "nil graph", nil)
	}
	if err := g.Validate(); err != nil {
		return nil, execution.NewExecutionError(execution.ErrorTypeValidation, "", "graph validation failed", err)
	}
	entry, err := g.EntryNode()
	if err != nil {
		return nil, execution.NewExecutionError(execution.ErrorTypeValidation, "", "no entry node", err)
	}

	vars, err := e.initialVariables(g, opts)
	if err != nil {
		return nil, err
	}

	graphID := types.GraphID(g.ID)
	if graphID == "" {
		graphID = types.GraphID(g.Name)
	}
	version := g.Version
	if version == "" {
		version = "1.0.0"
	}
	exec, err := execution.NewExecution(graphID, version, vars,
		execution.WithStopFlag(opts.StopFlag),
		execution.WithMaxDepth(e.limits.MaxDepth))
	if err != nil {
		return nil, fmt.Errorf("failed to create execution: %w", err)
	}
	exec.GraphName = g.Name

	if ctx == nil {
		ctx = context.Background()
	}
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	logger := e.logger.With("run_id", exec.ID.String(), "graph", g.Name)
	ctx = ctxlog.WithLogger(ctx, logger)

	r := &Run{
		ID:         exec.ID,
		engine:     e,
		graph:      g,
		index:      workflow.NewIndex(g),
		entry:      entry,
		exec:       exec,
		state:      exec.Context,
		caps:       e.caps,
		limits:     e.limits,
		logger:     logger,
		monitor:    newMonitor(),
		persistent: NewLogger(e.repository, logger),
		persist:    opts.PersistVariables,
		ctx:        ctx,
		cancel:     cancel,
		signals:    make(map[string]chan struct{}),
		done:       make(chan struct{}),
	}
	r.events = r.monitor.Subscribe(e.limits.EventBuffer)
	return r, nil
}

// initialVariables layers graph defaults, stored defaults and inputs.
func (e *Engine) initialVariables(g *workflow.Graph, opts RunOptions) (map[string]value.Value, error) {
	vars := make(map[string]value.Value, len(g.Variables))
	for _, v := range g.Variables {
		vars[v.Name] = v.Initial()
	}

	if opts.PersistVariables && e.variables != nil {
		stored, err := e.variables.LoadDefaults(variableKey(g))
		if err != nil {
			e.logger.Warn("failed to load stored variables", "graph", g.Name, "error", err)
		}
		for name, v := range stored {
			if decl, err := g.GetVariable(name); err == nil {
				vars[name] = decl.Assign(v)
			}
		}
	}

	for name, v := range opts.Inputs {
		decl, err := g.GetVariable(name)
		if err != nil {
			return nil, execution.NewExecutionError(execution.ErrorTypeValidation, "",
				fmt.Sprintf("input %q is not a declared variable", name), err)
		}
		vars[name] = decl.Assign(v)
	}
	return vars, nil
}

// persistVariables writes final values back to the store and the graph.
func (e *Engine) persistVariables(r *Run) {
	final := r.state.CreateSnapshot()
	declared := make(map[string]value.Value, len(r.graph.Variables))
	for _, v := range r.graph.Variables {
		if x, ok := final[v.Name]; ok {
			declared[v.Name] = x
			_ = r.graph.SetVariableDefault(v.Name, x)
		}
	}
	if e.variables == nil {
		return
	}
	if err := e.variables.SaveDefaults(variableKey(r.graph), declared); err != nil {
		r.logger.Warn("failed to persist variables", "error", err)
	}
}

// variableKey identifies the stored defaults of a graph. Graph documents
// without an explicit ID get a fresh one on every parse, so the name is used.
func variableKey(g *workflow.Graph) types.GraphID {
	return types.GraphID(g.Name)
}
