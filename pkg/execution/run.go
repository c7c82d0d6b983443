package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dshills/nodeflow/pkg/capability"
	"github.com/dshills/nodeflow/pkg/domain/execution"
	"github.com/dshills/nodeflow/pkg/domain/types"
	"github.com/dshills/nodeflow/pkg/workflow"
)

// ErrStopped is returned when a run observes its stop flag.
var ErrStopped = errors.New("execution stopped")

// errStepLimit ends a run that exceeded Limits.MaxSteps.
var errStepLimit = errors.New("step limit reached")

// Run is one execution of a graph. The run goroutine exclusively owns the
// execution context; other goroutines interact through Stop, Continue, the
// event channel and Wait.
type Run struct {
	ID types.ExecutionID

	engine     *Engine
	graph      *workflow.Graph
	index      *workflow.Index
	entry      *workflow.Node
	exec       *execution.Execution
	state      *execution.ExecutionContext
	caps       capability.Set
	limits     Limits
	logger     *slog.Logger
	monitor    *monitor
	events     <-chan Event
	persistent *Logger
	persist    bool

	ctx    context.Context
	cancel context.CancelFunc

	signalsMu sync.Mutex
	signals   map[string]chan struct{}

	steps    int
	warnings int

	startOnce sync.Once
	done      chan struct{}
	err       error
}

// Start launches the run goroutine. Later calls do nothing.
func (r *Run) Start() {
	r.startOnce.Do(func() {
		go r.run()
	})
}

// Discard releases a prepared run that was never started.
func (r *Run) Discard() {
	r.startOnce.Do(func() {
		r.cancel()
		r.monitor.Close()
		close(r.done)
	})
}

// Events returns the run's event channel. It is closed after the
// run.finished event.
func (r *Run) Events() <-chan Event {
	return r.events
}

// Subscribe returns an additional event channel. Events emitted before the
// call are not replayed.
func (r *Run) Subscribe(filter EventFilter) <-chan Event {
	return r.monitor.SubscribeFiltered(r.limits.EventBuffer, filter)
}

// DroppedEvents reports event deliveries skipped because a subscriber lagged.
func (r *Run) DroppedEvents() uint64 {
	return r.monitor.Dropped()
}

// Stop sets the run's stop flag. Loops and suspended nodes exit at their
// next check.
func (r *Run) Stop() {
	r.state.Stop()
}

// Continue releases a ForLoopAsync node waiting between iterations. A
// signal sent while the node is busy is kept until it next waits.
func (r *Run) Continue(nodeID string) {
	ch := r.signal(nodeID)
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Done is closed when the run has finished.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run finishes and returns its execution record. The
// error is nil for completed runs, wraps ErrStopped for stopped runs and
// describes the failure otherwise.
func (r *Run) Wait() (*execution.Execution, error) {
	<-r.done
	return r.exec, r.err
}

// Execution returns the execution record. It is only safe to inspect once
// Done is closed.
func (r *Run) Execution() *execution.Execution {
	return r.exec
}

// Context returns the run's execution context.
func (r *Run) Context() *execution.ExecutionContext {
	return r.state
}

func (r *Run) signal(nodeID string) chan struct{} {
	r.signalsMu.Lock()
	defer r.signalsMu.Unlock()
	ch, ok := r.signals[nodeID]
	if !ok {
		ch = make(chan struct{}, 1)
		r.signals[nodeID] = ch
	}
	return ch
}

func (r *Run) run() {
	defer close(r.done)
	defer r.cancel()

	if err := r.exec.Start(); err != nil {
		r.err = err
		r.monitor.Close()
		return
	}
	r.persistent.LogExecutionStart(r.exec)
	r.emit(Event{Kind: EventRunStarted, Level: slog.LevelInfo, Message: "run started",
		Attrs: map[string]any{"graph": r.graph.Name, "entry": r.entry.ID}})

	err := r.executeFlow(r.entry.ID, "")
	r.finish(err)
}

// finish records the outcome, persists state and closes the event channel.
func (r *Run) finish(err error) {
	r.exec.Steps = r.steps

	switch {
	case err == nil:
		_ = r.exec.Complete()
	case errors.Is(err, errStepLimit):
		r.warn("", fmt.Sprintf("run ended after %d steps", r.steps))
		_ = r.exec.Complete()
		err = nil
	case errors.Is(err, ErrStopped) || errors.Is(err, context.Canceled):
		_ = r.exec.Cancel()
		err = fmt.Errorf("run %s: %w", r.ID, ErrStopped)
	case errors.Is(err, context.DeadlineExceeded):
		_ = r.exec.Fail(execution.NewExecutionError(execution.ErrorTypeTimeout, "", "run deadline exceeded", err))
	default:
		var execErr *execution.ExecutionError
		if !errors.As(err, &execErr) {
			execErr = execution.NewExecutionError(execution.ErrorTypeExecution, "", "run failed", err)
		}
		_ = r.exec.Fail(execErr)
	}
	r.exec.Warnings = r.warnings
	r.err = err

	if r.persist {
		r.engine.persistVariables(r)
	}
	r.persistent.LogExecutionComplete(r.exec)

	attrs := map[string]any{
		"status":   string(r.exec.Status),
		"steps":    r.steps,
		"warnings": r.warnings,
		"duration": r.exec.Duration().String(),
	}
	level := slog.LevelInfo
	if r.exec.Error != nil {
		attrs["error"] = r.exec.Error.Error()
		if r.exec.Status == execution.StatusFailed {
			level = slog.LevelError
		}
	}
	r.emit(Event{Kind: EventRunFinished, Level: level, Message: "run " + string(r.exec.Status), Attrs: attrs})
	r.monitor.Close()
}

// checkpoint reports whether the run must unwind.
func (r *Run) checkpoint() error {
	if r.state.Stopped() {
		return ErrStopped
	}
	return r.ctx.Err()
}

// interrupted reports whether err means the run is unwinding.
func interrupted(err error) bool {
	return errors.Is(err, ErrStopped) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// emit publishes an event, mirrors it to the logger and notifies observers.
func (r *Run) emit(ev Event) {
	ev.RunID = r.ID
	if ev.Time.IsZero() {
		ev.Time = r.caps.Clock()
	}

	level := ev.Level
	if ev.Kind == EventNodeActive || ev.Kind == EventNodeInactive {
		level = slog.LevelDebug
	}
	if r.logger.Enabled(r.ctx, level) {
		args := make([]any, 0, 2*len(ev.Attrs)+6)
		args = append(args, "event", string(ev.Kind))
		if ev.NodeID != "" {
			args = append(args, "node_id", string(ev.NodeID), "node_type", string(ev.NodeType))
		}
		for k, v := range ev.Attrs {
			args = append(args, k, v)
		}
		r.logger.Log(context.WithoutCancel(r.ctx), level, ev.Message, args...)
	}

	r.monitor.Emit(ev)
	for _, o := range r.engine.observers {
		o(ev)
	}
}

// log emits a log event about a node.
func (r *Run) log(node *workflow.Node, level slog.Level, msg string, attrs map[string]any) {
	ev := Event{Kind: EventLog, Level: level, Message: msg, Attrs: attrs}
	if node != nil {
		ev.NodeID = types.NodeID(node.ID)
		ev.NodeType = node.Type
	}
	if level >= slog.LevelWarn {
		r.warnings++
	}
	r.emit(ev)
}

// warn logs a run-level or node-level warning by node ID.
func (r *Run) warn(nodeID string, msg string) {
	node, _ := r.index.Node(nodeID)
	r.log(node, slog.LevelWarn, msg, nil)
}

// cycle reports an evaluation chain or flow body cut off at the depth ceiling.
func (r *Run) cycle(node *workflow.Node, port string) {
	err := execution.NewExecutionError(execution.ErrorTypeCycle, types.NodeID(node.ID),
		fmt.Sprintf("recursion ceiling of %d exceeded at %s", r.state.MaxDepth(), port), nil)
	r.log(node, slog.LevelError, err.Error(), map[string]any{"error_type": string(execution.ErrorTypeCycle)})
}

// now reads the run clock.
func (r *Run) now() time.Time {
	return r.caps.Clock()
}
