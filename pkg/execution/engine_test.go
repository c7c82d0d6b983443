package execution

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/nodeflow/internal/testutil"
	"github.com/dshills/nodeflow/pkg/domain/execution"
	"github.com/dshills/nodeflow/pkg/value"
	"github.com/dshills/nodeflow/pkg/workflow"
)

// recorder collects events delivered to an observer.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) observe(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// logs returns the messages of log events at or above level.
func (r *recorder) logs(level slog.Level) []string {
	var out []string
	for _, ev := range r.all() {
		if ev.Kind == EventLog && ev.Level >= level {
			out = append(out, ev.Message)
		}
	}
	return out
}

func (r *recorder) count(kind EventKind, attr, want string) int {
	n := 0
	for _, ev := range r.all() {
		if ev.Kind != kind {
			continue
		}
		if attr == "" || ev.Attrs[attr] == want {
			n++
		}
	}
	return n
}

// execute runs g to completion and returns the run and its events.
func execute(t *testing.T, g *workflow.Graph, ro RunOptions, opts ...Option) (*Run, *recorder, error) {
	t.Helper()
	rec := &recorder{}
	opts = append([]Option{WithLogger(slog.New(slog.DiscardHandler)), WithObserver(rec.observe)}, opts...)
	engine := NewEngine(opts...)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	run, err := engine.Start(ctx, g, ro)
	require.NoError(t, err)
	_, err = run.Wait()
	return run, rec, err
}

func variable(t *testing.T, run *Run, name string) value.Value {
	t.Helper()
	v, ok := run.Context().GetVariable(name)
	require.True(t, ok, "variable %s", name)
	return v
}

// counter builds Entry -> ForLoop[start,end) whose body increments x.
func counter(t *testing.T, start, end int64) *workflow.Graph {
	return testutil.NewGraph(t, "counter").
		Var("x", value.TypeInteger, value.Int(0)).
		Node("entry", workflow.TypeEntry).
		Node("loop", workflow.TypeForLoop,
			testutil.Literal("Start", value.Int(start)), testutil.Literal("End", value.Int(end))).
		Node("get", workflow.TypeGetVariable, testutil.Named("x")).
		Node("add", workflow.TypeAdd, testutil.Literal("B", value.Int(1))).
		Node("set", workflow.TypeSetVariable, testutil.Named("x")).
		Flow("entry", workflow.PortNext, "loop").
		Flow("loop", workflow.PortLoop, "set").
		Wire("get", workflow.PortValue, "add", "A").
		Wire("add", workflow.PortOut, "set", workflow.PortValue).
		Build()
}

func TestEngine_ForLoopIncrementsVariable(t *testing.T) {
	run, rec, err := execute(t, counter(t, 0, 3), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, int64(3), variable(t, run, "x").ToInteger())
	assert.Equal(t, execution.StatusCompleted, run.Execution().Status)
	// entry, loop and three SetVariable activations
	assert.Equal(t, 5, run.Execution().Steps)
	assert.Equal(t, 5, rec.count(EventNodeActive, "", ""))
	assert.Equal(t, 5, rec.count(EventNodeInactive, "", ""))
}

func TestEngine_ForLoopEmptyRange(t *testing.T) {
	run, _, err := execute(t, counter(t, 5, 5), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), variable(t, run, "x").ToInteger())
}

func TestEngine_ForLoopIndexOutput(t *testing.T) {
	g := testutil.NewGraph(t, "index").
		Var("last", value.TypeInteger, value.Int(-1)).
		Node("entry", workflow.TypeEntry).
		Node("loop", workflow.TypeForLoop,
			testutil.Literal("Start", value.Int(2)), testutil.Literal("End", value.Int(6))).
		Node("set", workflow.TypeSetVariable, testutil.Named("last")).
		Flow("entry", workflow.PortNext, "loop").
		Flow("loop", workflow.PortLoop, "set").
		Wire("loop", workflow.PortIndex, "set", workflow.PortValue).
		Build()

	run, _, err := execute(t, g, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), variable(t, run, "last").ToInteger())
}

func TestEngine_InputsOverrideDefaults(t *testing.T) {
	run, _, err := execute(t, counter(t, 0, 2), RunOptions{Inputs: map[string]value.Value{"x": value.Int(10)}})
	require.NoError(t, err)
	assert.Equal(t, int64(12), variable(t, run, "x").ToInteger())
}

func TestEngine_UndeclaredInputRejected(t *testing.T) {
	engine := NewEngine(WithLogger(slog.New(slog.DiscardHandler)))
	_, err := engine.Start(context.Background(), counter(t, 0, 1), RunOptions{
		Inputs: map[string]value.Value{"missing": value.Int(1)},
	})
	require.Error(t, err)

	var execErr *execution.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, execution.ErrorTypeValidation, execErr.Type)
}

func TestEngine_InvalidGraphRejectedBeforeRun(t *testing.T) {
	g, err := workflow.NewGraph("empty", "")
	require.NoError(t, err)

	engine := NewEngine(WithLogger(slog.New(slog.DiscardHandler)))
	_, err = engine.Start(context.Background(), g, RunOptions{})

	var execErr *execution.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, execution.ErrorTypeValidation, execErr.Type)
}

func TestEngine_BranchTakesExactlyOneSide(t *testing.T) {
	for _, cond := range []bool{true, false} {
		g := testutil.NewGraph(t, "branch").
			Var("yes", value.TypeInteger, value.Int(0)).
			Var("no", value.TypeInteger, value.Int(0)).
			Node("entry", workflow.TypeEntry).
			Node("branch", workflow.TypeBranch, testutil.Literal("Condition", value.Bool(cond))).
			Node("yes", workflow.TypeSetVariable, testutil.Named("yes"), testutil.Literal(workflow.PortValue, value.Int(1))).
			Node("no", workflow.TypeSetVariable, testutil.Named("no"), testutil.Literal(workflow.PortValue, value.Int(1))).
			Flow("entry", workflow.PortNext, "branch").
			Flow("branch", workflow.PortTrue, "yes").
			Flow("branch", workflow.PortFalse, "no").
			Build()

		run, _, err := execute(t, g, RunOptions{})
		require.NoError(t, err)

		want := map[bool]int64{true: 1, false: 0}
		assert.Equal(t, want[cond], variable(t, run, "yes").ToInteger())
		assert.Equal(t, want[!cond], variable(t, run, "no").ToInteger())
	}
}

func TestEngine_SequenceRunsArmsInIndexOrder(t *testing.T) {
	g := testutil.NewGraph(t, "sequence").
		Node("entry", workflow.TypeEntry).
		Node("seq", workflow.TypeSequence).
		Node("p1", workflow.TypePrint, testutil.Literal("String", value.String("one"))).
		Node("p2", workflow.TypePrint, testutil.Literal("String", value.String("two"))).
		Node("p10", workflow.TypePrint, testutil.Literal("String", value.String("ten"))).
		Node("after", workflow.TypePrint, testutil.Literal("String", value.String("after"))).
		Flow("entry", workflow.PortNext, "seq").
		Flow("seq", "Out10", "p10").
		Flow("seq", "Out2", "p2").
		Flow("seq", "Out1", "p1").
		Flow("p1", workflow.PortNext, "after").
		Build()

	_, rec, err := execute(t, g, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "after", "two", "ten"}, rec.logs(slog.LevelInfo))
}

func TestEngine_GateBlocksWhenClosed(t *testing.T) {
	g := testutil.NewGraph(t, "gate").
		Node("entry", workflow.TypeEntry).
		Node("gate", workflow.TypeGate, testutil.Literal("Open", value.Bool(false))).
		Node("print", workflow.TypePrint).
		Flow("entry", workflow.PortNext, "gate").
		Flow("gate", workflow.PortNext, "print").
		Build()

	run, rec, err := execute(t, g, RunOptions{})
	require.NoError(t, err)
	assert.Empty(t, rec.logs(slog.LevelInfo))
	assert.Equal(t, 2, run.Execution().Steps)
}

func TestEngine_WhileLoopStopsAtIterationCap(t *testing.T) {
	g := testutil.NewGraph(t, "while").
		Var("n", value.TypeInteger, value.Int(0)).
		Var("done", value.TypeBool, value.Bool(false)).
		Node("entry", workflow.TypeEntry).
		Node("while", workflow.TypeWhileLoop, testutil.Literal("Condition", value.Bool(true))).
		Node("get", workflow.TypeGetVariable, testutil.Named("n")).
		Node("add", workflow.TypeAdd, testutil.Literal("B", value.Int(1))).
		Node("set", workflow.TypeSetVariable, testutil.Named("n")).
		Node("done", workflow.TypeSetVariable, testutil.Named("done"), testutil.Literal(workflow.PortValue, value.Bool(true))).
		Flow("entry", workflow.PortNext, "while").
		Flow("while", workflow.PortLoop, "set").
		Flow("while", workflow.PortDone, "done").
		Wire("get", workflow.PortValue, "add", "A").
		Wire("add", workflow.PortOut, "set", workflow.PortValue).
		Build()

	run, rec, err := execute(t, g, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), variable(t, run, "n").ToInteger())
	assert.True(t, variable(t, run, "done").ToBool())
	assert.Contains(t, rec.logs(slog.LevelWarn), "loop stopped after 1000 iterations")
}

func TestEngine_WhileLoopRereadsCondition(t *testing.T) {
	g := testutil.NewGraph(t, "while-cond").
		Var("n", value.TypeInteger, value.Int(0)).
		Node("entry", workflow.TypeEntry).
		Node("while", workflow.TypeWhileLoop).
		Node("cond-get", workflow.TypeGetVariable, testutil.Named("n")).
		Node("less", workflow.TypeLessThan, testutil.Literal("B", value.Int(4))).
		Node("get", workflow.TypeGetVariable, testutil.Named("n")).
		Node("add", workflow.TypeAdd, testutil.Literal("B", value.Int(1))).
		Node("set", workflow.TypeSetVariable, testutil.Named("n")).
		Flow("entry", workflow.PortNext, "while").
		Flow("while", workflow.PortLoop, "set").
		Wire("cond-get", workflow.PortValue, "less", "A").
		Wire("less", workflow.PortOut, "while", "Condition").
		Wire("get", workflow.PortValue, "add", "A").
		Wire("add", workflow.PortOut, "set", workflow.PortValue).
		Build()

	run, rec, err := execute(t, g, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), variable(t, run, "n").ToInteger())
	assert.Empty(t, rec.logs(slog.LevelWarn))
}

func TestEngine_StopDuringWhileLoop(t *testing.T) {
	g := testutil.NewGraph(t, "stop").
		Var("after", value.TypeBool, value.Bool(false)).
		Node("entry", workflow.TypeEntry).
		Node("while", workflow.TypeWhileLoop, testutil.Literal("Condition", value.Bool(true))).
		Node("delay", workflow.TypeDelay, testutil.Literal("Duration (ms)", value.Int(5))).
		Node("after", workflow.TypeSetVariable, testutil.Named("after"), testutil.Literal(workflow.PortValue, value.Bool(true))).
		Flow("entry", workflow.PortNext, "while").
		Flow("while", workflow.PortLoop, "delay").
		Flow("while", workflow.PortDone, "after").
		Build()

	stop := &atomic.Bool{}
	engine := NewEngine(WithLogger(slog.New(slog.DiscardHandler)),
		WithLimits(Limits{PollInterval: time.Millisecond}))
	run, err := engine.Start(context.Background(), g, RunOptions{StopFlag: stop})
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	stop.Store(true)

	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}
	exec, err := run.Wait()
	require.ErrorIs(t, err, ErrStopped)
	assert.Equal(t, execution.StatusCancelled, exec.Status)
	assert.False(t, variable(t, run, "after").ToBool())
}

func TestEngine_StopInterruptsDelay(t *testing.T) {
	g := testutil.NewGraph(t, "delay").
		Node("entry", workflow.TypeEntry).
		Node("delay", workflow.TypeDelay, testutil.Literal("Duration (ms)", value.Int(60_000))).
		Node("print", workflow.TypePrint).
		Flow("entry", workflow.PortNext, "delay").
		Flow("delay", workflow.PortNext, "print").
		Build()

	engine := NewEngine(WithLogger(slog.New(slog.DiscardHandler)),
		WithLimits(Limits{PollInterval: time.Millisecond}))
	run, err := engine.Start(context.Background(), g, RunOptions{})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	run.Stop()

	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("delay was not interrupted")
	}
	_, err = run.Wait()
	require.ErrorIs(t, err, ErrStopped)
	assert.Equal(t, 2, run.Execution().Steps)
}

func TestEngine_RunTimeout(t *testing.T) {
	g := testutil.NewGraph(t, "timeout").
		Node("entry", workflow.TypeEntry).
		Node("delay", workflow.TypeDelay, testutil.Literal("Duration (ms)", value.Int(60_000))).
		Flow("entry", workflow.PortNext, "delay").
		Build()

	run, _, err := execute(t, g, RunOptions{Timeout: 20 * time.Millisecond},
		WithLimits(Limits{PollInterval: time.Millisecond}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	exec := run.Execution()
	assert.Equal(t, execution.StatusFailed, exec.Status)
	require.NotNil(t, exec.Error)
	assert.Equal(t, execution.ErrorTypeTimeout, exec.Error.Type)
}

func TestEngine_StepLimitEndsRun(t *testing.T) {
	g := testutil.NewGraph(t, "steps").
		Node("entry", workflow.TypeEntry).
		Node("while", workflow.TypeWhileLoop, testutil.Literal("Condition", value.Bool(true))).
		Node("print", workflow.TypePrint).
		Flow("entry", workflow.PortNext, "while").
		Flow("while", workflow.PortLoop, "print").
		Build()

	run, rec, err := execute(t, g, RunOptions{}, WithLimits(Limits{MaxSteps: 5}))
	require.NoError(t, err)
	assert.Equal(t, 5, run.Execution().Steps)
	assert.Equal(t, execution.StatusCompleted, run.Execution().Status)
	assert.Contains(t, rec.logs(slog.LevelWarn), "run ended after 5 steps")
}

func TestEngine_ForLoopAsyncWaitsForContinue(t *testing.T) {
	g := testutil.NewGraph(t, "async").
		Var("x", value.TypeInteger, value.Int(0)).
		Node("entry", workflow.TypeEntry).
		Node("loop", workflow.TypeForLoopAsync,
			testutil.Literal("Start", value.Int(0)), testutil.Literal("End", value.Int(3))).
		Node("get", workflow.TypeGetVariable, testutil.Named("x")).
		Node("add", workflow.TypeAdd, testutil.Literal("B", value.Int(1))).
		Node("set", workflow.TypeSetVariable, testutil.Named("x")).
		Flow("entry", workflow.PortNext, "loop").
		Flow("loop", workflow.PortLoop, "set").
		Wire("get", workflow.PortValue, "add", "A").
		Wire("add", workflow.PortOut, "set", workflow.PortValue).
		Wire("set", workflow.PortNext, "loop", workflow.PortContinue).
		Build()

	run, _, err := execute(t, g, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), variable(t, run, "x").ToInteger())
}

func TestEngine_ForLoopAsyncContinueFromCaller(t *testing.T) {
	g := testutil.NewGraph(t, "async-external").
		Var("x", value.TypeInteger, value.Int(0)).
		Node("entry", workflow.TypeEntry).
		Node("loop", workflow.TypeForLoopAsync,
			testutil.Literal("Start", value.Int(0)), testutil.Literal("End", value.Int(2))).
		Node("get", workflow.TypeGetVariable, testutil.Named("x")).
		Node("add", workflow.TypeAdd, testutil.Literal("B", value.Int(1))).
		Node("set", workflow.TypeSetVariable, testutil.Named("x")).
		Flow("entry", workflow.PortNext, "loop").
		Flow("loop", workflow.PortLoop, "set").
		Wire("get", workflow.PortValue, "add", "A").
		Wire("add", workflow.PortOut, "set", workflow.PortValue).
		Build()

	engine := NewEngine(WithLogger(slog.New(slog.DiscardHandler)),
		WithLimits(Limits{PollInterval: time.Millisecond}))
	run, err := engine.Start(context.Background(), g, RunOptions{})
	require.NoError(t, err)

	// The first iteration runs without a signal; the second waits.
	for ev := range run.Events() {
		if ev.Kind == EventNodeInactive && ev.NodeID == "set" {
			run.Continue("loop")
		}
	}
	_, err = run.Wait()
	require.NoError(t, err)
	assert.Equal(t, int64(2), variable(t, run, "x").ToInteger())
}

func TestEngine_WaitForCondition(t *testing.T) {
	build := func(cond bool) *workflow.Graph {
		return testutil.NewGraph(t, "wait").
			Var("result", value.TypeString, value.String("")).
			Node("entry", workflow.TypeEntry).
			Node("wait", workflow.TypeWaitForCondition,
				testutil.Literal("Condition", value.Bool(cond)),
				testutil.Literal("Poll Interval (ms)", value.Int(5)),
				testutil.Literal("Timeout (ms)", value.Int(30))).
			Node("ok", workflow.TypeSetVariable, testutil.Named("result"), testutil.Literal(workflow.PortValue, value.String("ok"))).
			Node("late", workflow.TypeSetVariable, testutil.Named("result"), testutil.Literal(workflow.PortValue, value.String("timed out"))).
			Flow("entry", workflow.PortNext, "wait").
			Flow("wait", workflow.PortNext, "ok").
			Flow("wait", workflow.PortTimedOut, "late").
			Build()
	}

	run, _, err := execute(t, build(true), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ok", variable(t, run, "result").ToString())

	start := time.Now()
	run, _, err = execute(t, build(false), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, "timed out", variable(t, run, "result").ToString())
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestEngine_DisabledFlowNodePassesThrough(t *testing.T) {
	g := testutil.NewGraph(t, "disabled").
		Var("x", value.TypeInteger, value.Int(0)).
		Node("entry", workflow.TypeEntry).
		Node("print", workflow.TypePrint, testutil.Disabled()).
		Node("set", workflow.TypeSetVariable, testutil.Named("x"), testutil.Literal(workflow.PortValue, value.Int(7))).
		Flow("entry", workflow.PortNext, "print").
		Flow("print", workflow.PortNext, "set").
		Build()

	run, rec, err := execute(t, g, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(7), variable(t, run, "x").ToInteger())
	assert.Empty(t, rec.logs(slog.LevelInfo))

	records := run.Execution().NodeExecutions
	require.Len(t, records, 3)
	assert.Equal(t, execution.NodeStatusSkipped, records[1].Status)
}

func TestEngine_DisabledValueNodeYieldsFallback(t *testing.T) {
	g := testutil.NewGraph(t, "disabled-value").
		Var("x", value.TypeInteger, value.Int(-1)).
		Node("entry", workflow.TypeEntry).
		Node("const", workflow.TypeConstant, testutil.Literal(workflow.PortValue, value.Int(5)), testutil.Disabled()).
		Node("set", workflow.TypeSetVariable, testutil.Named("x")).
		Flow("entry", workflow.PortNext, "set").
		Wire("const", workflow.PortOut, "set", workflow.PortValue).
		Build()

	run, _, err := execute(t, g, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), variable(t, run, "x").ToInteger())
}

func TestEngine_ValueCycleHitsDepthCeiling(t *testing.T) {
	g := testutil.NewGraph(t, "cycle").
		Var("x", value.TypeInteger, value.Int(-1)).
		Node("entry", workflow.TypeEntry).
		Node("a", workflow.TypeAdd, testutil.Literal("B", value.Int(1))).
		Node("b", workflow.TypeAdd, testutil.Literal("B", value.Int(1))).
		Node("set", workflow.TypeSetVariable, testutil.Named("x")).
		Flow("entry", workflow.PortNext, "set").
		Wire("a", workflow.PortOut, "b", "A").
		Wire("b", workflow.PortOut, "a", "A").
		Wire("a", workflow.PortOut, "set", workflow.PortValue).
		Build()

	run, rec, err := execute(t, g, RunOptions{}, WithLimits(Limits{MaxDepth: 16}))
	require.NoError(t, err)
	assert.Equal(t, execution.StatusCompleted, run.Execution().Status)
	assert.Equal(t, int64(0), variable(t, run, "x").ToInteger())
	assert.Equal(t, 1, rec.count(EventLog, "error_type", string(execution.ErrorTypeCycle)))
	assert.Equal(t, 0, run.Context().Depth())
}

func TestEngine_NestedBodiesHitDepthCeiling(t *testing.T) {
	// A loop whose body re-enters the loop nests one level per pass.
	g := testutil.NewGraph(t, "nesting").
		Node("entry", workflow.TypeEntry).
		Node("loop", workflow.TypeForLoop,
			testutil.Literal("Start", value.Int(0)), testutil.Literal("End", value.Int(1))).
		Node("print", workflow.TypePrint).
		Flow("entry", workflow.PortNext, "loop").
		Flow("loop", workflow.PortLoop, "print").
		Flow("print", workflow.PortNext, "loop").
		Build()

	run, rec, err := execute(t, g, RunOptions{}, WithLimits(Limits{MaxDepth: 8}))
	require.NoError(t, err)
	assert.Equal(t, 1, rec.count(EventLog, "error_type", string(execution.ErrorTypeCycle)))
	assert.Len(t, rec.logs(slog.LevelInfo), 8)
	assert.Equal(t, 0, run.Context().Depth())
}

func TestEngine_EventStream(t *testing.T) {
	g := testutil.NewGraph(t, "events").
		Node("entry", workflow.TypeEntry).
		Node("print", workflow.TypePrint, testutil.Literal("String", value.String("hi"))).
		Flow("entry", workflow.PortNext, "print").
		Build()

	engine := NewEngine(WithLogger(slog.New(slog.DiscardHandler)))
	run, err := engine.Start(context.Background(), g, RunOptions{})
	require.NoError(t, err)

	var kinds []EventKind
	var printed Event
	for ev := range run.Events() {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == EventLog {
			printed = ev
		}
		assert.Equal(t, run.ID, ev.RunID)
	}
	assert.Equal(t, []EventKind{
		EventRunStarted,
		EventNodeActive, EventNodeInactive,
		EventNodeActive, EventLog, EventNodeInactive,
		EventRunFinished,
	}, kinds)
	assert.Equal(t, "hi", printed.Message)
	assert.Equal(t, slog.LevelInfo, printed.Level)
	assert.EqualValues(t, "print", printed.NodeID)
}

func TestEngine_RandomIsMemoizedWithinRun(t *testing.T) {
	g := testutil.NewGraph(t, "random").
		Var("a", value.TypeFloat, value.Float(0)).
		Var("b", value.TypeFloat, value.Float(0)).
		Node("entry", workflow.TypeEntry).
		Node("rand", workflow.TypeRandom, testutil.Literal("Max", value.Float(1000))).
		Node("seta", workflow.TypeSetVariable, testutil.Named("a")).
		Node("setb", workflow.TypeSetVariable, testutil.Named("b")).
		Flow("entry", workflow.PortNext, "seta").
		Flow("seta", workflow.PortNext, "setb").
		Wire("rand", workflow.PortOut, "seta", workflow.PortValue).
		Wire("rand", workflow.PortOut, "setb", workflow.PortValue).
		Build()

	run, _, err := execute(t, g, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, variable(t, run, "a").ToFloat(), variable(t, run, "b").ToFloat())
}

func TestEngine_RandomWithVariableBoundsIsMemoizedWithinRun(t *testing.T) {
	g := testutil.NewGraph(t, "random-bounds").
		Var("m", value.TypeFloat, value.Float(1000)).
		Var("a", value.TypeFloat, value.Float(0)).
		Var("b", value.TypeFloat, value.Float(0)).
		Node("entry", workflow.TypeEntry).
		Node("max", workflow.TypeGetVariable, testutil.Named("m")).
		Node("rand", workflow.TypeRandom).
		Node("seta", workflow.TypeSetVariable, testutil.Named("a")).
		Node("setb", workflow.TypeSetVariable, testutil.Named("b")).
		Flow("entry", workflow.PortNext, "seta").
		Flow("seta", workflow.PortNext, "setb").
		Wire("max", workflow.PortValue, "rand", "Max").
		Wire("rand", workflow.PortOut, "seta", workflow.PortValue).
		Wire("rand", workflow.PortOut, "setb", workflow.PortValue).
		Build()

	for range 5 {
		run, _, err := execute(t, g, RunOptions{})
		require.NoError(t, err)
		a := variable(t, run, "a").ToFloat()
		assert.Equal(t, a, variable(t, run, "b").ToFloat())
		assert.GreaterOrEqual(t, a, 0.0)
		assert.Less(t, a, 1000.0)
	}
}

func TestEngine_PreparedRunEvaluatesOutputs(t *testing.T) {
	g := testutil.NewGraph(t, "prepared").
		Var("x", value.TypeInteger, value.Int(4)).
		Node("entry", workflow.TypeEntry).
		Node("get", workflow.TypeGetVariable, testutil.Named("x")).
		Node("div", workflow.TypeDivide, testutil.Literal("B", value.Int(0))).
		Node("print", workflow.TypePrint).
		Wire("get", workflow.PortValue, "div", "A").
		Flow("entry", workflow.PortNext, "print").
		Build()

	engine := NewEngine(WithLogger(slog.New(slog.DiscardHandler)))
	run, err := engine.Prepare(context.Background(), g, RunOptions{})
	require.NoError(t, err)
	defer run.Discard()

	v, ok := run.EvaluateOutput("div", workflow.PortOut)
	require.True(t, ok)
	assert.Equal(t, 4.0, v.ToFloat())

	_, ok = run.EvaluateOutput("print", workflow.PortNext)
	assert.False(t, ok)
	_, ok = run.EvaluateOutput("nope", workflow.PortOut)
	assert.False(t, ok)

	assert.Equal(t, "Hello", run.EvaluateInput("print", "String").ToString())

	require.NoError(t, run.ExecuteFlow("entry", ""))
	assert.Equal(t, 2, len(run.Execution().NodeExecutions))
}

func TestEngine_RepositoryRecordsRun(t *testing.T) {
	repo := testutil.NewRepository()
	run, _, err := execute(t, counter(t, 0, 2), RunOptions{}, WithRepository(repo))
	require.NoError(t, err)

	stored, err := repo.Load(run.ID)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusCompleted, stored.Status)
	assert.Len(t, stored.NodeExecutions, 4)

	snaps := repo.Snapshots(run.ID)
	require.Len(t, snaps, 2)
	assert.Equal(t, "x", snaps[1].VariableName)
	assert.Equal(t, int64(1), snaps[1].OldValue.ToInteger())
	assert.Equal(t, int64(2), snaps[1].NewValue.ToInteger())
}

func TestEngine_RepositoryFailuresDoNotFailRun(t *testing.T) {
	repo := testutil.NewRepository()
	repo.Err = errors.New("disk full")

	run, _, err := execute(t, counter(t, 0, 2), RunOptions{}, WithRepository(repo))
	require.NoError(t, err)
	assert.Equal(t, int64(2), variable(t, run, "x").ToInteger())
}

func TestEngine_PersistVariablesAcrossRuns(t *testing.T) {
	store := testutil.NewRepository()
	g := counter(t, 0, 3)

	_, _, err := execute(t, g, RunOptions{PersistVariables: true}, WithVariableStore(store))
	require.NoError(t, err)

	stored, err := store.LoadDefaults("counter")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored["x"].ToInteger())

	run, _, err := execute(t, g, RunOptions{PersistVariables: true}, WithVariableStore(store))
	require.NoError(t, err)
	assert.Equal(t, int64(6), variable(t, run, "x").ToInteger())

	run, _, err = execute(t, counter(t, 0, 3), RunOptions{}, WithVariableStore(store))
	require.NoError(t, err)
	assert.Equal(t, int64(3), variable(t, run, "x").ToInteger())
}

func TestLimits_WithDefaults(t *testing.T) {
	l := Limits{MaxSteps: -3}.withDefaults()
	d := DefaultLimits()
	assert.Equal(t, d.MaxDepth, l.MaxDepth)
	assert.Equal(t, 1000, l.MaxLoopIterations)
	assert.Equal(t, d.PollInterval, l.PollInterval)
	assert.Equal(t, 0, l.MaxSteps)
	assert.Equal(t, d.EventBuffer, l.EventBuffer)
}

func TestDefaultRegistry_CoversCatalog(t *testing.T) {
	assert.Empty(t, DefaultRegistry().Missing())
}
