package telemetry

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/dshills/nodeflow/internal/testutil"
	"github.com/dshills/nodeflow/pkg/execution"
	"github.com/dshills/nodeflow/pkg/value"
	"github.com/dshills/nodeflow/pkg/workflow"
)

func newTestTracer(t *testing.T) (*tracetest.InMemoryExporter, *TracingHandler) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter, NewTracingHandler(tp.Tracer(TracerName))
}

func runGraph(t *testing.T, h *TracingHandler, g *workflow.Graph) {
	t.Helper()
	engine := execution.NewEngine(
		execution.WithLogger(slog.New(slog.DiscardHandler)),
		execution.WithObserver(h.Observer()),
	)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := engine.Execute(ctx, g, execution.RunOptions{})
	require.NoError(t, err)
}

func spansByName(spans tracetest.SpanStubs) map[string][]tracetest.SpanStub {
	out := make(map[string][]tracetest.SpanStub)
	for _, s := range spans {
		out[s.Name] = append(out[s.Name], s)
	}
	return out
}

func TestTracingHandler_LoopBodiesNestUnderLoop(t *testing.T) {
	exporter, h := newTestTracer(t)
	g := testutil.NewGraph(t, "counter").
		Var("x", value.TypeInteger, value.Int(0)).
		Node("entry", workflow.TypeEntry).
		Node("loop", workflow.TypeForLoop, testutil.Literal("End", value.Int(2))).
		Node("get", workflow.TypeGetVariable, testutil.Named("x")).
		Node("add", workflow.TypeAdd, testutil.Literal("B", value.Int(1))).
		Node("set", workflow.TypeSetVariable, testutil.Named("x")).
		Flow("entry", workflow.PortNext, "loop").
		Flow("loop", workflow.PortLoop, "set").
		Wire("get", workflow.PortValue, "add", "A").
		Wire("add", workflow.PortOut, "set", workflow.PortValue).
		Build()

	runGraph(t, h, g)

	spans := spansByName(exporter.GetSpans())
	require.Len(t, spans["run:counter"], 1)
	require.Len(t, spans["node:entry"], 1)
	require.Len(t, spans["node:loop"], 1)
	require.Len(t, spans["node:set"], 2)

	root := spans["run:counter"][0]
	assert.False(t, root.Parent.IsValid())
	assert.Equal(t, codes.Ok, root.Status.Code)
	assert.Equal(t, root.SpanContext.SpanID(), spans["node:entry"][0].Parent.SpanID())
	assert.Equal(t, root.SpanContext.SpanID(), spans["node:loop"][0].Parent.SpanID())

	loop := spans["node:loop"][0]
	for _, s := range spans["node:set"] {
		assert.Equal(t, loop.SpanContext.SpanID(), s.Parent.SpanID())
		assert.Equal(t, root.SpanContext.TraceID(), s.SpanContext.TraceID())
	}
	assert.Empty(t, h.runs, "finished runs are forgotten")
}

func TestTracingHandler_CollaboratorFailureMarksNodeSpan(t *testing.T) {
	exporter, h := newTestTracer(t)
	g := testutil.NewGraph(t, "clicks").
		Node("entry", workflow.TypeEntry).
		Node("click", workflow.TypeClick).
		Flow("entry", workflow.PortNext, "click").
		Build()

	runGraph(t, h, g)

	spans := spansByName(exporter.GetSpans())
	require.Len(t, spans["node:click"], 1)
	click := spans["node:click"][0]
	assert.Equal(t, codes.Error, click.Status.Code)
	require.Len(t, click.Events, 1)
	assert.Equal(t, "Click failed", click.Events[0].Name)
	assert.Equal(t, codes.Ok, spans["run:clicks"][0].Status.Code)
}

func TestTracingHandler_FailedRunClosesOpenSpans(t *testing.T) {
	exporter, h := newTestTracer(t)
	now := time.Now()

	h.Handle(execution.Event{Kind: execution.EventRunStarted, RunID: "r1", Time: now,
		Attrs: map[string]any{"graph": "g"}})
	assert.True(t, h.ActiveRunSpanContext("r1").IsValid())

	h.Handle(execution.Event{Kind: execution.EventNodeActive, RunID: "r1", NodeID: "wait",
		NodeType: workflow.TypeDelay, Time: now})
	h.Handle(execution.Event{Kind: execution.EventRunFinished, RunID: "r1", Time: now.Add(time.Second),
		Attrs: map[string]any{"status": "failed", "error": "[timeout] run deadline exceeded", "steps": 1}})

	assert.False(t, h.ActiveRunSpanContext("r1").IsValid())
	spans := spansByName(exporter.GetSpans())
	require.Len(t, spans["node:wait"], 1)
	run := spans["run:g"][0]
	assert.Equal(t, codes.Error, run.Status.Code)
	assert.Equal(t, "[timeout] run deadline exceeded", run.Status.Description)
}

func TestTracingHandler_IgnoresUnknownRuns(t *testing.T) {
	exporter, h := newTestTracer(t)

	h.Handle(execution.Event{Kind: execution.EventNodeActive, RunID: "ghost", NodeID: "n"})
	h.Handle(execution.Event{Kind: execution.EventNodeInactive, RunID: "ghost", NodeID: "n"})
	h.Handle(execution.Event{Kind: execution.EventLog, RunID: "ghost", Level: slog.LevelError})
	h.Handle(execution.Event{Kind: execution.EventRunFinished, RunID: "ghost"})

	assert.Empty(t, exporter.GetSpans())
}
