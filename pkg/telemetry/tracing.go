// Package telemetry turns nodeflow run events into OpenTelemetry spans.
//
// A run becomes a root span. Every flow-node activation becomes a child of
// the innermost activation still open, so loop bodies nest under their loop.
// Warnings and errors logged by a node are attached as span events.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/nodeflow/pkg/domain/types"
	"github.com/dshills/nodeflow/pkg/execution"
)

// TracerName identifies spans created by this package.
const TracerName = "github.com/dshills/nodeflow"

type activation struct {
	nodeID types.NodeID
	span   trace.Span
	ctx    context.Context
}

type runState struct {
	span  trace.Span
	ctx   context.Context
	stack []activation
}

// TracingHandler creates spans from run events. It is safe for concurrent
// use by several runs.
type TracingHandler struct {
	tracer trace.Tracer

	mu   sync.Mutex
	runs map[types.ExecutionID]*runState
}

// NewTracingHandler creates a handler that starts spans on tracer.
func NewTracingHandler(tracer trace.Tracer) *TracingHandler {
	return &TracingHandler{
		tracer: tracer,
		runs:   make(map[types.ExecutionID]*runState),
	}
}

// Observer returns the handler as an engine observer.
func (h *TracingHandler) Observer() execution.Observer {
	return h.Handle
}

// Handle processes one run event.
func (h *TracingHandler) Handle(e execution.Event) {
	switch e.Kind {
	case execution.EventRunStarted:
		h.runStarted(e)
	case execution.EventNodeActive:
		h.nodeActive(e)
	case execution.EventNodeInactive:
		h.nodeInactive(e)
	case execution.EventLog:
		h.logged(e)
	case execution.EventRunFinished:
		h.runFinished(e)
	}
}

func (h *TracingHandler) runStarted(e execution.Event) {
	graph, _ := e.Attrs["graph"].(string)
	name := "run:" + string(e.RunID)
	if graph != "" {
		name = "run:" + graph
	}

	ctx, span := h.tracer.Start(context.Background(), name,
		trace.WithAttributes(
			attribute.String("nodeflow.run_id", string(e.RunID)),
			attribute.String("nodeflow.graph", graph),
		),
		trace.WithTimestamp(e.Time),
	)

	h.mu.Lock()
	h.runs[e.RunID] = &runState{span: span, ctx: ctx}
	h.mu.Unlock()
}

func (h *TracingHandler) nodeActive(e execution.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	run, ok := h.runs[e.RunID]
	if !ok {
		return
	}
	parent := run.ctx
	if n := len(run.stack); n > 0 {
		parent = run.stack[n-1].ctx
	}

	ctx, span := h.tracer.Start(parent, "node:"+string(e.NodeID),
		trace.WithAttributes(
			attribute.String("nodeflow.node_id", string(e.NodeID)),
			attribute.String("nodeflow.node_type", string(e.NodeType)),
		),
		trace.WithTimestamp(e.Time),
	)
	run.stack = append(run.stack, activation{nodeID: e.NodeID, span: span, ctx: ctx})
}

func (h *TracingHandler) nodeInactive(e execution.Event) {
	h.mu.Lock()
	run, ok := h.runs[e.RunID]
	var act activation
	found := false
	if ok {
		for i := len(run.stack) - 1; i >= 0; i-- {
			if run.stack[i].nodeID == e.NodeID {
				act = run.stack[i]
				run.stack = append(run.stack[:i], run.stack[i+1:]...)
				found = true
				break
			}
		}
	}
	h.mu.Unlock()

	if !found {
		return
	}
	if port, _ := e.Attrs["port"].(string); port != "" {
		act.span.SetAttributes(attribute.String("nodeflow.port", port))
	}
	act.span.End(trace.WithTimestamp(e.Time))
}

func (h *TracingHandler) logged(e execution.Event) {
	if e.Level < slog.LevelWarn {
		return
	}

	h.mu.Lock()
	run, ok := h.runs[e.RunID]
	var span trace.Span
	if ok {
		span = run.span
		for i := len(run.stack) - 1; i >= 0; i-- {
			if e.NodeID == "" || run.stack[i].nodeID == e.NodeID {
				span = run.stack[i].span
				break
			}
		}
	}
	h.mu.Unlock()

	if span == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("nodeflow.level", e.Level.String())}
	for k, v := range e.Attrs {
		attrs = append(attrs, attribute.String("nodeflow."+k, fmt.Sprint(v)))
	}
	span.AddEvent(e.Message, trace.WithTimestamp(e.Time), trace.WithAttributes(attrs...))
	if e.Attrs["error_type"] == "collaborator" {
		span.SetStatus(codes.Error, e.Message)
	}
}

func (h *TracingHandler) runFinished(e execution.Event) {
	h.mu.Lock()
	run, ok := h.runs[e.RunID]
	delete(h.runs, e.RunID)
	h.mu.Unlock()

	if !ok {
		return
	}
	// Activations still open were cut short by a stop or failure.
	for i := len(run.stack) - 1; i >= 0; i-- {
		run.stack[i].span.End(trace.WithTimestamp(e.Time))
	}

	status, _ := e.Attrs["status"].(string)
	run.span.SetAttributes(attribute.String("nodeflow.status", status))
	if steps, ok := e.Attrs["steps"].(int); ok {
		run.span.SetAttributes(attribute.Int("nodeflow.steps", steps))
	}
	if status == "failed" {
		msg, _ := e.Attrs["error"].(string)
		run.span.SetStatus(codes.Error, msg)
	} else {
		run.span.SetStatus(codes.Ok, "")
	}
	run.span.End(trace.WithTimestamp(e.Time))
}

// ActiveRunSpanContext returns the span context of a run still in progress.
func (h *TracingHandler) ActiveRunSpanContext(runID types.ExecutionID) trace.SpanContext {
	h.mu.Lock()
	defer h.mu.Unlock()
	if run, ok := h.runs[runID]; ok {
		return run.span.SpanContext()
	}
	return trace.SpanContext{}
}

// NewProvider builds a tracer provider that batches spans to an OTLP/HTTP
// collector at endpoint, e.g. "http://localhost:4318". Callers must Shutdown it.
func NewProvider(ctx context.Context, endpoint string) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter)), nil
}
