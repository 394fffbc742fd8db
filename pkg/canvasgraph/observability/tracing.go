package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the canvasgraph tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("canvasgraph")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartLayoutSpan starts a span for an auto-layout pass.
	StartLayoutSpan(ctx context.Context, nodeCount, edgeCount int) (context.Context, trace.Span)

	// StartRunSpan starts a span for a partial run, covering dispatch
	// and polling until a terminal status.
	StartRunSpan(ctx context.Context, workflowID, nodeID string) (context.Context, trace.Span)

	// StartFlushSpan starts a span for an autosave flush.
	StartFlushSpan(ctx context.Context, workflowID string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the
// provider before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartLayoutSpan starts a span for an auto-layout pass.
func (m *otelSpanManager) StartLayoutSpan(ctx context.Context, nodeCount, edgeCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "canvasgraph.layout",
		trace.WithAttributes(
			attribute.Int("graph.nodes", nodeCount),
			attribute.Int("graph.edges", edgeCount),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartRunSpan starts a span for a partial run.
func (m *otelSpanManager) StartRunSpan(ctx context.Context, workflowID, nodeID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "canvasgraph.run.partial",
		trace.WithAttributes(
			attribute.String("workflow.id", workflowID),
			attribute.String("node.id", nodeID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartFlushSpan starts a span for an autosave flush.
func (m *otelSpanManager) StartFlushSpan(ctx context.Context, workflowID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "canvasgraph.autosave.flush",
		trace.WithAttributes(
			attribute.String("workflow.id", workflowID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span in context.
func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
