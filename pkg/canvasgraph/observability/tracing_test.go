package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTracingTest creates a test tracer provider with an in-memory exporter.
func setupTracingTest(t *testing.T) (*tracetest.InMemoryExporter, func()) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)

	originalProvider := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	// Update the package-level tracer
	tracer = otel.Tracer("canvasgraph")

	cleanup := func() {
		otel.SetTracerProvider(originalProvider)
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	}

	return exporter, cleanup
}

func TestStartLayoutSpan(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	mgr := NewSpanManager()
	_, span := mgr.StartLayoutSpan(context.Background(), 12, 18)
	mgr.EndSpanWithError(span, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "canvasgraph.layout", spans[0].Name)

	attrs := spans[0].Attributes
	assert.Contains(t, attrs, attribute.Int("graph.nodes", 12))
	assert.Contains(t, attrs, attribute.Int("graph.edges", 18))
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
}

func TestStartRunSpan(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	mgr := NewSpanManager()
	_, span := mgr.StartRunSpan(context.Background(), "wf-1", "node-abc")
	mgr.EndSpanWithError(span, errors.New("backend failed"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "canvasgraph.run.partial", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	require.NotEmpty(t, spans[0].Events)
	assert.Equal(t, "exception", spans[0].Events[0].Name)
}

func TestStartFlushSpan(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	mgr := NewSpanManager()
	ctx, span := mgr.StartFlushSpan(context.Background(), "wf-1")
	mgr.AddSpanEvent(ctx, "serialized", attribute.Int("bytes", 512))
	mgr.EndSpanWithError(span, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "canvasgraph.autosave.flush", spans[0].Name)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "serialized", spans[0].Events[0].Name)
}

func TestNoopSpanManager(t *testing.T) {
	mgr := NoopSpanManager{}
	ctx := context.Background()

	newCtx, span := mgr.StartLayoutSpan(ctx, 0, 0)
	assert.Equal(t, ctx, newCtx)

	mgr.AddSpanEvent(ctx, "ignored")
	mgr.EndSpanWithError(span, errors.New("ignored"))
	mgr.EndSpanWithError(nil, nil)
}
