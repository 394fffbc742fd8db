package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records canvasgraph metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordMutation records an applied store mutation.
	RecordMutation(ctx context.Context, op string)

	// RecordEdgesPruned records defensive removal of inconsistent edges.
	RecordEdgesPruned(ctx context.Context, count int)

	// RecordLayout records an auto-layout pass with its duration and error status.
	RecordLayout(ctx context.Context, duration time.Duration, err error)

	// RecordRunPoll records a single run-status poll.
	RecordRunPoll(ctx context.Context, stale bool)

	// RecordAutosave records an autosave flush.
	RecordAutosave(ctx context.Context, duration time.Duration, err error)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	mutations       metric.Int64Counter
	edgesPruned     metric.Int64Counter
	layoutLatency   metric.Float64Histogram
	layoutErrors    metric.Int64Counter
	runPolls        metric.Int64Counter
	autosaveLatency metric.Float64Histogram
	autosaveErrors  metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("canvasgraph")

	mutations, err := meter.Int64Counter("canvasgraph.store.mutations",
		metric.WithDescription("Number of applied store mutations"),
	)
	if err != nil {
		return nil, err
	}

	edgesPruned, err := meter.Int64Counter("canvasgraph.store.edges_pruned",
		metric.WithDescription("Number of inconsistent edges removed defensively"),
	)
	if err != nil {
		return nil, err
	}

	layoutLatency, err := meter.Float64Histogram("canvasgraph.layout.latency_ms",
		metric.WithDescription("Auto-layout latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	layoutErrors, err := meter.Int64Counter("canvasgraph.layout.errors",
		metric.WithDescription("Number of auto-layout failures"),
	)
	if err != nil {
		return nil, err
	}

	runPolls, err := meter.Int64Counter("canvasgraph.run.polls",
		metric.WithDescription("Number of run-status polls"),
	)
	if err != nil {
		return nil, err
	}

	autosaveLatency, err := meter.Float64Histogram("canvasgraph.autosave.latency_ms",
		metric.WithDescription("Autosave flush latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	autosaveErrors, err := meter.Int64Counter("canvasgraph.autosave.errors",
		metric.WithDescription("Number of failed autosave flushes"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		mutations:       mutations,
		edgesPruned:     edgesPruned,
		layoutLatency:   layoutLatency,
		layoutErrors:    layoutErrors,
		runPolls:        runPolls,
		autosaveLatency: autosaveLatency,
		autosaveErrors:  autosaveErrors,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		return NoopMetrics{}
	}
	return m
}

// RecordMutation implements MetricsRecorder.
func (m *otelMetrics) RecordMutation(ctx context.Context, op string) {
	m.mutations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
	))
}

// RecordEdgesPruned implements MetricsRecorder.
func (m *otelMetrics) RecordEdgesPruned(ctx context.Context, count int) {
	if count <= 0 {
		return
	}
	m.edgesPruned.Add(ctx, int64(count))
}

// RecordLayout implements MetricsRecorder.
func (m *otelMetrics) RecordLayout(ctx context.Context, duration time.Duration, err error) {
	if err != nil {
		m.layoutErrors.Add(ctx, 1)
		return
	}
	m.layoutLatency.Record(ctx, float64(duration.Microseconds())/1000.0)
}

// RecordRunPoll implements MetricsRecorder.
func (m *otelMetrics) RecordRunPoll(ctx context.Context, stale bool) {
	m.runPolls.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("stale", stale),
	))
}

// RecordAutosave implements MetricsRecorder.
func (m *otelMetrics) RecordAutosave(ctx context.Context, duration time.Duration, err error) {
	if err != nil {
		m.autosaveErrors.Add(ctx, 1)
		return
	}
	m.autosaveLatency.Record(ctx, float64(duration.Microseconds())/1000.0)
}
