package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupMetricsTest creates a test meter provider and returns a reader to collect metrics.
func setupMetricsTest(t *testing.T) (*sdkmetric.ManualReader, func()) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	originalProvider := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)

	cleanup := func() {
		otel.SetMeterProvider(originalProvider)
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down meter provider: %v", err)
		}
	}

	return reader, cleanup
}

// collectMetrics collects all metrics from the reader.
func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	var rm metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &rm)
	require.NoError(t, err)
	return &rm
}

// findMetric finds a metric by name in the collected data.
func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetricsRecorder(t *testing.T) {
	_, cleanup := setupMetricsTest(t)
	defer cleanup()

	recorder := NewMetricsRecorder()
	require.NotNil(t, recorder)
}

func TestRecordMutation(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordMutation(ctx, "connect")
	m.RecordMutation(ctx, "connect")
	m.RecordMutation(ctx, "delete_node")

	rm := collectMetrics(t, reader)
	mutations := findMetric(rm, "canvasgraph.store.mutations")
	require.NotNil(t, mutations)

	sum, ok := mutations.Data.(metricdata.Sum[int64])
	require.True(t, ok, "Expected Sum type")

	found := false
	for _, dp := range sum.DataPoints {
		for _, attr := range dp.Attributes.ToSlice() {
			if attr.Key == "op" && attr.Value.AsString() == "connect" {
				found = true
				assert.Equal(t, int64(2), dp.Value)
			}
		}
	}
	assert.True(t, found, "Expected datapoint for op=connect")
}

func TestRecordEdgesPruned(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordEdgesPruned(ctx, 3)
	m.RecordEdgesPruned(ctx, 0) // not recorded

	rm := collectMetrics(t, reader)
	pruned := findMetric(rm, "canvasgraph.store.edges_pruned")
	require.NotNil(t, pruned)

	sum, ok := pruned.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.NotEmpty(t, sum.DataPoints)
	assert.Equal(t, int64(3), sum.DataPoints[0].Value)
}

func TestRecordLayout(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()

	t.Run("records latency on success", func(t *testing.T) {
		m.RecordLayout(ctx, 5*time.Millisecond, nil)

		rm := collectMetrics(t, reader)
		latency := findMetric(rm, "canvasgraph.layout.latency_ms")
		require.NotNil(t, latency)

		hist, ok := latency.Data.(metricdata.Histogram[float64])
		require.True(t, ok, "Expected Histogram type")
		require.NotEmpty(t, hist.DataPoints)
	})

	t.Run("records errors on failure", func(t *testing.T) {
		m.RecordLayout(ctx, time.Millisecond, errors.New("cycle detected"))

		rm := collectMetrics(t, reader)
		errCount := findMetric(rm, "canvasgraph.layout.errors")
		require.NotNil(t, errCount)

		sum, ok := errCount.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.NotEmpty(t, sum.DataPoints)
		assert.Equal(t, int64(1), sum.DataPoints[0].Value)
	})
}

func TestRecordRunPoll(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordRunPoll(ctx, false)
	m.RecordRunPoll(ctx, true)

	rm := collectMetrics(t, reader)
	polls := findMetric(rm, "canvasgraph.run.polls")
	require.NotNil(t, polls)

	sum, ok := polls.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, sum.DataPoints, 2) // stale=true and stale=false series
}

func TestRecordAutosave(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordAutosave(ctx, 20*time.Millisecond, nil)
	m.RecordAutosave(ctx, time.Millisecond, errors.New("backend unavailable"))

	rm := collectMetrics(t, reader)

	latency := findMetric(rm, "canvasgraph.autosave.latency_ms")
	require.NotNil(t, latency)

	errCount := findMetric(rm, "canvasgraph.autosave.errors")
	require.NotNil(t, errCount)
	sum, ok := errCount.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.NotEmpty(t, sum.DataPoints)
	assert.Equal(t, int64(1), sum.DataPoints[0].Value)
}

func TestNoopMetrics(t *testing.T) {
	// Must not panic without any provider configured.
	m := NoopMetrics{}
	ctx := context.Background()
	m.RecordMutation(ctx, "add_node")
	m.RecordEdgesPruned(ctx, 1)
	m.RecordLayout(ctx, time.Millisecond, nil)
	m.RecordRunPoll(ctx, false)
	m.RecordAutosave(ctx, time.Millisecond, nil)
}
