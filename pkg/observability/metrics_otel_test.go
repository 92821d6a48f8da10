package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func setupTestMeterProvider(t *testing.T) (*metric.MeterProvider, *metric.ManualReader) {
	t.Helper()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return provider, reader
}

func collect(t *testing.T, reader *metric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestOTelMetrics(t *testing.T) {
	provider, reader := setupTestMeterProvider(t)
	m, err := NewOTelMetrics(provider)
	require.NoError(t, err)

	m.ObserveQuery("name", "ok", 4, 2*time.Millisecond)
	m.ObserveQuery("name", "ok", 1, time.Millisecond)
	m.ObserveCache(true)
	m.ObserveCache(false)
	m.SetCatalog("v1", 36)

	got := collect(t, reader)

	queries, ok := got["docsearch.queries"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, queries.DataPoints, 1)
	assert.Equal(t, int64(2), queries.DataPoints[0].Value)

	duration, ok := got["docsearch.query.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, duration.DataPoints, 1)
	assert.Equal(t, uint64(2), duration.DataPoints[0].Count)

	lookups, ok := got["docsearch.cache.lookups"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, lookups.DataPoints, 2)

	items, ok := got["docsearch.catalog.items"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, items.DataPoints, 1)
	assert.Equal(t, int64(36), items.DataPoints[0].Value)
}

func TestNewOTelMetrics_GlobalProvider(t *testing.T) {
	m, err := NewOTelMetrics(nil)
	require.NoError(t, err)
	// The default global provider is a no-op; recording must not panic.
	m.ObserveQuery("type", "error", 0, time.Millisecond)
	m.ObserveCache(false)
}
