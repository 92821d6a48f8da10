package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics mirrors the search metrics as OpenTelemetry instruments so they
// can be pushed over OTLP alongside traces.
type OTelMetrics struct {
	queries       metric.Int64Counter
	queryDuration metric.Float64Histogram
	queryResults  metric.Int64Histogram
	cacheLookups  metric.Int64Counter
	catalogItems  metric.Int64Gauge
}

// NewOTelMetrics creates the instruments on provider, or on the global meter
// provider when provider is nil.
func NewOTelMetrics(provider metric.MeterProvider) (*OTelMetrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter("github.com/platinummonkey/docsearch")

	m := &OTelMetrics{}
	var err error

	m.queries, err = meter.Int64Counter(
		"docsearch.queries",
		metric.WithDescription("Total number of search queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create queries counter: %w", err)
	}

	m.queryDuration, err = meter.Float64Histogram(
		"docsearch.query.duration",
		metric.WithDescription("Search query evaluation time"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create query duration histogram: %w", err)
	}

	m.queryResults, err = meter.Int64Histogram(
		"docsearch.query.results",
		metric.WithDescription("Number of results returned per query"),
		metric.WithUnit("{result}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create query results histogram: %w", err)
	}

	m.cacheLookups, err = meter.Int64Counter(
		"docsearch.cache.lookups",
		metric.WithDescription("Result cache lookups"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache lookups counter: %w", err)
	}

	m.catalogItems, err = meter.Int64Gauge(
		"docsearch.catalog.items",
		metric.WithDescription("Number of items in the live catalog"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog items gauge: %w", err)
	}

	return m, nil
}

// ObserveQuery records one evaluated query.
func (m *OTelMetrics) ObserveQuery(mode, outcome string, results int, took time.Duration) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("search.mode", mode),
		attribute.String("search.outcome", outcome),
	)
	m.queries.Add(ctx, 1, attrs)
	m.queryDuration.Record(ctx, took.Seconds(), attrs)
	m.queryResults.Record(ctx, int64(results), attrs)
}

// ObserveCache records a result cache lookup.
func (m *OTelMetrics) ObserveCache(hit bool) {
	m.cacheLookups.Add(context.Background(), 1,
		metric.WithAttributes(attribute.Bool("cache.hit", hit)))
}

// SetCatalog publishes the item count of a newly swapped-in catalog.
func (m *OTelMetrics) SetCatalog(version string, items int) {
	m.catalogItems.Record(context.Background(), int64(items),
		metric.WithAttributes(attribute.String("catalog.version", version)))
}
