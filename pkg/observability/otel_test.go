package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitOTel_Disabled(t *testing.T) {
	providers, err := InitOTel(context.Background(), OTelConfig{Enabled: false}, Nop())
	require.NoError(t, err)
	assert.Nil(t, providers)
	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(0).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased")
}

func TestLoggerWithTrace(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	// No span: unchanged.
	assert.Same(t, logger, LoggerWithTrace(context.Background(), logger))

	ctx, span := tp.Tracer("test").Start(context.Background(), "search")
	LoggerWithTrace(ctx, logger).Info("traced")
	span.End()

	entry := decodeLine(t, &buf)
	assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), entry["span_id"])
	assert.Len(t, exporter.GetSpans(), 1)
}

type countingExporter struct{ exported int }

func (e *countingExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	e.exported += len(spans)
	return nil
}

func (e *countingExporter) Shutdown(context.Context) error { return nil }

func TestOTelProviders_Shutdown(t *testing.T) {
	exporter := &countingExporter{}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	providers := &OTelProviders{Tracer: tp}

	_, span := tp.Tracer("test").Start(context.Background(), "lookup")
	span.End()
	require.NoError(t, providers.Shutdown(context.Background()))
	assert.Equal(t, 1, exporter.exported, "pending spans are flushed")
}
