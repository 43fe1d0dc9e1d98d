package telemetry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// memoryMetricExporter keeps exported batches in memory.
type memoryMetricExporter struct {
	mu      sync.Mutex
	batches []metricdata.ResourceMetrics
}

func (e *memoryMetricExporter) Temporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	return sdkmetric.DefaultTemporalitySelector(k)
}

func (e *memoryMetricExporter) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(k)
}

func (e *memoryMetricExporter) Export(_ context.Context, rm *metricdata.ResourceMetrics) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batches = append(e.batches, *rm)
	return nil
}

func (e *memoryMetricExporter) ForceFlush(context.Context) error { return nil }
func (e *memoryMetricExporter) Shutdown(context.Context) error   { return nil }

func (e *memoryMetricExporter) names() map[string]bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := map[string]bool{}
	for _, b := range e.batches {
		for _, sm := range b.ScopeMetrics {
			for _, m := range sm.Metrics {
				names[m.Name] = true
			}
		}
	}
	return names
}

// memoryLogExporter keeps exported log bodies in memory.
type memoryLogExporter struct {
	mu     sync.Mutex
	bodies []string
}

func (e *memoryLogExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.bodies = append(e.bodies, r.Body().AsString())
	}
	return nil
}

func (e *memoryLogExporter) ForceFlush(context.Context) error { return nil }
func (e *memoryLogExporter) Shutdown(context.Context) error   { return nil }

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)

	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.False(t, tel.IsEnabled())
	assert.Equal(t, HealthStatus{Healthy: true}, tel.Health())
	assert.NoError(t, tel.Err())
	assert.Nil(t, tel.LoggerProvider())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Endpoint = ""

	tel, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, tel)
	assert.Contains(t, err.Error(), "invalid telemetry config")
}

func TestNew_ExportsSpansAndMetrics(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	spans := tracetest.NewInMemoryExporter()
	metrics := &memoryMetricExporter{}

	ctx := context.Background()
	tel, err := New(ctx, cfg, WithTraceExporter(spans), WithMetricExporter(metrics))
	require.NoError(t, err)
	assert.True(t, tel.IsEnabled())

	_, span := tel.Tracer("test").Start(ctx, "project.create")
	span.End()

	counter, err := tel.Meter("test").Int64Counter("promptpack.test.count")
	require.NoError(t, err)
	counter.Add(ctx, 2)

	require.NoError(t, tel.ForceFlush(ctx))
	require.Len(t, spans.GetSpans(), 1)
	assert.Equal(t, "project.create", spans.GetSpans()[0].Name)
	assert.True(t, metrics.names()["promptpack.test.count"])

	require.NoError(t, tel.Shutdown(ctx))
	assert.False(t, tel.IsEnabled())
}

func TestNew_ExportsLogs(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	logs := &memoryLogExporter{}

	ctx := context.Background()
	tel, err := New(ctx, cfg,
		WithTraceExporter(tracetest.NewInMemoryExporter()),
		WithMetricExporter(&memoryMetricExporter{}),
		WithLogExporter(logs),
	)
	require.NoError(t, err)
	require.NotNil(t, tel.LoggerProvider())

	var rec otellog.Record
	rec.SetBody(otellog.StringValue("project created"))
	tel.LoggerProvider().Logger("test").Emit(ctx, rec)

	require.NoError(t, tel.ForceFlush(ctx))
	logs.mu.Lock()
	assert.Equal(t, []string{"project created"}, logs.bodies)
	logs.mu.Unlock()
	require.NoError(t, tel.Shutdown(ctx))
}

func TestTelemetry_NilSafe(t *testing.T) {
	var tel *Telemetry

	assert.NotPanics(t, func() {
		_ = tel.Tracer("test")
		_ = tel.Meter("test")
		_ = tel.IsEnabled()
		_ = tel.Err()
		_ = tel.LoggerProvider()
		_ = tel.Shutdown(context.Background())
		_ = tel.ForceFlush(context.Background())
	})
	assert.Equal(t, HealthStatus{Degraded: true}, tel.Health())
}
