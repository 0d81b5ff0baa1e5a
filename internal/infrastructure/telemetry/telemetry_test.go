package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dealtracker/backend/internal/infrastructure/config"
)

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
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

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestPipelineMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewPipelineMetrics(provider.Meter(MeterName))
	require.NoError(t, err)

	ctx := context.Background()
	m.ListingAccepted(ctx)
	m.ListingAccepted(ctx)
	m.ListingDropped(ctx, "zero_price")
	m.ProductCreated(ctx)
	m.DriftDetected(ctx, 2)
	m.AlertFired(ctx)
	m.BatchCommitted(ctx, 100, 40*time.Millisecond)
	m.BatchFailed(ctx, 3, 5*time.Millisecond)

	got := collectMetrics(t, reader)
	assert.Equal(t, int64(2), sumOf(t, got["ingest.listings.accepted"]))
	assert.Equal(t, int64(1), sumOf(t, got["ingest.listings.dropped"]))
	assert.Equal(t, int64(1), sumOf(t, got["ingest.products.created"]))
	assert.Equal(t, int64(1), sumOf(t, got["ingest.products.drifted"]))
	assert.Equal(t, int64(2), sumOf(t, got["ingest.drift.fields"]))
	assert.Equal(t, int64(1), sumOf(t, got["ingest.alerts.fired"]))
	assert.Equal(t, int64(2), sumOf(t, got["ingest.batches"]))

	hist, ok := got["ingest.batch.commit.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Len(t, hist.DataPoints, 2)

	batches := got["ingest.batches"].Data.(metricdata.Sum[int64])
	results := map[string]int64{}
	for _, dp := range batches.DataPoints {
		v, _ := dp.Attributes.Value(AttrBatchResult)
		results[v.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"committed": 1, "failed": 1}, results)
}

func TestSetup_Disabled(t *testing.T) {
	tel, err := Setup(context.Background(), config.TelemetryConfig{ServiceName: "dealtracker"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, tel.Tracer.IsEnabled())
	assert.False(t, tel.Meter.IsEnabled())
	assert.False(t, tel.Logs.IsEnabled())
	assert.False(t, tel.Profiler.IsEnabled())
	assert.False(t, tel.Tracer.SpanProfilesEnabled())
	assert.NotNil(t, tel.Meter.Meter(MeterName))

	logger := zap.NewNop()
	assert.Same(t, logger, tel.BridgeLogger(logger, "dealtracker", zapcore.InfoLevel))
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNewZapOTELCore_DisabledIsNop(t *testing.T) {
	core := NewZapOTELCore(nil, "dealtracker", zapcore.DebugLevel)
	assert.False(t, core.Enabled(zapcore.ErrorLevel))

	core = NewZapOTELCore(&LoggerProvider{}, "dealtracker", zapcore.DebugLevel)
	assert.False(t, core.Enabled(zapcore.ErrorLevel))
}

func TestLevelFilterCore(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(&levelFilterCore{Core: inner, minLevel: zapcore.WarnLevel})

	logger.Info("dropped")
	logger.With(zap.String("k", "v")).Warn("kept")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "kept", logs.All()[0].Message)
	assert.Equal(t, "v", logs.All()[0].ContextMap()["k"])
}

func TestNewProfiler(t *testing.T) {
	p, err := NewProfiler(ProfilerConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, p.IsEnabled())
	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop())

	_, err = NewProfiler(ProfilerConfig{Enabled: true, ApplicationName: "dealtracker"}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewProfiler(ProfilerConfig{Enabled: true, ServerAddress: "http://localhost:4040"}, zap.NewNop())
	assert.Error(t, err)
}

func TestNewSampler(t *testing.T) {
	assert.Equal(t, sdktrace.NeverSample().Description(), newSampler(0).Description())
	assert.Contains(t, newSampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, newSampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func newSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestRegisterDBTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	db := newSQLite(t)
	require.NoError(t, RegisterDBTracing(db, DBTracingConfig{
		Enabled:        true,
		DBSystem:       "sqlite",
		TracerProvider: tp,
	}, zaptest.NewLogger(t)))

	require.NoError(t, db.WithContext(context.Background()).Exec("CREATE TABLE probe (id INTEGER)").Error)
	assert.NotEmpty(t, recorder.Ended())
}

func TestRegisterDBTracing_Disabled(t *testing.T) {
	db := newSQLite(t)
	require.NoError(t, RegisterDBTracing(db, DBTracingConfig{}, zap.NewNop()))
	assert.Empty(t, db.Config.Plugins)
}
