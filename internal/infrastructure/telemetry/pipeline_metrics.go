package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dealtracker/backend/internal/application/ingest"
	"github.com/dealtracker/backend/internal/infrastructure/persistence"
)

// MeterName is the instrumentation scope of the pipeline metrics.
const MeterName = "github.com/dealtracker/backend/ingest"

// PipelineMetrics records ingest counters and batch commit timings.
type PipelineMetrics struct {
	accepted    *Counter
	dropped     *Counter
	created     *Counter
	drifted     *Counter
	driftFields *Counter
	alerts      *Counter
	batches     *Counter
	commitTime  *Histogram
	batchSize   *Histogram
}

var (
	_ ingest.Metrics             = (*PipelineMetrics)(nil)
	_ persistence.CommitRecorder = (*PipelineMetrics)(nil)
)

// NewPipelineMetrics creates the pipeline instruments on meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	var (
		m   PipelineMetrics
		err error
	)
	counters := []struct {
		dst        **Counter
		name, desc string
	}{
		{&m.accepted, "ingest.listings.accepted", "Listings that produced a price observation"},
		{&m.dropped, "ingest.listings.dropped", "Listings dropped before staging, by reason"},
		{&m.created, "ingest.products.created", "Product codes seen for the first time"},
		{&m.drifted, "ingest.products.drifted", "Observations whose monitored specs disagreed with the stored record"},
		{&m.driftFields, "ingest.drift.fields", "Monitored fields that drifted"},
		{&m.alerts, "ingest.alerts.fired", "Watchlist alerts fired"},
		{&m.batches, "ingest.batches", "Batch commits, by result"},
	}
	for _, c := range counters {
		if *c.dst, err = NewCounter(meter, c.name, c.desc, "{count}"); err != nil {
			return nil, err
		}
	}

	if m.commitTime, err = NewHistogram(meter, HistogramOpts{
		Name:        "ingest.batch.commit.duration",
		Description: "Time spent committing one batch",
		Unit:        "s",
		Boundaries:  CommitDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.batchSize, err = NewHistogram(meter, HistogramOpts{
		Name:        "ingest.batch.size",
		Description: "Observations per committed or failed batch",
		Unit:        "{observation}",
		Boundaries:  BatchSizeBuckets,
	}); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *PipelineMetrics) ListingAccepted(ctx context.Context) { m.accepted.Inc(ctx) }

func (m *PipelineMetrics) ListingDropped(ctx context.Context, reason string) {
	m.dropped.Inc(ctx, AttrDropReason.String(reason))
}

func (m *PipelineMetrics) ProductCreated(ctx context.Context) { m.created.Inc(ctx) }

func (m *PipelineMetrics) DriftDetected(ctx context.Context, fields int) {
	m.drifted.Inc(ctx)
	m.driftFields.Add(ctx, int64(fields))
}

func (m *PipelineMetrics) AlertFired(ctx context.Context) { m.alerts.Inc(ctx) }

func (m *PipelineMetrics) BatchCommitted(ctx context.Context, size int, elapsed time.Duration) {
	m.recordBatch(ctx, "committed", size, elapsed)
}

func (m *PipelineMetrics) BatchFailed(ctx context.Context, size int, elapsed time.Duration) {
	m.recordBatch(ctx, "failed", size, elapsed)
}

func (m *PipelineMetrics) recordBatch(ctx context.Context, result string, size int, elapsed time.Duration) {
	attr := []attribute.KeyValue{AttrBatchResult.String(result)}
	m.batches.Inc(ctx, attr...)
	m.commitTime.RecordDuration(ctx, elapsed, attr...)
	m.batchSize.Record(ctx, float64(size), attr...)
}
