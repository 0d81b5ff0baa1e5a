package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dealtracker/backend/internal/application/alert"
	"github.com/dealtracker/backend/internal/domain/listing"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/dealtracker/backend/internal/application/ingest"

// Drop reasons reported to Metrics.
const (
	DropZeroPrice     = "zero_price"
	DropMissingCode   = "missing_code"
	DropLookupFailure = "lookup_failure"
)

// AlertChecker decides whether an accepted listing raises an alert.
type AlertChecker interface {
	Check(ctx context.Context, c alert.Candidate) bool
	Reload(ctx context.Context) error
}

// Outcome describes what happened to one accepted listing.
type Outcome struct {
	ProductCode string
	Resolution  listing.Resolution
	Stats       listing.PriceStats
	AlertFired  bool
}

// RunStats counts what a pipeline run did.
type RunStats struct {
	Accepted         int
	Dropped          int
	NewProducts      int
	DriftedProducts  int
	AlertsFired      int
	BatchesCommitted int
	BatchesFailed    int
}

// Pipeline drives raw listings through extraction, pricing, identity
// resolution, staging and alerting. A Pipeline is not safe for concurrent
// use: exactly one goroutine owns it, and with it the Resolver and Writer.
type Pipeline struct {
	resolver    *Resolver
	writer      Writer
	mismatchLog MismatchLog
	alerter     AlertChecker
	metrics     Metrics
	logger      *zap.Logger
	tracer      trace.Tracer

	reloadEachBatch bool
	lastBatches     int
	stats           RunStats
	now             func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMetrics sets the counters the pipeline records into.
func WithMetrics(m Metrics) Option {
	return func(p *Pipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithWatchlistReload reloads the watchlist after every batch boundary.
func WithWatchlistReload(enabled bool) Option {
	return func(p *Pipeline) {
		p.reloadEachBatch = enabled
	}
}

// WithClock overrides the clock used for listings without an observation time.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// NewPipeline creates a Pipeline. The resolver must look records up through
// writer so staged but uncommitted records are found.
func NewPipeline(
	resolver *Resolver,
	writer Writer,
	mismatchLog MismatchLog,
	alerter AlertChecker,
	logger *zap.Logger,
	opts ...Option,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		resolver:    resolver,
		writer:      writer,
		mismatchLog: mismatchLog,
		alerter:     alerter,
		metrics:     nopMetrics{},
		logger:      logger,
		tracer:      otel.Tracer(tracerName),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs one listing through the pipeline. Listings without a usable
// price or product code are dropped with ErrZeroPrice or
// ErrMissingProductCode. A staging error wraps ErrBatchFailed; the listing
// itself was accepted and alerting still ran.
func (p *Pipeline) Process(ctx context.Context, raw listing.RawListing) (Outcome, error) {
	code := raw.Code()
	ctx, span := p.tracer.Start(ctx, "ingest.Process", trace.WithAttributes(
		attribute.String("product_code", code),
	))
	defer span.End()

	price := listing.ParsePrice(raw.Price)
	if !price.Valid || price.Decimal.IsZero() {
		p.drop(ctx, DropZeroPrice)
		p.logger.Warn("Dropping listing with zero price",
			zap.String("product_code", code),
			zap.String("price", raw.Price),
			zap.String("source_url", raw.SourceURL),
		)
		return Outcome{}, fmt.Errorf("product %s: %w", code, listing.ErrZeroPrice)
	}
	if code == "" {
		p.drop(ctx, DropMissingCode)
		p.logger.Warn("Dropping listing without product code", zap.String("source_url", raw.SourceURL))
		return Outcome{}, ErrMissingProductCode
	}

	specs := listing.ExtractSpecs(raw.Attributes)
	fullPrice := listing.ParseOptionalPrice(raw.FullPrice)
	stats := listing.ComputePriceStats(price, fullPrice)

	// Store calls outlive cancellation: a commit started by this listing
	// must not roll back the listings staged before it.
	storeCtx := context.WithoutCancel(ctx)

	res, err := p.resolver.Resolve(storeCtx, code, specs)
	if err != nil {
		p.drop(ctx, DropLookupFailure)
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve failed")
		p.logger.Error("Failed to resolve product", zap.String("product_code", code), zap.Error(err))
		return Outcome{}, err
	}

	observedAt := raw.ObservedAt
	if observedAt.IsZero() {
		observedAt = p.now()
	}

	if res.IsNew {
		p.stats.NewProducts++
		p.metrics.ProductCreated(ctx)
	}
	if res.Dirty {
		p.recordDrift(ctx, code, raw.SourceURL, observedAt, res.Drifts)
	}

	p.stats.Accepted++
	p.metrics.ListingAccepted(ctx)

	obs := listing.NewPriceObservation(res.Record.ID, price, fullPrice, stats, raw.SourceURL, observedAt)
	stageErr := p.writer.Stage(storeCtx, res, obs)
	if stageErr != nil {
		span.RecordError(stageErr)
		span.SetStatus(codes.Error, "batch commit failed")
	}
	p.afterStage(ctx)

	out := Outcome{ProductCode: code, Resolution: res, Stats: stats}
	out.AlertFired = p.alerter.Check(ctx, alert.Candidate{
		ProductCode:        code,
		DiscountPercentage: decimal.NewNullDecimal(stats.DiscountPercentage),
		Price:              price.Decimal,
		Link:               raw.SourceURL,
	})
	if out.AlertFired {
		p.stats.AlertsFired++
		p.metrics.AlertFired(ctx)
	}
	span.SetAttributes(
		attribute.Bool("ingest.new_product", res.IsNew),
		attribute.Bool("ingest.drift", res.Dirty),
		attribute.Bool("ingest.alert", out.AlertFired),
	)

	if stageErr != nil {
		return out, fmt.Errorf("stage product %s: %w", code, stageErr)
	}
	return out, nil
}

// Run consumes listings until in is closed or ctx is cancelled, then closes
// the writer with a context that is never cancelled so the last partial
// batch is always flushed. It returns the error of that final flush.
func (p *Pipeline) Run(ctx context.Context, in <-chan listing.RawListing) error {
	defer func() {
		committed, failed := p.writer.Batches()
		p.stats.BatchesCommitted, p.stats.BatchesFailed = committed, failed
	}()

	if err := p.alerter.Reload(ctx); err != nil {
		p.logger.Error("Failed to load watchlist", zap.Error(err))
	}

	p.consume(ctx, in)

	if err := p.writer.Close(context.WithoutCancel(ctx)); err != nil {
		p.logger.Error("Final flush failed", zap.Error(err))
		return fmt.Errorf("close writer: %w", err)
	}

	p.logger.Info("Ingest run finished",
		zap.Int("accepted", p.stats.Accepted),
		zap.Int("dropped", p.stats.Dropped),
		zap.Int("new_products", p.stats.NewProducts),
		zap.Int("drifted_products", p.stats.DriftedProducts),
		zap.Int("alerts_fired", p.stats.AlertsFired),
	)
	return nil
}

func (p *Pipeline) consume(ctx context.Context, in <-chan listing.RawListing) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Ingest cancelled, flushing staged listings", zap.Error(ctx.Err()))
			return
		case raw, ok := <-in:
			if !ok {
				return
			}
			// select picks randomly among ready cases, so a listing can
			// arrive after cancellation. It is left unprocessed.
			if ctx.Err() != nil {
				p.logger.Info("Ingest cancelled, flushing staged listings", zap.Error(ctx.Err()))
				return
			}
			if _, err := p.Process(ctx, raw); err != nil && !isItemError(err) {
				p.logger.Debug("Listing processed with error", zap.Error(err))
			}
		}
	}
}

// isItemError reports whether err was already logged as a dropped listing.
func isItemError(err error) bool {
	return errors.Is(err, listing.ErrZeroPrice) || errors.Is(err, ErrMissingProductCode)
}

// Stats returns the counters of the run so far.
func (p *Pipeline) Stats() RunStats {
	s := p.stats
	s.BatchesCommitted, s.BatchesFailed = p.writer.Batches()
	return s
}

func (p *Pipeline) drop(ctx context.Context, reason string) {
	p.stats.Dropped++
	p.metrics.ListingDropped(ctx, reason)
}

func (p *Pipeline) recordDrift(ctx context.Context, code, sourceURL string, observedAt time.Time, drifts []listing.FieldDrift) {
	p.stats.DriftedProducts++
	p.metrics.DriftDetected(ctx, len(drifts))

	entry := listing.MismatchLogEntry{
		ProductCode: code,
		SourceURL:   sourceURL,
		ObservedAt:  observedAt,
		Drifts:      drifts,
	}
	p.logger.Warn("Product specs changed under the same code",
		zap.String("product_code", code),
		zap.Strings("drifts", entry.Messages()),
	)
	if p.mismatchLog == nil {
		return
	}
	if err := p.mismatchLog.Append(ctx, entry); err != nil {
		p.logger.Error("Failed to write mismatch log", zap.String("product_code", code), zap.Error(err))
	}
}

// afterStage reloads the watchlist when staging crossed a batch boundary.
func (p *Pipeline) afterStage(ctx context.Context) {
	if !p.reloadEachBatch {
		return
	}
	committed, failed := p.writer.Batches()
	if committed+failed == p.lastBatches {
		return
	}
	p.lastBatches = committed + failed
	if err := p.alerter.Reload(ctx); err != nil {
		p.logger.Error("Failed to reload watchlist", zap.Error(err))
	}
}
