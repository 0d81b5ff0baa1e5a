package persistence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/dealtracker/backend/internal/application/ingest"
	"github.com/dealtracker/backend/internal/domain/listing"
	"github.com/dealtracker/backend/internal/domain/shared"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrBatchFailed is the error every failed commit wraps.
	ErrBatchFailed = ingest.ErrBatchFailed
	// ErrWriterClosed is returned by Stage and Flush after Close.
	ErrWriterClosed = errors.New("batch writer is closed")
)

const (
	DefaultBatchSize = 100
	DefaultCacheSize = 10000
)

// BatchState is the lifecycle state of a BatchWriter.
type BatchState int

const (
	StateIdle BatchState = iota
	StateAccumulating
	StateCommitting
	StateFailedRolledBack
)

func (s BatchState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccumulating:
		return "accumulating"
	case StateCommitting:
		return "committing"
	case StateFailedRolledBack:
		return "failed_rolled_back"
	default:
		return "unknown"
	}
}

// CommitRecorder receives batch commit measurements.
type CommitRecorder interface {
	BatchCommitted(ctx context.Context, size int, elapsed time.Duration)
	BatchFailed(ctx context.Context, size int, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) BatchCommitted(context.Context, int, time.Duration) {}
func (nopRecorder) BatchFailed(context.Context, int, time.Duration)    {}

// BatchWriter buffers product record writes and price observations and
// commits them in one transaction per batch. A failed batch is rolled back
// and dropped. Committed records are kept in an LRU identity cache so
// repeated product codes do not hit the database.
type BatchWriter struct {
	db        *gorm.DB
	repo      listing.ProductRecordRepository
	cache     *lru.Cache[string, *listing.ProductRecord]
	batchSize int
	logger    *zap.Logger
	recorder  CommitRecorder
	tracer    trace.Tracer
	closer    io.Closer

	mu           sync.Mutex
	state        BatchState
	pending      map[string]*listing.ProductRecord
	touched      map[string]struct{}
	inserts      []*listing.ProductRecord
	updates      []*listing.ProductRecord
	observations []*listing.PriceObservation
	committed    int
	failed       int
	closed       bool
}

// BatchWriterOption configures a BatchWriter.
type BatchWriterOption func(*BatchWriter)

// WithBatchSize sets how many observations make a full batch.
func WithBatchSize(n int) BatchWriterOption {
	return func(w *BatchWriter) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// WithCommitRecorder sets the recorder for commit metrics.
func WithCommitRecorder(r CommitRecorder) BatchWriterOption {
	return func(w *BatchWriter) {
		if r != nil {
			w.recorder = r
		}
	}
}

// WithCloser releases c when the writer is closed, typically the Database.
func WithCloser(c io.Closer) BatchWriterOption {
	return func(w *BatchWriter) {
		w.closer = c
	}
}

// NewBatchWriter creates a BatchWriter with an identity cache of cacheSize
// committed records.
func NewBatchWriter(db *gorm.DB, cacheSize int, logger *zap.Logger, opts ...BatchWriterOption) (*BatchWriter, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, *listing.ProductRecord](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create identity cache: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &BatchWriter{
		db:        db,
		repo:      NewGormProductRecordRepository(db),
		cache:     cache,
		batchSize: DefaultBatchSize,
		logger:    logger.Named("batch_writer"),
		recorder:  nopRecorder{},
		tracer:    otel.Tracer("github.com/dealtracker/backend/internal/infrastructure/persistence"),
		pending:   make(map[string]*listing.ProductRecord),
		touched:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

var _ ingest.Writer = (*BatchWriter)(nil)

// Lookup returns the record for code from the open batch, the identity
// cache or the database, in that order.
func (w *BatchWriter) Lookup(ctx context.Context, code string) (*listing.ProductRecord, error) {
	w.mu.Lock()
	if r, ok := w.pending[code]; ok {
		w.mu.Unlock()
		return r, nil
	}
	w.mu.Unlock()

	if r, ok := w.cache.Get(code); ok {
		return r, nil
	}

	r, err := w.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find product %s: %w", code, err)
	}
	w.cache.Add(code, r)
	return r, nil
}

// Stage buffers the observation and the record write res calls for, and
// commits when the batch is full.
func (w *BatchWriter) Stage(ctx context.Context, res listing.Resolution, obs *listing.PriceObservation) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}

	if res.Record != nil {
		w.touched[res.Record.ProductCode] = struct{}{}
	}
	if res.Record != nil && res.NeedsWrite() {
		code := res.Record.ProductCode
		if _, staged := w.pending[code]; !staged {
			w.pending[code] = res.Record
			if res.IsNew {
				w.inserts = append(w.inserts, res.Record)
			} else {
				w.updates = append(w.updates, res.Record)
			}
		}
	}
	if obs != nil {
		w.observations = append(w.observations, obs)
	}
	w.state = StateAccumulating

	if len(w.observations) >= w.batchSize {
		return w.commitLocked(ctx)
	}
	return nil
}

// Flush commits the open batch, if any.
func (w *BatchWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	return w.commitLocked(ctx)
}

// Close flushes the open batch and then releases the closer, whether or not
// the flush succeeded. Closing twice is a no-op.
func (w *BatchWriter) Close(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	flushErr := w.commitLocked(ctx)
	var closeErr error
	if w.closer != nil {
		if err := w.closer.Close(); err != nil {
			closeErr = fmt.Errorf("close store: %w", err)
		}
	}
	return errors.Join(flushErr, closeErr)
}

// Batches reports how many batches were committed and how many failed.
func (w *BatchWriter) Batches() (committed, failed int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.committed, w.failed
}

// State returns the current lifecycle state.
func (w *BatchWriter) State() BatchState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Pending returns the number of staged observations.
func (w *BatchWriter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.observations)
}

func (w *BatchWriter) commitLocked(ctx context.Context) error {
	if len(w.observations) == 0 && len(w.inserts) == 0 && len(w.updates) == 0 {
		return nil
	}

	w.state = StateCommitting
	size := len(w.observations)
	start := time.Now()

	ctx, span := w.tracer.Start(ctx, "persistence.CommitBatch", trace.WithAttributes(
		attribute.Int("batch.observations", size),
		attribute.Int("batch.inserts", len(w.inserts)),
		attribute.Int("batch.updates", len(w.updates)),
	))
	defer span.End()

	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(w.inserts) > 0 {
			if err := tx.Omit(clause.Associations).Create(&w.inserts).Error; err != nil {
				return fmt.Errorf("insert products: %w", err)
			}
		}
		for _, r := range w.updates {
			if err := tx.Omit(clause.Associations).Save(r).Error; err != nil {
				return fmt.Errorf("update product %s: %w", r.ProductCode, err)
			}
		}
		if len(w.observations) > 0 {
			if err := tx.Omit(clause.Associations).Create(&w.observations).Error; err != nil {
				return fmt.Errorf("insert observations: %w", err)
			}
		}
		return nil
	})
	elapsed := time.Since(start)
	touched := w.touchedCodes()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch rolled back")
		for _, code := range touched {
			w.cache.Remove(code)
		}
		w.failed++
		w.recorder.BatchFailed(ctx, size, elapsed)
		w.logger.Error("Batch commit failed, batch discarded",
			zap.Int("batch_size", size),
			zap.Strings("product_codes", touched),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		w.reset()
		w.state = StateFailedRolledBack
		return fmt.Errorf("%w: %w", ErrBatchFailed, err)
	}

	for _, r := range w.pending {
		w.cache.Add(r.ProductCode, r)
	}
	w.committed++
	w.recorder.BatchCommitted(ctx, size, elapsed)
	w.logger.Info("Batch committed",
		zap.Int("batch_size", size),
		zap.Int("new_products", len(w.inserts)),
		zap.Int("updated_products", len(w.updates)),
		zap.Duration("elapsed", elapsed),
	)
	w.reset()
	w.state = StateIdle
	return nil
}

// touchedCodes returns the sorted product codes of the open batch.
func (w *BatchWriter) touchedCodes() []string {
	out := make([]string, 0, len(w.touched))
	for code := range w.touched {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

func (w *BatchWriter) reset() {
	w.pending = make(map[string]*listing.ProductRecord)
	w.touched = make(map[string]struct{})
	w.inserts = nil
	w.updates = nil
	w.observations = nil
}
