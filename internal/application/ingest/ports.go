package ingest

import (
	"context"
	"errors"

	"github.com/dealtracker/backend/internal/domain/listing"
)

// ErrBatchFailed wraps every commit failure reported by a Writer. The batch
// it refers to was rolled back and discarded.
var ErrBatchFailed = errors.New("batch commit failed")

// Writer buffers resolved listings and commits them in all-or-nothing
// batches. It is also the RecordLookup for the resolver, so records staged
// in the open batch are visible before they are committed.
type Writer interface {
	RecordLookup
	// Stage buffers one observation plus the record write the resolution
	// calls for. It commits when the buffer is full and returns an error
	// wrapping ErrBatchFailed if that commit fails.
	Stage(ctx context.Context, res listing.Resolution, obs *listing.PriceObservation) error
	// Close flushes the partial batch and releases the store.
	Close(ctx context.Context) error
	// Batches reports how many batches were committed and how many failed.
	Batches() (committed, failed int)
}

// MismatchLog receives an entry for every product code whose monitored specs
// drifted.
type MismatchLog interface {
	Append(ctx context.Context, entry listing.MismatchLogEntry) error
}

// Metrics records pipeline counters.
type Metrics interface {
	ListingAccepted(ctx context.Context)
	ListingDropped(ctx context.Context, reason string)
	ProductCreated(ctx context.Context)
	DriftDetected(ctx context.Context, fields int)
	AlertFired(ctx context.Context)
}

type nopMetrics struct{}

func (nopMetrics) ListingAccepted(context.Context)        {}
func (nopMetrics) ListingDropped(context.Context, string) {}
func (nopMetrics) ProductCreated(context.Context)         {}
func (nopMetrics) DriftDetected(context.Context, int)     {}
func (nopMetrics) AlertFired(context.Context)             {}
