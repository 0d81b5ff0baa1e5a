package source

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dealtracker/backend/internal/domain/listing"
)

// Resolve turns configured source paths into sources. "-" is stdin and
// s3:// URLs need a client; a nil client makes them an error.
func Resolve(paths []string, stdin io.Reader, client ObjectGetter) ([]Source, error) {
	sources := make([]Source, 0, len(paths))
	for _, p := range paths {
		switch {
		case p == StdinName:
			sources = append(sources, Reader{Label: "stdin", R: stdin})
		case strings.HasPrefix(p, "s3://"):
			if client == nil {
				return nil, fmt.Errorf("source %s: object storage is not configured", p)
			}
			bucket, key, err := ParseS3URL(p)
			if err != nil {
				return nil, err
			}
			sources = append(sources, Object{Client: client, Bucket: bucket, Key: key})
		default:
			sources = append(sources, File{Path: p})
		}
	}
	return sources, nil
}

// Producer feeds listings from several sources into one queue, one
// goroutine per source.
type Producer struct {
	decoder *Decoder
	logger  *zap.Logger

	mu    sync.Mutex
	stats map[string]DecodeStats
}

// NewProducer creates a Producer.
func NewProducer(logger *zap.Logger) *Producer {
	logger = logger.Named("source")
	return &Producer{
		decoder: NewDecoder(logger),
		logger:  logger,
		stats:   make(map[string]DecodeStats),
	}
}

// Feed reads every source concurrently into out and closes out when all
// are done. The first source failure cancels the others and is returned.
// Listings from one source keep their order; sources interleave.
func (p *Producer) Feed(ctx context.Context, sources []Source, out chan<- listing.RawListing) error {
	defer close(out)

	g, ctx := errgroup.WithContext(ctx)
	for _, src := range sources {
		g.Go(func() error {
			return p.feedOne(ctx, src, out)
		})
	}
	return g.Wait()
}

func (p *Producer) feedOne(ctx context.Context, src Source, out chan<- listing.RawListing) error {
	rc, err := src.Open(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()

	stats, err := p.decoder.Decode(ctx, src.Name(), rc, func(item listing.RawListing) error {
		select {
		case out <- item:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	p.mu.Lock()
	p.stats[src.Name()] = stats
	p.mu.Unlock()

	if err != nil {
		return fmt.Errorf("source %s: %w", src.Name(), err)
	}
	p.logger.Info("Source exhausted",
		zap.String("source", src.Name()),
		zap.Int("listings", stats.Listings),
		zap.Int("skipped", stats.Skipped),
	)
	return nil
}

// Stats returns the per-source counts gathered so far.
func (p *Producer) Stats() map[string]DecodeStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]DecodeStats, len(p.stats))
	for k, v := range p.stats {
		out[k] = v
	}
	return out
}
