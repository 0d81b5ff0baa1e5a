package watchlist

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dealtracker/backend/internal/application/alert"
	"github.com/dealtracker/backend/internal/infrastructure/config"
)

// Open builds the store selected by watchlist.source. The returned close
// function releases the Redis connection, if any.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (alert.EditableWatchlist, func() error, error) {
	switch cfg.Watchlist.Source {
	case "redis":
		client, err := NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using Redis watchlist",
			zap.String("addr", cfg.Redis.Addr()),
			zap.String("key", cfg.Watchlist.RedisKey),
		)
		return NewRedisStore(client, cfg.Watchlist.RedisKey), client.Close, nil
	case "file", "":
		logger.Info("Using file watchlist", zap.String("path", cfg.Watchlist.Path))
		return NewFileStore(cfg.Watchlist.Path), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown watchlist source %q", cfg.Watchlist.Source)
	}
}
