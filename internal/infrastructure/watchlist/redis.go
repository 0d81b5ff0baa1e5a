package watchlist

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dealtracker/backend/internal/application/alert"
	"github.com/dealtracker/backend/internal/infrastructure/config"
)

// DefaultRedisKey is the set holding watched codes when none is configured.
const DefaultRedisKey = "dealtracker:watchlist"

// RedisStore keeps the watchlist in a Redis set so several ingest workers
// and the API share it.
type RedisStore struct {
	client *redis.Client
	key    string
}

var _ alert.EditableWatchlist = (*RedisStore)(nil)

// NewRedisClient connects to Redis and checks the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisStore returns a store on the set named key.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// Load returns the watched codes sorted.
func (s *RedisStore) Load(ctx context.Context) ([]string, error) {
	codes, err := s.client.SMembers(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("load watchlist %s: %w", s.key, err)
	}
	sort.Strings(codes)
	return codes, nil
}

// Add puts code in the set.
func (s *RedisStore) Add(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return errors.New("watchlist: empty product code")
	}
	if err := s.client.SAdd(ctx, s.key, code).Err(); err != nil {
		return fmt.Errorf("add to watchlist: %w", err)
	}
	return nil
}

// Remove takes code out of the set.
func (s *RedisStore) Remove(ctx context.Context, code string) (bool, error) {
	n, err := s.client.SRem(ctx, s.key, strings.TrimSpace(code)).Result()
	if err != nil {
		return false, fmt.Errorf("remove from watchlist: %w", err)
	}
	return n > 0, nil
}
