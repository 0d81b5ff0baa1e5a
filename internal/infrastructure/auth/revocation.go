package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationList invalidates operator tokens before they expire. Entries
// are keyed by token id and only need to live as long as the token.
type RevocationList interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// DefaultRevocationPrefix prefixes revocation keys in Redis.
const DefaultRevocationPrefix = "dealtracker:token:revoked:"

// RedisRevocationList shares revocations between API instances.
type RedisRevocationList struct {
	client    *redis.Client
	keyPrefix string
}

var _ RevocationList = (*RedisRevocationList)(nil)

// NewRedisRevocationList returns a revocation list on an existing client.
func NewRedisRevocationList(client *redis.Client) *RedisRevocationList {
	return &RedisRevocationList{client: client, keyPrefix: DefaultRevocationPrefix}
}

// Revoke stores jti until ttl elapses.
func (l *RedisRevocationList) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := l.client.Set(ctx, l.keyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether jti has been revoked.
func (l *RedisRevocationList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := l.client.Exists(ctx, l.keyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return n > 0, nil
}

// MemoryRevocationList keeps revocations in process. It is used when Redis
// is not configured and by tests; revocations do not survive a restart.
type MemoryRevocationList struct {
	mu      sync.Mutex
	entries map[string]time.Time // jti -> expiry
	now     func() time.Time
}

var _ RevocationList = (*MemoryRevocationList)(nil)

// NewMemoryRevocationList creates an empty in-process list.
func NewMemoryRevocationList() *MemoryRevocationList {
	return &MemoryRevocationList{entries: make(map[string]time.Time), now: time.Now}
}

func (l *MemoryRevocationList) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[jti] = l.now().Add(ttl)
	return nil
}

func (l *MemoryRevocationList) IsRevoked(_ context.Context, jti string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	expiry, ok := l.entries[jti]
	if !ok {
		return false, nil
	}
	if l.now().After(expiry) {
		delete(l.entries, jti)
		return false, nil
	}
	return true, nil
}
