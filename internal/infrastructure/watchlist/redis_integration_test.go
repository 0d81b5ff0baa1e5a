//go:build integration

package watchlist

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dealtracker/backend/internal/infrastructure/config"
)

func newRedisConfig(t *testing.T) config.RedisConfig {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return config.RedisConfig{Host: host, Port: port.Int()}
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	client, err := NewRedisClient(ctx, newRedisConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client, "")

	codes, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, codes)

	require.NoError(t, store.Add(ctx, "222"))
	require.NoError(t, store.Add(ctx, "111"))
	require.NoError(t, store.Add(ctx, "111"))

	codes, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"111", "222"}, codes)

	removed, err := store.Remove(ctx, "222")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.Remove(ctx, "222")
	require.NoError(t, err)
	assert.False(t, removed)
}
