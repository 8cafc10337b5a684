package datafeed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start redis container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return endpoint
}

func TestRedisCache_GetSet(t *testing.T) {
	addr := setupRedis(t)
	ctx := context.Background()

	cache, err := NewRedisCache(ctx, RedisCacheConfig{Addr: addr, TTL: time.Minute})
	require.NoError(t, err)
	defer cache.Close()

	_, ok, err := cache.Get(ctx, "orats:SPY:202303010930")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "orats:SPY:202303010930", []byte(chainCSV)))

	data, ok, err := cache.Get(ctx, "orats:SPY:202303010930")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, chainCSV, string(data))
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisCache(ctx, RedisCacheConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
