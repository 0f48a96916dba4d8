package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoes-labs/pharmsearch/internal/config"
	"github.com/dkoes-labs/pharmsearch/internal/infrastructure/monitoring/logging"
)

func TestNewClient_Success(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := config.RedisConfig{Addr: mr.Addr()}
	log := logging.NewNopLogger()

	client, err := NewClient(cfg, log)
	require.NoError(t, err)
	assert.NotNil(t, client)

	assert.NoError(t, client.Ping(context.Background()))
	client.Close()
}

func TestNewClient_ConnectionFailed(t *testing.T) {
	cfg := config.RedisConfig{Addr: "localhost:1"}
	client, err := NewClient(cfg, logging.NewNopLogger())
	assert.ErrorIs(t, err, ErrConnectionFailed)
	assert.Nil(t, client)
}

func TestApplyDefaults_AllZeroValues(t *testing.T) {
	cfg := &config.RedisConfig{}
	applyDefaults(cfg)
	assert.Greater(t, cfg.PoolSize, 0)
	assert.Equal(t, 2, cfg.MinIdleConns)
	assert.Equal(t, 3*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 10*time.Minute, cfg.DefaultTTL)
}

func TestApplyDefaults_PartialConfig(t *testing.T) {
	cfg := &config.RedisConfig{MinIdleConns: 10}
	applyDefaults(cfg)
	assert.Equal(t, 10, cfg.MinIdleConns)
	assert.Equal(t, 3*time.Second, cfg.ReadTimeout)
}

func TestClient_Operations(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := NewClient(config.RedisConfig{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "key", "value", 0).Err())

	val, err := client.Get(ctx, "key").Result()
	require.NoError(t, err)
	assert.Equal(t, "value", val)

	require.NoError(t, client.Del(ctx, "key").Err())

	err = client.Get(ctx, "key").Err()
	assert.Equal(t, redis.Nil, err)

	client.Set(ctx, "k2", "v2", 0)
	exists, err := client.Exists(ctx, "k2").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
}

func TestClient_Close(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := NewClient(config.RedisConfig{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)

	require.NoError(t, client.Close())

	err = client.Get(context.Background(), "key").Err()
	assert.Equal(t, ErrClientClosed, err)

	assert.NoError(t, client.Close())
}
