package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvDefaults(t *testing.T) {
	cfg, err := LoadEnv()
	require.NoError(t, err)

	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Equal(t, 0, cfg.DB)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Equal(t, 3*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 3*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 10, cfg.PoolSize)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CACHEGUARD_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("CACHEGUARD_REDIS_PASSWORD", "s3cret")
	t.Setenv("CACHEGUARD_REDIS_DB", "3")
	t.Setenv("CACHEGUARD_REDIS_DIAL_TIMEOUT", "1s")
	t.Setenv("CACHEGUARD_REDIS_POOL_SIZE", "32")

	cfg, err := LoadEnv()
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6380", cfg.Addr)
	assert.Equal(t, "s3cret", cfg.Password)
	assert.Equal(t, 3, cfg.DB)
	assert.Equal(t, time.Second, cfg.DialTimeout)
	assert.Equal(t, 32, cfg.PoolSize)
}

func TestNewRequiresClient(t *testing.T) {
	_, err := New(Config{})
	require.ErrorIs(t, err, ErrNilClient)
}
