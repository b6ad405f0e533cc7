// internal/workers/infrastructure/rate-limit-check/handler_test.go
package ratelimitcheck

import (
	"context"
	"testing"
	"time"

	"lendmarket-workers/internal/common/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestConfig() *Config {
	return &Config{
		Timeout:           5 * time.Second,
		RequestsPerWindow: 3,
		Window:            time.Minute,
	}
}

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()}), mr
}

func TestHandler_Execute_AllowsUnderLimit(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	handler := NewHandler(createTestConfig(), rdb, logger.NewTestLogger(t))

	for i := 1; i <= 3; i++ {
		output, err := handler.Execute(context.Background(), &Input{ClientID: "client-1"})
		require.NoError(t, err)
		assert.True(t, output.Allowed)
		assert.Equal(t, int64(i), output.Count)
	}
}

func TestHandler_Execute_BlocksOverLimit(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	handler := NewHandler(createTestConfig(), rdb, logger.NewTestLogger(t))

	for i := 0; i < 3; i++ {
		_, err := handler.Execute(context.Background(), &Input{ClientID: "client-1"})
		require.NoError(t, err)
	}

	output, err := handler.Execute(context.Background(), &Input{ClientID: "client-1"})

	require.NoError(t, err)
	assert.False(t, output.Allowed)
	assert.Equal(t, int64(4), output.Count)
	assert.Greater(t, output.RetryAfter, int64(0))
}

func TestHandler_Execute_WindowResets(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	handler := NewHandler(createTestConfig(), rdb, logger.NewTestLogger(t))

	for i := 0; i < 4; i++ {
		_, err := handler.Execute(context.Background(), &Input{ClientID: "client-1"})
		require.NoError(t, err)
	}

	mr.FastForward(time.Minute + time.Second)

	output, err := handler.Execute(context.Background(), &Input{ClientID: "client-1"})

	require.NoError(t, err)
	assert.True(t, output.Allowed)
	assert.Equal(t, int64(1), output.Count)
}

func TestHandler_Execute_ClientsCountedSeparately(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	handler := NewHandler(createTestConfig(), rdb, logger.NewTestLogger(t))

	for i := 0; i < 3; i++ {
		_, err := handler.Execute(context.Background(), &Input{ClientID: "client-a"})
		require.NoError(t, err)
	}

	output, err := handler.Execute(context.Background(), &Input{ClientID: "client-b"})

	require.NoError(t, err)
	assert.True(t, output.Allowed)
	assert.Equal(t, int64(1), output.Count)
}

func TestHandler_Execute_InlineLimitOverride(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	handler := NewHandler(createTestConfig(), rdb, logger.NewTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{ClientID: "client-1", Limit: 1})
	require.NoError(t, err)

	output, err := handler.Execute(context.Background(), &Input{ClientID: "client-1", Limit: 1})

	require.NoError(t, err)
	assert.False(t, output.Allowed)
}

func TestHandler_Execute_MissingClientID(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	handler := NewHandler(createTestConfig(), rdb, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{})

	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Nil(t, output)
}
