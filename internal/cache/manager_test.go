package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) *Manager {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	m, err := NewManager(Config{Addr: mr.Addr(), DefaultTTL: time.Minute}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	return m
}

func TestNewManager_ConnectionFailure(t *testing.T) {
	_, err := NewManager(Config{Addr: "127.0.0.1:1"}, zap.NewNop())
	assert.Error(t, err)
}

func TestManager_SetAndGet(t *testing.T) {
	m := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", "v", time.Minute))

	val, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)
}

func TestManager_GetMiss(t *testing.T) {
	m := setupTestRedis(t)

	_, err := m.Get(context.Background(), "absent")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_JSONRoundTrip(t *testing.T) {
	m := setupTestRedis(t)
	ctx := context.Background()

	type model struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	in := []model{{ID: "openai/gpt-5-mini", Name: "GPT-5 Mini"}}

	require.NoError(t, m.SetJSON(ctx, "models", in, 0))

	var out []model
	require.NoError(t, m.GetJSON(ctx, "models", &out))
	assert.Equal(t, in, out)
}

func TestManager_Delete(t *testing.T) {
	m := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, m.Delete(ctx, "k"))

	_, err := m.Get(ctx, "k")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_CloseIdempotent(t *testing.T) {
	m := setupTestRedis(t)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}
