package sink

import (
	"context"
	"encoding/json"
	"testing"

	"wisefido-vitaldrift/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStreamSink_Emit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewStreamSink(client, "vital:drift:stream", 1000, zap.NewNop())
	ctx := context.Background()
	require.NoError(t, s.Emit(ctx, firedResult()))
	require.NoError(t, s.Emit(ctx, normalResult()))

	msgs, err := client.XRange(ctx, "vital:drift:stream", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	var got models.CycleResult
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &got))
	assert.Equal(t, "84F7035346E0", got.DeviceID)
	assert.True(t, got.AlertFired)
	assert.Equal(t, 3, got.HeartRate.Streak)
	assert.NotEmpty(t, msgs[0].Values["timestamp"])
}

func TestStreamSink_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	s := NewStreamSink(client, "vital:drift:stream", 0, zap.NewNop())
	assert.Error(t, s.Emit(context.Background(), firedResult()))
}
