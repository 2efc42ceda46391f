//go:build integration

package journal

import (
	"context"
	"os"
	"testing"
	"time"

	"example.com/robo-sync/internal/events"
	"example.com/robo-sync/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, rdb.Ping(ctx).Err(), "redis is not reachable")
	return rdb
}

func TestRedis_EventsAndSnapshot(t *testing.T) {
	ctx := context.Background()
	rdb := newRedisClient(t)
	require.NoError(t, rdb.FlushDB(ctx).Err())

	j := NewRedis(rdb, time.Hour)
	defer j.Close()

	require.NoError(t, j.Append(ctx, "g1", events.PlayerExecuted{GameID: "g1", Username: "alice"}))
	require.NoError(t, j.Append(ctx, "g1", events.CheckpointReached{GameID: "g1", Username: "alice", CheckpointNumber: 2}))

	got, err := j.Entries(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	e, err := got[1].Event()
	require.NoError(t, err)
	require.Equal(t, events.CheckpointReached{GameID: "g1", Username: "alice", CheckpointNumber: 2}, e)

	ttl, err := rdb.TTL(ctx, "game:g1:events").Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))

	_, ok, err := j.LoadSnapshot(ctx, "g1")
	require.NoError(t, err)
	require.False(t, ok)

	rev := 2
	require.NoError(t, j.SaveSnapshot(ctx, "g1", model.Snapshot{GameID: "g1", HostUsername: "alice", RevealedRegister: &rev}))
	snap, ok, err := j.LoadSnapshot(ctx, "g1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "alice", snap.HostUsername)
	require.Equal(t, 2, *snap.RevealedRegister)
}
