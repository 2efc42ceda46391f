package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"example.com/robo-sync/internal/events"
	"example.com/robo-sync/internal/model"
	"github.com/redis/go-redis/v9"
)

// Redis stores the journal as a list per game plus a snapshot key. Both
// expire ttl after the last write.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl}
}

func (r *Redis) eventsKey(gameID string) string {
	return fmt.Sprintf("game:%s:events", gameID)
}

func (r *Redis) snapshotKey(gameID string) string {
	return fmt.Sprintf("game:%s:snapshot", gameID)
}

func (r *Redis) Append(ctx context.Context, gameID string, e events.Event) error {
	en, err := newEntry(e)
	if err != nil {
		return err
	}
	b, err := json.Marshal(en)
	if err != nil {
		return err
	}
	key := r.eventsKey(gameID)
	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key, b)
		if r.ttl > 0 {
			p.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("journal %s: %w", e.Kind(), err)
	}
	return nil
}

func (r *Redis) SaveSnapshot(ctx context.Context, gameID string, s model.Snapshot) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.snapshotKey(gameID), b, r.ttl).Err()
}

func (r *Redis) LoadSnapshot(ctx context.Context, gameID string) (model.Snapshot, bool, error) {
	val, err := r.rdb.Get(ctx, r.snapshotKey(gameID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Snapshot{}, false, nil
	}
	if err != nil {
		return model.Snapshot{}, false, err
	}

	var s model.Snapshot
	if err := json.Unmarshal(val, &s); err != nil {
		return model.Snapshot{}, false, fmt.Errorf("decode snapshot %s: %w", gameID, err)
	}
	return s, true, nil
}

func (r *Redis) Entries(ctx context.Context, gameID string) ([]Entry, error) {
	vals, err := r.rdb.LRange(ctx, r.eventsKey(gameID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(vals))
	for _, v := range vals {
		var en Entry
		if err := json.Unmarshal([]byte(v), &en); err != nil {
			return nil, fmt.Errorf("decode journal entry: %w", err)
		}
		out = append(out, en)
	}
	return out, nil
}

// Ping checks the connection once at startup.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Redis) Close() error { return r.rdb.Close() }
