package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/playmatatu/fruitmerge/internal/game"
	"github.com/redis/go-redis/v9"
)

const snapshotTTL = time.Hour

// RedisSnapshots caches the last state of each session for an hour.
type RedisSnapshots struct {
	rdb *redis.Client
}

func NewRedisSnapshots(rdb *redis.Client) *RedisSnapshots {
	return &RedisSnapshots{rdb: rdb}
}

func snapshotKey(sessionID string) string {
	return "session:" + sessionID + ":state"
}

func (s *RedisSnapshots) SaveSnapshot(ctx context.Context, sessionID string, snap game.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.rdb.SetEx(ctx, snapshotKey(sessionID), data, snapshotTTL).Err()
}

func (s *RedisSnapshots) LoadSnapshot(ctx context.Context, sessionID string) (game.Snapshot, error) {
	var snap game.Snapshot
	data, err := s.rdb.Get(ctx, snapshotKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return snap, game.ErrSessionNotFound
	}
	if err != nil {
		return snap, err
	}
	err = json.Unmarshal(data, &snap)
	return snap, err
}
