package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const idleSetKey = "session_idle"

// RedisActivity keeps idle deadlines in a sorted set scored by unix time.
type RedisActivity struct {
	rdb *redis.Client
}

func NewRedisActivity(rdb *redis.Client) *RedisActivity {
	return &RedisActivity{rdb: rdb}
}

func (a *RedisActivity) Touch(ctx context.Context, sessionID string, deadline time.Time) error {
	return a.rdb.ZAdd(ctx, idleSetKey, redis.Z{Score: float64(deadline.Unix()), Member: sessionID}).Err()
}

// Expired claims due members with ZREM so that only one worker ends each session.
func (a *RedisActivity) Expired(ctx context.Context, now time.Time) ([]string, error) {
	members, err := a.rdb.ZRangeByScore(ctx, idleSetKey, &redis.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%d", now.Unix())}).Result()
	if err != nil {
		return nil, err
	}
	var claimed []string
	for _, m := range members {
		if removed, _ := a.rdb.ZRem(ctx, idleSetKey, m).Result(); removed > 0 {
			claimed = append(claimed, m)
		}
	}
	return claimed, nil
}

func (a *RedisActivity) Forget(ctx context.Context, sessionID string) error {
	return a.rdb.ZRem(ctx, idleSetKey, sessionID).Err()
}

// MemoryActivity is the in-process tracker used without Redis.
type MemoryActivity struct {
	mu        sync.Mutex
	deadlines map[string]time.Time
}

func NewMemoryActivity() *MemoryActivity {
	return &MemoryActivity{deadlines: make(map[string]time.Time)}
}

func (a *MemoryActivity) Touch(_ context.Context, sessionID string, deadline time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deadlines[sessionID] = deadline
	return nil
}

func (a *MemoryActivity) Expired(_ context.Context, now time.Time) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for id, d := range a.deadlines {
		if !d.After(now) {
			out = append(out, id)
			delete(a.deadlines, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (a *MemoryActivity) Forget(_ context.Context, sessionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.deadlines, sessionID)
	return nil
}
