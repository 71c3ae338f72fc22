package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// RedisHighScores keeps each high score in a plain Redis string.
type RedisHighScores struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisHighScores(rdb *redis.Client) *RedisHighScores {
	return &RedisHighScores{rdb: rdb, prefix: "fruitmerge:"}
}

// setIfGreater only writes when the new score beats the stored one, so two
// sessions losing at once cannot lower the record.
var setIfGreater = redis.NewScript(`
local cur = tonumber(redis.call("GET", KEYS[1]) or "0")
local val = tonumber(ARGV[1])
if val > cur then
	redis.call("SET", KEYS[1], val)
	return 1
end
return 0
`)

func (s *RedisHighScores) HighScore(ctx context.Context, key string) (int, error) {
	val, err := s.rdb.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	score, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("corrupt high score %q: %w", val, err)
	}
	return score, nil
}

func (s *RedisHighScores) SetHighScore(ctx context.Context, key string, score int) (bool, error) {
	n, err := setIfGreater.Run(ctx, s.rdb, []string{s.prefix + key}, score).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *RedisHighScores) ResetHighScore(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.prefix+key).Err()
}

// PostgresHighScores keeps high scores in the high_scores table.
type PostgresHighScores struct {
	db *sqlx.DB
}

func NewPostgresHighScores(db *sqlx.DB) *PostgresHighScores {
	return &PostgresHighScores{db: db}
}

func (s *PostgresHighScores) HighScore(ctx context.Context, key string) (int, error) {
	var score int
	err := s.db.GetContext(ctx, &score, `SELECT COALESCE(MAX(score), 0) FROM high_scores WHERE key=$1`, key)
	return score, err
}

func (s *PostgresHighScores) SetHighScore(ctx context.Context, key string, score int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO high_scores (key, score, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET
			score = EXCLUDED.score,
			updated_at = NOW()
		WHERE high_scores.score < EXCLUDED.score
	`, key, score)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *PostgresHighScores) ResetHighScore(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM high_scores WHERE key=$1`, key)
	return err
}

// MemoryHighScores is a process-local store for development and tests.
type MemoryHighScores struct {
	mu     sync.Mutex
	scores map[string]int
}

func NewMemoryHighScores() *MemoryHighScores {
	return &MemoryHighScores{scores: make(map[string]int)}
}

func (s *MemoryHighScores) HighScore(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scores[key], nil
}

func (s *MemoryHighScores) SetHighScore(_ context.Context, key string, score int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if score <= s.scores[key] {
		return false, nil
	}
	s.scores[key] = score
	return true, nil
}

func (s *MemoryHighScores) ResetHighScore(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scores, key)
	return nil
}
