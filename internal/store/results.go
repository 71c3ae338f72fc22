package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/playmatatu/fruitmerge/internal/game"
	"github.com/playmatatu/fruitmerge/internal/models"
)

// PostgresResults records finished games in game_results.
type PostgresResults struct {
	db *sqlx.DB
}

func NewPostgresResults(db *sqlx.DB) *PostgresResults {
	return &PostgresResults{db: db}
}

func (r *PostgresResults) RecordResult(ctx context.Context, res game.GameResult) error {
	tally := make([]int64, len(res.Tally))
	for i, n := range res.Tally {
		tally[i] = int64(n)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO game_results (session_id, player_name, score, tally, merges, drops, new_high_score, started_at, ended_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	`, res.SessionID, res.PlayerName, res.Score, pq.Array(tally), res.Merges, res.Drops, res.NewHighScore, res.StartedAt, res.EndedAt)
	return err
}

// Leaderboard returns the best results, highest score first.
func (r *PostgresResults) Leaderboard(ctx context.Context, limit int) ([]models.GameResult, error) {
	var rows []models.GameResult
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, session_id, player_name, score, tally, merges, drops, new_high_score, started_at, ended_at, created_at
		FROM game_results
		ORDER BY score DESC, ended_at ASC
		LIMIT $1
	`, limit)
	return rows, err
}

// MemoryResults keeps results in process memory.
type MemoryResults struct {
	mu     sync.Mutex
	rows   []models.GameResult
	nextID int
}

func NewMemoryResults() *MemoryResults {
	return &MemoryResults{nextID: 1}
}

func (r *MemoryResults) RecordResult(_ context.Context, res game.GameResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tally := make(pq.Int64Array, len(res.Tally))
	for i, n := range res.Tally {
		tally[i] = int64(n)
	}
	r.rows = append(r.rows, models.GameResult{
		ID:           r.nextID,
		SessionID:    res.SessionID,
		PlayerName:   res.PlayerName,
		Score:        res.Score,
		Tally:        tally,
		Merges:       res.Merges,
		Drops:        res.Drops,
		NewHighScore: res.NewHighScore,
		StartedAt:    res.StartedAt,
		EndedAt:      res.EndedAt,
		CreatedAt:    time.Now(),
	})
	r.nextID++
	return nil
}

func (r *MemoryResults) Leaderboard(_ context.Context, limit int) ([]models.GameResult, error) {
	r.mu.Lock()
	out := make([]models.GameResult, len(r.rows))
	copy(out, r.rows)
	r.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].EndedAt.Before(out[j].EndedAt)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
