package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/playmatatu/fruitmerge/internal/models"
)

// HighScoreReader reads a stored high score.
type HighScoreReader interface {
	HighScore(ctx context.Context, key string) (int, error)
}

// HighScoreResetter clears a stored high score.
type HighScoreResetter interface {
	ResetHighScore(ctx context.Context, key string) error
}

// LeaderboardReader lists the best recorded games.
type LeaderboardReader interface {
	Leaderboard(ctx context.Context, limit int) ([]models.GameResult, error)
}

// GetHighScore returns the stored record.
func GetHighScore(store HighScoreReader, key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		score, err := store.HighScore(c.Request.Context(), key)
		if err != nil {
			log.Printf("[GAME] Failed to read high score %s: %v", key, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read high score"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"key": key, "high_score": score})
	}
}

// GetLeaderboard returns the top results.
func GetLeaderboard(results LeaderboardReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := queryInt(c, "limit", 10, 1, 100)
		rows, err := results.Leaderboard(c.Request.Context(), limit)
		if err != nil {
			log.Printf("[DB] Failed to load leaderboard: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load leaderboard"})
			return
		}
		if rows == nil {
			rows = []models.GameResult{}
		}
		c.JSON(http.StatusOK, gin.H{"results": rows, "limit": limit})
	}
}
