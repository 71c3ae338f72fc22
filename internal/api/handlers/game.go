package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/playmatatu/fruitmerge/internal/config"
	"github.com/playmatatu/fruitmerge/internal/game"
)

// CreateSession starts a new game session and returns its token.
func CreateSession(sm *game.SessionManager, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			PlayerName string `json:"player_name"`
		}
		// An empty body is allowed.
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
		}

		s, err := sm.CreateSession(c.Request.Context(), sanitizeName(req.PlayerName))
		if err != nil {
			log.Printf("[GAME] Failed to create session: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
			return
		}

		token, exp, err := IssueSessionToken(cfg, s.ID)
		if err != nil {
			log.Printf("[GAME] Failed to sign token for session %s: %v", s.ID, err)
			sm.EndSession(c.Request.Context(), s.ID, "token error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.Header("X-Session-ID", s.ID)
		c.JSON(http.StatusCreated, gin.H{
			"session_id":  s.ID,
			"player_name": s.PlayerName,
			"token":       token,
			"expires_at":  exp.Format(time.RFC3339),
			"ws_path":     "/api/v1/sessions/" + s.ID + "/ws",
		})
	}
}

// GetSession returns the live state of a session, or its last snapshot once it has ended.
func GetSession(sm *game.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		if s, err := sm.GetSession(id); err == nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			state, err := s.State(ctx)
			if err == nil {
				c.JSON(http.StatusOK, gin.H{"live": true, "state": state})
				return
			}
			if !errors.Is(err, game.ErrSessionClosed) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session busy"})
				return
			}
		}

		if snaps := sm.Snapshots(); snaps != nil {
			snap, err := snaps.LoadSnapshot(c.Request.Context(), id)
			if err == nil {
				c.JSON(http.StatusOK, gin.H{"live": false, "snapshot": snap})
				return
			}
			if !errors.Is(err, game.ErrSessionNotFound) {
				log.Printf("[REDIS] Failed to load snapshot for %s: %v", id, err)
			}
		}

		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	}
}

var validInputs = map[game.InputKind]bool{
	game.InputPress:   true,
	game.InputMove:    true,
	game.InputRelease: true,
	game.InputKey:     true,
	game.InputRestart: true,
}

// SendInput queues a player action for clients without a websocket.
func SendInput(sm *game.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in game.Input
		if err := c.ShouldBindJSON(&in); err != nil || !validInputs[in.Kind] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
			return
		}

		if err := sm.HandleInput(c.Request.Context(), c.Param("id"), in); err != nil {
			if errors.Is(err, game.ErrSessionNotFound) || errors.Is(err, game.ErrSessionClosed) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"accepted": true})
	}
}

// EndSession stops the caller's session.
func EndSession(sm *game.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := sm.EndSession(c.Request.Context(), c.Param("id"), "player quit"); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
