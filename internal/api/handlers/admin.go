package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playmatatu/fruitmerge/internal/admin"
	"github.com/playmatatu/fruitmerge/internal/config"
	"github.com/playmatatu/fruitmerge/internal/game"
)

// AdminLogin exchanges username + token for a signed admin token.
func AdminLogin(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Admin accounts unavailable"})
			return
		}

		var req struct {
			Username string `json:"username" binding:"required"`
			Token    string `json:"token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		username := strings.TrimSpace(req.Username)

		account, err := admin.ValidateAdminCredentials(db, username, strings.TrimSpace(req.Token))
		if err != nil {
			log.Printf("[ADMIN] Login failed for %s: %v", username, err)
			admin.LogAdminAction(db, username, c.ClientIP(), "/api/v1/admin/login", "login", nil, false)
			status := http.StatusUnauthorized
			if !errors.Is(err, admin.ErrInvalidCredentials) {
				status = http.StatusInternalServerError
			}
			c.JSON(status, gin.H{"error": "Invalid credentials"})
			return
		}
		if !admin.IPAllowed(account, c.ClientIP()) {
			admin.LogAdminAction(db, username, c.ClientIP(), "/api/v1/admin/login", "login_ip_denied", nil, false)
			c.JSON(http.StatusForbidden, gin.H{"error": "IP not allowed"})
			return
		}

		token, exp, err := IssueAdminToken(cfg, account.Username)
		if err != nil {
			log.Printf("[ADMIN] Failed to sign token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
			return
		}

		admin.LogAdminAction(db, username, c.ClientIP(), "/api/v1/admin/login", "login", nil, true)
		c.JSON(http.StatusOK, gin.H{
			"token":        token,
			"expires_at":   exp.Format(time.RFC3339),
			"display_name": account.DisplayName,
			"roles":        account.Roles,
		})
	}
}

// AdminMe returns the current admin session info
func AdminMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"username": c.GetString("admin_username")})
	}
}

// AdminResetHighScore clears the stored record.
func AdminResetHighScore(db *sqlx.DB, store HighScoreResetter, defaultKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetString("admin_username")
		var req struct {
			Key string `json:"key"`
		}
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
		}
		key := req.Key
		if key == "" {
			key = defaultKey
		}

		if err := store.ResetHighScore(c.Request.Context(), key); err != nil {
			log.Printf("[ADMIN] Failed to reset high score %s: %v", key, err)
			admin.LogAdminAction(db, username, c.ClientIP(), "/api/v1/admin/highscore/reset", "reset_highscore", map[string]interface{}{"key": key}, false)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset high score"})
			return
		}

		log.Printf("[ADMIN] %s reset high score %s", username, key)
		admin.LogAdminAction(db, username, c.ClientIP(), "/api/v1/admin/highscore/reset", "reset_highscore", map[string]interface{}{"key": key}, true)
		c.JSON(http.StatusOK, gin.H{"ok": true, "key": key})
	}
}

// AdminEndSession force-ends a live session.
func AdminEndSession(db *sqlx.DB, sm *game.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetString("admin_username")
		id := c.Param("id")

		if err := sm.EndSession(c.Request.Context(), id, "ended by admin"); err != nil {
			admin.LogAdminAction(db, username, c.ClientIP(), "/api/v1/admin/sessions/:id", "end_session", map[string]interface{}{"session_id": id}, false)
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}

		admin.LogAdminAction(db, username, c.ClientIP(), "/api/v1/admin/sessions/:id", "end_session", map[string]interface{}{"session_id": id}, true)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// AdminStats reports live server figures.
func AdminStats(sm *game.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"active_sessions": sm.ActiveCount(),
			"uptime":          time.Since(startTime).String(),
		})
	}
}

// GetAdminAuditLogs returns paginated admin audit logs
func GetAdminAuditLogs(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Audit log unavailable"})
			return
		}
		limit := queryInt(c, "limit", 50, 1, 200)
		offset := queryInt(c, "offset", 0, 0, 1<<30)

		logs, err := admin.GetAdminAuditLogs(db, limit, offset)
		if err != nil {
			log.Printf("[ADMIN] Failed to fetch audit logs: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch audit logs"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"logs": logs, "limit": limit, "offset": offset})
	}
}
