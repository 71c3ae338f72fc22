package api

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playmatatu/fruitmerge/internal/api/handlers"
	"github.com/playmatatu/fruitmerge/internal/config"
	"github.com/playmatatu/fruitmerge/internal/game"
	"github.com/playmatatu/fruitmerge/internal/middleware"
	"github.com/playmatatu/fruitmerge/internal/ws"
)

// HighScores is the high-score store as the routes see it.
type HighScores interface {
	handlers.HighScoreReader
	handlers.HighScoreResetter
}

// Deps carries everything the routes need. DB may be nil when Postgres is not configured.
type Deps struct {
	DB         *sqlx.DB
	Config     *config.Config
	Sessions   *game.SessionManager
	Hub        *ws.Hub
	HighScores HighScores
	Results    handlers.LeaderboardReader
}

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, d Deps) {
	cfg := d.Config
	router.Use(middleware.CORSMiddleware(cfg))

	if cfg.Environment != "production" {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
		log.Println("[DEV MODE] No-cache headers enabled for all routes")
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck(d.Sessions))
		v1.GET("/config", handlers.GetGameConfig(d.Sessions))
		v1.GET("/highscore", handlers.GetHighScore(d.HighScores, cfg.HighScoreKey))
		v1.GET("/leaderboard", handlers.GetLeaderboard(d.Results))

		sessions := v1.Group("/sessions")
		{
			sessions.POST("", handlers.CreateSession(d.Sessions, cfg))
			sessions.GET("/:id", handlers.GetSession(d.Sessions))

			authed := sessions.Group("/:id", handlers.SessionAuthMiddleware(cfg))
			authed.POST("/input", handlers.SendInput(d.Sessions))
			authed.DELETE("", handlers.EndSession(d.Sessions))
			authed.GET("/ws", middleware.WebSocketCORSCheck(cfg), handlers.HandleSessionWebSocket(d.Sessions, d.Hub))
		}

		adminGroup := v1.Group("/admin")
		{
			adminGroup.POST("/login", handlers.AdminLogin(d.DB, cfg))

			protected := adminGroup.Group("", handlers.AdminAuthMiddleware(cfg))
			protected.GET("/me", handlers.AdminMe())
			protected.GET("/stats", handlers.AdminStats(d.Sessions))
			protected.GET("/audit", handlers.GetAdminAuditLogs(d.DB))
			protected.POST("/highscore/reset", handlers.AdminResetHighScore(d.DB, d.HighScores, cfg.HighScoreKey))
			protected.DELETE("/sessions/:id", handlers.AdminEndSession(d.DB, d.Sessions))
		}
	}
}
