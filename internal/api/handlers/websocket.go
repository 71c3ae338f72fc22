package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/playmatatu/fruitmerge/internal/game"
	"github.com/playmatatu/fruitmerge/internal/ws"
)

// HandleSessionWebSocket handles real-time game communication. It runs
// behind SessionAuthMiddleware.
func HandleSessionWebSocket(sm *game.SessionManager, hub *ws.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws.ServeSession(hub, sm, c.Param("id"), c)
	}
}
