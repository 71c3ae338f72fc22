package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/playmatatu/fruitmerge/internal/game"
)

// GetGameConfig returns the playfield rules and fruit catalog clients need to render.
func GetGameConfig(sm *game.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		rules := sm.Rules()
		c.JSON(http.StatusOK, gin.H{
			"field_width":       rules.FieldWidth,
			"field_height":      rules.FieldHeight,
			"wall_pad":          rules.WallPad,
			"status_bar_height": rules.StatusBarHeight,
			"loss_line":         rules.LossLine,
			"drop_y":            rules.DropY,
			"drop_min_tier":     rules.DropMinTier,
			"drop_max_tier":     rules.DropMaxTier,
			"drop_cooldown_ms":  rules.DropCooldown.Milliseconds(),
			"pop_lifetime_ms":   rules.PopLifetime.Milliseconds(),
			"key_step":          rules.KeyStep,
			"catalog":           sm.Catalog().Tiers(),
		})
	}
}
