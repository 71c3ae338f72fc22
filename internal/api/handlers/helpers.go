package handlers

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
)

const maxPlayerName = 32

// sanitizeName keeps printable characters and trims the name to maxPlayerName runes.
func sanitizeName(name string) string {
	var b strings.Builder
	n := 0
	for _, r := range strings.TrimSpace(name) {
		if !unicode.IsPrint(r) {
			continue
		}
		if n == maxPlayerName {
			break
		}
		b.WriteRune(r)
		n++
	}
	if b.Len() == 0 {
		return "player"
	}
	return b.String()
}

// queryInt parses a query parameter, clamping it to [min, max].
func queryInt(c *gin.Context, key string, def, min, max int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
