package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/playmatatu/fruitmerge/internal/config"
)

const (
	tokenKindSession = "session"
	tokenKindAdmin   = "admin"
)

var errInvalidToken = errors.New("invalid token")

func issueToken(secret string, claims jwt.MapClaims, ttl time.Duration) (string, time.Time, error) {
	exp := time.Now().Add(ttl)
	claims["exp"] = exp.Unix()
	claims["iat"] = time.Now().Unix()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	return signed, exp, err
}

func parseToken(secret, token, kind string) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return nil, errInvalidToken
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || claims["kind"] != kind {
		return nil, errInvalidToken
	}
	return claims, nil
}

// IssueSessionToken signs a token that lets its bearer drive one session.
func IssueSessionToken(cfg *config.Config, sessionID string) (string, time.Time, error) {
	ttl := time.Duration(cfg.SessionTokenTTLMin) * time.Minute
	return issueToken(cfg.JWTSecret, jwt.MapClaims{"kind": tokenKindSession, "session_id": sessionID}, ttl)
}

// IssueAdminToken signs an admin token for username.
func IssueAdminToken(cfg *config.Config, username string) (string, time.Time, error) {
	ttl := time.Duration(cfg.AdminTokenTTLMinutes) * time.Minute
	return issueToken(cfg.JWTSecret, jwt.MapClaims{"kind": tokenKindAdmin, "username": username}, ttl)
}

// requestToken reads a bearer token, falling back to ?token= for websocket clients.
func requestToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return c.Query("token")
}

// SessionAuthMiddleware requires a session token matching the :id route parameter.
func SessionAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := requestToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, err := parseToken(cfg.JWTSecret, token, tokenKindSession)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		sessionID, _ := claims["session_id"].(string)
		if sessionID == "" || sessionID != c.Param("id") {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "token does not match session"})
			return
		}
		c.Set("session_id", sessionID)
		c.Next()
	}
}

// AdminAuthMiddleware validates a bearer admin token and sets admin_username.
func AdminAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		claims, err := parseToken(cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer "), tokenKindAdmin)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
			return
		}
		username, _ := claims["username"].(string)
		c.Set("admin_username", username)
		c.Next()
	}
}
