package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/playmatatu/fruitmerge/internal/game"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origins are checked by middleware.WebSocketCORSCheck
	},
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	maxMessage = 65536
)

// WSMessage is an inbound client message.
type WSMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type pointerData struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type keyData struct {
	Key string `json:"key"`
}

// Client represents a connected WebSocket client
type Client struct {
	hub       *Hub
	sessions  *game.SessionManager
	conn      *websocket.Conn
	sessionID string
	send      chan []byte
}

// ServeSession upgrades the request and attaches the connection to a session.
func ServeSession(hub *Hub, sessions *game.SessionManager, sessionID string, c *gin.Context) {
	s, err := sessions.GetSession(sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] Upgrade error: %v", err)
		return
	}

	client := &Client{
		hub:       hub,
		sessions:  sessions,
		conn:      conn,
		sessionID: s.ID,
		send:      make(chan []byte, 256),
	}
	if !hub.Register(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
	client.sendState(s)
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel; best-effort close frame.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WS] Write error for session %s: %v", c.sessionID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[WS] Ping error for session %s: %v", c.sessionID, err)
				return
			}
		}
	}
}

// readPump decodes player input until the connection drops.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.quit:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] Unexpected close for session %s: %v", c.sessionID, err)
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.sendError("invalid message")
			continue
		}
		c.handleMessage(msg)
	}
}

// handleMessage turns a client message into a state machine input.
func (c *Client) handleMessage(msg WSMessage) {
	var in game.Input
	switch msg.Type {
	case "press", "move", "release":
		var p pointerData
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &p); err != nil {
				c.sendError("invalid pointer data")
				return
			}
		}
		in = game.Input{Kind: game.InputKind(msg.Type), X: p.X, Y: p.Y}

	case "key":
		var k keyData
		if err := json.Unmarshal(msg.Data, &k); err != nil {
			c.sendError("invalid key data")
			return
		}
		in = game.Input{Kind: game.InputKey, Key: k.Key}

	case "restart":
		in = game.Input{Kind: game.InputRestart}

	case "get_state":
		s, err := c.sessions.GetSession(c.sessionID)
		if err != nil {
			c.sendError("session not found")
			return
		}
		c.sendState(s)
		return

	case "ping":
		c.sessions.Touch(context.Background(), c.sessionID)
		return

	default:
		c.sendError("unknown message type")
		return
	}

	if err := c.sessions.HandleInput(context.Background(), c.sessionID, in); err != nil {
		if errors.Is(err, game.ErrSessionNotFound) || errors.Is(err, game.ErrSessionClosed) {
			c.sendError("session ended")
			return
		}
		c.sendError(err.Error())
	}
}

func (c *Client) sendState(s *game.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	state, err := s.State(ctx)
	if err != nil {
		c.sendError("state unavailable")
		return
	}
	c.enqueue(game.Push{Type: "state", Data: state})
}

// sendError sends an error message to the client
func (c *Client) sendError(message string) {
	c.enqueue(map[string]interface{}{
		"type":    "error",
		"message": message,
	})
}

func (c *Client) enqueue(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[WS] Error marshaling message: %v", err)
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.rooms[c.sessionID][c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("[WS] Send buffer full for session %s, dropping message", c.sessionID)
	}
}
