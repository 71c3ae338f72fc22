package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/playmatatu/fruitmerge/internal/game"
)

// Hub tracks connected clients, one room per session.
type Hub struct {
	rooms      map[string]map[*Client]struct{} // sessionID -> clients
	unregister chan *Client
	quit       chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a new Hub. Call Run to start it.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]struct{}),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
	}
}

// Register adds a client to its session's room. The client is in the room
// when Register returns, so pushes sent right after reach it. It returns
// false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	h.mu.Lock()
	select {
	case <-h.quit:
		h.mu.Unlock()
		return false
	default:
	}
	room, ok := h.rooms[client.sessionID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[client.sessionID] = room
	}
	room[client] = struct{}{}
	size := len(room)
	h.mu.Unlock()

	log.Printf("[WS] Client connected to session %s (room_size=%d)", client.sessionID, size)
	return true
}

// Run processes unregistrations until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			return

		case client := <-h.unregister:
			h.mu.Lock()
			if room, ok := h.rooms[client.sessionID]; ok {
				if _, ok := room[client]; ok {
					delete(room, client)
					close(client.send)
					if len(room) == 0 {
						delete(h.rooms, client.sessionID)
					}
					log.Printf("[WS] Client disconnected from session %s", client.sessionID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop ends Run.
func (h *Hub) Stop() {
	close(h.quit)
}

// Publish sends a push to every client of a session.
func (h *Hub) Publish(sessionID string, push game.Push) {
	h.BroadcastToSession(sessionID, push)
}

// BroadcastToSession sends a message to all clients watching a session
func (h *Hub) BroadcastToSession(sessionID string, message interface{}) {
	h.mu.RLock()
	room, exists := h.rooms[sessionID]
	if !exists || len(room) == 0 {
		h.mu.RUnlock()
		return
	}
	h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("[WS] Error marshaling message for session %s: %v", sessionID, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[sessionID] {
		select {
		case client.send <- data:
		default:
			// Client's buffer is full
			log.Printf("[WS] Send buffer full for session %s, dropping message", sessionID)
		}
	}
}

// RoomSize returns the number of clients watching a session.
func (h *Hub) RoomSize(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}
