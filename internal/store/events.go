package store

import (
	"context"
	"encoding/json"
	"log"

	"github.com/playmatatu/fruitmerge/internal/game"
	"github.com/redis/go-redis/v9"
)

// EventsChannel carries session lifecycle pushes between server instances.
const EventsChannel = "game_events"

// Event is the payload published on EventsChannel.
type Event struct {
	SessionID string    `json:"session_id"`
	Push      game.Push `json:"push"`
}

// RedisEvents publishes pushes on EventsChannel.
type RedisEvents struct {
	rdb *redis.Client
}

func NewRedisEvents(rdb *redis.Client) *RedisEvents {
	return &RedisEvents{rdb: rdb}
}

func (e *RedisEvents) Publish(sessionID string, push game.Push) {
	b, err := json.Marshal(Event{SessionID: sessionID, Push: push})
	if err != nil {
		log.Printf("[REDIS] Failed to marshal %s event for session %s: %v", push.Type, sessionID, err)
		return
	}
	if n, err := e.rdb.Publish(context.Background(), EventsChannel, b).Result(); err != nil {
		log.Printf("[REDIS] Publish %s failed: session=%s err=%v", push.Type, sessionID, err)
	} else {
		log.Printf("[REDIS] Published %s: session=%s subscribers=%d", push.Type, sessionID, n)
	}
}
