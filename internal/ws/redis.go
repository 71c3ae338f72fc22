package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/playmatatu/fruitmerge/internal/store"
	"github.com/redis/go-redis/v9"
)

// StartEventSubscriber relays game_events published by any server instance
// to the clients connected to this one.
func StartEventSubscriber(ctx context.Context, rdb *redis.Client, hub *Hub) {
	if rdb == nil {
		log.Println("[WS] Redis client not set; event subscriber not started")
		return
	}

	pubsub := rdb.Subscribe(ctx, store.EventsChannel)
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		log.Printf("[WS] %s subscriber started", store.EventsChannel)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				relayEvent(hub, msg.Payload)
			}
		}
	}()
}

func relayEvent(hub *Hub, payload string) {
	var ev store.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		log.Printf("[WS] invalid event payload: %v", err)
		return
	}
	if ev.SessionID == "" || ev.Push.Type == "" {
		log.Printf("[WS] event missing session or type: %s", payload)
		return
	}
	if hub.RoomSize(ev.SessionID) == 0 {
		return
	}
	log.Printf("[WS] relaying %s to session %s", ev.Push.Type, ev.SessionID)
	hub.Publish(ev.SessionID, ev.Push)
}
