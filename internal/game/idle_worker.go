package game

import (
	"context"
	"errors"
	"log"
	"time"
)

// StartIdleWorker starts a background worker that ends sessions whose idle
// deadline has passed. notify, when set, receives a session_expired push
// for every reaped session.
func StartIdleWorker(ctx context.Context, sm *SessionManager, activity ActivityTracker, interval time.Duration, notify Publisher) {
	if sm == nil || activity == nil {
		log.Println("[IDLE] Session manager or activity tracker missing; idle worker not started")
		return
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}

	log.Println("[IDLE] Idle worker started")
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Println("[IDLE] Idle worker stopping")
				return
			case now := <-ticker.C:
				reapIdle(ctx, sm, activity, now, notify)
			}
		}
	}()
}

// reapIdle ends every expired session and returns how many it ended.
func reapIdle(ctx context.Context, sm *SessionManager, activity ActivityTracker, now time.Time, notify Publisher) int {
	ids, err := activity.Expired(ctx, now)
	if err != nil {
		log.Printf("[IDLE] Failed to fetch expired sessions: %v", err)
		return 0
	}

	ended := 0
	for _, id := range ids {
		if err := sm.EndSession(ctx, id, "idle"); err != nil {
			if !errors.Is(err, ErrSessionNotFound) {
				log.Printf("[IDLE] Failed to end session %s: %v", id, err)
			}
			continue
		}
		ended++
		log.Printf("[IDLE] Session %s expired after inactivity", id)
		if notify != nil {
			notify.Publish(id, Push{Type: "session_expired", Data: map[string]any{
				"session_id": id,
				"expired_at": now.Format(time.RFC3339),
			}})
		}
	}
	return ended
}
