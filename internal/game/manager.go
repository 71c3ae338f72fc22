package game

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"sync"
	"time"
)

// ErrSessionNotFound is returned for unknown or ended session IDs.
var ErrSessionNotFound = errors.New("session not found")

// ActivityTracker schedules idle expiry for sessions.
type ActivityTracker interface {
	Touch(ctx context.Context, sessionID string, deadline time.Time) error
	// Expired removes and returns every session whose deadline is not after now.
	Expired(ctx context.Context, now time.Time) ([]string, error)
	Forget(ctx context.Context, sessionID string) error
}

// ManagerConfig holds the settings shared by every session.
type ManagerConfig struct {
	Catalog     *Catalog
	Rules       Rules
	Session     SessionOptions
	IdleTimeout time.Duration
}

// SessionManager owns the live sessions.
type SessionManager struct {
	cfg      ManagerConfig
	deps     SessionDeps
	activity ActivityTracker

	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewSessionManager creates a manager. activity may be nil to disable idle expiry.
func NewSessionManager(cfg ManagerConfig, deps SessionDeps, activity ActivityTracker) *SessionManager {
	if cfg.Catalog == nil {
		cfg.Catalog = DefaultCatalog()
	}
	return &SessionManager{
		cfg:      cfg,
		deps:     deps,
		activity: activity,
		sessions: make(map[string]*Session),
	}
}

// generateToken generates a secure random token
func generateToken(length int) string {
	bytes := make([]byte, length)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// CreateSession starts a new session in the Menu phase.
func (sm *SessionManager) CreateSession(ctx context.Context, playerName string) (*Session, error) {
	id := "sess_" + generateToken(8)
	s, err := NewSession(id, playerName, sm.cfg.Catalog, sm.cfg.Rules, sm.cfg.Session, sm.deps)
	if err != nil {
		return nil, err
	}

	sm.mu.Lock()
	sm.sessions[id] = s
	sm.mu.Unlock()

	go s.Run()
	sm.touch(ctx, id)

	log.Printf("[GAME] Created session %s for %q", id, playerName)
	return s, nil
}

// GetSession looks up a live session.
func (sm *SessionManager) GetSession(id string) (*Session, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	s, ok := sm.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// HandleInput forwards a player action and refreshes the idle deadline.
func (sm *SessionManager) HandleInput(ctx context.Context, id string, in Input) error {
	s, err := sm.GetSession(id)
	if err != nil {
		return err
	}
	if err := s.HandleInput(in); err != nil {
		return err
	}
	sm.touch(ctx, id)
	return nil
}

// Touch refreshes the idle deadline of a session.
func (sm *SessionManager) Touch(ctx context.Context, id string) {
	sm.touch(ctx, id)
}

func (sm *SessionManager) touch(ctx context.Context, id string) {
	if sm.activity == nil || sm.cfg.IdleTimeout <= 0 {
		return
	}
	if err := sm.activity.Touch(ctx, id, time.Now().Add(sm.cfg.IdleTimeout)); err != nil {
		log.Printf("[IDLE] Failed to refresh session %s: %v", id, err)
	}
}

// EndSession stops a session and tells its clients why.
func (sm *SessionManager) EndSession(ctx context.Context, id, reason string) error {
	sm.mu.Lock()
	s, ok := sm.sessions[id]
	if ok {
		delete(sm.sessions, id)
	}
	sm.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.Stop()
	if sm.activity != nil {
		if err := sm.activity.Forget(ctx, id); err != nil {
			log.Printf("[IDLE] Failed to forget session %s: %v", id, err)
		}
	}
	if sm.deps.Publisher != nil {
		sm.deps.Publisher.Publish(id, Push{Type: "session_ended", Data: map[string]string{"reason": reason}})
	}

	log.Printf("[GAME] Ended session %s (%s)", id, reason)
	return nil
}

// Shutdown stops every session.
func (sm *SessionManager) Shutdown(ctx context.Context) {
	sm.mu.RLock()
	ids := make([]string, 0, len(sm.sessions))
	for id := range sm.sessions {
		ids = append(ids, id)
	}
	sm.mu.RUnlock()

	for _, id := range ids {
		sm.EndSession(ctx, id, "shutdown")
	}
}

// ActiveCount returns the number of live sessions.
func (sm *SessionManager) ActiveCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

func (sm *SessionManager) Catalog() *Catalog { return sm.cfg.Catalog }
func (sm *SessionManager) Rules() Rules      { return sm.cfg.Rules }

// Snapshots returns the snapshot store, which may be nil.
func (sm *SessionManager) Snapshots() SnapshotStore { return sm.deps.Snapshots }
