package game

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/playmatatu/fruitmerge/internal/physics"
)

// ErrSessionClosed is returned when a request reaches a stopped session.
var ErrSessionClosed = errors.New("session closed")

// Push is a message delivered to every client watching a session.
type Push struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Publisher delivers pushes to the clients of a session.
type Publisher interface {
	Publish(sessionID string, push Push)
}

// SnapshotStore keeps the last known state of a session.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, sessionID string, snap Snapshot) error
	LoadSnapshot(ctx context.Context, sessionID string) (Snapshot, error)
}

// GameResult is the record of one finished game.
type GameResult struct {
	SessionID    string    `db:"session_id" json:"session_id"`
	PlayerName   string    `db:"player_name" json:"player_name"`
	Score        int       `db:"score" json:"score"`
	Tally        []int     `db:"-" json:"tally"`
	Merges       int       `db:"merges" json:"merges"`
	Drops        int       `db:"drops" json:"drops"`
	NewHighScore bool      `db:"new_high_score" json:"new_high_score"`
	StartedAt    time.Time `db:"started_at" json:"started_at"`
	EndedAt      time.Time `db:"ended_at" json:"ended_at"`
}

// ResultRecorder persists finished games.
type ResultRecorder interface {
	RecordResult(ctx context.Context, res GameResult) error
}

// InputKind names a player action.
type InputKind string

const (
	InputPress   InputKind = "press"
	InputMove    InputKind = "move"
	InputRelease InputKind = "release"
	InputKey     InputKind = "key"
	InputRestart InputKind = "restart"
)

// Keys accepted by InputKey.
const (
	KeyLeft  = "left"
	KeyRight = "right"
	KeyDrop  = "drop"
)

// Input is one player action in playfield coordinates.
type Input struct {
	Kind InputKind `json:"kind"`
	X    float64   `json:"x"`
	Y    float64   `json:"y"`
	Key  string    `json:"key,omitempty"`
}

// BodyView is the render data for one body.
type BodyView struct {
	ID     int     `json:"id"`
	Label  string  `json:"label"`
	Tier   int     `json:"tier"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// StateView is what clients render.
type StateView struct {
	Snapshot
	Tick   int        `json:"tick"`
	Bodies []BodyView `json:"bodies"`
}

// SessionDeps are the outside collaborators of a session. Nil members are skipped.
type SessionDeps struct {
	HighScores   HighScoreStore
	HighScoreKey string
	Snapshots    SnapshotStore
	Results      ResultRecorder
	Publisher    Publisher
}

// SessionOptions configure the run loop.
type SessionOptions struct {
	TickHz      int
	BroadcastHz int
	Gravity     float64
}

// Session owns one player's physics world and state machine. All access to
// them happens on the goroutine started by Run.
type Session struct {
	ID         string
	PlayerName string
	CreatedAt  time.Time

	inbox    chan func()
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc

	space          *physics.Space
	machine        *Machine
	deps           SessionDeps
	tickHz         int
	broadcastEvery int
	tick           int
}

// NewSession builds a session in the Menu phase. Call Run to start it.
func NewSession(id, playerName string, catalog *Catalog, rules Rules, opts SessionOptions, deps SessionDeps) (*Session, error) {
	if opts.TickHz <= 0 {
		opts.TickHz = 60
	}
	broadcastEvery := 1
	if opts.BroadcastHz > 0 && opts.BroadcastHz < opts.TickHz {
		broadcastEvery = opts.TickHz / opts.BroadcastHz
	}
	gravity := opts.Gravity
	if gravity == 0 {
		gravity = Gravity
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:             id,
		PlayerName:     playerName,
		CreatedAt:      time.Now(),
		inbox:          make(chan func(), 256),
		quit:           make(chan struct{}),
		done:           make(chan struct{}),
		ctx:            ctx,
		cancel:         cancel,
		space:          physics.NewSpace(physics.NewVec2(0, gravity)),
		deps:           deps,
		tickHz:         opts.TickHz,
		broadcastEvery: broadcastEvery,
	}

	m, err := NewMachine(MachineConfig{
		ID:           id,
		Catalog:      catalog,
		Rules:        rules,
		World:        s.space,
		Clock:        loopClock{post: s.post},
		HighScores:   deps.HighScores,
		HighScoreKey: deps.HighScoreKey,
	})
	if err != nil {
		cancel()
		return nil, err
	}
	s.machine = m
	return s, nil
}

// Run drives the session until Stop is called.
func (s *Session) Run() {
	defer close(s.done)

	ticker := time.NewTicker(time.Second / time.Duration(s.tickHz))
	defer ticker.Stop()
	dt := 1.0 / float64(s.tickHz)

	s.broadcast()
	for {
		select {
		case <-s.quit:
			return
		case f := <-s.inbox:
			f()
			s.flush()
		case <-ticker.C:
			s.step(dt)
		}
	}
}

// Stop ends the run loop and waits for it to exit.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
		s.cancel()
	})
	<-s.done
}

// post queues f for the session goroutine. It reports false once stopped.
func (s *Session) post(f func()) bool {
	select {
	case <-s.quit:
		return false
	default:
	}
	select {
	case s.inbox <- f:
		return true
	case <-s.quit:
		return false
	}
}

// HandleInput queues a player action.
func (s *Session) HandleInput(in Input) error {
	if !s.post(func() { s.apply(in) }) {
		return ErrSessionClosed
	}
	return nil
}

// State returns the current view, computed on the session goroutine.
func (s *Session) State(ctx context.Context) (StateView, error) {
	reply := make(chan StateView, 1)
	if !s.post(func() { reply <- s.view() }) {
		return StateView{}, ErrSessionClosed
	}
	select {
	case v := <-reply:
		return v, nil
	case <-s.done:
		return StateView{}, ErrSessionClosed
	case <-ctx.Done():
		return StateView{}, ctx.Err()
	}
}

func (s *Session) apply(in Input) {
	m := s.machine
	switch in.Kind {
	case InputPress:
		m.Press(s.space.BodyAt(physics.NewVec2(in.X, in.Y)))
	case InputMove:
		m.MovePointer(in.X)
	case InputRelease:
		m.MovePointer(in.X)
		m.Release()
	case InputKey:
		switch in.Key {
		case KeyLeft:
			m.Nudge(-m.Rules().KeyStep)
		case KeyRight:
			m.Nudge(m.Rules().KeyStep)
		case KeyDrop:
			m.Release()
		}
	case InputRestart:
		m.Restart()
	default:
		log.Printf("[GAME] session %s: unknown input kind %q", s.ID, in.Kind)
	}
}

func (s *Session) step(dt float64) {
	s.tick++
	pairs := s.space.Step(dt)
	s.machine.HandleCollisions(s.ctx, pairs)
	s.flush()
	if s.tick%s.broadcastEvery == 0 {
		s.broadcast()
	}
}

// flush publishes queued machine events and runs their side effects.
func (s *Session) flush() {
	events := s.machine.DrainEvents()
	if len(events) == 0 {
		return
	}

	for _, e := range events {
		s.publish(Push{Type: string(e.Type), Data: e})
		if e.Type == EventLost {
			s.recordResult()
		}
	}
	s.saveSnapshot()
}

func (s *Session) recordResult() {
	if s.deps.Results == nil {
		return
	}
	snap := s.machine.Snapshot()
	res := GameResult{
		SessionID:  s.ID,
		PlayerName: s.PlayerName,
		Score:      snap.Score,
		Tally:      snap.Tally,
		Merges:     snap.Merges,
		Drops:      snap.Drops,
		StartedAt:  s.CreatedAt,
		EndedAt:    time.Now(),
	}
	if snap.StartedAt != nil {
		res.StartedAt = *snap.StartedAt
	}
	if snap.EndedAt != nil {
		res.EndedAt = *snap.EndedAt
	}
	if snap.Outcome != nil {
		res.NewHighScore = snap.Outcome.NewHighScore
	}
	if err := s.deps.Results.RecordResult(s.ctx, res); err != nil {
		log.Printf("[DB] session %s: failed to record result: %v", s.ID, err)
	}
}

func (s *Session) saveSnapshot() {
	if s.deps.Snapshots == nil {
		return
	}
	if err := s.deps.Snapshots.SaveSnapshot(s.ctx, s.ID, s.machine.Snapshot()); err != nil {
		log.Printf("[REDIS] session %s: failed to save snapshot: %v", s.ID, err)
	}
}

func (s *Session) broadcast() {
	s.publish(Push{Type: "state", Data: s.view()})
}

func (s *Session) publish(p Push) {
	if s.deps.Publisher != nil {
		s.deps.Publisher.Publish(s.ID, p)
	}
}

func (s *Session) view() StateView {
	bodies := s.space.Bodies()
	v := StateView{
		Snapshot: s.machine.Snapshot(),
		Tick:     s.tick,
		Bodies:   make([]BodyView, 0, len(bodies)),
	}
	for _, b := range bodies {
		bv := BodyView{ID: b.ID, Label: b.Label, Tier: b.Tag, X: b.Position.X, Y: b.Position.Y}
		if b.Shape == physics.ShapeCircle {
			bv.Radius = b.Radius
		} else {
			bv.Width = b.HalfWidth * 2
			bv.Height = b.HalfHeight * 2
		}
		v.Bodies = append(v.Bodies, bv)
	}
	return v
}
