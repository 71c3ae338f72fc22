package game

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/playmatatu/fruitmerge/internal/physics"
)

// World is the body container owned by the physics engine.
type World interface {
	Add(bodies ...*physics.Body)
	Remove(bodies ...*physics.Body)
	Contains(b *physics.Body) bool
	Clear()
}

// Rules are the tunable parameters of one game.
type Rules struct {
	FieldWidth      float64       `json:"field_width"`
	FieldHeight     float64       `json:"field_height"`
	WallPad         float64       `json:"wall_pad"`
	StatusBarHeight float64       `json:"status_bar_height"`
	LossLine        float64       `json:"loss_line"`
	DropY           float64       `json:"drop_y"`
	DropMinTier     int           `json:"drop_min_tier"`
	DropMaxTier     int           `json:"drop_max_tier"`
	DropCooldown    time.Duration `json:"drop_cooldown"`
	PopLifetime     time.Duration `json:"pop_lifetime"`
	LossGrace       time.Duration `json:"loss_grace"`
	KeyStep         float64       `json:"key_step"`
}

func DefaultRules() Rules {
	return Rules{
		FieldWidth:      FieldWidth,
		FieldHeight:     FieldHeight,
		WallPad:         WallPad,
		StatusBarHeight: StatusBarHeight,
		LossLine:        LossLine,
		DropY:           DropY,
		DropMinTier:     DefaultDropMinTier,
		DropMaxTier:     DefaultDropMaxTier,
		DropCooldown:    DropCooldown,
		PopLifetime:     PopLifetime,
		LossGrace:       LossGrace,
		KeyStep:         KeyStep,
	}
}

// Validate checks the rules against a catalog.
func (r Rules) Validate(c *Catalog) error {
	if r.FieldWidth <= 0 || r.FieldHeight <= 0 {
		return fmt.Errorf("playfield %.0fx%.0f must be positive", r.FieldWidth, r.FieldHeight)
	}
	if r.DropMinTier < 0 || r.DropMaxTier < r.DropMinTier || r.DropMaxTier >= c.Len() {
		return fmt.Errorf("drop tier range %d..%d outside catalog of %d tiers", r.DropMinTier, r.DropMaxTier, c.Len())
	}
	if 2*c.Radius(r.DropMaxTier) > r.FieldWidth {
		return fmt.Errorf("tier %d is wider than the playfield", r.DropMaxTier)
	}
	if r.DropCooldown < 0 || r.PopLifetime < 0 || r.LossGrace < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

// EventType names something that happened inside a Machine.
type EventType string

const (
	EventStarted   EventType = "game_started"
	EventDropped   EventType = "fruit_dropped"
	EventReady     EventType = "ready"
	EventMerged    EventType = "fruit_merged"
	EventSunk      EventType = "terminal_merged"
	EventLost      EventType = "game_over"
	EventRestarted EventType = "game_restarted"
)

// Event is queued by the machine for the session to publish.
type Event struct {
	Type     EventType         `json:"type"`
	Tier     int               `json:"tier"`
	Into     int               `json:"into,omitempty"`
	Position physics.Vec2      `json:"position"`
	Score    int               `json:"score"`
	Outcome  *HighScoreOutcome `json:"outcome,omitempty"`
}

// Snapshot is a read-only view of a machine.
type Snapshot struct {
	SessionID   string            `json:"session_id"`
	Phase       Phase             `json:"phase"`
	CurrentTier int               `json:"current_tier"`
	NextTier    int               `json:"next_tier"`
	Score       int               `json:"score"`
	Tally       []int             `json:"tally"`
	PointerX    float64           `json:"pointer_x"`
	Drops       int               `json:"drops"`
	Merges      int               `json:"merges"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	EndedAt     *time.Time        `json:"ended_at,omitempty"`
	Outcome     *HighScoreOutcome `json:"outcome,omitempty"`
}

// MachineConfig wires a Machine to its collaborators.
type MachineConfig struct {
	ID           string
	Catalog      *Catalog
	Rules        Rules
	World        World
	Clock        Clock
	Rand         *rand.Rand
	HighScores   HighScoreStore
	HighScoreKey string
}

// Machine is the merge-game state machine. It is not safe for concurrent
// use: every method and every timer callback must run on one goroutine.
type Machine struct {
	id           string
	catalog      *Catalog
	rules        Rules
	world        World
	clock        Clock
	rng          *rand.Rand
	scorer       *Scorer
	highScores   HighScoreStore
	highScoreKey string

	phase       Phase
	current     int
	next        int
	pointerX    float64
	preview     *physics.Body
	startButton *physics.Body
	walls       []*physics.Body
	pops        map[*physics.Body]struct{}
	fresh       map[*physics.Body]time.Time

	generation  uint64
	nextTimerID uint64
	timers      map[uint64]Timer

	drops     int
	startedAt *time.Time
	endedAt   *time.Time
	outcome   *HighScoreOutcome
	events    []Event
}

// NewMachine builds a machine in the Menu phase and puts the start control
// into the world.
func NewMachine(cfg MachineConfig) (*Machine, error) {
	if cfg.Catalog == nil || cfg.World == nil || cfg.Clock == nil {
		return nil, fmt.Errorf("machine needs a catalog, a world and a clock")
	}
	if err := cfg.Rules.Validate(cfg.Catalog); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	}
	key := cfg.HighScoreKey
	if key == "" {
		key = "highscore"
	}

	m := &Machine{
		id:           cfg.ID,
		catalog:      cfg.Catalog,
		rules:        cfg.Rules,
		world:        cfg.World,
		clock:        cfg.Clock,
		rng:          rng,
		scorer:       NewScorer(cfg.Catalog),
		highScores:   cfg.HighScores,
		highScoreKey: key,
		phase:        PhaseMenu,
		pointerX:     cfg.Rules.FieldWidth / 2,
		pops:         make(map[*physics.Body]struct{}),
		fresh:        make(map[*physics.Body]time.Time),
		timers:       make(map[uint64]Timer),
	}
	m.buildStatics()
	m.world.Add(m.startButton)
	return m, nil
}

func (m *Machine) buildStatics() {
	r := m.rules
	wall := physics.BodyOptions{Static: true, Label: LabelWall, Friction: FruitFriction, Restitution: FruitRestitution}

	m.startButton = physics.NewRectangle(r.FieldWidth/2, r.FieldHeight*0.75, StartButtonWidth, StartButtonHeight,
		physics.BodyOptions{Static: true, Label: LabelStartButton})
	m.walls = []*physics.Body{
		physics.NewRectangle(-r.WallPad/2, r.FieldHeight/2, r.WallPad, r.FieldHeight, wall),
		physics.NewRectangle(r.FieldWidth+r.WallPad/2, r.FieldHeight/2, r.WallPad, r.FieldHeight, wall),
		physics.NewRectangle(r.FieldWidth/2, r.FieldHeight+r.WallPad/2-r.StatusBarHeight, r.FieldWidth, r.WallPad, wall),
	}
}

// Press handles a click or tap on target. In the Menu phase a press on the
// start control starts the game; every other press is ignored.
func (m *Machine) Press(target *physics.Body) bool {
	if m.phase != PhaseMenu || target == nil || target != m.startButton {
		return false
	}

	m.world.Remove(m.startButton)
	m.world.Add(m.walls...)
	m.current = m.sampleTier()
	m.next = m.sampleTier()
	m.pointerX = m.rules.FieldWidth / 2
	now := m.clock.Now()
	m.startedAt = &now
	m.phase = PhaseReady
	m.spawnPreview()

	log.Printf("[GAME] session %s started (current=%d next=%d)", m.id, m.current, m.next)
	m.emit(Event{Type: EventStarted, Tier: m.current})
	return true
}

// MovePointer records the horizontal pointer position. The preview only
// follows it while Ready.
func (m *Machine) MovePointer(x float64) {
	if !m.phase.acceptsPlay() {
		return
	}
	m.pointerX = x
	if m.phase == PhaseReady && m.preview != nil {
		m.preview.Position.X = m.clampX(x, m.preview.Radius)
	}
}

// Nudge moves the pointer by dx from the current preview position.
func (m *Machine) Nudge(dx float64) {
	if !m.phase.acceptsPlay() {
		return
	}
	m.MovePointer(m.clampX(m.pointerX, m.catalog.Radius(m.current)) + dx)
}

// Release drops the current fruit. It is ignored outside Ready, which
// covers the cooldown after a previous drop.
func (m *Machine) Release() bool {
	if m.phase != PhaseReady {
		return false
	}

	tier := m.current
	x := m.clampX(m.pointerX, m.catalog.Radius(tier))
	if m.preview != nil {
		m.world.Remove(m.preview)
		m.preview = nil
	}
	fruit := m.newFruit(tier, physics.NewVec2(x, m.rules.DropY))
	m.world.Add(fruit)
	m.fresh[fruit] = m.clock.Now()

	m.current = m.next
	m.next = m.sampleTier()
	m.drops++
	m.phase = PhaseDrop

	m.emit(Event{Type: EventDropped, Tier: tier, Position: fruit.Position, Score: m.scorer.Score()})
	m.schedule(m.rules.DropCooldown, m.endCooldown)
	return true
}

func (m *Machine) endCooldown() {
	if m.phase != PhaseDrop {
		return
	}
	m.phase = PhaseReady
	m.spawnPreview()
	m.emit(Event{Type: EventReady, Tier: m.current})
}

// HandleCollisions processes one physics step's collision-start batch in
// delivery order. Removals made for one pair are visible to later pairs.
func (m *Machine) HandleCollisions(ctx context.Context, pairs []physics.Pair) {
	for _, p := range pairs {
		if !m.phase.acceptsPlay() {
			continue
		}
		m.handlePair(ctx, p)
	}
}

func (m *Machine) handlePair(ctx context.Context, p physics.Pair) {
	a, b := p.A, p.B
	if a == nil || b == nil || a.Static || b.Static {
		return
	}
	if a.Label != LabelFruit || b.Label != LabelFruit {
		return
	}
	// Consumed by an earlier pair in this batch.
	if !m.world.Contains(a) || !m.world.Contains(b) {
		return
	}

	if m.crossedLossLine(a) || m.crossedLossLine(b) {
		m.lose(ctx)
		return
	}

	if a.Tag != b.Tag {
		return
	}
	m.merge(a, b)
}

// crossedLossLine reports whether a settled fruit's top edge is above the loss line.
func (m *Machine) crossedLossLine(b *physics.Body) bool {
	if b.Top() >= m.rules.LossLine {
		return false
	}
	if at, ok := m.fresh[b]; ok {
		if m.clock.Now().Sub(at) < m.rules.LossGrace {
			return false
		}
		delete(m.fresh, b)
	}
	return true
}

func (m *Machine) merge(a, b *physics.Body) {
	tier := a.Tag
	radius := m.catalog.Radius(tier)
	mid := a.Position.Midpoint(b.Position)

	m.scorer.Credit(tier)
	m.world.Remove(a, b)
	delete(m.fresh, a)
	delete(m.fresh, b)

	if tier >= m.catalog.Terminal() {
		score := m.scorer.Recompute()
		log.Printf("[GAME] session %s terminal merge at tier %d (score=%d)", m.id, tier, score)
		m.emit(Event{Type: EventSunk, Tier: tier, Position: mid, Score: score})
		m.spawnPop(mid, radius)
		return
	}

	m.world.Add(m.newFruit(tier+1, mid))
	score := m.scorer.Recompute()
	m.emit(Event{Type: EventMerged, Tier: tier, Into: tier + 1, Position: mid, Score: score})
	m.spawnPop(mid, radius)
}

func (m *Machine) lose(ctx context.Context) {
	if m.phase == PhaseLose {
		return
	}
	m.phase = PhaseLose
	m.cancelTimers()
	if m.preview != nil {
		m.world.Remove(m.preview)
		m.preview = nil
	}

	final := m.scorer.Recompute()
	now := m.clock.Now()
	m.endedAt = &now

	if m.highScores != nil {
		out, err := CommitHighScore(ctx, m.highScores, m.highScoreKey, final)
		if err != nil {
			log.Printf("[GAME] session %s: high score not committed: %v", m.id, err)
		}
		m.outcome = &out
	}

	if m.outcome != nil && m.outcome.NewHighScore {
		log.Printf("[GAME] session %s lost with new high score %d (previous %d)", m.id, final, m.outcome.Previous)
	} else {
		log.Printf("[GAME] session %s lost with score %d", m.id, final)
	}
	m.emit(Event{Type: EventLost, Score: final, Outcome: m.outcome})
}

// Restart returns to the Menu, clearing the world, the tally and every
// pending timer. It is ignored while already in the Menu.
func (m *Machine) Restart() bool {
	if m.phase == PhaseMenu {
		return false
	}

	m.cancelTimers()
	m.world.Clear()
	m.scorer.Reset()
	m.preview = nil
	m.fresh = make(map[*physics.Body]time.Time)
	m.drops = 0
	m.startedAt = nil
	m.endedAt = nil
	m.outcome = nil
	m.pointerX = m.rules.FieldWidth / 2
	m.phase = PhaseMenu
	m.world.Add(m.startButton)

	log.Printf("[GAME] session %s restarted", m.id)
	m.emit(Event{Type: EventRestarted})
	return true
}

func (m *Machine) schedule(d time.Duration, f func()) {
	gen := m.generation
	id := m.nextTimerID
	m.nextTimerID++
	m.timers[id] = m.clock.AfterFunc(d, func() {
		delete(m.timers, id)
		if gen != m.generation {
			return
		}
		f()
	})
}

// cancelTimers invalidates every pending callback and removes live pops.
func (m *Machine) cancelTimers() {
	m.generation++
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
	for pop := range m.pops {
		m.world.Remove(pop)
		delete(m.pops, pop)
	}
}

func (m *Machine) newFruit(tier int, pos physics.Vec2) *physics.Body {
	return physics.NewCircle(pos.X, pos.Y, m.catalog.Radius(tier), physics.BodyOptions{
		Label:       LabelFruit,
		Tag:         tier,
		Restitution: FruitRestitution,
		Friction:    FruitFriction,
	})
}

func ghostFilter() *physics.Filter {
	return &physics.Filter{Category: physics.DefaultCategory, Mask: GhostMask}
}

func (m *Machine) spawnPreview() {
	r := m.catalog.Radius(m.current)
	m.preview = physics.NewCircle(m.clampX(m.pointerX, r), m.rules.DropY, r, physics.BodyOptions{
		Label:  LabelPreview,
		Static: true,
		Filter: ghostFilter(),
		Tag:    m.current,
	})
	m.world.Add(m.preview)
}

func (m *Machine) spawnPop(pos physics.Vec2, radius float64) {
	if m.rules.PopLifetime <= 0 {
		return
	}
	pop := physics.NewCircle(pos.X, pos.Y, radius, physics.BodyOptions{
		Label:  LabelPop,
		Static: true,
		Sensor: true,
		Filter: ghostFilter(),
	})
	m.world.Add(pop)
	m.pops[pop] = struct{}{}
	m.schedule(m.rules.PopLifetime, func() {
		m.world.Remove(pop)
		delete(m.pops, pop)
	})
}

func (m *Machine) clampX(x, radius float64) float64 {
	lo, hi := radius, m.rules.FieldWidth-radius
	if hi < lo {
		return m.rules.FieldWidth / 2
	}
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func (m *Machine) sampleTier() int {
	span := m.rules.DropMaxTier - m.rules.DropMinTier + 1
	return m.rules.DropMinTier + m.rng.IntN(span)
}

func (m *Machine) emit(e Event) {
	m.events = append(m.events, e)
}

// DrainEvents returns and clears the queued events.
func (m *Machine) DrainEvents() []Event {
	out := m.events
	m.events = nil
	return out
}

func (m *Machine) ID() string                 { return m.id }
func (m *Machine) Phase() Phase               { return m.phase }
func (m *Machine) Score() int                 { return m.scorer.Score() }
func (m *Machine) Tally() []int               { return m.scorer.Tally() }
func (m *Machine) CurrentTier() int           { return m.current }
func (m *Machine) NextTier() int              { return m.next }
func (m *Machine) Preview() *physics.Body     { return m.preview }
func (m *Machine) StartButton() *physics.Body { return m.startButton }
func (m *Machine) Catalog() *Catalog          { return m.catalog }
func (m *Machine) Rules() Rules               { return m.rules }
func (m *Machine) Outcome() *HighScoreOutcome { return m.outcome }

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		SessionID:   m.id,
		Phase:       m.phase,
		CurrentTier: m.current,
		NextTier:    m.next,
		Score:       m.scorer.Score(),
		Tally:       m.scorer.Tally(),
		PointerX:    m.pointerX,
		Drops:       m.drops,
		Merges:      m.scorer.Merges(),
		StartedAt:   m.startedAt,
		EndedAt:     m.endedAt,
		Outcome:     m.outcome,
	}
}
