package game

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/playmatatu/fruitmerge/internal/physics"
)

type fakeHighScores struct {
	values map[string]int
	err    error
	sets   int
}

func newFakeHighScores() *fakeHighScores {
	return &fakeHighScores{values: make(map[string]int)}
}

func (f *fakeHighScores) HighScore(_ context.Context, key string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.values[key], nil
}

func (f *fakeHighScores) SetHighScore(_ context.Context, key string, score int) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if score <= f.values[key] {
		return false, nil
	}
	f.sets++
	f.values[key] = score
	return true, nil
}

// Three tiers: r10/v1, r20/v3, r30/v6.
func smallCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog([]FruitTier{
		{Index: 0, Radius: 10, ScoreValue: 1, VisualRef: "small"},
		{Index: 1, Radius: 20, ScoreValue: 3, VisualRef: "medium"},
		{Index: 2, Radius: 30, ScoreValue: 6, VisualRef: "large"},
	})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return c
}

type harness struct {
	m     *Machine
	space *physics.Space
	clock *ManualClock
	hs    *fakeHighScores
}

func newHarness(t *testing.T, tweak func(*Rules)) *harness {
	t.Helper()
	rules := DefaultRules()
	rules.DropMaxTier = 1
	rules.LossGrace = 0
	if tweak != nil {
		tweak(&rules)
	}

	h := &harness{
		space: physics.NewSpace(physics.Vec2{}),
		clock: NewManualClock(time.Unix(1700000000, 0)),
		hs:    newFakeHighScores(),
	}
	m, err := NewMachine(MachineConfig{
		ID:           "test",
		Catalog:      smallCatalog(t),
		Rules:        rules,
		World:        h.space,
		Clock:        h.clock,
		Rand:         rand.New(rand.NewPCG(1, 2)),
		HighScores:   h.hs,
		HighScoreKey: "hs",
	})
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	h.m = m
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if !h.m.Press(h.m.StartButton()) {
		t.Fatal("press on start button was ignored")
	}
	h.m.DrainEvents()
}

func (h *harness) fruit(tier int, x, y float64) *physics.Body {
	b := h.m.newFruit(tier, physics.NewVec2(x, y))
	h.space.Add(b)
	return b
}

func (h *harness) collide(pairs ...physics.Pair) {
	h.m.HandleCollisions(context.Background(), pairs)
}

func (h *harness) fruits() []*physics.Body {
	var out []*physics.Body
	for _, b := range h.space.Bodies() {
		if b.Label == LabelFruit {
			out = append(out, b)
		}
	}
	return out
}

func countEvents(events []Event, typ EventType) int {
	n := 0
	for _, e := range events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func TestNewMachineStartsInMenu(t *testing.T) {
	h := newHarness(t, nil)

	if h.m.Phase() != PhaseMenu {
		t.Fatalf("phase = %s, want MENU", h.m.Phase())
	}
	if !h.space.Contains(h.m.StartButton()) {
		t.Error("start button should be in the world")
	}
	if h.space.Len() != 1 {
		t.Errorf("menu world should only hold the start button, len=%d", h.space.Len())
	}
}

func TestNewMachineRejectsBadRules(t *testing.T) {
	rules := DefaultRules()
	rules.DropMaxTier = 5
	_, err := NewMachine(MachineConfig{
		Catalog: smallCatalog(t),
		Rules:   rules,
		World:   physics.NewSpace(physics.Vec2{}),
		Clock:   NewManualClock(time.Now()),
	})
	if err == nil {
		t.Fatal("expected an error for a drop range past the catalog")
	}
}

func TestPressIgnoresOtherTargets(t *testing.T) {
	h := newHarness(t, nil)
	other := physics.NewRectangle(10, 10, 5, 5, physics.BodyOptions{Static: true})

	if h.m.Press(nil) || h.m.Press(other) {
		t.Fatal("press on something other than the start button should be ignored")
	}
	if h.m.Phase() != PhaseMenu {
		t.Errorf("phase = %s, want MENU", h.m.Phase())
	}

	h.start(t)
	if h.m.Phase() != PhaseReady {
		t.Fatalf("phase = %s, want READY", h.m.Phase())
	}
	if h.space.Contains(h.m.StartButton()) {
		t.Error("start button should be removed once the game starts")
	}
	for _, w := range h.m.walls {
		if !h.space.Contains(w) {
			t.Error("walls should be added on start")
		}
	}
	p := h.m.Preview()
	if p == nil || !h.space.Contains(p) {
		t.Fatal("expected a preview fruit in Ready")
	}
	if !p.Static || p.Tag != h.m.CurrentTier() {
		t.Errorf("preview should be a static body of the current tier, got static=%v tag=%d", p.Static, p.Tag)
	}
	if cur, next := h.m.CurrentTier(), h.m.NextTier(); cur < 0 || cur > 1 || next < 0 || next > 1 {
		t.Errorf("sampled tiers outside drop range: current=%d next=%d", cur, next)
	}

	if h.m.Press(h.m.StartButton()) {
		t.Error("press outside Menu should be ignored")
	}
}

func TestMergeSpawnsNextTierAtMidpoint(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	a := h.fruit(0, 100, 500)
	b := h.fruit(0, 118, 510)

	h.collide(physics.Pair{A: a, B: b})

	if h.space.Contains(a) || h.space.Contains(b) {
		t.Fatal("merged fruits should be removed")
	}
	fruits := h.fruits()
	if len(fruits) != 1 {
		t.Fatalf("expected exactly one new fruit, got %d", len(fruits))
	}
	got := fruits[0]
	if got.Tag != 1 || got.Radius != 20 {
		t.Errorf("new fruit tier=%d radius=%.0f, want tier 1 radius 20", got.Tag, got.Radius)
	}
	if got.Position != physics.NewVec2(109, 505) {
		t.Errorf("new fruit at %+v, want midpoint (109,505)", got.Position)
	}
	if got.Static {
		t.Error("merged fruit should be dynamic")
	}
	if tally := h.m.Tally(); tally[0] != 1 {
		t.Errorf("tally = %v, want one merge at tier 0", tally)
	}
	if h.m.Score() != 1 {
		t.Errorf("score = %d, want 1", h.m.Score())
	}

	events := h.m.DrainEvents()
	if countEvents(events, EventMerged) != 1 {
		t.Fatalf("expected one merge event, got %+v", events)
	}
	if e := events[0]; e.Tier != 0 || e.Into != 1 {
		t.Errorf("merge event tier=%d into=%d", e.Tier, e.Into)
	}
}

func TestPopDecorationExpires(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	a := h.fruit(0, 100, 500)
	b := h.fruit(0, 118, 500)
	h.collide(physics.Pair{A: a, B: b})

	pops := 0
	for _, body := range h.space.Bodies() {
		if body.Label == LabelPop {
			pops++
			if !body.Static || !body.Sensor {
				t.Error("pop should be a static sensor")
			}
		}
	}
	if pops != 1 {
		t.Fatalf("expected one pop decoration, got %d", pops)
	}

	h.clock.Advance(PopLifetime)
	for _, body := range h.space.Bodies() {
		if body.Label == LabelPop {
			t.Fatal("pop should be removed after its lifetime")
		}
	}
}

func TestTerminalMergeSinksBothFruits(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	a := h.fruit(2, 200, 700)
	b := h.fruit(2, 250, 700)

	h.collide(physics.Pair{A: a, B: b})

	if len(h.fruits()) != 0 {
		t.Errorf("terminal merge should leave no fruit, got %d", len(h.fruits()))
	}
	if tally := h.m.Tally(); tally[2] != 1 {
		t.Errorf("tally = %v, want one terminal merge", tally)
	}
	if h.m.Score() != 6 {
		t.Errorf("score = %d, want 6", h.m.Score())
	}
	if n := countEvents(h.m.DrainEvents(), EventSunk); n != 1 {
		t.Errorf("expected one terminal event, got %d", n)
	}
}

func TestScoreFollowsTally(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)

	a := h.fruit(0, 100, 500)
	b := h.fruit(0, 110, 500)
	h.collide(physics.Pair{A: a, B: b})

	first := h.fruits()[0]
	other := h.fruit(1, 130, 505)
	h.collide(physics.Pair{A: first, B: other})

	tally := h.m.Tally()
	if tally[0] != 1 || tally[1] != 1 || tally[2] != 0 {
		t.Fatalf("tally = %v, want [1 1 0]", tally)
	}
	if h.m.Score() != 4 {
		t.Errorf("score = %d, want 4", h.m.Score())
	}
}

func TestRemovedBodiesAreSkippedLaterInBatch(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	a := h.fruit(0, 100, 500)
	b := h.fruit(0, 115, 500)
	c := h.fruit(0, 130, 500)

	h.collide(physics.Pair{A: a, B: b}, physics.Pair{A: b, B: c})

	if !h.space.Contains(c) {
		t.Error("c should survive: its partner was already consumed")
	}
	if tally := h.m.Tally(); tally[0] != 1 {
		t.Errorf("tally = %v, want a single merge", tally)
	}
}

func TestStaticAndMismatchedPairsIgnored(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	a := h.fruit(0, 100, 500)
	b := h.fruit(1, 120, 500)
	wall := h.m.walls[0]

	h.collide(physics.Pair{A: a, B: b}, physics.Pair{A: wall, B: a}, physics.Pair{A: h.m.Preview(), B: b})

	if !h.space.Contains(a) || !h.space.Contains(b) {
		t.Error("no fruit should be removed")
	}
	if h.m.Score() != 0 || len(h.m.DrainEvents()) != 0 {
		t.Error("ignored pairs should not score or emit")
	}
}

func TestLossLineEndsGameExactlyOnce(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	high := h.fruit(0, 100, 50)
	b := h.fruit(1, 100, 75)
	c := h.fruit(0, 300, 500)
	d := h.fruit(0, 315, 500)

	h.collide(
		physics.Pair{A: high, B: b},
		physics.Pair{A: b, B: high},
		physics.Pair{A: c, B: d},
	)

	if h.m.Phase() != PhaseLose {
		t.Fatalf("phase = %s, want LOSE", h.m.Phase())
	}
	if n := countEvents(h.m.DrainEvents(), EventLost); n != 1 {
		t.Errorf("lose should happen exactly once, got %d events", n)
	}
	if !h.space.Contains(c) || !h.space.Contains(d) {
		t.Error("no merges should happen after the game is lost")
	}
	if h.m.Preview() != nil {
		t.Error("preview should be removed on lose")
	}

	h.collide(physics.Pair{A: c, B: d})
	if h.m.Score() != 0 {
		t.Errorf("score changed after lose: %d", h.m.Score())
	}
}

func TestLossCheckedBeforeMerge(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	a := h.fruit(0, 100, 40)
	b := h.fruit(0, 115, 40)

	h.collide(physics.Pair{A: a, B: b})

	if h.m.Phase() != PhaseLose {
		t.Fatalf("phase = %s, want LOSE", h.m.Phase())
	}
	if h.m.Tally()[0] != 0 {
		t.Error("a pair above the loss line must not merge")
	}
}

func TestFreshDropIsExemptFromLoss(t *testing.T) {
	h := newHarness(t, func(r *Rules) { r.LossGrace = time.Second })
	h.start(t)

	h.m.Release()
	dropped := h.fruits()[0]
	other := h.fruit(1-dropped.Tag, dropped.Position.X+25, 200)

	h.collide(physics.Pair{A: dropped, B: other})
	if h.m.Phase() == PhaseLose {
		t.Fatal("a fruit still in its grace period should not end the game")
	}

	h.clock.Advance(time.Second)
	h.collide(physics.Pair{A: dropped, B: other})
	if h.m.Phase() != PhaseLose {
		t.Errorf("phase = %s, want LOSE once the grace period is over", h.m.Phase())
	}
}

func TestReleaseIgnoredDuringCooldown(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	next := h.m.NextTier()

	if !h.m.Release() {
		t.Fatal("first release should drop")
	}
	if h.m.Phase() != PhaseDrop {
		t.Fatalf("phase = %s, want DROP", h.m.Phase())
	}
	if h.m.CurrentTier() != next {
		t.Errorf("current tier = %d, want previous next %d", h.m.CurrentTier(), next)
	}
	if h.m.Preview() != nil {
		t.Error("preview should be gone while dropping")
	}

	if h.m.Release() {
		t.Error("release during cooldown should be ignored")
	}
	if len(h.fruits()) != 1 {
		t.Errorf("expected one dropped fruit, got %d", len(h.fruits()))
	}

	h.clock.Advance(DropCooldown)
	if h.m.Phase() != PhaseReady {
		t.Fatalf("phase = %s, want READY after cooldown", h.m.Phase())
	}
	if p := h.m.Preview(); p == nil || p.Tag != h.m.CurrentTier() {
		t.Error("preview should show the current tier after cooldown")
	}
	if !h.m.Release() {
		t.Error("release after cooldown should drop")
	}
}

func TestPointerIsClampedToPlayfield(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	r := h.m.Preview().Radius

	h.m.MovePointer(-100)
	if x := h.m.Preview().Position.X; x != r {
		t.Errorf("preview x = %.1f, want %.1f", x, r)
	}
	h.m.MovePointer(5000)
	if x := h.m.Preview().Position.X; x != FieldWidth-r {
		t.Errorf("preview x = %.1f, want %.1f", x, FieldWidth-r)
	}

	h.m.MovePointer(300)
	h.m.Nudge(-KeyStep)
	if x := h.m.Preview().Position.X; x != 300-KeyStep {
		t.Errorf("preview x after nudge = %.1f", x)
	}

	h.m.Release()
	dropped := h.fruits()[0]
	if dropped.Position.X != 300-KeyStep || dropped.Position.Y != DropY {
		t.Errorf("dropped at %+v", dropped.Position)
	}
	if dropped.Static {
		t.Error("dropped fruit should be dynamic")
	}
}

func TestRestartCancelsPendingTimers(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	h.m.Release()
	a := h.fruit(0, 100, 500)
	b := h.fruit(0, 115, 500)
	h.collide(physics.Pair{A: a, B: b})

	if !h.m.Restart() {
		t.Fatal("restart should be accepted")
	}
	if h.clock.Pending() != 0 {
		t.Errorf("pending timers after restart: %d", h.clock.Pending())
	}

	h.clock.Advance(time.Second)
	if h.m.Phase() != PhaseMenu {
		t.Fatalf("phase = %s, want MENU", h.m.Phase())
	}
	if h.m.Preview() != nil {
		t.Error("stale cooldown callback spawned a preview")
	}
	if h.space.Len() != 1 || !h.space.Contains(h.m.StartButton()) {
		t.Errorf("world should only hold the start button, len=%d", h.space.Len())
	}
	if h.m.Score() != 0 || h.m.Tally()[0] != 0 {
		t.Error("restart should clear the score and tally")
	}
	if h.m.Restart() {
		t.Error("restart from Menu should be ignored")
	}
}

func TestLoseCommitsNewHighScore(t *testing.T) {
	h := newHarness(t, nil)
	h.hs.values["hs"] = 30
	h.start(t)
	for i := 0; i < 7; i++ {
		h.m.scorer.Credit(2)
	}
	a := h.fruit(0, 100, 20)
	b := h.fruit(1, 120, 20)

	h.collide(physics.Pair{A: a, B: b})

	out := h.m.Outcome()
	if out == nil {
		t.Fatal("expected a high score outcome")
	}
	if out.Final != 42 || !out.NewHighScore || out.HighScore != 42 {
		t.Errorf("outcome = %+v", *out)
	}
	if h.hs.values["hs"] != 42 {
		t.Errorf("stored high score = %d, want 42", h.hs.values["hs"])
	}
}

func TestLoseKeepsBetterHighScore(t *testing.T) {
	h := newHarness(t, nil)
	h.hs.values["hs"] = 30
	h.start(t)
	for i := 0; i < 20; i++ {
		h.m.scorer.Credit(0)
	}
	a := h.fruit(0, 100, 20)
	b := h.fruit(1, 120, 20)

	h.collide(physics.Pair{A: a, B: b})

	if h.hs.values["hs"] != 30 || h.hs.sets != 0 {
		t.Errorf("stored high score = %d after %d writes, want 30 untouched", h.hs.values["hs"], h.hs.sets)
	}
	if out := h.m.Outcome(); out == nil || out.NewHighScore || out.Final != 20 {
		t.Errorf("outcome = %+v", out)
	}
}

func TestLoseSurvivesHighScoreFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.hs.err = errors.New("store down")
	h.start(t)
	a := h.fruit(0, 100, 20)
	b := h.fruit(1, 120, 20)

	h.collide(physics.Pair{A: a, B: b})

	if h.m.Phase() != PhaseLose {
		t.Errorf("phase = %s, want LOSE even when the store fails", h.m.Phase())
	}
}
