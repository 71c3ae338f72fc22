package physics

import (
	"math"
	"testing"
)

// Helper to create a box: floor plus two walls, 640 wide and 960 tall.
func setupBox() (*Space, *Body) {
	space := NewSpace(NewVec2(0, 1000))
	floor := NewRectangle(320, 960+32, 640, 64, BodyOptions{Static: true, Label: "floor"})
	left := NewRectangle(-32, 480, 64, 960, BodyOptions{Static: true, Label: "wall"})
	right := NewRectangle(640+32, 480, 64, 960, BodyOptions{Static: true, Label: "wall"})
	space.Add(floor, left, right)
	return space, floor
}

func stepFor(space *Space, seconds float64) []Pair {
	var all []Pair
	dt := 1.0 / 60
	for t := 0.0; t < seconds; t += dt {
		all = append(all, space.Step(dt)...)
	}
	return all
}

func TestGravityPullsDynamicBodiesDown(t *testing.T) {
	space := NewSpace(NewVec2(0, 1000))
	ball := NewCircle(100, 100, 20, BodyOptions{})
	pinned := NewCircle(300, 100, 20, BodyOptions{Static: true})
	space.Add(ball, pinned)

	space.Step(0.1)

	if ball.Position.Y <= 100 {
		t.Errorf("dynamic ball did not fall: y=%.2f", ball.Position.Y)
	}
	if pinned.Position.Y != 100 {
		t.Errorf("static ball moved: y=%.2f", pinned.Position.Y)
	}
}

func TestSensorReportsWithoutPushing(t *testing.T) {
	space := NewSpace(Vec2{})
	sensor := NewCircle(100, 100, 20, BodyOptions{Static: true, Sensor: true, Label: "pop"})
	ball := NewCircle(110, 100, 10, BodyOptions{})
	space.Add(sensor, ball)

	pairs := space.Step(1.0 / 60)

	if len(pairs) != 1 {
		t.Fatalf("expected one pair, got %d", len(pairs))
	}
	if ball.Position != NewVec2(110, 100) {
		t.Errorf("sensor should not push the ball: %+v", ball.Position)
	}
}

func TestMovedBodiesReachTheEngine(t *testing.T) {
	space := NewSpace(Vec2{})
	preview := NewCircle(100, 50, 20, BodyOptions{Static: true, Label: "preview"})
	ball := NewCircle(400, 50, 20, BodyOptions{})
	space.Add(preview, ball)

	preview.Position.X = 380
	space.Step(1.0 / 60)
	if got := space.BodyAt(NewVec2(380, 50)); got != preview {
		t.Fatalf("moved preview not found at its new position")
	}

	ball.Position = NewVec2(200, 300)
	space.Step(1.0 / 60)
	if ball.Position.Minus(NewVec2(200, 300)).Magnitude() > 0.001 {
		t.Errorf("ball should stay where it was placed: %+v", ball.Position)
	}
}

func TestBallLandsOnFloorAndReportsOnce(t *testing.T) {
	space, floor := setupBox()
	ball := NewCircle(320, 100, 24, BodyOptions{Restitution: 0.1, Label: "fruit"})
	space.Add(ball)

	pairs := stepFor(space, 3)

	floorHits := 0
	for _, p := range pairs {
		if (p.A == floor && p.B == ball) || (p.A == ball && p.B == floor) {
			floorHits++
		}
	}
	if floorHits == 0 {
		t.Fatal("expected a collision-start pair between ball and floor")
	}
	if floorHits > 3 {
		t.Errorf("resting contact reported too often: %d", floorHits)
	}

	bottom := ball.Position.Y + ball.Radius
	if math.Abs(bottom-960) > 2 {
		t.Errorf("ball should rest on the floor: bottom=%.2f", bottom)
	}
}

func TestCirclesCollideAndSeparate(t *testing.T) {
	space, _ := setupBox()
	lower := NewCircle(320, 900, 30, BodyOptions{})
	upper := NewCircle(322, 700, 30, BodyOptions{})
	space.Add(lower, upper)

	pairs := stepFor(space, 3)

	found := false
	for _, p := range pairs {
		if (p.A == lower && p.B == upper) || (p.A == upper && p.B == lower) {
			found = true
			if p.Contact.X < 300 || p.Contact.X > 342 {
				t.Errorf("contact point looks wrong: %+v", p.Contact)
			}
		}
	}
	if !found {
		t.Fatal("expected the two circles to report a collision")
	}

	dist := lower.Position.Minus(upper.Position).Magnitude()
	if dist < 59 {
		t.Errorf("circles still overlap after settling: dist=%.2f", dist)
	}
}

func TestFilterMaskSkipsCollision(t *testing.T) {
	space, floor := setupBox()
	ghost := NewCircle(320, 900, 30, BodyOptions{Static: true, Filter: &Filter{Category: DefaultCategory, Mask: 0x0040}})
	ball := NewCircle(320, 700, 30, BodyOptions{})
	space.Add(ghost, ball)

	pairs := stepFor(space, 2)

	for _, p := range pairs {
		if p.A == ghost || p.B == ghost {
			t.Fatalf("masked body reported in pair with %q", p.B.Label)
		}
	}
	hitFloor := false
	for _, p := range pairs {
		if p.A == floor || p.B == floor {
			hitFloor = true
		}
	}
	if !hitFloor {
		t.Error("ball should have fallen through the ghost onto the floor")
	}
}

func TestRemoveAndContains(t *testing.T) {
	space := NewSpace(Vec2{})
	a := NewCircle(0, 0, 10, BodyOptions{})
	b := NewCircle(50, 0, 10, BodyOptions{})
	space.Add(a, b)
	space.Add(a)

	if space.Len() != 2 {
		t.Fatalf("duplicate add should be ignored, len=%d", space.Len())
	}
	if a.ID == 0 || a.ID == b.ID {
		t.Errorf("bodies should get distinct ids: a=%d b=%d", a.ID, b.ID)
	}

	space.Remove(a)
	if space.Contains(a) {
		t.Error("removed body still reported as contained")
	}
	if !space.Contains(b) {
		t.Error("remaining body missing")
	}

	space.Clear()
	if space.Len() != 0 || space.Contains(b) {
		t.Error("clear should empty the space")
	}
}

func TestBodyAtPrefersTopmost(t *testing.T) {
	space := NewSpace(Vec2{})
	button := NewRectangle(320, 720, 512, 96, BodyOptions{Static: true, Label: "btn-start"})
	space.Add(button)

	if got := space.BodyAt(NewVec2(320, 720)); got != button {
		t.Fatalf("expected button, got %+v", got)
	}
	if got := space.BodyAt(NewVec2(10, 10)); got != nil {
		t.Errorf("expected nothing at the corner, got %q", got.Label)
	}

	overlay := NewCircle(320, 720, 20, BodyOptions{Static: true, Label: "overlay"})
	space.Add(overlay)
	if got := space.BodyAt(NewVec2(320, 720)); got != overlay {
		t.Errorf("expected the most recently added body, got %q", got.Label)
	}
}

func TestMidpoint(t *testing.T) {
	got := NewVec2(10, 20).Midpoint(NewVec2(30, 60))
	if got != NewVec2(20, 40) {
		t.Errorf("Midpoint = %+v", got)
	}
}
