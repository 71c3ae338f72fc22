package physics

import "github.com/jakecoffman/cp"

// bodyCollisionType is shared by every shape so one handler sees all contacts.
const bodyCollisionType cp.CollisionType = 1

// Pair is one collision-start report: two bodies that began touching during a step.
type Pair struct {
	A       *Body
	B       *Body
	Contact Vec2
}

type pairKey struct {
	a, b int
}

func keyOf(a, b *Body) pairKey {
	if a.ID < b.ID {
		return pairKey{a.ID, b.ID}
	}
	return pairKey{b.ID, a.ID}
}

// Space adapts a chipmunk space to the game's body model. Positions set on
// a Body are pushed into the engine before each step and read back after it.
// It is not safe for concurrent use; the owning session serialises access.
type Space struct {
	space  *cp.Space
	bodies []*Body
	shapes map[*cp.Shape]*Body
	nextID int

	// Collected by the begin handler during Step.
	started []Pair
	seen    map[pairKey]struct{}
}

// NewSpace creates an empty space with the given gravity in units/s².
func NewSpace(gravity Vec2) *Space {
	s := &Space{
		space:  cp.NewSpace(),
		shapes: make(map[*cp.Shape]*Body),
		nextID: 1,
	}
	s.space.SetGravity(gravity.vector())

	handler := s.space.NewCollisionHandler(bodyCollisionType, bodyCollisionType)
	handler.BeginFunc = s.begin
	return s
}

func (s *Space) begin(arb *cp.Arbiter, _ *cp.Space, _ interface{}) bool {
	sa, sb := arb.Shapes()
	a, b := s.shapes[sa], s.shapes[sb]
	if a == nil || b == nil {
		return true
	}
	k := keyOf(a, b)
	if _, dup := s.seen[k]; dup {
		return true
	}
	s.seen[k] = struct{}{}

	var contact Vec2
	if set := arb.ContactPointSet(); set.Count > 0 {
		contact = fromVector(set.Points[0].PointA)
	}
	s.started = append(s.started, Pair{A: a, B: b, Contact: contact})
	return true
}

// Add inserts bodies. Bodies already present are ignored.
func (s *Space) Add(bodies ...*Body) {
	for _, b := range bodies {
		if b == nil || b.body != nil {
			continue
		}
		if b.ID == 0 {
			b.ID = s.nextID
			s.nextID++
		}
		b.attach()
		s.space.AddBody(b.body)
		s.space.AddShape(b.shape)
		s.shapes[b.shape] = b
		s.bodies = append(s.bodies, b)
	}
}

// Remove deletes bodies. Unknown bodies are ignored.
func (s *Space) Remove(bodies ...*Body) {
	for _, b := range bodies {
		if !s.Contains(b) {
			continue
		}
		s.release(b)
		for i, cur := range s.bodies {
			if cur == b {
				s.bodies = append(s.bodies[:i], s.bodies[i+1:]...)
				break
			}
		}
	}
}

func (s *Space) release(b *Body) {
	delete(s.shapes, b.shape)
	s.space.RemoveShape(b.shape)
	s.space.RemoveBody(b.body)
	b.detach()
}

// Contains reports whether b is currently in the space.
func (s *Space) Contains(b *Body) bool {
	if b == nil || b.shape == nil {
		return false
	}
	return s.shapes[b.shape] == b
}

// Clear removes every body.
func (s *Space) Clear() {
	for _, b := range s.bodies {
		s.release(b)
	}
	s.bodies = nil
}

// Bodies returns the bodies in insertion order.
func (s *Space) Bodies() []*Body {
	out := make([]*Body, len(s.bodies))
	copy(out, s.bodies)
	return out
}

// Len returns the number of bodies.
func (s *Space) Len() int {
	return len(s.bodies)
}

// BodyAt returns the most recently added body containing p, or nil.
func (s *Space) BodyAt(p Vec2) *Body {
	for i := len(s.bodies) - 1; i >= 0; i-- {
		if s.bodies[i].ContainsPoint(p) {
			return s.bodies[i]
		}
	}
	return nil
}

// Step advances the simulation by dt seconds and returns the pairs that
// started touching during this step, in the order the engine reported them.
func (s *Space) Step(dt float64) []Pair {
	for _, b := range s.bodies {
		s.push(b)
	}

	s.started = nil
	s.seen = make(map[pairKey]struct{})
	s.space.Step(dt)

	for _, b := range s.bodies {
		if b.Static {
			continue
		}
		b.Position = fromVector(b.body.Position())
		b.Velocity = fromVector(b.body.Velocity())
		b.syncedPos, b.syncedVel = b.Position, b.Velocity
	}

	started := s.started
	s.started = nil
	return started
}

// push copies positions and velocities changed by the owner into the engine.
func (s *Space) push(b *Body) {
	if b.Position != b.syncedPos {
		b.body.SetPosition(b.Position.vector())
		if b.Static {
			s.space.ReindexShapesForBody(b.body)
		} else {
			b.body.Activate()
		}
		b.syncedPos = b.Position
	}
	if !b.Static && b.Velocity != b.syncedVel {
		b.body.SetVelocity(b.Velocity.X, b.Velocity.Y)
		b.body.Activate()
		b.syncedVel = b.Velocity
	}
}
