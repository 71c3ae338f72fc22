package physics

import (
	"math"

	"github.com/jakecoffman/cp"
)

// Shape is the collision primitive of a body.
type Shape string

const (
	ShapeCircle    Shape = "circle"
	ShapeRectangle Shape = "rectangle"
)

// DefaultCategory is the collision category every body starts in.
const DefaultCategory uint32 = 0x0001

// Filter decides which bodies may touch. Two bodies collide when each one's
// mask contains the other's category.
type Filter struct {
	Category uint32 `json:"category"`
	Mask     uint32 `json:"mask"`
}

// DefaultFilter collides with everything.
func DefaultFilter() Filter {
	return Filter{Category: DefaultCategory, Mask: 0xFFFFFFFF}
}

// Body is a rigid body in a Space.
type Body struct {
	ID          int     `json:"id"`
	Shape       Shape   `json:"shape"`
	Label       string  `json:"label"`
	Position    Vec2    `json:"position"`
	Velocity    Vec2    `json:"velocity"`
	Radius      float64 `json:"radius,omitempty"`
	HalfWidth   float64 `json:"half_width,omitempty"`
	HalfHeight  float64 `json:"half_height,omitempty"`
	Static      bool    `json:"static"`
	Sensor      bool    `json:"sensor"`
	Restitution float64 `json:"-"`
	Friction    float64 `json:"-"`
	Filter      Filter  `json:"-"`
	// Tag is free for the owner; the game stores the fruit tier here.
	Tag int `json:"tag"`

	// Engine handles, set while the body is in a Space.
	body      *cp.Body
	shape     *cp.Shape
	syncedPos Vec2
	syncedVel Vec2
}

// BodyOptions are the optional attributes of a new body.
type BodyOptions struct {
	Label       string
	Static      bool
	Sensor      bool
	Restitution float64
	Friction    float64
	Filter      *Filter
	Tag         int
}

func (o BodyOptions) apply(b *Body) {
	b.Label = o.Label
	b.Static = o.Static
	b.Sensor = o.Sensor
	b.Restitution = o.Restitution
	b.Friction = o.Friction
	b.Tag = o.Tag
	if o.Filter != nil {
		b.Filter = *o.Filter
	} else {
		b.Filter = DefaultFilter()
	}
}

// NewCircle creates a circular body centred on (x, y).
func NewCircle(x, y, radius float64, opts BodyOptions) *Body {
	b := &Body{Shape: ShapeCircle, Position: NewVec2(x, y), Radius: radius}
	opts.apply(b)
	return b
}

// NewRectangle creates an axis-aligned rectangle centred on (x, y).
func NewRectangle(x, y, width, height float64, opts BodyOptions) *Body {
	b := &Body{Shape: ShapeRectangle, Position: NewVec2(x, y), HalfWidth: width / 2, HalfHeight: height / 2}
	opts.apply(b)
	return b
}

// Top returns the smallest y covered by the body.
func (b *Body) Top() float64 {
	if b.Shape == ShapeCircle {
		return b.Position.Y - b.Radius
	}
	return b.Position.Y - b.HalfHeight
}

// ContainsPoint reports whether p lies inside the body.
func (b *Body) ContainsPoint(p Vec2) bool {
	switch b.Shape {
	case ShapeCircle:
		return p.Minus(b.Position).MagnitudeSquared() <= b.Radius*b.Radius
	case ShapeRectangle:
		return p.X >= b.Position.X-b.HalfWidth && p.X <= b.Position.X+b.HalfWidth &&
			p.Y >= b.Position.Y-b.HalfHeight && p.Y <= b.Position.Y+b.HalfHeight
	}
	return false
}

// density converts area into mass for dynamic bodies.
const density = 0.001

// attach builds the engine body and shape for b.
func (b *Body) attach() {
	var body *cp.Body
	var shape *cp.Shape
	switch b.Shape {
	case ShapeCircle:
		if b.Static {
			body = cp.NewStaticBody()
		} else {
			mass := density * math.Pi * b.Radius * b.Radius
			body = cp.NewBody(mass, cp.MomentForCircle(mass, 0, b.Radius, cp.Vector{}))
		}
		shape = cp.NewCircle(body, b.Radius, cp.Vector{})
	default:
		w, h := b.HalfWidth*2, b.HalfHeight*2
		if b.Static {
			body = cp.NewStaticBody()
		} else {
			mass := density * w * h
			body = cp.NewBody(mass, cp.MomentForBox(mass, w, h))
		}
		shape = cp.NewBox(body, w, h, 0)
	}

	body.SetPosition(b.Position.vector())
	if !b.Static {
		body.SetVelocity(b.Velocity.X, b.Velocity.Y)
	}
	shape.SetElasticity(b.Restitution)
	shape.SetFriction(b.Friction)
	shape.SetSensor(b.Sensor)
	shape.SetFilter(cp.NewShapeFilter(0, uint(b.Filter.Category), uint(b.Filter.Mask)))
	shape.SetCollisionType(bodyCollisionType)

	b.body, b.shape = body, shape
	b.syncedPos, b.syncedVel = b.Position, b.Velocity
}

func (b *Body) detach() {
	b.body, b.shape = nil, nil
}
