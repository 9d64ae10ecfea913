package phys2d

import "github.com/setanarut/vec"

type ShapeType uint8

const (
	ShapeCircle ShapeType = iota
	ShapeChain
)

// Shape is the geometric payload of a fixture. Collision math against
// shapes lives in the NarrowPhase collaborator; the core only needs child
// enumeration and AABB computation from a shape.
type Shape interface {
	Type() ShapeType

	// ChildCount returns the number of child primitives. Each child gets
	// its own broad-phase proxy and its own contact identity.
	ChildCount() int

	// Radius is the shape's skin radius.
	Radius() float64

	// ComputeAABB returns a tight AABB for the given child under xf.
	ComputeAABB(xf Transform, childIndex int) AABB
}

// Circle is a solid circle shape.
type Circle struct {
	R      float64
	Center vec.Vec2
}

func (c *Circle) Type() ShapeType { return ShapeCircle }

func (c *Circle) ChildCount() int { return 1 }

func (c *Circle) Radius() float64 { return c.R }

func (c *Circle) ComputeAABB(xf Transform, childIndex int) AABB {
	p := xf.Apply(c.Center)
	r := vec.Vec2{X: c.R, Y: c.R}
	return AABB{Lower: p.Sub(r), Upper: p.Add(r)}
}

// Chain is a sequence of line segments. Each segment is a separate child,
// which is why contact identity carries a child index. A chain never
// collides with another chain.
type Chain struct {
	Vertices []vec.Vec2
	Loop     bool
}

func (c *Chain) Type() ShapeType { return ShapeChain }

func (c *Chain) ChildCount() int {
	if c.Loop {
		return len(c.Vertices)
	}
	return len(c.Vertices) - 1
}

func (c *Chain) Radius() float64 { return linearSlop }

// Segment returns the endpoints of child i.
func (c *Chain) Segment(i int) (vec.Vec2, vec.Vec2) {
	assert(0 <= i && i < c.ChildCount())
	a := c.Vertices[i]
	b := c.Vertices[(i+1)%len(c.Vertices)]
	return a, b
}

// adjacent returns the vertices before and after child i, when they exist.
// Used by the narrow phase to suppress internal-vertex collisions.
func (c *Chain) adjacent(i int) (prev vec.Vec2, hasPrev bool, next vec.Vec2, hasNext bool) {
	n := len(c.Vertices)
	if c.Loop {
		return c.Vertices[(i-1+n)%n], true, c.Vertices[(i+2)%n], true
	}
	if i > 0 {
		prev, hasPrev = c.Vertices[i-1], true
	}
	if i+2 < n {
		next, hasNext = c.Vertices[i+2], true
	}
	return
}

func (c *Chain) ComputeAABB(xf Transform, childIndex int) AABB {
	a, b := c.Segment(childIndex)
	v1 := xf.Apply(a)
	v2 := xf.Apply(b)
	r := vec.Vec2{X: c.Radius(), Y: c.Radius()}
	return AABB{Lower: minVec(v1, v2).Sub(r), Upper: maxVec(v1, v2).Add(r)}
}
