package phys2d

import "github.com/setanarut/vec"

// NarrowPhase produces contact manifolds for shape pairs. It is a consumed
// collaborator of the contact pipeline: Evaluate runs concurrently from
// collide tasks and must not mutate shared state.
//
// The pipeline normalizes fixture order before a contact is created, so an
// implementation only sees chain shapes in the A slot.
type NarrowPhase interface {
	Evaluate(manifold *Manifold, shapeA Shape, childA int, xfA Transform, shapeB Shape, childB int, xfB Transform)

	// TestOverlap is the boolean form used for sensor contacts, which do
	// not keep manifolds.
	TestOverlap(shapeA Shape, childA int, xfA Transform, shapeB Shape, childB int, xfB Transform) bool
}

type defaultNarrowPhase struct{}

// NewNarrowPhase returns the built-in narrow phase covering circle-circle
// and chain-circle pairs.
func NewNarrowPhase() NarrowPhase {
	return defaultNarrowPhase{}
}

func (defaultNarrowPhase) Evaluate(manifold *Manifold, shapeA Shape, childA int, xfA Transform, shapeB Shape, childB int, xfB Transform) {
	switch a := shapeA.(type) {
	case *Circle:
		b, ok := shapeB.(*Circle)
		assert(ok)
		collideCircles(manifold, a, xfA, b, xfB)
	case *Chain:
		b, ok := shapeB.(*Circle)
		assert(ok)
		collideChainAndCircle(manifold, a, childA, xfA, b, xfB)
	default:
		assert(false)
	}
}

func (np defaultNarrowPhase) TestOverlap(shapeA Shape, childA int, xfA Transform, shapeB Shape, childB int, xfB Transform) bool {
	var m Manifold
	np.Evaluate(&m, shapeA, childA, xfA, shapeB, childB, xfB)
	return m.PointCount > 0
}

func collideCircles(manifold *Manifold, circleA *Circle, xfA Transform, circleB *Circle, xfB Transform) {
	manifold.PointCount = 0

	pA := xfA.Apply(circleA.Center)
	pB := xfB.Apply(circleB.Center)

	d := pB.Sub(pA)
	distSqr := d.Dot(d)
	r := circleA.R + circleB.R
	if distSqr > r*r {
		return
	}

	manifold.Type = ManifoldCircles
	manifold.LocalPoint = circleA.Center
	manifold.LocalNormal = vec.Vec2{}
	manifold.PointCount = 1

	manifold.Points[0].LocalPoint = circleB.Center
	manifold.Points[0].ID.SetKey(0)
}

// collideChainAndCircle computes the manifold for one chain segment versus
// a circle, using the chain's adjacency to ignore internal vertices.
func collideChainAndCircle(manifold *Manifold, chainA *Chain, childA int, xfA Transform, circleB *Circle, xfB Transform) {
	manifold.PointCount = 0

	// Compute the circle in the frame of the segment.
	q := xfA.ApplyT(xfB.Apply(circleB.Center))

	a, b := chainA.Segment(childA)
	e := b.Sub(a)

	// Barycentric coordinates.
	u := e.Dot(b.Sub(q))
	v := e.Dot(q.Sub(a))

	radius := chainA.Radius() + circleB.R

	var cf ContactFeature
	cf.IndexB = 0
	cf.TypeB = featureVertex

	prev, hasPrev, next, hasNext := chainA.adjacent(childA)

	// Region A
	if v <= 0.0 {
		p := a
		d := q.Sub(p)
		if d.Dot(d) > radius*radius {
			return
		}

		// Defer to the previous segment if the circle is in its face region.
		if hasPrev {
			e1 := a.Sub(prev)
			if e1.Dot(a.Sub(q)) > 0.0 {
				return
			}
		}

		cf.IndexA = 0
		cf.TypeA = featureVertex
		manifold.PointCount = 1
		manifold.Type = ManifoldCircles
		manifold.LocalNormal = vec.Vec2{}
		manifold.LocalPoint = p
		manifold.Points[0].ID = ContactID(cf)
		manifold.Points[0].LocalPoint = circleB.Center
		return
	}

	// Region B
	if u <= 0.0 {
		p := b
		d := q.Sub(p)
		if d.Dot(d) > radius*radius {
			return
		}

		// Defer to the next segment if the circle is in its face region.
		if hasNext {
			e2 := next.Sub(b)
			if e2.Dot(q.Sub(b)) > 0.0 {
				return
			}
		}

		cf.IndexA = 1
		cf.TypeA = featureVertex
		manifold.PointCount = 1
		manifold.Type = ManifoldCircles
		manifold.LocalNormal = vec.Vec2{}
		manifold.LocalPoint = p
		manifold.Points[0].ID = ContactID(cf)
		manifold.Points[0].LocalPoint = circleB.Center
		return
	}

	// Region AB
	den := e.Dot(e)
	assert(den > 0.0)
	p := a.Scale(u).Add(b.Scale(v)).Scale(1.0 / den)
	d := q.Sub(p)
	if d.Dot(d) > radius*radius {
		return
	}

	n := vec.Vec2{X: -e.Y, Y: e.X}
	if n.Dot(q.Sub(a)) < 0.0 {
		n = n.Neg()
	}
	n = n.Unit()

	cf.IndexA = 0
	cf.TypeA = featureFace
	manifold.PointCount = 1
	manifold.Type = ManifoldFaceA
	manifold.LocalNormal = n
	manifold.LocalPoint = a
	manifold.Points[0].ID = ContactID(cf)
	manifold.Points[0].LocalPoint = circleB.Center
}
