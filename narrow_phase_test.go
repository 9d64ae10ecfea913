package phys2d_test

import (
	"testing"

	"github.com/polyphase/phys2d"
	"github.com/setanarut/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollideCircles(t *testing.T) {
	np := phys2d.NewNarrowPhase()
	a := &phys2d.Circle{R: 0.5}
	b := &phys2d.Circle{R: 0.5}

	var m phys2d.Manifold
	np.Evaluate(&m, a, 0, phys2d.MakeTransform(vec.Vec2{}, 0),
		b, 0, phys2d.MakeTransform(vec.Vec2{X: 0.9}, 0))

	require.Equal(t, 1, m.PointCount)
	assert.Equal(t, phys2d.ManifoldCircles, m.Type)

	var wm phys2d.WorldManifold
	wm.Initialize(&m, phys2d.MakeTransform(vec.Vec2{}, 0), 0.5,
		phys2d.MakeTransform(vec.Vec2{X: 0.9}, 0), 0.5)
	assert.InDelta(t, 1.0, wm.Normal.X, 1e-12)
	assert.InDelta(t, 0.0, wm.Normal.Y, 1e-12)
	assert.InDelta(t, -0.1, wm.Separations[0], 1e-12)
}

func TestCollideCirclesApart(t *testing.T) {
	np := phys2d.NewNarrowPhase()
	a := &phys2d.Circle{R: 0.5}
	b := &phys2d.Circle{R: 0.5}

	var m phys2d.Manifold
	np.Evaluate(&m, a, 0, phys2d.MakeTransform(vec.Vec2{}, 0),
		b, 0, phys2d.MakeTransform(vec.Vec2{X: 1.1}, 0))

	assert.Equal(t, 0, m.PointCount)
}

func TestCollideChainAndCircleFace(t *testing.T) {
	np := phys2d.NewNarrowPhase()
	chain := &phys2d.Chain{Vertices: []vec.Vec2{{X: -1, Y: 0}, {X: 1, Y: 0}}}
	circle := &phys2d.Circle{R: 0.5}

	var m phys2d.Manifold
	np.Evaluate(&m, chain, 0, phys2d.MakeTransform(vec.Vec2{}, 0),
		circle, 0, phys2d.MakeTransform(vec.Vec2{X: 0, Y: 0.4}, 0))

	require.Equal(t, 1, m.PointCount)
	assert.Equal(t, phys2d.ManifoldFaceA, m.Type)
	// Normal points from the segment toward the circle.
	assert.InDelta(t, 0.0, m.LocalNormal.X, 1e-12)
	assert.InDelta(t, 1.0, m.LocalNormal.Y, 1e-12)
}

// A circle past a segment endpoint whose face region belongs to the next
// segment must be reported by that segment only, or contacts on interior
// chain vertices would double up.
func TestCollideChainAndCircleDefersToNeighbor(t *testing.T) {
	np := phys2d.NewNarrowPhase()
	chain := &phys2d.Chain{Vertices: []vec.Vec2{{X: -2, Y: 0}, {X: 0, Y: 0}, {X: 2, Y: 0}}}
	circle := &phys2d.Circle{R: 0.5}

	// Slightly right of the shared vertex at the origin: in segment 0's
	// vertex region but in segment 1's face region.
	xfB := phys2d.MakeTransform(vec.Vec2{X: 0.1, Y: 0.3}, 0)

	var m phys2d.Manifold
	np.Evaluate(&m, chain, 0, phys2d.MakeTransform(vec.Vec2{}, 0), circle, 0, xfB)
	assert.Equal(t, 0, m.PointCount, "segment 0 must defer to segment 1")

	np.Evaluate(&m, chain, 1, phys2d.MakeTransform(vec.Vec2{}, 0), circle, 0, xfB)
	assert.Equal(t, 1, m.PointCount)
}

func TestCollideChainEndVertex(t *testing.T) {
	np := phys2d.NewNarrowPhase()
	chain := &phys2d.Chain{Vertices: []vec.Vec2{{X: -1, Y: 0}, {X: 1, Y: 0}}}
	circle := &phys2d.Circle{R: 0.5}

	// Past the free end: no neighbor to defer to, so the end vertex
	// itself collides.
	var m phys2d.Manifold
	np.Evaluate(&m, chain, 0, phys2d.MakeTransform(vec.Vec2{}, 0),
		circle, 0, phys2d.MakeTransform(vec.Vec2{X: 1.2, Y: 0.2}, 0))

	require.Equal(t, 1, m.PointCount)
	assert.Equal(t, phys2d.ManifoldCircles, m.Type)
}

func TestNarrowPhaseTestOverlap(t *testing.T) {
	np := phys2d.NewNarrowPhase()
	a := &phys2d.Circle{R: 0.5}
	b := &phys2d.Circle{R: 0.5}

	assert.True(t, np.TestOverlap(a, 0, phys2d.MakeTransform(vec.Vec2{}, 0),
		b, 0, phys2d.MakeTransform(vec.Vec2{X: 0.5}, 0)))
	assert.False(t, np.TestOverlap(a, 0, phys2d.MakeTransform(vec.Vec2{}, 0),
		b, 0, phys2d.MakeTransform(vec.Vec2{X: 2}, 0)))
}
