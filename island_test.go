package phys2d_test

import (
	"testing"

	"github.com/polyphase/phys2d"
	"github.com/setanarut/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportModeParity(t *testing.T) {
	run := func(mode phys2d.ReportMode) *traceListener {
		def := phys2d.MakeWorldDef()
		def.Gravity = vec.Vec2{}
		def.ReportMode = mode
		w := phys2d.NewWorld(def)

		listener := &traceListener{}
		w.SetContactListener(listener)

		bd := phys2d.MakeBodyDef()
		ground := w.CreateBody(&bd)
		fd := phys2d.MakeFixtureDef()
		fd.Shape = &phys2d.Chain{Vertices: []vec.Vec2{{X: -2, Y: 0}, {X: 0, Y: 0}, {X: 2, Y: 0}}}
		fd.UserData = "ground"
		ground.CreateFixture(&fd)

		for i, x := range []float64{-1, 1} {
			cd := phys2d.MakeBodyDef()
			cd.Type = phys2d.DynamicBody
			cd.Position = vec.Vec2{X: x, Y: 0.4}
			b := w.CreateBody(&cd)
			cfd := phys2d.MakeFixtureDef()
			cfd.Shape = &phys2d.Circle{R: 0.5}
			cfd.Density = 1.0
			cfd.UserData = []string{"c1", "c2"}[i]
			b.CreateFixture(&cfd)
		}

		step(w, 3)
		return listener
	}

	buffered := run(phys2d.ReportBuffered)
	direct := run(phys2d.ReportDirect)

	// On a single worker the two report modes must deliver the same
	// post-solve events; only their timing within the step differs.
	require.NotEmpty(t, buffered.lines)
	assert.Equal(t, buffered.trace(), direct.trace())
}

// Two resting circles far apart on one chain form two islands that both
// contain the chain's body. With two workers the islands solve at the same
// time, so the shared static body must come through untouched.
func TestSharedStaticBodyAcrossIslands(t *testing.T) {
	def := phys2d.MakeWorldDef()
	def.Executor = phys2d.NewPoolExecutor(2)
	w := phys2d.NewWorld(def)

	bd := phys2d.MakeBodyDef()
	ground := w.CreateBody(&bd)
	fd := phys2d.MakeFixtureDef()
	fd.Shape = &phys2d.Chain{Vertices: []vec.Vec2{{X: -10, Y: 0}, {X: 10, Y: 0}}}
	ground.CreateFixture(&fd)

	left := newCircleBody(w, phys2d.DynamicBody, vec.Vec2{X: -5, Y: 0.45}, 0.5)
	right := newCircleBody(w, phys2d.DynamicBody, vec.Vec2{X: 5, Y: 0.45}, 0.5)

	before := ground.Transform()
	step(w, 60)

	assert.Equal(t, before, ground.Transform())
	assert.InDelta(t, 0.5, left.Position().Y, 0.03)
	assert.InDelta(t, 0.5, right.Position().Y, 0.03)
}

// Two circles whose fat AABBs overlap without touching keep a shared
// contact while belonging to different islands. When both islands decide
// to sleep in the same step, the transitions must not stomp on each other.
func TestSimultaneousSleepAcrossIslands(t *testing.T) {
	def := phys2d.MakeWorldDef()
	def.Executor = phys2d.NewPoolExecutor(2)
	w := phys2d.NewWorld(def)

	bd := phys2d.MakeBodyDef()
	ground := w.CreateBody(&bd)
	fd := phys2d.MakeFixtureDef()
	fd.Shape = &phys2d.Chain{Vertices: []vec.Vec2{{X: -10, Y: 0}, {X: 10, Y: 0}}}
	ground.CreateFixture(&fd)

	a := newCircleBody(w, phys2d.DynamicBody, vec.Vec2{X: 0, Y: 0.45}, 0.5)
	b := newCircleBody(w, phys2d.DynamicBody, vec.Vec2{X: 1.1, Y: 0.45}, 0.5)

	step(w, 180)

	assert.False(t, a.IsAwake())
	assert.False(t, b.IsAwake())

	var between *phys2d.Contact
	for _, c := range w.ContactManager().Contacts() {
		if c.FixtureA().Body() != ground && c.FixtureB().Body() != ground {
			between = c
		}
	}
	require.NotNil(t, between, "the circle pair keeps a non-touching contact")
	assert.False(t, between.IsTouching())
}

func TestSolveTOIResolvesOverlap(t *testing.T) {
	w := newTestWorld(vec.Vec2{})

	bd := phys2d.MakeBodyDef()
	ground := w.CreateBody(&bd)
	fd := phys2d.MakeFixtureDef()
	fd.Shape = &phys2d.Chain{Vertices: []vec.Vec2{{X: -2, Y: 0}, {X: 2, Y: 0}}}
	ground.CreateFixture(&fd)

	cd := phys2d.MakeBodyDef()
	cd.Type = phys2d.DynamicBody
	cd.Bullet = true
	cd.Position = vec.Vec2{Y: 0.3}
	cd.LinearVelocity = vec.Vec2{Y: -5}
	circle := w.CreateBody(&cd)
	circle.CreateCircleFixture(0.5, vec.Vec2{}, 1.0)

	// A zero-dt step runs pair discovery and the narrow phase without
	// integrating, leaving a deeply overlapping touching contact.
	w.Step(0, 8, 3)

	mgr := w.ContactManager()
	require.Equal(t, 1, mgr.ContactCount())
	contact := mgr.Contacts()[0]
	require.True(t, contact.IsTouching())
	require.True(t, contact.IsToiCandidate())

	island := phys2d.MakeIsland(phys2d.ReportDirect)
	island.AddBody(circle)
	island.AddBody(ground)
	island.AddContact(contact)

	subStep := phys2d.TimeStep{
		Dt:                 1.0 / 60.0,
		InvDt:              60.0,
		VelocityIterations: 8,
		PositionIterations: 20,
	}
	island.SolveTOI(subStep, 0, 1, &phys2d.StackAllocator{}, nil, 0, nil)

	// The position sub-solve pushes the circle out of penetration and the
	// velocity sub-solve removes the approach speed.
	assert.Greater(t, circle.Position().Y, 0.48)
	assert.Less(t, circle.Position().Y, 0.52)
	assert.InDelta(t, 0.0, circle.LinearVelocity().Y, 1e-9)

	// A sub-stepping driver finishes by rewinding the sweep and refreshing
	// the proxies. The sub-solve left the sweep converged, so advancing it
	// must not disturb the resolved position.
	resolved := circle.Position()
	circle.Advance(0.5)
	circle.SynchronizeFixtures()
	assert.InDelta(t, resolved.Y, circle.Position().Y, 1e-9)
}

// gatingListener suppresses selected events at the immediate hooks.
type gatingListener struct {
	traceListener
	admitBegins, admitPostSolves bool
}

func (l *gatingListener) BeginContactImmediate(*phys2d.Contact, uint32) bool {
	return l.admitBegins
}

func (l *gatingListener) PostSolveImmediate(*phys2d.Contact, *phys2d.ContactImpulse, uint32) bool {
	return l.admitPostSolves
}

func TestImmediateHooksGateOrderedHooks(t *testing.T) {
	def := phys2d.MakeWorldDef()
	def.Gravity = vec.Vec2{}
	w := phys2d.NewWorld(def)

	listener := &gatingListener{}
	w.SetContactListener(listener)

	a := newCircleBody(w, phys2d.DynamicBody, vec.Vec2{X: 0, Y: 0}, 0.5)
	a.Fixtures()[0].SetUserData("a")
	b := newCircleBody(w, phys2d.DynamicBody, vec.Vec2{X: 0.9, Y: 0}, 0.5)
	b.Fixtures()[0].SetUserData("b")

	step(w, 2)

	for _, line := range listener.lines {
		assert.NotContains(t, line, "begin", "gated begin leaked through")
		assert.NotContains(t, line, "postsolve", "gated postsolve leaked through")
	}

	listener.admitBegins = true
	listener.admitPostSolves = true

	// The begin transition already happened, so only post-solve events
	// show up once the gate opens.
	before := len(listener.lines)
	step(w, 1)
	var post int
	for _, line := range listener.lines[before:] {
		if line[:4] == "post" {
			post++
		}
	}
	assert.Equal(t, 1, post)
}
