package phys2d_test

import (
	"testing"

	"github.com/polyphase/phys2d"
	"github.com/setanarut/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallingCircleComesToRest(t *testing.T) {
	w := newTestWorld(vec.Vec2{Y: -10})
	listener := &countingListener{}
	w.SetContactListener(listener)

	bd := phys2d.MakeBodyDef()
	ground := w.CreateBody(&bd)
	fd := phys2d.MakeFixtureDef()
	fd.Shape = &phys2d.Chain{Vertices: []vec.Vec2{{X: -10, Y: 0}, {X: 10, Y: 0}}}
	fd.Friction = 0.6
	ground.CreateFixture(&fd)

	ball := newCircleBody(w, phys2d.DynamicBody, vec.Vec2{X: 0, Y: 3}, 0.5)

	step(w, 120)

	require.Equal(t, 1, listener.begins, "ball lands exactly once")
	assert.Zero(t, listener.ends)
	assert.InDelta(t, 0.5, ball.Position().Y, 0.03, "ball rests on the ground")
	assert.InDelta(t, 0.0, ball.LinearVelocity().Mag(), 0.01)
}

func TestRestingBodyFallsAsleep(t *testing.T) {
	w := newTestWorld(vec.Vec2{Y: -10})

	bd := phys2d.MakeBodyDef()
	ground := w.CreateBody(&bd)
	fd := phys2d.MakeFixtureDef()
	fd.Shape = &phys2d.Chain{Vertices: []vec.Vec2{{X: -10, Y: 0}, {X: 10, Y: 0}}}
	ground.CreateFixture(&fd)

	ball := newCircleBody(w, phys2d.DynamicBody, vec.Vec2{X: 0, Y: 0.45}, 0.5)

	// The ball starts in place, so it only needs to sit still for the
	// sleep interval.
	step(w, 180)
	assert.False(t, ball.IsAwake())

	// An impulse wakes it again.
	ball.ApplyLinearImpulse(vec.Vec2{X: 1, Y: 0}, ball.Position(), true)
	assert.True(t, ball.IsAwake())
}

func TestStackedBodiesShareIsland(t *testing.T) {
	w := newTestWorld(vec.Vec2{Y: -10})

	bd := phys2d.MakeBodyDef()
	ground := w.CreateBody(&bd)
	fd := phys2d.MakeFixtureDef()
	fd.Shape = &phys2d.Chain{Vertices: []vec.Vec2{{X: -10, Y: 0}, {X: 10, Y: 0}}}
	ground.CreateFixture(&fd)

	bottom := newCircleBody(w, phys2d.DynamicBody, vec.Vec2{X: 0, Y: 0.5}, 0.5)
	top := newCircleBody(w, phys2d.DynamicBody, vec.Vec2{X: 0, Y: 1.5}, 0.5)

	step(w, 240)

	// The stack settles with both balls asleep at their resting heights.
	assert.InDelta(t, 0.5, bottom.Position().Y, 0.05)
	assert.InDelta(t, 1.5, top.Position().Y, 0.08)
	assert.False(t, bottom.IsAwake())
	assert.False(t, top.IsAwake())

	// Waking one wakes the whole island on the next step.
	top.SetAwake(true)
	step(w, 1)
	assert.True(t, bottom.IsAwake())
}

func TestQueryAABB(t *testing.T) {
	w := newTestWorld(vec.Vec2{})

	a := newCircleBody(w, phys2d.StaticBody, vec.Vec2{X: 0, Y: 0}, 0.5)
	b := newCircleBody(w, phys2d.StaticBody, vec.Vec2{X: 5, Y: 0}, 0.5)
	newCircleBody(w, phys2d.StaticBody, vec.Vec2{X: 100, Y: 0}, 0.5)

	var found []*phys2d.Fixture
	w.QueryAABB(box(-1, -1, 6, 1), func(f *phys2d.Fixture) bool {
		found = append(found, f)
		return true
	})

	require.Len(t, found, 2)
	bodies := map[*phys2d.Body]bool{found[0].Body(): true, found[1].Body(): true}
	assert.True(t, bodies[a])
	assert.True(t, bodies[b])

	// Early termination.
	count := 0
	w.QueryAABB(box(-200, -1, 200, 1), func(*phys2d.Fixture) bool {
		count++
		return false
	})
	assert.Equal(t, 1, count)
}

func TestGravityScale(t *testing.T) {
	w := newTestWorld(vec.Vec2{Y: -10})

	bd := phys2d.MakeBodyDef()
	bd.Type = phys2d.DynamicBody
	bd.Position = vec.Vec2{Y: 10}
	bd.GravityScale = 0
	floater := w.CreateBody(&bd)
	floater.CreateCircleFixture(0.5, vec.Vec2{}, 1.0)

	faller := newCircleBody(w, phys2d.DynamicBody, vec.Vec2{X: 5, Y: 10}, 0.5)

	step(w, 30)

	assert.InDelta(t, 10.0, floater.Position().Y, 1e-9)
	assert.Less(t, faller.Position().Y, 9.0)
}

func TestStepLockedDuringCallbacks(t *testing.T) {
	w := newTestWorld(vec.Vec2{})

	locked := false
	listener := &lockProbeListener{world: w, locked: &locked}
	w.SetContactListener(listener)

	newCircleBody(w, phys2d.DynamicBody, vec.Vec2{X: 0, Y: 0}, 0.5)
	newCircleBody(w, phys2d.DynamicBody, vec.Vec2{X: 0.9, Y: 0}, 0.5)

	step(w, 1)

	assert.True(t, locked, "world must be locked while delivering events")
	assert.False(t, w.IsLocked())
}

type lockProbeListener struct {
	phys2d.DefaultContactListener
	world  *phys2d.World
	locked *bool
}

func (l *lockProbeListener) BeginContact(*phys2d.Contact) {
	*l.locked = l.world.IsLocked()
}
