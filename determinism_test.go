package phys2d_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/polyphase/phys2d"
	"github.com/sebdah/goldie/v2"
	"github.com/setanarut/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// traceListener records the ordered contact hooks as one line per event.
// Lines carry only fixture labels and child indices, never solver numbers,
// so a trace is comparable across executors and exactly reproducible.
type traceListener struct {
	phys2d.DefaultContactListener
	lines []string
}

func (l *traceListener) record(event string, c *phys2d.Contact) {
	l.lines = append(l.lines, fmt.Sprintf("%s %s/%d %s/%d",
		event,
		c.FixtureA().UserData().(string), c.ChildIndexA(),
		c.FixtureB().UserData().(string), c.ChildIndexB()))
}

func (l *traceListener) BeginContact(c *phys2d.Contact) { l.record("begin", c) }
func (l *traceListener) EndContact(c *phys2d.Contact)   { l.record("end", c) }
func (l *traceListener) PreSolve(c *phys2d.Contact, _ *phys2d.Manifold) {
	l.record("presolve", c)
}
func (l *traceListener) PostSolve(c *phys2d.Contact, _ *phys2d.ContactImpulse) {
	l.record("postsolve", c)
}

func (l *traceListener) trace() string {
	var sb strings.Builder
	for _, line := range l.lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// buildTraceWorld drops three circles onto the three segments of a static
// chain, one circle per segment, with gravity off. The circles start
// slightly embedded so every contact is touching on the first step.
func buildTraceWorld(executor phys2d.Executor) (*phys2d.World, *traceListener) {
	def := phys2d.MakeWorldDef()
	def.Gravity = vec.Vec2{}
	if executor != nil {
		def.Executor = executor
	}
	w := phys2d.NewWorld(def)

	listener := &traceListener{}
	w.SetContactListener(listener)

	bd := phys2d.MakeBodyDef()
	ground := w.CreateBody(&bd)
	fd := phys2d.MakeFixtureDef()
	fd.Shape = &phys2d.Chain{Vertices: []vec.Vec2{
		{X: -3, Y: 0}, {X: -1, Y: 0}, {X: 1, Y: 0}, {X: 3, Y: 0},
	}}
	fd.UserData = "ground"
	ground.CreateFixture(&fd)

	for i, x := range []float64{-2, 0, 2} {
		cd := phys2d.MakeBodyDef()
		cd.Type = phys2d.DynamicBody
		cd.Position = vec.Vec2{X: x, Y: 0.4}
		b := w.CreateBody(&cd)

		cfd := phys2d.MakeFixtureDef()
		cfd.Shape = &phys2d.Circle{R: 0.5}
		cfd.Density = 1.0
		cfd.UserData = fmt.Sprintf("c%d", i+1)
		b.CreateFixture(&cfd)
	}

	return w, listener
}

func TestContactEventTraceGolden(t *testing.T) {
	w, listener := buildTraceWorld(nil)
	step(w, 2)

	g := goldie.New(t)
	g.Assert(t, "contact_trace", []byte(listener.trace()))
}

func TestTraceParityAcrossWorkerCounts(t *testing.T) {
	serialWorld, serialListener := buildTraceWorld(nil)
	step(serialWorld, 4)

	for _, workers := range []int{2, 4} {
		w, listener := buildTraceWorld(phys2d.NewPoolExecutor(workers))
		step(w, 4)

		assert.Equal(t, serialListener.trace(), listener.trace(),
			"event trace diverged with %d workers", workers)

		// The contact list itself must come out in the same order.
		require.Equal(t, len(serialWorld.ContactManager().Contacts()), len(w.ContactManager().Contacts()))
		for i, c := range w.ContactManager().Contacts() {
			ref := serialWorld.ContactManager().Contacts()[i]
			assert.Equal(t, ref.FixtureA().UserData(), c.FixtureA().UserData())
			assert.Equal(t, ref.ChildIndexA(), c.ChildIndexA())
			assert.Equal(t, ref.FixtureB().UserData(), c.FixtureB().UserData())
		}
	}
}

func TestTraceRepeatable(t *testing.T) {
	first, firstListener := buildTraceWorld(phys2d.NewPoolExecutor(4))
	step(first, 4)

	second, secondListener := buildTraceWorld(phys2d.NewPoolExecutor(4))
	step(second, 4)

	assert.Equal(t, firstListener.trace(), secondListener.trace())
}
