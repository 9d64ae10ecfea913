package phys2d

import (
	"math"

	"github.com/setanarut/vec"
)

type BodyType uint8

const (
	// StaticBody has zero mass and zero velocity and may be moved manually.
	StaticBody BodyType = iota

	// KinematicBody has zero mass and a non-zero velocity set by the user.
	KinematicBody

	// DynamicBody has positive mass and a velocity determined by forces.
	DynamicBody
)

// BodyDef describes a body to create. Defs are reusable.
type BodyDef struct {
	Type BodyType

	Position vec.Vec2
	Angle    float64

	LinearVelocity  vec.Vec2
	AngularVelocity float64

	LinearDamping  float64
	AngularDamping float64

	// AllowSleep permits this body to fall asleep when it comes to rest.
	AllowSleep bool
	Awake      bool

	// Bullet enables continuous collision against other dynamic bodies,
	// which makes this body's contacts TOI-eligible.
	Bullet bool

	GravityScale float64

	UserData interface{}
}

func MakeBodyDef() BodyDef {
	return BodyDef{
		Type:         StaticBody,
		AllowSleep:   true,
		Awake:        true,
		GravityScale: 1.0,
	}
}

const (
	bodyAwakeFlag     uint16 = 0x0001
	bodyAutoSleepFlag uint16 = 0x0002
	bodyBulletFlag    uint16 = 0x0004
	bodyIslandFlag    uint16 = 0x0008
)

// Body is a rigid body. Bodies own fixtures; fixtures own broad-phase
// proxies. Contact and joint membership is kept in plain slices rather
// than intrusive linked lists so removal is handle-based.
type Body struct {
	id uint64

	world *World

	bodyType BodyType
	flags    uint16

	xf    Transform
	sweep Sweep

	linearVelocity  vec.Vec2
	angularVelocity float64

	force  vec.Vec2
	torque float64

	mass, invMass float64
	inertia, invI float64

	linearDamping  float64
	angularDamping float64
	gravityScale   float64

	sleepTime float64

	fixtures []*Fixture
	contacts []*Contact
	joints   []JointEdge

	userData interface{}
}

func (b *Body) ID() uint64 { return b.id }

func (b *Body) Type() BodyType { return b.bodyType }

func (b *Body) World() *World { return b.world }

func (b *Body) Transform() Transform { return b.xf }

func (b *Body) Position() vec.Vec2 { return b.xf.P }

func (b *Body) Angle() float64 { return b.sweep.A }

func (b *Body) LinearVelocity() vec.Vec2 { return b.linearVelocity }

func (b *Body) AngularVelocity() float64 { return b.angularVelocity }

func (b *Body) Mass() float64 { return b.mass }

func (b *Body) UserData() interface{} { return b.userData }

func (b *Body) SetUserData(data interface{}) { b.userData = data }

func (b *Body) Fixtures() []*Fixture { return b.fixtures }

// Contacts returns the body's live contacts. Do not mutate.
func (b *Body) Contacts() []*Contact { return b.contacts }

func (b *Body) SetLinearVelocity(v vec.Vec2) {
	if b.bodyType == StaticBody {
		return
	}
	if v.Dot(v) > 0.0 {
		b.SetAwake(true)
	}
	b.linearVelocity = v
}

func (b *Body) SetAngularVelocity(w float64) {
	if b.bodyType == StaticBody {
		return
	}
	if w*w > 0.0 {
		b.SetAwake(true)
	}
	b.angularVelocity = w
}

// SetTransform moves the body, updating the broad phase immediately.
// Must not be called during a step.
func (b *Body) SetTransform(position vec.Vec2, angle float64) {
	assert(b.world == nil || !b.world.locked)

	b.xf = MakeTransform(position, angle)
	b.sweep.C = b.xf.Apply(b.sweep.LocalCenter)
	b.sweep.A = angle
	b.sweep.C0 = b.sweep.C
	b.sweep.A0 = angle

	broadPhase := b.world.manager.broadPhase
	for _, f := range b.fixtures {
		f.synchronize(broadPhase, b.xf, b.xf)
	}
	b.world.newContacts = true
}

func (b *Body) IsAwake() bool {
	return b.flags&bodyAwakeFlag != 0
}

// SetAwake wakes or sleeps the body. Sleeping clears velocities and
// forces. Contact activity flags are kept in step via the manager. Not
// safe during parallel phases; contact updates defer wakes instead.
func (b *Body) SetAwake(flag bool) {
	was := b.IsAwake()
	if flag {
		b.flags |= bodyAwakeFlag
		b.sleepTime = 0.0
	} else {
		b.flags &^= bodyAwakeFlag
		b.sleepTime = 0.0
		b.linearVelocity = vec.Vec2{}
		b.angularVelocity = 0.0
		b.force = vec.Vec2{}
		b.torque = 0.0
	}

	if was != b.IsAwake() && b.world != nil {
		b.world.manager.RecalculateSleeping(b)
	}
}

func (b *Body) IsBullet() bool {
	return b.flags&bodyBulletFlag != 0
}

// SetBullet re-evaluates TOI candidacy for the body's contacts.
func (b *Body) SetBullet(flag bool) {
	if flag {
		b.flags |= bodyBulletFlag
	} else {
		b.flags &^= bodyBulletFlag
	}
	if b.world != nil {
		b.world.manager.RecalculateToiCandidacyBody(b)
	}
}

func (b *Body) IsSleepingAllowed() bool {
	return b.flags&bodyAutoSleepFlag != 0
}

func (b *Body) SetSleepingAllowed(flag bool) {
	if flag {
		b.flags |= bodyAutoSleepFlag
	} else {
		b.flags &^= bodyAutoSleepFlag
		b.SetAwake(true)
	}
}

func (b *Body) ApplyForce(force, point vec.Vec2, wake bool) {
	if b.bodyType != DynamicBody {
		return
	}
	if wake && !b.IsAwake() {
		b.SetAwake(true)
	}
	if b.IsAwake() {
		b.force = b.force.Add(force)
		b.torque += point.Sub(b.sweep.C).Cross(force)
	}
}

func (b *Body) ApplyForceToCenter(force vec.Vec2, wake bool) {
	if b.bodyType != DynamicBody {
		return
	}
	if wake && !b.IsAwake() {
		b.SetAwake(true)
	}
	if b.IsAwake() {
		b.force = b.force.Add(force)
	}
}

func (b *Body) ApplyLinearImpulse(impulse, point vec.Vec2, wake bool) {
	if b.bodyType != DynamicBody {
		return
	}
	if wake && !b.IsAwake() {
		b.SetAwake(true)
	}
	if b.IsAwake() {
		b.linearVelocity = b.linearVelocity.Add(impulse.Scale(b.invMass))
		b.angularVelocity += b.invI * point.Sub(b.sweep.C).Cross(impulse)
	}
}

// CreateFixture attaches a shape to the body per def, registering proxies
// with the broad phase. Must not be called during a step.
func (b *Body) CreateFixture(def *FixtureDef) *Fixture {
	assert(b.world == nil || !b.world.locked)
	assert(def.Shape != nil)

	f := &Fixture{
		id:          b.world.nextFixtureID(),
		body:        b,
		shape:       def.Shape,
		friction:    def.Friction,
		restitution: def.Restitution,
		density:     def.Density,
		isSensor:    def.IsSensor,
		filter:      def.Filter,
		userData:    def.UserData,
	}

	f.createProxies(b.world.manager.broadPhase, b.xf)
	b.fixtures = append(b.fixtures, f)

	if f.density > 0.0 {
		b.resetMassData()
	}

	// New proxies mean new pairs must be discovered before the next
	// collide phase.
	b.world.newContacts = true

	return f
}

// CreateCircleFixture is a convenience wrapper for a circle with density.
func (b *Body) CreateCircleFixture(radius float64, center vec.Vec2, density float64) *Fixture {
	def := MakeFixtureDef()
	def.Shape = &Circle{R: radius, Center: center}
	def.Density = density
	return b.CreateFixture(&def)
}

// DestroyFixture removes the fixture, destroying its proxies and any
// contacts attached to it. Must not be called during a step.
func (b *Body) DestroyFixture(fixture *Fixture) {
	assert(b.world == nil || !b.world.locked)
	assert(fixture.body == b)

	found := false
	for i, f := range b.fixtures {
		if f == fixture {
			b.fixtures = append(b.fixtures[:i], b.fixtures[i+1:]...)
			found = true
			break
		}
	}
	assert(found)

	// Destroy contacts attached to this fixture. Destroy mutates
	// b.contacts, so collect first.
	var doomed []*Contact
	for _, c := range b.contacts {
		if c.fixtureA == fixture || c.fixtureB == fixture {
			doomed = append(doomed, c)
		}
	}
	for _, c := range doomed {
		b.world.manager.Destroy(c)
	}

	fixture.destroyProxies(b.world.manager.broadPhase)
	fixture.body = nil

	b.resetMassData()
}

// ShouldCollide reports whether this body may collide with other: at least
// one must be dynamic, and no connecting joint may forbid collision.
func (b *Body) ShouldCollide(other *Body) bool {
	if b.bodyType != DynamicBody && other.bodyType != DynamicBody {
		return false
	}

	for i := range b.joints {
		if b.joints[i].Other == other && !b.joints[i].Joint.CollideConnected() {
			return false
		}
	}
	return true
}

// synchronizeTransform rebuilds the transform from the sweep end state.
func (b *Body) synchronizeTransform() {
	b.xf.Q = MakeRot(b.sweep.A)
	b.xf.P = b.sweep.C.Sub(b.xf.Q.Apply(b.sweep.LocalCenter))
}

// SynchronizeFixtures updates broad-phase proxies to cover the swept
// motion. Part of the continuous-collision surface: a sub-stepping driver
// calls it after moving a body mid-step, between parallel phases only.
func (b *Body) SynchronizeFixtures() {
	var xf1 Transform
	xf1.Q = MakeRot(b.sweep.A0)
	xf1.P = b.sweep.C0.Sub(xf1.Q.Apply(b.sweep.LocalCenter))

	broadPhase := b.world.manager.broadPhase
	for _, f := range b.fixtures {
		f.synchronize(broadPhase, xf1, b.xf)
	}
}

// Advance moves the body's sweep origin to alpha, the fraction of the step
// at which a sub-stepping driver resolves an impact. Pairs with Contact's
// Toi accessors and Island.SolveTOI.
func (b *Body) Advance(alpha float64) {
	b.sweep.Advance(alpha)
	b.sweep.C = b.sweep.C0
	b.sweep.A = b.sweep.A0
	b.synchronizeTransform()
}

// resetMassData recomputes mass from fixture densities. Circle-only mass
// properties are enough for this core; chains are static geometry.
func (b *Body) resetMassData() {
	b.mass = 0.0
	b.invMass = 0.0
	b.inertia = 0.0
	b.invI = 0.0
	b.sweep.LocalCenter = vec.Vec2{}

	if b.bodyType != DynamicBody {
		b.sweep.C0 = b.xf.P
		b.sweep.C = b.xf.P
		b.sweep.A0 = b.sweep.A
		return
	}

	localCenter := vec.Vec2{}
	for _, f := range b.fixtures {
		if f.density == 0.0 {
			continue
		}
		circle, ok := f.shape.(*Circle)
		if !ok {
			continue
		}

		m := f.density * math.Pi * circle.R * circle.R
		b.mass += m
		localCenter = localCenter.Add(circle.Center.Scale(m))
		// Inertia about the circle center plus the parallel axis term.
		b.inertia += m * (0.5*circle.R*circle.R + circle.Center.Dot(circle.Center))
	}

	if b.mass > 0.0 {
		b.invMass = 1.0 / b.mass
		localCenter = localCenter.Scale(b.invMass)
	} else {
		// Force all dynamic bodies to have positive mass.
		b.mass = 1.0
		b.invMass = 1.0
	}

	if b.inertia > 0.0 {
		// Center the inertia about the center of mass.
		b.inertia -= b.mass * localCenter.Dot(localCenter)
		b.invI = 1.0 / b.inertia
	}

	oldCenter := b.sweep.C
	b.sweep.LocalCenter = localCenter
	b.sweep.C = b.xf.Apply(localCenter)
	b.sweep.C0 = b.sweep.C

	// Update velocity for the shift in center of mass.
	b.linearVelocity = b.linearVelocity.Add(crossSV(b.angularVelocity, b.sweep.C.Sub(oldCenter)))
}
