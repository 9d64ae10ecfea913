package phys2d

// Filter holds contact filtering data.
type Filter struct {
	// The collision category bits. Normally you would just set one bit.
	CategoryBits uint16

	// The categories this shape accepts for collision.
	MaskBits uint16

	// Collision groups let a group of objects never collide (negative) or
	// always collide (positive). Non-zero group filtering wins against the
	// mask bits.
	GroupIndex int16
}

func MakeFilter() Filter {
	return Filter{CategoryBits: 0x0001, MaskBits: 0xFFFF}
}

// FixtureDef describes a fixture to create. Defs are reusable.
type FixtureDef struct {
	Shape Shape

	UserData interface{}

	Friction    float64
	Restitution float64
	Density     float64

	// A sensor collects contact information but never generates a
	// collision response.
	IsSensor bool

	Filter Filter
}

func MakeFixtureDef() FixtureDef {
	return FixtureDef{
		Friction: 0.2,
		Filter:   MakeFilter(),
	}
}

// FixtureProxy connects one shape child to the broad phase.
type FixtureProxy struct {
	AABB       AABB
	Fixture    *Fixture
	ChildIndex int
	ProxyID    int
}

// Fixture attaches a shape to a body for collision detection. A fixture
// owns one broad-phase proxy per shape child. Fixtures are created via
// Body.CreateFixture and cannot be reused.
type Fixture struct {
	// Monotonic id; gives contacts an identity-derived total order.
	id uint64

	body  *Body
	shape Shape

	friction    float64
	restitution float64
	density     float64

	proxies []FixtureProxy

	filter Filter

	isSensor bool

	userData interface{}
}

func (f *Fixture) ID() uint64 { return f.id }

func (f *Fixture) Body() *Body { return f.body }

func (f *Fixture) Shape() Shape { return f.shape }

func (f *Fixture) IsSensor() bool { return f.isSensor }

// SetSensor flips the sensor flag and wakes the body so existing contacts
// are re-evaluated.
func (f *Fixture) SetSensor(sensor bool) {
	if sensor != f.isSensor {
		f.body.SetAwake(true)
		f.isSensor = sensor
		if f.body.world != nil {
			f.body.world.manager.RecalculateToiCandidacyFixture(f)
		}
	}
}

func (f *Fixture) FilterData() Filter { return f.filter }

// SetFilterData replaces the filter and re-runs filtering for this
// fixture's contacts.
func (f *Fixture) SetFilterData(filter Filter) {
	f.filter = filter
	f.Refilter()
}

// Refilter flags this fixture's contacts for re-filtering and touches its
// proxies so new pairs may be created.
func (f *Fixture) Refilter() {
	if f.body == nil {
		return
	}

	for _, c := range f.body.contacts {
		if c.fixtureA == f || c.fixtureB == f {
			c.FlagForFiltering()
		}
	}

	if f.body.world == nil {
		return
	}
	broadPhase := f.body.world.manager.broadPhase
	for i := range f.proxies {
		broadPhase.TouchProxy(f.proxies[i].ProxyID)
	}
	f.body.world.newContacts = true
}

func (f *Fixture) Friction() float64 { return f.friction }

func (f *Fixture) SetFriction(friction float64) { f.friction = friction }

func (f *Fixture) Restitution() float64 { return f.restitution }

func (f *Fixture) SetRestitution(restitution float64) { f.restitution = restitution }

func (f *Fixture) Density() float64 { return f.density }

func (f *Fixture) UserData() interface{} { return f.userData }

func (f *Fixture) SetUserData(data interface{}) { f.userData = data }

// ProxyCount returns the number of broad-phase proxies, one per shape
// child.
func (f *Fixture) ProxyCount() int { return len(f.proxies) }

// AABB returns the fixture's combined broad-phase AABB for a child.
func (f *Fixture) AABB(childIndex int) AABB {
	return f.proxies[childIndex].AABB
}

func (f *Fixture) createProxies(broadPhase *BroadPhase, xf Transform) {
	assert(len(f.proxies) == 0)

	childCount := f.shape.ChildCount()
	f.proxies = make([]FixtureProxy, childCount)

	for i := 0; i < childCount; i++ {
		proxy := &f.proxies[i]
		proxy.AABB = f.shape.ComputeAABB(xf, i)
		proxy.Fixture = f
		proxy.ChildIndex = i
		proxy.ProxyID = broadPhase.CreateProxy(proxy.AABB, proxy)
	}
}

func (f *Fixture) destroyProxies(broadPhase *BroadPhase) {
	for i := range f.proxies {
		broadPhase.DestroyProxy(f.proxies[i].ProxyID)
		f.proxies[i].ProxyID = NullProxy
	}
	f.proxies = nil
}

// synchronize recomputes the swept proxy AABBs and moves the proxies in
// the broad phase. Single-threaded variant; the parallel path goes through
// ContactManager.SynchronizeFixtures.
func (f *Fixture) synchronize(broadPhase *BroadPhase, xf1, xf2 Transform) {
	displacement := xf2.P.Sub(xf1.P)
	for i := range f.proxies {
		proxy := &f.proxies[i]

		aabb1 := f.shape.ComputeAABB(xf1, proxy.ChildIndex)
		aabb2 := f.shape.ComputeAABB(xf2, proxy.ChildIndex)
		proxy.AABB = aabb1.Combine(aabb2)

		broadPhase.MoveProxy(proxy.ProxyID, proxy.AABB, displacement)
	}
}
