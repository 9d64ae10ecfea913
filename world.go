package phys2d

import "github.com/setanarut/vec"

// WorldDef configures a world. Defs are reusable.
type WorldDef struct {
	Gravity vec.Vec2

	// Executor runs the parallel phases. SerialExecutor by default.
	Executor Executor

	// Index is the spatial index backing the broad phase. A dynamic AABB
	// tree by default.
	Index ProxyIndex

	// Deterministic selects the sorted finish variants, making contact
	// order and listener call order independent of worker scheduling.
	Deterministic bool

	// ReportMode selects island post-solve delivery. ReportDirect is only
	// honored with a single-worker executor.
	ReportMode ReportMode

	AllowSleeping bool
	WarmStarting  bool
}

func MakeWorldDef() WorldDef {
	return WorldDef{
		Gravity:       vec.Vec2{X: 0.0, Y: -10.0},
		Deterministic: true,
		ReportMode:    ReportBuffered,
		AllowSleeping: true,
		WarmStarting:  true,
	}
}

// World owns the bodies, the joint list, the contact manager and the
// step-scoped scratch allocators, and drives the parallel pipeline:
// find-new-contacts, collide, island solve, synchronize-fixtures, each
// followed by its single-threaded finish step after the executor barrier.
type World struct {
	manager  *ContactManager
	executor Executor

	gravity vec.Vec2

	bodies []*Body
	joints []Joint

	// One scratch allocator per worker; islands assigned to a worker
	// allocate and free in LIFO order.
	allocators []*StackAllocator

	islands []*Island
	moved   []*Body

	reportMode    ReportMode
	allowSleeping bool
	warmStarting  bool

	locked      bool
	newContacts bool

	bodySeq    uint64
	fixtureSeq uint64

	invDt0  float64
	profile Profile
}

func NewWorld(def WorldDef) *World {
	executor := def.Executor
	if executor == nil {
		executor = SerialExecutor{}
	}

	index := def.Index
	if index == nil {
		index = NewDynamicTree()
	}

	workers := executor.WorkerCount()

	reportMode := def.ReportMode
	if workers > 1 {
		// Direct delivery would call the ordered hooks concurrently.
		reportMode = ReportBuffered
	}

	w := &World{
		manager:       NewContactManager(index, workers),
		executor:      executor,
		gravity:       def.Gravity,
		allocators:    make([]*StackAllocator, workers),
		reportMode:    reportMode,
		allowSleeping: def.AllowSleeping,
		warmStarting:  def.WarmStarting,
	}
	for i := range w.allocators {
		w.allocators[i] = &StackAllocator{}
	}
	w.manager.SetDeterministic(def.Deterministic)
	return w
}

func (w *World) Gravity() vec.Vec2 { return w.gravity }

func (w *World) SetGravity(gravity vec.Vec2) { w.gravity = gravity }

func (w *World) IsLocked() bool { return w.locked }

func (w *World) Bodies() []*Body { return w.bodies }

func (w *World) BodyCount() int { return len(w.bodies) }

func (w *World) ContactManager() *ContactManager { return w.manager }

func (w *World) Profile() Profile { return w.profile }

func (w *World) SetContactListener(listener ContactListener) {
	w.manager.SetContactListener(listener)
}

func (w *World) SetContactFilter(filter ContactFilter) {
	w.manager.SetContactFilter(filter)
}

func (w *World) nextBodyID() uint64 {
	w.bodySeq++
	return w.bodySeq
}

func (w *World) nextFixtureID() uint64 {
	w.fixtureSeq++
	return w.fixtureSeq
}

// CreateBody adds a body per def. Must not be called during a step.
func (w *World) CreateBody(def *BodyDef) *Body {
	assert(!w.locked)

	b := &Body{
		id:              w.nextBodyID(),
		world:           w,
		bodyType:        def.Type,
		xf:              MakeTransform(def.Position, def.Angle),
		linearVelocity:  def.LinearVelocity,
		angularVelocity: def.AngularVelocity,
		linearDamping:   def.LinearDamping,
		angularDamping:  def.AngularDamping,
		gravityScale:    def.GravityScale,
		userData:        def.UserData,
	}

	b.sweep.C0 = b.xf.P
	b.sweep.C = b.xf.P
	b.sweep.A0 = def.Angle
	b.sweep.A = def.Angle

	if def.AllowSleep {
		b.flags |= bodyAutoSleepFlag
	}
	if def.Awake {
		b.flags |= bodyAwakeFlag
	}
	if def.Bullet {
		b.flags |= bodyBulletFlag
	}

	if def.Type == DynamicBody {
		b.mass = 1.0
		b.invMass = 1.0
	}

	w.bodies = append(w.bodies, b)
	return b
}

// DestroyBody removes the body with its joints, contacts and fixtures.
// Must not be called during a step.
func (w *World) DestroyBody(b *Body) {
	assert(!w.locked)
	assert(b.world == w)

	for len(b.joints) > 0 {
		w.RemoveJoint(b.joints[0].Joint)
	}

	for len(b.contacts) > 0 {
		w.manager.Destroy(b.contacts[0])
	}

	for _, f := range b.fixtures {
		f.destroyProxies(w.manager.broadPhase)
		f.body = nil
	}
	b.fixtures = nil

	for i, e := range w.bodies {
		if e == b {
			w.bodies = append(w.bodies[:i], w.bodies[i+1:]...)
			break
		}
	}
	b.world = nil
}

// AddJoint registers a joint and its edges. Contacts between the attached
// bodies are re-filtered if the joint forbids collision.
func (w *World) AddJoint(j Joint) {
	assert(!w.locked)

	bodyA := j.BodyA()
	bodyB := j.BodyB()

	bodyA.joints = append(bodyA.joints, JointEdge{Other: bodyB, Joint: j})
	bodyB.joints = append(bodyB.joints, JointEdge{Other: bodyA, Joint: j})

	w.joints = append(w.joints, j)

	if !j.CollideConnected() {
		flagJointContacts(bodyA, bodyB)
	}
}

// RemoveJoint unregisters the joint. Contacts between the attached bodies
// are re-filtered so a previously vetoed pair can collide again.
func (w *World) RemoveJoint(j Joint) {
	assert(!w.locked)

	bodyA := j.BodyA()
	bodyB := j.BodyB()

	removeJointEdge(&bodyA.joints, j)
	removeJointEdge(&bodyB.joints, j)

	for i, e := range w.joints {
		if e == j {
			w.joints = append(w.joints[:i], w.joints[i+1:]...)
			break
		}
	}

	if !j.CollideConnected() {
		flagJointContacts(bodyA, bodyB)
	}
}

// QueryAABB calls the callback for every fixture whose fat proxy overlaps
// the AABB. Return false to stop.
func (w *World) QueryAABB(aabb AABB, callback func(*Fixture) bool) {
	w.manager.broadPhase.Query(func(proxyID int) bool {
		proxy := w.manager.broadPhase.UserData(proxyID).(*FixtureProxy)
		return callback(proxy.Fixture)
	}, aabb)
}

// Step advances the simulation: discover pairs left by the previous step,
// update manifolds and deliver contact events, solve islands, then move
// the broad-phase proxies to the new transforms. Each parallel phase is
// fenced by its single-threaded finish call.
func (w *World) Step(dt float64, velocityIterations, positionIterations int) {
	assert(!w.locked)

	stepTimer := makeProfileTimer()
	w.profile = Profile{}

	w.locked = true
	defer func() { w.locked = false }()

	if w.newContacts {
		w.findNewContacts()
		w.newContacts = false
	}

	var step TimeStep
	step.Dt = dt
	if dt > 0.0 {
		step.InvDt = 1.0 / dt
	}
	step.DtRatio = w.invDt0 * dt
	step.VelocityIterations = velocityIterations
	step.PositionIterations = positionIterations
	step.WarmStarting = w.warmStarting

	timer := makeProfileTimer()
	w.collide()
	w.profile.Collide += timer.milliseconds()

	if dt > 0.0 {
		timer.reset()
		w.solve(step)
		w.profile.Solve += timer.milliseconds()
		w.invDt0 = step.InvDt
	}

	w.manager.FlushProfile(&w.profile)
	w.profile.Step += stepTimer.milliseconds()
}

func (w *World) findNewContacts() {
	timer := makeProfileTimer()

	n := w.manager.broadPhase.MoveCount()
	if n > 0 {
		w.executor.ForRange(n, w.manager.FindNewContacts)
	}
	w.manager.FinishFindNewContacts()

	w.profile.BroadphaseFindContacts += timer.milliseconds()
	w.profile.Broadphase += timer.milliseconds()
}

func (w *World) collide() {
	n := w.manager.ContactCount()
	if n > 0 {
		w.executor.ForRange(n, w.manager.Collide)
	}
	w.manager.FinishCollide()
}

func (w *World) solve(step TimeStep) {
	// Clear island membership.
	for _, b := range w.bodies {
		b.flags &^= bodyIslandFlag
	}
	for _, c := range w.manager.contacts {
		c.flags &^= contactIslandFlag
	}
	jointSeen := make(map[Joint]bool, len(w.joints))

	w.moved = w.moved[:0]
	islandCount := 0

	// Depth-first search over the constraint graph. Islands don't
	// propagate across static bodies, which keeps them small; the static
	// body's membership flag is cleared afterwards so it can join other
	// islands.
	stack := make([]*Body, 0, len(w.bodies))

	for _, seed := range w.bodies {
		if seed.flags&bodyIslandFlag != 0 {
			continue
		}
		if !seed.IsAwake() {
			continue
		}
		if seed.bodyType == StaticBody {
			continue
		}

		island := w.island(islandCount)
		stack = append(stack[:0], seed)
		seed.flags |= bodyIslandFlag

		for len(stack) > 0 {
			b := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			island.AddBody(b)

			if b.bodyType == StaticBody {
				continue
			}

			// Wake the body without resetting its sleep timer, then
			// refresh its contacts' activity bits.
			if !b.IsAwake() {
				b.flags |= bodyAwakeFlag
				w.manager.RecalculateSleeping(b)
			}

			for _, c := range b.contacts {
				if c.flags&contactIslandFlag != 0 {
					continue
				}
				if !c.IsEnabled() || !c.IsTouching() {
					continue
				}
				if c.fixtureA.isSensor || c.fixtureB.isSensor {
					continue
				}

				island.AddContact(c)
				c.flags |= contactIslandFlag

				other := c.fixtureA.body
				if other == b {
					other = c.fixtureB.body
				}
				if other.flags&bodyIslandFlag != 0 {
					continue
				}
				stack = append(stack, other)
				other.flags |= bodyIslandFlag
			}

			for i := range b.joints {
				je := b.joints[i]
				if jointSeen[je.Joint] {
					continue
				}

				island.AddJoint(je.Joint)
				jointSeen[je.Joint] = true

				if je.Other.flags&bodyIslandFlag != 0 {
					continue
				}
				stack = append(stack, je.Other)
				je.Other.flags |= bodyIslandFlag
			}
		}

		for _, b := range island.bodies {
			if b.bodyType == StaticBody {
				b.flags &^= bodyIslandFlag
			} else {
				w.moved = append(w.moved, b)
			}
		}

		islandCount++
	}

	// Solve islands. Workers own their allocator and post-solve buffer;
	// a static body shared between islands is read-only during this
	// phase.
	if islandCount > 0 {
		w.executor.ForRange(islandCount, func(begin, end int, threadID uint32) {
			allocator := w.allocators[threadID]
			postSolves := w.manager.postSolveBuffer(threadID)
			sleeps := w.manager.sleepBuffer(threadID)
			profile := &w.manager.perThread[threadID].profile

			for i := begin; i < end; i++ {
				w.islands[i].Solve(profile, step, w.gravity, allocator,
					w.manager.contactListener, threadID, w.allowSleeping, postSolves, sleeps)
			}
		})
	}
	w.manager.FinishSolve()

	for _, a := range w.allocators {
		a.Reset()
	}

	// Move the broad-phase proxies to the post-solve transforms.
	timer := makeProfileTimer()
	if len(w.moved) > 0 {
		moved := w.moved
		w.executor.ForRange(len(moved), func(begin, end int, threadID uint32) {
			w.manager.SynchronizeFixtures(moved, begin, end, threadID)
		})
	}
	w.manager.FinishSynchronizeFixtures()
	w.profile.BroadphaseSyncFixtures += timer.milliseconds()
	w.profile.Broadphase += timer.milliseconds()

	// The proxy moves feed the next step's pair discovery.
	if w.manager.broadPhase.MoveCount() > 0 {
		w.newContacts = true
	}
}

// island returns the i-th pooled island, cleared for reuse.
func (w *World) island(i int) *Island {
	for len(w.islands) <= i {
		isl := MakeIsland(w.reportMode)
		w.islands = append(w.islands, &isl)
	}
	isl := w.islands[i]
	isl.Clear()
	return isl
}

func flagJointContacts(bodyA, bodyB *Body) {
	for _, c := range bodyA.contacts {
		other := c.fixtureA.body
		if other == bodyA {
			other = c.fixtureB.body
		}
		if other == bodyB {
			c.FlagForFiltering()
		}
	}
}

func removeJointEdge(edges *[]JointEdge, j Joint) {
	s := *edges
	for i := range s {
		if s[i].Joint == j {
			*edges = append(s[:i], s[i+1:]...)
			return
		}
	}
}
