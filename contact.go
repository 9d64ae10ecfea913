package phys2d

import "math"

const (
	// contactEnabledFlag can be cleared by PreSolve to disable a contact
	// for one step.
	contactEnabledFlag uint32 = 0x0001

	// contactTouchingFlag is set while the manifold has points (or the
	// sensor pair overlaps).
	contactTouchingFlag uint32 = 0x0002

	// contactFilterFlag marks the contact for a filter re-check next
	// collide.
	contactFilterFlag uint32 = 0x0004

	// contactToiFlag marks the contact as a continuous-collision
	// candidate. Candidates are kept partitioned at the front of the
	// manager's contact array.
	contactToiFlag uint32 = 0x0008

	// contactActiveFlag is set while either body is awake and at least
	// one is non-static. Inactive contacts are skipped by collide.
	contactActiveFlag uint32 = 0x0010

	// contactIslandFlag marks membership during island flood fill.
	contactIslandFlag uint32 = 0x0020
)

// contactKey orders contacts by the identities of their fixtures and
// child indices. Identities are creation-ordered, so sorting by key
// yields the same order on every run regardless of thread scheduling.
type contactKey struct {
	fixtureA uint64
	indexA   int
	fixtureB uint64
	indexB   int
}

func (k contactKey) less(other contactKey) bool {
	if k.fixtureA != other.fixtureA {
		return k.fixtureA < other.fixtureA
	}
	if k.indexA != other.indexA {
		return k.indexA < other.indexA
	}
	if k.fixtureB != other.fixtureB {
		return k.fixtureB < other.fixtureB
	}
	return k.indexB < other.indexB
}

// MixFriction blends fixture frictions geometrically so a low value
// drags the result down.
func MixFriction(friction1, friction2 float64) float64 {
	return math.Sqrt(friction1 * friction2)
}

// MixRestitution takes the larger restitution so bouncy surfaces bounce
// against anything.
func MixRestitution(restitution1, restitution2 float64) float64 {
	return math.Max(restitution1, restitution2)
}

// Contact tracks a potentially colliding fixture pair (one child each).
// Contacts are created and destroyed only by the manager's
// single-threaded finish steps; workers read and update them in place.
type Contact struct {
	flags uint32

	fixtureA *Fixture
	fixtureB *Fixture

	indexA int
	indexB int

	manifold Manifold

	friction     float64
	restitution  float64
	tangentSpeed float64

	// Position in the manager's flat contact array; maintained by the
	// manager so TOI partition swaps are O(1).
	managerIndex int

	toiCount int
	toi      float64
}

func (c *Contact) key() contactKey {
	return contactKey{
		fixtureA: c.fixtureA.id,
		indexA:   c.indexA,
		fixtureB: c.fixtureB.id,
		indexB:   c.indexB,
	}
}

// Manifold returns the contact manifold. Do not modify unless you
// understand the solver's warm starting.
func (c *Contact) Manifold() *Manifold { return &c.manifold }

// WorldManifold computes the world-space manifold.
func (c *Contact) WorldManifold() WorldManifold {
	bodyA := c.fixtureA.body
	bodyB := c.fixtureB.body
	var wm WorldManifold
	wm.Initialize(&c.manifold, bodyA.xf, c.fixtureA.shape.Radius(), bodyB.xf, c.fixtureB.shape.Radius())
	return wm
}

func (c *Contact) IsTouching() bool {
	return c.flags&contactTouchingFlag != 0
}

// SetEnabled disables or re-enables the contact for the current step
// only; the flag is reset each update.
func (c *Contact) SetEnabled(flag bool) {
	if flag {
		c.flags |= contactEnabledFlag
	} else {
		c.flags &^= contactEnabledFlag
	}
}

func (c *Contact) IsEnabled() bool {
	return c.flags&contactEnabledFlag != 0
}

func (c *Contact) FixtureA() *Fixture { return c.fixtureA }

func (c *Contact) FixtureB() *Fixture { return c.fixtureB }

func (c *Contact) ChildIndexA() int { return c.indexA }

func (c *Contact) ChildIndexB() int { return c.indexB }

func (c *Contact) Friction() float64 { return c.friction }

func (c *Contact) SetFriction(friction float64) { c.friction = friction }

func (c *Contact) ResetFriction() {
	c.friction = MixFriction(c.fixtureA.friction, c.fixtureB.friction)
}

func (c *Contact) Restitution() float64 { return c.restitution }

func (c *Contact) SetRestitution(restitution float64) { c.restitution = restitution }

func (c *Contact) ResetRestitution() {
	c.restitution = MixRestitution(c.fixtureA.restitution, c.fixtureB.restitution)
}

func (c *Contact) TangentSpeed() float64 { return c.tangentSpeed }

func (c *Contact) SetTangentSpeed(speed float64) { c.tangentSpeed = speed }

// FlagForFiltering schedules a filter re-check on the next collide.
func (c *Contact) FlagForFiltering() {
	c.flags |= contactFilterFlag
}

func (c *Contact) isActive() bool {
	return c.flags&contactActiveFlag != 0
}

// IsToiCandidate reports whether the contact sits in the continuous-
// collision partition of the manager's contact collection.
func (c *Contact) IsToiCandidate() bool {
	return c.flags&contactToiFlag != 0
}

// Toi and ToiCount cache the time-of-impact state for an external
// continuous-collision driver.
func (c *Contact) Toi() float64 { return c.toi }

func (c *Contact) SetToi(toi float64) { c.toi = toi }

func (c *Contact) ToiCount() int { return c.toiCount }

func (c *Contact) SetToiCount(n int) { c.toiCount = n }

// update evaluates the narrow phase and diffs the manifold against the
// previous step. It runs concurrently across contacts: listener calls go
// through the immediate hooks, and anything the immediate hooks admit is
// pushed onto the worker's deferred buffers for ordered delivery. Wakes
// on touch transitions are deferred too.
func (c *Contact) update(mgr *ContactManager, td *perThreadData, threadID uint32) {
	listener := mgr.contactListener

	oldManifold := c.manifold

	// Re-enable this contact.
	c.flags |= contactEnabledFlag

	bodyA := c.fixtureA.body
	bodyB := c.fixtureB.body
	xfA := bodyA.xf
	xfB := bodyB.xf

	wasTouching := c.flags&contactTouchingFlag != 0
	touching := false

	sensor := c.fixtureA.isSensor || c.fixtureB.isSensor
	if sensor {
		touching = mgr.narrowPhase.TestOverlap(
			c.fixtureA.shape, c.indexA, xfA,
			c.fixtureB.shape, c.indexB, xfB)

		// Sensors don't generate manifolds.
		c.manifold.PointCount = 0
	} else {
		mgr.narrowPhase.Evaluate(&c.manifold,
			c.fixtureA.shape, c.indexA, xfA,
			c.fixtureB.shape, c.indexB, xfB)
		touching = c.manifold.PointCount > 0

		// Match old contact ids to new contact ids and copy the stored
		// impulses for warm starting.
		for i := 0; i < c.manifold.PointCount; i++ {
			mp2 := &c.manifold.Points[i]
			mp2.NormalImpulse = 0.0
			mp2.TangentImpulse = 0.0

			for j := 0; j < oldManifold.PointCount; j++ {
				mp1 := &oldManifold.Points[j]
				if mp1.ID.Key() == mp2.ID.Key() {
					mp2.NormalImpulse = mp1.NormalImpulse
					mp2.TangentImpulse = mp1.TangentImpulse
					break
				}
			}
		}
	}

	if touching {
		c.flags |= contactTouchingFlag
	} else {
		c.flags &^= contactTouchingFlag
	}

	if touching != wasTouching {
		td.awakes = append(td.awakes, bodyA, bodyB)
	}

	if !wasTouching && touching && listener != nil {
		if listener.BeginContactImmediate(c, threadID) {
			td.begins = append(td.begins, c)
		}
	}

	if wasTouching && !touching && listener != nil {
		if listener.EndContactImmediate(c, threadID) {
			td.ends = append(td.ends, c)
		}
	}

	if !sensor && touching && listener != nil {
		if listener.PreSolveImmediate(c, &oldManifold, threadID) {
			td.preSolves = append(td.preSolves, deferredPreSolve{contact: c, oldManifold: oldManifold})
		}
	}
}
