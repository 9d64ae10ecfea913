package phys2d

// ContactFilter decides whether contact calculations should be performed
// between two fixtures. For performance this is only consulted when the
// fat AABBs begin to overlap.
//
// ShouldCollide is called concurrently from pair-discovery tasks; it must
// not mutate shared state. threadID is unique per worker and less than the
// executor's worker count.
type ContactFilter interface {
	ShouldCollide(fixtureA, fixtureB *Fixture, threadID uint32) bool
}

// DefaultContactFilter implements the standard category/mask/group rules.
type DefaultContactFilter struct{}

func (DefaultContactFilter) ShouldCollide(fixtureA, fixtureB *Fixture, threadID uint32) bool {
	filterA := fixtureA.FilterData()
	filterB := fixtureB.FilterData()

	if filterA.GroupIndex == filterB.GroupIndex && filterA.GroupIndex != 0 {
		return filterA.GroupIndex > 0
	}

	return filterA.MaskBits&filterB.CategoryBits != 0 &&
		filterA.CategoryBits&filterB.MaskBits != 0
}

// ContactListener receives contact lifecycle events.
//
// The four immediate hooks run concurrently from worker tasks, one call
// per event as it is produced; they must be pure and reentrant, and their
// boolean result gates whether the corresponding ordered hook fires. The
// four ordered hooks run from a single thread after the merge, strictly in
// the deterministic sorted order when the deterministic finish path is
// selected.
type ContactListener interface {
	BeginContactImmediate(contact *Contact, threadID uint32) bool
	EndContactImmediate(contact *Contact, threadID uint32) bool
	PreSolveImmediate(contact *Contact, oldManifold *Manifold, threadID uint32) bool
	PostSolveImmediate(contact *Contact, impulse *ContactImpulse, threadID uint32) bool

	BeginContact(contact *Contact)
	EndContact(contact *Contact)
	PreSolve(contact *Contact, oldManifold *Manifold)
	PostSolve(contact *Contact, impulse *ContactImpulse)
}

// DefaultContactListener admits every event and ignores the ordered hooks.
// Embed it to override selected methods.
type DefaultContactListener struct{}

func (DefaultContactListener) BeginContactImmediate(*Contact, uint32) bool { return true }
func (DefaultContactListener) EndContactImmediate(*Contact, uint32) bool   { return true }
func (DefaultContactListener) PreSolveImmediate(*Contact, *Manifold, uint32) bool {
	return true
}
func (DefaultContactListener) PostSolveImmediate(*Contact, *ContactImpulse, uint32) bool {
	return true
}
func (DefaultContactListener) BeginContact(*Contact)               {}
func (DefaultContactListener) EndContact(*Contact)                 {}
func (DefaultContactListener) PreSolve(*Contact, *Manifold)        {}
func (DefaultContactListener) PostSolve(*Contact, *ContactImpulse) {}
