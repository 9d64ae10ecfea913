package phys2d

// ContactManager owns the broad phase, the global contact collection and
// the per-worker deferred buffers. Parallel entry points (FindNewContacts,
// Collide, SynchronizeFixtures) operate on disjoint ranges and record all
// side effects into the calling worker's buffers; the matching Finish*
// methods run single-threaded after the barrier, merge the buffers and
// apply them. With determinism on, every merge is stable-sorted on an
// identity-derived key first, so the resulting contact order and listener
// call order do not depend on worker count or scheduling.
type ContactManager struct {
	broadPhase *BroadPhase

	contactFilter   ContactFilter
	contactListener ContactListener
	narrowPhase     NarrowPhase

	// Flat contact collection. Indices [0,toiCount) hold continuous-
	// collision candidates; the partition is maintained by O(1) boundary
	// swaps.
	contacts []*Contact
	toiCount int

	perThread []perThreadData

	// Merge scratch for the finish steps, reused across steps.
	mergedBodies   []*Body
	mergedContacts []*Contact
	mergedCreates  []deferredContactCreate
	mergedPre      []deferredPreSolve
	mergedPost     []deferredPostSolve
	mergedMoves    []deferredMoveProxy

	// deferCreates routes AddPair through the create buffers instead of
	// constructing contacts inline. Required whenever pair discovery runs
	// on more than one worker.
	deferCreates bool

	deterministic bool
}

func NewContactManager(index ProxyIndex, workers int) *ContactManager {
	if workers < 1 {
		workers = 1
	}
	return &ContactManager{
		broadPhase:      NewBroadPhase(index, workers),
		contactFilter:   DefaultContactFilter{},
		contactListener: DefaultContactListener{},
		narrowPhase:     NewNarrowPhase(),
		perThread:       make([]perThreadData, workers),
		deferCreates:    workers > 1,
		deterministic:   true,
	}
}

func (m *ContactManager) BroadPhase() *BroadPhase { return m.broadPhase }

func (m *ContactManager) Contacts() []*Contact { return m.contacts }

func (m *ContactManager) ContactCount() int { return len(m.contacts) }

// ToiBegin returns the continuous-collision candidate partition.
func (m *ContactManager) ToiBegin() []*Contact { return m.contacts[:m.toiCount] }

func (m *ContactManager) ToiCount() int { return m.toiCount }

// NonToiBegin returns the partition of contacts that never need
// sub-stepping.
func (m *ContactManager) NonToiBegin() []*Contact { return m.contacts[m.toiCount:] }

func (m *ContactManager) NonToiCount() int { return len(m.contacts) - m.toiCount }

func (m *ContactManager) SetContactFilter(filter ContactFilter) { m.contactFilter = filter }

func (m *ContactManager) SetContactListener(listener ContactListener) { m.contactListener = listener }

func (m *ContactManager) SetDeterministic(flag bool) { m.deterministic = flag }

// AddPair is the broad-phase callback. It resolves the proxy user data to
// fixture/child identities, applies the same-body, duplicate and filter
// checks, and either constructs the contact inline or defers creation to
// FinishFindNewContacts.
func (m *ContactManager) AddPair(userDataA, userDataB interface{}, threadID uint32) {
	proxyA := userDataA.(*FixtureProxy)
	proxyB := userDataB.(*FixtureProxy)

	fixtureA := proxyA.Fixture
	fixtureB := proxyB.Fixture
	indexA := proxyA.ChildIndex
	indexB := proxyB.ChildIndex

	bodyA := fixtureA.body
	bodyB := fixtureB.body

	if bodyA == bodyB {
		return
	}

	if m.contactExists(fixtureA, indexA, fixtureB, indexB) {
		return
	}

	if !bodyA.ShouldCollide(bodyB) {
		return
	}

	if m.contactFilter != nil && !m.contactFilter.ShouldCollide(fixtureA, fixtureB, threadID) {
		return
	}

	if m.deferCreates {
		td := &m.perThread[threadID]
		td.creates = append(td.creates, deferredContactCreate{
			fixtureA: fixtureA, fixtureB: fixtureB,
			indexA: indexA, indexB: indexB,
		})
		return
	}

	m.createContact(fixtureA, indexA, fixtureB, indexB)
}

// FindNewContacts runs pair discovery over a sub-range of the broad-phase
// move buffer. Safe to call concurrently over disjoint ranges.
func (m *ContactManager) FindNewContacts(moveBegin, moveEnd int, threadID uint32) {
	m.broadPhase.UpdatePairs(moveBegin, moveEnd, m, threadID)
}

// FinishFindNewContacts merges the per-worker create buffers and
// materializes contacts. Single-threaded. Each record is re-checked for an
// existing contact: the same pair can be discovered by two workers whose
// ranges both contain one of its proxies.
func (m *ContactManager) FinishFindNewContacts() {
	m.mergedCreates = m.mergedCreates[:0]
	for i := range m.perThread {
		td := &m.perThread[i]
		m.mergedCreates = append(m.mergedCreates, td.creates...)
		td.creates = td.creates[:0]
	}
	if m.deterministic {
		sortCreates(m.mergedCreates)
	}

	for _, dc := range m.mergedCreates {
		if m.contactExists(dc.fixtureA, dc.indexA, dc.fixtureB, dc.indexB) {
			continue
		}
		m.createContact(dc.fixtureA, dc.indexA, dc.fixtureB, dc.indexB)
	}

	m.broadPhase.ResetBuffers()
}

// Collide updates a sub-range of the flat contact collection. Filter
// re-checks and AABB separation produce deferred destroy records; manifold
// updates produce begin/end/pre-solve records. Safe to call concurrently
// over disjoint ranges.
func (m *ContactManager) Collide(begin, end int, threadID uint32) {
	td := &m.perThread[threadID]

	for i := begin; i < end; i++ {
		c := m.contacts[i]

		fixtureA := c.fixtureA
		fixtureB := c.fixtureB
		bodyA := fixtureA.body
		bodyB := fixtureB.body

		if c.flags&contactFilterFlag != 0 {
			c.flags &^= contactFilterFlag

			if !bodyA.ShouldCollide(bodyB) {
				td.destroys = append(td.destroys, c)
				continue
			}
			if m.contactFilter != nil && !m.contactFilter.ShouldCollide(fixtureA, fixtureB, threadID) {
				td.destroys = append(td.destroys, c)
				continue
			}
		}

		if !c.isActive() {
			continue
		}

		proxyIDA := fixtureA.proxies[c.indexA].ProxyID
		proxyIDB := fixtureB.proxies[c.indexB].ProxyID
		if !m.broadPhase.TestOverlap(proxyIDA, proxyIDB) {
			// Fat AABBs separated; the contact ceases to exist.
			td.destroys = append(td.destroys, c)
			continue
		}

		c.update(m, td, threadID)
	}
}

// FinishCollide merges the per-worker buffers and applies them: wakes,
// then ordered begin/end/pre-solve callbacks, then destroys. Each kind is
// merged across all workers before its sort, so the callback order is the
// same no matter how the contact ranges were split. Destroying last keeps
// the callbacks operating on live contacts. Single-threaded.
func (m *ContactManager) FinishCollide() {
	listener := m.contactListener

	m.mergedBodies = m.mergedBodies[:0]
	for i := range m.perThread {
		td := &m.perThread[i]
		m.mergedBodies = append(m.mergedBodies, td.awakes...)
		td.awakes = td.awakes[:0]
	}
	if m.deterministic {
		sortBodiesByID(m.mergedBodies)
	}
	for _, b := range m.mergedBodies {
		b.SetAwake(true)
	}

	m.mergedContacts = m.mergedContacts[:0]
	for i := range m.perThread {
		td := &m.perThread[i]
		m.mergedContacts = append(m.mergedContacts, td.begins...)
		td.begins = td.begins[:0]
	}
	if m.deterministic {
		sortContactsByKey(m.mergedContacts)
	}
	if listener != nil {
		for _, c := range m.mergedContacts {
			listener.BeginContact(c)
		}
	}

	m.mergedContacts = m.mergedContacts[:0]
	for i := range m.perThread {
		td := &m.perThread[i]
		m.mergedContacts = append(m.mergedContacts, td.ends...)
		td.ends = td.ends[:0]
	}
	if m.deterministic {
		sortContactsByKey(m.mergedContacts)
	}
	if listener != nil {
		for _, c := range m.mergedContacts {
			listener.EndContact(c)
		}
	}

	m.mergedPre = m.mergedPre[:0]
	for i := range m.perThread {
		td := &m.perThread[i]
		m.mergedPre = append(m.mergedPre, td.preSolves...)
		td.preSolves = td.preSolves[:0]
	}
	if m.deterministic {
		sortPreSolves(m.mergedPre)
	}
	if listener != nil {
		for j := range m.mergedPre {
			listener.PreSolve(m.mergedPre[j].contact, &m.mergedPre[j].oldManifold)
		}
	}

	m.mergedContacts = m.mergedContacts[:0]
	for i := range m.perThread {
		td := &m.perThread[i]
		m.mergedContacts = append(m.mergedContacts, td.destroys...)
		td.destroys = td.destroys[:0]
	}
	if m.deterministic {
		sortContactsByKey(m.mergedContacts)
	}
	for _, c := range m.mergedContacts {
		m.Destroy(c)
	}
}

// SynchronizeFixtures recomputes swept AABBs for a sub-range of moved
// bodies and buffers the proxy moves that the index would actually act on.
// The index itself is only read here; the moves are applied after the
// barrier. Safe to call concurrently over disjoint ranges.
func (m *ContactManager) SynchronizeFixtures(bodies []*Body, begin, end int, threadID uint32) {
	td := &m.perThread[threadID]

	for i := begin; i < end; i++ {
		b := bodies[i]

		var xf1 Transform
		xf1.Q = MakeRot(b.sweep.A0)
		xf1.P = b.sweep.C0.Sub(xf1.Q.Apply(b.sweep.LocalCenter))

		displacement := b.sweep.C.Sub(b.sweep.C0)

		for _, f := range b.fixtures {
			for j := range f.proxies {
				proxy := &f.proxies[j]

				aabb1 := f.shape.ComputeAABB(xf1, proxy.ChildIndex)
				aabb2 := f.shape.ComputeAABB(b.xf, proxy.ChildIndex)
				proxy.AABB = aabb1.Combine(aabb2)

				if m.broadPhase.WouldMove(proxy.ProxyID, proxy.AABB) {
					td.moves = append(td.moves, deferredMoveProxy{
						aabb:         proxy.AABB,
						displacement: displacement,
						proxyID:      proxy.ProxyID,
					})
				}
			}
		}
	}
}

// FinishSynchronizeFixtures applies the buffered proxy moves.
// Single-threaded.
func (m *ContactManager) FinishSynchronizeFixtures() {
	m.mergedMoves = m.mergedMoves[:0]
	for i := range m.perThread {
		td := &m.perThread[i]
		m.mergedMoves = append(m.mergedMoves, td.moves...)
		td.moves = td.moves[:0]
	}
	if m.deterministic {
		sortMoves(m.mergedMoves)
	}

	for _, mv := range m.mergedMoves {
		m.broadPhase.MoveProxy(mv.proxyID, mv.aabb, mv.displacement)
	}
}

// FinishSolve delivers the post-solve records buffered by island solving,
// then puts the bodies whose islands decided to sleep to sleep. SetAwake
// mutates contact flags that neighboring islands read, so the transition
// is deferred here. Single-threaded.
func (m *ContactManager) FinishSolve() {
	listener := m.contactListener

	m.mergedPost = m.mergedPost[:0]
	for i := range m.perThread {
		td := &m.perThread[i]
		m.mergedPost = append(m.mergedPost, td.postSolves...)
		td.postSolves = td.postSolves[:0]
	}
	if m.deterministic {
		sortPostSolves(m.mergedPost)
	}

	if listener != nil {
		for j := range m.mergedPost {
			listener.PostSolve(m.mergedPost[j].contact, &m.mergedPost[j].impulse)
		}
	}

	m.mergedBodies = m.mergedBodies[:0]
	for i := range m.perThread {
		td := &m.perThread[i]
		m.mergedBodies = append(m.mergedBodies, td.sleeps...)
		td.sleeps = td.sleeps[:0]
	}
	if m.deterministic {
		sortBodiesByID(m.mergedBodies)
	}
	for _, b := range m.mergedBodies {
		b.SetAwake(false)
	}
}

// postSolveBuffer returns the worker's buffer for island post-solve
// records.
func (m *ContactManager) postSolveBuffer(threadID uint32) *[]deferredPostSolve {
	return &m.perThread[threadID].postSolves
}

// sleepBuffer returns the worker's buffer for island sleep decisions.
func (m *ContactManager) sleepBuffer(threadID uint32) *[]*Body {
	return &m.perThread[threadID].sleeps
}

// Destroy fires EndContact when the contact was touching, unlinks the
// contact from both bodies and removes it from the flat collection while
// preserving the candidate partition. Single-threaded only.
func (m *ContactManager) Destroy(c *Contact) {
	if m.contactListener != nil && c.IsTouching() {
		m.contactListener.EndContact(c)
	}

	removeContact(&c.fixtureA.body.contacts, c)
	removeContact(&c.fixtureB.body.contacts, c)

	i := c.managerIndex
	if i < m.toiCount {
		m.swapContacts(i, m.toiCount-1)
		m.toiCount--
		i = m.toiCount
	}
	last := len(m.contacts) - 1
	m.swapContacts(i, last)
	m.contacts[last] = nil
	m.contacts = m.contacts[:last]
}

// RecalculateToiCandidacyContact re-evaluates one contact and moves it
// across the partition boundary if needed.
func (m *ContactManager) RecalculateToiCandidacyContact(c *Contact) {
	candidate := toiCandidate(c)

	if candidate == (c.flags&contactToiFlag != 0) {
		return
	}

	if candidate {
		c.flags |= contactToiFlag
		m.swapContacts(c.managerIndex, m.toiCount)
		m.toiCount++
	} else {
		c.flags &^= contactToiFlag
		m.swapContacts(c.managerIndex, m.toiCount-1)
		m.toiCount--
	}
}

// RecalculateToiCandidacyBody re-evaluates every contact on the body,
// after bullet or type changes.
func (m *ContactManager) RecalculateToiCandidacyBody(b *Body) {
	for _, c := range b.contacts {
		m.RecalculateToiCandidacyContact(c)
	}
}

// RecalculateToiCandidacyFixture re-evaluates the contacts involving the
// fixture, after sensor changes.
func (m *ContactManager) RecalculateToiCandidacyFixture(f *Fixture) {
	for _, c := range f.body.contacts {
		if c.fixtureA == f || c.fixtureB == f {
			m.RecalculateToiCandidacyContact(c)
		}
	}
}

// RecalculateSleeping refreshes the active flag on the body's contacts
// when its sleep state transitions, so Collide's activity filter stays a
// single bit test.
func (m *ContactManager) RecalculateSleeping(b *Body) {
	for _, c := range b.contacts {
		if contactActive(c) {
			c.flags |= contactActiveFlag
		} else {
			c.flags &^= contactActiveFlag
		}
	}
}

// FlushProfile accumulates and zeroes the per-worker profiles.
func (m *ContactManager) FlushProfile(dest *Profile) {
	for i := range m.perThread {
		AddProfile(dest, &m.perThread[i].profile, 1.0)
		m.perThread[i].profile = Profile{}
	}
}

func (m *ContactManager) contactExists(fixtureA *Fixture, indexA int, fixtureB *Fixture, indexB int) bool {
	// Scan whichever body carries fewer contacts.
	edges := fixtureA.body.contacts
	if len(fixtureB.body.contacts) < len(edges) {
		edges = fixtureB.body.contacts
	}

	for _, c := range edges {
		if c.fixtureA == fixtureA && c.fixtureB == fixtureB &&
			c.indexA == indexA && c.indexB == indexB {
			return true
		}
		if c.fixtureA == fixtureB && c.fixtureB == fixtureA &&
			c.indexA == indexB && c.indexB == indexA {
			return true
		}
	}
	return false
}

// createContact materializes a contact, normalizing the fixture order so
// narrow-phase dispatch and the identity key are stable: the shape with
// the higher type goes in slot A, ties broken by creation id. Returns nil
// for pairs the narrow phase has no evaluator for.
func (m *ContactManager) createContact(fixtureA *Fixture, indexA int, fixtureB *Fixture, indexB int) *Contact {
	// Chain segments have no volume, so chain-chain pairs never produce a
	// manifold.
	if fixtureA.shape.Type() == ShapeChain && fixtureB.shape.Type() == ShapeChain {
		return nil
	}

	if fixtureA.shape.Type() < fixtureB.shape.Type() ||
		(fixtureA.shape.Type() == fixtureB.shape.Type() && fixtureA.id > fixtureB.id) {
		fixtureA, fixtureB = fixtureB, fixtureA
		indexA, indexB = indexB, indexA
	}

	c := &Contact{
		flags:       contactEnabledFlag,
		fixtureA:    fixtureA,
		fixtureB:    fixtureB,
		indexA:      indexA,
		indexB:      indexB,
		friction:    MixFriction(fixtureA.friction, fixtureB.friction),
		restitution: MixRestitution(fixtureA.restitution, fixtureB.restitution),
	}

	if contactActive(c) {
		c.flags |= contactActiveFlag
	}

	c.managerIndex = len(m.contacts)
	m.contacts = append(m.contacts, c)

	if toiCandidate(c) {
		c.flags |= contactToiFlag
		m.swapContacts(c.managerIndex, m.toiCount)
		m.toiCount++
	}

	fixtureA.body.contacts = append(fixtureA.body.contacts, c)
	fixtureB.body.contacts = append(fixtureB.body.contacts, c)

	return c
}

func (m *ContactManager) swapContacts(i, j int) {
	if i == j {
		return
	}
	m.contacts[i], m.contacts[j] = m.contacts[j], m.contacts[i]
	m.contacts[i].managerIndex = i
	m.contacts[j].managerIndex = j
}

// toiCandidate: non-sensor contacts where either body is a bullet or
// either body is non-dynamic need continuous collision.
func toiCandidate(c *Contact) bool {
	if c.fixtureA.isSensor || c.fixtureB.isSensor {
		return false
	}
	bodyA := c.fixtureA.body
	bodyB := c.fixtureB.body
	return bodyA.IsBullet() || bodyB.IsBullet() ||
		bodyA.bodyType != DynamicBody || bodyB.bodyType != DynamicBody
}

func contactActive(c *Contact) bool {
	bodyA := c.fixtureA.body
	bodyB := c.fixtureB.body
	awakeA := bodyA.IsAwake() && bodyA.bodyType != StaticBody
	awakeB := bodyB.IsAwake() && bodyB.bodyType != StaticBody
	return awakeA || awakeB
}

func removeContact(contacts *[]*Contact, c *Contact) {
	s := *contacts
	for i, e := range s {
		if e == c {
			*contacts = append(s[:i], s[i+1:]...)
			return
		}
	}
}
