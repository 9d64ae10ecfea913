package phys2d

import (
	"sort"

	"github.com/setanarut/vec"
)

// The collide and solve phases run on worker goroutines that must not
// mutate shared structures or call user code out of order. Each worker
// records its side effects in these buffers; the single-threaded finish
// steps sort them into a deterministic order and apply them.

type deferredContactCreate struct {
	fixtureA, fixtureB *Fixture
	indexA, indexB     int
}

func (d deferredContactCreate) key() contactKey {
	return contactKey{
		fixtureA: d.fixtureA.id,
		indexA:   d.indexA,
		fixtureB: d.fixtureB.id,
		indexB:   d.indexB,
	}
}

type deferredMoveProxy struct {
	aabb         AABB
	displacement vec.Vec2
	proxyID      int
}

type deferredPreSolve struct {
	contact     *Contact
	oldManifold Manifold
}

type deferredPostSolve struct {
	contact *Contact
	impulse ContactImpulse
}

// perThreadData holds one worker's deferred buffers. Padded so adjacent
// workers' buffers do not share cache lines.
type perThreadData struct {
	begins     []*Contact
	ends       []*Contact
	preSolves  []deferredPreSolve
	postSolves []deferredPostSolve
	awakes     []*Body
	sleeps     []*Body
	destroys   []*Contact
	creates    []deferredContactCreate
	moves      []deferredMoveProxy

	profile Profile

	_ [64]byte
}

func sortContactsByKey(contacts []*Contact) {
	sort.SliceStable(contacts, func(i, j int) bool {
		return contacts[i].key().less(contacts[j].key())
	})
}

func sortCreates(creates []deferredContactCreate) {
	sort.SliceStable(creates, func(i, j int) bool {
		return creates[i].key().less(creates[j].key())
	})
}

func sortPreSolves(preSolves []deferredPreSolve) {
	sort.SliceStable(preSolves, func(i, j int) bool {
		return preSolves[i].contact.key().less(preSolves[j].contact.key())
	})
}

func sortPostSolves(postSolves []deferredPostSolve) {
	sort.SliceStable(postSolves, func(i, j int) bool {
		return postSolves[i].contact.key().less(postSolves[j].contact.key())
	})
}

func sortMoves(moves []deferredMoveProxy) {
	sort.SliceStable(moves, func(i, j int) bool {
		return moves[i].proxyID < moves[j].proxyID
	})
}

func sortBodiesByID(bodies []*Body) {
	sort.SliceStable(bodies, func(i, j int) bool {
		return bodies[i].id < bodies[j].id
	})
}
