package phys2d

import (
	"sort"

	"github.com/setanarut/vec"
)

// AddPairCallback consumes candidate overlap pairs found by UpdatePairs.
type AddPairCallback interface {
	AddPair(userDataA, userDataB interface{}, threadID uint32)
}

// Pair is a candidate overlap between two proxies, with A < B. Pairs exist
// only within one UpdatePairs call and are never stored.
type Pair struct {
	ProxyIDA int
	ProxyIDB int
}

func pairLessThan(p1, p2 Pair) bool {
	if p1.ProxyIDA < p2.ProxyIDA {
		return true
	}
	if p1.ProxyIDA == p2.ProxyIDA {
		return p1.ProxyIDB < p2.ProxyIDB
	}
	return false
}

type broadPhaseThreadData struct {
	pairBuffer   []Pair
	queryProxyID int
	moved        []bool

	// Keeps workers off each other's cache lines.
	_ [64]byte
}

// BroadPhase computes candidate pairs from proxies that moved this step.
// It does not persist pairs; it reports potentially new pairs and leaves
// overlap tracking to the client.
//
// UpdatePairs may run from multiple workers over disjoint ranges of the
// move buffer, each with a distinct threadID. All other mutating calls are
// single-threaded.
type BroadPhase struct {
	index ProxyIndex

	proxyCount int
	moveBuffer []int

	// moved[id] is true while id sits in the move buffer. It dedups
	// buffer entries and lets UpdatePairs report a pair of two moved
	// proxies exactly once even when they land in different ranges.
	moved []bool

	perThread []broadPhaseThreadData
}

// NewBroadPhase wraps a ProxyIndex with pair bookkeeping for the given
// worker count.
func NewBroadPhase(index ProxyIndex, workers int) *BroadPhase {
	assert(workers > 0)
	bp := &BroadPhase{
		index:     index,
		perThread: make([]broadPhaseThreadData, workers),
	}
	for i := range bp.perThread {
		bp.perThread[i].queryProxyID = NullProxy
	}
	return bp
}

// Index returns the underlying spatial index.
func (bp *BroadPhase) Index() ProxyIndex {
	return bp.index
}

// CreateProxy registers a proxy and buffers it as moved so its pairs are
// reported by the next UpdatePairs.
func (bp *BroadPhase) CreateProxy(aabb AABB, userData interface{}) int {
	proxyID := bp.index.CreateProxy(aabb, userData)
	bp.proxyCount++
	bp.bufferMove(proxyID)
	return proxyID
}

// DestroyProxy unregisters a proxy. It is up to the client to remove any
// pairs.
func (bp *BroadPhase) DestroyProxy(proxyID int) {
	bp.unBufferMove(proxyID)
	bp.proxyCount--
	bp.index.DestroyProxy(proxyID)
}

// MoveProxy buffers the proxy as moved only when its fat AABB needed
// enlargement. Movement within the fattening margin is a no-op.
func (bp *BroadPhase) MoveProxy(proxyID int, aabb AABB, displacement vec.Vec2) {
	if bp.index.MoveProxy(proxyID, aabb, displacement) {
		bp.bufferMove(proxyID)
	}
}

// TouchProxy unconditionally buffers the proxy as moved. Used when
// non-geometric state, such as filter data, changed.
func (bp *BroadPhase) TouchProxy(proxyID int) {
	bp.bufferMove(proxyID)
}

// WouldMove reports whether MoveProxy with this aabb would update the
// index. Read-only, safe during parallel phases.
func (bp *BroadPhase) WouldMove(proxyID int, aabb AABB) bool {
	return bp.index.WouldMove(proxyID, aabb)
}

func (bp *BroadPhase) bufferMove(proxyID int) {
	for len(bp.moved) <= proxyID {
		bp.moved = append(bp.moved, false)
	}
	if bp.moved[proxyID] {
		return
	}
	bp.moved[proxyID] = true
	bp.moveBuffer = append(bp.moveBuffer, proxyID)
}

// unBufferMove blanks pending entries rather than compacting the buffer,
// keeping indices stable for any in-flight range assignment.
func (bp *BroadPhase) unBufferMove(proxyID int) {
	for i := range bp.moveBuffer {
		if bp.moveBuffer[i] == proxyID {
			bp.moveBuffer[i] = NullProxy
		}
	}
	if proxyID < len(bp.moved) {
		bp.moved[proxyID] = false
	}
}

func (bp *BroadPhase) UserData(proxyID int) interface{} {
	return bp.index.UserData(proxyID)
}

func (bp *BroadPhase) FatAABB(proxyID int) AABB {
	return bp.index.FatAABB(proxyID)
}

// TestOverlap tests overlap of two proxies' fat AABBs.
func (bp *BroadPhase) TestOverlap(proxyIDA, proxyIDB int) bool {
	return TestOverlap(bp.index.FatAABB(proxyIDA), bp.index.FatAABB(proxyIDB))
}

func (bp *BroadPhase) ProxyCount() int {
	return bp.proxyCount
}

// MoveCount returns the number of entries in the move buffer, including
// blanked ones. Range tasks are assigned over [0, MoveCount).
func (bp *BroadPhase) MoveCount() int {
	return len(bp.moveBuffer)
}

// UpdatePairs queries the index for every moved proxy in [moveBegin,
// moveEnd) and reports each distinct unordered pair exactly once, in
// ascending (A, B) order, through the callback.
//
// Multiple workers may call this concurrently on disjoint ranges with
// distinct threadIDs. No proxy may be created, destroyed or moved during
// this phase.
func (bp *BroadPhase) UpdatePairs(moveBegin, moveEnd int, callback AddPairCallback, threadID uint32) {
	td := &bp.perThread[threadID]
	td.pairBuffer = td.pairBuffer[:0]
	td.moved = bp.moved

	// Perform index queries for the assigned moved proxies.
	for i := moveBegin; i < moveEnd; i++ {
		td.queryProxyID = bp.moveBuffer[i]
		if td.queryProxyID == NullProxy {
			continue
		}

		// Query with the fat AABB so we don't fail to create a pair that
		// may touch later.
		fatAABB := bp.index.FatAABB(td.queryProxyID)
		bp.index.Query(td.queryCallback, fatAABB)
	}

	// Sort the pair buffer to expose duplicates.
	sort.Slice(td.pairBuffer, func(i, j int) bool {
		return pairLessThan(td.pairBuffer[i], td.pairBuffer[j])
	})

	// Send the pairs back to the client, skipping duplicates.
	i := 0
	for i < len(td.pairBuffer) {
		primary := td.pairBuffer[i]
		userDataA := bp.index.UserData(primary.ProxyIDA)
		userDataB := bp.index.UserData(primary.ProxyIDB)

		callback.AddPair(userDataA, userDataB, threadID)
		i++

		for i < len(td.pairBuffer) {
			pair := td.pairBuffer[i]
			if pair.ProxyIDA != primary.ProxyIDA || pair.ProxyIDB != primary.ProxyIDB {
				break
			}
			i++
		}
	}
}

func (td *broadPhaseThreadData) queryCallback(proxyID int) bool {
	// A proxy cannot form a pair with itself.
	if proxyID == td.queryProxyID {
		return true
	}

	// When both proxies moved, only the query from the higher id reports
	// the pair. This holds across workers, since range assignment never
	// changes which proxy has the higher id.
	if proxyID < len(td.moved) && td.moved[proxyID] && proxyID > td.queryProxyID {
		return true
	}

	td.pairBuffer = append(td.pairBuffer, Pair{
		ProxyIDA: minInt(proxyID, td.queryProxyID),
		ProxyIDB: maxInt(proxyID, td.queryProxyID),
	})
	return true
}

// ResetBuffers clears the move buffer and every worker's pair buffer.
// Must run single-threaded, after all UpdatePairs calls for the step have
// joined.
func (bp *BroadPhase) ResetBuffers() {
	for _, id := range bp.moveBuffer {
		if id != NullProxy {
			bp.moved[id] = false
		}
	}
	bp.moveBuffer = bp.moveBuffer[:0]
	for i := range bp.perThread {
		bp.perThread[i].pairBuffer = bp.perThread[i].pairBuffer[:0]
	}
}

// Query runs an AABB query against the index.
func (bp *BroadPhase) Query(callback IndexQueryCallback, aabb AABB) {
	bp.index.Query(callback, aabb)
}

// RayCast runs a ray cast against the index.
func (bp *BroadPhase) RayCast(callback IndexRayCastCallback, input RayCastInput) {
	bp.index.RayCast(callback, input)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
