package phys2d

import "github.com/setanarut/vec"

// NullProxy marks an empty slot in the broad phase move buffer.
const NullProxy = -1

// IndexQueryCallback is invoked for each proxy overlapping a query AABB.
// Return false to terminate the query early.
type IndexQueryCallback func(proxyID int) bool

// IndexRayCastCallback is invoked for each proxy hit by a ray cast. The
// return value clips the ray: 0 terminates the cast, a positive value
// becomes the new max fraction, and a negative value leaves it unchanged.
type IndexRayCastCallback func(input RayCastInput, proxyID int) float64

// ProxyIndex is the spatial index consumed by the broad phase. It stores a
// fat AABB per proxy and answers overlap queries against it.
//
// Implementations must tolerate concurrent calls to Query, RayCast,
// WouldMove, FatAABB and UserData while no proxy is being created,
// destroyed or moved. The mutating calls are single-threaded by contract.
type ProxyIndex interface {
	// CreateProxy registers a proxy with a fattened copy of aabb and
	// returns its id.
	CreateProxy(aabb AABB, userData interface{}) int

	// DestroyProxy unregisters a proxy.
	DestroyProxy(proxyID int)

	// MoveProxy updates the proxy if aabb has escaped its fat AABB.
	// It returns true when the index was updated, meaning the proxy
	// should be buffered as moved.
	MoveProxy(proxyID int, aabb AABB, displacement vec.Vec2) bool

	// WouldMove reports whether MoveProxy with this aabb would update the
	// index. It is read-only and safe during parallel phases.
	WouldMove(proxyID int, aabb AABB) bool

	// Query invokes callback for every proxy whose fat AABB overlaps aabb.
	Query(callback IndexQueryCallback, aabb AABB)

	// RayCast invokes callback for proxies hit by the segment.
	RayCast(callback IndexRayCastCallback, input RayCastInput)

	FatAABB(proxyID int) AABB
	UserData(proxyID int) interface{}
}
