package phys2d

import (
	"math"

	"github.com/setanarut/vec"
)

type bruteProxy struct {
	aabb     AABB
	userData interface{}
	next     int
	live     bool
}

// BruteIndex is an exhaustive-scan ProxyIndex. It keeps the same fat AABB
// semantics as DynamicTree but answers queries by scanning every proxy.
// Useful for tiny scenes and as a reference implementation in tests.
type BruteIndex struct {
	proxies  []bruteProxy
	freeList int
}

func NewBruteIndex() *BruteIndex {
	return &BruteIndex{freeList: nullNode}
}

func (bi *BruteIndex) CreateProxy(aabb AABB, userData interface{}) int {
	r := vec.Vec2{X: aabbExtension, Y: aabbExtension}
	fat := AABB{Lower: aabb.Lower.Sub(r), Upper: aabb.Upper.Add(r)}

	var id int
	if bi.freeList != nullNode {
		id = bi.freeList
		bi.freeList = bi.proxies[id].next
	} else {
		bi.proxies = append(bi.proxies, bruteProxy{})
		id = len(bi.proxies) - 1
	}
	bi.proxies[id] = bruteProxy{aabb: fat, userData: userData, next: nullNode, live: true}
	return id
}

func (bi *BruteIndex) DestroyProxy(proxyID int) {
	assert(0 <= proxyID && proxyID < len(bi.proxies) && bi.proxies[proxyID].live)
	bi.proxies[proxyID] = bruteProxy{next: bi.freeList}
	bi.freeList = proxyID
}

func (bi *BruteIndex) MoveProxy(proxyID int, aabb AABB, displacement vec.Vec2) bool {
	assert(0 <= proxyID && proxyID < len(bi.proxies) && bi.proxies[proxyID].live)

	if bi.proxies[proxyID].aabb.Contains(aabb) {
		return false
	}

	r := vec.Vec2{X: aabbExtension, Y: aabbExtension}
	b := AABB{Lower: aabb.Lower.Sub(r), Upper: aabb.Upper.Add(r)}

	d := displacement.Scale(aabbMultiplier)
	if d.X < 0.0 {
		b.Lower.X += d.X
	} else {
		b.Upper.X += d.X
	}
	if d.Y < 0.0 {
		b.Lower.Y += d.Y
	} else {
		b.Upper.Y += d.Y
	}

	bi.proxies[proxyID].aabb = b
	return true
}

func (bi *BruteIndex) WouldMove(proxyID int, aabb AABB) bool {
	assert(0 <= proxyID && proxyID < len(bi.proxies) && bi.proxies[proxyID].live)
	return !bi.proxies[proxyID].aabb.Contains(aabb)
}

func (bi *BruteIndex) Query(callback IndexQueryCallback, aabb AABB) {
	for i := range bi.proxies {
		if !bi.proxies[i].live {
			continue
		}
		if TestOverlap(bi.proxies[i].aabb, aabb) {
			if !callback(i) {
				return
			}
		}
	}
}

func (bi *BruteIndex) RayCast(callback IndexRayCastCallback, input RayCastInput) {
	p1 := input.P1
	p2 := input.P2
	r := p2.Sub(p1)
	assert(r.LengthSq() > 0.0)
	r = r.Unit()

	v := crossSV(1.0, r)
	absV := absVec(v)

	maxFraction := input.MaxFraction
	segmentAABB := segmentBounds(p1, p2, maxFraction)

	for i := range bi.proxies {
		if !bi.proxies[i].live {
			continue
		}
		aabb := bi.proxies[i].aabb
		if !TestOverlap(aabb, segmentAABB) {
			continue
		}

		c := aabb.Center()
		h := aabb.Extents()
		separation := math.Abs(v.Dot(p1.Sub(c))) - absV.Dot(h)
		if separation > 0.0 {
			continue
		}

		subInput := RayCastInput{P1: input.P1, P2: input.P2, MaxFraction: maxFraction}
		value := callback(subInput, i)
		if value == 0.0 {
			return
		}
		if value > 0.0 {
			maxFraction = value
			segmentAABB = segmentBounds(p1, p2, maxFraction)
		}
	}
}

func (bi *BruteIndex) FatAABB(proxyID int) AABB {
	assert(0 <= proxyID && proxyID < len(bi.proxies) && bi.proxies[proxyID].live)
	return bi.proxies[proxyID].aabb
}

func (bi *BruteIndex) UserData(proxyID int) interface{} {
	assert(0 <= proxyID && proxyID < len(bi.proxies) && bi.proxies[proxyID].live)
	return bi.proxies[proxyID].userData
}
