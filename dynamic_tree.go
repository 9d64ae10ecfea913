package phys2d

import (
	"math"

	"github.com/setanarut/vec"
)

const nullNode = -1

type treeNode struct {
	// Fat AABB covering the node's subtree.
	aabb AABB

	userData interface{}

	// parent doubles as the free-list next pointer.
	parent int

	child1 int
	child2 int

	// leaf = 0, free node = -1
	height int
}

func (n *treeNode) isLeaf() bool {
	return n.child1 == nullNode
}

// DynamicTree is a balanced AABB tree used as the default ProxyIndex.
// Leaves are proxies with a fattened AABB so that small movements do not
// trigger tree updates. Nodes are pooled and addressed by index so the
// pool can grow without invalidating references.
//
// Queries allocate only a local traversal stack and never mutate the tree,
// so they are safe to run concurrently between structural updates.
type DynamicTree struct {
	root int

	nodes        []treeNode
	nodeCount    int
	nodeCapacity int

	freeList int

	insertionCount int
}

// NewDynamicTree returns an empty tree.
func NewDynamicTree() *DynamicTree {
	t := &DynamicTree{
		root:         nullNode,
		nodeCapacity: 16,
		freeList:     0,
	}
	t.nodes = make([]treeNode, t.nodeCapacity)
	for i := 0; i < t.nodeCapacity-1; i++ {
		t.nodes[i].parent = i + 1
		t.nodes[i].height = -1
	}
	t.nodes[t.nodeCapacity-1].parent = nullNode
	t.nodes[t.nodeCapacity-1].height = -1
	return t
}

func (t *DynamicTree) allocateNode() int {
	if t.freeList == nullNode {
		assert(t.nodeCount == t.nodeCapacity)

		// The free list is empty. Rebuild a bigger pool.
		t.nodes = append(t.nodes, make([]treeNode, t.nodeCapacity)...)
		t.nodeCapacity *= 2
		for i := t.nodeCount; i < t.nodeCapacity-1; i++ {
			t.nodes[i].parent = i + 1
			t.nodes[i].height = -1
		}
		t.nodes[t.nodeCapacity-1].parent = nullNode
		t.nodes[t.nodeCapacity-1].height = -1
		t.freeList = t.nodeCount
	}

	nodeID := t.freeList
	t.freeList = t.nodes[nodeID].parent
	t.nodes[nodeID].parent = nullNode
	t.nodes[nodeID].child1 = nullNode
	t.nodes[nodeID].child2 = nullNode
	t.nodes[nodeID].height = 0
	t.nodes[nodeID].userData = nil
	t.nodeCount++
	return nodeID
}

func (t *DynamicTree) freeNode(nodeID int) {
	assert(0 <= nodeID && nodeID < t.nodeCapacity)
	assert(0 < t.nodeCount)
	t.nodes[nodeID].parent = t.freeList
	t.nodes[nodeID].height = -1
	t.freeList = nodeID
	t.nodeCount--
}

// CreateProxy inserts a leaf with a fattened copy of aabb.
func (t *DynamicTree) CreateProxy(aabb AABB, userData interface{}) int {
	proxyID := t.allocateNode()

	r := vec.Vec2{X: aabbExtension, Y: aabbExtension}
	t.nodes[proxyID].aabb.Lower = aabb.Lower.Sub(r)
	t.nodes[proxyID].aabb.Upper = aabb.Upper.Add(r)
	t.nodes[proxyID].userData = userData
	t.nodes[proxyID].height = 0

	t.insertLeaf(proxyID)
	return proxyID
}

func (t *DynamicTree) DestroyProxy(proxyID int) {
	assert(0 <= proxyID && proxyID < t.nodeCapacity)
	assert(t.nodes[proxyID].isLeaf())

	t.removeLeaf(proxyID)
	t.freeNode(proxyID)
}

// MoveProxy reinserts the proxy when aabb has escaped its fat AABB. The new
// fat AABB is extended along the displacement to predict further motion.
func (t *DynamicTree) MoveProxy(proxyID int, aabb AABB, displacement vec.Vec2) bool {
	assert(0 <= proxyID && proxyID < t.nodeCapacity)
	assert(t.nodes[proxyID].isLeaf())

	if t.nodes[proxyID].aabb.Contains(aabb) {
		return false
	}

	t.removeLeaf(proxyID)

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

	t.nodes[proxyID].aabb = b
	t.insertLeaf(proxyID)
	return true
}

// WouldMove reports whether MoveProxy would update the tree, without
// touching it.
func (t *DynamicTree) WouldMove(proxyID int, aabb AABB) bool {
	assert(0 <= proxyID && proxyID < t.nodeCapacity)
	return !t.nodes[proxyID].aabb.Contains(aabb)
}

func (t *DynamicTree) UserData(proxyID int) interface{} {
	assert(0 <= proxyID && proxyID < t.nodeCapacity)
	return t.nodes[proxyID].userData
}

func (t *DynamicTree) FatAABB(proxyID int) AABB {
	assert(0 <= proxyID && proxyID < t.nodeCapacity)
	return t.nodes[proxyID].aabb
}

// Query invokes callback for every leaf overlapping aabb.
func (t *DynamicTree) Query(callback IndexQueryCallback, aabb AABB) {
	stack := make([]int, 0, 64)
	stack = append(stack, t.root)

	for len(stack) > 0 {
		nodeID := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if nodeID == nullNode {
			continue
		}

		node := &t.nodes[nodeID]
		if !TestOverlap(node.aabb, aabb) {
			continue
		}

		if node.isLeaf() {
			if !callback(nodeID) {
				return
			}
		} else {
			stack = append(stack, node.child1, node.child2)
		}
	}
}

// RayCast walks the tree along a segment, narrowing the segment as the
// callback reports closer hits.
func (t *DynamicTree) RayCast(callback IndexRayCastCallback, input RayCastInput) {
	p1 := input.P1
	p2 := input.P2
	r := p2.Sub(p1)
	assert(r.LengthSq() > 0.0)
	r = r.Unit()

	// v is perpendicular to the segment.
	v := crossSV(1.0, r)
	absV := absVec(v)

	maxFraction := input.MaxFraction

	segmentAABB := segmentBounds(p1, p2, maxFraction)

	stack := make([]int, 0, 64)
	stack = append(stack, t.root)

	for len(stack) > 0 {
		nodeID := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if nodeID == nullNode {
			continue
		}

		node := &t.nodes[nodeID]
		if !TestOverlap(node.aabb, segmentAABB) {
			continue
		}

		// Separating axis for segment (Gino, p80).
		// |dot(v, p1 - c)| > dot(|v|, h)
		c := node.aabb.Center()
		h := node.aabb.Extents()
		separation := math.Abs(v.Dot(p1.Sub(c))) - absV.Dot(h)
		if separation > 0.0 {
			continue
		}

		if node.isLeaf() {
			subInput := RayCastInput{P1: input.P1, P2: input.P2, MaxFraction: maxFraction}
			value := callback(subInput, nodeID)
			if value == 0.0 {
				// The client has terminated the ray cast.
				return
			}
			if value > 0.0 {
				maxFraction = value
				segmentAABB = segmentBounds(p1, p2, maxFraction)
			}
		} else {
			stack = append(stack, node.child1, node.child2)
		}
	}
}

func segmentBounds(p1, p2 vec.Vec2, maxFraction float64) AABB {
	t := p1.Add(p2.Sub(p1).Scale(maxFraction))
	return AABB{Lower: minVec(p1, t), Upper: maxVec(p1, t)}
}

func (t *DynamicTree) insertLeaf(leaf int) {
	t.insertionCount++

	if t.root == nullNode {
		t.root = leaf
		t.nodes[leaf].parent = nullNode
		return
	}

	// Find the best sibling using the surface area heuristic.
	leafAABB := t.nodes[leaf].aabb
	index := t.root
	for !t.nodes[index].isLeaf() {
		child1 := t.nodes[index].child1
		child2 := t.nodes[index].child2

		area := t.nodes[index].aabb.Perimeter()
		combinedArea := t.nodes[index].aabb.Combine(leafAABB).Perimeter()

		// Cost of creating a new parent for this node and the new leaf.
		cost := 2.0 * combinedArea

		// Minimum cost of pushing the leaf further down the tree.
		inheritanceCost := 2.0 * (combinedArea - area)

		cost1 := descendCost(&t.nodes[child1], leafAABB, inheritanceCost)
		cost2 := descendCost(&t.nodes[child2], leafAABB, inheritanceCost)

		if cost < cost1 && cost < cost2 {
			break
		}

		if cost1 < cost2 {
			index = child1
		} else {
			index = child2
		}
	}

	sibling := index

	// Create a new parent.
	oldParent := t.nodes[sibling].parent
	newParent := t.allocateNode()
	t.nodes[newParent].parent = oldParent
	t.nodes[newParent].userData = nil
	t.nodes[newParent].aabb = leafAABB.Combine(t.nodes[sibling].aabb)
	t.nodes[newParent].height = t.nodes[sibling].height + 1

	if oldParent != nullNode {
		if t.nodes[oldParent].child1 == sibling {
			t.nodes[oldParent].child1 = newParent
		} else {
			t.nodes[oldParent].child2 = newParent
		}
	} else {
		t.root = newParent
	}
	t.nodes[newParent].child1 = sibling
	t.nodes[newParent].child2 = leaf
	t.nodes[sibling].parent = newParent
	t.nodes[leaf].parent = newParent

	// Walk back up the tree fixing heights and AABBs.
	index = t.nodes[leaf].parent
	for index != nullNode {
		index = t.balance(index)

		child1 := t.nodes[index].child1
		child2 := t.nodes[index].child2
		assert(child1 != nullNode)
		assert(child2 != nullNode)

		t.nodes[index].height = 1 + maxInt(t.nodes[child1].height, t.nodes[child2].height)
		t.nodes[index].aabb = t.nodes[child1].aabb.Combine(t.nodes[child2].aabb)

		index = t.nodes[index].parent
	}
}

func descendCost(child *treeNode, leafAABB AABB, inheritanceCost float64) float64 {
	combined := leafAABB.Combine(child.aabb)
	if child.isLeaf() {
		return combined.Perimeter() + inheritanceCost
	}
	return combined.Perimeter() - child.aabb.Perimeter() + inheritanceCost
}

func (t *DynamicTree) removeLeaf(leaf int) {
	if leaf == t.root {
		t.root = nullNode
		return
	}

	parent := t.nodes[leaf].parent
	grandParent := t.nodes[parent].parent
	var sibling int
	if t.nodes[parent].child1 == leaf {
		sibling = t.nodes[parent].child2
	} else {
		sibling = t.nodes[parent].child1
	}

	if grandParent != nullNode {
		// Destroy parent and connect sibling to grandParent.
		if t.nodes[grandParent].child1 == parent {
			t.nodes[grandParent].child1 = sibling
		} else {
			t.nodes[grandParent].child2 = sibling
		}
		t.nodes[sibling].parent = grandParent
		t.freeNode(parent)

		// Adjust ancestor bounds.
		index := grandParent
		for index != nullNode {
			index = t.balance(index)

			child1 := t.nodes[index].child1
			child2 := t.nodes[index].child2

			t.nodes[index].aabb = t.nodes[child1].aabb.Combine(t.nodes[child2].aabb)
			t.nodes[index].height = 1 + maxInt(t.nodes[child1].height, t.nodes[child2].height)

			index = t.nodes[index].parent
		}
	} else {
		t.root = sibling
		t.nodes[sibling].parent = nullNode
		t.freeNode(parent)
	}
}

// balance performs a left or right rotation if node iA is imbalanced.
// Returns the new subtree root index.
func (t *DynamicTree) balance(iA int) int {
	assert(iA != nullNode)

	a := &t.nodes[iA]
	if a.isLeaf() || a.height < 2 {
		return iA
	}

	iB := a.child1
	iC := a.child2
	b := &t.nodes[iB]
	c := &t.nodes[iC]

	balance := c.height - b.height

	// Rotate C up.
	if balance > 1 {
		iF := c.child1
		iG := c.child2
		f := &t.nodes[iF]
		g := &t.nodes[iG]

		// Swap A and C.
		c.child1 = iA
		c.parent = a.parent
		a.parent = iC

		if c.parent != nullNode {
			if t.nodes[c.parent].child1 == iA {
				t.nodes[c.parent].child1 = iC
			} else {
				assert(t.nodes[c.parent].child2 == iA)
				t.nodes[c.parent].child2 = iC
			}
		} else {
			t.root = iC
		}

		if f.height > g.height {
			c.child2 = iF
			a.child2 = iG
			g.parent = iA
			a.aabb = b.aabb.Combine(g.aabb)
			c.aabb = a.aabb.Combine(f.aabb)
			a.height = 1 + maxInt(b.height, g.height)
			c.height = 1 + maxInt(a.height, f.height)
		} else {
			c.child2 = iG
			a.child2 = iF
			f.parent = iA
			a.aabb = b.aabb.Combine(f.aabb)
			c.aabb = a.aabb.Combine(g.aabb)
			a.height = 1 + maxInt(b.height, f.height)
			c.height = 1 + maxInt(a.height, g.height)
		}

		return iC
	}

	// Rotate B up.
	if balance < -1 {
		iD := b.child1
		iE := b.child2
		d := &t.nodes[iD]
		e := &t.nodes[iE]

		// Swap A and B.
		b.child1 = iA
		b.parent = a.parent
		a.parent = iB

		if b.parent != nullNode {
			if t.nodes[b.parent].child1 == iA {
				t.nodes[b.parent].child1 = iB
			} else {
				assert(t.nodes[b.parent].child2 == iA)
				t.nodes[b.parent].child2 = iB
			}
		} else {
			t.root = iB
		}

		if d.height > e.height {
			b.child2 = iD
			a.child1 = iE
			e.parent = iA
			a.aabb = c.aabb.Combine(e.aabb)
			b.aabb = a.aabb.Combine(d.aabb)
			a.height = 1 + maxInt(c.height, e.height)
			b.height = 1 + maxInt(a.height, d.height)
		} else {
			b.child2 = iE
			a.child1 = iD
			d.parent = iA
			a.aabb = c.aabb.Combine(d.aabb)
			b.aabb = a.aabb.Combine(e.aabb)
			a.height = 1 + maxInt(c.height, d.height)
			b.height = 1 + maxInt(a.height, e.height)
		}

		return iB
	}

	return iA
}

// Height returns the height of the tree.
func (t *DynamicTree) Height() int {
	if t.root == nullNode {
		return 0
	}
	return t.nodes[t.root].height
}

// MaxBalance returns the largest height difference between siblings.
func (t *DynamicTree) MaxBalance() int {
	maxBalance := 0
	for i := 0; i < t.nodeCapacity; i++ {
		node := &t.nodes[i]
		if node.height <= 1 {
			continue
		}
		assert(!node.isLeaf())

		balance := absInt(t.nodes[node.child2].height - t.nodes[node.child1].height)
		maxBalance = maxInt(maxBalance, balance)
	}
	return maxBalance
}

// AreaRatio returns the total node perimeter over the root perimeter, a
// quality metric for the tree.
func (t *DynamicTree) AreaRatio() float64 {
	if t.root == nullNode {
		return 0.0
	}

	rootArea := t.nodes[t.root].aabb.Perimeter()
	totalArea := 0.0
	for i := 0; i < t.nodeCapacity; i++ {
		node := &t.nodes[i]
		if node.height < 0 {
			continue
		}
		totalArea += node.aabb.Perimeter()
	}
	return totalArea / rootArea
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func absInt(a int) int {
	if a < 0 {
		return -a
	}
	return a
}
