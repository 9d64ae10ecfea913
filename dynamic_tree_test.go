package phys2d_test

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/polyphase/phys2d"
	"github.com/setanarut/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func box(lx, ly, ux, uy float64) phys2d.AABB {
	return phys2d.AABB{
		Lower: vec.Vec2{X: lx, Y: ly},
		Upper: vec.Vec2{X: ux, Y: uy},
	}
}

// queryUserData collects the user data of every proxy overlapping the AABB,
// sorted for comparison.
func queryUserData(index phys2d.ProxyIndex, aabb phys2d.AABB) []int {
	var got []int
	index.Query(func(proxyID int) bool {
		got = append(got, index.UserData(proxyID).(int))
		return true
	}, aabb)
	sort.Ints(got)
	return got
}

func TestDynamicTreeQuery(t *testing.T) {
	tree := phys2d.NewDynamicTree()

	tree.CreateProxy(box(0, 0, 1, 1), 0)
	tree.CreateProxy(box(10, 10, 11, 11), 1)
	tree.CreateProxy(box(0.5, 0.5, 1.5, 1.5), 2)

	assert.Equal(t, []int{0, 2}, queryUserData(tree, box(0, 0, 2, 2)))
	assert.Equal(t, []int{1}, queryUserData(tree, box(9, 9, 12, 12)))
	assert.Empty(t, queryUserData(tree, box(100, 100, 101, 101)))
}

func TestDynamicTreeMoveProxy(t *testing.T) {
	tree := phys2d.NewDynamicTree()
	id := tree.CreateProxy(box(0, 0, 1, 1), 0)

	// Movement within the fat margin must not trigger an index update.
	moved := tree.MoveProxy(id, box(0.01, 0.01, 1.01, 1.01), vec.Vec2{X: 0.01, Y: 0.01})
	assert.False(t, moved)

	moved = tree.MoveProxy(id, box(5, 5, 6, 6), vec.Vec2{X: 5, Y: 5})
	assert.True(t, moved)

	assert.Equal(t, []int{0}, queryUserData(tree, box(4.5, 4.5, 6.5, 6.5)))
	assert.Empty(t, queryUserData(tree, box(0, 0, 0.5, 0.5)))
}

func TestDynamicTreeWouldMove(t *testing.T) {
	tree := phys2d.NewDynamicTree()
	id := tree.CreateProxy(box(0, 0, 1, 1), 0)

	assert.False(t, tree.WouldMove(id, box(0.02, 0.02, 1.02, 1.02)))
	assert.True(t, tree.WouldMove(id, box(3, 3, 4, 4)))

	// WouldMove is read-only: the answer must not change.
	assert.True(t, tree.WouldMove(id, box(3, 3, 4, 4)))
}

func TestDynamicTreeDestroyProxy(t *testing.T) {
	tree := phys2d.NewDynamicTree()
	a := tree.CreateProxy(box(0, 0, 1, 1), 0)
	tree.CreateProxy(box(0, 0, 1, 1), 1)

	tree.DestroyProxy(a)
	assert.Equal(t, []int{1}, queryUserData(tree, box(-1, -1, 2, 2)))
}

func TestDynamicTreeHeightStaysLogarithmic(t *testing.T) {
	tree := phys2d.NewDynamicTree()
	rng := rand.New(rand.NewSource(7))

	const n = 256
	for i := 0; i < n; i++ {
		x := rng.Float64() * 100
		y := rng.Float64() * 100
		tree.CreateProxy(box(x, y, x+1, y+1), i)
	}

	// A balanced tree over 256 leaves should stay well under this bound.
	assert.Less(t, tree.Height(), 24)
}

func TestDynamicTreeRayCast(t *testing.T) {
	tree := phys2d.NewDynamicTree()
	id := tree.CreateProxy(box(5, -1, 6, 1), 42)

	var hits []int
	tree.RayCast(func(input phys2d.RayCastInput, proxyID int) float64 {
		hits = append(hits, proxyID)
		return input.MaxFraction
	}, phys2d.RayCastInput{
		P1:          vec.Vec2{X: 0, Y: 0},
		P2:          vec.Vec2{X: 10, Y: 0},
		MaxFraction: 1.0,
	})

	require.Len(t, hits, 1)
	assert.Equal(t, id, hits[0])
}

// TestBruteIndexMatchesTree drives both ProxyIndex implementations with the
// same operation sequence and requires identical query results.
func TestBruteIndexMatchesTree(t *testing.T) {
	tree := phys2d.NewDynamicTree()
	brute := phys2d.NewBruteIndex()
	rng := rand.New(rand.NewSource(99))

	randomBox := func() phys2d.AABB {
		x := rng.Float64()*40 - 20
		y := rng.Float64()*40 - 20
		w := rng.Float64()*3 + 0.1
		h := rng.Float64()*3 + 0.1
		return box(x, y, x+w, y+h)
	}

	treeIDs := make([]int, 0, 64)
	bruteIDs := make([]int, 0, 64)
	for i := 0; i < 64; i++ {
		aabb := randomBox()
		treeIDs = append(treeIDs, tree.CreateProxy(aabb, i))
		bruteIDs = append(bruteIDs, brute.CreateProxy(aabb, i))
	}

	// Move a third of them, with matching displacements.
	for i := 0; i < 20; i++ {
		k := rng.Intn(64)
		aabb := randomBox()
		d := vec.Vec2{X: rng.Float64()*2 - 1, Y: rng.Float64()*2 - 1}
		tree.MoveProxy(treeIDs[k], aabb, d)
		brute.MoveProxy(bruteIDs[k], aabb, d)
	}

	for i := 0; i < 50; i++ {
		q := randomBox()
		assert.Equal(t, queryUserData(brute, q), queryUserData(tree, q), "query %d", i)
	}
}
