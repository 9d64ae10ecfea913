package phys2d_test

import (
	"sort"
	"sync"
	"testing"

	"github.com/polyphase/phys2d"
	"github.com/setanarut/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pairRecorder collects AddPair callbacks. Pairs are stored per thread so
// tests can check both per-thread ordering and the global set.
type pairRecorder struct {
	mu    sync.Mutex
	pairs map[uint32][][2]int
}

func newPairRecorder() *pairRecorder {
	return &pairRecorder{pairs: make(map[uint32][][2]int)}
}

func (r *pairRecorder) AddPair(userDataA, userDataB interface{}, threadID uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := userDataA.(int)
	b := userDataB.(int)
	if a > b {
		a, b = b, a
	}
	r.pairs[threadID] = append(r.pairs[threadID], [2]int{a, b})
}

func (r *pairRecorder) all() [][2]int {
	var out [][2]int
	for _, p := range r.pairs {
		out = append(out, p...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

func TestBroadPhasePairDedup(t *testing.T) {
	bp := phys2d.NewBroadPhase(phys2d.NewDynamicTree(), 1)

	// Three mutually overlapping proxies: three distinct pairs.
	bp.CreateProxy(box(0, 0, 2, 2), 0)
	bp.CreateProxy(box(1, 0, 3, 2), 1)
	bp.CreateProxy(box(0, 1, 2, 3), 2)

	rec := newPairRecorder()
	bp.UpdatePairs(0, bp.MoveCount(), rec, 0)

	assert.Equal(t, [][2]int{{0, 1}, {0, 2}, {1, 2}}, rec.all())
}

func TestBroadPhasePairOrderWithinThread(t *testing.T) {
	bp := phys2d.NewBroadPhase(phys2d.NewDynamicTree(), 1)

	for i := 0; i < 5; i++ {
		bp.CreateProxy(box(0, 0, 1, 1), i)
	}

	rec := newPairRecorder()
	bp.UpdatePairs(0, bp.MoveCount(), rec, 0)

	got := rec.pairs[0]
	require.Len(t, got, 10)
	for i := 1; i < len(got); i++ {
		prev, cur := got[i-1], got[i]
		ordered := prev[0] < cur[0] || (prev[0] == cur[0] && prev[1] < cur[1])
		assert.True(t, ordered, "pair %d out of order: %v after %v", i, cur, prev)
	}
}

func TestBroadPhaseDestroyBlanksMoveBuffer(t *testing.T) {
	bp := phys2d.NewBroadPhase(phys2d.NewDynamicTree(), 1)

	a := bp.CreateProxy(box(0, 0, 1, 1), 0)
	bp.CreateProxy(box(0, 0, 1, 1), 1)

	before := bp.MoveCount()
	bp.DestroyProxy(a)

	// The entry is blanked with a sentinel, not compacted.
	assert.Equal(t, before, bp.MoveCount())

	rec := newPairRecorder()
	bp.UpdatePairs(0, bp.MoveCount(), rec, 0)
	assert.Empty(t, rec.all())
}

func TestBroadPhaseMoveBelowMargin(t *testing.T) {
	bp := phys2d.NewBroadPhase(phys2d.NewDynamicTree(), 1)

	id := bp.CreateProxy(box(0, 0, 1, 1), 0)
	bp.UpdatePairs(0, bp.MoveCount(), newPairRecorder(), 0)
	bp.ResetBuffers()

	bp.MoveProxy(id, box(0.01, 0.01, 1.01, 1.01), vec.Vec2{X: 0.01, Y: 0.01})
	assert.Equal(t, 0, bp.MoveCount(), "sub-margin move must not buffer")

	bp.MoveProxy(id, box(5, 5, 6, 6), vec.Vec2{X: 5, Y: 5})
	assert.Equal(t, 1, bp.MoveCount())
}

func TestBroadPhaseTouchProxy(t *testing.T) {
	bp := phys2d.NewBroadPhase(phys2d.NewDynamicTree(), 1)

	id := bp.CreateProxy(box(0, 0, 1, 1), 0)
	bp.UpdatePairs(0, bp.MoveCount(), newPairRecorder(), 0)
	bp.ResetBuffers()

	bp.TouchProxy(id)
	assert.Equal(t, 1, bp.MoveCount())
}

// TestBroadPhaseMultiRange splits the move buffer across two threads and
// requires the union of reported pairs to match the single-range result,
// with no pair reported twice.
func TestBroadPhaseMultiRange(t *testing.T) {
	build := func(workers int) *phys2d.BroadPhase {
		bp := phys2d.NewBroadPhase(phys2d.NewDynamicTree(), workers)
		// A row of overlapping neighbors plus one isolated proxy.
		for i := 0; i < 6; i++ {
			x := float64(i) * 0.5
			bp.CreateProxy(box(x, 0, x+1, 1), i)
		}
		bp.CreateProxy(box(100, 100, 101, 101), 6)
		return bp
	}

	single := build(1)
	recSingle := newPairRecorder()
	single.UpdatePairs(0, single.MoveCount(), recSingle, 0)

	multi := build(2)
	recMulti := newPairRecorder()
	mid := multi.MoveCount() / 2
	multi.UpdatePairs(0, mid, recMulti, 0)
	multi.UpdatePairs(mid, multi.MoveCount(), recMulti, 1)

	require.NotEmpty(t, recSingle.all())
	assert.Equal(t, recSingle.all(), recMulti.all())

	// No duplicates across threads.
	seen := make(map[[2]int]bool)
	for _, p := range recMulti.all() {
		assert.False(t, seen[p], "pair %v reported twice", p)
		seen[p] = true
	}
}

func TestBroadPhaseResetBuffers(t *testing.T) {
	bp := phys2d.NewBroadPhase(phys2d.NewDynamicTree(), 1)

	id := bp.CreateProxy(box(0, 0, 1, 1), 0)
	bp.ResetBuffers()
	assert.Equal(t, 0, bp.MoveCount())

	// The proxy can be buffered again after a reset.
	bp.TouchProxy(id)
	assert.Equal(t, 1, bp.MoveCount())
}
