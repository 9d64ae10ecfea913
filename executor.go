package phys2d

import "sync"

// RangeTask processes the index range [begin, end). threadID selects the
// per-worker scratch buffers the task may write to; it is unique among the
// tasks of one ForRange call and less than WorkerCount.
type RangeTask func(begin, end int, threadID uint32)

// Executor runs range tasks. ForRange must split [0, n) into disjoint
// sub-ranges, run them, and not return until every task has joined; that
// return is the barrier the finish steps rely on.
type Executor interface {
	WorkerCount() int
	ForRange(n int, task RangeTask)
}

// SerialExecutor runs every range on the calling goroutine.
type SerialExecutor struct{}

func (SerialExecutor) WorkerCount() int { return 1 }

func (SerialExecutor) ForRange(n int, task RangeTask) {
	if n > 0 {
		task(0, n, 0)
	}
}

// PoolExecutor fans ranges out to a fixed number of goroutines.
type PoolExecutor struct {
	workers int
}

func NewPoolExecutor(workers int) *PoolExecutor {
	assert(workers > 0)
	return &PoolExecutor{workers: workers}
}

func (e *PoolExecutor) WorkerCount() int { return e.workers }

func (e *PoolExecutor) ForRange(n int, task RangeTask) {
	if n <= 0 {
		return
	}

	chunk := (n + e.workers - 1) / e.workers

	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		begin := w * chunk
		if begin >= n {
			break
		}
		end := minInt(begin+chunk, n)

		wg.Add(1)
		go func(begin, end int, threadID uint32) {
			defer wg.Done()
			task(begin, end, threadID)
		}(begin, end, uint32(w))
	}
	wg.Wait()
}
