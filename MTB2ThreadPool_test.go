package box2d

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadPoolRunsAllSubmittedTasks(t *testing.T) {
	pool := NewB2ThreadPool(3)
	defer pool.Shutdown()

	group := &B2TaskGroup{}
	var count int32
	tasks := make([]B2Task, 50)
	for i := range tasks {
		tasks[i] = NewB2RangeTask("count", 0, 1, 1, func(begin, end int, ctx B2ThreadContext) {
			atomic.AddInt32(&count, 1)
		})
	}
	pool.SubmitTasks(group, tasks)
	pool.Wait(group, B2ThreadContext{ThreadId: 0, Scratch: NewB2StackAllocator()})

	assert.Equal(t, int32(50), atomic.LoadInt32(&count))
	assert.Equal(t, int32(0), group.Remaining())
}

// TestThreadPoolZeroWorkersIsFullySerial exercises the "serial" mode used
// throughout the determinism tests: a pool with 0 worker goroutines still
// satisfies the full contract, with every task run by the participating
// (user) thread inside Wait.
func TestThreadPoolZeroWorkersIsFullySerial(t *testing.T) {
	pool := NewB2ThreadPool(0)
	defer pool.Shutdown()

	require.Equal(t, int32(1), pool.GetThreadCount())

	group := &B2TaskGroup{}
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		pool.SubmitTask(group, NewB2RangeTask("order", i, i+1, 1, func(begin, end int, ctx B2ThreadContext) {
			order = append(order, begin)
		}))
	}
	pool.Wait(group, B2ThreadContext{ThreadId: 0, Scratch: NewB2StackAllocator()})
	assert.Len(t, order, 5, "with no worker goroutines, the participating wait must run every task itself")
}

func TestThreadPoolCostPriorityOrdering(t *testing.T) {
	pool := NewB2ThreadPool(0)
	defer pool.Shutdown()

	group := &B2TaskGroup{}
	var order []int32
	costs := []int32{3, 1, 9, 4, 2}
	tasks := make([]B2Task, len(costs))
	for i, c := range costs {
		c := c
		tasks[i] = NewB2RangeTask("cost", 0, 0, c, func(begin, end int, ctx B2ThreadContext) {
			order = append(order, c)
		})
	}
	pool.SubmitTasks(group, tasks)
	pool.Wait(group, B2ThreadContext{ThreadId: 0, Scratch: NewB2StackAllocator()})

	require.Equal(t, []int32{9, 4, 3, 2, 1}, order, "a single waiter draining the heap must pop strictly by descending cost")
}

func TestThreadPoolShutdownPanicsOnNonEmptyQueue(t *testing.T) {
	pool := NewB2ThreadPool(0)
	group := &B2TaskGroup{}
	pool.SubmitTask(group, NewB2RangeTask("never runs", 0, 0, 1, func(begin, end int, ctx B2ThreadContext) {}))

	assert.Panics(t, func() { pool.Shutdown() }, "Shutdown must assert the queue is empty before stopping workers")
}

func TestThreadPoolTaskGroupOutstandingSemaphoreBackstop(t *testing.T) {
	exec := NewB2ThreadPoolTaskExecutor(0)
	defer exec.Shutdown()

	scratch := NewB2StackAllocator()
	groups := make([]*B2TaskGroup, B2_maxConcurrentTaskGroups)
	for i := range groups {
		groups[i] = exec.CreateTaskGroup(scratch)
	}
	for _, g := range groups {
		exec.DestroyTaskGroup(g, scratch)
	}
	// The semaphore must have been fully released: creating
	// maxConcurrentTaskGroups more groups in a row must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < B2_maxConcurrentTaskGroups; i++ {
			g := exec.CreateTaskGroup(scratch)
			exec.DestroyTaskGroup(g, scratch)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("CreateTaskGroup/DestroyTaskGroup pairs did not release the outstanding-group semaphore")
	}
}
