package box2d

import (
	"container/heap"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/automaxprocs/maxprocs"
)

func init() {
	// Avoid over-subscribing the pool when running under a cgroup CPU
	// quota (containers, CI runners): this sizes GOMAXPROCS to the quota
	// before B2DefaultThreadCount reads runtime.GOMAXPROCS.
	_, _ = maxprocs.Set()
}

// B2TaskGroup is a completion barrier: submissions increment remainingTasks,
// each worker decrements it on completion, and Wait returns once it reaches
// zero.
type B2TaskGroup struct {
	remainingTasks int32

	// Stats, mirroring the original's b2ThreadPoolTaskGroup.
	maxNotifyAllNanos        int64
	accumulatedNotifyNanos   int64
}

func (g *B2TaskGroup) add(n int32) {
	atomic.AddInt32(&g.remainingTasks, n)
}

func (g *B2TaskGroup) done() int32 {
	return atomic.AddInt32(&g.remainingTasks, -1)
}

func (g *B2TaskGroup) Remaining() int32 {
	return atomic.LoadInt32(&g.remainingTasks)
}

// b2TaskHeap is a binary max-heap by cost over a contiguous slice of
// pending tasks, guarded by B2ThreadPool's mutex. The heap key (cost) is
// fixed once a task is inserted.
type b2TaskHeap []B2Task

func (h b2TaskHeap) Len() int            { return len(h) }
func (h b2TaskHeap) Less(i, j int) bool  { return h[i].Cost() > h[j].Cost() }
func (h b2TaskHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *b2TaskHeap) Push(x interface{}) { *h = append(*h, x.(B2Task)) }
func (h *b2TaskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// B2ThreadPool owns the worker goroutines and the single cost-priority
// queue they and the participating user thread pull from. It is the Go
// analogue of b2ThreadPool: workers are goroutines rather than OS threads,
// since GOMAXPROCS already gives us the native-thread parallelism the
// original pinned explicitly.
type B2ThreadPool struct {
	mu        sync.Mutex
	cond      sync.Cond
	tasks     b2TaskHeap
	threadCount int32

	pendingTaskCount int32 // atomic, spun on during busy-wait
	busyWait         int32 // atomic bool
	shuttingDown     bool
	wg               sync.WaitGroup

	lockNanos     int64 // atomic
	taskStartNanos int64 // atomic
}

// B2DefaultThreadCount returns hardware cores minus one, reserving a core
// for the user thread, clamped to at least 0 and to B2_maxThreadPoolThreads.
func B2DefaultThreadCount() int32 {
	n := int32(runtime.GOMAXPROCS(0)) - 1
	if n < 0 {
		n = 0
	}
	if n > B2_maxThreadPoolThreads {
		n = B2_maxThreadPoolThreads
	}
	return n
}

// NewB2ThreadPool constructs a pool with the given number of worker
// goroutines. threadCount < 0 is interpreted as B2DefaultThreadCount().
func NewB2ThreadPool(threadCount int32) *B2ThreadPool {
	if threadCount < 0 {
		threadCount = B2DefaultThreadCount()
	}
	p := &B2ThreadPool{threadCount: threadCount}
	p.cond.L = &p.mu
	p.wg.Add(int(threadCount))
	for i := int32(1); i <= threadCount; i++ {
		go p.workerMain(uint32(i))
	}
	return p
}

// GetThreadCount is the number of threads available to execute tasks,
// including the user thread.
func (p *B2ThreadPool) GetThreadCount() int32 { return p.threadCount + 1 }

func (p *B2ThreadPool) GetLockNanos() int64     { return atomic.LoadInt64(&p.lockNanos) }
func (p *B2ThreadPool) GetTaskStartNanos() int64 { return atomic.LoadInt64(&p.taskStartNanos) }

func (p *B2ThreadPool) ResetTimers() {
	atomic.StoreInt64(&p.lockNanos, 0)
	atomic.StoreInt64(&p.taskStartNanos, 0)
}

// StartBusyWaiting wakes any parked workers so they spin instead of
// sleeping on the condition variable until StopBusyWaiting is called.
// This trades CPU for eliminating wakeup latency during a step's short
// parallel phases.
func (p *B2ThreadPool) StartBusyWaiting() {
	atomic.StoreInt32(&p.busyWait, 1)
	p.mu.Lock()
	p.cond.Broadcast()
	p.mu.Unlock()
}

// StopBusyWaiting allows idle workers to park again.
func (p *B2ThreadPool) StopBusyWaiting() {
	atomic.StoreInt32(&p.busyWait, 0)
}

// SubmitTask submits a single task for execution and returns immediately.
func (p *B2ThreadPool) SubmitTask(group *B2TaskGroup, task B2Task) {
	task.setGroup(group)
	group.add(1)

	start := time.Now()
	p.mu.Lock()
	atomic.AddInt64(&p.lockNanos, int64(time.Since(start)))
	heap.Push(&p.tasks, task)
	atomic.AddInt32(&p.pendingTaskCount, 1)
	p.cond.Signal()
	p.mu.Unlock()
}

// SubmitTasks submits many tasks for execution and wakes every worker, so
// that a range split across N sub-tasks doesn't wait for workers to wake
// one at a time.
func (p *B2ThreadPool) SubmitTasks(group *B2TaskGroup, tasks []B2Task) {
	if len(tasks) == 0 {
		return
	}
	for _, t := range tasks {
		t.setGroup(group)
	}
	group.add(int32(len(tasks)))

	start := time.Now()
	p.mu.Lock()
	atomic.AddInt64(&p.lockNanos, int64(time.Since(start)))
	for _, t := range tasks {
		heap.Push(&p.tasks, t)
	}
	atomic.AddInt32(&p.pendingTaskCount, int32(len(tasks)))
	p.cond.Broadcast()
	p.mu.Unlock()
}

// popLocked pops the highest-cost pending task. Caller holds p.mu.
func (p *B2ThreadPool) popLocked() (B2Task, bool) {
	if len(p.tasks) == 0 {
		return nil, false
	}
	t := heap.Pop(&p.tasks).(B2Task)
	atomic.AddInt32(&p.pendingTaskCount, -1)
	return t, true
}

func (p *B2ThreadPool) workerMain(threadId uint32) {
	defer p.wg.Done()
	ctx := B2ThreadContext{ThreadId: threadId, Scratch: NewB2StackAllocator()}
	for {
		task, ok := p.acquireTask()
		if !ok {
			return
		}
		task.Execute(ctx)
		task.group().done()
	}
}

// acquireTask blocks (or busy-spins) until a task is available or the pool
// is shutting down with an empty queue.
func (p *B2ThreadPool) acquireTask() (B2Task, bool) {
	if atomic.LoadInt32(&p.busyWait) != 0 {
		for {
			p.mu.Lock()
			if t, ok := p.popLocked(); ok {
				p.mu.Unlock()
				return t, true
			}
			shuttingDown := p.shuttingDown
			p.mu.Unlock()
			if shuttingDown {
				return nil, false
			}
			if atomic.LoadInt32(&p.busyWait) == 0 {
				// Busy-wait was turned off while we were spinning; fall
				// through to the parking path below.
				break
			}
			runtime.Gosched()
		}
	}

	p.mu.Lock()
	for {
		if t, ok := p.popLocked(); ok {
			p.mu.Unlock()
			return t, true
		}
		if p.shuttingDown {
			p.mu.Unlock()
			return nil, false
		}
		p.cond.Wait()
	}
}

// Wait blocks until every task in group has completed. The calling (user)
// thread participates: while waiting, it pops and executes the
// highest-cost pending task itself rather than idling. Worker goroutines
// must never call Wait.
func (p *B2ThreadPool) Wait(group *B2TaskGroup, ctx B2ThreadContext) {
	for group.Remaining() > 0 {
		p.mu.Lock()
		task, ok := p.popLocked()
		p.mu.Unlock()
		if !ok {
			if atomic.LoadInt32(&p.busyWait) != 0 {
				runtime.Gosched()
				continue
			}
			// Nothing left to steal; briefly yield for a worker to finish.
			runtime.Gosched()
			continue
		}
		task.Execute(ctx)
		task.group().done()
	}
}

// Shutdown stops all worker goroutines. It is asserted to be called with
// an empty queue: shutting down mid-queue is a programming error, since
// in-flight submissions would be silently dropped.
func (p *B2ThreadPool) Shutdown() {
	p.mu.Lock()
	if len(p.tasks) != 0 {
		pending := len(p.tasks)
		p.mu.Unlock()
		b2Log.Error().Int("pending", pending).Msg("B2ThreadPool.Shutdown called with non-empty queue")
		panic("B2ThreadPool.Shutdown: queue not empty")
	}
	p.shuttingDown = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}
