package box2d

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// B2TaskExecutor is the strategy interface the step orchestrator drives.
// It is an explicit parameter of World.Step rather than a hidden global,
// per the design note on eliminating global singletons, and it is the
// single seam a test can replace to run the same world serially (a pool
// with threadCount 0 still satisfies the full interface).
type B2TaskExecutor interface {
	ThreadCount() int32

	StepBegin()
	StepEnd(profile *B2Profile)

	CreateTaskGroup(scratch *B2StackAllocator) *B2TaskGroup
	DestroyTaskGroup(group *B2TaskGroup, scratch *B2StackAllocator)

	// PartitionRange splits [begin, end) into sub-ranges sized for this
	// executor's worker count.
	PartitionRange(begin, end int) []B2Range

	SubmitTask(group *B2TaskGroup, task B2Task)
	SubmitTasks(group *B2TaskGroup, tasks []B2Task)

	// Wait blocks until every task in group has completed, participating
	// in task execution from the calling thread while it waits.
	Wait(group *B2TaskGroup, ctx B2ThreadContext)
}

// B2ThreadPoolTaskExecutor is the production B2TaskExecutor, backed by a
// B2ThreadPool. StepBegin turns busy-waiting on; by default
// (continuous busy-waiting) it stays on between steps, and StepEnd turns
// it off only after SetContinuousBusyWait(false).
type B2ThreadPoolTaskExecutor struct {
	pool                 *B2ThreadPool
	targetRangeTaskCount int
	continuousBusyWait   bool
	userCtx              B2ThreadContext

	// groupSem bounds the number of task groups outstanding (created but
	// not yet destroyed) at B2_maxConcurrentTaskGroups. The orchestrator
	// never holds more than a couple open at once; this is a backstop
	// against a caller nesting CreateTaskGroup calls without matching
	// DestroyTaskGroup calls.
	groupSem *semaphore.Weighted
}

// NewB2ThreadPoolTaskExecutor constructs an executor with threadCount
// worker goroutines (threadCount < 0 selects B2DefaultThreadCount()).
func NewB2ThreadPoolTaskExecutor(threadCount int32) *B2ThreadPoolTaskExecutor {
	pool := NewB2ThreadPool(threadCount)
	return &B2ThreadPoolTaskExecutor{
		pool:                 pool,
		targetRangeTaskCount: int(2 * pool.GetThreadCount()),
		continuousBusyWait:   true,
		userCtx:              B2ThreadContext{ThreadId: 0, Scratch: NewB2StackAllocator()},
		groupSem:             semaphore.NewWeighted(B2_maxConcurrentTaskGroups),
	}
}

func (e *B2ThreadPoolTaskExecutor) SetContinuousBusyWait(flag bool) { e.continuousBusyWait = flag }
func (e *B2ThreadPoolTaskExecutor) SetTargetRangeTaskCount(n int)   { e.targetRangeTaskCount = n }
func (e *B2ThreadPoolTaskExecutor) ThreadPool() *B2ThreadPool       { return e.pool }

func (e *B2ThreadPoolTaskExecutor) ThreadCount() int32 { return e.pool.GetThreadCount() }

func (e *B2ThreadPoolTaskExecutor) StepBegin() {
	e.pool.ResetTimers()
	e.pool.StartBusyWaiting()
}

func (e *B2ThreadPoolTaskExecutor) StepEnd(profile *B2Profile) {
	if !e.continuousBusyWait {
		e.pool.StopBusyWaiting()
	}
	b2Log.Debug().
		Float64("stepMs", profile.Step).
		Float64("collideMs", profile.Collide).
		Float64("solveMs", profile.Solve).
		Float64("solveTOIMs", profile.SolveTOI).
		Int32("threads", e.ThreadCount()).
		Msg("step complete")
}

func (e *B2ThreadPoolTaskExecutor) CreateTaskGroup(scratch *B2StackAllocator) *B2TaskGroup {
	if err := e.groupSem.Acquire(context.Background(), 1); err != nil {
		panic("B2ThreadPoolTaskExecutor.CreateTaskGroup: " + err.Error())
	}
	return &B2TaskGroup{}
}

func (e *B2ThreadPoolTaskExecutor) DestroyTaskGroup(group *B2TaskGroup, scratch *B2StackAllocator) {
	if group.Remaining() != 0 {
		panic("B2ThreadPoolTaskExecutor.DestroyTaskGroup: group still has outstanding tasks")
	}
	e.groupSem.Release(1)
}

func (e *B2ThreadPoolTaskExecutor) PartitionRange(begin, end int) []B2Range {
	return B2PartitionRange(begin, end, e.targetRangeTaskCount, B2_minRangeTaskSize)
}

func (e *B2ThreadPoolTaskExecutor) SubmitTask(group *B2TaskGroup, task B2Task) {
	e.pool.SubmitTask(group, task)
}

func (e *B2ThreadPoolTaskExecutor) SubmitTasks(group *B2TaskGroup, tasks []B2Task) {
	e.pool.SubmitTasks(group, tasks)
}

func (e *B2ThreadPoolTaskExecutor) Wait(group *B2TaskGroup, ctx B2ThreadContext) {
	e.pool.Wait(group, ctx)
}

// UserThreadContext is the ThreadContext the orchestrator (user thread,
// thread id 0) should pass to Wait and to any work it performs directly.
func (e *B2ThreadPoolTaskExecutor) UserThreadContext() B2ThreadContext { return e.userCtx }

// Shutdown stops the underlying pool. Must be called with no outstanding
// task groups.
func (e *B2ThreadPoolTaskExecutor) Shutdown() { e.pool.Shutdown() }
