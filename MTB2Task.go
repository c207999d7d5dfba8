package box2d

// B2ThreadContext is passed to every task's execution. It replaces the
// mutable, thread_local b2_threadId of the original engine with an explicit
// parameter, per the design note on thread-local storage.
type B2ThreadContext struct {
	ThreadId uint32
	Scratch  *B2StackAllocator
}

// B2Task is the common contract for anything the thread pool can execute.
// Concrete task kinds (B2RangeTask, B2SolveTask) are tagged sum types that
// satisfy this interface, replacing virtual dispatch on Task/RangeTask.
type B2Task interface {
	Execute(ctx B2ThreadContext)
	Cost() int32
	group() *B2TaskGroup
	setGroup(g *B2TaskGroup)
}

// b2TaskBase factors out the bookkeeping every concrete task needs: its
// cost (used as the heap key) and the group it reports completion to.
type b2TaskBase struct {
	cost int32
	grp  *B2TaskGroup
}

func (b *b2TaskBase) Cost() int32           { return b.cost }
func (b *b2TaskBase) group() *B2TaskGroup   { return b.grp }
func (b *b2TaskBase) setGroup(g *B2TaskGroup) { b.grp = g }

// B2RangeTaskFunc is executed by a B2RangeTask over its assigned sub-range.
type B2RangeTaskFunc func(begin, end int, ctx B2ThreadContext)

// B2RangeTask executes a function over a contiguous sub-range [begin, end).
// FindNewContacts, Collide, GenerateDeferredMoveProxies, the deferred-buffer
// sorts, and the pre-solve flag reset are all instances of this one task
// shape, distinguished only by label (for profiling) and closure.
type B2RangeTask struct {
	b2TaskBase
	Begin, End int
	Label      string
	Fn         B2RangeTaskFunc
}

func NewB2RangeTask(label string, begin, end int, cost int32, fn B2RangeTaskFunc) *B2RangeTask {
	return &B2RangeTask{Begin: begin, End: end, Label: label, Fn: fn, b2TaskBase: b2TaskBase{cost: cost}}
}

func (t *B2RangeTask) Execute(ctx B2ThreadContext) {
	t.Fn(t.Begin, t.End, ctx)
}

// B2SolveTask solves a batch of islands that were accumulated serially
// during the DFS traversal in B2World.Solve. Each island in the batch is
// disjoint from every island in every other SolveTask on its dynamic
// bodies, so two SolveTasks may run concurrently without coordination.
type B2SolveTask struct {
	b2TaskBase
	Islands    []*B2Island
	Step       B2TimeStep
	Gravity    B2Vec2
	AllowSleep bool

	// Buffers is the contact manager's per-thread deferred-event buffer
	// slice; Execute indexes it with its own ctx.ThreadId so any
	// listener event it queues lands in a buffer no other thread writes.
	Buffers []b2PerThreadBuffers

	// Profile accumulates the per-island profile totals for this batch;
	// the caller sums these across all SolveTasks in a step.
	Profile B2Profile
}

func NewB2SolveTask(step B2TimeStep, gravity B2Vec2, allowSleep bool, buffers []b2PerThreadBuffers) *B2SolveTask {
	return &B2SolveTask{Step: step, Gravity: gravity, AllowSleep: allowSleep, Buffers: buffers}
}

// b2IslandCost weights bodies, contacts, and joints roughly proportionally
// to their per-iteration solve cost. Contacts and joints are visited once
// per velocity iteration plus the position solver pass, bodies are only
// integrated once, so they carry a much smaller weight.
func b2IslandCost(bodyCount, contactCount, jointCount int) int32 {
	return int32(bodyCount + 6*contactCount + 6*jointCount)
}

// Add appends an island to the batch and returns the batch's new cost.
func (t *B2SolveTask) Add(island *B2Island) int32 {
	t.Islands = append(t.Islands, island)
	t.cost += b2IslandCost(island.M_bodyCount, island.M_contactCount, island.M_jointCount)
	return t.cost
}

func (t *B2SolveTask) BodyCount() int {
	n := 0
	for _, isl := range t.Islands {
		n += isl.M_bodyCount
	}
	return n
}

func (t *B2SolveTask) Execute(ctx B2ThreadContext) {
	buf := &t.Buffers[ctx.ThreadId]
	for _, island := range t.Islands {
		profile := MakeB2Profile()
		island.Solve(&profile, t.Step, t.Gravity, t.AllowSleep, ctx.ThreadId, buf)
		t.Profile.SolveInit += profile.SolveInit
		t.Profile.SolveVelocity += profile.SolveVelocity
		t.Profile.SolvePosition += profile.SolvePosition
	}
}
