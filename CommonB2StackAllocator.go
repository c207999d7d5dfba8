package box2d

// B2StackAllocator is a minimal per-thread scratch arena. The original
// engine's general-purpose block/stack allocators are out of scope for this
// port (Go's garbage collector makes them unnecessary for long-lived
// objects); this type exists only to give the Task contract's
// ctx.scratch parameter, and CreateTaskGroup's scratch parameter, somewhere
// real to live, and to let island construction reuse a buffer across
// islands within one worker instead of allocating a fresh slice per island.
type B2StackAllocator struct {
	bodies []*B2Body
}

func NewB2StackAllocator() *B2StackAllocator {
	return &B2StackAllocator{}
}

// BodyStack returns a zero-length slice backed by this allocator's
// reusable buffer, growing it if necessary. Callers must not retain the
// slice beyond the task that requested it.
func (a *B2StackAllocator) BodyStack(capacity int) []*B2Body {
	if cap(a.bodies) < capacity {
		a.bodies = make([]*B2Body, 0, capacity)
	}
	return a.bodies[:0]
}
