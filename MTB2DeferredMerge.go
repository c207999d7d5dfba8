package box2d

import "sort"

// b2SortTasks returns one RangeTask per thread buffer, each sorting that
// thread's slice of T in place. Submitting all of them together is the
// "sorted locally in parallel" half of the deferred-event merge; the
// k-way merge in b2MergeKWay is the serial half.
func b2SortTasks[T any](buffers []b2PerThreadBuffers, label string, get func(*b2PerThreadBuffers) []T, less func(a, b T) bool) []B2Task {
	tasks := make([]B2Task, 0, len(buffers))
	for i := range buffers {
		slice := get(&buffers[i])
		if len(slice) < 2 {
			continue
		}
		s := slice
		tasks = append(tasks, NewB2RangeTask(label, 0, len(s), int32(len(s)), func(begin, end int, ctx B2ThreadContext) {
			sort.Slice(s, func(a, b int) bool { return less(s[a], s[b]) })
		}))
	}
	return tasks
}

// b2MergeKWay merges the already-sorted per-thread slices selected by get,
// calling apply on each record in ascending key order. Ties (equal keys
// from different threads) are broken by thread id, since threads are
// scanned in ascending order and only a strictly smaller head replaces the
// current candidate.
func b2MergeKWay[T any](buffers []b2PerThreadBuffers, get func(*b2PerThreadBuffers) []T, less func(a, b T) bool, apply func(T)) {
	cursors := make([]int, len(buffers))
	for {
		best := -1
		for t := range buffers {
			slice := get(&buffers[t])
			if cursors[t] >= len(slice) {
				continue
			}
			if best == -1 || less(slice[cursors[t]], get(&buffers[best])[cursors[best]]) {
				best = t
			}
		}
		if best == -1 {
			return
		}
		slice := get(&buffers[best])
		apply(slice[cursors[best]])
		cursors[best]++
	}
}

// b2MergeKWayDedupCreates is b2MergeKWay specialized for deferredCreates:
// a run of equal (low,high) keys collapses to a single apply call, per the
// duplicate-suppression rule.
func b2MergeKWayDedupCreates(buffers []b2PerThreadBuffers, apply func(b2DeferredContactCreate)) {
	get := func(b *b2PerThreadBuffers) []b2DeferredContactCreate { return b.deferredCreates }
	var havePrev bool
	var prev b2DeferredContactCreate
	b2MergeKWay(buffers, get, b2DeferredContactCreateLessThan, func(c b2DeferredContactCreate) {
		if havePrev && prev.ProxyIdLow == c.ProxyIdLow && prev.ProxyIdHigh == c.ProxyIdHigh {
			return
		}
		apply(c)
		prev = c
		havePrev = true
	})
}
