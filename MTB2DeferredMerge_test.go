package box2d

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMergeKWayIsStableUnderThreadAssignment builds the same set of
// deferredCreates records distributed across a different number of
// threads and checks that the merge produces the identical, sorted,
// deduplicated sequence regardless of how the records were sharded.
// This is the unit-level version of testable property 4 (merge
// determinism) and property "duplicate deferred creates merge to a
// single create".
func TestMergeKWayIsStableUnderThreadAssignment(t *testing.T) {
	records := []b2DeferredContactCreate{
		{ProxyIdLow: 5, ProxyIdHigh: 9},
		{ProxyIdLow: 1, ProxyIdHigh: 2},
		{ProxyIdLow: 1, ProxyIdHigh: 2}, // duplicate of the one above
		{ProxyIdLow: 3, ProxyIdHigh: 4},
		{ProxyIdLow: 1, ProxyIdHigh: 8},
		{ProxyIdLow: 0, ProxyIdHigh: 100},
		{ProxyIdLow: 3, ProxyIdHigh: 4}, // duplicate
	}

	shardings := [][]int{
		{len(records)},          // everything on one thread
		{1, 1, 1, 1, 1, 1, 1},   // one record per thread
		{3, 0, 4},               // uneven, with an empty thread
		{2, 2, 2, 1},
	}

	var want []b2DeferredContactCreate
	for _, shardCounts := range shardings {
		buffers := make([]b2PerThreadBuffers, len(shardCounts))
		cursor := 0
		for i, n := range shardCounts {
			buffers[i].deferredCreates = append([]b2DeferredContactCreate(nil), records[cursor:cursor+n]...)
			cursor += n
		}
		require.Equal(t, len(records), cursor)

		tasks := b2SortTasks(buffers, "sort-creates",
			func(b *b2PerThreadBuffers) []b2DeferredContactCreate { return b.deferredCreates },
			b2DeferredContactCreateLessThan)
		ctx := B2ThreadContext{}
		for _, task := range tasks {
			task.Execute(ctx)
		}

		var got []b2DeferredContactCreate
		b2MergeKWayDedupCreates(buffers, func(c b2DeferredContactCreate) {
			got = append(got, c)
		})

		if want == nil {
			want = got
		} else {
			assert.Equal(t, want, got, "merge result must not depend on how records were sharded across threads")
		}

		for i := 1; i < len(got); i++ {
			assert.True(t, b2DeferredContactCreateLessThan(got[i-1], got[i]), "merged output must be strictly increasing after dedup")
		}
	}

	require.Len(t, want, 5, "two duplicate pairs among seven records should collapse to five creates")
}

// TestMergeKWayTieBreaksByThreadID checks that when two threads' current
// heads compare equal, the merge consistently prefers the lower thread
// id (ascending scan order), rather than depending on map/slice
// iteration order.
func TestMergeKWayTieBreaksByThreadID(t *testing.T) {
	buffers := []b2PerThreadBuffers{
		{deferredMoveProxies: []b2DeferredMoveProxy{{ProxyId: 5, Displacement: B2Vec2{X: 0}}, {ProxyId: 9, Displacement: B2Vec2{X: 0}}}},
		{deferredMoveProxies: []b2DeferredMoveProxy{{ProxyId: 5, Displacement: B2Vec2{X: 1}}, {ProxyId: 7, Displacement: B2Vec2{X: 1}}}},
	}

	var got []int
	var from []float64
	b2MergeKWay(buffers,
		func(b *b2PerThreadBuffers) []b2DeferredMoveProxy { return b.deferredMoveProxies },
		b2DeferredMoveProxyLessThan,
		func(m b2DeferredMoveProxy) {
			got = append(got, m.ProxyId)
			from = append(from, m.Displacement.X)
		})

	assert.Equal(t, []int{5, 5, 7, 9}, got)
	assert.Equal(t, []float64{0, 1, 1, 0}, from, "equal keys must come from the lower thread id first")
}

func TestSortTasksSkipsShortBuffers(t *testing.T) {
	buffers := []b2PerThreadBuffers{
		{deferredMoveProxies: []b2DeferredMoveProxy{{ProxyId: 1}}},
		{deferredMoveProxies: nil},
		{deferredMoveProxies: []b2DeferredMoveProxy{{ProxyId: 3}, {ProxyId: 2}}},
	}
	tasks := b2SortTasks(buffers, "sort-moves",
		func(b *b2PerThreadBuffers) []b2DeferredMoveProxy { return b.deferredMoveProxies },
		b2DeferredMoveProxyLessThan)
	assert.Len(t, tasks, 1, "a buffer with 0 or 1 elements needs no sort task")
}
