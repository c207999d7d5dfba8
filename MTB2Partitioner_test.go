package box2d_test

import (
	"testing"

	"github.com/parallel-box2d/box2d-mt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertRangesCoverExactly(t *testing.T, ranges []box2d.B2Range, begin, end int) {
	t.Helper()
	require.NotEmpty(t, ranges)
	require.Equal(t, begin, ranges[0].Begin)
	for i := 1; i < len(ranges); i++ {
		require.Equal(t, ranges[i-1].End, ranges[i].Begin, "ranges must be contiguous")
	}
	require.Equal(t, end, ranges[len(ranges)-1].End)
}

func TestPartitionRangeSizeBalance(t *testing.T) {
	cases := []struct {
		name                  string
		begin, end            int
		targetCount, minSize  int
	}{
		{"evenly divisible", 0, 100, 10, 1},
		{"not evenly divisible", 0, 103, 10, 1},
		{"fewer items than target", 0, 3, 10, 1},
		{"minSize forces fewer ranges", 0, 100, 64, 32},
		{"single item", 5, 6, 8, 1},
		{"offset begin", 17, 117, 4, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ranges := box2d.B2PartitionRange(tc.begin, tc.end, tc.targetCount, tc.minSize)
			assertRangesCoverExactly(t, ranges, tc.begin, tc.end)

			assert.LessOrEqual(t, len(ranges), tc.targetCount)

			min, max := ranges[0].End-ranges[0].Begin, ranges[0].End-ranges[0].Begin
			for _, r := range ranges {
				size := r.End - r.Begin
				if size < min {
					min = size
				}
				if size > max {
					max = size
				}
				if len(ranges) > 1 {
					assert.GreaterOrEqual(t, size, tc.minSize, "no sub-range may be smaller than minSize unless it is the only one")
				}
			}
			assert.LessOrEqual(t, max-min, 1, "sub-range sizes must differ by at most 1")
		})
	}
}

func TestPartitionRangeEmptyInput(t *testing.T) {
	ranges := box2d.B2PartitionRange(10, 10, 4, 1)
	assert.Empty(t, ranges)
}

func TestPartitionRangeTargetCountClampedToMax(t *testing.T) {
	ranges := box2d.B2PartitionRange(0, 10000, 100000, 1)
	assert.LessOrEqual(t, len(ranges), 64, "targetCount must be clamped to B2_partitionRangeMaxOutput")
	assertRangesCoverExactly(t, ranges, 0, 10000)
}
