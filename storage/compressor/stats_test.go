package compressor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wzqhbustb/cascade/storage/array"
)

func allValid(int) bool { return true }

func TestCountRuns(t *testing.T) {
	keys := []uint64{1, 1, 2, 2, 2, 3, 1}
	valid, runs := countRuns(keys, allValid)
	assert.Equal(t, 7, valid)
	assert.Equal(t, 4, runs)

	// nulls at 2 and 3 form one run
	nulls := func(i int) bool { return i != 2 && i != 3 }
	valid, runs = countRuns(keys, nulls)
	assert.Equal(t, 5, valid)
	assert.Equal(t, 5, runs)

	valid, runs = countRuns(nil, allValid)
	assert.Zero(t, valid)
	assert.Zero(t, runs)
}

func TestCountDistinct(t *testing.T) {
	keys := []uint64{5, 5, 5, 7, 9, 9}
	distinct, dominant, exact := countDistinct(keys, allValid)
	assert.Equal(t, 3, distinct)
	assert.Equal(t, 3, dominant)
	assert.True(t, exact)

	// nulls dominate
	valid := func(i int) bool { return i == 0 }
	distinct, dominant, _ = countDistinct(keys, valid)
	assert.Equal(t, 1, distinct)
	assert.Equal(t, 5, dominant)
}

func TestEstimateCardinality(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		maxError float64
	}{
		{"small", 100, 0.1},
		{"medium", 10000, 0.1},
		{"large", 200000, 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys := make([]uint64, tt.n)
			for i := range keys {
				keys[i] = uint64(i)
			}
			estimate := float64(estimateCardinality(keys, allValid))
			errRate := (estimate - float64(tt.n)) / float64(tt.n)
			if errRate < 0 {
				errRate = -errRate
			}
			assert.LessOrEqual(t, errRate, tt.maxError, "estimate %v for %d", estimate, tt.n)
		})
	}
}

func TestComputeStats_Integers(t *testing.T) {
	values := []int64{-3, -3, -3, 0, 0, 4, 4, 4, 4, 4}
	valid := []bool{true, true, true, true, false, true, true, true, true, true}
	st, err := ComputeStats(array.FromNullable(values, valid))
	require.NoError(t, err)

	assert.True(t, st.IsPrimitive)
	assert.False(t, st.IsVarBin)
	assert.Equal(t, 10, st.Len)
	assert.Equal(t, 9, st.Valid)
	assert.Equal(t, 3, st.Distinct)
	assert.True(t, st.DistinctExact)
	assert.Equal(t, 4, st.Runs)
	assert.Equal(t, 5, st.Dominant)
	assert.True(t, st.Negative)
	assert.InDelta(t, 0.4, st.RunRatio(), 1e-9)
	assert.InDelta(t, 0.5, st.DominantRatio(), 1e-9)
}

func TestComputeStats_Strings(t *testing.T) {
	st, err := ComputeStats(testStrings(t, 100))
	require.NoError(t, err)
	assert.True(t, st.IsVarBin)
	assert.False(t, st.IsPrimitive)
	assert.Equal(t, 5, st.Distinct)
	assert.Equal(t, 100, st.Runs)
	assert.Equal(t, 20, st.Dominant)
}

func TestComputeStats_TimestampsAreNotPrimitive(t *testing.T) {
	st, err := ComputeStats(testTimestamps(t, 50))
	require.NoError(t, err)
	assert.False(t, st.IsPrimitive)
	assert.False(t, st.IsVarBin)
	assert.Equal(t, 50, st.Distinct)
}

func TestSampleStarts(t *testing.T) {
	const n, size, count = 10000, 64, 16
	a := sampleStarts(n, size, count, 3)
	b := sampleStarts(n, size, count, 3)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, sampleStarts(n, size, count, 4))

	part := n / count
	for k, start := range a {
		assert.GreaterOrEqual(t, start, k*part)
		assert.LessOrEqual(t, start+size, n)
		if k < count-1 {
			assert.LessOrEqual(t, start+size, (k+1)*part)
		}
	}

	// partitions shorter than a slice start at the partition
	tight := sampleStarts(100, 64, 4, 0)
	assert.Equal(t, []int{0, 25, 36, 36}, tight)
}

func TestCompressor_Sample(t *testing.T) {
	c := newTestCompressor(t, WithSampling(16, 4))
	small := int64Range(0, 64)
	s, err := c.sample(small)
	require.NoError(t, err)
	assert.Equal(t, 64, s.Len())

	large := int64Range(0, 1000)
	s, err = c.sample(large)
	require.NoError(t, err)
	require.Equal(t, 64, s.Len())

	canon, err := array.Canonicalize(s)
	require.NoError(t, err)
	got := array.Values[int64](canon.(*array.PrimitiveArray))
	for k := 0; k < 4; k++ {
		slice := got[k*16 : (k+1)*16]
		for i := 1; i < len(slice); i++ {
			assert.Equal(t, slice[i-1]+1, slice[i], "slice %d is contiguous", k)
		}
		assert.GreaterOrEqual(t, slice[0], int64(k*250))
	}
}
