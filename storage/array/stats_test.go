package array

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wzqhbustb/cascade/storage/arrow"
)

func i64(v int64) arrow.Scalar { return arrow.IntScalar(arrow.I64, v, arrow.NonNullable) }
func boolStat(v bool) Precision { return Exact(arrow.BoolScalar(v, arrow.NonNullable)) }

func statsOf(minV, maxV int64, sorted, constant bool, nulls uint64) *StatsSet {
	s := NewStatsSet()
	s.Set(StatMin, Exact(i64(minV)))
	s.Set(StatMax, Exact(i64(maxV)))
	s.Set(StatIsSorted, boolStat(sorted))
	s.Set(StatIsStrictSorted, boolStat(sorted))
	s.Set(StatIsConstant, boolStat(constant))
	s.Set(StatNullCount, Exact(arrow.UintScalar(arrow.U64, nulls, arrow.NonNullable)))
	return s
}

func statBool(t *testing.T, s *StatsSet, k Stat) bool {
	t.Helper()
	v, ok := s.GetExact(k)
	require.True(t, ok, "missing %s", k)
	b, _ := v.AsBool()
	return b
}

func TestMergeOrderedMinMaxCounts(t *testing.T) {
	m := MergeOrdered(statsOf(1, 5, true, false, 2), statsOf(-3, 4, true, false, 1))

	minV, ok := m.GetExact(StatMin)
	require.True(t, ok)
	assert.Equal(t, int64(-3), arrow.PrimitiveValue[int64](minV))
	maxV, ok := m.GetExact(StatMax)
	require.True(t, ok)
	assert.Equal(t, int64(5), arrow.PrimitiveValue[int64](maxV))

	nulls, ok := m.GetExact(StatNullCount)
	require.True(t, ok)
	assert.Equal(t, uint64(3), arrow.PrimitiveValue[uint64](nulls))

	// overlapping ranges are not sorted across the boundary
	assert.False(t, statBool(t, m, StatIsSorted))
}

func TestMergeOrderedSortedness(t *testing.T) {
	m := MergeOrdered(statsOf(1, 5, true, false, 0), statsOf(5, 9, true, false, 0))
	assert.True(t, statBool(t, m, StatIsSorted))
	assert.False(t, statBool(t, m, StatIsStrictSorted))

	m = MergeOrdered(statsOf(1, 5, true, false, 0), statsOf(6, 9, true, false, 0))
	assert.True(t, statBool(t, m, StatIsStrictSorted))

	m = MergeOrdered(statsOf(1, 5, false, false, 0), statsOf(6, 9, true, false, 0))
	assert.False(t, statBool(t, m, StatIsSorted))
}

func TestMergeOrderedConstant(t *testing.T) {
	m := MergeOrdered(statsOf(7, 7, true, true, 0), statsOf(7, 7, true, true, 0))
	assert.True(t, statBool(t, m, StatIsConstant))

	m = MergeOrdered(statsOf(7, 7, true, true, 0), statsOf(8, 8, true, true, 0))
	assert.False(t, statBool(t, m, StatIsConstant))
}

func TestMergeOrderedDropsMissing(t *testing.T) {
	lhs := NewStatsSet()
	lhs.Set(StatMin, Exact(i64(1)))
	m := MergeOrdered(lhs, NewStatsSet())
	_, ok := m.Get(StatMin)
	assert.False(t, ok)
}

func TestMergeOrderedInexact(t *testing.T) {
	lhs := statsOf(1, 5, true, false, 0)
	lhs.Set(StatMax, Inexact(i64(6)))
	m := MergeOrdered(lhs, statsOf(2, 4, true, false, 0))
	v, ok := m.Get(StatMax)
	require.True(t, ok)
	assert.False(t, v.Exact)
	assert.Equal(t, int64(6), arrow.PrimitiveValue[int64](v.Value))
}

func TestStatsSetInheritAndClone(t *testing.T) {
	s := statsOf(1, 2, true, false, 0)
	c := s.Clone()
	c.Clear(StatMin)
	_, ok := s.Get(StatMin)
	assert.True(t, ok)

	dst := NewStatsSet()
	dst.Inherit(s, StatMin, StatRunCount)
	assert.Equal(t, []Stat{StatMin}, dst.Keys())
}

func TestPrimitiveStatistics(t *testing.T) {
	a := FromNullable([]int32{0, 3, 3, 9}, []bool{false, true, true, true})

	lo, ok, err := ComputeStat(a, StatMin)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int32(3), arrow.PrimitiveValue[int32](lo.Value))

	runs, _, err := ComputeStat(a, StatRunCount)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), arrow.PrimitiveValue[uint64](runs.Value))

	sorted, err := StatBool(a, StatIsSorted)
	require.NoError(t, err)
	assert.True(t, sorted)
	strict, err := StatBool(a, StatIsStrictSorted)
	require.NoError(t, err)
	assert.False(t, strict)

	n, err := NullCount(a)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPrimitiveStatisticsIgnoreNaN(t *testing.T) {
	a := FromSlice([]float64{2, math.NaN(), -1}, NonNullable())
	lo, _, err := ComputeStat(a, StatMin)
	require.NoError(t, err)
	hi, _, err := ComputeStat(a, StatMax)
	require.NoError(t, err)
	assert.Equal(t, -1.0, arrow.PrimitiveValue[float64](lo.Value))
	assert.Equal(t, 2.0, arrow.PrimitiveValue[float64](hi.Value))
}

func TestVarBinStatistics(t *testing.T) {
	a := VarBinFromStrings([]string{"apple", "banana", "cherry"}, NonNullable())
	sorted, err := StatBool(a, StatIsStrictSorted)
	require.NoError(t, err)
	assert.True(t, sorted)
	hi, ok, err := ComputeStat(a, StatMax)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cherry", hi.Value.Value())
}
