package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/arrow"
)

// roundTrip serializes a to parts, decodes it back and checks every element.
func roundTrip(t *testing.T, a array.Array) array.Array {
	t.Helper()
	parts, err := array.ToParts(a)
	require.NoError(t, err)
	out, err := array.Decode(parts, nil, a.DataType(), a.Len())
	require.NoError(t, err)
	assert.Equal(t, a.Encoding(), out.Encoding())
	assertSameValues(t, a, out)
	return out
}

func assertSameValues(t *testing.T, want, got array.Array) {
	t.Helper()
	require.Equal(t, want.Len(), got.Len())
	for i := 0; i < want.Len(); i++ {
		w, err := array.ScalarAt(want, i)
		require.NoError(t, err)
		g, err := array.ScalarAt(got, i)
		require.NoError(t, err)
		require.True(t, w.Equal(g), "index %d: want %s got %s", i, w, g)
	}
}

// assertCanonicalMatches decodes a and compares it with the source array.
func assertCanonicalMatches(t *testing.T, src, a array.Array) {
	t.Helper()
	c, err := array.Canonicalize(a)
	require.NoError(t, err)
	assertSameValues(t, src, c)
	assertSameValues(t, src, a)
}

// assertSliceConsistent checks slice(a, start, stop)[i] == a[start+i] over a
// handful of ranges.
func assertSliceConsistent(t *testing.T, a array.Array) {
	t.Helper()
	n := a.Len()
	ranges := [][2]int{{0, n}, {0, 0}, {n / 3, n / 2}, {1, n}, {n / 2, n}, {1, 1}, {n / 2, n / 2}, {n, n}}
	for _, r := range ranges {
		start, stop := r[0], r[1]
		if start > stop || stop > n {
			continue
		}
		s, err := array.Slice(a, start, stop)
		require.NoError(t, err)
		require.Equal(t, stop-start, s.Len())
		if start == stop {
			// an empty slice still serializes
			parts, err := array.ToParts(s)
			require.NoError(t, err)
			_, err = array.Decode(parts, nil, s.DataType(), 0)
			require.NoError(t, err)
			continue
		}
		for i := 0; i < s.Len(); i++ {
			w, err := array.ScalarAt(a, start+i)
			require.NoError(t, err)
			g, err := array.ScalarAt(s, i)
			require.NoError(t, err)
			require.True(t, w.Equal(g), "slice [%d,%d) index %d: want %s got %s", start, stop, i, w, g)
		}
	}
}

// assertTakeFilter checks the gather kernels against the canonical form.
func assertTakeFilter(t *testing.T, a array.Array) {
	t.Helper()
	n := a.Len()
	if n == 0 {
		return
	}
	canon, err := array.Canonicalize(a)
	require.NoError(t, err)

	bools := make([]bool, n)
	for i := range bools {
		bools[i] = i%3 != 1
	}
	mask := arrow.NewBitmapFromBools(bools)

	none, err := array.Filter(a, arrow.NewBitmap(n))
	require.NoError(t, err)
	assert.Equal(t, 0, none.Len())
	if n > 3 {
		tail, err := array.Slice(a, 3, n)
		require.NoError(t, err)
		none, err = array.Filter(tail, arrow.NewBitmap(n-3))
		require.NoError(t, err)
		assert.Equal(t, 0, none.Len())
	}
	want, err := array.Filter(canon, mask)
	require.NoError(t, err)
	got, err := array.Filter(a, mask)
	require.NoError(t, err)
	assertSameValues(t, want, got)

	idx := []uint32{uint32(n - 1), 0, uint32(n / 2), uint32(n / 2)}
	indices := array.FromSlice(idx, array.NonNullable())
	want, err = array.Take(canon, indices)
	require.NoError(t, err)
	got, err = array.Take(a, indices)
	require.NoError(t, err)
	assertSameValues(t, want, got)
}

func nullCountOf(t *testing.T, a array.Array) int {
	t.Helper()
	n, err := array.NullCount(a)
	require.NoError(t, err)
	return n
}

func TestNestedEncodingsRoundTrip(t *testing.T) {
	values := make([]int64, 3000)
	for i := range values {
		values[i] = int64(i%40)*1000 - 5000
	}
	a := array.FromSlice(values, array.NonNullable())

	d, err := DictEncode(a)
	require.NoError(t, err)
	codes, err := BitPack(d.Codes(), 6)
	require.NoError(t, err)
	dictValues, err := FoREncode(d.Values())
	require.NoError(t, err)
	packedValues, err := BitPack(dictValues.Encoded(), 13)
	require.NoError(t, err)
	forValues, err := NewFoR(packedValues, dictValues.Reference(), dictValues.Shift())
	require.NoError(t, err)
	nested, err := NewDict(codes, forValues)
	require.NoError(t, err)

	c, err := array.Canonicalize(nested)
	require.NoError(t, err)
	assert.True(t, array.IsCanonical(c))
	assert.Equal(t, array.PrimitiveID, c.Encoding())

	assertCanonicalMatches(t, a, nested)
	assertSliceConsistent(t, nested)
	assertTakeFilter(t, nested)
	out := roundTrip(t, nested)
	assert.Equal(t, BitPackedID, out.(*DictArray).Codes().Encoding())
	assert.Equal(t, FoRID, out.(*DictArray).Values().Encoding())
}
