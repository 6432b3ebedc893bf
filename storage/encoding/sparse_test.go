package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

func newTestSparse(t *testing.T) *SparseArray {
	t.Helper()
	patches, err := array.NewPatches(1000, 0,
		array.FromSlice([]uint16{0}, array.NonNullable()),
		array.FromSlice([]int64{0}, array.NonNullable()))
	require.NoError(t, err)
	s, err := NewSparse(patches, arrow.IntScalar(arrow.I64, 999, arrow.NonNullable))
	require.NoError(t, err)
	return s
}

func TestSparse_SliceDecodesToPrimitive(t *testing.T) {
	s := newTestSparse(t)

	sliced, err := array.Slice(s, 0, 1000)
	require.NoError(t, err)
	canon, err := array.Canonicalize(sliced)
	require.NoError(t, err)
	p, ok := canon.(*array.PrimitiveArray)
	require.True(t, ok)

	vals := array.Values[int64](p)
	require.Len(t, vals, 1000)
	assert.Equal(t, int64(0), vals[0])
	for i := 1; i < len(vals); i++ {
		require.Equal(t, int64(999), vals[i], "index %d", i)
	}
}

func TestSparse_SliceDegenerates(t *testing.T) {
	s := newTestSparse(t)

	tail, err := array.Slice(s, 10, 20)
	require.NoError(t, err)
	assert.Equal(t, ConstantID, tail.Encoding())

	head, err := array.Slice(s, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, array.PrimitiveID, head.Encoding())
	v, err := array.ScalarAt(head, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), arrow.PrimitiveValue[int64](v))
}

func TestSparse_ScalarAt(t *testing.T) {
	s := newTestSparse(t)
	v, err := array.ScalarAt(s, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), arrow.PrimitiveValue[int64](v))
	v, err = array.ScalarAt(s, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(999), arrow.PrimitiveValue[int64](v))

	_, err = array.ScalarAt(s, 1000)
	assert.True(t, errors.Is(err, errors.ErrOutOfBounds))
}

func TestSparse_RoundTrip(t *testing.T) {
	src := make([]int32, 300)
	valid := make([]bool, 300)
	for i := range src {
		src[i] = 5
		valid[i] = true
		if i%37 == 0 {
			src[i] = int32(i)
		}
		if i%101 == 3 {
			valid[i] = false
		}
	}
	a := array.FromNullable(src, valid)
	s, err := SparseEncode(a, arrow.IntScalar(arrow.I32, 5, arrow.Nullable))
	require.NoError(t, err)
	assert.Equal(t, 3, nullCountOf(t, s))

	assertCanonicalMatches(t, a, s)
	assertSliceConsistent(t, s)
	assertTakeFilter(t, s)
	roundTrip(t, s)
}

func TestSparse_NullFill(t *testing.T) {
	a := array.VarBinFromStrings([]string{"", "x", "", "", "yz"},
		array.ValidityFromBools([]bool{false, true, false, false, true}))
	s, err := SparseEncode(a, arrow.NullScalar(a.DataType()))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Patches().NumPatches())
	assert.Equal(t, 3, nullCountOf(t, s))
	assertCanonicalMatches(t, a, s)
	roundTrip(t, s)
}

func TestSparse_IsConstant(t *testing.T) {
	patches, err := array.NewPatches(10, 0,
		array.FromSlice([]uint8{2, 4}, array.NonNullable()),
		array.FromSlice([]int64{999, 999}, array.NonNullable()))
	require.NoError(t, err)
	s, err := NewSparse(patches, arrow.IntScalar(arrow.I64, 999, arrow.NonNullable))
	require.NoError(t, err)
	ok, err := array.IsConstant(s, array.IsConstantOpts{})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = array.IsConstant(newTestSparse(t), array.IsConstantOpts{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSparse_Compare(t *testing.T) {
	s := newTestSparse(t)
	rhs, err := NewConstant(arrow.IntScalar(arrow.I64, 0, arrow.NonNullable), s.Len())
	require.NoError(t, err)
	out, err := array.Compare(s, rhs, array.Eq)
	require.NoError(t, err)

	v, err := array.ScalarAt(out, 0)
	require.NoError(t, err)
	b, _ := v.AsBool()
	assert.True(t, b)
	v, err = array.ScalarAt(out, 1)
	require.NoError(t, err)
	b, _ = v.AsBool()
	assert.False(t, b)
}

func TestSparse_TypeMismatch(t *testing.T) {
	patches, err := array.NewPatches(4, 0,
		array.FromSlice([]uint8{1}, array.NonNullable()),
		array.FromSlice([]int64{1}, array.NonNullable()))
	require.NoError(t, err)
	_, err = NewSparse(patches, arrow.IntScalar(arrow.I32, 0, arrow.NonNullable))
	assert.True(t, errors.Is(err, errors.ErrTypeMismatch))
}
