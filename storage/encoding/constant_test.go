package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

func TestConstant_Basic(t *testing.T) {
	c, err := NewConstant(arrow.IntScalar(arrow.I32, 7, arrow.NonNullable), 100)
	require.NoError(t, err)
	assert.Equal(t, ConstantID, c.Encoding())
	assert.Equal(t, 100, c.Len())

	s, err := array.ScalarAt(c, 99)
	require.NoError(t, err)
	assert.Equal(t, int32(7), arrow.PrimitiveValue[int32](s))

	_, err = array.ScalarAt(c, 100)
	assert.True(t, errors.Is(err, errors.ErrOutOfBounds))

	canon, err := array.Canonicalize(c)
	require.NoError(t, err)
	vals := array.Values[int32](canon.(*array.PrimitiveArray))
	require.Len(t, vals, 100)
	for _, v := range vals {
		require.Equal(t, int32(7), v)
	}

	assertSliceConsistent(t, c)
	assertTakeFilter(t, c)
	roundTrip(t, c)
}

func TestConstant_Null(t *testing.T) {
	c, err := NewConstant(arrow.NullScalar(arrow.Utf8(arrow.Nullable)), 5)
	require.NoError(t, err)
	assert.Equal(t, 5, nullCountOf(t, c))
	assert.False(t, c.IsValid(3))
	roundTrip(t, c)
}

func TestConstant_NegativeLength(t *testing.T) {
	_, err := NewConstant(arrow.IntScalar(arrow.I8, 1, arrow.NonNullable), -1)
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
}

func TestConstant_Statistics(t *testing.T) {
	c, err := NewConstant(arrow.UintScalar(arrow.U16, 3, arrow.NonNullable), 10)
	require.NoError(t, err)

	ok, err := array.IsConstant(c, array.IsConstantOpts{})
	require.NoError(t, err)
	assert.True(t, ok)

	minP, ok, err := array.ComputeStat(c, array.StatMin)
	require.NoError(t, err)
	require.True(t, ok)
	v, _ := minP.Value.AsUint64()
	assert.Equal(t, uint64(3), v)
}

func TestConstant_CompareAndArithmetic(t *testing.T) {
	c, err := NewConstant(arrow.IntScalar(arrow.I64, 10, arrow.NonNullable), 4)
	require.NoError(t, err)
	rhs, err := NewConstant(arrow.IntScalar(arrow.I64, 5, arrow.NonNullable), 4)
	require.NoError(t, err)

	cmp, err := array.Compare(c, rhs, array.Gt)
	require.NoError(t, err)
	require.IsType(t, &ConstantArray{}, cmp)
	b, _ := cmp.(*ConstantArray).ConstantScalar().AsBool()
	assert.True(t, b)

	sum, err := array.BinaryNumeric(c, rhs, array.Add)
	require.NoError(t, err)
	require.IsType(t, &ConstantArray{}, sum)
	got, _ := sum.(*ConstantArray).ConstantScalar().AsInt64()
	assert.Equal(t, int64(15), got)
}

func TestConstant_TakeNullIndices(t *testing.T) {
	c, err := NewConstant(arrow.IntScalar(arrow.I32, 1, arrow.NonNullable), 3)
	require.NoError(t, err)
	indices := array.FromNullable([]uint8{0, 1, 2}, []bool{true, false, true})
	out, err := array.Take(c, indices)
	require.NoError(t, err)
	assert.Equal(t, 1, nullCountOf(t, out))
	assert.False(t, out.IsValid(1))
}
