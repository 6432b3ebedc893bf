package encoding

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

func TestFoREncode_Ascending(t *testing.T) {
	values := make([]int64, 1000)
	for i := range values {
		values[i] = int64(i)
	}
	a := array.FromSlice(values, array.NonNullable())
	f, err := FoREncode(a)
	require.NoError(t, err)
	assert.Equal(t, int64(0), arrow.PrimitiveValue[int64](f.Reference()))
	assert.Equal(t, uint8(0), f.Shift())

	p, _ := arrow.PTypeOf(f.Encoded().DataType())
	assert.Equal(t, arrow.U64, p)

	assertCanonicalMatches(t, a, f)
	assertSliceConsistent(t, f)
	assertTakeFilter(t, f)
	roundTrip(t, f)
}

func TestFoREncode_ShiftAndNegative(t *testing.T) {
	a := array.FromNullable([]int32{-400, -392, 0, -384, 800}, []bool{true, true, false, true, true})
	f, err := FoREncode(a)
	require.NoError(t, err)
	assert.Equal(t, int32(-400), arrow.PrimitiveValue[int32](f.Reference()))
	assert.Equal(t, uint8(3), f.Shift())
	assert.Equal(t, 1, nullCountOf(t, f))

	assertCanonicalMatches(t, a, f)
	assertSliceConsistent(t, f)
	roundTrip(t, f)
}

func TestFoREncode_FullRange(t *testing.T) {
	a := array.FromSlice([]int8{math.MinInt8, 0, math.MaxInt8}, array.NonNullable())
	f, err := FoREncode(a)
	require.NoError(t, err)
	assertCanonicalMatches(t, a, f)

	u := array.FromSlice([]uint64{math.MaxUint64, 0, 1 << 63}, array.NonNullable())
	fu, err := FoREncode(u)
	require.NoError(t, err)
	assertCanonicalMatches(t, u, fu)
}

func TestFoREncode_Float(t *testing.T) {
	_, err := FoREncode(array.FromSlice([]float32{1, 2}, array.NonNullable()))
	assert.True(t, errors.Is(err, errors.ErrUnsupportedType))
}

func TestFoR_FoldConstant(t *testing.T) {
	f, err := FoREncode(array.FromSlice([]int16{100, 110, 120}, array.NonNullable()))
	require.NoError(t, err)

	rhs, err := NewConstant(arrow.IntScalar(arrow.I16, 5, arrow.NonNullable), f.Len())
	require.NoError(t, err)
	out, err := array.BinaryNumeric(f, rhs, array.Sub)
	require.NoError(t, err)
	require.Equal(t, FoRID, out.Encoding())
	assert.Equal(t, int16(95), arrow.PrimitiveValue[int16](out.(*FoRArray).Reference()))

	v, err := array.ScalarAt(out, 2)
	require.NoError(t, err)
	assert.Equal(t, int16(115), arrow.PrimitiveValue[int16](v))
}

func TestFoR_FoldOverflow(t *testing.T) {
	f, err := FoREncode(array.FromSlice([]int8{100, 120, 127}, array.NonNullable()))
	require.NoError(t, err)
	rhs, err := NewConstant(arrow.IntScalar(arrow.I8, 1, arrow.NonNullable), f.Len())
	require.NoError(t, err)

	_, err = f.BinaryNumeric(rhs, array.Add)
	assert.True(t, errors.Is(err, errors.ErrOverflow))

	uf, err := FoREncode(array.FromSlice([]uint8{0, 3}, array.NonNullable()))
	require.NoError(t, err)
	urhs, err := NewConstant(arrow.UintScalar(arrow.U8, 1, arrow.NonNullable), uf.Len())
	require.NoError(t, err)
	_, err = uf.BinaryNumeric(urhs, array.Sub)
	assert.True(t, errors.Is(err, errors.ErrOverflow))
}

func TestNewFoR_Invalid(t *testing.T) {
	encoded := array.FromSlice([]uint32{1, 2}, array.NonNullable())
	_, err := NewFoR(encoded, arrow.IntScalar(arrow.I64, 0, arrow.NonNullable), 0)
	assert.True(t, errors.Is(err, errors.ErrTypeMismatch))

	_, err = NewFoR(encoded, arrow.IntScalar(arrow.I32, 0, arrow.NonNullable), 32)
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

	_, err = NewFoR(encoded, arrow.NullScalar(arrow.Primitive(arrow.I32, arrow.Nullable)), 0)
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
}
