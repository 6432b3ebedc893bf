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

func TestZigZag_Mapping(t *testing.T) {
	cases := []struct {
		in  int64
		out uint64
	}{
		{0, 0}, {-1, 1}, {1, 2}, {-2, 3}, {2, 4},
		{math.MaxInt64, math.MaxUint64 - 1}, {math.MinInt64, math.MaxUint64},
	}
	for _, c := range cases {
		assert.Equal(t, c.out, zigzagEncode(c.in), "encode %d", c.in)
		assert.Equal(t, c.in, zigzagDecode(c.out), "decode %d", c.out)
	}
}

func TestZigZagEncode_Int16(t *testing.T) {
	a := array.FromNullable([]int16{0, -1, 1, math.MinInt16, math.MaxInt16, 5}, []bool{true, true, true, true, true, false})
	z, err := ZigZagEncode(a)
	require.NoError(t, err)
	assert.Equal(t, ZigZagID, z.Encoding())
	assert.True(t, arrow.Equal(a.DataType(), z.DataType()))

	p, _ := arrow.PTypeOf(z.Encoded().DataType())
	assert.Equal(t, arrow.U16, p)
	enc := array.Values[uint16](z.Encoded().(*array.PrimitiveArray))
	assert.Equal(t, []uint16{0, 1, 2, math.MaxUint16, math.MaxUint16 - 1}, enc[:5])

	assert.Equal(t, 1, nullCountOf(t, z))
	assertCanonicalMatches(t, a, z)
	assertSliceConsistent(t, z)
	assertTakeFilter(t, z)
	roundTrip(t, z)
}

func TestZigZagEncode_Unsigned(t *testing.T) {
	_, err := ZigZagEncode(array.FromSlice([]uint32{1}, array.NonNullable()))
	assert.True(t, errors.Is(err, errors.ErrUnsupportedType))

	_, err = NewZigZag(array.FromSlice([]int32{1}, array.NonNullable()))
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
}
