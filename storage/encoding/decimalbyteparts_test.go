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

func decimalType(n arrow.Nullability) *arrow.DecimalType {
	return arrow.Decimal(38, 2, n).(*arrow.DecimalType)
}

func TestDecimalBytePartsEncode_Narrow(t *testing.T) {
	values := make([]arrow.Decimal128, 300)
	valid := make([]bool, len(values))
	for i := range values {
		values[i] = arrow.DecimalFromInt64(int64(i*7 - 1000))
		valid[i] = i%30 != 0
	}
	a := array.DecimalFromSlice(decimalType(arrow.Nullable), values, array.ValidityFromBools(valid))

	dbp, err := DecimalBytePartsEncode(a)
	require.NoError(t, err)
	assert.Equal(t, DecimalBytePartsID, dbp.Encoding())
	assert.Nil(t, dbp.Lower())
	p, _ := arrow.PTypeOf(dbp.MSP().DataType())
	assert.Equal(t, arrow.I16, p)
	assert.Equal(t, 10, nullCountOf(t, dbp))

	assertCanonicalMatches(t, a, dbp)
	assertSliceConsistent(t, dbp)
	assertTakeFilter(t, dbp)
	roundTrip(t, dbp)
}

func TestDecimalBytePartsEncode_Wide(t *testing.T) {
	values := []arrow.Decimal128{
		arrow.DecimalFromInt64(5),
		{Lo: 3, Hi: 1},
		{Lo: math.MaxUint64, Hi: -2},
		arrow.DecimalFromInt64(math.MinInt64),
	}
	a := array.DecimalFromSlice(decimalType(arrow.NonNullable), values, array.NonNullable())

	dbp, err := DecimalBytePartsEncode(a)
	require.NoError(t, err)
	require.NotNil(t, dbp.Lower())
	p, _ := arrow.PTypeOf(dbp.MSP().DataType())
	assert.Equal(t, arrow.I8, p)

	s, err := array.ScalarAt(dbp, 2)
	require.NoError(t, err)
	d, ok := s.AsDecimal()
	require.True(t, ok)
	assert.Equal(t, values[2], d)

	assertCanonicalMatches(t, a, dbp)
	assertSliceConsistent(t, dbp)
	assertTakeFilter(t, dbp)
	roundTrip(t, dbp)
}

func TestDecimalByteParts_IsConstant(t *testing.T) {
	values := []arrow.Decimal128{arrow.DecimalFromInt64(9), arrow.DecimalFromInt64(9)}
	a := array.DecimalFromSlice(decimalType(arrow.NonNullable), values, array.NonNullable())
	dbp, err := DecimalBytePartsEncode(a)
	require.NoError(t, err)
	p, ok, err := array.ComputeStat(dbp, array.StatIsConstant)
	require.NoError(t, err)
	require.True(t, ok)
	c, _ := p.Value.AsBool()
	assert.True(t, c)

	ok, err = array.IsConstant(dbp, array.IsConstantOpts{Canonicalize: true})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewDecimalByteParts_Invalid(t *testing.T) {
	dt := decimalType(arrow.NonNullable)
	_, err := NewDecimalByteParts(dt, array.FromSlice([]uint8{1}, array.NonNullable()), nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

	_, err = NewDecimalByteParts(arrow.Primitive(arrow.I64, arrow.NonNullable), array.FromSlice([]int8{1}, array.NonNullable()), nil)
	assert.True(t, errors.Is(err, errors.ErrTypeMismatch))

	_, err = NewDecimalByteParts(dt, array.FromSlice([]int8{1}, array.NonNullable()), array.FromSlice([]uint32{1}, array.NonNullable()))
	assert.True(t, errors.Is(err, errors.ErrTypeMismatch))

	_, err = DecimalBytePartsEncode(array.FromSlice([]int64{1}, array.NonNullable()))
	assert.True(t, errors.Is(err, errors.ErrUnsupportedType))
}
