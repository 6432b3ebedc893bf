package arrow

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wzqhbustb/cascade/storage/errors"
)

func TestScalarCastChecked(t *testing.T) {
	s := IntScalar(I64, 300, NonNullable)

	_, err := s.Cast(Primitive(U8, NonNullable))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrOverflow))

	c, err := s.Cast(Primitive(U16, NonNullable))
	require.NoError(t, err)
	v, ok := c.AsUint64()
	assert.True(t, ok)
	assert.Equal(t, uint64(300), v)

	_, err = IntScalar(I32, -1, NonNullable).Cast(Primitive(U32, NonNullable))
	assert.True(t, errors.Is(err, errors.ErrOverflow))

	_, err = FloatScalar(F64, 1.5, NonNullable).Cast(Primitive(I32, NonNullable))
	assert.True(t, errors.Is(err, errors.ErrOverflow))

	f, err := FloatScalar(F64, -7, NonNullable).Cast(Primitive(I8, NonNullable))
	require.NoError(t, err)
	assert.Equal(t, int8(-7), PrimitiveValue[int8](f))
}

func TestScalarCastNull(t *testing.T) {
	n := NullScalar(Primitive(I32, NonNullable))
	assert.True(t, n.IsNull())
	assert.True(t, n.DataType().Nullable())

	_, err := n.Cast(Primitive(I64, NonNullable))
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

	c, err := n.Cast(Primitive(I64, Nullable))
	require.NoError(t, err)
	assert.True(t, c.IsNull())
}

func TestScalarCompare(t *testing.T) {
	tests := []struct {
		a, b Scalar
		want int
	}{
		{IntScalar(I32, -1, NonNullable), UintScalar(U32, 0, NonNullable), -1},
		{UintScalar(U64, math.MaxUint64, NonNullable), IntScalar(I64, math.MaxInt64, NonNullable), 1},
		{FloatScalar(F64, 2.5, NonNullable), IntScalar(I64, 2, NonNullable), 1},
		{Utf8Scalar("abc", NonNullable), Utf8Scalar("abd", NonNullable), -1},
		{NullScalar(Utf8(Nullable)), Utf8Scalar("", NonNullable), -1},
		{BoolScalar(true, NonNullable), BoolScalar(true, NonNullable), 0},
		{FloatScalar(F64, math.Copysign(0, -1), NonNullable), FloatScalar(F64, 0, NonNullable), -1},
		{FloatScalar(F64, math.NaN(), NonNullable), FloatScalar(F64, math.Inf(1), NonNullable), 1},
	}
	for _, tt := range tests {
		got, err := tt.a.Compare(tt.b)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s vs %s", tt.a, tt.b)
	}

	_, err := Utf8Scalar("a", NonNullable).Compare(IntScalar(I32, 1, NonNullable))
	assert.True(t, errors.Is(err, errors.ErrTypeMismatch))
}

func TestScalarEqualIgnoresNullability(t *testing.T) {
	assert.True(t, IntScalar(I32, 5, NonNullable).Equal(IntScalar(I32, 5, Nullable)))
	assert.False(t, IntScalar(I32, 5, NonNullable).Equal(IntScalar(I64, 5, NonNullable)))
	assert.True(t, FloatScalar(F64, math.NaN(), NonNullable).Equal(FloatScalar(F64, math.NaN(), NonNullable)))
	assert.True(t, NullScalar(Utf8(Nullable)).Equal(NullScalar(Utf8(NonNullable))))
}

func TestScalarMarshalRoundTrip(t *testing.T) {
	listType := ListOf(Primitive(I16, Nullable), NonNullable)
	structType := StructOf([]Field{{"n", Utf8(NonNullable)}, {"d", Decimal(20, 4, Nullable)}}, NonNullable)
	dec, _ := DecimalFromBig(DecimalFromInt64(-123456789).Big())

	scalars := []Scalar{
		NullScalar(Primitive(F32, Nullable)),
		BoolScalar(true, NonNullable),
		IntScalar(I8, -3, NonNullable),
		UintScalar(U64, math.MaxUint64, NonNullable),
		FloatScalar(F64, math.Copysign(0, -1), NonNullable),
		Utf8Scalar("héllo", NonNullable),
		BinaryScalar([]byte{0, 1, 2}, NonNullable),
		DecimalScalar(Decimal(38, 2, NonNullable), dec),
		ListScalar(listType, []Scalar{IntScalar(I16, 1, Nullable), NullScalar(Primitive(I16, Nullable))}),
		StructScalar(structType, []Scalar{Utf8Scalar("x", NonNullable), NullScalar(Decimal(20, 4, Nullable))}),
		UUIDScalar(uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"), NonNullable),
	}
	for _, s := range scalars {
		data, err := s.MarshalBinary()
		require.NoError(t, err)
		got, err := UnmarshalScalar(s.DataType(), data)
		require.NoError(t, err, s.String())
		assert.True(t, s.Equal(got), "%s != %s", s, got)
	}
}

func TestUnmarshalScalarTruncated(t *testing.T) {
	_, err := UnmarshalScalar(Primitive(I64, NonNullable), []byte{1, 2, 3})
	assert.True(t, errors.Is(err, errors.ErrCorrupt))
}

func TestUUIDScalarString(t *testing.T) {
	u := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	assert.Equal(t, u.String(), UUIDScalar(u, NonNullable).String())
}

func TestDecimal128(t *testing.T) {
	d := DecimalFromInt64(-5)
	assert.True(t, d.FitsInt64())
	assert.Equal(t, int64(-5), d.Int64())
	assert.Equal(t, -1, d.Sign())
	assert.Equal(t, "-5", d.String())
	assert.Equal(t, 4, d.SignificantBits())

	big := Decimal128{Lo: 0, Hi: 1}
	assert.False(t, big.FitsInt64())
	assert.Equal(t, 1, big.Cmp(d))
	assert.Equal(t, DecimalFromInt64(5), d.Neg())

	sum, overflow := d.Add(DecimalFromInt64(7))
	assert.False(t, overflow)
	assert.Equal(t, DecimalFromInt64(2), sum)

	assert.Equal(t, "12.34", FormatDecimal(DecimalFromInt64(1234), 2))
}
