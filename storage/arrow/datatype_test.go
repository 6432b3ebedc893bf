package arrow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDataTypeNames(t *testing.T) {
	tests := []struct {
		dt   DataType
		want string
	}{
		{Null(), "null"},
		{Bool(NonNullable), "bool"},
		{Primitive(I32, Nullable), "i32?"},
		{Utf8(NonNullable), "utf8"},
		{ListOf(Primitive(F64, NonNullable), Nullable), "list<f64>?"},
		{StructOf([]Field{{"a", Primitive(U8, NonNullable)}, {"b", Utf8(Nullable)}}, NonNullable), "struct{a: u8, b: utf8?}"},
		{Decimal(10, 2, NonNullable), "decimal(10,2)"},
		{Timestamp(Microsecond, "UTC", NonNullable), "timestamp[us, UTC]"},
		{Date(Day, Nullable), "date[D]?"},
		{UUID(NonNullable), "uuid"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.dt.Name())
	}
}

func TestDataTypeEquality(t *testing.T) {
	a := StructOf([]Field{{"x", Primitive(I64, NonNullable)}}, NonNullable)
	b := StructOf([]Field{{"x", Primitive(I64, Nullable)}}, Nullable)

	assert.False(t, Equal(a, b))
	assert.True(t, EqualIgnoreNullability(a, b))
	assert.True(t, Equal(AsNullable(Primitive(U16, NonNullable)), Primitive(U16, Nullable)))
	assert.False(t, Equal(Primitive(U16, NonNullable), Primitive(I16, NonNullable)))
	assert.False(t, Equal(Decimal(10, 2, NonNullable), Decimal(10, 3, NonNullable)))
	assert.False(t, Equal(Timestamp(Second, "", NonNullable), Timestamp(Millisecond, "", NonNullable)))
}

func TestExtensionNullabilityFollowsStorage(t *testing.T) {
	ts := Timestamp(Nanosecond, "", NonNullable)
	assert.False(t, ts.Nullable())

	n := AsNullable(ts)
	assert.True(t, n.Nullable())
	assert.True(t, StorageType(n).Nullable())

	unit, tz, ok := TimestampOptions(n)
	assert.True(t, ok)
	assert.Equal(t, Nanosecond, unit)
	assert.Empty(t, tz)
}

func TestPType(t *testing.T) {
	assert.Equal(t, U32, I32.ToUnsigned())
	assert.Equal(t, I8, U8.ToSigned())
	assert.Equal(t, 8, F64.ByteWidth())
	assert.True(t, I16.IsSigned())
	assert.False(t, F32.IsInt())
	assert.Equal(t, U16, UnsignedForBits(10))
	assert.Equal(t, I64, SignedForBits(33))
	assert.Equal(t, I32, PTypeFor[int32]())
	assert.Equal(t, F32, PTypeFor[float32]())
}
