package array

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

func TestPrimitiveBuilder(t *testing.T) {
	b := NewPrimitiveBuilder[int32](arrow.Nullable)
	b.Reserve(4)
	b.Append(1)
	b.AppendNull()
	b.AppendValues([]int32{3, 4})
	assert.Equal(t, 4, b.Len())

	arr, err := b.NewPrimitiveArray()
	require.NoError(t, err)
	assert.Equal(t, 4, arr.Len())
	assert.False(t, arr.IsValid(1))
	assert.Equal(t, int32(4), Values[int32](arr)[3])

	// the builder resets after NewArray
	assert.Equal(t, 0, b.Len())
}

func TestBuilderRejectsNullWhenNonNullable(t *testing.T) {
	b := NewPrimitiveBuilder[uint8](arrow.NonNullable)
	b.AppendNull()
	_, err := b.NewArray()
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
}

func TestFromScalars(t *testing.T) {
	cases := []struct {
		name string
		dt   arrow.DataType
		vals []arrow.Scalar
	}{
		{"bool", arrow.Bool(arrow.Nullable), []arrow.Scalar{
			arrow.BoolScalar(true, arrow.Nullable), arrow.NullScalar(arrow.Bool(arrow.Nullable)),
		}},
		{"utf8", arrow.Utf8(arrow.NonNullable), []arrow.Scalar{
			arrow.Utf8Scalar("a", arrow.NonNullable), arrow.Utf8Scalar("bc", arrow.NonNullable),
		}},
		{"decimal", arrow.Decimal(10, 2, arrow.NonNullable), []arrow.Scalar{
			arrow.DecimalScalar(arrow.Decimal(10, 2, arrow.NonNullable), arrow.DecimalFromInt64(12345)),
		}},
		{"f64", arrow.Primitive(arrow.F64, arrow.NonNullable), []arrow.Scalar{
			arrow.FloatScalar(arrow.F64, 1.25, arrow.NonNullable),
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			arr, err := FromScalars(tc.dt, tc.vals)
			require.NoError(t, err)
			require.Equal(t, len(tc.vals), arr.Len())
			assert.True(t, IsCanonical(arr))
			for i, want := range tc.vals {
				got, err := ScalarAt(arr, i)
				require.NoError(t, err)
				assert.True(t, want.Equal(got), "index %d: want %s got %s", i, want, got)
			}
		})
	}
}

func TestStructBuilder(t *testing.T) {
	dt := arrow.StructOf([]arrow.Field{
		{Name: "id", Type: arrow.Primitive(arrow.I64, arrow.NonNullable)},
		{Name: "name", Type: arrow.Utf8(arrow.Nullable)},
	}, arrow.Nullable).(*arrow.StructType)

	b, err := NewStructBuilder(dt)
	require.NoError(t, err)
	b.FieldBuilder(0).(*PrimitiveBuilder[int64]).Append(7)
	b.FieldBuilder(1).(*VarBinBuilder).AppendString("seven")
	b.Append()
	b.AppendNull()

	arr, err := b.NewArray()
	require.NoError(t, err)
	s := arr.(*StructArray)
	assert.Equal(t, 2, s.Len())
	assert.False(t, s.IsValid(1))

	v, err := ScalarAt(s, 0)
	require.NoError(t, err)
	fields := v.Children()
	require.Len(t, fields, 2)
	assert.Equal(t, "seven", fields[1].Value())
}

func TestListBuilder(t *testing.T) {
	dt := arrow.ListOf(arrow.Primitive(arrow.I32, arrow.NonNullable), arrow.Nullable).(*arrow.ListType)
	b := NewListBuilder(dt, NewPrimitiveBuilder[int32](arrow.NonNullable))
	vb := b.ValueBuilder().(*PrimitiveBuilder[int32])
	vb.AppendValues([]int32{1, 2, 3})
	b.Append(true)
	b.AppendNull()
	vb.Append(4)
	b.Append(true)

	arr, err := b.NewArray()
	require.NoError(t, err)
	l := arr.(*ListArray)
	assert.Equal(t, 3, l.Len())
	assert.Equal(t, []int64{0, 3, 3, 4}, l.Offsets())

	elems, err := l.ElementsAt(2)
	require.NoError(t, err)
	assert.Equal(t, []int32{4}, Values[int32](elems.(*PrimitiveArray)))

	taken, err := Take(l, FromSlice([]uint8{2, 0}, NonNullable()))
	require.NoError(t, err)
	s, err := ScalarAt(taken, 1)
	require.NoError(t, err)
	assert.Len(t, s.Children(), 3)
}

func TestExtensionArrays(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	arr, err := NewUUIDArray(ids, NonNullable())
	require.NoError(t, err)
	s, err := ScalarAt(arr, 1)
	require.NoError(t, err)
	assert.Equal(t, ids[1].String(), s.String())

	ts, err := NewTimestampArray(arrow.Millisecond, "UTC", []int64{30, 10, 20}, NonNullable())
	require.NoError(t, err)
	lo, ok, err := ComputeStat(ts, StatMin)
	require.NoError(t, err)
	require.True(t, ok)
	v, _ := lo.Value.Storage().AsInt64()
	assert.Equal(t, int64(10), v)

	cmp, err := Compare(ts, ts, Eq)
	require.NoError(t, err)
	assert.Equal(t, 3, cmp.(*BoolArray).TrueCount())
}

func TestAllNullsAndRepeat(t *testing.T) {
	a, err := AllNulls(arrow.Primitive(arrow.I32, arrow.Nullable), 4)
	require.NoError(t, err)
	n, err := NullCount(a)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	r, err := Repeat(arrow.Utf8Scalar("x", arrow.NonNullable), 3)
	require.NoError(t, err)
	c, err := IsConstant(r, IsConstantOpts{})
	require.NoError(t, err)
	assert.True(t, c)
}
