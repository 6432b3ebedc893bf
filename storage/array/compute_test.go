package array

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

// opaqueArray wraps a canonical array without exposing any compute
// capability, so every kernel goes through canonicalization.
type opaqueArray struct {
	Base
	inner Array
}

func newOpaque(inner Array) *opaqueArray {
	return &opaqueArray{Base: NewBase(inner.DataType(), inner.Len()), inner: inner}
}

func (o *opaqueArray) Encoding() EncodingID                 { return "test.opaque" }
func (o *opaqueArray) ScalarAt(i int) (arrow.Scalar, error) { return o.inner.ScalarAt(i) }
func (o *opaqueArray) IsValid(i int) bool                   { return o.inner.IsValid(i) }
func (o *opaqueArray) Validity() (Validity, error)          { return o.inner.Validity() }
func (o *opaqueArray) ToCanonical() (Array, error)          { return o.inner, nil }
func (o *opaqueArray) Accept(v ArrayVisitor) error          { return v.VisitChild("inner", o.inner) }
func (o *opaqueArray) Metadata() ([]byte, error)            { return nil, nil }
func (o *opaqueArray) Validate() error                      { return nil }

func (o *opaqueArray) Slice(start, stop int) (Array, error) {
	s, err := o.inner.Slice(start, stop)
	if err != nil {
		return nil, err
	}
	return newOpaque(s), nil
}

func TestScalarAtBoundsAndNulls(t *testing.T) {
	a := FromNullable([]int16{1, 2}, []bool{true, false})

	_, err := ScalarAt(a, 2)
	assert.True(t, errors.Is(err, errors.ErrOutOfBounds))
	_, err = ScalarAt(a, -1)
	assert.True(t, errors.Is(err, errors.ErrOutOfBounds))

	s, err := ScalarAt(a, 1)
	require.NoError(t, err)
	assert.True(t, s.IsNull())
	assert.True(t, arrow.Equal(a.DataType(), s.DataType()))
}

func TestSliceBounds(t *testing.T) {
	a := FromSlice([]uint8{1, 2, 3}, NonNullable())
	_, err := Slice(a, 2, 1)
	assert.True(t, errors.Is(err, errors.ErrOutOfBounds))
	_, err = Slice(a, 0, 4)
	assert.True(t, errors.Is(err, errors.ErrOutOfBounds))

	s, err := Slice(a, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint8{2, 3}, Values[uint8](s.(*PrimitiveArray)))
}

func TestDispatchFallsBackToCanonical(t *testing.T) {
	o := newOpaque(FromSlice([]int32{5, 1, 4, 1}, NonNullable()))

	mask := arrow.NewBitmapFromBools([]bool{true, false, true, false})
	f, err := Filter(o, mask)
	require.NoError(t, err)
	assert.Equal(t, []int32{5, 4}, Values[int32](f.(*PrimitiveArray)))

	tk, err := Take(o, FromSlice([]int8{3, 0}, NonNullable()))
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 5}, Values[int32](tk.(*PrimitiveArray)))

	c, err := Cast(o, arrow.Primitive(arrow.I64, arrow.NonNullable))
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 1, 4, 1}, Values[int64](c.(*PrimitiveArray)))

	lo, ok, err := ComputeStat(o, StatMin)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int32(1), arrow.PrimitiveValue[int32](lo.Value))
	_, cached := o.Stats().Get(StatMin)
	assert.True(t, cached)

	cmp, err := Compare(o, FromSlice([]int32{5, 2, 4, 0}, NonNullable()), Eq)
	require.NoError(t, err)
	b := cmp.(*BoolArray)
	assert.True(t, b.Value(0))
	assert.False(t, b.Value(1))
	assert.True(t, b.Value(2))
	assert.False(t, b.Value(3))
}

func TestIsConstantRespectsCanonicalizeOption(t *testing.T) {
	o := newOpaque(FromSlice([]int64{3, 3, 3}, NonNullable()))

	r, err := IsConstant(o, IsConstantOpts{})
	require.NoError(t, err)
	assert.False(t, r)

	r, err = IsConstant(o, IsConstantOpts{Canonicalize: true})
	require.NoError(t, err)
	assert.True(t, r)
}

func TestTakeValidatesIndices(t *testing.T) {
	a := FromSlice([]int32{1, 2, 3}, NonNullable())

	_, err := Take(a, FromSlice([]int32{3}, NonNullable()))
	assert.True(t, errors.Is(err, errors.ErrOutOfBounds))

	_, err = Take(a, FromSlice([]float32{1}, NonNullable()))
	assert.True(t, errors.Is(err, errors.ErrTypeMismatch))

	out, err := Take(a, FromNullable([]uint16{2, 9}, []bool{true, false}))
	require.NoError(t, err)
	assert.True(t, out.DataType().Nullable())
	assert.False(t, out.IsValid(1))
	s, err := ScalarAt(out, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(3), arrow.PrimitiveValue[int32](s))
}

func TestFilterShortcuts(t *testing.T) {
	a := FromSlice([]int32{1, 2, 3}, NonNullable())

	all, err := Filter(a, arrow.NewBitmapAllSet(3))
	require.NoError(t, err)
	assert.Same(t, a, all)

	none, err := Filter(a, arrow.NewBitmap(3))
	require.NoError(t, err)
	assert.Equal(t, 0, none.Len())

	_, err = Filter(a, arrow.NewBitmap(2))
	assert.Error(t, err)
}

func TestCastPrimitive(t *testing.T) {
	a := FromSlice([]int64{1, 300}, NonNullable())

	_, err := Cast(a, arrow.Primitive(arrow.U8, arrow.NonNullable))
	assert.True(t, errors.Is(err, errors.ErrOverflow))

	c, err := Cast(a, arrow.Primitive(arrow.U16, arrow.Nullable))
	require.NoError(t, err)
	assert.True(t, c.DataType().Nullable())
	assert.Equal(t, []uint16{1, 300}, Values[uint16](c.(*PrimitiveArray)))

	n := FromNullable([]int64{1, 0}, []bool{true, false})
	_, err = Cast(n, arrow.Primitive(arrow.I64, arrow.NonNullable))
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
}

func TestCompareConstantOperand(t *testing.T) {
	a := FromNullable([]float64{1.5, 2.5, 0}, []bool{true, true, false})
	rhs := &scalarArray{s: arrow.FloatScalar(arrow.F64, 2, arrow.NonNullable), n: 3}

	out, err := Compare(a, rhs, Lt)
	require.NoError(t, err)
	b := out.(*BoolArray)
	assert.True(t, b.Value(0))
	assert.False(t, b.Value(1))
	assert.False(t, b.IsValid(2))

	out, err = Compare(a, &scalarArray{s: arrow.NullScalar(a.DataType()), n: 3}, Eq)
	require.NoError(t, err)
	assert.Equal(t, 3, out.(*BoolArray).validity.NullCount(3))
}

func TestCompareRejectsMismatch(t *testing.T) {
	_, err := Compare(FromSlice([]int32{1}, NonNullable()), FromSlice([]int64{1}, NonNullable()), Eq)
	assert.True(t, errors.Is(err, errors.ErrTypeMismatch))
	_, err = Compare(FromSlice([]int32{1}, NonNullable()), FromSlice([]int32{1, 2}, NonNullable()), Eq)
	assert.Error(t, err)
}

func TestOperatorSwap(t *testing.T) {
	for _, op := range []Operator{Eq, NotEq, Lt, Lte, Gt, Gte} {
		for _, c := range []int{-1, 0, 1} {
			assert.Equal(t, op.Holds(c), op.Swap().Holds(-c), "%s %d", op, c)
		}
	}
}

func TestBinaryNumeric(t *testing.T) {
	a := FromSlice([]int32{1, 2, 3}, NonNullable())
	b := FromNullable([]int32{10, 20, 0}, []bool{true, true, false})

	sum, err := BinaryNumeric(a, b, Add)
	require.NoError(t, err)
	p := sum.(*PrimitiveArray)
	assert.Equal(t, int32(22), Values[int32](p)[1])
	assert.False(t, p.IsValid(2))

	_, err = BinaryNumeric(FromSlice([]int8{100}, NonNullable()), FromSlice([]int8{100}, NonNullable()), Add)
	assert.True(t, errors.Is(err, errors.ErrOverflow))

	_, err = BinaryNumeric(FromSlice([]uint8{1}, NonNullable()), FromSlice([]uint8{2}, NonNullable()), Sub)
	assert.True(t, errors.Is(err, errors.ErrOverflow))

	_, err = BinaryNumeric(a, FromSlice([]int32{1, 0, 1}, NonNullable()), Div)
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

	f, err := BinaryNumeric(FromSlice([]float32{1.5}, NonNullable()), FromSlice([]float32{2}, NonNullable()), Mul)
	require.NoError(t, err)
	assert.Equal(t, float32(3), Values[float32](f.(*PrimitiveArray))[0])
}

func TestCheckedIntOp(t *testing.T) {
	_, err := CheckedIntOp(1<<62, 1<<62, Add)
	assert.True(t, errors.Is(err, errors.ErrOverflow))
	_, err = CheckedIntOp(-1<<63, -1, Mul)
	assert.True(t, errors.Is(err, errors.ErrOverflow))
	v, err := CheckedIntOp(-7, 2, Div)
	require.NoError(t, err)
	assert.Equal(t, int64(-3), v)
}

func TestCanonicalizeRejectsNonCanonicalResult(t *testing.T) {
	inner := newOpaque(FromSlice([]int32{1}, NonNullable()))
	outer := newOpaque(inner)
	_, err := Canonicalize(outer)
	assert.Error(t, err)
}
