package array

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

func TestConcatPrimitive(t *testing.T) {
	dt := arrow.Primitive(arrow.I32, arrow.Nullable)
	a := FromNullable([]int32{1, 2}, []bool{true, false})
	b := FromSlice([]int32{3}, AllValid())

	out, err := Concat(dt, []Array{a, b})
	require.NoError(t, err)
	p := out.(*PrimitiveArray)
	assert.Equal(t, []int32{1, 2, 3}, Values[int32](p))
	assert.False(t, p.IsValid(1))
	assert.True(t, p.IsValid(2))
}

func TestConcatVarBinAndBool(t *testing.T) {
	dt := arrow.Utf8(arrow.NonNullable)
	a := VarBinFromStrings([]string{"x", "yy"}, NonNullable())
	b := VarBinFromStrings([]string{"zzz"}, NonNullable())
	s, err := Slice(a, 1, 2)
	require.NoError(t, err)

	out, err := Concat(dt, []Array{s, b})
	require.NoError(t, err)
	v := out.(*VarBinArray)
	assert.Equal(t, []byte("yy"), v.Bytes(0))
	assert.Equal(t, []byte("zzz"), v.Bytes(1))

	bools, err := Concat(arrow.Bool(arrow.NonNullable), []Array{
		BoolFromSlice([]bool{true, false}, NonNullable()),
		BoolFromSlice([]bool{true}, NonNullable()),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, bools.(*BoolArray).TrueCount())
}

func TestConcatRejectsTypeMismatch(t *testing.T) {
	_, err := Concat(arrow.Primitive(arrow.I32, arrow.NonNullable), []Array{FromSlice([]int64{1}, NonNullable())})
	assert.True(t, errors.Is(err, errors.ErrTypeMismatch))
}

func TestConcatEmpty(t *testing.T) {
	out, err := Concat(arrow.Primitive(arrow.U8, arrow.NonNullable), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
}
