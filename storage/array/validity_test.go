package array

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

func TestValidityFromBitmapCollapses(t *testing.T) {
	assert.Equal(t, KindAllValid, FromBitmap(arrow.NewBitmapAllSet(10)).Kind())
	assert.Equal(t, KindAllInvalid, FromBitmap(arrow.NewBitmap(10)).Kind())
	assert.Equal(t, KindAllValid, FromBitmap(arrow.NewBitmap(0)).Kind())

	v := ValidityFromBools([]bool{true, false, true})
	assert.Equal(t, KindExplicit, v.Kind())
	assert.Equal(t, 1, v.NullCount(3))
	assert.False(t, v.IsValid(1))
}

func TestValidityCheck(t *testing.T) {
	require.NoError(t, NonNullable().Check(5, false))
	require.NoError(t, AllValid().Check(5, true))

	err := NonNullable().Check(5, true)
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

	err = ValidityFromBools([]bool{true, false}).Check(3, true)
	assert.Error(t, err)
}

func TestValiditySliceFilterTake(t *testing.T) {
	v := ValidityFromBools([]bool{true, false, true, true, false})

	s := v.Slice(1, 4)
	assert.False(t, s.IsValid(0))
	assert.True(t, s.IsValid(1))
	assert.Equal(t, 1, s.NullCount(3))

	mask := arrow.NewBitmapFromBools([]bool{true, false, true, true, false})
	assert.Equal(t, KindAllValid, v.Filter(mask).Kind())

	idx := FromNullable([]uint32{4, 0, 0}, []bool{true, true, false})
	taken := v.Take(idx)
	assert.False(t, taken.IsValid(0))
	assert.True(t, taken.IsValid(1))
	assert.False(t, taken.IsValid(2))
}

func TestValidityTakeNonNullableWithNullIndex(t *testing.T) {
	idx := FromNullable([]uint8{0, 1}, []bool{true, false})
	taken := NonNullable().Take(idx)
	assert.True(t, taken.Nullable())
	assert.True(t, taken.IsValid(0))
	assert.False(t, taken.IsValid(1))
}

func TestValidityCastNullability(t *testing.T) {
	v, err := NonNullable().CastNullability(true, 3)
	require.NoError(t, err)
	assert.Equal(t, KindAllValid, v.Kind())

	v, err = AllValid().CastNullability(false, 3)
	require.NoError(t, err)
	assert.Equal(t, KindNonNullable, v.Kind())

	_, err = ValidityFromBools([]bool{true, false}).CastNullability(false, 2)
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
}

func TestValidityAnd(t *testing.T) {
	a := ValidityFromBools([]bool{true, false, true})
	b := ValidityFromBools([]bool{false, true, true})
	and := a.And(b, 3)
	assert.Equal(t, 2, and.NullCount(3))
	assert.True(t, and.IsValid(2))

	assert.Equal(t, KindAllInvalid, a.And(AllInvalid(), 3).Kind())
	assert.Equal(t, KindNonNullable, NonNullable().And(NonNullable(), 3).Kind())
	assert.Equal(t, KindExplicit, AllValid().And(a, 3).Kind())
}
