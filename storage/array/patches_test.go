package array

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

func newTestPatches(t *testing.T) *Patches {
	t.Helper()
	p, err := NewPatches(10, 0,
		FromSlice([]uint32{2, 5, 9}, NonNullable()),
		FromSlice([]int64{200, 500, 900}, NonNullable()))
	require.NoError(t, err)
	return p
}

func TestNewPatchesRejectsBadIndices(t *testing.T) {
	_, err := NewPatches(10, 0, FromSlice([]int32{1}, NonNullable()), FromSlice([]int64{1}, NonNullable()))
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

	_, err = NewPatches(10, 0, FromSlice([]uint32{10}, NonNullable()), FromSlice([]int64{1}, NonNullable()))
	assert.True(t, errors.Is(err, errors.ErrOutOfBounds))

	_, err = NewPatches(10, 0, FromSlice([]uint32{1, 2}, NonNullable()), FromSlice([]int64{1}, NonNullable()))
	assert.Error(t, err)

	p, err := NewPatches(10, 0, FromSlice([]uint32{3, 3}, NonNullable()), FromSlice([]int64{1, 2}, NonNullable()))
	require.NoError(t, err)
	assert.Error(t, p.Validate())
}

func TestPatchesSearchAndScalarAt(t *testing.T) {
	p := newTestPatches(t)

	k, ok := p.Search(5)
	assert.True(t, ok)
	assert.Equal(t, 1, k)

	_, ok = p.Search(6)
	assert.False(t, ok)

	s, found, err := p.ScalarAt(9)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(900), arrow.PrimitiveValue[int64](s))

	_, found, err = p.ScalarAt(0)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPatchesSliceKeepsOffset(t *testing.T) {
	p := newTestPatches(t)

	s, err := p.Slice(3, 10)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 7, s.Len())
	assert.Equal(t, 3, s.Offset())
	assert.Equal(t, []int{2, 6}, s.Positions())

	v, found, err := s.ScalarAt(2)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(500), arrow.PrimitiveValue[int64](v))

	empty, err := p.Slice(6, 9)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestPatchesFilterAndTake(t *testing.T) {
	p := newTestPatches(t)

	mask := arrow.NewBitmap(10)
	for _, i := range []int{0, 5, 7, 9} {
		mask.Set(i)
	}
	f, err := p.Filter(mask)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, 4, f.Len())
	assert.Equal(t, []int{1, 3}, f.Positions())

	taken, err := p.Take(FromSlice([]uint64{9, 1, 2, 9}, NonNullable()))
	require.NoError(t, err)
	require.NotNil(t, taken)
	assert.Equal(t, []int{0, 2, 3}, taken.Positions())
	s, _, err := taken.ScalarAt(2)
	require.NoError(t, err)
	assert.Equal(t, int64(200), arrow.PrimitiveValue[int64](s))
}

func TestApplyPatches(t *testing.T) {
	p := newTestPatches(t)
	base := FromSlice(make([]int64, 10), NonNullable())

	out, err := ApplyPatches(base, p)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 0, 200, 0, 0, 500, 0, 0, 0, 900}, Values[int64](out.(*PrimitiveArray)))
	// the base is untouched
	assert.Equal(t, int64(0), Values[int64](base)[2])
}

func TestApplyPatchesNullValue(t *testing.T) {
	p, err := NewPatches(4, 0,
		FromSlice([]uint8{1, 3}, NonNullable()),
		FromNullable([]int32{7, 0}, []bool{true, false}))
	require.NoError(t, err)
	base := FromNullable([]int32{1, 2, 3, 4}, []bool{true, false, true, true})

	out, err := ApplyPatches(base, p)
	require.NoError(t, err)
	assert.True(t, out.IsValid(1))
	assert.False(t, out.IsValid(3))
	s, err := ScalarAt(out, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(7), arrow.PrimitiveValue[int32](s))
}

func TestApplyPatchesVarBin(t *testing.T) {
	p, err := NewPatches(3, 0,
		FromSlice([]uint8{1}, NonNullable()),
		VarBinFromStrings([]string{"patched"}, NonNullable()))
	require.NoError(t, err)
	base := VarBinFromStrings([]string{"a", "b", "c"}, NonNullable())

	out, err := ApplyPatches(base, p)
	require.NoError(t, err)
	s, err := ScalarAt(out, 1)
	require.NoError(t, err)
	assert.Equal(t, "patched", s.Value())
}
