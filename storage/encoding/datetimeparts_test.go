package encoding

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

func newTestTimestamps(t *testing.T, unit arrow.TimeUnit, ticks []int64, validity array.Validity) array.Array {
	t.Helper()
	ts, err := array.NewTimestampArray(unit, "UTC", ticks, validity)
	require.NoError(t, err)
	return ts
}

func TestFloorDivMod(t *testing.T) {
	cases := []struct{ a, b, q, r int64 }{
		{7, 3, 2, 1},
		{-7, 3, -3, 2},
		{-6, 3, -2, 0},
		{0, 5, 0, 0},
	}
	for _, c := range cases {
		q, r := floorDivMod(c.a, c.b)
		assert.Equal(t, c.q, q, "%d / %d", c.a, c.b)
		assert.Equal(t, c.r, r, "%d %% %d", c.a, c.b)
	}
}

func TestDateTimePartsEncode_Micros(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	ticks := make([]int64, 500)
	for i := range ticks {
		ticks[i] = base.Add(time.Duration(i) * 17 * time.Minute).UnixMicro()
	}
	// 纪元之前的时间戳
	ticks[3] = time.Date(1969, 12, 31, 23, 59, 59, 500000000, time.UTC).UnixMicro()
	valid := make([]bool, len(ticks))
	for i := range valid {
		valid[i] = i%50 != 7
	}
	ts := newTestTimestamps(t, arrow.Microsecond, ticks, array.ValidityFromBools(valid))

	dtp, err := DateTimePartsEncode(ts)
	require.NoError(t, err)
	assert.Equal(t, DateTimePartsID, dtp.Encoding())
	assert.True(t, arrow.Equal(ts.DataType(), dtp.DataType()))
	assert.Equal(t, 10, nullCountOf(t, dtp))

	dp, _ := arrow.PTypeOf(dtp.Days().DataType())
	assert.Equal(t, arrow.I16, dp)
	sp, _ := arrow.PTypeOf(dtp.Seconds().DataType())
	assert.Equal(t, arrow.U32, sp)
	up, _ := arrow.PTypeOf(dtp.Subseconds().DataType())
	assert.Equal(t, arrow.U32, up)

	day, err := array.ScalarAt(dtp.Days(), 3)
	require.NoError(t, err)
	d, _ := day.AsInt64()
	assert.Equal(t, int64(-1), d)

	assertCanonicalMatches(t, ts, dtp)
	assertSliceConsistent(t, dtp)
	assertTakeFilter(t, dtp)
	roundTrip(t, dtp)
}

func TestDateTimePartsEncode_WholeDays(t *testing.T) {
	ticks := []int64{0, 86_400, 2 * 86_400, 2 * 86_400}
	ts := newTestTimestamps(t, arrow.Second, ticks, array.NonNullable())
	dtp, err := DateTimePartsEncode(ts)
	require.NoError(t, err)

	ok, err := array.IsConstant(dtp.Seconds(), array.IsConstantOpts{})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = array.IsConstant(dtp, array.IsConstantOpts{})
	require.NoError(t, err)
	assert.False(t, ok)

	assertCanonicalMatches(t, ts, dtp)
	roundTrip(t, dtp)
}

func TestDateTimePartsEncode_Unsupported(t *testing.T) {
	_, err := DateTimePartsEncode(array.FromSlice([]int64{1}, array.NonNullable()))
	assert.True(t, errors.Is(err, errors.ErrUnsupportedType))
}

func TestNewDateTimeParts_Invalid(t *testing.T) {
	ts := newTestTimestamps(t, arrow.Millisecond, []int64{1, 2}, array.NonNullable())
	days := array.FromSlice([]int8{0, 0}, array.NonNullable())
	secs := array.FromSlice([]uint8{0, 0}, array.NonNullable())

	_, err := NewDateTimeParts(ts.DataType(), days, secs, array.FromSlice([]uint8{1}, array.NonNullable()))
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

	_, err = NewDateTimeParts(ts.DataType(), days, secs, array.FromSlice([]float32{1, 2}, array.NonNullable()))
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

	_, err = NewDateTimeParts(arrow.Primitive(arrow.I64, arrow.NonNullable), days, secs, secs)
	assert.True(t, errors.Is(err, errors.ErrTypeMismatch))
}
