package encoding

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

func TestALPEncode_Decimals(t *testing.T) {
	values := make([]float64, 1000)
	for i := range values {
		values[i] = float64(i%250) / 100
	}
	a := array.FromSlice(values, array.NonNullable())

	alp, err := ALPEncode(a, nil)
	require.NoError(t, err)
	assert.Equal(t, ALPID, alp.Encoding())
	p, _ := arrow.PTypeOf(alp.Encoded().DataType())
	assert.Equal(t, arrow.I64, p)

	canon, err := array.Canonicalize(alp)
	require.NoError(t, err)
	got := array.Values[float64](canon.(*array.PrimitiveArray))
	for i, v := range values {
		require.Equal(t, math.Float64bits(v), math.Float64bits(got[i]), "index %d", i)
	}

	assertSliceConsistent(t, alp)
	assertTakeFilter(t, alp)
	roundTrip(t, alp)
}

func TestALPEncode_NullsExact(t *testing.T) {
	values := make([]float64, 1000)
	valid := make([]bool, 1000)
	for x := range values {
		if x%2 == 0 {
			values[x] = float64(x)
		} else {
			values[x] = float64(x) + 0.5
		}
		valid[x] = x%20 != 0
	}
	a := array.FromNullable(values, valid)

	alp, err := ALPEncode(a, nil)
	require.NoError(t, err)
	assert.Equal(t, 50, nullCountOf(t, alp))
	assertCanonicalMatches(t, a, alp)
	roundTrip(t, alp)
}

func TestALPEncode_Exceptions(t *testing.T) {
	values := []float64{1.25, math.Copysign(0, -1), 2.5, math.NaN(), math.Inf(1), 3.75, math.Inf(-1), math.Pi}
	a := array.FromSlice(values, array.NonNullable())

	alp, err := ALPEncode(a, &Exponents{E: 2, F: 0})
	require.NoError(t, err)
	require.NotNil(t, alp.Patches())
	assert.Equal(t, []int{1, 3, 4, 6, 7}, alp.Patches().Positions())

	v, err := array.ScalarAt(alp, 1)
	require.NoError(t, err)
	f, _ := v.AsFloat64()
	assert.True(t, math.Signbit(f))

	v, err = array.ScalarAt(alp, 3)
	require.NoError(t, err)
	f, _ = v.AsFloat64()
	assert.True(t, math.IsNaN(f))

	// 异常值用第一个编码值填充，不拉宽整数范围
	enc := array.Values[int64](alp.Encoded().(*array.PrimitiveArray))
	for _, i := range alp.Patches().Positions() {
		assert.Equal(t, enc[0], enc[i])
	}

	assertCanonicalMatches(t, a, alp)
	assertSliceConsistent(t, alp)
	assertTakeFilter(t, alp)
	roundTrip(t, alp)
}

func TestALPEncode_Float32(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	values := make([]float32, 2000)
	for i := range values {
		values[i] = float32(rng.Intn(100000)) / 1000
	}
	a := array.FromSlice(values, array.NonNullable())
	alp, err := ALPEncode(a, nil)
	require.NoError(t, err)

	p, _ := arrow.PTypeOf(alp.Encoded().DataType())
	assert.Equal(t, arrow.I32, p)

	canon, err := array.Canonicalize(alp)
	require.NoError(t, err)
	got := array.Values[float32](canon.(*array.PrimitiveArray))
	for i, v := range values {
		require.Equal(t, math.Float32bits(v), math.Float32bits(got[i]), "index %d", i)
	}
	roundTrip(t, alp)
}

func TestFindExponents(t *testing.T) {
	a := array.FromSlice([]float64{1.5, 2.25, 3.125, 100}, array.NonNullable())
	exp, err := FindExponents(a)
	require.NoError(t, err)
	assert.Equal(t, 3, int(exp.E)-int(exp.F))

	_, err = FindExponents(array.FromSlice([]int32{1}, array.NonNullable()))
	assert.True(t, errors.Is(err, errors.ErrUnsupportedType))
}

func TestNewALP_Invalid(t *testing.T) {
	enc := array.FromSlice([]int64{1}, array.NonNullable())
	_, err := NewALP(enc, Exponents{E: 19}, nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
	_, err = NewALP(enc, Exponents{E: 1, F: 2}, nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
	_, err = NewALP(array.FromSlice([]uint64{1}, array.NonNullable()), Exponents{}, nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
}

func BenchmarkALPEncode(b *testing.B) {
	values := make([]float64, 64*1024)
	for i := range values {
		values[i] = float64(i%10000) / 100
	}
	a := array.FromSlice(values, array.NonNullable())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ALPEncode(a, nil); err != nil {
			b.Fatal(err)
		}
	}
}
