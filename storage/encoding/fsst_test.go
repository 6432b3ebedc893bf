package encoding

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

func testURLs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("https://www.example.com/products/item-%d?ref=home", i%37)
	}
	return out
}

func TestSymbolTable_CompressDecompress(t *testing.T) {
	st, err := NewSymbolTable([][]byte{[]byte("ab"), []byte("abc"), []byte("x")})
	require.NoError(t, err)

	codes := st.Compress(nil, []byte("abcabxz"))
	// abc, ab, x, escape z
	assert.Equal(t, []byte{1, 0, 2, fsstEscape, 'z'}, codes)

	out, err := st.Decompress(nil, codes)
	require.NoError(t, err)
	assert.Equal(t, "abcabxz", string(out))

	_, err = st.Decompress(nil, []byte{fsstEscape})
	assert.True(t, errors.Is(err, errors.ErrCorrupt))
	_, err = st.Decompress(nil, []byte{9})
	assert.True(t, errors.Is(err, errors.ErrCorrupt))
}

func TestSymbolTable_Marshal(t *testing.T) {
	st, err := NewSymbolTable([][]byte{[]byte("a"), []byte("hello"), []byte("he"), []byte("12345678")})
	require.NoError(t, err)
	b, err := st.MarshalBinary()
	require.NoError(t, err)

	got, err := UnmarshalSymbolTable(b)
	require.NoError(t, err)
	require.Equal(t, st.Len(), got.Len())
	for code := 0; code < st.Len(); code++ {
		assert.Equal(t, st.Symbol(code), got.Symbol(code), "code %d", code)
	}

	text := []byte("hello hehe a 12345678")
	out, err := got.Decompress(nil, st.Compress(nil, text))
	require.NoError(t, err)
	assert.Equal(t, text, out)

	_, err = UnmarshalSymbolTable(b[:len(b)-1])
	assert.True(t, errors.Is(err, errors.ErrCorrupt))
	_, err = UnmarshalSymbolTable(append(b, 'x'))
	assert.True(t, errors.Is(err, errors.ErrCorrupt))

	empty, err := NewSymbolTable(nil)
	require.NoError(t, err)
	b, err = empty.MarshalBinary()
	require.NoError(t, err)
	got, err = UnmarshalSymbolTable(b)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
}

// Codes index the trained order, which is not sorted by symbol length.
func TestFSSTCompress_RoundTripUnsortedTable(t *testing.T) {
	src := make([]string, 100)
	for i := range src {
		src[i] = fmt.Sprintf("value-%d-suffix", i)
	}
	a := array.VarBinFromStrings(src, array.NonNullable())
	f, err := FSSTCompress(a, nil)
	require.NoError(t, err)

	sorted := true
	for code := 1; code < f.SymbolTable().Len(); code++ {
		if len(f.SymbolTable().Symbol(code)) > len(f.SymbolTable().Symbol(code-1)) {
			sorted = false
		}
	}
	assert.False(t, sorted, "trained table happens to be length-sorted")

	out := roundTrip(t, f)
	for i, want := range src {
		s, err := array.ScalarAt(out, i)
		require.NoError(t, err)
		got, _ := s.AsBytes()
		require.Equal(t, want, string(got), "row %d", i)
	}
}

func TestNewSymbolTable_Invalid(t *testing.T) {
	_, err := NewSymbolTable([][]byte{{}})
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
	_, err = NewSymbolTable([][]byte{[]byte("123456789")})
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
}

func TestTrainSymbolTable(t *testing.T) {
	urls := testURLs(200)
	samples := make([][]byte, len(urls))
	total := 0
	for i, u := range urls {
		samples[i] = []byte(u)
		total += len(u)
	}
	st := TrainSymbolTable(samples)
	require.Greater(t, st.Len(), 0)
	require.LessOrEqual(t, st.Len(), MaxSymbols)

	compressed := 0
	for _, s := range samples {
		codes := st.Compress(nil, s)
		compressed += len(codes)
		out, err := st.Decompress(nil, codes)
		require.NoError(t, err)
		require.Equal(t, s, out)
	}
	assert.Less(t, compressed, total/2)

	empty := TrainSymbolTable(nil)
	assert.Equal(t, 0, empty.Len())
}

func TestFSSTCompress_Utf8(t *testing.T) {
	src := testURLs(500)
	valid := make([]bool, len(src))
	for i := range valid {
		valid[i] = i%11 != 0
	}
	a := array.VarBinFromStrings(src, array.ValidityFromBools(valid))

	f, err := FSSTCompress(a, nil)
	require.NoError(t, err)
	assert.Equal(t, FSSTID, f.Encoding())
	assert.True(t, arrow.Equal(a.DataType(), f.DataType()))
	assert.Equal(t, 46, nullCountOf(t, f))

	assertCanonicalMatches(t, a, f)
	assertSliceConsistent(t, f)
	assertTakeFilter(t, f)
	roundTrip(t, f)
}

func TestFSSTCompress_Binary(t *testing.T) {
	values := [][]byte{{0, 1, 2, 3}, {}, {0xff, 0xff, 0xfe}, {0, 1, 2, 3, 0, 1, 2, 3}}
	a := array.VarBinFromBytes(values, array.NonNullable())
	f, err := FSSTCompress(a, nil)
	require.NoError(t, err)
	assertCanonicalMatches(t, a, f)
	roundTrip(t, f)

	_, err = FSSTCompress(array.FromSlice([]int32{1}, array.NonNullable()), nil)
	assert.True(t, errors.Is(err, errors.ErrUnsupportedType))
}

func TestFSST_CompareEq(t *testing.T) {
	src := []string{"alpha", "beta", "alpha", "gamma"}
	a := array.VarBinFromStrings(src, array.NonNullable())
	f, err := FSSTCompress(a, nil)
	require.NoError(t, err)

	rhs, err := NewConstant(arrow.Utf8Scalar("alpha", arrow.NonNullable), f.Len())
	require.NoError(t, err)
	for _, op := range []array.Operator{array.Eq, array.NotEq} {
		out, err := array.Compare(f, rhs, op)
		require.NoError(t, err)
		for i, s := range src {
			v, err := array.ScalarAt(out, i)
			require.NoError(t, err)
			b, _ := v.AsBool()
			assert.Equal(t, (s == "alpha") == (op == array.Eq), b, "%s index %d", op, i)
		}
	}
}

func BenchmarkFSSTCompress(b *testing.B) {
	a := array.VarBinFromStrings(testURLs(8192), array.NonNullable())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := FSSTCompress(a, nil); err != nil {
			b.Fatal(err)
		}
	}
}
