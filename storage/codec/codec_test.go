package codec

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wzqhbustb/cascade/storage/errors"
)

var allTypes = []Type{None, Zstd, S2, Snappy, LZ4}

func testPayloads() map[string][]byte {
	rng := rand.New(rand.NewSource(42))
	random := make([]byte, 4096)
	rng.Read(random)
	return map[string][]byte{
		"empty":      {},
		"small":      []byte("hello"),
		"repetitive": bytes.Repeat([]byte("cascade "), 1024),
		"random":     random,
	}
}

func TestCodecRoundTrip(t *testing.T) {
	for _, typ := range allTypes {
		c, err := Get(typ)
		require.NoError(t, err)
		require.Equal(t, typ, c.Type())
		for name, data := range testPayloads() {
			t.Run(typ.String()+"/"+name, func(t *testing.T) {
				compressed, err := c.Compress(data)
				require.NoError(t, err)

				out, err := c.Decompress(compressed, len(data))
				require.NoError(t, err)
				assert.Equal(t, len(data), len(out))
				assert.True(t, bytes.Equal(data, out))

				out, err = c.Decompress(compressed, 0)
				require.NoError(t, err)
				assert.True(t, bytes.Equal(data, out))
			})
		}
	}
}

func TestCodecShrinksRepetitiveInput(t *testing.T) {
	data := bytes.Repeat([]byte("abcdefgh"), 4096)
	for _, typ := range []Type{Zstd, S2, Snappy, LZ4} {
		c, err := Get(typ)
		require.NoError(t, err)
		compressed, err := c.Compress(data)
		require.NoError(t, err)
		assert.Less(t, len(compressed), len(data)/4, typ.String())
	}
}

func TestCodecDoesNotModifyInput(t *testing.T) {
	data := bytes.Repeat([]byte{1, 2, 3}, 100)
	orig := append([]byte(nil), data...)
	for _, typ := range allTypes {
		c, _ := Get(typ)
		_, err := c.Compress(data)
		require.NoError(t, err)
		assert.Equal(t, orig, data)
	}
}

func TestCodecRejectsGarbage(t *testing.T) {
	garbage := []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}
	for _, typ := range []Type{Zstd, S2, Snappy} {
		c, _ := Get(typ)
		_, err := c.Decompress(garbage, 0)
		assert.True(t, errors.Is(err, errors.ErrDecodeFailed), typ.String())
	}

	c, _ := Get(LZ4)
	_, err := c.Decompress([]byte{9, 1, 2}, 0)
	assert.True(t, errors.Is(err, errors.ErrDecodeFailed))
}

func TestZstdSizeHintMismatch(t *testing.T) {
	c := NewZstd(5)
	compressed, err := c.Compress([]byte("0123456789"))
	require.NoError(t, err)
	_, err = c.Decompress(compressed, 11)
	assert.True(t, errors.Is(err, errors.ErrDecodeFailed))
}

func TestZstdLevelClamp(t *testing.T) {
	assert.Equal(t, 1, NewZstd(-4).Level())
	assert.Equal(t, 9, NewZstd(100).Level())
}

func TestParseType(t *testing.T) {
	for _, typ := range allTypes {
		got, err := ParseType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}
	got, err := ParseType("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, Zstd, got)

	_, err = ParseType("brotli")
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
	_, err = Get(Type(200))
	assert.Error(t, err)

	c, err := ByName("snappy")
	require.NoError(t, err)
	assert.Equal(t, Snappy, c.Type())
}

func BenchmarkCodecs(b *testing.B) {
	data := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 1500)
	for _, typ := range allTypes {
		c, _ := Get(typ)
		b.Run(typ.String()+"/compress", func(b *testing.B) {
			b.SetBytes(int64(len(data)))
			for i := 0; i < b.N; i++ {
				_, _ = c.Compress(data)
			}
		})
		compressed, _ := c.Compress(data)
		b.Run(typ.String()+"/decompress", func(b *testing.B) {
			b.SetBytes(int64(len(data)))
			for i := 0; i < b.N; i++ {
				_, _ = c.Decompress(compressed, len(data))
			}
		})
	}
}
