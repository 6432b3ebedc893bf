package compressor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/encoding"
)

func testChunked(t testing.TB, chunks int) *array.ChunkedArray {
	t.Helper()
	parts := make([]array.Array, chunks)
	for k := range parts {
		parts[k] = int64Range(k*1000, (k+1)*1000)
	}
	ch, err := array.NewChunkedArray(arrow.Primitive(arrow.I64, arrow.NonNullable), parts)
	require.NoError(t, err)
	return ch
}

func TestCompressChunked(t *testing.T) {
	c := newTestCompressor(t, WithParallelism(3))
	ch := testChunked(t, 8)

	out, tree, err := c.CompressChunked(context.Background(), ch)
	require.NoError(t, err)
	assert.Equal(t, array.ChunkedID, tree.Encoding)
	require.Len(t, tree.Children, 8)
	for _, child := range tree.Children {
		assert.Equal(t, encoding.FoRID, child.Encoding)
		assert.Equal(t, tree.Child(0).Fingerprint(), child.Fingerprint())
	}

	got, ok := out.(*array.ChunkedArray)
	require.True(t, ok)
	assert.Equal(t, 8, got.NumChunks())
	assertSameValues(t, ch, out)
}

func TestCompressChunked_Empty(t *testing.T) {
	c := newTestCompressor(t)
	ch, err := array.NewChunkedArray(arrow.Primitive(arrow.I64, arrow.NonNullable), nil)
	require.NoError(t, err)

	out, tree, err := c.CompressChunked(context.Background(), ch)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
	assert.Empty(t, tree.Children)
}

func TestCompressChunked_Cancelled(t *testing.T) {
	c := newTestCompressor(t, WithParallelism(2))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := c.CompressChunked(ctx, testChunked(t, 4))
	assert.ErrorIs(t, err, context.Canceled)
}

func BenchmarkCompressChunked(b *testing.B) {
	c := newTestCompressor(b, WithParallelism(4))
	ch := testChunked(b, 32)
	b.SetBytes(int64(array.NBytes(ch)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := c.CompressChunked(context.Background(), ch); err != nil {
			b.Fatal(err)
		}
	}
}
