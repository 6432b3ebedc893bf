package compressor

import (
	"context"

	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"

	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/encoding"
)

// CompressChunked compresses the chunks of chunked concurrently. The first
// chunk is searched on its own and its tree seeds the remaining chunks, so
// their result is independent of scheduling.
func (c *Compressor) CompressChunked(ctx context.Context, chunked *array.ChunkedArray) (array.Array, *CompressionTree, error) {
	n := chunked.NumChunks()
	chunks := make([]array.Array, n)
	trees := make([]*CompressionTree, n)
	if n == 0 {
		out, err := array.NewChunkedArray(chunked.DataType(), chunks)
		if err != nil {
			return nil, nil, err
		}
		return out, &CompressionTree{Encoding: array.ChunkedID, NBytes: array.NBytes(out)}, nil
	}

	first, firstTree, err := c.Compress(chunked.Chunks()[0], nil)
	if err != nil {
		return nil, nil, err
	}
	chunks[0], trees[0] = first, firstTree
	var like *CompressionTree
	if !firstTree.Canonical() && firstTree.Encoding != encoding.ConstantID {
		like = firstTree
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Parallelism)
	for k := 1; k < n; k++ {
		k := k
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, tree, err := c.Compress(chunked.Chunks()[k], like)
			if err != nil {
				return err
			}
			chunks[k], trees[k] = out, tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		level.Warn(c.logger).Log("msg", "chunked compression failed", "chunks", n, "err", err)
		return nil, nil, err
	}

	out, err := array.NewChunkedArray(chunked.DataType(), chunks)
	if err != nil {
		return nil, nil, err
	}
	return out, &CompressionTree{Encoding: array.ChunkedID, Children: trees, NBytes: array.NBytes(out)}, nil
}
