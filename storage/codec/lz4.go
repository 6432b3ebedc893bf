// Copyright 2024 Vego Authors
// Licensed under the Apache License, Version 2.0

package codec

import (
	stderrors "errors"
	"sync"

	"github.com/pierrec/lz4/v4"

	"github.com/wzqhbustb/cascade/storage/errors"
)

var lz4Compressors = sync.Pool{
	New: func() any { return &lz4.Compressor{} },
}

// lz4MaxFrame bounds the retry loop when the decompressed size is unknown.
const lz4MaxFrame = 128 << 20

// lz4 frames start with a flag byte: lz4Raw when the block was
// incompressible and is stored verbatim.
const (
	lz4Raw byte = iota
	lz4Block
)

type lz4Codec struct{}

func (lz4Codec) Type() Type { return LZ4 }

func (lz4Codec) Compress(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}
	if len(src) > lz4MaxFrame {
		return nil, errors.CompressionFailed(LZ4.String(), len(src), stderrors.New("frame exceeds 128 MiB"))
	}
	dst := make([]byte, 1+lz4.CompressBlockBound(len(src)))
	lc := lz4Compressors.Get().(*lz4.Compressor)
	defer lz4Compressors.Put(lc)
	n, err := lc.CompressBlock(src, dst[1:])
	if err != nil || n == 0 {
		dst = append(dst[:0], lz4Raw)
		return append(dst, src...), nil
	}
	dst[0] = lz4Block
	return dst[:1+n], nil
}

func (lz4Codec) Decompress(src []byte, sizeHint int) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}
	switch src[0] {
	case lz4Raw:
		return append([]byte(nil), src[1:]...), nil
	case lz4Block:
	default:
		return nil, decompressFailed(LZ4, len(src), stderrors.New("unknown frame flag"))
	}
	body := src[1:]
	size := sizeHint
	if size <= 0 {
		size = len(body) * 4
	}
	for {
		buf := make([]byte, size)
		n, err := lz4.UncompressBlock(body, buf)
		if err == nil {
			return buf[:n], nil
		}
		if !stderrors.Is(err, lz4.ErrInvalidSourceShortBuffer) || sizeHint > 0 || size >= lz4MaxFrame {
			return nil, decompressFailed(LZ4, len(src), err)
		}
		size *= 2
	}
}
