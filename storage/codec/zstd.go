// Copyright 2024 Vego Authors
// Licensed under the Apache License, Version 2.0

package codec

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/wzqhbustb/cascade/storage/errors"
)

// zstdDecoders is shared by every zstd codec; DecodeAll is stateless.
var zstdDecoders = sync.Pool{
	New: func() any {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			panic(fmt.Sprintf("zstd decoder: %v", err))
		}
		return dec
	},
}

// ZstdCodec compresses with pooled zstd encoders of a fixed level.
type ZstdCodec struct {
	level    int
	encoders *sync.Pool
}

// NewZstd returns a zstd codec. Levels are clamped to 1..9 and mapped onto
// the encoder speed presets.
func NewZstd(level int) *ZstdCodec {
	level = max(1, min(level, 9))
	var el zstd.EncoderLevel
	switch {
	case level <= 3:
		el = zstd.SpeedFastest
	case level <= 6:
		el = zstd.SpeedDefault
	case level <= 8:
		el = zstd.SpeedBetterCompression
	default:
		el = zstd.SpeedBestCompression
	}
	return &ZstdCodec{
		level: level,
		encoders: &sync.Pool{
			New: func() any {
				enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(el), zstd.WithEncoderCRC(false))
				if err != nil {
					panic(fmt.Sprintf("zstd encoder: %v", err))
				}
				return enc
			},
		},
	}
}

func (c *ZstdCodec) Type() Type  { return Zstd }
func (c *ZstdCodec) Level() int { return c.level }

func (c *ZstdCodec) Compress(src []byte) ([]byte, error) {
	enc := c.encoders.Get().(*zstd.Encoder)
	defer c.encoders.Put(enc)
	return enc.EncodeAll(src, make([]byte, 0, len(src)/2+16)), nil
}

func (c *ZstdCodec) Decompress(src []byte, sizeHint int) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}
	dec := zstdDecoders.Get().(*zstd.Decoder)
	defer zstdDecoders.Put(dec)
	out, err := dec.DecodeAll(src, make([]byte, 0, sizeHint))
	if err != nil {
		return nil, decompressFailed(Zstd, len(src), err)
	}
	if sizeHint > 0 && len(out) != sizeHint {
		return nil, errors.DecodeSizeMismatch(Zstd.String(), sizeHint, len(out))
	}
	return out, nil
}
