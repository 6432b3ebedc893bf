// Copyright 2024 Vego Authors
// Licensed under the Apache License, Version 2.0

package codec

import "github.com/golang/snappy"

type snappyCodec struct{}

func (snappyCodec) Type() Type { return Snappy }

func (snappyCodec) Compress(src []byte) ([]byte, error) {
	return snappy.Encode(nil, src), nil
}

func (snappyCodec) Decompress(src []byte, _ int) ([]byte, error) {
	out, err := snappy.Decode(nil, src)
	if err != nil {
		return nil, decompressFailed(Snappy, len(src), err)
	}
	return out, nil
}
