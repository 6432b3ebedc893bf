// Copyright 2024 Vego Authors
// Licensed under the Apache License, Version 2.0

package codec

import "github.com/klauspost/compress/s2"

type s2Codec struct{}

func (s2Codec) Type() Type { return S2 }

func (s2Codec) Compress(src []byte) ([]byte, error) {
	return s2.Encode(nil, src), nil
}

func (s2Codec) Decompress(src []byte, _ int) ([]byte, error) {
	out, err := s2.Decode(nil, src)
	if err != nil {
		return nil, decompressFailed(S2, len(src), err)
	}
	return out, nil
}
