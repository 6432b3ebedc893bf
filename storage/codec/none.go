// Copyright 2024 Vego Authors
// Licensed under the Apache License, Version 2.0

package codec

type noneCodec struct{}

func (noneCodec) Type() Type { return None }

func (noneCodec) Compress(src []byte) ([]byte, error) {
	return append([]byte(nil), src...), nil
}

func (noneCodec) Decompress(src []byte, _ int) ([]byte, error) {
	return append([]byte(nil), src...), nil
}
