// Copyright 2024 Vego Authors
// Licensed under the Apache License, Version 2.0

// Package codec provides general-purpose byte compressors used by the block
// encoding, plus an LRU cache for decompressed frames.
package codec

import (
	"fmt"
	"strings"

	"github.com/wzqhbustb/cascade/storage/errors"
)

// Type identifies a codec in metadata. Values are persisted; never renumber.
type Type uint8

const (
	None Type = iota
	Zstd
	S2
	Snappy
	LZ4
)

var typeNames = map[Type]string{
	None:   "none",
	Zstd:   "zstd",
	S2:     "s2",
	Snappy: "snappy",
	LZ4:    "lz4",
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("codec(%d)", uint8(t))
}

// ParseType resolves a codec by its configuration name.
func ParseType(name string) (Type, error) {
	for t, n := range typeNames {
		if strings.EqualFold(n, name) {
			return t, nil
		}
	}
	return None, errors.InvalidArg("codec", "unknown codec "+name)
}

// Codec compresses and decompresses independent byte frames. Implementations
// are safe for concurrent use; returned slices are owned by the caller and
// inputs are never modified.
type Codec interface {
	Type() Type
	Compress(src []byte) ([]byte, error)
	// Decompress restores a frame. sizeHint is the expected decompressed
	// size, or 0 if unknown.
	Decompress(src []byte, sizeHint int) ([]byte, error)
}

var builtin = map[Type]Codec{
	None:   noneCodec{},
	Zstd:   NewZstd(3),
	S2:     s2Codec{},
	Snappy: snappyCodec{},
	LZ4:    lz4Codec{},
}

// Get returns the shared instance of a built-in codec.
func Get(t Type) (Codec, error) {
	if c, ok := builtin[t]; ok {
		return c, nil
	}
	return nil, errors.InvalidArg("codec", "unsupported codec "+t.String())
}

// ByName is Get(ParseType(name)).
func ByName(name string) (Codec, error) {
	t, err := ParseType(name)
	if err != nil {
		return nil, err
	}
	return Get(t)
}

func decompressFailed(t Type, size int, err error) error {
	return errors.DecodeFailed(t.String(), fmt.Sprintf("decompress %d bytes", size), err)
}
