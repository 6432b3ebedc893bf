package compressor

import (
	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/codec"
	"github.com/wzqhbustb/cascade/storage/encoding"
)

// ====================
// FSST
// ====================

type fsstScheme struct{}

func (fsstScheme) ID() array.EncodingID { return encoding.FSSTID }
func (fsstScheme) Cost() int            { return CostNormal }

func (fsstScheme) CanCompress(_ *Context, st *Stats) bool {
	return st.IsVarBin && st.Valid > 0
}

func (fsstScheme) Compress(ctx *Context, a array.Array, like *CompressionTree) (array.Array, *CompressionTree, error) {
	var table *encoding.SymbolTable
	if like != nil {
		table, _ = like.Metadata.(*encoding.SymbolTable)
	}
	f, err := encoding.FSSTCompress(a, table)
	if err != nil {
		return nil, nil, err
	}
	codes, ct, err := ctx.CompressChild(f.Codes(), like.Child(0))
	if err != nil {
		return nil, nil, err
	}
	lengths, lt, err := ctx.CompressChild(f.Lengths(), like.Child(1))
	if err != nil {
		return nil, nil, err
	}
	out, err := encoding.NewFSST(f.DataType(), f.SymbolTable(), codes, lengths)
	if err != nil {
		return nil, nil, err
	}
	return out, &CompressionTree{
		Encoding: encoding.FSSTID,
		Children: []*CompressionTree{ct, lt},
		Metadata: f.SymbolTable(),
	}, nil
}

// ====================
// Block
// ====================

type blockScheme struct{}

func (blockScheme) ID() array.EncodingID { return encoding.BlockID }
func (blockScheme) Cost() int            { return CostExpensive }

func (blockScheme) CanCompress(_ *Context, st *Stats) bool {
	return st.IsVarBin && st.Valid > 0
}

// Compress frames a with the configured codec, or the codec of like.
func (blockScheme) Compress(ctx *Context, a array.Array, like *CompressionTree) (array.Array, *CompressionTree, error) {
	c := ctx.c.blockCodec
	if like != nil {
		if t, ok := like.Metadata.(codec.Type); ok && t != c.Type() {
			var err error
			if c, err = codec.Get(t); err != nil {
				return nil, nil, err
			}
		}
	}
	b, err := encoding.BlockEncode(a, c, ctx.Config().BlockFrameRows)
	if err != nil {
		return nil, nil, err
	}
	return b, &CompressionTree{Encoding: encoding.BlockID, Metadata: c.Type()}, nil
}
