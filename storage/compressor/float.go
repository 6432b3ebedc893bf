package compressor

import (
	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/encoding"
)

// ====================
// ALP
// ====================

type alpScheme struct{}

func (alpScheme) ID() array.EncodingID { return encoding.ALPID }
func (alpScheme) Cost() int            { return CostNormal }

func (alpScheme) CanCompress(_ *Context, st *Stats) bool {
	return st.IsPrimitive && st.PType.IsFloat() && st.Valid > 0
}

func (alpScheme) Compress(ctx *Context, a array.Array, like *CompressionTree) (array.Array, *CompressionTree, error) {
	var exp *encoding.Exponents
	if like != nil {
		if e, ok := like.Metadata.(encoding.Exponents); ok {
			exp = &e
		}
	}
	alp, err := encoding.ALPEncode(a, exp)
	if err != nil {
		return nil, nil, err
	}
	if p := alp.Patches(); p != nil && ctx.exceedsPatchRatio(p.NumPatches(), alp.Len()) {
		return nil, nil, encoding.ErrTooManyExceptions
	}
	encoded, et, err := ctx.CompressChild(alp.Encoded(), like.Child(0))
	if err != nil {
		return nil, nil, err
	}
	patches, pt, err := ctx.compressPatches(alp.Patches(), like, 1)
	if err != nil {
		return nil, nil, err
	}
	out, err := encoding.NewALP(encoded, alp.Exponents(), patches)
	if err != nil {
		return nil, nil, err
	}
	return out, &CompressionTree{
		Encoding: encoding.ALPID,
		Children: append([]*CompressionTree{et}, pt...),
		Metadata: alp.Exponents(),
	}, nil
}

// ====================
// ALP-RD
// ====================

type alprdScheme struct{}

func (alprdScheme) ID() array.EncodingID { return encoding.ALPRDID }
func (alprdScheme) Cost() int            { return CostNormal }

func (alprdScheme) CanCompress(_ *Context, st *Stats) bool {
	return st.IsPrimitive && st.PType.IsFloat() && st.Valid > 0
}

func (alprdScheme) Compress(ctx *Context, a array.Array, like *CompressionTree) (array.Array, *CompressionTree, error) {
	var dict *encoding.ALPRDDictionary
	if like != nil {
		if d, ok := like.Metadata.(encoding.ALPRDDictionary); ok {
			dict = &d
		}
	}
	rd, err := encoding.ALPRDEncode(a, dict)
	if err != nil {
		return nil, nil, err
	}
	if p := rd.Exceptions(); p != nil && ctx.exceedsPatchRatio(p.NumPatches(), rd.Len()) {
		return nil, nil, encoding.ErrTooManyExceptions
	}
	left, lt, err := ctx.CompressChild(rd.LeftCodes(), like.Child(0))
	if err != nil {
		return nil, nil, err
	}
	right, rt, err := ctx.CompressChild(rd.Right(), like.Child(1))
	if err != nil {
		return nil, nil, err
	}
	exceptions, xt, err := ctx.compressPatches(rd.Exceptions(), like, 2)
	if err != nil {
		return nil, nil, err
	}
	fp, _ := arrow.PTypeOf(rd.DataType())
	out, err := encoding.NewALPRD(fp, rd.Dictionary(), left, right, exceptions)
	if err != nil {
		return nil, nil, err
	}
	return out, &CompressionTree{
		Encoding: encoding.ALPRDID,
		Children: append([]*CompressionTree{lt, rt}, xt...),
		Metadata: rd.Dictionary(),
	}, nil
}
