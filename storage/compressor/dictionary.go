package compressor

import (
	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/encoding"
)

// maxRunRatio is the largest runs-to-length ratio run-end encoding is tried
// at.
const maxRunRatio = 0.5

// ====================
// Dictionary
// ====================

type dictScheme struct{}

func (dictScheme) ID() array.EncodingID { return encoding.DictID }
func (dictScheme) Cost() int            { return CostNormal }

func (dictScheme) CanCompress(ctx *Context, st *Stats) bool {
	if !st.IsPrimitive && !st.IsVarBin {
		return false
	}
	return st.Valid > 0 && st.DistinctRatio() <= ctx.Config().MinDictRatio
}

func (dictScheme) Compress(ctx *Context, a array.Array, like *CompressionTree) (array.Array, *CompressionTree, error) {
	d, err := encoding.DictEncode(a)
	if err != nil {
		return nil, nil, err
	}
	codes, ct, err := ctx.CompressChild(d.Codes(), like.Child(0))
	if err != nil {
		return nil, nil, err
	}
	values, vt, err := ctx.CompressChild(d.Values(), like.Child(1))
	if err != nil {
		return nil, nil, err
	}
	out, err := encoding.NewDict(codes, values)
	if err != nil {
		return nil, nil, err
	}
	return out, &CompressionTree{Encoding: encoding.DictID, Children: []*CompressionTree{ct, vt}}, nil
}

// ====================
// Run-end
// ====================

type runEndScheme struct{}

func (runEndScheme) ID() array.EncodingID { return encoding.RunEndID }
func (runEndScheme) Cost() int            { return CostNormal }

func (runEndScheme) CanCompress(_ *Context, st *Stats) bool {
	if !st.IsPrimitive && !st.IsVarBin {
		return false
	}
	return st.RunRatio() <= maxRunRatio
}

func (runEndScheme) Compress(ctx *Context, a array.Array, like *CompressionTree) (array.Array, *CompressionTree, error) {
	r, err := encoding.RunEndEncode(a)
	if err != nil {
		return nil, nil, err
	}
	ends, et, err := ctx.CompressChild(r.Ends(), like.Child(0))
	if err != nil {
		return nil, nil, err
	}
	values, vt, err := ctx.CompressChild(r.Values(), like.Child(1))
	if err != nil {
		return nil, nil, err
	}
	out, err := encoding.NewRunEnd(ends, values, r.Offset(), r.Len())
	if err != nil {
		return nil, nil, err
	}
	return out, &CompressionTree{Encoding: encoding.RunEndID, Children: []*CompressionTree{et, vt}}, nil
}
