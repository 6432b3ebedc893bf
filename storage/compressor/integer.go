package compressor

import (
	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/encoding"
)

// ====================
// Frame of reference
// ====================

type forScheme struct{}

func (forScheme) ID() array.EncodingID { return encoding.FoRID }
func (forScheme) Cost() int            { return CostStructural }

func (forScheme) CanCompress(_ *Context, st *Stats) bool {
	return st.IsPrimitive && st.PType.IsInt() && st.Valid > 0
}

func (forScheme) Compress(ctx *Context, a array.Array, like *CompressionTree) (array.Array, *CompressionTree, error) {
	f, err := encoding.FoREncode(a)
	if err != nil {
		return nil, nil, err
	}
	encoded, tree, err := ctx.CompressChild(f.Encoded(), like.Child(0))
	if err != nil {
		return nil, nil, err
	}
	out, err := encoding.NewFoR(encoded, f.Reference(), f.Shift())
	if err != nil {
		return nil, nil, err
	}
	return out, &CompressionTree{Encoding: encoding.FoRID, Children: []*CompressionTree{tree}}, nil
}

// ====================
// Zig-zag
// ====================

type zigzagScheme struct{}

func (zigzagScheme) ID() array.EncodingID { return encoding.ZigZagID }
func (zigzagScheme) Cost() int            { return CostStructural }

// CanCompress only accepts signed integers holding negatives; frame of
// reference already covers the rest.
func (zigzagScheme) CanCompress(_ *Context, st *Stats) bool {
	return st.IsPrimitive && st.PType.IsInt() && st.PType.IsSigned() && st.Negative
}

func (zigzagScheme) Compress(ctx *Context, a array.Array, like *CompressionTree) (array.Array, *CompressionTree, error) {
	z, err := encoding.ZigZagEncode(a)
	if err != nil {
		return nil, nil, err
	}
	encoded, tree, err := ctx.CompressChild(z.Encoded(), like.Child(0))
	if err != nil {
		return nil, nil, err
	}
	out, err := encoding.NewZigZag(encoded)
	if err != nil {
		return nil, nil, err
	}
	return out, &CompressionTree{Encoding: encoding.ZigZagID, Children: []*CompressionTree{tree}}, nil
}

// ====================
// Bit packing
// ====================

type bitPackedScheme struct{}

func (bitPackedScheme) ID() array.EncodingID { return encoding.BitPackedID }
func (bitPackedScheme) Cost() int            { return CostStructural }

// CanCompress accepts unsigned integers; signed input reaches bit packing
// through frame of reference or zig-zag.
func (bitPackedScheme) CanCompress(_ *Context, st *Stats) bool {
	return st.IsPrimitive && st.PType.IsUnsigned() && st.Valid > 0
}

func (bitPackedScheme) Compress(ctx *Context, a array.Array, like *CompressionTree) (array.Array, *CompressionTree, error) {
	pt, _ := arrow.PTypeOf(a.DataType())
	width, ok := like.metadataInt()
	if !ok {
		freq, err := encoding.BitWidthFreq(a)
		if err != nil {
			return nil, nil, err
		}
		width = encoding.BestBitWidth(freq, ctx.Config().BitPackPercentile)
	}
	if width >= pt.BitWidth() {
		return nil, nil, encoding.ErrTooManyExceptions
	}
	bp, err := encoding.BitPack(a, width)
	if err != nil {
		return nil, nil, err
	}
	if p := bp.Patches(); p != nil && ctx.exceedsPatchRatio(p.NumPatches(), bp.Len()) {
		return nil, nil, encoding.ErrTooManyExceptions
	}
	patches, children, err := ctx.compressPatches(bp.Patches(), like, 0)
	if err != nil {
		return nil, nil, err
	}
	out, err := bp.WithPatches(patches)
	if err != nil {
		return nil, nil, err
	}
	return out, &CompressionTree{Encoding: encoding.BitPackedID, Children: children, Metadata: width}, nil
}

// metadataInt returns an int recipe parameter.
func (t *CompressionTree) metadataInt() (int, bool) {
	if t == nil {
		return 0, false
	}
	v, ok := t.Metadata.(int)
	return v, ok
}
