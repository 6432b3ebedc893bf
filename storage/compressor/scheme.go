package compressor

import (
	"github.com/wzqhbustb/cascade/storage/array"
)

// Cost weights. Structural encodings are free; expensive ones are pruned first
// once a path accumulates cost.
const (
	CostStructural = 0
	CostNormal     = 1
	CostExpensive  = 2
)

// Scheme is one candidate encoding the compressor can trial.
type Scheme interface {
	// ID is the encoding the scheme produces.
	ID() array.EncodingID
	Cost() int
	// CanCompress is a cheap applicability test over sample statistics.
	CanCompress(ctx *Context, st *Stats) bool
	// Compress encodes the canonical array a and compresses its children
	// through ctx. like is a previous tree node of the same encoding, or nil.
	// Returning an error rejects the candidate.
	Compress(ctx *Context, a array.Array, like *CompressionTree) (array.Array, *CompressionTree, error)
}

// DefaultSchemes returns the candidate set in tie-break order.
// 顺序：结构性编码 (cost 0) > 常规编码 (cost 1) > Block (cost 2)
func DefaultSchemes() []Scheme {
	return []Scheme{
		forScheme{},
		zigzagScheme{},
		bitPackedScheme{},
		sparseScheme{},
		dateTimePartsScheme{},
		decimalBytePartsScheme{},
		dictScheme{},
		runEndScheme{},
		alpScheme{},
		alprdScheme{},
		fsstScheme{},
		blockScheme{},
	}
}

// exceedsPatchRatio reports whether n patches over length values is more
// than the configured ratio allows.
func (ctx *Context) exceedsPatchRatio(n, length int) bool {
	return length > 0 && float64(n) > ctx.c.cfg.MaxPatchRatio*float64(length)
}

// compressPatches compresses the indices and values of p as children
// first and first+1 of like.
func (ctx *Context) compressPatches(p *array.Patches, like *CompressionTree, first int) (*array.Patches, []*CompressionTree, error) {
	if p == nil || p.NumPatches() == 0 {
		return p, nil, nil
	}
	indices, it, err := ctx.CompressChild(p.Indices(), like.Child(first))
	if err != nil {
		return nil, nil, err
	}
	values, vt, err := ctx.CompressChild(p.Values(), like.Child(first+1))
	if err != nil {
		return nil, nil, err
	}
	out, err := p.WithChildren(indices, values)
	if err != nil {
		return nil, nil, err
	}
	return out, []*CompressionTree{it, vt}, nil
}
