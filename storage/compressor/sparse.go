package compressor

import (
	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/encoding"
)

type sparseScheme struct{}

func (sparseScheme) ID() array.EncodingID { return encoding.SparseID }
func (sparseScheme) Cost() int            { return CostStructural }

// CanCompress requires one value, or null, to dominate the sample without
// filling it.
func (sparseScheme) CanCompress(ctx *Context, st *Stats) bool {
	return st.Dominant < st.Len && st.DominantRatio() >= ctx.Config().SparseThreshold
}

func (s sparseScheme) Compress(ctx *Context, a array.Array, like *CompressionTree) (array.Array, *CompressionTree, error) {
	fill, err := mostFrequent(a)
	if err != nil {
		return nil, nil, err
	}
	sp, err := encoding.SparseEncode(a, fill)
	if err != nil {
		return nil, nil, err
	}
	if ctx.exceedsPatchRatio(sp.Patches().NumPatches(), sp.Len()) {
		return nil, nil, encoding.ErrTooManyExceptions
	}
	return s.compressSparse(ctx, sp, like)
}

// compressSparse keeps the fill and compresses the patches.
func (sparseScheme) compressSparse(ctx *Context, sp *encoding.SparseArray, like *CompressionTree) (array.Array, *CompressionTree, error) {
	patches, children, err := ctx.compressPatches(sp.Patches(), like, 0)
	if err != nil {
		return nil, nil, err
	}
	out, err := encoding.NewSparse(patches, sp.Fill())
	if err != nil {
		return nil, nil, err
	}
	return out, &CompressionTree{Encoding: encoding.SparseID, Children: children, NBytes: array.NBytes(out)}, nil
}

// mostFrequent returns the most frequent value of a, a null scalar when
// nulls are the most frequent. Ties go to the first seen.
func mostFrequent(a array.Array) (arrow.Scalar, error) {
	canon, err := array.Canonicalize(a)
	if err != nil {
		return arrow.Scalar{}, err
	}
	storage := canon
	if ext, ok := canon.(*array.ExtensionArray); ok {
		storage = ext.Storage()
	}
	keys, ok := valueKeys(storage)
	if !ok {
		return arrow.Scalar{}, encoding.ErrUnsupportedType
	}
	counts := make(map[uint64]int)
	first := make(map[uint64]int)
	nulls, best, bestIdx := 0, 0, -1
	for i, k := range keys {
		if !storage.IsValid(i) {
			nulls++
			continue
		}
		if _, seen := first[k]; !seen {
			first[k] = i
		}
		counts[k]++
		if c := counts[k]; c > best || (c == best && first[k] < bestIdx) {
			best, bestIdx = c, first[k]
		}
	}
	if bestIdx < 0 || nulls > best {
		return arrow.NullScalar(canon.DataType()), nil
	}
	return array.ScalarAt(canon, bestIdx)
}
