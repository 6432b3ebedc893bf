package encoding

import (
	"math"

	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

const SparseID array.EncodingID = "cascade.sparse"

// SparseArray holds a fill value everywhere except at patched positions.
type SparseArray struct {
	array.Base
	patches *array.Patches
	fill    arrow.Scalar
}

// NewSparse builds a sparse array of patches.Len() elements. Patch values must
// share the fill's type up to nullability.
func NewSparse(patches *array.Patches, fill arrow.Scalar) (*SparseArray, error) {
	if patches == nil {
		return nil, errors.InvalidArg("sparse", "nil patches")
	}
	if !arrow.EqualIgnoreNullability(patches.DataType(), fill.DataType()) {
		return nil, errors.TypeMismatch("sparse", fill.DataType().Name(), patches.DataType().Name())
	}
	nullable := fill.DataType().Nullable() || patches.DataType().Nullable()
	dt := fill.DataType().WithNullability(arrow.Nullability(nullable))
	return &SparseArray{
		Base:    array.NewBase(dt, patches.Len()),
		patches: patches,
		fill:    fill.WithDataType(dt),
	}, nil
}

func (s *SparseArray) Encoding() array.EncodingID { return SparseID }
func (s *SparseArray) Patches() *array.Patches    { return s.patches }
func (s *SparseArray) Fill() arrow.Scalar         { return s.fill }

func (s *SparseArray) ScalarAt(i int) (arrow.Scalar, error) {
	v, found, err := s.patches.ScalarAt(i)
	if err != nil {
		return arrow.Scalar{}, err
	}
	if found {
		return v.WithDataType(s.DataType()), nil
	}
	return s.fill, nil
}

func (s *SparseArray) IsValid(i int) bool {
	if k, ok := s.patches.Search(i); ok {
		return s.patches.Values().IsValid(k)
	}
	return s.fill.IsValid()
}

// Slice degenerates to a constant when no patch is in range and to the patch
// values when every position in range is patched.
func (s *SparseArray) Slice(start, stop int) (array.Array, error) {
	p, err := s.patches.Slice(start, stop)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return NewConstant(s.fill, stop-start)
	}
	if p.NumPatches() == stop-start {
		return array.Cast(p.Values(), s.DataType())
	}
	return NewSparse(p, s.fill)
}

func (s *SparseArray) Validity() (array.Validity, error) {
	values := s.patches.Values()
	vv, err := values.Validity()
	if err != nil {
		return array.Validity{}, err
	}
	if s.fill.IsValid() && vv.AllValidIn(values.Len()) {
		return array.FromNullability(s.DataType().Nullable()), nil
	}
	var bm *arrow.Bitmap
	if s.fill.IsValid() {
		bm = arrow.NewBitmapAllSet(s.Len())
	} else {
		bm = arrow.NewBitmap(s.Len())
	}
	for k, pos := range s.patches.Positions() {
		if vv.IsValid(k) {
			bm.Set(pos)
		} else {
			bm.Clear(pos)
		}
	}
	return array.FromBitmap(bm), nil
}

func (s *SparseArray) ToCanonical() (array.Array, error) {
	base, err := NewConstant(s.fill, s.Len())
	if err != nil {
		return nil, err
	}
	return array.ApplyPatches(base, s.patches)
}

func (s *SparseArray) Accept(v array.ArrayVisitor) error {
	return array.VisitPatches(v, s.patches)
}

func (s *SparseArray) Metadata() ([]byte, error) {
	return new(array.MetaWriter).
		Scalar(s.fill).
		Bool(s.patches.DataType().Nullable()).
		Patches(s.patches).
		Finish(), nil
}

func (s *SparseArray) Validate() error { return s.patches.Validate() }

func (s *SparseArray) Filter(mask *arrow.Bitmap) (array.Array, error) {
	p, err := s.patches.Filter(mask)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return NewConstant(s.fill, mask.CountSet())
	}
	return NewSparse(p, s.fill)
}

func (s *SparseArray) Take(indices *array.PrimitiveArray) (array.Array, error) {
	if !indices.RawValidity().AllValidIn(indices.Len()) {
		return nil, notImplemented("take with null indices", SparseID)
	}
	p, err := s.patches.Take(indices)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return NewConstant(s.fill, indices.Len())
	}
	return NewSparse(p, s.fill)
}

func (s *SparseArray) ComputeStatistic(stat array.Stat) (array.Precision, error) {
	if stat != array.StatNullCount {
		return array.Precision{}, notImplemented("statistic "+stat.String(), SparseID)
	}
	patchNulls, err := array.NullCount(s.patches.Values())
	if err != nil {
		return array.Precision{}, err
	}
	if s.fill.IsValid() {
		return exactU64(patchNulls), nil
	}
	return exactU64(s.Len() - s.patches.NumPatches() + patchNulls), nil
}

func (s *SparseArray) IsConstant(opts array.IsConstantOpts) (bool, error) {
	values := s.patches.Values()
	if values.Len() == s.Len() {
		return array.IsConstant(values, opts)
	}
	for k := 0; k < values.Len(); k++ {
		v, err := array.ScalarAt(values, k)
		if err != nil {
			return false, err
		}
		if !v.Equal(s.fill) {
			return false, nil
		}
	}
	return true, nil
}

// Compare against a constant evaluates the fill once and the patch values
// elementwise.
func (s *SparseArray) Compare(rhs array.Array, op array.Operator) (array.Array, error) {
	rc, ok := rhs.(array.ScalarConstant)
	if !ok {
		return nil, notImplemented("compare", SparseID)
	}
	values := s.patches.Values()
	fillC, err := NewConstant(s.fill, 1)
	if err != nil {
		return nil, err
	}
	fillOut, err := fillC.Compare(rhs, op)
	if err != nil {
		return nil, err
	}
	r, err := NewConstant(rc.ConstantScalar(), values.Len())
	if err != nil {
		return nil, err
	}
	out, err := array.Compare(values, r, op)
	if err != nil {
		return nil, err
	}
	return s.withValues(out, fillOut.(*ConstantArray).scalar)
}

func (s *SparseArray) BinaryNumeric(rhs array.Array, op array.NumericOp) (array.Array, error) {
	rc, ok := rhs.(array.ScalarConstant)
	if !ok {
		return nil, notImplemented("binary_numeric", SparseID)
	}
	values := s.patches.Values()
	fillC, err := NewConstant(s.fill, 1)
	if err != nil {
		return nil, err
	}
	fillOut, err := fillC.BinaryNumeric(rhs, op)
	if err != nil {
		return nil, err
	}
	r, err := NewConstant(rc.ConstantScalar(), values.Len())
	if err != nil {
		return nil, err
	}
	out, err := array.BinaryNumeric(values, r, op)
	if err != nil {
		return nil, err
	}
	return s.withValues(out, fillOut.(*ConstantArray).scalar)
}

func (s *SparseArray) withValues(values array.Array, fill arrow.Scalar) (array.Array, error) {
	if fill.DataType().Nullable() != values.DataType().Nullable() {
		dt := arrow.AsNullable(values.DataType())
		var err error
		if values, err = array.Cast(values, dt); err != nil {
			return nil, err
		}
		fill = fill.WithDataType(arrow.AsNullable(fill.DataType()))
	}
	p, err := s.patches.WithChildren(s.patches.Indices(), values)
	if err != nil {
		return nil, err
	}
	return NewSparse(p, fill)
}

// SparseEncode patches every position of a that differs from fill. Nulls
// equal a null fill.
func SparseEncode(a array.Array, fill arrow.Scalar) (*SparseArray, error) {
	canon, err := array.Canonicalize(a)
	if err != nil {
		return nil, err
	}
	if fill.IsValid() {
		if fill, err = fill.Cast(a.DataType()); err != nil {
			return nil, err
		}
	} else {
		fill = arrow.NullScalar(a.DataType())
	}
	var idx []uint64
	if p, ok := canon.(*array.PrimitiveArray); ok {
		idx = primitiveMismatches(p, fill)
	} else {
		for i := 0; i < canon.Len(); i++ {
			v, err := array.ScalarAt(canon, i)
			if err != nil {
				return nil, err
			}
			if !v.Equal(fill) {
				idx = append(idx, uint64(i))
			}
		}
	}
	indices := narrowUnsigned(idx)
	values, err := array.Take(canon, indices)
	if err != nil {
		return nil, err
	}
	patches, err := array.NewPatches(a.Len(), 0, indices, values)
	if err != nil {
		return nil, err
	}
	return NewSparse(patches, fill)
}

func primitiveMismatches(p *array.PrimitiveArray, fill arrow.Scalar) []uint64 {
	var idx []uint64
	differs := func(i int, same bool) {
		valid := p.IsValid(i)
		if valid != fill.IsValid() || (valid && !same) {
			idx = append(idx, uint64(i))
		}
	}
	switch pt := p.PType(); {
	case pt.IsFloat():
		want := math.Float64bits(arrow.PrimitiveValue[float64](fill))
		for i, v := range array.ToWide[float64](p) {
			differs(i, math.Float64bits(v) == want)
		}
	case pt.IsUnsigned():
		want := arrow.PrimitiveValue[uint64](fill)
		for i, v := range array.ToWide[uint64](p) {
			differs(i, v == want)
		}
	default:
		want := arrow.PrimitiveValue[int64](fill)
		for i, v := range array.ToWide[int64](p) {
			differs(i, v == want)
		}
	}
	return idx
}

func emptyOf(dt arrow.DataType) (array.Array, error) {
	b, err := array.NewBuilder(dt)
	if err != nil {
		return nil, err
	}
	return b.NewArray()
}

func init() {
	array.Register(array.EncodingVTable{
		ID:        SparseID,
		Prototype: (*SparseArray)(nil),
		Decode: func(parts *array.ArrayParts, ctx *array.DecodeContext, dtype arrow.DataType, length int) (array.Array, error) {
			r := array.NewMetaReader(SparseID, parts.Metadata)
			fill := r.Scalar(dtype)
			valuesDT := dtype.WithNullability(arrow.Nullability(r.Bool()))
			pm := r.Patches()
			if err := r.Err(); err != nil {
				return nil, err
			}
			p, err := ctx.DecodePatches(parts, pm, length, valuesDT)
			if err != nil {
				return nil, err
			}
			if p == nil {
				values, err := emptyOf(valuesDT)
				if err != nil {
					return nil, err
				}
				if p, err = array.NewPatches(length, 0, narrowUnsigned(nil), values); err != nil {
					return nil, err
				}
			}
			return NewSparse(p, fill)
		},
	})
}
