package array

import (
	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

const NullID EncodingID = "cascade.null"

// NullArray is an array of the null type; every element is null.
type NullArray struct {
	Base
}

func NewNullArray(length int) *NullArray {
	return &NullArray{Base: NewBase(arrow.Null(), length)}
}

func (n *NullArray) Encoding() EncodingID        { return NullID }
func (n *NullArray) IsValid(int) bool            { return false }
func (n *NullArray) Validity() (Validity, error) { return AllInvalid(), nil }
func (n *NullArray) ToCanonical() (Array, error) { return n, nil }
func (n *NullArray) Accept(ArrayVisitor) error   { return nil }
func (n *NullArray) Metadata() ([]byte, error)   { return nil, nil }
func (n *NullArray) Validate() error             { return nil }

func (n *NullArray) ScalarAt(int) (arrow.Scalar, error) {
	return arrow.NullScalar(arrow.Null()), nil
}

func (n *NullArray) Slice(start, stop int) (Array, error) {
	return NewNullArray(stop - start), nil
}

func (n *NullArray) Filter(mask *arrow.Bitmap) (Array, error) {
	return NewNullArray(mask.CountSet()), nil
}

func (n *NullArray) Take(indices *PrimitiveArray) (Array, error) {
	return NewNullArray(indices.Len()), nil
}

func (n *NullArray) Cast(dt arrow.DataType) (Array, error) {
	if !dt.Nullable() {
		return nil, errors.InvalidArg("cast", "cannot cast nulls to non-nullable "+dt.Name())
	}
	return AllNulls(dt, n.length)
}

func (n *NullArray) ComputeStatistic(stat Stat) (Precision, error) {
	switch stat {
	case StatNullCount:
		return Exact(arrow.UintScalar(arrow.U64, uint64(n.length), arrow.NonNullable)), nil
	case StatIsConstant, StatIsSorted:
		return Exact(arrow.BoolScalar(true, arrow.NonNullable)), nil
	case StatIsStrictSorted:
		return Exact(arrow.BoolScalar(n.length <= 1, arrow.NonNullable)), nil
	case StatRunCount:
		runs := 0
		if n.length > 0 {
			runs = 1
		}
		return Exact(arrow.UintScalar(arrow.U64, uint64(runs), arrow.NonNullable)), nil
	case StatUncompressedSize:
		return Exact(arrow.UintScalar(arrow.U64, 0, arrow.NonNullable)), nil
	}
	return Precision{}, errors.NotImplemented("statistic "+stat.String(), string(NullID))
}

func (n *NullArray) IsConstant(IsConstantOpts) (bool, error) { return true, nil }

func (n *NullArray) Compare(rhs Array, op Operator) (Array, error) {
	return NewBoolArray(arrow.NewBitmap(n.length), AllInvalid())
}

func (n *NullArray) BinaryNumeric(rhs Array, op NumericOp) (Array, error) {
	return nil, errors.UnsupportedType("binary_numeric", n.dtype.Name(), string(NullID))
}

// AllNulls builds a canonical array of length nulls of the nullable type dt.
func AllNulls(dt arrow.DataType, length int) (Array, error) {
	if dt.ID() == arrow.NULL {
		return NewNullArray(length), nil
	}
	b, err := NewBuilder(dt)
	if err != nil {
		return nil, err
	}
	for i := 0; i < length; i++ {
		b.AppendNull()
	}
	return b.NewArray()
}

func init() {
	Register(EncodingVTable{
		ID:        NullID,
		Prototype: (*NullArray)(nil),
		Decode: func(parts *ArrayParts, ctx *DecodeContext, dtype arrow.DataType, length int) (Array, error) {
			return NewNullArray(length), nil
		},
	})
}
