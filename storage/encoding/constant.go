package encoding

import (
	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

const ConstantID array.EncodingID = "cascade.constant"

// ConstantArray repeats one scalar. Every operation is O(1).
type ConstantArray struct {
	array.Base
	scalar arrow.Scalar
}

var _ array.ScalarConstant = (*ConstantArray)(nil)

// NewConstant returns length copies of s. The array takes the type of s.
func NewConstant(s arrow.Scalar, length int) (*ConstantArray, error) {
	if length < 0 {
		return nil, errors.InvalidArg("constant", "negative length")
	}
	if s.DataType() == nil {
		return nil, errors.InvalidArg("constant", "scalar has no type")
	}
	return &ConstantArray{Base: array.NewBase(s.DataType(), length), scalar: s}, nil
}

func (c *ConstantArray) Encoding() array.EncodingID        { return ConstantID }
func (c *ConstantArray) ConstantScalar() arrow.Scalar       { return c.scalar }
func (c *ConstantArray) IsValid(int) bool                   { return c.scalar.IsValid() }
func (c *ConstantArray) ScalarAt(int) (arrow.Scalar, error) { return c.scalar, nil }
func (c *ConstantArray) Validate() error                    { return nil }

func (c *ConstantArray) Slice(start, stop int) (array.Array, error) {
	return NewConstant(c.scalar, stop-start)
}

func (c *ConstantArray) Validity() (array.Validity, error) {
	if c.scalar.IsNull() {
		return array.AllInvalid(), nil
	}
	return array.FromNullability(c.DataType().Nullable()), nil
}

func (c *ConstantArray) ToCanonical() (array.Array, error) {
	return array.Repeat(c.scalar, c.Len())
}

// Accept presents nothing; the scalar travels in the metadata.
func (c *ConstantArray) Accept(array.ArrayVisitor) error { return nil }

func (c *ConstantArray) Metadata() ([]byte, error) {
	return new(array.MetaWriter).Scalar(c.scalar).Finish(), nil
}

func (c *ConstantArray) Filter(mask *arrow.Bitmap) (array.Array, error) {
	return NewConstant(c.scalar, mask.CountSet())
}

func (c *ConstantArray) Take(indices *array.PrimitiveArray) (array.Array, error) {
	n := indices.Len()
	if indices.RawValidity().AllValidIn(n) || c.scalar.IsNull() {
		s := c.scalar
		if indices.DataType().Nullable() && !c.scalar.IsNull() {
			s = s.WithDataType(arrow.AsNullable(s.DataType()))
		}
		return NewConstant(s, n)
	}
	// null indices turn the result into a constant with holes
	values, err := NewConstant(c.scalar.WithDataType(arrow.AsNullable(c.DataType())), n)
	if err != nil {
		return nil, err
	}
	var idx []uint64
	for i := 0; i < n; i++ {
		if !indices.IsValid(i) {
			idx = append(idx, uint64(i))
		}
	}
	nulls, err := array.AllNulls(values.DataType(), len(idx))
	if err != nil {
		return nil, err
	}
	patches, err := array.NewPatches(n, 0, narrowUnsigned(idx), nulls)
	if err != nil {
		return nil, err
	}
	return NewSparse(patches, values.scalar)
}

func (c *ConstantArray) Cast(dt arrow.DataType) (array.Array, error) {
	s, err := c.scalar.Cast(dt)
	if err != nil {
		return nil, err
	}
	return NewConstant(s, c.Len())
}

func (c *ConstantArray) ComputeStatistic(stat array.Stat) (array.Precision, error) {
	n := c.Len()
	valid := c.scalar.IsValid()
	switch stat {
	case array.StatIsConstant, array.StatIsSorted:
		return exactBool(true), nil
	case array.StatIsStrictSorted:
		return exactBool(n <= 1), nil
	case array.StatRunCount:
		return exactU64(min(n, 1)), nil
	case array.StatNullCount:
		if valid {
			return exactU64(0), nil
		}
		return exactU64(n), nil
	case array.StatMin, array.StatMax:
		if valid && n > 0 {
			return array.Exact(c.scalar.WithDataType(c.DataType().WithNullability(arrow.NonNullable))), nil
		}
	case array.StatTrueCount:
		if b, ok := c.scalar.AsBool(); ok {
			if b {
				return exactU64(n), nil
			}
			return exactU64(0), nil
		}
	}
	return array.Precision{}, notImplemented("statistic "+stat.String(), ConstantID)
}

func (c *ConstantArray) IsConstant(array.IsConstantOpts) (bool, error) { return true, nil }

func (c *ConstantArray) Compare(rhs array.Array, op array.Operator) (array.Array, error) {
	nullable := arrow.Nullability(c.DataType().Nullable() || rhs.DataType().Nullable())
	if c.scalar.IsNull() {
		return NewConstant(arrow.NullScalar(arrow.Bool(arrow.Nullable)), c.Len())
	}
	if rc, ok := rhs.(array.ScalarConstant); ok {
		r := rc.ConstantScalar()
		if r.IsNull() {
			return NewConstant(arrow.NullScalar(arrow.Bool(arrow.Nullable)), c.Len())
		}
		ok, err := scalarHolds(c.scalar, r, op)
		if err != nil {
			return nil, err
		}
		return NewConstant(arrow.BoolScalar(ok, nullable), c.Len())
	}
	canon, err := array.Canonicalize(rhs)
	if err != nil {
		return nil, err
	}
	return array.Compare(canon, c, op.Swap())
}

func (c *ConstantArray) BinaryNumeric(rhs array.Array, op array.NumericOp) (array.Array, error) {
	rc, ok := rhs.(array.ScalarConstant)
	if !ok {
		return nil, notImplemented("binary_numeric", ConstantID)
	}
	r := rc.ConstantScalar()
	if c.scalar.IsNull() || r.IsNull() {
		return NewConstant(arrow.NullScalar(c.DataType()), c.Len())
	}
	// evaluate once through the primitive kernel
	l1, err := array.Repeat(c.scalar, 1)
	if err != nil {
		return nil, err
	}
	r1, err := array.Repeat(r, 1)
	if err != nil {
		return nil, err
	}
	out, err := array.BinaryNumeric(l1, r1, op)
	if err != nil {
		return nil, err
	}
	s, err := array.ScalarAt(out, 0)
	if err != nil {
		return nil, err
	}
	return NewConstant(s, c.Len())
}

func init() {
	array.Register(array.EncodingVTable{
		ID:        ConstantID,
		Prototype: (*ConstantArray)(nil),
		Decode: func(parts *array.ArrayParts, ctx *array.DecodeContext, dtype arrow.DataType, length int) (array.Array, error) {
			r := array.NewMetaReader(ConstantID, parts.Metadata)
			s := r.Scalar(dtype)
			if err := r.Err(); err != nil {
				return nil, err
			}
			return NewConstant(s, length)
		},
	})
}
