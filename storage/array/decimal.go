package array

import (
	"fmt"

	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

const DecimalID EncodingID = "cascade.decimal"

// DecimalArray holds 128-bit decimal values.
type DecimalArray struct {
	Base
	buffer   *arrow.Buffer
	validity Validity
}

func NewDecimalArray(dt *arrow.DecimalType, buf *arrow.Buffer, validity Validity) (*DecimalArray, error) {
	if buf.Len()%16 != 0 {
		return nil, errors.InvalidArg("decimal", fmt.Sprintf("buffer of %d bytes is not a multiple of 16", buf.Len()))
	}
	length := buf.Len() / 16
	if err := validity.Check(length, dt.Nullable()); err != nil {
		return nil, err
	}
	return &DecimalArray{Base: NewBase(dt, length), buffer: buf, validity: validity}, nil
}

// DecimalFromSlice copies values. It panics on a validity mismatch.
func DecimalFromSlice(dt *arrow.DecimalType, values []arrow.Decimal128, validity Validity) *DecimalArray {
	arr, err := NewDecimalArray(dt, arrow.NewBufferFrom(values), validity)
	if err != nil {
		panic(err)
	}
	return arr
}

func (d *DecimalArray) Encoding() EncodingID        { return DecimalID }
func (d *DecimalArray) Values() []arrow.Decimal128  { return arrow.View[arrow.Decimal128](d.buffer) }
func (d *DecimalArray) Buffer() *arrow.Buffer       { return d.buffer }
func (d *DecimalArray) IsValid(i int) bool          { return d.validity.IsValid(i) }
func (d *DecimalArray) Validity() (Validity, error) { return d.validity, nil }
func (d *DecimalArray) RawValidity() Validity       { return d.validity }
func (d *DecimalArray) ToCanonical() (Array, error) { return d, nil }
func (d *DecimalArray) Metadata() ([]byte, error)   { return nil, nil }

func (d *DecimalArray) decimalType() *arrow.DecimalType { return d.dtype.(*arrow.DecimalType) }

func (d *DecimalArray) ScalarAt(i int) (arrow.Scalar, error) {
	return arrow.DecimalScalar(d.dtype, d.Values()[i]), nil
}

func (d *DecimalArray) Slice(start, stop int) (Array, error) {
	return &DecimalArray{
		Base:     NewBase(d.dtype, stop-start),
		buffer:   d.buffer.Slice(start*16, stop*16),
		validity: d.validity.Slice(start, stop),
	}, nil
}

func (d *DecimalArray) Accept(v ArrayVisitor) error {
	if err := v.VisitBuffer(d.buffer); err != nil {
		return err
	}
	return v.VisitValidity(d.validity)
}

func (d *DecimalArray) Validate() error {
	return d.validity.Check(d.length, d.dtype.Nullable())
}

func (d *DecimalArray) Filter(mask *arrow.Bitmap) (Array, error) {
	vals := d.Values()
	out := make([]arrow.Decimal128, 0, mask.CountSet())
	for _, i := range mask.SetIndices() {
		out = append(out, vals[i])
	}
	return NewDecimalArray(d.decimalType(), arrow.WrapSlice(out), d.validity.Filter(mask))
}

func (d *DecimalArray) Take(indices *PrimitiveArray) (Array, error) {
	vals := d.Values()
	idx := indices.Indices()
	out := make([]arrow.Decimal128, len(idx))
	for i, j := range idx {
		if indices.IsValid(i) {
			out[i] = vals[j]
		}
	}
	validity := d.validity.Take(indices)
	dt := d.dtype.WithNullability(arrow.Nullability(validity.Nullable())).(*arrow.DecimalType)
	return NewDecimalArray(dt, arrow.WrapSlice(out), validity)
}

func (d *DecimalArray) Cast(dt arrow.DataType) (Array, error) {
	validity, err := d.validity.CastNullability(dt.Nullable(), d.length)
	if err != nil {
		return nil, err
	}
	switch t := dt.(type) {
	case *arrow.DecimalType:
		if t.Scale() != d.decimalType().Scale() {
			return nil, errors.NotImplemented("rescale "+dt.Name(), string(DecimalID))
		}
		return NewDecimalArray(t, d.buffer, validity)
	case *arrow.PrimitiveType:
		if !t.PType().IsInt() {
			break
		}
		wide := make([]int64, d.length)
		for i, v := range d.Values() {
			if !d.validity.IsValid(i) {
				continue
			}
			if !v.FitsInt64() {
				return nil, errors.Overflow("cast", v.String(), t.PType().String())
			}
			wide[i] = v.Int64()
		}
		return FromWide(t.PType(), wide, validity)
	}
	return nil, errors.NotImplemented("cast "+dt.Name(), string(DecimalID))
}

func (d *DecimalArray) ComputeStatistic(stat Stat) (Precision, error) {
	if stat == StatUncompressedSize {
		return Exact(arrow.UintScalar(arrow.U64, uint64(d.buffer.Len()+validityBytes(d.validity)), arrow.NonNullable)), nil
	}
	return genericStatistic(d, stat)
}

func (d *DecimalArray) IsConstant(IsConstantOpts) (bool, error) { return genericIsConstant(d) }

func (d *DecimalArray) Compare(rhs Array, op Operator) (Array, error) {
	return compareCanonical(d, rhs, op)
}

func (d *DecimalArray) BinaryNumeric(rhs Array, op NumericOp) (Array, error) {
	return nil, errors.NotImplemented("binary_numeric", string(DecimalID))
}

func init() {
	Register(EncodingVTable{
		ID:        DecimalID,
		Prototype: (*DecimalArray)(nil),
		Decode: func(parts *ArrayParts, ctx *DecodeContext, dtype arrow.DataType, length int) (Array, error) {
			dt, ok := dtype.(*arrow.DecimalType)
			if !ok {
				return nil, errors.TypeMismatch("decode decimal", "decimal", dtype.Name())
			}
			if len(parts.Buffers) != 1 {
				return nil, errors.Corrupt(string(DecimalID), "expected one buffer")
			}
			validity, err := parts.DecodeValidity(length)
			if err != nil {
				return nil, err
			}
			return NewDecimalArray(dt, parts.Buffers[0], validity)
		},
	})
}
