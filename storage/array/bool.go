package array

import (
	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

const BoolID EncodingID = "cascade.bool"

// BoolArray packs booleans one bit per element.
type BoolArray struct {
	Base
	bits     *arrow.Bitmap
	validity Validity
}

func NewBoolArray(bits *arrow.Bitmap, validity Validity) (*BoolArray, error) {
	nullable := validity.Nullable()
	if err := validity.Check(bits.Len(), nullable); err != nil {
		return nil, err
	}
	return &BoolArray{
		Base:     NewBase(arrow.Bool(arrow.Nullability(nullable)), bits.Len()),
		bits:     bits,
		validity: validity,
	}, nil
}

// BoolFromSlice packs values. It panics on a validity length mismatch.
func BoolFromSlice(values []bool, validity Validity) *BoolArray {
	arr, err := NewBoolArray(arrow.NewBitmapFromBools(values), validity)
	if err != nil {
		panic(err)
	}
	return arr
}

func (b *BoolArray) Encoding() EncodingID        { return BoolID }
func (b *BoolArray) Bits() *arrow.Bitmap         { return b.bits }
func (b *BoolArray) Value(i int) bool            { return b.bits.IsSet(i) }
func (b *BoolArray) IsValid(i int) bool          { return b.validity.IsValid(i) }
func (b *BoolArray) Validity() (Validity, error) { return b.validity, nil }
func (b *BoolArray) ToCanonical() (Array, error) { return b, nil }
func (b *BoolArray) Metadata() ([]byte, error)   { return []byte{byte(b.bits.Offset())}, nil }

func (b *BoolArray) ScalarAt(i int) (arrow.Scalar, error) {
	return arrow.NewScalar(b.dtype, b.bits.IsSet(i)), nil
}

func (b *BoolArray) Slice(start, stop int) (Array, error) {
	return &BoolArray{
		Base:     NewBase(b.dtype, stop-start),
		bits:     b.bits.Slice(start, stop),
		validity: b.validity.Slice(start, stop),
	}, nil
}

func (b *BoolArray) Accept(v ArrayVisitor) error {
	if err := v.VisitBuffer(arrow.NewBufferBytes(b.bits.Bytes()[:(b.bits.Offset()+b.length+7)/8])); err != nil {
		return err
	}
	return v.VisitValidity(b.validity)
}

func (b *BoolArray) Validate() error {
	return b.validity.Check(b.length, b.dtype.Nullable())
}

func (b *BoolArray) Filter(mask *arrow.Bitmap) (Array, error) {
	out := arrow.NewBitmap(0)
	for i := 0; i < mask.Len(); i++ {
		if mask.IsSet(i) {
			out.Append(b.bits.IsSet(i))
		}
	}
	return NewBoolArray(out, b.validity.Filter(mask))
}

func (b *BoolArray) Take(indices *PrimitiveArray) (Array, error) {
	idx := indices.Indices()
	out := arrow.NewBitmap(len(idx))
	for i, j := range idx {
		if indices.IsValid(i) && b.bits.IsSet(j) {
			out.Set(i)
		}
	}
	return NewBoolArray(out, b.validity.Take(indices))
}

func (b *BoolArray) Cast(dt arrow.DataType) (Array, error) {
	validity, err := b.validity.CastNullability(dt.Nullable(), b.length)
	if err != nil {
		return nil, err
	}
	switch t := dt.(type) {
	case *arrow.BoolType:
		return NewBoolArray(b.bits, validity)
	case *arrow.PrimitiveType:
		wide := make([]uint64, b.length)
		for i := range wide {
			if b.bits.IsSet(i) {
				wide[i] = 1
			}
		}
		return FromWide(t.PType(), wide, validity)
	}
	return nil, errors.NotImplemented("cast "+dt.Name(), string(BoolID))
}

// TrueCount counts valid true elements.
func (b *BoolArray) TrueCount() int {
	if b.validity.kind != KindExplicit {
		if b.validity.kind == KindAllInvalid {
			return 0
		}
		return b.bits.CountSet()
	}
	return b.bits.And(b.validity.bitmap).CountSet()
}

func (b *BoolArray) ComputeStatistic(stat Stat) (Precision, error) {
	nulls := b.validity.NullCount(b.length)
	trues := b.TrueCount()
	valid := b.length - nulls
	u64 := func(v int) Precision { return Exact(arrow.UintScalar(arrow.U64, uint64(v), arrow.NonNullable)) }
	boolean := func(v bool) Precision { return Exact(arrow.BoolScalar(v, arrow.NonNullable)) }

	switch stat {
	case StatNullCount:
		return u64(nulls), nil
	case StatTrueCount:
		return u64(trues), nil
	case StatUncompressedSize:
		return u64((b.length+7)/8 + validityBytes(b.validity)), nil
	case StatIsConstant:
		return boolean(nulls == b.length || (nulls == 0 && (trues == 0 || trues == valid))), nil
	case StatMin:
		if valid == 0 {
			break
		}
		return Exact(arrow.BoolScalar(trues == valid, arrow.NonNullable)), nil
	case StatMax:
		if valid == 0 {
			break
		}
		return Exact(arrow.BoolScalar(trues > 0, arrow.NonNullable)), nil
	case StatIsSorted, StatIsStrictSorted, StatRunCount:
		return genericStatistic(b, stat)
	}
	return Precision{}, errors.NotImplemented("statistic "+stat.String(), string(BoolID))
}

// IsConstant is answered with a bit scan.
func (b *BoolArray) IsConstant(IsConstantOpts) (bool, error) {
	p, err := b.ComputeStatistic(StatIsConstant)
	if err != nil {
		return false, err
	}
	v, _ := p.Value.AsBool()
	return v, nil
}

func (b *BoolArray) Compare(rhs Array, op Operator) (Array, error) {
	return compareCanonical(b, rhs, op)
}

func (b *BoolArray) BinaryNumeric(rhs Array, op NumericOp) (Array, error) {
	return nil, errors.UnsupportedType("binary_numeric", b.dtype.Name(), string(BoolID))
}

func init() {
	Register(EncodingVTable{
		ID:        BoolID,
		Prototype: (*BoolArray)(nil),
		Decode: func(parts *ArrayParts, ctx *DecodeContext, dtype arrow.DataType, length int) (Array, error) {
			if len(parts.Buffers) != 1 || len(parts.Metadata) != 1 {
				return nil, errors.Corrupt(string(BoolID), "expected one buffer and offset metadata")
			}
			offset := int(parts.Metadata[0])
			data := parts.Buffers[0].Bytes()
			if len(data)*8 < offset+length {
				return nil, errors.DecodeSizeMismatch(string(BoolID), (offset+length+7)/8, len(data))
			}
			bits := arrow.NewBitmapFromBytes(data, offset+length).Slice(offset, offset+length)
			validity, err := parts.DecodeValidity(length)
			if err != nil {
				return nil, err
			}
			return NewBoolArray(bits, validity)
		},
	})
}
