package encoding

import (
	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

const DecimalBytePartsID array.EncodingID = "cascade.decimalbyteparts"

// DecimalBytePartsArray stores 128-bit decimals as their most significant
// part in a signed integer and, when values need more than 64 bits, the low
// 64 bits separately. Without a lower part the msp holds the whole value.
type DecimalBytePartsArray struct {
	array.Base
	msp   array.Array
	lower array.Array
}

// NewDecimalByteParts builds the array; lower may be nil.
func NewDecimalByteParts(dt arrow.DataType, msp, lower array.Array) (*DecimalBytePartsArray, error) {
	if _, ok := dt.(*arrow.DecimalType); !ok {
		return nil, errors.TypeMismatch("decimalbyteparts", "decimal", dt.Name())
	}
	p, ok := arrow.PTypeOf(msp.DataType())
	if !ok || !p.IsSigned() || !p.IsInt() {
		return nil, errors.InvalidArg("decimalbyteparts", "msp must be signed integers, got "+msp.DataType().Name())
	}
	if msp.DataType().Nullable() != dt.Nullable() {
		return nil, errors.InvalidArg("decimalbyteparts", "msp nullability must match dtype")
	}
	if lower != nil {
		if lp, ok := arrow.PTypeOf(lower.DataType()); !ok || lp != arrow.U64 {
			return nil, errors.TypeMismatch("decimalbyteparts", "u64", lower.DataType().Name())
		}
		if lower.Len() != msp.Len() {
			return nil, errors.LengthMismatch("decimalbyteparts", "lower", msp.Len(), lower.Len())
		}
	}
	return &DecimalBytePartsArray{Base: array.NewBase(dt, msp.Len()), msp: msp, lower: lower}, nil
}

func (d *DecimalBytePartsArray) Encoding() array.EncodingID        { return DecimalBytePartsID }
func (d *DecimalBytePartsArray) MSP() array.Array                  { return d.msp }
func (d *DecimalBytePartsArray) Lower() array.Array                { return d.lower }
func (d *DecimalBytePartsArray) IsValid(i int) bool                { return d.msp.IsValid(i) }
func (d *DecimalBytePartsArray) Validity() (array.Validity, error) { return d.msp.Validity() }

func (d *DecimalBytePartsArray) ScalarAt(i int) (arrow.Scalar, error) {
	hi, err := intAt(d.msp, i)
	if err != nil {
		return arrow.Scalar{}, err
	}
	if d.lower == nil {
		return arrow.NewScalar(d.DataType(), arrow.DecimalFromInt64(hi)), nil
	}
	ls, err := array.ScalarAt(d.lower, i)
	if err != nil {
		return arrow.Scalar{}, err
	}
	lo, _ := ls.AsUint64()
	return arrow.NewScalar(d.DataType(), arrow.Decimal128{Lo: lo, Hi: hi}), nil
}

func (d *DecimalBytePartsArray) children(fn func(array.Array) (array.Array, error)) (array.Array, error) {
	msp, err := fn(d.msp)
	if err != nil {
		return nil, err
	}
	var lower array.Array
	if d.lower != nil {
		if lower, err = fn(d.lower); err != nil {
			return nil, err
		}
	}
	return NewDecimalByteParts(d.DataType().WithNullability(arrow.Nullability(msp.DataType().Nullable())), msp, lower)
}

func (d *DecimalBytePartsArray) Slice(start, stop int) (array.Array, error) {
	return d.children(func(c array.Array) (array.Array, error) { return array.Slice(c, start, stop) })
}

func (d *DecimalBytePartsArray) Filter(mask *arrow.Bitmap) (array.Array, error) {
	return d.children(func(c array.Array) (array.Array, error) { return array.Filter(c, mask) })
}

func (d *DecimalBytePartsArray) Take(indices *array.PrimitiveArray) (array.Array, error) {
	return d.children(func(c array.Array) (array.Array, error) { return array.Take(c, indices) })
}

func (d *DecimalBytePartsArray) ToCanonical() (array.Array, error) {
	msp, err := primitiveOf(d.msp, "decimalbyteparts")
	if err != nil {
		return nil, err
	}
	his := array.ToWide[int64](msp)
	out := make([]arrow.Decimal128, len(his))
	if d.lower == nil {
		for i, v := range his {
			out[i] = arrow.DecimalFromInt64(v)
		}
	} else {
		los, err := unsignedValues(d.lower, "decimalbyteparts")
		if err != nil {
			return nil, err
		}
		for i, v := range his {
			out[i] = arrow.Decimal128{Lo: los[i], Hi: v}
		}
	}
	return array.DecimalFromSlice(d.DataType().(*arrow.DecimalType), out, msp.RawValidity()), nil
}

func (d *DecimalBytePartsArray) Accept(v array.ArrayVisitor) error {
	if err := v.VisitChild("msp", d.msp); err != nil {
		return err
	}
	if d.lower != nil {
		return v.VisitChild("lower", d.lower)
	}
	return nil
}

func (d *DecimalBytePartsArray) Metadata() ([]byte, error) {
	p, _ := arrow.PTypeOf(d.msp.DataType())
	w := new(array.MetaWriter).Byte(byte(p)).Bool(d.lower != nil)
	if d.lower != nil {
		w.Bool(d.lower.DataType().Nullable())
	}
	return w.Finish(), nil
}

func (d *DecimalBytePartsArray) Validate() error { return nil }

func (d *DecimalBytePartsArray) ComputeStatistic(stat array.Stat) (array.Precision, error) {
	switch stat {
	case array.StatNullCount:
		n, err := array.NullCount(d.msp)
		if err != nil {
			return array.Precision{}, err
		}
		return exactU64(n), nil
	case array.StatIsConstant:
		if d.lower == nil {
			ok, err := array.IsConstant(d.msp, array.IsConstantOpts{})
			if err != nil {
				return array.Precision{}, err
			}
			return exactBool(ok), nil
		}
	}
	return array.Precision{}, notImplemented("statistic "+stat.String(), DecimalBytePartsID)
}

func init() {
	array.Register(array.EncodingVTable{
		ID:        DecimalBytePartsID,
		Prototype: (*DecimalBytePartsArray)(nil),
		Decode: func(parts *array.ArrayParts, ctx *array.DecodeContext, dtype arrow.DataType, length int) (array.Array, error) {
			m := array.NewMetaReader(DecimalBytePartsID, parts.Metadata)
			mp := arrow.PType(m.Byte())
			hasLower := m.Bool()
			lowerNullable := false
			if hasLower {
				lowerNullable = m.Bool()
			}
			if err := m.Err(); err != nil {
				return nil, err
			}
			cp, err := childAt(parts, "msp")
			if err != nil {
				return nil, err
			}
			msp, err := ctx.DecodeChild(cp, arrow.Primitive(mp, arrow.Nullability(dtype.Nullable())), length)
			if err != nil {
				return nil, err
			}
			var lower array.Array
			if hasLower {
				lp, err := childAt(parts, "lower")
				if err != nil {
					return nil, err
				}
				if lower, err = ctx.DecodeChild(lp, arrow.Primitive(arrow.U64, arrow.Nullability(lowerNullable)), length); err != nil {
					return nil, err
				}
			}
			return NewDecimalByteParts(dtype, msp, lower)
		},
	})
}

// DecimalBytePartsEncode splits a decimal array. When every valid value fits
// in 64 bits only the msp is kept, in the narrowest signed type.
func DecimalBytePartsEncode(a array.Array) (*DecimalBytePartsArray, error) {
	c, err := array.Canonicalize(a)
	if err != nil {
		return nil, err
	}
	dec, ok := c.(*array.DecimalArray)
	if !ok {
		return nil, errors.UnsupportedType("decimalbyteparts_encode", a.DataType().Name(), string(DecimalBytePartsID))
	}
	values := dec.Values()
	validity := dec.RawValidity()
	fits := true
	for i, v := range values {
		if validity.IsValid(i) && !v.FitsInt64() {
			fits = false
			break
		}
	}

	hi := make([]int64, len(values))
	var lo, top int64
	if fits {
		for i, v := range values {
			if validity.IsValid(i) {
				hi[i] = v.Int64()
				lo, top = min(lo, hi[i]), max(top, hi[i])
			}
		}
		msp, err := array.FromWide(signedFor(lo, top), hi, validity)
		if err != nil {
			return nil, err
		}
		return NewDecimalByteParts(a.DataType(), msp, nil)
	}

	lower := make([]uint64, len(values))
	for i, v := range values {
		if validity.IsValid(i) {
			hi[i], lower[i] = v.Hi, v.Lo
			lo, top = min(lo, v.Hi), max(top, v.Hi)
		}
	}
	msp, err := array.FromWide(signedFor(lo, top), hi, validity)
	if err != nil {
		return nil, err
	}
	return NewDecimalByteParts(a.DataType(), msp, array.FromSlice(lower, array.NonNullable()))
}
