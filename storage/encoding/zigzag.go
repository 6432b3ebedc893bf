package encoding

import (
	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

const ZigZagID array.EncodingID = "cascade.zigzag"

// ZigZagArray maps signed integers onto unsigned ones so that values of small
// magnitude stay small: 0, -1, 1, -2 become 0, 1, 2, 3.
type ZigZagArray struct {
	array.Base
	encoded array.Array
}

// NewZigZag wraps an unsigned array; the logical type is its signed twin.
func NewZigZag(encoded array.Array) (*ZigZagArray, error) {
	p, ok := arrow.PTypeOf(encoded.DataType())
	if !ok || !p.IsUnsigned() {
		return nil, errors.InvalidArg("zigzag", "encoded must be unsigned, got "+encoded.DataType().Name())
	}
	dt := arrow.Primitive(p.ToSigned(), arrow.Nullability(encoded.DataType().Nullable()))
	return &ZigZagArray{Base: array.NewBase(dt, encoded.Len()), encoded: encoded}, nil
}

func (z *ZigZagArray) Encoding() array.EncodingID          { return ZigZagID }
func (z *ZigZagArray) Encoded() array.Array                { return z.encoded }
func (z *ZigZagArray) IsValid(i int) bool                  { return z.encoded.IsValid(i) }
func (z *ZigZagArray) Validity() (array.Validity, error)   { return z.encoded.Validity() }
func (z *ZigZagArray) Accept(v array.ArrayVisitor) error   { return v.VisitChild("encoded", z.encoded) }
func (z *ZigZagArray) Metadata() ([]byte, error)           { return nil, nil }
func (z *ZigZagArray) Validate() error                     { return nil }

func zigzagEncode(v int64) uint64 { return uint64((v << 1) ^ (v >> 63)) }

func zigzagDecode(u uint64) int64 { return int64(u>>1) ^ -int64(u&1) }

func (z *ZigZagArray) ScalarAt(i int) (arrow.Scalar, error) {
	s, err := z.encoded.ScalarAt(i)
	if err != nil {
		return arrow.Scalar{}, err
	}
	u, _ := s.AsUint64()
	return arrow.NewScalar(z.DataType(), zigzagDecode(u)), nil
}

func (z *ZigZagArray) Slice(start, stop int) (array.Array, error) {
	encoded, err := array.Slice(z.encoded, start, stop)
	if err != nil {
		return nil, err
	}
	return NewZigZag(encoded)
}

func (z *ZigZagArray) ToCanonical() (array.Array, error) {
	p, err := primitiveOf(z.encoded, "zigzag")
	if err != nil {
		return nil, err
	}
	wide := array.ToWide[uint64](p)
	for i, u := range wide {
		wide[i] = uint64(zigzagDecode(u))
	}
	sp, _ := arrow.PTypeOf(z.DataType())
	return fromBits(sp, wide, p.RawValidity())
}

func (z *ZigZagArray) Filter(mask *arrow.Bitmap) (array.Array, error) {
	encoded, err := array.Filter(z.encoded, mask)
	if err != nil {
		return nil, err
	}
	return NewZigZag(encoded)
}

func (z *ZigZagArray) Take(indices *array.PrimitiveArray) (array.Array, error) {
	encoded, err := array.Take(z.encoded, indices)
	if err != nil {
		return nil, err
	}
	return NewZigZag(encoded)
}

func (z *ZigZagArray) ComputeStatistic(stat array.Stat) (array.Precision, error) {
	switch stat {
	case array.StatNullCount:
		n, err := array.NullCount(z.encoded)
		if err != nil {
			return array.Precision{}, err
		}
		return exactU64(n), nil
	case array.StatIsConstant:
		ok, err := array.IsConstant(z.encoded, array.IsConstantOpts{})
		if err != nil {
			return array.Precision{}, err
		}
		return exactBool(ok), nil
	}
	return array.Precision{}, notImplemented("statistic "+stat.String(), ZigZagID)
}

func init() {
	array.Register(array.EncodingVTable{
		ID:        ZigZagID,
		Prototype: (*ZigZagArray)(nil),
		Decode: func(parts *array.ArrayParts, ctx *array.DecodeContext, dtype arrow.DataType, length int) (array.Array, error) {
			p, ok := arrow.PTypeOf(dtype)
			if !ok || !p.IsSigned() {
				return nil, errors.TypeMismatch("decode zigzag", "signed integer", dtype.Name())
			}
			ep, err := childAt(parts, "encoded")
			if err != nil {
				return nil, err
			}
			encoded, err := ctx.DecodeChild(ep, arrow.Primitive(p.ToUnsigned(), arrow.Nullability(dtype.Nullable())), length)
			if err != nil {
				return nil, err
			}
			return NewZigZag(encoded)
		},
	})
}

// ZigZagEncode encodes a signed integer array. Null slots encode as zero.
func ZigZagEncode(a array.Array) (*ZigZagArray, error) {
	p, err := primitiveOf(a, "zigzag_encode")
	if err != nil {
		return nil, err
	}
	pt := p.PType()
	if !pt.IsSigned() || !pt.IsInt() {
		return nil, errors.UnsupportedType("zigzag_encode", a.DataType().Name(), string(ZigZagID))
	}
	wide := array.ToWide[int64](p)
	out := make([]uint64, len(wide))
	for i, v := range wide {
		if p.IsValid(i) {
			out[i] = zigzagEncode(v)
		}
	}
	encoded, err := fromBits(pt.ToUnsigned(), out, p.RawValidity())
	if err != nil {
		return nil, err
	}
	return NewZigZag(encoded)
}
