package encoding

import (
	"math/bits"

	"golang.org/x/exp/constraints"

	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

const FoRID array.EncodingID = "cascade.for"

// FoRArray stores integers as unsigned offsets from a reference, shifted
// right by a common number of trailing zero bits: v = (u << shift) + ref.
type FoRArray struct {
	array.Base
	encoded   array.Array
	reference arrow.Scalar
	shift     uint8
}

// NewFoR builds a frame-of-reference array. encoded must hold the unsigned
// ptype of the reference's width.
func NewFoR(encoded array.Array, reference arrow.Scalar, shift uint8) (*FoRArray, error) {
	rp, ok := arrow.PTypeOf(reference.DataType())
	if !ok || !rp.IsInt() {
		return nil, errors.InvalidArg("for", "reference must be an integer, got "+reference.DataType().Name())
	}
	if reference.IsNull() {
		return nil, errors.InvalidArg("for", "null reference")
	}
	ep, ok := arrow.PTypeOf(encoded.DataType())
	if !ok || ep != rp.ToUnsigned() {
		return nil, errors.TypeMismatch("for", rp.ToUnsigned().String(), encoded.DataType().Name())
	}
	if int(shift) >= rp.BitWidth() {
		return nil, errors.InvalidArg("for", "shift exceeds bit width")
	}
	dt := arrow.Primitive(rp, arrow.Nullability(encoded.DataType().Nullable()))
	return &FoRArray{
		Base:      array.NewBase(dt, encoded.Len()),
		encoded:   encoded,
		reference: reference.WithDataType(dt.WithNullability(arrow.NonNullable)),
		shift:     shift,
	}, nil
}

func (f *FoRArray) Encoding() array.EncodingID { return FoRID }
func (f *FoRArray) Encoded() array.Array       { return f.encoded }
func (f *FoRArray) Reference() arrow.Scalar    { return f.reference }
func (f *FoRArray) Shift() uint8               { return f.shift }

func (f *FoRArray) ptype() arrow.PType {
	p, _ := arrow.PTypeOf(f.DataType())
	return p
}

func (f *FoRArray) refBits() uint64 { return scalarBits(f.reference) }

func (f *FoRArray) ScalarAt(i int) (arrow.Scalar, error) {
	s, err := f.encoded.ScalarAt(i)
	if err != nil {
		return arrow.Scalar{}, err
	}
	u, _ := s.AsUint64()
	return bitsScalar(f.DataType(), (u<<f.shift)+f.refBits()), nil
}

func (f *FoRArray) IsValid(i int) bool                 { return f.encoded.IsValid(i) }
func (f *FoRArray) Validity() (array.Validity, error) { return f.encoded.Validity() }

func (f *FoRArray) Slice(start, stop int) (array.Array, error) {
	encoded, err := array.Slice(f.encoded, start, stop)
	if err != nil {
		return nil, err
	}
	return NewFoR(encoded, f.reference, f.shift)
}

func (f *FoRArray) ToCanonical() (array.Array, error) {
	p, err := primitiveOf(f.encoded, "for")
	if err != nil {
		return nil, err
	}
	wide := array.ToWide[uint64](p)
	ref := f.refBits()
	for i, u := range wide {
		wide[i] = (u << f.shift) + ref
	}
	return fromBits(f.ptype(), wide, p.RawValidity())
}

func (f *FoRArray) Accept(v array.ArrayVisitor) error {
	return v.VisitChild("encoded", f.encoded)
}

func (f *FoRArray) Metadata() ([]byte, error) {
	return new(array.MetaWriter).Scalar(f.reference).Byte(f.shift).Finish(), nil
}

func (f *FoRArray) Validate() error { return nil }

func (f *FoRArray) Filter(mask *arrow.Bitmap) (array.Array, error) {
	encoded, err := array.Filter(f.encoded, mask)
	if err != nil {
		return nil, err
	}
	return NewFoR(encoded, f.reference, f.shift)
}

func (f *FoRArray) Take(indices *array.PrimitiveArray) (array.Array, error) {
	encoded, err := array.Take(f.encoded, indices)
	if err != nil {
		return nil, err
	}
	return NewFoR(encoded, f.reference, f.shift)
}

func (f *FoRArray) ComputeStatistic(stat array.Stat) (array.Precision, error) {
	if stat == array.StatNullCount {
		n, err := array.NullCount(f.encoded)
		if err != nil {
			return array.Precision{}, err
		}
		return exactU64(n), nil
	}
	return array.Precision{}, notImplemented("statistic "+stat.String(), FoRID)
}

// BinaryNumeric folds addition or subtraction of a constant into the
// reference. It fails with Overflow when any element would leave the ptype.
func (f *FoRArray) BinaryNumeric(rhs array.Array, op array.NumericOp) (array.Array, error) {
	rc, ok := rhs.(array.ScalarConstant)
	if !ok || (op != array.Add && op != array.Sub) {
		return nil, notImplemented("binary_numeric "+op.String(), FoRID)
	}
	c := rc.ConstantScalar()
	if c.IsNull() {
		return NewConstant(arrow.NullScalar(f.DataType()), f.Len())
	}
	maxU := uint64(0)
	if prec, ok, err := array.ComputeStat(f.encoded, array.StatMax); err != nil {
		return nil, err
	} else if ok {
		maxU, _ = prec.Value.AsUint64()
	}
	p := f.ptype()
	top := bitsScalar(f.reference.DataType(), (maxU<<f.shift)+f.refBits())

	newRef, err := foldScalar(p, f.reference, c, op)
	if err != nil {
		return nil, err
	}
	if _, err := foldScalar(p, top, c, op); err != nil {
		return nil, err
	}
	return NewFoR(f.encoded, newRef, f.shift)
}

func foldScalar(p arrow.PType, v, c arrow.Scalar, op array.NumericOp) (arrow.Scalar, error) {
	if p.IsUnsigned() {
		a, _ := v.AsUint64()
		b, ok := c.AsUint64()
		var r uint64
		var borrow uint64
		if op == array.Add {
			r, borrow = bits.Add64(a, b, 0)
		} else {
			r, borrow = bits.Sub64(a, b, 0)
		}
		if !ok || borrow != 0 || r > p.MaxUint() {
			return arrow.Scalar{}, errors.Overflow("for_fold", v.String()+" "+op.String()+" "+c.String(), p.String())
		}
		return arrow.UintScalar(p, r, arrow.NonNullable), nil
	}
	a, _ := v.AsInt64()
	b, ok := c.AsInt64()
	if !ok {
		return arrow.Scalar{}, errors.Overflow("for_fold", c.String(), p.String())
	}
	r, err := array.CheckedIntOp(a, b, op)
	if err != nil {
		return arrow.Scalar{}, err
	}
	if r < p.MinInt() || (r > 0 && uint64(r) > p.MaxUint()) {
		return arrow.Scalar{}, errors.Overflow("for_fold", r, p.String())
	}
	return arrow.IntScalar(p, r, arrow.NonNullable), nil
}

func init() {
	array.Register(array.EncodingVTable{
		ID:        FoRID,
		Prototype: (*FoRArray)(nil),
		Decode: func(parts *array.ArrayParts, ctx *array.DecodeContext, dtype arrow.DataType, length int) (array.Array, error) {
			p, ok := arrow.PTypeOf(dtype)
			if !ok {
				return nil, errors.TypeMismatch("decode for", "integer", dtype.Name())
			}
			r := array.NewMetaReader(FoRID, parts.Metadata)
			ref := r.Scalar(dtype.WithNullability(arrow.NonNullable))
			shift := r.Byte()
			if err := r.Err(); err != nil {
				return nil, err
			}
			ep, err := childAt(parts, "encoded")
			if err != nil {
				return nil, err
			}
			encoded, err := ctx.DecodeChild(ep, arrow.Primitive(p.ToUnsigned(), arrow.Nullability(dtype.Nullable())), length)
			if err != nil {
				return nil, err
			}
			return NewFoR(encoded, ref, shift)
		},
	})
}

// FoREncode subtracts the minimum and strips the trailing zero bits common to
// every offset. Null slots encode as zero.
func FoREncode(a array.Array) (*FoRArray, error) {
	p, err := primitiveOf(a, "for_encode")
	if err != nil {
		return nil, err
	}
	pt := p.PType()
	if !pt.IsInt() {
		return nil, errors.UnsupportedType("for_encode", a.DataType().Name(), string(FoRID))
	}
	ref := arrow.ZeroScalar(arrow.Primitive(pt, arrow.NonNullable))
	if prec, ok, err := array.ComputeStat(p, array.StatMin); err != nil {
		return nil, err
	} else if ok {
		ref = prec.Value
	}
	refBits := scalarBits(ref)

	wide := array.ToWide[uint64](p)
	var or uint64
	for i, v := range wide {
		if !p.IsValid(i) {
			wide[i] = 0
			continue
		}
		wide[i] = truncateBits(v-refBits, pt.BitWidth())
		or |= wide[i]
	}
	shift := uint8(0)
	if or != 0 {
		shift = uint8(bits.TrailingZeros64(or))
		for i := range wide {
			wide[i] >>= shift
		}
	}
	encoded, err := fromBits(pt.ToUnsigned(), wide, p.RawValidity())
	if err != nil {
		return nil, err
	}
	return NewFoR(encoded, ref, shift)
}

// --- bit helpers shared by the integer encodings ---

// scalarBits returns the two's complement bits of an integer scalar.
func scalarBits(s arrow.Scalar) uint64 {
	if v, ok := s.Value().(int64); ok {
		return uint64(v)
	}
	u, _ := s.AsUint64()
	return u
}

// bitsScalar reinterprets the low bits of v as a scalar of dt.
func bitsScalar(dt arrow.DataType, v uint64) arrow.Scalar {
	p, _ := arrow.PTypeOf(dt)
	w := p.BitWidth()
	v = truncateBits(v, w)
	if p.IsSigned() {
		shift := uint(64 - w)
		return arrow.NewScalar(dt, int64(v<<shift)>>shift)
	}
	return arrow.NewScalar(dt, v)
}

func truncateBits(v uint64, width int) uint64 {
	if width >= 64 {
		return v
	}
	return v & (1<<width - 1)
}

// fromBits stores the low bits of each value in an array of ptype p.
func fromBits(p arrow.PType, values []uint64, validity array.Validity) (*array.PrimitiveArray, error) {
	var out *array.PrimitiveArray
	switch p.ByteWidth() {
	case 1:
		out = truncateSlice[uint8](values, validity)
	case 2:
		out = truncateSlice[uint16](values, validity)
	case 4:
		out = truncateSlice[uint32](values, validity)
	default:
		out = truncateSlice[uint64](values, validity)
	}
	return out.Reinterpret(p)
}

func truncateSlice[T constraints.Unsigned](values []uint64, validity array.Validity) *array.PrimitiveArray {
	out := make([]T, len(values))
	for i, v := range values {
		out[i] = T(v)
	}
	return array.FromSlice(out, validity)
}
