package encoding

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

const ALPID array.EncodingID = "cascade.alp"

// alpSampleSize bounds the number of values examined by the exponent search.
const alpSampleSize = 256

var (
	f10 = [...]float64{1e0, 1e1, 1e2, 1e3, 1e4, 1e5, 1e6, 1e7, 1e8, 1e9, 1e10,
		1e11, 1e12, 1e13, 1e14, 1e15, 1e16, 1e17, 1e18, 1e19, 1e20, 1e21, 1e22, 1e23}
	if10 = [...]float64{1e0, 1e-1, 1e-2, 1e-3, 1e-4, 1e-5, 1e-6, 1e-7, 1e-8, 1e-9, 1e-10,
		1e-11, 1e-12, 1e-13, 1e-14, 1e-15, 1e-16, 1e-17, 1e-18, 1e-19, 1e-20, 1e-21, 1e-22, 1e-23}
	f10f32  = [...]float32{1e0, 1e1, 1e2, 1e3, 1e4, 1e5, 1e6, 1e7, 1e8, 1e9, 1e10}
	if10f32 = [...]float32{1e0, 1e-1, 1e-2, 1e-3, 1e-4, 1e-5, 1e-6, 1e-7, 1e-8, 1e-9, 1e-10}
)

// Exponents scale a float to an integer: enc = round(v * 10^E * 10^-F).
type Exponents struct {
	E uint8
	F uint8
}

func (e Exponents) String() string { return fmt.Sprintf("e=%d,f=%d", e.E, e.F) }

func maxExponent(p arrow.PType) int {
	if p == arrow.F32 {
		return len(f10f32) - 1
	}
	return 18
}

// alpEncodeValue returns the encoded integer for v and whether decoding it
// reproduces v bit for bit.
func alpEncodeValue(p arrow.PType, v float64, exp Exponents) (int64, bool) {
	if p == arrow.F32 {
		f := float32(v)
		scaled := f * f10f32[exp.E] * if10f32[exp.F]
		if math.IsNaN(float64(scaled)) || math.Abs(float64(scaled)) > 1<<30 {
			return 0, false
		}
		enc := int64(math.RoundToEven(float64(scaled)))
		return enc, math.Float32bits(alpDecode32(enc, exp)) == math.Float32bits(f)
	}
	scaled := v * f10[exp.E] * if10[exp.F]
	if math.IsNaN(scaled) || math.Abs(scaled) > 1<<62 {
		return 0, false
	}
	enc := int64(math.RoundToEven(scaled))
	return enc, math.Float64bits(alpDecode64(enc, exp)) == math.Float64bits(v)
}

func alpDecode64(enc int64, exp Exponents) float64 {
	return float64(enc) * f10[exp.F] * if10[exp.E]
}

func alpDecode32(enc int64, exp Exponents) float32 {
	return float32(enc) * f10f32[exp.F] * if10f32[exp.E]
}

func alpDecode(p arrow.PType, enc int64, exp Exponents) float64 {
	if p == arrow.F32 {
		return float64(alpDecode32(enc, exp))
	}
	return alpDecode64(enc, exp)
}

// ALPArray stores floats as scaled integers. Values that do not survive the
// round trip bit for bit are kept as patches.
type ALPArray struct {
	array.Base
	encoded   array.Array
	exponents Exponents
	patches   *array.Patches
}

func encodedPType(p arrow.PType) arrow.PType {
	if p == arrow.F32 {
		return arrow.I32
	}
	return arrow.I64
}

// NewALP builds an ALP array over i32 (for f32) or i64 (for f64) integers.
func NewALP(encoded array.Array, exp Exponents, patches *array.Patches) (*ALPArray, error) {
	ep, ok := arrow.PTypeOf(encoded.DataType())
	if !ok || (ep != arrow.I32 && ep != arrow.I64) {
		return nil, errors.InvalidArg("alp", "encoded must be i32 or i64, got "+encoded.DataType().Name())
	}
	fp := arrow.F64
	if ep == arrow.I32 {
		fp = arrow.F32
	}
	if int(exp.E) > maxExponent(fp) || exp.F > exp.E {
		return nil, errors.InvalidArg("alp", "invalid exponents "+exp.String())
	}
	if patches != nil {
		if patches.Len() != encoded.Len() {
			return nil, errors.LengthMismatch("alp", "patches", encoded.Len(), patches.Len())
		}
		if pp, _ := arrow.PTypeOf(patches.DataType()); pp != fp {
			return nil, errors.TypeMismatch("alp", fp.String(), patches.DataType().Name())
		}
	}
	return &ALPArray{
		Base:      array.NewBase(arrow.Primitive(fp, arrow.Nullability(encoded.DataType().Nullable())), encoded.Len()),
		encoded:   encoded,
		exponents: exp,
		patches:   patches,
	}, nil
}

func (a *ALPArray) Encoding() array.EncodingID        { return ALPID }
func (a *ALPArray) Encoded() array.Array              { return a.encoded }
func (a *ALPArray) Exponents() Exponents              { return a.exponents }
func (a *ALPArray) Patches() *array.Patches           { return a.patches }
func (a *ALPArray) IsValid(i int) bool                { return a.encoded.IsValid(i) }
func (a *ALPArray) Validity() (array.Validity, error) { return a.encoded.Validity() }

func (a *ALPArray) ptype() arrow.PType {
	p, _ := arrow.PTypeOf(a.DataType())
	return p
}

func (a *ALPArray) ScalarAt(i int) (arrow.Scalar, error) {
	if a.patches != nil {
		if s, found, err := a.patches.ScalarAt(i); err != nil || found {
			return s.WithDataType(a.DataType()), err
		}
	}
	s, err := a.encoded.ScalarAt(i)
	if err != nil {
		return arrow.Scalar{}, err
	}
	enc, _ := s.AsInt64()
	return arrow.NewScalar(a.DataType(), alpDecode(a.ptype(), enc, a.exponents)), nil
}

func (a *ALPArray) Slice(start, stop int) (array.Array, error) {
	encoded, err := array.Slice(a.encoded, start, stop)
	if err != nil {
		return nil, err
	}
	var patches *array.Patches
	if a.patches != nil {
		if patches, err = a.patches.Slice(start, stop); err != nil {
			return nil, err
		}
	}
	return NewALP(encoded, a.exponents, patches)
}

func (a *ALPArray) ToCanonical() (array.Array, error) {
	p, err := primitiveOf(a.encoded, "alp")
	if err != nil {
		return nil, err
	}
	pt := a.ptype()
	wide := array.ToWide[int64](p)
	out := make([]float64, len(wide))
	for i, enc := range wide {
		out[i] = alpDecode(pt, enc, a.exponents)
	}
	decoded, err := array.FromWide(pt, out, p.RawValidity())
	if err != nil {
		return nil, err
	}
	return array.ApplyPatches(decoded, a.patches)
}

func (a *ALPArray) Accept(v array.ArrayVisitor) error {
	if err := v.VisitChild("encoded", a.encoded); err != nil {
		return err
	}
	return array.VisitPatches(v, a.patches)
}

func (a *ALPArray) Metadata() ([]byte, error) {
	p, _ := arrow.PTypeOf(a.encoded.DataType())
	return new(array.MetaWriter).
		Byte(byte(p)).
		Byte(a.exponents.E).
		Byte(a.exponents.F).
		Patches(a.patches).
		Finish(), nil
}

func (a *ALPArray) Validate() error {
	if a.patches != nil {
		return a.patches.Validate()
	}
	return nil
}

func (a *ALPArray) Filter(mask *arrow.Bitmap) (array.Array, error) {
	encoded, err := array.Filter(a.encoded, mask)
	if err != nil {
		return nil, err
	}
	var patches *array.Patches
	if a.patches != nil {
		if patches, err = a.patches.Filter(mask); err != nil {
			return nil, err
		}
	}
	return NewALP(encoded, a.exponents, patches)
}

func (a *ALPArray) Take(indices *array.PrimitiveArray) (array.Array, error) {
	encoded, err := array.Take(a.encoded, indices)
	if err != nil {
		return nil, err
	}
	var patches *array.Patches
	if a.patches != nil {
		if patches, err = a.patches.Take(indices); err != nil {
			return nil, err
		}
	}
	return NewALP(encoded, a.exponents, patches)
}

func (a *ALPArray) ComputeStatistic(stat array.Stat) (array.Precision, error) {
	if stat == array.StatNullCount {
		n, err := array.NullCount(a.encoded)
		if err != nil {
			return array.Precision{}, err
		}
		return exactU64(n), nil
	}
	return array.Precision{}, notImplemented("statistic "+stat.String(), ALPID)
}

func init() {
	array.Register(array.EncodingVTable{
		ID:        ALPID,
		Prototype: (*ALPArray)(nil),
		Decode: func(parts *array.ArrayParts, ctx *array.DecodeContext, dtype arrow.DataType, length int) (array.Array, error) {
			r := array.NewMetaReader(ALPID, parts.Metadata)
			ep := arrow.PType(r.Byte())
			exp := Exponents{E: r.Byte(), F: r.Byte()}
			pm := r.Patches()
			if err := r.Err(); err != nil {
				return nil, err
			}
			cp, err := childAt(parts, "encoded")
			if err != nil {
				return nil, err
			}
			encoded, err := ctx.DecodeChild(cp, arrow.Primitive(ep, arrow.Nullability(dtype.Nullable())), length)
			if err != nil {
				return nil, err
			}
			patches, err := ctx.DecodePatches(parts, pm, length, dtype.WithNullability(arrow.NonNullable))
			if err != nil {
				return nil, err
			}
			return NewALP(encoded, exp, patches)
		},
	})
}

// FindExponents searches every (e, f) pair over an evenly spaced sample of
// the valid values and returns the pair with the smallest estimated size.
func FindExponents(a array.Array) (Exponents, error) {
	p, err := primitiveOf(a, "alp_exponents")
	if err != nil {
		return Exponents{}, err
	}
	pt := p.PType()
	if !pt.IsFloat() {
		return Exponents{}, errors.UnsupportedType("alp_exponents", a.DataType().Name(), string(ALPID))
	}
	return findExponents(pt, sampleValid(p)), nil
}

func sampleValid(p *array.PrimitiveArray) []float64 {
	wide := array.ToWide[float64](p)
	valid := make([]float64, 0, min(len(wide), alpSampleSize))
	step := max(len(wide)/alpSampleSize, 1)
	for i := 0; i < len(wide) && len(valid) < alpSampleSize; i += step {
		if p.IsValid(i) {
			valid = append(valid, wide[i])
		}
	}
	return valid
}

func findExponents(pt arrow.PType, sample []float64) Exponents {
	best := Exponents{}
	bestSize := math.MaxInt
	excBits := pt.BitWidth() + 32
	for e := maxExponent(pt); e >= 0; e-- {
		for f := 0; f <= e; f++ {
			exp := Exponents{E: uint8(e), F: uint8(f)}
			exceptions := 0
			lo, hi := int64(math.MaxInt64), int64(math.MinInt64)
			for _, v := range sample {
				enc, ok := alpEncodeValue(pt, v, exp)
				if !ok {
					exceptions++
					continue
				}
				lo, hi = min(lo, enc), max(hi, enc)
			}
			width := 0
			if hi >= lo {
				width = bits.Len64(uint64(hi - lo))
			}
			size := width*(len(sample)-exceptions) + exceptions*excBits
			if size < bestSize {
				best, bestSize = exp, size
			}
		}
	}
	return best
}

// ALPEncode encodes a float array with the given exponents, searching for
// them when exp is nil. Exceptions and null slots hold the first encoded
// value so they do not widen the integer range.
func ALPEncode(a array.Array, exp *Exponents) (*ALPArray, error) {
	p, err := primitiveOf(a, "alp_encode")
	if err != nil {
		return nil, err
	}
	pt := p.PType()
	if pt != arrow.F32 && pt != arrow.F64 {
		return nil, errors.UnsupportedType("alp_encode", a.DataType().Name(), string(ALPID))
	}
	var exps Exponents
	if exp != nil {
		exps = *exp
	} else {
		exps = findExponents(pt, sampleValid(p))
	}
	if int(exps.E) > maxExponent(pt) || exps.F > exps.E {
		return nil, errors.InvalidArg("alp_encode", "invalid exponents "+exps.String())
	}

	wide := array.ToWide[float64](p)
	encoded := make([]int64, len(wide))
	ok := make([]bool, len(wide))
	var exceptions []uint64
	var fill int64
	haveFill := false
	for i, v := range wide {
		if !p.IsValid(i) {
			continue
		}
		enc, exact := alpEncodeValue(pt, v, exps)
		if !exact {
			exceptions = append(exceptions, uint64(i))
			continue
		}
		encoded[i], ok[i] = enc, true
		if !haveFill {
			fill, haveFill = enc, true
		}
	}
	for i := range encoded {
		if !ok[i] {
			encoded[i] = fill
		}
	}

	ep := encodedPType(pt)
	var enc *array.PrimitiveArray
	if ep == arrow.I32 {
		narrow := make([]int32, len(encoded))
		for i, v := range encoded {
			narrow[i] = int32(v)
		}
		enc = array.FromSlice(narrow, p.RawValidity())
	} else {
		enc = array.FromSlice(encoded, p.RawValidity())
	}

	var patches *array.Patches
	if len(exceptions) > 0 {
		indices := narrowUnsigned(exceptions)
		values, err := array.Take(p, indices)
		if err != nil {
			return nil, err
		}
		if values, err = array.Cast(values, p.DataType().WithNullability(arrow.NonNullable)); err != nil {
			return nil, err
		}
		if patches, err = array.NewPatches(p.Len(), 0, indices, values); err != nil {
			return nil, err
		}
	}
	return NewALP(enc, exps, patches)
}
