package array

import (
	"cmp"
	"math"
	"math/bits"

	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

// Wide is the widened representation kernels compute in.
type Wide interface {
	int64 | uint64 | float64
}

// ToWide converts every element of p to W.
func ToWide[W Wide](p *PrimitiveArray) []W {
	switch p.ptype {
	case arrow.U8:
		return convertSlice[uint8, W](Values[uint8](p))
	case arrow.U16:
		return convertSlice[uint16, W](Values[uint16](p))
	case arrow.U32:
		return convertSlice[uint32, W](Values[uint32](p))
	case arrow.U64:
		return convertSlice[uint64, W](Values[uint64](p))
	case arrow.I8:
		return convertSlice[int8, W](Values[int8](p))
	case arrow.I16:
		return convertSlice[int16, W](Values[int16](p))
	case arrow.I32:
		return convertSlice[int32, W](Values[int32](p))
	case arrow.I64:
		return convertSlice[int64, W](Values[int64](p))
	case arrow.F32:
		return convertSlice[float32, W](Values[float32](p))
	}
	return convertSlice[float64, W](Values[float64](p))
}

func convertSlice[T arrow.Number, W arrow.Number](in []T) []W {
	out := make([]W, len(in))
	for i, v := range in {
		out[i] = W(v)
	}
	return out
}

// FromWide narrows wide values into a new array of ptype p. Valid values that
// do not fit p fail with Overflow; float targets round instead.
func FromWide[W Wide](p arrow.PType, values []W, validity Validity) (*PrimitiveArray, error) {
	switch p {
	case arrow.U8:
		return narrow[W, uint8](values, validity)
	case arrow.U16:
		return narrow[W, uint16](values, validity)
	case arrow.U32:
		return narrow[W, uint32](values, validity)
	case arrow.U64:
		return narrow[W, uint64](values, validity)
	case arrow.I8:
		return narrow[W, int8](values, validity)
	case arrow.I16:
		return narrow[W, int16](values, validity)
	case arrow.I32:
		return narrow[W, int32](values, validity)
	case arrow.I64:
		return narrow[W, int64](values, validity)
	case arrow.F32:
		return narrow[W, float32](values, validity)
	}
	return narrow[W, float64](values, validity)
}

func narrow[W Wide, T arrow.Number](values []W, validity Validity) (*PrimitiveArray, error) {
	target := arrow.PTypeFor[T]()
	out := make([]T, len(values))
	for i, v := range values {
		t := T(v)
		if !target.IsFloat() && validity.IsValid(i) {
			if W(t) != v || (v < 0) != (t < 0) {
				return nil, errors.Overflow("cast", v, target.String())
			}
		}
		out[i] = t
	}
	return NewPrimitiveArray(target, arrow.WrapSlice(out), validity)
}

func castPrimitive(p *PrimitiveArray, to arrow.PType, validity Validity) (*PrimitiveArray, error) {
	switch {
	case p.ptype.IsFloat():
		return FromWide(to, ToWide[float64](p), validity)
	case p.ptype.IsUnsigned():
		return FromWide(to, ToWide[uint64](p), validity)
	}
	return FromWide(to, ToWide[int64](p), validity)
}

func castPrimitiveToDecimal(p *PrimitiveArray, dt *arrow.DecimalType, validity Validity) (Array, error) {
	if !p.ptype.IsInt() {
		return nil, errors.NotImplemented("cast "+dt.Name(), string(PrimitiveID))
	}
	out := make([]arrow.Decimal128, p.length)
	if p.ptype.IsUnsigned() {
		for i, v := range ToWide[uint64](p) {
			out[i] = arrow.Decimal128{Lo: v}
		}
	} else {
		for i, v := range ToWide[int64](p) {
			out[i] = arrow.DecimalFromInt64(v)
		}
	}
	return NewDecimalArray(dt.WithNullability(arrow.Nullability(validity.Nullable())).(*arrow.DecimalType), arrow.WrapSlice(out), validity)
}

// --- statistics ---

func computePrimitiveStats(p *PrimitiveArray) {
	if _, ok := p.stats.Get(StatNullCount); ok {
		return
	}
	switch p.ptype {
	case arrow.U8:
		primitiveStats(p, Values[uint8](p))
	case arrow.U16:
		primitiveStats(p, Values[uint16](p))
	case arrow.U32:
		primitiveStats(p, Values[uint32](p))
	case arrow.U64:
		primitiveStats(p, Values[uint64](p))
	case arrow.I8:
		primitiveStats(p, Values[int8](p))
	case arrow.I16:
		primitiveStats(p, Values[int16](p))
	case arrow.I32:
		primitiveStats(p, Values[int32](p))
	case arrow.I64:
		primitiveStats(p, Values[int64](p))
	case arrow.F32:
		primitiveStats(p, Values[float32](p))
	default:
		primitiveStats(p, Values[float64](p))
	}
}

func primitiveStats[T arrow.Number](p *PrimitiveArray, values []T) {
	isFloat := p.ptype.IsFloat()
	same := func(a, b T) bool {
		if isFloat {
			return math.Float64bits(float64(a)) == math.Float64bits(float64(b))
		}
		return a == b
	}

	var (
		minV, maxV     T
		haveMinMax     bool
		sorted, strict = true, true
		runs, nulls    int
		prev           T
		prevValid      bool
	)
	for i, v := range values {
		valid := p.validity.IsValid(i)
		if !valid {
			nulls++
		}
		if i == 0 {
			runs = 1
		} else {
			switch {
			case valid != prevValid:
				runs++
				if !valid {
					// nulls sort first, so a null after a value is out of order
					sorted, strict = false, false
				}
			case !valid, same(v, prev):
				strict = false
			default:
				runs++
				if cmp.Compare(prev, v) > 0 {
					sorted, strict = false, false
				}
			}
		}
		if valid && (!isFloat || v == v) {
			if !haveMinMax {
				minV, maxV, haveMinMax = v, v, true
			} else {
				minV = min(minV, v)
				maxV = max(maxV, v)
			}
		}
		prev, prevValid = v, valid
	}

	ss := p.stats
	ss.Set(StatNullCount, Exact(arrow.UintScalar(arrow.U64, uint64(nulls), arrow.NonNullable)))
	ss.Set(StatRunCount, Exact(arrow.UintScalar(arrow.U64, uint64(runs), arrow.NonNullable)))
	ss.Set(StatIsConstant, Exact(arrow.BoolScalar(runs <= 1, arrow.NonNullable)))
	ss.Set(StatIsSorted, Exact(arrow.BoolScalar(sorted, arrow.NonNullable)))
	ss.Set(StatIsStrictSorted, Exact(arrow.BoolScalar(strict, arrow.NonNullable)))
	ss.Set(StatUncompressedSize, Exact(arrow.UintScalar(arrow.U64, uint64(p.buffer.Len()+validityBytes(p.validity)), arrow.NonNullable)))
	if haveMinMax {
		ss.Set(StatMin, Exact(arrow.ScalarOf(minV, arrow.NonNullable)))
		ss.Set(StatMax, Exact(arrow.ScalarOf(maxV, arrow.NonNullable)))
	}
}

func validityBytes(v Validity) int {
	if v.kind == KindExplicit {
		return (v.bitmap.Len() + 7) / 8
	}
	return 0
}

// --- arithmetic ---

func binaryNumericPrimitive(p *PrimitiveArray, rhs Array, op NumericOp) (Array, error) {
	if !arrow.EqualIgnoreNullability(p.dtype, rhs.DataType()) {
		return nil, errors.TypeMismatch("binary_numeric", p.dtype.Name(), rhs.DataType().Name())
	}
	var (
		rconst  arrow.Scalar
		isConst bool
		rprim   *PrimitiveArray
	)
	if c, ok := rhs.(ScalarConstant); ok {
		rconst, isConst = c.ConstantScalar(), true
	} else {
		canon, err := Canonicalize(rhs)
		if err != nil {
			return nil, err
		}
		rprim = canon.(*PrimitiveArray)
	}

	var validity Validity
	if isConst {
		if rconst.IsNull() {
			validity = AllInvalid()
		} else {
			validity = p.validity
			if rhs.DataType().Nullable() {
				validity, _ = validity.CastNullability(true, p.length)
			}
		}
	} else {
		validity = p.validity.And(rprim.validity, p.length)
	}

	switch {
	case p.ptype.IsFloat():
		l := ToWide[float64](p)
		r := wideRHS[float64](rprim, rconst, p.length)
		for i := range l {
			l[i] = floatOp(l[i], r[i], op)
		}
		return FromWide(p.ptype, l, validity)
	case p.ptype.IsUnsigned():
		l := ToWide[uint64](p)
		r := wideRHS[uint64](rprim, rconst, p.length)
		for i := range l {
			if !validity.IsValid(i) {
				continue
			}
			v, err := uintOp(l[i], r[i], op)
			if err != nil {
				return nil, err
			}
			l[i] = v
		}
		return FromWide(p.ptype, l, validity)
	}
	l := ToWide[int64](p)
	r := wideRHS[int64](rprim, rconst, p.length)
	for i := range l {
		if !validity.IsValid(i) {
			continue
		}
		v, err := intOp(l[i], r[i], op)
		if err != nil {
			return nil, err
		}
		l[i] = v
	}
	return FromWide(p.ptype, l, validity)
}

func wideRHS[W Wide](prim *PrimitiveArray, c arrow.Scalar, n int) []W {
	if prim != nil {
		return ToWide[W](prim)
	}
	out := make([]W, n)
	if c.IsNull() {
		return out
	}
	v := arrow.PrimitiveValue[W](c)
	for i := range out {
		out[i] = v
	}
	return out
}

func floatOp(a, b float64, op NumericOp) float64 {
	switch op {
	case Add:
		return a + b
	case Sub:
		return a - b
	case Mul:
		return a * b
	}
	return a / b
}

func uintOp(a, b uint64, op NumericOp) (uint64, error) {
	switch op {
	case Add:
		r, carry := bits.Add64(a, b, 0)
		if carry != 0 {
			return 0, errors.Overflow("add", a, "u64")
		}
		return r, nil
	case Sub:
		if b > a {
			return 0, errors.Overflow("sub", a, "unsigned")
		}
		return a - b, nil
	case Mul:
		hi, lo := bits.Mul64(a, b)
		if hi != 0 {
			return 0, errors.Overflow("mul", a, "u64")
		}
		return lo, nil
	}
	if b == 0 {
		return 0, errors.InvalidArg("div", "division by zero")
	}
	return a / b, nil
}

// CheckedIntOp applies op to two int64 values with overflow detection.
func CheckedIntOp(a, b int64, op NumericOp) (int64, error) { return intOp(a, b, op) }

func intOp(a, b int64, op NumericOp) (int64, error) {
	switch op {
	case Add:
		r := a + b
		if (a^r)&(b^r) < 0 {
			return 0, errors.Overflow("add", a, "i64")
		}
		return r, nil
	case Sub:
		r := a - b
		if (a^b)&(a^r) < 0 {
			return 0, errors.Overflow("sub", a, "i64")
		}
		return r, nil
	case Mul:
		if a == 0 || b == 0 {
			return 0, nil
		}
		r := a * b
		if r/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
			return 0, errors.Overflow("mul", a, "i64")
		}
		return r, nil
	}
	if b == 0 {
		return 0, errors.InvalidArg("div", "division by zero")
	}
	if a == math.MinInt64 && b == -1 {
		return 0, errors.Overflow("div", a, "i64")
	}
	return a / b, nil
}
