package array

import (
	"fmt"

	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

// fallback reports whether err asks the dispatcher to canonicalize and retry.
func fallback(err error) bool {
	return errors.Is(err, errors.ErrNotImplemented)
}

// ScalarAt returns element i, or the null scalar if i is null.
func ScalarAt(a Array, i int) (arrow.Scalar, error) {
	if i < 0 || i >= a.Len() {
		return arrow.Scalar{}, errors.OutOfBounds("scalar_at", i, a.Len())
	}
	if !a.IsValid(i) {
		return arrow.NullScalar(a.DataType()), nil
	}
	return a.ScalarAt(i)
}

// Slice returns the zero-copy view [start, stop).
func Slice(a Array, start, stop int) (Array, error) {
	if start < 0 || stop < start || stop > a.Len() {
		return nil, errors.RangeOutOfBounds("slice", start, stop, a.Len())
	}
	if start == 0 && stop == a.Len() {
		return a, nil
	}
	return a.Slice(start, stop)
}

// Canonicalize fully decodes a.
func Canonicalize(a Array) (Array, error) {
	if IsCanonical(a) {
		return a, nil
	}
	c, err := a.ToCanonical()
	if err != nil {
		return nil, err
	}
	if !IsCanonical(c) {
		return nil, errors.New(errors.ErrInvalidArgument).
			Op("canonicalize").
			Encoding(string(a.Encoding())).
			Context("result", string(c.Encoding())).
			Build()
	}
	if c.Len() != a.Len() {
		return nil, errors.LengthMismatch("canonicalize", string(a.Encoding()), a.Len(), c.Len())
	}
	return c, nil
}

// Filter keeps positions set in mask.
func Filter(a Array, mask *arrow.Bitmap) (Array, error) {
	if mask.Len() != a.Len() {
		return nil, errors.LengthMismatch("filter", "mask", a.Len(), mask.Len())
	}
	switch mask.CountSet() {
	case a.Len():
		return a, nil
	case 0:
		return a.Slice(0, 0)
	}
	if f, ok := a.(FilterFn); ok {
		r, err := f.Filter(mask)
		if err == nil || !fallback(err) {
			return r, err
		}
	}
	c, err := Canonicalize(a)
	if err != nil {
		return nil, err
	}
	return c.(FilterFn).Filter(mask)
}

// Take gathers the positions in indices. Null indices produce nulls.
func Take(a Array, indices Array) (Array, error) {
	ic, err := Canonicalize(indices)
	if err != nil {
		return nil, err
	}
	idx, ok := ic.(*PrimitiveArray)
	if !ok || !idx.ptype.IsInt() {
		return nil, errors.TypeMismatch("take", "integer indices", indices.DataType().Name())
	}
	wide := ToWide[int64](idx)
	for i, j := range wide {
		if idx.IsValid(i) && (j < 0 || j >= int64(a.Len())) {
			return nil, errors.OutOfBounds("take", int(j), a.Len())
		}
	}
	if t, ok := a.(TakeFn); ok {
		r, err := t.Take(idx)
		if err == nil || !fallback(err) {
			return r, err
		}
	}
	c, err := Canonicalize(a)
	if err != nil {
		return nil, err
	}
	return c.(TakeFn).Take(idx)
}

// Cast converts a to dt.
func Cast(a Array, dt arrow.DataType) (Array, error) {
	if arrow.Equal(a.DataType(), dt) {
		return a, nil
	}
	if c, ok := a.(CastFn); ok {
		r, err := c.Cast(dt)
		if err == nil || !fallback(err) {
			return r, err
		}
	}
	canon, err := Canonicalize(a)
	if err != nil {
		return nil, err
	}
	if canon == a {
		return nil, errors.New(errors.ErrNotSupported).
			Op("cast").
			Encoding(string(a.Encoding())).
			Context("from", a.DataType().Name()).
			Context("to", dt.Name()).
			Build()
	}
	return Cast(canon, dt)
}

// ComputeStat returns a statistic, computing and caching it if needed. ok is
// false when the statistic does not apply to a.
func ComputeStat(a Array, stat Stat) (Precision, bool, error) {
	if v, ok := a.Stats().Get(stat); ok && v.Exact {
		return v, true, nil
	}
	if s, ok := a.(StatisticsFn); ok {
		v, err := s.ComputeStatistic(stat)
		switch {
		case err == nil:
			a.Stats().Set(stat, v)
			return v, true, nil
		case !fallback(err):
			return Precision{}, false, err
		}
	}
	if IsCanonical(a) {
		return Precision{}, false, nil
	}
	c, err := Canonicalize(a)
	if err != nil {
		return Precision{}, false, err
	}
	v, ok, err := ComputeStat(c, stat)
	if err != nil || !ok {
		return Precision{}, ok, err
	}
	a.Stats().Set(stat, v)
	return v, true, nil
}

// StatBool returns a boolean statistic if known exactly.
func StatBool(a Array, stat Stat) (bool, error) {
	v, ok, err := ComputeStat(a, stat)
	if err != nil || !ok || !v.Exact {
		return false, err
	}
	b, _ := v.Value.AsBool()
	return b, nil
}

// NullCount returns the number of null elements.
func NullCount(a Array) (int, error) {
	v, ok, err := ComputeStat(a, StatNullCount)
	if err != nil {
		return 0, err
	}
	if !ok {
		validity, err := a.Validity()
		if err != nil {
			return 0, err
		}
		return validity.NullCount(a.Len()), nil
	}
	n, _ := v.Value.AsUint64()
	return int(n), nil
}

// IsConstant reports whether every element of a is equal, nulls included.
func IsConstant(a Array, opts IsConstantOpts) (bool, error) {
	if a.Len() <= 1 {
		return true, nil
	}
	if v, ok := a.Stats().GetExact(StatIsConstant); ok {
		b, _ := v.AsBool()
		return b, nil
	}
	if c, ok := a.(IsConstantFn); ok {
		r, err := c.IsConstant(opts)
		switch {
		case err == nil:
			if r || opts.Canonicalize {
				a.Stats().Set(StatIsConstant, Exact(arrow.BoolScalar(r, arrow.NonNullable)))
			}
			return r, nil
		case !fallback(err):
			return false, err
		}
	}
	if !opts.Canonicalize {
		return false, nil
	}
	canon, err := Canonicalize(a)
	if err != nil {
		return false, err
	}
	r, err := canon.(IsConstantFn).IsConstant(opts)
	if err != nil {
		return false, err
	}
	a.Stats().Set(StatIsConstant, Exact(arrow.BoolScalar(r, arrow.NonNullable)))
	return r, nil
}

// Compare applies op elementwise and returns a bool array. Nulls on either
// side produce null.
func Compare(lhs, rhs Array, op Operator) (Array, error) {
	if lhs.Len() != rhs.Len() {
		return nil, errors.LengthMismatch("compare", "rhs", lhs.Len(), rhs.Len())
	}
	if !arrow.EqualIgnoreNullability(lhs.DataType(), rhs.DataType()) {
		return nil, errors.TypeMismatch("compare", lhs.DataType().Name(), rhs.DataType().Name())
	}
	if c, ok := lhs.(CompareFn); ok {
		r, err := c.Compare(rhs, op)
		if err == nil || !fallback(err) {
			return r, err
		}
	}
	if c, ok := rhs.(CompareFn); ok && !IsCanonical(rhs) {
		r, err := c.Compare(lhs, op.Swap())
		if err == nil || !fallback(err) {
			return r, err
		}
	}
	canon, err := Canonicalize(lhs)
	if err != nil {
		return nil, err
	}
	return canon.(CompareFn).Compare(rhs, op)
}

// BinaryNumeric applies op elementwise. Integer overflow fails with Overflow.
func BinaryNumeric(lhs, rhs Array, op NumericOp) (Array, error) {
	if lhs.Len() != rhs.Len() {
		return nil, errors.LengthMismatch("binary_numeric", "rhs", lhs.Len(), rhs.Len())
	}
	if !arrow.EqualIgnoreNullability(lhs.DataType(), rhs.DataType()) || !arrow.IsPrimitive(lhs.DataType()) {
		return nil, errors.TypeMismatch("binary_numeric", lhs.DataType().Name(), rhs.DataType().Name())
	}
	if b, ok := lhs.(BinaryNumericFn); ok {
		r, err := b.BinaryNumeric(rhs, op)
		if err == nil || !fallback(err) {
			return r, err
		}
	}
	if op == Add || op == Mul {
		if b, ok := rhs.(BinaryNumericFn); ok && !IsCanonical(rhs) {
			r, err := b.BinaryNumeric(lhs, op)
			if err == nil || !fallback(err) {
				return r, err
			}
		}
	}
	canon, err := Canonicalize(lhs)
	if err != nil {
		return nil, err
	}
	return canon.(BinaryNumericFn).BinaryNumeric(rhs, op)
}

// Validate runs a's own checks and verifies its dtype agrees with its
// validity.
func Validate(a Array) error {
	if err := a.Validate(); err != nil {
		return err
	}
	v, err := a.Validity()
	if err != nil {
		return err
	}
	if v.Kind() == KindExplicit && v.Bitmap().Len() != a.Len() {
		return errors.LengthMismatch("validate", "validity", a.Len(), v.Bitmap().Len())
	}
	if !a.DataType().Nullable() && v.Nullable() {
		return errors.InvalidArg("validate", fmt.Sprintf("%s array of %s has nullable validity", a.Encoding(), a.DataType().Name()))
	}
	return nil
}
