package array

import (
	"cmp"

	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

// genericStatistic computes order statistics through scalars. It serves the
// canonical arrays without a typed kernel.
func genericStatistic(a Array, stat Stat) (Precision, error) {
	if _, ok := a.Stats().Get(StatNullCount); !ok {
		if err := scalarStats(a); err != nil {
			return Precision{}, err
		}
	}
	if v, ok := a.Stats().Get(stat); ok {
		return v, nil
	}
	return Precision{}, errors.NotImplemented("statistic "+stat.String(), string(a.Encoding()))
}

func scalarStats(a Array) error {
	var (
		minV, maxV     arrow.Scalar
		haveMinMax     bool
		ordered        = true
		sorted, strict = true, true
		runs, nulls    int
		prev           arrow.Scalar
	)
	for i := 0; i < a.Len(); i++ {
		cur, err := ScalarAt(a, i)
		if err != nil {
			return err
		}
		if cur.IsNull() {
			nulls++
		}
		if i == 0 {
			runs = 1
		} else if !cur.Equal(prev) {
			runs++
		}
		if i > 0 && ordered {
			c, err := prev.Compare(cur)
			if err != nil {
				ordered = false
			} else {
				if c > 0 {
					sorted = false
				}
				if c >= 0 {
					strict = false
				}
			}
		}
		if cur.IsValid() && ordered {
			if !haveMinMax {
				minV, maxV, haveMinMax = cur, cur, true
			} else {
				if c, _ := cur.Compare(minV); c < 0 {
					minV = cur
				}
				if c, _ := cur.Compare(maxV); c > 0 {
					maxV = cur
				}
			}
		}
		prev = cur
	}

	ss := a.Stats()
	nonNull := a.DataType().WithNullability(arrow.NonNullable)
	ss.Set(StatNullCount, Exact(arrow.UintScalar(arrow.U64, uint64(nulls), arrow.NonNullable)))
	ss.Set(StatRunCount, Exact(arrow.UintScalar(arrow.U64, uint64(runs), arrow.NonNullable)))
	ss.Set(StatIsConstant, Exact(arrow.BoolScalar(runs <= 1, arrow.NonNullable)))
	if ordered {
		ss.Set(StatIsSorted, Exact(arrow.BoolScalar(sorted, arrow.NonNullable)))
		ss.Set(StatIsStrictSorted, Exact(arrow.BoolScalar(strict, arrow.NonNullable)))
		if haveMinMax {
			ss.Set(StatMin, Exact(minV.WithDataType(nonNull)))
			ss.Set(StatMax, Exact(maxV.WithDataType(nonNull)))
		}
	}
	return nil
}

func genericIsConstant(a Array) (bool, error) {
	if a.Len() <= 1 {
		return true, nil
	}
	first, err := ScalarAt(a, 0)
	if err != nil {
		return false, err
	}
	for i := 1; i < a.Len(); i++ {
		cur, err := ScalarAt(a, i)
		if err != nil {
			return false, err
		}
		if !cur.Equal(first) {
			return false, nil
		}
	}
	return true, nil
}

// compareCanonical compares a canonical lhs against any rhs.
func compareCanonical(lhs Array, rhs Array, op Operator) (Array, error) {
	n := lhs.Len()
	lv, _ := lhs.Validity()

	if c, ok := rhs.(ScalarConstant); ok {
		s := c.ConstantScalar()
		if s.IsNull() {
			return NewBoolArray(arrow.NewBitmap(n), AllInvalid())
		}
		validity := lv
		if rhs.DataType().Nullable() {
			validity, _ = validity.CastNullability(true, n)
		}
		if p, ok := lhs.(*PrimitiveArray); ok {
			return comparePrimitiveScalar(p, s, op, validity)
		}
		out := arrow.NewBitmap(n)
		for i := 0; i < n; i++ {
			if !lhs.IsValid(i) {
				continue
			}
			l, err := lhs.ScalarAt(i)
			if err != nil {
				return nil, err
			}
			if ok, err := holds(l, s, op); err != nil {
				return nil, err
			} else if ok {
				out.Set(i)
			}
		}
		return NewBoolArray(out, validity)
	}

	r, err := Canonicalize(rhs)
	if err != nil {
		return nil, err
	}
	rv, err := r.Validity()
	if err != nil {
		return nil, err
	}
	validity := lv.And(rv, n)
	out := arrow.NewBitmap(n)
	for i := 0; i < n; i++ {
		if !validity.IsValid(i) {
			continue
		}
		l, err := lhs.ScalarAt(i)
		if err != nil {
			return nil, err
		}
		rs, err := r.ScalarAt(i)
		if err != nil {
			return nil, err
		}
		if ok, err := holds(l, rs, op); err != nil {
			return nil, err
		} else if ok {
			out.Set(i)
		}
	}
	return NewBoolArray(out, validity)
}

func holds(l, r arrow.Scalar, op Operator) (bool, error) {
	if op == Eq || op == NotEq {
		if _, ok := l.Value().([]arrow.Scalar); ok {
			return l.Equal(r) == (op == Eq), nil
		}
	}
	c, err := l.Compare(r)
	if err != nil {
		return false, err
	}
	return op.Holds(c), nil
}

func comparePrimitiveScalar(p *PrimitiveArray, s arrow.Scalar, op Operator, validity Validity) (Array, error) {
	out := arrow.NewBitmap(p.length)
	switch {
	case p.ptype.IsFloat():
		compareWide(ToWide[float64](p), arrow.PrimitiveValue[float64](s), op, out)
	case p.ptype.IsUnsigned():
		compareWide(ToWide[uint64](p), arrow.PrimitiveValue[uint64](s), op, out)
	default:
		compareWide(ToWide[int64](p), arrow.PrimitiveValue[int64](s), op, out)
	}
	return NewBoolArray(out, validity)
}

func compareWide[W Wide](values []W, rhs W, op Operator, out *arrow.Bitmap) {
	for i, v := range values {
		if op.Holds(cmp.Compare(v, rhs)) {
			out.Set(i)
		}
	}
}

// scalarArray is an operand repeating one scalar, used to forward constant
// comparisons to storage arrays.
type scalarArray struct {
	s arrow.Scalar
	n int
}

var _ ScalarConstant = (*scalarArray)(nil)

func (c *scalarArray) ConstantScalar() arrow.Scalar   { return c.s }
func (c *scalarArray) Len() int                       { return c.n }
func (c *scalarArray) DataType() arrow.DataType       { return c.s.DataType() }
func (c *scalarArray) Encoding() EncodingID           { return "cascade.scalar" }
func (c *scalarArray) Stats() *StatsSet               { return NewStatsSet() }
func (c *scalarArray) ScalarAt(int) (arrow.Scalar, error) { return c.s, nil }
func (c *scalarArray) IsValid(int) bool               { return c.s.IsValid() }
func (c *scalarArray) Metadata() ([]byte, error)      { return nil, nil }
func (c *scalarArray) Validate() error                { return nil }

func (c *scalarArray) Slice(start, stop int) (Array, error) {
	return &scalarArray{s: c.s, n: stop - start}, nil
}

func (c *scalarArray) Validity() (Validity, error) {
	if c.s.IsNull() {
		return AllInvalid(), nil
	}
	return FromNullability(c.s.DataType().Nullable()), nil
}

func (c *scalarArray) ToCanonical() (Array, error) { return Repeat(c.s, c.n) }

func (c *scalarArray) Accept(ArrayVisitor) error {
	return errors.NotImplemented("accept", "cascade.scalar")
}

// Repeat builds a canonical array holding s n times.
func Repeat(s arrow.Scalar, n int) (Array, error) {
	b, err := NewBuilder(s.DataType())
	if err != nil {
		return nil, err
	}
	b.Reserve(n)
	for i := 0; i < n; i++ {
		if err := b.AppendScalar(s); err != nil {
			return nil, err
		}
	}
	return b.NewArray()
}
