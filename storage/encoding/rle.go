package encoding

import (
	"bytes"
	"sort"

	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

const RunEndID array.EncodingID = "cascade.runend"

// RunEndArray stores runs as exclusive end positions and one value per run.
// Ends are absolute: element i lives in the first run whose end exceeds
// i+offset.
type RunEndArray struct {
	array.Base
	ends   array.Array
	values array.Array
	offset int

	endsWide []uint64
}

// NewRunEnd validates and builds a run-end array of length elements.
func NewRunEnd(ends, values array.Array, offset, length int) (*RunEndArray, error) {
	if err := requireUnsigned("runend", ends); err != nil {
		return nil, err
	}
	if ends.Len() != values.Len() {
		return nil, errors.LengthMismatch("runend", "values", ends.Len(), values.Len())
	}
	if offset < 0 || length < 0 {
		return nil, errors.InvalidArg("runend", "negative offset or length")
	}
	wide, err := unsignedValues(ends, "runend")
	if err != nil {
		return nil, err
	}
	if length > 0 && (len(wide) == 0 || wide[len(wide)-1] < uint64(offset+length)) {
		return nil, errors.InvalidArg("runend", "runs do not cover the array")
	}
	return &RunEndArray{
		Base:     array.NewBase(values.DataType(), length),
		ends:     ends,
		values:   values,
		offset:   offset,
		endsWide: wide,
	}, nil
}

func (r *RunEndArray) Encoding() array.EncodingID { return RunEndID }
func (r *RunEndArray) Ends() array.Array          { return r.ends }
func (r *RunEndArray) Values() array.Array        { return r.values }
func (r *RunEndArray) Offset() int                { return r.offset }

// physical returns the run holding logical position i.
func (r *RunEndArray) physical(i int) int {
	target := uint64(i + r.offset)
	return sort.Search(len(r.endsWide), func(k int) bool { return r.endsWide[k] > target })
}

func (r *RunEndArray) ScalarAt(i int) (arrow.Scalar, error) {
	return array.ScalarAt(r.values, r.physical(i))
}

func (r *RunEndArray) IsValid(i int) bool {
	return r.values.IsValid(r.physical(i))
}

// Slice trims the children to the runs in range; ends stay absolute.
func (r *RunEndArray) Slice(start, stop int) (array.Array, error) {
	if start == stop {
		ends, err := array.Slice(r.ends, 0, 0)
		if err != nil {
			return nil, err
		}
		values, err := array.Slice(r.values, 0, 0)
		if err != nil {
			return nil, err
		}
		return NewRunEnd(ends, values, 0, 0)
	}
	lo := r.physical(start)
	hi := r.physical(stop-1) + 1
	ends, err := array.Slice(r.ends, lo, hi)
	if err != nil {
		return nil, err
	}
	values, err := array.Slice(r.values, lo, hi)
	if err != nil {
		return nil, err
	}
	return NewRunEnd(ends, values, r.offset+start, stop-start)
}

// runLengths returns how many logical elements each run covers.
func (r *RunEndArray) runLengths() []int {
	out := make([]int, len(r.endsWide))
	prev := uint64(r.offset)
	limit := uint64(r.offset + r.Len())
	for k, e := range r.endsWide {
		e = min(e, limit)
		if e > prev {
			out[k] = int(e - prev)
			prev = e
		}
	}
	return out
}

// expand maps every logical position to its run.
func (r *RunEndArray) expand() *array.PrimitiveArray {
	idx := make([]uint64, 0, r.Len())
	for k, n := range r.runLengths() {
		for j := 0; j < n; j++ {
			idx = append(idx, uint64(k))
		}
	}
	return narrowUnsigned(idx)
}

func (r *RunEndArray) Validity() (array.Validity, error) {
	vv, err := r.values.Validity()
	if err != nil {
		return array.Validity{}, err
	}
	if vv.AllValidIn(r.values.Len()) {
		return array.FromNullability(r.DataType().Nullable()), nil
	}
	bm := arrow.NewBitmap(0)
	for k, n := range r.runLengths() {
		valid := vv.IsValid(k)
		for j := 0; j < n; j++ {
			bm.Append(valid)
		}
	}
	return array.FromBitmap(bm), nil
}

func (r *RunEndArray) ToCanonical() (array.Array, error) {
	values, err := array.Canonicalize(r.values)
	if err != nil {
		return nil, err
	}
	out, err := array.Take(values, r.expand())
	if err != nil {
		return nil, err
	}
	return array.Cast(out, r.DataType())
}

func (r *RunEndArray) Accept(v array.ArrayVisitor) error {
	if err := v.VisitChild("ends", r.ends); err != nil {
		return err
	}
	return v.VisitChild("values", r.values)
}

func (r *RunEndArray) Metadata() ([]byte, error) {
	p, _ := arrow.PTypeOf(r.ends.DataType())
	return new(array.MetaWriter).
		Byte(byte(p)).
		Uvarint(uint64(r.ends.Len())).
		Uvarint(uint64(r.offset)).
		Finish(), nil
}

func (r *RunEndArray) Validate() error {
	for k := 1; k < len(r.endsWide); k++ {
		if r.endsWide[k] <= r.endsWide[k-1] {
			return errors.InvalidArg("runend", "ends must be strictly increasing")
		}
	}
	return nil
}

// Filter keeps whole runs where possible, emitting one run per kept stretch.
func (r *RunEndArray) Filter(mask *arrow.Bitmap) (array.Array, error) {
	var ends, runs []uint64
	pos := 0
	kept := uint64(0)
	for k, n := range r.runLengths() {
		c := 0
		for j := 0; j < n; j++ {
			if mask.IsSet(pos + j) {
				c++
			}
		}
		pos += n
		if c == 0 {
			continue
		}
		kept += uint64(c)
		ends = append(ends, kept)
		runs = append(runs, uint64(k))
	}
	values, err := array.Take(r.values, narrowUnsigned(runs))
	if err != nil {
		return nil, err
	}
	if values, err = array.Cast(values, r.values.DataType()); err != nil {
		return nil, err
	}
	return NewRunEnd(narrowUnsigned(ends), values, 0, int(kept))
}

func (r *RunEndArray) Take(indices *array.PrimitiveArray) (array.Array, error) {
	idx := indices.Indices()
	runs := make([]uint64, len(idx))
	for i, j := range idx {
		if indices.IsValid(i) {
			runs[i] = uint64(r.physical(j))
		}
	}
	phys, err := array.FromWide(arrow.U64, runs, indices.RawValidity())
	if err != nil {
		return nil, err
	}
	return array.Take(r.values, phys)
}

func (r *RunEndArray) allRunsReferenced() bool {
	n := len(r.endsWide)
	return n > 0 && r.endsWide[0] > uint64(r.offset) &&
		(n < 2 || r.endsWide[n-2] < uint64(r.offset+r.Len()))
}

func (r *RunEndArray) ComputeStatistic(stat array.Stat) (array.Precision, error) {
	switch stat {
	case array.StatNullCount:
		vv, err := r.values.Validity()
		if err != nil {
			return array.Precision{}, err
		}
		nulls := 0
		for k, n := range r.runLengths() {
			if !vv.IsValid(k) {
				nulls += n
			}
		}
		return exactU64(nulls), nil
	case array.StatMin, array.StatMax, array.StatIsConstant:
		p, ok, err := array.ComputeStat(r.values, stat)
		if err != nil {
			return array.Precision{}, err
		}
		if ok {
			if !r.allRunsReferenced() {
				p.Exact = false
			}
			return p, nil
		}
	case array.StatRunCount:
		// adjacent runs may hold equal values
		return array.Inexact(arrow.UintScalar(arrow.U64, uint64(len(r.endsWide)), arrow.NonNullable)), nil
	}
	return array.Precision{}, notImplemented("statistic "+stat.String(), RunEndID)
}

func (r *RunEndArray) IsConstant(opts array.IsConstantOpts) (bool, error) {
	if r.values.Len() <= 1 {
		return true, nil
	}
	return array.IsConstant(r.values, opts)
}

func (r *RunEndArray) Compare(rhs array.Array, op array.Operator) (array.Array, error) {
	rc, ok := rhs.(array.ScalarConstant)
	if !ok {
		return nil, notImplemented("compare", RunEndID)
	}
	c, err := NewConstant(rc.ConstantScalar(), r.values.Len())
	if err != nil {
		return nil, err
	}
	values, err := array.Compare(r.values, c, op)
	if err != nil {
		return nil, err
	}
	return NewRunEnd(r.ends, values, r.offset, r.Len())
}

func (r *RunEndArray) BinaryNumeric(rhs array.Array, op array.NumericOp) (array.Array, error) {
	rc, ok := rhs.(array.ScalarConstant)
	if !ok {
		return nil, notImplemented("binary_numeric", RunEndID)
	}
	c, err := NewConstant(rc.ConstantScalar(), r.values.Len())
	if err != nil {
		return nil, err
	}
	values, err := array.BinaryNumeric(r.values, c, op)
	if err != nil {
		return nil, err
	}
	return NewRunEnd(r.ends, values, r.offset, r.Len())
}

func init() {
	array.Register(array.EncodingVTable{
		ID:        RunEndID,
		Prototype: (*RunEndArray)(nil),
		Decode: func(parts *array.ArrayParts, ctx *array.DecodeContext, dtype arrow.DataType, length int) (array.Array, error) {
			m := array.NewMetaReader(RunEndID, parts.Metadata)
			endsPT := arrow.PType(m.Byte())
			runs := int(m.Uvarint())
			offset := int(m.Uvarint())
			if err := m.Err(); err != nil {
				return nil, err
			}
			ep, err := childAt(parts, "ends")
			if err != nil {
				return nil, err
			}
			vp, err := childAt(parts, "values")
			if err != nil {
				return nil, err
			}
			ends, err := ctx.DecodeChild(ep, arrow.Primitive(endsPT, arrow.NonNullable), runs)
			if err != nil {
				return nil, err
			}
			values, err := ctx.DecodeChild(vp, dtype, runs)
			if err != nil {
				return nil, err
			}
			return NewRunEnd(ends, values, offset, length)
		},
	})
}

// RunEndEncode collapses equal neighbours of a primitive, bool or varbin
// array into runs. Consecutive nulls form one run.
func RunEndEncode(a array.Array) (*RunEndArray, error) {
	canon, err := array.Canonicalize(a)
	if err != nil {
		return nil, err
	}
	n := canon.Len()
	var same func(i, j int) bool
	switch arr := canon.(type) {
	case *array.PrimitiveArray:
		keys := primitiveKeys(arr)
		same = func(i, j int) bool { return keys[i] == keys[j] }
	case *array.BoolArray:
		same = func(i, j int) bool { return arr.Value(i) == arr.Value(j) }
	case *array.VarBinArray:
		same = func(i, j int) bool { return bytes.Equal(arr.Bytes(i), arr.Bytes(j)) }
	default:
		return nil, errors.UnsupportedType("runend_encode", a.DataType().Name(), string(RunEndID))
	}

	var ends, starts []uint64
	for i := 0; i < n; i++ {
		if i > 0 {
			vi, vp := canon.IsValid(i), canon.IsValid(i-1)
			if vi == vp && (!vi || same(i, i-1)) {
				continue
			}
			ends = append(ends, uint64(i))
		}
		starts = append(starts, uint64(i))
	}
	if n > 0 {
		ends = append(ends, uint64(n))
	}
	values, err := array.Take(canon, narrowUnsigned(starts))
	if err != nil {
		return nil, err
	}
	if values, err = array.Cast(values, canon.DataType()); err != nil {
		return nil, err
	}
	return NewRunEnd(narrowUnsigned(ends), values, 0, n)
}
