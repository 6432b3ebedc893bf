package array

import (
	"fmt"

	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

const ListID EncodingID = "cascade.list"

// ListArray holds variable-length lists as int64 offsets into an elements
// array.
type ListArray struct {
	Base
	offsets  *arrow.Buffer
	elements Array
	validity Validity
}

func NewListArray(dt *arrow.ListType, offsets *arrow.Buffer, elements Array, validity Validity) (*ListArray, error) {
	offs := arrow.View[int64](offsets)
	if len(offs) == 0 {
		return nil, errors.InvalidArg("list", "offsets must hold at least one entry")
	}
	length := len(offs) - 1
	if !arrow.Equal(elements.DataType(), dt.Elem()) {
		return nil, errors.TypeMismatch("list", dt.Elem().Name(), elements.DataType().Name())
	}
	if offs[0] < 0 || offs[length] > int64(elements.Len()) {
		return nil, errors.RangeOutOfBounds("list", int(offs[0]), int(offs[length]), elements.Len())
	}
	if err := validity.Check(length, dt.Nullable()); err != nil {
		return nil, err
	}
	return &ListArray{Base: NewBase(dt, length), offsets: offsets, elements: elements, validity: validity}, nil
}

func (l *ListArray) Encoding() EncodingID        { return ListID }
func (l *ListArray) Offsets() []int64            { return arrow.View[int64](l.offsets) }
func (l *ListArray) Elements() Array             { return l.elements }
func (l *ListArray) IsValid(i int) bool          { return l.validity.IsValid(i) }
func (l *ListArray) Validity() (Validity, error) { return l.validity, nil }
func (l *ListArray) ToCanonical() (Array, error) { return l, nil }
func (l *ListArray) Metadata() ([]byte, error)   { return nil, nil }

func (l *ListArray) listType() *arrow.ListType { return l.dtype.(*arrow.ListType) }

// ElementsAt returns the elements of list i.
func (l *ListArray) ElementsAt(i int) (Array, error) {
	offs := l.Offsets()
	return Slice(l.elements, int(offs[i]), int(offs[i+1]))
}

func (l *ListArray) ScalarAt(i int) (arrow.Scalar, error) {
	elems, err := l.ElementsAt(i)
	if err != nil {
		return arrow.Scalar{}, err
	}
	vals := make([]arrow.Scalar, elems.Len())
	for k := range vals {
		if vals[k], err = ScalarAt(elems, k); err != nil {
			return arrow.Scalar{}, err
		}
	}
	return arrow.ListScalar(l.dtype, vals), nil
}

func (l *ListArray) Slice(start, stop int) (Array, error) {
	return &ListArray{
		Base:     NewBase(l.dtype, stop-start),
		offsets:  l.offsets.Slice(start*8, (stop+1)*8),
		elements: l.elements,
		validity: l.validity.Slice(start, stop),
	}, nil
}

func (l *ListArray) Accept(v ArrayVisitor) error {
	if err := v.VisitBuffer(l.offsets); err != nil {
		return err
	}
	if err := v.VisitChild("elements", l.elements); err != nil {
		return err
	}
	return v.VisitValidity(l.validity)
}

func (l *ListArray) Validate() error {
	offs := l.Offsets()
	for i := 1; i < len(offs); i++ {
		if offs[i] < offs[i-1] {
			return errors.InvalidArg("list", fmt.Sprintf("offsets decrease at %d", i))
		}
	}
	return l.validity.Check(l.length, l.dtype.Nullable())
}

// gather rebuilds the list from the selected rows.
func (l *ListArray) gather(rows []int, rowValid func(int) bool, validity Validity) (Array, error) {
	offs := l.Offsets()
	newOffs := make([]int64, 0, len(rows)+1)
	newOffs = append(newOffs, 0)
	var elemIdx []uint64
	for k, r := range rows {
		if rowValid(k) {
			for e := offs[r]; e < offs[r+1]; e++ {
				elemIdx = append(elemIdx, uint64(e))
			}
		}
		newOffs = append(newOffs, int64(len(elemIdx)))
	}
	elements, err := Take(l.elements, FromSlice(elemIdx, NonNullable()))
	if err != nil {
		return nil, err
	}
	dt := l.listType().WithNullability(arrow.Nullability(validity.Nullable())).(*arrow.ListType)
	return NewListArray(dt, arrow.NewBufferFrom(newOffs), elements, validity)
}

func (l *ListArray) Filter(mask *arrow.Bitmap) (Array, error) {
	return l.gather(mask.SetIndices(), func(int) bool { return true }, l.validity.Filter(mask))
}

func (l *ListArray) Take(indices *PrimitiveArray) (Array, error) {
	return l.gather(indices.Indices(), indices.IsValid, l.validity.Take(indices))
}

func (l *ListArray) Cast(dt arrow.DataType) (Array, error) {
	t, ok := dt.(*arrow.ListType)
	if !ok {
		return nil, errors.NotImplemented("cast "+dt.Name(), string(ListID))
	}
	validity, err := l.validity.CastNullability(dt.Nullable(), l.length)
	if err != nil {
		return nil, err
	}
	elements, err := Cast(l.elements, t.Elem())
	if err != nil {
		return nil, err
	}
	return NewListArray(t, l.offsets, elements, validity)
}

func (l *ListArray) ComputeStatistic(stat Stat) (Precision, error) {
	switch stat {
	case StatNullCount:
		return Exact(arrow.UintScalar(arrow.U64, uint64(l.validity.NullCount(l.length)), arrow.NonNullable)), nil
	case StatIsConstant:
		c, err := genericIsConstant(l)
		if err != nil {
			return Precision{}, err
		}
		return Exact(arrow.BoolScalar(c, arrow.NonNullable)), nil
	}
	return Precision{}, errors.NotImplemented("statistic "+stat.String(), string(ListID))
}

func (l *ListArray) IsConstant(IsConstantOpts) (bool, error) { return genericIsConstant(l) }

func (l *ListArray) Compare(rhs Array, op Operator) (Array, error) {
	return compareCanonical(l, rhs, op)
}

func (l *ListArray) BinaryNumeric(rhs Array, op NumericOp) (Array, error) {
	return nil, errors.UnsupportedType("binary_numeric", l.dtype.Name(), string(ListID))
}

func init() {
	Register(EncodingVTable{
		ID:        ListID,
		Prototype: (*ListArray)(nil),
		Decode: func(parts *ArrayParts, ctx *DecodeContext, dtype arrow.DataType, length int) (Array, error) {
			lt, ok := dtype.(*arrow.ListType)
			if !ok {
				return nil, errors.TypeMismatch("decode list", "list", dtype.Name())
			}
			if len(parts.Buffers) != 1 || len(parts.Children) != 1 {
				return nil, errors.Corrupt(string(ListID), "expected one buffer and one child")
			}
			offs := arrow.View[int64](parts.Buffers[0])
			if len(offs) != length+1 {
				return nil, errors.DecodeSizeMismatch(string(ListID), length+1, len(offs))
			}
			elements, err := ctx.DecodeChild(parts.Children[0], lt.Elem(), parts.Children[0].Len)
			if err != nil {
				return nil, err
			}
			validity, err := parts.DecodeValidity(length)
			if err != nil {
				return nil, err
			}
			return NewListArray(lt, parts.Buffers[0], elements, validity)
		},
	})
}
