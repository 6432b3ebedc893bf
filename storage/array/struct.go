package array

import (
	"fmt"

	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

const StructID EncodingID = "cascade.struct"

// StructArray holds one child array per field.
type StructArray struct {
	Base
	fields   []Array
	validity Validity
}

func NewStructArray(dt *arrow.StructType, length int, fields []Array, validity Validity) (*StructArray, error) {
	if len(fields) != len(dt.Fields()) {
		return nil, errors.LengthMismatch("struct", "fields", len(dt.Fields()), len(fields))
	}
	for i, f := range fields {
		if f.Len() != length {
			return nil, errors.LengthMismatch("struct", "field "+dt.Fields()[i].Name, length, f.Len())
		}
		if !arrow.Equal(f.DataType(), dt.Fields()[i].Type) {
			return nil, errors.TypeMismatch("struct", dt.Fields()[i].Type.Name(), f.DataType().Name())
		}
	}
	if err := validity.Check(length, dt.Nullable()); err != nil {
		return nil, err
	}
	return &StructArray{Base: NewBase(dt, length), fields: fields, validity: validity}, nil
}

func (s *StructArray) Encoding() EncodingID        { return StructID }
func (s *StructArray) Fields() []Array             { return s.fields }
func (s *StructArray) Field(i int) Array           { return s.fields[i] }
func (s *StructArray) IsValid(i int) bool          { return s.validity.IsValid(i) }
func (s *StructArray) Validity() (Validity, error) { return s.validity, nil }
func (s *StructArray) ToCanonical() (Array, error) { return s, nil }
func (s *StructArray) Metadata() ([]byte, error)   { return nil, nil }

func (s *StructArray) structType() *arrow.StructType { return s.dtype.(*arrow.StructType) }

func (s *StructArray) ScalarAt(i int) (arrow.Scalar, error) {
	vals := make([]arrow.Scalar, len(s.fields))
	for k, f := range s.fields {
		v, err := ScalarAt(f, i)
		if err != nil {
			return arrow.Scalar{}, err
		}
		vals[k] = v
	}
	return arrow.StructScalar(s.dtype, vals), nil
}

func (s *StructArray) mapFields(fn func(Array) (Array, error)) ([]Array, error) {
	out := make([]Array, len(s.fields))
	for k, f := range s.fields {
		r, err := fn(f)
		if err != nil {
			return nil, err
		}
		out[k] = r
	}
	return out, nil
}

func (s *StructArray) Slice(start, stop int) (Array, error) {
	fields, err := s.mapFields(func(f Array) (Array, error) { return Slice(f, start, stop) })
	if err != nil {
		return nil, err
	}
	return NewStructArray(s.structType(), stop-start, fields, s.validity.Slice(start, stop))
}

func (s *StructArray) Accept(v ArrayVisitor) error {
	for k, f := range s.fields {
		if err := v.VisitChild(s.structType().Fields()[k].Name, f); err != nil {
			return err
		}
	}
	return v.VisitValidity(s.validity)
}

func (s *StructArray) Validate() error {
	for _, f := range s.fields {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	return s.validity.Check(s.length, s.dtype.Nullable())
}

func (s *StructArray) Filter(mask *arrow.Bitmap) (Array, error) {
	fields, err := s.mapFields(func(f Array) (Array, error) { return Filter(f, mask) })
	if err != nil {
		return nil, err
	}
	return NewStructArray(s.structType(), mask.CountSet(), fields, s.validity.Filter(mask))
}

func (s *StructArray) Take(indices *PrimitiveArray) (Array, error) {
	fields, err := s.mapFields(func(f Array) (Array, error) { return Take(f, indices) })
	if err != nil {
		return nil, err
	}
	validity := s.validity.Take(indices)
	st := s.structType()
	newFields := make([]arrow.Field, len(fields))
	for k, f := range fields {
		newFields[k] = arrow.Field{Name: st.Fields()[k].Name, Type: f.DataType()}
	}
	dt := arrow.StructOf(newFields, arrow.Nullability(validity.Nullable())).(*arrow.StructType)
	return NewStructArray(dt, indices.Len(), fields, validity)
}

func (s *StructArray) Cast(dt arrow.DataType) (Array, error) {
	t, ok := dt.(*arrow.StructType)
	if !ok || len(t.Fields()) != len(s.fields) {
		return nil, errors.NotImplemented("cast "+dt.Name(), string(StructID))
	}
	validity, err := s.validity.CastNullability(dt.Nullable(), s.length)
	if err != nil {
		return nil, err
	}
	fields := make([]Array, len(s.fields))
	for k, f := range s.fields {
		if fields[k], err = Cast(f, t.Fields()[k].Type); err != nil {
			return nil, err
		}
	}
	return NewStructArray(t, s.length, fields, validity)
}

func (s *StructArray) ComputeStatistic(stat Stat) (Precision, error) {
	switch stat {
	case StatNullCount:
		return Exact(arrow.UintScalar(arrow.U64, uint64(s.validity.NullCount(s.length)), arrow.NonNullable)), nil
	case StatUncompressedSize:
		total := validityBytes(s.validity)
		for _, f := range s.fields {
			p, ok, err := ComputeStat(f, StatUncompressedSize)
			if err != nil || !ok {
				return Precision{}, errors.NotImplemented("statistic "+stat.String(), string(StructID))
			}
			n, _ := p.Value.AsUint64()
			total += int(n)
		}
		return Exact(arrow.UintScalar(arrow.U64, uint64(total), arrow.NonNullable)), nil
	case StatIsConstant:
		c, err := genericIsConstant(s)
		if err != nil {
			return Precision{}, err
		}
		return Exact(arrow.BoolScalar(c, arrow.NonNullable)), nil
	}
	return Precision{}, errors.NotImplemented("statistic "+stat.String(), string(StructID))
}

func (s *StructArray) IsConstant(IsConstantOpts) (bool, error) { return genericIsConstant(s) }

func (s *StructArray) Compare(rhs Array, op Operator) (Array, error) {
	return compareCanonical(s, rhs, op)
}

func (s *StructArray) BinaryNumeric(rhs Array, op NumericOp) (Array, error) {
	return nil, errors.UnsupportedType("binary_numeric", s.dtype.Name(), string(StructID))
}

func init() {
	Register(EncodingVTable{
		ID:        StructID,
		Prototype: (*StructArray)(nil),
		Decode: func(parts *ArrayParts, ctx *DecodeContext, dtype arrow.DataType, length int) (Array, error) {
			st, ok := dtype.(*arrow.StructType)
			if !ok {
				return nil, errors.TypeMismatch("decode struct", "struct", dtype.Name())
			}
			if len(parts.Children) != len(st.Fields()) {
				return nil, errors.Corrupt(string(StructID),
					fmt.Sprintf("expected %d children, got %d", len(st.Fields()), len(parts.Children)))
			}
			fields := make([]Array, len(st.Fields()))
			for k, f := range st.Fields() {
				child, err := ctx.DecodeChild(parts.Children[k], f.Type, length)
				if err != nil {
					return nil, err
				}
				fields[k] = child
			}
			validity, err := parts.DecodeValidity(length)
			if err != nil {
				return nil, err
			}
			return NewStructArray(st, length, fields, validity)
		},
	})
}
