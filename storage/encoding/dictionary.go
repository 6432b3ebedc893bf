package encoding

import (
	"bytes"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

const DictID array.EncodingID = "cascade.dict"

// DictArray stores unsigned codes into a table of values. A null code is a
// null element.
type DictArray struct {
	array.Base
	codes  array.Array
	values array.Array
}

// NewDict validates codes against values.
func NewDict(codes, values array.Array) (*DictArray, error) {
	p, ok := arrow.PTypeOf(codes.DataType())
	if !ok || !p.IsUnsigned() {
		return nil, errors.InvalidArg("dict", "codes must be unsigned integers, got "+codes.DataType().Name())
	}
	nullable := codes.DataType().Nullable() || values.DataType().Nullable()
	return &DictArray{
		Base:   array.NewBase(values.DataType().WithNullability(arrow.Nullability(nullable)), codes.Len()),
		codes:  codes,
		values: values,
	}, nil
}

func (d *DictArray) Encoding() array.EncodingID { return DictID }
func (d *DictArray) Codes() array.Array         { return d.codes }
func (d *DictArray) Values() array.Array        { return d.values }

func (d *DictArray) code(i int) (int, error) {
	s, err := d.codes.ScalarAt(i)
	if err != nil {
		return 0, err
	}
	c, _ := s.AsUint64()
	return int(c), nil
}

func (d *DictArray) ScalarAt(i int) (arrow.Scalar, error) {
	c, err := d.code(i)
	if err != nil {
		return arrow.Scalar{}, err
	}
	s, err := array.ScalarAt(d.values, c)
	if err != nil {
		return arrow.Scalar{}, err
	}
	return s.WithDataType(d.DataType()), nil
}

func (d *DictArray) IsValid(i int) bool {
	if !d.codes.IsValid(i) {
		return false
	}
	if !d.values.DataType().Nullable() {
		return true
	}
	c, err := d.code(i)
	return err == nil && d.values.IsValid(c)
}

func (d *DictArray) Slice(start, stop int) (array.Array, error) {
	codes, err := array.Slice(d.codes, start, stop)
	if err != nil {
		return nil, err
	}
	return NewDict(codes, d.values)
}

func (d *DictArray) Validity() (array.Validity, error) {
	if !d.values.DataType().Nullable() {
		return d.codes.Validity()
	}
	bm := arrow.NewBitmap(d.Len())
	for i := 0; i < d.Len(); i++ {
		if d.IsValid(i) {
			bm.Set(i)
		}
	}
	return array.FromBitmap(bm), nil
}

func (d *DictArray) ToCanonical() (array.Array, error) {
	values, err := array.Canonicalize(d.values)
	if err != nil {
		return nil, err
	}
	out, err := array.Take(values, d.codes)
	if err != nil {
		return nil, err
	}
	return array.Cast(out, d.DataType())
}

func (d *DictArray) Accept(v array.ArrayVisitor) error {
	if err := v.VisitChild("codes", d.codes); err != nil {
		return err
	}
	return v.VisitChild("values", d.values)
}

func (d *DictArray) Metadata() ([]byte, error) {
	p, _ := arrow.PTypeOf(d.codes.DataType())
	return new(array.MetaWriter).
		Byte(byte(p)).
		Bool(d.codes.DataType().Nullable()).
		Uvarint(uint64(d.values.Len())).
		Bool(d.values.DataType().Nullable()).
		Finish(), nil
}

func (d *DictArray) Validate() error {
	codes, err := unsignedValues(d.codes, "dict")
	if err != nil {
		return err
	}
	for i, c := range codes {
		if d.codes.IsValid(i) && c >= uint64(d.values.Len()) {
			return errors.OutOfBounds("dict", int(c), d.values.Len())
		}
	}
	return nil
}

func (d *DictArray) Filter(mask *arrow.Bitmap) (array.Array, error) {
	codes, err := array.Filter(d.codes, mask)
	if err != nil {
		return nil, err
	}
	return NewDict(codes, d.values)
}

func (d *DictArray) Take(indices *array.PrimitiveArray) (array.Array, error) {
	codes, err := array.Take(d.codes, indices)
	if err != nil {
		return nil, err
	}
	return NewDict(codes, d.values)
}

// Cast converts the values only.
func (d *DictArray) Cast(dt arrow.DataType) (array.Array, error) {
	if d.codes.DataType().Nullable() && !dt.Nullable() {
		return nil, notImplemented("cast "+dt.Name(), DictID)
	}
	codes := d.codes
	if dt.Nullable() && !codes.DataType().Nullable() {
		var err error
		if codes, err = array.Cast(codes, arrow.AsNullable(codes.DataType())); err != nil {
			return nil, err
		}
	}
	values, err := array.Cast(d.values, dt.WithNullability(arrow.Nullability(d.values.DataType().Nullable() && dt.Nullable())))
	if err != nil {
		return nil, err
	}
	return NewDict(codes, values)
}

func (d *DictArray) ComputeStatistic(stat array.Stat) (array.Precision, error) {
	switch stat {
	case array.StatNullCount:
		if !d.values.DataType().Nullable() {
			n, err := array.NullCount(d.codes)
			if err != nil {
				return array.Precision{}, err
			}
			return exactU64(n), nil
		}
	case array.StatMin, array.StatMax:
		// values may hold entries no code references, so this is a bound
		p, ok, err := array.ComputeStat(d.values, stat)
		if err != nil || !ok {
			return array.Precision{}, notImplemented("statistic "+stat.String(), DictID)
		}
		return array.Inexact(p.Value), nil
	}
	return array.Precision{}, notImplemented("statistic "+stat.String(), DictID)
}

func (d *DictArray) IsConstant(opts array.IsConstantOpts) (bool, error) {
	if d.values.Len() <= 1 {
		return true, nil
	}
	ok, err := array.IsConstant(d.codes, opts)
	if err != nil || ok {
		return ok, err
	}
	return false, notImplemented("is_constant", DictID)
}

// Compare against a constant evaluates once per dictionary entry.
func (d *DictArray) Compare(rhs array.Array, op array.Operator) (array.Array, error) {
	rc, ok := rhs.(array.ScalarConstant)
	if !ok {
		return nil, notImplemented("compare", DictID)
	}
	r, err := NewConstant(rc.ConstantScalar(), d.values.Len())
	if err != nil {
		return nil, err
	}
	values, err := array.Compare(d.values, r, op)
	if err != nil {
		return nil, err
	}
	return NewDict(d.codes, values)
}

func init() {
	array.Register(array.EncodingVTable{
		ID:        DictID,
		Prototype: (*DictArray)(nil),
		Decode: func(parts *array.ArrayParts, ctx *array.DecodeContext, dtype arrow.DataType, length int) (array.Array, error) {
			r := array.NewMetaReader(DictID, parts.Metadata)
			codesPT := arrow.PType(r.Byte())
			codesNullable := r.Bool()
			numValues := int(r.Uvarint())
			valuesNullable := r.Bool()
			if err := r.Err(); err != nil {
				return nil, err
			}
			cp, err := childAt(parts, "codes")
			if err != nil {
				return nil, err
			}
			vp, err := childAt(parts, "values")
			if err != nil {
				return nil, err
			}
			codes, err := ctx.DecodeChild(cp, arrow.Primitive(codesPT, arrow.Nullability(codesNullable)), length)
			if err != nil {
				return nil, err
			}
			values, err := ctx.DecodeChild(vp, dtype.WithNullability(arrow.Nullability(valuesNullable)), numValues)
			if err != nil {
				return nil, err
			}
			return NewDict(codes, values)
		},
	})
}

// DictEncode builds a dictionary whose values appear in first-seen order.
// Nulls become null codes. Primitive, bool and varbin arrays are supported.
func DictEncode(a array.Array) (*DictArray, error) {
	canon, err := array.Canonicalize(a)
	if err != nil {
		return nil, err
	}
	n := canon.Len()
	codes := make([]uint64, n)
	var first []uint64

	switch arr := canon.(type) {
	case *array.PrimitiveArray:
		dict := make(map[uint64]uint64)
		keys := primitiveKeys(arr)
		for i, k := range keys {
			if !arr.IsValid(i) {
				continue
			}
			code, ok := dict[k]
			if !ok {
				code = uint64(len(first))
				dict[k] = code
				first = append(first, uint64(i))
			}
			codes[i] = code
		}
	case *array.VarBinArray:
		// buckets by hash; collisions are resolved by comparing bytes
		dict := make(map[uint64][]uint64)
		for i := 0; i < n; i++ {
			if !arr.IsValid(i) {
				continue
			}
			v := arr.Bytes(i)
			h := xxhash.Sum64(v)
			code, found := uint64(0), false
			for _, c := range dict[h] {
				if bytes.Equal(arr.Bytes(int(first[c])), v) {
					code, found = c, true
					break
				}
			}
			if !found {
				code = uint64(len(first))
				dict[h] = append(dict[h], code)
				first = append(first, uint64(i))
			}
			codes[i] = code
		}
	case *array.BoolArray:
		seen := [2]int64{-1, -1}
		for i := 0; i < n; i++ {
			if !arr.IsValid(i) {
				continue
			}
			b := 0
			if arr.Value(i) {
				b = 1
			}
			if seen[b] < 0 {
				seen[b] = int64(len(first))
				first = append(first, uint64(i))
			}
			codes[i] = uint64(seen[b])
		}
	default:
		return nil, errors.UnsupportedType("dict_encode", a.DataType().Name(), string(DictID))
	}

	validity := validityOf(canon)
	values, err := array.Take(canon, narrowUnsigned(first))
	if err != nil {
		return nil, err
	}
	if values, err = array.Cast(values, canon.DataType().WithNullability(arrow.NonNullable)); err != nil {
		return nil, err
	}
	return NewDict(narrowUnsignedValidity(codes, validity), values)
}

// primitiveKeys maps values to comparable bit patterns; floats compare by bits.
func primitiveKeys(p *array.PrimitiveArray) []uint64 {
	if p.PType().IsFloat() {
		wide := array.ToWide[float64](p)
		keys := make([]uint64, len(wide))
		for i, v := range wide {
			keys[i] = math.Float64bits(v)
		}
		return keys
	}
	return array.ToWide[uint64](p)
}
