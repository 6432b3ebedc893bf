package array

import (
	"fmt"

	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

const PrimitiveID EncodingID = "cascade.primitive"

// PrimitiveArray holds fixed-width numbers in one buffer.
type PrimitiveArray struct {
	Base
	ptype    arrow.PType
	buffer   *arrow.Buffer
	validity Validity
}

// NewPrimitiveArray validates buf against ptype and validity. The array is
// nullable iff validity is.
func NewPrimitiveArray(p arrow.PType, buf *arrow.Buffer, validity Validity) (*PrimitiveArray, error) {
	width := p.ByteWidth()
	if buf.Len()%width != 0 {
		return nil, errors.InvalidArg("primitive",
			fmt.Sprintf("buffer of %d bytes is not a multiple of %s width", buf.Len(), p))
	}
	length := buf.Len() / width
	nullable := validity.Nullable()
	if err := validity.Check(length, nullable); err != nil {
		return nil, err
	}
	return &PrimitiveArray{
		Base:     NewBase(arrow.Primitive(p, arrow.Nullability(nullable)), length),
		ptype:    p,
		buffer:   buf,
		validity: validity,
	}, nil
}

// FromSlice copies values into a primitive array. It panics if an explicit
// validity does not match len(values).
func FromSlice[T arrow.Number](values []T, validity Validity) *PrimitiveArray {
	arr, err := NewPrimitiveArray(arrow.PTypeFor[T](), arrow.NewBufferFrom(values), validity)
	if err != nil {
		panic(err)
	}
	return arr
}

// FromNullable builds a nullable array from values and a parallel valid mask.
func FromNullable[T arrow.Number](values []T, valid []bool) *PrimitiveArray {
	return FromSlice(values, ValidityFromBools(valid))
}

// Values returns a typed zero-copy view. It panics if T does not match the
// array ptype.
func Values[T arrow.Number](p *PrimitiveArray) []T {
	if want := arrow.PTypeFor[T](); want != p.ptype {
		panic(fmt.Sprintf("cannot view %s array as %s", p.ptype, want))
	}
	return arrow.View[T](p.buffer)
}

func (p *PrimitiveArray) Encoding() EncodingID   { return PrimitiveID }
func (p *PrimitiveArray) PType() arrow.PType     { return p.ptype }
func (p *PrimitiveArray) Buffer() *arrow.Buffer  { return p.buffer }
func (p *PrimitiveArray) IsValid(i int) bool     { return p.validity.IsValid(i) }
func (p *PrimitiveArray) Validity() (Validity, error) { return p.validity, nil }

// RawValidity returns the validity without an error path.
func (p *PrimitiveArray) RawValidity() Validity { return p.validity }

func (p *PrimitiveArray) ScalarAt(i int) (arrow.Scalar, error) {
	return arrow.NewScalar(p.dtype, p.wideAt(i)), nil
}

func (p *PrimitiveArray) wideAt(i int) any {
	b := p.buffer.Bytes()
	switch p.ptype {
	case arrow.U8:
		return uint64(b[i])
	case arrow.U16:
		return uint64(Values[uint16](p)[i])
	case arrow.U32:
		return uint64(Values[uint32](p)[i])
	case arrow.U64:
		return Values[uint64](p)[i]
	case arrow.I8:
		return int64(int8(b[i]))
	case arrow.I16:
		return int64(Values[int16](p)[i])
	case arrow.I32:
		return int64(Values[int32](p)[i])
	case arrow.I64:
		return Values[int64](p)[i]
	case arrow.F32:
		return float64(Values[float32](p)[i])
	}
	return Values[float64](p)[i]
}

// Uint64At returns element i of an integer array reinterpreted as uint64.
func (p *PrimitiveArray) Uint64At(i int) uint64 {
	switch v := p.wideAt(i).(type) {
	case uint64:
		return v
	case int64:
		return uint64(v)
	case float64:
		return uint64(v)
	}
	return 0
}

// Int64At returns element i of an integer array as int64.
func (p *PrimitiveArray) Int64At(i int) int64 {
	return int64(p.Uint64At(i))
}

// Indices returns integer elements as ints; null slots read as zero.
func (p *PrimitiveArray) Indices() []int {
	wide := ToWide[int64](p)
	out := make([]int, len(wide))
	for i, v := range wide {
		if p.validity.IsValid(i) {
			out[i] = int(v)
		}
	}
	return out
}

func (p *PrimitiveArray) Slice(start, stop int) (Array, error) {
	w := p.ptype.ByteWidth()
	return &PrimitiveArray{
		Base:     NewBase(p.dtype, stop-start),
		ptype:    p.ptype,
		buffer:   p.buffer.Slice(start*w, stop*w),
		validity: p.validity.Slice(start, stop),
	}, nil
}

func (p *PrimitiveArray) ToCanonical() (Array, error) { return p, nil }

func (p *PrimitiveArray) Accept(v ArrayVisitor) error {
	if err := v.VisitBuffer(p.buffer); err != nil {
		return err
	}
	return v.VisitValidity(p.validity)
}

func (p *PrimitiveArray) Metadata() ([]byte, error) { return []byte{byte(p.ptype)}, nil }

func (p *PrimitiveArray) Validate() error {
	if p.buffer.Len() != p.length*p.ptype.ByteWidth() {
		return errors.LengthMismatch("primitive", "buffer bytes", p.length*p.ptype.ByteWidth(), p.buffer.Len())
	}
	return p.validity.Check(p.length, p.dtype.Nullable())
}

// WithValidity returns the same values under a new validity.
func (p *PrimitiveArray) WithValidity(v Validity) (*PrimitiveArray, error) {
	return NewPrimitiveArray(p.ptype, p.buffer, v)
}

// Reinterpret views the buffer as another ptype of equal width.
func (p *PrimitiveArray) Reinterpret(to arrow.PType) (*PrimitiveArray, error) {
	if to.ByteWidth() != p.ptype.ByteWidth() {
		return nil, errors.InvalidArg("reinterpret", fmt.Sprintf("%s and %s differ in width", p.ptype, to))
	}
	return NewPrimitiveArray(to, p.buffer, p.validity)
}

// --- capabilities ---

func (p *PrimitiveArray) Filter(mask *arrow.Bitmap) (Array, error) {
	w := p.ptype.ByteWidth()
	src := p.buffer.Bytes()
	out := arrow.NewBuffer(mask.CountSet() * w)
	dst := out.Bytes()
	j := 0
	for i := 0; i < mask.Len(); i++ {
		if mask.IsSet(i) {
			copy(dst[j*w:(j+1)*w], src[i*w:(i+1)*w])
			j++
		}
	}
	return NewPrimitiveArray(p.ptype, out, p.validity.Filter(mask))
}

func (p *PrimitiveArray) Take(indices *PrimitiveArray) (Array, error) {
	w := p.ptype.ByteWidth()
	src := p.buffer.Bytes()
	idx := indices.Indices()
	out := arrow.NewBuffer(len(idx) * w)
	dst := out.Bytes()
	for i, j := range idx {
		if indices.IsValid(i) {
			copy(dst[i*w:(i+1)*w], src[j*w:(j+1)*w])
		}
	}
	return NewPrimitiveArray(p.ptype, out, p.validity.Take(indices))
}

func (p *PrimitiveArray) Cast(dt arrow.DataType) (Array, error) {
	validity, err := p.validity.CastNullability(dt.Nullable(), p.length)
	if err != nil {
		return nil, err
	}
	switch t := dt.(type) {
	case *arrow.PrimitiveType:
		if t.PType() == p.ptype {
			return p.WithValidity(validity)
		}
		return castPrimitive(p, t.PType(), validity)
	case *arrow.DecimalType:
		return castPrimitiveToDecimal(p, t, validity)
	case *arrow.ExtensionType:
		storage, err := Cast(p, t.Storage())
		if err != nil {
			return nil, err
		}
		return NewExtensionArray(t, storage)
	}
	return nil, errors.NotImplemented("cast "+dt.Name(), string(PrimitiveID))
}

func (p *PrimitiveArray) ComputeStatistic(stat Stat) (Precision, error) {
	computePrimitiveStats(p)
	if v, ok := p.stats.Get(stat); ok {
		return v, nil
	}
	return Precision{}, errors.NotImplemented("statistic "+stat.String(), string(PrimitiveID))
}

func (p *PrimitiveArray) IsConstant(IsConstantOpts) (bool, error) {
	pr, err := p.ComputeStatistic(StatIsConstant)
	if err != nil {
		return false, err
	}
	b, _ := pr.Value.AsBool()
	return b, nil
}

func (p *PrimitiveArray) Compare(rhs Array, op Operator) (Array, error) {
	return compareCanonical(p, rhs, op)
}

func (p *PrimitiveArray) BinaryNumeric(rhs Array, op NumericOp) (Array, error) {
	return binaryNumericPrimitive(p, rhs, op)
}

func init() {
	Register(EncodingVTable{
		ID:        PrimitiveID,
		Prototype: (*PrimitiveArray)(nil),
		Decode: func(parts *ArrayParts, ctx *DecodeContext, dtype arrow.DataType, length int) (Array, error) {
			p, ok := arrow.PTypeOf(dtype)
			if !ok {
				return nil, errors.TypeMismatch("decode primitive", "primitive", dtype.Name())
			}
			if len(parts.Metadata) != 1 || arrow.PType(parts.Metadata[0]) != p {
				return nil, errors.Corrupt(string(PrimitiveID), "ptype metadata mismatch")
			}
			if len(parts.Buffers) != 1 {
				return nil, errors.Corrupt(string(PrimitiveID), fmt.Sprintf("expected 1 buffer, got %d", len(parts.Buffers)))
			}
			validity, err := parts.DecodeValidity(length)
			if err != nil {
				return nil, err
			}
			return NewPrimitiveArray(p, parts.Buffers[0], validity)
		},
	})
}
