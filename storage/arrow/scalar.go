package arrow

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/wzqhbustb/cascade/storage/errors"
)

// Scalar is a single typed value. Primitive values are held widened: unsigned
// ptypes as uint64, signed as int64 and floats as float64. A nil value is null.
type Scalar struct {
	dtype DataType
	value any
}

// NullScalar returns the null of dt, which is made nullable.
func NullScalar(dt DataType) Scalar {
	return Scalar{dtype: AsNullable(dt)}
}

func BoolScalar(v bool, n Nullability) Scalar {
	return Scalar{dtype: Bool(n), value: v}
}

// IntScalar builds a signed-ptype scalar.
func IntScalar(p PType, v int64, n Nullability) Scalar {
	return Scalar{dtype: Primitive(p, n), value: v}
}

// UintScalar builds an unsigned-ptype scalar.
func UintScalar(p PType, v uint64, n Nullability) Scalar {
	return Scalar{dtype: Primitive(p, n), value: v}
}

// FloatScalar builds a float-ptype scalar.
func FloatScalar(p PType, v float64, n Nullability) Scalar {
	return Scalar{dtype: Primitive(p, n), value: v}
}

// ScalarOf builds a primitive scalar from a Go number.
func ScalarOf[T Number](v T, n Nullability) Scalar {
	p := PTypeFor[T]()
	switch {
	case p.IsUnsigned():
		return UintScalar(p, uint64(v), n)
	case p.IsSigned():
		return IntScalar(p, int64(v), n)
	default:
		return FloatScalar(p, float64(v), n)
	}
}

// PrimitiveValue converts a non-null primitive scalar to T without range
// checks.
func PrimitiveValue[T Number](s Scalar) T {
	switch v := s.value.(type) {
	case uint64:
		return T(v)
	case int64:
		return T(v)
	case float64:
		return T(v)
	case bool:
		if v {
			return 1
		}
	}
	return 0
}

func Utf8Scalar(v string, n Nullability) Scalar {
	return Scalar{dtype: Utf8(n), value: v}
}

func BinaryScalar(v []byte, n Nullability) Scalar {
	return Scalar{dtype: Binary(n), value: v}
}

func DecimalScalar(dt DataType, v Decimal128) Scalar {
	return Scalar{dtype: dt, value: v}
}

func ListScalar(dt DataType, elems []Scalar) Scalar {
	return Scalar{dtype: dt, value: elems}
}

func StructScalar(dt DataType, fields []Scalar) Scalar {
	return Scalar{dtype: dt, value: fields}
}

// ExtensionScalar wraps a storage scalar with an extension type.
func ExtensionScalar(dt DataType, storage Scalar) Scalar {
	return Scalar{dtype: dt, value: storage.value}
}

// UUIDScalar builds a uuid extension scalar.
func UUIDScalar(u uuid.UUID, n Nullability) Scalar {
	b := u
	return Scalar{dtype: UUID(n), value: b[:]}
}

// NewScalar builds a scalar from an already-widened value.
func NewScalar(dt DataType, value any) Scalar {
	return Scalar{dtype: dt, value: value}
}

// ZeroScalar returns the default non-null value of dt.
func ZeroScalar(dt DataType) Scalar {
	switch t := StorageType(dt).(type) {
	case *NullType:
		return NullScalar(dt)
	case *BoolType:
		return Scalar{dtype: dt, value: false}
	case *PrimitiveType:
		switch {
		case t.ptype.IsUnsigned():
			return Scalar{dtype: dt, value: uint64(0)}
		case t.ptype.IsSigned():
			return Scalar{dtype: dt, value: int64(0)}
		default:
			return Scalar{dtype: dt, value: float64(0)}
		}
	case *Utf8Type:
		return Scalar{dtype: dt, value: ""}
	case *BinaryType:
		return Scalar{dtype: dt, value: []byte{}}
	case *DecimalType:
		return Scalar{dtype: dt, value: Decimal128{}}
	case *ListType:
		return Scalar{dtype: dt, value: []Scalar{}}
	case *StructType:
		fields := make([]Scalar, len(t.fields))
		for i, f := range t.fields {
			fields[i] = ZeroScalar(f.Type)
		}
		return Scalar{dtype: dt, value: fields}
	}
	return NullScalar(dt)
}

func (s Scalar) DataType() DataType { return s.dtype }
func (s Scalar) Value() any         { return s.value }
func (s Scalar) IsNull() bool       { return s.value == nil }
func (s Scalar) IsValid() bool      { return s.value != nil }

// WithDataType reinterprets the value under dt.
func (s Scalar) WithDataType(dt DataType) Scalar {
	return Scalar{dtype: dt, value: s.value}
}

// Storage returns the scalar under its storage type.
func (s Scalar) Storage() Scalar {
	return Scalar{dtype: StorageType(s.dtype), value: s.value}
}

// AsInt64 returns the value as int64 if it is a non-null integer that fits.
func (s Scalar) AsInt64() (int64, bool) {
	switch v := s.value.(type) {
	case int64:
		return v, true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case Decimal128:
		if v.FitsInt64() {
			return v.Int64(), true
		}
	}
	return 0, false
}

// AsUint64 returns the value as uint64 if it is a non-negative integer.
func (s Scalar) AsUint64() (uint64, bool) {
	switch v := s.value.(type) {
	case uint64:
		return v, true
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	}
	return 0, false
}

// AsFloat64 returns any numeric value as float64.
func (s Scalar) AsFloat64() (float64, bool) {
	switch v := s.value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}

func (s Scalar) AsBool() (bool, bool) {
	v, ok := s.value.(bool)
	return v, ok
}

// AsBytes returns utf8 or binary values as bytes.
func (s Scalar) AsBytes() ([]byte, bool) {
	switch v := s.value.(type) {
	case []byte:
		return v, true
	case string:
		return []byte(v), true
	}
	return nil, false
}

func (s Scalar) AsDecimal() (Decimal128, bool) {
	v, ok := s.value.(Decimal128)
	return v, ok
}

// Children returns list elements or struct fields.
func (s Scalar) Children() []Scalar {
	v, _ := s.value.([]Scalar)
	return v
}

// Equal reports whether two scalars hold the same value under types that are
// equal ignoring nullability. Nulls are equal to each other.
func (s Scalar) Equal(o Scalar) bool {
	if !EqualIgnoreNullability(s.dtype, o.dtype) {
		return false
	}
	return valuesEqual(s.value, o.value)
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case []byte:
		bv, ok := b.([]byte)
		return ok && bytes.Equal(av, bv)
	case float64:
		bv, ok := b.(float64)
		// bit equality so NaN equals itself and -0 differs from +0
		return ok && math.Float64bits(av) == math.Float64bits(bv)
	case []Scalar:
		bv, ok := b.([]Scalar)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valuesEqual(av[i].value, bv[i].value) {
				return false
			}
		}
		return true
	}
	return a == b
}

// Compare orders two scalars of comparable types. Nulls sort first.
func (s Scalar) Compare(o Scalar) (int, error) {
	if s.IsNull() || o.IsNull() {
		switch {
		case s.IsNull() && o.IsNull():
			return 0, nil
		case s.IsNull():
			return -1, nil
		}
		return 1, nil
	}
	switch av := s.value.(type) {
	case bool:
		if bv, ok := o.value.(bool); ok {
			return cmpBool(av, bv), nil
		}
	case int64, uint64, float64:
		if c, ok := compareNumbers(s.value, o.value); ok {
			return c, nil
		}
	case string:
		if bv, ok := o.AsBytes(); ok {
			return bytes.Compare([]byte(av), bv), nil
		}
	case []byte:
		if bv, ok := o.AsBytes(); ok {
			return bytes.Compare(av, bv), nil
		}
	case Decimal128:
		if bv, ok := o.value.(Decimal128); ok {
			return av.Cmp(bv), nil
		}
	}
	return 0, errors.TypeMismatch("scalar_compare", s.dtype.Name(), o.dtype.Name())
}

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

func compareNumbers(a, b any) (int, bool) {
	switch av := a.(type) {
	case int64:
		switch bv := b.(type) {
		case int64:
			return cmpOrdered(av, bv), true
		case uint64:
			if av < 0 {
				return -1, true
			}
			return cmpOrdered(uint64(av), bv), true
		case float64:
			return cmpFloat(float64(av), bv), true
		}
	case uint64:
		switch bv := b.(type) {
		case uint64:
			return cmpOrdered(av, bv), true
		case int64:
			if bv < 0 {
				return 1, true
			}
			return cmpOrdered(av, uint64(bv)), true
		case float64:
			return cmpFloat(float64(av), bv), true
		}
	case float64:
		switch bv := b.(type) {
		case float64:
			return cmpFloat(av, bv), true
		case int64:
			return cmpFloat(av, float64(bv)), true
		case uint64:
			return cmpFloat(av, float64(bv)), true
		}
	}
	return 0, false
}

func cmpOrdered[T int64 | uint64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// cmpFloat is a total order: -NaN < -Inf < ... < -0 < +0 < ... < +Inf < NaN.
func cmpFloat(a, b float64) int {
	ka, kb := totalOrderKey(a), totalOrderKey(b)
	switch {
	case ka < kb:
		return -1
	case ka > kb:
		return 1
	}
	return 0
}

func totalOrderKey(f float64) int64 {
	b := int64(math.Float64bits(f))
	return b ^ int64(uint64(b>>63)>>1)
}

// Cast converts s to dt, failing with Overflow when the value does not fit and
// InvalidArgument when casting a null to a non-nullable type.
func (s Scalar) Cast(dt DataType) (Scalar, error) {
	if s.IsNull() {
		if !dt.Nullable() {
			return Scalar{}, errors.InvalidArg("scalar_cast", "cannot cast null to non-nullable "+dt.Name())
		}
		return NullScalar(dt), nil
	}
	if EqualIgnoreNullability(s.dtype, dt) {
		return Scalar{dtype: dt, value: s.value}, nil
	}

	target := StorageType(dt)
	switch t := target.(type) {
	case *PrimitiveType:
		v, err := castNumber(s, t.ptype)
		if err != nil {
			return Scalar{}, err
		}
		return Scalar{dtype: dt, value: v}, nil
	case *DecimalType:
		switch v := s.value.(type) {
		case int64:
			return Scalar{dtype: dt, value: DecimalFromInt64(v)}, nil
		case uint64:
			d := Decimal128{Lo: v}
			return Scalar{dtype: dt, value: d}, nil
		case Decimal128:
			return Scalar{dtype: dt, value: v}, nil
		}
	case *BoolType:
		if v, ok := s.value.(bool); ok {
			return Scalar{dtype: dt, value: v}, nil
		}
	case *Utf8Type:
		if b, ok := s.AsBytes(); ok {
			return Scalar{dtype: dt, value: string(b)}, nil
		}
	case *BinaryType:
		if b, ok := s.AsBytes(); ok {
			return Scalar{dtype: dt, value: b}, nil
		}
	}
	if EqualIgnoreNullability(StorageType(s.dtype), target) {
		return Scalar{dtype: dt, value: s.value}, nil
	}
	return Scalar{}, errors.TypeMismatch("scalar_cast", dt.Name(), s.dtype.Name())
}

func castNumber(s Scalar, p PType) (any, error) {
	overflow := func() error {
		return errors.Overflow("scalar_cast", s.String(), p.String())
	}
	switch v := s.value.(type) {
	case Decimal128:
		if !v.FitsInt64() {
			return nil, overflow()
		}
		return castNumber(Scalar{dtype: Primitive(I64, NonNullable), value: v.Int64()}, p)
	case bool:
		return castNumber(Scalar{dtype: Primitive(U8, NonNullable), value: uint64(boolToInt(v))}, p)
	}

	switch {
	case p.IsFloat():
		f, ok := s.AsFloat64()
		if !ok {
			return nil, errors.TypeMismatch("scalar_cast", p.String(), s.dtype.Name())
		}
		if p == F32 {
			return float64(float32(f)), nil
		}
		return f, nil
	case p.IsUnsigned():
		if f, ok := s.value.(float64); ok {
			if f != math.Trunc(f) || f < 0 || f >= math.Ldexp(1, p.BitWidth()) {
				return nil, overflow()
			}
			return uint64(f), nil
		}
		u, ok := s.AsUint64()
		if !ok || u > p.MaxUint() {
			return nil, overflow()
		}
		return u, nil
	default:
		if f, ok := s.value.(float64); ok {
			lim := math.Ldexp(1, p.BitWidth()-1)
			if f != math.Trunc(f) || f < -lim || f >= lim {
				return nil, overflow()
			}
			return int64(f), nil
		}
		i, ok := s.AsInt64()
		if !ok || i < p.MinInt() || (i > 0 && uint64(i) > p.MaxUint()) {
			return nil, overflow()
		}
		return i, nil
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s Scalar) String() string {
	if s.IsNull() {
		return "null"
	}
	switch v := s.value.(type) {
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return strconv.Quote(v)
	case []byte:
		if ext, ok := s.dtype.(*ExtensionType); ok && ext.extID == UUIDID && len(v) == 16 {
			u, _ := uuid.FromBytes(v)
			return u.String()
		}
		return fmt.Sprintf("%x", v)
	case Decimal128:
		if dt, ok := StorageType(s.dtype).(*DecimalType); ok {
			return FormatDecimal(v, dt.scale)
		}
		return v.String()
	case []Scalar:
		parts := make([]string, len(v))
		for i, c := range v {
			parts[i] = c.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return fmt.Sprint(s.value)
}

// MarshalBinary encodes the value (not the type) of s.
func (s Scalar) MarshalBinary() ([]byte, error) {
	return appendScalar(nil, s)
}

func appendScalar(dst []byte, s Scalar) ([]byte, error) {
	if s.IsNull() {
		return append(dst, 0), nil
	}
	dst = append(dst, 1)
	switch v := s.value.(type) {
	case bool:
		return append(dst, byte(boolToInt(v))), nil
	case int64:
		return binary.LittleEndian.AppendUint64(dst, uint64(v)), nil
	case uint64:
		return binary.LittleEndian.AppendUint64(dst, v), nil
	case float64:
		return binary.LittleEndian.AppendUint64(dst, math.Float64bits(v)), nil
	case string:
		dst = binary.AppendUvarint(dst, uint64(len(v)))
		return append(dst, v...), nil
	case []byte:
		dst = binary.AppendUvarint(dst, uint64(len(v)))
		return append(dst, v...), nil
	case Decimal128:
		dst = binary.LittleEndian.AppendUint64(dst, v.Lo)
		return binary.LittleEndian.AppendUint64(dst, uint64(v.Hi)), nil
	case []Scalar:
		dst = binary.AppendUvarint(dst, uint64(len(v)))
		var err error
		for _, c := range v {
			if dst, err = appendScalar(dst, c); err != nil {
				return nil, err
			}
		}
		return dst, nil
	}
	return nil, errors.UnsupportedType("scalar_marshal", s.dtype.Name(), "")
}

// UnmarshalScalar decodes bytes produced by MarshalBinary under dt.
func UnmarshalScalar(dt DataType, data []byte) (Scalar, error) {
	s, rest, err := readScalar(dt, data)
	if err != nil {
		return Scalar{}, err
	}
	if len(rest) != 0 {
		return Scalar{}, errors.Corrupt("scalar", fmt.Sprintf("%d trailing bytes", len(rest)))
	}
	return s, nil
}

func readScalar(dt DataType, data []byte) (Scalar, []byte, error) {
	short := func() (Scalar, []byte, error) {
		return Scalar{}, nil, errors.Corrupt("scalar", "truncated value for "+dt.Name())
	}
	if len(data) < 1 {
		return short()
	}
	if data[0] == 0 {
		return NullScalar(dt), data[1:], nil
	}
	data = data[1:]

	readLen := func() (int, bool) {
		n, k := binary.Uvarint(data)
		if k <= 0 || uint64(len(data)-k) < n {
			return 0, false
		}
		data = data[k:]
		return int(n), true
	}

	switch t := StorageType(dt).(type) {
	case *BoolType:
		if len(data) < 1 {
			return short()
		}
		return Scalar{dtype: dt, value: data[0] != 0}, data[1:], nil
	case *PrimitiveType:
		if len(data) < 8 {
			return short()
		}
		u := binary.LittleEndian.Uint64(data)
		var v any
		switch {
		case t.ptype.IsUnsigned():
			v = u
		case t.ptype.IsSigned():
			v = int64(u)
		default:
			v = math.Float64frombits(u)
		}
		return Scalar{dtype: dt, value: v}, data[8:], nil
	case *Utf8Type, *BinaryType:
		n, ok := readLen()
		if !ok {
			return short()
		}
		b := append([]byte(nil), data[:n]...)
		if t.ID() == UTF8 {
			return Scalar{dtype: dt, value: string(b)}, data[n:], nil
		}
		return Scalar{dtype: dt, value: b}, data[n:], nil
	case *DecimalType:
		if len(data) < 16 {
			return short()
		}
		d := Decimal128{Lo: binary.LittleEndian.Uint64(data), Hi: int64(binary.LittleEndian.Uint64(data[8:]))}
		return Scalar{dtype: dt, value: d}, data[16:], nil
	case *ListType, *StructType:
		n, ok := readLen()
		if !ok {
			return short()
		}
		children := make([]Scalar, n)
		for i := range children {
			var childType DataType
			if lt, ok := t.(*ListType); ok {
				childType = lt.elem
			} else {
				st := t.(*StructType)
				if i >= len(st.fields) {
					return Scalar{}, nil, errors.Corrupt("scalar", "too many struct fields")
				}
				childType = st.fields[i].Type
			}
			c, rest, err := readScalar(childType, data)
			if err != nil {
				return Scalar{}, nil, err
			}
			children[i] = c
			data = rest
		}
		return Scalar{dtype: dt, value: children}, data, nil
	}
	return Scalar{}, nil, errors.UnsupportedType("scalar_unmarshal", dt.Name(), "")
}
