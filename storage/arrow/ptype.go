package arrow

import (
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

// PType is a primitive physical type.
type PType uint8

const (
	U8 PType = iota
	U16
	U32
	U64
	I8
	I16
	I32
	I64
	F32
	F64
)

var ptypeNames = [...]string{"u8", "u16", "u32", "u64", "i8", "i16", "i32", "i64", "f32", "f64"}

func (p PType) String() string {
	if int(p) < len(ptypeNames) {
		return ptypeNames[p]
	}
	return fmt.Sprintf("ptype(%d)", uint8(p))
}

// ByteWidth returns the width of one element in bytes.
func (p PType) ByteWidth() int {
	switch p {
	case U8, I8:
		return 1
	case U16, I16:
		return 2
	case U32, I32, F32:
		return 4
	default:
		return 8
	}
}

// BitWidth returns the width of one element in bits.
func (p PType) BitWidth() int { return p.ByteWidth() * 8 }

func (p PType) IsUnsigned() bool { return p <= U64 }
func (p PType) IsSigned() bool   { return p >= I8 && p <= I64 }
func (p PType) IsInt() bool      { return p <= I64 }
func (p PType) IsFloat() bool    { return p == F32 || p == F64 }

// ToUnsigned returns the unsigned ptype of the same width.
func (p PType) ToUnsigned() PType {
	switch p {
	case I8:
		return U8
	case I16:
		return U16
	case I32:
		return U32
	case I64, F64:
		return U64
	case F32:
		return U32
	}
	return p
}

// ToSigned returns the signed ptype of the same width.
func (p PType) ToSigned() PType {
	switch p {
	case U8:
		return I8
	case U16:
		return I16
	case U32, F32:
		return I32
	case U64, F64:
		return I64
	}
	return p
}

// MinInt returns the minimum value of an integer ptype.
func (p PType) MinInt() int64 {
	switch p {
	case I8:
		return math.MinInt8
	case I16:
		return math.MinInt16
	case I32:
		return math.MinInt32
	case I64:
		return math.MinInt64
	}
	return 0
}

// MaxUint returns the maximum value of an integer ptype as uint64.
func (p PType) MaxUint() uint64 {
	switch p {
	case U8:
		return math.MaxUint8
	case U16:
		return math.MaxUint16
	case U32:
		return math.MaxUint32
	case U64:
		return math.MaxUint64
	case I8:
		return math.MaxInt8
	case I16:
		return math.MaxInt16
	case I32:
		return math.MaxInt32
	case I64:
		return math.MaxInt64
	}
	return 0
}

// UnsignedForBits returns the narrowest unsigned ptype holding bits bits.
func UnsignedForBits(bits int) PType {
	switch {
	case bits <= 8:
		return U8
	case bits <= 16:
		return U16
	case bits <= 32:
		return U32
	default:
		return U64
	}
}

// SignedForBits returns the narrowest signed ptype holding bits bits.
func SignedForBits(bits int) PType {
	switch {
	case bits <= 8:
		return I8
	case bits <= 16:
		return I16
	case bits <= 32:
		return I32
	default:
		return I64
	}
}

// Number is the set of Go types that map onto a primitive ptype.
type Number interface {
	constraints.Integer | constraints.Float
}

// PTypeFor returns the ptype matching the Go type T.
func PTypeFor[T Number]() PType {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return U8
	case uint16:
		return U16
	case uint32:
		return U32
	case uint64, uint, uintptr:
		return U64
	case int8:
		return I8
	case int16:
		return I16
	case int32:
		return I32
	case int64, int:
		return I64
	case float32:
		return F32
	case float64:
		return F64
	}
	panic(fmt.Sprintf("no ptype for %T", zero))
}
