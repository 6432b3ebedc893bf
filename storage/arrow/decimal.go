package arrow

import (
	"math"
	"math/big"
	"math/bits"
)

// Decimal128 is a two's complement 128-bit integer laid out little endian.
type Decimal128 struct {
	Lo uint64
	Hi int64
}

// DecimalFromInt64 sign-extends v.
func DecimalFromInt64(v int64) Decimal128 {
	hi := int64(0)
	if v < 0 {
		hi = -1
	}
	return Decimal128{Lo: uint64(v), Hi: hi}
}

// DecimalFromBig converts b, reporting false if it does not fit 128 bits.
func DecimalFromBig(b *big.Int) (Decimal128, bool) {
	if b.BitLen() > 127 {
		min := new(big.Int).Lsh(big.NewInt(-1), 127)
		if b.Cmp(min) != 0 {
			return Decimal128{}, false
		}
	}
	mask := new(big.Int).SetUint64(math.MaxUint64)
	lo := new(big.Int).And(b, mask).Uint64()
	hi := new(big.Int).Rsh(b, 64).Int64()
	return Decimal128{Lo: lo, Hi: hi}, true
}

// Big returns d as a big.Int.
func (d Decimal128) Big() *big.Int {
	b := big.NewInt(d.Hi)
	b.Lsh(b, 64)
	return b.Or(b, new(big.Int).SetUint64(d.Lo))
}

// FitsInt64 reports whether d is representable as int64.
func (d Decimal128) FitsInt64() bool {
	return (d.Hi == 0 && d.Lo <= math.MaxInt64) || (d.Hi == -1 && d.Lo > math.MaxInt64)
}

// Int64 truncates d to its low 64 bits.
func (d Decimal128) Int64() int64 { return int64(d.Lo) }

// Sign returns -1, 0 or +1.
func (d Decimal128) Sign() int {
	switch {
	case d.Hi < 0:
		return -1
	case d.Hi == 0 && d.Lo == 0:
		return 0
	}
	return 1
}

// Cmp compares d and o.
func (d Decimal128) Cmp(o Decimal128) int {
	switch {
	case d.Hi < o.Hi:
		return -1
	case d.Hi > o.Hi:
		return 1
	case d.Lo < o.Lo:
		return -1
	case d.Lo > o.Lo:
		return 1
	}
	return 0
}

// Add returns d+o and whether the addition overflowed.
func (d Decimal128) Add(o Decimal128) (Decimal128, bool) {
	lo, carry := bits.Add64(d.Lo, o.Lo, 0)
	hi := d.Hi + o.Hi + int64(carry)
	overflow := (d.Hi >= 0) == (o.Hi >= 0) && (hi >= 0) != (d.Hi >= 0)
	return Decimal128{Lo: lo, Hi: hi}, overflow
}

// Neg returns -d.
func (d Decimal128) Neg() Decimal128 {
	lo := ^d.Lo + 1
	hi := ^d.Hi
	if lo == 0 {
		hi++
	}
	return Decimal128{Lo: lo, Hi: hi}
}

// SignificantBits returns the number of bits needed to hold d as a signed
// integer, sign bit included.
func (d Decimal128) SignificantBits() int {
	v := d
	if d.Hi < 0 {
		v = Decimal128{Lo: ^d.Lo, Hi: ^d.Hi}
	}
	if v.Hi != 0 {
		return 64 + bits.Len64(uint64(v.Hi)) + 1
	}
	return bits.Len64(v.Lo) + 1
}

func (d Decimal128) String() string {
	return d.Big().String()
}

// FormatDecimal renders d scaled by scale digits.
func FormatDecimal(d Decimal128, scale int8) string {
	if scale <= 0 {
		b := d.Big()
		if scale < 0 {
			b.Mul(b, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-scale)), nil))
		}
		return b.String()
	}
	r := new(big.Rat).SetFrac(d.Big(), new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(scale)), nil))
	return r.FloatString(int(scale))
}
