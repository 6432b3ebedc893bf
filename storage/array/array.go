// Package array defines the logical array abstraction: a typed, immutable,
// possibly nullable sequence of values that may be held by any number of
// physical encodings. Generic entry points in this package perform bounds and
// null checks centrally and dispatch to the optional capabilities an encoding
// provides, canonicalizing when a capability is missing.
package array

import (
	"github.com/wzqhbustb/cascade/storage/arrow"
)

// EncodingID identifies a physical encoding.
type EncodingID string

// Array is the interface every encoding implements.
//
// ScalarAt and Slice are called through the package-level entry points, which
// guarantee that indices are in bounds and that ScalarAt is only asked for
// valid positions.
type Array interface {
	Len() int
	DataType() arrow.DataType
	Encoding() EncodingID
	Stats() *StatsSet

	// ScalarAt returns the valid element at i.
	ScalarAt(i int) (arrow.Scalar, error)
	// Slice returns the zero-copy view [start, stop).
	Slice(start, stop int) (Array, error)
	IsValid(i int) bool
	// Validity returns the logical validity of the array.
	Validity() (Validity, error)
	// ToCanonical fully decodes the array.
	ToCanonical() (Array, error)
	// Accept presents buffers, validity and children to v.
	Accept(v ArrayVisitor) error
	// Metadata returns the encoding specific serialized metadata.
	Metadata() ([]byte, error)
	Validate() error
}

// --- Optional capabilities ---

// FilterFn keeps the positions set in mask. len(mask) == Len.
type FilterFn interface {
	Filter(mask *arrow.Bitmap) (Array, error)
}

// TakeFn gathers positions. Indices are canonical, in bounds, and may be null.
type TakeFn interface {
	Take(indices *PrimitiveArray) (Array, error)
}

// CastFn converts to another logical type.
type CastFn interface {
	Cast(dt arrow.DataType) (Array, error)
}

// StatisticsFn computes a single statistic.
type StatisticsFn interface {
	ComputeStatistic(stat Stat) (Precision, error)
}

// IsConstantFn answers whether every element is equal.
type IsConstantFn interface {
	IsConstant(opts IsConstantOpts) (bool, error)
}

// CompareFn compares elementwise against rhs of equal length.
type CompareFn interface {
	Compare(rhs Array, op Operator) (Array, error)
}

// BinaryNumericFn applies arithmetic elementwise against rhs of equal length.
type BinaryNumericFn interface {
	BinaryNumeric(rhs Array, op NumericOp) (Array, error)
}

// ScalarConstant is implemented by arrays whose every element is one scalar.
type ScalarConstant interface {
	ConstantScalar() arrow.Scalar
}

// IsConstantOpts controls how much work IsConstant may do.
type IsConstantOpts struct {
	// Canonicalize allows decoding arrays that cannot answer cheaply. When
	// false such arrays report false.
	Canonicalize bool
}

// Operator is a comparison operator.
type Operator uint8

const (
	Eq Operator = iota
	NotEq
	Lt
	Lte
	Gt
	Gte
)

func (o Operator) String() string {
	return [...]string{"=", "!=", "<", "<=", ">", ">="}[o]
}

// Swap returns the operator with operands exchanged.
func (o Operator) Swap() Operator {
	switch o {
	case Lt:
		return Gt
	case Lte:
		return Gte
	case Gt:
		return Lt
	case Gte:
		return Lte
	}
	return o
}

// Holds reports whether cmp (-1, 0, 1) satisfies o.
func (o Operator) Holds(cmp int) bool {
	switch o {
	case Eq:
		return cmp == 0
	case NotEq:
		return cmp != 0
	case Lt:
		return cmp < 0
	case Lte:
		return cmp <= 0
	case Gt:
		return cmp > 0
	}
	return cmp >= 0
}

// NumericOp is an arithmetic operator.
type NumericOp uint8

const (
	Add NumericOp = iota
	Sub
	Mul
	Div
)

func (o NumericOp) String() string {
	return [...]string{"add", "sub", "mul", "div"}[o]
}

// Base carries the state shared by every array implementation.
type Base struct {
	length int
	dtype  arrow.DataType
	stats  *StatsSet
}

// NewBase returns the common array header.
func NewBase(dtype arrow.DataType, length int) Base {
	return Base{length: length, dtype: dtype, stats: NewStatsSet()}
}

func (b *Base) Len() int                 { return b.length }
func (b *Base) DataType() arrow.DataType { return b.dtype }
func (b *Base) Stats() *StatsSet         { return b.stats }

// IsCanonical reports whether a is one of the canonical encodings.
func IsCanonical(a Array) bool {
	switch t := a.(type) {
	case *NullArray, *BoolArray, *PrimitiveArray, *VarBinArray, *StructArray,
		*ListArray, *DecimalArray:
		return true
	case *ExtensionArray:
		return IsCanonical(t.storage)
	}
	return false
}
