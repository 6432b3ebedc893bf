package array

import (
	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

// Builder is the interface for building canonical arrays incrementally
type Builder interface {
	// Reserve reserves space for n additional elements
	Reserve(n int)

	// AppendNull appends a null value
	AppendNull()

	// AppendScalar appends a value of the builder's type
	AppendScalar(s arrow.Scalar) error

	// Len returns the number of elements appended
	Len() int

	// NewArray builds the array and resets the builder
	NewArray() (Array, error)
}

// NewBuilder returns a builder producing canonical arrays of dt.
func NewBuilder(dt arrow.DataType) (Builder, error) {
	n := arrow.Nullability(dt.Nullable())
	switch t := dt.(type) {
	case *arrow.NullType:
		return &NullBuilder{}, nil
	case *arrow.BoolType:
		return NewBoolBuilder(n), nil
	case *arrow.PrimitiveType:
		switch t.PType() {
		case arrow.U8:
			return NewPrimitiveBuilder[uint8](n), nil
		case arrow.U16:
			return NewPrimitiveBuilder[uint16](n), nil
		case arrow.U32:
			return NewPrimitiveBuilder[uint32](n), nil
		case arrow.U64:
			return NewPrimitiveBuilder[uint64](n), nil
		case arrow.I8:
			return NewPrimitiveBuilder[int8](n), nil
		case arrow.I16:
			return NewPrimitiveBuilder[int16](n), nil
		case arrow.I32:
			return NewPrimitiveBuilder[int32](n), nil
		case arrow.I64:
			return NewPrimitiveBuilder[int64](n), nil
		case arrow.F32:
			return NewPrimitiveBuilder[float32](n), nil
		}
		return NewPrimitiveBuilder[float64](n), nil
	case *arrow.Utf8Type, *arrow.BinaryType:
		return NewVarBinBuilder(dt), nil
	case *arrow.DecimalType:
		return NewDecimalBuilder(t), nil
	case *arrow.StructType:
		return NewStructBuilder(t)
	case *arrow.ListType:
		elem, err := NewBuilder(t.Elem())
		if err != nil {
			return nil, err
		}
		return NewListBuilder(t, elem), nil
	case *arrow.ExtensionType:
		storage, err := NewBuilder(t.Storage())
		if err != nil {
			return nil, err
		}
		return &ExtensionBuilder{dtype: t, storage: storage}, nil
	}
	return nil, errors.UnsupportedType("builder", dt.Name(), "")
}

// FromScalars builds a canonical array of dt from scalars.
func FromScalars(dt arrow.DataType, values []arrow.Scalar) (Array, error) {
	b, err := NewBuilder(dt)
	if err != nil {
		return nil, err
	}
	b.Reserve(len(values))
	for _, v := range values {
		if err := b.AppendScalar(v); err != nil {
			return nil, err
		}
	}
	return b.NewArray()
}

// --- validity tracking ---

type validityBuilder struct {
	nullable arrow.Nullability
	nulls    *arrow.Bitmap
	hasNulls bool
	n        int
}

func (b *validityBuilder) appendValid() {
	b.n++
	if b.hasNulls {
		b.nulls.Append(true)
	}
}

func (b *validityBuilder) appendNull() {
	if !b.hasNulls {
		b.hasNulls = true
		b.nulls = arrow.NewBitmapAllSet(b.n)
	}
	b.n++
	b.nulls.Append(false)
}

func (b *validityBuilder) finish() (Validity, error) {
	defer func() {
		b.nulls, b.hasNulls, b.n = nil, false, 0
	}()
	if !b.nullable {
		if b.hasNulls {
			return Validity{}, errors.InvalidArg("builder", "null appended to non-nullable builder")
		}
		return NonNullable(), nil
	}
	if !b.hasNulls {
		return AllValid(), nil
	}
	return FromBitmap(b.nulls), nil
}

// --- PrimitiveBuilder ---

type PrimitiveBuilder[T arrow.Number] struct {
	data     []T
	validity validityBuilder
}

func NewPrimitiveBuilder[T arrow.Number](n arrow.Nullability) *PrimitiveBuilder[T] {
	return &PrimitiveBuilder[T]{
		data:     make([]T, 0, 16),
		validity: validityBuilder{nullable: n},
	}
}

func (b *PrimitiveBuilder[T]) Reserve(n int) {
	if cap(b.data)-len(b.data) < n {
		newData := make([]T, len(b.data), len(b.data)+n)
		copy(newData, b.data)
		b.data = newData
	}
}

func (b *PrimitiveBuilder[T]) Append(v T) {
	b.data = append(b.data, v)
	b.validity.appendValid()
}

func (b *PrimitiveBuilder[T]) AppendValues(vs []T) {
	b.Reserve(len(vs))
	for _, v := range vs {
		b.Append(v)
	}
}

func (b *PrimitiveBuilder[T]) AppendNull() {
	var zero T
	b.data = append(b.data, zero) // placeholder
	b.validity.appendNull()
}

func (b *PrimitiveBuilder[T]) AppendScalar(s arrow.Scalar) error {
	if s.IsNull() {
		b.AppendNull()
		return nil
	}
	if !arrow.IsPrimitive(arrow.StorageType(s.DataType())) {
		return errors.TypeMismatch("append", arrow.PTypeFor[T]().String(), s.DataType().Name())
	}
	b.Append(arrow.PrimitiveValue[T](s))
	return nil
}

func (b *PrimitiveBuilder[T]) Len() int { return len(b.data) }

func (b *PrimitiveBuilder[T]) NewArray() (Array, error) {
	return b.NewPrimitiveArray()
}

// NewPrimitiveArray is NewArray with a concrete result type.
func (b *PrimitiveBuilder[T]) NewPrimitiveArray() (*PrimitiveArray, error) {
	validity, err := b.validity.finish()
	if err != nil {
		return nil, err
	}
	data := b.data
	b.data = make([]T, 0, 16)
	return NewPrimitiveArray(arrow.PTypeFor[T](), arrow.WrapSlice(data), validity)
}

// --- BoolBuilder ---

type BoolBuilder struct {
	bits     *arrow.Bitmap
	validity validityBuilder
}

func NewBoolBuilder(n arrow.Nullability) *BoolBuilder {
	return &BoolBuilder{bits: arrow.NewBitmap(0), validity: validityBuilder{nullable: n}}
}

func (b *BoolBuilder) Reserve(int) {}

func (b *BoolBuilder) Append(v bool) {
	b.bits.Append(v)
	b.validity.appendValid()
}

func (b *BoolBuilder) AppendNull() {
	b.bits.Append(false)
	b.validity.appendNull()
}

func (b *BoolBuilder) AppendScalar(s arrow.Scalar) error {
	if s.IsNull() {
		b.AppendNull()
		return nil
	}
	v, ok := s.AsBool()
	if !ok {
		return errors.TypeMismatch("append", "bool", s.DataType().Name())
	}
	b.Append(v)
	return nil
}

func (b *BoolBuilder) Len() int { return b.bits.Len() }

func (b *BoolBuilder) NewArray() (Array, error) {
	validity, err := b.validity.finish()
	if err != nil {
		return nil, err
	}
	bits := b.bits
	b.bits = arrow.NewBitmap(0)
	return NewBoolArray(bits, validity)
}

// --- VarBinBuilder ---

type VarBinBuilder struct {
	dtype    arrow.DataType
	offsets  []int64
	data     []byte
	validity validityBuilder
}

// NewVarBinBuilder builds utf8 or binary arrays of dt.
func NewVarBinBuilder(dt arrow.DataType) *VarBinBuilder {
	return &VarBinBuilder{
		dtype:    dt,
		offsets:  []int64{0},
		validity: validityBuilder{nullable: arrow.Nullability(dt.Nullable())},
	}
}

func (b *VarBinBuilder) Reserve(n int) {
	if cap(b.offsets)-len(b.offsets) < n {
		newOffsets := make([]int64, len(b.offsets), len(b.offsets)+n)
		copy(newOffsets, b.offsets)
		b.offsets = newOffsets
	}
}

func (b *VarBinBuilder) Append(v []byte) {
	b.data = append(b.data, v...)
	b.offsets = append(b.offsets, int64(len(b.data)))
	b.validity.appendValid()
}

func (b *VarBinBuilder) AppendString(v string) {
	b.data = append(b.data, v...)
	b.offsets = append(b.offsets, int64(len(b.data)))
	b.validity.appendValid()
}

func (b *VarBinBuilder) AppendNull() {
	b.offsets = append(b.offsets, int64(len(b.data)))
	b.validity.appendNull()
}

func (b *VarBinBuilder) AppendScalar(s arrow.Scalar) error {
	if s.IsNull() {
		b.AppendNull()
		return nil
	}
	v, ok := s.AsBytes()
	if !ok {
		return errors.TypeMismatch("append", b.dtype.Name(), s.DataType().Name())
	}
	b.Append(v)
	return nil
}

func (b *VarBinBuilder) Len() int { return len(b.offsets) - 1 }

func (b *VarBinBuilder) DataLen() int { return len(b.data) }

func (b *VarBinBuilder) NewArray() (Array, error) {
	validity, err := b.validity.finish()
	if err != nil {
		return nil, err
	}
	return b.build(validity)
}

func (b *VarBinBuilder) build(validity Validity) (*VarBinArray, error) {
	offsets, data := b.offsets, b.data
	b.offsets, b.data = []int64{0}, nil
	b.validity = validityBuilder{nullable: b.validity.nullable}
	dt := b.dtype.WithNullability(arrow.Nullability(validity.Nullable()))
	return NewVarBinArray(dt, arrow.WrapSlice(offsets), arrow.NewBufferBytes(data), validity)
}

// newVarBin finishes with an externally computed validity.
func (b *VarBinBuilder) newVarBin(validity Validity) *VarBinArray {
	arr, err := b.build(validity)
	if err != nil {
		panic(err)
	}
	return arr
}

// --- DecimalBuilder ---

type DecimalBuilder struct {
	dtype    *arrow.DecimalType
	data     []arrow.Decimal128
	validity validityBuilder
}

func NewDecimalBuilder(dt *arrow.DecimalType) *DecimalBuilder {
	return &DecimalBuilder{dtype: dt, validity: validityBuilder{nullable: arrow.Nullability(dt.Nullable())}}
}

func (b *DecimalBuilder) Reserve(n int) {
	if cap(b.data)-len(b.data) < n {
		newData := make([]arrow.Decimal128, len(b.data), len(b.data)+n)
		copy(newData, b.data)
		b.data = newData
	}
}

func (b *DecimalBuilder) Append(v arrow.Decimal128) {
	b.data = append(b.data, v)
	b.validity.appendValid()
}

func (b *DecimalBuilder) AppendNull() {
	b.data = append(b.data, arrow.Decimal128{})
	b.validity.appendNull()
}

func (b *DecimalBuilder) AppendScalar(s arrow.Scalar) error {
	if s.IsNull() {
		b.AppendNull()
		return nil
	}
	v, ok := s.AsDecimal()
	if !ok {
		return errors.TypeMismatch("append", b.dtype.Name(), s.DataType().Name())
	}
	b.Append(v)
	return nil
}

func (b *DecimalBuilder) Len() int { return len(b.data) }

func (b *DecimalBuilder) NewArray() (Array, error) {
	validity, err := b.validity.finish()
	if err != nil {
		return nil, err
	}
	data := b.data
	b.data = nil
	return NewDecimalArray(b.dtype, arrow.WrapSlice(data), validity)
}

// --- NullBuilder ---

type NullBuilder struct{ n int }

func (b *NullBuilder) Reserve(int)                     {}
func (b *NullBuilder) AppendNull()                     { b.n++ }
func (b *NullBuilder) AppendScalar(arrow.Scalar) error { b.n++; return nil }
func (b *NullBuilder) Len() int                        { return b.n }

func (b *NullBuilder) NewArray() (Array, error) {
	n := b.n
	b.n = 0
	return NewNullArray(n), nil
}

// --- StructBuilder ---

type StructBuilder struct {
	dtype    *arrow.StructType
	fields   []Builder
	validity validityBuilder
}

func NewStructBuilder(dt *arrow.StructType) (*StructBuilder, error) {
	fields := make([]Builder, len(dt.Fields()))
	for i, f := range dt.Fields() {
		fb, err := NewBuilder(f.Type)
		if err != nil {
			return nil, err
		}
		fields[i] = fb
	}
	return &StructBuilder{dtype: dt, fields: fields, validity: validityBuilder{nullable: arrow.Nullability(dt.Nullable())}}, nil
}

func (b *StructBuilder) Reserve(n int) {
	for _, f := range b.fields {
		f.Reserve(n)
	}
}

// FieldBuilder returns the builder of field i; callers append to every field
// and then call Append.
func (b *StructBuilder) FieldBuilder(i int) Builder { return b.fields[i] }

func (b *StructBuilder) Append() { b.validity.appendValid() }

func (b *StructBuilder) AppendNull() {
	for i, f := range b.fields {
		appendZeroOrNull(f, b.dtype.Fields()[i].Type)
	}
	b.validity.appendNull()
}

func appendZeroOrNull(b Builder, dt arrow.DataType) {
	if dt.Nullable() {
		b.AppendNull()
		return
	}
	_ = b.AppendScalar(arrow.ZeroScalar(dt))
}

func (b *StructBuilder) AppendScalar(s arrow.Scalar) error {
	if s.IsNull() {
		b.AppendNull()
		return nil
	}
	vals := s.Children()
	if len(vals) != len(b.fields) {
		return errors.LengthMismatch("append", "struct fields", len(b.fields), len(vals))
	}
	for i, f := range b.fields {
		if err := f.AppendScalar(vals[i]); err != nil {
			return err
		}
	}
	b.Append()
	return nil
}

func (b *StructBuilder) Len() int { return b.validity.n }

func (b *StructBuilder) NewArray() (Array, error) {
	n := b.validity.n
	validity, err := b.validity.finish()
	if err != nil {
		return nil, err
	}
	fields := make([]Array, len(b.fields))
	for i, f := range b.fields {
		if fields[i], err = f.NewArray(); err != nil {
			return nil, err
		}
	}
	return NewStructArray(b.dtype, n, fields, validity)
}

// --- ListBuilder (variable-length) ---

type ListBuilder struct {
	listType *arrow.ListType
	offsets  []int64
	values   Builder
	validity validityBuilder
}

func NewListBuilder(listType *arrow.ListType, valueBuilder Builder) *ListBuilder {
	return &ListBuilder{
		listType: listType,
		offsets:  []int64{0}, // Start with offset 0
		values:   valueBuilder,
		validity: validityBuilder{nullable: arrow.Nullability(listType.Nullable())},
	}
}

func (b *ListBuilder) Reserve(n int) {
	if cap(b.offsets)-len(b.offsets) < n {
		newOffsets := make([]int64, len(b.offsets), len(b.offsets)+n)
		copy(newOffsets, b.offsets)
		b.offsets = newOffsets
	}
}

// Append closes the current list; values appended to ValueBuilder since the
// previous call belong to it.
func (b *ListBuilder) Append(valid bool) {
	b.offsets = append(b.offsets, int64(b.values.Len()))
	if valid {
		b.validity.appendValid()
	} else {
		b.validity.appendNull()
	}
}

// ValueBuilder returns the value builder
func (b *ListBuilder) ValueBuilder() Builder {
	return b.values
}

func (b *ListBuilder) AppendNull() { b.Append(false) }

func (b *ListBuilder) AppendScalar(s arrow.Scalar) error {
	if s.IsNull() {
		b.AppendNull()
		return nil
	}
	for _, e := range s.Children() {
		if err := b.values.AppendScalar(e); err != nil {
			return err
		}
	}
	b.Append(true)
	return nil
}

func (b *ListBuilder) Len() int {
	return len(b.offsets) - 1
}

func (b *ListBuilder) NewArray() (Array, error) {
	validity, err := b.validity.finish()
	if err != nil {
		return nil, err
	}
	valuesArr, err := b.values.NewArray()
	if err != nil {
		return nil, err
	}
	offsets := b.offsets
	b.offsets = []int64{0}
	return NewListArray(b.listType, arrow.WrapSlice(offsets), valuesArr, validity)
}

// --- ExtensionBuilder ---

type ExtensionBuilder struct {
	dtype   *arrow.ExtensionType
	storage Builder
}

func (b *ExtensionBuilder) Reserve(n int) { b.storage.Reserve(n) }
func (b *ExtensionBuilder) AppendNull()   { b.storage.AppendNull() }
func (b *ExtensionBuilder) Len() int      { return b.storage.Len() }

func (b *ExtensionBuilder) AppendScalar(s arrow.Scalar) error {
	return b.storage.AppendScalar(s.Storage())
}

func (b *ExtensionBuilder) NewArray() (Array, error) {
	storage, err := b.storage.NewArray()
	if err != nil {
		return nil, err
	}
	return NewExtensionArray(b.dtype, storage)
}
