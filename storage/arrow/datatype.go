package arrow

import (
	"fmt"
	"strings"
)

// TypeID is an enum of supported logical data types
type TypeID int

const (
	NULL TypeID = iota
	BOOL
	PRIMITIVE
	UTF8
	BINARY
	LIST
	STRUCT
	DECIMAL
	EXTENSION
)

// Nullability marks whether a type site admits nulls.
type Nullability bool

const (
	NonNullable Nullability = false
	Nullable    Nullability = true
)

// DataType represents the logical type of an array.
type DataType interface {
	ID() TypeID
	Name() string
	Nullable() bool
	WithNullability(n Nullability) DataType
}

// --- Leaf Types ---

type NullType struct{}

func (t *NullType) ID() TypeID                           { return NULL }
func (t *NullType) Name() string                         { return "null" }
func (t *NullType) Nullable() bool                       { return true }
func (t *NullType) WithNullability(Nullability) DataType { return t }

type BoolType struct{ nullable Nullability }

func (t *BoolType) ID() TypeID     { return BOOL }
func (t *BoolType) Name() string   { return "bool" + suffix(t.nullable) }
func (t *BoolType) Nullable() bool { return bool(t.nullable) }
func (t *BoolType) WithNullability(n Nullability) DataType {
	return &BoolType{nullable: n}
}

type PrimitiveType struct {
	ptype    PType
	nullable Nullability
}

func (t *PrimitiveType) ID() TypeID     { return PRIMITIVE }
func (t *PrimitiveType) Name() string   { return t.ptype.String() + suffix(t.nullable) }
func (t *PrimitiveType) Nullable() bool { return bool(t.nullable) }
func (t *PrimitiveType) PType() PType   { return t.ptype }
func (t *PrimitiveType) WithNullability(n Nullability) DataType {
	return &PrimitiveType{ptype: t.ptype, nullable: n}
}

type Utf8Type struct{ nullable Nullability }

func (t *Utf8Type) ID() TypeID     { return UTF8 }
func (t *Utf8Type) Name() string   { return "utf8" + suffix(t.nullable) }
func (t *Utf8Type) Nullable() bool { return bool(t.nullable) }
func (t *Utf8Type) WithNullability(n Nullability) DataType {
	return &Utf8Type{nullable: n}
}

type BinaryType struct{ nullable Nullability }

func (t *BinaryType) ID() TypeID     { return BINARY }
func (t *BinaryType) Name() string   { return "binary" + suffix(t.nullable) }
func (t *BinaryType) Nullable() bool { return bool(t.nullable) }
func (t *BinaryType) WithNullability(n Nullability) DataType {
	return &BinaryType{nullable: n}
}

// DecimalType is a fixed-point decimal backed by 128-bit integers.
type DecimalType struct {
	precision uint8
	scale     int8
	nullable  Nullability
}

func (t *DecimalType) ID() TypeID { return DECIMAL }
func (t *DecimalType) Name() string {
	return fmt.Sprintf("decimal(%d,%d)%s", t.precision, t.scale, suffix(t.nullable))
}
func (t *DecimalType) Nullable() bool   { return bool(t.nullable) }
func (t *DecimalType) Precision() uint8 { return t.precision }
func (t *DecimalType) Scale() int8      { return t.scale }
func (t *DecimalType) WithNullability(n Nullability) DataType {
	return &DecimalType{precision: t.precision, scale: t.scale, nullable: n}
}

// --- Nested Types ---

// ListType represents a variable-length list
type ListType struct {
	elem     DataType
	nullable Nullability
}

func (t *ListType) ID() TypeID     { return LIST }
func (t *ListType) Name() string   { return fmt.Sprintf("list<%s>%s", t.elem.Name(), suffix(t.nullable)) }
func (t *ListType) Nullable() bool { return bool(t.nullable) }
func (t *ListType) Elem() DataType { return t.elem }
func (t *ListType) WithNullability(n Nullability) DataType {
	return &ListType{elem: t.elem, nullable: n}
}

// Field is a named struct member.
type Field struct {
	Name string
	Type DataType
}

// StructType represents a struct with named fields
type StructType struct {
	fields   []Field
	nullable Nullability
}

func (t *StructType) ID() TypeID { return STRUCT }
func (t *StructType) Name() string {
	parts := make([]string, len(t.fields))
	for i, f := range t.fields {
		parts[i] = f.Name + ": " + f.Type.Name()
	}
	return "struct{" + strings.Join(parts, ", ") + "}" + suffix(t.nullable)
}
func (t *StructType) Nullable() bool  { return bool(t.nullable) }
func (t *StructType) Fields() []Field { return t.fields }
func (t *StructType) WithNullability(n Nullability) DataType {
	return &StructType{fields: t.fields, nullable: n}
}

// FieldIndex returns the position of the named field or -1.
func (t *StructType) FieldIndex(name string) int {
	for i, f := range t.fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func suffix(n Nullability) string {
	if n {
		return "?"
	}
	return ""
}

// --- Type Constructors ---

func Null() DataType                              { return &NullType{} }
func Bool(n Nullability) DataType                 { return &BoolType{nullable: n} }
func Primitive(p PType, n Nullability) DataType   { return &PrimitiveType{ptype: p, nullable: n} }
func Utf8(n Nullability) DataType                 { return &Utf8Type{nullable: n} }
func Binary(n Nullability) DataType               { return &BinaryType{nullable: n} }
func ListOf(elem DataType, n Nullability) DataType { return &ListType{elem: elem, nullable: n} }

func StructOf(fields []Field, n Nullability) DataType {
	return &StructType{fields: fields, nullable: n}
}

func Decimal(precision uint8, scale int8, n Nullability) DataType {
	return &DecimalType{precision: precision, scale: scale, nullable: n}
}

// PTypeOf returns the primitive ptype of dt and whether dt is primitive.
func PTypeOf(dt DataType) (PType, bool) {
	if p, ok := dt.(*PrimitiveType); ok {
		return p.ptype, true
	}
	return 0, false
}

// IsPrimitive reports whether dt is a primitive type.
func IsPrimitive(dt DataType) bool {
	_, ok := dt.(*PrimitiveType)
	return ok
}

// IsVarBin reports whether dt is utf8 or binary.
func IsVarBin(dt DataType) bool {
	id := dt.ID()
	return id == UTF8 || id == BINARY
}

// AsNullable returns dt with nullability set.
func AsNullable(dt DataType) DataType {
	return dt.WithNullability(Nullable)
}

// Equal reports whether two types are identical, including nullability.
func Equal(a, b DataType) bool {
	return equal(a, b, true)
}

// EqualIgnoreNullability compares types ignoring top-level and nested
// nullability.
func EqualIgnoreNullability(a, b DataType) bool {
	return equal(a, b, false)
}

func equal(a, b DataType, checkNull bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.ID() != b.ID() {
		return false
	}
	if checkNull && a.Nullable() != b.Nullable() {
		return false
	}
	switch at := a.(type) {
	case *PrimitiveType:
		return at.ptype == b.(*PrimitiveType).ptype
	case *DecimalType:
		bt := b.(*DecimalType)
		return at.precision == bt.precision && at.scale == bt.scale
	case *ListType:
		return equal(at.elem, b.(*ListType).elem, checkNull)
	case *StructType:
		bt := b.(*StructType)
		if len(at.fields) != len(bt.fields) {
			return false
		}
		for i := range at.fields {
			if at.fields[i].Name != bt.fields[i].Name ||
				!equal(at.fields[i].Type, bt.fields[i].Type, checkNull) {
				return false
			}
		}
		return true
	case *ExtensionType:
		bt := b.(*ExtensionType)
		return at.extID == bt.extID &&
			string(at.metadata) == string(bt.metadata) &&
			equal(at.storage, bt.storage, checkNull)
	}
	return true
}
