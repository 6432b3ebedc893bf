// Package encoding implements the compressed physical encodings of the array
// model. Every encoding embeds array.Base, validates in its constructor,
// registers a vtable with the default registry in init and rebuilds itself
// from its parts.
package encoding

import (
	"math/bits"

	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

// primitiveOf canonicalizes a and requires a primitive result.
func primitiveOf(a array.Array, op string) (*array.PrimitiveArray, error) {
	c, err := array.Canonicalize(a)
	if err != nil {
		return nil, err
	}
	if ext, ok := c.(*array.ExtensionArray); ok {
		c = ext.Storage()
	}
	p, ok := c.(*array.PrimitiveArray)
	if !ok {
		return nil, errors.TypeMismatch(op, "primitive", a.DataType().Name())
	}
	return p, nil
}

// narrowUnsigned stores values in the narrowest unsigned ptype that holds
// their maximum.
func narrowUnsigned(values []uint64) *array.PrimitiveArray {
	return narrowUnsignedValidity(values, array.NonNullable())
}

func narrowUnsignedValidity(values []uint64, validity array.Validity) *array.PrimitiveArray {
	var hi uint64
	for _, v := range values {
		hi = max(hi, v)
	}
	arr, err := array.FromWide(arrow.UnsignedForBits(bits.Len64(hi)), values, validity)
	if err != nil {
		panic(err)
	}
	return arr
}

// unsignedValues widens a canonical unsigned child.
func unsignedValues(a array.Array, op string) ([]uint64, error) {
	p, err := primitiveOf(a, op)
	if err != nil {
		return nil, err
	}
	if !p.PType().IsUnsigned() {
		return nil, errors.TypeMismatch(op, "unsigned integers", p.DataType().Name())
	}
	return array.ToWide[uint64](p), nil
}

func requireUnsigned(op string, a array.Array) error {
	p, ok := arrow.PTypeOf(a.DataType())
	if !ok || !p.IsUnsigned() {
		return errors.InvalidArg(op, "expected unsigned integers, got "+a.DataType().Name())
	}
	if a.DataType().Nullable() {
		return errors.InvalidArg(op, "expected non-nullable integers")
	}
	return nil
}

// validityOf returns the logical validity of a.
func validityOf(a array.Array) array.Validity {
	v, err := a.Validity()
	if err != nil {
		return array.FromNullability(a.DataType().Nullable())
	}
	return v
}

// scalarHolds evaluates op over two scalars.
func scalarHolds(l, r arrow.Scalar, op array.Operator) (bool, error) {
	if op == array.Eq || op == array.NotEq {
		if _, ok := l.Value().([]arrow.Scalar); ok {
			return l.Equal(r) == (op == array.Eq), nil
		}
	}
	c, err := l.Compare(r)
	if err != nil {
		return false, err
	}
	return op.Holds(c), nil
}

func exactU64(v int) array.Precision {
	return array.Exact(arrow.UintScalar(arrow.U64, uint64(v), arrow.NonNullable))
}

func exactBool(v bool) array.Precision {
	return array.Exact(arrow.BoolScalar(v, arrow.NonNullable))
}

func notImplemented(op string, id array.EncodingID) error {
	return errors.NotImplemented(op, string(id))
}

// childAt returns the child parts recorded under name.
func childAt(parts *array.ArrayParts, name string) (*array.ArrayParts, error) {
	c, ok := parts.Child(name)
	if !ok {
		return nil, errors.Corrupt(string(parts.Encoding), "missing child "+name)
	}
	return c, nil
}
