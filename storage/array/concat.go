package array

import (
	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

// Concat joins arrays of dt end to end into one canonical array.
func Concat(dt arrow.DataType, arrays []Array) (Array, error) {
	canon := make([]Array, 0, len(arrays))
	total := 0
	for _, a := range arrays {
		if !arrow.EqualIgnoreNullability(a.DataType(), dt) {
			return nil, errors.TypeMismatch("concat", dt.Name(), a.DataType().Name())
		}
		c, err := Canonicalize(a)
		if err != nil {
			return nil, err
		}
		canon = append(canon, c)
		total += c.Len()
	}

	validity, err := concatValidity(canon, total, dt.Nullable())
	if err != nil {
		return nil, err
	}

	switch t := dt.(type) {
	case *arrow.NullType:
		return NewNullArray(total), nil
	case *arrow.BoolType:
		bits := arrow.NewBitmap(0)
		for _, c := range canon {
			b := c.(*BoolArray)
			for i := 0; i < b.length; i++ {
				bits.Append(b.bits.IsSet(i))
			}
		}
		return NewBoolArray(bits, validity)
	case *arrow.PrimitiveType:
		buf := arrow.NewBuffer(total * t.PType().ByteWidth())
		dst := buf.Bytes()
		off := 0
		for _, c := range canon {
			off += copy(dst[off:], c.(*PrimitiveArray).buffer.Bytes())
		}
		return NewPrimitiveArray(t.PType(), buf, validity)
	case *arrow.Utf8Type, *arrow.BinaryType:
		b := NewVarBinBuilder(dt)
		b.Reserve(total)
		for _, c := range canon {
			v := c.(*VarBinArray)
			for i := 0; i < v.length; i++ {
				b.Append(v.Bytes(i))
			}
		}
		return b.build(validity)
	case *arrow.DecimalType:
		out := make([]arrow.Decimal128, 0, total)
		for _, c := range canon {
			out = append(out, c.(*DecimalArray).Values()...)
		}
		return NewDecimalArray(t, arrow.WrapSlice(out), validity)
	case *arrow.StructType:
		fields := make([]Array, len(t.Fields()))
		for k, f := range t.Fields() {
			parts := make([]Array, len(canon))
			for i, c := range canon {
				parts[i] = c.(*StructArray).fields[k]
			}
			if fields[k], err = Concat(f.Type, parts); err != nil {
				return nil, err
			}
			if fields[k], err = Cast(fields[k], f.Type); err != nil {
				return nil, err
			}
		}
		return NewStructArray(t, total, fields, validity)
	case *arrow.ListType:
		offsets := []int64{0}
		elems := make([]Array, 0, len(canon))
		base := int64(0)
		for _, c := range canon {
			l := c.(*ListArray)
			offs := l.Offsets()
			e, err := Slice(l.elements, int(offs[0]), int(offs[len(offs)-1]))
			if err != nil {
				return nil, err
			}
			for i := 1; i < len(offs); i++ {
				offsets = append(offsets, base+offs[i]-offs[0])
			}
			base += offs[len(offs)-1] - offs[0]
			elems = append(elems, e)
		}
		elements, err := Concat(t.Elem(), elems)
		if err != nil {
			return nil, err
		}
		if elements, err = Cast(elements, t.Elem()); err != nil {
			return nil, err
		}
		return NewListArray(t, arrow.WrapSlice(offsets), elements, validity)
	case *arrow.ExtensionType:
		storages := make([]Array, len(canon))
		for i, c := range canon {
			storages[i] = c.(*ExtensionArray).storage
		}
		storage, err := Concat(t.Storage(), storages)
		if err != nil {
			return nil, err
		}
		if storage, err = Cast(storage, t.Storage()); err != nil {
			return nil, err
		}
		return NewExtensionArray(t, storage)
	}
	return nil, errors.UnsupportedType("concat", dt.Name(), "")
}

func concatValidity(arrays []Array, total int, nullable bool) (Validity, error) {
	if !nullable {
		for _, a := range arrays {
			v, err := a.Validity()
			if err != nil {
				return Validity{}, err
			}
			if v.NullCount(a.Len()) > 0 {
				return Validity{}, errors.InvalidArg("concat", "nulls in non-nullable concat")
			}
		}
		return NonNullable(), nil
	}
	bm := arrow.NewBitmap(0)
	for _, a := range arrays {
		v, err := a.Validity()
		if err != nil {
			return Validity{}, err
		}
		for i := 0; i < a.Len(); i++ {
			bm.Append(v.IsValid(i))
		}
	}
	if bm.Len() != total {
		return Validity{}, errors.LengthMismatch("concat", "validity", total, bm.Len())
	}
	return FromBitmap(bm), nil
}
