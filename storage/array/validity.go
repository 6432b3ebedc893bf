package array

import (
	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

// ValidityKind distinguishes the four validity representations.
type ValidityKind uint8

const (
	KindNonNullable ValidityKind = iota
	KindAllValid
	KindAllInvalid
	KindExplicit
)

func (k ValidityKind) String() string {
	return [...]string{"non_nullable", "all_valid", "all_invalid", "explicit"}[k]
}

// Validity describes which positions of an array hold values. An explicit
// bitmap has one bit per element, set for valid positions.
type Validity struct {
	kind   ValidityKind
	bitmap *arrow.Bitmap
}

func NonNullable() Validity { return Validity{kind: KindNonNullable} }
func AllValid() Validity    { return Validity{kind: KindAllValid} }
func AllInvalid() Validity  { return Validity{kind: KindAllInvalid} }

// Explicit wraps a validity bitmap.
func Explicit(bm *arrow.Bitmap) Validity {
	return Validity{kind: KindExplicit, bitmap: bm}
}

// FromBitmap builds a nullable validity, collapsing uniform bitmaps.
func FromBitmap(bm *arrow.Bitmap) Validity {
	switch bm.CountSet() {
	case bm.Len():
		return AllValid()
	case 0:
		if bm.Len() == 0 {
			return AllValid()
		}
		return AllInvalid()
	}
	return Explicit(bm)
}

// FromNullability returns the trivial validity for n.
func FromNullability(n bool) Validity {
	if n {
		return AllValid()
	}
	return NonNullable()
}

func (v Validity) Kind() ValidityKind    { return v.kind }
func (v Validity) Bitmap() *arrow.Bitmap { return v.bitmap }
func (v Validity) Nullable() bool        { return v.kind != KindNonNullable }

// Check verifies v against an array of the given length and nullability.
func (v Validity) Check(length int, nullable bool) error {
	if v.kind == KindExplicit && v.bitmap.Len() != length {
		return errors.LengthMismatch("validity", "bitmap", length, v.bitmap.Len())
	}
	if v.Nullable() != nullable {
		return errors.InvalidArg("validity", "validity "+v.kind.String()+" does not match dtype nullability")
	}
	return nil
}

func (v Validity) IsValid(i int) bool {
	switch v.kind {
	case KindAllInvalid:
		return false
	case KindExplicit:
		return v.bitmap.IsSet(i)
	}
	return true
}

// NullCount returns the number of nulls among length elements.
func (v Validity) NullCount(length int) int {
	switch v.kind {
	case KindAllInvalid:
		return length
	case KindExplicit:
		return length - v.bitmap.CountSet()
	}
	return 0
}

// AllValidIn reports whether no position among length elements is null.
func (v Validity) AllValidIn(length int) bool {
	return v.NullCount(length) == 0
}

func (v Validity) Slice(start, stop int) Validity {
	if v.kind == KindExplicit {
		return Explicit(v.bitmap.Slice(start, stop))
	}
	return v
}

func (v Validity) Filter(mask *arrow.Bitmap) Validity {
	if v.kind != KindExplicit {
		return v
	}
	out := arrow.NewBitmap(0)
	for i := 0; i < mask.Len(); i++ {
		if mask.IsSet(i) {
			out.Append(v.bitmap.IsSet(i))
		}
	}
	return FromBitmap(out)
}

// Take gathers validity for indices; positions where the index itself is
// null are invalid.
func (v Validity) Take(indices *PrimitiveArray) Validity {
	idx := indices.Indices()
	idxValid := indices.validity
	if v.kind == KindNonNullable && idxValid.AllValidIn(len(idx)) {
		if idxValid.Nullable() {
			return AllValid()
		}
		return v
	}
	if v.kind == KindAllInvalid {
		return v
	}
	out := arrow.NewBitmap(len(idx))
	for i, j := range idx {
		if idxValid.IsValid(i) && v.IsValid(j) {
			out.Set(i)
		}
	}
	return FromBitmap(out)
}

// ToBitmap materializes v for length elements.
func (v Validity) ToBitmap(length int) *arrow.Bitmap {
	switch v.kind {
	case KindExplicit:
		return v.bitmap
	case KindAllInvalid:
		return arrow.NewBitmap(length)
	}
	return arrow.NewBitmapAllSet(length)
}

// CastNullability converts to a nullable or non-nullable validity. Narrowing
// fails when any of length elements is null.
func (v Validity) CastNullability(nullable bool, length int) (Validity, error) {
	if nullable {
		if v.kind == KindNonNullable {
			return AllValid(), nil
		}
		return v, nil
	}
	if v.NullCount(length) > 0 {
		return Validity{}, errors.InvalidArg("cast_nullability", "cannot narrow validity containing nulls")
	}
	return NonNullable(), nil
}

// And merges two validities; a position is valid when valid in both.
func (v Validity) And(o Validity, length int) Validity {
	switch {
	case v.kind == KindNonNullable && o.kind == KindNonNullable:
		return v
	case v.kind == KindAllInvalid || o.kind == KindAllInvalid:
		return AllInvalid()
	case v.kind != KindExplicit:
		if o.kind == KindExplicit {
			return o
		}
		return AllValid()
	case o.kind != KindExplicit:
		return v
	}
	return FromBitmap(v.bitmap.And(o.bitmap))
}

// ValidityFromBools builds a validity for a nullable array from bools.
func ValidityFromBools(valid []bool) Validity {
	return FromBitmap(arrow.NewBitmapFromBools(valid))
}
