package array

import (
	"sort"

	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

// Patches overrides a sparse set of positions of a base array. Indices are
// unsigned, strictly increasing and shifted by offset: position i of the
// patched array is patched when i+offset appears in indices.
type Patches struct {
	length  int
	offset  int
	indices Array
	values  Array
}

// NewPatches validates and builds patches for an array of length elements.
func NewPatches(length, offset int, indices, values Array) (*Patches, error) {
	p, ok := arrow.PTypeOf(indices.DataType())
	if !ok || !p.IsUnsigned() {
		return nil, errors.InvalidArg("patches", "indices must be unsigned integers, got "+indices.DataType().Name())
	}
	if indices.DataType().Nullable() {
		return nil, errors.InvalidArg("patches", "indices must be non-nullable")
	}
	if indices.Len() != values.Len() {
		return nil, errors.LengthMismatch("patches", "values", indices.Len(), values.Len())
	}
	patches := &Patches{length: length, offset: offset, indices: indices, values: values}
	if indices.Len() > 0 {
		last := patches.indexAt(indices.Len() - 1)
		if last < uint64(offset) || last-uint64(offset) >= uint64(length) {
			return nil, errors.OutOfBounds("patches", int(last)-offset, length)
		}
		first := patches.indexAt(0)
		if first < uint64(offset) {
			return nil, errors.OutOfBounds("patches", int(first)-offset, length)
		}
	}
	return patches, nil
}

func (p *Patches) Len() int          { return p.length }
func (p *Patches) Offset() int       { return p.offset }
func (p *Patches) Indices() Array    { return p.indices }
func (p *Patches) Values() Array     { return p.values }
func (p *Patches) NumPatches() int   { return p.indices.Len() }
func (p *Patches) DataType() arrow.DataType { return p.values.DataType() }

// Validate checks that indices are strictly increasing.
func (p *Patches) Validate() error {
	prev := uint64(0)
	for k := 0; k < p.indices.Len(); k++ {
		idx := p.indexAt(k)
		if k > 0 && idx <= prev {
			return errors.InvalidArg("patches", "indices must be strictly increasing")
		}
		prev = idx
	}
	return nil
}

func (p *Patches) indexAt(k int) uint64 {
	if prim, ok := p.indices.(*PrimitiveArray); ok {
		return prim.Uint64At(k)
	}
	s, err := p.indices.ScalarAt(k)
	if err != nil {
		panic(err)
	}
	v, _ := s.AsUint64()
	return v
}

// IndexAt returns the patched position, relative to the patched array, of the
// k-th patch.
func (p *Patches) IndexAt(k int) int {
	return int(p.indexAt(k)) - p.offset
}

// Search returns the patch number covering position i.
func (p *Patches) Search(i int) (int, bool) {
	target := uint64(i + p.offset)
	n := p.indices.Len()
	k := sort.Search(n, func(k int) bool { return p.indexAt(k) >= target })
	return k, k < n && p.indexAt(k) == target
}

// ScalarAt returns the patched value at position i, if any.
func (p *Patches) ScalarAt(i int) (arrow.Scalar, bool, error) {
	k, ok := p.Search(i)
	if !ok {
		return arrow.Scalar{}, false, nil
	}
	s, err := ScalarAt(p.values, k)
	return s, true, err
}

// Slice restricts patches to positions [start, stop). It returns nil when no
// patch falls in range.
func (p *Patches) Slice(start, stop int) (*Patches, error) {
	lo, _ := p.Search(start)
	hi, _ := p.Search(stop)
	if lo == hi {
		return nil, nil
	}
	indices, err := Slice(p.indices, lo, hi)
	if err != nil {
		return nil, err
	}
	values, err := Slice(p.values, lo, hi)
	if err != nil {
		return nil, err
	}
	return &Patches{length: stop - start, offset: p.offset + start, indices: indices, values: values}, nil
}

// Positions returns every patched position relative to the patched array.
func (p *Patches) Positions() []int {
	out := make([]int, p.indices.Len())
	for k := range out {
		out[k] = p.IndexAt(k)
	}
	return out
}

// Filter keeps patches at positions set in mask, renumbered to the filtered
// array. It returns nil when none survive.
func (p *Patches) Filter(mask *arrow.Bitmap) (*Patches, error) {
	positions := p.Positions()
	var keep []int
	var newIdx []uint64
	// rank[i] is the filtered position of i, valid only when mask is set at i
	rank, r := 0, 0
	for k, pos := range positions {
		for ; r < pos; r++ {
			if mask.IsSet(r) {
				rank++
			}
		}
		if mask.IsSet(pos) {
			keep = append(keep, k)
			newIdx = append(newIdx, uint64(rank))
		}
	}
	if len(keep) == 0 {
		return nil, nil
	}
	values, err := Take(p.values, FromSlice(intsToU64(keep), NonNullable()))
	if err != nil {
		return nil, err
	}
	return NewPatches(mask.CountSet(), 0, FromSlice(newIdx, NonNullable()), values)
}

// Take gathers patched positions for indices. The result maps output
// positions to patch values and is nil when no index hits a patch.
func (p *Patches) Take(indices *PrimitiveArray) (*Patches, error) {
	idx := indices.Indices()
	var outPos []uint64
	var from []uint64
	for i, j := range idx {
		if !indices.IsValid(i) {
			continue
		}
		if k, ok := p.Search(j); ok {
			outPos = append(outPos, uint64(i))
			from = append(from, uint64(k))
		}
	}
	if len(outPos) == 0 {
		return nil, nil
	}
	values, err := Take(p.values, FromSlice(from, NonNullable()))
	if err != nil {
		return nil, err
	}
	return NewPatches(len(idx), 0, FromSlice(outPos, NonNullable()), values)
}

// CastValues converts patch values to dt.
func (p *Patches) CastValues(dt arrow.DataType) (*Patches, error) {
	values, err := Cast(p.values, dt)
	if err != nil {
		return nil, err
	}
	return &Patches{length: p.length, offset: p.offset, indices: p.indices, values: values}, nil
}

// WithChildren returns patches over replacement indices and values, as used
// when the compressor replaces them with encoded arrays.
func (p *Patches) WithChildren(indices, values Array) (*Patches, error) {
	return NewPatches(p.length, p.offset, indices, values)
}

func intsToU64(v []int) []uint64 {
	out := make([]uint64, len(v))
	for i, x := range v {
		out[i] = uint64(x)
	}
	return out
}

// ApplyPatches canonicalizes base and overwrites the patched positions.
func ApplyPatches(base Array, p *Patches) (Array, error) {
	canon, err := Canonicalize(base)
	if p == nil || p.NumPatches() == 0 {
		return canon, err
	}
	if err != nil {
		return nil, err
	}
	if p.length != canon.Len() {
		return nil, errors.LengthMismatch("apply_patches", "base", p.length, canon.Len())
	}
	values, err := Cast(p.values, canon.DataType())
	if err != nil {
		return nil, err
	}
	if prim, ok := canon.(*PrimitiveArray); ok {
		if pv, err := Canonicalize(values); err == nil {
			return patchPrimitive(prim, p, pv.(*PrimitiveArray))
		}
	}
	b, err := NewBuilder(canon.DataType())
	if err != nil {
		return nil, err
	}
	b.Reserve(canon.Len())
	positions := p.Positions()
	k := 0
	for i := 0; i < canon.Len(); i++ {
		var s arrow.Scalar
		if k < len(positions) && positions[k] == i {
			s, err = ScalarAt(values, k)
			k++
		} else {
			s, err = ScalarAt(canon, i)
		}
		if err != nil {
			return nil, err
		}
		if err := b.AppendScalar(s); err != nil {
			return nil, err
		}
	}
	return b.NewArray()
}

func patchPrimitive(base *PrimitiveArray, p *Patches, values *PrimitiveArray) (Array, error) {
	w := base.ptype.ByteWidth()
	out := arrow.NewBuffer(base.buffer.Len())
	dst := out.Bytes()
	copy(dst, base.buffer.Bytes())
	src := values.buffer.Bytes()
	positions := p.Positions()
	for k, pos := range positions {
		copy(dst[pos*w:(pos+1)*w], src[k*w:(k+1)*w])
	}
	validity := base.validity
	if validity.Nullable() && (validity.kind != KindAllValid || !values.validity.AllValidIn(values.length)) {
		bm := validity.ToBitmap(base.length).Clone()
		for k, pos := range positions {
			if values.IsValid(k) {
				bm.Set(pos)
			} else {
				bm.Clear(pos)
			}
		}
		validity = FromBitmap(bm)
	}
	return NewPrimitiveArray(base.ptype, out, validity)
}
