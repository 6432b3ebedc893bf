package encoding

import (
	"fmt"
	"math/bits"

	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

const BitPackedID array.EncodingID = "cascade.bitpacked"

// BitPackChunk is the number of values packed per chunk. Packed buffers are
// padded to whole chunks.
const BitPackChunk = 1024

// BitPackedArray packs non-negative integers into bitWidth bits each.
// Values that do not fit are stored as patches.
type BitPackedArray struct {
	array.Base
	packed   *arrow.Buffer
	ptype    arrow.PType
	bitWidth int
	// offset of element 0 within the first chunk
	offset   int
	validity array.Validity
	patches  *array.Patches
}

func chunkBytes(bitWidth int) int { return BitPackChunk * bitWidth / 8 }

func numChunks(n int) int { return (n + BitPackChunk - 1) / BitPackChunk }

// NewBitPacked validates a packed buffer holding offset+length values.
func NewBitPacked(packed *arrow.Buffer, p arrow.PType, validity array.Validity, patches *array.Patches, bitWidth, offset, length int) (*BitPackedArray, error) {
	if !p.IsInt() {
		return nil, errors.InvalidArg("bitpacked", "integer ptype required, got "+p.String())
	}
	if bitWidth < 1 || bitWidth > p.BitWidth() {
		return nil, errors.InvalidArg("bitpacked", fmt.Sprintf("bit width %d outside 1..%d", bitWidth, p.BitWidth()))
	}
	if offset < 0 || offset >= BitPackChunk {
		return nil, errors.InvalidArg("bitpacked", fmt.Sprintf("offset %d outside first chunk", offset))
	}
	if want := numChunks(offset+length) * chunkBytes(bitWidth); packed.Len() != want {
		return nil, errors.LengthMismatch("bitpacked", "packed bytes", want, packed.Len())
	}
	nullable := validity.Nullable()
	if err := validity.Check(length, nullable); err != nil {
		return nil, err
	}
	if patches != nil && patches.Len() != length {
		return nil, errors.LengthMismatch("bitpacked", "patches", length, patches.Len())
	}
	return &BitPackedArray{
		Base:     array.NewBase(arrow.Primitive(p, arrow.Nullability(nullable)), length),
		packed:   packed,
		ptype:    p,
		bitWidth: bitWidth,
		offset:   offset,
		validity: validity,
		patches:  patches,
	}, nil
}

func (b *BitPackedArray) Encoding() array.EncodingID        { return BitPackedID }
func (b *BitPackedArray) BitWidth() int                     { return b.bitWidth }
func (b *BitPackedArray) Offset() int                       { return b.offset }
func (b *BitPackedArray) Patches() *array.Patches           { return b.patches }
func (b *BitPackedArray) Packed() *arrow.Buffer             { return b.packed }
func (b *BitPackedArray) IsValid(i int) bool                { return b.validity.IsValid(i) }
func (b *BitPackedArray) Validity() (array.Validity, error) { return b.validity, nil }

// WithPatches replaces the exception patches.
func (b *BitPackedArray) WithPatches(p *array.Patches) (*BitPackedArray, error) {
	return NewBitPacked(b.packed, b.ptype, b.validity, p, b.bitWidth, b.offset, b.Len())
}

func (b *BitPackedArray) unpacked(i int) uint64 {
	return unpackAt(b.packed.Bytes(), b.bitWidth, b.offset+i)
}

func (b *BitPackedArray) ScalarAt(i int) (arrow.Scalar, error) {
	if b.patches != nil {
		if s, found, err := b.patches.ScalarAt(i); err != nil || found {
			return s.WithDataType(b.DataType()), err
		}
	}
	return bitsScalar(b.DataType(), b.unpacked(i)), nil
}

// Slice drops the chunks before start and keeps the offset into the first
// remaining chunk.
func (b *BitPackedArray) Slice(start, stop int) (array.Array, error) {
	abs := b.offset + start
	firstChunk := abs / BitPackChunk
	lastChunk := numChunks(b.offset + stop)
	offset := abs % BitPackChunk
	if stop == start {
		lastChunk, offset = firstChunk, 0
	}
	cb := chunkBytes(b.bitWidth)
	var patches *array.Patches
	if b.patches != nil {
		var err error
		if patches, err = b.patches.Slice(start, stop); err != nil {
			return nil, err
		}
	}
	return NewBitPacked(
		b.packed.Slice(firstChunk*cb, lastChunk*cb),
		b.ptype,
		b.validity.Slice(start, stop),
		patches,
		b.bitWidth,
		offset,
		stop-start,
	)
}

func (b *BitPackedArray) ToCanonical() (array.Array, error) {
	values := make([]uint64, b.Len())
	unpackBits(b.packed.Bytes(), b.bitWidth, b.offset, b.Len(), values)
	base, err := fromBits(b.ptype, values, b.validity)
	if err != nil {
		return nil, err
	}
	if b.patches == nil {
		return base, nil
	}
	return array.ApplyPatches(base, b.patches)
}

func (b *BitPackedArray) Accept(v array.ArrayVisitor) error {
	if err := v.VisitBuffer(b.packed); err != nil {
		return err
	}
	if err := v.VisitValidity(b.validity); err != nil {
		return err
	}
	return array.VisitPatches(v, b.patches)
}

func (b *BitPackedArray) Metadata() ([]byte, error) {
	return new(array.MetaWriter).
		Byte(byte(b.bitWidth)).
		Uvarint(uint64(b.offset)).
		Patches(b.patches).
		Finish(), nil
}

func (b *BitPackedArray) Validate() error {
	if b.patches != nil {
		return b.patches.Validate()
	}
	return nil
}

// gather decodes the given positions and applies the matching patches.
func (b *BitPackedArray) gather(positions []int, validity array.Validity, patches *array.Patches) (array.Array, error) {
	values := make([]uint64, len(positions))
	for k, i := range positions {
		if validity.IsValid(k) {
			values[k] = b.unpacked(i)
		}
	}
	out, err := fromBits(b.ptype, values, validity)
	if err != nil {
		return nil, err
	}
	return array.ApplyPatches(out, patches)
}

func (b *BitPackedArray) Filter(mask *arrow.Bitmap) (array.Array, error) {
	var patches *array.Patches
	if b.patches != nil {
		var err error
		if patches, err = b.patches.Filter(mask); err != nil {
			return nil, err
		}
	}
	return b.gather(mask.SetIndices(), b.validity.Filter(mask), patches)
}

func (b *BitPackedArray) Take(indices *array.PrimitiveArray) (array.Array, error) {
	var patches *array.Patches
	if b.patches != nil {
		var err error
		if patches, err = b.patches.Take(indices); err != nil {
			return nil, err
		}
	}
	return b.gather(indices.Indices(), b.validity.Take(indices), patches)
}

func (b *BitPackedArray) ComputeStatistic(stat array.Stat) (array.Precision, error) {
	if stat == array.StatNullCount {
		return exactU64(b.validity.NullCount(b.Len())), nil
	}
	return array.Precision{}, notImplemented("statistic "+stat.String(), BitPackedID)
}

func init() {
	array.Register(array.EncodingVTable{
		ID:        BitPackedID,
		Prototype: (*BitPackedArray)(nil),
		Decode: func(parts *array.ArrayParts, ctx *array.DecodeContext, dtype arrow.DataType, length int) (array.Array, error) {
			p, ok := arrow.PTypeOf(dtype)
			if !ok {
				return nil, errors.TypeMismatch("decode bitpacked", "integer", dtype.Name())
			}
			r := array.NewMetaReader(BitPackedID, parts.Metadata)
			bitWidth := int(r.Byte())
			offset := int(r.Uvarint())
			pm := r.Patches()
			if err := r.Err(); err != nil {
				return nil, err
			}
			if len(parts.Buffers) != 1 {
				return nil, errors.Corrupt(string(BitPackedID), fmt.Sprintf("expected 1 buffer, got %d", len(parts.Buffers)))
			}
			validity, err := parts.DecodeValidity(length)
			if err != nil {
				return nil, err
			}
			patches, err := ctx.DecodePatches(parts, pm, length, dtype.WithNullability(arrow.NonNullable))
			if err != nil {
				return nil, err
			}
			return NewBitPacked(parts.Buffers[0], p, validity, patches, bitWidth, offset, length)
		},
	})
}

// BitPack packs a into bitWidth bits per value. Valid values that do not fit,
// negative ones included, become patches.
func BitPack(a array.Array, bitWidth int) (*BitPackedArray, error) {
	p, err := primitiveOf(a, "bitpack")
	if err != nil {
		return nil, err
	}
	pt := p.PType()
	if !pt.IsInt() {
		return nil, errors.UnsupportedType("bitpack", a.DataType().Name(), string(BitPackedID))
	}
	if bitWidth < 1 || bitWidth > pt.BitWidth() {
		return nil, errors.InvalidArg("bitpack", fmt.Sprintf("bit width %d outside 1..%d", bitWidth, pt.BitWidth()))
	}
	n := p.Len()
	wide := array.ToWide[uint64](p)
	limit := uint64(1)<<bitWidth - 1
	if bitWidth == 64 {
		limit = ^uint64(0)
	}
	var exceptions []uint64
	for i, v := range wide {
		switch {
		case !p.IsValid(i):
			wide[i] = 0
		case pt.IsSigned() && int64(v) < 0, v > limit:
			exceptions = append(exceptions, uint64(i))
			wide[i] = 0
		}
	}

	packed := arrow.NewBuffer(numChunks(n) * chunkBytes(bitWidth))
	packBits(packed.Bytes(), wide, bitWidth)

	var patches *array.Patches
	if len(exceptions) > 0 {
		indices := narrowUnsigned(exceptions)
		values, err := array.Take(p, indices)
		if err != nil {
			return nil, err
		}
		if values, err = array.Cast(values, p.DataType().WithNullability(arrow.NonNullable)); err != nil {
			return nil, err
		}
		if patches, err = array.NewPatches(n, 0, indices, values); err != nil {
			return nil, err
		}
	}
	return NewBitPacked(packed, pt, p.RawValidity(), patches, bitWidth, 0, n)
}

// BitWidthFreq counts valid values by the number of bits they need. Negative
// values count at the full width.
func BitWidthFreq(a array.Array) ([]int, error) {
	p, err := primitiveOf(a, "bit_width_freq")
	if err != nil {
		return nil, err
	}
	pt := p.PType()
	if !pt.IsInt() {
		return nil, errors.UnsupportedType("bit_width_freq", a.DataType().Name(), string(BitPackedID))
	}
	freq := make([]int, pt.BitWidth()+1)
	for i, v := range array.ToWide[uint64](p) {
		if !p.IsValid(i) {
			continue
		}
		if pt.IsSigned() && int64(v) < 0 {
			freq[pt.BitWidth()]++
			continue
		}
		freq[bits.Len64(v)]++
	}
	return freq, nil
}

// BestBitWidth picks the smallest width, at least one, that covers the given
// fraction of valid values.
func BestBitWidth(freq []int, percentile float64) int {
	total := 0
	for _, c := range freq {
		total += c
	}
	if total == 0 {
		return 1
	}
	need := int(float64(total)*percentile + 0.5)
	covered := 0
	for w, c := range freq {
		covered += c
		if covered >= need {
			return max(w, 1)
		}
	}
	return len(freq) - 1
}
