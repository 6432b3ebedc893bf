package encoding

import (
	"fmt"
	"math"
	"math/bits"
	"sort"

	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

const ALPRDID array.EncodingID = "cascade.alprd"

const (
	// MaxALPRDDictSize bounds the left-part dictionary.
	MaxALPRDDictSize = 8
	maxLeftBitWidth  = 16
)

// ALPRDDictionary describes how float bits are split: the low RightBitWidth
// bits are stored as is, the high bits through a small dictionary.
type ALPRDDictionary struct {
	RightBitWidth int
	Left          []uint16
}

func (d *ALPRDDictionary) code(left uint16) (int, bool) {
	for i, v := range d.Left {
		if v == left {
			return i, true
		}
	}
	return 0, false
}

// ALPRDArray stores the bits of each float as a dictionary code for the high
// part and the raw low part. High parts missing from the dictionary are
// patched.
type ALPRDArray struct {
	array.Base
	dict       ALPRDDictionary
	leftCodes  array.Array
	right      array.Array
	exceptions *array.Patches
}

func bitsPType(p arrow.PType) arrow.PType {
	if p == arrow.F32 {
		return arrow.U32
	}
	return arrow.U64
}

// NewALPRD builds an ALP-RD array. leftCodes carries the validity; right
// holds unsigned bits of the float's width.
func NewALPRD(fp arrow.PType, dict ALPRDDictionary, leftCodes, right array.Array, exceptions *array.Patches) (*ALPRDArray, error) {
	if fp != arrow.F32 && fp != arrow.F64 {
		return nil, errors.InvalidArg("alprd", "float ptype required, got "+fp.String())
	}
	if len(dict.Left) == 0 || len(dict.Left) > MaxALPRDDictSize {
		return nil, errors.InvalidArg("alprd", fmt.Sprintf("dictionary size %d outside 1..%d", len(dict.Left), MaxALPRDDictSize))
	}
	if dict.RightBitWidth < fp.BitWidth()-maxLeftBitWidth || dict.RightBitWidth >= fp.BitWidth() {
		return nil, errors.InvalidArg("alprd", fmt.Sprintf("right bit width %d out of range", dict.RightBitWidth))
	}
	cp, ok := arrow.PTypeOf(leftCodes.DataType())
	if !ok || !cp.IsUnsigned() {
		return nil, errors.InvalidArg("alprd", "left codes must be unsigned, got "+leftCodes.DataType().Name())
	}
	if err := requireUnsigned("alprd", right); err != nil {
		return nil, err
	}
	if rp, _ := arrow.PTypeOf(right.DataType()); rp != bitsPType(fp) {
		return nil, errors.TypeMismatch("alprd", bitsPType(fp).String(), right.DataType().Name())
	}
	if leftCodes.Len() != right.Len() {
		return nil, errors.LengthMismatch("alprd", "right parts", leftCodes.Len(), right.Len())
	}
	if exceptions != nil {
		if exceptions.Len() != leftCodes.Len() {
			return nil, errors.LengthMismatch("alprd", "exceptions", leftCodes.Len(), exceptions.Len())
		}
		if ep, _ := arrow.PTypeOf(exceptions.DataType()); ep != arrow.U16 {
			return nil, errors.TypeMismatch("alprd", "u16", exceptions.DataType().Name())
		}
	}
	return &ALPRDArray{
		Base:       array.NewBase(arrow.Primitive(fp, arrow.Nullability(leftCodes.DataType().Nullable())), leftCodes.Len()),
		dict:       dict,
		leftCodes:  leftCodes,
		right:      right,
		exceptions: exceptions,
	}, nil
}

func (r *ALPRDArray) Encoding() array.EncodingID        { return ALPRDID }
func (r *ALPRDArray) Dictionary() ALPRDDictionary       { return r.dict }
func (r *ALPRDArray) LeftCodes() array.Array            { return r.leftCodes }
func (r *ALPRDArray) Right() array.Array                { return r.right }
func (r *ALPRDArray) Exceptions() *array.Patches        { return r.exceptions }
func (r *ALPRDArray) IsValid(i int) bool                { return r.leftCodes.IsValid(i) }
func (r *ALPRDArray) Validity() (array.Validity, error) { return r.leftCodes.Validity() }

func (r *ALPRDArray) ptype() arrow.PType {
	p, _ := arrow.PTypeOf(r.DataType())
	return p
}

func (r *ALPRDArray) join(left uint16, right uint64) float64 {
	b := uint64(left)<<r.dict.RightBitWidth | right
	if r.ptype() == arrow.F32 {
		return float64(math.Float32frombits(uint32(b)))
	}
	return math.Float64frombits(b)
}

func (r *ALPRDArray) ScalarAt(i int) (arrow.Scalar, error) {
	var left uint16
	if s, found, err := r.exceptionAt(i); err != nil {
		return arrow.Scalar{}, err
	} else if found {
		v, _ := s.AsUint64()
		left = uint16(v)
	} else {
		cs, err := r.leftCodes.ScalarAt(i)
		if err != nil {
			return arrow.Scalar{}, err
		}
		c, _ := cs.AsUint64()
		if c >= uint64(len(r.dict.Left)) {
			return arrow.Scalar{}, errors.OutOfBounds("alprd", int(c), len(r.dict.Left))
		}
		left = r.dict.Left[c]
	}
	rs, err := r.right.ScalarAt(i)
	if err != nil {
		return arrow.Scalar{}, err
	}
	right, _ := rs.AsUint64()
	return arrow.NewScalar(r.DataType(), r.join(left, right)), nil
}

func (r *ALPRDArray) exceptionAt(i int) (arrow.Scalar, bool, error) {
	if r.exceptions == nil {
		return arrow.Scalar{}, false, nil
	}
	return r.exceptions.ScalarAt(i)
}

func (r *ALPRDArray) Slice(start, stop int) (array.Array, error) {
	codes, err := array.Slice(r.leftCodes, start, stop)
	if err != nil {
		return nil, err
	}
	right, err := array.Slice(r.right, start, stop)
	if err != nil {
		return nil, err
	}
	var exceptions *array.Patches
	if r.exceptions != nil {
		if exceptions, err = r.exceptions.Slice(start, stop); err != nil {
			return nil, err
		}
	}
	return NewALPRD(r.ptype(), r.dict, codes, right, exceptions)
}

func (r *ALPRDArray) ToCanonical() (array.Array, error) {
	codes, err := primitiveOf(r.leftCodes, "alprd")
	if err != nil {
		return nil, err
	}
	rights, err := unsignedValues(r.right, "alprd")
	if err != nil {
		return nil, err
	}
	n := r.Len()
	lefts := make([]uint16, n)
	for i, c := range array.ToWide[uint64](codes) {
		if codes.IsValid(i) && c < uint64(len(r.dict.Left)) {
			lefts[i] = r.dict.Left[c]
		}
	}
	// 异常位置使用原始高位
	if r.exceptions != nil {
		ev, err := unsignedValues(r.exceptions.Values(), "alprd")
		if err != nil {
			return nil, err
		}
		for k, pos := range r.exceptions.Positions() {
			lefts[pos] = uint16(ev[k])
		}
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = r.join(lefts[i], rights[i])
	}
	return array.FromWide(r.ptype(), out, codes.RawValidity())
}

func (r *ALPRDArray) Accept(v array.ArrayVisitor) error {
	if err := v.VisitChild("left_codes", r.leftCodes); err != nil {
		return err
	}
	if err := v.VisitChild("right", r.right); err != nil {
		return err
	}
	return array.VisitPatches(v, r.exceptions)
}

func (r *ALPRDArray) Metadata() ([]byte, error) {
	cp, _ := arrow.PTypeOf(r.leftCodes.DataType())
	w := new(array.MetaWriter).
		Byte(byte(r.dict.RightBitWidth)).
		Uvarint(uint64(len(r.dict.Left)))
	for _, l := range r.dict.Left {
		w.Uvarint(uint64(l))
	}
	return w.Byte(byte(cp)).Patches(r.exceptions).Finish(), nil
}

func (r *ALPRDArray) Validate() error {
	codes, err := unsignedValues(r.leftCodes, "alprd")
	if err != nil {
		return err
	}
	for i, c := range codes {
		if r.leftCodes.IsValid(i) && c >= uint64(len(r.dict.Left)) {
			return errors.OutOfBounds("alprd", int(c), len(r.dict.Left))
		}
	}
	if r.exceptions != nil {
		return r.exceptions.Validate()
	}
	return nil
}

func (r *ALPRDArray) Filter(mask *arrow.Bitmap) (array.Array, error) {
	codes, err := array.Filter(r.leftCodes, mask)
	if err != nil {
		return nil, err
	}
	right, err := array.Filter(r.right, mask)
	if err != nil {
		return nil, err
	}
	var exceptions *array.Patches
	if r.exceptions != nil {
		if exceptions, err = r.exceptions.Filter(mask); err != nil {
			return nil, err
		}
	}
	return NewALPRD(r.ptype(), r.dict, codes, right, exceptions)
}

// Take gathers through the children. Null indices produce null codes and a
// zero right part.
func (r *ALPRDArray) Take(indices *array.PrimitiveArray) (array.Array, error) {
	codes, err := array.Take(r.leftCodes, indices)
	if err != nil {
		return nil, err
	}
	rights, err := unsignedValues(r.right, "alprd")
	if err != nil {
		return nil, err
	}
	idx := indices.Indices()
	gathered := make([]uint64, len(idx))
	for k, i := range idx {
		if indices.IsValid(k) {
			gathered[k] = rights[i]
		}
	}
	right, err := fromBits(bitsPType(r.ptype()), gathered, array.NonNullable())
	if err != nil {
		return nil, err
	}
	var exceptions *array.Patches
	if r.exceptions != nil {
		if exceptions, err = r.exceptions.Take(indices); err != nil {
			return nil, err
		}
	}
	return NewALPRD(r.ptype(), r.dict, codes, right, exceptions)
}

func (r *ALPRDArray) ComputeStatistic(stat array.Stat) (array.Precision, error) {
	if stat == array.StatNullCount {
		n, err := array.NullCount(r.leftCodes)
		if err != nil {
			return array.Precision{}, err
		}
		return exactU64(n), nil
	}
	return array.Precision{}, notImplemented("statistic "+stat.String(), ALPRDID)
}

func init() {
	array.Register(array.EncodingVTable{
		ID:        ALPRDID,
		Prototype: (*ALPRDArray)(nil),
		Decode: func(parts *array.ArrayParts, ctx *array.DecodeContext, dtype arrow.DataType, length int) (array.Array, error) {
			fp, ok := arrow.PTypeOf(dtype)
			if !ok || !fp.IsFloat() {
				return nil, errors.TypeMismatch("decode alprd", "float", dtype.Name())
			}
			m := array.NewMetaReader(ALPRDID, parts.Metadata)
			dict := ALPRDDictionary{RightBitWidth: int(m.Byte())}
			n := int(m.Uvarint())
			if n > MaxALPRDDictSize {
				return nil, errors.Corrupt(string(ALPRDID), fmt.Sprintf("dictionary of %d entries", n))
			}
			for i := 0; i < n; i++ {
				dict.Left = append(dict.Left, uint16(m.Uvarint()))
			}
			cp := arrow.PType(m.Byte())
			pm := m.Patches()
			if err := m.Err(); err != nil {
				return nil, err
			}
			lp, err := childAt(parts, "left_codes")
			if err != nil {
				return nil, err
			}
			rp, err := childAt(parts, "right")
			if err != nil {
				return nil, err
			}
			codes, err := ctx.DecodeChild(lp, arrow.Primitive(cp, arrow.Nullability(dtype.Nullable())), length)
			if err != nil {
				return nil, err
			}
			right, err := ctx.DecodeChild(rp, arrow.Primitive(bitsPType(fp), arrow.NonNullable), length)
			if err != nil {
				return nil, err
			}
			exceptions, err := ctx.DecodePatches(parts, pm, length, arrow.Primitive(arrow.U16, arrow.NonNullable))
			if err != nil {
				return nil, err
			}
			return NewALPRD(fp, dict, codes, right, exceptions)
		},
	})
}

func floatBits(p *array.PrimitiveArray) []uint64 {
	out := make([]uint64, p.Len())
	if p.PType() == arrow.F32 {
		for i, v := range array.Values[float32](p) {
			out[i] = uint64(math.Float32bits(v))
		}
		return out
	}
	for i, v := range array.Values[float64](p) {
		out[i] = math.Float64bits(v)
	}
	return out
}

// FindALPRDDictionary tries every split point over a sample of the valid
// values and keeps the one with the smallest estimated size.
func FindALPRDDictionary(a array.Array) (*ALPRDDictionary, error) {
	p, err := primitiveOf(a, "alprd_dictionary")
	if err != nil {
		return nil, err
	}
	if !p.PType().IsFloat() {
		return nil, errors.UnsupportedType("alprd_dictionary", a.DataType().Name(), string(ALPRDID))
	}
	all := floatBits(p)
	sample := make([]uint64, 0, min(len(all), alpSampleSize))
	step := max(len(all)/alpSampleSize, 1)
	for i := 0; i < len(all) && len(sample) < alpSampleSize; i += step {
		if p.IsValid(i) {
			sample = append(sample, all[i])
		}
	}
	width := p.PType().BitWidth()

	var best *ALPRDDictionary
	bestSize := math.MaxInt
	for lw := 1; lw <= maxLeftBitWidth; lw++ {
		rw := width - lw
		dict, exceptions := buildLeftDict(sample, rw)
		codeBits := max(bits.Len(uint(len(dict)-1)), 1)
		size := len(sample)*(rw+codeBits) + exceptions*(maxLeftBitWidth+32)
		if size < bestSize {
			best = &ALPRDDictionary{RightBitWidth: rw, Left: dict}
			bestSize = size
		}
	}
	return best, nil
}

// buildLeftDict keeps the most frequent left parts and counts the rest.
func buildLeftDict(sample []uint64, rightWidth int) ([]uint16, int) {
	freq := make(map[uint16]int)
	for _, b := range sample {
		freq[uint16(b>>rightWidth)]++
	}
	lefts := make([]uint16, 0, len(freq))
	for l := range freq {
		lefts = append(lefts, l)
	}
	sort.Slice(lefts, func(i, j int) bool {
		if freq[lefts[i]] != freq[lefts[j]] {
			return freq[lefts[i]] > freq[lefts[j]]
		}
		return lefts[i] < lefts[j]
	})
	if len(lefts) == 0 {
		lefts = append(lefts, 0)
	}
	keep := min(len(lefts), MaxALPRDDictSize)
	exceptions := 0
	for _, l := range lefts[keep:] {
		exceptions += freq[l]
	}
	return lefts[:keep], exceptions
}

// ALPRDEncode splits each float with dict, searching for one when dict is
// nil. Null slots get code zero and a zero right part.
func ALPRDEncode(a array.Array, dict *ALPRDDictionary) (*ALPRDArray, error) {
	p, err := primitiveOf(a, "alprd_encode")
	if err != nil {
		return nil, err
	}
	fp := p.PType()
	if fp != arrow.F32 && fp != arrow.F64 {
		return nil, errors.UnsupportedType("alprd_encode", a.DataType().Name(), string(ALPRDID))
	}
	if dict == nil {
		if dict, err = FindALPRDDictionary(p); err != nil {
			return nil, err
		}
	}
	all := floatBits(p)
	rightMask := uint64(1)<<dict.RightBitWidth - 1
	codes := make([]uint64, len(all))
	rights := make([]uint64, len(all))
	var excIdx, excVals []uint64
	for i, b := range all {
		if !p.IsValid(i) {
			continue
		}
		rights[i] = b & rightMask
		left := uint16(b >> dict.RightBitWidth)
		if c, ok := dict.code(left); ok {
			codes[i] = uint64(c)
			continue
		}
		excIdx = append(excIdx, uint64(i))
		excVals = append(excVals, uint64(left))
	}

	right, err := fromBits(bitsPType(fp), rights, array.NonNullable())
	if err != nil {
		return nil, err
	}
	var exceptions *array.Patches
	if len(excIdx) > 0 {
		vals, err := array.FromWide(arrow.U16, excVals, array.NonNullable())
		if err != nil {
			return nil, err
		}
		if exceptions, err = array.NewPatches(len(all), 0, narrowUnsigned(excIdx), vals); err != nil {
			return nil, err
		}
	}
	leftCodes := narrowUnsignedValidity(codes, p.RawValidity())
	return NewALPRD(fp, *dict, leftCodes, right, exceptions)
}
