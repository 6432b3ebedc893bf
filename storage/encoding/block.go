package encoding

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/codec"
	lerrors "github.com/wzqhbustb/cascade/storage/errors"
)

const BlockID array.EncodingID = "cascade.block"

// DefaultFrameRows is the number of values compressed together.
const DefaultFrameRows = 1024

var blockOwners atomic.Uint64

// BlockArray compresses utf8 or binary values in frames of frameRows values
// with a general-purpose codec. Random access decompresses one frame through
// a shared LRU cache.
//
// Frame layout before compression: [rows+1 offsets:u32 LE][value bytes].
type BlockArray struct {
	array.Base
	codec     codec.Codec
	frameRows int
	data      *arrow.Buffer
	// compressed end offset and raw size of each frame
	frameEnds  []uint64
	frameSizes []uint64
	offset     int
	validity   array.Validity

	owner     uint64
	frameBase int
	cache     *codec.FrameCache
}

// NewBlock validates the frame index against length values starting at
// offset within the first frame.
func NewBlock(dt arrow.DataType, c codec.Codec, frameRows int, data *arrow.Buffer, frameEnds, frameSizes []uint64, offset, length int, validity array.Validity) (*BlockArray, error) {
	if !arrow.IsVarBin(dt) {
		return nil, lerrors.TypeMismatch("block", "utf8 or binary", dt.Name())
	}
	if frameRows < 1 {
		return nil, lerrors.InvalidArg("block", "frame rows must be positive")
	}
	if offset < 0 || offset >= frameRows {
		return nil, lerrors.InvalidArg("block", fmt.Sprintf("offset %d outside first frame", offset))
	}
	if len(frameEnds) != len(frameSizes) {
		return nil, lerrors.LengthMismatch("block", "frame sizes", len(frameEnds), len(frameSizes))
	}
	if need := (offset + length + frameRows - 1) / frameRows; len(frameEnds) < need {
		return nil, lerrors.LengthMismatch("block", "frames", need, len(frameEnds))
	}
	for k := range frameEnds {
		if frameEnds[k] > uint64(data.Len()) || (k > 0 && frameEnds[k] < frameEnds[k-1]) {
			return nil, lerrors.InvalidArg("block", fmt.Sprintf("frame %d end %d is invalid", k, frameEnds[k]))
		}
	}
	if err := validity.Check(length, dt.Nullable()); err != nil {
		return nil, err
	}
	return &BlockArray{
		Base:       array.NewBase(dt, length),
		codec:      c,
		frameRows:  frameRows,
		data:       data,
		frameEnds:  frameEnds,
		frameSizes: frameSizes,
		offset:     offset,
		validity:   validity,
		owner:      blockOwners.Add(1),
		cache:      codec.SharedFrameCache(),
	}, nil
}

func (b *BlockArray) Encoding() array.EncodingID        { return BlockID }
func (b *BlockArray) Codec() codec.Codec                { return b.codec }
func (b *BlockArray) FrameRows() int                    { return b.frameRows }
func (b *BlockArray) NumFrames() int                    { return len(b.frameEnds) }
func (b *BlockArray) IsValid(i int) bool                { return b.validity.IsValid(i) }
func (b *BlockArray) Validity() (array.Validity, error) { return b.validity, nil }

// WithCache routes frame lookups through c instead of the shared cache.
func (b *BlockArray) WithCache(c *codec.FrameCache) *BlockArray {
	out := *b
	out.cache = c
	return &out
}

func (b *BlockArray) compressedFrame(k int) []byte {
	start := uint64(0)
	if k > 0 {
		start = b.frameEnds[k-1]
	}
	return b.data.Bytes()[start:b.frameEnds[k]]
}

func (b *BlockArray) frame(k int) ([]byte, error) {
	key := codec.FrameKey{Owner: b.owner, Frame: b.frameBase + k}
	return b.cache.GetOrLoad(key, func() ([]byte, error) {
		raw, err := b.codec.Decompress(b.compressedFrame(k), int(b.frameSizes[k]))
		if err != nil {
			return nil, lerrors.DecodeFailed(string(BlockID), fmt.Sprintf("frame %d", b.frameBase+k), err)
		}
		if uint64(len(raw)) != b.frameSizes[k] {
			return nil, lerrors.DecodeSizeMismatch(string(BlockID), int(b.frameSizes[k]), len(raw))
		}
		return raw, nil
	})
}

// frameValue returns row r of a decompressed frame.
func frameValue(raw []byte, r int) ([]byte, error) {
	hdr := 4 * (r + 2)
	if hdr > len(raw) {
		return nil, lerrors.Corrupt(string(BlockID), fmt.Sprintf("row %d beyond frame header", r))
	}
	start := binary.LittleEndian.Uint32(raw[4*r:])
	end := binary.LittleEndian.Uint32(raw[4*(r+1):])
	// the first offset is the header size
	hdrSize := binary.LittleEndian.Uint32(raw[0:])
	if start > end || int(end) > len(raw) || start < hdrSize {
		return nil, lerrors.Corrupt(string(BlockID), fmt.Sprintf("row %d spans [%d, %d)", r, start, end))
	}
	return raw[start:end], nil
}

func (b *BlockArray) valueAt(i int) ([]byte, error) {
	abs := b.offset + i
	raw, err := b.frame(abs / b.frameRows)
	if err != nil {
		return nil, err
	}
	return frameValue(raw, abs%b.frameRows)
}

func (b *BlockArray) ScalarAt(i int) (arrow.Scalar, error) {
	v, err := b.valueAt(i)
	if err != nil {
		return arrow.Scalar{}, err
	}
	if b.DataType().ID() == arrow.UTF8 {
		return arrow.NewScalar(b.DataType(), string(v)), nil
	}
	return arrow.NewScalar(b.DataType(), append([]byte(nil), v...)), nil
}

// Slice keeps only the frames overlapping [start, stop).
func (b *BlockArray) Slice(start, stop int) (array.Array, error) {
	abs := b.offset + start
	first := abs / b.frameRows
	last := first
	offset := 0
	if stop > start {
		last = (b.offset+stop-1)/b.frameRows + 1
		offset = abs % b.frameRows
	}
	base := uint64(0)
	if first > 0 {
		base = b.frameEnds[first-1]
	}
	ends := make([]uint64, last-first)
	for k := range ends {
		ends[k] = b.frameEnds[first+k] - base
	}
	endByte := base
	if last > first {
		endByte = b.frameEnds[last-1]
	}
	out := &BlockArray{
		Base:       array.NewBase(b.DataType(), stop-start),
		codec:      b.codec,
		frameRows:  b.frameRows,
		data:       b.data.Slice(int(base), int(endByte)),
		frameEnds:  ends,
		frameSizes: b.frameSizes[first:last],
		offset:     offset,
		validity:   b.validity.Slice(start, stop),
		owner:      b.owner,
		frameBase:  b.frameBase + first,
		cache:      b.cache,
	}
	return out, nil
}

func (b *BlockArray) ToCanonical() (array.Array, error) {
	n := b.Len()
	offsets := make([]int64, n+1)
	var data []byte
	for i := 0; i < n; {
		abs := b.offset + i
		k := abs / b.frameRows
		raw, err := b.frame(k)
		if err != nil {
			return nil, err
		}
		for r := abs % b.frameRows; r < b.frameRows && i < n; r++ {
			v, err := frameValue(raw, r)
			if err != nil {
				return nil, err
			}
			data = append(data, v...)
			i++
			offsets[i] = int64(len(data))
		}
	}
	return array.NewVarBinArray(b.DataType(), arrow.NewBufferFrom(offsets), arrow.NewBufferBytes(data), b.validity)
}

func (b *BlockArray) Accept(v array.ArrayVisitor) error {
	if err := v.VisitBuffer(b.data); err != nil {
		return err
	}
	return v.VisitValidity(b.validity)
}

func (b *BlockArray) Metadata() ([]byte, error) {
	w := new(array.MetaWriter).
		Byte(byte(b.codec.Type())).
		Uvarint(uint64(b.frameRows)).
		Uvarint(uint64(b.offset)).
		Uvarint(uint64(len(b.frameEnds)))
	for k := range b.frameEnds {
		w.Uvarint(b.frameEnds[k]).Uvarint(b.frameSizes[k])
	}
	return w.Finish(), nil
}

func (b *BlockArray) Validate() error { return nil }

func (b *BlockArray) ComputeStatistic(stat array.Stat) (array.Precision, error) {
	if stat == array.StatNullCount {
		return exactU64(b.validity.NullCount(b.Len())), nil
	}
	return array.Precision{}, notImplemented("statistic "+stat.String(), BlockID)
}

func init() {
	array.Register(array.EncodingVTable{
		ID:        BlockID,
		Prototype: (*BlockArray)(nil),
		Decode: func(parts *array.ArrayParts, ctx *array.DecodeContext, dtype arrow.DataType, length int) (array.Array, error) {
			m := array.NewMetaReader(BlockID, parts.Metadata)
			ct := codec.Type(m.Byte())
			frameRows := int(m.Uvarint())
			offset := int(m.Uvarint())
			frames := int(m.Uvarint())
			if err := m.Err(); err != nil {
				return nil, err
			}
			if frames > length+1 {
				return nil, lerrors.Corrupt(string(BlockID), fmt.Sprintf("%d frames for %d values", frames, length))
			}
			ends := make([]uint64, frames)
			sizes := make([]uint64, frames)
			for k := 0; k < frames; k++ {
				ends[k], sizes[k] = m.Uvarint(), m.Uvarint()
			}
			if err := m.Err(); err != nil {
				return nil, err
			}
			if len(parts.Buffers) != 1 {
				return nil, lerrors.Corrupt(string(BlockID), fmt.Sprintf("expected 1 buffer, got %d", len(parts.Buffers)))
			}
			c, err := codec.Get(ct)
			if err != nil {
				return nil, err
			}
			validity, err := parts.DecodeValidity(length)
			if err != nil {
				return nil, err
			}
			return NewBlock(dtype, c, frameRows, parts.Buffers[0], ends, sizes, offset, length, validity)
		},
	})
}

// BlockEncode compresses a utf8 or binary array in frames of frameRows
// values. Null values are stored empty.
func BlockEncode(a array.Array, c codec.Codec, frameRows int) (*BlockArray, error) {
	if frameRows < 1 {
		frameRows = DefaultFrameRows
	}
	canon, err := array.Canonicalize(a)
	if err != nil {
		return nil, err
	}
	v, ok := canon.(*array.VarBinArray)
	if !ok {
		return nil, lerrors.UnsupportedType("block_encode", a.DataType().Name(), string(BlockID))
	}

	n := v.Len()
	var data []byte
	var ends, sizes []uint64
	var raw []byte
	for start := 0; start < n; start += frameRows {
		stop := min(start+frameRows, n)
		rows := stop - start
		raw = raw[:0]
		hdr := 4 * (rows + 1)
		pos := uint32(hdr)
		for i := start; i <= stop; i++ {
			raw = binary.LittleEndian.AppendUint32(raw, pos)
			if i < stop && v.IsValid(i) {
				pos += uint32(len(v.Bytes(i)))
			}
		}
		for i := start; i < stop; i++ {
			if v.IsValid(i) {
				raw = append(raw, v.Bytes(i)...)
			}
		}
		compressed, err := c.Compress(raw)
		if err != nil {
			return nil, lerrors.CompressionFailed(c.Type().String(), len(raw), err)
		}
		data = append(data, compressed...)
		ends = append(ends, uint64(len(data)))
		sizes = append(sizes, uint64(len(raw)))
	}
	return NewBlock(v.DataType(), c, frameRows, arrow.NewBufferBytes(data), ends, sizes, 0, n, v.RawValidity())
}
