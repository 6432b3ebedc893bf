package array

import (
	"encoding/binary"
	"math"

	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

// MetaWriter appends varint encoded metadata fields.
type MetaWriter struct {
	buf []byte
}

func (w *MetaWriter) Uvarint(v uint64) *MetaWriter {
	w.buf = binary.AppendUvarint(w.buf, v)
	return w
}

func (w *MetaWriter) Varint(v int64) *MetaWriter {
	w.buf = binary.AppendVarint(w.buf, v)
	return w
}

func (w *MetaWriter) Byte(v byte) *MetaWriter {
	w.buf = append(w.buf, v)
	return w
}

func (w *MetaWriter) Bool(v bool) *MetaWriter {
	if v {
		return w.Byte(1)
	}
	return w.Byte(0)
}

func (w *MetaWriter) Float64(v float64) *MetaWriter {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, math.Float64bits(v))
	return w
}

// Bytes appends a length-prefixed byte string.
func (w *MetaWriter) Bytes(v []byte) *MetaWriter {
	w.Uvarint(uint64(len(v)))
	w.buf = append(w.buf, v...)
	return w
}

// Scalar appends a length-prefixed scalar value.
func (w *MetaWriter) Scalar(s arrow.Scalar) *MetaWriter {
	b, err := s.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return w.Bytes(b)
}

// Patches appends patches metadata; nil patches record a zero count.
func (w *MetaWriter) Patches(p *Patches) *MetaWriter {
	if p == nil {
		return w.Uvarint(0)
	}
	ptype, _ := arrow.PTypeOf(p.indices.DataType())
	return w.Uvarint(uint64(p.NumPatches())).Uvarint(uint64(p.offset)).Byte(byte(ptype))
}

func (w *MetaWriter) Finish() []byte { return w.buf }

// MetaReader consumes fields written by MetaWriter. The first failure sticks
// and is reported by Err.
type MetaReader struct {
	encoding EncodingID
	buf      []byte
	err      error
}

func NewMetaReader(encoding EncodingID, b []byte) *MetaReader {
	return &MetaReader{encoding: encoding, buf: b}
}

func (r *MetaReader) fail(what string) {
	if r.err == nil {
		r.err = errors.Corrupt(string(r.encoding), "truncated metadata reading "+what)
	}
}

func (r *MetaReader) Uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.buf)
	if n <= 0 {
		r.fail("uvarint")
		return 0
	}
	r.buf = r.buf[n:]
	return v
}

func (r *MetaReader) Varint() int64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Varint(r.buf)
	if n <= 0 {
		r.fail("varint")
		return 0
	}
	r.buf = r.buf[n:]
	return v
}

func (r *MetaReader) Byte() byte {
	if r.err != nil {
		return 0
	}
	if len(r.buf) < 1 {
		r.fail("byte")
		return 0
	}
	v := r.buf[0]
	r.buf = r.buf[1:]
	return v
}

func (r *MetaReader) Bool() bool { return r.Byte() != 0 }

func (r *MetaReader) Float64() float64 {
	if r.err != nil {
		return 0
	}
	if len(r.buf) < 8 {
		r.fail("float64")
		return 0
	}
	v := math.Float64frombits(binary.LittleEndian.Uint64(r.buf))
	r.buf = r.buf[8:]
	return v
}

func (r *MetaReader) Bytes() []byte {
	n := r.Uvarint()
	if r.err != nil {
		return nil
	}
	if uint64(len(r.buf)) < n {
		r.fail("bytes")
		return nil
	}
	v := r.buf[:n]
	r.buf = r.buf[n:]
	return v
}

func (r *MetaReader) Scalar(dt arrow.DataType) arrow.Scalar {
	b := r.Bytes()
	if r.err != nil {
		return arrow.Scalar{}
	}
	s, err := arrow.UnmarshalScalar(dt, b)
	if err != nil {
		r.err = err
	}
	return s
}

// PatchesMetadata locates patches among an array's children.
type PatchesMetadata struct {
	Count        int
	Offset       int
	IndicesPType arrow.PType
}

func (r *MetaReader) Patches() PatchesMetadata {
	var m PatchesMetadata
	m.Count = int(r.Uvarint())
	if m.Count == 0 {
		return m
	}
	m.Offset = int(r.Uvarint())
	m.IndicesPType = arrow.PType(r.Byte())
	return m
}

func (r *MetaReader) Err() error { return r.err }
