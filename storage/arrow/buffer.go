package arrow

import (
	"fmt"
	"unsafe"
)

// Native is the set of fixed-width element types a Buffer can be viewed as.
type Native interface {
	Number | Decimal128
}

// DefaultAlignment is the alignment of every buffer allocated by this package.
const DefaultAlignment = 8

// Buffer is an immutable contiguous byte region. Slicing a buffer never copies:
// the slice shares the backing array of its parent, which the collector keeps
// alive for as long as any view references it.
type Buffer struct {
	buf       []byte
	alignment int
}

// NewBuffer allocates a zeroed, 8-byte aligned buffer of size bytes. The
// returned buffer is writable through Bytes until it is handed to an array.
func NewBuffer(size int) *Buffer {
	return &Buffer{buf: alignedAlloc(size), alignment: DefaultAlignment}
}

// NewBufferBytes wraps existing bytes without copying.
func NewBufferBytes(data []byte) *Buffer {
	return &Buffer{buf: data, alignment: alignmentOf(data)}
}

// NewBufferFrom copies values into a new aligned buffer.
func NewBufferFrom[T Native](values []T) *Buffer {
	var zero T
	size := int(unsafe.Sizeof(zero))
	b := NewBuffer(len(values) * size)
	copy(View[T](b), values)
	return b
}

// WrapSlice reinterprets values as a buffer without copying.
func WrapSlice[T Native](values []T) *Buffer {
	if len(values) == 0 {
		return &Buffer{alignment: DefaultAlignment}
	}
	var zero T
	size := int(unsafe.Sizeof(zero))
	data := unsafe.Slice((*byte)(unsafe.Pointer(&values[0])), len(values)*size)
	return &Buffer{buf: data, alignment: alignmentOf(data)}
}

// Bytes returns the underlying bytes. Callers must not modify them once the
// buffer is shared.
func (b *Buffer) Bytes() []byte {
	return b.buf
}

// Len returns the buffer length in bytes.
func (b *Buffer) Len() int {
	return len(b.buf)
}

// Alignment returns the alignment in bytes the buffer start is known to have.
func (b *Buffer) Alignment() int {
	return b.alignment
}

// Slice returns the zero-copy view [start, end).
func (b *Buffer) Slice(start, end int) *Buffer {
	if start < 0 || end < start || end > len(b.buf) {
		panic(fmt.Sprintf("buffer slice [%d:%d] out of range for length %d", start, end, len(b.buf)))
	}
	data := b.buf[start:end]
	align := b.alignment
	for align > 1 && start%align != 0 {
		align /= 2
	}
	return &Buffer{buf: data, alignment: align}
}

// IsAligned reports whether the buffer start is a multiple of align.
func (b *Buffer) IsAligned(align int) bool {
	if len(b.buf) == 0 || align <= 1 {
		return true
	}
	return uintptr(unsafe.Pointer(&b.buf[0]))%uintptr(align) == 0
}

// Aligned returns b if it already satisfies align, otherwise an aligned copy.
func (b *Buffer) Aligned(align int) *Buffer {
	if b.IsAligned(align) {
		return b
	}
	c := NewBuffer(len(b.buf))
	copy(c.buf, b.buf)
	return c
}

// View returns a typed, zero-copy view over b. A misaligned buffer is copied
// into aligned storage first.
func View[T Native](b *Buffer) []T {
	if b == nil || len(b.buf) == 0 {
		return nil
	}
	var zero T
	size := int(unsafe.Sizeof(zero))
	if len(b.buf)%size != 0 {
		panic(fmt.Sprintf("buffer size %d not a multiple of element size %d", len(b.buf), size))
	}
	data := b.buf
	if align := int(unsafe.Alignof(zero)); !b.IsAligned(align) {
		data = b.Aligned(align).buf
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&data[0])), len(data)/size)
}

// SizeOf returns the byte width of T.
func SizeOf[T Native]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

func alignedAlloc(size int) []byte {
	if size == 0 {
		return []byte{}
	}
	words := make([]uint64, (size+7)/8)
	return unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), size)
}

func alignmentOf(data []byte) int {
	if len(data) == 0 {
		return DefaultAlignment
	}
	p := uintptr(unsafe.Pointer(&data[0]))
	align := DefaultAlignment
	for align > 1 && p%uintptr(align) != 0 {
		align /= 2
	}
	return align
}

// AlignTo64 returns size rounded up to a 64-byte boundary.
func AlignTo64(size int) int {
	return (size + 63) &^ 63
}
