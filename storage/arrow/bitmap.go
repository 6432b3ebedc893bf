package arrow

import "math/bits"

// Bitmap is an LSB-ordered bit sequence, used for validity masks, filter
// masks and boolean values. A bitmap may be a zero-copy view starting at a
// bit offset into its bytes; Set, Clear and Append are for bitmaps under
// construction only.
type Bitmap struct {
	buf    []byte
	offset int // bit offset of element 0
	length int // number of bits
}

// NewBitmap creates a zeroed bitmap of length bits.
func NewBitmap(length int) *Bitmap {
	numBytes := (length + 7) / 8
	return &Bitmap{
		buf:    make([]byte, numBytes),
		length: length,
	}
}

// NewBitmapFromBytes creates a bitmap over existing bytes.
func NewBitmapFromBytes(data []byte, length int) *Bitmap {
	return &Bitmap{
		buf:    data,
		length: length,
	}
}

// NewBitmapAllSet creates a bitmap with all bits set to 1.
func NewBitmapAllSet(length int) *Bitmap {
	bm := NewBitmap(length)
	bm.SetAll()
	return bm
}

// NewBitmapFromBools packs bools into a bitmap.
func NewBitmapFromBools(values []bool) *Bitmap {
	bm := NewBitmap(len(values))
	for i, v := range values {
		if v {
			bm.Set(i)
		}
	}
	return bm
}

// Len returns the number of bits.
func (b *Bitmap) Len() int {
	return b.length
}

// Offset returns the bit offset of element 0 into Bytes.
func (b *Bitmap) Offset() int {
	return b.offset
}

// Bytes returns the underlying byte buffer.
func (b *Bitmap) Bytes() []byte {
	return b.buf
}

// Set sets the bit at index i to 1.
func (b *Bitmap) Set(i int) {
	if i < 0 || i >= b.length {
		panic("bitmap index out of range")
	}
	j := i + b.offset
	b.buf[j/8] |= 1 << (j % 8)
}

// Clear sets the bit at index i to 0.
func (b *Bitmap) Clear(i int) {
	if i < 0 || i >= b.length {
		panic("bitmap index out of range")
	}
	j := i + b.offset
	b.buf[j/8] &^= 1 << (j % 8)
}

// IsSet returns true if bit at index i is 1.
func (b *Bitmap) IsSet(i int) bool {
	if i < 0 || i >= b.length {
		panic("bitmap index out of range")
	}
	j := i + b.offset
	return (b.buf[j/8] & (1 << (j % 8))) != 0
}

// SetAll sets all bits to 1.
func (b *Bitmap) SetAll() {
	if b.offset == 0 {
		for i := range b.buf {
			b.buf[i] = 0xFF
		}
		return
	}
	for i := 0; i < b.length; i++ {
		b.Set(i)
	}
}

// ClearAll sets all bits to 0.
func (b *Bitmap) ClearAll() {
	for i := 0; i < b.length; i++ {
		b.Clear(i)
	}
}

// Append adds a bit at the end of a bitmap under construction.
func (b *Bitmap) Append(v bool) {
	b.Resize(b.length + 1)
	if v {
		b.Set(b.length - 1)
	} else {
		b.Clear(b.length - 1)
	}
}

// CountSet returns the number of bits set to 1.
func (b *Bitmap) CountSet() int {
	if b.length == 0 {
		return 0
	}
	if b.offset%8 != 0 {
		count := 0
		for i := 0; i < b.length; i++ {
			if b.IsSet(i) {
				count++
			}
		}
		return count
	}

	data := b.buf[b.offset/8:]
	count := 0
	fullBytes := b.length / 8
	for i := 0; i < fullBytes; i++ {
		count += bits.OnesCount8(data[i])
	}

	remainder := b.length % 8
	if remainder > 0 {
		mask := byte((1 << remainder) - 1)
		count += bits.OnesCount8(data[fullBytes] & mask)
	}
	return count
}

// Resize grows or shrinks a bitmap under construction.
func (b *Bitmap) Resize(newLength int) {
	if newLength == b.length {
		return
	}

	newNumBytes := (b.offset + newLength + 7) / 8
	if newNumBytes > len(b.buf) {
		newCap := newNumBytes
		if c := 2 * len(b.buf); c > newCap {
			newCap = c
		}
		newBuf := make([]byte, newNumBytes, newCap)
		copy(newBuf, b.buf)
		b.buf = newBuf
	} else if newNumBytes > 0 {
		b.buf = b.buf[:newNumBytes]
	}
	b.length = newLength
}

// Slice returns the zero-copy view of bits [start, end).
func (b *Bitmap) Slice(start, end int) *Bitmap {
	if start < 0 || end < start || end > b.length {
		panic("bitmap slice out of range")
	}
	abs := b.offset + start
	return &Bitmap{
		buf:    b.buf[abs/8:],
		offset: abs % 8,
		length: end - start,
	}
}

// Clone returns a compact copy whose offset is zero.
func (b *Bitmap) Clone() *Bitmap {
	out := NewBitmap(b.length)
	if b.offset == 0 {
		copy(out.buf, b.buf[:len(out.buf)])
		if r := b.length % 8; r != 0 {
			out.buf[len(out.buf)-1] &= byte((1 << r) - 1)
		}
		return out
	}
	for i := 0; i < b.length; i++ {
		if b.IsSet(i) {
			out.Set(i)
		}
	}
	return out
}

// And returns the bitwise conjunction of two bitmaps of equal length.
func (b *Bitmap) And(other *Bitmap) *Bitmap {
	if b.length != other.length {
		panic("bitmap length mismatch")
	}
	out := NewBitmap(b.length)
	for i := 0; i < b.length; i++ {
		if b.IsSet(i) && other.IsSet(i) {
			out.Set(i)
		}
	}
	return out
}

// Not returns the complement of b.
func (b *Bitmap) Not() *Bitmap {
	out := NewBitmap(b.length)
	for i := 0; i < b.length; i++ {
		if !b.IsSet(i) {
			out.Set(i)
		}
	}
	return out
}

// SetIndices returns the positions of set bits in ascending order.
func (b *Bitmap) SetIndices() []int {
	out := make([]int, 0, b.CountSet())
	for i := 0; i < b.length; i++ {
		if b.IsSet(i) {
			out = append(out, i)
		}
	}
	return out
}
