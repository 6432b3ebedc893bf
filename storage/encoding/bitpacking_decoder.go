package encoding

// packBits appends values to an LSB-first bit stream of bitWidth bits per
// value. dst must be zeroed and large enough.
func packBits(dst []byte, values []uint64, bitWidth int) {
	var bitOffset uint
	byteOffset := 0

	for _, v := range values {
		value := v
		remainingBits := uint(bitWidth)

		for remainingBits > 0 {
			availableBits := 8 - bitOffset
			if availableBits > remainingBits {
				availableBits = remainingBits
			}

			mask := uint64(1)<<availableBits - 1
			dst[byteOffset] |= byte((value & mask) << bitOffset)

			value >>= availableBits
			remainingBits -= availableBits
			bitOffset += availableBits

			if bitOffset >= 8 {
				bitOffset = 0
				byteOffset++
			}
		}
	}
}

// unpackBits reads n values starting at value index first.
func unpackBits(data []byte, bitWidth int, first, n int, out []uint64) {
	bit := first * bitWidth
	byteOffset := bit >> 3
	bitOffset := uint(bit & 7)

	for i := 0; i < n; i++ {
		var value uint64
		remainingBits := uint(bitWidth)
		var bitsRead uint

		for remainingBits > 0 {
			availableBits := 8 - bitOffset
			if availableBits > remainingBits {
				availableBits = remainingBits
			}

			mask := byte(uint(1)<<availableBits - 1)
			bits := (data[byteOffset] >> bitOffset) & mask
			value |= uint64(bits) << bitsRead

			bitsRead += availableBits
			remainingBits -= availableBits
			bitOffset += availableBits

			if bitOffset >= 8 {
				bitOffset = 0
				byteOffset++
			}
		}
		out[i] = value
	}
}

// unpackAt reads the single value at index j.
func unpackAt(data []byte, bitWidth int, j int) uint64 {
	var v [1]uint64
	unpackBits(data, bitWidth, j, 1, v[:])
	return v[0]
}
