package leb128

import "fmt"

// MaxBytes is the largest number of encoded bytes a conforming 64-bit
// ULEB128/SLEB128 value can occupy (ceil(64/7) groups of 7 bits).
const MaxBytes = 10

// ErrOverlong is returned when an encoded value runs past MaxBytes without
// terminating. A conforming producer never emits such a stream; we refuse it
// rather than silently truncating or overflowing.
var ErrOverlong = fmt.Errorf("leb128: encoded value longer than %d bytes", MaxBytes)

// DecodeULEB128 decodes an unsigned LEB128 value from the front of encoded.
// It returns the decoded value and the number of bytes consumed.
//
// Algorithm taken from page 218 of the "DWARF4 Standard", figure 46.
func DecodeULEB128(encoded []uint8) (uint64, int) {
	var result uint64
	var shift uint64

	var n int
	for _, v := range encoded {
		n++
		result |= uint64(v&0x7f) << shift
		if v&0x80 == 0x00 {
			break
		}
		shift += 7
	}

	return result, n
}

// DecodeSLEB128 decodes a signed LEB128 value from the front of encoded. It
// returns the decoded value and the number of bytes consumed.
//
// Algorithm taken from page 218 of the "DWARF4 Standard", figure 47.
func DecodeSLEB128(encoded []uint8) (int64, int) {
	const size = 64

	var result int64
	var shift uint64

	var v uint8
	var n int
	for _, v = range encoded {
		n++
		result |= int64(v&0x7f) << shift
		shift += 7
		if v&0x80 == 0x00 {
			break
		}
	}

	// sign extend last byte from the encoded slice
	if shift < size && v&0x40 > 0 {
		result |= -(1 << shift)
	}

	return result, n
}

// ReadULEB128 is DecodeULEB128 with the boundary check spec.md §4.1
// mandates: a conforming 64-bit value never needs more than MaxBytes
// continuation bytes, so a longer run is a structural error rather than a
// value to decode.
func ReadULEB128(encoded []uint8) (uint64, int, error) {
	limit := encoded
	if len(limit) > MaxBytes {
		limit = limit[:MaxBytes]
	}

	for i, v := range limit {
		if v&0x80 == 0 {
			r, n := DecodeULEB128(encoded[:i+1])
			return r, n, nil
		}
	}

	return 0, 0, ErrOverlong
}

// ReadSLEB128 is DecodeSLEB128 with the same overlong-encoding refusal as
// ReadULEB128.
func ReadSLEB128(encoded []uint8) (int64, int, error) {
	limit := encoded
	if len(limit) > MaxBytes {
		limit = limit[:MaxBytes]
	}

	for i, v := range limit {
		if v&0x80 == 0 {
			r, n := DecodeSLEB128(encoded[:i+1])
			return r, n, nil
		}
	}

	return 0, 0, ErrOverlong
}
