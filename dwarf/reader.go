package dwarf

import (
	"fmt"

	"github.com/dwex-project/dwex/dwarf/leb128"
)

// cursor is a read-only walk over a byte slice, tracking the current
// absolute offset within some logical section. It is the primitive every
// other decoder in this package is built from: compilation units, DIEs,
// line programs, ranges, expressions and CFI entries are all just cursors
// over their slice with a bit of extra state layered on top.
//
// A cursor is a cheap value, not a pointer into shared state; copying one
// forks the read position.
type cursor struct {
	data   []byte
	pos    int
	endian Endian
}

func newCursor(data []byte, endian Endian) cursor {
	return cursor{data: data, endian: endian}
}

func (c cursor) done() bool {
	return c.pos >= len(c.data)
}

func (c cursor) remaining() []byte {
	return c.data[c.pos:]
}

func (c *cursor) need(n int) error {
	if c.pos < 0 || c.pos+n > len(c.data) {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrInvalidFormat, n, c.pos, len(c.data)-c.pos)
	}
	return nil
}

func (c *cursor) u8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := c.data[c.pos]
	c.pos++
	return v, nil
}

func (c *cursor) u16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	b := c.data[c.pos : c.pos+2]
	c.pos += 2
	if c.endian == BigEndian {
		return uint16(b[0])<<8 | uint16(b[1]), nil
	}
	return uint16(b[1])<<8 | uint16(b[0]), nil
}

func (c *cursor) u32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	b := c.data[c.pos : c.pos+4]
	c.pos += 4
	if c.endian == BigEndian {
		return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
	}
	return uint32(b[3])<<24 | uint32(b[2])<<16 | uint32(b[1])<<8 | uint32(b[0]), nil
}

func (c *cursor) u64() (uint64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	lo, hi := uint64(0), uint64(0)
	if c.endian == BigEndian {
		for i := 0; i < 4; i++ {
			hi = hi<<8 | uint64(c.data[c.pos+i])
		}
		for i := 4; i < 8; i++ {
			lo = lo<<8 | uint64(c.data[c.pos+i])
		}
		c.pos += 8
		return hi<<32 | lo, nil
	}
	v := uint64(0)
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(c.data[c.pos+i])
	}
	c.pos += 8
	return v, nil
}

func (c *cursor) s32() (int32, error) {
	v, err := c.u32()
	return int32(v), err
}

func (c *cursor) s64() (int64, error) {
	v, err := c.u64()
	return int64(v), err
}

// uleb reads an unsigned LEB128 value, refusing encodings wider than
// leb128.MaxBytes (spec §4.1).
func (c *cursor) uleb() (uint64, error) {
	v, n, err := leb128.ReadULEB128(c.remaining())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	c.pos += n
	return v, nil
}

// sleb reads a signed LEB128 value, with the same overlong-encoding
// refusal as uleb.
func (c *cursor) sleb() (int64, error) {
	v, n, err := leb128.ReadSLEB128(c.remaining())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	c.pos += n
	return v, nil
}

// cstr reads a NUL-terminated string and advances past the terminator.
func (c *cursor) cstr() (string, error) {
	rest := c.remaining()
	i := 0
	for i < len(rest) && rest[i] != 0 {
		i++
	}
	if i == len(rest) {
		return "", fmt.Errorf("%w: unterminated string at offset %d", ErrInvalidFormat, c.pos)
	}
	s := string(rest[:i])
	c.pos += i + 1
	return s, nil
}

// bytes reads n raw bytes without interpretation.
func (c *cursor) bytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// initialLength reads a DWARF "initial length" field (§7.4 of the DWARF
// standard): a 32-bit length, or, if that word is the reserved escape value
// 0xffffffff, an immediate 64-bit length. It returns the length and the
// offset size (4 or 8) that the rest of the unit uses for section offsets.
func (c *cursor) initialLength() (length uint64, offsetSize int, err error) {
	l32, err := c.u32()
	if err != nil {
		return 0, 0, err
	}
	if l32 == 0xffffffff {
		l64, err := c.u64()
		if err != nil {
			return 0, 0, err
		}
		return l64, 8, nil
	}
	if l32 >= 0xfffffff0 {
		return 0, 0, fmt.Errorf("%w: reserved initial-length value 0x%08x", ErrInvalidFormat, l32)
	}
	return uint64(l32), 4, nil
}

// offset reads a section offset of the given size (4 or 8 bytes, per the
// unit's offset size).
func (c *cursor) offset(offsetSize int) (uint64, error) {
	if offsetSize == 8 {
		return c.u64()
	}
	v, err := c.u32()
	return uint64(v), err
}

// address reads an address of the given size (4 or 8 bytes, per the unit's
// address size).
func (c *cursor) address(addrSize int) (uint64, error) {
	if addrSize == 8 {
		return c.u64()
	}
	v, err := c.u32()
	return uint64(v), err
}
