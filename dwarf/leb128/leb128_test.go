package leb128_test

import (
	"errors"
	"testing"

	"github.com/dwex-project/dwex/dwarf/leb128"
	"github.com/dwex-project/dwex/test"
)

func TestDecodeULEB128(t *testing.T) {
	// tests from page 162 of the "DWARF4 Standard"
	v := []uint8{0x7f, 0x00}
	r, n := leb128.DecodeULEB128(v)
	test.ExpectEquality(t, n, 1)
	test.ExpectEquality(t, r, uint64(127))

	v = []uint8{0x80, 0x01, 0x00}
	r, n = leb128.DecodeULEB128(v)
	test.ExpectEquality(t, n, 2)
	test.ExpectEquality(t, r, uint64(128))

	v = []uint8{0x81, 0x01, 0x00}
	r, n = leb128.DecodeULEB128(v)
	test.ExpectEquality(t, n, 2)
	test.ExpectEquality(t, r, uint64(129))

	v = []uint8{0x82, 0x01, 0x00}
	r, n = leb128.DecodeULEB128(v)
	test.ExpectEquality(t, n, 2)
	test.ExpectEquality(t, r, uint64(130))

	v = []uint8{0xb9, 0x64, 0x00}
	r, n = leb128.DecodeULEB128(v)
	test.ExpectEquality(t, n, 2)
	test.ExpectEquality(t, r, uint64(12857))
}

func TestDecodeSLEB128(t *testing.T) {
	// tests from page 163 of the "DWARF4 Standard"
	v := []uint8{0x02, 0x00}
	r, n := leb128.DecodeSLEB128(v)
	test.ExpectEquality(t, n, 1)
	test.ExpectEquality(t, r, int64(2))

	v = []uint8{0x7e, 0x00}
	r, n = leb128.DecodeSLEB128(v)
	test.ExpectEquality(t, n, 1)
	test.ExpectEquality(t, r, int64(-2))

	v = []uint8{0xff, 0x00, 0x00}
	r, n = leb128.DecodeSLEB128(v)
	test.ExpectEquality(t, n, 2)
	test.ExpectEquality(t, r, int64(127))

	v = []uint8{0x81, 0x7f, 0x00}
	r, n = leb128.DecodeSLEB128(v)
	test.ExpectEquality(t, n, 2)
	test.ExpectEquality(t, r, int64(-127))

	v = []uint8{0x80, 0x01, 0x00}
	r, n = leb128.DecodeSLEB128(v)
	test.ExpectEquality(t, n, 2)
	test.ExpectEquality(t, r, int64(128))

	v = []uint8{0x80, 0x7f, 0x00}
	r, n = leb128.DecodeSLEB128(v)
	test.ExpectEquality(t, n, 2)
	test.ExpectEquality(t, r, int64(-128))
}

func TestReadULEB128Overlong(t *testing.T) {
	v := make([]uint8, 11)
	for i := range v {
		v[i] = 0x80
	}
	_, _, err := leb128.ReadULEB128(v)
	test.ExpectSuccess(t, errors.Is(err, leb128.ErrOverlong))
}

func TestReadULEB128Boundary(t *testing.T) {
	// nine continuation-marked bytes followed by a terminator, ten bytes in
	// all, is the widest permitted 64-bit encoding
	v := []uint8{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}
	r, n, err := leb128.ReadULEB128(v)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, n, 10)
	test.ExpectEquality(t, r, uint64(0xffffffffffffffff))
}
