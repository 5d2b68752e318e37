package elfsection

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"testing"

	"github.com/dwex-project/dwex/test"
)

func TestInflateZdebug(t *testing.T) {
	payload := []byte("hello debug section contents")

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	_, err := zw.Write(payload)
	test.ExpectSuccess(t, err)
	test.ExpectSuccess(t, zw.Close())

	var raw bytes.Buffer
	raw.WriteString("ZLIB")
	var size [8]byte
	binary.BigEndian.PutUint64(size[:], uint64(len(payload)))
	raw.Write(size[:])
	raw.Write(compressed.Bytes())

	out, err := inflateZdebug(raw.Bytes())
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, string(out), string(payload))
}

func TestInflateZdebugMissingMagic(t *testing.T) {
	_, err := inflateZdebug([]byte("not zlib data at all"))
	test.ExpectFailure(t, err)
}

func TestZdebugName(t *testing.T) {
	test.ExpectEquality(t, zdebugName(".debug_info"), ".zdebug_info")
}

func TestRelEntrySize(t *testing.T) {
	test.ExpectEquality(t, relEntrySize(true, true), 24)
	test.ExpectEquality(t, relEntrySize(true, false), 16)
	test.ExpectEquality(t, relEntrySize(false, true), 12)
	test.ExpectEquality(t, relEntrySize(false, false), 8)
}

func TestDecodeRelocEntry64Rela(t *testing.T) {
	b := make([]byte, 24)
	binary.LittleEndian.PutUint64(b[0:8], 0x1000)
	info := uint64(5)<<32 | uint64(1) // sym 5, type 1
	binary.LittleEndian.PutUint64(b[8:16], info)
	binary.LittleEndian.PutUint64(b[16:24], uint64(0xffffffffffffffff)) // addend -1

	off, sym, typ, add := decodeRelocEntry(b, binary.LittleEndian, true, true)
	test.ExpectEquality(t, off, uint64(0x1000))
	test.ExpectEquality(t, sym, uint32(5))
	test.ExpectEquality(t, typ, uint32(1))
	test.ExpectEquality(t, add, int64(-1))
}

func TestDecodeRelocEntry32Rel(t *testing.T) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:4], 0x2000)
	info := uint32(3)<<8 | uint32(2) // sym 3, type 2
	binary.LittleEndian.PutUint32(b[4:8], info)

	off, sym, typ, add := decodeRelocEntry(b, binary.LittleEndian, false, false)
	test.ExpectEquality(t, off, uint64(0x2000))
	test.ExpectEquality(t, sym, uint32(3))
	test.ExpectEquality(t, typ, uint32(2))
	test.ExpectEquality(t, add, int64(0))
}
