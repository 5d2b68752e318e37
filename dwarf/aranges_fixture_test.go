package dwarf

import (
	"errors"
	"testing"

	"github.com/dwex-project/dwex/test"
)

// buildArangesFixture assembles a two-CU .debug_info and a matching
// .debug_aranges (DWARF4 §6.1.2): each CU gets one arange set with a single
// tuple, separated by a gap no tuple covers.
func buildArangesFixture() (info []byte, aranges []byte) {
	var infoBuf byteBuf
	writeCU := func(w *byteBuf) {
		lenIdx := w.u32Placeholder()
		start := len(w.b)
		w.u16le(2) // version
		w.u32le(0) // abbrev_offset
		w.u8(8)    // address_size
		w.u8(0)    // stand-in for an empty DIE tree
		w.patchU32(lenIdx, uint32(len(w.b)-start))
	}
	writeCU(&infoBuf)
	writeCU(&infoBuf)

	var arBuf byteBuf
	writeSet := func(w *byteBuf, cuOffset uint32, addr, length uint64) {
		lenIdx := w.u32Placeholder()
		start := len(w.b)
		w.u16le(2) // version
		w.u32le(cuOffset)
		w.u8(8) // address_size
		w.u8(0) // segment_size
		w.pad(16)
		w.u64le(addr)
		w.u64le(length)
		w.u64le(0) // terminator tuple
		w.u64le(0)
		w.patchU32(lenIdx, uint32(len(w.b)-start))
	}
	writeSet(&arBuf, 0, 0x400000, 0x100)
	writeSet(&arBuf, 12, 0x401000, 0x50)

	return infoBuf.bytes(), arBuf.bytes()
}

func TestArangesCuByPc(t *testing.T) {
	info, aranges := buildArangesFixture()
	prov := newFakeProvider().set(SecInfo, info).set(SecAranges, aranges)
	r := NewReader(prov, nil, nil)

	cu, err := r.CuByPc(0x400050)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, cu.Start, uint64(0))

	cu, err = r.CuByPc(0x401020)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, cu.Start, uint64(12))

	_, err = r.CuByPc(0x400438)
	test.ExpectFailure(t, err)
	if !errors.Is(err, ErrNoMatch) {
		t.Errorf("expected ErrNoMatch, got %v", err)
	}
}

func TestArangesCuByOffset(t *testing.T) {
	info, aranges := buildArangesFixture()
	prov := newFakeProvider().set(SecInfo, info).set(SecAranges, aranges)
	r := NewReader(prov, nil, nil)

	cu, err := r.CuByOffset(0)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, cu.End, uint64(12))

	cu, err = r.CuByOffset(12)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, cu.End, uint64(24))
}
