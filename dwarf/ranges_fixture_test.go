package dwarf

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dwex-project/dwex/test"
)

// buildRangesFixture assembles a one-CU .debug_info/.debug_abbrev pair whose
// root DIE carries DW_AT_ranges, plus a .debug_ranges payload (DWARF4
// §2.17.3) that opens with a base-address selector before its two tuples
// (spec §4.6, §8).
func buildRangesFixture() (info, abbrev, ranges []byte) {
	var abbrevBuf byteBuf
	abbrevBuf.uleb(1)                 // abbreviation code
	abbrevBuf.uleb(uint64(TagCompileUnit))
	abbrevBuf.u8(0) // has_children
	abbrevBuf.uleb(uint64(AttrRanges))
	abbrevBuf.uleb(uint64(FormSecOffset))
	abbrevBuf.uleb(0).uleb(0) // attribute-list terminator
	abbrevBuf.uleb(0)         // table terminator

	var infoBuf byteBuf
	lenIdx := infoBuf.u32Placeholder()
	start := len(infoBuf.b)
	infoBuf.u16le(2) // version
	infoBuf.u32le(0) // abbrev_offset
	infoBuf.u8(4)    // address_size
	infoBuf.uleb(1)  // abbrev code for the root DIE
	infoBuf.u32le(0) // DW_AT_ranges: offset into .debug_ranges
	infoBuf.patchU32(lenIdx, uint32(len(infoBuf.b)-start))

	var rangesBuf byteBuf
	rangesBuf.u32le(0xffffffff).u32le(0x400000) // base-address selector
	rangesBuf.u32le(0x10).u32le(0x20)
	rangesBuf.u32le(0x40).u32le(0x48)
	rangesBuf.u32le(0).u32le(0) // terminator

	return infoBuf.bytes(), abbrevBuf.bytes(), rangesBuf.bytes()
}

func TestRangesWithBaseSelector(t *testing.T) {
	info, abbrev, ranges := buildRangesFixture()
	prov := newFakeProvider().
		set(SecInfo, info).
		set(SecAbbrev, abbrev).
		set(SecRanges, ranges)
	r := NewReader(prov, nil, nil)

	cu, err := r.CuByOffset(0)
	test.ExpectSuccess(t, err)

	die := r.CuDie(cu)
	got, err := r.Ranges(die)
	test.ExpectSuccess(t, err)

	want := []Range{{Low: 0x400010, High: 0x400020}, {Low: 0x400040, High: 0x400048}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ranges mismatch (-want +got):\n%s", diff)
	}

	ok, err := r.HasPC(die, 0x400015)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, ok, true)

	ok, err = r.HasPC(die, 0x400030)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, ok, false)
}
