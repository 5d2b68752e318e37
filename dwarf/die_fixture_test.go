package dwarf

import (
	"testing"

	"github.com/dwex-project/dwex/test"
)

// buildDieWalkFixture assembles a one-CU tree: a compile_unit root (one
// DW_FORM_strp name attribute) with a single subprogram child (an inline
// DW_FORM_string name and a DW_FORM_addr low_pc), terminated by the
// child-list's closing zero byte (spec §3, §8).
func buildDieWalkFixture() (info, abbrev, str []byte) {
	var abbrevBuf byteBuf
	// code 1: compile_unit, has children, DW_AT_name/DW_FORM_strp
	abbrevBuf.uleb(1).uleb(uint64(TagCompileUnit)).u8(1)
	abbrevBuf.uleb(uint64(AttrName)).uleb(uint64(FormStrp))
	abbrevBuf.uleb(0).uleb(0)
	// code 2: subprogram, no children, DW_AT_name/DW_FORM_string + DW_AT_low_pc/DW_FORM_addr
	abbrevBuf.uleb(2).uleb(uint64(TagSubprogram)).u8(0)
	abbrevBuf.uleb(uint64(AttrName)).uleb(uint64(FormString))
	abbrevBuf.uleb(uint64(AttrLowpc)).uleb(uint64(FormAddr))
	abbrevBuf.uleb(0).uleb(0)
	abbrevBuf.uleb(0) // table terminator

	strBuf := append([]byte("unit.c"), 0)
	strBuf = append(strBuf, []byte("main")...)
	strBuf = append(strBuf, 0)

	var infoBuf byteBuf
	lenIdx := infoBuf.u32Placeholder()
	start := len(infoBuf.b)
	infoBuf.u16le(4) // version
	infoBuf.u32le(0) // abbrev_offset
	infoBuf.u8(4)    // address_size

	infoBuf.uleb(1)  // root DIE: abbrev code 1
	infoBuf.u32le(0) // DW_AT_name -> "unit.c" at .debug_str offset 0

	infoBuf.uleb(2)       // child DIE: abbrev code 2
	infoBuf.cstr("main")  // DW_AT_name, inline
	infoBuf.u32le(0x1000) // DW_AT_low_pc

	infoBuf.u8(0) // child-list terminator for the root

	infoBuf.patchU32(lenIdx, uint32(len(infoBuf.b)-start))

	return infoBuf.bytes(), abbrevBuf.bytes(), strBuf
}

func TestDieWalkCompileUnitAndSubprogram(t *testing.T) {
	info, abbrev, str := buildDieWalkFixture()
	prov := newFakeProvider().
		set(SecInfo, info).
		set(SecAbbrev, abbrev).
		set(SecStr, str)
	r := NewReader(prov, nil, nil)

	cu, err := r.CuByOffset(0)
	test.ExpectSuccess(t, err)

	root := r.CuDie(cu)
	tag, err := r.Tag(root)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, tag, TagCompileUnit)

	hasChildren, err := r.HasChildren(root)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, hasChildren, true)

	name, err := r.Attr(root, AttrName)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, name.Value, "unit.c")

	child, ok, err := r.Child(root)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, ok, true)

	childTag, err := r.Tag(child)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, childTag, TagSubprogram)

	childName, err := r.Attr(child, AttrName)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, childName.Value, "main")

	lowpc, err := r.Attr(child, AttrLowpc)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, lowpc.Value, uint64(0x1000))

	sib, ok, err := r.Sibling(root)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, ok, true)
	test.ExpectEquality(t, sib.Offset(), cu.End)

	// Sibling walked past the root's child-list terminator to the end of
	// the unit, where there is no DIE.
	test.ExpectEquality(t, sib.IsValid(), false)
	_, err = r.Tag(sib)
	test.ExpectFailure(t, err)
}
