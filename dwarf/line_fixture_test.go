package dwarf

import (
	"testing"

	"github.com/dwex-project/dwex/test"
)

// buildLineProgramFixture assembles a one-CU .debug_info/.debug_abbrev pair
// referencing a .debug_line program (DWARF4 §6.2) whose body is a single
// special opcode and nothing else: no DW_LNE_end_sequence. Two behaviors
// are pinned at once (spec §8): the special-opcode line/address arithmetic,
// and decodeLineProgram forcing EndSequence on whatever row is last even
// though the program never emits one itself.
func buildLineProgramFixture() (info, abbrev, line []byte) {
	var abbrevBuf byteBuf
	abbrevBuf.uleb(1).uleb(uint64(TagCompileUnit)).u8(0)
	abbrevBuf.uleb(uint64(AttrStmtList)).uleb(uint64(FormSecOffset))
	abbrevBuf.uleb(0).uleb(0)
	abbrevBuf.uleb(0)

	var lineBuf byteBuf
	lenIdx := lineBuf.u32Placeholder()
	unitStart := len(lineBuf.b)
	lineBuf.u16le(4) // version
	hdrLenIdx := lineBuf.u32Placeholder()
	afterHdrLen := len(lineBuf.b)
	lineBuf.u8(1)    // minimum_instruction_length
	lineBuf.u8(1)    // maximum_operations_per_instruction (version >= 4)
	lineBuf.u8(1)    // default_is_stmt
	lineBuf.u8(0xff) // line_base = -1
	lineBuf.u8(4)    // line_range
	lineBuf.u8(13)   // opcode_base
	stdLens := []uint8{0, 1, 1, 1, 1, 0, 0, 0, 1, 0, 0, 1}
	for _, n := range stdLens {
		lineBuf.u8(n)
	}
	lineBuf.u8(0) // include_directories terminator (none)
	lineBuf.cstr("a.c")
	lineBuf.uleb(0).uleb(0).uleb(0) // dir_index, mtime, length
	lineBuf.u8(0)                  // file_names terminator
	lineBuf.patchU32(hdrLenIdx, uint32(len(lineBuf.b)-afterHdrLen))

	lineBuf.u8(0x0f) // special opcode: adj = 15-13 = 2
	lineBuf.patchU32(lenIdx, uint32(len(lineBuf.b)-unitStart))

	var abbrevInfoBuf byteBuf
	cuLenIdx := abbrevInfoBuf.u32Placeholder()
	cuStart := len(abbrevInfoBuf.b)
	abbrevInfoBuf.u16le(4) // version
	abbrevInfoBuf.u32le(0) // abbrev_offset
	abbrevInfoBuf.u8(8)    // address_size
	abbrevInfoBuf.uleb(1)  // abbrev code
	abbrevInfoBuf.u32le(0) // DW_AT_stmt_list -> offset 0 into .debug_line
	abbrevInfoBuf.patchU32(cuLenIdx, uint32(len(abbrevInfoBuf.b)-cuStart))

	return abbrevInfoBuf.bytes(), abbrevBuf.bytes(), lineBuf.bytes()
}

func TestLineProgramSpecialOpcodeAndImplicitEndSequence(t *testing.T) {
	info, abbrev, line := buildLineProgramFixture()
	prov := newFakeProvider().
		set(SecInfo, info).
		set(SecAbbrev, abbrev).
		set(SecLine, line)
	r := NewReader(prov, nil, nil)

	cu, err := r.CuByOffset(0)
	test.ExpectSuccess(t, err)

	lt, err := r.Lines(cu)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, len(lt.Rows), 1)

	row := lt.Rows[0]
	// line_base(-1) + adj(2) % line_range(4) == 1, added to the initial line of 1.
	test.ExpectEquality(t, row.Line, 2)
	// adj(2) / line_range(4) == 0, so the address does not move.
	test.ExpectEquality(t, row.Address, uint64(0))
	// the program never executes DW_LNE_end_sequence; decodeLineProgram
	// still marks the final row as one.
	test.ExpectEquality(t, row.EndSequence, true)
}
