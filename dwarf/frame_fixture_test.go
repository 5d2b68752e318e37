package dwarf

import (
	"testing"

	"github.com/dwex-project/dwex/test"
)

// buildZRFrameFixture assembles a .debug_frame section with one CIE using
// the "zR" sized augmentation (an FDE pointer encoding byte, no LSDA or
// personality routine) and one FDE using that encoding for its initial
// location: DW_EH_PE_pcrel | DW_EH_PE_sdata4 (spec §4.8, §8).
//
// A CIE pointer of zero in .debug_frame does not mean "this entry is a CIE"
// the way it would in .eh_frame; here it really is the CIE's offset, which
// happens to be the first entry in the section.
func buildZRFrameFixture(desiredStart, desiredEnd uint64) []byte {
	var buf byteBuf

	cieLenIdx := buf.u32Placeholder()
	cieStart := len(buf.b)
	buf.u32le(0xffffffff) // CIE_id escape value marking a CIE in .debug_frame
	buf.u8(1)             // version
	buf.cstr("zR")
	buf.uleb(1)  // code_alignment_factor
	buf.sleb(-4) // data_alignment_factor
	buf.u8(8)    // return_address_register (version 1: plain byte)
	buf.uleb(1)  // augmentation_data_len
	buf.u8(0x1b) // 'R': DW_EH_PE_pcrel | DW_EH_PE_sdata4
	buf.patchU32(cieLenIdx, uint32(len(buf.b)-cieStart))

	fdeLenIdx := buf.u32Placeholder()
	fdeStart := len(buf.b)
	buf.u32le(uint32(cieStart - 4)) // CIE_pointer: offset of the CIE entry
	pcFieldOffset := len(buf.b)
	buf.u32le(uint32(int32(int64(desiredStart) - int64(pcFieldOffset))))
	buf.u32le(uint32(desiredEnd - desiredStart)) // range length, absolute
	buf.uleb(0)                                  // FDE augmentation_data_len
	buf.patchU32(fdeLenIdx, uint32(len(buf.b)-fdeStart))

	return buf.bytes()
}

func TestFrameZRAugmentationFDE(t *testing.T) {
	section := buildZRFrameFixture(0x4000, 0x4010)
	prov := newFakeProvider().set(SecFrame, section)
	r := NewReader(prov, nil, nil)

	fde, err := r.CfiFrameFor(0x4008)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, fde.StartPC, uint64(0x4000))
	test.ExpectEquality(t, fde.EndPC, uint64(0x4010))
	test.ExpectEquality(t, fde.Cie.Augmentation, "zR")
	test.ExpectEquality(t, fde.Cie.FdeEncoding, uint8(0x1b))
	test.ExpectEquality(t, fde.Cie.DataAlignmentFactor, int64(-4))

	_, err = r.CfiFrameFor(0x4010)
	test.ExpectFailure(t, err)
}
