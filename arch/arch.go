// Package arch supplies the small per-architecture collaborator the dwarf
// core consumes through dwarf.Architecture (SPEC_FULL.md §4.12): DWARF
// register numbering for CFI/location-expression register operands, and a
// narrow classification of ELF relocation types used by
// dwarf.SectionProvider.RelocateAddress implementations such as
// elfsection's.
//
// Grounded on original_source/backends/arm_regs.c, x86_64_regs.c and
// i386_regs.c: those files hand back a formatted register name and a
// handful of classification fields (set name, bit width, DWARF base type)
// given a DWARF register number. This package keeps just the name table,
// since the core's only use for it is the string inserted into CFI/scope
// diagnostics and the stackwalker's frame dump.
package arch

import (
	"fmt"

	"github.com/dwex-project/dwex/dwarf"
)

// registers is a lookup table of architectures, grounded one file per
// original_source/backends/*_regs.c.
type registers struct {
	addrSize int
	names    []string // indexed by DWARF register number
	relocs   map[uint32]dwarf.ElfRelocType
}

func (a *registers) DefaultAddressSize() int { return a.addrSize }

func (a *registers) RegisterName(regno int) string {
	if regno >= 0 && regno < len(a.names) && a.names[regno] != "" {
		return a.names[regno]
	}
	return fmt.Sprintf("r%d", regno)
}

func (a *registers) RelocSimpleType(relocType uint32) (dwarf.ElfRelocType, bool) {
	t, ok := a.relocs[relocType]
	return t, ok
}

// ELF relocation type numbers consumed by RelocSimpleType. Only the
// "plain address" forms are classified: anything requiring addend
// arithmetic or PC-relative bias beyond what CFI's own DW_EH_PE_pcrel
// already applies is left unclassified (RelocNone, ok=false), matching
// the original backends' *_reloc_simple_type tables, which only ever
// answer "this is an absolute address relocation" or decline.
const (
	rX86_6464   = 1  // R_X86_64_64
	rX86_64_32  = 10 // R_X86_64_32
	rX86_64_32S = 11 // R_X86_64_32S

	r386_32 = 1 // R_386_32

	rARM_ABS32 = 2 // R_ARM_ABS32

	rAArch64Abs64 = 257 // R_AARCH64_ABS64
	rAArch64Abs32 = 258 // R_AARCH64_ABS32
)

// AMD64 is the dwarf.Architecture for x86-64, grounded on
// original_source/backends/x86_64_regs.c's register_info table: integer
// registers 0-16 (rax..r15, rip), then 17-32 xmm0-15, 33-40 st0-7 (x87),
// 41-48 mm0-7.
var AMD64 dwarf.Architecture = &registers{
	addrSize: 8,
	names:    amd64Names(),
	relocs: map[uint32]dwarf.ElfRelocType{
		rX86_6464:   dwarf.RelocAbs64,
		rX86_64_32:  dwarf.RelocAbs32,
		rX86_64_32S: dwarf.RelocAbs32,
	},
}

func amd64Names() []string {
	names := make([]string, 49)
	base := []string{"rax", "rdx", "rcx", "rbx", "rsi", "rdi", "rbp", "rsp"}
	copy(names[0:8], base)
	for i := 8; i <= 15; i++ {
		names[i] = fmt.Sprintf("r%d", i)
	}
	names[16] = "rip"
	for i := 17; i <= 32; i++ {
		names[i] = fmt.Sprintf("xmm%d", i-17)
	}
	for i := 33; i <= 40; i++ {
		names[i] = fmt.Sprintf("st%d", i-33)
	}
	for i := 41; i <= 48; i++ {
		names[i] = fmt.Sprintf("mm%d", i-41)
	}
	return names
}

// I386 is the dwarf.Architecture for 32-bit x86, grounded on
// original_source/backends/i386_regs.c: eax/ecx/edx/ebx/esp/ebp/esi/edi,
// eip, eflags, then segment registers, st0-7 and xmm0-7. The mm0-7 bank
// has no names in this table; those numbers fall back to "rN".
var I386 dwarf.Architecture = &registers{
	addrSize: 4,
	names:    i386Names(),
	relocs: map[uint32]dwarf.ElfRelocType{
		r386_32: dwarf.RelocAbs32,
	},
}

func i386Names() []string {
	names := make([]string, 40)
	base := []string{"eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi", "eip", "eflags"}
	copy(names[0:10], base)
	seg := []string{"cs", "ss", "ds", "es", "fs", "gs"}
	copy(names[10:16], seg)
	for i := 0; i < 8; i++ {
		names[16+i] = fmt.Sprintf("st%d", i)
	}
	for i := 0; i < 8; i++ {
		names[25+i] = fmt.Sprintf("xmm%d", i)
	}
	return names
}

// ARM is the dwarf.Architecture for 32-bit ARM (AAPCS), grounded on
// original_source/backends/arm_regs.c: r0-r15 (r13=sp, r14=lr, r15=pc).
// The VFP/FPA floating-point banks have no names in this table; those
// numbers fall back to "rN".
var ARM dwarf.Architecture = &registers{
	addrSize: 4,
	names:    armNames(),
	relocs: map[uint32]dwarf.ElfRelocType{
		rARM_ABS32: dwarf.RelocAbs32,
	},
}

func armNames() []string {
	names := make([]string, 16)
	for i := 0; i < 13; i++ {
		names[i] = fmt.Sprintf("r%d", i)
	}
	names[13] = "sp"
	names[14] = "lr"
	names[15] = "pc"
	return names
}

// AArch64 is the dwarf.Architecture for 64-bit ARM, grounded on
// original_source/backends/aarch64_regs.c: x0-x30, sp, then the SIMD/FP
// register bank (v0-v31).
var AArch64 dwarf.Architecture = &registers{
	addrSize: 8,
	names:    aarch64Names(),
	relocs: map[uint32]dwarf.ElfRelocType{
		rAArch64Abs64: dwarf.RelocAbs64,
		rAArch64Abs32: dwarf.RelocAbs32,
	},
}

func aarch64Names() []string {
	names := make([]string, 96)
	for i := 0; i <= 30; i++ {
		names[i] = fmt.Sprintf("x%d", i)
	}
	names[31] = "sp"
	for i := 0; i < 32; i++ {
		names[64+i] = fmt.Sprintf("v%d", i)
	}
	return names
}
