package arch_test

import (
	"testing"

	"github.com/dwex-project/dwex/arch"
	"github.com/dwex-project/dwex/dwarf"
	"github.com/dwex-project/dwex/test"
)

func TestAMD64RegisterNames(t *testing.T) {
	test.ExpectEquality(t, arch.AMD64.DefaultAddressSize(), 8)
	test.ExpectEquality(t, arch.AMD64.RegisterName(0), "rax")
	test.ExpectEquality(t, arch.AMD64.RegisterName(7), "rsp")
	test.ExpectEquality(t, arch.AMD64.RegisterName(16), "rip")
	test.ExpectEquality(t, arch.AMD64.RegisterName(17), "xmm0")
}

func TestAMD64RegisterNameFallback(t *testing.T) {
	test.ExpectEquality(t, arch.AMD64.RegisterName(9000), "r9000")
}

func TestI386RegisterNames(t *testing.T) {
	test.ExpectEquality(t, arch.I386.DefaultAddressSize(), 4)
	test.ExpectEquality(t, arch.I386.RegisterName(0), "eax")
	test.ExpectEquality(t, arch.I386.RegisterName(8), "eip")
}

func TestARMRegisterNames(t *testing.T) {
	test.ExpectEquality(t, arch.ARM.DefaultAddressSize(), 4)
	test.ExpectEquality(t, arch.ARM.RegisterName(13), "sp")
	test.ExpectEquality(t, arch.ARM.RegisterName(14), "lr")
	test.ExpectEquality(t, arch.ARM.RegisterName(15), "pc")
}

func TestAArch64RegisterNames(t *testing.T) {
	test.ExpectEquality(t, arch.AArch64.DefaultAddressSize(), 8)
	test.ExpectEquality(t, arch.AArch64.RegisterName(31), "sp")
	test.ExpectEquality(t, arch.AArch64.RegisterName(64), "v0")
}

func TestRelocSimpleType(t *testing.T) {
	typ, ok := arch.AMD64.RelocSimpleType(1) // R_X86_64_64
	test.ExpectEquality(t, ok, true)
	test.ExpectEquality(t, typ, dwarf.RelocAbs64)

	_, ok = arch.AMD64.RelocSimpleType(999)
	test.ExpectEquality(t, ok, false)
}
