package frontend

import (
	"testing"

	"github.com/dwex-project/dwex/test"
)

func TestParseMapsLine(t *testing.T) {
	low, high, path, ok := parseMapsLine("00400000-00452000 r-xp 00000000 08:02 173521      /usr/bin/dbus-daemon")
	test.ExpectEquality(t, ok, true)
	test.ExpectEquality(t, low, uint64(0x400000))
	test.ExpectEquality(t, high, uint64(0x452000))
	test.ExpectEquality(t, path, "/usr/bin/dbus-daemon")
}

func TestParseMapsLineAnonymous(t *testing.T) {
	low, high, path, ok := parseMapsLine("7ffe12345000-7ffe12366000 rw-p 00000000 00:00 0          [stack]")
	test.ExpectEquality(t, ok, true)
	test.ExpectEquality(t, low, uint64(0x7ffe12345000))
	test.ExpectEquality(t, high, uint64(0x7ffe12366000))
	test.ExpectEquality(t, path, "")
}

func TestParseMapsLineMalformed(t *testing.T) {
	_, _, _, ok := parseMapsLine("not a maps line")
	test.ExpectEquality(t, ok, false)
}

func TestModuleContainsAndFileAddr(t *testing.T) {
	m := &Module{LowAddr: 0x400000, HighAddr: 0x401000, LoadBias: 0x400000}
	test.ExpectEquality(t, m.Contains(0x400500), true)
	test.ExpectEquality(t, m.Contains(0x500000), false)
	test.ExpectEquality(t, m.FileAddr(0x400500), uint64(0x500))
}

func TestAlign4(t *testing.T) {
	test.ExpectEquality(t, align4(0), uint32(0))
	test.ExpectEquality(t, align4(1), uint32(4))
	test.ExpectEquality(t, align4(4), uint32(4))
	test.ExpectEquality(t, align4(5), uint32(8))
}

func TestMergeByPath(t *testing.T) {
	in := []coreFileMapping{
		{start: 0x1000, end: 0x2000, path: "/bin/a"},
		{start: 0x4000, end: 0x5000, path: "/bin/a"},
		{start: 0x6000, end: 0x7000, path: "/bin/b"},
	}
	out := mergeByPath(in)
	test.ExpectEquality(t, len(out), 2)
	test.ExpectEquality(t, out[0].path, "/bin/a")
	test.ExpectEquality(t, out[0].start, uint64(0x1000))
	test.ExpectEquality(t, out[0].end, uint64(0x5000))
	test.ExpectEquality(t, out[1].path, "/bin/b")
}

func TestModuleForPC(t *testing.T) {
	s := NewSession([]*Module{
		{Name: "a", LowAddr: 0x1000, HighAddr: 0x2000},
		{Name: "b", LowAddr: 0x3000, HighAddr: 0x4000},
	}, nil)

	m, err := s.ModuleForPC(0x3500)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, m.Name, "b")

	_, err = s.ModuleForPC(0x9000)
	test.ExpectFailure(t, err)
}

func TestLoadConfigDefaults(t *testing.T) {
	// No explicit path and (almost certainly) no ~/.dwex.yaml in a test
	// environment: LoadConfig should fall back to DefaultSearchPaths
	// rather than treating a missing config file as an error.
	cfg, err := LoadConfig("")
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, cfg.SearchPaths, DefaultSearchPaths)
}

func TestBuildIDPath(t *testing.T) {
	test.ExpectEquality(t, BuildIDPath("/usr/lib/debug", "ab12cd34"), "/usr/lib/debug/.build-id/ab/12cd34.debug")
	test.ExpectEquality(t, BuildIDPath("/usr/lib/debug", ""), "")
}
