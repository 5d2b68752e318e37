package frontend

import (
	"bufio"
	"debug/elf"
	"io"
	"os"
	"path/filepath"

	"github.com/dwex-project/dwex/errors"
	"github.com/dwex-project/dwex/paths"
)

// FindDebugInfo resolves m's separate debuginfo file, trying in turn: the
// module's own file (it may already carry DWARF), a build-id path under
// each of searchPaths, dwex's own debuginfod-style cache directory, and the
// .gnu_debuglink name next to the binary, in its .debug subdirectory, and
// under /usr/lib/debug. This mirrors GDB's "Separate Debug Files" algorithm
// (https://sourceware.org/gdb/onlinedocs/gdb/Separate-Debug-Files.html),
// the same one other_examples/psanford-pptrace's FindDwarf implements for
// a single-file case; this generalizes it to multiple configured search
// roots (SPEC_FULL.md §4.14).
func FindDebugInfo(m *Module, searchPaths []string) (string, error) {
	if m.Path != "" && pathHasDWARF(m.Path) {
		return m.Path, nil
	}

	var candidates []string

	if m.BuildID != "" && len(m.BuildID) > 2 {
		prefix, suffix := m.BuildID[:2], m.BuildID[2:]+".debug"
		for _, root := range searchPaths {
			candidates = append(candidates, filepath.Join(root, ".build-id", prefix, suffix))
		}
		candidates = append(candidates, filepath.Join("/usr/lib/debug/.build-id", prefix, suffix))

		if cacheDir, err := debuginfodCacheDir(); err == nil {
			candidates = append(candidates, filepath.Join(cacheDir, m.BuildID, "debuginfo"))
		}
	}

	if m.Path != "" {
		if link, ok := readDebugLinkName(m.Path); ok {
			dir := filepath.Dir(m.Path)
			candidates = append(candidates,
				filepath.Join(dir, link),
				filepath.Join(dir, ".debug", link),
				filepath.Join("/usr/lib/debug", dir, link),
			)
		}
	}

	for _, c := range candidates {
		if pathHasDWARF(c) {
			return c, nil
		}
	}

	return "", errors.Errorf(errors.DebugInfoNotFound, m.Name)
}

// debuginfodCacheDir is $HOME/.dwex/debuginfod, the root dwex caches
// debuginfod-fetched debuginfo under, built with paths.ResourcePath the way
// paths/paths.go names dwex's own resource subtree.
func debuginfodCacheDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Errorf(errors.HomeDirUnknown, err)
	}
	rel, err := paths.ResourcePath("debuginfod", "")
	if err != nil {
		return "", err
	}
	return filepath.Join(home, rel), nil
}

func pathHasDWARF(path string) bool {
	ef, err := elf.Open(path)
	if err != nil {
		return false
	}
	defer ef.Close()
	d, err := ef.DWARF()
	return err == nil && d != nil
}

// readDebugLinkName decodes .gnu_debuglink: a NUL-terminated file name,
// padded to a 4-byte boundary, followed by a CRC32 this toolkit does not
// verify (spec.md's core has no interest in checksum validation; a
// mismatched CRC is treated the same as a matching one, same tolerance
// psanford-pptrace's FindDwarf shows for its own crc field).
func readDebugLinkName(path string) (string, bool) {
	ef, err := elf.Open(path)
	if err != nil {
		return "", false
	}
	defer ef.Close()

	sec := ef.Section(".gnu_debuglink")
	if sec == nil {
		return "", false
	}

	r := bufio.NewReader(sec.Open())
	name, err := r.ReadBytes(0)
	if err != nil && err != io.EOF {
		return "", false
	}
	if len(name) == 0 {
		return "", false
	}
	return string(name[:len(name)-1]), true
}
