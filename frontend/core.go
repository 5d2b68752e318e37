package frontend

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"

	"github.com/dwex-project/dwex/errors"
)

// noteTypeFile is NT_FILE, the core-file note listing every file-backed
// mapping present when the core was dumped (struct layout documented in
// the Linux kernel's fs/binfmt_elf.c fill_files_note()).
const noteTypeFile = 0x46494c45 // the ASCII bytes of "FILE" read as a big-endian u32

// OpenCore parses an ELF core file's PT_LOAD segments and NT_FILE note
// into the same Module list AttachProcess produces from a live process
// (SPEC_FULL.md §4.14, grounded on libdwfl/offline.c and
// linux-kernel-modules.c's core-note handling).
func OpenCore(path string) (*Session, error) {
	ef, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("frontend: %w", err)
	}
	defer ef.Close()

	if ef.Type != elf.ET_CORE {
		return nil, errors.Errorf(errors.NotACoreFile, path)
	}

	files, err := coreFileMappings(ef)
	if err != nil {
		// NT_FILE is best-effort: some core dumps (e.g. from minimal
		// fault handlers) omit it. Fall back to PT_LOAD ranges with no
		// path information; FindDebugInfo then has nothing to search
		// from for those modules but the address ranges remain usable.
		files = nil
	}

	modules := make([]*Module, 0, len(files))
	for _, fm := range files {
		modules = append(modules, &Module{
			Name:     fm.path,
			Path:     fm.path,
			LowAddr:  fm.start,
			HighAddr: fm.end,
			BuildID:  readBuildIDFromFile(fm.path),
			LoadBias: computeLoadBias(fm.path, fm.start),
		})
	}

	if len(modules) == 0 {
		for _, p := range ef.Progs {
			if p.Type != elf.PT_LOAD {
				continue
			}
			modules = append(modules, &Module{
				Name:     fmt.Sprintf("load@%#x", p.Vaddr),
				LowAddr:  p.Vaddr,
				HighAddr: p.Vaddr + p.Memsz,
			})
		}
	}

	return NewSession(modules, nil), nil
}

type coreFileMapping struct {
	start, end, fileOfs uint64
	path                string
}

// coreFileMappings decodes the NT_FILE note: a header of (count, page_size)
// followed by `count` (start, end, file_ofs) triples and then `count`
// NUL-terminated path strings in the same order.
func coreFileMappings(ef *elf.File) ([]coreFileMapping, error) {
	for _, p := range ef.Progs {
		if p.Type != elf.PT_NOTE {
			continue
		}
		data := make([]byte, p.Filesz)
		if _, err := p.ReadAt(data, 0); err != nil {
			continue
		}

		if fm, ok := scanNotesForFile(ef.ByteOrder, data); ok {
			return fm, nil
		}
	}
	return nil, errors.Errorf(errors.NoNTFileNote)
}

func scanNotesForFile(order binary.ByteOrder, data []byte) ([]coreFileMapping, bool) {
	pos := 0
	for pos+12 <= len(data) {
		namesz := order.Uint32(data[pos : pos+4])
		descsz := order.Uint32(data[pos+4 : pos+8])
		typ := order.Uint32(data[pos+8 : pos+12])

		pos += 12
		nameEnd := pos + int(align4(namesz))
		descEnd := nameEnd + int(align4(descsz))
		if nameEnd > len(data) || descEnd > len(data) {
			return nil, false
		}

		if typ == noteTypeFile {
			desc := data[nameEnd : nameEnd+int(descsz)]
			fm, ok := decodeFileNote(order, desc)
			return fm, ok
		}

		pos = descEnd
	}
	return nil, false
}

func decodeFileNote(order binary.ByteOrder, desc []byte) ([]coreFileMapping, bool) {
	if len(desc) < 16 {
		return nil, false
	}
	count := order.Uint64(desc[0:8])
	// page_size at desc[8:16] is unused here: start/end are already in
	// byte addresses in every kernel version this toolkit targets.

	entries := desc[16:]
	const entrySize = 24 // three u64s: start, end, file_ofs
	if uint64(len(entries)) < count*entrySize {
		return nil, false
	}

	out := make([]coreFileMapping, count)
	for i := uint64(0); i < count; i++ {
		e := entries[i*entrySize : i*entrySize+entrySize]
		out[i].start = order.Uint64(e[0:8])
		out[i].end = order.Uint64(e[8:16])
		out[i].fileOfs = order.Uint64(e[16:24])
	}

	names := entries[count*entrySize:]
	parts := bytes.Split(names, []byte{0})
	for i := uint64(0); i < count && int(i) < len(parts); i++ {
		out[i].path = string(parts[i])
	}

	return mergeByPath(out), true
}

// mergeByPath collapses multiple PT_LOAD-derived ranges for the same
// backing file (text and data segments are separate NT_FILE entries) into
// one Module-shaped range per path, same as AttachProcess does for
// /proc/<pid>/maps.
func mergeByPath(in []coreFileMapping) []coreFileMapping {
	byPath := make(map[string]*coreFileMapping)
	var order []string
	for _, fm := range in {
		if fm.path == "" {
			continue
		}
		if existing, ok := byPath[fm.path]; ok {
			if fm.start < existing.start {
				existing.start = fm.start
			}
			if fm.end > existing.end {
				existing.end = fm.end
			}
			continue
		}
		cp := fm
		byPath[fm.path] = &cp
		order = append(order, fm.path)
	}

	out := make([]coreFileMapping, 0, len(order))
	for _, p := range order {
		out = append(out, *byPath[p])
	}
	return out
}
