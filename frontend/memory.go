package frontend

import (
	"debug/elf"
	"fmt"
	"os"

	"github.com/dwex-project/dwex/errors"
)

// MemReader reads len(buf) bytes of target memory starting at addr. The
// stackwalker composes it with dwarf.CfaFor to dereference return-address
// slots; a core file's PT_LOAD segments and a live process's /proc/<pid>/mem
// both implement it the same way.
type MemReader interface {
	ReadAt(addr uint64, buf []byte) error
}

// ProcessMemory reads a live process's address space through
// /proc/<pid>/mem, the same interface AttachProcess uses to build that
// process's maps.
type ProcessMemory struct {
	f *os.File
}

// OpenProcessMemory opens /proc/<pid>/mem for reading.
func OpenProcessMemory(pid int) (*ProcessMemory, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/mem", pid))
	if err != nil {
		return nil, errors.Errorf(errors.ProcessMemoryUnavailable, err)
	}
	return &ProcessMemory{f: f}, nil
}

// ReadAt implements MemReader.
func (p *ProcessMemory) ReadAt(addr uint64, buf []byte) error {
	n, err := p.f.ReadAt(buf, int64(addr))
	if err != nil {
		return fmt.Errorf("frontend: reading process memory at %#x: %w", addr, err)
	}
	if n != len(buf) {
		return errors.Errorf(errors.ShortMemoryRead, addr, n, len(buf))
	}
	return nil
}

// Close releases the underlying /proc/<pid>/mem file descriptor.
func (p *ProcessMemory) Close() error {
	return p.f.Close()
}

// CoreMemory reads a core file's address space by locating the PT_LOAD
// segment each address falls within, the way OpenCore's NT_FILE scan
// locates the module backing a given address range.
type CoreMemory struct {
	core *elf.File
	segs []coreSegment
}

type coreSegment struct {
	vaddr  uint64
	filesz uint64
	prog   *elf.Prog
}

// OpenCoreMemory opens path as an ELF core file and indexes its PT_LOAD
// segments for ReadAt. The returned CoreMemory owns the file and must be
// closed with Close.
func OpenCoreMemory(path string) (*CoreMemory, error) {
	ef, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("frontend: %w", err)
	}

	cm := &CoreMemory{core: ef}
	for _, p := range ef.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		cm.segs = append(cm.segs, coreSegment{vaddr: p.Vaddr, filesz: p.Filesz, prog: p})
	}
	return cm, nil
}

// ReadAt implements MemReader.
func (c *CoreMemory) ReadAt(addr uint64, buf []byte) error {
	for _, s := range c.segs {
		if addr < s.vaddr || addr+uint64(len(buf)) > s.vaddr+s.filesz {
			continue
		}
		n, err := s.prog.ReadAt(buf, int64(addr-s.vaddr))
		if err != nil {
			return fmt.Errorf("frontend: reading core segment at %#x: %w", addr, err)
		}
		if n != len(buf) {
			return errors.Errorf(errors.ShortMemoryRead, addr, n, len(buf))
		}
		return nil
	}
	return errors.Errorf(errors.SegmentNotCovered, addr)
}

// Close releases the underlying core file.
func (c *CoreMemory) Close() error {
	return c.core.Close()
}
