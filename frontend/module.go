// Package frontend is the process/core front-end the dwarf core is
// deliberately ignorant of (spec.md §1): module discovery from a live
// process or core file, debuginfo search-path resolution, and the
// address→source/function queries built on top of the dwarf and
// elfsection packages (SPEC_FULL.md §4.14, a libdwfl-alike).
package frontend

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/dwex-project/dwex/dwarf"
	dwexerrors "github.com/dwex-project/dwex/errors"
	"github.com/dwex-project/dwex/elfsection"
	"github.com/dwex-project/dwex/logger"
)

// ErrUnsupported is returned by front-end operations with no meaning on
// the running platform (KernelModules when /proc/modules cannot be
// opened). AttachProcess does not use it; it wraps the open error itself.
var ErrUnsupported = errors.New("frontend: unsupported on this platform")

// Module is one mapped or loaded object: a shared library, the main
// executable, or (under OpenCore) whatever PT_LOAD/NT_FILE identifies.
type Module struct {
	Name     string
	LowAddr  uint64
	HighAddr uint64
	BuildID  string

	// Path is the backing file on disk, if known. Empty for anonymous
	// mappings, which carry no debuginfo.
	Path string

	// LoadBias is the difference between this module's runtime address
	// and the virtual address its ELF file declares for the same byte
	// (0 for a non-PIE executable; the slide applied by the dynamic
	// linker or kernel for a PIE/shared object). FileAddr subtracts it
	// back out before querying DWARF, which only ever knows file
	// addresses.
	LoadBias uint64
}

// Contains reports whether pc falls within the module's mapped range.
func (m *Module) Contains(pc uint64) bool {
	return pc >= m.LowAddr && pc < m.HighAddr
}

// FileAddr translates a runtime address within this module back to the
// virtual address its ELF file (and therefore its DWARF info) uses.
func (m *Module) FileAddr(runtimeAddr uint64) uint64 {
	return runtimeAddr - m.LoadBias
}

// computeLoadBias opens path and returns mappedLow minus the lowest
// PT_LOAD segment's virtual address, i.e. the slide applied to get from
// file addresses to the runtime addresses actually observed
// (AttachProcess's /proc/<pid>/maps, or OpenCore's NT_FILE ranges).
func computeLoadBias(path string, mappedLow uint64) uint64 {
	ef, err := elf.Open(path)
	if err != nil {
		return 0
	}
	defer ef.Close()

	var minVaddr uint64
	first := true
	for _, p := range ef.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if first || p.Vaddr < minVaddr {
			minVaddr = p.Vaddr
			first = false
		}
	}
	if first {
		return 0
	}
	return mappedLow - minVaddr
}

// Session owns every Module discovered by AttachProcess/OpenCore, plus the
// dwarf.Reader and open file handle lazily created for each one as its
// debuginfo is actually needed. Spec §5's resource-discipline extension:
// these file descriptors are front-end resources, not core dwarf.Reader
// resources, and Close releases them.
type Session struct {
	Modules []*Module
	Log     *logger.Logger

	byModule map[*Module]*moduleReader
}

type moduleReader struct {
	closer io.Closer
	reader *dwarf.Reader
	arch   dwarf.Architecture
}

// NewSession wraps a discovered module list. log may be nil, in which case
// a private, unbounded logger that nothing else reads is used.
func NewSession(modules []*Module, log *logger.Logger) *Session {
	sort.Slice(modules, func(i, j int) bool { return modules[i].LowAddr < modules[j].LowAddr })
	if log == nil {
		log = logger.NewLogger(0)
	}
	return &Session{Modules: modules, Log: log, byModule: make(map[*Module]*moduleReader)}
}

// ModuleForPC returns the module mapped over pc, or a curated
// errors.ModuleNotFound error.
func (s *Session) ModuleForPC(pc uint64) (*Module, error) {
	for _, m := range s.Modules {
		if m.Contains(pc) {
			return m, nil
		}
	}
	return nil, dwexerrors.Errorf(dwexerrors.ModuleNotFound, pc)
}

// Reader exposes readerFor to callers outside the package (cmd/stackwalker,
// which needs a module's dwarf.Reader directly to drive CfiFrameFor/CfaFor
// rather than through AddrToLine/AddrToFunc).
func (s *Session) Reader(m *Module, debugPath string) (*dwarf.Reader, error) {
	return s.readerFor(m, debugPath)
}

// readerFor opens (and caches) m's debuginfo file as a dwarf.Reader,
// resolving debuginfo by DebugPath first (see FindDebugInfo) if the
// caller has already done that resolution, otherwise directly against
// m.Path.
func (s *Session) readerFor(m *Module, debugPath string) (*dwarf.Reader, error) {
	if mr, ok := s.readersByModule()[m]; ok {
		return mr.reader, nil
	}

	path := debugPath
	if path == "" {
		path = m.Path
	}
	if path == "" {
		return nil, fmt.Errorf("%w: module %q has no backing file", dwarf.ErrNoDebugInfo, m.Name)
	}

	prov, closer, err := elfsection.Open(path, nil)
	if err != nil {
		return nil, err
	}

	s.Log.Logf(logger.Allow, "frontend", "opened debuginfo for %q from %s", m.Name, path)

	reader := dwarf.NewReader(prov, nil, s.Log)
	s.byModule[m] = &moduleReader{closer: closer, reader: reader}
	return reader, nil
}

func (s *Session) readersByModule() map[*Module]*moduleReader {
	if s.byModule == nil {
		s.byModule = make(map[*Module]*moduleReader)
	}
	return s.byModule
}

// Close releases every file handle opened lazily by readerFor.
func (s *Session) Close() error {
	var first error
	for _, mr := range s.byModule {
		if err := mr.closer.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.byModule = nil
	return first
}
