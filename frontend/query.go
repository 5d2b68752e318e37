package frontend

import (
	"fmt"

	"github.com/dwex-project/dwex/dwarf"
)

// SourceLocation is the result of AddrToLine: the decoded source position
// for a runtime address.
type SourceLocation struct {
	File   string
	Line   int
	Column int
}

// AddrToLine resolves a runtime address to its source file and line,
// composing dwarf.CuByPc and dwarf.Lines the way spec.md §1 describes the
// front-end's address→source query (SPEC_FULL.md §4.14). debugPath, if
// non-empty, is used instead of the module's own file (the result of a
// prior FindDebugInfo call); pass "" to read DWARF directly from the
// module.
func (s *Session) AddrToLine(pc uint64, debugPath string) (SourceLocation, error) {
	m, err := s.ModuleForPC(pc)
	if err != nil {
		return SourceLocation{}, err
	}

	r, err := s.readerFor(m, debugPath)
	if err != nil {
		return SourceLocation{}, err
	}

	fileAddr := m.FileAddr(pc)

	cu, err := r.CuByPc(fileAddr)
	if err != nil {
		return SourceLocation{}, err
	}

	lt, err := r.Lines(cu)
	if err != nil {
		return SourceLocation{}, err
	}

	row, ok := lt.RowFor(fileAddr)
	if !ok {
		return SourceLocation{}, fmt.Errorf("%w: no line entry for %#x", dwarf.ErrNoMatch, fileAddr)
	}

	name := ""
	if row.File >= 0 && row.File < len(lt.Files) {
		name = lt.Files[row.File].Name
	}

	return SourceLocation{File: name, Line: row.Line, Column: row.Column}, nil
}

// AddrToFunc resolves a runtime address to the name of the innermost
// function (subprogram or inlined_subroutine) containing it, composing
// dwarf.CuByPc and dwarf.ScopesCovering (SPEC_FULL.md §4.14). ELF
// symbol-table fallback resolution is explicitly out of scope here (see
// SPEC_FULL.md's Non-goals): a PC with DWARF scope info missing or
// incomplete simply fails with dwarf.ErrNotPresent.
func (s *Session) AddrToFunc(pc uint64, debugPath string) (string, error) {
	m, err := s.ModuleForPC(pc)
	if err != nil {
		return "", err
	}

	r, err := s.readerFor(m, debugPath)
	if err != nil {
		return "", err
	}

	fileAddr := m.FileAddr(pc)

	cu, err := r.CuByPc(fileAddr)
	if err != nil {
		return "", err
	}

	chain, err := r.ScopesCovering(cu, fileAddr)
	if err != nil {
		return "", err
	}

	for _, die := range chain {
		a, err := r.AttrIntegrate(die, dwarf.AttrName)
		if err != nil {
			continue
		}
		if name, ok := a.Value.(string); ok && name != "" {
			return name, nil
		}
	}

	return "", fmt.Errorf("%w: no named scope covers %#x", dwarf.ErrNotPresent, fileAddr)
}
