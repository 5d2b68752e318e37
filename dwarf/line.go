package dwarf

import (
	"fmt"
	"sort"
)

// LineRow is one row of a CU's line-number matrix (DWARF4 §6.2.2).
type LineRow struct {
	Address       uint64
	OpIndex       int
	File          int
	Line          int
	Column        int
	IsStmt        bool
	BasicBlock    bool
	EndSequence   bool
	PrologueEnd   bool
	EpilogueBegin bool
	Isa           int
	Discriminator int

	inputOrder int
}

// FileEntry is one row of a line program's file table.
type FileEntry struct {
	Name     string
	DirIndex int
	Mtime    uint64
	Length   uint64
}

// LineTable is the decoded line-number program for one compilation unit:
// its directory and file tables plus the sorted row matrix (spec §3, §4.5).
type LineTable struct {
	Dirs  []string
	Files []FileEntry
	Rows  []LineRow
}

// standardOpcodeArgCount gives the number of ULEB128 operands each
// DW_LNS_* standard opcode takes, per DWARF4 §6.2.5.2. The line program
// header's own opcode-length table is validated against this when it
// claims to define one of these opcodes (spec §9 open question: the
// original does not consistently enforce this; this implementation does).
var standardOpcodeArgCount = map[int]int{
	1:  0, // DW_LNS_copy
	2:  1, // DW_LNS_advance_pc
	3:  1, // DW_LNS_advance_line
	4:  1, // DW_LNS_set_file
	5:  1, // DW_LNS_set_column
	6:  0, // DW_LNS_negate_stmt
	7:  0, // DW_LNS_set_basic_block
	8:  0, // DW_LNS_const_add_pc
	9:  1, // DW_LNS_fixed_advance_pc (a uhalf, but the header counts it as 1)
	10: 0, // DW_LNS_set_prologue_end
	11: 0, // DW_LNS_set_epilogue_begin
	12: 1, // DW_LNS_set_isa
}

const (
	lneEndSequence     = 1
	lneSetAddress      = 2
	lneDefineFile      = 3
	lneSetDiscriminator = 4
)

type lineProgramHeader struct {
	version                  uint16
	minInstrLen              uint8
	maxOpsPerInstr           uint8
	defaultIsStmt            bool
	lineBase                 int8
	lineRange                uint8
	opcodeBase               uint8
	stdOpcodeLengths         []uint8
	dirs                     []string
	files                    []FileEntry
	programStart, programEnd int
}

// Lines returns cu's line table, decoding and caching it on first use.
func (r *Reader) Lines(cu *CompilationUnit) (*LineTable, error) {
	defer r.checkSingleThreaded()()
	lt, err := r.linesNoLock(cu)
	return lt, r.fail(err)
}

func (r *Reader) linesNoLock(cu *CompilationUnit) (*LineTable, error) {
	if cu.line != nil {
		return cu.line, nil
	}

	a, err := r.attrNoLock(r.CuDie(cu), AttrStmtList)
	if err != nil {
		return nil, fmt.Errorf("%w: no DW_AT_stmt_list on this CU", ErrNoDebugInfo)
	}
	stmtOff, ok := a.Value.(uint64)
	if !ok {
		return nil, fmt.Errorf("%w: DW_AT_stmt_list has non-offset form", ErrInvalidFormat)
	}

	sec, ok := r.prov.Section(SecLine)
	if !ok {
		return nil, fmt.Errorf("%w: .debug_line", ErrNoDebugInfo)
	}
	if stmtOff > uint64(len(sec.Bytes)) {
		return nil, fmt.Errorf("%w: DW_AT_stmt_list offset %d out of range", ErrInvalidFormat, stmtOff)
	}

	lt, err := decodeLineProgram(sec, int(stmtOff), cu)
	if err != nil {
		return nil, err
	}
	cu.line = lt
	return lt, nil
}

func decodeLineProgram(sec Section, offset int, cu *CompilationUnit) (*LineTable, error) {
	c := newCursor(sec.Bytes, sec.Endian)
	c.pos = offset

	length, offSize, err := c.initialLength()
	if err != nil {
		return nil, err
	}
	unitEnd := c.pos + int(length)

	hdr, err := readLineHeader(&c, offSize, unitEnd)
	if err != nil {
		return nil, err
	}

	lt := &LineTable{Dirs: hdr.dirs, Files: hdr.files}

	c.pos = hdr.programStart
	rows, err := runLineProgram(&c, hdr, cu.AddrSize, unitEnd)
	if err != nil {
		return nil, err
	}
	lt.Rows = rows

	sort.SliceStable(lt.Rows, func(i, j int) bool {
		a, b := lt.Rows[i], lt.Rows[j]
		if a.Address != b.Address {
			return a.Address < b.Address
		}
		if a.EndSequence != b.EndSequence {
			// !end_sequence sorts first at equal address.
			return !a.EndSequence
		}
		return a.inputOrder < b.inputOrder
	})

	if n := len(lt.Rows); n > 0 {
		lt.Rows[n-1].EndSequence = true
	}

	return lt, nil
}

func readLineHeader(c *cursor, offSize int, unitEnd int) (*lineProgramHeader, error) {
	h := &lineProgramHeader{}

	version, err := c.u16()
	if err != nil {
		return nil, err
	}
	if version < 2 || version > 4 {
		return nil, fmt.Errorf("%w: unsupported line program version %d", ErrInvalidFormat, version)
	}
	h.version = version

	headerLen, err := c.offset(offSize)
	if err != nil {
		return nil, err
	}
	programStart := c.pos + int(headerLen)

	h.minInstrLen, err = c.u8()
	if err != nil {
		return nil, err
	}

	h.maxOpsPerInstr = 1
	if version >= 4 {
		h.maxOpsPerInstr, err = c.u8()
		if err != nil {
			return nil, err
		}
		if h.maxOpsPerInstr == 0 {
			return nil, fmt.Errorf("%w: max_operations_per_instruction must be >= 1", ErrInvalidFormat)
		}
	}

	defaultIsStmt, err := c.u8()
	if err != nil {
		return nil, err
	}
	h.defaultIsStmt = defaultIsStmt != 0

	lineBase, err := c.u8()
	if err != nil {
		return nil, err
	}
	h.lineBase = int8(lineBase)

	h.lineRange, err = c.u8()
	if err != nil {
		return nil, err
	}
	if h.lineRange == 0 {
		return nil, fmt.Errorf("%w: line_range must be nonzero", ErrInvalidFormat)
	}

	h.opcodeBase, err = c.u8()
	if err != nil {
		return nil, err
	}

	h.stdOpcodeLengths = make([]uint8, h.opcodeBase)
	for i := 1; i < int(h.opcodeBase); i++ {
		n, err := c.u8()
		if err != nil {
			return nil, err
		}
		h.stdOpcodeLengths[i] = n
		if want, known := standardOpcodeArgCount[i]; known && int(n) != want {
			return nil, fmt.Errorf("%w: opcode %d declares %d args, DWARF requires %d", ErrInvalidFormat, i, n, want)
		}
	}

	for {
		name, err := c.cstr()
		if err != nil {
			return nil, err
		}
		if name == "" {
			break
		}
		h.dirs = append(h.dirs, name)
	}

	for {
		name, err := c.cstr()
		if err != nil {
			return nil, err
		}
		if name == "" {
			break
		}
		dirIdx, err := c.uleb()
		if err != nil {
			return nil, err
		}
		mtime, err := c.uleb()
		if err != nil {
			return nil, err
		}
		flen, err := c.uleb()
		if err != nil {
			return nil, err
		}
		h.files = append(h.files, FileEntry{Name: name, DirIndex: int(dirIdx), Mtime: mtime, Length: flen})
	}

	h.programStart = programStart
	h.programEnd = unitEnd
	return h, nil
}

type lineRegs struct {
	address       uint64
	opIndex       int
	file          int
	line          int
	column        int
	isStmt        bool
	basicBlock    bool
	prologueEnd   bool
	epilogueBegin bool
	isa           int
	discriminator int
}

func initialRegs(h *lineProgramHeader) lineRegs {
	return lineRegs{file: 1, line: 1, isStmt: h.defaultIsStmt}
}

func runLineProgram(c *cursor, h *lineProgramHeader, addrSize int, unitEnd int) ([]LineRow, error) {
	var rows []LineRow
	regs := initialRegs(h)
	order := 0

	emit := func(endSeq bool) {
		rows = append(rows, LineRow{
			Address:       regs.address,
			OpIndex:       regs.opIndex,
			File:          regs.file,
			Line:          regs.line,
			Column:        regs.column,
			IsStmt:        regs.isStmt,
			BasicBlock:    regs.basicBlock,
			EndSequence:   endSeq,
			PrologueEnd:   regs.prologueEnd,
			EpilogueBegin: regs.epilogueBegin,
			Isa:           regs.isa,
			Discriminator: regs.discriminator,
			inputOrder:    order,
		})
		order++
	}

	advance := func(opAdvance int) {
		maxOps := int(h.maxOpsPerInstr)
		if maxOps < 1 {
			maxOps = 1
		}
		total := regs.opIndex + opAdvance
		regs.address += uint64(h.minInstrLen) * uint64(total/maxOps)
		regs.opIndex = total % maxOps
	}

	for c.pos < unitEnd {
		op, err := c.u8()
		if err != nil {
			return nil, err
		}

		switch {
		case op == 0:
			length, err := c.uleb()
			if err != nil {
				return nil, err
			}
			sub := c.pos
			subOp, err := c.u8()
			if err != nil {
				return nil, err
			}
			switch subOp {
			case lneEndSequence:
				emit(true)
				regs = initialRegs(h)
			case lneSetAddress:
				addr, err := c.address(addrSize)
				if err != nil {
					return nil, err
				}
				regs.address = addr
				regs.opIndex = 0
			case lneDefineFile:
				name, err := c.cstr()
				if err != nil {
					return nil, err
				}
				dirIdx, err := c.uleb()
				if err != nil {
					return nil, err
				}
				mtime, err := c.uleb()
				if err != nil {
					return nil, err
				}
				flen, err := c.uleb()
				if err != nil {
					return nil, err
				}
				h.files = append(h.files, FileEntry{Name: name, DirIndex: int(dirIdx), Mtime: mtime, Length: flen})
			case lneSetDiscriminator:
				disc, err := c.uleb()
				if err != nil {
					return nil, err
				}
				regs.discriminator = int(disc)
			default:
				// unknown vendor extension: skip remaining bytes of the record
			}
			c.pos = sub + int(length)

		case int(op) >= int(h.opcodeBase):
			adj := int(op) - int(h.opcodeBase)
			lr := int(h.lineRange)
			regs.line += int(h.lineBase) + adj%lr
			advance(adj / lr)
			emit(false)
			regs.basicBlock = false
			regs.prologueEnd = false
			regs.epilogueBegin = false
			regs.discriminator = 0

		default:
			switch op {
			case 1: // DW_LNS_copy
				emit(false)
				regs.basicBlock = false
				regs.prologueEnd = false
				regs.epilogueBegin = false
				regs.discriminator = 0
			case 2: // DW_LNS_advance_pc
				v, err := c.uleb()
				if err != nil {
					return nil, err
				}
				advance(int(v))
			case 3: // DW_LNS_advance_line
				v, err := c.sleb()
				if err != nil {
					return nil, err
				}
				regs.line += int(v)
			case 4: // DW_LNS_set_file
				v, err := c.uleb()
				if err != nil {
					return nil, err
				}
				regs.file = int(v)
			case 5: // DW_LNS_set_column
				v, err := c.uleb()
				if err != nil {
					return nil, err
				}
				regs.column = int(v)
			case 6: // DW_LNS_negate_stmt
				regs.isStmt = !regs.isStmt
			case 7: // DW_LNS_set_basic_block
				regs.basicBlock = true
			case 8: // DW_LNS_const_add_pc
				adj := 255 - int(h.opcodeBase)
				advance(adj / int(h.lineRange))
			case 9: // DW_LNS_fixed_advance_pc
				v, err := c.u16()
				if err != nil {
					return nil, err
				}
				regs.address += uint64(v)
				regs.opIndex = 0
			case 10: // DW_LNS_set_prologue_end
				regs.prologueEnd = true
			case 11: // DW_LNS_set_epilogue_begin
				regs.epilogueBegin = true
			case 12: // DW_LNS_set_isa
				v, err := c.uleb()
				if err != nil {
					return nil, err
				}
				regs.isa = int(v)
			default:
				// vendor-defined standard opcode: skip its declared operand count
				n := int(h.stdOpcodeLengths[op])
				for i := 0; i < n; i++ {
					if _, err := c.uleb(); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	return rows, nil
}

// RowFor returns the row describing pc: the last row with Address <= pc
// that is not itself an EndSequence terminator for a prior range (an
// addr2line-style lookup, SPEC_FULL.md §4.14's AddrToLine). Reports
// ok=false if pc precedes the table's first row or falls exactly on (or
// past) an EndSequence row, i.e. outside every emitted range.
func (lt *LineTable) RowFor(pc uint64) (LineRow, bool) {
	i := sort.Search(len(lt.Rows), func(i int) bool {
		return lt.Rows[i].Address > pc
	})
	if i == 0 {
		return LineRow{}, false
	}
	row := lt.Rows[i-1]
	if row.EndSequence {
		return LineRow{}, false
	}
	return row, true
}
