package dwarf

import (
	"fmt"
	"sort"
)

// CompilationUnit covers a half-open byte range [Start, End) in .debug_info
// (or .debug_types). Spec §3: Start < End, the first DIE immediately
// follows the CU header at HeaderEnd, and every DIE offset in this CU falls
// inside [HeaderEnd, End).
type CompilationUnit struct {
	Start      uint64
	HeaderEnd  uint64
	End        uint64
	Version    uint16
	AddrSize   int // 4 or 8
	OffsetSize int // 4 or 8
	AbbrevOff  uint64
	FromTypes  bool   // true if this CU was read from .debug_types
	TypeSig    uint64 // valid iff FromTypes
	TypeOffset uint64 // valid iff FromTypes: offset of the type's DIE

	abbrev *abbrevTable
	line   *LineTable // populated lazily by Reader.Lines
	exprs  map[uint64][]ExprOp
}

// unitIndex is the lazily-built, ordered set of CompilationUnit records
// described in spec §4.3.
type unitIndex struct {
	r     *Reader
	units []*CompilationUnit // sorted by Start
	next  uint64             // next unread offset into .debug_info
	types []*CompilationUnit
	typesNext uint64
	done  bool
	typesDone bool
}

func newUnitIndex(r *Reader) *unitIndex {
	return &unitIndex{r: r}
}

// find returns the CU covering offset, extending the index by reading
// further CU headers if necessary.
func (ui *unitIndex) find(offset uint64) (*CompilationUnit, error) {
	if i := ui.search(offset); i >= 0 {
		return ui.units[i], nil
	}

	sec, ok := ui.r.prov.Section(SecInfo)
	if !ok {
		return nil, fmt.Errorf("%w: .debug_info", ErrNoDebugInfo)
	}

	for ui.next < uint64(len(sec.Bytes)) {
		cu, next, err := ui.readHeader(sec, ui.next, false)
		if err != nil {
			return nil, err
		}
		ui.units = append(ui.units, cu)
		ui.next = next
		if offset >= cu.Start && offset < cu.End {
			return cu, nil
		}
	}

	return nil, fmt.Errorf("%w: no compilation unit covers offset %d", ErrNotPresent, offset)
}

// all forces the entire index to be built and returns it in file order.
func (ui *unitIndex) all() ([]*CompilationUnit, error) {
	if ui.done {
		return ui.units, nil
	}

	sec, ok := ui.r.prov.Section(SecInfo)
	if !ok {
		return nil, fmt.Errorf("%w: .debug_info", ErrNoDebugInfo)
	}

	for ui.next < uint64(len(sec.Bytes)) {
		cu, next, err := ui.readHeader(sec, ui.next, false)
		if err != nil {
			return nil, err
		}
		ui.units = append(ui.units, cu)
		ui.next = next
	}
	ui.done = true

	return ui.units, nil
}

// iterNext returns the CU immediately following prev in file order,
// extending the index as needed. A nil prev means "the first CU".
func (ui *unitIndex) iterNext(prev *CompilationUnit) (*CompilationUnit, error) {
	if prev == nil {
		if len(ui.units) > 0 {
			return ui.units[0], nil
		}
		sec, ok := ui.r.prov.Section(SecInfo)
		if !ok || len(sec.Bytes) == 0 {
			return nil, ErrNotPresent
		}
		return ui.find(0)
	}

	if i := ui.search(prev.Start); i >= 0 && i+1 < len(ui.units) {
		return ui.units[i+1], nil
	}

	return ui.find(prev.End)
}

func (ui *unitIndex) search(offset uint64) int {
	i := sort.Search(len(ui.units), func(i int) bool {
		return ui.units[i].End > offset
	})
	if i < len(ui.units) && offset >= ui.units[i].Start && offset < ui.units[i].End {
		return i
	}
	return -1
}

// readHeader reads one CU header (spec §3, §4.3) starting at offset within
// sec, and returns the constructed CompilationUnit plus the offset of the
// CU immediately following it.
func (ui *unitIndex) readHeader(sec Section, offset uint64, fromTypes bool) (*CompilationUnit, uint64, error) {
	c := newCursor(sec.Bytes, sec.Endian)
	c.pos = int(offset)

	length, offSize, err := c.initialLength()
	if err != nil {
		return nil, 0, err
	}
	end := uint64(c.pos) + length

	version, err := c.u16()
	if err != nil {
		return nil, 0, err
	}
	if version < 2 || version > 4 {
		return nil, 0, fmt.Errorf("%w: unsupported DWARF version %d", ErrInvalidFormat, version)
	}

	var typeSig uint64
	var typeOffset uint64
	var abbrevOff uint64
	var addrSize uint8

	if fromTypes {
		abbrevOff, err = c.offset(offSize)
		if err != nil {
			return nil, 0, err
		}
		addrSize, err = c.u8()
		if err != nil {
			return nil, 0, err
		}
		typeSig, err = c.u64()
		if err != nil {
			return nil, 0, err
		}
		typeOffset, err = c.offset(offSize)
		if err != nil {
			return nil, 0, err
		}
	} else {
		abbrevOff, err = c.offset(offSize)
		if err != nil {
			return nil, 0, err
		}
		addrSize, err = c.u8()
		if err != nil {
			return nil, 0, err
		}
	}

	if addrSize != 4 && addrSize != 8 {
		return nil, 0, fmt.Errorf("%w: unsupported address size %d", ErrInvalidFormat, addrSize)
	}

	cu := &CompilationUnit{
		Start:      offset,
		HeaderEnd:  uint64(c.pos),
		End:        end,
		Version:    version,
		AddrSize:   int(addrSize),
		OffsetSize: offSize,
		AbbrevOff:  abbrevOff,
		FromTypes:  fromTypes,
		TypeSig:    typeSig,
		TypeOffset: typeOffset,
	}

	if cu.Start >= cu.End || cu.HeaderEnd > cu.End {
		return nil, 0, fmt.Errorf("%w: malformed compilation unit header at offset %d", ErrInvalidFormat, offset)
	}

	return cu, end, nil
}

// abbrevTable lazily resolves (and caches) this CU's abbreviation table.
func (r *Reader) abbrevTableFor(cu *CompilationUnit) (*abbrevTable, error) {
	if cu.abbrev != nil {
		return cu.abbrev, nil
	}
	sec, ok := r.prov.Section(SecAbbrev)
	if !ok {
		return nil, fmt.Errorf("%w: .debug_abbrev", ErrNoDebugInfo)
	}
	cu.abbrev = newAbbrevTable(sec.Bytes, cu.AbbrevOff, sec.Endian)
	return cu.abbrev, nil
}
