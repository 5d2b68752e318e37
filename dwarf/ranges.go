package dwarf

import (
	"fmt"
	"sort"
)

// Arange is one decoded entry from .debug_aranges: a contiguous address
// range and the compilation unit it belongs to (spec §4.6).
type Arange struct {
	Addr   uint64
	Length uint64
	CU     *CompilationUnit
}

// arangesIndex is the lazily-built PC -> CU index described in spec §4.6,
// backed by .debug_aranges.
type arangesIndex struct {
	r     *Reader
	list  []Arange
	built bool
}

func newArangesIndex(r *Reader) *arangesIndex {
	return &arangesIndex{r: r}
}

func (ai *arangesIndex) build() error {
	if ai.built {
		return nil
	}
	ai.built = true

	sec, ok := ai.r.prov.Section(SecAranges)
	if !ok {
		return fmt.Errorf("%w: .debug_aranges", ErrNoDebugInfo)
	}

	c := newCursor(sec.Bytes, sec.Endian)
	for !c.done() {
		if err := ai.readSet(&c); err != nil {
			return err
		}
	}

	sort.Slice(ai.list, func(i, j int) bool { return ai.list[i].Addr < ai.list[j].Addr })
	return nil
}

func (ai *arangesIndex) readSet(c *cursor) error {
	length, offSize, err := c.initialLength()
	if err != nil {
		return err
	}
	setEnd := c.pos + int(length)

	version, err := c.u16()
	if err != nil {
		return err
	}
	if version != 2 {
		return fmt.Errorf("%w: unsupported .debug_aranges version %d", ErrInvalidFormat, version)
	}

	cuOffset, err := c.offset(offSize)
	if err != nil {
		return err
	}
	addrSize, err := c.u8()
	if err != nil {
		return err
	}
	if addrSize != 4 && addrSize != 8 {
		return fmt.Errorf("%w: unsupported address size %d in .debug_aranges", ErrInvalidFormat, addrSize)
	}
	segSize, err := c.u8()
	if err != nil {
		return err
	}
	if segSize != 0 {
		return fmt.Errorf("%w: segmented addressing not supported", ErrInvalidFormat)
	}

	// pairs are aligned to 2*address_size, measured from the start of the
	// section (the same boundary as from the set's start whenever the set
	// itself begins on one).
	tupleSize := 2 * int(addrSize)
	pos := c.pos
	if rem := pos % tupleSize; rem != 0 {
		pos += tupleSize - rem
	}
	c.pos = pos

	cu, err := ai.r.units.find(cuOffset)
	if err != nil {
		return err
	}

	for c.pos < setEnd {
		addr, err := c.address(int(addrSize))
		if err != nil {
			return err
		}
		l, err := c.address(int(addrSize))
		if err != nil {
			return err
		}
		if addr == 0 && l == 0 {
			break
		}
		ai.list = append(ai.list, Arange{Addr: addr, Length: l, CU: cu})
	}

	c.pos = setEnd
	return nil
}

// cuByPC returns the compilation unit whose arange entry covers pc.
func (ai *arangesIndex) cuByPC(pc uint64) (*CompilationUnit, error) {
	if err := ai.build(); err != nil {
		return nil, err
	}

	i := sort.Search(len(ai.list), func(i int) bool { return ai.list[i].Addr > pc }) - 1
	if i < 0 || i >= len(ai.list) {
		return nil, fmt.Errorf("%w: no arange covers pc %#x", ErrNoMatch, pc)
	}
	a := ai.list[i]
	if pc < a.Addr || pc >= a.Addr+a.Length {
		return nil, fmt.Errorf("%w: no arange covers pc %#x", ErrNoMatch, pc)
	}
	return a.CU, nil
}

// allSentinel reports whether v, truncated to addrSize bytes, is the
// "all ones" base-address-selector sentinel.
func allSentinel(v uint64, addrSize int) bool {
	if addrSize == 4 {
		return v == 0xffffffff
	}
	return v == ^uint64(0)
}

// Ranges returns the sequence of half-open PC ranges associated with die:
// either its contiguous DW_AT_low_pc/DW_AT_high_pc pair, or every range
// yielded by its DW_AT_ranges list (spec §4.6).
func (r *Reader) Ranges(die DieCursor) ([]Range, error) {
	defer r.checkSingleThreaded()()
	rs, err := r.rangesNoLock(die)
	return rs, r.fail(err)
}

// Range is a half-open PC interval.
type Range struct {
	Low, High uint64
}

func (r *Reader) rangesNoLock(die DieCursor) ([]Range, error) {
	low, lowOK, err := r.lowPC(die)
	if err != nil {
		return nil, err
	}

	if rngAttr, err := r.attrNoLock(die, AttrRanges); err == nil {
		off, ok := rngAttr.Value.(uint64)
		if !ok {
			return nil, fmt.Errorf("%w: DW_AT_ranges has non-offset form", ErrInvalidFormat)
		}
		base := uint64(0)
		if lowOK {
			base = low
		} else if epAttr, err := r.attrNoLock(die, AttrEntryPc); err == nil {
			if v, ok := epAttr.Value.(uint64); ok {
				base = v
			}
		}
		return r.decodeRangeList(die.cu, off, base)
	}

	high, highOK, err := r.highPC(die, low)
	if err != nil {
		return nil, err
	}
	if lowOK && highOK {
		return []Range{{Low: low, High: high}}, nil
	}

	return nil, fmt.Errorf("%w: no DW_AT_ranges and no low/high pc", ErrNotPresent)
}

func (r *Reader) lowPC(die DieCursor) (uint64, bool, error) {
	a, err := r.attrNoLock(die, AttrLowpc)
	if err != nil {
		return 0, false, nil
	}
	v, ok := a.Value.(uint64)
	return v, ok, nil
}

// highPC interprets DW_AT_high_pc per DWARF4: a FormAddr value is an
// absolute address, while a constant-class form is an offset from low.
func (r *Reader) highPC(die DieCursor, low uint64) (uint64, bool, error) {
	a, err := r.attrNoLock(die, AttrHighpc)
	if err != nil {
		return 0, false, nil
	}
	v, ok := a.Value.(uint64)
	if !ok {
		return 0, false, nil
	}
	if a.Form == FormAddr {
		return v, true, nil
	}
	return low + v, true, nil
}

func (r *Reader) decodeRangeList(cu *CompilationUnit, offset uint64, base uint64) ([]Range, error) {
	sec, ok := r.prov.Section(SecRanges)
	if !ok {
		return nil, fmt.Errorf("%w: .debug_ranges", ErrNoDebugInfo)
	}
	if offset > uint64(len(sec.Bytes)) {
		return nil, fmt.Errorf("%w: .debug_ranges offset %d out of range", ErrInvalidFormat, offset)
	}

	c := newCursor(sec.Bytes, sec.Endian)
	c.pos = int(offset)

	var out []Range
	for {
		begin, err := c.address(cu.AddrSize)
		if err != nil {
			return nil, err
		}
		end, err := c.address(cu.AddrSize)
		if err != nil {
			return nil, err
		}

		if allSentinel(begin, cu.AddrSize) {
			base = end
			continue
		}
		if begin == 0 && end == 0 {
			break
		}
		out = append(out, Range{Low: base + begin, High: base + end})
	}

	return out, nil
}

// HasPC reports whether die's address ranges (contiguous or from
// DW_AT_ranges) contain pc.
func (r *Reader) HasPC(die DieCursor, pc uint64) (bool, error) {
	defer r.checkSingleThreaded()()
	rs, err := r.rangesNoLock(die)
	if err != nil {
		return false, r.fail(err)
	}
	for _, rg := range rs {
		if pc >= rg.Low && pc < rg.High {
			return true, nil
		}
	}
	return false, nil
}
