package dwarf

import "fmt"

// MacinfoKind identifies the kind of one .debug_macinfo entry
// (DW_MACINFO_*, DWARF4 §7.22).
type MacinfoKind uint8

const (
	MacinfoDefine    MacinfoKind = 0x01
	MacinfoUndef     MacinfoKind = 0x02
	MacinfoStartFile MacinfoKind = 0x03
	MacinfoEndFile   MacinfoKind = 0x04
	MacinfoVendorExt MacinfoKind = 0xff
)

// MacroEntry is one decoded .debug_macinfo record (SPEC_FULL.md §3/§4.11).
// The core performs no macro expansion; this is an iterator over the raw
// entries only, per spec.md §1's non-goals.
type MacroEntry struct {
	Kind MacinfoKind

	// Line is the source line for Define/Undef/StartFile entries.
	Line uint64

	// Value holds the entry's payload: "name value" text for Define, the
	// macro name for Undef, and the vendor-defined string for VendorExt.
	// Empty for StartFile (which carries FileIndex instead) and EndFile.
	Value string

	// FileIndex is the file-table index for StartFile entries.
	FileIndex uint64

	// VendorConst is the vendor-defined constant for VendorExt entries.
	VendorConst uint64
}

// Macros decodes cu's .debug_macinfo sequence, starting at the offset
// named by its DW_AT_macro_info attribute, and returns every entry up to
// the terminating zero type code (spec §4.11).
func (r *Reader) Macros(cu *CompilationUnit) ([]MacroEntry, error) {
	defer r.checkSingleThreaded()()

	a, err := r.attrNoLock(r.CuDie(cu), AttrMacroInfo)
	if err != nil {
		return nil, r.fail(err)
	}
	off, ok := a.Value.(uint64)
	if !ok {
		return nil, r.fail(fmt.Errorf("%w: DW_AT_macro_info has non-offset form", ErrInvalidFormat))
	}

	entries, err := r.macrosAt(off)
	return entries, r.fail(err)
}

func (r *Reader) macrosAt(offset uint64) ([]MacroEntry, error) {
	sec, ok := r.prov.Section(SecMacinfo)
	if !ok {
		return nil, fmt.Errorf("%w: .debug_macinfo", ErrNoDebugInfo)
	}
	if offset > uint64(len(sec.Bytes)) {
		return nil, fmt.Errorf("%w: .debug_macinfo offset %d out of range", ErrInvalidFormat, offset)
	}

	c := newCursor(sec.Bytes, sec.Endian)
	c.pos = int(offset)

	var out []MacroEntry
	for !c.done() {
		kindByte, err := c.u8()
		if err != nil {
			return nil, err
		}
		if kindByte == 0 {
			break
		}

		kind := MacinfoKind(kindByte)
		var e MacroEntry
		e.Kind = kind

		switch kind {
		case MacinfoDefine, MacinfoUndef:
			line, err := c.uleb()
			if err != nil {
				return nil, err
			}
			s, err := c.cstr()
			if err != nil {
				return nil, err
			}
			e.Line = line
			e.Value = s
		case MacinfoStartFile:
			line, err := c.uleb()
			if err != nil {
				return nil, err
			}
			fileIdx, err := c.uleb()
			if err != nil {
				return nil, err
			}
			e.Line = line
			e.FileIndex = fileIdx
		case MacinfoEndFile:
			// no operands
		case MacinfoVendorExt:
			v, err := c.uleb()
			if err != nil {
				return nil, err
			}
			s, err := c.cstr()
			if err != nil {
				return nil, err
			}
			e.VendorConst = v
			e.Value = s
		default:
			return nil, fmt.Errorf("%w: unknown .debug_macinfo entry kind %#x", ErrInvalidFormat, kindByte)
		}

		out = append(out, e)
	}

	return out, nil
}
