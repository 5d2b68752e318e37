package dwarf

import "fmt"

// Pubname is one entry of .debug_pubnames: a global name visible without
// walking the full DIE tree, and the .debug_info offset of the DIE it
// names (the set's CU-relative offset plus the CU's start; SPEC_FULL.md
// §4.10, grounded on
// original_source/libdw/dwarf_getpubnames.c).
type Pubname struct {
	Name      string
	CU        *CompilationUnit
	DieOffset uint64
}

// Pubnames decodes every set in .debug_pubnames and returns their entries
// in section order. Absence of the section is not an error: elfutils
// treats pubnames as an optional accelerator, and this core does too.
func (r *Reader) Pubnames() ([]Pubname, error) {
	defer r.checkSingleThreaded()()
	names, err := r.pubnamesNoLock()
	return names, r.fail(err)
}

func (r *Reader) pubnamesNoLock() ([]Pubname, error) {
	sec, ok := r.prov.Section(SecPubnames)
	if !ok {
		return nil, nil
	}

	var out []Pubname
	c := newCursor(sec.Bytes, sec.Endian)

	for !c.done() {
		length, offSize, err := c.initialLength()
		if err != nil {
			return nil, err
		}
		setEnd := c.pos + int(length)

		version, err := c.u16()
		if err != nil {
			return nil, err
		}
		if version != 2 {
			return nil, fmt.Errorf("%w: unsupported .debug_pubnames version %d", ErrInvalidFormat, version)
		}

		cuOffset, err := c.offset(offSize)
		if err != nil {
			return nil, err
		}
		if _, err := c.offset(offSize); err != nil { // debug_info_length, unused here
			return nil, err
		}

		cu, err := r.units.find(cuOffset)
		if err != nil {
			return nil, err
		}

		for c.pos < setEnd {
			dieOff, err := c.offset(offSize)
			if err != nil {
				return nil, err
			}
			if dieOff == 0 {
				break
			}
			name, err := c.cstr()
			if err != nil {
				return nil, err
			}
			out = append(out, Pubname{Name: name, CU: cu, DieOffset: cu.Start + dieOff})
		}

		c.pos = setEnd
	}

	return out, nil
}
