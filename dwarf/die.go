package dwarf

import "fmt"

// DieCursor is a (cu, byte_offset) pair plus a lazily-resolved abbrev
// pointer. Spec §3: cursors are cheap values, not owned; two cursors are
// equal iff they point at the same (cu, offset).
type DieCursor struct {
	cu     *CompilationUnit
	offset uint64

	resolved bool
	abbrev   Abbrev
	// absent distinguishes "resolved and abbrev code was 0" (a
	// terminator, not a DIE) from "not yet resolved".
	absent bool
}

// Equal reports whether two cursors address the same DIE.
func (d DieCursor) Equal(other DieCursor) bool {
	return d.cu == other.cu && d.offset == other.offset
}

// IsValid reports whether the cursor belongs to a CU and its offset lies
// before that CU's end. It does not read the section, so a cursor on a
// child-list terminator inside the CU also reports true.
func (d DieCursor) IsValid() bool {
	return d.cu != nil && d.offset < d.cu.End
}

// Offset is the cursor's absolute byte offset into .debug_info.
func (d DieCursor) Offset() uint64 { return d.offset }

// CU is the compilation unit this cursor belongs to.
func (d DieCursor) CU() *CompilationUnit { return d.cu }

func (r *Reader) resolve(d *DieCursor) error {
	if d.resolved {
		return nil
	}

	sec, ok := r.prov.Section(SecInfo)
	if !ok {
		return fmt.Errorf("%w: .debug_info", ErrNoDebugInfo)
	}
	c := newCursor(sec.Bytes, sec.Endian)
	c.pos = int(d.offset)

	code, err := c.uleb()
	if err != nil {
		return err
	}
	if code == 0 {
		d.resolved = true
		d.absent = true
		return nil
	}

	at, err := r.abbrevTableFor(d.cu)
	if err != nil {
		return err
	}
	ab, err := at.get(code)
	if err != nil {
		return fmt.Errorf("%w: abbrev code %d: %v", ErrInvalidFormat, code, err)
	}

	d.resolved = true
	d.abbrev = ab
	d.absent = false
	return nil
}

// attrStart is the byte offset immediately following the DIE's abbrev code
// ULEB, i.e. where the first attribute value begins.
func (r *Reader) attrStart(d *DieCursor) (uint64, error) {
	sec, ok := r.prov.Section(SecInfo)
	if !ok {
		return 0, fmt.Errorf("%w: .debug_info", ErrNoDebugInfo)
	}
	c := newCursor(sec.Bytes, sec.Endian)
	c.pos = int(d.offset)
	if _, err := c.uleb(); err != nil {
		return 0, err
	}
	return uint64(c.pos), nil
}

// Tag resolves the cursor's abbreviation and returns its DIE tag.
func (r *Reader) Tag(d DieCursor) (Tag, error) {
	defer r.checkSingleThreaded()()
	if err := r.resolve(&d); err != nil {
		return 0, r.fail(err)
	}
	if d.absent {
		return 0, r.fail(fmt.Errorf("%w: offset %d is a child-list terminator", ErrNotPresent, d.offset))
	}
	return d.abbrev.Tag, nil
}

// HasChildren reports whether the DIE has a child list.
func (r *Reader) HasChildren(d DieCursor) (bool, error) {
	defer r.checkSingleThreaded()()
	if err := r.resolve(&d); err != nil {
		return false, r.fail(err)
	}
	return d.abbrev.HasChildren, nil
}

// endOfAttrs returns the offset immediately following the DIE's last
// attribute value - the start of its child list, or of the next sibling if
// it has no children.
func (r *Reader) endOfAttrs(d DieCursor) (uint64, error) {
	if err := r.resolve(&d); err != nil {
		return 0, err
	}
	if d.absent {
		return 0, fmt.Errorf("%w: offset %d is a child-list terminator", ErrNotPresent, d.offset)
	}

	sec, _ := r.prov.Section(SecInfo)
	c := newCursor(sec.Bytes, sec.Endian)
	start, err := r.attrStart(&d)
	if err != nil {
		return 0, err
	}
	c.pos = int(start)

	for i := 0; i < len(d.abbrev.Attrs); i++ {
		a := d.abbrev.Attrs[i]
		form := a.form
		for {
			if form == FormIndirect {
				f, err := c.uleb()
				if err != nil {
					return 0, err
				}
				form = Form(f)
				continue
			}
			break
		}
		if err := skipForm(&c, form, d.cu, a.implicitConst); err != nil {
			return 0, err
		}
	}

	return uint64(c.pos), nil
}

// Child returns the cursor immediately after the last attribute of d, iff
// d has children.
func (r *Reader) Child(d DieCursor) (DieCursor, bool, error) {
	defer r.checkSingleThreaded()()
	if err := r.resolve(&d); err != nil {
		return DieCursor{}, false, r.fail(err)
	}
	if !d.abbrev.HasChildren {
		return DieCursor{}, false, nil
	}
	off, err := r.endOfAttrs(d)
	if err != nil {
		return DieCursor{}, false, r.fail(err)
	}
	return DieCursor{cu: d.cu, offset: off}, true, nil
}

// Sibling returns the cursor of the DIE following d's subtree, using
// DW_AT_sibling if present, otherwise walking forward counting child-list
// depth until it returns to d's depth (spec §4.4).
func (r *Reader) Sibling(d DieCursor) (DieCursor, bool, error) {
	defer r.checkSingleThreaded()()
	if err := r.resolve(&d); err != nil {
		return DieCursor{}, false, r.fail(err)
	}

	if a, err := r.attrNoLock(d, AttrSibling); err == nil {
		if off, ok := a.Value.(uint64); ok {
			return DieCursor{cu: d.cu, offset: off}, true, nil
		}
	}

	cur, hasChildren, err := r.childNoLock(d)
	if err != nil {
		return DieCursor{}, false, r.fail(err)
	}
	if !hasChildren {
		off, err := r.endOfAttrs(d)
		if err != nil {
			return DieCursor{}, false, r.fail(err)
		}
		return DieCursor{cu: d.cu, offset: off}, true, nil
	}

	depth := 1
	for depth > 0 {
		if err := r.resolve(&cur); err != nil {
			return DieCursor{}, false, r.fail(err)
		}
		if cur.absent {
			depth--
			cur.offset++
			cur.resolved = false
			if depth == 0 {
				return DieCursor{cu: d.cu, offset: cur.offset}, true, nil
			}
			continue
		}
		if cur.abbrev.HasChildren {
			depth++
		}
		off, err := r.endOfAttrs(cur)
		if err != nil {
			return DieCursor{}, false, r.fail(err)
		}
		cur = DieCursor{cu: d.cu, offset: off}
	}

	return cur, true, nil
}

// childNoLock/attrNoLock are the internals of Child/Attr used by Sibling,
// which already holds the single-threaded-access guard.
func (r *Reader) childNoLock(d DieCursor) (DieCursor, bool, error) {
	if !d.abbrev.HasChildren {
		return DieCursor{}, false, nil
	}
	off, err := r.endOfAttrs(d)
	if err != nil {
		return DieCursor{}, false, err
	}
	return DieCursor{cu: d.cu, offset: off}, true, nil
}
