package dwarf

import "fmt"

// abbrevAttr is one (attribute, form) pair from an abbreviation's plan.
type abbrevAttr struct {
	attr Attr
	form Form
	// implicitConst holds the operand for DW_FORM_implicit_const, read
	// inline in the abbreviation table itself rather than per-DIE.
	implicitConst int64
}

// Abbrev is a per-CU abbreviation record: (code, tag, has-children, plan).
// Grounded on original_source/libdw/dwarf_getabbrev.c and
// libdwarf/dwarf_get_abbrev.c.
type Abbrev struct {
	Code        uint64
	Tag         Tag
	HasChildren bool
	Attrs       []abbrevAttr
}

// abbrevTable is the per-CU cache described in spec §4.2: a map from
// abbreviation code to its Abbrev record, populated lazily by scanning
// .debug_abbrev forward from the last point reached.
type abbrevTable struct {
	sec      []byte
	cuOffset uint64 // this CU's offset into .debug_abbrev
	endian   Endian

	byCode map[uint64]Abbrev
	next   int  // next unread offset within sec, relative to cuOffset
	ended  bool // true once we've consumed the code-0 terminator
}

func newAbbrevTable(sec []byte, cuOffset uint64, endian Endian) *abbrevTable {
	return &abbrevTable{
		sec:      sec,
		cuOffset: cuOffset,
		endian:   endian,
		byCode:   make(map[uint64]Abbrev),
	}
}

// get resolves code to an Abbrev, consulting the cache first and extending
// it by reading further records from .debug_abbrev on a miss. A bare
// ErrNotPresent (no wrapping) signals "code 0", i.e. end of table, which is
// not a structural error - spec §4.2.
func (t *abbrevTable) get(code uint64) (Abbrev, error) {
	if a, ok := t.byCode[code]; ok {
		return a, nil
	}
	if t.ended {
		return Abbrev{}, ErrNotPresent
	}

	for {
		a, ok, err := t.readNext()
		if err != nil {
			return Abbrev{}, err
		}
		if !ok {
			t.ended = true
			return Abbrev{}, ErrNotPresent
		}
		t.byCode[a.Code] = a
		if a.Code == code {
			return a, nil
		}
	}
}

// readNext reads the next abbreviation record from .debug_abbrev. ok=false
// with a nil error means the code-0 terminator was read.
func (t *abbrevTable) readNext() (Abbrev, bool, error) {
	abs := int(t.cuOffset) + t.next
	if abs < 0 || abs >= len(t.sec) {
		return Abbrev{}, false, fmt.Errorf("%w: abbreviation table ran past end of section", ErrInvalidFormat)
	}

	c := newCursor(t.sec, t.endian)
	c.pos = abs

	code, err := c.uleb()
	if err != nil {
		return Abbrev{}, false, err
	}
	if code == 0 {
		t.next = c.pos - int(t.cuOffset)
		return Abbrev{}, false, nil
	}

	tag, err := c.uleb()
	if err != nil {
		return Abbrev{}, false, err
	}
	hasChildren, err := c.u8()
	if err != nil {
		return Abbrev{}, false, err
	}

	var attrs []abbrevAttr
	for {
		at, err := c.uleb()
		if err != nil {
			return Abbrev{}, false, err
		}
		form, err := c.uleb()
		if err != nil {
			return Abbrev{}, false, err
		}

		var implicitConst int64
		if Form(form) == FormImplicitConst {
			implicitConst, err = c.sleb()
			if err != nil {
				return Abbrev{}, false, err
			}
		}

		if at == 0 && form == 0 {
			break
		}
		attrs = append(attrs, abbrevAttr{attr: Attr(at), form: Form(form), implicitConst: implicitConst})
	}

	t.next = c.pos - int(t.cuOffset)

	return Abbrev{
		Code:        code,
		Tag:         Tag(tag),
		HasChildren: hasChildren != 0,
		Attrs:       attrs,
	}, true, nil
}
