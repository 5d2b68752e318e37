package dwarf

import "fmt"

// AggregateSize computes the byte size of a type DIE the way a debugger's
// variable display does (spec §6, grounded on
// original_source/libdw/dwarf_aggregate_size.c): DW_AT_byte_size wins
// outright if present; typedef and subrange_type tail-call into their
// DW_AT_type; array_type sums stride*count over its subrange (or
// enumeration_type) dimension children, in declaration order.
func (r *Reader) AggregateSize(die DieCursor) (uint64, error) {
	defer r.checkSingleThreaded()()
	size, err := r.aggregateSizeNoLock(die)
	return size, r.fail(err)
}

func (r *Reader) aggregateSizeNoLock(die DieCursor) (uint64, error) {
	if a, err := r.attrIntegrateNoLock(die, AttrByteSize, 0); err == nil {
		return toUint64(a.Value)
	}

	tag, err := r.Tag(die)
	if err != nil {
		return 0, err
	}

	switch tag {
	case TagTypedef, TagSubrangeType:
		elt, err := r.typeOf(die)
		if err != nil {
			return 0, err
		}
		return r.aggregateSizeNoLock(elt)
	case TagArrayType:
		return r.arraySize(die)
	}

	return 0, fmt.Errorf("%w: %#x has no byte size", ErrNotPresent, tag)
}

// typeOf follows a DIE's DW_AT_type reference (integrated, so it sees
// through DW_AT_abstract_origin too).
func (r *Reader) typeOf(die DieCursor) (DieCursor, error) {
	a, err := r.attrIntegrateNoLock(die, AttrType, 0)
	if err != nil {
		return DieCursor{}, err
	}
	off, ok := a.Value.(uint64)
	if !ok {
		return DieCursor{}, fmt.Errorf("%w: DW_AT_type has non-reference form", ErrInvalidFormat)
	}
	return DieCursor{cu: die.cu, offset: off}, nil
}

func (r *Reader) arraySize(die DieCursor) (uint64, error) {
	elt, err := r.typeOf(die)
	if err != nil {
		return 0, err
	}
	eltSize, err := r.aggregateSizeNoLock(elt)
	if err != nil {
		return 0, err
	}

	lang := r.cuLanguage(die.cu)

	var total uint64
	var any bool

	child, ok, err := r.Child(die)
	if err != nil {
		return 0, err
	}
	for ok {
		tag, err := r.Tag(child)
		if err != nil {
			return 0, err
		}

		var count uint64
		var haveCount bool

		switch tag {
		case TagSubrangeType:
			count, err = r.subrangeCount(child, lang)
			if err != nil {
				return 0, err
			}
			haveCount = true
		case TagEnumerationType:
			count, err = r.enumerationCount(child)
			if err != nil {
				return 0, err
			}
			haveCount = true
		}

		if haveCount {
			stride := eltSize
			if a, err := r.attrIntegrateNoLock(child, AttrByteStride, 0); err == nil {
				stride, err = toUint64(a.Value)
				if err != nil {
					return 0, err
				}
			} else if a, err := r.attrIntegrateNoLock(child, AttrBitStride, 0); err == nil {
				bits, err := toUint64(a.Value)
				if err != nil {
					return 0, err
				}
				if bits%8 != 0 {
					return 0, fmt.Errorf("%w: DW_AT_bit_stride %d is not byte-aligned", ErrInvalidFormat, bits)
				}
				stride = bits / 8
			}

			any = true
			total += stride * count
		}

		child, ok, err = r.Sibling(child)
		if err != nil {
			return 0, err
		}
	}

	if !any {
		return 0, fmt.Errorf("%w: array_type has no subrange/enumeration dimensions", ErrInvalidFormat)
	}
	return total, nil
}

// subrangeCount resolves one array dimension's element count from
// DW_AT_count, or from DW_AT_upper_bound - DW_AT_lower_bound + 1 with the
// default lower bound determined by the owning CU's DW_AT_language
// (spec §6; DWARF4 §5.12).
func (r *Reader) subrangeCount(sub DieCursor, lang uint64) (uint64, error) {
	if a, err := r.attrIntegrateNoLock(sub, AttrCount, 0); err == nil {
		return toUint64(a.Value)
	}

	ua, err := r.attrIntegrateNoLock(sub, AttrUpperBound, 0)
	if err != nil {
		return 0, err
	}
	upper, err := toInt64(ua.Value)
	if err != nil {
		return 0, err
	}

	var lower int64
	if la, err := r.attrIntegrateNoLock(sub, AttrLowerBound, 0); err == nil {
		lower, err = toInt64(la.Value)
		if err != nil {
			return 0, err
		}
	} else {
		var ok bool
		lower, ok = defaultLowerBound(lang)
		if !ok {
			return 0, fmt.Errorf("%w: no DW_AT_lower_bound and unknown DW_AT_language %#x", ErrInvalidFormat, lang)
		}
	}

	if lower > upper {
		return 0, fmt.Errorf("%w: subrange lower bound %d exceeds upper bound %d", ErrInvalidFormat, lower, upper)
	}
	return uint64(upper - lower + 1), nil
}

// enumerationCount determines an array dimension's count from the highest
// DW_AT_const_value among the enumeration_type's DW_TAG_enumerator
// children, per elfutils's supplementary handling of enumeration-indexed
// array dimensions (Pascal/Ada/Fortran producers use this form).
func (r *Reader) enumerationCount(enum DieCursor) (uint64, error) {
	var count uint64

	child, ok, err := r.Child(enum)
	if err != nil {
		return 0, err
	}
	for ok {
		tag, err := r.Tag(child)
		if err != nil {
			return 0, err
		}
		if tag == TagEnumerator {
			if a, err := r.attrIntegrateNoLock(child, AttrConstValue, 0); err == nil {
				v, err := toUint64(a.Value)
				if err != nil {
					return 0, err
				}
				if v+1 > count {
					count = v + 1
				}
			}
		}
		child, ok, err = r.Sibling(child)
		if err != nil {
			return 0, err
		}
	}

	return count, nil
}

// cuLanguage returns cu's DW_AT_language, or 0 if absent/undecodable.
func (r *Reader) cuLanguage(cu *CompilationUnit) uint64 {
	a, err := r.attrNoLock(r.CuDie(cu), AttrLanguage)
	if err != nil {
		return 0
	}
	v, _ := toUint64(a.Value)
	return v
}

// defaultLowerBound implements the table in DWARF4 §5.12/"4.12 Subrange
// Type Entries": C-family languages default to 0, Fortran/Ada/Cobol/
// Pascal/Modula-2/PL/1 default to 1. An unknown language has no default.
func defaultLowerBound(lang uint64) (int64, bool) {
	switch lang {
	case LangC89, LangC, LangC99, LangCPlusPlus:
		return 0, true
	case LangAda95, LangCobol74, LangCobol85, LangFortran77, LangFortran90,
		LangFortran95, LangPascal83, LangModula2, LangPLI:
		return 1, true
	default:
		return 0, false
	}
}

func toUint64(v interface{}) (uint64, error) {
	switch n := v.(type) {
	case uint64:
		return n, nil
	case int64:
		return uint64(n), nil
	default:
		return 0, fmt.Errorf("%w: expected an integer constant form", ErrInvalidFormat)
	}
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("%w: expected an integer constant form", ErrInvalidFormat)
	}
}
