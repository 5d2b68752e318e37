package dwarf

import "fmt"

// Attribute is one decoded (DW_AT_*, value) pair. Value's dynamic type
// depends on the attribute's form class (DWARF4 §7.5.6):
//
//	address, reference, constant, offset, lineptr/macptr/rangelistptr -> uint64
//	block, exprloc                                                    -> []byte
//	string                                                            -> string
//	flag                                                              -> bool
//	sdata (DW_FORM_sdata)                                             -> int64
type Attribute struct {
	Attr  Attr
	Form  Form
	Value interface{}
}

// Attr resolves one attribute of a DIE by code, returning ErrNotPresent if
// the DIE's abbreviation plan has no such attribute. It does not follow
// DW_AT_abstract_origin/DW_AT_specification chains; use AttrIntegrate for
// that (spec §4.4).
func (r *Reader) Attr(d DieCursor, code Attr) (Attribute, error) {
	defer r.checkSingleThreaded()()
	a, err := r.attrNoLock(d, code)
	return a, r.fail(err)
}

func (r *Reader) attrNoLock(d DieCursor, code Attr) (Attribute, error) {
	if err := r.resolve(&d); err != nil {
		return Attribute{}, err
	}
	if d.absent {
		return Attribute{}, fmt.Errorf("%w: offset %d is a child-list terminator", ErrNotPresent, d.offset)
	}

	start, err := r.attrStart(&d)
	if err != nil {
		return Attribute{}, err
	}

	sec, _ := r.prov.Section(SecInfo)
	c := newCursor(sec.Bytes, sec.Endian)
	c.pos = int(start)

	for _, a := range d.abbrev.Attrs {
		form := a.form
		for form == FormIndirect {
			f, err := c.uleb()
			if err != nil {
				return Attribute{}, err
			}
			form = Form(f)
		}

		if a.attr != code {
			if err := skipForm(&c, form, d.cu, a.implicitConst); err != nil {
				return Attribute{}, err
			}
			continue
		}

		val, err := r.decodeForm(&c, form, d.cu, a.implicitConst)
		if err != nil {
			return Attribute{}, err
		}
		return Attribute{Attr: code, Form: form, Value: val}, nil
	}

	return Attribute{}, fmt.Errorf("%w: attribute %#x", ErrNotPresent, code)
}

// AttrIntegrate resolves an attribute the way a debugger's variable/type
// display does: if the DIE itself lacks the attribute but carries
// DW_AT_abstract_origin or DW_AT_specification, the search continues at the
// referenced DIE (spec §4.4, grounded on inlined-subroutine and
// out-of-line-member-definition handling in original_source/libdw/dwarf_attr_integrate.c).
func (r *Reader) AttrIntegrate(d DieCursor, code Attr) (Attribute, error) {
	defer r.checkSingleThreaded()()
	a, err := r.attrIntegrateNoLock(d, code, 0)
	return a, r.fail(err)
}

func (r *Reader) attrIntegrateNoLock(d DieCursor, code Attr, depth int) (Attribute, error) {
	const maxChainDepth = 16

	if a, err := r.attrNoLock(d, code); err == nil {
		return a, nil
	} else if depth >= maxChainDepth {
		return Attribute{}, err
	}

	for _, link := range [...]Attr{AttrAbstractOrigin, AttrSpecification} {
		ref, err := r.attrNoLock(d, link)
		if err != nil {
			continue
		}
		off, ok := ref.Value.(uint64)
		if !ok {
			continue
		}
		next := DieCursor{cu: d.cu, offset: off}
		if a, err := r.attrIntegrateNoLock(next, code, depth+1); err == nil {
			return a, nil
		}
	}

	return Attribute{}, fmt.Errorf("%w: attribute %#x", ErrNotPresent, code)
}

// decodeForm reads one attribute value of the given form, per DWARF4 §7.5.4.
// References (ref1/2/4/8/udata) are resolved to absolute .debug_info byte
// offsets; ref_addr and ref_sig8 are returned as-is (the latter indexes
// .debug_types by type signature, not by offset).
func (r *Reader) decodeForm(c *cursor, form Form, cu *CompilationUnit, implicitConst int64) (interface{}, error) {
	switch form {
	case FormAddr:
		return c.address(cu.AddrSize)
	case FormBlock1:
		n, err := c.u8()
		if err != nil {
			return nil, err
		}
		return c.bytes(int(n))
	case FormBlock2:
		n, err := c.u16()
		if err != nil {
			return nil, err
		}
		return c.bytes(int(n))
	case FormBlock4:
		n, err := c.u32()
		if err != nil {
			return nil, err
		}
		return c.bytes(int(n))
	case FormBlock, FormExprloc:
		n, err := c.uleb()
		if err != nil {
			return nil, err
		}
		return c.bytes(int(n))
	case FormData1:
		v, err := c.u8()
		return uint64(v), err
	case FormData2:
		v, err := c.u16()
		return uint64(v), err
	case FormData4:
		v, err := c.u32()
		return uint64(v), err
	case FormData8:
		return c.u64()
	case FormString:
		return c.cstr()
	case FormStrp:
		off, err := c.offset(cu.OffsetSize)
		if err != nil {
			return nil, err
		}
		return r.stringAt(off)
	case FormFlag:
		v, err := c.u8()
		return v != 0, err
	case FormFlagPresent:
		return true, nil
	case FormSdata:
		return c.sleb()
	case FormUdata:
		return c.uleb()
	case FormRefAddr:
		return c.offset(cu.OffsetSize)
	case FormRef1:
		v, err := c.u8()
		if err != nil {
			return nil, err
		}
		return cu.Start + uint64(v), nil
	case FormRef2:
		v, err := c.u16()
		if err != nil {
			return nil, err
		}
		return cu.Start + uint64(v), nil
	case FormRef4:
		v, err := c.u32()
		if err != nil {
			return nil, err
		}
		return cu.Start + uint64(v), nil
	case FormRef8:
		v, err := c.u64()
		if err != nil {
			return nil, err
		}
		return cu.Start + v, nil
	case FormRefUdata:
		v, err := c.uleb()
		if err != nil {
			return nil, err
		}
		return cu.Start + v, nil
	case FormRefSig8:
		return c.u64()
	case FormSecOffset:
		return c.offset(cu.OffsetSize)
	case FormImplicitConst:
		return implicitConst, nil
	default:
		return nil, fmt.Errorf("%w: form %#x", ErrUnsupportedForm, form)
	}
}

// skipForm advances c past one attribute value without decoding it, for the
// common case of scanning past attributes nobody asked for (endOfAttrs,
// Attr's linear search).
func skipForm(c *cursor, form Form, cu *CompilationUnit, implicitConst int64) error {
	switch form {
	case FormAddr:
		_, err := c.address(cu.AddrSize)
		return err
	case FormBlock1:
		n, err := c.u8()
		if err != nil {
			return err
		}
		_, err = c.bytes(int(n))
		return err
	case FormBlock2:
		n, err := c.u16()
		if err != nil {
			return err
		}
		_, err = c.bytes(int(n))
		return err
	case FormBlock4:
		n, err := c.u32()
		if err != nil {
			return err
		}
		_, err = c.bytes(int(n))
		return err
	case FormBlock, FormExprloc:
		n, err := c.uleb()
		if err != nil {
			return err
		}
		_, err = c.bytes(int(n))
		return err
	case FormData1, FormFlag, FormRef1:
		_, err := c.u8()
		return err
	case FormData2, FormRef2:
		_, err := c.u16()
		return err
	case FormData4, FormRef4:
		_, err := c.u32()
		return err
	case FormData8, FormRef8, FormRefSig8:
		_, err := c.u64()
		return err
	case FormString:
		_, err := c.cstr()
		return err
	case FormStrp, FormRefAddr, FormSecOffset:
		_, err := c.offset(cu.OffsetSize)
		return err
	case FormFlagPresent, FormImplicitConst:
		return nil
	case FormSdata:
		_, err := c.sleb()
		return err
	case FormUdata, FormRefUdata:
		_, err := c.uleb()
		return err
	default:
		return fmt.Errorf("%w: form %#x", ErrUnsupportedForm, form)
	}
}

// stringAt reads a NUL-terminated string out of .debug_str at offset.
func (r *Reader) stringAt(offset uint64) (string, error) {
	sec, ok := r.prov.Section(SecStr)
	if !ok {
		return "", fmt.Errorf("%w: .debug_str", ErrNoDebugInfo)
	}
	if offset > uint64(len(sec.Bytes)) {
		return "", fmt.Errorf("%w: .debug_str offset %d out of range", ErrInvalidFormat, offset)
	}
	c := newCursor(sec.Bytes, sec.Endian)
	c.pos = int(offset)
	return c.cstr()
}
