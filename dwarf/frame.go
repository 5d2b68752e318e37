package dwarf

import (
	"fmt"

	"github.com/dwex-project/dwex/logger"
)

// Encoded-pointer numeric encodings and relative modifiers, DW_EH_PE_*
// (spec §4.8). The LSB.
const (
	ehPeOmit    = 0xff
	ehPeAbsptr  = 0x00
	ehPeUleb128 = 0x01
	ehPeUdata2  = 0x02
	ehPeUdata4  = 0x03
	ehPeUdata8  = 0x04
	ehPeSleb128 = 0x09
	ehPeSdata2  = 0x0a
	ehPeSdata4  = 0x0b
	ehPeSdata8  = 0x0c

	ehPeFormatMask = 0x0f

	ehPePcrel   = 0x10
	ehPeTextrel = 0x20
	ehPeDatarel = 0x30
	ehPeFuncrel = 0x40
	ehPeAligned = 0x50
	ehPeApplMask = 0x70

	ehPeIndirect = 0x80
)

// Cie is a decoded Common Information Entry (spec §3).
type Cie struct {
	Offset                uint64
	Version               uint8
	Augmentation          string
	AddressSize           int
	CodeAlignmentFactor   uint64
	DataAlignmentFactor   int64
	ReturnAddressRegister uint64
	FdeEncoding           uint8
	LsdaEncoding          uint8
	SizedAugmentation     bool
	SignalFrame           bool
	AugmentationDataLen   uint64
	InitialInstructions   []byte
}

// Fde is a decoded Frame Description Entry (spec §3).
type Fde struct {
	Cie          *Cie
	StartPC      uint64
	EndPC        uint64
	Instructions []byte
}

// frameIndex is the lazily-populated CIE/FDE cache described in spec
// §4.8: CIEs keyed by section offset, FDEs kept in a slice in the order
// they were read from the section and searched linearly by lookupCached.
type frameIndex struct {
	r *Reader

	cies map[uint64]*Cie
	fdes []*Fde

	nextOffset  int
	initialized bool
	ehFrame     bool
	sectionKind SectionKind
}

func newFrameIndex(r *Reader) *frameIndex {
	return &frameIndex{r: r, cies: make(map[uint64]*Cie)}
}

func (fi *frameIndex) ensureInit() {
	if fi.initialized {
		return
	}
	fi.initialized = true
	// Prefer .eh_frame when .debug_frame is absent, matching the common
	// case for stripped, linked executables.
	if _, ok := fi.r.prov.Section(SecFrame); ok {
		fi.sectionKind = SecFrame
		fi.ehFrame = false
	} else {
		fi.sectionKind = SecEHFrame
		fi.ehFrame = true
	}
}

// CfiFrameFor returns the FDE covering pc, scanning further CFI entries as
// needed (spec §4.8's FDE indexing algorithm, steps 1 and 3; step 2's
// .eh_frame_hdr binary-search header is not modeled - this repo always
// has direct section access).
func (r *Reader) CfiFrameFor(pc uint64) (*Fde, error) {
	defer r.checkSingleThreaded()()
	fde, err := r.cfi.find(pc)
	return fde, r.fail(err)
}

func (fi *frameIndex) find(pc uint64) (*Fde, error) {
	fi.ensureInit()

	if fde := fi.lookupCached(pc); fde != nil {
		return fde, nil
	}

	sec, ok := fi.r.prov.Section(fi.sectionKind)
	if !ok {
		return nil, fmt.Errorf("%w: no call frame information section", ErrNoDebugInfo)
	}

	var badOffset = -1
	for fi.nextOffset < len(sec.Bytes) {
		start := fi.nextOffset
		fde, cieOrNil, consumed, err := fi.readEntry(sec, fi.nextOffset)
		if err != nil {
			if badOffset == start {
				return nil, fmt.Errorf("%w: repeated malformed CFI entry at offset %d", ErrInvalidFormat, start)
			}
			badOffset = start
			fi.nextOffset = start + 1
			continue
		}
		fi.nextOffset = start + consumed
		if cieOrNil != nil {
			fi.cies[cieOrNil.Offset] = cieOrNil
			continue
		}
		if fde != nil {
			fi.fdes = append(fi.fdes, fde)
			if pc >= fde.StartPC && pc < fde.EndPC {
				return fde, nil
			}
		}
	}

	return nil, fmt.Errorf("%w: no FDE covers pc %#x", ErrNoMatch, pc)
}

func (fi *frameIndex) lookupCached(pc uint64) *Fde {
	for _, f := range fi.fdes {
		if pc >= f.StartPC && pc < f.EndPC {
			return f
		}
	}
	return nil
}

// readEntry reads one CIE or FDE starting at offset within sec, returning
// either a non-nil *Fde or a non-nil *Cie (never both), plus the number of
// bytes consumed.
func (fi *frameIndex) readEntry(sec Section, offset int) (*Fde, *Cie, int, error) {
	c := newCursor(sec.Bytes, sec.Endian)
	c.pos = offset

	length, offSize, err := c.initialLength()
	if err != nil {
		return nil, nil, 0, err
	}
	if length == 0 {
		return nil, nil, c.pos - offset, fmt.Errorf("%w: zero-length CFI entry", ErrInvalidFormat)
	}
	entryEnd := c.pos + int(length)

	cieIDFieldOffset := c.pos
	cieID, err := c.offset(offSize)
	if err != nil {
		return nil, nil, 0, err
	}

	isCIE := false
	if fi.ehFrame {
		isCIE = cieID == 0
	} else {
		isCIE = (offSize == 4 && cieID == 0xffffffff) || (offSize == 8 && cieID == ^uint64(0))
	}

	if isCIE {
		cie, err := fi.readCIE(&c, offset, offSize, entryEnd)
		if err != nil {
			return nil, nil, 0, err
		}
		return nil, cie, entryEnd - offset, nil
	}

	var cieOffset uint64
	if fi.ehFrame {
		cieOffset = uint64(cieIDFieldOffset) - cieID
	} else {
		cieOffset = cieID
	}
	cie, err := fi.cieAt(sec, cieOffset, offSize)
	if err != nil {
		return nil, nil, 0, err
	}

	fde, err := fi.readFDE(&c, cie, entryEnd)
	if err != nil {
		return nil, nil, 0, err
	}
	return fde, nil, entryEnd - offset, nil
}

func (fi *frameIndex) cieAt(sec Section, offset uint64, offSize int) (*Cie, error) {
	if cie, ok := fi.cies[offset]; ok {
		return cie, nil
	}
	c := newCursor(sec.Bytes, sec.Endian)
	c.pos = int(offset)
	if _, _, err := c.initialLength(); err != nil {
		return nil, err
	}
	// re-derive entryEnd from the length we just consumed
	c2 := newCursor(sec.Bytes, sec.Endian)
	c2.pos = int(offset)
	length, offSize2, err := c2.initialLength()
	if err != nil {
		return nil, err
	}
	entryEnd := c2.pos + int(length)
	if _, err := c2.offset(offSize2); err != nil { // skip CIE_id/CIE_pointer
		return nil, err
	}
	cie, err := fi.readCIE(&c2, int(offset), offSize2, entryEnd)
	if err != nil {
		return nil, err
	}
	fi.cies[offset] = cie
	return cie, nil
}

func (fi *frameIndex) readCIE(c *cursor, offset int, offSize int, entryEnd int) (*Cie, error) {
	cie := &Cie{Offset: uint64(offset)}

	version, err := c.u8()
	if err != nil {
		return nil, err
	}
	if version != 1 && version != 3 && version != 4 {
		return nil, fmt.Errorf("%w: unsupported CIE version %d", ErrInvalidFormat, version)
	}
	cie.Version = version

	aug, err := c.cstr()
	if err != nil {
		return nil, err
	}
	cie.Augmentation = aug

	if version == 4 {
		addrSize, err := c.u8()
		if err != nil {
			return nil, err
		}
		segSize, err := c.u8()
		if err != nil {
			return nil, err
		}
		if segSize != 0 {
			return nil, fmt.Errorf("%w: segment selectors not supported", ErrInvalidFormat)
		}
		cie.AddressSize = int(addrSize)
	} else if fi.r.arch != nil {
		cie.AddressSize = fi.r.arch.DefaultAddressSize()
	} else {
		cie.AddressSize = addrSizeFromOffsetSize(offSize)
	}

	if len(aug) > 0 && aug[0] == 'e' && len(aug) > 1 && aug[1] == 'h' {
		// g++ v2 "eh" augmentation: an address-sized pointer follows with
		// no semantic effect here.
		fi.r.Log.Logf(logger.Allow, "dwarf", "CIE at offset %#x uses the g++ v2 \"eh\" augmentation, skipping %d-byte pointer", offset, addrSizeFromOffsetSize(offSize))
		if _, err := c.bytes(addrSizeFromOffsetSize(offSize)); err != nil {
			return nil, err
		}
	}

	caf, err := c.uleb()
	if err != nil {
		return nil, err
	}
	cie.CodeAlignmentFactor = caf

	daf, err := c.sleb()
	if err != nil {
		return nil, err
	}
	cie.DataAlignmentFactor = daf

	if version == 1 {
		rar, err := c.u8()
		if err != nil {
			return nil, err
		}
		cie.ReturnAddressRegister = uint64(rar)
	} else {
		rar, err := c.uleb()
		if err != nil {
			return nil, err
		}
		cie.ReturnAddressRegister = rar
	}

	cie.FdeEncoding = ehPeAbsptr
	cie.LsdaEncoding = ehPeOmit

	if len(aug) > 0 && aug[0] == 'z' {
		cie.SizedAugmentation = true
		dataLen, err := c.uleb()
		if err != nil {
			return nil, err
		}
		cie.AugmentationDataLen = dataLen
		dataEnd := c.pos + int(dataLen)

		for i := 1; i < len(aug) && c.pos < dataEnd; i++ {
			switch aug[i] {
			case 'L':
				enc, err := c.u8()
				if err != nil {
					return nil, err
				}
				cie.LsdaEncoding = enc
			case 'R':
				enc, err := c.u8()
				if err != nil {
					return nil, err
				}
				cie.FdeEncoding = enc
			case 'P':
				enc, err := c.u8()
				if err != nil {
					return nil, err
				}
				if _, err := readEncodedPointer(c, enc, uint64(c.pos), offSize, nil); err != nil {
					return nil, err
				}
			case 'S':
				cie.SignalFrame = true
			default:
				// Unrecognized augmentation letter without a 'z' prefix to
				// delimit it would be unsafe to skip; since we are inside
				// the sized augmentation block the letter is ignored, the
				// loop goes on with the next one, and c.pos is reset to
				// dataEnd afterwards.
			}
		}
		c.pos = dataEnd
	} else if aug != "" {
		// Non-'z' augmentation strings carry no encoded length; leave the
		// defaults in place rather than guess at a layout (spec §4.8).
	}

	if cie.FdeEncoding&ehPeFormatMask == ehPeAbsptr {
		if offSize == 8 {
			cie.FdeEncoding = (cie.FdeEncoding &^ ehPeFormatMask) | ehPeUdata8
		} else {
			cie.FdeEncoding = (cie.FdeEncoding &^ ehPeFormatMask) | ehPeUdata4
		}
	}

	if c.pos > entryEnd {
		return nil, fmt.Errorf("%w: CIE augmentation data overran entry", ErrInvalidFormat)
	}
	cie.InitialInstructions = sliceOrEmpty(c.data, c.pos, entryEnd)

	return cie, nil
}

func addrSizeFromOffsetSize(offSize int) int {
	if offSize == 8 {
		return 8
	}
	return 4
}

func sliceOrEmpty(data []byte, from, to int) []byte {
	if from < 0 || to > len(data) || from > to {
		return nil
	}
	return data[from:to]
}

func (fi *frameIndex) readFDE(c *cursor, cie *Cie, entryEnd int) (*Fde, error) {
	pcFieldOffset := uint64(c.pos)
	start, err := readEncodedPointer(c, cie.FdeEncoding, pcFieldOffset, 0, fi.r)
	if err != nil {
		return nil, err
	}

	rangeEncoding := cie.FdeEncoding & ehPeFormatMask // range is always absolute, never pc-relative
	rangeLen, err := readEncodedPointer(c, rangeEncoding, uint64(c.pos), 0, fi.r)
	if err != nil {
		return nil, err
	}

	if cie.SizedAugmentation {
		n, err := c.uleb()
		if err != nil {
			return nil, err
		}
		if _, err := c.bytes(int(n)); err != nil {
			return nil, err
		}
	}

	if c.pos > entryEnd {
		return nil, fmt.Errorf("%w: FDE augmentation data overran entry", ErrInvalidFormat)
	}

	end := start + rangeLen
	if end <= start {
		return nil, fmt.Errorf("%w: FDE end_pc must exceed start_pc", ErrInvalidFormat)
	}

	return &Fde{
		Cie:          cie,
		StartPC:      start,
		EndPC:        end,
		Instructions: sliceOrEmpty(c.data, c.pos, entryEnd),
	}, nil
}

// readEncodedPointer decodes one DW_EH_PE_*-encoded value per spec §4.8.
// fieldOffset is the section-relative offset of the field, needed for the
// pcrel modifier. r may be nil when decoding a CIE's personality-routine
// pointer, which this implementation reads but discards.
func readEncodedPointer(c *cursor, enc uint8, fieldOffset uint64, offSize int, r *Reader) (uint64, error) {
	if enc == ehPeOmit {
		return 0, nil
	}

	applMod := enc & ehPeApplMask
	numEnc := enc & ehPeFormatMask
	indirect := enc&ehPeIndirect != 0

	if applMod == ehPeAligned {
		size := 4
		if offSize == 8 {
			size = 8
		}
		if rem := c.pos % size; rem != 0 {
			c.pos += size - rem
		}
	}

	var raw uint64
	var err error
	switch numEnc {
	case ehPeUleb128:
		raw, err = c.uleb()
	case ehPeSleb128:
		var s int64
		s, err = c.sleb()
		raw = uint64(s)
	case ehPeUdata2:
		var v uint16
		v, err = c.u16()
		raw = uint64(v)
	case ehPeSdata2:
		var v uint16
		v, err = c.u16()
		raw = uint64(int64(int16(v)))
	case ehPeUdata4:
		var v uint32
		v, err = c.u32()
		raw = uint64(v)
	case ehPeSdata4:
		var v int32
		v, err = c.s32()
		raw = uint64(int64(v))
	case ehPeUdata8:
		raw, err = c.u64()
	case ehPeSdata8:
		var v int64
		v, err = c.s64()
		raw = uint64(v)
	case ehPeAbsptr:
		if offSize == 8 {
			raw, err = c.u64()
		} else {
			var v uint32
			v, err = c.u32()
			raw = uint64(v)
		}
	default:
		return 0, fmt.Errorf("%w: encoded pointer numeric encoding %#x", ErrInvalidFormat, numEnc)
	}
	if err != nil {
		return 0, err
	}

	switch applMod {
	case 0: // absptr
	case ehPePcrel:
		raw += fieldOffset
	case ehPeTextrel, ehPeDatarel, ehPeFuncrel, ehPeAligned:
		// these require base addresses this core does not track on its
		// own; left as the raw decoded value, matching the behavior of
		// treating an unknown base as zero rather than failing decode.
	default:
		return 0, fmt.Errorf("%w: encoded pointer relative modifier %#x", ErrInvalidFormat, applMod)
	}

	if indirect {
		// The value is itself an address in the loaded image; this core has
		// no image to read through (it only sees sections), so the
		// indirection is left unresolved for the caller to apply.
		return raw, nil
	}

	return raw, nil
}

// CfaRule is the CFA computation rule in effect at some PC: either
// register-plus-offset, or a DWARF expression (DW_CFA_def_cfa_expression).
type CfaRule struct {
	Register uint64
	Offset   int64
	Expr     *InternedExpr
}

// CfaFor computes the CFA rule active at pc within fde, by replaying its
// CIE's initial instructions followed by the FDE's own call-frame
// instructions up to pc (spec §3's Cie/Fde entities, §4.8).
func (r *Reader) CfaFor(fde *Fde, pc uint64) (CfaRule, error) {
	defer r.checkSingleThreaded()()
	if pc < fde.StartPC || pc >= fde.EndPC {
		return CfaRule{}, r.fail(fmt.Errorf("%w: pc %#x outside FDE range", ErrNoMatch, pc))
	}

	cie := fde.Cie
	interp := &cfaInterp{r: r, cie: cie, loc: fde.StartPC}
	if err := interp.run(cie.InitialInstructions, pc, fde.StartPC); err != nil {
		return CfaRule{}, r.fail(err)
	}
	if err := interp.run(fde.Instructions, pc, fde.StartPC); err != nil {
		return CfaRule{}, r.fail(err)
	}

	return interp.rule, nil
}

type cfaInterp struct {
	r    *Reader
	cie  *Cie
	loc  uint64
	rule CfaRule
	ruleStack []CfaRule
	blockCounter uint64
}

// run executes instrs, stopping (without error) once the location counter
// would advance past target. startPC is used only to form a stable
// per-block cache key for DW_CFA_def_cfa_expression/_expression operands.
func (ci *cfaInterp) run(instrs []byte, target uint64, startPC uint64) error {
	c := cursor{data: instrs}

	for c.pos < len(instrs) {
		if ci.loc > target {
			return nil
		}

		opByte, err := c.u8()
		if err != nil {
			return err
		}

		high2 := opByte & 0xc0
		low6 := opByte & 0x3f

		switch high2 {
		case 0x40: // DW_CFA_advance_loc
			ci.loc += uint64(low6) * ci.cie.CodeAlignmentFactor
			continue
		case 0x80: // DW_CFA_offset
			if _, err := c.uleb(); err != nil {
				return err
			}
			continue
		case 0xc0: // DW_CFA_restore
			continue
		}

		switch opByte {
		case 0x00: // nop
		case 0x01: // set_loc
			addr, err := c.address(ci.cie.AddressSize)
			if err != nil {
				return err
			}
			ci.loc = addr
		case 0x02: // advance_loc1
			d, err := c.u8()
			if err != nil {
				return err
			}
			ci.loc += uint64(d) * ci.cie.CodeAlignmentFactor
		case 0x03: // advance_loc2
			d, err := c.u16()
			if err != nil {
				return err
			}
			ci.loc += uint64(d) * ci.cie.CodeAlignmentFactor
		case 0x04: // advance_loc4
			d, err := c.u32()
			if err != nil {
				return err
			}
			ci.loc += uint64(d) * ci.cie.CodeAlignmentFactor
		case 0x05: // offset_extended
			if _, err := c.uleb(); err != nil {
				return err
			}
			if _, err := c.uleb(); err != nil {
				return err
			}
		case 0x06: // restore_extended
			if _, err := c.uleb(); err != nil {
				return err
			}
		case 0x07: // undefined
			if _, err := c.uleb(); err != nil {
				return err
			}
		case 0x08: // same_value
			if _, err := c.uleb(); err != nil {
				return err
			}
		case 0x09: // register
			if _, err := c.uleb(); err != nil {
				return err
			}
			if _, err := c.uleb(); err != nil {
				return err
			}
		case 0x0a: // remember_state
			ci.ruleStack = append(ci.ruleStack, ci.rule)
		case 0x0b: // restore_state
			if n := len(ci.ruleStack); n > 0 {
				ci.rule = ci.ruleStack[n-1]
				ci.ruleStack = ci.ruleStack[:n-1]
			}
		case 0x0c: // def_cfa
			reg, err := c.uleb()
			if err != nil {
				return err
			}
			off, err := c.uleb()
			if err != nil {
				return err
			}
			ci.rule = CfaRule{Register: reg, Offset: int64(off)}
		case 0x0d: // def_cfa_register
			reg, err := c.uleb()
			if err != nil {
				return err
			}
			ci.rule.Register = reg
			ci.rule.Expr = nil
		case 0x0e: // def_cfa_offset
			off, err := c.uleb()
			if err != nil {
				return err
			}
			ci.rule.Offset = int64(off)
			ci.rule.Expr = nil
		case 0x0f: // def_cfa_expression
			n, err := c.uleb()
			if err != nil {
				return err
			}
			block, err := c.bytes(int(n))
			if err != nil {
				return err
			}
			e, err := ci.intern(block, startPC)
			if err != nil {
				return err
			}
			ci.rule = CfaRule{Expr: e}
		case 0x10: // expression (register rule, not the CFA itself)
			if _, err := c.uleb(); err != nil {
				return err
			}
			n, err := c.uleb()
			if err != nil {
				return err
			}
			if _, err := c.bytes(int(n)); err != nil {
				return err
			}
		case 0x11: // offset_extended_sf
			if _, err := c.uleb(); err != nil {
				return err
			}
			if _, err := c.sleb(); err != nil {
				return err
			}
		case 0x12: // def_cfa_sf
			reg, err := c.uleb()
			if err != nil {
				return err
			}
			off, err := c.sleb()
			if err != nil {
				return err
			}
			ci.rule = CfaRule{Register: reg, Offset: off * ci.cie.DataAlignmentFactor}
		case 0x13: // def_cfa_offset_sf
			off, err := c.sleb()
			if err != nil {
				return err
			}
			ci.rule.Offset = off * ci.cie.DataAlignmentFactor
			ci.rule.Expr = nil
		case 0x14: // val_offset
			if _, err := c.uleb(); err != nil {
				return err
			}
			if _, err := c.uleb(); err != nil {
				return err
			}
		case 0x15: // val_offset_sf
			if _, err := c.uleb(); err != nil {
				return err
			}
			if _, err := c.sleb(); err != nil {
				return err
			}
		case 0x16: // val_expression
			if _, err := c.uleb(); err != nil {
				return err
			}
			n, err := c.uleb()
			if err != nil {
				return err
			}
			if _, err := c.bytes(int(n)); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: unsupported call frame instruction %#x", ErrUnsupportedForm, opByte)
		}
	}

	return nil
}

// intern decodes a DW_CFA_def_cfa_expression operand through the ordinary
// location-expression interner, so it shares its opcode table with every
// other DWARF expression (spec §4.7). The interner's cache lives on a
// placeholder CU built for this one call, so the decoded result is not
// reused by later CfaFor calls.
func (ci *cfaInterp) intern(block []byte, startPC uint64) (*InternedExpr, error) {
	shim := &CompilationUnit{AddrSize: addrSizeFromOffsetSize(4), OffsetSize: 4}
	ci.blockCounter++
	return ci.r.internNoLock(shim, block, InternOptions{BlockOffset: startPC<<16 | ci.blockCounter})
}
