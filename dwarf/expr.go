package dwarf

import "fmt"

// DW_OP_* opcodes this decoder understands. Values per DWARF4 §7.7.1.
const (
	OpAddr     Op = 0x03
	OpDeref    Op = 0x06
	OpConst1u  Op = 0x08
	OpConst1s  Op = 0x09
	OpConst2u  Op = 0x0a
	OpConst2s  Op = 0x0b
	OpConst4u  Op = 0x0c
	OpConst4s  Op = 0x0d
	OpConst8u  Op = 0x0e
	OpConst8s  Op = 0x0f
	OpConstu   Op = 0x10
	OpConsts   Op = 0x11
	OpDup      Op = 0x12
	OpDrop     Op = 0x13
	OpOver     Op = 0x14
	OpPick     Op = 0x15
	OpSwap     Op = 0x16
	OpRot      Op = 0x17
	OpXderef   Op = 0x18
	OpAbs      Op = 0x19
	OpAnd      Op = 0x1a
	OpDiv      Op = 0x1b
	OpMinus    Op = 0x1c
	OpMod      Op = 0x1d
	OpMul      Op = 0x1e
	OpNeg      Op = 0x1f
	OpNot      Op = 0x20
	OpOr       Op = 0x21
	OpPlus     Op = 0x22
	OpPlusUconst Op = 0x23
	OpShl      Op = 0x24
	OpShr      Op = 0x25
	OpShra     Op = 0x26
	OpXor      Op = 0x27
	OpBra      Op = 0x28
	OpEq       Op = 0x29
	OpGe       Op = 0x2a
	OpGt       Op = 0x2b
	OpLe       Op = 0x2c
	OpLt       Op = 0x2d
	OpNe       Op = 0x2e
	OpSkip     Op = 0x2f
	OpLit0     Op = 0x30 // lit0..lit31 = 0x30..0x4f
	OpReg0     Op = 0x50 // reg0..reg31 = 0x50..0x6f
	OpBreg0    Op = 0x70 // breg0..breg31 = 0x70..0x8f
	OpRegx     Op = 0x90
	OpFbreg    Op = 0x91
	OpBregx    Op = 0x92
	OpPiece    Op = 0x93
	OpDerefSize Op = 0x94
	OpXderefSize Op = 0x95
	OpNop      Op = 0x96
	OpPushObjectAddress Op = 0x97
	OpCall2    Op = 0x98
	OpCall4    Op = 0x99
	OpCallRef  Op = 0x9a
	OpFormTlsAddress Op = 0x9b
	OpCallFrameCfa Op = 0x9c
	OpBitPiece Op = 0x9d
	OpImplicitValue Op = 0x9e
	OpStackValue Op = 0x9f

	// GNU vendor extension, decoded as a courtesy (spec §4.7).
	OpGnuImplicitPointer Op = 0xf2
)

// ExprOp is one normalized operation of an interned location expression
// (spec §3). Num1/Num2's meaning is opcode-dependent; for
// DW_OP_implicit_value, Num1 is the byte offset of the value within the
// expression block and Num2 is the byte length.
type ExprOp struct {
	Op           Op
	Num1, Num2   int64
	SourceOffset uint64
}

// InternedExpr is the decoded, cached form of one location expression
// block, keyed by its start offset within the CU (spec §4.7).
type InternedExpr struct {
	Ops []ExprOp
}

// InternOptions controls Intern's treatment of CFI-specific expressions
// (spec §4.7).
type InternOptions struct {
	// ForCFI, when true, synthesizes a leading DW_OP_call_frame_cfa
	// operation and disallows DW_OP_implicit_value; it also permits an
	// otherwise-invalid empty block.
	ForCFI bool
	// Value, when true, appends a synthetic DW_OP_stack_value operation.
	Value bool
	// BlockOffset is the block's byte offset into its source section; used
	// as the expression cache key.
	BlockOffset uint64
}

// Intern decodes block into a normalized operation vector, caching the
// result per block-start offset within cu so repeated calls for the same
// block return the same backing slice (spec §4.7, §8's idempotence law).
func (r *Reader) Intern(cu *CompilationUnit, block []byte, opts InternOptions) (*InternedExpr, error) {
	defer r.checkSingleThreaded()()
	e, err := r.internNoLock(cu, block, opts)
	return e, r.fail(err)
}

func (r *Reader) internNoLock(cu *CompilationUnit, block []byte, opts InternOptions) (*InternedExpr, error) {
	if cu.exprs == nil {
		cu.exprs = make(map[uint64][]ExprOp)
	}
	if cached, ok := cu.exprs[opts.BlockOffset]; ok {
		return &InternedExpr{Ops: cached}, nil
	}

	if len(block) == 0 && !opts.ForCFI {
		return nil, fmt.Errorf("%w: empty location expression", ErrInvalidFormat)
	}

	var ops []ExprOp
	if opts.ForCFI {
		ops = append(ops, ExprOp{Op: OpCallFrameCfa})
	}

	cc := cursor{data: block}
	for cc.pos < len(block) {
		start := cc.pos
		opByte, err := cc.u8()
		if err != nil {
			return nil, err
		}
		op := Op(opByte)

		if op == OpImplicitValue && opts.ForCFI {
			return nil, fmt.Errorf("%w: DW_OP_implicit_value not allowed in a CFI expression", ErrInvalidFormat)
		}

		num1, num2, err := decodeExprOperands(&cc, op, cu)
		if err != nil {
			return nil, err
		}
		ops = append(ops, ExprOp{Op: op, Num1: num1, Num2: num2, SourceOffset: uint64(start)})
	}

	if opts.Value {
		ops = append(ops, ExprOp{Op: OpStackValue})
	}

	cu.exprs[opts.BlockOffset] = ops
	return &InternedExpr{Ops: ops}, nil
}

func decodeExprOperands(c *cursor, op Op, cu *CompilationUnit) (int64, int64, error) {
	switch {
	case op >= OpLit0 && op < OpLit0+32:
		return int64(op - OpLit0), 0, nil
	case op >= OpReg0 && op < OpReg0+32:
		return int64(op - OpReg0), 0, nil
	case op >= OpBreg0 && op < OpBreg0+32:
		v, err := c.sleb()
		return int64(op - OpBreg0), v, err
	}

	switch op {
	case OpAddr:
		v, err := c.address(cu.AddrSize)
		return int64(v), 0, err
	case OpConst1u:
		v, err := c.u8()
		return int64(v), 0, err
	case OpConst1s:
		v, err := c.u8()
		return int64(int8(v)), 0, err
	case OpConst2u:
		v, err := c.u16()
		return int64(v), 0, err
	case OpConst2s:
		v, err := c.u16()
		return int64(int16(v)), 0, err
	case OpConst4u:
		v, err := c.u32()
		return int64(v), 0, err
	case OpConst4s:
		v, err := c.s32()
		return int64(v), 0, err
	case OpConst8u:
		v, err := c.u64()
		return int64(v), 0, err
	case OpConst8s:
		v, err := c.s64()
		return v, 0, err
	case OpConstu:
		v, err := c.uleb()
		return int64(v), 0, err
	case OpConsts:
		v, err := c.sleb()
		return v, 0, err
	case OpPick, OpDerefSize, OpXderefSize:
		v, err := c.u8()
		return int64(v), 0, err
	case OpPlusUconst:
		v, err := c.uleb()
		return int64(v), 0, err
	case OpSkip, OpBra:
		v, err := c.u16()
		return int64(int16(v)), 0, err
	case OpRegx:
		v, err := c.uleb()
		return int64(v), 0, err
	case OpFbreg:
		v, err := c.sleb()
		return v, 0, err
	case OpBregx:
		reg, err := c.uleb()
		if err != nil {
			return 0, 0, err
		}
		off, err := c.sleb()
		return int64(reg), off, err
	case OpPiece:
		v, err := c.uleb()
		return int64(v), 0, err
	case OpBitPiece:
		sz, err := c.uleb()
		if err != nil {
			return 0, 0, err
		}
		off, err := c.uleb()
		return int64(sz), int64(off), err
	case OpCall2:
		v, err := c.u16()
		return int64(v), 0, err
	case OpCall4:
		v, err := c.u32()
		return int64(v), 0, err
	case OpCallRef:
		v, err := c.offset(cu.OffsetSize)
		return int64(v), 0, err
	case OpImplicitValue:
		n, err := c.uleb()
		if err != nil {
			return 0, 0, err
		}
		start := c.pos
		if _, err := c.bytes(int(n)); err != nil {
			return 0, 0, err
		}
		return int64(start), int64(n), nil
	case OpGnuImplicitPointer:
		ref, err := c.offset(cu.OffsetSize)
		if err != nil {
			return 0, 0, err
		}
		off, err := c.sleb()
		return int64(ref), off, err
	default:
		// no-operand opcode: deref, dup, drop, over, swap, rot, xderef,
		// abs, and, div, minus, mod, mul, neg, not, or, plus, shl, shr,
		// shra, xor, eq, ge, gt, le, lt, ne, nop, push_object_address,
		// form_tls_address, call_frame_cfa, stack_value, and any reserved
		// opcode we don't specifically recognize above.
		return 0, 0, nil
	}
}
