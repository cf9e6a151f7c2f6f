package asm

import "fmt"

// CompileError reports a translation failure tied to a specific source
// line, resolving the "what should compilation failure look like"
// question as a typed Go error rather than a bare string.
type CompileError struct {
	Line int
	Err  error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// maxImageSize is the hard 256-byte emit budget: the Minirechner 2a's
// entire address space, shared between code and data.
const maxImageSize = 256

// byteOrLabel is a not-yet-resolved output byte: either a literal value
// or a placeholder to be filled in once every label's address is known.
// labelFn additionally carries the emitting instruction's own address,
// captured once at emission time, for relative-jump-offset computation.
// lineNo ties the byte back to the source line that emitted it, so
// ByteCode can regroup the flat image by line for debugger views.
type byteOrLabel struct {
	kind     byteKind
	value    byte
	label    Label
	site     int // address of the instruction that emitted this byte, for labelFn
	lineNo   int
}

type byteKind int

const (
	bolByte byteKind = iota
	bolLabel
	bolLabelFn // relative jump offset: (target - (site+2)) mod 256
)

// Translator walks an Asm program once, emitting bytes and placeholders
// as it goes and recording every label's address the moment it is seen.
// Forward references are resolved in finish(), never during the walk.
type Translator struct {
	image     []byteOrLabel
	labels    map[Label]int
	stacksize Stacksize
	progsize  Programsize
	origin    int
	line      int
	allLines  []Line
}

// NewTranslator creates an empty translator starting at address 0.
func NewTranslator() *Translator {
	return &Translator{
		labels:    make(map[Label]int),
		stacksize: StacksizeNotSet,
		progsize:  ProgramsizeNotSetValue,
	}
}

func (t *Translator) here() int { return t.origin + len(t.image) }

func (t *Translator) emitByte(b byte) {
	t.image = append(t.image, byteOrLabel{kind: bolByte, value: b, lineNo: t.line})
}

func (t *Translator) emitLabelRef(l Label) {
	t.image = append(t.image, byteOrLabel{kind: bolLabel, label: l, lineNo: t.line})
}

func (t *Translator) emitRelativeJumpTarget(l Label) {
	t.image = append(t.image, byteOrLabel{kind: bolLabelFn, label: l, site: t.here() - 1, lineNo: t.line})
}

// Translate runs the full two-pass-in-one-walk translation and returns
// the resulting ByteCode: the resolved image, the same bytes grouped
// back by source line, and the resolved stack/program sizes.
func Translate(program Asm) (ByteCode, error) {
	t := NewTranslator()
	t.allLines = program.Lines
	for _, line := range program.Lines {
		t.line++
		switch line.Kind {
		case LineEmpty:
			// nothing to emit
		case LineLabel:
			t.labels[line.Label] = t.here()
		case LineInstruction:
			if err := t.translateInstruction(line.Instruction); err != nil {
				return ByteCode{}, &CompileError{Line: t.line, Err: err}
			}
		}
		if len(t.image) > maxImageSize {
			return ByteCode{}, &CompileError{
				Line: t.line,
				Err:  fmt.Errorf("program exceeds %d bytes", maxImageSize),
			}
		}
	}
	return t.finish()
}

func (t *Translator) finish() (ByteCode, error) {
	// O-3: Programsize::Auto is resolved exactly once here, against the
	// final emitted length, never recomputed afterwards.
	if t.progsize.kind == ProgramsizeAuto {
		t.progsize = ProgramsizeOf(byte(t.here()))
	}

	var out [256]byte
	bytesByLine := make(map[int][]byte, len(t.image))
	for i, entry := range t.image {
		addr := t.origin + i
		if addr >= maxImageSize {
			return ByteCode{}, &CompileError{Err: fmt.Errorf("address %#x out of range", addr)}
		}
		var b byte
		switch entry.kind {
		case bolByte:
			b = entry.value
		case bolLabel:
			target, ok := t.labels[entry.label]
			if !ok {
				return ByteCode{}, &CompileError{Line: entry.lineNo, Err: fmt.Errorf("undefined label %q", entry.label)}
			}
			b = byte(target)
		case bolLabelFn:
			target, ok := t.labels[entry.label]
			if !ok {
				return ByteCode{}, &CompileError{Line: entry.lineNo, Err: fmt.Errorf("undefined label %q", entry.label)}
			}
			// wrapping: (target - (site+2)) mod 256
			b = byte(uint8(target) - uint8(entry.site+2))
		}
		out[addr] = b
		bytesByLine[entry.lineNo] = append(bytesByLine[entry.lineNo], b)
	}

	// Every source line participates in Lines, in program order, even
	// the ones that emit nothing — empty lines and bare labels still
	// need a slot so debugger views can walk source line by source line.
	groups := make([]LineBytes, len(t.allLines))
	for i, line := range t.allLines {
		groups[i] = LineBytes{Line: line, Bytes: bytesByLine[i+1]}
	}

	stacksize := t.stacksize
	if stacksize == StacksizeNotSet {
		stacksize = DefaultStacksize
	}
	return ByteCode{Lines: groups, Image: out, Stacksize: stacksize, Programsize: t.progsize}, nil
}

func (t *Translator) resolveConstant(c Constant) {
	if c.IsLabel {
		t.emitLabelRef(c.Label)
	} else {
		t.emitByte(c.Constant)
	}
}

// translateInstruction dispatches directives and CPU instructions,
// emitting one or more bytes (plus operand bytes) per the opcode table.
func (t *Translator) translateInstruction(ins Instruction) error {
	switch ins.Op {
	case AsmOrigin:
		newOrigin := int(ins.Addr)
		if newOrigin < t.here() {
			return fmt.Errorf(".ORG cannot move backwards (at %#x, requested %#x)", t.here(), newOrigin)
		}
		for t.here() < newOrigin {
			t.emitByte(0)
		}
		return nil
	case AsmByte:
		t.resolveConstant(ins.Constant)
		return nil
	case AsmDefineBytes:
		for _, c := range ins.DefineBytes {
			t.resolveConstant(c)
		}
		return nil
	case AsmDefineWords:
		for _, w := range ins.DefineWords {
			t.emitByte(byte(w >> 8))
			t.emitByte(byte(w))
		}
		return nil
	case AsmEquals:
		t.labels[ins.Label] = int(ins.Addr)
		return nil
	case AsmStacksize:
		t.stacksize = ins.Stacksize
		return nil
	case AsmProgramsize:
		t.progsize = ins.Programsize
		return nil
	}

	return t.translateCPUInstruction(ins)
}

// Opcode base values and encoding helpers, transcribed verbatim from the
// reference compiler's instruction table (compiler.rs). Two-register
// arithmetic/logic instructions pack as base + (src<<2) + dst; MOV and
// everything that shares its addressing-mode encoding (LD, ST, CMP,
// BITS, BITC, BITT, LDSP, LDFR) packs a 2-bit addressing mode and a
// 2-bit register/constant-marker field per operand, with the operand
// order (source byte first, destination byte second) fixed by the
// hardware regardless of which helper built it.
const (
	baseClr byte = 0b0000_0100
	baseAdd byte = 0b0110_0000
	baseAdc byte = 0b0111_0000
	baseSub byte = 0b1000_0000
	baseMul byte = 0b1011_0000
	baseDiv byte = 0b1100_0000
	baseInc byte = 0b0100_0100
	baseDec byte = 0b0101_0000
	baseNeg byte = 0b0011_0100
	baseAnd byte = 0b1001_0000
	baseOr  byte = 0b1010_0000
	baseXor byte = 0b1101_0000
	baseCom byte = 0b0011_0000
	baseTst byte = 0b0100_1000
	baseLsr byte = 0b0011_1000
	baseAsr byte = 0b0011_1100
	baseLsl byte = 0b0110_0000
	baseRrc byte = 0b0100_0000
	baseRlc byte = 0b0111_0000

	// movSrcBase/movDstBase is the shared 0b1111_0000-prefixed
	// addressing-mode encoding MOV, LD, ST, CMP, BITS, BITC, BITT, LDSP
	// and LDFR all build on.
	movSrcBase byte = 0b1111_0000
	movDstBase byte = 0b0001_0000

	bitsDstBase byte = 0b0101_0000
	bitcDstBase byte = 0b0110_0000
	cmpDstBase  byte = 0b0010_0000
	bittDstBase byte = 0b0011_0000
	ldspDstByte byte = 0b0100_0000
	ldfrDstByte byte = 0b0100_0100

	basePush  byte = 0b0001_0000
	basePop   byte = 0b0001_0100
	basePushF byte = 0b0001_1000
	basePopF  byte = 0b0001_1100

	baseJmp0 byte = 0b1111_1011 // 0xFB
	baseJmp2 byte = 0b0001_0011 // 0x13
	baseCall byte = 0b0010_1000 // 0x28

	jumpCondBase byte = 0b0010_0000
	condJr       byte = 0b000
	condJcs      byte = 0b001
	condJzs      byte = 0b010
	condJns      byte = 0b011
	condJcc      byte = 0b101
	condJzc      byte = 0b110
	condJnc      byte = 0b111

	opRet   byte = 0b0001_0111 // 0x17
	opRetI  byte = 0b0010_1100 // 0x2C
	opStop  byte = 0b0000_0001
	opNop   byte = 0b0000_0010
	opEi    byte = 0b0000_1000
	opDi    byte = 0b0000_1100
)

func fromBaseAndReg(base byte, r Register) byte {
	return base | byte(r)
}

// fromBaseAndTwoRegs packs dst/src the way the reference's
// from_base_and_two_regs does: base + (src<<2) + dst. src occupies the
// upper two bits, dst the lower two — NOT the other way around.
func fromBaseAndTwoRegs(base byte, dst, src Register) byte {
	return base | (byte(src) << 2) | byte(dst)
}

// sourceAddrMode/sourceRegister and destAddrMode/destRegister implement
// the reference's source_addr_mode/source_register and
// destination_addr_mode/destination_register: a 2-bit addressing mode
// plus a 2-bit register-or-constant-marker field, identical in shape
// for source and destination operands (Destination simply has no
// Constant variant to map).
func sourceAddrMode(s Source) byte {
	switch s.kind {
	case kindRegister:
		return 0b00
	case kindConstant, kindRegisterDi:
		return 0b10
	case kindRegisterDdi:
		return 0b11
	case kindMemAddress:
		if s.memAddress.IsRegister {
			return 0b01
		}
		return 0b11
	default:
		return 0
	}
}

func sourceRegister(s Source) byte {
	switch s.kind {
	case kindRegister:
		return byte(s.register)
	case kindRegisterDi:
		return byte(s.registerDi.Register)
	case kindRegisterDdi:
		return byte(s.registerDdi.Register)
	case kindMemAddress:
		if s.memAddress.IsRegister {
			return byte(s.memAddress.Register)
		}
		return 0b11
	case kindConstant:
		return 0b11
	default:
		return 0
	}
}

func destAddrMode(d Destination) byte {
	switch d.kind {
	case kindRegister:
		return 0b00
	case kindRegisterDi:
		return 0b10
	case kindRegisterDdi:
		return 0b11
	case kindMemAddress:
		if d.memAddress.IsRegister {
			return 0b01
		}
		return 0b11
	default:
		return 0
	}
}

func destRegister(d Destination) byte {
	switch d.kind {
	case kindRegister:
		return byte(d.register)
	case kindRegisterDi:
		return byte(d.registerDi.Register)
	case kindRegisterDdi:
		return byte(d.registerDdi.Register)
	case kindMemAddress:
		if d.memAddress.IsRegister {
			return byte(d.memAddress.Register)
		}
		return 0b11
	default:
		return 0
	}
}

// emitSourceExtra/emitDestExtra emit the operand's optional second byte
// when it carries its own literal (a Constant source, or a
// MemAddress-by-constant on either side).
func (t *Translator) emitSourceExtra(s Source) {
	switch s.kind {
	case kindConstant:
		t.resolveConstant(s.constant)
	case kindMemAddress:
		if !s.memAddress.IsRegister {
			t.resolveConstant(s.memAddress.Constant)
		}
	}
}

func (t *Translator) emitDestExtra(d Destination) {
	if d.kind == kindMemAddress && !d.memAddress.IsRegister {
		t.resolveConstant(d.memAddress.Constant)
	}
}

// compileInstructionMov builds the shared 4-byte-max MOV encoding:
// source byte (+ optional literal), destination byte (+ optional
// literal). LD, LD-from-memory and ST are all just particular Dst/Src
// shapes fed through this same helper, matching how the reference
// compiler implements them.
func (t *Translator) compileInstructionMov(dst Destination, src Source) {
	t.emitByte(movSrcBase | (sourceAddrMode(src) << 2) | sourceRegister(src))
	t.emitSourceExtra(src)
	t.emitByte(movDstBase | (destAddrMode(dst) << 2) | destRegister(dst))
	t.emitDestExtra(dst)
}

// fromBasesDstAndSrc builds the CMP/BITS/BITC/BITT family: a source
// byte against b1, a destination byte against b2.
func (t *Translator) fromBasesDstAndSrc(b1, b2 byte, dst Destination, src Source) {
	t.emitByte(b1 | (sourceAddrMode(src) << 2) | sourceRegister(src))
	t.emitSourceExtra(src)
	t.emitByte(b2 | (destAddrMode(dst) << 2) | destRegister(dst))
	t.emitDestExtra(dst)
}

// fromBasesAndSrc builds the LDSP/LDFR family: a source byte against
// b1, then a fixed second byte (b2 carries no register field).
func (t *Translator) fromBasesAndSrc(b1, b2 byte, src Source) {
	t.emitByte(b1 | (sourceAddrMode(src) << 2) | sourceRegister(src))
	t.emitSourceExtra(src)
	t.emitByte(b2)
}

// relativeJump emits a conditional/unconditional relative jump: one
// condition byte, then a one-byte offset resolved against this
// instruction's own site address once every label is known.
func (t *Translator) relativeJump(cond byte, target Label) {
	t.emitByte(jumpCondBase | cond)
	t.emitRelativeJumpTarget(target)
}

func (t *Translator) translateCPUInstruction(ins Instruction) error {
	switch ins.Op {
	case OpClr:
		t.emitByte(fromBaseAndReg(baseClr, ins.Reg1))
	case OpAdd:
		t.emitByte(fromBaseAndTwoRegs(baseAdd, ins.Reg1, ins.Reg2))
	case OpAdc:
		t.emitByte(fromBaseAndTwoRegs(baseAdc, ins.Reg1, ins.Reg2))
	case OpSub:
		t.emitByte(fromBaseAndTwoRegs(baseSub, ins.Reg1, ins.Reg2))
	case OpMul:
		t.emitByte(fromBaseAndTwoRegs(baseMul, ins.Reg1, ins.Reg2))
	case OpDiv:
		t.emitByte(fromBaseAndTwoRegs(baseDiv, ins.Reg1, ins.Reg2))
	case OpInc:
		t.emitByte(fromBaseAndReg(baseInc, ins.Reg1))
	case OpDec:
		// The reference compiler only implements DEC for a plain register
		// source; every other Source shape panics there
		// ("DEC [...] does not work yet"). This translator preserves that
		// gap rather than inventing semantics the hardware table never
		// defined: Reg1 is the only operand honored.
		t.emitByte(fromBaseAndReg(baseDec, ins.Reg1))
	case OpNeg:
		t.emitByte(fromBaseAndReg(baseNeg, ins.Reg1))
	case OpAnd:
		t.emitByte(fromBaseAndTwoRegs(baseAnd, ins.Reg1, ins.Reg2))
	case OpOr:
		t.emitByte(fromBaseAndTwoRegs(baseOr, ins.Reg1, ins.Reg2))
	case OpXor:
		t.emitByte(fromBaseAndTwoRegs(baseXor, ins.Reg1, ins.Reg2))
	case OpCom:
		t.emitByte(fromBaseAndReg(baseCom, ins.Reg1))
	case OpBits:
		t.fromBasesDstAndSrc(movSrcBase, bitsDstBase, ins.Dst, ins.Src)
	case OpBitc:
		t.fromBasesDstAndSrc(movSrcBase, bitcDstBase, ins.Dst, ins.Src)
	case OpTst:
		t.emitByte(fromBaseAndReg(baseTst, ins.Reg1))
	case OpCmp:
		t.fromBasesDstAndSrc(movSrcBase, cmpDstBase, ins.Dst, ins.Src)
	case OpBitt:
		t.fromBasesDstAndSrc(movSrcBase, bittDstBase, ins.Dst, ins.Src)
	case OpLsr:
		t.emitByte(fromBaseAndReg(baseLsr, ins.Reg1))
	case OpAsr:
		t.emitByte(fromBaseAndReg(baseAsr, ins.Reg1))
	case OpLsl:
		t.emitByte(fromBaseAndTwoRegs(baseLsl, ins.Reg1, ins.Reg1))
	case OpRrc:
		t.emitByte(fromBaseAndReg(baseRrc, ins.Reg1))
	case OpRlc:
		t.emitByte(fromBaseAndTwoRegs(baseRlc, ins.Reg1, ins.Reg1))
	case OpMov, OpLdConstant, OpLdMemAddress, OpSt:
		// LD <reg>,<const-or-mem> and ST <mem>,<reg> are, per the
		// reference compiler, just particular Dst/Src shapes fed through
		// the same MOV encoding — not independent opcode families.
		t.compileInstructionMov(ins.Dst, ins.Src)
	case OpPush:
		t.emitByte(fromBaseAndReg(basePush, ins.Reg1))
	case OpPop:
		t.emitByte(fromBaseAndReg(basePop, ins.Reg1))
	case OpPushF:
		t.emitByte(basePushF)
	case OpPopF:
		t.emitByte(basePopF)
	case OpLdsp:
		t.fromBasesAndSrc(movSrcBase, ldspDstByte, ins.Src)
	case OpLdfr:
		t.fromBasesAndSrc(movSrcBase, ldfrDstByte, ins.Src)
	case OpJmp:
		t.emitByte(baseJmp0)
		t.resolveConstant(Constant{Label: ins.Label, IsLabel: ins.Label != ""})
		t.emitByte(baseJmp2)
	case OpJcs:
		t.relativeJump(condJcs, ins.Label)
	case OpJcc:
		t.relativeJump(condJcc, ins.Label)
	case OpJzs:
		t.relativeJump(condJzs, ins.Label)
	case OpJzc:
		t.relativeJump(condJzc, ins.Label)
	case OpJns:
		t.relativeJump(condJns, ins.Label)
	case OpJnc:
		t.relativeJump(condJnc, ins.Label)
	case OpJr:
		t.relativeJump(condJr, ins.Label)
	case OpCall:
		t.emitByte(baseCall)
		t.resolveConstant(Constant{Label: ins.Label, IsLabel: ins.Label != ""})
	case OpRet:
		t.emitByte(opRet)
	case OpRetI:
		t.emitByte(opRetI)
	case OpStop:
		t.emitByte(opStop)
	case OpNop:
		t.emitByte(opNop)
	case OpEi:
		t.emitByte(opEi)
	case OpDi:
		t.emitByte(opDi)
	default:
		return fmt.Errorf("unhandled instruction opcode %d", ins.Op)
	}
	return nil
}
