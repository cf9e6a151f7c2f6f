package asm

import "testing"

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func instrLine(ins Instruction) Line {
	return Line{Kind: LineInstruction, Instruction: ins}
}

func labelLine(l Label) Line {
	return Line{Kind: LineLabel, Label: l}
}

// TestDefineByteAndClrEncodeDirectly mirrors the mandated S-1 scenario:
// `.DB 42` followed by `CLR R0` must compile to [42, 0x04], not
// [42, 0x40].
func TestDefineByteAndClrEncodeDirectly(t *testing.T) {
	prog := Asm{Lines: []Line{
		instrLine(Instruction{Op: AsmDefineBytes, DefineBytes: []Constant{ByteConstant(42)}}),
		instrLine(Instruction{Op: OpClr, Reg1: R0}),
	}}
	bc, err := Translate(prog)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, bc.Image[0] == 42, "expected literal byte 42, got %#x", bc.Image[0])
	assert(t, bc.Image[1] == 0x04, "expected CLR R0 to encode as 0x04, got %#x", bc.Image[1])
	assert(t, bc.Stacksize == DefaultStacksize, "expected default stacksize when *STACKSIZE absent")
}

func TestPushR0DoesNotCollideWithStop(t *testing.T) {
	prog := Asm{Lines: []Line{
		instrLine(Instruction{Op: OpPush, Reg1: R0}),
		instrLine(Instruction{Op: OpStop}),
	}}
	bc, err := Translate(prog)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, bc.Image[0] == 0b0001_0000, "expected PUSH R0 to encode as 0x10, got %#x", bc.Image[0])
	assert(t, bc.Image[1] == opStop, "expected STOP opcode, got %#x", bc.Image[1])
	assert(t, bc.Image[0] != opStop, "PUSH R0 must not collide with STOP")
}

func TestJmpDoesNotCollideWithRetI(t *testing.T) {
	prog := Asm{Lines: []Line{
		instrLine(Instruction{Op: OpJmp, Label: "target"}),
		labelLine("target"),
		instrLine(Instruction{Op: OpRetI}),
	}}
	bc, err := Translate(prog)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, bc.Image[0] == 0xFB, "expected JMP's first byte to be 0xFB, got %#x", bc.Image[0])
	assert(t, bc.Image[1] == 3, "expected resolved target address 3, got %d", bc.Image[1])
	assert(t, bc.Image[2] == 0x13, "expected JMP's third byte to be 0x13, got %#x", bc.Image[2])
	assert(t, bc.Image[3] == opRetI, "expected RETI opcode 0x2C, got %#x", bc.Image[3])
}

func TestAddSubAndXorDoNotCollide(t *testing.T) {
	prog := Asm{Lines: []Line{
		instrLine(Instruction{Op: OpAdd, Reg1: R1, Reg2: R2}),
		instrLine(Instruction{Op: OpSub, Reg1: R1, Reg2: R2}),
		instrLine(Instruction{Op: OpAnd, Reg1: R1, Reg2: R2}),
		instrLine(Instruction{Op: OpXor, Reg1: R1, Reg2: R2}),
	}}
	bc, err := Translate(prog)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, bc.Image[0] == fromBaseAndTwoRegs(baseAdd, R1, R2), "expected ADD encoding, got %#x", bc.Image[0])
	assert(t, bc.Image[1] == fromBaseAndTwoRegs(baseSub, R1, R2), "expected SUB encoding, got %#x", bc.Image[1])
	assert(t, bc.Image[2] == fromBaseAndTwoRegs(baseAnd, R1, R2), "expected AND encoding, got %#x", bc.Image[2])
	assert(t, bc.Image[3] == fromBaseAndTwoRegs(baseXor, R1, R2), "expected XOR encoding, got %#x", bc.Image[3])
	seen := map[byte]bool{}
	for _, b := range bc.Image[:4] {
		assert(t, !seen[b], "expected all four encodings to be distinct, got repeated %#x", b)
		seen[b] = true
	}
}

func TestJrRelativeOffsetWrapsModulo256(t *testing.T) {
	// JR to a label two bytes before the jump instruction's own site
	// produces a negative (wrapping) offset.
	prog := Asm{Lines: []Line{
		labelLine("start"),
		instrLine(Instruction{Op: OpNop}),
		instrLine(Instruction{Op: OpNop}),
		instrLine(Instruction{Op: OpJr, Label: "start"}),
	}}
	bc, err := Translate(prog)
	assert(t, err == nil, "unexpected error: %v", err)
	// JR opcode at address 2, target at 0: offset = (0 - (2+2)) mod 256 = 252
	assert(t, bc.Image[2] == jumpCondBase|condJr, "expected JR opcode at site, got %#x", bc.Image[2])
	assert(t, bc.Image[3] == byte(252), "expected wrapped relative offset, got %d", bc.Image[3])
}

func TestForwardLabelReferenceResolves(t *testing.T) {
	prog := Asm{Lines: []Line{
		instrLine(Instruction{Op: OpJmp, Label: "target"}),
		labelLine("target"),
		instrLine(Instruction{Op: OpStop}),
	}}
	bc, err := Translate(prog)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, bc.Image[0] == baseJmp0, "expected JMP opcode")
	assert(t, bc.Image[1] == 3, "expected resolved forward label address 3, got %d", bc.Image[1])
}

func TestUndefinedLabelIsAnError(t *testing.T) {
	prog := Asm{Lines: []Line{
		instrLine(Instruction{Op: OpJmp, Label: "nowhere"}),
	}}
	_, err := Translate(prog)
	assert(t, err != nil, "expected undefined-label error")
}

func TestOrgCannotMoveBackwards(t *testing.T) {
	prog := Asm{Lines: []Line{
		instrLine(Instruction{Op: AsmOrigin, Addr: 10}),
		instrLine(Instruction{Op: AsmOrigin, Addr: 2}),
	}}
	_, err := Translate(prog)
	assert(t, err != nil, "expected backwards .ORG to be rejected")
	var ce *CompileError
	assert(t, errorsAs(err, &ce), "expected a *CompileError, got %T", err)
}

func errorsAs(err error, target **CompileError) bool {
	ce, ok := err.(*CompileError)
	if !ok {
		return false
	}
	*target = ce
	return true
}

func TestStacksizeDirectiveOverridesDefault(t *testing.T) {
	prog := Asm{Lines: []Line{
		instrLine(Instruction{Op: AsmStacksize, Stacksize: Stacksize32}),
		instrLine(Instruction{Op: OpStop}),
	}}
	bc, err := Translate(prog)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, bc.Stacksize == Stacksize32, "expected Stacksize32, got %v", bc.Stacksize)
}

func TestProgramsizeAutoResolvesOnceAgainstFinalImage(t *testing.T) {
	prog := Asm{Lines: []Line{
		instrLine(Instruction{Op: AsmProgramsize, Programsize: ProgramsizeAutoValue}),
		instrLine(Instruction{Op: OpNop}),
		instrLine(Instruction{Op: OpNop}),
		instrLine(Instruction{Op: OpStop}),
	}}
	bc, err := Translate(prog)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, bc.Programsize.Kind() == int(ProgramsizeSize), "expected Auto to resolve to a concrete size")
	assert(t, bc.Programsize.Size() == 3, "expected programsize 3, got %d", bc.Programsize.Size())
}

func TestDefineBytesEmitsLiteralSequence(t *testing.T) {
	prog := Asm{Lines: []Line{
		instrLine(Instruction{Op: AsmDefineBytes, DefineBytes: []Constant{
			ByteConstant(1), ByteConstant(2), ByteConstant(3),
		}}),
	}}
	bc, err := Translate(prog)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, bc.Image[0] == 1 && bc.Image[1] == 2 && bc.Image[2] == 3, "expected literal byte sequence")
}

func TestProgramExceedingBudgetIsRejected(t *testing.T) {
	lines := []Line{{Kind: LineInstruction, Instruction: Instruction{Op: AsmOrigin, Addr: 255}}}
	for i := 0; i < 5; i++ {
		lines = append(lines, instrLine(Instruction{Op: OpNop}))
	}
	_, err := Translate(Asm{Lines: lines})
	assert(t, err != nil, "expected budget overrun to be rejected")
}

func TestCallAndReturnEncodeDirectly(t *testing.T) {
	prog := Asm{Lines: []Line{
		instrLine(Instruction{Op: OpCall, Label: "sub"}),
		instrLine(Instruction{Op: OpStop}),
		labelLine("sub"),
		instrLine(Instruction{Op: OpPush, Reg1: R0}),
		instrLine(Instruction{Op: OpPop, Reg1: R0}),
		instrLine(Instruction{Op: OpRet}),
	}}
	bc, err := Translate(prog)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, bc.Image[0] == baseCall, "expected CALL opcode")
	assert(t, bc.Image[1] == 3, "expected resolved sub address 3, got %d", bc.Image[1])
	assert(t, bc.Image[5] == opRet, "expected RET opcode (0x17) at end, got %#x", bc.Image[5])
}

func TestMovEncodesConstantSourceAndRegisterDestination(t *testing.T) {
	prog := Asm{Lines: []Line{
		instrLine(Instruction{
			Op:  OpLdConstant,
			Dst: DestRegister(R1),
			Src: SourceConstant(ByteConstant(0x55)),
		}),
	}}
	bc, err := Translate(prog)
	assert(t, err == nil, "unexpected error: %v", err)
	// source byte: movSrcBase | (0b10 << 2) | 0b11 (constant marker)
	assert(t, bc.Image[0] == movSrcBase|(0b10<<2)|0b11, "expected constant-source byte, got %#x", bc.Image[0])
	assert(t, bc.Image[1] == 0x55, "expected literal operand byte, got %#x", bc.Image[1])
	// destination byte: movDstBase | (0b00 << 2) | R1
	assert(t, bc.Image[2] == movDstBase|byte(R1), "expected register-destination byte, got %#x", bc.Image[2])
}

func TestLineBytesGroupsByteCodeBySourceLine(t *testing.T) {
	prog := Asm{Lines: []Line{
		instrLine(Instruction{Op: OpClr, Reg1: R0}),
		instrLine(Instruction{Op: OpStop}),
	}}
	bc, err := Translate(prog)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, len(bc.Lines) == 2, "expected one LineBytes group per instruction line, got %d", len(bc.Lines))
	assert(t, len(bc.Lines[0].Bytes) == 1 && bc.Lines[0].Bytes[0] == 0x04, "expected CLR R0's group to hold [0x04]")
	assert(t, len(bc.Lines[1].Bytes) == 1 && bc.Lines[1].Bytes[0] == opStop, "expected STOP's group to hold [0x01]")
}
