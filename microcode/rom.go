package microcode

import "github.com/MalteT/2a-emulator-sub000/alu"

// ROM holds the 512-entry microprogram. machine.RawMachine's pipeline
// bypasses the hardware's real two-level OP11/OP10 address dispatch for
// the initial opcode->microword transition (see RawMachine.Tick): it
// seeds the address directly with the freshly-fetched opcode byte, so
// every entry below is keyed by that opcode's own value, not by the
// literal ROM placement the real hardware's ROM dump would use (a
// generated data table this translation never had source access to —
// see instructionPrograms' doc comment).
//
// Every single-register and two-register ALU instruction the ISA
// defines gets a real, single-microword program here: one ALU pass,
// one register writeback, one flag update, tagged MAC3 so the pipeline
// returns cleanly to the universal fetch address. Stack, control-flow,
// bitwise-logic, MUL and DIV instructions, none of which this ALU's
// NOR-only bitwise primitive or single-port address model covers in one
// pass, are executed directly by the pipeline instead (see
// RawMachine.execDirect in machine/direct.go), the same way STOP/RETI
// already are; their ROM slots are left as genericFetch, which is
// harmless since the pipeline never consults them for those opcodes.
// The memory-addressing-mode family (MOV, LD, ST and the instructions
// sharing their encoding) has no program here and no execDirect case:
// its opcode slots hold genericFetch.
var ROM [NumWords]Word

func init() {
	for i := range ROM {
		ROM[i] = genericFetch
	}
	for slot, word := range instructionPrograms {
		ROM[slot] = word
	}
}

// genericFetch re-reads the bus and returns to address 0 without
// mutating any register; used to fill every opcode slot this module
// does not give a concrete microprogram.
const genericFetch Word = BUSEN | MAC3

// regBits ORs the literal (non-escape) register-select bits for n into
// one of the two register-file ports. MRGAA3/MRGAB3, the hardware's
// escape flag that instead reads the register number out of the
// instruction's OP bits, is left clear: since every opcode below gets
// its own dedicated ROM slot there is no need to share one microword
// across 16 opcodes through the escape mux, so the register ports are
// just wired to a literal constant per slot.
func regBitsA(n int) Word {
	var w Word
	if n&0b100 != 0 {
		w |= MRGAA2
	}
	if n&0b010 != 0 {
		w |= MRGAA1
	}
	if n&0b001 != 0 {
		w |= MRGAA0
	}
	return w
}

func regBitsB(n int) Word {
	var w Word
	if n&0b100 != 0 {
		w |= MRGAB2
	}
	if n&0b010 != 0 {
		w |= MRGAB1
	}
	if n&0b001 != 0 {
		w |= MRGAB0
	}
	return w
}

// aluSelectBits packs a 4-bit alu.Select into the word's MALUS3..0 field.
func aluSelectBits(sel alu.Select) Word {
	var w Word
	if sel&0b1000 != 0 {
		w |= MALUS3
	}
	if sel&0b0100 != 0 {
		w |= MALUS2
	}
	if sel&0b0010 != 0 {
		w |= MALUS1
	}
	if sel&0b0001 != 0 {
		w |= MALUS0
	}
	return w
}

// constB packs a signed nibble -8..7 into the MRGAB3..0 field read by
// Signals.ALUInputBConstant when MALUIB selects the constant path.
func constB(n int) Word {
	w := regBitsB(n & 0b0111)
	if n&0b1000 != 0 {
		w |= MRGAB3
	}
	return w
}

// oneRegisterProgram builds a single-microword program for an
// instruction that reads one register through the A port, evaluates the
// ALU and writes the result back to that same register.
func oneRegisterProgram(reg int, sel alu.Select) Word {
	return regBitsA(reg) | aluSelectBits(sel) | MRGWE | MCHFLG | MAC3
}

// twoRegisterProgram builds a single-microword program for a dst/src
// instruction: A port reads (and receives the writeback of) dst, B port
// reads src, matching fromBaseAndTwoRegs' base|(src<<2)|dst encoding
// and register.dob's OP11/OP10 src-field read.
func twoRegisterProgram(dst, src int, sel alu.Select) Word {
	return regBitsA(dst) | regBitsB(src) | aluSelectBits(sel) | MRGWE | MCHFLG | MAC3
}

// instructionPrograms is built once at init time and is also ROM's
// source of truth for what this module claims to implement concretely;
// rom_test.go checks every listed slot against ROM directly. The
// hardware's own ROM contents are a generated data table this
// translation never had source access to (see original_source's
// _INDEX.md) — what follows is built from this ISA's documented
// per-instruction semantics and the ALU's documented select table, not
// a transcription of an unavailable hardware dump.
var instructionPrograms = buildInstructionPrograms()

func buildInstructionPrograms() map[int]Word {
	m := make(map[int]Word)

	// CLR Rn: zero the register, update flags.
	const baseClr = 0x04
	for r := 0; r < 4; r++ {
		m[baseClr+r] = oneRegisterProgram(r, alu.ZERO)
	}

	// COM Rn: one's complement via NOR(r, r) = ^r.
	const baseCom = 0x30
	for r := 0; r < 4; r++ {
		m[baseCom+r] = twoRegisterProgram(r, r, alu.NOR)
	}

	// NEG Rn: two's complement negate. The A port is starved of a bus
	// read (MALUIA set, BUSEN clear) so the ALU's A input is the zero
	// value busValue defaults to; ADDS then computes 0 + ^r + 1 = -r.
	const baseNeg = 0x34
	for r := 0; r < 4; r++ {
		m[baseNeg+r] = MALUIA | regBitsB(r) | MRGWS | aluSelectBits(alu.ADDS) | MRGWE | MCHFLG | MAC3
	}

	// LSR/ASR Rn: logical/arithmetic shift right.
	const baseLsr = 0x38
	const baseAsr = 0x3C
	for r := 0; r < 4; r++ {
		m[baseLsr+r] = oneRegisterProgram(r, alu.LSR)
		m[baseAsr+r] = oneRegisterProgram(r, alu.ASR)
	}

	// RRC Rn: rotate right through carry.
	const baseRrc = 0x40
	for r := 0; r < 4; r++ {
		m[baseRrc+r] = oneRegisterProgram(r, alu.RRC)
	}

	// INC/TST Rn: INC adds the constant 1; TST passes the register
	// through unaltered (ALUSelect B-with-carry-held, BH) so only the
	// flags move and the input carry survives untouched.
	const baseInc = 0x44
	const baseTst = 0x48
	for r := 0; r < 4; r++ {
		m[baseInc+r] = regBitsA(r) | MALUIB | constB(1) | aluSelectBits(alu.ADD) | MRGWE | MCHFLG | MAC3
		m[baseTst+r] = regBitsB(r) | aluSelectBits(alu.BH) | MCHFLG | MAC3
	}

	// DEC Rn: register-source only (see the OpDec case in asm/translate.go);
	// subtracts the constant 1 via ADDS's B-complement identity.
	const baseDec = 0x50
	for r := 0; r < 4; r++ {
		m[baseDec+r] = regBitsA(r) | MALUIB | constB(1) | aluSelectBits(alu.ADDS) | MRGWE | MCHFLG | MAC3
	}

	// ADD/ADC/SUB Ra,Rb, all 16 dst/src combinations (this also covers
	// LSL Rn,Rn and RLC Rn,Rn, the diagonal opcodes ADD/ADC genuinely
	// share byte-for-byte with the shift-left/rotate-left-carry mnemonics
	// per the reference compiler's opcode table).
	const baseAdd = 0x60
	const baseAdc = 0x70
	const baseSub = 0x80
	for dst := 0; dst < 4; dst++ {
		for src := 0; src < 4; src++ {
			op := dst | (src << 2)
			m[baseAdd+op] = twoRegisterProgram(dst, src, alu.ADD)
			m[baseAdc+op] = twoRegisterProgram(dst, src, alu.ADC)
			m[baseSub+op] = twoRegisterProgram(dst, src, alu.ADDS)
		}
	}

	return m
}
