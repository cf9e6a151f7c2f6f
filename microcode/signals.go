package microcode

import "github.com/MalteT/2a-emulator-sub000/alu"

// Instruction is the 8-bit latch driving the upper address bits and the
// OP-field address multiplexer inputs. Field accessors mirror the
// hardware's named bit positions.
type Instruction byte

const (
	instrA8  Instruction = 1 << 7
	instrA7  Instruction = 1 << 6
	instrA6  Instruction = 1 << 5
	instrA5  Instruction = 1 << 4
	instrOP3 Instruction = 1 << 3 // OP11
	instrOP2 Instruction = 1 << 2 // OP10
	instrOP1 Instruction = 1 << 1 // OP01
	instrOP0 Instruction = 1 << 0 // OP00
)

func (i Instruction) A8() bool   { return i&instrA8 != 0 }
func (i Instruction) A7() bool   { return i&instrA7 != 0 }
func (i Instruction) A6() bool   { return i&instrA6 != 0 }
func (i Instruction) A5() bool   { return i&instrA5 != 0 }
func (i Instruction) OP11() bool { return i&instrOP3 != 0 }
func (i Instruction) OP10() bool { return i&instrOP2 != 0 }
func (i Instruction) OP01() bool { return i&instrOP1 != 0 }
func (i Instruction) OP00() bool { return i&instrOP0 != 0 }

// Signals is a zero-allocation projection over the current microword,
// the latched instruction, the flag register and the last ALU output. It
// answers every higher-level query the pipeline needs without copying
// any of its inputs.
type Signals struct {
	Word          Word
	Instruction   Instruction
	Flags         byte
	ALU           alu.Output
	EdgeInterrupt bool
	LevelInterrupt bool
}

func (s Signals) bit(mask Word) bool { return s.Word.Contains(mask) }

func (s Signals) MAC3() bool { return s.bit(MAC3) }
func (s Signals) MAC2() bool { return s.bit(MAC2) }
func (s Signals) MAC1() bool { return s.bit(MAC1) }
func (s Signals) MAC0() bool { return s.bit(MAC0) }
func (s Signals) NA4() bool  { return s.bit(NA4) }
func (s Signals) NA3() bool  { return s.bit(NA3) }
func (s Signals) NA2() bool  { return s.bit(NA2) }
func (s Signals) NA1() bool  { return s.bit(NA1) }
func (s Signals) NA0() bool  { return s.bit(NA0) }
func (s Signals) BUSEN() bool { return s.bit(BUSEN) }
func (s Signals) BUSWR() bool { return s.bit(BUSWR) }
func (s Signals) MRGWS() bool { return s.bit(MRGWS) }
func (s Signals) MRGWE() bool { return s.bit(MRGWE) }
func (s Signals) MALUIA() bool { return s.bit(MALUIA) }
func (s Signals) MALUIB() bool { return s.bit(MALUIB) }
func (s Signals) MCHFLG() bool { return s.bit(MCHFLG) }

func (s Signals) CarryFlag() bool    { return s.Flags&0b0001 != 0 }
func (s Signals) ZeroFlag() bool     { return s.Flags&0b0010 != 0 }
func (s Signals) NegativeFlag() bool { return s.Flags&0b0100 != 0 }
func (s Signals) InterruptEnableFlag() bool { return s.Flags&0b1000 != 0 }

// ALUSelect decodes MALUS3..0 into an alu.Select.
func (s Signals) ALUSelect() alu.Select {
	var sel alu.Select
	if s.bit(MALUS3) {
		sel |= 0b1000
	}
	if s.bit(MALUS2) {
		sel |= 0b0100
	}
	if s.bit(MALUS1) {
		sel |= 0b0010
	}
	if s.bit(MALUS0) {
		sel |= 0b0001
	}
	return sel
}

func regNumber(bit2, bit1, bit0 bool) int {
	n := 0
	if bit2 {
		n |= 0b100
	}
	if bit1 {
		n |= 0b010
	}
	if bit0 {
		n |= 0b001
	}
	return n
}

// SelectedRegisterA returns the index of the register selected by
// MRGAA3..0 (or, when MRGAA3 is set, by OP01/OP00).
func (s Signals) SelectedRegisterA() int {
	if s.bit(MRGAA3) {
		return regNumber(false, s.Instruction.OP01(), s.Instruction.OP00())
	}
	return regNumber(s.bit(MRGAA2), s.bit(MRGAA1), s.bit(MRGAA0))
}

// SelectedRegisterB returns the index of the register selected by
// MRGAB3..0, or, when MRGAB3 is set, by OP11/OP10 — the "src" field of
// the base|(src<<2)|dst two-operand opcode encoding, independent from
// SelectedRegisterA's OP01/OP00 "dst" escape.
func (s Signals) SelectedRegisterB() int {
	if s.bit(MRGAB3) {
		return regNumber(false, s.Instruction.OP11(), s.Instruction.OP10())
	}
	return regNumber(s.bit(MRGAB2), s.bit(MRGAB1), s.bit(MRGAB0))
}

// SelectedRegisterForWriting returns the register-file index that a
// pending writeback targets: B's index when MRGWS is set, else A's.
func (s Signals) SelectedRegisterForWriting() int {
	if s.MRGWS() {
		return s.SelectedRegisterB()
	}
	return s.SelectedRegisterA()
}

// ALUInputBConstant sign-extends MRGAB3..0 to a full byte, used as the
// literal ALU-B operand when MALUIB selects the constant path.
func (s Signals) ALUInputBConstant() byte {
	nibble := byte(0)
	if s.bit(MRGAB3) {
		nibble |= 0b1000
	}
	if s.bit(MRGAB2) {
		nibble |= 0b0100
	}
	if s.bit(MRGAB1) {
		nibble |= 0b0010
	}
	if s.bit(MRGAB0) {
		nibble |= 0b0001
	}
	if nibble&0b1000 != 0 {
		return nibble | 0b1111_0000
	}
	return nibble
}

// AM2 is the 4-way flag multiplexer selected by OP01/OP00.
func (s Signals) AM2() bool {
	switch {
	case !s.Instruction.OP01() && !s.Instruction.OP00():
		return true
	case !s.Instruction.OP01() && s.Instruction.OP00():
		return s.CarryFlag()
	case s.Instruction.OP01() && !s.Instruction.OP00():
		return s.ZeroFlag()
	default:
		return s.NegativeFlag()
	}
}

// AL1 is the address-logic XOR between OP10 and AM2.
func (s Signals) AL1() bool {
	return s.Instruction.OP10() != s.AM2()
}

// InterruptLogic3 is the condition under which a pending edge interrupt
// is consumed while advancing to this microword: MAC0 ∧ MAC1 ∧ NA0, per
// §4.3 of the specification. (The reference implementation instead
// clears the edge latch based on IL1 = IFF1 ∨ level-interrupt, at the
// one call site in its pipeline's update_word; this implementation
// follows the documented MAC0∧MAC1∧NA0 condition instead.)
func (s Signals) InterruptLogic3() bool {
	return s.MAC0() && s.MAC1() && s.NA0()
}

// AM1 is the 8-way next-address multiplexer selected by MAC1,MAC0,NA0.
func (s Signals) AM1() bool {
	switch {
	case !s.MAC1() && !s.MAC0() && !s.NA0():
		return false
	case !s.MAC1() && !s.MAC0() && s.NA0():
		return true
	case !s.MAC1() && s.MAC0() && !s.NA0():
		return s.AL1()
	case !s.MAC1() && s.MAC0() && s.NA0():
		return s.CarryFlag()
	case s.MAC1() && !s.MAC0() && !s.NA0():
		return s.ALU.CarryOut
	case s.MAC1() && !s.MAC0() && s.NA0():
		return s.ALU.ZeroOut
	case s.MAC1() && s.MAC0() && !s.NA0():
		return s.ALU.NegativeOut
	default: // MAC1 && MAC0 && NA0
		return s.InterruptEnableFlag() && (s.EdgeInterrupt || s.LevelInterrupt)
	}
}

// NextAddress computes the 9-bit next microword address per §4.3.
func (s Signals) NextAddress() int {
	a8 := s.Instruction.A8()
	a7 := s.Instruction.A7()
	a6 := s.Instruction.A6()
	a5 := s.Instruction.A5()
	a4 := s.NA4()
	a3 := s.NA3()
	a2 := s.NA2()

	var a1, a0 bool
	if s.MAC2() {
		a1 = s.Instruction.OP11()
		a0 = s.Instruction.OP10()
	} else {
		a1 = s.NA1()
		a0 = s.AM1()
	}

	addr := 0
	for _, bit := range []bool{a8, a7, a6, a5, a4, a3, a2, a1, a0} {
		addr <<= 1
		if bit {
			addr |= 1
		}
	}
	return addr
}
