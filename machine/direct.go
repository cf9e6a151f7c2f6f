package machine

import "github.com/MalteT/2a-emulator-sub000/register"

// execDirect executes the instruction families that don't reduce to one
// ALU pass over the register file's two fixed ports — stack, control-
// flow and bitwise/arithmetic instructions whose operands, post-
// increments or multi-byte framing this ALU/address-mux model has no
// single microword for. It runs the whole instruction as one atomic
// pipeline step, the same way Tick already special-cases STOP, the
// error-stop opcode and RETI's interrupt-flag clear. Reports whether op
// was one it owns; when false the caller falls back to the microcode
// ROM walk (see rom.go's instructionPrograms).
func (m *RawMachine) execDirect(op byte) bool {
	switch {
	case op == opNop:
		return true
	case op == opEi:
		m.Registers.SetInterruptEnabledFlag(true)
		return true
	case op == opDi:
		m.Registers.SetInterruptEnabledFlag(false)
		return true
	case op >= basePush && op <= basePush+3:
		m.push(m.Registers.Get(register.Number(op - basePush)))
		return true
	case op >= basePop && op <= basePop+3:
		if v, ok := m.pop(); ok {
			m.Registers.Set(register.Number(op-basePop), v)
		}
		return true
	case op == basePushF:
		m.push(m.Registers.Flags())
		return true
	case op == basePopF:
		if v, ok := m.pop(); ok {
			m.Registers.SetFlags(v)
		}
		return true
	case op == baseJmp0:
		target := m.fetchOperandByte()
		m.fetchOperandByte() // consume the trailing baseJmp2 framing byte
		m.setPC(target)
		return true
	case op == baseCall:
		target := m.fetchOperandByte()
		m.push(m.Registers.Get(register.R3))
		m.setPC(target)
		return true
	case op == opRet:
		if v, ok := m.pop(); ok {
			m.setPC(v)
		}
		return true
	case op == opRetI:
		m.Bus.ClearMISRKeyInterrupt()
		if v, ok := m.pop(); ok {
			m.setPC(v)
		}
		return true
	case op&0b1111_1000 == jumpCondBase && isJumpCond(op&0b111):
		offset := m.fetchOperandByte()
		if m.jumpConditionHolds(op & 0b111) {
			m.setPC(m.Registers.Get(register.R3) + offset)
		}
		return true
	case op >= baseAnd && op < baseAnd+16:
		m.twoRegisterBitwise(op-baseAnd, func(a, b byte) byte { return a & b })
		return true
	case op >= baseOr && op < baseOr+16:
		m.twoRegisterBitwise(op-baseOr, func(a, b byte) byte { return a | b })
		return true
	case op >= baseXor && op < baseXor+16:
		m.twoRegisterBitwise(op-baseXor, func(a, b byte) byte { return a ^ b })
		return true
	case op >= baseMul && op < baseMul+16:
		m.twoRegisterArith(op-baseMul, func(a, b byte) byte { return a * b })
		return true
	case op >= baseDiv && op < baseDiv+16:
		_, src := twoRegisterOperands(op - baseDiv)
		if m.Registers.Get(src) == 0 {
			m.errorStopped = true
			return true
		}
		m.twoRegisterArith(op-baseDiv, func(a, b byte) byte { return a / b })
		return true
	}
	return false
}

// fetchOperandByte reads the byte at the program counter and advances
// it, the same way instruction fetch itself does; used for operand and
// offset bytes that follow a multi-byte opcode.
func (m *RawMachine) fetchOperandByte() byte {
	pc := m.Registers.Get(register.R3)
	b := m.Bus.Read(pc)
	m.Registers.Set(register.R3, pc+1)
	return b
}

func (m *RawMachine) setPC(pc byte) {
	m.Registers.Set(register.R3, pc)
	if !m.validProgramCounter(pc) {
		m.errorStopped = true
	}
}

// push/pop implement the stack-pointer-relative memory transfer PUSH,
// POP, PUSHF, POPF, CALL and RET/RETI all share: the stack grows
// downward from the top of RAM, so PUSH pre-decrements before writing
// and POP reads before post-incrementing.
func (m *RawMachine) push(value byte) {
	sp := m.Registers.Get(register.R5) - 1
	if !m.validStackPointer(sp) {
		m.errorStopped = true
		return
	}
	m.Registers.Set(register.R5, sp)
	m.Bus.Write(sp, value)
}

func (m *RawMachine) pop() (byte, bool) {
	sp := m.Registers.Get(register.R5)
	value := m.Bus.Read(sp)
	sp++
	if !m.validStackPointer(sp) {
		m.errorStopped = true
		return 0, false
	}
	m.Registers.Set(register.R5, sp)
	return value, true
}

func isJumpCond(cond byte) bool {
	switch cond {
	case condJr, condJcs, condJzs, condJns, condJcc, condJzc, condJnc:
		return true
	default:
		return false
	}
}

func (m *RawMachine) jumpConditionHolds(cond byte) bool {
	switch cond {
	case condJr:
		return true
	case condJcs:
		return m.Registers.CarryFlag()
	case condJzs:
		return m.Registers.ZeroFlag()
	case condJns:
		return m.Registers.NegativeFlag()
	case condJcc:
		return !m.Registers.CarryFlag()
	case condJzc:
		return !m.Registers.ZeroFlag()
	case condJnc:
		return !m.Registers.NegativeFlag()
	default:
		return false
	}
}

// twoRegisterOperands decodes the dst|(src<<2) nibble shared by every
// two-register opcode family (ADD/ADC/SUB's ROM programs included).
func twoRegisterOperands(nibble byte) (dst, src register.Number) {
	return register.Number(nibble & 0b11), register.Number((nibble >> 2) & 0b11)
}

func (m *RawMachine) twoRegisterBitwise(nibble byte, f func(a, b byte) byte) {
	dst, src := twoRegisterOperands(nibble)
	out := f(m.Registers.Get(dst), m.Registers.Get(src))
	m.Registers.Set(dst, out)
	m.Registers.SetZeroFlag(out == 0)
	m.Registers.SetNegativeFlag(out&0b1000_0000 != 0)
}

func (m *RawMachine) twoRegisterArith(nibble byte, f func(a, b byte) byte) {
	dst, src := twoRegisterOperands(nibble)
	out := f(m.Registers.Get(dst), m.Registers.Get(src))
	m.Registers.Set(dst, out)
	m.Registers.SetZeroFlag(out == 0)
	m.Registers.SetNegativeFlag(out&0b1000_0000 != 0)
}
