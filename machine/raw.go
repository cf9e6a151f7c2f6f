// Package machine implements the Minirechner 2a's clock-driven pipeline
// (RawMachine) and a higher-level facade (Machine) wrapping it with
// configuration, reset semantics and key-triggered control.
package machine

import (
	"github.com/MalteT/2a-emulator-sub000/alu"
	"github.com/MalteT/2a-emulator-sub000/asm"
	"github.com/MalteT/2a-emulator-sub000/board"
	"github.com/MalteT/2a-emulator-sub000/bus"
	"github.com/MalteT/2a-emulator-sub000/microcode"
	"github.com/MalteT/2a-emulator-sub000/register"
)

// opStop, opErrorStop and opRetI are the opcodes the pipeline special-
// cases outside the microcode ROM walk: STOP (0x01) is a deliberate
// halt; 0x00 (an unassigned opcode slot, the all-zero byte a blank
// EEPROM reads as) is the error halt; RETI (0x2C) additionally clears
// the key-interrupt status bits on its way through instruction-register
// refresh.
const (
	opStop      = 0x01
	opErrorStop = 0x00
	opNop       = 0x02
	opEi        = 0x08
	opDi        = 0x0C
	opRet       = 0x17
	opRetI      = 0x2C

	basePush  = 0x10
	basePop   = 0x14
	basePushF = 0x18
	basePopF  = 0x1C

	baseAnd = 0x90
	baseOr  = 0xA0
	baseXor = 0xD0
	baseMul = 0xB0
	baseDiv = 0xC0

	baseJmp0     = 0xFB
	baseJmp2     = 0x13
	baseCall     = 0x28
	jumpCondBase = 0x20

	condJr  = 0b000
	condJcs = 0b001
	condJzs = 0b010
	condJns = 0b011
	condJcc = 0b101
	condJzc = 0b110
	condJnc = 0b111
)

// RawMachine is the clock-driven CPU core: registers, bus, extension
// board and the microcode-walking pipeline that ties them together. It
// has no notion of configuration or facade-level conveniences — those
// live in Machine.
type RawMachine struct {
	Registers *register.File
	Bus       *bus.Bus
	Board     *board.Board

	// Stacksize/Programsize describe the loaded program, not runtime
	// state; reset never clears them (see Machine.CPUReset/MasterReset).
	Stacksize   asm.Stacksize
	Programsize asm.Programsize

	address     int
	instruction microcode.Instruction
	aluOut      alu.Output

	pendingWriteValid bool
	pendingWriteReg   register.Number
	pendingWriteValue byte
	pendingFlagWrite  bool

	memoryWait bool

	edgeInterrupt  bool
	levelInterrupt bool

	stopped      bool
	errorStopped bool

	// instructionDone records whether the Tick just performed finished an
	// instruction's microprogram (a MAC3-tagged ROM word, or an execDirect
	// opcode, which always completes in the one Tick that fetches it).
	// Assembly-step mode reads this after each Tick instead of peeking at
	// the ROM slot address is about to land on, since both ROM-walk and
	// execDirect instructions now complete within a single Tick call.
	instructionDone bool
}

// NewRaw creates a RawMachine with a fresh register file, bus and
// extension board wired together, positioned at microword address 0, and
// the default stacksize with no programsize supervision.
func NewRaw() *RawMachine {
	b := bus.New()
	return &RawMachine{
		Registers:   register.New(),
		Bus:         b,
		Board:       b.Board(),
		Stacksize:   asm.DefaultStacksize,
		Programsize: asm.ProgramsizeNotSetValue,
	}
}

// Stopped reports whether the CPU halted via STOP.
func (m *RawMachine) Stopped() bool { return m.stopped }

// ErrorStopped reports whether the CPU halted via the error-stop opcode
// or a stack/program-counter validity violation.
func (m *RawMachine) ErrorStopped() bool { return m.errorStopped }

// Halted reports whether either halt condition holds; Tick is a no-op
// once this is true.
func (m *RawMachine) Halted() bool { return m.stopped || m.errorStopped }

// InstructionComplete reports whether the Tick just performed finished
// an instruction's microprogram — the signal assembly-step mode uses to
// decide when to stop single-stepping.
func (m *RawMachine) InstructionComplete() bool {
	return m.instructionDone
}

// TriggerEdgeInterrupt latches a pending key-driven interrupt, to be
// picked up on the next Tick's interrupt-fetch stage.
func (m *RawMachine) TriggerEdgeInterrupt() {
	m.edgeInterrupt = true
}

// Tick advances the pipeline by exactly one microword, in the seven
// fixed-order stages: apply pending writes, latch the instruction
// register, fetch interrupts, compute the next address (and clear a
// consumed edge interrupt), read memory, evaluate the ALU, write memory.
// A pending memory-wait latch (set by the previous cycle's RAM access)
// consumes this edge instead, producing no further state change.
func (m *RawMachine) Tick() {
	if m.Halted() {
		return
	}
	if m.memoryWait {
		m.memoryWait = false
		m.instructionDone = false
		return
	}

	// 1. apply pending writes queued by the previous cycle.
	if m.pendingFlagWrite {
		m.Registers.SetCarryFlag(m.aluOut.CarryOut)
		m.Registers.SetZeroFlag(m.aluOut.ZeroOut)
		m.Registers.SetNegativeFlag(m.aluOut.NegativeOut)
		m.pendingFlagWrite = false
	}
	if m.pendingWriteValid {
		m.Registers.Set(m.pendingWriteReg, m.pendingWriteValue)
		m.pendingWriteValid = false
		switch m.pendingWriteReg {
		case register.R5:
			if !m.validStackPointer(m.Registers.Get(register.R5)) {
				m.errorStopped = true
				return
			}
		case register.R3:
			if !m.validProgramCounter(m.Registers.Get(register.R3)) {
				m.errorStopped = true
				return
			}
		}
	}

	// 2. instruction-register refresh. Address 0 is the universal fetch
	// entry point every instruction's microprogram eventually returns to,
	// so the byte at PC is latched exactly there. Opcodes whose execution
	// reduces to one ALU pass over the register file's two ports hand off
	// to the microcode ROM, keyed directly by the opcode byte itself —
	// the one place the pipeline bypasses the bit-mux NextAddress dispatch,
	// trading the hardware's two-level OP11/OP10 sub-dispatch for a flat,
	// directly-addressable table (see microcode/rom.go). Stack,
	// control-flow, bitwise-logic, MUL and DIV opcodes run as one atomic
	// pipeline step via execDirect instead; any remaining opcode lands on
	// its ROM slot, which for an unassigned slot is genericFetch.
	if m.address == 0 {
		pc := m.Registers.Get(register.R3)
		op := m.Bus.Read(pc)
		m.Registers.Set(register.R3, pc+1)
		if !m.validProgramCounter(pc + 1) {
			m.errorStopped = true
			return
		}
		switch op {
		case opErrorStop:
			m.errorStopped = true
			return
		case opStop:
			m.stopped = true
			return
		default:
			m.instruction = microcode.Instruction(op)
			if m.execDirect(op) {
				m.instructionDone = true
				return
			}
			m.address = int(op)
		}
	}

	// 3. fetch interrupts: latch a fresh one only if none is pending yet.
	if !m.edgeInterrupt {
		m.edgeInterrupt = m.Bus.FetchMR2DA2Interrupt()
	}
	if !m.levelInterrupt {
		m.levelInterrupt = m.Bus.GetLevelInterrupt() || (m.Bus.KeyInterruptEnabled() && m.Bus.MISR() != 0)
	}

	word := microcode.ROM[m.address]
	sig := microcode.Signals{
		Word:           word,
		Instruction:    m.instruction,
		Flags:          m.Registers.Flags(),
		ALU:            m.aluOut,
		EdgeInterrupt:  m.edgeInterrupt,
		LevelInterrupt: m.levelInterrupt,
	}

	// 4. compute the next microword address; clear the edge-interrupt
	// latch exactly when §4.3's MAC0∧MAC1∧NA0 condition holds. A
	// MAC3-tagged word marks the end of an instruction's microprogram:
	// force a clean return to the universal fetch address regardless of
	// what the bit-mux would otherwise compute from the (now-stale)
	// latched opcode's upper address bits.
	var nextAddress int
	if sig.MAC3() {
		nextAddress = 0
	} else {
		nextAddress = sig.NextAddress()
	}
	if sig.InterruptLogic3() {
		m.edgeInterrupt = false
	}

	// 5. bus read.
	var busValue byte
	addrReg := register.Number(sig.SelectedRegisterA())
	if sig.BUSEN() && !sig.BUSWR() {
		addr := m.Registers.Get(addrReg)
		busValue = m.Bus.Read(addr)
		if addr <= bus.RAMEnd {
			m.memoryWait = true
		}
	}

	// 6. calculate the ALU output.
	aIn := m.Registers.Get(addrReg)
	if sig.MALUIA() {
		aIn = busValue
	}
	var bIn byte
	if sig.MALUIB() {
		bIn = sig.ALUInputBConstant()
	} else {
		bIn = m.Registers.Get(register.Number(sig.SelectedRegisterB()))
	}
	sel := sig.ALUSelect()
	// ADDS/ADCS realize subtraction as addition: A - B == A + ^B + 1. The
	// ALU itself (mirroring its reference two's-complement identity) only
	// adds; the B-bus complement these two selects depend on is applied
	// here, on the wire into the ALU.
	if sel == alu.ADDS || sel == alu.ADCS {
		bIn = ^bIn
	}
	out := alu.Eval(alu.Input{A: aIn, B: bIn, CarryIn: sig.CarryFlag()}, sel)
	m.aluOut = out
	if sig.MRGWE() {
		m.pendingWriteValid = true
		m.pendingWriteReg = register.Number(sig.SelectedRegisterForWriting())
		if sig.BUSEN() && !sig.BUSWR() {
			m.pendingWriteValue = busValue
		} else {
			m.pendingWriteValue = out.Output
		}
	}
	if sig.MCHFLG() {
		m.pendingFlagWrite = true
	}

	// 7. write to memory.
	if sig.BUSEN() && sig.BUSWR() {
		writeReg := register.Number(sig.SelectedRegisterForWriting())
		addr := m.Registers.Get(addrReg)
		m.Bus.Write(addr, m.Registers.Get(writeReg))
		if addr <= bus.RAMEnd {
			m.memoryWait = true
		}
	}

	m.address = nextAddress
	m.instructionDone = sig.MAC3()
}

// validStackPointer implements §4.1's stack-supervision table: validity
// depends on the configured stacksize, which reserves a window at the
// top of RAM for the call stack. NotSet behaves as Stacksize16.
func (m *RawMachine) validStackPointer(sp byte) bool {
	switch m.Stacksize {
	case asm.Stacksize0:
		return sp < 0xF0
	case asm.Stacksize32:
		return sp <= 0xC0 || sp >= 0xCF
	case asm.Stacksize48:
		return sp <= 0xB0 || sp >= 0xBF
	case asm.Stacksize64:
		return sp <= 0xA0 || sp >= 0xAF
	default: // Stacksize16, StacksizeNotSet
		return sp <= 0xD0 || sp >= 0xDF
	}
}

// validProgramCounter implements §4.1's program-size supervision: a
// concrete Size(n) rejects any PC beyond n; NotSet/Auto never fault
// (Auto is always resolved to a concrete Size by the translator, so the
// NotSet arm is reached by raw images and by translated programs that
// give no *PROGRAMSIZE directive).
func (m *RawMachine) validProgramCounter(pc byte) bool {
	if !m.Programsize.IsSize() {
		return true
	}
	return pc <= m.Programsize.Size()
}
