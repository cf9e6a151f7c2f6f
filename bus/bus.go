// Package bus implements the Minirechner 2a's 256-byte memory-mapped
// address space: plain RAM, the MR2DA2 extension board, the master
// interrupt control/status pair, the UART and the timer/IO register
// block. Reads and writes at the same address are not symmetric here —
// several addresses name one register on read and an entirely different
// one on write, exactly as the physical bus does.
package bus

import (
	"github.com/sirupsen/logrus"

	"github.com/MalteT/2a-emulator-sub000/board"
)

// Address-map boundaries, per the component table.
const (
	RAMStart      = 0x00
	RAMEnd        = 0xEF // inclusive
	MR2DA2Start   = 0xF0
	MR2DA2End     = 0xF3 // inclusive
	ReservedStart = 0xF4
	ReservedEnd   = 0xF8 // inclusive
	MICRMISRAddr  = 0xF9 // write: MICR, read: MISR
	UARTStart     = 0xFA
	UARTEnd       = 0xFB // inclusive
	InputFCAddr   = 0xFC // read: input_reg[0], write: timer div3 low byte
	InputFDAddr   = 0xFD // read: input_reg[1], write: timer config
	InputFEAddr   = 0xFE // read: input_reg[2], write: output_reg[0]
	InputFFAddr   = 0xFF // read: input_reg[3], write: output_reg[1]
)

// MICR bit layout: the bus-side interrupt control register.
const (
	MICRBusEdgeInterruptEnable   byte = 1 << 5
	MICRBusLevelInterruptEnable  byte = 1 << 4
	MICRUARTEdgeInterruptEnable  byte = 1 << 3
	MICRUARTLevelInterruptEnable byte = 1 << 2
	MICRTimerEdgeInterruptEnable byte = 1 << 1
	MICRKeyEdgeInterruptEnable   byte = 1 << 0
)

// MISR bit layout: the bus-side interrupt status register.
const (
	MISRBusInterruptPending        byte = 1 << 7
	MISRUARTInterruptPending       byte = 1 << 6
	MISRTimerInterruptPending      byte = 1 << 5
	MISRKeyInterruptPending        byte = 1 << 4
	MISRBusInterruptRequestActive  byte = 1 << 3
	MISRUARTInterruptRequestActive byte = 1 << 2
	MISRTimerInterruptRequestActive byte = 1 << 1
	MISRKeyInterruptRequestActive  byte = 1 << 0
)

// UCR/USR bit layout: the UART control/status registers.
const (
	UCRIntOnRXReady byte = 1 << 7
	UCRIntOnRXFull  byte = 1 << 6
	UCRIntOnTXEmpty byte = 1 << 5
	UCRIntOnTXReady byte = 1 << 4
	UCRIgnoreCTS    byte = 1 << 3
)

const (
	USRTXReady byte = 1 << 7
	USRTXEmpty byte = 1 << 6
	USRNotCTS  byte = 1 << 5
	USRTXD     byte = 1 << 4
	USRRXD     byte = 1 << 3
	USRNotRTS  byte = 1 << 2
	USRRXFull  byte = 1 << 1
	USRRXReady byte = 1 << 0
)

// interruptTimer models the bus's free-running, 14-bit divide-by-N
// interrupt timer: div3 is the raw 14-bit reload value (loaded in two
// halves via 0xFC and 0xFD), div1/div2 are the two independently
// selectable prescale stages 0xFD's "reconfigure" mode chooses between.
type interruptTimer struct {
	enabled bool
	div1    int
	div2    int
	div3    int
}

func (it *interruptTimer) reset() { *it = interruptTimer{} }

// Bus owns every addressable byte of the machine: RAM, the four physical
// input registers, the two output registers, the MR2DA2 extension board
// and the interrupt/UART/timer register block.
type Bus struct {
	ram       [RAMEnd - RAMStart + 1]byte
	inputReg  [4]byte
	outputReg [2]byte
	micr      byte
	misr      byte
	ucr       byte
	usr       byte
	uartSend  byte
	uartRecv  byte
	timer     interruptTimer
	board     *board.Board
}

// New creates a Bus with zeroed RAM and a fresh extension board attached.
func New() *Bus {
	return &Bus{board: board.New()}
}

// Board exposes the attached MR2DA2 board for direct external-pin drivers
// (jumpers, analog inputs, UIO pins) that live outside the CPU-visible
// address space.
func (b *Bus) Board() *board.Board { return b.board }

// Read returns the byte at addr, per the address-map table. Several
// addresses in the 0xF9-0xFF range read a different register than the one
// a write at the same address targets.
func (b *Bus) Read(addr byte) byte {
	switch {
	case addr >= RAMStart && addr <= RAMEnd:
		return b.ram[addr-RAMStart]
	case addr == MR2DA2Start:
		return b.board.DigitalInput1()
	case addr == MR2DA2Start+1:
		return b.board.DASR()
	case addr == MR2DA2Start+2:
		return b.board.GetFanPeriod()
	case addr == MR2DA2Start+3:
		return b.board.DAISR()
	case addr >= ReservedStart && addr <= ReservedEnd:
		warnReserved(addr)
		return 0
	case addr == MICRMISRAddr:
		return b.misr
	case addr >= UARTStart && addr <= UARTEnd:
		return b.readUART(addr)
	default: // 0xFC..0xFF
		return b.inputReg[addr-InputFCAddr]
	}
}

// Write stores value at addr, per the address-map table.
func (b *Bus) Write(addr byte, value byte) {
	switch {
	case addr >= RAMStart && addr <= RAMEnd:
		b.ram[addr-RAMStart] = value
	case addr == MR2DA2Start:
		b.board.SetDigitalOutput1(value)
	case addr == MR2DA2Start+1:
		b.board.SetDigitalOutput2(value)
	case addr == MR2DA2Start+2:
		b.writeF2(value)
	case addr == MR2DA2Start+3:
		b.board.DeleteIntFF()
	case addr >= ReservedStart && addr <= ReservedEnd:
		warnReserved(addr)
	case addr == MICRMISRAddr:
		b.micr = value
	case addr >= UARTStart && addr <= UARTEnd:
		b.writeUART(addr, value)
	case addr == InputFCAddr:
		b.timer.div3 = (b.timer.div3 &^ 0xFF) | int(value)
	case addr == InputFDAddr:
		b.writeTimerConfig(value)
	case addr == InputFEAddr:
		b.outputReg[0] = value
	case addr == InputFFAddr:
		b.outputReg[1] = value
	}
}

// writeF2 decodes the MR2DA2 command byte's top two bits, selecting one
// of four sub-registers sharing the single 0xF2 address on write.
func (b *Bus) writeF2(value byte) {
	switch (value & 0b1100_0000) >> 6 {
	case 0b00:
		b.board.SetUOR(value)
	case 0b01:
		logrus.Warn("MR2DA2 0xF2 command 0b01 is reserved; ignoring write")
	case 0b10:
		b.board.SetUDR(value)
	case 0b11:
		b.board.SetICR(value)
	}
}

// writeTimerConfig implements 0xFD's dual-mode write: bit 7 set selects
// "reconfigure", loading the two prescale-stage selectors from disjoint
// bit pairs; bit 7 clear loads the high 7 bits of the 14-bit reload value
// (the reference hardware's own 0xFD handler assigns both selectors to
// the same field here, an upstream bug; this keeps div1 and div2
// genuinely independent so selecting between them actually changes which
// prescale stage is loaded).
func (b *Bus) writeTimerConfig(value byte) {
	const reconfigureBit byte = 1 << 7
	if value&reconfigureBit != 0 {
		b.timer.enabled = value&(1<<4) != 0
		switch (value >> 2) & 0b11 {
		case 0b00:
			b.timer.div2 = 1
		case 0b01:
			b.timer.div2 = 10
		case 0b10:
			b.timer.div2 = 100
		case 0b11:
			b.timer.div2 = 1000
		}
		switch value & 0b11 {
		case 0b00:
			b.timer.div1 = 1
		case 0b01:
			b.timer.div1 = 16
		case 0b10:
			b.timer.div1 = 256
		case 0b11:
			b.timer.div1 = 4096
		}
		return
	}
	upper := int(value&0b0111_1111) << 7
	b.timer.div3 = upper + (b.timer.div3 & 0b0111_1111)
}

var reservedWarned [ReservedEnd - ReservedStart + 1]bool

// warnReserved logs once per reserved address the first time it is
// touched; the hardware leaves this range genuinely unexplained (O-2-
// adjacent: an acknowledged gap, not an invented one).
func warnReserved(addr byte) {
	idx := addr - ReservedStart
	if reservedWarned[idx] {
		return
	}
	reservedWarned[idx] = true
	logrus.Warnf("reserved bus address %#x accessed; treating as a no-op", addr)
}

var uartWarned bool

// readUART/writeUART are stubs: the reference hardware's UART channel is
// unimplemented upstream too (O-2) beyond the raw send/recv bytes and
// control/status registers, which are modeled faithfully; the actual
// serial transport is out of scope. A single warning is logged the first
// time either is used.
func (b *Bus) readUART(addr byte) byte {
	warnUARTUnimplemented()
	if addr == UARTStart {
		return b.uartRecv
	}
	return b.usr
}

func (b *Bus) writeUART(addr byte, value byte) {
	warnUARTUnimplemented()
	if addr == UARTStart {
		b.uartSend = value
	} else {
		b.ucr = value
	}
}

func warnUARTUnimplemented() {
	if uartWarned {
		return
	}
	uartWarned = true
	logrus.Warn("UART register accessed; serial transport is not emulated")
}

// InputFC/InputFD/InputFE/InputFF drive the four physical input registers,
// as if a key or switch had been set externally. These are distinct from
// the CPU's own reads at the same addresses, which this simulates.
func (b *Bus) InputFC(value byte) { b.inputReg[0] = value }
func (b *Bus) InputFD(value byte) { b.inputReg[1] = value }
func (b *Bus) InputFE(value byte) { b.inputReg[2] = value }
func (b *Bus) InputFF(value byte) { b.inputReg[3] = value }

// OutputFE/OutputFF return the last value the CPU wrote to each output
// register, for driver-side inspection (the CLI's `verify --fe/--ff`).
func (b *Bus) OutputFE() byte { return b.outputReg[0] }
func (b *Bus) OutputFF() byte { return b.outputReg[1] }

// MICR/MISR returns the raw interrupt control/status byte.
func (b *Bus) MICR() byte { return b.micr }
func (b *Bus) MISR() byte { return b.misr }

// SetMISRKeyFlag sets or clears the key-interrupt-pending bit of MISR,
// called by the machine when the interrupt key is pressed (RETI clears
// the key bits through ClearMISRKeyInterrupt instead).
func (b *Bus) SetMISRKeyFlag(set bool) {
	if set {
		b.misr |= MISRKeyInterruptPending
	} else {
		b.misr &^= MISRKeyInterruptPending
	}
}

// ClearMISRKeyInterrupt clears both the key-interrupt-pending and
// key-interrupt-request-active bits, as RETI does.
func (b *Bus) ClearMISRKeyInterrupt() {
	b.misr &^= MISRKeyInterruptPending | MISRKeyInterruptRequestActive
}

// KeyInterruptEnabled reports whether MICR currently enables the key-edge
// interrupt source.
func (b *Bus) KeyInterruptEnabled() bool {
	return b.micr&MICRKeyEdgeInterruptEnable != 0
}

// FetchMR2DA2Interrupt delegates to the extension board's own interrupt
// selector.
func (b *Bus) FetchMR2DA2Interrupt() bool {
	return b.board.FetchInterrupt()
}

// GetLevelInterrupt/TakeEdgeInterrupt mirror the reference hardware's own
// acknowledged gap (O-2): bus- and UART-level interrupts are declared in
// MICR/MISR but were never wired up upstream. The plumbing exists; these
// unconditionally report "no interrupt", logging a single warning the
// first time either is called.
func (b *Bus) GetLevelInterrupt() bool {
	warnBusInterruptStub()
	return false
}

func (b *Bus) TakeEdgeInterrupt() bool {
	warnBusInterruptStub()
	return false
}

var busInterruptWarned bool

func warnBusInterruptStub() {
	if busInterruptWarned {
		return
	}
	busInterruptWarned = true
	logrus.Warn("bus and UART interrupt sources are not emulated; reporting no interrupt")
}

// ResetCPU clears transient CPU-visible state but preserves RAM, the
// input registers, the extension board and the interrupt timer, matching
// cpu_reset's narrower scope versus master_reset.
func (b *Bus) ResetCPU() {
	b.outputReg = [2]byte{}
	b.micr = 0
	b.ucr = 0
}

// ResetMaster additionally clears the input registers and the interrupt
// timer configuration. RAM is untouched by either reset — only an
// explicit ResetRAM (driven by program load) clears it.
func (b *Bus) ResetMaster() {
	b.ResetCPU()
	b.inputReg = [4]byte{}
	b.timer.reset()
}

// ResetRAM zeroes RAM, independent of cpu/master reset.
func (b *Bus) ResetRAM() {
	b.ram = [RAMEnd - RAMStart + 1]byte{}
}

// RAM exposes the full RAM contents read-only, for test assertions and
// the interactive CLI's memory dump.
func (b *Bus) RAM() [RAMEnd - RAMStart + 1]byte { return b.ram }

// LoadImage zeroes RAM and copies a 256-byte program image's RAM-resident
// portion into it (bytes destined for the reserved/register range beyond
// RAMEnd are silently dropped — a translated program never emits there).
func (b *Bus) LoadImage(image [256]byte) {
	b.ResetRAM()
	for i := RAMStart; i <= RAMEnd; i++ {
		b.ram[i-RAMStart] = image[i]
	}
}
