// Package board implements the MR2DA2 extension board: two digital/analog
// outputs each feeding a comparator, a tachometer-driven fan derived from
// output 1, two jumpers and three user I/O pins, and the single-source
// interrupt selector that arbitrates between all of them.
package board

import "github.com/sirupsen/logrus"

// DASR bit layout, per the component's status register table.
const (
	DASRJumper2      byte = 1 << 7
	DASRJumper1      byte = 1 << 6
	DASRFan          byte = 1 << 5
	DASRComparator2  byte = 1 << 4
	DASRComparator1  byte = 1 << 3
	DASRUIO3         byte = 1 << 2
	DASRUIO2         byte = 1 << 1
	DASRUIO1         byte = 1 << 0
)

// DAISR bit layout.
const (
	DAISRInterruptPending   byte = 1 << 3
	DAISRInterruptRequested byte = 1 << 2
	DAISRInterruptFF        byte = 1 << 1
	DAISRSource             byte = 1 << 0
)

// DAICR bit layout: a single 3-bit source selector plus IE/EDGE/FALLING.
const (
	DAICRInterruptEnable byte = 1 << 5
	DAICREdge            byte = 1 << 4
	DAICRFalling         byte = 1 << 3
	daicrSourceMask      byte = 0b0000_0111
)

// InterruptSource names the one board signal DAICR currently arbitrates
// between. Only one source can be selected at a time — this is a mux, not
// an enable mask.
type InterruptSource byte

const (
	SourceDisabled InterruptSource = iota
	SourceUIO1
	SourceUIO2
	SourceUIO3
	SourceComparator1
	SourceComparator2
	SourceJumper1
	SourceTachoSensor
)

// InterruptSourceOf unpacks DAICR's 3-bit source selector.
func InterruptSourceOf(daicr byte) InterruptSource {
	return InterruptSource(daicr & daicrSourceMask)
}

// WithInterruptSource packs a source selector into a DAICR byte, preserving
// the IE/EDGE/FALLING bits already set.
func WithInterruptSource(daicr byte, s InterruptSource) byte {
	return (daicr &^ daicrSourceMask) | byte(s)
}

// Board is the MR2DA2 extension board's full runtime state.
type Board struct {
	digitalInput1               byte
	digitalOutput1              byte
	digitalOutput2              byte
	temp                        float32
	dasr                        byte
	daisr                       byte
	daicr                       byte
	analogInputs                [2]float32
	analogOutputs               [2]float32
	fanRPM                      int
	uioDir                      [3]bool // true = output, false = input
}

// New creates a Board with all state zeroed, matching the hardware's
// power-on condition.
func New() *Board {
	return &Board{}
}

func clamp5V(label string, v float32) float32 {
	if v < 0 || v > 5 {
		logrus.Warnf("%s out of range [0,5]: %v, clamping", label, v)
		if v < 0 {
			return 0
		}
		return 5
	}
	return v
}

// SetDigitalInput1 drives the board's single digital input pin.
func (b *Board) SetDigitalInput1(v byte) { b.digitalInput1 = v }

// SetTemp drives the temperature sensor input, clamped to [0,5] volts.
func (b *Board) SetTemp(value float32) {
	b.temp = clamp5V("temperature", value)
	b.updateComparator2()
}

// detectSourceEdge implements the shared falling/rising edge check every
// external-pin setter (jumpers, UIO pins, comparators) runs against
// whichever source DAICR currently selects: a falling edge is armed when
// DAICR.FALLING is set, a rising edge when it is clear.
func (b *Board) detectSourceEdge(source InterruptSource, wasSet, isSet bool) {
	if InterruptSourceOf(b.daicr) != source {
		return
	}
	falling := b.daicr&DAICRFalling != 0
	edge := (wasSet && !isSet && falling) || (!wasSet && isSet && !falling)
	if edge {
		b.daisr |= DAISRSource
		b.setIntFF()
	}
}

func (b *Board) setIntFF() { b.daisr |= DAISRInterruptFF }

// SetJumper1 drives jumper 1. It participates in the interrupt selector.
func (b *Board) SetJumper1(plugged bool) {
	b.detectSourceEdge(SourceJumper1, b.dasr&DASRJumper1 != 0, plugged)
	b.setDASRBit(DASRJumper1, plugged)
}

// SetJumper2 drives jumper 2. Unlike jumper 1, it is never wired to the
// interrupt selector — the hardware simply has no Jumper2 source.
func (b *Board) SetJumper2(plugged bool) {
	b.setDASRBit(DASRJumper2, plugged)
}

func (b *Board) setDASRBit(bit byte, set bool) {
	if set {
		b.dasr |= bit
	} else {
		b.dasr &^= bit
	}
}

// SetAnalogInput1/2 drive the two analog input pins, clamped to [0,5]
// volts, and re-evaluate the comparator each feeds.
func (b *Board) SetAnalogInput1(value float32) {
	b.analogInputs[0] = clamp5V("analog input 1", value)
	b.updateComparator1()
}

func (b *Board) SetAnalogInput2(value float32) {
	b.analogInputs[1] = clamp5V("analog input 2", value)
	b.updateComparator2()
}

// SetUniversalInputOutput1/2/3 drive a UIO pin from the outside world
// (a physical input). A pin currently configured as an output ignores
// external writes entirely.
func (b *Board) SetUniversalInputOutput1(value bool) { b.setUIOExternal(0, SourceUIO1, DASRUIO1, value) }
func (b *Board) SetUniversalInputOutput2(value bool) { b.setUIOExternal(1, SourceUIO2, DASRUIO2, value) }
func (b *Board) SetUniversalInputOutput3(value bool) { b.setUIOExternal(2, SourceUIO3, DASRUIO3, value) }

func (b *Board) setUIOExternal(pin int, source InterruptSource, dasrBit byte, value bool) {
	if b.uioDir[pin] {
		return
	}
	b.detectSourceEdge(source, b.dasr&dasrBit != 0, value)
	b.setDASRBit(dasrBit, value)
}

// SetDigitalOutput1 loads DAC1. Per the reference hardware, this also
// derives the fan's RPM reading and unconditionally sets DASR's FAN bit
// (the fan bit is not cleared by anything else in this model — it only
// ever turns on).
func (b *Board) SetDigitalOutput1(value byte) {
	b.digitalOutput1 = value
	analog := float32(value) / 100.0
	b.analogOutputs[0] = analog
	b.updateComparator1()
	b.fanRPM = int(4200.0 * analog / 2.55)
	b.dasr |= DASRFan
}

// SetDigitalOutput2 loads DAC2.
func (b *Board) SetDigitalOutput2(value byte) {
	b.digitalOutput2 = value
	b.analogOutputs[1] = float32(value) / 100.0
	b.updateComparator2()
}

// SetUOR is the 0xF2 "UIO output register" write path: it sets the three
// UIO DASR bits directly from the byte's low three bits, bypassing the
// edge-interrupt-detection path SetUniversalInputOutput1/2/3 runs —
// this is the CPU writing its own outputs, not an external pin changing.
func (b *Board) SetUOR(value byte) {
	b.setDASRBit(DASRUIO1, value&0b001 != 0)
	b.setDASRBit(DASRUIO2, value&0b010 != 0)
	b.setDASRBit(DASRUIO3, value&0b100 != 0)
}

// SetUDR is the 0xF2 "UIO direction register" write path: bit n selects
// whether UIO pin n is an output (1) or input (0).
func (b *Board) SetUDR(value byte) {
	b.uioDir[0] = value&0b001 != 0
	b.uioDir[1] = value&0b010 != 0
	b.uioDir[2] = value&0b100 != 0
}

// SetICR is the 0xF2 "interrupt control register" write path: it clears
// the pending/requested/FF status bits and loads a fresh DAICR.
func (b *Board) SetICR(value byte) {
	b.daisr &^= DAISRInterruptPending | DAISRInterruptRequested | DAISRInterruptFF
	b.daicr = value
}

// DeleteIntFF clears the latched interrupt flip-flop, the 0xF3 write path.
func (b *Board) DeleteIntFF() {
	b.daisr &^= DAISRInterruptFF
}

// GetFanPeriod converts the current RPM reading into the byte period the
// fan-period register (0xF2 read) reports. A stopped fan (rpm == 0) reads
// as the longest representable period rather than dividing by zero.
func (b *Board) GetFanPeriod() byte {
	if b.fanRPM <= 0 {
		return 255
	}
	period := 255.0 - (255.0/float64(b.fanRPM))*4200.0
	if period < 0 {
		return 0
	}
	if period > 255 {
		return 255
	}
	return byte(period)
}

// updateComparator1 re-evaluates DAC1's comparator: analog_input1 > dac1.
func (b *Board) updateComparator1() {
	analog := float32(b.digitalOutput1) / 100.0
	newValue := b.analogInputs[0] > analog
	b.detectSourceEdge(SourceComparator1, b.dasr&DASRComparator1 != 0, newValue)
	b.setDASRBit(DASRComparator1, newValue)
}

// updateComparator2 re-evaluates DAC2's comparator against the greater of
// the temperature sensor and analog input 2.
func (b *Board) updateComparator2() {
	analog := float32(b.digitalOutput2) / 100.0
	compIn := b.temp
	if b.analogInputs[1] > compIn {
		compIn = b.analogInputs[1]
	}
	newValue := compIn > analog
	b.detectSourceEdge(SourceComparator2, b.dasr&DASRComparator2 != 0, newValue)
	b.setDASRBit(DASRComparator2, newValue)
}

// FetchInterrupt reports whether the currently selected source has a
// pending interrupt, consuming it if DAICR is in edge mode.
func (b *Board) FetchInterrupt() bool {
	if b.daicr&DAICRInterruptEnable == 0 {
		return false
	}
	if InterruptSourceOf(b.daicr) == SourceTachoSensor && b.fanRPM > 0 {
		b.setIntFF()
		b.daisr |= DAISRSource
	}
	if b.daicr&DAICREdge != 0 {
		if b.daisr&DAISRSource != 0 {
			b.daisr &^= DAISRSource
			return true
		}
		return false
	}
	return b.daisr&DAISRInterruptFF != 0
}

// DASR/DAISR/DAICR expose the raw register bytes, for the bus's 0xF1/0xF3
// reads and test assertions.
func (b *Board) DASR() byte  { return b.dasr }
func (b *Board) DAISR() byte { return b.daisr }
func (b *Board) DAICR() byte { return b.daicr }

// DigitalInput1/DigitalOutput1/DigitalOutput2/Temp/AnalogInputs/
// AnalogOutputs/FanRPM/UIODir expose read-only views for tests and the
// interactive CLI's status display.
func (b *Board) DigitalInput1() byte        { return b.digitalInput1 }
func (b *Board) DigitalOutput1() byte       { return b.digitalOutput1 }
func (b *Board) DigitalOutput2() byte       { return b.digitalOutput2 }
func (b *Board) Temp() float32              { return b.temp }
func (b *Board) AnalogInputs() [2]float32   { return b.analogInputs }
func (b *Board) AnalogOutputs() [2]float32  { return b.analogOutputs }
func (b *Board) FanRPM() int                { return b.fanRPM }
func (b *Board) UIODir() [3]bool            { return b.uioDir }

// MasterReset clears outputs, the interrupt control register, the fan and
// UIO direction — but deliberately leaves DASR/DAISR alone, matching the
// reference hardware's master_reset, which never touches the status or
// interrupt-status registers.
func (b *Board) MasterReset() {
	b.digitalOutput1, b.digitalOutput2 = 0, 0
	b.analogOutputs = [2]float32{}
	b.temp = 0
	b.daicr = 0
	b.fanRPM = 0
	b.uioDir = [3]bool{}
}
