package machine

import (
	"testing"

	"github.com/MalteT/2a-emulator-sub000/register"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func TestStopOpcodeHaltsWithStopped(t *testing.T) {
	var image [256]byte
	image[0] = 0x01 // STOP
	m := NewWithProgram(image)
	m.Run(0)
	assert(t, m.Stopped(), "expected STOP to set Stopped")
	assert(t, !m.ErrorStopped(), "expected STOP to not be an error halt")
}

func TestErrorOpcodeHaltsWithErrorStopped(t *testing.T) {
	var image [256]byte
	image[0] = 0x00
	m := NewWithProgram(image)
	m.Run(0)
	assert(t, m.ErrorStopped(), "expected the all-zero opcode to error-halt")
}

func TestCPUResetPreservesRAMButClearsRegisters(t *testing.T) {
	var image [256]byte
	image[0] = 0x01
	m := NewWithProgram(image)
	m.Run(0)
	m.Registers().Set(register.R0, 0x42)
	m.CPUReset()
	assert(t, m.Registers().Get(register.R0) == 0, "expected cpu_reset to clear registers")
	assert(t, !m.Halted(), "expected cpu_reset to clear the halt state")
	assert(t, m.Raw().Bus.RAM()[0] == 0x01, "expected cpu_reset to leave RAM untouched")
}

func TestMasterResetPreservesRAM(t *testing.T) {
	var image [256]byte
	image[10] = 0xAB
	m := NewWithProgram(image)
	m.MasterReset()
	ram := m.Raw().Bus.RAM()
	assert(t, ram[10] == 0xAB, "expected master_reset to leave RAM untouched; only loading a program clears it")
}

func TestLoadClearsRAM(t *testing.T) {
	var image [256]byte
	image[10] = 0xAB
	m := NewWithProgram(image)
	m.Load([256]byte{})
	ram := m.Raw().Bus.RAM()
	assert(t, ram[10] == 0, "expected Load to clear stale RAM bytes")
}

func TestRunStopsAtMaxSteps(t *testing.T) {
	var image [256]byte // all zero -> error-stop opcode at PC 0
	m := NewWithProgram(image)
	n := m.Run(3)
	assert(t, n <= 3, "expected Run to respect maxSteps, did %d steps", n)
}

func TestTriggerKeyInterruptSetsMISRFlag(t *testing.T) {
	m := NewWithProgram([256]byte{})
	m.TriggerKeyInterrupt()
	assert(t, m.raw.Bus.MISR() != 0, "expected MISR key flag set after TriggerKeyInterrupt")
}
