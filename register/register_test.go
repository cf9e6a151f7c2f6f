package register

import "testing"

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func TestWriteToRegisterPersists(t *testing.T) {
	for n := R0; n <= R7; n++ {
		f := New()
		f.Set(n, 200)
		assert(t, f.Get(n) == 200, "register %d did not persist write", n)
	}
}

func TestResetClearsEverything(t *testing.T) {
	f := New()
	f.Set(R1, 42)
	f.SetCarryFlag(true)
	f.Reset()
	assert(t, f.Content() == [8]byte{}, "reset did not clear register file: %v", f.Content())
}

func TestSingleFlagSettersPreserveUpperBits(t *testing.T) {
	f := New()
	f.Set(R4, 0xF0) // upper nibble set, all flags clear
	f.SetCarryFlag(true)
	assert(t, f.Get(R4) == 0xF1, "expected upper nibble preserved, got %08b", f.Get(R4))

	f.SetCarryFlag(false)
	assert(t, f.Get(R4) == 0xF0, "clearing CF touched other bits: %08b", f.Get(R4))
}

func TestSetFlagsUpdatesAllFourBitsAtOnce(t *testing.T) {
	f := New()
	f.SetInterruptEnabledFlag(true)
	f.SetFlags(FlagNegative | FlagCarry)

	assert(t, f.NegativeFlag(), "expected NF set")
	assert(t, f.CarryFlag(), "expected CF set")
	assert(t, !f.InterruptEnabledFlag(), "expected IEF cleared by SetFlags")
}

func TestWritingR4AsByteUpdatesAllFlags(t *testing.T) {
	f := New()
	f.Set(R4, 0b1111)
	assert(t, f.CarryFlag() && f.ZeroFlag() && f.NegativeFlag() && f.InterruptEnabledFlag(),
		"expected all flags set after raw byte write, got %08b", f.Get(R4))
}
