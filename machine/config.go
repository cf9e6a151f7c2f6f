package machine

import "github.com/MalteT/2a-emulator-sub000/asm"

// StepMode selects what one call to Machine.Step actually advances: a
// single microword (Real) or an entire instruction boundary-to-boundary
// (Assembly).
type StepMode int

const (
	StepReal StepMode = iota
	StepAssembly
)

// MachineConfig collects every value Machine needs at construction time,
// built incrementally via its With* methods, mirroring the reference
// implementation's builder-style InitialMachineConfiguration. The setter
// surface matches the downstream API verbatim: the four physical input
// registers, digital input 1, temperature, the two jumpers, the two
// analog inputs, the three UIO pins and the step mode.
type MachineConfig struct {
	byteCode    asm.ByteCode
	hasProgram  bool
	stacksize   asm.Stacksize
	programsize asm.Programsize

	inputFC, inputFD, inputFE, inputFF byte
	digitalInput1                      byte
	temp                               float32
	jumper1, jumper2                   bool
	analogInput1, analogInput2         float32
	uio1, uio2, uio3                   bool
	stepMode                           StepMode
}

// NewMachineConfig returns a config with every field at its documented
// power-on default.
func NewMachineConfig() *MachineConfig {
	return &MachineConfig{
		stacksize:   asm.DefaultStacksize,
		programsize: asm.ProgramsizeNotSetValue,
		stepMode:    StepReal,
	}
}

// WithProgram loads a raw 256-byte image with the default stacksize and
// no programsize supervision — the minimal path for callers that did not
// go through the translator.
func (c *MachineConfig) WithProgram(image [256]byte) *MachineConfig {
	return c.WithByteCode(asm.ByteCode{
		Image:       image,
		Stacksize:   asm.DefaultStacksize,
		Programsize: asm.ProgramsizeNotSetValue,
	})
}

// WithByteCode loads a full translator result, carrying its resolved
// stacksize and programsize through to stack/PC supervision.
func (c *MachineConfig) WithByteCode(bc asm.ByteCode) *MachineConfig {
	c.byteCode = bc
	c.hasProgram = true
	c.stacksize = bc.Stacksize
	c.programsize = bc.Programsize
	return c
}

// WithInputRegisters sets the four physical input registers (FC-FF).
func (c *MachineConfig) WithInputRegisters(fc, fd, fe, ff byte) *MachineConfig {
	c.inputFC, c.inputFD, c.inputFE, c.inputFF = fc, fd, fe, ff
	return c
}

// WithDigitalInput1 sets the board's single digital input pin.
func (c *MachineConfig) WithDigitalInput1(v byte) *MachineConfig {
	c.digitalInput1 = v
	return c
}

// WithTemp sets the temperature sensor input (volts, clamped to [0,5] by
// the board itself).
func (c *MachineConfig) WithTemp(v float32) *MachineConfig {
	c.temp = v
	return c
}

// WithJumpers drives the two board jumpers.
func (c *MachineConfig) WithJumpers(j1, j2 bool) *MachineConfig {
	c.jumper1, c.jumper2 = j1, j2
	return c
}

// WithAnalogInputs sets the two analog input pins (volts, clamped to
// [0,5] by the board itself).
func (c *MachineConfig) WithAnalogInputs(a1, a2 float32) *MachineConfig {
	c.analogInput1, c.analogInput2 = a1, a2
	return c
}

// WithUIO drives the three user I/O pins.
func (c *MachineConfig) WithUIO(p1, p2, p3 bool) *MachineConfig {
	c.uio1, c.uio2, c.uio3 = p1, p2, p3
	return c
}

// WithStepMode selects Real or Assembly stepping.
func (c *MachineConfig) WithStepMode(mode StepMode) *MachineConfig {
	c.stepMode = mode
	return c
}
