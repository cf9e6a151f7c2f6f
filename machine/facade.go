package machine

import (
	"github.com/MalteT/2a-emulator-sub000/register"
)

// Machine is the facade most callers drive: construction from a
// MachineConfig, key-triggered control and the two reset flavors, all
// sitting on top of a RawMachine's clock pipeline.
type Machine struct {
	raw      *RawMachine
	stepMode StepMode
}

// New creates a Machine from a config, loading its program (if any) and
// wiring every configured board/register input before the first Tick.
func New(cfg *MachineConfig) *Machine {
	raw := NewRaw()
	m := &Machine{raw: raw, stepMode: cfg.stepMode}
	if cfg.hasProgram {
		raw.Bus.LoadImage(cfg.byteCode.Image)
		raw.Stacksize = cfg.stacksize
		raw.Programsize = cfg.programsize
	}
	raw.Bus.InputFC(cfg.inputFC)
	raw.Bus.InputFD(cfg.inputFD)
	raw.Bus.InputFE(cfg.inputFE)
	raw.Bus.InputFF(cfg.inputFF)
	raw.Board.SetDigitalInput1(cfg.digitalInput1)
	raw.Board.SetTemp(cfg.temp)
	raw.Board.SetJumper1(cfg.jumper1)
	raw.Board.SetJumper2(cfg.jumper2)
	raw.Board.SetAnalogInput1(cfg.analogInput1)
	raw.Board.SetAnalogInput2(cfg.analogInput2)
	raw.Board.SetUniversalInputOutput1(cfg.uio1)
	raw.Board.SetUniversalInputOutput2(cfg.uio2)
	raw.Board.SetUniversalInputOutput3(cfg.uio3)
	return m
}

// NewWithProgram is a convenience constructor for the common case of
// just wanting a machine running a given image with every other input
// at its default.
func NewWithProgram(image [256]byte) *Machine {
	return New(NewMachineConfig().WithProgram(image))
}

// Raw exposes the underlying RawMachine for callers that need
// microword-level access (the interactive CLI's single-step view).
func (m *Machine) Raw() *RawMachine { return m.raw }

// Registers exposes the register file for read-only inspection.
func (m *Machine) Registers() *register.File { return m.raw.Registers }

// Stopped/ErrorStopped/Halted mirror RawMachine's halt-state queries.
func (m *Machine) Stopped() bool      { return m.raw.Stopped() }
func (m *Machine) ErrorStopped() bool { return m.raw.ErrorStopped() }
func (m *Machine) Halted() bool       { return m.raw.Halted() }

// OutputFE/OutputFF return the last bytes written to the two physical
// output registers, the values the CLI's `verify --fe/--ff` checks.
func (m *Machine) OutputFE() byte { return m.raw.Bus.OutputFE() }
func (m *Machine) OutputFF() byte { return m.raw.Bus.OutputFF() }

// Load replaces the program image in RAM without otherwise disturbing
// machine state.
func (m *Machine) Load(image [256]byte) {
	m.raw.Bus.LoadImage(image)
}

// Step advances the machine by one unit of the configured StepMode:
// a single microword for StepReal, or a full instruction (walking
// microwords until the pipeline reaches a MAC3-tagged word) for
// StepAssembly.
func (m *Machine) Step() {
	switch m.stepMode {
	case StepAssembly:
		for {
			m.raw.Tick()
			if m.raw.InstructionComplete() || m.raw.Halted() {
				break
			}
		}
	default:
		m.raw.Tick()
	}
}

// Run steps the machine until it halts or maxSteps is reached (0 means
// unbounded), returning the number of Step calls actually made.
func (m *Machine) Run(maxSteps int) int {
	n := 0
	for !m.Halted() {
		if maxSteps > 0 && n >= maxSteps {
			break
		}
		m.Step()
		n++
	}
	return n
}

// TriggerKeyClock/TriggerKeyContinue mirror the two front-panel buttons:
// Clock performs exactly one Step in the configured StepMode, and
// Continue runs until halted.
func (m *Machine) TriggerKeyClock() {
	m.Step()
}

func (m *Machine) TriggerKeyContinue() {
	m.Run(0)
}

// TriggerKeyInterrupt raises the front-panel interrupt key, latching a
// pending edge interrupt and marking MISR's key-interrupt flag.
func (m *Machine) TriggerKeyInterrupt() {
	m.raw.TriggerEdgeInterrupt()
	m.raw.Bus.SetMISRKeyFlag(true)
}

// CPUReset performs cpu_reset: clears registers and bus-visible
// transient state but leaves RAM and the input registers untouched.
// Stacksize/Programsize are untouched, matching spec.md's Lifecycles
// note that these are never cleared by either reset.
func (m *Machine) CPUReset() {
	m.raw.Registers.Reset()
	m.raw.Bus.ResetCPU()
	m.raw.address = 0
	m.raw.stopped = false
	m.raw.errorStopped = false
}

// MasterReset performs master_reset: everything cpu_reset does, plus
// clearing the input registers, the interrupt timer and the extension
// board's output/DAICR/UIO-direction state (but not DASR/DAISR; see
// board.MasterReset). RAM is untouched — only loading a new program
// clears it.
func (m *Machine) MasterReset() {
	m.raw.Registers.Reset()
	m.raw.Bus.ResetMaster()
	m.raw.Board.MasterReset()
	m.raw.address = 0
	m.raw.stopped = false
	m.raw.errorStopped = false
}
