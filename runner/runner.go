// Package runner implements the key=value test-expectation files used
// by the test CLI subcommand: run a program to completion (or a
// step budget) and assert on its final register/memory/output state.
package runner

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/MalteT/2a-emulator-sub000/machine"
	"github.com/MalteT/2a-emulator-sub000/register"
)

// Expectation is one assertion a test file makes about the machine's
// final state.
type Expectation struct {
	Register *register.Number
	Memory   *byte
	OutputFE bool
	OutputFF bool
	Stopped  bool
	Error    bool
	Want     byte
}

// RunExpectations bundles a step budget with the expectations a test
// file asserts once that budget (or a halt) is reached.
type RunExpectations struct {
	MaxSteps     int
	Expectations []Expectation
}

// RunExpectationsBuilder builds a RunExpectations incrementally,
// mirroring MachineConfig's With* builder style.
type RunExpectationsBuilder struct {
	exp RunExpectations
}

func NewRunExpectationsBuilder() *RunExpectationsBuilder {
	return &RunExpectationsBuilder{exp: RunExpectations{MaxSteps: 10_000}}
}

func (b *RunExpectationsBuilder) WithMaxSteps(n int) *RunExpectationsBuilder {
	b.exp.MaxSteps = n
	return b
}

func (b *RunExpectationsBuilder) ExpectRegister(n register.Number, want byte) *RunExpectationsBuilder {
	r := n
	b.exp.Expectations = append(b.exp.Expectations, Expectation{Register: &r, Want: want})
	return b
}

func (b *RunExpectationsBuilder) ExpectMemory(addr byte, want byte) *RunExpectationsBuilder {
	a := addr
	b.exp.Expectations = append(b.exp.Expectations, Expectation{Memory: &a, Want: want})
	return b
}

func (b *RunExpectationsBuilder) ExpectOutputFE(want byte) *RunExpectationsBuilder {
	b.exp.Expectations = append(b.exp.Expectations, Expectation{OutputFE: true, Want: want})
	return b
}

func (b *RunExpectationsBuilder) ExpectOutputFF(want byte) *RunExpectationsBuilder {
	b.exp.Expectations = append(b.exp.Expectations, Expectation{OutputFF: true, Want: want})
	return b
}

func (b *RunExpectationsBuilder) ExpectStopped() *RunExpectationsBuilder {
	b.exp.Expectations = append(b.exp.Expectations, Expectation{Stopped: true})
	return b
}

func (b *RunExpectationsBuilder) ExpectError() *RunExpectationsBuilder {
	b.exp.Expectations = append(b.exp.Expectations, Expectation{Error: true})
	return b
}

func (b *RunExpectationsBuilder) Build() RunExpectations { return b.exp }

// Failure describes one expectation that did not hold.
type Failure struct {
	Expectation Expectation
	Got         byte
	GotBool     bool
}

func (f Failure) String() string {
	switch {
	case f.Expectation.Register != nil:
		return fmt.Sprintf("register R%d: expected %#x, got %#x", *f.Expectation.Register, f.Expectation.Want, f.Got)
	case f.Expectation.Memory != nil:
		return fmt.Sprintf("memory[%#x]: expected %#x, got %#x", *f.Expectation.Memory, f.Expectation.Want, f.Got)
	case f.Expectation.OutputFE:
		return fmt.Sprintf("output register FE: expected %#x, got %#x", f.Expectation.Want, f.Got)
	case f.Expectation.OutputFF:
		return fmt.Sprintf("output register FF: expected %#x, got %#x", f.Expectation.Want, f.Got)
	case f.Expectation.Stopped:
		return fmt.Sprintf("expected Stopped, got Stopped=%v", f.GotBool)
	case f.Expectation.Error:
		return fmt.Sprintf("expected ErrorStopped, got ErrorStopped=%v", f.GotBool)
	default:
		return "unknown expectation"
	}
}

// Run executes m against exp's step budget and returns every
// expectation that did not hold once the machine halted or the budget
// was exhausted.
func Run(m *machine.Machine, exp RunExpectations) []Failure {
	m.Run(exp.MaxSteps)

	var failures []Failure
	for _, e := range exp.Expectations {
		switch {
		case e.Register != nil:
			got := m.Registers().Get(*e.Register)
			if got != e.Want {
				failures = append(failures, Failure{Expectation: e, Got: got})
			}
		case e.Memory != nil:
			ram := m.Raw().Bus.RAM()
			got := ram[*e.Memory]
			if got != e.Want {
				failures = append(failures, Failure{Expectation: e, Got: got})
			}
		case e.OutputFE:
			got := m.OutputFE()
			if got != e.Want {
				failures = append(failures, Failure{Expectation: e, Got: got})
			}
		case e.OutputFF:
			got := m.OutputFF()
			if got != e.Want {
				failures = append(failures, Failure{Expectation: e, Got: got})
			}
		case e.Stopped:
			if !m.Stopped() {
				failures = append(failures, Failure{Expectation: e, GotBool: m.Stopped()})
			}
		case e.Error:
			if !m.ErrorStopped() {
				failures = append(failures, Failure{Expectation: e, GotBool: m.ErrorStopped()})
			}
		}
	}
	return failures
}

// ParseFile reads a test file's key=value lines. Recognized keys:
// max_steps, register.R0..R7, memory.<addr>, output_fe, output_ff,
// stopped, error.
// No third-party config-file library is used here: the format is a
// flat, line-oriented key=value list with no nesting, arrays or
// multiple document types, which bufio.Scanner plus strconv covers
// directly without pulling in a general-purpose parser for a feature
// set this format never exercises.
func ParseFile(r *bufio.Scanner) (RunExpectations, error) {
	b := NewRunExpectationsBuilder()
	lineNo := 0
	for r.Scan() {
		lineNo++
		line := strings.TrimSpace(r.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return RunExpectations{}, fmt.Errorf("line %d: expected key=value, got %q", lineNo, line)
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)

		switch {
		case key == "max_steps":
			n, err := strconv.Atoi(value)
			if err != nil {
				return RunExpectations{}, fmt.Errorf("line %d: %w", lineNo, err)
			}
			b.WithMaxSteps(n)
		case key == "output_fe":
			want, err := parseU8(value)
			if err != nil {
				return RunExpectations{}, fmt.Errorf("line %d: %w", lineNo, err)
			}
			b.ExpectOutputFE(want)
		case key == "output_ff":
			want, err := parseU8(value)
			if err != nil {
				return RunExpectations{}, fmt.Errorf("line %d: %w", lineNo, err)
			}
			b.ExpectOutputFF(want)
		case key == "stopped":
			b.ExpectStopped()
		case key == "error":
			b.ExpectError()
		case strings.HasPrefix(key, "register.R"):
			n, err := strconv.Atoi(strings.TrimPrefix(key, "register.R"))
			if err != nil || n < 0 || n > 7 {
				return RunExpectations{}, fmt.Errorf("line %d: invalid register key %q", lineNo, key)
			}
			want, err := parseU8(value)
			if err != nil {
				return RunExpectations{}, fmt.Errorf("line %d: %w", lineNo, err)
			}
			b.ExpectRegister(register.Number(n), want)
		case strings.HasPrefix(key, "memory."):
			addr, err := parseU8(strings.TrimPrefix(key, "memory."))
			if err != nil {
				return RunExpectations{}, fmt.Errorf("line %d: %w", lineNo, err)
			}
			want, err := parseU8(value)
			if err != nil {
				return RunExpectations{}, fmt.Errorf("line %d: %w", lineNo, err)
			}
			b.ExpectMemory(addr, want)
		default:
			return RunExpectations{}, fmt.Errorf("line %d: unknown key %q", lineNo, key)
		}
	}
	if err := r.Err(); err != nil {
		return RunExpectations{}, err
	}
	return b.Build(), nil
}

// parseU8 accepts decimal, 0x-hex and 0b-binary byte literals, the same
// auto-radix convention the CLI's flag parser uses.
func parseU8(s string) (byte, error) {
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid byte literal %q: %w", s, err)
	}
	return byte(n), nil
}
