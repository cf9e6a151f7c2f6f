// Command mr2a is the command-line driver for the Minirechner 2a
// emulator: run a translated program, check it against a test file, or
// drive it interactively one key-press at a time.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/MalteT/2a-emulator-sub000/asm"
	"github.com/MalteT/2a-emulator-sub000/machine"
	"github.com/MalteT/2a-emulator-sub000/runner"
)

func main() {
	app := &cli.App{
		Name:  "mr2a",
		Usage: "assemble and run programs for the Minirechner 2a",
		Commands: []*cli.Command{
			runCommand(),
			testCommand(),
			verifyCommand(),
			interactiveCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

// machineFlags are the InitialMachineConfiguration knobs shared by every
// subcommand that constructs a Machine, matching the reference CLI's own
// flag names one for one.
var machineFlags = []cli.Flag{
	&cli.StringFlag{Name: "di1", Value: "0", Usage: "digital input P-DI1 (auto radix)"},
	&cli.Float64Flag{Name: "temp", Value: 0, Usage: "temperature sensor voltage, 0..5"},
	&cli.BoolFlag{Name: "j1", Usage: "plug jumper J1"},
	&cli.BoolFlag{Name: "j2", Usage: "plug jumper J2"},
	&cli.Float64Flag{Name: "ai1", Value: 0, Usage: "analog input P-AI1 voltage, 0..5"},
	&cli.Float64Flag{Name: "ai2", Value: 0, Usage: "analog input P-AI2 voltage, 0..5"},
	&cli.BoolFlag{Name: "uio1", Usage: "drive universal I/O port UIO1"},
	&cli.BoolFlag{Name: "uio2", Usage: "drive universal I/O port UIO2"},
	&cli.BoolFlag{Name: "uio3", Usage: "drive universal I/O port UIO3"},
	&cli.StringFlag{Name: "fc", Value: "0", Usage: "input register FC (auto radix)"},
	&cli.StringFlag{Name: "fd", Value: "0", Usage: "input register FD (auto radix)"},
	&cli.StringFlag{Name: "fe", Value: "0", Usage: "input register FE (auto radix)"},
	&cli.StringFlag{Name: "ff", Value: "0", Usage: "input register FF (auto radix)"},
}

// parseU8AutoRadix accepts decimal, 0x-hex and 0b-binary literals, as
// the reference CLI's own flag parser does.
func parseU8AutoRadix(s string) (byte, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid byte literal %q: %w", s, err)
	}
	return byte(n), nil
}

func configFromFlags(c *cli.Context) (*machine.MachineConfig, error) {
	cfg := machine.NewMachineConfig()

	di1, err := parseU8AutoRadix(c.String("di1"))
	if err != nil {
		return nil, err
	}
	fc, err := parseU8AutoRadix(c.String("fc"))
	if err != nil {
		return nil, err
	}
	fd, err := parseU8AutoRadix(c.String("fd"))
	if err != nil {
		return nil, err
	}
	fe, err := parseU8AutoRadix(c.String("fe"))
	if err != nil {
		return nil, err
	}
	ff, err := parseU8AutoRadix(c.String("ff"))
	if err != nil {
		return nil, err
	}

	cfg.WithDigitalInput1(di1)
	cfg.WithTemp(float32(c.Float64("temp")))
	cfg.WithJumpers(c.Bool("j1"), c.Bool("j2"))
	cfg.WithAnalogInputs(float32(c.Float64("ai1")), float32(c.Float64("ai2")))
	cfg.WithUIO(c.Bool("uio1"), c.Bool("uio2"), c.Bool("uio3"))
	cfg.WithInputRegisters(fc, fd, fe, ff)
	return cfg, nil
}

// loadProgram reads and translates a program file, returning the full
// ByteCode so callers can carry its resolved stacksize/programsize
// through to the machine.
func loadProgram(path string) (asm.ByteCode, error) {
	f, err := os.Open(path)
	if err != nil {
		return asm.ByteCode{}, err
	}
	defer f.Close()

	program, err := parseAsmFile(f)
	if err != nil {
		return asm.ByteCode{}, err
	}
	return asm.Translate(program)
}

// parseAsmFile is a placeholder for the upstream assembly parser, which
// sits outside this module's scope (the translator consumes an already
// parsed asm.Asm). For files this CLI loads directly, every line is
// assumed to already have been reduced to a raw byte stream, one value
// per line, auto-radix — the minimal surface needed to load a compiled
// image without depending on a full source-level parser implementation.
func parseAsmFile(f *os.File) (asm.Asm, error) {
	scanner := bufio.NewScanner(f)
	var lines []asm.Line
	for scanner.Scan() {
		text := scanner.Text()
		if text == "" {
			lines = append(lines, asm.Line{Kind: asm.LineEmpty})
			continue
		}
		b, err := parseU8AutoRadix(text)
		if err != nil {
			return asm.Asm{}, err
		}
		lines = append(lines, asm.Line{
			Kind:        asm.LineInstruction,
			Instruction: asm.Instruction{Op: asm.AsmByte, Constant: asm.ByteConstant(b)},
		})
	}
	if err := scanner.Err(); err != nil {
		return asm.Asm{}, err
	}
	return asm.Asm{Lines: lines}, nil
}

// runCommand implements `run PROGRAM CYCLES [verify [--state ...] [--fe
// BYTE] [--ff BYTE]]`: a mandatory program and clock-cycle budget,
// followed by an optional trailing post-run assertion.
func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "run a program for a bounded number of clock cycles",
		ArgsUsage: "PROGRAM CYCLES [verify]",
		Flags: append(append([]cli.Flag{}, machineFlags...),
			&cli.StringFlag{Name: "state", Usage: "with verify: assert final state is stopped|error|running"},
			&cli.StringFlag{Name: "fe", Usage: "with verify: assert output register FE equals BYTE"},
			&cli.StringFlag{Name: "ff", Usage: "with verify: assert output register FF equals BYTE"},
		),
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 2 {
				return fmt.Errorf("expected PROGRAM and CYCLES arguments")
			}
			bc, err := loadProgram(c.Args().Get(0))
			if err != nil {
				return err
			}
			cycles, err := strconv.ParseUint(c.Args().Get(1), 0, 64)
			if err != nil {
				return fmt.Errorf("invalid CYCLES %q: %w", c.Args().Get(1), err)
			}
			cfg, err := configFromFlags(c)
			if err != nil {
				return err
			}
			m := machine.New(cfg.WithByteCode(bc))
			m.Run(int(cycles))
			reportFinalState(m)
			if c.Args().Len() >= 3 && c.Args().Get(2) == "verify" {
				return verifyFinalState(c, m)
			}
			return nil
		},
	}
}

// verifyFinalState checks run's optional trailing verify clause against
// --state/--fe/--ff, using the same flag names the standalone verify
// command would if it supported expectations directly.
func verifyFinalState(c *cli.Context, m *machine.Machine) error {
	if state := c.String("state"); state != "" {
		var ok bool
		switch state {
		case "stopped":
			ok = m.Stopped()
		case "error":
			ok = m.ErrorStopped()
		case "running":
			ok = !m.Halted()
		default:
			return fmt.Errorf("unknown --state %q (want stopped|error|running)", state)
		}
		if !ok {
			return fmt.Errorf("expected state %q, machine did not match", state)
		}
	}
	if fe := c.String("fe"); fe != "" {
		want, err := parseU8AutoRadix(fe)
		if err != nil {
			return err
		}
		if got := m.OutputFE(); got != want {
			return fmt.Errorf("expected output register FE == %#x, got %#x", want, got)
		}
	}
	if ff := c.String("ff"); ff != "" {
		want, err := parseU8AutoRadix(ff)
		if err != nil {
			return err
		}
		if got := m.OutputFF(); got != want {
			return fmt.Errorf("expected output register FF == %#x, got %#x", want, got)
		}
	}
	fmt.Println("ok")
	return nil
}

func testCommand() *cli.Command {
	return &cli.Command{
		Name:      "test",
		Usage:     "run a program against a key=value test-expectation file",
		ArgsUsage: "PROGRAM TEST-FILE",
		Flags:     machineFlags,
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 2 {
				return fmt.Errorf("expected PROGRAM and TEST-FILE arguments")
			}
			bc, err := loadProgram(c.Args().Get(0))
			if err != nil {
				return err
			}
			testFile, err := os.Open(c.Args().Get(1))
			if err != nil {
				return err
			}
			defer testFile.Close()

			exp, err := runner.ParseFile(bufio.NewScanner(testFile))
			if err != nil {
				return err
			}
			cfg, err := configFromFlags(c)
			if err != nil {
				return err
			}
			m := machine.New(cfg.WithByteCode(bc))
			failures := runner.Run(m, exp)
			for _, f := range failures {
				fmt.Fprintln(os.Stderr, f.String())
			}
			if len(failures) > 0 {
				return fmt.Errorf("%d expectation(s) failed", len(failures))
			}
			fmt.Println("ok")
			return nil
		},
	}
}

// verifyCommand implements `verify PROGRAM`: a syntax-only check that
// the program translates without error, printing the resolved
// stacksize/programsize on success.
func verifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "verify that a program compiles",
		ArgsUsage: "PROGRAM",
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				return fmt.Errorf("expected a PROGRAM argument")
			}
			bc, err := loadProgram(c.Args().Get(0))
			if err != nil {
				return err
			}
			fmt.Printf("ok: stacksize=%v programsize=%v\n", bc.Stacksize, bc.Programsize)
			return nil
		},
	}
}

func reportFinalState(m *machine.Machine) {
	switch {
	case m.Stopped():
		fmt.Println("machine stopped")
	case m.ErrorStopped():
		fmt.Println("machine halted on error")
	default:
		fmt.Println("machine did not halt within the step budget")
	}
	fmt.Printf("output register FE: %#x\n", m.OutputFE())
	fmt.Printf("output register FF: %#x\n", m.OutputFF())
}

func interactiveCommand() *cli.Command {
	return &cli.Command{
		Name:      "interactive",
		Usage:     "drive the machine one key-press at a time",
		ArgsUsage: "[PROGRAM]",
		Flags:     machineFlags,
		Action: func(c *cli.Context) error {
			cfg, err := configFromFlags(c)
			if err != nil {
				return err
			}
			if c.Args().Len() >= 1 {
				bc, err := loadProgram(c.Args().Get(0))
				if err != nil {
					return err
				}
				cfg.WithByteCode(bc)
			}
			m := machine.New(cfg)
			return runInteractive(m)
		},
	}
}

// runInteractive puts the terminal into raw mode and maps single
// key-presses onto the front panel's three buttons: c (clock), r (run),
// i (interrupt), q (quit).
func runInteractive(m *machine.Machine) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("interactive mode requires a terminal")
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return err
	}
	defer term.Restore(fd, oldState)

	fmt.Print("interactive mode: [c]lock  [r]un  [i]nterrupt  [q]uit\r\n")
	buf := make([]byte, 1)
	for {
		if _, err := os.Stdin.Read(buf); err != nil {
			return err
		}
		switch buf[0] {
		case 'c':
			m.TriggerKeyClock()
		case 'r':
			m.TriggerKeyContinue()
		case 'i':
			m.TriggerKeyInterrupt()
		case 'q':
			return nil
		default:
			continue
		}
		fmt.Printf("\rfe=%#x ff=%#x stopped=%v error=%v\r\n", m.OutputFE(), m.OutputFF(), m.Stopped(), m.ErrorStopped())
	}
}
