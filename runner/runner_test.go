package runner

import (
	"bufio"
	"strings"
	"testing"

	"github.com/MalteT/2a-emulator-sub000/machine"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func TestRunDetectsStoppedExpectationMet(t *testing.T) {
	var image [256]byte
	image[0] = 0x01 // STOP
	m := machine.NewWithProgram(image)
	exp := NewRunExpectationsBuilder().ExpectStopped().Build()
	failures := Run(m, exp)
	assert(t, len(failures) == 0, "expected no failures, got %v", failures)
}

func TestRunReportsUnmetExpectation(t *testing.T) {
	var image [256]byte
	image[0] = 0x01
	m := machine.NewWithProgram(image)
	exp := NewRunExpectationsBuilder().ExpectError().Build()
	failures := Run(m, exp)
	assert(t, len(failures) == 1, "expected exactly one failure, got %d", len(failures))
}

func TestParseFileAcceptsKeyValueLines(t *testing.T) {
	src := `
# a comment
max_steps = 5
stopped = true
output_fe = 0x10
register.R0 = 42
memory.0x10 = 0b1010
`
	scanner := bufio.NewScanner(strings.NewReader(src))
	exp, err := ParseFile(scanner)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, exp.MaxSteps == 5, "expected max_steps 5, got %d", exp.MaxSteps)
	assert(t, len(exp.Expectations) == 4, "expected 4 expectations, got %d", len(exp.Expectations))
}

func TestParseFileRejectsUnknownKey(t *testing.T) {
	scanner := bufio.NewScanner(strings.NewReader("nonsense = 1"))
	_, err := ParseFile(scanner)
	assert(t, err != nil, "expected an error for an unknown key")
}

func TestParseFileRejectsMalformedLine(t *testing.T) {
	scanner := bufio.NewScanner(strings.NewReader("this is not key value"))
	_, err := ParseFile(scanner)
	assert(t, err != nil, "expected an error for a line without '='")
}
