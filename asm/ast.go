// Package asm translates a parsed Minirechner 2a assembly AST into a
// ByteCode image: label resolution, directive handling and the full
// instruction-to-opcode encoding table. The AST itself (this file) is
// the contract with the upstream parser, which is out of scope for this
// module (spec.md explicitly hands it to the translator pre-parsed).
package asm

// Label names a byte address, resolved at the end of translation.
type Label = string

// Register is one of the four registers the assembler can name directly
// in an instruction operand (R0..R3 — the CPU's full eight-register file
// is a runtime-only concept; the assembler surface only ever names the
// first four).
type Register int

const (
	R0 Register = iota
	R1
	R2
	R3
)

func (r Register) byte() byte { return byte(r) }

// Constant is either a literal byte or a forward/backward label
// reference resolved at the end of translation.
type Constant struct {
	Label    Label
	IsLabel  bool
	Constant byte
}

// ByteConstant builds a literal Constant.
func ByteConstant(b byte) Constant { return Constant{Constant: b} }

// LabelConstant builds a label-reference Constant.
func LabelConstant(l Label) Constant { return Constant{Label: l, IsLabel: true} }

// MemAddress is a dereferenced operand: either a constant address or a
// register holding one.
type MemAddress struct {
	Register   Register
	IsRegister bool
	Constant   Constant
}

// RegisterDi is a dereferenced, post-incremented register operand: (Rn+).
type RegisterDi struct{ Register Register }

// RegisterDdi is a double-dereferenced, post-incremented register
// operand: ((Rn+)).
type RegisterDdi struct{ Register Register }

// sourceKind/destinationKind tag which operand shape a Source/Destination
// currently holds.
type operandKind int

const (
	kindRegister operandKind = iota
	kindMemAddress
	kindConstant
	kindRegisterDi
	kindRegisterDdi
)

// Source is a general instruction source operand.
type Source struct {
	kind        operandKind
	register    Register
	memAddress  MemAddress
	constant    Constant
	registerDi  RegisterDi
	registerDdi RegisterDdi
}

func SourceRegister(r Register) Source       { return Source{kind: kindRegister, register: r} }
func SourceMemAddress(m MemAddress) Source   { return Source{kind: kindMemAddress, memAddress: m} }
func SourceConstant(c Constant) Source       { return Source{kind: kindConstant, constant: c} }
func SourceRegisterDi(r RegisterDi) Source   { return Source{kind: kindRegisterDi, registerDi: r} }
func SourceRegisterDdi(r RegisterDdi) Source { return Source{kind: kindRegisterDdi, registerDdi: r} }

// Destination is a general instruction destination operand.
type Destination struct {
	kind        operandKind
	register    Register
	memAddress  MemAddress
	registerDi  RegisterDi
	registerDdi RegisterDdi
}

func DestRegister(r Register) Destination     { return Destination{kind: kindRegister, register: r} }
func DestMemAddress(m MemAddress) Destination { return Destination{kind: kindMemAddress, memAddress: m} }
func DestRegisterDi(r RegisterDi) Destination { return Destination{kind: kindRegisterDi, registerDi: r} }
func DestRegisterDdi(r RegisterDdi) Destination {
	return Destination{kind: kindRegisterDdi, registerDdi: r}
}

// Stacksize mirrors the *STACKSIZE directive's possible values.
type Stacksize int

const (
	Stacksize0 Stacksize = iota
	Stacksize16
	Stacksize32
	Stacksize48
	Stacksize64
	StacksizeNotSet
)

// DefaultStacksize is used when the source never gives *STACKSIZE.
const DefaultStacksize = Stacksize16

// Programsize mirrors the *PROGRAMSIZE directive. The translator adds
// this type (absent from the upstream AST snapshot this module was
// grounded on) because spec.md's data model requires it explicitly.
type Programsize struct {
	kind programsizeKind
	size byte
}

type programsizeKind int

const (
	ProgramsizeNotSet programsizeKind = iota
	ProgramsizeAuto
	ProgramsizeSize
)

func (p Programsize) Kind() int   { return int(p.kind) }
func (p Programsize) Size() byte  { return p.size }
func (p Programsize) IsSize() bool { return p.kind == ProgramsizeSize }

var ProgramsizeNotSetValue = Programsize{kind: ProgramsizeNotSet}
var ProgramsizeAutoValue = Programsize{kind: ProgramsizeAuto}

func ProgramsizeOf(n byte) Programsize { return Programsize{kind: ProgramsizeSize, size: n} }

// Instruction is the tagged-union of every instruction (and assembler
// directive) the translator understands. Exactly one field group is
// meaningful, selected by Op.
type Instruction struct {
	Op Opcode

	// Operand storage, shared across variants by shape rather than by
	// name — a flat sum type, not inheritance.
	Reg1, Reg2   Register
	Src          Source
	Dst          Destination
	Label        Label
	Addr         byte
	Constant     Constant
	DefineBytes  []Constant
	DefineWords  []uint16
	Stacksize    Stacksize
	Programsize  Programsize
}

// Opcode names the variant stored in an Instruction.
type Opcode int

const (
	AsmOrigin Opcode = iota
	AsmByte
	AsmDefineBytes
	AsmDefineWords
	AsmEquals
	AsmStacksize
	AsmProgramsize
	OpClr
	OpAdd
	OpAdc
	OpSub
	OpMul
	OpDiv
	OpInc
	OpDec
	OpNeg
	OpAnd
	OpOr
	OpXor
	OpCom
	OpBits
	OpBitc
	OpTst
	OpCmp
	OpBitt
	OpLsr
	OpAsr
	OpLsl
	OpRrc
	OpRlc
	OpMov
	OpLdConstant
	OpLdMemAddress
	OpSt
	OpPush
	OpPop
	OpPushF
	OpPopF
	OpLdsp
	OpLdfr
	OpJmp
	OpJcs
	OpJcc
	OpJzs
	OpJzc
	OpJns
	OpJnc
	OpJr
	OpCall
	OpRet
	OpRetI
	OpStop
	OpNop
	OpEi
	OpDi
)

// Line is a single parsed line of source: empty, a label definition, or
// an instruction, each with an optional trailing comment.
type Line struct {
	Kind        LineKind
	Label       Label
	Instruction Instruction
	Comment     string
	HasComment  bool
}

// LineKind tags which fields of Line are meaningful.
type LineKind int

const (
	LineEmpty LineKind = iota
	LineLabel
	LineInstruction
)

// Asm is the root of the parsed program: an optional comment after the
// `#! mrasm` shebang, followed by an ordered list of lines.
type Asm struct {
	CommentAfterShebang string
	HasShebangComment   bool
	Lines               []Line
}

// LineBytes pairs one source line with the bytes the translator emitted
// for it, in emission order. Lines that emit nothing (labels, blank
// lines, comments-only) carry a nil Bytes. Debugger views walk this
// instead of the flat image so they can show "this line produced these
// bytes" rather than just a byte soup.
type LineBytes struct {
	Line  Line
	Bytes []byte
}

// ByteCode is the translator's full output: the resolved 256-byte
// memory image, the same bytes grouped back by source line, and the
// *STACKSIZE/*PROGRAMSIZE directives resolved to their effective
// values (defaults substituted, Auto computed once against the final
// image).
type ByteCode struct {
	Lines       []LineBytes
	Image       [256]byte
	Stacksize   Stacksize
	Programsize Programsize
}

// Bytes flattens Image into a slice, mirroring the reference ByteCode's
// bytes() iterator.
func (bc ByteCode) Bytes() []byte {
	out := make([]byte, len(bc.Image))
	copy(out, bc.Image[:])
	return out
}
