// Package ir defines the flat, non-SSA linear intermediate representation
// produced by compiler/lower and consumed by compiler/backend.
//
// The representation models an abstract evaluation stack over a small fixed
// register file (R0..R5): R0 is the stack pointer, R3 and R4 are the local
// and argument frame bases, and R1, R2, R5 are scratch. Every instruction
// carries enough information in its Flag bitset to reconstruct the exact
// x86-64 addressing form: register-direct, register-indirect with an
// optional displacement, immediate, or label-relative.
package ir

import "fmt"

type (
	// Op is an LIR opcode.
	Op int

	// RegID names one of the fixed abstract registers.
	RegID int

	// Size is the operand width axis of Flag.
	Size int

	// Cond is a branch/set condition code.
	Cond int

	// Flag is a bitset combining a size class, operand-mode bits and a
	// condition code. FlagNone (-1) means "no flags apply", used by plain
	// code labels, Nop, Ret and Comment.
	Flag int32
)

const (
	Nop Op = iota
	Ret
	Call
	Jmp
	Label
	Comment
	Store
	Mov
	Add
	Sub
	Mul
	And
	Or
	Xor
	Shl
	Shr
	Cmp
	Set
)

var opNames = [...]string{
	Nop: "nop", Ret: "ret", Call: "call", Jmp: "jmp", Label: "label",
	Comment: "comment", Store: "store", Mov: "mov", Add: "add", Sub: "sub",
	Mul: "mul", And: "and", Or: "or", Xor: "xor", Shl: "shl", Shr: "shr",
	Cmp: "cmp", Set: "set",
}

func (op Op) String() string {
	if int(op) >= 0 && int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}

	return fmt.Sprintf("op(%d)", int(op))
}

const (
	R0 RegID = iota // abstract stack pointer
	R1              // scratch
	R2              // scratch
	R3              // locals frame base
	R4              // args frame base
	R5              // scratch, byte view is the x86 shift-count register
)

var regNames = [...]string{"R0", "R1", "R2", "R3", "R4", "R5"}

func (r RegID) String() string {
	if int(r) >= 0 && int(r) < len(regNames) {
		return regNames[r]
	}

	return fmt.Sprintf("R?(%d)", int(r))
}

const (
	Byte Size = iota
	Word
	Dword
	Qword
)

// PointerSize is the native word width used to size every abstract-stack
// slot. Only amd64 is implemented, so this is always 8.
const PointerSize = 8

func (s Size) String() string {
	switch s {
	case Byte:
		return "byte"
	case Word:
		return "word"
	case Dword:
		return "dword"
	case Qword:
		return "qword"
	default:
		return fmt.Sprintf("size(%d)", int(s))
	}
}

// Bytes returns the width of s in bytes.
func (s Size) Bytes() int {
	switch s {
	case Byte:
		return 1
	case Word:
		return 2
	case Dword:
		return 4
	default:
		return 8
	}
}

const (
	CondNone Cond = iota // "always" — the ninth state referenced by §4.1
	Zero
	NotZero
	Equal
	NotEqual
	Less
	LessOrEqual
	Greater
	GreaterOrEqual
)

var condNames = [...]string{
	CondNone: "", Zero: "z", NotZero: "nz", Equal: "e", NotEqual: "ne",
	Less: "l", LessOrEqual: "le", Greater: "g", GreaterOrEqual: "ge",
}

func (c Cond) String() string {
	if int(c) >= 0 && int(c) < len(condNames) {
		return condNames[c]
	}

	return fmt.Sprintf("cond(%d)", int(c))
}

// Flag bit layout: bits [0:1] size class, bits [2:7] operand-mode roles,
// bits [8:11] condition code. FlagNone (-1) is a distinct sentinel, not a
// valid combination of the bits below.
const (
	FlagNone Flag = -1

	sizeMask Flag = 0x3

	DestRegister Flag = 1 << 2
	DestPointer  Flag = 1 << 3
	SrcRegister  Flag = 1 << 4
	SrcPointer   Flag = 1 << 5
	Immediate    Flag = 1 << 6
	LabelOperand Flag = 1 << 7

	condShift = 8
	condMask  = 0xF
)

// WithSize returns f with its size class set to s.
func (f Flag) WithSize(s Size) Flag {
	if f == FlagNone {
		f = 0
	}

	return f&^sizeMask | Flag(s)&sizeMask
}

// Size returns the size class carried by f.
func (f Flag) Size() Size {
	return Size(f & sizeMask)
}

// WithCond returns f with its condition code set to c.
func (f Flag) WithCond(c Cond) Flag {
	if f == FlagNone {
		f = 0
	}

	return f&^(condMask<<condShift) | Flag(c)&condMask<<condShift
}

// Cond returns the condition code carried by f.
func (f Flag) Cond() Cond {
	return Cond(f >> condShift & condMask)
}

// Has reports whether every bit in mask is set in f.
func (f Flag) Has(mask Flag) bool {
	return f != FlagNone && f&mask == mask
}

// SizeFlag builds a plain Flag carrying only a size class.
func SizeFlag(s Size) Flag {
	return Flag(s)
}

// Reg is a register reference: an abstract register at a given size view,
// with an optional byte displacement used for [reg + k] addressing. It is a
// plain record, not an object with arithmetic operators.
type Reg struct {
	ID   RegID
	Size Size
	Disp int32
}

// R constructs a bare, undisplaced register reference at the given size.
func R(id RegID, size Size) Reg {
	return Reg{ID: id, Size: size}
}

// At returns a copy of r displaced by k additional bytes. It is the pure
// "add displacement" constructor called for by the LIR design notes — it
// never mutates r.
func (r Reg) At(k int32) Reg {
	r.Disp += k
	return r
}

func (r Reg) String() string {
	if r.Disp == 0 {
		return fmt.Sprintf("%v.%v", r.ID, r.Size)
	}

	return fmt.Sprintf("%v.%v+%d", r.ID, r.Size, r.Disp)
}

// OperandKind discriminates the payload carried by an Operand.
type OperandKind int

const (
	OperandNone OperandKind = iota
	OperandRegister
	OperandImmediate
	OperandLabel
	OperandText  // Comment payload
	OperandBytes // Store payload
)

// Operand is one operand of an Instr: a register reference, a signed or
// unsigned integer immediate, a symbolic label name, or a raw string/byte
// payload (Comment/Store only).
type Operand struct {
	Kind     OperandKind
	Reg      Reg
	Imm      int64
	Unsigned bool
	Label    string
	Text     string
	Bytes    []byte
}

// Empty reports whether the operand slot is unused.
func (o Operand) Empty() bool { return o.Kind == OperandNone }

// RegOperand builds a register operand.
func RegOperand(r Reg) Operand { return Operand{Kind: OperandRegister, Reg: r} }

// ImmOperand builds a signed immediate operand.
func ImmOperand(v int64) Operand { return Operand{Kind: OperandImmediate, Imm: v} }

// UImmOperand builds an unsigned immediate operand.
func UImmOperand(v uint64) Operand {
	return Operand{Kind: OperandImmediate, Imm: int64(v), Unsigned: true}
}

// LabelOp builds a label-reference operand.
func LabelOp(name string) Operand { return Operand{Kind: OperandLabel, Label: name} }

// TextOperand builds a Comment payload operand.
func TextOperand(s string) Operand { return Operand{Kind: OperandText, Text: s} }

// BytesOperand builds a Store payload operand.
func BytesOperand(b []byte) Operand { return Operand{Kind: OperandBytes, Bytes: b} }

// Instr is a single LIR instruction.
type Instr struct {
	Op    Op
	Flags Flag
	Op1   Operand
	Op2   Operand
}

func (i Instr) String() string {
	s := i.Op.String()

	if !i.Op1.Empty() {
		s += " " + operandString(i.Op1)
	}

	if !i.Op2.Empty() {
		s += ", " + operandString(i.Op2)
	}

	return s
}

func operandString(o Operand) string {
	switch o.Kind {
	case OperandRegister:
		return o.Reg.String()
	case OperandImmediate:
		if o.Unsigned {
			return fmt.Sprintf("%d", uint64(o.Imm))
		}

		return fmt.Sprintf("%d", o.Imm)
	case OperandLabel:
		return o.Label
	case OperandText:
		return o.Text
	case OperandBytes:
		return fmt.Sprintf("<%d bytes>", len(o.Bytes))
	default:
		return "<none>"
	}
}

// Unit is a compilation unit: the ordered LIR sequence produced by lowering
// one metadata module, its sanitized assembly name and entry-point symbol.
// Its set of static-field symbols and set of inline byte blobs are exposed
// as computed views (StaticFields, Blobs) over Instrs rather than
// duplicated state.
type Unit struct {
	Assembly string
	Entry    string
	Instrs   []Instr
}

// StaticField describes one data-label slot emitted for a static field.
type StaticField struct {
	Symbol  string
	Initial int64
}

// StaticFields scans Instrs for data-Label instructions (Flags != FlagNone)
// and returns them in emission order.
func (u *Unit) StaticFields() []StaticField {
	var fields []StaticField

	for _, in := range u.Instrs {
		if in.Op != Label || in.Flags == FlagNone {
			continue
		}

		fields = append(fields, StaticField{
			Symbol:  in.Op1.Label,
			Initial: in.Op2.Imm,
		})
	}

	return fields
}

// Blob describes one inline byte blob emitted for a string literal.
type Blob struct {
	Symbol string
	Bytes  []byte
}

// Blobs scans Instrs for Store instructions and returns them in emission
// order, together with the code label that immediately precedes each one.
func (u *Unit) Blobs() []Blob {
	var blobs []Blob

	var lastLabel string

	for _, in := range u.Instrs {
		switch {
		case in.Op == Label && in.Flags == FlagNone:
			lastLabel = in.Op1.Label
		case in.Op == Store:
			blobs = append(blobs, Blob{Symbol: lastLabel, Bytes: in.Op1.Bytes})
		}
	}

	return blobs
}

// PrologueBoundary returns the index of the first Label instruction in
// Instrs, i.e. the end of the contiguous run of prologue Call instructions
// emitted by compiler/lower. It returns len(Instrs) if there is no Label.
func (u *Unit) PrologueBoundary() int {
	for i, in := range u.Instrs {
		if in.Op == Label {
			return i
		}
	}

	return len(u.Instrs)
}
