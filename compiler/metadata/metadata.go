// Package metadata is the boundary this system presents to the metadata
// reader, which stays external and out of scope: parsing the managed-
// assembly container format itself. This package only defines the shape
// that reader hands to compiler/lower (assembly name, types, methods,
// fields, and a flat ordered instruction body per method) and a minimal
// stand-in Load function for tests and standalone use.
package metadata

// Module is a loaded managed-assembly container: an assembly name and its
// ordered list of types.
type Module struct {
	Name  string
	Types []*TypeDef
}

// TypeDef is one class: its methods and fields, in source order.
type TypeDef struct {
	Name    string // simple type name, e.g. "Program"
	Methods []*MethodDef
	Fields  []*FieldDef
}

// FullName returns the sanitizer-ready dotted name of a member declared on t.
func (t *TypeDef) FullName(member string) string {
	return t.Name + "." + member
}

// FieldDef is one field declaration.
type FieldDef struct {
	Name     string
	IsStatic bool
	// Initial is the field's constant initializer, or 0 if none was declared.
	Initial int64
}

// FullName returns the type-qualified field name used to derive its
// sanitized symbol.
func (f *FieldDef) FullName(t *TypeDef) string {
	return t.FullName(f.Name)
}

// Param is a formal parameter or local variable declaration. Only its
// ordinal position matters to the lowerer; the name is carried for
// diagnostics.
type Param struct {
	Name string
}

// MethodDef is one method: its signature, local-variable list, and flat
// ordered bytecode body.
type MethodDef struct {
	Name          string
	Params        []Param
	Locals        []Param
	IsEntryPoint  bool
	IsConstructor bool
	IsStaticCtor  bool
	MetadataToken uint32 // stable identity, used instead of object identity for label hashing
	Body          []Instruction
}

// FullName returns the type-qualified method name used to derive its
// sanitized symbol.
func (m *MethodDef) FullName(t *TypeDef) string {
	return t.FullName(m.Name)
}

// Opcode names one managed bytecode mnemonic in its general CIL form (ldc.i4,
// stloc, brtrue, ...). The short and constant-index encodings (ldc.i4.5,
// stloc.0, brtrue.s) have no constant here; their operand is carried in
// Instruction.Int, Index or Target instead. This package only needs the
// mnemonic identity, not a full opcode table, since decoding the wire
// encoding is the metadata reader's job.
type Opcode string

const (
	OpNop Opcode = "nop"
	OpPop Opcode = "pop"
	OpRet Opcode = "ret"
	OpDup Opcode = "dup"

	OpLdcI4 Opcode = "ldc.i4"
	OpLdcI8 Opcode = "ldc.i8"

	OpLdloc Opcode = "ldloc"
	OpStloc Opcode = "stloc"
	OpLdarg Opcode = "ldarg"
	OpStarg Opcode = "starg"

	OpLdsfld Opcode = "ldsfld"
	OpStsfld Opcode = "stsfld"

	OpLdstr Opcode = "ldstr"

	OpAdd Opcode = "add"
	OpSub Opcode = "sub"
	OpMul Opcode = "mul"
	OpAnd Opcode = "and"
	OpOr  Opcode = "or"
	OpXor Opcode = "xor"
	OpShl Opcode = "shl"
	OpShr Opcode = "shr"

	OpConvI1 Opcode = "conv.i1"
	OpConvU1 Opcode = "conv.u1"
	OpConvI2 Opcode = "conv.i2"
	OpConvU2 Opcode = "conv.u2"
	OpConvI4 Opcode = "conv.i4"
	OpConvU4 Opcode = "conv.u4"
	OpConvI  Opcode = "conv.i"
	OpConvU  Opcode = "conv.u"
	OpConvI8 Opcode = "conv.i8"
	OpConvU8 Opcode = "conv.u8"

	OpStindI1 Opcode = "stind.i1"
	OpStindI2 Opcode = "stind.i2"
	OpStindI4 Opcode = "stind.i4"
	OpStindI8 Opcode = "stind.i8"

	OpLdindI1 Opcode = "ldind.i1"
	OpLdindU1 Opcode = "ldind.u1"
	OpLdindI2 Opcode = "ldind.i2"
	OpLdindU2 Opcode = "ldind.u2"
	OpLdindI4 Opcode = "ldind.i4"
	OpLdindU4 Opcode = "ldind.u4"
	OpLdindI8 Opcode = "ldind.i8"
	OpLdindU8 Opcode = "ldind.u8"

	OpBr      Opcode = "br"
	OpBrtrue  Opcode = "brtrue"
	OpBrfalse Opcode = "brfalse"
	OpBeq     Opcode = "beq"
	OpBneUn   Opcode = "bne.un"
	OpBlt     Opcode = "blt"
	OpBltUn   Opcode = "blt.un"
	OpBle     Opcode = "ble"
	OpBleUn   Opcode = "ble.un"
	OpBgt     Opcode = "bgt"
	OpBgtUn   Opcode = "bgt.un"
	OpBge     Opcode = "bge"
	OpBgeUn   Opcode = "bge.un"

	OpCeq   Opcode = "ceq"
	OpClt   Opcode = "clt"
	OpCltUn Opcode = "clt.un"
	OpCgt   Opcode = "cgt"
	OpCgtUn Opcode = "cgt.un"

	OpCall Opcode = "call"
)

// MethodRef identifies a call target by its type-qualified full name and
// declared parameter count (needed to size the argument frame write).
type MethodRef struct {
	FullName   string
	ParamCount int
}

// FieldRef identifies a static field access by its type-qualified full name.
type FieldRef struct {
	FullName string
}

// Instruction is one flat bytecode instruction with its byte offset. Only
// the operand kind relevant to Op is populated; the zero value of the
// others is inert.
type Instruction struct {
	Offset int
	Op     Opcode

	Int    int64      // Ldc operand
	Index  int        // Ldloc/Stloc/Ldarg/Starg slot index
	Target int        // branch target offset
	String string     // Ldstr operand
	Method *MethodRef // Call operand
	Field  *FieldRef  // Ldsfld/Stsfld operand
}
