package amd64

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/NativeLang/NativeCIL/compiler/backend"
	"github.com/NativeLang/NativeCIL/compiler/ir"
)

// Compile translates unit into NASM assembly text and writes it to
// workDir/<assembly>.asm.
func (a *Architecture) Compile(ctx context.Context, unit *ir.Unit, workDir string) (backend.Artifact, error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "emit amd64 assembly", "assembly", unit.Assembly)
	defer tr.Finish()

	var w strings.Builder

	writeMultibootHeader(&w)
	writeBSS(&w)

	w.WriteString("\nsection .text\n")
	w.WriteString("global _start\n\n")

	w.WriteString("_start:\n")
	writeFrameSetup(&w)

	boundary := unit.PrologueBoundary()

	for _, in := range unit.Instrs[:boundary] {
		writeInstr(&w, in)
	}

	w.WriteString("\tjmp halt_loop\n\n")

	for _, in := range unit.Instrs[boundary:] {
		writeInstr(&w, in)
	}

	writeHaltLoop(&w)

	path := asmPath(workDir, unit.Assembly)

	if err := os.WriteFile(path, []byte(w.String()), 0o644); err != nil {
		return backend.Artifact{}, errors.Wrap(err, "write assembly %v", path)
	}

	tr.Printw("emitted assembly", "path", path, "instrs", len(unit.Instrs))

	return backend.Artifact{WorkDir: workDir, Assembly: unit.Assembly, AssemblyPath: path}, nil
}

func writeMultibootHeader(w *strings.Builder) {
	fmt.Fprintf(w, "section .multiboot\n")
	fmt.Fprintf(w, "align 8\n")
	fmt.Fprintf(w, "mb2_header_start:\n")
	fmt.Fprintf(w, "\tdd 0x%X\n", multiboot2Magic)
	fmt.Fprintf(w, "\tdd %d\n", multiboot2Arch)
	fmt.Fprintf(w, "\tdd mb2_header_end - mb2_header_start\n")
	fmt.Fprintf(w, "\tdd -(0x%X + %d + (mb2_header_end - mb2_header_start))\n", multiboot2Magic, multiboot2Arch)
	fmt.Fprintf(w, "\t; end tag\n")
	fmt.Fprintf(w, "\tdw 0\n\tdw 0\n\tdd 8\n")
	fmt.Fprintf(w, "mb2_header_end:\n")
}

func writeBSS(w *strings.Builder) {
	fmt.Fprintf(w, "\nsection .bss\n")
	fmt.Fprintf(w, "align 16\n")
	fmt.Fprintf(w, "stack_region: resb %d\n", stackBytes)
	fmt.Fprintf(w, "locals_region: resb %d\n", localsBytes)
	fmt.Fprintf(w, "args_region: resb %d\n", argsBytes)
}

// writeFrameSetup establishes R0/R3/R4 on entry. The abstract stack grows
// upward from stack_region: R0 starts one pointer-width below the region's
// lowest slot so the first Push (which increments before storing) lands on
// slot 0.
func writeFrameSetup(w *strings.Builder) {
	fmt.Fprintf(w, "\tmov %s, stack_region - %d\n", regName(ir.R0, ir.Qword), ir.PointerSize)
	fmt.Fprintf(w, "\tmov %s, locals_region\n", regName(ir.R3, ir.Qword))
	fmt.Fprintf(w, "\tmov %s, args_region\n", regName(ir.R4, ir.Qword))
}

func writeHaltLoop(w *strings.Builder) {
	fmt.Fprintf(w, "halt_loop:\n")
	fmt.Fprintf(w, "\tcli\n")
	fmt.Fprintf(w, "\thlt\n")
	fmt.Fprintf(w, "\tjmp halt_loop\n")
}

var mnemonics = map[ir.Op]string{
	ir.Mov: "mov", ir.Add: "add", ir.Sub: "sub", ir.And: "and",
	ir.Or: "or", ir.Xor: "xor", ir.Shl: "shl", ir.Shr: "shr", ir.Cmp: "cmp",
}

var condSuffix = map[ir.Cond]string{
	ir.Zero: "z", ir.NotZero: "nz", ir.Equal: "e", ir.NotEqual: "ne",
	ir.Less: "l", ir.LessOrEqual: "le", ir.Greater: "g", ir.GreaterOrEqual: "ge",
}

func writeInstr(w *strings.Builder, in ir.Instr) {
	switch in.Op {
	case ir.Nop:
		w.WriteString("\tnop\n")
	case ir.Ret:
		w.WriteString("\tret\n")
	case ir.Comment:
		fmt.Fprintf(w, "\t; %s\n", in.Op1.Text)
	case ir.Label:
		writeLabel(w, in)
	case ir.Store:
		writeStore(w, in)
	case ir.Call:
		fmt.Fprintf(w, "\tcall %s\n", in.Op1.Label)
	case ir.Jmp:
		cc := condSuffix[in.Flags.Cond()]
		mnem := "jmp"
		if cc != "" {
			mnem = "j" + cc
		}
		fmt.Fprintf(w, "\t%s %s\n", mnem, in.Op1.Label)
	case ir.Set:
		cc := condSuffix[in.Flags.Cond()]
		fmt.Fprintf(w, "\tset%s %s\n", cc, formatOperand(in.Op1, in.Flags.Size(), in.Flags.Has(ir.DestPointer)))
	case ir.Mul:
		fmt.Fprintf(w, "\timul %s, %s\n",
			formatOperand(in.Op1, in.Flags.Size(), in.Flags.Has(ir.DestPointer)),
			formatOperand(in.Op2, in.Flags.Size(), in.Flags.Has(ir.SrcPointer)))
	default:
		mnem, ok := mnemonics[in.Op]
		if !ok {
			fmt.Fprintf(w, "\t; unhandled op %s\n", in.Op)
			return
		}

		size := in.Flags.Size()
		op1 := formatOperand(in.Op1, size, in.Flags.Has(ir.DestPointer))
		op2 := formatOperand(in.Op2, size, in.Flags.Has(ir.SrcPointer))

		fmt.Fprintf(w, "\t%s %s, %s\n", mnem, op1, op2)
	}
}

// writeLabel renders a code label ("name:") or, when the instruction carries
// a size flag, a data label with an initializer directive.
func writeLabel(w *strings.Builder, in ir.Instr) {
	if in.Flags == ir.FlagNone {
		fmt.Fprintf(w, "%s:\n", in.Op1.Label)

		return
	}

	dir := dataDirective(in.Flags.Size())
	fmt.Fprintf(w, "%s:\n\t%s %s\n", in.Op1.Label, dir, formatOperand(in.Op2, in.Flags.Size(), false))
}

func dataDirective(size ir.Size) string {
	switch size {
	case ir.Byte:
		return "db"
	case ir.Word:
		return "dw"
	case ir.Dword:
		return "dd"
	default:
		return "dq"
	}
}

func writeStore(w *strings.Builder, in ir.Instr) {
	if len(in.Op1.Bytes) == 0 {
		w.WriteString("\tdb 0\n")

		return
	}

	parts := make([]string, len(in.Op1.Bytes))
	for i, b := range in.Op1.Bytes {
		parts[i] = strconv.Itoa(int(b))
	}

	fmt.Fprintf(w, "\tdb %s\n", strings.Join(parts, ","))
}

// formatOperand renders one operand at the given size, dereferencing it
// ([reg]/[reg+disp]/[label]) when pointer is true.
func formatOperand(op ir.Operand, size ir.Size, pointer bool) string {
	switch op.Kind {
	case ir.OperandRegister:
		if !pointer {
			return regName(op.Reg.ID, size)
		}

		// The register inside [ ] always addresses memory at full width;
		// only the ptr-size prefix names the width of the value it points
		// at.
		addr := regName(op.Reg.ID, ir.Qword)

		return fmt.Sprintf("%s [%s%s]", sizePrefix(size), addr, dispSuffix(op.Reg.Disp))
	case ir.OperandImmediate:
		if op.Unsigned {
			return strconv.FormatUint(uint64(op.Imm), 10)
		}

		return strconv.FormatInt(op.Imm, 10)
	case ir.OperandLabel:
		if !pointer {
			return op.Label
		}

		return fmt.Sprintf("[%s]", op.Label)
	case ir.OperandText:
		return op.Text
	default:
		return ""
	}
}

// sizePrefix names a NASM memory-size specifier. NASM's own syntax has no
// "ptr" keyword (unlike MASM/GAS-Intel dialects) — "byte [x]", not
// "byte ptr [x]".
func sizePrefix(size ir.Size) string {
	switch size {
	case ir.Byte:
		return "byte"
	case ir.Word:
		return "word"
	case ir.Dword:
		return "dword"
	default:
		return "qword"
	}
}

func dispSuffix(disp int32) string {
	switch {
	case disp > 0:
		return fmt.Sprintf(" + %d", disp)
	case disp < 0:
		return fmt.Sprintf(" - %d", -disp)
	default:
		return ""
	}
}
