package amd64

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NativeLang/NativeCIL/compiler/ir"
)

func TestCompileEmitsFrameSetupAndHaltLoop(t *testing.T) {
	unit := &ir.Unit{
		Assembly: "hello",
		Entry:    "Program_Main",
		Instrs: []ir.Instr{
			{Op: ir.Call, Flags: ir.LabelOperand, Op1: ir.LabelOp("Program_Main")},
			{Op: ir.Label, Flags: ir.FlagNone, Op1: ir.LabelOp("Program_Main")},
			{Op: ir.Ret},
		},
	}

	dir := t.TempDir()

	arch := New("", "")
	require.NoError(t, arch.Initialize(context.Background(), dir))

	art, err := arch.Compile(context.Background(), unit, dir)
	require.NoError(t, err)

	text, err := os.ReadFile(art.AssemblyPath)
	require.NoError(t, err)

	asm := string(text)
	require.Contains(t, asm, "_start:")
	require.Contains(t, asm, "call Program_Main")
	require.Contains(t, asm, "jmp halt_loop")
	require.Contains(t, asm, "halt_loop:")
	require.Contains(t, asm, "Program_Main:")
	require.Equal(t, filepath.Join(dir, "hello.asm"), art.AssemblyPath)
}

func TestFormatOperandRegisterPointerWithDisplacement(t *testing.T) {
	op := ir.RegOperand(ir.R(ir.R3, ir.Qword).At(16))

	require.Equal(t, "qword [r12 + 16]", formatOperand(op, ir.Qword, true))
	require.Equal(t, "r12", formatOperand(op, ir.Qword, false))
}

func TestFormatOperandLabelPointer(t *testing.T) {
	op := ir.LabelOp("Program_X")

	require.Equal(t, "[Program_X]", formatOperand(op, ir.Qword, true))
	require.Equal(t, "Program_X", formatOperand(op, ir.Qword, false))
}

func TestRegNameHonorsSizeViews(t *testing.T) {
	require.Equal(t, "cl", regName(ir.R5, ir.Byte))
	require.Equal(t, "rcx", regName(ir.R5, ir.Qword))
}

func TestWriteInstrConditionalJump(t *testing.T) {
	instr := ir.Instr{
		Op:    ir.Jmp,
		Flags: ir.LabelOperand.WithCond(ir.NotZero),
		Op1:   ir.LabelOp("LB_00010002"),
	}

	var sb strings.Builder
	writeInstr(&sb, instr)

	require.Equal(t, "\tjnz LB_00010002\n", sb.String())
}
