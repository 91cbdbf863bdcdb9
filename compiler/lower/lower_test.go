package lower

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NativeLang/NativeCIL/compiler/ir"
	"github.com/NativeLang/NativeCIL/compiler/metadata"
	"github.com/NativeLang/NativeCIL/compiler/names"
)

func compileOne(t *testing.T, mod *metadata.Module) *ir.Unit {
	t.Helper()

	u, err := New(false).Compile(context.Background(), mod)
	require.NoError(t, err)

	return u
}

func TestStrictModeFailsOnUnsupportedOpcode(t *testing.T) {
	mod := &metadata.Module{
		Name: "hello",
		Types: []*metadata.TypeDef{{
			Name: "Program",
			Methods: []*metadata.MethodDef{{
				Name:         "Main",
				IsEntryPoint: true,
				Body:         []metadata.Instruction{{Op: metadata.Opcode("newobj")}},
			}},
		}},
	}

	_, err := New(true).Compile(context.Background(), mod)
	require.Error(t, err)

	_, err = New(false).Compile(context.Background(), mod)
	require.NoError(t, err)
}

func TestEmptyEntryPoint(t *testing.T) {
	mod := &metadata.Module{
		Name: "hello",
		Types: []*metadata.TypeDef{{
			Name: "Program",
			Methods: []*metadata.MethodDef{{
				Name:         "Main",
				IsEntryPoint: true,
				Body:         []metadata.Instruction{{Op: metadata.OpRet}},
			}},
		}},
	}

	u := compileOne(t, mod)

	entrySym := names.SafeName("Program.Main")
	require.Equal(t, entrySym, u.Entry)

	require.Equal(t, ir.Call, u.Instrs[0].Op)
	require.Equal(t, entrySym, u.Instrs[0].Op1.Label)

	require.Equal(t, ir.Label, u.Instrs[1].Op)
	require.Equal(t, entrySym, u.Instrs[1].Op1.Label)

	require.Equal(t, ir.Ret, u.Instrs[len(u.Instrs)-1].Op)
}

func TestIntegerReturnViaLocals(t *testing.T) {
	mod := &metadata.Module{
		Name: "hello",
		Types: []*metadata.TypeDef{{
			Name: "Program",
			Methods: []*metadata.MethodDef{{
				Name:         "Main",
				IsEntryPoint: true,
				Locals:       []metadata.Param{{Name: "x"}},
				Body: []metadata.Instruction{
					{Offset: 0, Op: metadata.OpLdcI4, Int: 5},
					{Offset: 1, Op: metadata.OpStloc, Index: 0},
					{Offset: 2, Op: metadata.OpLdloc, Index: 0},
					{Offset: 3, Op: metadata.OpRet},
				},
			}},
		}},
	}

	u := compileOne(t, mod)

	pushes, pops := 0, 0
	for _, in := range u.Instrs {
		if in.Op == ir.Add && in.Op1.Kind == ir.OperandRegister && in.Op1.Reg.ID == ir.R0 {
			pushes++
		}
		if in.Op == ir.Sub && in.Op1.Kind == ir.OperandRegister && in.Op1.Reg.ID == ir.R0 {
			pops++
		}
	}

	require.Equal(t, pushes, pops, "abstract stack must be balanced across the method body")
	require.Equal(t, ir.Ret, u.Instrs[len(u.Instrs)-1].Op)
}

func TestBranch(t *testing.T) {
	mod := &metadata.Module{
		Name: "hello",
		Types: []*metadata.TypeDef{{
			Name: "Program",
			Methods: []*metadata.MethodDef{{
				Name:         "Main",
				IsEntryPoint: true,
				Body: []metadata.Instruction{
					{Offset: 0, Op: metadata.OpLdcI4, Int: 1},
					{Offset: 1, Op: metadata.OpBrtrue, Target: 3},
					{Offset: 2, Op: metadata.OpLdcI4, Int: 0},
					{Offset: 3, Op: metadata.OpRet},
				},
			}},
		}},
	}

	u := compileOne(t, mod)

	hash := names.MethodHash("Program.Main")
	want := names.BranchLabel(hash, 3)

	var labels int
	var sawJmpNotZero bool

	for _, in := range u.Instrs {
		if in.Op == ir.Label && in.Flags == ir.FlagNone && in.Op1.Label == want {
			labels++
		}
		if in.Op == ir.Jmp && in.Op1.Label == want && in.Flags.Cond() == ir.NotZero {
			sawJmpNotZero = true
		}
	}

	require.Equal(t, 1, labels, "branch target must be defined exactly once")
	require.True(t, sawJmpNotZero)
}

func TestStringLoad(t *testing.T) {
	mod := &metadata.Module{
		Name: "hello",
		Types: []*metadata.TypeDef{{
			Name: "Program",
			Methods: []*metadata.MethodDef{{
				Name:         "Main",
				IsEntryPoint: true,
				Body: []metadata.Instruction{
					{Offset: 0, Op: metadata.OpLdstr, String: "Hi"},
					{Offset: 1, Op: metadata.OpPop},
					{Offset: 2, Op: metadata.OpRet},
				},
			}},
		}},
	}

	u := compileOne(t, mod)

	blobs := u.Blobs()
	require.Len(t, blobs, 1)
	require.Equal(t, []byte{0x48, 0x00, 0x69, 0x00}, blobs[0].Bytes)

	// the Jmp just before the Store's blob label must target the label
	// right after the Store.
	for i, in := range u.Instrs {
		if in.Op != ir.Store {
			continue
		}

		require.GreaterOrEqual(t, i, 2)
		jmp := u.Instrs[i-2]
		cont := u.Instrs[i+1]

		require.Equal(t, ir.Jmp, jmp.Op)
		require.Equal(t, ir.Label, cont.Op)
		require.Equal(t, jmp.Op1.Label, cont.Op1.Label)
	}
}

func TestCallWithArgs(t *testing.T) {
	mod := &metadata.Module{
		Name: "hello",
		Types: []*metadata.TypeDef{{
			Name: "Program",
			Methods: []*metadata.MethodDef{
				{
					Name:         "Main",
					IsEntryPoint: true,
					Body: []metadata.Instruction{
						{Offset: 0, Op: metadata.OpLdcI4, Int: 2},
						{Offset: 1, Op: metadata.OpLdcI4, Int: 3},
						{Offset: 2, Op: metadata.OpCall, Method: &metadata.MethodRef{FullName: "Program.Add", ParamCount: 2}},
						{Offset: 3, Op: metadata.OpRet},
					},
				},
				{
					Name: "Add",
					Body: []metadata.Instruction{{Op: metadata.OpRet}},
				},
			},
		}},
	}

	u := compileOne(t, mod)

	var slot1Idx, slot0Idx = -1, -1

	for i, in := range u.Instrs {
		if in.Op != ir.Mov || !in.Flags.Has(ir.DestPointer) || in.Op1.Reg.ID != ir.R4 {
			continue
		}

		switch in.Op1.Reg.Disp {
		case ir.PointerSize:
			slot1Idx = i
		case 0:
			slot0Idx = i
		}
	}

	require.NotEqual(t, -1, slot1Idx)
	require.NotEqual(t, -1, slot0Idx)
	require.Less(t, slot1Idx, slot0Idx, "slot N-1 must be written before slot 0")

	var sawCall bool
	for _, in := range u.Instrs {
		if in.Op == ir.Call && in.Op1.Label == names.SafeName("Program.Add") {
			sawCall = true
		}
	}
	require.True(t, sawCall)
}

func TestStaticField(t *testing.T) {
	mod := &metadata.Module{
		Name: "hello",
		Types: []*metadata.TypeDef{{
			Name:   "Program",
			Fields: []*metadata.FieldDef{{Name: "X", IsStatic: true, Initial: 7}},
			Methods: []*metadata.MethodDef{{
				Name:         "Main",
				IsEntryPoint: true,
				Body: []metadata.Instruction{
					{Offset: 0, Op: metadata.OpLdsfld, Field: &metadata.FieldRef{FullName: "Program.X"}},
					{Offset: 1, Op: metadata.OpRet},
				},
			}},
		}},
	}

	u := compileOne(t, mod)

	fields := u.StaticFields()
	require.Len(t, fields, 1)
	require.Equal(t, names.SafeName("Program.X"), fields[0].Symbol)
	require.Equal(t, int64(7), fields[0].Initial)

	var sawLoad bool
	for _, in := range u.Instrs {
		if in.Op == ir.Mov && in.Flags.Has(ir.SrcPointer) && in.Op2.Label == fields[0].Symbol {
			sawLoad = true
		}
	}
	require.True(t, sawLoad)
}
