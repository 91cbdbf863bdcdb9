package compiler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NativeLang/NativeCIL/compiler/backend"
	"github.com/NativeLang/NativeCIL/compiler/metadata"
)

// fakeToolScript stands in for nasm/ld: it touches whatever path follows
// "-o" so the pipeline's plumbing can be exercised without a real
// assembler/linker installed.
const fakeToolScript = "#!/bin/sh\n" +
	"while [ \"$#\" -gt 0 ]; do\n" +
	"  if [ \"$1\" = \"-o\" ]; then shift; touch \"$1\"; fi\n" +
	"  shift\n" +
	"done\n"

func writeFakeTool(t *testing.T, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(fakeToolScript), 0o755))

	return path
}

func TestCompileRunsFullPipeline(t *testing.T) {
	dir := t.TempDir()

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

	opt := Options{
		OutputPath: filepath.Join(dir, "hello.elf"),
		WorkDir:    dir,
		Format:     backend.FormatELF,
		Arch:       "amd64",
		NasmPath:   writeFakeTool(t, dir, "fake-nasm.sh"),
		LdPath:     writeFakeTool(t, dir, "fake-ld.sh"),
	}

	art, err := Compile(context.Background(), mod, opt)
	require.NoError(t, err)
	require.FileExists(t, art.AssemblyPath)
	require.FileExists(t, art.ObjectPath)
	require.FileExists(t, art.OutputPath)
}

func TestCompileFileRejectsInvalidOptionsBeforeLoading(t *testing.T) {
	_, err := CompileFile(context.Background(), Options{})
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestCompileFileWrapsLoadFailureAsErrInput(t *testing.T) {
	dir := t.TempDir()

	_, err := CompileFile(context.Background(), Options{
		InputPath:  filepath.Join(dir, "missing.json"),
		OutputPath: filepath.Join(dir, "hello.elf"),
	})
	require.ErrorIs(t, err, ErrInput)
}

func TestCompileRejectsUnknownArch(t *testing.T) {
	mod := &metadata.Module{Name: "hello"}

	_, err := Compile(context.Background(), mod, Options{Arch: "riscv64"})
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestCompileStrictModeFailsOnUnsupportedOpcode(t *testing.T) {
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

	_, err := Compile(context.Background(), mod, Options{Arch: "amd64", Strict: true})
	require.ErrorIs(t, err, ErrUnsupportedOpcode)
}
