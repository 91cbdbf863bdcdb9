// Package amd64 implements compiler/backend.Arch for x86-64: it translates
// compiler/ir.Unit into Intel-syntax NASM assembly text, then drives nasm
// and ld as external tools.
package amd64

import (
	"context"
	"os"
	"path/filepath"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/NativeLang/NativeCIL/compiler/ir"
)

// physReg names one physical register's four size views.
type physReg struct {
	byte, word, dword, qword string
}

// regTable maps the LIR's six abstract registers onto System V AMD64
// callee-saved registers for R0/R3/R4 (they must survive a Call, since the
// lowerer's abstract stack pointer and frame bases are live across every
// method call) and binds R5 to rcx specifically, because x86's
// variable-count shift instructions require the count in cl.
var regTable = [...]physReg{
	ir.R0: {"bl", "bx", "ebx", "rbx"},
	ir.R1: {"al", "ax", "eax", "rax"},
	ir.R2: {"dl", "dx", "edx", "rdx"},
	ir.R3: {"r12b", "r12w", "r12d", "r12"},
	ir.R4: {"r13b", "r13w", "r13d", "r13"},
	ir.R5: {"cl", "cx", "ecx", "rcx"},
}

func regName(id ir.RegID, size ir.Size) string {
	p := regTable[id]

	switch size {
	case ir.Byte:
		return p.byte
	case ir.Word:
		return p.word
	case ir.Dword:
		return p.dword
	default:
		return p.qword
	}
}

const (
	stackBytes  = 64 * 1024
	localsBytes = 4 * 1024
	argsBytes   = 4 * 1024

	multiboot2Magic = 0xE85250D6
	multiboot2Arch  = 0 // protected mode i386
)

// Architecture implements compiler/backend.Arch for x86-64.
type Architecture struct {
	nasmPath string
	ldPath   string
}

// New constructs an Architecture using the given assembler and linker
// executables (resolved via os/exec's PATH lookup if not absolute).
func New(nasmPath, ldPath string) *Architecture {
	if nasmPath == "" {
		nasmPath = "nasm"
	}

	if ldPath == "" {
		ldPath = "ld"
	}

	return &Architecture{nasmPath: nasmPath, ldPath: ldPath}
}

// Initialize ensures workDir exists.
func (a *Architecture) Initialize(ctx context.Context, workDir string) error {
	tr := tlog.SpanFromContext(ctx)

	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return errors.Wrap(err, "create work dir %v", workDir)
	}

	tr.Printw("initialized amd64 backend", "work_dir", workDir, "nasm", a.nasmPath, "ld", a.ldPath)

	return nil
}

func asmPath(workDir, assembly string) string {
	return filepath.Join(workDir, assembly+".asm")
}

func objPath(workDir, assembly string) string {
	return filepath.Join(workDir, assembly+".o")
}

func outPath(workDir, assembly string) string {
	return filepath.Join(workDir, assembly+".elf")
}
