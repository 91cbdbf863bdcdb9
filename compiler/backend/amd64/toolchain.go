package amd64

import (
	"context"
	"os"
	"os/exec"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/NativeLang/NativeCIL/compiler/backend"
)

// Assemble spawns nasm against art.AssemblyPath in ELF64 object format,
// surfacing the tool's exit code as a fatal error rather than interpreting
// it.
func (a *Architecture) Assemble(ctx context.Context, art backend.Artifact) (backend.Artifact, error) {
	tr := tlog.SpanFromContext(ctx)

	art.ObjectPath = objPath(art.WorkDir, art.Assembly)

	cmd := exec.CommandContext(ctx, a.nasmPath, "-f", "elf64", "-o", art.ObjectPath, art.AssemblyPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	tr.Printw("assembling", "tool", a.nasmPath, "in", art.AssemblyPath, "out", art.ObjectPath)

	if err := cmd.Run(); err != nil {
		return art, errors.Wrap(err, "nasm %v", art.AssemblyPath)
	}

	return art, nil
}

// Link spawns ld against art.ObjectPath with the freestanding-kernel linker
// script, populating OutputPath. The result is always an ELF executable:
// format is not consulted, and backend.FormatBin (which
// compiler.Options.Validate rejects only together with ImageISO) reaches
// this point and still produces an ELF; no raw flat binary is written.
func (a *Architecture) Link(ctx context.Context, art backend.Artifact, format backend.Format) (backend.Artifact, error) {
	tr := tlog.SpanFromContext(ctx)

	art.OutputPath = outPath(art.WorkDir, art.Assembly)

	scriptPath := art.OutputPath + ".ld"

	if err := os.WriteFile(scriptPath, []byte(linkerScript), 0o644); err != nil {
		return art, errors.Wrap(err, "write linker script %v", scriptPath)
	}

	cmd := exec.CommandContext(ctx, a.ldPath,
		"-n", "-T", scriptPath, "-o", art.OutputPath, art.ObjectPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	tr.Printw("linking", "tool", a.ldPath, "in", art.ObjectPath, "out", art.OutputPath)

	if err := cmd.Run(); err != nil {
		return art, errors.Wrap(err, "ld %v", art.ObjectPath)
	}

	return art, nil
}

// linkerScript places the multiboot2 header first in the image, as Limine
// and other multiboot2 loaders require it within the first 32KiB.
const linkerScript = `ENTRY(_start)

SECTIONS
{
	. = 1M;

	.multiboot : { *(.multiboot) }
	.text : { *(.text) }
	.rodata : { *(.rodata) }
	.data : { *(.data) }
	.bss : { *(COMMON) *(.bss) }
}
`
