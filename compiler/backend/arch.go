// Package backend defines the architecture-backend interface: the only
// polymorphism in the pipeline. A concrete architecture
// (compiler/backend/amd64) lowers an ir.Unit to assembly text and drives
// the external assembler and linker.
package backend

import (
	"context"

	"github.com/NativeLang/NativeCIL/compiler/ir"
)

// Format selects the shape of the emitted output.
type Format int

const (
	// FormatBin is a raw flat binary, incompatible with ImageISO.
	FormatBin Format = iota
	// FormatELF is a linked ELF executable.
	FormatELF
)

// Artifact is the set of files a backend produces for one compilation unit.
type Artifact struct {
	WorkDir      string
	Assembly     string
	AssemblyPath string
	ObjectPath   string
	OutputPath   string
}

// Arch is the small interface every target architecture implements. Only
// amd64 is realized in this repository; compiler/lower sizes abstract-stack
// slots from the shared constant ir.PointerSize (8) rather than a constant
// of its own.
type Arch interface {
	// Initialize prepares any per-run state (working directory, tool paths).
	Initialize(ctx context.Context, workDir string) error

	// Compile emits assembly text for unit into workDir and returns the
	// artifact paths populated so far (AssemblyPath only).
	Compile(ctx context.Context, unit *ir.Unit, workDir string) (Artifact, error)

	// Assemble spawns the external assembler against art.AssemblyPath,
	// populating ObjectPath.
	Assemble(ctx context.Context, art Artifact) (Artifact, error)

	// Link spawns the external linker against art.ObjectPath according to
	// format, populating OutputPath.
	Link(ctx context.Context, art Artifact, format Format) (Artifact, error)
}
