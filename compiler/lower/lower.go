// Package lower implements the frontend lowerer: it walks a metadata.Module
// and produces the ordered LIR sequence (compiler/ir.Unit) the backend
// consumes.
package lower

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/NativeLang/NativeCIL/compiler/ir"
	"github.com/NativeLang/NativeCIL/compiler/metadata"
	"github.com/NativeLang/NativeCIL/compiler/names"
	"github.com/NativeLang/NativeCIL/compiler/set"
)

// hashSpace bounds the method-hash collision bitmap: names.MethodHash
// returns a uint16, so every possible hash fits.
const hashSpace = 1 << 16

// Compiler is the frontend lowerer. It holds no state between calls to
// Compile beyond the strict-mode toggle.
type Compiler struct {
	// Strict upgrades an unsupported opcode from a logged skip to a fatal
	// error returned from Compile.
	Strict bool
}

// New constructs a Compiler. strict upgrades an unsupported opcode from a
// logged skip to a fatal error.
func New(strict bool) *Compiler { return &Compiler{Strict: strict} }

// Compile lowers mod into a compilation unit. An unimplemented opcode is
// logged and skipped rather than treated as fatal, unless Strict is set, in
// which case Compile returns the first one it hits; the returned Unit may
// therefore be semantically incomplete even on a nil error when Strict is
// false.
func (c *Compiler) Compile(ctx context.Context, mod *metadata.Module) (*ir.Unit, error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "lower module", "assembly", mod.Name)
	defer tr.Finish()

	b := &builder{}

	unit := &ir.Unit{Assembly: names.SafeName(mod.Name)}

	c.emitPrologue(ctx, b, mod, unit)
	c.emitStaticFields(b, mod)

	seenHash := set.MakeBitmap(hashSpace)

	for _, t := range mod.Types {
		for _, m := range t.Methods {
			full := t.FullName(m.Name)
			hash := names.MethodHash(full)

			if m.MetadataToken == 0 {
				if seenHash.IsSet(int(hash)) {
					tr.Printw("method hash collision, branch labels may clash", "method", full, "hash", hash)
				}

				seenHash.Set(int(hash))
			}

			if err := c.lowerMethod(ctx, b, t, m); err != nil {
				return nil, err
			}
		}
	}

	unit.Instrs = b.instrs

	tr.Printw("lowered", "instrs", len(unit.Instrs), "entry", unit.Entry)

	return unit, nil
}

// emitPrologue emits one Call per constructor/static-constructor method in
// source order, then a Call to the entry point. Static initialization must
// be staged at the top of execution since the generated kernel has no
// runtime.
func (c *Compiler) emitPrologue(ctx context.Context, b *builder, mod *metadata.Module, unit *ir.Unit) {
	tr := tlog.SpanFromContext(ctx)

	var entry *metadata.MethodDef
	var entryType *metadata.TypeDef

	for _, t := range mod.Types {
		for _, m := range t.Methods {
			if m.IsConstructor || m.IsStaticCtor {
				b.call(names.SafeName(t.FullName(m.Name)))
			}

			if m.IsEntryPoint {
				entry, entryType = m, t
			}
		}
	}

	if entry == nil {
		tr.Printw("no entry point method found", "assembly", mod.Name)

		return
	}

	unit.Entry = names.SafeName(entryType.FullName(entry.Name))
	b.call(unit.Entry)
}

// emitStaticFields emits a pointer-sized data Label for every static field,
// in type-then-field source order.
func (c *Compiler) emitStaticFields(b *builder, mod *metadata.Module) {
	for _, t := range mod.Types {
		for _, f := range t.Fields {
			if !f.IsStatic {
				continue
			}

			b.dataLabel(names.SafeName(f.FullName(t)), f.Initial)
		}
	}
}
