package lower

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/NativeLang/NativeCIL/compiler/ir"
	"github.com/NativeLang/NativeCIL/compiler/metadata"
	"github.com/NativeLang/NativeCIL/compiler/names"
	"github.com/NativeLang/NativeCIL/compiler/set"
)

// lowerMethod emits the code label and body for one method: pre-scan for
// branch targets, then walk the body once, emitting a Label just before any
// instruction that a branch targets.
func (c *Compiler) lowerMethod(ctx context.Context, b *builder, t *metadata.TypeDef, m *metadata.MethodDef) error {
	full := t.FullName(m.Name)
	sym := names.SafeName(full)

	tr := tlog.SpanFromContext(ctx)

	b.label(sym)

	hash := names.MethodHash(full)
	if m.MetadataToken != 0 {
		hash = uint16(m.MetadataToken)
	}

	targets := set.MakeBits[int](0)

	for _, in := range m.Body {
		if isBranch(in.Op) {
			targets.Set(in.Target)

			tlog.V("branch_scan").Printw("branch target found", "method", full, "offset", in.Target)
		}
	}

	for _, in := range m.Body {
		if targets.IsSet(in.Offset) {
			b.label(names.BranchLabel(hash, in.Offset))
		}

		b.comment(string(in.Op))

		if err := c.dispatch(b, hash, in); err != nil {
			tr.Printw("unsupported opcode", "method", full, "offset", in.Offset, "op", in.Op, "err", err)

			if c.Strict {
				return errors.Wrap(err, "method %v offset %d", full, in.Offset)
			}

			continue
		}
	}

	return nil
}

func isBranch(op metadata.Opcode) bool {
	switch op {
	case metadata.OpBr, metadata.OpBrtrue, metadata.OpBrfalse,
		metadata.OpBeq, metadata.OpBneUn,
		metadata.OpBlt, metadata.OpBltUn,
		metadata.OpBle, metadata.OpBleUn,
		metadata.OpBgt, metadata.OpBgtUn,
		metadata.OpBge, metadata.OpBgeUn:
		return true
	default:
		return false
	}
}

// dispatch lowers a single bytecode instruction, appending its LIR to b.
// An unsupported opcode returns an error: the caller logs one line and
// moves on, or, when Strict is set, stops and returns it.
func (c *Compiler) dispatch(b *builder, methodHash uint16, in metadata.Instruction) error {
	switch in.Op {
	case metadata.OpNop:
		b.nop()
	case metadata.OpPop:
		b.discard()
	case metadata.OpRet:
		b.ret()

	case metadata.OpLdcI4, metadata.OpLdcI8:
		b.pushImm(in.Int)

	case metadata.OpLdloc:
		b.movRegReg(ir.R(ir.R1, ir.Qword), localSlot(in.Index), ir.Qword, false, true)
		b.pushReg(ir.R1)
	case metadata.OpStloc:
		b.popReg(ir.R1)
		b.movRegReg(localSlot(in.Index), ir.R(ir.R1, ir.Qword), ir.Qword, true, false)

	case metadata.OpLdarg:
		b.movRegReg(ir.R(ir.R1, ir.Qword), argSlot(in.Index), ir.Qword, false, true)
		b.pushReg(ir.R1)
	case metadata.OpStarg:
		b.popReg(ir.R1)
		b.movRegReg(argSlot(in.Index), ir.R(ir.R1, ir.Qword), ir.Qword, true, false)

	case metadata.OpLdsfld:
		sym := names.SafeName(in.Field.FullName)
		b.movRegLabel(ir.R(ir.R1, ir.Qword), sym, ir.Qword, true)
		b.pushReg(ir.R1)
	case metadata.OpStsfld:
		sym := names.SafeName(in.Field.FullName)
		b.popReg(ir.R1)
		b.movLabelReg(sym, ir.R(ir.R1, ir.Qword), ir.Qword)

	case metadata.OpLdstr:
		return c.lowerLdstr(b, in.String)

	case metadata.OpAdd, metadata.OpSub, metadata.OpAnd, metadata.OpOr, metadata.OpXor:
		c.lowerBinary(b, opFor(in.Op))
	case metadata.OpMul:
		c.lowerBinary(b, ir.Mul)
	case metadata.OpShr:
		c.lowerShift(b, ir.Shr)
	case metadata.OpShl:
		c.lowerShift(b, ir.Shl)

	case metadata.OpConvI1, metadata.OpConvU1:
		c.lowerConv(b, 0xFF)
	case metadata.OpConvI2, metadata.OpConvU2:
		c.lowerConv(b, 0xFFFF)
	case metadata.OpConvI4, metadata.OpConvU4, metadata.OpConvI, metadata.OpConvU:
		c.lowerConv(b, 0xFFFFFFFF)
	case metadata.OpConvI8, metadata.OpConvU8:
		// PointerSize is always 8 in this implementation (only amd64 is
		// wired up), so widening to 64 bits is a genuine no-op: the value
		// already occupies a full pointer-sized stack slot. Under a
		// hypothetical 32-bit PointerSize this would need to mask with
		// 0xFFFFFFFF_FFFFFFFF, a degenerate case left unimplemented rather
		// than guessed at, since no 32-bit backend exists to exercise it.

	case metadata.OpStindI1:
		c.lowerStind(b, ir.Byte)
	case metadata.OpStindI2:
		c.lowerStind(b, ir.Word)
	case metadata.OpStindI4:
		c.lowerStind(b, ir.Dword)
	case metadata.OpStindI8:
		c.lowerStind(b, ir.Qword)

	case metadata.OpLdindI1:
		c.lowerLdind(b, ir.Byte, true)
	case metadata.OpLdindU1:
		c.lowerLdind(b, ir.Byte, false)
	case metadata.OpLdindI2:
		c.lowerLdind(b, ir.Word, true)
	case metadata.OpLdindU2:
		c.lowerLdind(b, ir.Word, false)
	case metadata.OpLdindI4:
		c.lowerLdind(b, ir.Dword, true)
	case metadata.OpLdindU4:
		c.lowerLdind(b, ir.Dword, false)
	case metadata.OpLdindI8, metadata.OpLdindU8:
		c.lowerLdind(b, ir.Qword, false)

	case metadata.OpBr:
		b.jmp(names.BranchLabel(methodHash, in.Target), ir.CondNone)
	case metadata.OpBrtrue:
		b.popReg(ir.R1)
		b.cmpRegImm(ir.R(ir.R1, ir.Qword), 0, ir.Qword)
		b.jmp(names.BranchLabel(methodHash, in.Target), ir.NotZero)
	case metadata.OpBrfalse:
		b.popReg(ir.R1)
		b.cmpRegImm(ir.R(ir.R1, ir.Qword), 0, ir.Qword)
		b.jmp(names.BranchLabel(methodHash, in.Target), ir.Zero)

	case metadata.OpBeq:
		c.lowerCondBranch(b, methodHash, in.Target, ir.Equal)
	case metadata.OpBneUn:
		c.lowerCondBranch(b, methodHash, in.Target, ir.NotEqual)
	case metadata.OpBlt, metadata.OpBltUn:
		// Signed and unsigned variants collapse to the same condition
		// code, not silently corrected here. See DESIGN.md.
		c.lowerCondBranch(b, methodHash, in.Target, ir.Less)
	case metadata.OpBle, metadata.OpBleUn:
		c.lowerCondBranch(b, methodHash, in.Target, ir.LessOrEqual)
	case metadata.OpBgt, metadata.OpBgtUn:
		c.lowerCondBranch(b, methodHash, in.Target, ir.Greater)
	case metadata.OpBge, metadata.OpBgeUn:
		c.lowerCondBranch(b, methodHash, in.Target, ir.GreaterOrEqual)

	case metadata.OpCeq:
		c.lowerCompare(b, ir.Equal)
	case metadata.OpClt, metadata.OpCltUn:
		c.lowerCompare(b, ir.Less)
	case metadata.OpCgt, metadata.OpCgtUn:
		c.lowerCompare(b, ir.Greater)

	case metadata.OpCall:
		c.lowerCall(b, in.Method)

	default:
		return errors.New("no lowering rule for opcode %q", in.Op)
	}

	return nil
}

func opFor(op metadata.Opcode) ir.Op {
	switch op {
	case metadata.OpAdd:
		return ir.Add
	case metadata.OpSub:
		return ir.Sub
	case metadata.OpAnd:
		return ir.And
	case metadata.OpOr:
		return ir.Or
	case metadata.OpXor:
		return ir.Xor
	default:
		panic("opFor: not a binary opcode: " + op)
	}
}

// lowerBinary: Pop(R1); Pop(R2); R2 op= R1; Push(R2).
func (c *Compiler) lowerBinary(b *builder, op ir.Op) {
	b.popReg(ir.R1)
	b.popReg(ir.R2)
	b.binop(op, ir.R(ir.R2, ir.Qword), ir.R(ir.R1, ir.Qword), ir.Qword)
	b.pushReg(ir.R2)
}

// lowerShift: the count comes off the stack first (it was pushed last) into
// R5, whose byte view is the x86 shift-count register; the value being
// shifted follows into R2.
func (c *Compiler) lowerShift(b *builder, op ir.Op) {
	b.popReg(ir.R5)
	b.popReg(ir.R2)
	b.emit(ir.Instr{
		Op:    op,
		Flags: (ir.DestRegister | ir.SrcRegister).WithSize(ir.Qword),
		Op1:   ir.RegOperand(ir.R(ir.R2, ir.Qword)),
		Op2:   ir.RegOperand(ir.R(ir.R5, ir.Byte)),
	})
	b.pushReg(ir.R2)
}

// lowerConv: pop, mask, push — narrows the top of stack to the given width.
func (c *Compiler) lowerConv(b *builder, mask int64) {
	b.popReg(ir.R1)
	b.andImm(ir.R(ir.R1, ir.Qword), mask, ir.Qword)
	b.pushReg(ir.R1)
}

// lowerStind: pop value, pop address, store the size-view of the value into
// [address].
func (c *Compiler) lowerStind(b *builder, size ir.Size) {
	b.popReg(ir.R1) // value
	b.popReg(ir.R2) // address
	b.movRegReg(ir.R(ir.R2, size), ir.R(ir.R1, size), size, true, false)
}

// lowerLdind: pop address, load into R1 at the given size, push, then apply
// the narrowing conversion for signed sub-64-bit widths (8-byte variants
// push without narrowing).
func (c *Compiler) lowerLdind(b *builder, size ir.Size, signed bool) {
	b.popReg(ir.R2) // address
	b.movRegReg(ir.R(ir.R1, size), ir.R(ir.R2, ir.Qword), size, false, true)
	b.pushReg(ir.R1)

	if size == ir.Qword {
		return
	}

	if signed {
		mask := map[ir.Size]int64{ir.Byte: 0xFF, ir.Word: 0xFFFF, ir.Dword: 0xFFFFFFFF}[size]
		b.popReg(ir.R1)
		b.andImm(ir.R(ir.R1, ir.Qword), mask, ir.Qword)
		b.pushReg(ir.R1)
	}
}

// lowerCondBranch: Pop(R1); Pop(R2); Cmp R2, R1; Jmp cond, target.
func (c *Compiler) lowerCondBranch(b *builder, methodHash uint16, target int, cond ir.Cond) {
	b.popReg(ir.R1)
	b.popReg(ir.R2)
	b.cmpRegReg(ir.R(ir.R2, ir.Qword), ir.R(ir.R1, ir.Qword), ir.Qword)
	b.jmp(names.BranchLabel(methodHash, target), cond)
}

// lowerCompare: Pop(R1); Pop(R2); Cmp R2, R1; Set cond into R2 (byte),
// zero-extended to a pointer-sized slot before it is pushed (§3's
// invariant that every stack slot is pointer-sized regardless of the
// logical value width).
func (c *Compiler) lowerCompare(b *builder, cond ir.Cond) {
	b.popReg(ir.R1)
	b.popReg(ir.R2)
	b.cmpRegReg(ir.R(ir.R2, ir.Qword), ir.R(ir.R1, ir.Qword), ir.Qword)
	b.set(ir.R(ir.R2, ir.Byte), cond)
	b.andImm(ir.R(ir.R2, ir.Qword), 0xFF, ir.Qword)
	b.pushReg(ir.R2)
}

// lowerCall pops the callee's declared argument count off the caller's
// stack and writes them into the shared argument frame in reverse order
// (slot N-1 first), then emits the call.
func (c *Compiler) lowerCall(b *builder, ref *metadata.MethodRef) {
	if ref == nil {
		return
	}

	for i := ref.ParamCount - 1; i >= 0; i-- {
		b.popReg(ir.R1)
		b.movRegReg(argSlot(i), ir.R(ir.R1, ir.Qword), ir.Qword, true, false)
	}

	b.call(names.SafeName(ref.FullName))
}

// lowerLdstr encodes s as UTF-16LE, allocates the two label symbols the
// blob needs, and emits: load address, push, jump over the blob, blob
// label, Store, continuation label.
func (c *Compiler) lowerLdstr(b *builder, s string) error {
	bytes := utf16le(s)

	blobLabel := names.DataLabel(names.Hash32(bytes))
	contLabel := names.DataLabel(names.Hash32([]byte(s)))

	b.movRegLabel(ir.R(ir.R1, ir.Qword), blobLabel, ir.Qword, false)
	b.pushReg(ir.R1)
	b.jmp(contLabel, ir.CondNone)
	b.label(blobLabel)
	b.store(bytes)
	b.label(contLabel)

	return nil
}

func utf16le(s string) []byte {
	out := make([]byte, 0, len(s)*2)

	for _, r := range s {
		if r <= 0xFFFF {
			out = append(out, byte(r), byte(r>>8))

			continue
		}

		r -= 0x10000
		hi := 0xD800 + (r >> 10)
		lo := 0xDC00 + (r & 0x3FF)
		out = append(out, byte(hi), byte(hi>>8), byte(lo), byte(lo>>8))
	}

	return out
}
