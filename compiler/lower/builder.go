package lower

import "github.com/NativeLang/NativeCIL/compiler/ir"

// builder accumulates the LIR instruction sequence for one compilation unit
// and implements the abstract-stack, local-slot and argument-slot
// bookkeeping the lowerer needs. It never mutates a Reg's displacement in
// place; ir.Reg.At always returns a copy.
type builder struct {
	instrs []ir.Instr
}

func (b *builder) emit(in ir.Instr) {
	b.instrs = append(b.instrs, in)
}

func (b *builder) comment(text string) {
	b.emit(ir.Instr{Op: ir.Comment, Flags: ir.FlagNone, Op1: ir.TextOperand(text)})
}

func (b *builder) label(name string) {
	b.emit(ir.Instr{Op: ir.Label, Flags: ir.FlagNone, Op1: ir.LabelOp(name)})
}

// dataLabel declares a pointer-sized data slot with an initial value, used
// for static fields.
func (b *builder) dataLabel(name string, initial int64) {
	b.emit(ir.Instr{
		Op:    ir.Label,
		Flags: ir.SizeFlag(ir.Qword),
		Op1:   ir.LabelOp(name),
		Op2:   ir.ImmOperand(initial),
	})
}

func (b *builder) call(target string) {
	b.emit(ir.Instr{
		Op:    ir.Call,
		Flags: ir.LabelOperand,
		Op1:   ir.LabelOp(target),
	})
}

func (b *builder) jmp(target string, cond ir.Cond) {
	b.emit(ir.Instr{
		Op:    ir.Jmp,
		Flags: ir.LabelOperand.WithCond(cond),
		Op1:   ir.LabelOp(target),
	})
}

func (b *builder) ret() {
	b.emit(ir.Instr{Op: ir.Ret, Flags: ir.FlagNone})
}

func (b *builder) nop() {
	b.emit(ir.Instr{Op: ir.Nop, Flags: ir.FlagNone})
}

func (b *builder) store(bytes []byte) {
	b.emit(ir.Instr{Op: ir.Store, Flags: ir.FlagNone, Op1: ir.BytesOperand(bytes)})
}

// movRegReg emits dst <- src at the given size, dereferencing whichever
// side (or both) srcPointer/dstPointer requests.
func (b *builder) movRegReg(dst, src ir.Reg, size ir.Size, dstPointer, srcPointer bool) {
	flags := ir.DestRegister | ir.SrcRegister
	if dstPointer {
		flags |= ir.DestPointer
	}
	if srcPointer {
		flags |= ir.SrcPointer
	}

	b.emit(ir.Instr{
		Op:    ir.Mov,
		Flags: flags.WithSize(size),
		Op1:   ir.RegOperand(ir.R(dst.ID, size).At(dst.Disp)),
		Op2:   ir.RegOperand(ir.R(src.ID, size).At(src.Disp)),
	})
}

// movRegImm emits dst <- imm at the given size; dstPointer selects [dst].
func (b *builder) movRegImm(dst ir.Reg, imm int64, size ir.Size, dstPointer bool) {
	flags := ir.DestRegister | ir.Immediate
	if dstPointer {
		flags |= ir.DestPointer
	}

	b.emit(ir.Instr{
		Op:    ir.Mov,
		Flags: flags.WithSize(size),
		Op1:   ir.RegOperand(ir.R(dst.ID, size).At(dst.Disp)),
		Op2:   ir.ImmOperand(imm),
	})
}

// movRegLabel emits dst <- addr-of label (labelPointer=false) or
// dst <- [label] (labelPointer=true).
func (b *builder) movRegLabel(dst ir.Reg, label string, size ir.Size, labelPointer bool) {
	flags := ir.DestRegister | ir.LabelOperand
	if labelPointer {
		flags |= ir.SrcPointer
	}

	b.emit(ir.Instr{
		Op:    ir.Mov,
		Flags: flags.WithSize(size),
		Op1:   ir.RegOperand(ir.R(dst.ID, size).At(dst.Disp)),
		Op2:   ir.LabelOp(label),
	})
}

// movLabelReg emits [label] <- src, used by stsfld.
func (b *builder) movLabelReg(label string, src ir.Reg, size ir.Size) {
	b.emit(ir.Instr{
		Op:    ir.Mov,
		Flags: (ir.LabelOperand | ir.DestPointer | ir.SrcRegister).WithSize(size),
		Op1:   ir.LabelOp(label),
		Op2:   ir.RegOperand(ir.R(src.ID, size).At(src.Disp)),
	})
}

func (b *builder) binop(op ir.Op, dst, src ir.Reg, size ir.Size) {
	b.emit(ir.Instr{
		Op:    op,
		Flags: (ir.DestRegister | ir.SrcRegister).WithSize(size),
		Op1:   ir.RegOperand(ir.R(dst.ID, size).At(dst.Disp)),
		Op2:   ir.RegOperand(ir.R(src.ID, size).At(src.Disp)),
	})
}

func (b *builder) andImm(dst ir.Reg, mask int64, size ir.Size) {
	b.emit(ir.Instr{
		Op:    ir.And,
		Flags: (ir.DestRegister | ir.Immediate).WithSize(size),
		Op1:   ir.RegOperand(ir.R(dst.ID, size).At(dst.Disp)),
		Op2:   ir.UImmOperand(uint64(mask)),
	})
}

func (b *builder) cmpRegReg(l, r ir.Reg, size ir.Size) {
	b.emit(ir.Instr{
		Op:    ir.Cmp,
		Flags: (ir.DestRegister | ir.SrcRegister).WithSize(size),
		Op1:   ir.RegOperand(ir.R(l.ID, size).At(l.Disp)),
		Op2:   ir.RegOperand(ir.R(r.ID, size).At(r.Disp)),
	})
}

func (b *builder) cmpRegImm(l ir.Reg, imm int64, size ir.Size) {
	b.emit(ir.Instr{
		Op:    ir.Cmp,
		Flags: (ir.DestRegister | ir.Immediate).WithSize(size),
		Op1:   ir.RegOperand(ir.R(l.ID, size).At(l.Disp)),
		Op2:   ir.ImmOperand(imm),
	})
}

func (b *builder) set(dst ir.Reg, cond ir.Cond) {
	b.emit(ir.Instr{
		Op:    ir.Set,
		Flags: ir.DestRegister.WithSize(ir.Byte).WithCond(cond),
		Op1:   ir.RegOperand(ir.R(dst.ID, ir.Byte).At(dst.Disp)),
	})
}

// --- abstract stack discipline --------------------------------------------

var sp = ir.R(ir.R0, ir.Qword)

// pushReg: R0 += PointerSize; [R0] <- r
func (b *builder) pushReg(r ir.RegID) {
	b.emit(ir.Instr{
		Op:    ir.Add,
		Flags: (ir.DestRegister | ir.Immediate).WithSize(ir.Qword),
		Op1:   ir.RegOperand(sp),
		Op2:   ir.ImmOperand(ir.PointerSize),
	})
	b.movRegReg(sp, ir.R(r, ir.Qword), ir.Qword, true, false)
}

// pushImm: R0 += PointerSize; [R0] <- imm
func (b *builder) pushImm(v int64) {
	b.emit(ir.Instr{
		Op:    ir.Add,
		Flags: (ir.DestRegister | ir.Immediate).WithSize(ir.Qword),
		Op1:   ir.RegOperand(sp),
		Op2:   ir.ImmOperand(ir.PointerSize),
	})
	b.movRegImm(sp, v, ir.Qword, true)
}

// popReg: r <- [R0]; R0 -= PointerSize
func (b *builder) popReg(r ir.RegID) {
	b.movRegReg(ir.R(r, ir.Qword), sp, ir.Qword, false, true)
	b.emit(ir.Instr{
		Op:    ir.Sub,
		Flags: (ir.DestRegister | ir.Immediate).WithSize(ir.Qword),
		Op1:   ir.RegOperand(sp),
		Op2:   ir.ImmOperand(ir.PointerSize),
	})
}

// discard drops the top of the abstract stack without loading it anywhere.
func (b *builder) discard() {
	b.emit(ir.Instr{
		Op:    ir.Sub,
		Flags: (ir.DestRegister | ir.Immediate).WithSize(ir.Qword),
		Op1:   ir.RegOperand(sp),
		Op2:   ir.ImmOperand(ir.PointerSize),
	})
}

// localSlot/argSlot return the memory operand for local/argument slot i.
func localSlot(i int) ir.Reg {
	return ir.R(ir.R3, ir.Qword).At(int32(i) * ir.PointerSize)
}

func argSlot(i int) ir.Reg {
	return ir.R(ir.R4, ir.Qword).At(int32(i) * ir.PointerSize)
}
