// Package rvgen is the back end: it lowers an ssa.Module into RV32IMAC
// machine code, either as a relocatable object (for the linker/ELF path)
// or linked directly into a flat byte image ready for the emulator (the
// JIT path). Every function gets its own stack frame; values live in a
// register for their whole lifetime only when that lifetime never crosses
// a block boundary, everything else is a frame slot (see regalloc.go,
// frame.go).
package rvgen

import (
	"fmt"

	"github.com/lightplayer/lpxc/internal/objfile"
	"github.com/lightplayer/lpxc/internal/riscv"
	"github.com/lightplayer/lpxc/internal/ssa"
)

const (
	scratchA = riscv.T0
	scratchB = riscv.T1
	scratchC = riscv.T2
)

// fixup is a not-yet-resolved intra-function branch: its word index and a
// closure that rebuilds the instruction once the target's address is known.
type fixup struct {
	at     int
	target ssa.BlockID
	encode func(rel int32) uint32
}

type funcGen struct {
	fn      *ssa.Function
	frame   *frame
	regs    *regAlloc
	code    []uint32
	labelAt map[ssa.BlockID]int
	fixups  []fixup
	relocs  []objfile.Reloc // offsets are word-index * 4, patched to byte offsets at the end
}

// generateFunction lowers one function to machine code and a symbol plus
// its call relocations, both still relative to the function's own start.
func generateFunction(fn *ssa.Function) (code []uint32, relocs []objfile.Reloc) {
	regs := allocate(fn)
	fr := buildFrame(fn, regs)
	g := &funcGen{fn: fn, frame: fr, regs: regs, labelAt: map[ssa.BlockID]int{}}

	g.emitPrologue()
	blockOrder := fn.Blocks
	for i, b := range blockOrder {
		g.labelAt[b.ID] = len(g.code)
		var fallthroughTo ssa.BlockID
		hasFallthrough := i+1 < len(blockOrder)
		if hasFallthrough {
			fallthroughTo = blockOrder[i+1].ID
		}
		g.emitBlock(b, hasFallthrough, fallthroughTo)
	}
	g.resolveFixups()
	return g.code, g.relocs
}

func (g *funcGen) emit(word uint32) int {
	g.code = append(g.code, word)
	return len(g.code) - 1
}

func (g *funcGen) emitPrologue() {
	g.emit(riscv.ADDI(riscv.Sp, riscv.Sp, -g.frame.size))
	g.emit(riscv.SW(riscv.Sp, riscv.Ra, g.frame.raOffset))
	for i, r := range g.regs.usedCalleeSaved() {
		g.emit(riscv.SW(riscv.Sp, r, g.frame.saveOffset+int32(i)*wordSize))
	}
	entry := g.fn.Entry()
	for i, p := range entry.Params {
		g.emit(riscv.SW(riscv.Sp, riscv.ArgRegs[i], g.frame.slotOffset(p)))
	}
}

func (g *funcGen) emitEpilogue(args []ssa.Value) {
	for i, v := range args {
		r := g.loadOperand(v, scratchA)
		if r != riscv.ArgRegs[i] {
			g.emit(riscv.ADDI(riscv.ArgRegs[i], r, 0))
		}
	}
	for i, r := range g.regs.usedCalleeSaved() {
		g.emit(riscv.LW(r, riscv.Sp, g.frame.saveOffset+int32(i)*wordSize))
	}
	g.emit(riscv.LW(riscv.Ra, riscv.Sp, g.frame.raOffset))
	g.emit(riscv.ADDI(riscv.Sp, riscv.Sp, g.frame.size))
	g.emit(riscv.JALR(riscv.Zero, riscv.Ra, 0))
}

// loadOperand returns a register holding v's current value: its home
// register if it has one, or scratch after loading it from its frame slot.
func (g *funcGen) loadOperand(v ssa.Value, scratch riscv.Reg) riscv.Reg {
	if r, ok := g.regs.reg(v); ok {
		return r
	}
	g.emit(riscv.LW(scratch, riscv.Sp, g.frame.slotOffset(v)))
	return scratch
}

// destReg returns the register an instruction defining v should compute
// directly into: its home register, or scratch if v must be spilled.
func (g *funcGen) destReg(v ssa.Value, scratch riscv.Reg) riscv.Reg {
	if r, ok := g.regs.reg(v); ok {
		return r
	}
	return scratch
}

// commitResult stores scratch into v's frame slot if v has no home
// register (a no-op when destReg already returned v's home).
func (g *funcGen) commitResult(v ssa.Value, reg riscv.Reg) {
	if _, ok := g.regs.reg(v); ok {
		return
	}
	g.emit(riscv.SW(riscv.Sp, reg, g.frame.slotOffset(v)))
}

func (g *funcGen) emitBlock(b *ssa.Block, hasFallthrough bool, fallthroughTo ssa.BlockID) {
	for _, instr := range b.Instrs {
		g.emitInstr(instr, hasFallthrough, fallthroughTo)
	}
}

func (g *funcGen) emitInstr(instr *ssa.Instr, hasFallthrough bool, fallthroughTo ssa.BlockID) {
	switch instr.Op {
	case ssa.OpConst:
		dst := g.destReg(instr.ID, scratchA)
		g.emitLoadImmediate(dst, int32(instr.Imm))
		g.commitResult(instr.ID, dst)

	case ssa.OpAdd, ssa.OpSub, ssa.OpMul, ssa.OpDiv, ssa.OpRem,
		ssa.OpAnd, ssa.OpOr, ssa.OpXor, ssa.OpShl, ssa.OpShr:
		x := g.loadOperand(instr.Args[0], scratchA)
		y := g.loadOperand(instr.Args[1], scratchB)
		dst := g.destReg(instr.ID, scratchC)
		g.emitArith(instr.Op, instr.Type, dst, x, y)
		g.commitResult(instr.ID, dst)

	case ssa.OpNeg:
		x := g.loadOperand(instr.Args[0], scratchA)
		dst := g.destReg(instr.ID, scratchC)
		g.emit(riscv.SUB(dst, riscv.Zero, x))
		g.commitResult(instr.ID, dst)

	case ssa.OpNot:
		x := g.loadOperand(instr.Args[0], scratchA)
		dst := g.destReg(instr.ID, scratchC)
		g.emit(riscv.XORI(dst, x, -1))
		g.commitResult(instr.ID, dst)

	case ssa.OpCmpEq, ssa.OpCmpNe, ssa.OpCmpLt, ssa.OpCmpLe, ssa.OpCmpGt, ssa.OpCmpGe:
		x := g.loadOperand(instr.Args[0], scratchA)
		y := g.loadOperand(instr.Args[1], scratchB)
		dst := g.destReg(instr.ID, scratchC)
		g.emitCmp(instr, dst, x, y)
		g.commitResult(instr.ID, dst)

	case ssa.OpLoad:
		ptr := g.loadOperand(instr.Args[0], scratchC)
		dst := g.destReg(instr.ID, scratchA)
		g.emit(riscv.LW(dst, ptr, instr.Offset))
		g.commitResult(instr.ID, dst)

	case ssa.OpStore:
		ptr := g.loadOperand(instr.Args[0], scratchC)
		val := g.loadOperand(instr.Args[1], scratchA)
		g.emit(riscv.SW(ptr, val, instr.Offset))

	case ssa.OpStackSlot:
		dst := g.destReg(instr.ID, scratchA)
		g.emit(riscv.ADDI(dst, riscv.Sp, g.frame.allocOffset(instr.ID)))
		g.commitResult(instr.ID, dst)

	case ssa.OpBr:
		g.emitEdge(instr.Succs[0], hasFallthrough, fallthroughTo)

	case ssa.OpCondBr:
		g.emitCondBr(instr, hasFallthrough, fallthroughTo)

	case ssa.OpCall:
		g.emitCall(instr)

	case ssa.OpCallIndirect:
		g.emitCallIndirect(instr)

	case ssa.OpReturn:
		g.emitEpilogue(instr.Args)

	default:
		panic(fmt.Sprintf("rvgen: unhandled op %s", instr.Op))
	}
}

func (g *funcGen) emitArith(op ssa.Op, t ssa.Type, dst, x, y riscv.Reg) {
	unsigned := t == ssa.U32
	switch op {
	case ssa.OpAdd:
		g.emit(riscv.ADD(dst, x, y))
	case ssa.OpSub:
		g.emit(riscv.SUB(dst, x, y))
	case ssa.OpMul:
		g.emit(riscv.MUL(dst, x, y))
	case ssa.OpDiv:
		if unsigned {
			g.emit(riscv.DIVU(dst, x, y))
		} else {
			g.emit(riscv.DIV(dst, x, y))
		}
	case ssa.OpRem:
		if unsigned {
			g.emit(riscv.REMU(dst, x, y))
		} else {
			g.emit(riscv.REM(dst, x, y))
		}
	case ssa.OpAnd:
		g.emit(riscv.AND(dst, x, y))
	case ssa.OpOr:
		g.emit(riscv.OR(dst, x, y))
	case ssa.OpXor:
		g.emit(riscv.XOR(dst, x, y))
	case ssa.OpShl:
		g.emit(riscv.SLL(dst, x, y))
	case ssa.OpShr:
		if unsigned {
			g.emit(riscv.SRL(dst, x, y))
		} else {
			g.emit(riscv.SRA(dst, x, y))
		}
	}
}

// emitCmp lowers a comparison to 0/1 using SLT/SLTU and, for the ops SLT
// has no direct encoding for, one XORI to invert the sense.
func (g *funcGen) emitCmp(instr *ssa.Instr, dst, x, y riscv.Reg) {
	unsigned := instr.Type == ssa.U32 || instr.Type == ssa.Ptr
	slt := func(d, a, b riscv.Reg) uint32 {
		if unsigned {
			return riscv.SLTU(d, a, b)
		}
		return riscv.SLT(d, a, b)
	}
	switch instr.Op {
	case ssa.OpCmpLt:
		g.emit(slt(dst, x, y))
	case ssa.OpCmpGt:
		g.emit(slt(dst, y, x))
	case ssa.OpCmpLe:
		g.emit(slt(dst, y, x))
		g.emit(riscv.XORI(dst, dst, 1))
	case ssa.OpCmpGe:
		g.emit(slt(dst, x, y))
		g.emit(riscv.XORI(dst, dst, 1))
	case ssa.OpCmpEq:
		g.emit(riscv.SUB(dst, x, y))
		g.emit(riscv.SLTIU(dst, dst, 1))
	case ssa.OpCmpNe:
		g.emit(riscv.SUB(dst, x, y))
		g.emit(riscv.SLTU(dst, riscv.Zero, dst))
	}
}

// emitLoadImmediate materialises a 32-bit constant into dst, using a single
// ADDI when it fits in 12 signed bits and the LUI+ADDI pair otherwise.
func (g *funcGen) emitLoadImmediate(dst riscv.Reg, imm int32) {
	if imm >= -2048 && imm <= 2047 {
		g.emit(riscv.ADDI(dst, riscv.Zero, imm))
		return
	}
	hi, lo := splitHiLo32(imm)
	g.emit(riscv.LUI(dst, hi))
	if lo != 0 {
		g.emit(riscv.ADDI(dst, dst, lo))
	}
}

// splitHiLo32 computes (hi, lo) such that hi + signExtend(lo,12) == v and hi
// is already positioned for riscv.LUI's imm parameter (bits 31:12 set).
func splitHiLo32(v int32) (hi, lo int32) {
	lo = v << 20 >> 20
	hi = (v - lo) &^ 0xfff
	return hi, lo
}

// moveEdgeArgs copies every argument of e into the corresponding parameter
// slot of its target block. Every block parameter is always frame-resident
// (see regalloc.go), so this is always a sequence of independent stores,
// never a parallel-move hazard.
func (g *funcGen) moveEdgeArgs(e ssa.Edge) {
	target := g.fn.Block(e.Block)
	for i, arg := range e.Args {
		r := g.loadOperand(arg, scratchA)
		g.emit(riscv.SW(riscv.Sp, r, g.frame.slotOffset(target.Params[i])))
	}
}

func (g *funcGen) emitEdge(e ssa.Edge, hasFallthrough bool, fallthroughTo ssa.BlockID) {
	g.moveEdgeArgs(e)
	if hasFallthrough && e.Block == fallthroughTo {
		return
	}
	at := g.emit(riscv.JAL(riscv.Zero, 0))
	g.fixups = append(g.fixups, fixup{at: at, target: e.Block, encode: func(rel int32) uint32 {
		return riscv.JAL(riscv.Zero, rel)
	}})
}

// emitCondBr lowers a two-edge branch as:
//
//	beq  cond, zero, elseLabel
//	<move true-edge args>
//	jal  trueTarget
//  elseLabel:
//	<move false-edge args>
//	jal  falseTarget            ; or fallthrough if falseTarget is next
//
// elseLabel is resolved immediately since it's always the very next
// instruction once the true edge is emitted; only the two jal targets need
// the deferred fixup mechanism used elsewhere.
func (g *funcGen) emitCondBr(instr *ssa.Instr, hasFallthrough bool, fallthroughTo ssa.BlockID) {
	cond := g.loadOperand(instr.Args[0], scratchA)
	trueEdge, falseEdge := instr.Succs[0], instr.Succs[1]

	beqAt := g.emit(riscv.BEQ(cond, riscv.Zero, 0))
	g.emitEdge(trueEdge, false, 0)
	elsePos := len(g.code)
	g.code[beqAt] = riscv.BEQ(cond, riscv.Zero, int32(elsePos-beqAt)*4)
	g.emitEdge(falseEdge, hasFallthrough, fallthroughTo)
}

func (g *funcGen) resolveFixups() {
	for _, f := range g.fixups {
		target := g.labelAt[f.target]
		rel := int32(target-f.at) * 4
		g.code[f.at] = f.encode(rel)
	}
}

func (g *funcGen) emitCall(instr *ssa.Instr) {
	for i, arg := range instr.Args {
		r := g.loadOperand(arg, scratchA)
		if r != riscv.ArgRegs[i] {
			g.emit(riscv.ADDI(riscv.ArgRegs[i], r, 0))
		}
	}
	at := g.emit(riscv.AUIPC(riscv.Ra, 0))
	g.relocs = append(g.relocs, objfile.Reloc{Offset: uint32(at) * 4, Symbol: instr.Symbol, Type: objfile.RRISCVCall})
	g.emit(riscv.JALR(riscv.Ra, riscv.Ra, 0))
	g.storeCallResults(instr)
}

func (g *funcGen) emitCallIndirect(instr *ssa.Instr) {
	callee := g.loadOperand(instr.Args[0], scratchC)
	for i, arg := range instr.Args[1:] {
		r := g.loadOperand(arg, scratchA)
		if r != riscv.ArgRegs[i] {
			g.emit(riscv.ADDI(riscv.ArgRegs[i], r, 0))
		}
	}
	g.emit(riscv.JALR(riscv.Ra, callee, 0))
	g.storeCallResults(instr)
}

func (g *funcGen) storeCallResults(instr *ssa.Instr) {
	if instr.ID == ssa.NoValue {
		return
	}
	for i := range instr.Sig {
		v := instr.ID + ssa.Value(i)
		dst := g.destReg(v, scratchA)
		if dst != riscv.ArgRegs[i] {
			g.emit(riscv.ADDI(dst, riscv.ArgRegs[i], 0))
		}
		g.commitResult(v, dst)
	}
}
