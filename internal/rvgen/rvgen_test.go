package rvgen

import (
	"testing"

	"github.com/lightplayer/lpxc/internal/builtins"
	"github.com/lightplayer/lpxc/internal/emulator"
	"github.com/lightplayer/lpxc/internal/linker"
	"github.com/lightplayer/lpxc/internal/riscv"
	"github.com/lightplayer/lpxc/internal/ssa"
)

const sentinel = 0xffff0000

func runFunction(t *testing.T, mod *ssa.Module, fnName string, args []uint32, nReturns int) []uint32 {
	t.Helper()
	obj := Compile(mod)
	l := linker.NewLinker(0, 4)
	l.AddObject(obj)
	img, err := l.Link()
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	addr, ok := img.Symbols[fnName]
	if !ok {
		t.Fatalf("symbol %s not linked", fnName)
	}
	mem := emulator.NewMemory(uint32(len(img.Data)) + 4096)
	copy(mem.Bytes(), img.Data)

	cpu := emulator.NewCPU(mem, emulator.Options{InstrLimit: 100000})
	cpu.SetReg(riscv.Sp, mem.Size()&^15)
	cpu.SetPC(addr)
	for i, a := range args {
		cpu.SetReg(riscv.ArgRegs[i], a)
	}
	if tr := cpu.RunUntilReturn(sentinel); tr != nil {
		t.Fatalf("%s trapped: %v", fnName, tr)
	}
	out := make([]uint32, nReturns)
	for i := range out {
		out[i] = cpu.Reg(riscv.ArgRegs[i])
	}
	return out
}

func TestCompileAddFunction(t *testing.T) {
	fn := ssa.NewFunction("add", []ssa.Type{ssa.I32, ssa.I32}, []ssa.Type{ssa.I32})
	fn.Exported = true
	b := ssa.NewBuilder(fn)
	entry := fn.Entry()
	sum := b.BinOp(ssa.OpAdd, ssa.I32, entry.Params[0], entry.Params[1])
	b.Return(sum)

	mod := &ssa.Module{Functions: []*ssa.Function{fn}}
	out := runFunction(t, mod, "add", []uint32{7, 35}, 1)
	if int32(out[0]) != 42 {
		t.Fatalf("add(7,35) = %d, want 42", int32(out[0]))
	}
}

func TestCompileCondBrSelectsMax(t *testing.T) {
	fn := ssa.NewFunction("max", []ssa.Type{ssa.I32, ssa.I32}, []ssa.Type{ssa.I32})
	fn.Exported = true
	b := ssa.NewBuilder(fn)
	entry := fn.Entry()
	join := b.NewBlock(ssa.I32)

	cond := b.Cmp(ssa.OpCmpGe, entry.Params[0], entry.Params[1])
	b.CondBr(cond, join.ID, []ssa.Value{entry.Params[0]}, join.ID, []ssa.Value{entry.Params[1]})

	b.SetBlock(join)
	b.Return(join.Params[0])

	mod := &ssa.Module{Functions: []*ssa.Function{fn}}

	out := runFunction(t, mod, "max", []uint32{uint32(int32(3)), uint32(int32(9))}, 1)
	if int32(out[0]) != 9 {
		t.Fatalf("max(3,9) = %d, want 9", int32(out[0]))
	}
	negOne, negNine := int32(-1), int32(-9)
	out = runFunction(t, mod, "max", []uint32{uint32(negOne), uint32(negNine)}, 1)
	if int32(out[0]) != -1 {
		t.Fatalf("max(-1,-9) = %d, want -1", int32(out[0]))
	}
}

func TestCompileLoopAccumulatesSum(t *testing.T) {
	fn := ssa.NewFunction("sumTo", []ssa.Type{ssa.I32}, []ssa.Type{ssa.I32})
	fn.Exported = true
	b := ssa.NewBuilder(fn)
	entry := fn.Entry()

	loop := b.NewBlock(ssa.I32, ssa.I32) // params: i, acc
	body := b.NewBlock(ssa.I32, ssa.I32) // params: i, acc (post-check copy target)
	done := b.NewBlock(ssa.I32)          // params: acc

	one := b.Const(ssa.I32, 1)
	zero := b.Const(ssa.I32, 0)
	b.Br(loop.ID, zero, zero)

	b.SetBlock(loop)
	i0, acc0 := loop.Params[0], loop.Params[1]
	cond := b.Cmp(ssa.OpCmpGt, i0, entry.Params[0])
	b.CondBr(cond, done.ID, []ssa.Value{acc0}, body.ID, []ssa.Value{i0, acc0})

	b.SetBlock(body)
	i1, acc1 := body.Params[0], body.Params[1]
	nextAcc := b.BinOp(ssa.OpAdd, ssa.I32, acc1, i1)
	nextI := b.BinOp(ssa.OpAdd, ssa.I32, i1, one)
	b.Br(loop.ID, nextI, nextAcc)

	b.SetBlock(done)
	b.Return(done.Params[0])

	mod := &ssa.Module{Functions: []*ssa.Function{fn}}
	out := runFunction(t, mod, "sumTo", []uint32{5}, 1)
	if int32(out[0]) != 15 {
		t.Fatalf("sumTo(5) = %d, want 15", int32(out[0]))
	}
}

func TestCompileCallBetweenFunctions(t *testing.T) {
	square := ssa.NewFunction("square", []ssa.Type{ssa.I32}, []ssa.Type{ssa.I32})
	sb := ssa.NewBuilder(square)
	se := square.Entry()
	sq := sb.BinOp(ssa.OpMul, ssa.I32, se.Params[0], se.Params[0])
	sb.Return(sq)

	caller := ssa.NewFunction("sumOfSquares", []ssa.Type{ssa.I32, ssa.I32}, []ssa.Type{ssa.I32})
	caller.Exported = true
	cb := ssa.NewBuilder(caller)
	ce := caller.Entry()
	r1 := cb.Call("square", []ssa.Type{ssa.I32}, ce.Params[0])
	r2 := cb.Call("square", []ssa.Type{ssa.I32}, ce.Params[1])
	sum := cb.BinOp(ssa.OpAdd, ssa.I32, r1[0], r2[0])
	cb.Return(sum)

	mod := &ssa.Module{Functions: []*ssa.Function{square, caller}}
	out := runFunction(t, mod, "sumOfSquares", []uint32{3, 4}, 1)
	if int32(out[0]) != 25 {
		t.Fatalf("sumOfSquares(3,4) = %d, want 25", int32(out[0]))
	}
}

func TestCompileIntegerDivisionEdgeCases(t *testing.T) {
	fn := ssa.NewFunction("div", []ssa.Type{ssa.I32, ssa.I32}, []ssa.Type{ssa.I32})
	fn.Exported = true
	b := ssa.NewBuilder(fn)
	e := fn.Entry()
	q := b.BinOp(ssa.OpDiv, ssa.I32, e.Params[0], e.Params[1])
	b.Return(q)
	mod := &ssa.Module{Functions: []*ssa.Function{fn}}

	out := runFunction(t, mod, "div", []uint32{uint32(int32(5)), 0}, 1)
	if int32(out[0]) != -1 {
		t.Fatalf("5/0 = %d, want -1", int32(out[0]))
	}
}

func TestJITLinkRunsAgainstBuiltins(t *testing.T) {
	fn := ssa.NewFunction("useMul", []ssa.Type{ssa.I32, ssa.I32}, []ssa.Type{ssa.I32})
	fn.Exported = true
	b := ssa.NewBuilder(fn)
	e := fn.Entry()
	r := b.Call("__lp_q32_mul", []ssa.Type{ssa.I32}, e.Params[0], e.Params[1])
	b.Return(r[0])

	mod := &ssa.Module{
		Functions: []*ssa.Function{fn},
		Externs:   []ssa.ExternFunc{{Symbol: "__lp_q32_mul", Params: []ssa.Type{ssa.I32, ssa.I32}, Returns: []ssa.Type{ssa.I32}}},
	}

	img, err := JITLink(mod, JITOptions{})
	if err != nil {
		t.Fatalf("JITLink: %v", err)
	}
	addr, ok := img.Symbols["useMul"]
	if !ok {
		t.Fatalf("useMul not linked")
	}

	mem := emulator.NewMemory(uint32(len(img.Data)) + 4096)
	copy(mem.Bytes(), img.Data)
	cpu := emulator.NewCPU(mem, emulator.Options{
		InstrLimit:   100000,
		HostCallback: builtins.Dispatch,
	})
	cpu.SetReg(riscv.Sp, mem.Size()&^15)
	cpu.SetPC(addr)
	cpu.SetReg(riscv.A0, uint32(int32(2<<16))) // Q32 2.0
	cpu.SetReg(riscv.A1, uint32(int32(3<<16))) // Q32 3.0
	if tr := cpu.RunUntilReturn(sentinel); tr != nil {
		t.Fatalf("useMul trapped: %v", tr)
	}
	got := int32(cpu.Reg(riscv.A0))
	if got != 6<<16 {
		t.Fatalf("useMul(2,3) = %#x, want %#x", got, 6<<16)
	}
}
