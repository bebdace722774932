package q32

import (
	"math"
	"testing"

	"github.com/lightplayer/lpxc/internal/builtins"
	"github.com/lightplayer/lpxc/internal/ssa"
)

func TestLowerRetypesFloatConstant(t *testing.T) {
	fn := ssa.NewFunction("f", nil, []ssa.Type{ssa.F32})
	b := ssa.NewBuilder(fn)
	c := b.ConstF32(math.Float32bits(1.5))
	b.Return(c)

	mod := &ssa.Module{Functions: []*ssa.Function{fn}}
	if err := Lower(mod); err != nil {
		t.Fatalf("Lower: %v", err)
	}

	instr := fn.Entry().Instrs[0]
	if instr.Type != ssa.I32 {
		t.Fatalf("const type = %v, want i32", instr.Type)
	}
	want := int64(builtins.Encode(1.5))
	if instr.Imm != want {
		t.Fatalf("const imm = %d, want %d", instr.Imm, want)
	}
	if fn.TypeOf(c) != ssa.I32 {
		t.Fatalf("TypeOf(c) = %v, want i32", fn.TypeOf(c))
	}
}

func TestLowerKeepsAddAsIntegerOp(t *testing.T) {
	fn := ssa.NewFunction("f", []ssa.Type{ssa.F32, ssa.F32}, []ssa.Type{ssa.F32})
	b := ssa.NewBuilder(fn)
	e := fn.Entry()
	sum := b.BinOp(ssa.OpAdd, ssa.F32, e.Params[0], e.Params[1])
	b.Return(sum)

	mod := &ssa.Module{Functions: []*ssa.Function{fn}}
	if err := Lower(mod); err != nil {
		t.Fatalf("Lower: %v", err)
	}

	instr := fn.Entry().Instrs[0]
	if instr.Op != ssa.OpAdd {
		t.Fatalf("op = %v, want add", instr.Op)
	}
	if instr.Type != ssa.I32 {
		t.Fatalf("type = %v, want i32", instr.Type)
	}
	if fn.TypeOf(e.Params[0]) != ssa.I32 || fn.TypeOf(e.Params[1]) != ssa.I32 {
		t.Fatalf("params not retyped to i32")
	}
}

func TestLowerRetargetsFloatMultiplyToBuiltinCall(t *testing.T) {
	fn := ssa.NewFunction("f", []ssa.Type{ssa.F32, ssa.F32}, []ssa.Type{ssa.F32})
	b := ssa.NewBuilder(fn)
	e := fn.Entry()
	prod := b.BinOp(ssa.OpMul, ssa.F32, e.Params[0], e.Params[1])
	b.Return(prod)

	mod := &ssa.Module{Functions: []*ssa.Function{fn}}
	if err := Lower(mod); err != nil {
		t.Fatalf("Lower: %v", err)
	}

	instr := fn.Entry().Instrs[0]
	if instr.Op != ssa.OpCall {
		t.Fatalf("op = %v, want call", instr.Op)
	}
	if instr.Symbol != "__lp_q32_mul" {
		t.Fatalf("symbol = %q, want __lp_q32_mul", instr.Symbol)
	}
	if len(instr.Args) != 2 || instr.Args[0] != e.Params[0] || instr.Args[1] != e.Params[1] {
		t.Fatalf("args not preserved: %v", instr.Args)
	}
}

func TestLowerRetargetsLPFXCall(t *testing.T) {
	fn := ssa.NewFunction("f", []ssa.Type{ssa.F32, ssa.F32, ssa.F32}, []ssa.Type{ssa.F32, ssa.F32, ssa.F32})
	b := ssa.NewBuilder(fn)
	e := fn.Entry()
	out := b.Call("__lpfx_hsv2rgb_f32", []ssa.Type{ssa.F32, ssa.F32, ssa.F32}, e.Params[0], e.Params[1], e.Params[2])
	b.Return(out[0], out[1], out[2])

	mod := &ssa.Module{Functions: []*ssa.Function{fn}}
	if err := Lower(mod); err != nil {
		t.Fatalf("Lower: %v", err)
	}

	instr := fn.Entry().Instrs[0]
	if instr.Symbol != "__lpfx_hsv2rgb_q32" {
		t.Fatalf("symbol = %q, want __lpfx_hsv2rgb_q32", instr.Symbol)
	}
	for _, t32 := range instr.Sig {
		if t32 != ssa.I32 {
			t.Fatalf("sig entry = %v, want i32", t32)
		}
	}
}

func TestLowerInlinesAbsAsBranchFreeSequence(t *testing.T) {
	fn := ssa.NewFunction("f", []ssa.Type{ssa.F32}, []ssa.Type{ssa.F32})
	b := ssa.NewBuilder(fn)
	e := fn.Entry()
	out := b.Call("abs", []ssa.Type{ssa.F32}, e.Params[0])
	b.Return(out[0])

	mod := &ssa.Module{Functions: []*ssa.Function{fn}}
	if err := Lower(mod); err != nil {
		t.Fatalf("Lower: %v", err)
	}

	instrs := fn.Entry().Instrs
	for _, instr := range instrs {
		if instr.Op == ssa.OpCall {
			t.Fatalf("abs left as a call: %+v", instr)
		}
	}
	last := instrs[len(instrs)-2] // instr before the terminating return
	if last.ID != out[0] {
		t.Fatalf("final inlined instr id = %d, want %d", last.ID, out[0])
	}
	if fn.TypeOf(out[0]) != ssa.I32 {
		t.Fatalf("abs result type = %v, want i32", fn.TypeOf(out[0]))
	}
}

func TestLowerInlinesFloorAsSingleAnd(t *testing.T) {
	fn := ssa.NewFunction("f", []ssa.Type{ssa.F32}, []ssa.Type{ssa.F32})
	b := ssa.NewBuilder(fn)
	e := fn.Entry()
	out := b.Call("floor", []ssa.Type{ssa.F32}, e.Params[0])
	b.Return(out[0])

	mod := &ssa.Module{Functions: []*ssa.Function{fn}}
	if err := Lower(mod); err != nil {
		t.Fatalf("Lower: %v", err)
	}

	instrs := fn.Entry().Instrs
	var found *ssa.Instr
	for _, instr := range instrs {
		if instr.ID == out[0] {
			found = instr
		}
	}
	if found == nil || found.Op != ssa.OpAnd {
		t.Fatalf("floor result instr = %+v, want and", found)
	}
}

func TestLowerRejectsNothingOnPureIntegerFunction(t *testing.T) {
	fn := ssa.NewFunction("f", []ssa.Type{ssa.I32, ssa.I32}, []ssa.Type{ssa.I32})
	b := ssa.NewBuilder(fn)
	e := fn.Entry()
	sum := b.BinOp(ssa.OpAdd, ssa.I32, e.Params[0], e.Params[1])
	b.Return(sum)

	mod := &ssa.Module{Functions: []*ssa.Function{fn}}
	if err := Lower(mod); err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if fn.Entry().Instrs[0].Op != ssa.OpAdd {
		t.Fatalf("pure-integer add was touched by the float pass")
	}
}

func TestFoldConstantsCollapsesArithmeticChain(t *testing.T) {
	fn := ssa.NewFunction("f", nil, []ssa.Type{ssa.I32})
	b := ssa.NewBuilder(fn)
	a := b.Const(ssa.I32, 2)
	c := b.Const(ssa.I32, 3)
	sum := b.BinOp(ssa.OpAdd, ssa.I32, a, c)
	b.Return(sum)

	mod := &ssa.Module{Functions: []*ssa.Function{fn}}
	if err := Lower(mod); err != nil {
		t.Fatalf("Lower: %v", err)
	}

	instr := fn.Entry().Instrs[2]
	if instr.ID != sum || instr.Op != ssa.OpConst || instr.Imm != 5 {
		t.Fatalf("sum not folded: %+v", instr)
	}
}

func TestPeepholeDropsAddZeroIdentity(t *testing.T) {
	fn := ssa.NewFunction("f", []ssa.Type{ssa.I32}, []ssa.Type{ssa.I32})
	b := ssa.NewBuilder(fn)
	e := fn.Entry()
	zero := b.Const(ssa.I32, 0)
	sum := b.BinOp(ssa.OpAdd, ssa.I32, e.Params[0], zero)
	b.Return(sum)

	mod := &ssa.Module{Functions: []*ssa.Function{fn}}
	if err := Lower(mod); err != nil {
		t.Fatalf("Lower: %v", err)
	}

	ret := fn.Entry().Instrs[len(fn.Entry().Instrs)-1]
	if ret.Op != ssa.OpReturn || ret.Args[0] != e.Params[0] {
		t.Fatalf("return not rewritten to use param directly: %+v", ret)
	}
}
