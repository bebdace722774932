package fgen

import (
	"testing"

	"github.com/lightplayer/lpxc/internal/parser"
	"github.com/lightplayer/lpxc/internal/sema"
	"github.com/lightplayer/lpxc/internal/source"
	"github.com/lightplayer/lpxc/internal/ssa"
)

func lower(t *testing.T, src string) *ssa.Module {
	t.Helper()
	var diags source.DiagnosticSet
	file := parser.Parse("test.glsl", []byte(src), &diags)
	tmod := sema.Analyze(file, &diags)
	if !diags.Empty() {
		t.Fatalf("unexpected diagnostics: %v", diags.All())
	}
	mod, err := Lower(tmod)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	return mod
}

func findFunc(t *testing.T, mod *ssa.Module, name string) *ssa.Function {
	t.Helper()
	fn, ok := mod.FindFunction(name)
	if !ok {
		t.Fatalf("function %s not lowered", name)
	}
	return fn
}

func TestLowerIntAdd(t *testing.T) {
	mod := lower(t, "int f() { return 7 + 6; }")
	fn := findFunc(t, mod, "f")
	if len(fn.Returns) != 1 || fn.Returns[0] != ssa.I32 {
		t.Fatalf("returns = %v", fn.Returns)
	}
	entry := fn.Entry()
	term := entry.Terminator()
	if term == nil || term.Op != ssa.OpReturn {
		t.Fatalf("entry not terminated by return")
	}
	// Two constants and an add.
	var sawAdd bool
	for _, in := range entry.Instrs {
		if in.Op == ssa.OpAdd && in.Type == ssa.I32 {
			sawAdd = true
		}
	}
	if !sawAdd {
		t.Fatal("no i32 add emitted")
	}
}

func TestLowerFloatStaysFloatBeforeQ32(t *testing.T) {
	mod := lower(t, "float f() { return 1.5 * 2.0; }")
	fn := findFunc(t, mod, "f")
	var sawMul bool
	for _, in := range fn.Entry().Instrs {
		if in.Op == ssa.OpMul && in.Type == ssa.F32 {
			sawMul = true
		}
	}
	if !sawMul {
		t.Fatal("float multiply not emitted as an f32 mul")
	}
}

func TestLowerBuiltinCallKeepsGLSLName(t *testing.T) {
	mod := lower(t, "float f() { return sin(0.0) + cos(0.0); }")
	fn := findFunc(t, mod, "f")
	names := map[string]bool{}
	for _, in := range fn.Entry().Instrs {
		if in.Op == ssa.OpCall {
			names[in.Symbol] = true
		}
	}
	if !names["sin"] || !names["cos"] {
		t.Fatalf("calls = %v, want sin and cos by GLSL name", names)
	}
}

func TestLowerLPFXCallTargetsF32Symbol(t *testing.T) {
	mod := lower(t, "vec3 f() { return lpfx_hsv2rgb(vec3(0.0, 1.0, 1.0)); }")
	fn := findFunc(t, mod, "f")
	found := false
	for _, in := range fn.Entry().Instrs {
		if in.Op == ssa.OpCall && in.Symbol == "__lpfx_hsv2rgb_f32" {
			found = true
			if len(in.Sig) != 3 {
				t.Fatalf("sig = %v, want 3 results", in.Sig)
			}
		}
	}
	if !found {
		t.Fatal("no call to __lpfx_hsv2rgb_f32")
	}
	// The extern table declares the f32 symbol pre-lowering.
	sawExtern := false
	for _, e := range mod.Externs {
		if e.Symbol == "__lpfx_hsv2rgb_f32" {
			sawExtern = true
		}
	}
	if !sawExtern {
		t.Fatal("extern for __lpfx_hsv2rgb_f32 missing")
	}
}

func TestLowerWhileLoopShape(t *testing.T) {
	mod := lower(t, "int f(int n) { int x = 0; while (x < n) { x = x + 1; } return x; }")
	fn := findFunc(t, mod, "f")
	// entry, header, body, exit at minimum.
	if len(fn.Blocks) < 4 {
		t.Fatalf("got %d blocks, want >= 4", len(fn.Blocks))
	}
	// The header has block params carrying the tracked variables.
	header := fn.Blocks[1]
	if len(header.Params) == 0 {
		t.Fatal("loop header has no block parameters")
	}
	var sawCondBr bool
	for _, in := range header.Instrs {
		if in.Op == ssa.OpCondBr {
			sawCondBr = true
			if len(in.Succs) != 2 {
				t.Fatalf("condbr has %d edges", len(in.Succs))
			}
		}
	}
	if !sawCondBr {
		t.Fatal("loop header missing conditional branch")
	}
}

func TestLowerShortCircuitBranches(t *testing.T) {
	mod := lower(t, "int f(bool a, bool b) { if (a && b) { return 1; } return 0; }")
	fn := findFunc(t, mod, "f")
	// && alone adds two blocks beyond the if's three.
	if len(fn.Blocks) < 5 {
		t.Fatalf("got %d blocks, want >= 5 (short-circuit must branch)", len(fn.Blocks))
	}
}

func TestLowerOutParamStoresThrough(t *testing.T) {
	mod := lower(t, "void set(out float o) { o = 1.5; }")
	fn := findFunc(t, mod, "set")
	if len(fn.Params) != 1 || fn.Params[0] != ssa.Ptr {
		t.Fatalf("params = %v, want [ptr]", fn.Params)
	}
	var sawStore bool
	for _, in := range fn.Entry().Instrs {
		if in.Op == ssa.OpStore {
			sawStore = true
		}
	}
	if !sawStore {
		t.Fatal("no store through the out pointer")
	}
}

func TestLowerVectorReturnExplodes(t *testing.T) {
	mod := lower(t, "vec4 f() { vec3 a = vec3(1.0, 2.0, 3.0); return vec4(a.zyx, 4.0); }")
	fn := findFunc(t, mod, "f")
	if len(fn.Returns) != 4 {
		t.Fatalf("returns = %v, want 4 scalars", fn.Returns)
	}
	term := fn.Entry().Terminator()
	if term.Op != ssa.OpReturn || len(term.Args) != 4 {
		t.Fatalf("return has %d args", len(term.Args))
	}
}

func TestLowerArrayUsesStackSlot(t *testing.T) {
	mod := lower(t, "float f() { float a[3]; a[1] = 2.5; return a[1]; }")
	fn := findFunc(t, mod, "f")
	var slot, store, load bool
	for _, in := range fn.Entry().Instrs {
		switch in.Op {
		case ssa.OpStackSlot:
			slot = true
			if in.Size != 12 {
				t.Fatalf("slot size = %d, want 12", in.Size)
			}
		case ssa.OpStore:
			store = true
		case ssa.OpLoad:
			load = true
		}
	}
	if !slot || !store || !load {
		t.Fatalf("slot/store/load = %v/%v/%v", slot, store, load)
	}
}

func TestLowerGlobalConstInlined(t *testing.T) {
	mod := lower(t, "const int N = 40;\nint f() { return N + 2; }")
	fn := findFunc(t, mod, "f")
	var sawConst40 bool
	for _, in := range fn.Entry().Instrs {
		if in.Op == ssa.OpConst && in.Imm == 40 {
			sawConst40 = true
		}
	}
	if !sawConst40 {
		t.Fatal("global const not materialised at use site")
	}
}

func TestLowerIntToFloatConversionCalls(t *testing.T) {
	mod := lower(t, "float f(int x) { return float(x); }")
	fn := findFunc(t, mod, "f")
	found := false
	for _, in := range fn.Entry().Instrs {
		if in.Op == ssa.OpCall && in.Symbol == "fromint" {
			found = true
		}
	}
	if !found {
		t.Fatal("no fromint conversion call")
	}
}

func TestLowerInverseUsesOrderQualifiedSymbol(t *testing.T) {
	mod := lower(t, "mat2 f(mat2 m) { return inverse(m); }")
	fn := findFunc(t, mod, "f")
	found := false
	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			if in.Op == ssa.OpCall && in.Symbol == "__lp_q32_inverse2" {
				found = true
				if len(in.Args) != 2 {
					t.Fatalf("inverse call has %d args, want src and dst pointers", len(in.Args))
				}
			}
		}
	}
	if !found {
		t.Fatal("no order-qualified inverse call")
	}
}
