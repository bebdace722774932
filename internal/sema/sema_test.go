package sema

import (
	"math"
	"testing"

	"github.com/lightplayer/lpxc/internal/parser"
	"github.com/lightplayer/lpxc/internal/source"
	"github.com/lightplayer/lpxc/internal/tir"
	"github.com/lightplayer/lpxc/internal/types"
)

func analyze(t *testing.T, src string) *tir.Module {
	t.Helper()
	var diags source.DiagnosticSet
	file := parser.Parse("test.glsl", []byte(src), &diags)
	mod := Analyze(file, &diags)
	if !diags.Empty() {
		t.Fatalf("unexpected diagnostics: %v", diags.All())
	}
	return mod
}

func analyzeErr(t *testing.T, src string) *source.DiagnosticSet {
	t.Helper()
	var diags source.DiagnosticSet
	file := parser.Parse("test.glsl", []byte(src), &diags)
	Analyze(file, &diags)
	if diags.Empty() {
		t.Fatal("expected diagnostics, got none")
	}
	return &diags
}

func TestAnalyzeSimpleFunction(t *testing.T) {
	mod := analyze(t, "int f() { return 7 + 6; }")
	fn, ok := mod.FindFunction("f")
	if !ok {
		t.Fatal("f not found")
	}
	if !fn.Return.Equal(types.TInt32) {
		t.Fatalf("return type = %v", fn.Return)
	}
	ret, ok := fn.Body[0].(*tir.Return)
	if !ok {
		t.Fatalf("body[0] is %T", fn.Body[0])
	}
	if !ret.Value.Type().Equal(types.TInt32) {
		t.Fatalf("return value type = %v", ret.Value.Type())
	}
}

func TestAnalyzeIntToFloatPromotion(t *testing.T) {
	mod := analyze(t, "float f() { return 1 + 0.5; }")
	fn, _ := mod.FindFunction("f")
	ret := fn.Body[0].(*tir.Return)
	bin, ok := ret.Value.(*tir.Binary)
	if !ok {
		t.Fatalf("value is %T", ret.Value)
	}
	if !bin.Type().Equal(types.TFloat) {
		t.Fatalf("type = %v, want float", bin.Type())
	}
	// The int literal folded to a float literal during conversion.
	lit, ok := bin.X.(*tir.Literal)
	if !ok {
		t.Fatalf("lhs is %T", bin.X)
	}
	if math.Float32frombits(uint32(lit.Bits)) != 1.0 {
		t.Fatalf("lhs bits = %#x", lit.Bits)
	}
}

func TestAnalyzeSwizzle(t *testing.T) {
	mod := analyze(t, "vec4 f() { vec3 a = vec3(1.0, 2.0, 3.0); return vec4(a.zyx, 4.0); }")
	fn, _ := mod.FindFunction("f")
	ret := fn.Body[1].(*tir.Return)
	ctor, ok := ret.Value.(*tir.VectorConstructor)
	if !ok {
		t.Fatalf("value is %T", ret.Value)
	}
	sw, ok := ctor.Args[0].(*tir.Swizzle)
	if !ok {
		t.Fatalf("arg0 is %T", ctor.Args[0])
	}
	want := []int{2, 1, 0}
	for i, comp := range sw.Components {
		if comp != want[i] {
			t.Fatalf("components = %v, want %v", sw.Components, want)
		}
	}
}

func TestAnalyzeConstUninitialized(t *testing.T) {
	diags := analyzeErr(t, "const float BAD;\nfloat f() { return 0.0; }")
	if !diags.HasCode(source.ErrConstUninitialized) {
		t.Fatalf("codes = %v, want E0401", diags.All())
	}
	found := false
	for _, d := range diags.All() {
		if d.Code == source.ErrConstUninitialized {
			if d.Loc.Line != 1 {
				t.Fatalf("diagnostic at line %d, want 1", d.Loc.Line)
			}
			if want := "const `BAD` must be initialized"; d.Msg != want {
				t.Fatalf("msg = %q, want %q", d.Msg, want)
			}
			found = true
		}
	}
	if !found {
		t.Fatal("no E0401 diagnostic")
	}
}

func TestAnalyzeConstWrite(t *testing.T) {
	diags := analyzeErr(t, "void f() { const int k = 1; k = 2; }")
	if !diags.HasCode(source.ErrConstWrite) {
		t.Fatalf("codes = %v, want E0400", diags.All())
	}
}

func TestAnalyzeUndefinedVariable(t *testing.T) {
	diags := analyzeErr(t, "int f() { return missing; }")
	if !diags.HasCode(source.ErrUndefinedVariable) {
		t.Fatalf("codes = %v, want E0100", diags.All())
	}
}

func TestAnalyzeWrongArgCount(t *testing.T) {
	diags := analyzeErr(t, "float f() { return sin(1.0, 2.0); }")
	if !diags.HasCode(source.ErrWrongArgCount) {
		t.Fatalf("codes = %v, want E0112", diags.All())
	}
}

func TestAnalyzeBuiltinNoImplicitConversion(t *testing.T) {
	// Builtin overload resolution matches element types exactly: an int
	// argument does not promote.
	diags := analyzeErr(t, "float f() { return sin(1); }")
	if !diags.HasCode(source.ErrNoMatchingOverload) {
		t.Fatalf("codes = %v, want E0104", diags.All())
	}
}

func TestAnalyzeFrexpRejected(t *testing.T) {
	diags := analyzeErr(t, "float f(out float e) { return frexp(1.0, e); }")
	if !diags.HasCode(source.ErrCodegenIncomplete) {
		t.Fatalf("codes = %v, want E0114", diags.All())
	}
}

func TestAnalyzeGlobalConstReference(t *testing.T) {
	mod := analyze(t, "const int N = 4;\nconst int M = N * 2;\nint f() { return M; }")
	if len(mod.Globals) != 2 {
		t.Fatalf("globals = %d, want 2", len(mod.Globals))
	}
}

func TestAnalyzeConstArraySize(t *testing.T) {
	mod := analyze(t, "const int N = 3;\nfloat f() { float a[N]; a[0] = 1.0; return a[0]; }")
	fn, _ := mod.FindFunction("f")
	decl := fn.Body[0].(*tir.VarDecl)
	if !decl.Var.Type.IsArray() || decl.Var.Type.ArrayN != 3 {
		t.Fatalf("type = %v", decl.Var.Type)
	}
}

func TestAnalyzeNonConstArraySize(t *testing.T) {
	diags := analyzeErr(t, "float f(int n) { float a[n]; return a[0]; }")
	if !diags.HasCode(source.ErrConstArraySize) {
		t.Fatalf("codes = %v, want E0301", diags.All())
	}
}

func TestAnalyzeVectorComparisonIsScalarBool(t *testing.T) {
	mod := analyze(t, "bool f(vec2 a, vec2 b) { return a == b; }")
	fn, _ := mod.FindFunction("f")
	ret := fn.Body[0].(*tir.Return)
	if !ret.Value.Type().Equal(types.TBool) {
		t.Fatalf("type = %v, want bool", ret.Value.Type())
	}
}

func TestAnalyzeRelationalFunctionIsBvec(t *testing.T) {
	mod := analyze(t, "bvec3 f(vec3 a, vec3 b) { return lessThan(a, b); }")
	fn, _ := mod.FindFunction("f")
	ret := fn.Body[0].(*tir.Return)
	want := types.Vector(types.Bool, 3)
	if !ret.Value.Type().Equal(want) {
		t.Fatalf("type = %v, want %v", ret.Value.Type(), want)
	}
}

func TestAnalyzeLPFXCall(t *testing.T) {
	mod := analyze(t, "vec3 f() { return lpfx_hsv2rgb(vec3(0.0, 1.0, 1.0)); }")
	fn, _ := mod.FindFunction("f")
	ret := fn.Body[0].(*tir.Return)
	call, ok := ret.Value.(*tir.Call)
	if !ok || call.Kind != tir.CallLPFX || call.Name != "hsv2rgb" {
		t.Fatalf("value = %#v", ret.Value)
	}
}

func TestAnalyzeOutParamRequiresLValue(t *testing.T) {
	diags := analyzeErr(t, `
void split(float x, out float o) { o = x; }
void g() { split(1.0, 2.0); }`)
	if !diags.HasCode(source.ErrNotAssignable) {
		t.Fatalf("codes = %v, want E0116", diags.All())
	}
}

func TestAnalyzeOutParamCall(t *testing.T) {
	mod := analyze(t, `
void split(float x, out float o) { o = x; }
float g() { float r = 0.0; split(2.5, r); return r; }`)
	fn, _ := mod.FindFunction("g")
	call := fn.Body[1].(*tir.ExprStmt).Value.(*tir.Call)
	if _, ok := call.Args[1].(*tir.OutArg); !ok {
		t.Fatalf("arg1 is %T, want *OutArg", call.Args[1])
	}
}

func TestAnalyzeShadowing(t *testing.T) {
	mod := analyze(t, "int f() { int x = 1; { int x = 2; x = 3; } return x; }")
	fn, _ := mod.FindFunction("f")
	// Outer decl, inner decl, inner assign, return.
	if len(fn.Body) != 4 {
		t.Fatalf("body has %d statements", len(fn.Body))
	}
	inner := fn.Body[1].(*tir.VarDecl)
	assign := fn.Body[2].(*tir.Assign)
	if assign.Target.Base != inner.Var {
		t.Fatal("assignment resolved to the wrong x")
	}
	ret := fn.Body[3].(*tir.Return)
	outer := fn.Body[0].(*tir.VarDecl)
	if ret.Value.(*tir.VarRef).Var != outer.Var {
		t.Fatal("return resolved to the wrong x")
	}
}

func TestAnalyzeTernaryCommonType(t *testing.T) {
	mod := analyze(t, "float f(bool c) { return c ? 1 : 2.5; }")
	fn, _ := mod.FindFunction("f")
	ret := fn.Body[0].(*tir.Return)
	if !ret.Value.Type().Equal(types.TFloat) {
		t.Fatalf("type = %v, want float", ret.Value.Type())
	}
}

func TestAnalyzeSwizzleWriteNoDuplicates(t *testing.T) {
	diags := analyzeErr(t, "void f() { vec2 v = vec2(0.0); v.xx = vec2(1.0); }")
	if !diags.HasCode(source.ErrInvalidSwizzle) {
		t.Fatalf("codes = %v, want E0113", diags.All())
	}
}

func TestAnalyzeCollectsMultipleErrors(t *testing.T) {
	diags := analyzeErr(t, `
int f() {
	int a = missing1;
	int b = missing2;
	return a + b;
}`)
	count := 0
	for _, d := range diags.All() {
		if d.Code == source.ErrUndefinedVariable {
			count++
		}
	}
	if count != 2 {
		t.Fatalf("got %d undefined-variable diagnostics, want 2", count)
	}
}

func TestAnalyzeMatrixDeterminant(t *testing.T) {
	mod := analyze(t, "float f(mat2 m) { return determinant(m); }")
	fn, _ := mod.FindFunction("f")
	ret := fn.Body[0].(*tir.Return)
	call := ret.Value.(*tir.Call)
	if call.Kind != tir.CallBuiltin || call.Name != "determinant" {
		t.Fatalf("call = %#v", call)
	}
	if !ret.Value.Type().Equal(types.TFloat) {
		t.Fatalf("type = %v", ret.Value.Type())
	}
}
