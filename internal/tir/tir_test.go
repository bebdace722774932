package tir

import (
	"math"
	"testing"

	"github.com/lightplayer/lpxc/internal/source"
	"github.com/lightplayer/lpxc/internal/types"
)

func floatLit(v float32) *Literal {
	return &Literal{exprBase: exprBase{Ty: types.TFloat}, Bits: uint64(math.Float32bits(v))}
}

func TestFunctionBodyBuildsSquareExpression(t *testing.T) {
	x := &Variable{Name: "x", Type: types.TFloat}
	fn := &Function{
		Name:     "square",
		Params:   []Param{{Var: x, Qualifier: types.In}},
		Return:   types.TFloat,
		Exported: true,
		Body: []Stmt{
			&Return{
				Value: &Binary{
					exprBase: exprBase{Ty: types.TFloat},
					Op:       BinMul,
					X:        &VarRef{exprBase: exprBase{Ty: types.TFloat}, Var: x},
					Y:        &VarRef{exprBase: exprBase{Ty: types.TFloat}, Var: x},
				},
			},
		},
	}

	if len(fn.Body) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(fn.Body))
	}
	ret, ok := fn.Body[0].(*Return)
	if !ok {
		t.Fatalf("expected *Return, got %T", fn.Body[0])
	}
	mul, ok := ret.Value.(*Binary)
	if !ok {
		t.Fatalf("expected *Binary, got %T", ret.Value)
	}
	if mul.Op != BinMul {
		t.Fatalf("expected BinMul, got %v", mul.Op)
	}
	if mul.Type().Equal(types.TVoid) {
		t.Fatalf("return expression should not be void")
	}
}

func TestModuleFindFunctionResolvesByName(t *testing.T) {
	fn := &Function{Name: "main", Return: types.TVoid}
	mod := &Module{Functions: []*Function{fn}}

	got, ok := mod.FindFunction("main")
	if !ok || got != fn {
		t.Fatalf("FindFunction(main) = %v, %v; want %v, true", got, ok, fn)
	}
	if _, ok := mod.FindFunction("missing"); ok {
		t.Fatalf("FindFunction(missing) unexpectedly succeeded")
	}
}

// buildAccumulateLoop constructs the typed IR for:
//
//	float accumulate(float n) {
//	    float total = 0.0;
//	    float i = 0.0;
//	    while (i < n) {
//	        if (i == 3.0) {
//	            break;
//	        }
//	        total += i;
//	        i = i + 1.0;
//	    }
//	    return total;
//	}
func buildAccumulateLoop() *Function {
	n := &Variable{Name: "n", Type: types.TFloat}
	total := &Variable{Name: "total", Type: types.TFloat}
	i := &Variable{Name: "i", Type: types.TFloat}

	loc := source.Loc{File: "loop.glsl", Line: 1, Column: 1}

	body := []Stmt{
		&VarDecl{stmtBase: stmtBase{L: loc}, Var: total, Init: floatLit(0)},
		&VarDecl{stmtBase: stmtBase{L: loc}, Var: i, Init: floatLit(0)},
		&While{
			stmtBase: stmtBase{L: loc},
			Cond: &Binary{
				exprBase: exprBase{Ty: types.TBool},
				Op:       BinLt,
				X:        &VarRef{exprBase: exprBase{Ty: types.TFloat}, Var: i},
				Y:        &VarRef{exprBase: exprBase{Ty: types.TFloat}, Var: n},
			},
			Body: []Stmt{
				&If{
					stmtBase: stmtBase{L: loc},
					Cond: &Binary{
						exprBase: exprBase{Ty: types.TBool},
						Op:       BinEq,
						X:        &VarRef{exprBase: exprBase{Ty: types.TFloat}, Var: i},
						Y:        floatLit(3),
					},
					Then: []Stmt{&Break{stmtBase: stmtBase{L: loc}}},
				},
				&Assign{
					stmtBase: stmtBase{L: loc},
					Target:   LValue{Base: total},
					Op:       AssignAdd,
					Value:    &VarRef{exprBase: exprBase{Ty: types.TFloat}, Var: i},
				},
				&Assign{
					stmtBase: stmtBase{L: loc},
					Target:   LValue{Base: i},
					Op:       AssignSet,
					Value: &Binary{
						exprBase: exprBase{Ty: types.TFloat},
						Op:       BinAdd,
						X:        &VarRef{exprBase: exprBase{Ty: types.TFloat}, Var: i},
						Y:        floatLit(1),
					},
				},
			},
		},
		&Return{stmtBase: stmtBase{L: loc}, Value: &VarRef{exprBase: exprBase{Ty: types.TFloat}, Var: total}},
	}

	return &Function{
		Name:     "accumulate",
		Params:   []Param{{Var: n, Qualifier: types.In}},
		Return:   types.TFloat,
		Exported: true,
		Body:     body,
	}
}

func TestLoopWithBreakBuildsExpectedShape(t *testing.T) {
	fn := buildAccumulateLoop()
	if len(fn.Body) != 4 {
		t.Fatalf("expected 4 top-level statements, got %d", len(fn.Body))
	}

	loop, ok := fn.Body[2].(*While)
	if !ok {
		t.Fatalf("expected *While, got %T", fn.Body[2])
	}
	if len(loop.Body) != 3 {
		t.Fatalf("expected 3 statements in loop body, got %d", len(loop.Body))
	}

	ifStmt, ok := loop.Body[0].(*If)
	if !ok {
		t.Fatalf("expected *If, got %T", loop.Body[0])
	}
	if ifStmt.Else != nil {
		t.Fatalf("expected no else-clause")
	}
	if _, ok := ifStmt.Then[0].(*Break); !ok {
		t.Fatalf("expected *Break inside if, got %T", ifStmt.Then[0])
	}

	assign, ok := loop.Body[1].(*Assign)
	if !ok {
		t.Fatalf("expected *Assign, got %T", loop.Body[1])
	}
	if assign.Op != AssignAdd {
		t.Fatalf("expected AssignAdd, got %v", assign.Op)
	}
	if !assign.Target.IsDirect() {
		t.Fatalf("expected a direct lvalue target")
	}
}

func TestLValueClassification(t *testing.T) {
	v := &Variable{Name: "v", Type: types.Vector(types.Float, 3)}

	direct := LValue{Base: v}
	if !direct.IsDirect() || direct.IsArrayElement() || direct.IsComponent() {
		t.Fatalf("direct lvalue misclassified: %+v", direct)
	}

	comp := LValue{Base: v, Components: []int{0, 1}}
	if comp.IsDirect() || comp.IsArrayElement() || !comp.IsComponent() {
		t.Fatalf("component lvalue misclassified: %+v", comp)
	}

	idx := LValue{Base: v, Index: floatLit(0)}
	if idx.IsDirect() || !idx.IsArrayElement() || idx.IsComponent() {
		t.Fatalf("array-element lvalue misclassified: %+v", idx)
	}
}
