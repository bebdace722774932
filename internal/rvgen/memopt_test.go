package rvgen

import (
	"testing"

	"github.com/lightplayer/lpxc/internal/ssa"
)

func TestCompileMemoryOptimisedDropsIR(t *testing.T) {
	fn := ssa.NewFunction("f", nil, []ssa.Type{ssa.I32})
	b := ssa.NewBuilder(fn)
	c := b.Const(ssa.I32, 13)
	b.Return(c)

	mod := &ssa.Module{Functions: []*ssa.Function{fn}}

	ref := Compile(&ssa.Module{Functions: []*ssa.Function{cloneTrivial()}})
	obj := CompileMemoryOptimised(mod)

	if fn.Blocks != nil {
		t.Fatal("function IR not dropped after codegen")
	}
	sym, ok := obj.FindSymbol("f")
	if !ok || !sym.Defined || sym.Size == 0 {
		t.Fatalf("symbol f = %+v, %v", sym, ok)
	}

	// Same machine code as the ordinary path.
	var refText, optText []byte
	for _, s := range ref.Sections {
		if s.Name == ".text" {
			refText = s.Data
		}
	}
	for _, s := range obj.Sections {
		if s.Name == ".text" {
			optText = s.Data
		}
	}
	if len(refText) == 0 || len(refText) != len(optText) {
		t.Fatalf("text sizes differ: %d vs %d", len(refText), len(optText))
	}
	for i := range refText {
		if refText[i] != optText[i] {
			t.Fatalf("text differs at byte %d", i)
		}
	}
}

func cloneTrivial() *ssa.Function {
	fn := ssa.NewFunction("f", nil, []ssa.Type{ssa.I32})
	b := ssa.NewBuilder(fn)
	c := b.Const(ssa.I32, 13)
	b.Return(c)
	return fn
}
