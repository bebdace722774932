package ssa

import (
	"strings"
	"testing"
)

func TestNewFunctionAllocatesEntryParams(t *testing.T) {
	fn := NewFunction("add", []Type{I32, I32}, []Type{I32})
	entry := fn.Entry()
	if len(entry.Params) != 2 {
		t.Fatalf("entry has %d params, want 2", len(entry.Params))
	}
	if fn.TypeOf(entry.Params[0]) != I32 || fn.TypeOf(entry.Params[1]) != I32 {
		t.Fatalf("entry param types not recorded")
	}
}

func TestBuilderEmitsAndReturns(t *testing.T) {
	fn := NewFunction("add", []Type{I32, I32}, []Type{I32})
	b := NewBuilder(fn)
	entry := fn.Entry()
	sum := b.BinOp(OpAdd, I32, entry.Params[0], entry.Params[1])
	b.Return(sum)

	term := entry.Terminator()
	if term == nil || term.Op != OpReturn {
		t.Fatalf("block not terminated with return, got %v", term)
	}
	if len(entry.Instrs) != 2 {
		t.Fatalf("expected 2 instructions, got %d", len(entry.Instrs))
	}
}

func TestBuilderPanicsOnDoubleTerminator(t *testing.T) {
	fn := NewFunction("f", nil, nil)
	b := NewBuilder(fn)
	b.Return()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic appending after a terminator")
		}
	}()
	b.Return()
}

func TestCondBrWiresTwoBlocksWithJoinParam(t *testing.T) {
	fn := NewFunction("max", []Type{I32, I32}, []Type{I32})
	b := NewBuilder(fn)
	entry := fn.Entry()
	join := b.NewBlock(I32)

	cond := b.Cmp(OpCmpGe, entry.Params[0], entry.Params[1])
	b.CondBr(cond, join.ID, []Value{entry.Params[0]}, join.ID, []Value{entry.Params[1]})

	b.SetBlock(join)
	b.Return(join.Params[0])

	if len(fn.Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(fn.Blocks))
	}
	term := entry.Terminator()
	if term.Op != OpCondBr || len(term.Succs) != 2 {
		t.Fatalf("entry not terminated with a 2-edge condbr: %v", term)
	}
	if fn.TypeOf(join.Params[0]) != I32 {
		t.Fatalf("join block parameter type not recorded")
	}
}

func TestCallReservesConsecutiveResultValues(t *testing.T) {
	fn := NewFunction("f", nil, nil)
	b := NewBuilder(fn)
	results := b.Call("__lpfx_hsv2rgb_q32", []Type{I32, I32, I32}, b.Const(I32, 0))
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if fn.TypeOf(r) != I32 {
			t.Fatalf("result %d has wrong type", i)
		}
	}
	if results[1] != results[0]+1 || results[2] != results[0]+1+1 {
		t.Fatalf("results not consecutive: %v", results)
	}
	b.Return()
}

func TestDumpProducesReadableListing(t *testing.T) {
	fn := NewFunction("add", []Type{I32, I32}, []Type{I32})
	b := NewBuilder(fn)
	entry := fn.Entry()
	sum := b.BinOp(OpAdd, I32, entry.Params[0], entry.Params[1])
	b.Return(sum)

	mod := &Module{Functions: []*Function{fn}}
	out := mod.Dump()
	if !strings.Contains(out, "func add(i32, i32) -> (i32)") {
		t.Fatalf("dump missing function signature: %s", out)
	}
	if !strings.Contains(out, "add") || !strings.Contains(out, "return") {
		t.Fatalf("dump missing expected instructions: %s", out)
	}
}

func TestFindFunctionLooksUpByName(t *testing.T) {
	fn := NewFunction("main", nil, nil)
	mod := &Module{Functions: []*Function{fn}}
	got, ok := mod.FindFunction("main")
	if !ok || got != fn {
		t.Fatalf("FindFunction(main) = %v, %v", got, ok)
	}
	if _, ok := mod.FindFunction("missing"); ok {
		t.Fatalf("expected no match for missing function")
	}
}
