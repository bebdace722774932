package rvgen

import (
	"github.com/lightplayer/lpxc/internal/objfile"
	"github.com/lightplayer/lpxc/internal/ssa"
)

// Compile lowers every function in mod to RV32IMAC and assembles the
// result into one relocatable object: one .text symbol per function, one
// undefined symbol per extern the module references (builtins, LPFX, or a
// forward-declared local function), and one R_RISCV_CALL relocation per
// OpCall/OpCallIndirect-free direct call site.
func Compile(mod *ssa.Module) *objfile.Object {
	o := objfile.NewObject()
	text := o.Section(".text", objfile.SHTProgBits, objfile.SHFAlloc|objfile.SHFExecInstr)

	for _, fn := range mod.Functions {
		code, relocs := generateFunction(fn)
		start := uint32(len(text.Data))
		appendWords(text, code)

		bind := objfile.BindLocal
		if fn.Exported {
			bind = objfile.BindGlobal
		}
		o.AddSymbol(objfile.Symbol{
			Name: fn.Name, Section: ".text", Defined: true,
			Bind: bind, Type: objfile.TypeFunc, Value: start, Size: uint32(len(code) * 4),
		})
		for _, r := range relocs {
			r.Offset += start
			text.Relocs = append(text.Relocs, r)
		}
	}

	for _, e := range mod.Externs {
		o.AddSymbol(objfile.Symbol{Name: e.Symbol, Defined: false})
	}

	if fn, ok := mod.FindFunction("main"); ok {
		sym, _ := o.FindSymbol(fn.Name)
		o.Entry = sym.Value
	}

	return o
}

// CompileMemoryOptimised is Compile for the embedded target: it drops
// each function's SSA body (blocks and value-type table) the moment its
// machine code exists, so peak heap during a whole-module compile is one
// function's IR plus the accumulated .text rather than the whole module's
// IR. The returned object is identical to Compile's; mod is left with
// signatures and names only and must not be lowered again.
func CompileMemoryOptimised(mod *ssa.Module) *objfile.Object {
	o := objfile.NewObject()
	text := o.Section(".text", objfile.SHTProgBits, objfile.SHFAlloc|objfile.SHFExecInstr)

	for _, fn := range mod.Functions {
		code, relocs := generateFunction(fn)
		fn.Blocks = nil

		start := uint32(len(text.Data))
		appendWords(text, code)

		bind := objfile.BindLocal
		if fn.Exported {
			bind = objfile.BindGlobal
		}
		o.AddSymbol(objfile.Symbol{
			Name: fn.Name, Section: ".text", Defined: true,
			Bind: bind, Type: objfile.TypeFunc, Value: start, Size: uint32(len(code) * 4),
		})
		for _, r := range relocs {
			r.Offset += start
			text.Relocs = append(text.Relocs, r)
		}
	}

	for _, e := range mod.Externs {
		o.AddSymbol(objfile.Symbol{Name: e.Symbol, Defined: false})
	}

	if fn, ok := mod.FindFunction("main"); ok {
		sym, _ := o.FindSymbol(fn.Name)
		o.Entry = sym.Value
	}

	return o
}

func appendWords(s *objfile.Section, code []uint32) {
	for _, w := range code {
		s.Data = append(s.Data, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
}
