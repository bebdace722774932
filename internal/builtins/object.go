package builtins

import (
	"github.com/lightplayer/lpxc/internal/objfile"
	"github.com/lightplayer/lpxc/internal/riscv"
)

// scratchSymbol is the .bss slot every scalar-convention trampoline below
// uses to marshal its arguments into, and its results back out of, the
// host-callback syscall. 16 bytes covers the widest entry (hsv2rgb/rgb2hsv,
// 3 words in and out).
const scratchSymbol = "__lp_q32_scratch"
const scratchSize = 16

// BuildObject assembles the builtins library as a relocatable object: one
// RV32IMAC trampoline per __lp_q32_* and __lpfx_*_q32 symbol. Every
// trampoline hands its work to the host through SysHostCallback rather than
// computing it in RV32 machine code directly (see math.go); the trampoline's
// only job is moving arguments and results across that boundary.
func BuildObject() *objfile.Object {
	o := objfile.NewObject()
	bss := o.Section(".bss", objfile.SHTNoBits, objfile.SHFAlloc|objfile.SHFWrite)
	bss.Size = scratchSize
	o.AddSymbol(objfile.Symbol{
		Name: scratchSymbol, Section: ".bss", Defined: true,
		Size: scratchSize, Type: objfile.TypeObject, Bind: objfile.BindLocal,
	})

	text := o.Section(".text", objfile.SHTProgBits, objfile.SHFAlloc|objfile.SHFExecInstr)

	for _, e := range Default().All() {
		if IsMatrixOp(e.ID) {
			emitMatrixTrampoline(o, text, e)
			continue
		}
		emitScalarTrampoline(o, text, e.Symbol, len(e.Params), len(e.Return), DispatchID(e.ID))
	}
	for _, e := range DefaultLPFX().All() {
		emitScalarTrampoline(o, text, e.Q32Sym, len(e.Params), len(e.Return), LPFXDispatchID(e.ID))
	}

	return o
}

// emitScalarTrampoline appends a function that stores its nParams argument
// registers (a0..) into the scratch buffer, issues the host callback with
// (id, &scratch, nParams*4), then reloads nReturns result registers from
// the same buffer before returning.
func emitScalarTrampoline(o *objfile.Object, text *objfile.Section, symbol string, nParams, nReturns int, id uint32) {
	argRegs := riscv.ArgRegs[:nParams]
	retRegs := riscv.ArgRegs[:nReturns]

	start := uint32(len(text.Data))
	var code []uint32

	hiOff := uint32(len(code)) * 4
	code = append(code, riscv.LUI(riscv.T0, 0))
	loOff := uint32(len(code)) * 4
	code = append(code, riscv.ADDI(riscv.T0, riscv.T0, 0))

	for i, r := range argRegs {
		code = append(code, riscv.SW(riscv.T0, r, int32(i*4)))
	}

	code = append(code, riscv.ADDI(riscv.A1, riscv.T0, 0))
	code = append(code, riscv.ADDI(riscv.A2, riscv.Zero, int32(nParams*4)))
	code = append(code, riscv.ADDI(riscv.A0, riscv.Zero, int32(id)))
	code = append(code, riscv.ADDI(riscv.A7, riscv.Zero, sysHostCallback))
	code = append(code, riscv.ECALL())

	for i, r := range retRegs {
		code = append(code, riscv.LW(r, riscv.T0, int32(i*4)))
	}
	code = append(code, riscv.JALR(riscv.Zero, riscv.Ra, 0))

	appendCode(text, code)
	o.AddSymbol(objfile.Symbol{
		Name: symbol, Section: ".text", Defined: true, Bind: objfile.BindGlobal,
		Type: objfile.TypeFunc, Value: start, Size: uint32(len(code) * 4),
	})
	text.Relocs = append(text.Relocs,
		objfile.Reloc{Offset: start + hiOff, Symbol: scratchSymbol, Type: objfile.RRISCVHI20},
		objfile.Reloc{Offset: start + loOff, Symbol: scratchSymbol, Type: objfile.RRISCVLO12I},
	)
}

// emitMatrixTrampoline appends a function for a pointer-convention matrix
// builtin. No scratch buffer is needed: the caller's pointer(s) already
// address the matrix, so the trampoline only has to shuffle argument
// registers out of the way before clobbering a0/a1 with the callback id.
func emitMatrixTrampoline(o *objfile.Object, text *objfile.Section, e Entry) {
	start := uint32(len(text.Data))
	var code []uint32

	if !IsInverseOp(e.ID) {
		code = append(code,
			riscv.ADDI(riscv.A1, riscv.A0, 0), // a1 = src ptr
			riscv.ADDI(riscv.A0, riscv.Zero, int32(DispatchID(e.ID))),
			riscv.ADDI(riscv.A2, riscv.Zero, 0),
			riscv.ADDI(riscv.A7, riscv.Zero, sysHostCallback),
			riscv.ECALL(),
			riscv.JALR(riscv.Zero, riscv.Ra, 0),
		)
	} else {
		code = append(code,
			riscv.ADDI(riscv.A2, riscv.A1, 0), // a2 = dst ptr
			riscv.ADDI(riscv.A1, riscv.A0, 0), // a1 = src ptr
			riscv.ADDI(riscv.A0, riscv.Zero, int32(DispatchID(e.ID))),
			riscv.ADDI(riscv.A7, riscv.Zero, sysHostCallback),
			riscv.ECALL(),
			riscv.JALR(riscv.Zero, riscv.Ra, 0),
		)
	}

	appendCode(text, code)
	o.AddSymbol(objfile.Symbol{
		Name: e.Symbol, Section: ".text", Defined: true, Bind: objfile.BindGlobal,
		Type: objfile.TypeFunc, Value: start, Size: uint32(len(code) * 4),
	})
}

// sysHostCallback mirrors emulator.SysHostCallback; duplicated as a
// constant so this package does not need to import the emulator for one
// integer (the emulator, conversely, never imports builtins).
const sysHostCallback = 4

func appendCode(text *objfile.Section, code []uint32) {
	for _, w := range code {
		text.Data = append(text.Data, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
}
