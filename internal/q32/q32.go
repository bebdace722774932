// Package q32 implements the mandatory lowering pass that rewrites every
// floating-point value and operation in an ssa.Module into signed 16.16
// fixed-point arithmetic, so the back end never has to emit a floating-
// point instruction. It is a transform pass over internal/ssa; the actual
// Q32 runtime primitives it targets live in internal/builtins.
//
// Contract with the front end (internal/fgen): before this pass runs,
// elementary float arithmetic (+, -, *, /, %, unary -) and comparisons are
// ordinary ssa.Op binops/unops typed F32. Every other math or LPFX builtin
// call is an OpCall whose Symbol is either the builtin's unprefixed GLSL
// name (as found in builtins.Default().ByName) or an LPFX "*_f32" symbol.
// After this pass, no F32-typed value remains anywhere in the module, and
// every surviving math/LPFX call targets a "__lp_q32_*" or "*_q32" symbol.
package q32

import (
	"fmt"

	"github.com/lightplayer/lpxc/internal/builtins"
	"github.com/lightplayer/lpxc/internal/ssa"
)

// Lower rewrites every function in mod in place, replacing float types and
// operations with their fixed-point equivalents, then runs the fold pass
// to clean up the constant and trivial-sequence opportunities the rewrite
// itself creates. It returns an error identifying the first function and
// value that still carries a float type if the rewrite failed to cover
// something -- this should never happen for IR produced by internal/fgen,
// but a defensive check here is cheaper than a wrong machine-code bug
// three packages downstream.
func Lower(mod *ssa.Module) error {
	for _, fn := range mod.Functions {
		lowerFunction(fn)
	}
	lowerExterns(mod)
	fold(mod)
	for _, fn := range mod.Functions {
		if v, ok := firstFloatValue(fn); ok {
			return fmt.Errorf("q32: %s: value %d still has type f32 after lowering", fn.Name, v)
		}
	}
	return nil
}

// lowerExterns rewrites the module's extern declarations to match the
// retargeted call sites: every F32 slot becomes I32 and every LPFX *_f32
// symbol becomes its *_q32 sibling, so no *_f32 name survives anywhere in
// the module.
func lowerExterns(mod *ssa.Module) {
	for i := range mod.Externs {
		e := &mod.Externs[i]
		if sibling, ok := builtins.DefaultLPFX().SiblingOfF32Symbol(e.Symbol); ok {
			e.Symbol = sibling
		}
		for j, t := range e.Params {
			if t == ssa.F32 {
				e.Params[j] = ssa.I32
			}
		}
		for j, t := range e.Returns {
			if t == ssa.F32 {
				e.Returns[j] = ssa.I32
			}
		}
	}
}

func firstFloatValue(fn *ssa.Function) (ssa.Value, bool) {
	for _, b := range fn.Blocks {
		for i, t := range b.ParamTypes {
			if t == ssa.F32 {
				return b.Params[i], true
			}
		}
		for _, instr := range b.Instrs {
			for _, v := range instr.Results() {
				if fn.TypeOf(v) == ssa.F32 {
					return v, true
				}
			}
		}
	}
	return ssa.NoValue, false
}
