package q32

import (
	"math"

	"github.com/lightplayer/lpxc/internal/builtins"
	"github.com/lightplayer/lpxc/internal/ssa"
)

// lowerFunction rewrites fn in place: every value declared F32 becomes
// I32, every float multiply/divide/modulo becomes a call to its
// __lp_q32_* builtin, and every call already routed through a builtin or
// LPFX name is retargeted to its fixed-point symbol.
func lowerFunction(fn *ssa.Function) {
	for i, t := range fn.Params {
		if t == ssa.F32 {
			fn.Params[i] = ssa.I32
		}
	}
	for i, t := range fn.Returns {
		if t == ssa.F32 {
			fn.Returns[i] = ssa.I32
		}
	}
	floatValues := collectFloatValues(fn)
	if len(floatValues) == 0 {
		return
	}
	for _, b := range fn.Blocks {
		retypeParams(fn, b, floatValues)
		b.ReplaceInstrs(rewriteBlock(fn, b, floatValues))
	}
}

// collectFloatValues snapshots every value (block parameter or
// instruction result) declared F32 before any rewriting happens. Later
// steps consult this instead of re-deriving float-ness from already-
// mutated types, since a comparison or call's own Type field stays I32
// throughout and carries no memory of what its operands used to be.
func collectFloatValues(fn *ssa.Function) map[ssa.Value]bool {
	out := map[ssa.Value]bool{}
	for _, b := range fn.Blocks {
		for i, t := range b.ParamTypes {
			if t == ssa.F32 {
				out[b.Params[i]] = true
			}
		}
		for _, instr := range b.Instrs {
			for _, v := range instr.Results() {
				if fn.TypeOf(v) == ssa.F32 {
					out[v] = true
				}
			}
		}
	}
	return out
}

func retypeParams(fn *ssa.Function, b *ssa.Block, floatValues map[ssa.Value]bool) {
	for i, v := range b.Params {
		if floatValues[v] {
			b.ParamTypes[i] = ssa.I32
			fn.SetType(v, ssa.I32)
		}
	}
}

func rewriteBlock(fn *ssa.Function, b *ssa.Block, floatValues map[ssa.Value]bool) []*ssa.Instr {
	out := make([]*ssa.Instr, 0, len(b.Instrs))
	for _, instr := range b.Instrs {
		out = append(out, lowerInstr(fn, instr, floatValues)...)
	}
	return out
}

func lowerInstr(fn *ssa.Function, instr *ssa.Instr, floatValues map[ssa.Value]bool) []*ssa.Instr {
	wasFloat := instr.ID != ssa.NoValue && floatValues[instr.ID]

	switch instr.Op {
	case ssa.OpConst:
		if instr.Type == ssa.F32 {
			f := math.Float32frombits(uint32(instr.Imm))
			instr.Imm = int64(int32(builtins.Encode(float64(f))))
			instr.Type = ssa.I32
			fn.SetType(instr.ID, ssa.I32)
		}
		return []*ssa.Instr{instr}

	case ssa.OpAdd, ssa.OpSub, ssa.OpNeg:
		// Addition, subtraction and negation commute with the fixed
		// 2^16 scale: the same integer instruction is correct, only the
		// declared type changes.
		if wasFloat {
			instr.Type = ssa.I32
			fn.SetType(instr.ID, ssa.I32)
		}
		return []*ssa.Instr{instr}

	case ssa.OpMul, ssa.OpDiv, ssa.OpRem:
		if !wasFloat {
			return []*ssa.Instr{instr}
		}
		fn.SetType(instr.ID, ssa.I32)
		return []*ssa.Instr{retargetArith(instr)}

	case ssa.OpCmpEq, ssa.OpCmpNe, ssa.OpCmpLt, ssa.OpCmpLe, ssa.OpCmpGt, ssa.OpCmpGe:
		// Ordinary signed integer ordering on the Q32 bit pattern matches
		// float ordering exactly; only the operand-type annotation (which
		// the back end reads for signedness) needs retargeting.
		if instr.Type == ssa.F32 {
			instr.Type = ssa.I32
		}
		return []*ssa.Instr{instr}

	case ssa.OpLoad, ssa.OpStore:
		if instr.Type == ssa.F32 {
			instr.Type = ssa.I32
			if instr.ID != ssa.NoValue {
				fn.SetType(instr.ID, ssa.I32)
			}
		}
		return []*ssa.Instr{instr}

	case ssa.OpCall:
		return lowerCall(fn, instr, wasFloat, floatValues)

	case ssa.OpCallIndirect:
		retypeSig(fn, instr)
		return []*ssa.Instr{instr}

	default:
		return []*ssa.Instr{instr}
	}
}

// retargetArith turns a float multiply/divide/modulo binop into a direct
// call to its __lp_q32_* builtin symbol, reusing the binop's own result
// value and argument list.
func retargetArith(instr *ssa.Instr) *ssa.Instr {
	var id builtins.BuiltinID
	switch instr.Op {
	case ssa.OpMul:
		id = builtins.BMul
	case ssa.OpDiv:
		id = builtins.BDiv
	default:
		id = builtins.BMod
	}
	entry, _ := builtins.Default().Lookup(id)
	return &ssa.Instr{
		ID: instr.ID, Op: ssa.OpCall, Type: ssa.I32,
		Symbol: entry.Symbol, Args: instr.Args, Sig: []ssa.Type{ssa.I32},
	}
}

func retypeSig(fn *ssa.Function, instr *ssa.Instr) {
	changed := false
	for i, t := range instr.Sig {
		if t == ssa.F32 {
			instr.Sig[i] = ssa.I32
			changed = true
		}
	}
	if changed {
		for _, v := range instr.Results() {
			fn.SetType(v, ssa.I32)
		}
	}
}

// lowerCall handles the three things a float-flavoured OpCall can need:
// expansion to a branch-free integer sequence (inlineNames), retargeting
// to a __lp_q32_* builtin symbol, or retargeting an LPFX "*_f32" symbol to
// its "*_q32" sibling. A call untouched by any of those is left exactly
// as the front end emitted it -- per the policy that integer-typed IR is
// not touched by this pass, calls with no float involvement pass through.
func lowerCall(fn *ssa.Function, instr *ssa.Instr, wasFloat bool, floatValues map[ssa.Value]bool) []*ssa.Instr {
	retypeSig(fn, instr)

	if !isFloatCall(instr, wasFloat, floatValues) {
		return []*ssa.Instr{instr}
	}

	if inlineNames[instr.Symbol] {
		return inlineSimple(fn, instr)
	}

	if id, ok := builtins.Default().ByName(instr.Symbol); ok {
		entry, _ := builtins.Default().Lookup(id)
		instr.Symbol = entry.Symbol
		return []*ssa.Instr{instr}
	}
	if sibling, ok := builtins.DefaultLPFX().SiblingOfF32Symbol(instr.Symbol); ok {
		instr.Symbol = sibling
		return []*ssa.Instr{instr}
	}
	return []*ssa.Instr{instr}
}

// isFloatCall reports whether instr involves a float value anywhere: its
// own (pre-lowering) result type or one of its arguments. The matrix
// builtins (determinant/inverse) never reach here needing retargeting --
// since builtins.Registry maps the single unprefixed name "determinant"
// (or "inverse") to whichever order was registered last, the front end
// must already emit the order-qualified symbol ("__lp_q32_determinant3")
// directly rather than the ambiguous GLSL name, so those calls pass
// through this function unchanged regardless of how isFloatCall answers.
func isFloatCall(instr *ssa.Instr, wasFloat bool, floatValues map[ssa.Value]bool) bool {
	if wasFloat {
		return true
	}
	for _, a := range instr.Args {
		if floatValues[a] {
			return true
		}
	}
	return false
}
