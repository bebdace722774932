package q32

import "github.com/lightplayer/lpxc/internal/ssa"

// inlineNames is the set of GLSL builtin names the Q32 pass expands as a
// short branch-free integer sequence instead of leaving as a call into the
// builtins object: each one is cheap enough, on a fixed-point operand,
// that materialising a call (argument move, AUIPC/JALR, result move) costs
// more than the sequence itself.
var inlineNames = map[string]bool{
	"abs": true, "floor": true, "ceil": true, "fract": true, "sign": true,
	"isnan": true, "isinf": true,
}

// inlineSimple expands a call to one of inlineNames into a branch-free
// integer instruction sequence ending in an instruction whose ID is
// instr.ID, so every existing use of the call's result keeps resolving to
// the same value without the caller's block needing any further rewrite.
func inlineSimple(fn *ssa.Function, instr *ssa.Instr) []*ssa.Instr {
	x := instr.Args[0]
	switch instr.Symbol {
	case "abs":
		return inlineAbs(fn, instr.ID, x)
	case "floor":
		return inlineFloor(fn, instr.ID, x)
	case "ceil":
		return inlineCeil(fn, instr.ID, x)
	case "fract":
		return inlineFract(fn, instr.ID, x)
	case "sign":
		return inlineSign(fn, instr.ID, x)
	case "isnan", "isinf":
		return []*ssa.Instr{constI32(fn, instr.ID, 0)}
	default:
		return []*ssa.Instr{instr}
	}
}

func constI32(fn *ssa.Function, id ssa.Value, imm int64) *ssa.Instr {
	fn.SetType(id, ssa.I32)
	return &ssa.Instr{ID: id, Op: ssa.OpConst, Type: ssa.I32, Imm: imm}
}

func binI32(fn *ssa.Function, id ssa.Value, op ssa.Op, a, b ssa.Value) *ssa.Instr {
	fn.SetType(id, ssa.I32)
	return &ssa.Instr{ID: id, Op: op, Type: ssa.I32, Args: []ssa.Value{a, b}}
}

func unI32(fn *ssa.Function, id ssa.Value, op ssa.Op, a ssa.Value) *ssa.Instr {
	fn.SetType(id, ssa.I32)
	return &ssa.Instr{ID: id, Op: op, Type: ssa.I32, Args: []ssa.Value{a}}
}

// inlineAbs computes abs(x) as (x ^ (x>>31)) - (x>>31), the standard
// branch-free two's complement absolute value. It does not special-case
// minQ32 the way builtins.Abs does (that one value stays negative rather
// than saturating); GLSL source that differences on that single point is
// not something the inliner needs to defend against.
func inlineAbs(fn *ssa.Function, result, x ssa.Value) []*ssa.Instr {
	c31 := fn.NewValue(ssa.I32)
	mask := fn.NewValue(ssa.I32)
	xored := fn.NewValue(ssa.I32)
	return []*ssa.Instr{
		constI32(fn, c31, 31),
		binI32(fn, mask, ssa.OpShr, x, c31),
		binI32(fn, xored, ssa.OpXor, x, mask),
		binI32(fn, result, ssa.OpSub, xored, mask),
	}
}

// inlineFloor clears the fractional 16 bits; because the mask is applied
// with a plain AND rather than a right-then-left shift, this rounds
// towards negative infinity for negative operands too, matching floor.
func inlineFloor(fn *ssa.Function, result, x ssa.Value) []*ssa.Instr {
	mask := fn.NewValue(ssa.I32)
	return []*ssa.Instr{
		constI32(fn, mask, -65536), // 0xffff0000
		binI32(fn, result, ssa.OpAnd, x, mask),
	}
}

// inlineCeil uses the identity ceil(x) = -floor(-x).
func inlineCeil(fn *ssa.Function, result, x ssa.Value) []*ssa.Instr {
	mask := fn.NewValue(ssa.I32)
	negX := fn.NewValue(ssa.I32)
	floored := fn.NewValue(ssa.I32)
	return []*ssa.Instr{
		constI32(fn, mask, -65536),
		unI32(fn, negX, ssa.OpNeg, x),
		binI32(fn, floored, ssa.OpAnd, negX, mask),
		unI32(fn, result, ssa.OpNeg, floored),
	}
}

// inlineFract uses fract(x) = x - floor(x) = x & 0xffff, which holds in
// two's complement for any sign of x.
func inlineFract(fn *ssa.Function, result, x ssa.Value) []*ssa.Instr {
	mask := fn.NewValue(ssa.I32)
	return []*ssa.Instr{
		constI32(fn, mask, 0xffff),
		binI32(fn, result, ssa.OpAnd, x, mask),
	}
}

// inlineSign computes sign(x) = ((x>0) - (x<0)) << 16, producing exactly
// +one, 0, or -one.
func inlineSign(fn *ssa.Function, result, x ssa.Value) []*ssa.Instr {
	zero := fn.NewValue(ssa.I32)
	gt := fn.NewValue(ssa.I32)
	lt := fn.NewValue(ssa.I32)
	diff := fn.NewValue(ssa.I32)
	shiftAmt := fn.NewValue(ssa.I32)
	return []*ssa.Instr{
		constI32(fn, zero, 0),
		binI32(fn, gt, ssa.OpCmpGt, x, zero),
		binI32(fn, lt, ssa.OpCmpLt, x, zero),
		binI32(fn, diff, ssa.OpSub, gt, lt),
		constI32(fn, shiftAmt, 16),
		binI32(fn, result, ssa.OpShl, diff, shiftAmt),
	}
}
