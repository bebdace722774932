package q32

import "github.com/lightplayer/lpxc/internal/ssa"

// fold runs the pass's own minimal optimisation level over every function:
// constant folding of the arithmetic the Q32 rewrite leaves behind (every
// float literal became an OpConst, and plenty of them now feed arithmetic
// whose other operand is also constant), and peephole elimination of
// identity operations (x+0, x&-1, and so on). Both run to a fixpoint:
// keep applying passes until a full round makes no change.
func fold(mod *ssa.Module) {
	for _, fn := range mod.Functions {
		for {
			changed := foldConstants(fn)
			if peepholeIdentities(fn) {
				changed = true
			}
			if !changed {
				break
			}
		}
	}
}

// foldConstants rewrites any instruction whose operands are all already
// constant into an OpConst carrying the same ID, so every later instruction
// that already referenced it keeps working unmodified.
func foldConstants(fn *ssa.Function) bool {
	constMap := map[ssa.Value]int64{}
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if instr.Op == ssa.OpConst {
				constMap[instr.ID] = instr.Imm
			}
		}
	}

	changed := false
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if instr.ID == ssa.NoValue || instr.Op == ssa.OpConst {
				continue
			}
			val, ok := evalConst(instr, constMap)
			if !ok {
				continue
			}
			instr.Op = ssa.OpConst
			instr.Imm = val
			instr.Args = nil
			constMap[instr.ID] = val
			changed = true
		}
	}
	return changed
}

func evalConst(instr *ssa.Instr, constMap map[ssa.Value]int64) (int64, bool) {
	switch len(instr.Args) {
	case 1:
		a, ok := constMap[instr.Args[0]]
		if !ok {
			return 0, false
		}
		return evalUn(instr.Op, a)
	case 2:
		a, ok1 := constMap[instr.Args[0]]
		b, ok2 := constMap[instr.Args[1]]
		if !ok1 || !ok2 {
			return 0, false
		}
		return evalBin(instr.Op, instr.Type, a, b)
	default:
		return 0, false
	}
}

func evalUn(op ssa.Op, a int64) (int64, bool) {
	switch op {
	case ssa.OpNeg:
		return int64(-int32(a)), true
	case ssa.OpNot:
		return int64(^int32(a)), true
	default:
		return 0, false
	}
}

// evalBin mirrors the back end's own RV32IMAC semantics for division and
// remainder (division by zero yields -1, MinInt32/-1 yields MinInt32) so
// folding a constant expression never disagrees with running the same
// expression on the emulator.
func evalBin(op ssa.Op, t ssa.Type, x, y int64) (int64, bool) {
	unsigned := t == ssa.U32
	a, b := int32(x), int32(y)
	switch op {
	case ssa.OpAdd:
		return int64(a + b), true
	case ssa.OpSub:
		return int64(a - b), true
	case ssa.OpMul:
		return int64(a * b), true
	case ssa.OpDiv:
		if b == 0 {
			return -1, true
		}
		if unsigned {
			return int64(int32(uint32(a) / uint32(b))), true
		}
		if a == -0x80000000 && b == -1 {
			return int64(a), true
		}
		return int64(a / b), true
	case ssa.OpRem:
		if b == 0 {
			return int64(a), true
		}
		if unsigned {
			return int64(int32(uint32(a) % uint32(b))), true
		}
		if a == -0x80000000 && b == -1 {
			return 0, true
		}
		return int64(a % b), true
	case ssa.OpAnd:
		return int64(a & b), true
	case ssa.OpOr:
		return int64(a | b), true
	case ssa.OpXor:
		return int64(a ^ b), true
	case ssa.OpShl:
		return int64(a << uint32(b&31)), true
	case ssa.OpShr:
		if unsigned {
			return int64(int32(uint32(a) >> uint32(b&31))), true
		}
		return int64(a >> uint32(b&31)), true
	case ssa.OpCmpEq:
		return boolInt(a == b), true
	case ssa.OpCmpNe:
		return boolInt(a != b), true
	case ssa.OpCmpLt:
		if unsigned {
			return boolInt(uint32(a) < uint32(b)), true
		}
		return boolInt(a < b), true
	case ssa.OpCmpLe:
		if unsigned {
			return boolInt(uint32(a) <= uint32(b)), true
		}
		return boolInt(a <= b), true
	case ssa.OpCmpGt:
		if unsigned {
			return boolInt(uint32(a) > uint32(b)), true
		}
		return boolInt(a > b), true
	case ssa.OpCmpGe:
		if unsigned {
			return boolInt(uint32(a) >= uint32(b)), true
		}
		return boolInt(a >= b), true
	default:
		return 0, false
	}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// peepholeIdentities drops additive/bitwise identity operations (x+0,
// x-0, x|0, x^0, x&-1) and rewires every use of the dropped instruction's
// result directly to its non-identity operand.
func peepholeIdentities(fn *ssa.Function) bool {
	constMap := map[ssa.Value]int64{}
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if instr.Op == ssa.OpConst {
				constMap[instr.ID] = instr.Imm
			}
		}
	}

	changed := false
	for _, b := range fn.Blocks {
		kept := make([]*ssa.Instr, 0, len(b.Instrs))
		for _, instr := range b.Instrs {
			if repl, ok := identityOperand(instr, constMap); ok {
				substituteValue(fn, instr.ID, repl)
				changed = true
				continue
			}
			kept = append(kept, instr)
		}
		b.ReplaceInstrs(kept)
	}
	return changed
}

func identityOperand(instr *ssa.Instr, constMap map[ssa.Value]int64) (ssa.Value, bool) {
	if instr.ID == ssa.NoValue || len(instr.Args) != 2 {
		return ssa.NoValue, false
	}
	x, y := instr.Args[0], instr.Args[1]
	switch instr.Op {
	case ssa.OpAdd, ssa.OpOr, ssa.OpXor:
		if c, ok := constMap[y]; ok && int32(c) == 0 {
			return x, true
		}
		if c, ok := constMap[x]; ok && int32(c) == 0 {
			return y, true
		}
	case ssa.OpSub:
		if c, ok := constMap[y]; ok && int32(c) == 0 {
			return x, true
		}
	case ssa.OpAnd:
		if c, ok := constMap[y]; ok && int32(c) == -1 {
			return x, true
		}
		if c, ok := constMap[x]; ok && int32(c) == -1 {
			return y, true
		}
	}
	return ssa.NoValue, false
}

// substituteValue rewrites every reference to old (as an instruction
// argument or a branch edge argument) to new, across the whole function.
func substituteValue(fn *ssa.Function, old, new ssa.Value) {
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			for i, a := range instr.Args {
				if a == old {
					instr.Args[i] = new
				}
			}
			for _, e := range instr.Succs {
				for i, a := range e.Args {
					if a == old {
						e.Args[i] = new
					}
				}
			}
		}
	}
}
