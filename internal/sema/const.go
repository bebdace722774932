package sema

import (
	"math"

	"github.com/lightplayer/lpxc/internal/source"
	"github.com/lightplayer/lpxc/internal/tir"
	"github.com/lightplayer/lpxc/internal/types"
)

// constVal is a compile-time value: one comp per scalar component, in
// component order. The type tag lives on the expression that produced it.
type constVal struct {
	typ   types.Type
	comps []constComp
}

type constComp struct {
	i int64   // Int32 (sign-extended) or Uint32 (zero-extended)
	f float64 // Float
	b bool    // Bool
}

// constEval computes the value of a typed expression built from literals,
// const references, arithmetic, constructors, swizzles, conversions, and
// ternaries. Anything else -- in particular any call, including to a
// user-defined function -- is not a constant expression.
func (c *checker) constEval(e tir.Expr) (constVal, bool) {
	switch e := e.(type) {
	case *tir.Literal:
		return constVal{typ: e.Type(), comps: []constComp{literalComp(e)}}, true

	case *tir.VarRef:
		v, ok := c.constVals[e.Var]
		return v, ok

	case *tir.Convert:
		x, ok := c.constEval(e.X)
		if !ok {
			return constVal{}, false
		}
		return convertConst(x, e.Type()), true

	case *tir.Unary:
		x, ok := c.constEval(e.X)
		if !ok {
			return constVal{}, false
		}
		return evalUnary(e, x)

	case *tir.Binary:
		return c.evalBinary(e)

	case *tir.Logical:
		x, ok := c.constEval(e.X)
		if !ok {
			return constVal{}, false
		}
		if e.Op == tir.LogAnd && !x.comps[0].b {
			return boolVal(false), true
		}
		if e.Op == tir.LogOr && x.comps[0].b {
			return boolVal(true), true
		}
		y, ok := c.constEval(e.Y)
		if !ok {
			return constVal{}, false
		}
		return boolVal(y.comps[0].b), true

	case *tir.Ternary:
		cond, ok := c.constEval(e.Cond)
		if !ok {
			return constVal{}, false
		}
		if cond.comps[0].b {
			return c.constEval(e.Then)
		}
		return c.constEval(e.Else)

	case *tir.Swizzle:
		base, ok := c.constEval(e.Base)
		if !ok {
			return constVal{}, false
		}
		out := constVal{typ: e.Type()}
		for _, i := range e.Components {
			out.comps = append(out.comps, base.comps[i])
		}
		return out, true

	case *tir.VectorConstructor:
		out := constVal{typ: e.Type()}
		for _, a := range e.Args {
			v, ok := c.constEval(a)
			if !ok {
				return constVal{}, false
			}
			out.comps = append(out.comps, v.comps...)
		}
		// Single-scalar splat.
		if len(out.comps) == 1 && e.Type().Size > 1 {
			for len(out.comps) < e.Type().Size {
				out.comps = append(out.comps, out.comps[0])
			}
		}
		return out, true

	default:
		return constVal{}, false
	}
}

func literalComp(l *tir.Literal) constComp {
	switch l.Type().Scalar {
	case types.Float:
		return constComp{f: float64(math.Float32frombits(uint32(l.Bits)))}
	case types.Bool:
		return constComp{b: l.Bits != 0}
	case types.Uint32:
		return constComp{i: int64(uint32(l.Bits))}
	default:
		return constComp{i: int64(int32(uint32(l.Bits)))}
	}
}

func boolVal(b bool) constVal {
	return constVal{typ: types.TBool, comps: []constComp{{b: b}}}
}

func convertConst(x constVal, to types.Type) constVal {
	out := constVal{typ: to, comps: make([]constComp, len(x.comps))}
	from := x.typ.Scalar
	for i, comp := range x.comps {
		out.comps[i] = convertComp(comp, from, to.Scalar)
	}
	return out
}

func convertComp(comp constComp, from, to types.Scalar) constComp {
	// Normalise to float64 and bool views first.
	var f float64
	var b bool
	switch from {
	case types.Float:
		f, b = comp.f, comp.f != 0
	case types.Bool:
		b = comp.b
		if b {
			f = 1
		}
	default:
		f, b = float64(comp.i), comp.i != 0
	}
	switch to {
	case types.Float:
		return constComp{f: f}
	case types.Bool:
		return constComp{b: b}
	case types.Uint32:
		return constComp{i: int64(uint32(int64(f)))}
	default:
		return constComp{i: int64(int32(int64(f)))}
	}
}

func evalUnary(e *tir.Unary, x constVal) (constVal, bool) {
	out := constVal{typ: e.Type(), comps: make([]constComp, len(x.comps))}
	for i, comp := range x.comps {
		switch e.Op {
		case tir.UnNeg:
			if e.Type().Scalar == types.Float {
				out.comps[i] = constComp{f: -comp.f}
			} else {
				out.comps[i] = intComp(-comp.i, e.Type().Scalar == types.Uint32)
			}
		case tir.UnNot:
			out.comps[i] = constComp{b: !comp.b}
		case tir.UnBitNot:
			out.comps[i] = intComp(^comp.i, e.Type().Scalar == types.Uint32)
		default:
			return constVal{}, false
		}
	}
	return out, true
}

func (c *checker) evalBinary(e *tir.Binary) (constVal, bool) {
	x, ok := c.constEval(e.X)
	if !ok {
		return constVal{}, false
	}
	y, ok := c.constEval(e.Y)
	if !ok {
		return constVal{}, false
	}

	// Scalar-by-vector broadcast.
	n := len(x.comps)
	if len(y.comps) > n {
		n = len(y.comps)
	}
	get := func(v constVal, i int) constComp {
		if len(v.comps) == 1 {
			return v.comps[0]
		}
		return v.comps[i]
	}

	operandScalar := e.X.Type().Scalar

	// Comparisons that reduce a vector pair to one bool.
	if e.Type().Equal(types.TBool) && (e.Op == tir.BinEq || e.Op == tir.BinNe) {
		eq := true
		for i := 0; i < n; i++ {
			if !compEqual(get(x, i), get(y, i), operandScalar) {
				eq = false
				break
			}
		}
		if e.Op == tir.BinNe {
			eq = !eq
		}
		return boolVal(eq), true
	}

	out := constVal{typ: e.Type(), comps: make([]constComp, n)}
	for i := 0; i < n; i++ {
		comp, ok := c.evalBinaryComp(e, get(x, i), get(y, i), operandScalar)
		if !ok {
			return constVal{}, false
		}
		out.comps[i] = comp
	}
	return out, true
}

func compEqual(a, b constComp, s types.Scalar) bool {
	switch s {
	case types.Float:
		return a.f == b.f
	case types.Bool:
		return a.b == b.b
	default:
		return a.i == b.i
	}
}

func (c *checker) evalBinaryComp(e *tir.Binary, a, b constComp, s types.Scalar) (constComp, bool) {
	if s == types.Float {
		switch e.Op {
		case tir.BinAdd:
			return constComp{f: a.f + b.f}, true
		case tir.BinSub:
			return constComp{f: a.f - b.f}, true
		case tir.BinMul:
			return constComp{f: a.f * b.f}, true
		case tir.BinDiv:
			if b.f == 0 {
				c.diags.Add(source.ErrDivisionByZeroConst, e.Loc(), "division by zero in constant expression")
				return constComp{}, false
			}
			return constComp{f: a.f / b.f}, true
		case tir.BinLt:
			return constComp{b: a.f < b.f}, true
		case tir.BinLe:
			return constComp{b: a.f <= b.f}, true
		case tir.BinGt:
			return constComp{b: a.f > b.f}, true
		case tir.BinGe:
			return constComp{b: a.f >= b.f}, true
		case tir.BinEq:
			return constComp{b: a.f == b.f}, true
		case tir.BinNe:
			return constComp{b: a.f != b.f}, true
		}
		return constComp{}, false
	}

	unsigned := s == types.Uint32
	switch e.Op {
	case tir.BinAdd:
		return intComp(a.i+b.i, unsigned), true
	case tir.BinSub:
		return intComp(a.i-b.i, unsigned), true
	case tir.BinMul:
		return intComp(a.i*b.i, unsigned), true
	case tir.BinDiv, tir.BinMod:
		if b.i == 0 {
			c.diags.Add(source.ErrDivisionByZeroConst, e.Loc(), "division by zero in constant expression")
			return constComp{}, false
		}
		if e.Op == tir.BinDiv {
			return intComp(a.i/b.i, unsigned), true
		}
		return intComp(a.i%b.i, unsigned), true
	case tir.BinAnd:
		return intComp(a.i&b.i, unsigned), true
	case tir.BinOr:
		return intComp(a.i|b.i, unsigned), true
	case tir.BinXor:
		return intComp(a.i^b.i, unsigned), true
	case tir.BinShl:
		return intComp(a.i<<uint(b.i&31), unsigned), true
	case tir.BinShr:
		if unsigned {
			return intComp(int64(uint32(a.i)>>uint(b.i&31)), true), true
		}
		return intComp(int64(int32(a.i)>>uint(b.i&31)), false), true
	case tir.BinLt:
		return constComp{b: a.i < b.i}, true
	case tir.BinLe:
		return constComp{b: a.i <= b.i}, true
	case tir.BinGt:
		return constComp{b: a.i > b.i}, true
	case tir.BinGe:
		return constComp{b: a.i >= b.i}, true
	case tir.BinEq:
		return constComp{b: a.i == b.i}, true
	case tir.BinNe:
		return constComp{b: a.i != b.i}, true
	}
	return constComp{}, false
}

func intComp(v int64, unsigned bool) constComp {
	if unsigned {
		return constComp{i: int64(uint32(v))}
	}
	return constComp{i: int64(int32(v))}
}
