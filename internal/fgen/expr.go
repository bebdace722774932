package fgen

import (
	"fmt"

	"github.com/lightplayer/lpxc/internal/builtins"
	"github.com/lightplayer/lpxc/internal/ssa"
	"github.com/lightplayer/lpxc/internal/tir"
	"github.com/lightplayer/lpxc/internal/types"
)

// evalExpr lowers one expression to its SSA values: one value per
// component for scalars and vectors, a single pointer for matrices and
// arrays (their components live in a stack slot).
func (g *funcGen) evalExpr(e tir.Expr) []ssa.Value {
	switch e := e.(type) {
	case *tir.Literal:
		return []ssa.Value{g.lowerLiteral(e)}

	case *tir.VarRef:
		return g.readVar(e.Var)

	case *tir.Swizzle:
		base := g.evalComps(e.Base)
		out := make([]ssa.Value, len(e.Components))
		for i, c := range e.Components {
			out[i] = base[c]
		}
		return out

	case *tir.Index:
		return g.lowerIndex(e)

	case *tir.VectorConstructor:
		return g.lowerVectorConstructor(e)

	case *tir.MatrixConstructor:
		return g.lowerMatrixConstructor(e)

	case *tir.ArrayInit:
		return g.lowerArrayInit(e)

	case *tir.Unary:
		return g.lowerUnary(e)

	case *tir.Binary:
		return g.lowerBinary(e)

	case *tir.Logical:
		return g.lowerLogical(e)

	case *tir.Ternary:
		return g.lowerTernary(e)

	case *tir.Convert:
		return g.lowerConvert(e)

	case *tir.Call:
		return g.lowerCall(e)

	default:
		g.fail("unhandled expression %T", e)
		return nil
	}
}

// evalComps is evalExpr with matrices and arrays expanded to their full
// component list, for assignment, return, and argument-explosion sites.
func (g *funcGen) evalComps(e tir.Expr) []ssa.Value {
	vals := g.evalExpr(e)
	t := e.Type()
	if t.IsMatrix() || t.IsArray() {
		return g.loadComps(vals[0], 0, t.NumComponents(), scalarSSAType(elemScalar(t)))
	}
	return vals
}

// evalScalar evaluates an expression known to be single-component.
func (g *funcGen) evalScalar(e tir.Expr) ssa.Value {
	return g.evalExpr(e)[0]
}

func (g *funcGen) loadComps(ptr ssa.Value, baseOff int32, n int, t ssa.Type) []ssa.Value {
	out := make([]ssa.Value, n)
	for i := range out {
		out[i] = g.b.Load(t, ptr, baseOff+int32(i*4))
	}
	return out
}

func (g *funcGen) lowerLiteral(e *tir.Literal) ssa.Value {
	switch e.Type().Scalar {
	case types.Float:
		return g.b.ConstF32(uint32(e.Bits))
	case types.Uint32:
		return g.b.Const(ssa.U32, int64(uint32(e.Bits)))
	default:
		return g.b.Const(ssa.I32, int64(int32(uint32(e.Bits))))
	}
}

// readVar reads a variable's current value. Module-scope constants have
// no runtime storage: their initialiser (a constant expression) is
// re-lowered at each use site and folds to constants downstream.
func (g *funcGen) readVar(v *tir.Variable) []ssa.Value {
	state, ok := g.vars[v]
	if !ok {
		init, isGlobal := g.mod.GlobalInit[v]
		if !isGlobal {
			g.fail("read of unbound variable %s", v.Name)
		}
		return g.evalExpr(init)
	}
	if !state.viaPtr {
		return append([]ssa.Value{}, state.regs...)
	}
	t := state.t
	if t.IsMatrix() || t.IsArray() {
		return []ssa.Value{state.ptr}
	}
	return g.loadComps(state.ptr, 0, t.NumComponents(), scalarSSAType(t.Scalar))
}

func (g *funcGen) lowerIndex(e *tir.Index) []ssa.Value {
	base := g.evalExpr(e.Base)[0] // array or matrix: always a pointer
	bt := e.Base.Type()

	var stride int
	if bt.IsMatrix() {
		stride = bt.Size * 4
	} else {
		stride = bt.Elem.NumComponents() * 4
	}
	n := e.Type().NumComponents()
	st := scalarSSAType(elemScalar(e.Type()))
	compact := e.Type().IsMatrix() || e.Type().IsArray()

	if lit, ok := e.Idx.(*tir.Literal); ok {
		off := int32(int64(int32(uint32(lit.Bits))) * int64(stride))
		if compact {
			offV := g.b.Const(ssa.I32, int64(off))
			return []ssa.Value{g.b.BinOp(ssa.OpAdd, ssa.Ptr, base, offV)}
		}
		return g.loadComps(base, off, n, st)
	}
	idx := g.evalScalar(e.Idx)
	strideV := g.b.Const(ssa.I32, int64(stride))
	byteOff := g.b.BinOp(ssa.OpMul, ssa.I32, idx, strideV)
	addr := g.b.BinOp(ssa.OpAdd, ssa.Ptr, base, byteOff)
	if compact {
		return []ssa.Value{addr}
	}
	return g.loadComps(addr, 0, n, st)
}

func (g *funcGen) lowerVectorConstructor(e *tir.VectorConstructor) []ssa.Value {
	size := e.Type().Size
	var comps []ssa.Value
	for _, a := range e.Args {
		comps = append(comps, g.evalComps(a)...)
	}
	// Single-scalar splat: reuse the one value for every component.
	if len(comps) == 1 && size > 1 {
		out := make([]ssa.Value, size)
		for i := range out {
			out[i] = comps[0]
		}
		return out
	}
	return comps
}

func (g *funcGen) lowerMatrixConstructor(e *tir.MatrixConstructor) []ssa.Value {
	t := e.Type()
	slot := g.b.StackSlot(byteSize(t), 4)
	off := int32(0)
	for _, a := range e.Args {
		for _, v := range g.evalComps(a) {
			g.b.Store(slot, v, off, ssa.F32)
			off += 4
		}
	}
	return []ssa.Value{slot}
}

func (g *funcGen) lowerArrayInit(e *tir.ArrayInit) []ssa.Value {
	t := e.Type()
	slot := g.b.StackSlot(byteSize(t), 4)
	st := scalarSSAType(elemScalar(t))
	off := int32(0)
	for _, elem := range e.Elems {
		for _, v := range g.evalComps(elem) {
			g.b.Store(slot, v, off, st)
			off += 4
		}
	}
	return []ssa.Value{slot}
}

func (g *funcGen) lowerUnary(e *tir.Unary) []ssa.Value {
	t := e.Type()
	if t.IsMatrix() {
		x := g.evalComps(e.X)
		slot := g.b.StackSlot(byteSize(t), 4)
		for i, v := range x {
			neg := g.b.UnOp(ssa.OpNeg, ssa.F32, v)
			g.b.Store(slot, neg, int32(i*4), ssa.F32)
		}
		return []ssa.Value{slot}
	}
	x := g.evalComps(e.X)
	st := scalarSSAType(t.Scalar)
	out := make([]ssa.Value, len(x))
	for i, v := range x {
		switch e.Op {
		case tir.UnNeg:
			out[i] = g.b.UnOp(ssa.OpNeg, st, v)
		case tir.UnNot:
			one := g.b.Const(ssa.I32, 1)
			out[i] = g.b.BinOp(ssa.OpXor, ssa.I32, v, one)
		case tir.UnBitNot:
			out[i] = g.b.UnOp(ssa.OpNot, st, v)
		}
	}
	return out
}

var ssaBinOp = map[tir.BinaryOp]ssa.Op{
	tir.BinAdd: ssa.OpAdd, tir.BinSub: ssa.OpSub, tir.BinMul: ssa.OpMul,
	tir.BinDiv: ssa.OpDiv, tir.BinMod: ssa.OpRem,
	tir.BinAnd: ssa.OpAnd, tir.BinOr: ssa.OpOr, tir.BinXor: ssa.OpXor,
	tir.BinShl: ssa.OpShl, tir.BinShr: ssa.OpShr,
}

var ssaCmpOp = map[tir.BinaryOp]ssa.Op{
	tir.BinEq: ssa.OpCmpEq, tir.BinNe: ssa.OpCmpNe,
	tir.BinLt: ssa.OpCmpLt, tir.BinLe: ssa.OpCmpLe,
	tir.BinGt: ssa.OpCmpGt, tir.BinGe: ssa.OpCmpGe,
}

func (g *funcGen) scalarBinOp(op tir.BinaryOp, st ssa.Type, x, y ssa.Value) ssa.Value {
	if sop, ok := ssaBinOp[op]; ok {
		return g.b.BinOp(sop, st, x, y)
	}
	return g.b.CmpTyped(ssaCmpOp[op], st, x, y)
}

func (g *funcGen) lowerBinary(e *tir.Binary) []ssa.Value {
	xt, yt := e.X.Type(), e.Y.Type()

	if xt.IsMatrix() || yt.IsMatrix() {
		return g.lowerMatrixBinary(e)
	}

	x := g.evalComps(e.X)
	y := g.evalComps(e.Y)
	opScalar := xt.Scalar
	if xt.IsScalar() && !yt.IsScalar() {
		opScalar = yt.Scalar
	}
	st := scalarSSAType(opScalar)

	n := len(x)
	if len(y) > n {
		n = len(y)
	}
	pick := func(vals []ssa.Value, i int) ssa.Value {
		if len(vals) == 1 {
			return vals[0]
		}
		return vals[i]
	}

	// A vector ==/!= with a scalar bool result reduces component
	// comparisons with and/or.
	if e.Type().Equal(types.TBool) && n > 1 && (e.Op == tir.BinEq || e.Op == tir.BinNe) {
		var acc ssa.Value
		reduceOp := ssa.OpAnd
		if e.Op == tir.BinNe {
			reduceOp = ssa.OpOr
		}
		for i := 0; i < n; i++ {
			c := g.b.CmpTyped(ssaCmpOp[e.Op], st, pick(x, i), pick(y, i))
			if i == 0 {
				acc = c
			} else {
				acc = g.b.BinOp(reduceOp, ssa.I32, acc, c)
			}
		}
		return []ssa.Value{acc}
	}

	out := make([]ssa.Value, n)
	for i := 0; i < n; i++ {
		out[i] = g.scalarBinOp(e.Op, st, pick(x, i), pick(y, i))
	}
	return out
}

// lowerMatrixBinary covers matrix+-matrix (component-wise) and the three
// multiply forms: matrix*scalar, matrix*vector, matrix*matrix. Storage is
// column-major, so element (row i, col j) of an order-n matrix sits at
// byte offset (j*n+i)*4.
func (g *funcGen) lowerMatrixBinary(e *tir.Binary) []ssa.Value {
	xt, yt := e.X.Type(), e.Y.Type()

	if e.Op == tir.BinAdd || e.Op == tir.BinSub {
		x := g.evalComps(e.X)
		y := g.evalComps(e.Y)
		slot := g.b.StackSlot(byteSize(e.Type()), 4)
		for i := range x {
			v := g.scalarBinOp(e.Op, ssa.F32, x[i], y[i])
			g.b.Store(slot, v, int32(i*4), ssa.F32)
		}
		return []ssa.Value{slot}
	}

	switch {
	case xt.IsMatrix() && yt.IsScalar():
		return g.matScale(e.X, e.Y)
	case xt.IsScalar() && yt.IsMatrix():
		return g.matScale(e.Y, e.X)
	case xt.IsMatrix() && yt.IsVector():
		return g.matVecMul(e.X, e.Y)
	default:
		return g.matMatMul(e.X, e.Y)
	}
}

func (g *funcGen) matScale(m, s tir.Expr) []ssa.Value {
	comps := g.evalComps(m)
	k := g.evalScalar(s)
	slot := g.b.StackSlot(uint32(len(comps)*4), 4)
	for i, v := range comps {
		g.b.Store(slot, g.b.BinOp(ssa.OpMul, ssa.F32, v, k), int32(i*4), ssa.F32)
	}
	return []ssa.Value{slot}
}

func (g *funcGen) matVecMul(m, v tir.Expr) []ssa.Value {
	n := m.Type().Size
	mc := g.evalComps(m)
	vc := g.evalComps(v)
	out := make([]ssa.Value, n)
	for i := 0; i < n; i++ {
		var acc ssa.Value
		for j := 0; j < n; j++ {
			term := g.b.BinOp(ssa.OpMul, ssa.F32, mc[j*n+i], vc[j])
			if j == 0 {
				acc = term
			} else {
				acc = g.b.BinOp(ssa.OpAdd, ssa.F32, acc, term)
			}
		}
		out[i] = acc
	}
	return out
}

func (g *funcGen) matMatMul(x, y tir.Expr) []ssa.Value {
	n := x.Type().Size
	xc := g.evalComps(x)
	yc := g.evalComps(y)
	slot := g.b.StackSlot(uint32(n*n*4), 4)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			var acc ssa.Value
			for k := 0; k < n; k++ {
				term := g.b.BinOp(ssa.OpMul, ssa.F32, xc[k*n+i], yc[j*n+k])
				if k == 0 {
					acc = term
				} else {
					acc = g.b.BinOp(ssa.OpAdd, ssa.F32, acc, term)
				}
			}
			g.b.Store(slot, acc, int32((j*n+i)*4), ssa.F32)
		}
	}
	return []ssa.Value{slot}
}

// lowerLogical lowers && and || as explicit branches. The join block
// carries the tracked variables plus the result, since the right-hand
// side may write an out parameter.
func (g *funcGen) lowerLogical(e *tir.Logical) []ssa.Value {
	n := len(g.tracked)
	x := g.evalScalar(e.X)

	rhsB := g.b.NewBlock(g.trackedTypes(n)...)
	joinB := g.b.NewBlock(append(g.trackedTypes(n), ssa.I32)...)

	snap := g.snapshot(n)
	if e.Op == tir.LogAnd {
		zero := g.b.Const(ssa.I32, 0)
		g.b.CondBr(x, rhsB.ID, snap, joinB.ID, append(append([]ssa.Value{}, snap...), zero))
	} else {
		one := g.b.Const(ssa.I32, 1)
		g.b.CondBr(x, joinB.ID, append(append([]ssa.Value{}, snap...), one), rhsB.ID, snap)
	}

	g.b.SetBlock(rhsB)
	g.bindTracked(rhsB, n)
	y := g.evalScalar(e.Y)
	g.b.Br(joinB.ID, append(g.snapshot(n), y)...)

	g.b.SetBlock(joinB)
	g.bindTracked(joinB, n)
	return []ssa.Value{joinB.Params[len(joinB.Params)-1]}
}

func (g *funcGen) lowerTernary(e *tir.Ternary) []ssa.Value {
	t := e.Type()
	var resultTypes []ssa.Type
	if t.IsMatrix() || t.IsArray() {
		resultTypes = []ssa.Type{ssa.Ptr}
	} else {
		resultTypes = explodedTypes(t)
	}

	n := len(g.tracked)
	cond := g.evalScalar(e.Cond)

	thenB := g.b.NewBlock(g.trackedTypes(n)...)
	elseB := g.b.NewBlock(g.trackedTypes(n)...)
	joinB := g.b.NewBlock(append(g.trackedTypes(n), resultTypes...)...)

	snap := g.snapshot(n)
	g.b.CondBr(cond, thenB.ID, snap, elseB.ID, snap)

	g.b.SetBlock(thenB)
	g.bindTracked(thenB, n)
	thenVals := g.evalExpr(e.Then)
	g.b.Br(joinB.ID, append(g.snapshot(n), thenVals...)...)

	g.b.SetBlock(elseB)
	g.bindTracked(elseB, n)
	elseVals := g.evalExpr(e.Else)
	g.b.Br(joinB.ID, append(g.snapshot(n), elseVals...)...)

	g.b.SetBlock(joinB)
	g.bindTracked(joinB, n)
	return joinB.Params[len(joinB.Params)-len(resultTypes):]
}

// lowerConvert emits the scalar-kind conversions, component-wise. The
// float cases go through the saturating __lp_q32 conversion builtins
// (emitted here under their GLSL-side names for the Q32 pass to
// retarget); the integer cases are free or a single compare.
func (g *funcGen) lowerConvert(e *tir.Convert) []ssa.Value {
	from := e.X.Type().Scalar
	to := e.Type().Scalar
	x := g.evalComps(e.X)
	out := make([]ssa.Value, len(x))
	for i, v := range x {
		out[i] = g.convertScalar(v, from, to)
	}
	return out
}

func (g *funcGen) convertScalar(v ssa.Value, from, to types.Scalar) ssa.Value {
	if from == to {
		return v
	}
	switch {
	case to == types.Float:
		name := "fromint"
		if from == types.Uint32 {
			name = "fromuint"
		}
		g.addExtern(symbolFor(name), []ssa.Type{ssa.I32}, []ssa.Type{ssa.F32})
		return g.b.Call(name, []ssa.Type{ssa.F32}, v)[0]
	case from == types.Float && to == types.Int32:
		g.addExtern(symbolFor("toint"), []ssa.Type{ssa.F32}, []ssa.Type{ssa.I32})
		return g.b.Call("toint", []ssa.Type{ssa.I32}, v)[0]
	case from == types.Float && to == types.Uint32:
		g.addExtern(symbolFor("touint"), []ssa.Type{ssa.F32}, []ssa.Type{ssa.U32})
		return g.b.Call("touint", []ssa.Type{ssa.U32}, v)[0]
	case to == types.Bool:
		zero := g.b.Const(ssa.I32, 0)
		return g.b.Cmp(ssa.OpCmpNe, v, zero)
	default:
		// bool -> int/uint and int <-> uint share a bit pattern.
		return v
	}
}

// symbolFor resolves a GLSL-side builtin name to its linker symbol, for
// extern declarations; the call itself keeps the GLSL name until the Q32
// pass retargets it via the registry.
func symbolFor(name string) string {
	if id, ok := builtins.Default().ByName(name); ok {
		entry, _ := builtins.Default().Lookup(id)
		return entry.Symbol
	}
	return name
}

func (g *funcGen) lowerCall(e *tir.Call) []ssa.Value {
	switch e.Kind {
	case tir.CallUser:
		return g.lowerUserCall(e)
	case tir.CallBuiltin:
		return g.lowerBuiltinCall(e)
	case tir.CallLPFX:
		return g.lowerLPFXCall(e)
	}
	g.fail("unhandled call kind %d", e.Kind)
	return nil
}

type outFixup struct {
	lv   tir.LValue
	t    types.Type
	slot ssa.Value
}

func (g *funcGen) lowerUserCall(e *tir.Call) []ssa.Value {
	var args []ssa.Value
	var fixups []outFixup

	for i, a := range e.Args {
		p := e.Func.Params[i]
		t := p.Var.Type.Unqualified()
		if out, ok := a.(*tir.OutArg); ok {
			slot := g.b.StackSlot(byteSize(t), 4)
			if p.Qualifier == types.InOut {
				cur := g.readLV(out.LV, t)
				st := scalarSSAType(elemScalar(t))
				for k, v := range cur {
					g.b.Store(slot, v, int32(k*4), st)
				}
			}
			args = append(args, slot)
			fixups = append(fixups, outFixup{lv: out.LV, t: t, slot: slot})
			continue
		}
		if t.IsMatrix() || t.IsArray() {
			args = append(args, g.evalExpr(a)[0])
			continue
		}
		args = append(args, g.evalComps(a)...)
	}

	ret := e.Func.Return.Unqualified()
	var results []ssa.Value
	if ret.IsMatrix() || ret.IsArray() {
		rslot := g.b.StackSlot(byteSize(ret), 4)
		args = append(args, rslot)
		g.b.Call(e.Name, nil, args...)
		results = []ssa.Value{rslot}
	} else {
		var sig []ssa.Type
		if !ret.Equal(types.TVoid) {
			sig = explodedTypes(ret)
		}
		results = g.b.Call(e.Name, sig, args...)
	}

	for _, f := range fixups {
		st := scalarSSAType(elemScalar(f.t))
		vals := g.loadComps(f.slot, 0, f.t.NumComponents(), st)
		g.writeLV(f.lv, f.t, vals)
	}
	return results
}

func (g *funcGen) lowerBuiltinCall(e *tir.Call) []ssa.Value {
	switch e.Name {
	case "determinant", "inverse":
		return g.lowerMatrixBuiltin(e)
	}

	id, ok := builtins.Default().ByName(e.Name)
	var entry builtins.Entry
	if ok {
		entry, _ = builtins.Default().Lookup(id)
	}

	// isnan/isinf have no registry entry (the Q32 pass inlines them to a
	// constant); their shape is (float) -> bool.
	resultType := ssa.F32
	if e.Name == "isnan" || e.Name == "isinf" {
		resultType = ssa.I32
	} else if len(entry.Return) == 1 && entry.Return[0] == builtins.PInt32 {
		resultType = ssa.I32
	}
	if !ok && e.Name != "isnan" && e.Name != "isinf" {
		g.fail("call to unknown builtin %q", e.Name)
	}
	if ok {
		g.addExtern(entry.Symbol, paramKindTypes(entry.Params), paramKindTypes(entry.Return))
	}

	// Component-wise expansion under genType rules: vector arguments
	// agree on length, scalar arguments broadcast.
	argComps := make([][]ssa.Value, len(e.Args))
	vecSize := 1
	for i, a := range e.Args {
		argComps[i] = g.evalComps(a)
		if len(argComps[i]) > vecSize {
			vecSize = len(argComps[i])
		}
	}

	out := make([]ssa.Value, vecSize)
	for c := 0; c < vecSize; c++ {
		callArgs := make([]ssa.Value, len(argComps))
		for i, comps := range argComps {
			if len(comps) == 1 {
				callArgs[i] = comps[0]
			} else {
				callArgs[i] = comps[c]
			}
		}
		out[c] = g.b.Call(e.Name, []ssa.Type{resultType}, callArgs...)[0]
	}
	return out
}

// lowerMatrixBuiltin emits the pointer-convention matrix calls with their
// order-qualified symbols; the unqualified GLSL name is ambiguous across
// the three orders, so the symbol is resolved here rather than in the Q32
// pass.
func (g *funcGen) lowerMatrixBuiltin(e *tir.Call) []ssa.Value {
	m := e.Args[0]
	order := m.Type().Size
	src := g.evalExpr(m)[0]

	if e.Name == "determinant" {
		sym := fmt.Sprintf("__lp_q32_determinant%d", order)
		g.addExtern(sym, []ssa.Type{ssa.Ptr}, []ssa.Type{ssa.F32})
		return g.b.Call(sym, []ssa.Type{ssa.F32}, src)
	}
	sym := fmt.Sprintf("__lp_q32_inverse%d", order)
	g.addExtern(sym, []ssa.Type{ssa.Ptr, ssa.Ptr}, nil)
	dst := g.b.StackSlot(uint32(order*order*4), 4)
	g.b.Call(sym, nil, src, dst)
	return []ssa.Value{dst}
}

func (g *funcGen) lowerLPFXCall(e *tir.Call) []ssa.Value {
	id, ok := builtins.DefaultLPFX().ByName(e.Name)
	if !ok {
		g.fail("call to unknown LPFX function %q", e.Name)
	}
	entry, _ := builtins.DefaultLPFX().Lookup(id)
	g.addExtern(entry.F32Sym, paramKindTypes(entry.Params), paramKindTypes(entry.Return))

	switch id {
	case builtins.LHSV2RGB, builtins.LRGB2HSV:
		// Packed convention: the vec3 explodes into the three scalar
		// parameters, and three scalars come back.
		args := g.evalComps(e.Args[0])
		return g.b.Call(entry.F32Sym, []ssa.Type{ssa.F32, ssa.F32, ssa.F32}, args...)

	case builtins.LNoise1, builtins.LNoise2:
		var args []ssa.Value
		for _, a := range e.Args {
			args = append(args, g.evalScalar(a))
		}
		return g.b.Call(entry.F32Sym, []ssa.Type{ssa.F32}, args...)

	default:
		// mix/clamp/smoothstep: component-wise with scalar broadcast.
		argComps := make([][]ssa.Value, len(e.Args))
		vecSize := 1
		for i, a := range e.Args {
			argComps[i] = g.evalComps(a)
			if len(argComps[i]) > vecSize {
				vecSize = len(argComps[i])
			}
		}
		out := make([]ssa.Value, vecSize)
		for c := 0; c < vecSize; c++ {
			callArgs := make([]ssa.Value, len(argComps))
			for i, comps := range argComps {
				if len(comps) == 1 {
					callArgs[i] = comps[0]
				} else {
					callArgs[i] = comps[c]
				}
			}
			out[c] = g.b.Call(entry.F32Sym, []ssa.Type{ssa.F32}, callArgs...)[0]
		}
		return out
	}
}

// lvType recomputes the value type an lvalue denotes, mirroring the
// typing sema already performed.
func (g *funcGen) lvType(lv tir.LValue) types.Type {
	t := lv.Base.Type.Unqualified()
	if lv.Index != nil {
		if t.IsMatrix() {
			t = types.Vector(types.Float, t.Size)
		} else {
			t = t.Elem.Unqualified()
		}
	}
	if lv.Components != nil {
		if len(lv.Components) == 1 {
			t = types.ScalarType(t.Scalar)
		} else {
			t = types.Vector(t.Scalar, len(lv.Components))
		}
	}
	return t
}

// lvAddr computes the pointer and base byte offset for a pointer-backed
// lvalue's element (after indexing, before component selection).
func (g *funcGen) lvAddr(lv tir.LValue, state *varState) (ssa.Value, int32) {
	ptr := state.ptr
	if lv.Index == nil {
		return ptr, 0
	}
	bt := state.t
	var stride int
	if bt.IsMatrix() {
		stride = bt.Size * 4
	} else {
		stride = bt.Elem.NumComponents() * 4
	}
	if lit, ok := lv.Index.(*tir.Literal); ok {
		return ptr, int32(int64(int32(uint32(lit.Bits))) * int64(stride))
	}
	idx := g.evalScalar(lv.Index)
	strideV := g.b.Const(ssa.I32, int64(stride))
	byteOff := g.b.BinOp(ssa.OpMul, ssa.I32, idx, strideV)
	return g.b.BinOp(ssa.OpAdd, ssa.Ptr, ptr, byteOff), 0
}

// readLV reads an lvalue's current value as exploded components.
func (g *funcGen) readLV(lv tir.LValue, t types.Type) []ssa.Value {
	state := g.vars[lv.Base]
	if state == nil {
		g.fail("write target %s has no storage", lv.Base.Name)
	}

	if !state.viaPtr {
		comps := state.regs
		if lv.Components != nil {
			out := make([]ssa.Value, len(lv.Components))
			for i, c := range lv.Components {
				out[i] = comps[c]
			}
			return out
		}
		return append([]ssa.Value{}, comps...)
	}

	ptr, base := g.lvAddr(lv, state)
	st := scalarSSAType(elemScalar(t))
	if lv.Components != nil {
		out := make([]ssa.Value, len(lv.Components))
		for i, c := range lv.Components {
			out[i] = g.b.Load(st, ptr, base+int32(c*4))
		}
		return out
	}
	return g.loadComps(ptr, base, t.NumComponents(), st)
}

// writeLV stores exploded components into an lvalue.
func (g *funcGen) writeLV(lv tir.LValue, t types.Type, vals []ssa.Value) {
	state := g.vars[lv.Base]
	if state == nil {
		g.fail("write target %s has no storage", lv.Base.Name)
	}

	if !state.viaPtr {
		if lv.Components != nil {
			for i, c := range lv.Components {
				state.regs[c] = vals[i]
			}
			return
		}
		state.regs = append([]ssa.Value{}, vals...)
		return
	}

	ptr, base := g.lvAddr(lv, state)
	st := scalarSSAType(elemScalar(t))
	if lv.Components != nil {
		for i, c := range lv.Components {
			g.b.Store(ptr, vals[i], base+int32(c*4), st)
		}
		return
	}
	for i, v := range vals {
		g.b.Store(ptr, v, base+int32(i*4), st)
	}
}
