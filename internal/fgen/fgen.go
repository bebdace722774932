// Package fgen is the front-end code generator: it lowers the typed IR to
// the SSA IR, still in the float world (the Q32 pass runs after it).
//
// Storage strategy: scalars and vectors of length <= 4 live in
// SSA values, one per component, joined across control flow with block
// parameters; matrices and arrays live in stack slots addressed by
// pointer; out/inout parameters arrive as pointers and are loaded through
// on read, stored through on write. break/continue lower to branches to
// blocks tracked by a stack of loop contexts, and && / || lower to
// explicit branches.
package fgen

import (
	"fmt"

	"github.com/lightplayer/lpxc/internal/builtins"
	"github.com/lightplayer/lpxc/internal/ssa"
	"github.com/lightplayer/lpxc/internal/tir"
	"github.com/lightplayer/lpxc/internal/types"
)

// Lower lowers every function in mod. A lowering failure is fatal for the
// containing function only; the remaining functions still compile, and
// the first failure is reported in the returned error.
func Lower(mod *tir.Module) (*ssa.Module, error) {
	out := &ssa.Module{}
	externs := make(map[string]ssa.ExternFunc)
	var firstErr error
	for _, fn := range mod.Functions {
		lowered, err := lowerFunction(mod, fn, externs)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out.Functions = append(out.Functions, lowered)
	}
	for _, e := range externs {
		out.Externs = append(out.Externs, e)
	}
	return out, firstErr
}

// lowerFailure unwinds one function's lowering on an unrepresentable
// construct, surfacing a clean per-function error instead of a panic.
type lowerFailure struct {
	msg string
}

func lowerFunction(mod *tir.Module, fn *tir.Function, externs map[string]ssa.ExternFunc) (out *ssa.Function, err error) {
	defer func() {
		if r := recover(); r != nil {
			f, ok := r.(lowerFailure)
			if !ok {
				panic(r)
			}
			out, err = nil, fmt.Errorf("lowering %s: %s", fn.Name, f.msg)
		}
	}()

	params, returns, sret := signature(fn)
	sfn := ssa.NewFunction(fn.Name, params, returns)
	sfn.Exported = fn.Exported

	g := &funcGen{
		mod:     mod,
		tfn:     fn,
		fn:      sfn,
		b:       ssa.NewBuilder(sfn),
		vars:    make(map[*tir.Variable]*varState),
		externs: externs,
	}
	g.bindEntryParams(sret)
	g.lowerStmts(fn.Body)
	g.ensureReturn()
	return sfn, nil
}

func (g *funcGen) fail(format string, args ...any) {
	panic(lowerFailure{msg: fmt.Sprintf(format, args...)})
}

// scalarSSAType maps a GLSL scalar to its 32-bit machine type. Bool is a
// 0/1 int32.
func scalarSSAType(s types.Scalar) ssa.Type {
	switch s {
	case types.Float:
		return ssa.F32
	case types.Uint32:
		return ssa.U32
	default:
		return ssa.I32
	}
}

// explodedTypes is the register shape of a scalar or vector value.
func explodedTypes(t types.Type) []ssa.Type {
	st := scalarSSAType(t.Scalar)
	n := 1
	if t.IsVector() {
		n = t.Size
	}
	out := make([]ssa.Type, n)
	for i := range out {
		out[i] = st
	}
	return out
}

func byteSize(t types.Type) uint32 {
	return uint32(t.NumComponents()) * 4
}

// signature flattens a typed function signature into the SSA calling
// convention: in scalars/vectors explode into one 32-bit value per
// component, out/inout parameters and in matrices/arrays pass a pointer,
// and a matrix or array return becomes a trailing result pointer (sret)
// the caller allocates.
func signature(fn *tir.Function) (params, returns []ssa.Type, sret bool) {
	for _, p := range fn.Params {
		t := p.Var.Type.Unqualified()
		if p.Qualifier != types.In || t.IsMatrix() || t.IsArray() {
			params = append(params, ssa.Ptr)
			continue
		}
		params = append(params, explodedTypes(t)...)
	}
	ret := fn.Return.Unqualified()
	switch {
	case ret.Equal(types.TVoid):
	case ret.IsMatrix() || ret.IsArray():
		params = append(params, ssa.Ptr)
		sret = true
	default:
		returns = explodedTypes(ret)
	}
	return params, returns, sret
}

// varState is one variable's storage: exploded SSA values for scalars and
// vectors, or a pointer for matrices, arrays, and out/inout parameters.
type varState struct {
	t      types.Type
	regs   []ssa.Value
	ptr    ssa.Value
	viaPtr bool
}

type loopCtx struct {
	continueTo ssa.BlockID
	breakTo    ssa.BlockID
	trackedLen int
}

type funcGen struct {
	mod     *tir.Module
	tfn     *tir.Function
	fn      *ssa.Function
	b       *ssa.Builder
	vars    map[*tir.Variable]*varState
	tracked []*tir.Variable // register-resident vars, in declaration order
	loops   []loopCtx
	externs map[string]ssa.ExternFunc
	sret    ssa.Value
}

func (g *funcGen) bindEntryParams(sret bool) {
	entryParams := g.fn.Entry().Params
	i := 0
	for _, p := range g.tfn.Params {
		t := p.Var.Type.Unqualified()
		switch {
		case p.Qualifier != types.In:
			g.vars[p.Var] = &varState{t: t, ptr: entryParams[i], viaPtr: true}
			i++
		case t.IsMatrix() || t.IsArray():
			// Value semantics: copy the argument into a local slot so
			// writes inside this function stay local.
			src := entryParams[i]
			i++
			slot := g.b.StackSlot(byteSize(t), 4)
			g.copyWords(slot, src, t.NumComponents(), scalarSSAType(t.Scalar))
			g.vars[p.Var] = &varState{t: t, ptr: slot, viaPtr: true}
		default:
			n := len(explodedTypes(t))
			state := &varState{t: t, regs: append([]ssa.Value{}, entryParams[i:i+n]...)}
			i += n
			g.vars[p.Var] = state
			g.tracked = append(g.tracked, p.Var)
		}
	}
	if sret {
		g.sret = entryParams[len(entryParams)-1]
	}
}

func (g *funcGen) copyWords(dst, src ssa.Value, n int, t ssa.Type) {
	for i := 0; i < n; i++ {
		v := g.b.Load(t, src, int32(i*4))
		g.b.Store(dst, v, int32(i*4), t)
	}
}

// snapshot collects the current values of the first n tracked variables,
// the argument list for a branch into a join block.
func (g *funcGen) snapshot(n int) []ssa.Value {
	var out []ssa.Value
	for _, v := range g.tracked[:n] {
		out = append(out, g.vars[v].regs...)
	}
	return out
}

func (g *funcGen) trackedTypes(n int) []ssa.Type {
	var out []ssa.Type
	for _, v := range g.tracked[:n] {
		out = append(out, explodedTypes(v.Type.Unqualified())...)
	}
	return out
}

// bindTracked rebinds the first n tracked variables to a join block's
// parameters, in the same order snapshot produced them.
func (g *funcGen) bindTracked(blk *ssa.Block, n int) {
	i := 0
	for _, v := range g.tracked[:n] {
		state := g.vars[v]
		k := len(state.regs)
		state.regs = append([]ssa.Value{}, blk.Params[i:i+k]...)
		i += k
	}
}

// dropTracked discards variables declared inside a scope that just ended.
func (g *funcGen) dropTracked(n int) {
	for _, v := range g.tracked[n:] {
		delete(g.vars, v)
	}
	g.tracked = g.tracked[:n]
}

func (g *funcGen) terminated() bool {
	cur := g.b.CurrentBlock()
	return len(cur.Instrs) > 0 && ssa.IsTerminator(cur.Instrs[len(cur.Instrs)-1].Op)
}

// ensureReturn terminates the current block with a default-value return,
// covering both a non-void function whose last statement is a loop and
// the join block left behind when every path already returned.
func (g *funcGen) ensureReturn() {
	if g.terminated() {
		return
	}
	var vals []ssa.Value
	for _, t := range g.fn.Returns {
		if t == ssa.F32 {
			vals = append(vals, g.b.ConstF32(0))
		} else {
			vals = append(vals, g.b.Const(t, 0))
		}
	}
	g.b.Return(vals...)
}

func (g *funcGen) lowerStmts(list []tir.Stmt) {
	for _, s := range list {
		if g.terminated() {
			return
		}
		g.lowerStmt(s)
	}
}

func (g *funcGen) lowerStmt(s tir.Stmt) {
	switch s := s.(type) {
	case *tir.VarDecl:
		g.lowerVarDecl(s)
	case *tir.Assign:
		g.lowerAssign(s)
	case *tir.ExprStmt:
		g.evalExpr(s.Value)
	case *tir.If:
		g.lowerIf(s)
	case *tir.While:
		g.lowerWhile(s)
	case *tir.DoWhile:
		g.lowerDoWhile(s)
	case *tir.For:
		g.lowerFor(s)
	case *tir.Break:
		ctx := g.loops[len(g.loops)-1]
		g.b.Br(ctx.breakTo, g.snapshot(ctx.trackedLen)...)
	case *tir.Continue:
		ctx := g.loops[len(g.loops)-1]
		g.b.Br(ctx.continueTo, g.snapshot(ctx.trackedLen)...)
	case *tir.Return:
		g.lowerReturn(s)
	default:
		g.fail("unhandled statement %T", s)
	}
}

func (g *funcGen) lowerVarDecl(s *tir.VarDecl) {
	t := s.Var.Type.Unqualified()
	if t.IsMatrix() || t.IsArray() {
		slot := g.b.StackSlot(byteSize(t), 4)
		g.vars[s.Var] = &varState{t: t, ptr: slot, viaPtr: true}
		if s.Init != nil {
			vals := g.evalComps(s.Init)
			for i, v := range vals {
				g.b.Store(slot, v, int32(i*4), scalarSSAType(elemScalar(t)))
			}
		}
		return
	}

	var regs []ssa.Value
	if s.Init != nil {
		regs = g.evalComps(s.Init)
	} else {
		for _, st := range explodedTypes(t) {
			if st == ssa.F32 {
				regs = append(regs, g.b.ConstF32(0))
			} else {
				regs = append(regs, g.b.Const(st, 0))
			}
		}
	}
	g.vars[s.Var] = &varState{t: t, regs: regs}
	g.tracked = append(g.tracked, s.Var)
}

// elemScalar is the scalar kind of a type's components (Float for
// matrices, the element's scalar for arrays).
func elemScalar(t types.Type) types.Scalar {
	if t.IsArray() {
		return elemScalar(*t.Elem)
	}
	return t.Scalar
}

var assignBinOp = map[tir.AssignOp]tir.BinaryOp{
	tir.AssignAdd: tir.BinAdd, tir.AssignSub: tir.BinSub, tir.AssignMul: tir.BinMul,
	tir.AssignDiv: tir.BinDiv, tir.AssignMod: tir.BinMod, tir.AssignAnd: tir.BinAnd,
	tir.AssignOr: tir.BinOr, tir.AssignXor: tir.BinXor, tir.AssignShl: tir.BinShl,
	tir.AssignShr: tir.BinShr,
}

func (g *funcGen) lowerAssign(s *tir.Assign) {
	targetType := g.lvType(s.Target)
	vals := g.evalComps(s.Value)

	if s.Op != tir.AssignSet {
		cur := g.readLV(s.Target, targetType)
		op := assignBinOp[s.Op]
		st := scalarSSAType(elemScalar(targetType))
		out := make([]ssa.Value, len(cur))
		for i := range cur {
			rhs := vals[0]
			if len(vals) > 1 {
				rhs = vals[i]
			}
			out[i] = g.scalarBinOp(op, st, cur[i], rhs)
		}
		vals = out
	} else if len(vals) == 1 && targetType.IsVector() {
		// Scalar broadcast onto a vector-shaped target.
		expanded := make([]ssa.Value, targetType.Size)
		for i := range expanded {
			expanded[i] = vals[0]
		}
		vals = expanded
	}

	g.writeLV(s.Target, targetType, vals)
}

func (g *funcGen) lowerReturn(s *tir.Return) {
	if s.Value == nil {
		g.b.Return()
		return
	}
	vals := g.evalComps(s.Value)
	ret := g.tfn.Return.Unqualified()
	if ret.IsMatrix() || ret.IsArray() {
		st := scalarSSAType(elemScalar(ret))
		for i, v := range vals {
			g.b.Store(g.sret, v, int32(i*4), st)
		}
		g.b.Return()
		return
	}
	g.b.Return(vals...)
}

func (g *funcGen) lowerIf(s *tir.If) {
	n := len(g.tracked)
	cond := g.evalScalar(s.Cond)

	thenB := g.b.NewBlock(g.trackedTypes(n)...)
	elseB := g.b.NewBlock(g.trackedTypes(n)...)
	joinB := g.b.NewBlock(g.trackedTypes(n)...)

	snap := g.snapshot(n)
	g.b.CondBr(cond, thenB.ID, snap, elseB.ID, snap)

	g.b.SetBlock(thenB)
	g.bindTracked(thenB, n)
	g.lowerStmts(s.Then)
	g.dropTracked(n)
	if !g.terminated() {
		g.b.Br(joinB.ID, g.snapshot(n)...)
	}

	g.b.SetBlock(elseB)
	g.bindTracked(elseB, n)
	g.lowerStmts(s.Else)
	g.dropTracked(n)
	if !g.terminated() {
		g.b.Br(joinB.ID, g.snapshot(n)...)
	}

	g.b.SetBlock(joinB)
	g.bindTracked(joinB, n)
}

func (g *funcGen) lowerWhile(s *tir.While) {
	n := len(g.tracked)
	headerB := g.b.NewBlock(g.trackedTypes(n)...)
	bodyB := g.b.NewBlock(g.trackedTypes(n)...)
	exitB := g.b.NewBlock(g.trackedTypes(n)...)

	g.b.Br(headerB.ID, g.snapshot(n)...)

	g.b.SetBlock(headerB)
	g.bindTracked(headerB, n)
	cond := g.evalScalar(s.Cond)
	snap := g.snapshot(n)
	g.b.CondBr(cond, bodyB.ID, snap, exitB.ID, snap)

	g.b.SetBlock(bodyB)
	g.bindTracked(bodyB, n)
	g.loops = append(g.loops, loopCtx{continueTo: headerB.ID, breakTo: exitB.ID, trackedLen: n})
	g.lowerStmts(s.Body)
	g.loops = g.loops[:len(g.loops)-1]
	g.dropTracked(n)
	if !g.terminated() {
		g.b.Br(headerB.ID, g.snapshot(n)...)
	}

	g.b.SetBlock(exitB)
	g.bindTracked(exitB, n)
}

func (g *funcGen) lowerDoWhile(s *tir.DoWhile) {
	n := len(g.tracked)
	bodyB := g.b.NewBlock(g.trackedTypes(n)...)
	condB := g.b.NewBlock(g.trackedTypes(n)...)
	exitB := g.b.NewBlock(g.trackedTypes(n)...)

	g.b.Br(bodyB.ID, g.snapshot(n)...)

	g.b.SetBlock(bodyB)
	g.bindTracked(bodyB, n)
	g.loops = append(g.loops, loopCtx{continueTo: condB.ID, breakTo: exitB.ID, trackedLen: n})
	g.lowerStmts(s.Body)
	g.loops = g.loops[:len(g.loops)-1]
	g.dropTracked(n)
	if !g.terminated() {
		g.b.Br(condB.ID, g.snapshot(n)...)
	}

	g.b.SetBlock(condB)
	g.bindTracked(condB, n)
	cond := g.evalScalar(s.Cond)
	snap := g.snapshot(n)
	g.b.CondBr(cond, bodyB.ID, snap, exitB.ID, snap)

	g.b.SetBlock(exitB)
	g.bindTracked(exitB, n)
}

func (g *funcGen) lowerFor(s *tir.For) {
	outerN := len(g.tracked)
	if s.Init != nil {
		g.lowerStmt(s.Init)
	}
	// The loop-scoped induction variable (if any) joins the tracked set
	// before the header, so it flows around the back edge.
	n := len(g.tracked)

	headerB := g.b.NewBlock(g.trackedTypes(n)...)
	bodyB := g.b.NewBlock(g.trackedTypes(n)...)
	updateB := g.b.NewBlock(g.trackedTypes(n)...)
	exitB := g.b.NewBlock(g.trackedTypes(n)...)

	g.b.Br(headerB.ID, g.snapshot(n)...)

	g.b.SetBlock(headerB)
	g.bindTracked(headerB, n)
	var cond ssa.Value
	if s.Cond != nil {
		cond = g.evalScalar(s.Cond)
	} else {
		cond = g.b.Const(ssa.I32, 1)
	}
	snap := g.snapshot(n)
	g.b.CondBr(cond, bodyB.ID, snap, exitB.ID, snap)

	g.b.SetBlock(bodyB)
	g.bindTracked(bodyB, n)
	g.loops = append(g.loops, loopCtx{continueTo: updateB.ID, breakTo: exitB.ID, trackedLen: n})
	g.lowerStmts(s.Body)
	g.loops = g.loops[:len(g.loops)-1]
	g.dropTracked(n)
	if !g.terminated() {
		g.b.Br(updateB.ID, g.snapshot(n)...)
	}

	g.b.SetBlock(updateB)
	g.bindTracked(updateB, n)
	if s.Update != nil {
		g.lowerStmt(s.Update)
	}
	g.b.Br(headerB.ID, g.snapshot(n)...)

	g.b.SetBlock(exitB)
	g.bindTracked(exitB, n)
	g.dropTracked(outerN)
}

// addExtern records a symbol the module calls but does not define.
func (g *funcGen) addExtern(symbol string, params, returns []ssa.Type) {
	if _, ok := g.externs[symbol]; ok {
		return
	}
	g.externs[symbol] = ssa.ExternFunc{Symbol: symbol, Params: params, Returns: returns}
}

func repeatType(t ssa.Type, n int) []ssa.Type {
	out := make([]ssa.Type, n)
	for i := range out {
		out[i] = t
	}
	return out
}

// paramKindTypes maps a registry signature to SSA types, for extern
// declarations (PQ32 is F32 before the Q32 pass retypes it).
func paramKindTypes(kinds []builtins.ParamKind) []ssa.Type {
	out := make([]ssa.Type, len(kinds))
	for i, k := range kinds {
		switch k {
		case builtins.PUint32:
			out[i] = ssa.U32
		case builtins.PInt32:
			out[i] = ssa.I32
		default:
			out[i] = ssa.F32
		}
	}
	return out
}
