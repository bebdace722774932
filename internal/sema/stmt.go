package sema

import (
	"math"

	"github.com/lightplayer/lpxc/internal/ast"
	"github.com/lightplayer/lpxc/internal/source"
	"github.com/lightplayer/lpxc/internal/tir"
	"github.com/lightplayer/lpxc/internal/types"
)

func (c *checker) checkStmts(list []ast.Stmt) []tir.Stmt {
	var out []tir.Stmt
	for _, s := range list {
		// A bare nested block opens a scope and splices its statements;
		// the typed IR has no block node.
		if blk, ok := s.(*ast.BlockStmt); ok {
			c.pushScope()
			out = append(out, c.checkStmts(blk.List)...)
			c.popScope()
			continue
		}
		if lowered := c.checkStmt(s); lowered != nil {
			out = append(out, lowered)
		}
	}
	return out
}

// checkStmt lowers one statement, returning nil when a diagnostic halted
// it; checking continues with the next statement regardless.
func (c *checker) checkStmt(s ast.Stmt) tir.Stmt {
	switch s := s.(type) {
	case *ast.DeclStmt:
		return c.checkDecl(s)

	case *ast.AssignStmt:
		return c.checkAssign(s)

	case *ast.IncDecStmt:
		return c.checkIncDec(s)

	case *ast.ExprStmt:
		x := c.checkExpr(s.X)
		if x == nil {
			return nil
		}
		st := &tir.ExprStmt{Value: x}
		setStmtLoc(st, s.Pos())
		return st

	case *ast.IfStmt:
		cond := c.checkCond(s.Cond)
		c.pushScope()
		then := c.checkStmtAsList(s.Then)
		c.popScope()
		var els []tir.Stmt
		if s.Else != nil {
			c.pushScope()
			els = c.checkStmtAsList(s.Else)
			c.popScope()
		}
		if cond == nil {
			return nil
		}
		st := &tir.If{Cond: cond, Then: then, Else: els}
		setStmtLoc(st, s.Pos())
		return st

	case *ast.WhileStmt:
		cond := c.checkCond(s.Cond)
		c.pushScope()
		c.loopDepth++
		body := c.checkStmtAsList(s.Body)
		c.loopDepth--
		c.popScope()
		if cond == nil {
			return nil
		}
		st := &tir.While{Cond: cond, Body: body}
		setStmtLoc(st, s.Pos())
		return st

	case *ast.DoWhileStmt:
		c.pushScope()
		c.loopDepth++
		body := c.checkStmtAsList(s.Body)
		c.loopDepth--
		c.popScope()
		cond := c.checkCond(s.Cond)
		if cond == nil {
			return nil
		}
		st := &tir.DoWhile{Body: body, Cond: cond}
		setStmtLoc(st, s.Pos())
		return st

	case *ast.ForStmt:
		// The init declaration scopes to the loop only.
		c.pushScope()
		var init tir.Stmt
		if s.Init != nil {
			init = c.checkStmt(s.Init)
		}
		var cond tir.Expr
		if s.Cond != nil {
			cond = c.checkCond(s.Cond)
		}
		var update tir.Stmt
		if s.Update != nil {
			update = c.checkStmt(s.Update)
		}
		c.loopDepth++
		body := c.checkStmtAsList(s.Body)
		c.loopDepth--
		c.popScope()
		st := &tir.For{Init: init, Cond: cond, Update: update, Body: body}
		setStmtLoc(st, s.Pos())
		return st

	case *ast.BreakStmt:
		if c.loopDepth == 0 {
			c.diags.Add(source.ErrUnexpectedToken, s.Pos(), "`break` outside of a loop")
			return nil
		}
		st := &tir.Break{}
		setStmtLoc(st, s.Pos())
		return st

	case *ast.ContinueStmt:
		if c.loopDepth == 0 {
			c.diags.Add(source.ErrUnexpectedToken, s.Pos(), "`continue` outside of a loop")
			return nil
		}
		st := &tir.Continue{}
		setStmtLoc(st, s.Pos())
		return st

	case *ast.ReturnStmt:
		return c.checkReturn(s)

	default:
		c.diags.Add(source.ErrUnexpectedToken, s.Pos(), "unsupported statement")
		return nil
	}
}

// checkStmtAsList lowers a statement that is structurally a branch or loop
// body: a block flattens into its list, anything else becomes a singleton.
func (c *checker) checkStmtAsList(s ast.Stmt) []tir.Stmt {
	if blk, ok := s.(*ast.BlockStmt); ok {
		return c.checkStmts(blk.List)
	}
	if lowered := c.checkStmt(s); lowered != nil {
		return []tir.Stmt{lowered}
	}
	return nil
}

func (c *checker) checkDecl(s *ast.DeclStmt) tir.Stmt {
	var init tir.Expr
	sizeFromInit := -1

	if s.Init != nil {
		init = c.checkExpr(s.Init)
		if init == nil {
			// Declare the name anyway so a later use does not report it
			// again as an undefined variable.
			if ty, ok := namedType(s.Type.Name); ok && !s.Type.IsArray {
				if s.Const {
					ty = ty.WithConst()
				}
				c.declare(&tir.Variable{Name: s.Name, Type: ty, Loc: s.Pos()})
			}
			return nil
		}
		if arr, ok := init.(*tir.ArrayInit); ok {
			sizeFromInit = len(arr.Elems)
		}
	}

	ty, ok := c.resolveType(s.Type, sizeFromInit)
	if !ok {
		return nil
	}

	if s.Const {
		if s.Init == nil {
			c.diags.Add(source.ErrConstUninitialized, s.Pos(), "const `%s` must be initialized", s.Name)
			return nil
		}
		ty = ty.WithConst()
	}

	if init != nil {
		init = c.convert(init, ty.Unqualified(), s.Init.Pos())
		if init == nil {
			return nil
		}
	}

	v := &tir.Variable{Name: s.Name, Type: ty, Loc: s.Pos()}
	if !c.declare(v) {
		return nil
	}

	if s.Const {
		val, ok := c.constEval(init)
		if !ok {
			c.diags.Add(source.ErrNotConstant, s.Init.Pos(), "initialiser of const `%s` is not a constant expression", s.Name)
			return nil
		}
		c.constVals[v] = val
	}

	st := &tir.VarDecl{Var: v, Init: init}
	setStmtLoc(st, s.Pos())
	return st
}

var assignOpFromStr = map[string]tir.AssignOp{
	"": tir.AssignSet, "+": tir.AssignAdd, "-": tir.AssignSub, "*": tir.AssignMul,
	"/": tir.AssignDiv, "%": tir.AssignMod, "&": tir.AssignAnd, "|": tir.AssignOr,
	"^": tir.AssignXor, "<<": tir.AssignShl, ">>": tir.AssignShr,
}

func (c *checker) checkAssign(s *ast.AssignStmt) tir.Stmt {
	lv, targetType, ok := c.checkLValue(s.Target)
	if !ok {
		return nil
	}
	value := c.checkExpr(s.Value)
	if value == nil {
		return nil
	}
	op := assignOpFromStr[s.Op]
	if op == tir.AssignSet {
		value = c.convert(value, targetType, s.Value.Pos())
	} else {
		value = c.checkCompoundValue(op, targetType, value, s.Value.Pos())
	}
	if value == nil {
		return nil
	}
	st := &tir.Assign{Target: lv, Op: op, Value: value}
	setStmtLoc(st, s.Pos())
	return st
}

// checkCompoundValue validates the RHS of a compound assignment against
// the target's type the way the equivalent binary operator would.
func (c *checker) checkCompoundValue(op tir.AssignOp, target types.Type, value tir.Expr, loc source.Loc) tir.Expr {
	elem := target.Scalar
	switch op {
	case tir.AssignAnd, tir.AssignOr, tir.AssignXor, tir.AssignShl, tir.AssignShr, tir.AssignMod:
		if elem != types.Int32 && elem != types.Uint32 {
			c.diags.Add(source.ErrTypeMismatch, loc, "operator requires an integer operand, got %s", target)
			return nil
		}
	default:
		if elem == types.Bool || target.IsArray() {
			c.diags.Add(source.ErrTypeMismatch, loc, "operator cannot apply to %s", target)
			return nil
		}
	}
	// A scalar RHS against a vector target broadcasts; anything else must
	// convert to the target type.
	if target.IsVector() && value.Type().IsScalar() {
		return c.convert(value, types.ScalarType(target.Scalar), loc)
	}
	return c.convert(value, target.Unqualified(), loc)
}

func (c *checker) checkIncDec(s *ast.IncDecStmt) tir.Stmt {
	lv, targetType, ok := c.checkLValue(s.Target)
	if !ok {
		return nil
	}
	if !targetType.IsScalar() || targetType.Scalar == types.Bool {
		c.diags.Add(source.ErrTypeMismatch, s.Pos(), "++/-- requires a numeric scalar, got %s", targetType)
		return nil
	}
	op := tir.AssignAdd
	if s.Dec {
		op = tir.AssignSub
	}
	one := mkOne(targetType, s.Pos())
	st := &tir.Assign{Target: lv, Op: op, Value: one}
	setStmtLoc(st, s.Pos())
	return st
}

func (c *checker) checkReturn(s *ast.ReturnStmt) tir.Stmt {
	ret := c.curFunc.Return
	if s.Value == nil {
		if !ret.Equal(types.TVoid) {
			c.diags.Add(source.ErrTypeMismatch, s.Pos(), "missing return value in function returning %s", ret)
			return nil
		}
		st := &tir.Return{}
		setStmtLoc(st, s.Pos())
		return st
	}
	if ret.Equal(types.TVoid) {
		c.diags.Add(source.ErrTypeMismatch, s.Pos(), "void function cannot return a value")
		return nil
	}
	value := c.checkExpr(s.Value)
	if value == nil {
		return nil
	}
	value = c.convert(value, ret.Unqualified(), s.Value.Pos())
	if value == nil {
		return nil
	}
	st := &tir.Return{Value: value}
	setStmtLoc(st, s.Pos())
	return st
}

// checkCond checks a loop or branch condition, which must be a scalar bool.
func (c *checker) checkCond(e ast.Expr) tir.Expr {
	cond := c.checkExpr(e)
	if cond == nil {
		return nil
	}
	if !cond.Type().Equal(types.TBool) {
		c.diags.Add(source.ErrTypeMismatch, e.Pos(), "condition must be bool, got %s", cond.Type())
		return nil
	}
	return cond
}

// checkLValue lowers an assignment target into one of the three access
// patterns: whole variable, component selection, or array element.
func (c *checker) checkLValue(target ast.Expr) (tir.LValue, types.Type, bool) {
	switch t := target.(type) {
	case *ast.Ident:
		v, ok := c.lookup(t.Name)
		if !ok {
			c.diags.Add(source.ErrUndefinedVariable, t.Pos(), "undefined variable `%s`", t.Name)
			return tir.LValue{}, types.Type{}, false
		}
		if v.Type.Const {
			c.diags.Add(source.ErrConstWrite, t.Pos(), "cannot write to const `%s`", v.Name)
			return tir.LValue{}, types.Type{}, false
		}
		return tir.LValue{Base: v}, v.Type.Unqualified(), true

	case *ast.SelectorExpr:
		lv, baseType, ok := c.checkLValue(t.Base)
		if !ok {
			return tir.LValue{}, types.Type{}, false
		}
		if lv.Components != nil {
			c.diags.Add(source.ErrNotAssignable, t.Pos(), "cannot swizzle a swizzle in an assignment target")
			return tir.LValue{}, types.Type{}, false
		}
		if !baseType.IsVector() {
			c.diags.Add(source.ErrInvalidSwizzle, t.Pos(), "cannot select components of %s", baseType)
			return tir.LValue{}, types.Type{}, false
		}
		comps, ok := swizzleIndices(t.Sel, baseType.Size)
		if !ok {
			c.diags.Add(source.ErrInvalidSwizzle, t.Pos(), "invalid swizzle `.%s` on %s", t.Sel, baseType)
			return tir.LValue{}, types.Type{}, false
		}
		if hasDuplicates(comps) {
			c.diags.Add(source.ErrInvalidSwizzle, t.Pos(), "duplicate component in swizzle write `.%s`", t.Sel)
			return tir.LValue{}, types.Type{}, false
		}
		lv.Components = comps
		var ty types.Type
		if len(comps) == 1 {
			ty = types.ScalarType(baseType.Scalar)
		} else {
			ty = types.Vector(baseType.Scalar, len(comps))
		}
		return lv, ty, true

	case *ast.IndexExpr:
		lv, baseType, ok := c.checkLValue(t.Base)
		if !ok {
			return tir.LValue{}, types.Type{}, false
		}
		if lv.Index != nil || lv.Components != nil {
			c.diags.Add(source.ErrNotAssignable, t.Pos(), "unsupported assignment target shape")
			return tir.LValue{}, types.Type{}, false
		}
		idx := c.checkExpr(t.Index)
		if idx == nil {
			return tir.LValue{}, types.Type{}, false
		}
		it := idx.Type()
		if !it.IsScalar() || (it.Scalar != types.Int32 && it.Scalar != types.Uint32) {
			c.diags.Add(source.ErrTypeMismatch, t.Index.Pos(), "index must be an integer, got %s", it)
			return tir.LValue{}, types.Type{}, false
		}
		switch {
		case baseType.IsArray():
			lv.Index = idx
			return lv, baseType.Elem.Unqualified(), true
		case baseType.IsVector():
			// A vector element write needs a compile-time index; it lowers
			// to a component write.
			n, ok := c.constEval(idx)
			if !ok {
				c.diags.Add(source.ErrNotConstant, t.Index.Pos(), "vector index in an assignment must be a constant expression")
				return tir.LValue{}, types.Type{}, false
			}
			i := int(n.comps[0].i)
			if i < 0 || i >= baseType.Size {
				c.diags.Add(source.ErrNotIndexable, t.Index.Pos(), "index %d out of range for %s", i, baseType)
				return tir.LValue{}, types.Type{}, false
			}
			lv.Components = []int{i}
			return lv, types.ScalarType(baseType.Scalar), true
		case baseType.IsMatrix():
			n, ok := c.constEval(idx)
			if !ok {
				c.diags.Add(source.ErrNotConstant, t.Index.Pos(), "matrix column index in an assignment must be a constant expression")
				return tir.LValue{}, types.Type{}, false
			}
			i := int(n.comps[0].i)
			if i < 0 || i >= baseType.Size {
				c.diags.Add(source.ErrNotIndexable, t.Index.Pos(), "column %d out of range for %s", i, baseType)
				return tir.LValue{}, types.Type{}, false
			}
			lv.Index = idx
			return lv, types.Vector(types.Float, baseType.Size), true
		default:
			c.diags.Add(source.ErrNotIndexable, t.Pos(), "%s is not indexable", baseType)
			return tir.LValue{}, types.Type{}, false
		}

	case *ast.ParenExpr:
		return c.checkLValue(t.X)

	default:
		c.diags.Add(source.ErrNotAssignable, target.Pos(), "expression is not assignable")
		return tir.LValue{}, types.Type{}, false
	}
}

func hasDuplicates(comps []int) bool {
	var seen [4]bool
	for _, i := range comps {
		if seen[i] {
			return true
		}
		seen[i] = true
	}
	return false
}

func mkOne(t types.Type, loc source.Loc) tir.Expr {
	if t.Scalar == types.Float {
		return mkLiteral(t, uint64(math.Float32bits(1.0)), loc)
	}
	return mkLiteral(t, 1, loc)
}
