package sema

import (
	"math"
	"strings"

	"github.com/lightplayer/lpxc/internal/ast"
	"github.com/lightplayer/lpxc/internal/source"
	"github.com/lightplayer/lpxc/internal/tir"
	"github.com/lightplayer/lpxc/internal/types"
)

func setStmtLoc(s interface{ SetLoc(source.Loc) }, loc source.Loc) {
	s.SetLoc(loc)
}

func mkLiteral(t types.Type, bits uint64, loc source.Loc) *tir.Literal {
	lit := &tir.Literal{Bits: bits}
	lit.SetMeta(t, loc)
	return lit
}

// checkExpr lowers one expression, returning nil after recording a
// diagnostic when it cannot be typed.
func (c *checker) checkExpr(e ast.Expr) tir.Expr {
	switch e := e.(type) {
	case *ast.Ident:
		v, ok := c.lookup(e.Name)
		if !ok {
			c.diags.Add(source.ErrUndefinedVariable, e.Pos(), "undefined variable `%s`", e.Name)
			return nil
		}
		ref := &tir.VarRef{Var: v}
		ref.SetMeta(v.Type.Unqualified(), e.Pos())
		return ref

	case *ast.IntLit:
		if e.IsUint {
			return mkLiteral(types.TUint32, e.Value&0xffffffff, e.Pos())
		}
		return mkLiteral(types.TInt32, e.Value&0xffffffff, e.Pos())

	case *ast.FloatLit:
		return mkLiteral(types.TFloat, uint64(math.Float32bits(float32(e.Value))), e.Pos())

	case *ast.BoolLit:
		bits := uint64(0)
		if e.Value {
			bits = 1
		}
		return mkLiteral(types.TBool, bits, e.Pos())

	case *ast.ParenExpr:
		return c.checkExpr(e.X)

	case *ast.UnaryExpr:
		return c.checkUnary(e)

	case *ast.BinaryExpr:
		return c.checkBinary(e)

	case *ast.TernaryExpr:
		return c.checkTernary(e)

	case *ast.SelectorExpr:
		return c.checkSelector(e)

	case *ast.IndexExpr:
		return c.checkIndex(e)

	case *ast.CallExpr:
		return c.checkCall(e)

	case *ast.ArrayLit:
		return c.checkArrayLit(e)

	default:
		c.diags.Add(source.ErrUnexpectedToken, e.Pos(), "unsupported expression")
		return nil
	}
}

func (c *checker) checkUnary(e *ast.UnaryExpr) tir.Expr {
	x := c.checkExpr(e.X)
	if x == nil {
		return nil
	}
	t := x.Type()
	switch e.Op {
	case "-":
		if t.Scalar == types.Bool || t.IsArray() {
			c.diags.Add(source.ErrTypeMismatch, e.Pos(), "cannot negate %s", t)
			return nil
		}
		u := &tir.Unary{Op: tir.UnNeg, X: x}
		u.SetMeta(t, e.Pos())
		return u
	case "!":
		if !t.Equal(types.TBool) {
			c.diags.Add(source.ErrTypeMismatch, e.Pos(), "operator ! requires bool, got %s", t)
			return nil
		}
		u := &tir.Unary{Op: tir.UnNot, X: x}
		u.SetMeta(t, e.Pos())
		return u
	case "~":
		if t.IsArray() || t.IsMatrix() || (t.Scalar != types.Int32 && t.Scalar != types.Uint32) {
			c.diags.Add(source.ErrTypeMismatch, e.Pos(), "operator ~ requires an integer operand, got %s", t)
			return nil
		}
		u := &tir.Unary{Op: tir.UnBitNot, X: x}
		u.SetMeta(t, e.Pos())
		return u
	}
	c.diags.Add(source.ErrUnexpectedToken, e.Pos(), "unsupported unary operator %q", e.Op)
	return nil
}

var binOpFromStr = map[string]tir.BinaryOp{
	"+": tir.BinAdd, "-": tir.BinSub, "*": tir.BinMul, "/": tir.BinDiv, "%": tir.BinMod,
	"&": tir.BinAnd, "|": tir.BinOr, "^": tir.BinXor, "<<": tir.BinShl, ">>": tir.BinShr,
	"==": tir.BinEq, "!=": tir.BinNe,
	"<": tir.BinLt, "<=": tir.BinLe, ">": tir.BinGt, ">=": tir.BinGe,
}

func (c *checker) checkBinary(e *ast.BinaryExpr) tir.Expr {
	if e.Op == "&&" || e.Op == "||" {
		x := c.checkExpr(e.X)
		y := c.checkExpr(e.Y)
		if x == nil || y == nil {
			return nil
		}
		if !x.Type().Equal(types.TBool) || !y.Type().Equal(types.TBool) {
			c.diags.Add(source.ErrTypeMismatch, e.Pos(), "operator %s requires bool operands", e.Op)
			return nil
		}
		op := tir.LogAnd
		if e.Op == "||" {
			op = tir.LogOr
		}
		l := &tir.Logical{Op: op, X: x, Y: y}
		l.SetMeta(types.TBool, e.Pos())
		return l
	}

	x := c.checkExpr(e.X)
	y := c.checkExpr(e.Y)
	if x == nil || y == nil {
		return nil
	}
	op := binOpFromStr[e.Op]
	xt, yt := x.Type(), y.Type()

	switch e.Op {
	case "+", "-", "*", "/":
		return c.checkArith(e, op, x, y)

	case "%", "&", "|", "^", "<<", ">>":
		if !isIntegerShape(xt) || !isIntegerShape(yt) {
			c.diags.Add(source.ErrTypeMismatch, e.Pos(), "operator %s requires integer operands, got %s and %s", e.Op, xt, yt)
			return nil
		}
		common, ok := types.BestCommonType(xt, yt)
		if !ok {
			c.diags.Add(source.ErrTypeMismatch, e.Pos(), "mismatched operands %s and %s", xt, yt)
			return nil
		}
		x, y = c.convertOperands(x, y, common, e.Pos())
		if x == nil || y == nil {
			return nil
		}
		b := &tir.Binary{Op: op, X: x, Y: y}
		b.SetMeta(common, e.Pos())
		return b

	case "==", "!=":
		common, ok := types.BestCommonType(xt, yt)
		if !ok {
			c.diags.Add(source.ErrTypeMismatch, e.Pos(), "cannot compare %s and %s", xt, yt)
			return nil
		}
		x, y = c.convertOperands(x, y, common, e.Pos())
		if x == nil || y == nil {
			return nil
		}
		b := &tir.Binary{Op: op, X: x, Y: y}
		b.SetMeta(types.TBool, e.Pos())
		return b

	case "<", "<=", ">", ">=":
		if !xt.IsScalar() || !yt.IsScalar() || xt.Scalar == types.Bool || yt.Scalar == types.Bool {
			c.diags.Add(source.ErrTypeMismatch, e.Pos(), "operator %s requires numeric scalars, got %s and %s", e.Op, xt, yt)
			return nil
		}
		common, ok := types.BestCommonType(xt, yt)
		if !ok {
			c.diags.Add(source.ErrTypeMismatch, e.Pos(), "cannot compare %s and %s", xt, yt)
			return nil
		}
		x, y = c.convertOperands(x, y, common, e.Pos())
		if x == nil || y == nil {
			return nil
		}
		b := &tir.Binary{Op: op, X: x, Y: y}
		b.SetMeta(types.TBool, e.Pos())
		return b
	}

	c.diags.Add(source.ErrUnexpectedToken, e.Pos(), "unsupported operator %q", e.Op)
	return nil
}

// checkArith types the four arithmetic operators, covering scalar, vector
// (component-wise with scalar broadcast in either order), and the matrix
// forms GLSL defines: matrix+-matrix component-wise, matrix*scalar,
// matrix*vector, and matrix*matrix as linear-algebra products.
func (c *checker) checkArith(e *ast.BinaryExpr, op tir.BinaryOp, x, y tir.Expr) tir.Expr {
	xt, yt := x.Type(), y.Type()

	if xt.IsMatrix() || yt.IsMatrix() {
		return c.checkMatrixArith(e, op, x, y)
	}
	if xt.IsArray() || yt.IsArray() || xt.Scalar == types.Bool || yt.Scalar == types.Bool {
		c.diags.Add(source.ErrTypeMismatch, e.Pos(), "operator %s cannot apply to %s and %s", e.Op, xt, yt)
		return nil
	}
	common, ok := types.BestCommonType(xt, yt)
	if !ok {
		c.diags.Add(source.ErrTypeMismatch, e.Pos(), "mismatched operands %s and %s", xt, yt)
		return nil
	}
	x, y = c.convertOperands(x, y, common, e.Pos())
	if x == nil || y == nil {
		return nil
	}
	b := &tir.Binary{Op: op, X: x, Y: y}
	b.SetMeta(common, e.Pos())
	return b
}

func (c *checker) checkMatrixArith(e *ast.BinaryExpr, op tir.BinaryOp, x, y tir.Expr) tir.Expr {
	xt, yt := x.Type(), y.Type()

	switch op {
	case tir.BinAdd, tir.BinSub:
		if xt.IsMatrix() && yt.IsMatrix() && xt.Size == yt.Size {
			b := &tir.Binary{Op: op, X: x, Y: y}
			b.SetMeta(xt, e.Pos())
			return b
		}
	case tir.BinMul:
		switch {
		case xt.IsMatrix() && yt.IsMatrix() && xt.Size == yt.Size:
			b := &tir.Binary{Op: op, X: x, Y: y}
			b.SetMeta(xt, e.Pos())
			return b
		case xt.IsMatrix() && yt.IsVector() && yt.Scalar == types.Float && yt.Size == xt.Size:
			b := &tir.Binary{Op: op, X: x, Y: y}
			b.SetMeta(yt, e.Pos())
			return b
		case xt.IsMatrix() && yt.IsScalar():
			y = c.convert(y, types.TFloat, e.Pos())
			if y == nil {
				return nil
			}
			b := &tir.Binary{Op: op, X: x, Y: y}
			b.SetMeta(xt, e.Pos())
			return b
		case xt.IsScalar() && yt.IsMatrix():
			x = c.convert(x, types.TFloat, e.Pos())
			if x == nil {
				return nil
			}
			b := &tir.Binary{Op: op, X: x, Y: y}
			b.SetMeta(yt, e.Pos())
			return b
		}
	}
	c.diags.Add(source.ErrTypeMismatch, e.Pos(), "operator %s cannot apply to %s and %s", e.Op, xt, yt)
	return nil
}

func isIntegerShape(t types.Type) bool {
	if t.IsArray() || t.IsMatrix() {
		return false
	}
	return t.Scalar == types.Int32 || t.Scalar == types.Uint32
}

// convertOperands brings both operands of a binary operator to the common
// type, leaving a scalar unconverted in shape when the common type is a
// vector (front-end codegen broadcasts the scalar without re-evaluating).
func (c *checker) convertOperands(x, y tir.Expr, common types.Type, loc source.Loc) (tir.Expr, tir.Expr) {
	target := func(t types.Type) types.Type {
		if common.IsVector() && t.IsScalar() {
			return types.ScalarType(common.Scalar)
		}
		return common
	}
	cx := c.convert(x, target(x.Type()), loc)
	if cx == nil {
		return nil, nil
	}
	cy := c.convert(y, target(y.Type()), loc)
	if cy == nil {
		return nil, nil
	}
	return cx, cy
}

func (c *checker) checkTernary(e *ast.TernaryExpr) tir.Expr {
	cond := c.checkExpr(e.Cond)
	then := c.checkExpr(e.Then)
	els := c.checkExpr(e.Else)
	if cond == nil || then == nil || els == nil {
		return nil
	}
	if !cond.Type().Equal(types.TBool) {
		c.diags.Add(source.ErrTypeMismatch, e.Cond.Pos(), "ternary condition must be bool, got %s", cond.Type())
		return nil
	}
	common, ok := types.BestCommonType(then.Type(), els.Type())
	if !ok {
		c.diags.Add(source.ErrTypeMismatch, e.Pos(), "mismatched ternary branches %s and %s", then.Type(), els.Type())
		return nil
	}
	then = c.convert(then, common, e.Then.Pos())
	els = c.convert(els, common, e.Else.Pos())
	if then == nil || els == nil {
		return nil
	}
	t := &tir.Ternary{Cond: cond, Then: then, Else: els}
	t.SetMeta(common, e.Pos())
	return t
}

// swizzleSets are the three equivalent component-name alphabets.
var swizzleSets = [...]string{"xyzw", "rgba", "stpq"}

// swizzleIndices maps a selector like "zyx" to component indices, if every
// character comes from one alphabet and stays within the vector's size.
func swizzleIndices(sel string, size int) ([]int, bool) {
	if len(sel) == 0 || len(sel) > 4 {
		return nil, false
	}
	for _, set := range swizzleSets {
		out := make([]int, 0, len(sel))
		ok := true
		for _, ch := range sel {
			i := strings.IndexRune(set, ch)
			if i < 0 || i >= size {
				ok = false
				break
			}
			out = append(out, i)
		}
		if ok {
			return out, true
		}
	}
	return nil, false
}

func (c *checker) checkSelector(e *ast.SelectorExpr) tir.Expr {
	base := c.checkExpr(e.Base)
	if base == nil {
		return nil
	}
	bt := base.Type()
	if !bt.IsVector() {
		c.diags.Add(source.ErrInvalidSwizzle, e.Pos(), "cannot select components of %s", bt)
		return nil
	}
	comps, ok := swizzleIndices(e.Sel, bt.Size)
	if !ok {
		c.diags.Add(source.ErrInvalidSwizzle, e.Pos(), "invalid swizzle `.%s` on %s", e.Sel, bt)
		return nil
	}
	var t types.Type
	if len(comps) == 1 {
		t = types.ScalarType(bt.Scalar)
	} else {
		t = types.Vector(bt.Scalar, len(comps))
	}
	sw := &tir.Swizzle{Base: base, Components: comps}
	sw.SetMeta(t, e.Pos())
	return sw
}

func (c *checker) checkIndex(e *ast.IndexExpr) tir.Expr {
	base := c.checkExpr(e.Base)
	idx := c.checkExpr(e.Index)
	if base == nil || idx == nil {
		return nil
	}
	it := idx.Type()
	if !it.IsScalar() || (it.Scalar != types.Int32 && it.Scalar != types.Uint32) {
		c.diags.Add(source.ErrTypeMismatch, e.Index.Pos(), "index must be an integer, got %s", it)
		return nil
	}
	bt := base.Type()
	switch {
	case bt.IsArray():
		ix := &tir.Index{Base: base, Idx: idx}
		ix.SetMeta(bt.Elem.Unqualified(), e.Pos())
		return ix

	case bt.IsVector():
		// Vector subscripts must be compile-time constants; a dynamic
		// component select has no efficient lowering in the SSA model.
		val, ok := c.constEval(idx)
		if !ok {
			c.diags.Add(source.ErrNotConstant, e.Index.Pos(), "vector index must be a constant expression")
			return nil
		}
		i := int(val.comps[0].i)
		if i < 0 || i >= bt.Size {
			c.diags.Add(source.ErrNotIndexable, e.Index.Pos(), "index %d out of range for %s", i, bt)
			return nil
		}
		sw := &tir.Swizzle{Base: base, Components: []int{i}}
		sw.SetMeta(types.ScalarType(bt.Scalar), e.Pos())
		return sw

	case bt.IsMatrix():
		val, ok := c.constEval(idx)
		if !ok {
			c.diags.Add(source.ErrNotConstant, e.Index.Pos(), "matrix column index must be a constant expression")
			return nil
		}
		i := int(val.comps[0].i)
		if i < 0 || i >= bt.Size {
			c.diags.Add(source.ErrNotIndexable, e.Index.Pos(), "column %d out of range for %s", i, bt)
			return nil
		}
		ix := &tir.Index{Base: base, Idx: idx}
		ix.SetMeta(types.Vector(types.Float, bt.Size), e.Pos())
		return ix

	default:
		c.diags.Add(source.ErrNotIndexable, e.Pos(), "%s is not indexable", bt)
		return nil
	}
}

func (c *checker) checkArrayLit(e *ast.ArrayLit) tir.Expr {
	elem, ok := namedType(e.Elem.Name)
	if !ok {
		c.diags.Add(source.ErrUnknownType, e.Elem.Loc, "unknown type `%s`", e.Elem.Name)
		return nil
	}
	if len(e.Args) == 0 {
		c.diags.Add(source.ErrWrongArgCount, e.Pos(), "array constructor needs at least one element")
		return nil
	}
	elems := make([]tir.Expr, 0, len(e.Args))
	for _, a := range e.Args {
		x := c.checkExpr(a)
		if x == nil {
			return nil
		}
		x = c.convert(x, elem, a.Pos())
		if x == nil {
			return nil
		}
		elems = append(elems, x)
	}
	if e.Size != nil {
		n, ok := c.constIntExpr(e.Size)
		if !ok {
			return nil
		}
		if int(n) != len(elems) {
			c.diags.Add(source.ErrWrongArgCount, e.Pos(), "array constructor has %d elements but declared size %d", len(elems), n)
			return nil
		}
	}
	arr := &tir.ArrayInit{Elems: elems}
	arr.SetMeta(types.Array(elem, len(elems)), e.Pos())
	return arr
}

// convert coerces e to type "to", inserting a Convert node (or folding a
// literal) when an implicit conversion applies, and diagnosing otherwise.
// Explicit constructor conversions go through convertExplicit instead.
func (c *checker) convert(e tir.Expr, to types.Type, loc source.Loc) tir.Expr {
	from := e.Type()
	if from.Equal(to) {
		return e
	}
	if !types.CanImplicitlyConvert(from, to) {
		c.diags.Add(source.ErrTypeMismatch, loc, "cannot convert %s to %s", from, to)
		return nil
	}
	return c.applyConversion(e, to, loc)
}

// convertExplicit is the constructor-conversion rule: any numeric or bool
// scalar converts to any other, in both directions, and a vector converts
// component-wise to a same-length vector.
func (c *checker) convertExplicit(e tir.Expr, to types.Type, loc source.Loc) tir.Expr {
	from := e.Type()
	if from.Equal(to) {
		return e
	}
	scalarOK := from.IsScalar() && to.IsScalar()
	vectorOK := from.IsVector() && to.IsVector() && from.Size == to.Size
	if !scalarOK && !vectorOK {
		c.diags.Add(source.ErrTypeMismatch, loc, "cannot convert %s to %s", from, to)
		return nil
	}
	return c.applyConversion(e, to, loc)
}

func (c *checker) applyConversion(e tir.Expr, to types.Type, loc source.Loc) tir.Expr {
	// Fold literal conversions immediately so constants keep flowing
	// through constant contexts (and the Q32 pass sees encoded floats).
	if lit, ok := e.(*tir.Literal); ok {
		if folded, ok := foldLiteralConversion(lit, to); ok {
			return folded
		}
	}
	conv := &tir.Convert{X: e}
	conv.SetMeta(to, loc)
	return conv
}

func foldLiteralConversion(lit *tir.Literal, to types.Type) (tir.Expr, bool) {
	if !to.IsScalar() {
		return nil, false
	}
	from := lit.Type().Scalar
	var bits uint64
	switch {
	case to.Scalar == types.Float:
		var v float64
		switch from {
		case types.Int32:
			v = float64(int32(uint32(lit.Bits)))
		case types.Uint32:
			v = float64(uint32(lit.Bits))
		case types.Bool:
			if lit.Bits != 0 {
				v = 1
			}
		default:
			return nil, false
		}
		bits = uint64(math.Float32bits(float32(v)))
	case to.Scalar == types.Int32 || to.Scalar == types.Uint32:
		switch from {
		case types.Float:
			f := float64(math.Float32frombits(uint32(lit.Bits)))
			bits = uint64(uint32(int32(f)))
		case types.Int32, types.Uint32, types.Bool:
			bits = lit.Bits
		default:
			return nil, false
		}
	case to.Scalar == types.Bool:
		switch from {
		case types.Float:
			if math.Float32frombits(uint32(lit.Bits)) != 0 {
				bits = 1
			}
		case types.Int32, types.Uint32:
			if lit.Bits != 0 {
				bits = 1
			}
		default:
			return nil, false
		}
	default:
		return nil, false
	}
	return mkLiteral(to, bits, lit.Loc()), true
}
