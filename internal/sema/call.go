package sema

import (
	"strings"

	"github.com/lightplayer/lpxc/internal/ast"
	"github.com/lightplayer/lpxc/internal/builtins"
	"github.com/lightplayer/lpxc/internal/source"
	"github.com/lightplayer/lpxc/internal/tir"
	"github.com/lightplayer/lpxc/internal/types"
)

// checkCall resolves a call expression. Resolution order: type
// constructors, user functions, then the builtin and LPFX registries.
// Builtin overloads match on arity and element types only; implicit
// conversions are not considered, so a mismatch is a resolution failure
// rather than a silent promotion.
func (c *checker) checkCall(e *ast.CallExpr) tir.Expr {
	if t, ok := namedType(e.Func); ok {
		return c.checkConstructor(e, t)
	}

	if fn, ok := c.funcs[e.Func]; ok {
		return c.checkUserCall(e, fn)
	}

	switch e.Func {
	case "frexp", "modf":
		c.diags.Add(source.ErrCodegenIncomplete, e.Pos(), "builtin `%s` has no codegen support", e.Func)
		return nil
	case "determinant", "inverse":
		return c.checkMatrixBuiltin(e)
	case "isnan", "isinf":
		return c.checkGenBuiltin(e, e.Func, []builtins.ParamKind{builtins.PQ32}, true)
	}

	name := e.Func
	if name == "atan" && len(e.Args) == 2 {
		name = "atan2"
	}
	if id, ok := builtins.Default().ByName(name); ok && !builtins.IsMatrixOp(id) {
		entry, _ := builtins.Default().Lookup(id)
		return c.checkGenBuiltin(e, entry.Name, entry.Params, false)
	}

	if op, ok := relationalOps[e.Func]; ok {
		return c.checkRelational(e, op)
	}

	lpfxName := e.Func
	if strings.HasPrefix(e.Func, "lpfx_") {
		lpfxName = strings.TrimPrefix(e.Func, "lpfx_")
	}
	if id, ok := builtins.DefaultLPFX().ByName(lpfxName); ok {
		return c.checkLPFXCall(e, id)
	}

	c.diags.Add(source.ErrUndefinedFunction, e.Pos(), "undefined function `%s`", e.Func)
	return nil
}

func (c *checker) checkConstructor(e *ast.CallExpr, target types.Type) tir.Expr {
	switch target.Kind {
	case types.KindScalar:
		if target.Scalar == types.Void {
			c.diags.Add(source.ErrNotCallable, e.Pos(), "`void` is not constructible")
			return nil
		}
		if len(e.Args) != 1 {
			c.diags.Add(source.ErrWrongArgCount, e.Pos(), "wrong argument count: `%s` constructor takes 1 argument, got %d", e.Func, len(e.Args))
			return nil
		}
		x := c.checkExpr(e.Args[0])
		if x == nil {
			return nil
		}
		return c.convertExplicit(x, target, e.Pos())

	case types.KindVector:
		return c.checkVectorConstructor(e, target)

	case types.KindMatrix:
		return c.checkMatrixConstructor(e, target)
	}
	c.diags.Add(source.ErrNotCallable, e.Pos(), "`%s` is not constructible", e.Func)
	return nil
}

func (c *checker) checkVectorConstructor(e *ast.CallExpr, target types.Type) tir.Expr {
	if len(e.Args) == 0 {
		c.diags.Add(source.ErrWrongArgCount, e.Pos(), "`%s` constructor needs arguments", e.Func)
		return nil
	}
	elem := types.ScalarType(target.Scalar)

	args := make([]tir.Expr, 0, len(e.Args))
	total := 0
	for _, a := range e.Args {
		x := c.checkExpr(a)
		if x == nil {
			return nil
		}
		xt := x.Type()
		switch {
		case xt.IsScalar():
			x = c.convertExplicit(x, elem, a.Pos())
			total++
		case xt.IsVector():
			x = c.convertExplicit(x, types.Vector(target.Scalar, xt.Size), a.Pos())
			total += xt.Size
		default:
			c.diags.Add(source.ErrTypeMismatch, a.Pos(), "cannot build %s from %s", target, xt)
			return nil
		}
		if x == nil {
			return nil
		}
		args = append(args, x)
	}

	// A single scalar argument splats to every component.
	if total == 1 && len(args) == 1 {
		ctor := &tir.VectorConstructor{Args: args}
		ctor.SetMeta(target, e.Pos())
		return ctor
	}
	if total != target.Size {
		c.diags.Add(source.ErrWrongArgCount, e.Pos(), "`%s` constructor needs %d components, got %d", e.Func, target.Size, total)
		return nil
	}
	ctor := &tir.VectorConstructor{Args: args}
	ctor.SetMeta(target, e.Pos())
	return ctor
}

func (c *checker) checkMatrixConstructor(e *ast.CallExpr, target types.Type) tir.Expr {
	n := target.Size
	args := make([]tir.Expr, 0, len(e.Args))

	// Either n column vectors or n*n scalars, column-major.
	if len(e.Args) == n {
		allVec := true
		for _, a := range e.Args {
			if x := c.peekType(a); x == nil || !x.IsVector() {
				allVec = false
				break
			}
		}
		if allVec {
			for _, a := range e.Args {
				x := c.checkExpr(a)
				if x == nil {
					return nil
				}
				if !x.Type().IsVector() || x.Type().Size != n {
					c.diags.Add(source.ErrTypeMismatch, a.Pos(), "matrix column must be vec%d, got %s", n, x.Type())
					return nil
				}
				x = c.convertExplicit(x, types.Vector(types.Float, n), a.Pos())
				if x == nil {
					return nil
				}
				args = append(args, x)
			}
			ctor := &tir.MatrixConstructor{Args: args}
			ctor.SetMeta(target, e.Pos())
			return ctor
		}
	}

	if len(e.Args) != n*n {
		c.diags.Add(source.ErrWrongArgCount, e.Pos(), "`%s` constructor needs %d columns or %d scalars, got %d arguments", e.Func, n, n*n, len(e.Args))
		return nil
	}
	for _, a := range e.Args {
		x := c.checkExpr(a)
		if x == nil {
			return nil
		}
		x = c.convertExplicit(x, types.TFloat, a.Pos())
		if x == nil {
			return nil
		}
		args = append(args, x)
	}
	ctor := &tir.MatrixConstructor{Args: args}
	ctor.SetMeta(target, e.Pos())
	return ctor
}

// peekType type-checks an argument without emitting diagnostics, for the
// column-vs-scalar matrix constructor disambiguation.
func (c *checker) peekType(a ast.Expr) *types.Type {
	var scratch source.DiagnosticSet
	saved := c.diags
	c.diags = &scratch
	x := c.checkExpr(a)
	c.diags = saved
	if x == nil {
		return nil
	}
	t := x.Type()
	return &t
}

func (c *checker) checkUserCall(e *ast.CallExpr, fn *tir.Function) tir.Expr {
	if len(e.Args) != len(fn.Params) {
		c.diags.Add(source.ErrWrongArgCount, e.Pos(), "wrong argument count: `%s` takes %d arguments, got %d", fn.Name, len(fn.Params), len(e.Args))
		return nil
	}
	args := make([]tir.Expr, 0, len(e.Args))
	for i, a := range e.Args {
		p := fn.Params[i]
		if p.Qualifier == types.Out || p.Qualifier == types.InOut {
			lv, lvType, ok := c.checkLValue(a)
			if !ok {
				return nil
			}
			if !lvType.Equal(p.Var.Type.Unqualified()) {
				c.diags.Add(source.ErrTypeMismatch, a.Pos(), "%s argument must be exactly %s, got %s", p.Qualifier, p.Var.Type, lvType)
				return nil
			}
			out := &tir.OutArg{LV: lv}
			out.SetMeta(lvType, a.Pos())
			args = append(args, out)
			continue
		}
		x := c.checkExpr(a)
		if x == nil {
			return nil
		}
		x = c.convert(x, p.Var.Type.Unqualified(), a.Pos())
		if x == nil {
			return nil
		}
		args = append(args, x)
	}
	call := &tir.Call{Kind: tir.CallUser, Name: fn.Name, Func: fn, Args: args}
	call.SetMeta(fn.Return.Unqualified(), e.Pos())
	return call
}

func (c *checker) checkMatrixBuiltin(e *ast.CallExpr) tir.Expr {
	if len(e.Args) != 1 {
		c.diags.Add(source.ErrWrongArgCount, e.Pos(), "wrong argument count: `%s` takes 1 argument, got %d", e.Func, len(e.Args))
		return nil
	}
	x := c.checkExpr(e.Args[0])
	if x == nil {
		return nil
	}
	if !x.Type().IsMatrix() {
		c.diags.Add(source.ErrNoMatchingOverload, e.Pos(), "no matching overload: `%s` requires a matrix, got %s", e.Func, x.Type())
		return nil
	}
	result := types.TFloat
	if e.Func == "inverse" {
		result = x.Type()
	}
	call := &tir.Call{Kind: tir.CallBuiltin, Name: e.Func, Args: []tir.Expr{x}}
	call.SetMeta(result, e.Pos())
	return call
}

// checkGenBuiltin types a math builtin under GLSL's genType rules: every
// PQ32 slot accepts a float scalar or float vector, every vector argument
// must agree on length, and the result takes the shared shape. boolResult
// flags isnan/isinf, whose result is a bool of the same shape.
func (c *checker) checkGenBuiltin(e *ast.CallExpr, name string, params []builtins.ParamKind, boolResult bool) tir.Expr {
	if len(e.Args) != len(params) {
		c.diags.Add(source.ErrWrongArgCount, e.Pos(), "wrong argument count: `%s` takes %d arguments, got %d", name, len(params), len(e.Args))
		return nil
	}
	vecSize := 0
	args := make([]tir.Expr, 0, len(e.Args))
	for i, a := range e.Args {
		x := c.checkExpr(a)
		if x == nil {
			return nil
		}
		xt := x.Type()
		var wantScalar types.Scalar
		switch params[i] {
		case builtins.PQ32:
			wantScalar = types.Float
		case builtins.PInt32:
			wantScalar = types.Int32
		case builtins.PUint32:
			wantScalar = types.Uint32
		}
		if xt.IsArray() || xt.IsMatrix() || xt.Scalar != wantScalar {
			c.diags.Add(source.ErrNoMatchingOverload, a.Pos(), "no matching overload: `%s` argument %d must be %s-typed, got %s", name, i+1, types.ScalarType(wantScalar), xt)
			return nil
		}
		if xt.IsVector() {
			if vecSize != 0 && vecSize != xt.Size {
				c.diags.Add(source.ErrNoMatchingOverload, a.Pos(), "no matching overload: `%s` has mismatched vector lengths", name)
				return nil
			}
			vecSize = xt.Size
		}
		args = append(args, x)
	}
	resultScalar := types.Float
	if boolResult {
		resultScalar = types.Bool
	}
	var result types.Type
	if vecSize == 0 {
		result = types.ScalarType(resultScalar)
	} else {
		result = types.Vector(resultScalar, vecSize)
	}
	call := &tir.Call{Kind: tir.CallBuiltin, Name: name, Args: args}
	call.SetMeta(result, e.Pos())
	return call
}

// relationalOps are the element-wise comparison functions, which return a
// boolean vector rather than the single bool the infix operators produce.
var relationalOps = map[string]tir.BinaryOp{
	"equal":            tir.BinEq,
	"notEqual":         tir.BinNe,
	"lessThan":         tir.BinLt,
	"lessThanEqual":    tir.BinLe,
	"greaterThan":      tir.BinGt,
	"greaterThanEqual": tir.BinGe,
}

func (c *checker) checkRelational(e *ast.CallExpr, op tir.BinaryOp) tir.Expr {
	if len(e.Args) != 2 {
		c.diags.Add(source.ErrWrongArgCount, e.Pos(), "wrong argument count: `%s` takes 2 arguments, got %d", e.Func, len(e.Args))
		return nil
	}
	x := c.checkExpr(e.Args[0])
	y := c.checkExpr(e.Args[1])
	if x == nil || y == nil {
		return nil
	}
	xt, yt := x.Type(), y.Type()
	if !xt.IsVector() || !yt.IsVector() || xt.Size != yt.Size || xt.Scalar != yt.Scalar || xt.Scalar == types.Bool {
		c.diags.Add(source.ErrNoMatchingOverload, e.Pos(), "no matching overload: `%s` requires two numeric vectors of the same length, got %s and %s", e.Func, xt, yt)
		return nil
	}
	b := &tir.Binary{Op: op, X: x, Y: y}
	b.SetMeta(types.Vector(types.Bool, xt.Size), e.Pos())
	return b
}

func (c *checker) checkLPFXCall(e *ast.CallExpr, id builtins.LPFXID) tir.Expr {
	entry, _ := builtins.DefaultLPFX().Lookup(id)

	switch id {
	case builtins.LHSV2RGB, builtins.LRGB2HSV:
		if len(e.Args) != 1 {
			c.diags.Add(source.ErrWrongArgCount, e.Pos(), "wrong argument count: `%s` takes 1 argument, got %d", entry.Name, len(e.Args))
			return nil
		}
		x := c.checkExpr(e.Args[0])
		if x == nil {
			return nil
		}
		want := types.Vector(types.Float, 3)
		if !x.Type().Equal(want) {
			c.diags.Add(source.ErrNoMatchingOverload, e.Pos(), "no matching overload: `%s` requires vec3, got %s", entry.Name, x.Type())
			return nil
		}
		call := &tir.Call{Kind: tir.CallLPFX, Name: entry.Name, Args: []tir.Expr{x}}
		call.SetMeta(want, e.Pos())
		return call

	case builtins.LNoise1, builtins.LNoise2:
		want := 1
		if id == builtins.LNoise2 {
			want = 2
		}
		if len(e.Args) != want {
			c.diags.Add(source.ErrWrongArgCount, e.Pos(), "wrong argument count: `%s` takes %d arguments, got %d", entry.Name, want, len(e.Args))
			return nil
		}
		args := make([]tir.Expr, 0, want)
		for _, a := range e.Args {
			x := c.checkExpr(a)
			if x == nil {
				return nil
			}
			if !x.Type().Equal(types.TFloat) {
				c.diags.Add(source.ErrNoMatchingOverload, a.Pos(), "no matching overload: `%s` requires float arguments, got %s", entry.Name, x.Type())
				return nil
			}
			args = append(args, x)
		}
		call := &tir.Call{Kind: tir.CallLPFX, Name: entry.Name, Args: args}
		call.SetMeta(types.TFloat, e.Pos())
		return call

	default:
		// mix, clamp, smoothstep: three float genType arguments where each
		// may independently be scalar; the result takes the vector shape
		// when any argument has one.
		if len(e.Args) != 3 {
			c.diags.Add(source.ErrWrongArgCount, e.Pos(), "wrong argument count: `%s` takes 3 arguments, got %d", entry.Name, len(e.Args))
			return nil
		}
		vecSize := 0
		args := make([]tir.Expr, 0, 3)
		for _, a := range e.Args {
			x := c.checkExpr(a)
			if x == nil {
				return nil
			}
			xt := x.Type()
			if xt.IsArray() || xt.IsMatrix() || xt.Scalar != types.Float {
				c.diags.Add(source.ErrNoMatchingOverload, a.Pos(), "no matching overload: `%s` requires float arguments, got %s", entry.Name, xt)
				return nil
			}
			if xt.IsVector() {
				if vecSize != 0 && vecSize != xt.Size {
					c.diags.Add(source.ErrNoMatchingOverload, a.Pos(), "no matching overload: `%s` has mismatched vector lengths", entry.Name)
					return nil
				}
				vecSize = xt.Size
			}
			args = append(args, x)
		}
		var result types.Type
		if vecSize == 0 {
			result = types.TFloat
		} else {
			result = types.Vector(types.Float, vecSize)
		}
		call := &tir.Call{Kind: tir.CallLPFX, Name: entry.Name, Args: args}
		call.SetMeta(result, e.Pos())
		return call
	}
}
