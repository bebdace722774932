// Package sema is the semantic analyser: it resolves names, checks types,
// selects overloads, evaluates constants, and lowers the parser's syntax
// tree to the typed IR in internal/tir. Diagnostics are collected rather
// than returned one at a time, so several problems in one file surface
// together; a diagnostic halts further checking of the statement that
// produced it but not of the rest of the function or module.
package sema

import (
	"github.com/lightplayer/lpxc/internal/ast"
	"github.com/lightplayer/lpxc/internal/source"
	"github.com/lightplayer/lpxc/internal/tir"
	"github.com/lightplayer/lpxc/internal/types"
)

// Analyze type-checks file and lowers it to a typed module. The module is
// valid only when diags stayed empty; on error it still holds whatever
// lowered cleanly, for tooling that wants a partial view.
func Analyze(file *ast.File, diags *source.DiagnosticSet) *tir.Module {
	c := &checker{
		diags:     diags,
		module:    &tir.Module{GlobalInit: make(map[*tir.Variable]tir.Expr)},
		funcs:     make(map[string]*tir.Function),
		funcDecls: make(map[string]*ast.FuncDecl),
		constVals: make(map[*tir.Variable]constVal),
	}
	c.analyzeFile(file)
	return c.module
}

type checker struct {
	diags  *source.DiagnosticSet
	module *tir.Module

	funcs     map[string]*tir.Function
	funcDecls map[string]*ast.FuncDecl
	globals   map[string]*tir.Variable
	constVals map[*tir.Variable]constVal

	scopes    []map[string]*tir.Variable
	curFunc   *tir.Function
	loopDepth int
}

func (c *checker) analyzeFile(file *ast.File) {
	c.globals = make(map[string]*tir.Variable)

	// Module-scope constants first, in source order, so later const
	// initialisers and array sizes can reference earlier ones.
	for _, d := range file.Decls {
		if cd, ok := d.(*ast.ConstDecl); ok {
			c.checkGlobalConst(cd)
		}
	}

	// Register every function signature before checking any body, so call
	// sites do not depend on textual order.
	for _, d := range file.Decls {
		fd, ok := d.(*ast.FuncDecl)
		if !ok {
			continue
		}
		if _, exists := c.funcs[fd.Name]; exists {
			c.diags.Add(source.ErrRedeclared, fd.Loc, "redeclaration of function `%s`", fd.Name)
			continue
		}
		fn := c.registerFunction(fd)
		if fn != nil {
			c.funcs[fd.Name] = fn
			c.funcDecls[fd.Name] = fd
			c.module.Functions = append(c.module.Functions, fn)
		}
	}

	for _, fn := range c.module.Functions {
		c.checkFunctionBody(fn, c.funcDecls[fn.Name])
	}
}

func (c *checker) checkGlobalConst(cd *ast.ConstDecl) {
	ty, ok := c.resolveType(cd.Type, -1)
	if !ok {
		return
	}
	if cd.Init == nil {
		c.diags.Add(source.ErrConstUninitialized, cd.Loc, "const `%s` must be initialized", cd.Name)
		return
	}
	if _, exists := c.globals[cd.Name]; exists {
		c.diags.Add(source.ErrRedeclared, cd.Loc, "redeclaration of `%s`", cd.Name)
		return
	}
	init := c.checkExpr(cd.Init)
	if init == nil {
		return
	}
	init = c.convert(init, ty.Unqualified(), cd.Init.Pos())
	if init == nil {
		return
	}
	val, ok := c.constEval(init)
	if !ok {
		c.diags.Add(source.ErrNotConstant, cd.Init.Pos(), "initialiser of const `%s` is not a constant expression", cd.Name)
		return
	}
	v := &tir.Variable{Name: cd.Name, Type: ty.WithConst(), Loc: cd.Loc}
	c.globals[cd.Name] = v
	c.constVals[v] = val
	c.module.Globals = append(c.module.Globals, v)
	c.module.GlobalInit[v] = init
}

func (c *checker) registerFunction(fd *ast.FuncDecl) *tir.Function {
	ret, ok := c.resolveType(fd.Return, -1)
	if !ok {
		return nil
	}
	fn := &tir.Function{Name: fd.Name, Return: ret, Exported: true, Loc: fd.Loc}
	for _, pd := range fd.Params {
		pt, ok := c.resolveType(pd.Type, -1)
		if !ok {
			return nil
		}
		qual := types.In
		switch pd.Qualifier {
		case "out":
			qual = types.Out
		case "inout":
			qual = types.InOut
		case "const":
			pt = pt.WithConst()
		}
		fn.Params = append(fn.Params, tir.Param{
			Var:       &tir.Variable{Name: pd.Name, Type: pt, Loc: pd.Loc},
			Qualifier: qual,
		})
	}
	return fn
}

func (c *checker) checkFunctionBody(fn *tir.Function, fd *ast.FuncDecl) {
	c.curFunc = fn
	c.loopDepth = 0
	c.scopes = c.scopes[:0]
	c.pushScope()
	for _, p := range fn.Params {
		c.declare(p.Var)
	}
	fn.Body = c.checkStmts(fd.Body)
	c.popScope()
	c.curFunc = nil
}

func (c *checker) pushScope() {
	c.scopes = append(c.scopes, make(map[string]*tir.Variable))
}

func (c *checker) popScope() {
	c.scopes = c.scopes[:len(c.scopes)-1]
}

func (c *checker) declare(v *tir.Variable) bool {
	top := c.scopes[len(c.scopes)-1]
	if _, exists := top[v.Name]; exists {
		c.diags.Add(source.ErrRedeclared, v.Loc, "redeclaration of `%s`", v.Name)
		return false
	}
	top[v.Name] = v
	return true
}

// lookup resolves a name through the scope stack (innermost first) and
// then module scope. Shadowing is a property of this search order.
func (c *checker) lookup(name string) (*tir.Variable, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if v, ok := c.scopes[i][name]; ok {
			return v, true
		}
	}
	v, ok := c.globals[name]
	return v, ok
}

// scalarTypeNames is the closed table of type spellings the grammar
// accepts. Vector and matrix spellings are handled alongside in
// resolveType; a name missing from all of these is not a type.
var scalarTypeNames = map[string]types.Type{
	"void":  types.TVoid,
	"bool":  types.TBool,
	"int":   types.TInt32,
	"uint":  types.TUint32,
	"float": types.TFloat,
}

var vectorTypeNames = map[string]types.Type{
	"vec2": types.Vector(types.Float, 2), "vec3": types.Vector(types.Float, 3), "vec4": types.Vector(types.Float, 4),
	"ivec2": types.Vector(types.Int32, 2), "ivec3": types.Vector(types.Int32, 3), "ivec4": types.Vector(types.Int32, 4),
	"uvec2": types.Vector(types.Uint32, 2), "uvec3": types.Vector(types.Uint32, 3), "uvec4": types.Vector(types.Uint32, 4),
	"bvec2": types.Vector(types.Bool, 2), "bvec3": types.Vector(types.Bool, 3), "bvec4": types.Vector(types.Bool, 4),
	"mat2": types.Matrix(2), "mat3": types.Matrix(3), "mat4": types.Matrix(4),
}

func namedType(name string) (types.Type, bool) {
	if t, ok := scalarTypeNames[name]; ok {
		return t, true
	}
	t, ok := vectorTypeNames[name]
	return t, ok
}

// resolveType turns a syntactic type into a types.Type. sizeFromInit is
// the element count an unsized array declarator takes from its
// initialiser, or -1 when no initialiser-sized form is legal here.
func (c *checker) resolveType(tn ast.TypeName, sizeFromInit int) (types.Type, bool) {
	base, ok := namedType(tn.Name)
	if !ok {
		c.diags.Add(source.ErrUnknownType, tn.Loc, "unknown type `%s`", tn.Name)
		return types.Type{}, false
	}
	if !tn.IsArray {
		return base, true
	}
	if tn.ArraySize == nil {
		if sizeFromInit <= 0 {
			c.diags.Add(source.ErrConstArraySize, tn.Loc, "array `%s[]` needs an explicit size or an initialiser", tn.Name)
			return types.Type{}, false
		}
		return types.Array(base, sizeFromInit), true
	}
	n, ok := c.constIntExpr(tn.ArraySize)
	if !ok {
		return types.Type{}, false
	}
	if n <= 0 {
		c.diags.Add(source.ErrConstArraySize, tn.ArraySize.Pos(), "array size must be positive, got %d", n)
		return types.Type{}, false
	}
	return types.Array(base, int(n)), true
}

// constIntExpr checks and constant-evaluates an expression required to be
// a constant integer (an array size).
func (c *checker) constIntExpr(e ast.Expr) (int64, bool) {
	checked := c.checkExpr(e)
	if checked == nil {
		return 0, false
	}
	t := checked.Type()
	if !t.IsScalar() || (t.Scalar != types.Int32 && t.Scalar != types.Uint32) {
		c.diags.Add(source.ErrConstArraySize, e.Pos(), "array size must be a constant integer expression")
		return 0, false
	}
	val, ok := c.constEval(checked)
	if !ok {
		c.diags.Add(source.ErrConstArraySize, e.Pos(), "array size must be a constant integer expression")
		return 0, false
	}
	return val.comps[0].i, true
}
