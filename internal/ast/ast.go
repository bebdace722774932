// Package ast holds the untyped syntax tree the parser produces and
// semantic analysis consumes. Nodes carry source locations but no types;
// type names are plain identifiers resolved later against the closed type
// table, so this package depends on nothing but internal/source.
package ast

import "github.com/lightplayer/lpxc/internal/source"

// File is one parsed GLSL source file: a sequence of top-level
// declarations (global constants and functions) in source order.
type File struct {
	Decls []Decl
}

// TypeName is a syntactic type reference: a type identifier ("float",
// "vec3", "mat4", ...) with an optional array suffix. ArraySize is nil
// for a non-array type and for an unsized array declarator ("float a[]"),
// which takes its length from its initialiser.
type TypeName struct {
	Name      string
	IsArray   bool
	ArraySize Expr
	Loc       source.Loc
}

// Decl is a top-level declaration.
type Decl interface {
	declNode()
}

// ConstDecl is a module-scope constant: `const float PI = 3.14159;`.
type ConstDecl struct {
	Type TypeName
	Name string
	Init Expr // nil only for the ill-formed `const float BAD;`, diagnosed by sema
	Loc  source.Loc
}

// ParamDecl is one function parameter.
type ParamDecl struct {
	Qualifier string // "", "in", "out", "inout", or "const"
	Type      TypeName
	Name      string
	Loc       source.Loc
}

// FuncDecl is a function definition.
type FuncDecl struct {
	Return TypeName
	Name   string
	Params []ParamDecl
	Body   []Stmt
	Loc    source.Loc
}

func (*ConstDecl) declNode() {}
func (*FuncDecl) declNode()  {}

// Stmt is any statement node.
type Stmt interface {
	stmtNode()
	Pos() source.Loc
}

type stmtBase struct {
	Loc source.Loc
}

func (s stmtBase) stmtNode()       {}
func (s stmtBase) Pos() source.Loc { return s.Loc }

// DeclStmt declares a local variable, optionally const-qualified,
// optionally initialised.
type DeclStmt struct {
	stmtBase
	Const bool
	Type  TypeName
	Name  string
	Init  Expr
}

// AssignStmt is a plain or compound assignment. Op is the assignment
// token's spelling with the '=' stripped: "" for =, "+" for +=, and so on.
type AssignStmt struct {
	stmtBase
	Target Expr
	Op     string
	Value  Expr
}

// ExprStmt evaluates an expression for its side effect.
type ExprStmt struct {
	stmtBase
	X Expr
}

// BlockStmt is a braced statement list, opening a new scope.
type BlockStmt struct {
	stmtBase
	List []Stmt
}

// IfStmt is if/else; Else is nil, another IfStmt (else-if chain), or a
// BlockStmt.
type IfStmt struct {
	stmtBase
	Cond Expr
	Then Stmt
	Else Stmt
}

// WhileStmt is a while loop.
type WhileStmt struct {
	stmtBase
	Cond Expr
	Body Stmt
}

// DoWhileStmt is a do/while loop.
type DoWhileStmt struct {
	stmtBase
	Body Stmt
	Cond Expr
}

// ForStmt is a for loop; Init, Cond, and Update are nil when absent.
type ForStmt struct {
	stmtBase
	Init   Stmt
	Cond   Expr
	Update Stmt
	Body   Stmt
}

// BreakStmt exits the innermost loop.
type BreakStmt struct{ stmtBase }

// ContinueStmt jumps to the innermost loop's next iteration.
type ContinueStmt struct{ stmtBase }

// ReturnStmt returns from the current function; Value is nil for `return;`.
type ReturnStmt struct {
	stmtBase
	Value Expr
}

// Expr is any expression node.
type Expr interface {
	exprNode()
	Pos() source.Loc
}

type exprBase struct {
	Loc source.Loc
}

func (e exprBase) exprNode()       {}
func (e exprBase) Pos() source.Loc { return e.Loc }

// Ident is a name reference.
type Ident struct {
	exprBase
	Name string
}

// IntLit is an integer literal; unsigned when IsUint.
type IntLit struct {
	exprBase
	Value  uint64
	IsUint bool
}

// FloatLit is a floating-point literal.
type FloatLit struct {
	exprBase
	Value float64
}

// BoolLit is true or false.
type BoolLit struct {
	exprBase
	Value bool
}

// CallExpr is a function call or constructor application; the callee is
// always a plain identifier in this grammar.
type CallExpr struct {
	exprBase
	Func string
	Args []Expr
}

// IndexExpr is array (or vector) subscripting.
type IndexExpr struct {
	exprBase
	Base  Expr
	Index Expr
}

// SelectorExpr is field access: a swizzle or single-component selection.
type SelectorExpr struct {
	exprBase
	Base Expr
	Sel  string
}

// UnaryExpr is -x, !x, or ~x.
type UnaryExpr struct {
	exprBase
	Op string
	X  Expr
}

// BinaryExpr is any binary operator, including the short-circuiting
// logical ones; sema separates those during lowering.
type BinaryExpr struct {
	exprBase
	Op   string
	X, Y Expr
}

// TernaryExpr is cond ? then : else.
type TernaryExpr struct {
	exprBase
	Cond, Then, Else Expr
}

// ParenExpr preserves explicit grouping for accurate locations.
type ParenExpr struct {
	exprBase
	X Expr
}

// ArrayLit is an array constructor: `float[](1.0, 2.0)` or
// `float[3](1.0, 2.0, 3.0)`. It is the initialiser form for unsized array
// declarations, which take their length from the argument count.
type ArrayLit struct {
	exprBase
	Elem TypeName // element type; Elem.ArraySize carries the optional size
	Size Expr     // nil when the size is taken from len(Args)
	Args []Expr
}

// IncDecStmt is the ++/-- statement form, permitted as a statement or a
// for-update clause only; sema lowers it to a compound assignment.
type IncDecStmt struct {
	stmtBase
	Target Expr
	Dec    bool
}
