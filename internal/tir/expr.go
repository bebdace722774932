package tir

import (
	"github.com/lightplayer/lpxc/internal/source"
	"github.com/lightplayer/lpxc/internal/types"
)

// Expr is any typed expression node. Every implementation carries its own
// resolved types.Type and source.Loc so neither needs to be re-derived
// downstream.
type Expr interface {
	exprNode()
	Type() types.Type
	Loc() source.Loc
}

type exprBase struct {
	Ty types.Type
	L  source.Loc
}

func (e exprBase) exprNode()        {}
func (e exprBase) Type() types.Type { return e.Ty }
func (e exprBase) Loc() source.Loc  { return e.L }

// SetMeta stamps a node's resolved type and location; used by sema, which
// builds nodes from outside the package.
func (e *exprBase) SetMeta(t types.Type, l source.Loc) {
	e.Ty = t
	e.L = l
}

// Literal is a constant scalar value. Bits holds the value's bit pattern:
// 0/1 for bool, the two's-complement pattern for int32/uint32, and the
// IEEE-754 bit pattern (via math.Float32bits) for float.
type Literal struct {
	exprBase
	Bits uint64
}

// VarRef reads a variable directly.
type VarRef struct {
	exprBase
	Var *Variable
}

// Swizzle selects Components (in order, with repeats allowed for reads)
// from Base, which must be a vector. Components is an index list, e.g.
// [2,1,0] for `.zyx`. A single-component swizzle is how plain field
// access (`v.x`) is represented.
type Swizzle struct {
	exprBase
	Base       Expr
	Components []int
}

// Index reads one element of an array.
type Index struct {
	exprBase
	Base Expr
	Idx  Expr
}

// VectorConstructor builds a vector from a mix of scalar and (for
// expansion, e.g. vec4(a.zyx, 4.0)) smaller-vector arguments; the total
// component count across Args equals the result's length, except for the
// single-scalar form (vec3(x)), which splats the one value to every
// component.
type VectorConstructor struct {
	exprBase
	Args []Expr
}

// MatrixConstructor builds a square matrix either from Size*Size scalars
// in column-major order or from Size column vectors.
type MatrixConstructor struct {
	exprBase
	Args []Expr
}

// UnaryOp identifies a unary operator.
type UnaryOp int

const (
	UnNeg UnaryOp = iota
	UnNot
	UnBitNot
)

// Unary is a unary arithmetic/logical/bitwise operation.
type Unary struct {
	exprBase
	Op UnaryOp
	X  Expr
}

// BinaryOp identifies a binary arithmetic, bitwise, or comparison
// operator. Logical && and || are not here -- they short-circuit and are
// represented by Logical instead.
type BinaryOp int

const (
	BinAdd BinaryOp = iota
	BinSub
	BinMul
	BinDiv
	BinMod
	BinAnd
	BinOr
	BinXor
	BinShl
	BinShr
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
)

// Binary is a binary arithmetic, bitwise, or comparison operation,
// component-wise when its operands are vectors.
type Binary struct {
	exprBase
	Op   BinaryOp
	X, Y Expr
}

// LogicalOp identifies a short-circuiting logical operator.
type LogicalOp int

const (
	LogAnd LogicalOp = iota
	LogOr
)

// Logical is a short-circuiting && or ||; front-end codegen must lower it
// to branches rather than evaluating Y unconditionally.
type Logical struct {
	exprBase
	Op   LogicalOp
	X, Y Expr
}

// Ternary is `Cond ? Then : Else`.
type Ternary struct {
	exprBase
	Cond, Then, Else Expr
}

// Convert changes a value's scalar kind, component-wise for vectors; the
// target type is the node's own Type. Sema inserts these for both
// implicit promotions and explicit constructor-style conversions, folding
// them away when the operand is a literal.
type Convert struct {
	exprBase
	X Expr
}

// ArrayInit is an array constructor expression: one element expression
// per slot, already converted to the array's element type. It appears
// only as a declaration initialiser.
type ArrayInit struct {
	exprBase
	Elems []Expr
}

// CallKind discriminates the three kinds of callee a Call can target.
type CallKind int

const (
	CallUser CallKind = iota
	CallBuiltin
	CallLPFX
)

// OutArg wraps an argument bound to an out or inout parameter: the callee
// receives a pointer, so the argument must be a storage location, not a
// value. LV carries the resolved target; for inout the current value is
// copied in before the call, and for both the result is copied back after.
type OutArg struct {
	exprBase
	LV LValue
}

// Call invokes a function. Name is the plain name the call resolved to
// (e.g. "sin", "atan2" for two-argument atan, "hsv2rgb" for lpfx_hsv2rgb,
// "myHelper"); front-end codegen resolves it
// to a module-local symbol for CallUser, to a builtin registry entry for
// CallBuiltin, or to an LPFX registry entry's "*_f32" symbol for
// CallLPFX, per Kind. Func is set only for CallUser, letting codegen walk
// to the callee's own signature without a second name lookup.
type Call struct {
	exprBase
	Kind CallKind
	Name string
	Func *Function
	Args []Expr
}
