package builtins

import "fmt"

// ParamKind names the 32-bit scalar type of one builtin parameter or
// return value, the narrow type vocabulary the registry needs: the front
// end, the Q32 pass, and the linker only ever need to agree on this much.
type ParamKind int

const (
	PQ32 ParamKind = iota
	PInt32
	PUint32
)

// BuiltinID is a stable enum identifier for one __lp_q32_* symbol.
type BuiltinID int

const (
	BMul BuiltinID = iota
	BDiv
	BMod
	BAbs
	BFloor
	BCeil
	BFract
	BSign
	BRound
	BRoundEven
	BSqrt
	BInverseSqrt
	BSin
	BCos
	BTan
	BAsin
	BAcos
	BAtan
	BAtan2
	BSinh
	BCosh
	BTanh
	BExp
	BExp2
	BLog
	BLog2
	BPow
	BFma
	BLdexp
	BFromInt
	BToInt
	BFromUint
	BToUint
	BDeterminant2
	BDeterminant3
	BDeterminant4
	BInverse2
	BInverse3
	BInverse4
	numBuiltins
)

// Entry describes one registry-table row: its symbol, its arity/type
// signature, and a host-callable implementation used by the JIT path and
// by the host-callback trampoline the ELF path dispatches through.
//
// Matrix-valued entries (determinant/inverse) follow the front end's
// stack-slot convention for matrices rather than scalar explosion: Params
// describe pointers (PInt32) into caller-owned memory instead of one PQ32
// per element, Return is the scalar determinant (empty for inverse, which
// writes through its destination pointer), and Fn is nil —
// dispatchMatrixOp handles them by id.
type Entry struct {
	ID     BuiltinID
	Name   string // GLSL-visible name, before Q32 retargeting
	Symbol string // __lp_q32_* linker symbol
	Params []ParamKind
	Return []ParamKind
	Fn     func(args []int32) []int32
}

func q1(f func(Q32) Q32) func([]int32) []int32 {
	return func(a []int32) []int32 { return []int32{int32(f(Q32(a[0])))} }
}
func q2(f func(Q32, Q32) Q32) func([]int32) []int32 {
	return func(a []int32) []int32 { return []int32{int32(f(Q32(a[0]), Q32(a[1])))} }
}
func q3(f func(Q32, Q32, Q32) Q32) func([]int32) []int32 {
	return func(a []int32) []int32 { return []int32{int32(f(Q32(a[0]), Q32(a[1]), Q32(a[2])))} }
}
// Registry is the closed, static table of __lp_q32_* builtins, with the
// bidirectional name<->id maps the parser, the Q32 pass, and the linker
// all consult.
type Registry struct {
	byID   map[BuiltinID]Entry
	byName map[string]BuiltinID
	bySym  map[string]BuiltinID
}

var defaultRegistry = buildRegistry()

// Default returns the process-wide builtin registry. It is immutable
// after initialisation, matching the single-threaded ownership rules of
// the pipeline it serves.
func Default() *Registry { return defaultRegistry }

func (r *Registry) add(e Entry) {
	r.byID[e.ID] = e
	r.byName[e.Name] = e.ID
	r.bySym[e.Symbol] = e.ID
}

// Lookup returns the entry for a builtin ID.
func (r *Registry) Lookup(id BuiltinID) (Entry, bool) {
	e, ok := r.byID[id]
	return e, ok
}

// ByName resolves a GLSL-visible builtin name to its ID.
func (r *Registry) ByName(name string) (BuiltinID, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// BySymbol resolves a linker symbol to its ID.
func (r *Registry) BySymbol(symbol string) (BuiltinID, bool) {
	id, ok := r.bySym[symbol]
	return id, ok
}

// All returns every registered entry, for registry-table dumps and tests.
func (r *Registry) All() []Entry {
	out := make([]Entry, 0, len(r.byID))
	for _, e := range r.byID {
		out = append(out, e)
	}
	return out
}

func buildRegistry() *Registry {
	r := &Registry{byID: make(map[BuiltinID]Entry), byName: make(map[string]BuiltinID), bySym: make(map[string]BuiltinID)}

	bin := func(id BuiltinID, name string, fn func(Q32, Q32) Q32) {
		r.add(Entry{ID: id, Name: name, Symbol: "__lp_q32_" + name, Params: []ParamKind{PQ32, PQ32}, Return: []ParamKind{PQ32}, Fn: q2(fn)})
	}
	un := func(id BuiltinID, name string, fn func(Q32) Q32) {
		r.add(Entry{ID: id, Name: name, Symbol: "__lp_q32_" + name, Params: []ParamKind{PQ32}, Return: []ParamKind{PQ32}, Fn: q1(fn)})
	}

	bin(BMul, "mul", Mul)
	bin(BDiv, "div", Div)
	bin(BMod, "mod", Mod)
	un(BAbs, "abs", Abs)
	un(BFloor, "floor", Floor)
	un(BCeil, "ceil", Ceil)
	un(BFract, "fract", Fract)
	un(BSign, "sign", Sign)
	un(BRound, "round", Round)
	un(BRoundEven, "roundEven", RoundEven)
	un(BSqrt, "sqrt", Sqrt)
	un(BInverseSqrt, "inversesqrt", InverseSqrt)
	un(BSin, "sin", Sin)
	un(BCos, "cos", Cos)
	un(BTan, "tan", Tan)
	un(BAsin, "asin", Asin)
	un(BAcos, "acos", Acos)
	un(BAtan, "atan", Atan)
	bin(BAtan2, "atan2", Atan2)
	un(BSinh, "sinh", Sinh)
	un(BCosh, "cosh", Cosh)
	un(BTanh, "tanh", Tanh)
	un(BExp, "exp", Exp)
	un(BExp2, "exp2", Exp2)
	un(BLog, "log", Log)
	un(BLog2, "log2", Log2)
	bin(BPow, "pow", Pow)

	r.add(Entry{ID: BFma, Name: "fma", Symbol: "__lp_q32_fma", Params: []ParamKind{PQ32, PQ32, PQ32}, Return: []ParamKind{PQ32}, Fn: q3(Fma)})
	r.add(Entry{ID: BLdexp, Name: "ldexp", Symbol: "__lp_q32_ldexp", Params: []ParamKind{PQ32, PInt32}, Return: []ParamKind{PQ32},
		Fn: func(a []int32) []int32 { return []int32{int32(Ldexp(Q32(a[0]), a[1]))} }})

	// Saturating conversions between the integer types and q32. These are
	// calls rather than inlined shifts: the Q32 pass's inline set does not
	// include them.
	r.add(Entry{ID: BFromInt, Name: "fromint", Symbol: "__lp_q32_fromint", Params: []ParamKind{PInt32}, Return: []ParamKind{PQ32},
		Fn: func(a []int32) []int32 { return []int32{int32(FromInt32(a[0]))} }})
	r.add(Entry{ID: BToInt, Name: "toint", Symbol: "__lp_q32_toint", Params: []ParamKind{PQ32}, Return: []ParamKind{PInt32},
		Fn: func(a []int32) []int32 { return []int32{ToInt32(Q32(a[0]))} }})
	r.add(Entry{ID: BFromUint, Name: "fromuint", Symbol: "__lp_q32_fromuint", Params: []ParamKind{PUint32}, Return: []ParamKind{PQ32},
		Fn: func(a []int32) []int32 { return []int32{int32(FromUint32(uint32(a[0])))} }})
	r.add(Entry{ID: BToUint, Name: "touint", Symbol: "__lp_q32_touint", Params: []ParamKind{PQ32}, Return: []ParamKind{PUint32},
		Fn: func(a []int32) []int32 { return []int32{int32(ToUint32(Q32(a[0])))} }})

	// Matrices live in stack slots addressed by pointer; these
	// take a source pointer (and, for inverse, a destination pointer) in
	// a0/a1 rather than exploding every element into its own register.
	r.add(Entry{ID: BDeterminant2, Name: "determinant", Symbol: "__lp_q32_determinant2", Params: []ParamKind{PInt32}, Return: []ParamKind{PQ32}})
	r.add(Entry{ID: BDeterminant3, Name: "determinant", Symbol: "__lp_q32_determinant3", Params: []ParamKind{PInt32}, Return: []ParamKind{PQ32}})
	r.add(Entry{ID: BDeterminant4, Name: "determinant", Symbol: "__lp_q32_determinant4", Params: []ParamKind{PInt32}, Return: []ParamKind{PQ32}})
	r.add(Entry{ID: BInverse2, Name: "inverse", Symbol: "__lp_q32_inverse2", Params: []ParamKind{PInt32, PInt32}, Return: nil})
	r.add(Entry{ID: BInverse3, Name: "inverse", Symbol: "__lp_q32_inverse3", Params: []ParamKind{PInt32, PInt32}, Return: nil})
	r.add(Entry{ID: BInverse4, Name: "inverse", Symbol: "__lp_q32_inverse4", Params: []ParamKind{PInt32, PInt32}, Return: nil})

	return r
}

// IsMatrixOp reports whether id follows the pointer-based matrix calling
// convention instead of the scalar register convention.
func IsMatrixOp(id BuiltinID) bool {
	switch id {
	case BDeterminant2, BDeterminant3, BDeterminant4, BInverse2, BInverse3, BInverse4:
		return true
	default:
		return false
	}
}

// MatrixOrder returns the order (2, 3, or 4) of a matrix builtin.
func MatrixOrder(id BuiltinID) int {
	switch id {
	case BDeterminant2, BInverse2:
		return 2
	case BDeterminant3, BInverse3:
		return 3
	case BDeterminant4, BInverse4:
		return 4
	default:
		return 0
	}
}

// IsInverseOp reports whether id is one of the inverse (rather than
// determinant) matrix builtins.
func IsInverseOp(id BuiltinID) bool {
	switch id {
	case BInverse2, BInverse3, BInverse4:
		return true
	default:
		return false
	}
}

func repeatKind(k ParamKind, n int) []ParamKind {
	out := make([]ParamKind, n)
	for i := range out {
		out[i] = k
	}
	return out
}

func (id BuiltinID) String() string {
	if e, ok := defaultRegistry.Lookup(id); ok {
		return e.Symbol
	}
	return fmt.Sprintf("BuiltinID(%d)", id)
}
