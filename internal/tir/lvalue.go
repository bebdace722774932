package tir

// LValue is an assignable storage location. It covers the three access
// patterns an assignment target can take: whole-variable (Base alone),
// swizzle/component selection into a vector (Base + Components), and
// array indexing (Base + Index), optionally followed by a component
// selection on the indexed element (a[i].xy). Front-end codegen decides,
// per Base, whether it lowers to an SSA variable set or a pointer-based
// reference; the typed IR itself stays storage-agnostic.
type LValue struct {
	Base       *Variable
	Index      Expr  // non-nil for array element access
	Components []int // non-nil for a swizzle/component selection, applied after Index
}

// IsDirect reports whether the lvalue names the whole variable with no
// indexing or component selection.
func (l LValue) IsDirect() bool { return l.Index == nil && l.Components == nil }

// IsArrayElement reports whether the lvalue indexes into an array.
func (l LValue) IsArrayElement() bool { return l.Index != nil }

// IsComponent reports whether the lvalue selects a subset of components
// without indexing (a plain swizzle target such as `v.xy = ...`).
func (l LValue) IsComponent() bool { return l.Index == nil && l.Components != nil }
