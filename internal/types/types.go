// Package types defines the closed set of value types shared by every
// stage of the pipeline from semantic analysis through code generation.
package types

import "fmt"

// Scalar identifies one of the scalar kinds: void, bool, int32, uint32, float.
type Scalar int

const (
	Void Scalar = iota
	Bool
	Int32
	Uint32
	Float
)

var scalarNames = [...]string{"void", "bool", "int32", "uint32", "float"}

func (s Scalar) String() string {
	if int(s) < len(scalarNames) {
		return scalarNames[s]
	}
	return "unknown"
}

// Kind discriminates the shape of a Type.
type Kind int

const (
	KindScalar Kind = iota
	KindVector
	KindMatrix
	KindArray
)

// Type is a value type: a scalar, a vector, a square matrix of float, or an
// array of any of these with a compile-time constant size.
type Type struct {
	Kind    Kind
	Scalar  Scalar // element scalar for Vector/Matrix/Array, or the scalar itself for KindScalar
	Size    int    // vector length (2..4) or matrix order (2..4)
	Elem    *Type  // element type for KindArray
	ArrayN  int    // array length for KindArray
	Const   bool   // const-qualified; erased before codegen
}

// Qualifier is a parameter passing mode.
type Qualifier int

const (
	In Qualifier = iota
	Out
	InOut
)

func (q Qualifier) String() string {
	switch q {
	case Out:
		return "out"
	case InOut:
		return "inout"
	default:
		return "in"
	}
}

// Constructors for the closed type set.
func ScalarType(s Scalar) Type { return Type{Kind: KindScalar, Scalar: s} }

var (
	TVoid   = ScalarType(Void)
	TBool   = ScalarType(Bool)
	TInt32  = ScalarType(Int32)
	TUint32 = ScalarType(Uint32)
	TFloat  = ScalarType(Float)
)

// Vector constructs a vector type of the given element scalar and length (2..4).
func Vector(s Scalar, n int) Type {
	if n < 2 || n > 4 {
		panic(fmt.Sprintf("types: invalid vector length %d", n))
	}
	return Type{Kind: KindVector, Scalar: s, Size: n}
}

// Matrix constructs a square float matrix type of order 2..4.
func Matrix(order int) Type {
	if order < 2 || order > 4 {
		panic(fmt.Sprintf("types: invalid matrix order %d", order))
	}
	return Type{Kind: KindMatrix, Scalar: Float, Size: order}
}

// Array constructs an array type of elem with a compile-time constant length.
func Array(elem Type, n int) Type {
	e := elem
	return Type{Kind: KindArray, Elem: &e, ArrayN: n}
}

// WithConst returns a const-qualified copy of t.
func (t Type) WithConst() Type {
	t.Const = true
	return t
}

// Unqualified returns t with its const qualifier erased, the form used
// from front-end codegen onward.
func (t Type) Unqualified() Type {
	t.Const = false
	return t
}

// IsScalar, IsVector, IsMatrix, IsArray classify a type's shape.
func (t Type) IsScalar() bool { return t.Kind == KindScalar }
func (t Type) IsVector() bool { return t.Kind == KindVector }
func (t Type) IsMatrix() bool { return t.Kind == KindMatrix }
func (t Type) IsArray() bool  { return t.Kind == KindArray }

// IsFloaty reports whether t's element scalar is Float (true before Q32 lowering).
func (t Type) IsFloaty() bool {
	return t.Scalar == Float && t.Kind != KindArray
}

// NumComponents returns the number of scalar components a value of t
// occupies in the SSA/register model: 1 for a scalar, N for a vector of
// length N, order*order for a matrix, and the recursive count for arrays.
func (t Type) NumComponents() int {
	switch t.Kind {
	case KindScalar:
		return 1
	case KindVector:
		return t.Size
	case KindMatrix:
		return t.Size * t.Size
	case KindArray:
		return t.ArrayN * t.Elem.NumComponents()
	default:
		return 0
	}
}

// Equal reports structural equality, ignoring the const qualifier.
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind || t.Scalar != o.Scalar || t.Size != o.Size || t.ArrayN != o.ArrayN {
		return false
	}
	if t.Kind == KindArray {
		return t.Elem.Equal(*o.Elem)
	}
	return true
}

func (t Type) String() string {
	switch t.Kind {
	case KindScalar:
		return t.Scalar.String()
	case KindVector:
		prefix := "vec"
		switch t.Scalar {
		case Int32:
			prefix = "ivec"
		case Uint32:
			prefix = "uvec"
		case Bool:
			prefix = "bvec"
		}
		return fmt.Sprintf("%s%d", prefix, t.Size)
	case KindMatrix:
		return fmt.Sprintf("mat%d", t.Size)
	case KindArray:
		return fmt.Sprintf("%s[%d]", t.Elem.String(), t.ArrayN)
	default:
		return "?"
	}
}

// promotionRank orders scalars for GLSL's implicit conversion rules:
// bool -> int -> uint -> float, plus a standalone int -> float path.
func promotionRank(s Scalar) int {
	switch s {
	case Bool:
		return 0
	case Int32:
		return 1
	case Uint32:
		return 2
	case Float:
		return 3
	default:
		return -1
	}
}

// CanImplicitlyConvert reports whether a value of type from may be
// implicitly converted to type to under GLSL promotion rules, restricted
// to the scalar/vector shapes this pipeline supports. Matrices and arrays
// never implicitly convert.
func CanImplicitlyConvert(from, to Type) bool {
	if from.Equal(to) {
		return true
	}
	if from.Kind != to.Kind && !(from.Kind == KindScalar && to.Kind == KindScalar) {
		return false
	}
	if from.Kind == KindVector && to.Kind == KindVector && from.Size != to.Size {
		return false
	}
	if from.Kind != KindScalar && from.Kind != KindVector {
		return false
	}
	fr, tr := promotionRank(from.Scalar), promotionRank(to.Scalar)
	return fr >= 0 && tr >= 0 && fr < tr
}

// BestCommonType returns the type that both a and b can implicitly convert
// to, for scalar-by-vector and mixed-scalar promotion in binary operators.
// ok is false when no common type exists.
func BestCommonType(a, b Type) (Type, bool) {
	if a.Equal(b) {
		return a, true
	}
	// Scalar-by-vector promotion: broadcast the scalar to the vector's shape.
	if a.Kind == KindScalar && b.Kind == KindVector {
		if common, ok := BestCommonType(Type{Kind: KindScalar, Scalar: a.Scalar}, Type{Kind: KindScalar, Scalar: b.Scalar}); ok {
			return Vector(common.Scalar, b.Size), true
		}
		return Type{}, false
	}
	if b.Kind == KindScalar && a.Kind == KindVector {
		return BestCommonType(b, a)
	}
	if a.Kind != b.Kind {
		return Type{}, false
	}
	if a.Kind == KindVector && a.Size != b.Size {
		return Type{}, false
	}
	if CanImplicitlyConvert(a, b) {
		return b, true
	}
	if CanImplicitlyConvert(b, a) {
		return a, true
	}
	return Type{}, false
}
