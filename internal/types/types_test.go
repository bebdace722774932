package types

import "testing"

func TestImplicitConversionChain(t *testing.T) {
	if !CanImplicitlyConvert(TBool, TInt32) {
		t.Error("bool -> int32 should be allowed")
	}
	if !CanImplicitlyConvert(TInt32, TUint32) {
		t.Error("int32 -> uint32 should be allowed")
	}
	if !CanImplicitlyConvert(TUint32, TFloat) {
		t.Error("uint32 -> float should be allowed")
	}
	if CanImplicitlyConvert(TFloat, TInt32) {
		t.Error("float -> int32 should not be allowed implicitly")
	}
}

func TestBestCommonTypeScalarVector(t *testing.T) {
	v := Vector(Float, 3)
	common, ok := BestCommonType(TInt32, v)
	if !ok || !common.Equal(v) {
		t.Fatalf("BestCommonType(int32, vec3) = %v, %v", common, ok)
	}
}

func TestNumComponents(t *testing.T) {
	cases := []struct {
		t    Type
		want int
	}{
		{TFloat, 1},
		{Vector(Float, 3), 3},
		{Matrix(4), 16},
		{Array(TInt32, 5), 5},
		{Array(Vector(Float, 2), 3), 6},
	}
	for _, c := range cases {
		if got := c.t.NumComponents(); got != c.want {
			t.Errorf("%v.NumComponents() = %d, want %d", c.t, got, c.want)
		}
	}
}

func TestEqualIgnoresConst(t *testing.T) {
	if !TFloat.WithConst().Equal(TFloat) {
		t.Error("const qualifier should not affect Equal")
	}
}

func TestStringFormsMatchGLSLNaming(t *testing.T) {
	cases := map[Type]string{
		Vector(Float, 2):  "vec2",
		Vector(Int32, 3):  "ivec3",
		Vector(Uint32, 4): "uvec4",
		Vector(Bool, 2):   "bvec2",
		Matrix(3):         "mat3",
	}
	for typ, want := range cases {
		if got := typ.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
