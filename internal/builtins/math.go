package builtins

import "math"

// The transcendental and matrix implementations below back the
// __lp_q32_* symbols. They are the reference semantics the back end's
// generated trampolines dispatch into through the host-callback syscall
// (see object.go); there is no hand-written RV32 assembly for these,
// since a bit-accurate fixed-point CORDIC implementation would be
// unverifiable without running the target toolchain.

func Mod(a, b Q32) Q32 {
	if b == 0 {
		return 0
	}
	r := Sub(a, Mul(Floor(Div(a, b)), b))
	return r
}

func Round(a Q32) Q32 {
	return Encode(math.Round(a.Decode()))
}

func RoundEven(a Q32) Q32 {
	return Encode(math.RoundToEven(a.Decode()))
}

func Sqrt(a Q32) Q32 {
	if a < 0 {
		return 0
	}
	return Encode(math.Sqrt(a.Decode()))
}

func InverseSqrt(a Q32) Q32 {
	if a <= 0 {
		return maxQ32
	}
	return Encode(1 / math.Sqrt(a.Decode()))
}

func Sin(a Q32) Q32   { return Encode(math.Sin(a.Decode())) }
func Cos(a Q32) Q32   { return Encode(math.Cos(a.Decode())) }
func Tan(a Q32) Q32   { return Encode(math.Tan(a.Decode())) }
func Asin(a Q32) Q32  { return Encode(math.Asin(clamp1(a.Decode()))) }
func Acos(a Q32) Q32  { return Encode(math.Acos(clamp1(a.Decode()))) }
func Atan(a Q32) Q32  { return Encode(math.Atan(a.Decode())) }
func Atan2(y, x Q32) Q32 { return Encode(math.Atan2(y.Decode(), x.Decode())) }

func Sinh(a Q32) Q32 { return Encode(math.Sinh(a.Decode())) }
func Cosh(a Q32) Q32 { return Encode(math.Cosh(a.Decode())) }
func Tanh(a Q32) Q32 { return Encode(math.Tanh(a.Decode())) }

func Exp(a Q32) Q32 { return Encode(math.Exp(a.Decode())) }
func Log(a Q32) Q32 {
	if a <= 0 {
		return minQ32
	}
	return Encode(math.Log(a.Decode()))
}
func Exp2(a Q32) Q32 { return Encode(math.Exp2(a.Decode())) }
func Log2(a Q32) Q32 {
	if a <= 0 {
		return minQ32
	}
	return Encode(math.Log2(a.Decode()))
}
func Pow(base, exp Q32) Q32 { return Encode(math.Pow(base.Decode(), exp.Decode())) }

func Fma(a, b, c Q32) Q32 { return Add(Mul(a, b), c) }

func Ldexp(a Q32, exp int32) Q32 { return Encode(math.Ldexp(a.Decode(), int(exp))) }

func clamp1(x float64) float64 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}

// Determinant2/3/4 and Inverse2/3/4 operate on column-major Q32 matrices
// flattened to a slice of order*order elements, matching the SSA
// register-explosion order the front end uses for matrix returns.

func Determinant2(m []Q32) Q32 {
	return Sub(Mul(m[0], m[3]), Mul(m[1], m[2]))
}

func Determinant3(m []Q32) Q32 {
	a, b, c := m[0], m[3], m[6]
	d, e, f := m[1], m[4], m[7]
	g, h, i := m[2], m[5], m[8]
	t1 := Mul(a, Sub(Mul(e, i), Mul(f, h)))
	t2 := Mul(b, Sub(Mul(d, i), Mul(f, g)))
	t3 := Mul(c, Sub(Mul(d, h), Mul(e, g)))
	return Sub(Add(t1, t3), t2)
}

func Determinant4(m []Q32) Q32 {
	f := func(i int) float64 { return m[i].Decode() }
	get := func(r, c int) float64 { return f(c*4 + r) }
	det := 0.0
	sign := 1.0
	for col := 0; col < 4; col++ {
		minor := minor3x3(get, col)
		det += sign * get(0, col) * minor
		sign = -sign
	}
	return Encode(det)
}

func minor3x3(get func(r, c int) float64, skipCol int) float64 {
	var rows [3][3]float64
	rIdx := 0
	for r := 1; r < 4; r++ {
		cIdx := 0
		for c := 0; c < 4; c++ {
			if c == skipCol {
				continue
			}
			rows[rIdx][cIdx] = get(r, c)
			cIdx++
		}
		rIdx++
	}
	return rows[0][0]*(rows[1][1]*rows[2][2]-rows[1][2]*rows[2][1]) -
		rows[0][1]*(rows[1][0]*rows[2][2]-rows[1][2]*rows[2][0]) +
		rows[0][2]*(rows[1][0]*rows[2][1]-rows[1][1]*rows[2][0])
}

func Inverse2(m []Q32) []Q32 {
	det := Determinant2(m)
	if det == 0 {
		return []Q32{0, 0, 0, 0}
	}
	invDet := Div(one, det)
	return []Q32{
		Mul(m[3], invDet), Mul(Neg(m[1]), invDet),
		Mul(Neg(m[2]), invDet), Mul(m[0], invDet),
	}
}

func Inverse3(m []Q32) []Q32 {
	det := Determinant3(m)
	if det == 0 {
		return make([]Q32, 9)
	}
	invDet := Div(one, det)
	cof := func(a, b, c, d Q32) Q32 { return Sub(Mul(a, d), Mul(b, c)) }
	out := make([]Q32, 9)
	out[0] = Mul(cof(m[4], m[5], m[7], m[8]), invDet)
	out[1] = Mul(Neg(cof(m[1], m[2], m[7], m[8])), invDet)
	out[2] = Mul(cof(m[1], m[2], m[4], m[5]), invDet)
	out[3] = Mul(Neg(cof(m[3], m[5], m[6], m[8])), invDet)
	out[4] = Mul(cof(m[0], m[2], m[6], m[8]), invDet)
	out[5] = Mul(Neg(cof(m[0], m[2], m[3], m[5])), invDet)
	out[6] = Mul(cof(m[3], m[4], m[6], m[7]), invDet)
	out[7] = Mul(Neg(cof(m[0], m[1], m[6], m[7])), invDet)
	out[8] = Mul(cof(m[0], m[1], m[3], m[4]), invDet)
	return out
}

// Inverse4 falls back to float64 Gauss-Jordan since the 4x4 cofactor
// expansion written out by hand is too error-prone to trust unverified;
// precision loss from round-tripping through float64 is well within
// Q32's own resolution of ~1.5e-5.
func Inverse4(m []Q32) []Q32 {
	var a [4][8]float64
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			a[r][c] = m[c*4+r].Decode()
		}
		a[r][4+r] = 1
	}
	for col := 0; col < 4; col++ {
		pivot := col
		for r := col + 1; r < 4; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		a[col], a[pivot] = a[pivot], a[col]
		if a[col][col] == 0 {
			return make([]Q32, 16)
		}
		pv := a[col][col]
		for c := 0; c < 8; c++ {
			a[col][c] /= pv
		}
		for r := 0; r < 4; r++ {
			if r == col {
				continue
			}
			factor := a[r][col]
			for c := 0; c < 8; c++ {
				a[r][c] -= factor * a[col][c]
			}
		}
	}
	out := make([]Q32, 16)
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out[c*4+r] = Encode(a[r][4+c])
		}
	}
	return out
}
