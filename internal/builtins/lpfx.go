package builtins

import "math"

// LPFX functions are the higher-level library exposed to shaders beyond
// raw math: colour space conversions and noise, each with a pre-lowering
// float (*_f32) and post-lowering fixed (*_q32) implementation sharing
// one Go function operating on Q32, since float and q32 only differ in
// how the front end encodes literals before the call.

// HSV2RGB converts hue/saturation/value (each in [0,1] Q32) to RGB.
func HSV2RGB(h, s, v Q32) (r, g, b Q32) {
	hf, sf, vf := h.Decode(), s.Decode(), v.Decode()
	hf -= math.Floor(hf)
	i := math.Floor(hf * 6)
	f := hf*6 - i
	p := vf * (1 - sf)
	q := vf * (1 - sf*f)
	t := vf * (1 - sf*(1-f))

	var rf, gf, bf float64
	switch int(i) % 6 {
	case 0:
		rf, gf, bf = vf, t, p
	case 1:
		rf, gf, bf = q, vf, p
	case 2:
		rf, gf, bf = p, vf, t
	case 3:
		rf, gf, bf = p, q, vf
	case 4:
		rf, gf, bf = t, p, vf
	default:
		rf, gf, bf = vf, p, q
	}
	return Encode(rf), Encode(gf), Encode(bf)
}

// RGB2HSV is the inverse of HSV2RGB.
func RGB2HSV(r, g, b Q32) (h, s, v Q32) {
	rf, gf, bf := r.Decode(), g.Decode(), b.Decode()
	maxc := math.Max(rf, math.Max(gf, bf))
	minc := math.Min(rf, math.Min(gf, bf))
	vf := maxc
	delta := maxc - minc

	var sf, hf float64
	if maxc != 0 {
		sf = delta / maxc
	}
	switch {
	case delta == 0:
		hf = 0
	case maxc == rf:
		hf = math.Mod((gf-bf)/delta, 6)
	case maxc == gf:
		hf = (bf-rf)/delta + 2
	default:
		hf = (rf-gf)/delta + 4
	}
	hf /= 6
	if hf < 0 {
		hf++
	}
	return Encode(hf), Encode(sf), Encode(vf)
}

// hashInt is a small integer hash used by the noise functions below; it
// has no cryptographic ambition, only decorrelation across adjacent cells.
func hashInt(x int32) uint32 {
	u := uint32(x)
	u = (u ^ 61) ^ (u >> 16)
	u = u + (u << 3)
	u = u ^ (u >> 4)
	u = u * 0x27d4eb2d
	u = u ^ (u >> 15)
	return u
}

func gradient1D(cell int32) float64 {
	u := hashInt(cell)
	return float64(int32(u))/float64(1<<31) // in [-1, 1)
}

func smooth(t float64) float64 { return t * t * (3 - 2*t) }

// Noise1 is a value-noise function of one Q32 coordinate, returning a
// Q32 value roughly in [-1, 1].
func Noise1(x Q32) Q32 {
	xf := x.Decode()
	i0 := int32(math.Floor(xf))
	f := xf - math.Floor(xf)
	g0, g1 := gradient1D(i0), gradient1D(i0+1)
	v := g0 + smooth(f)*(g1-g0)
	return Encode(v)
}

func hashInt2(x, y int32) uint32 { return hashInt(x*374761393 + y*668265263) }

func gradient2D(cx, cy int32) (float64, float64) {
	u := hashInt2(cx, cy)
	angle := float64(u) / float64(1<<32) * 2 * math.Pi
	return math.Cos(angle), math.Sin(angle)
}

// Noise2 is a 2D Perlin-style gradient noise function returning a Q32
// value roughly in [-1, 1].
func Noise2(x, y Q32) Q32 {
	xf, yf := x.Decode(), y.Decode()
	x0, y0 := int32(math.Floor(xf)), int32(math.Floor(yf))
	fx, fy := xf-math.Floor(xf), yf-math.Floor(yf)

	dot := func(cx, cy int32, dx, dy float64) float64 {
		gx, gy := gradient2D(cx, cy)
		return gx*dx + gy*dy
	}

	n00 := dot(x0, y0, fx, fy)
	n10 := dot(x0+1, y0, fx-1, fy)
	n01 := dot(x0, y0+1, fx, fy-1)
	n11 := dot(x0+1, y0+1, fx-1, fy-1)

	u, v := smooth(fx), smooth(fy)
	nx0 := n00 + u*(n10-n00)
	nx1 := n01 + u*(n11-n01)
	return Encode(nx0 + v*(nx1-nx0))
}

// Mix is GLSL's linear interpolation, exposed as an LPFX entry since its
// Q32 form needs saturating multiply rather than the naive float lerp.
func Mix(a, b, t Q32) Q32 {
	return Add(a, Mul(Sub(b, a), t))
}

// Clamp restricts a to [lo, hi].
func Clamp(a, lo, hi Q32) Q32 {
	if a < lo {
		return lo
	}
	if a > hi {
		return hi
	}
	return a
}

// Smoothstep is GLSL's smoothstep, built from Clamp and Mul.
func Smoothstep(edge0, edge1, x Q32) Q32 {
	if edge0 == edge1 {
		if x < edge0 {
			return 0
		}
		return one
	}
	t := Clamp(Div(Sub(x, edge0), Sub(edge1, edge0)), 0, one)
	factor := Sub(Encode(3), Mul(Encode(2), t))
	return Mul(Mul(t, t), factor)
}
