// Package builtins implements the precompiled library of Q32 fixed-point
// math and LPFX colour/noise functions that generated shader code calls
// into, along with the registries the front end, the Q32 pass, and the
// linker all consult to agree on symbol names, arities, and types.
package builtins

import "math"

// Q32 is a signed 16.16 fixed-point number: q32 = round(x * 2^16).
type Q32 int32

const (
	fracBits = 16
	one      = Q32(1 << fracBits)
	maxQ32   = Q32(0x7fffffff)
	minQ32   = Q32(-0x80000000)
)

// Encode converts a float64 to its nearest Q32 representation, saturating
// on overflow. There is no NaN or infinity in Q32: both saturate to the
// representable extremes.
func Encode(x float64) Q32 {
	if math.IsNaN(x) {
		return 0
	}
	scaled := x * float64(one)
	if scaled >= float64(maxQ32) {
		return maxQ32
	}
	if scaled <= float64(minQ32) {
		return minQ32
	}
	return Q32(math.Round(scaled))
}

// Decode converts a Q32 back to a float64.
func (q Q32) Decode() float64 {
	return float64(q) / float64(one)
}

// Add and Sub are ordinary integer operations; Q32's fixed scale cancels.
func Add(a, b Q32) Q32 { return a + b }
func Sub(a, b Q32) Q32 { return a - b }
func Neg(a Q32) Q32    { return -a }

func Abs(a Q32) Q32 {
	if a < 0 {
		if a == minQ32 {
			return maxQ32
		}
		return -a
	}
	return a
}

// Mul multiplies two Q32 values via a widening 64-bit multiply followed by
// an arithmetic right shift of 16, saturating on overflow.
func Mul(a, b Q32) Q32 {
	prod := int64(a) * int64(b) >> fracBits
	return saturate(prod)
}

// Div divides two Q32 values via a 64-bit numerator shifted left 16 before
// the division, saturating on overflow and on division by zero
// (sign-preserving saturation to the representable extreme).
func Div(a, b Q32) Q32 {
	if b == 0 {
		if a < 0 {
			return minQ32
		}
		return maxQ32
	}
	num := int64(a) << fracBits
	return saturate(num / int64(b))
}

func saturate(v int64) Q32 {
	if v > int64(maxQ32) {
		return maxQ32
	}
	if v < int64(minQ32) {
		return minQ32
	}
	return Q32(v)
}

// Floor, Ceil, Fract, Sign are integer operations on the fixed-point bits.
func Floor(a Q32) Q32 { return a &^ (one - 1) }

func Ceil(a Q32) Q32 {
	if a&(one-1) == 0 {
		return a
	}
	return Floor(a) + one
}

func Fract(a Q32) Q32 { return a - Floor(a) }

func Sign(a Q32) Q32 {
	switch {
	case a > 0:
		return one
	case a < 0:
		return -one
	default:
		return 0
	}
}

// IsNaN and IsInf always report false: fixed-point values have no NaN or
// infinity representation.
func IsNaN(Q32) bool { return false }
func IsInf(Q32) bool { return false }

// FromInt32 and ToInt32 convert between int32 and Q32 by shifting, with
// saturation rather than a panic on range overflow in FromInt32.
func FromInt32(i int32) Q32 {
	v := int64(i) << fracBits
	return saturate(v)
}

func ToInt32(q Q32) int32 { return int32(q >> fracBits) }

func FromUint32(u uint32) Q32 {
	v := int64(u) << fracBits
	return saturate(v)
}

func ToUint32(q Q32) uint32 {
	if q < 0 {
		return 0
	}
	return uint32(q >> fracBits)
}
