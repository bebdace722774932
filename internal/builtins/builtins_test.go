package builtins

import (
	"math"
	"testing"

	"github.com/lightplayer/lpxc/internal/emulator"
	"github.com/lightplayer/lpxc/internal/linker"
	"github.com/lightplayer/lpxc/internal/riscv"
)

func almostEqual(t *testing.T, got, want float64, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Fatalf("got %v, want %v (tol %v)", got, want, tol)
	}
}

func TestQ32EncodeDecodeRoundTrip(t *testing.T) {
	for _, f := range []float64{0, 1, -1, 3.5, -3.5, 0.0001, 1e4} {
		q := Encode(f)
		almostEqual(t, q.Decode(), f, 1.0/65536)
	}
}

func TestQ32EncodeSaturatesAndHasNoNaN(t *testing.T) {
	if Encode(math.NaN()) != 0 {
		t.Fatalf("NaN should encode to 0")
	}
	if Encode(1e12) != maxQ32 {
		t.Fatalf("large positive should saturate to maxQ32")
	}
	if Encode(-1e12) != minQ32 {
		t.Fatalf("large negative should saturate to minQ32")
	}
}

func TestMulSaturates(t *testing.T) {
	big := Encode(40000)
	got := Mul(big, big)
	if got != maxQ32 {
		t.Fatalf("Mul overflow = %v, want maxQ32", got)
	}
}

func TestDivByZeroSaturatesSignPreserving(t *testing.T) {
	if Div(Encode(5), 0) != maxQ32 {
		t.Fatalf("positive / 0 should saturate to maxQ32")
	}
	if Div(Encode(-5), 0) != minQ32 {
		t.Fatalf("negative / 0 should saturate to minQ32")
	}
}

func TestAbsHandlesMinQ32Overflow(t *testing.T) {
	if Abs(minQ32) != maxQ32 {
		t.Fatalf("Abs(minQ32) = %v, want maxQ32", Abs(minQ32))
	}
}

func TestFloorCeilFractSign(t *testing.T) {
	x := Encode(2.75)
	almostEqual(t, Floor(x).Decode(), 2, 1.0/65536)
	almostEqual(t, Ceil(x).Decode(), 3, 1.0/65536)
	almostEqual(t, Fract(x).Decode(), 0.75, 1.0/65536)
	if Sign(Encode(-4)) != Encode(-1) {
		t.Fatalf("Sign(-4) should be -1")
	}
	if Sign(0) != 0 {
		t.Fatalf("Sign(0) should be 0")
	}

	neg := Encode(-2.25)
	almostEqual(t, Floor(neg).Decode(), -3, 1.0/65536)
	almostEqual(t, Ceil(neg).Decode(), -2, 1.0/65536)
}

func TestTranscendentalsRoundTripThroughFloat64(t *testing.T) {
	almostEqual(t, Sin(Encode(math.Pi/2)).Decode(), 1, 1e-3)
	almostEqual(t, Sqrt(Encode(9)).Decode(), 3, 1e-3)
	if Sqrt(Encode(-1)) != 0 {
		t.Fatalf("Sqrt of negative should be 0")
	}
	if Log(0) != minQ32 {
		t.Fatalf("Log(0) should saturate to minQ32")
	}
}

func TestDeterminantAndInverse2x2(t *testing.T) {
	m := []Q32{Encode(4), Encode(2), Encode(7), Encode(6)} // column-major [[4,7],[2,6]]
	det := Determinant2(m)
	almostEqual(t, det.Decode(), 10, 1e-3)

	inv := Inverse2(m)
	// m * inv should be the identity.
	c00 := Add(Mul(m[0], inv[0]), Mul(m[2], inv[1]))
	c11 := Add(Mul(m[1], inv[2]), Mul(m[3], inv[3]))
	almostEqual(t, c00.Decode(), 1, 1e-2)
	almostEqual(t, c11.Decode(), 1, 1e-2)
}

func TestDeterminant3x3Identity(t *testing.T) {
	id := []Q32{one, 0, 0, 0, one, 0, 0, 0, one}
	if got := Determinant3(id); got.Decode() != 1 {
		t.Fatalf("det(I3) = %v, want 1", got.Decode())
	}
}

func TestHSVRoundTrip(t *testing.T) {
	r, g, b := Encode(0.2), Encode(0.6), Encode(0.9)
	h, s, v := RGB2HSV(r, g, b)
	r2, g2, b2 := HSV2RGB(h, s, v)
	almostEqual(t, r2.Decode(), r.Decode(), 1e-2)
	almostEqual(t, g2.Decode(), g.Decode(), 1e-2)
	almostEqual(t, b2.Decode(), b.Decode(), 1e-2)
}

func TestNoiseIsBoundedAndDeterministic(t *testing.T) {
	a := Noise2(Encode(1.3), Encode(-2.7))
	b := Noise2(Encode(1.3), Encode(-2.7))
	if a != b {
		t.Fatalf("Noise2 is not deterministic for the same inputs")
	}
	if v := a.Decode(); v < -1.01 || v > 1.01 {
		t.Fatalf("Noise2 out of expected range: %v", v)
	}
}

func TestSmoothstepEdges(t *testing.T) {
	e0, e1 := Encode(0), Encode(1)
	if Smoothstep(e0, e1, Encode(-1)) != 0 {
		t.Fatalf("smoothstep below edge0 should be 0")
	}
	if Smoothstep(e0, e1, Encode(2)) != one {
		t.Fatalf("smoothstep above edge1 should be 1")
	}
	mid := Smoothstep(e0, e1, Encode(0.5))
	almostEqual(t, mid.Decode(), 0.5, 1e-2)
}

func TestRegistryLookupsAreConsistent(t *testing.T) {
	reg := Default()
	id, ok := reg.ByName("mul")
	if !ok || id != BMul {
		t.Fatalf("ByName(mul) = %v, %v", id, ok)
	}
	entry, ok := reg.Lookup(id)
	if !ok || entry.Symbol != "__lp_q32_mul" {
		t.Fatalf("Lookup(BMul) = %+v, %v", entry, ok)
	}
	if _, ok := reg.BySymbol("__lp_q32_mul"); !ok {
		t.Fatalf("BySymbol(__lp_q32_mul) not found")
	}
	if len(reg.All()) != int(numBuiltins) {
		t.Fatalf("All() has %d entries, want %d", len(reg.All()), numBuiltins)
	}
}

func TestLPFXSiblingLookup(t *testing.T) {
	sib, ok := DefaultLPFX().SiblingOfF32Symbol("__lpfx_mix_f32")
	if !ok || sib != "__lpfx_mix_q32" {
		t.Fatalf("sibling = %q, %v", sib, ok)
	}
	if _, ok := DefaultLPFX().SiblingOfF32Symbol("__lpfx_nonexistent_f32"); ok {
		t.Fatalf("expected no sibling for unknown symbol")
	}
}

func TestMatrixOpHelpers(t *testing.T) {
	if !IsMatrixOp(BDeterminant3) || !IsMatrixOp(BInverse4) {
		t.Fatalf("expected determinant3/inverse4 to be matrix ops")
	}
	if IsMatrixOp(BMul) {
		t.Fatalf("mul should not be a matrix op")
	}
	if MatrixOrder(BInverse3) != 3 {
		t.Fatalf("MatrixOrder(BInverse3) = %d, want 3", MatrixOrder(BInverse3))
	}
	if !IsInverseOp(BInverse2) || IsInverseOp(BDeterminant2) {
		t.Fatalf("IsInverseOp misclassified an entry")
	}
}

// callTrampoline links the builtins object alone, places a0/a1/a2 with the
// given arguments, and runs the named symbol through the emulator with
// Dispatch wired as the host callback, returning the resulting registers.
func callTrampoline(t *testing.T, symbol string, args []uint32, nReturns int) []uint32 {
	t.Helper()
	obj := BuildObject()
	l := linker.NewLinker(0, 4)
	l.AddObject(obj)
	img, err := l.Link()
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	addr, ok := img.Symbols[symbol]
	if !ok {
		t.Fatalf("symbol %s not linked", symbol)
	}

	mem := emulator.NewMemory(uint32(len(img.Data)) + 4096)
	copy(mem.Bytes(), img.Data)

	cpu := emulator.NewCPU(mem, emulator.Options{
		InstrLimit:   10000,
		HostCallback: Dispatch,
	})
	cpu.SetPC(addr)
	for i, a := range args {
		cpu.SetReg(riscv.ArgRegs[i], a)
	}
	const sentinel = 0xffff0000
	if tr := cpu.RunUntilReturn(sentinel); tr != nil {
		t.Fatalf("trampoline trapped: %v", tr)
	}
	out := make([]uint32, nReturns)
	for i := range out {
		out[i] = cpu.Reg(riscv.ArgRegs[i])
	}
	return out
}

func TestTrampolineMulRoundTripsThroughEmulator(t *testing.T) {
	a, b := Encode(3.5), Encode(2)
	out := callTrampoline(t, "__lp_q32_mul", []uint32{uint32(int32(a)), uint32(int32(b))}, 1)
	got := Q32(int32(out[0]))
	almostEqual(t, got.Decode(), 7, 1e-3)
}

func TestTrampolineHSV2RGBRoundTripsThroughEmulator(t *testing.T) {
	h, s, v := Encode(0.3), Encode(0.8), Encode(0.9)
	out := callTrampoline(t, "__lpfx_hsv2rgb_q32", []uint32{uint32(int32(h)), uint32(int32(s)), uint32(int32(v))}, 3)

	wantR, wantG, wantB := HSV2RGB(h, s, v)
	almostEqual(t, Q32(int32(out[0])).Decode(), wantR.Decode(), 1e-3)
	almostEqual(t, Q32(int32(out[1])).Decode(), wantG.Decode(), 1e-3)
	almostEqual(t, Q32(int32(out[2])).Decode(), wantB.Decode(), 1e-3)
}

func TestTrampolineDeterminant2RoundTripsThroughEmulator(t *testing.T) {
	obj := BuildObject()
	l := linker.NewLinker(0, 4)
	l.AddObject(obj)
	img, err := l.Link()
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	addr, ok := img.Symbols["__lp_q32_determinant2"]
	if !ok {
		t.Fatalf("determinant2 symbol not linked")
	}

	m := []Q32{Encode(4), Encode(2), Encode(7), Encode(6)}
	matAddr := uint32(len(img.Data)) + 64
	memSize := matAddr + 64
	mem := emulator.NewMemory(memSize)
	copy(mem.Bytes(), img.Data)
	for i, v := range m {
		if err := mem.StoreWord(matAddr+uint32(i*4), uint32(int32(v))); err != nil {
			t.Fatalf("store matrix: %v", err)
		}
	}

	cpu := emulator.NewCPU(mem, emulator.Options{InstrLimit: 10000, HostCallback: Dispatch})
	cpu.SetPC(addr)
	cpu.SetReg(riscv.A0, matAddr)
	const sentinel = 0xffff0000
	if tr := cpu.RunUntilReturn(sentinel); tr != nil {
		t.Fatalf("trampoline trapped: %v", tr)
	}
	got := Q32(int32(cpu.Reg(riscv.A0)))
	almostEqual(t, got.Decode(), 10, 1e-3)
}
