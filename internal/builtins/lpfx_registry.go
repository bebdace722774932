package builtins

import "fmt"

// LPFXID identifies one high-level LPFX function, independent of which
// ABI (float or fixed) is currently targeted.
type LPFXID int

const (
	LHSV2RGB LPFXID = iota
	LRGB2HSV
	LNoise1
	LNoise2
	LMix
	LClamp
	LSmoothstep
	numLPFX
)

// LPFXEntry names both ABI symbols for one function: the front end emits
// calls to the *_f32 symbol, and the Q32 pass retargets them to *_q32 via
// LPFXRegistry.SiblingOfF32Symbol.
type LPFXEntry struct {
	ID       LPFXID
	Name     string
	F32Sym   string
	Q32Sym   string
	Params   []ParamKind
	Return   []ParamKind
	Q32Fn    func(args []int32) []int32
}

// LPFXRegistry groups *_f32/*_q32 sibling pairs so the Q32 pass can
// translate a call in one ABI into the other by a pure enum-to-enum
// lookup, never by string manipulation of the symbol name.
type LPFXRegistry struct {
	byID     map[LPFXID]LPFXEntry
	byName   map[string]LPFXID
	byF32Sym map[string]LPFXID
	byQ32Sym map[string]LPFXID
}

var defaultLPFX = buildLPFXRegistry()

// DefaultLPFX returns the process-wide LPFX registry.
func DefaultLPFX() *LPFXRegistry { return defaultLPFX }

func (r *LPFXRegistry) add(e LPFXEntry) {
	r.byID[e.ID] = e
	r.byName[e.Name] = e.ID
	r.byF32Sym[e.F32Sym] = e.ID
	r.byQ32Sym[e.Q32Sym] = e.ID
}

// Lookup returns the entry for an LPFX ID.
func (r *LPFXRegistry) Lookup(id LPFXID) (LPFXEntry, bool) {
	e, ok := r.byID[id]
	return e, ok
}

// ByName resolves a GLSL-visible LPFX function name.
func (r *LPFXRegistry) ByName(name string) (LPFXID, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// SiblingOfF32Symbol resolves a *_f32 linker symbol to its *_q32 sibling,
// the exact operation the Q32 pass performs when retargeting a call.
func (r *LPFXRegistry) SiblingOfF32Symbol(f32Sym string) (string, bool) {
	id, ok := r.byF32Sym[f32Sym]
	if !ok {
		return "", false
	}
	return r.byID[id].Q32Sym, true
}

// All returns every registered LPFX entry.
func (r *LPFXRegistry) All() []LPFXEntry {
	out := make([]LPFXEntry, 0, len(r.byID))
	for _, e := range r.byID {
		out = append(out, e)
	}
	return out
}

func buildLPFXRegistry() *LPFXRegistry {
	r := &LPFXRegistry{
		byID: make(map[LPFXID]LPFXEntry), byName: make(map[string]LPFXID),
		byF32Sym: make(map[string]LPFXID), byQ32Sym: make(map[string]LPFXID),
	}

	r.add(LPFXEntry{
		ID: LHSV2RGB, Name: "hsv2rgb", F32Sym: "__lpfx_hsv2rgb_f32", Q32Sym: "__lpfx_hsv2rgb_q32",
		Params: repeatKind(PQ32, 3), Return: repeatKind(PQ32, 3),
		Q32Fn: func(a []int32) []int32 {
			r, g, b := HSV2RGB(Q32(a[0]), Q32(a[1]), Q32(a[2]))
			return []int32{int32(r), int32(g), int32(b)}
		},
	})
	r.add(LPFXEntry{
		ID: LRGB2HSV, Name: "rgb2hsv", F32Sym: "__lpfx_rgb2hsv_f32", Q32Sym: "__lpfx_rgb2hsv_q32",
		Params: repeatKind(PQ32, 3), Return: repeatKind(PQ32, 3),
		Q32Fn: func(a []int32) []int32 {
			h, s, v := RGB2HSV(Q32(a[0]), Q32(a[1]), Q32(a[2]))
			return []int32{int32(h), int32(s), int32(v)}
		},
	})
	r.add(LPFXEntry{
		ID: LNoise1, Name: "noise1", F32Sym: "__lpfx_noise1_f32", Q32Sym: "__lpfx_noise1_q32",
		Params: []ParamKind{PQ32}, Return: []ParamKind{PQ32}, Q32Fn: q1(Noise1),
	})
	r.add(LPFXEntry{
		ID: LNoise2, Name: "noise2", F32Sym: "__lpfx_noise2_f32", Q32Sym: "__lpfx_noise2_q32",
		Params: []ParamKind{PQ32, PQ32}, Return: []ParamKind{PQ32}, Q32Fn: q2(Noise2),
	})
	r.add(LPFXEntry{
		ID: LMix, Name: "mix", F32Sym: "__lpfx_mix_f32", Q32Sym: "__lpfx_mix_q32",
		Params: []ParamKind{PQ32, PQ32, PQ32}, Return: []ParamKind{PQ32}, Q32Fn: q3(Mix),
	})
	r.add(LPFXEntry{
		ID: LClamp, Name: "clamp", F32Sym: "__lpfx_clamp_f32", Q32Sym: "__lpfx_clamp_q32",
		Params: []ParamKind{PQ32, PQ32, PQ32}, Return: []ParamKind{PQ32}, Q32Fn: q3(Clamp),
	})
	r.add(LPFXEntry{
		ID: LSmoothstep, Name: "smoothstep", F32Sym: "__lpfx_smoothstep_f32", Q32Sym: "__lpfx_smoothstep_q32",
		Params: []ParamKind{PQ32, PQ32, PQ32}, Return: []ParamKind{PQ32}, Q32Fn: q3(Smoothstep),
	})

	return r
}

func (id LPFXID) String() string {
	if e, ok := defaultLPFX.Lookup(id); ok {
		return e.Name
	}
	return fmt.Sprintf("LPFXID(%d)", id)
}
