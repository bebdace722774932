// Package linker resolves symbols and applies relocations across one or
// more relocatable objects, producing a single address space ready for the
// emulator or a JIT module.
package linker

import (
	"fmt"

	"github.com/lightplayer/lpxc/internal/objfile"
)

// LoadError is a fatal load-time error: unresolved symbol, unsupported
// relocation, or a relocation target out of range.
type LoadError struct {
	Kind    string // "unresolved symbol", "unsupported relocation", "relocation out of range"
	Symbol  string
	Section string
	Offset  uint32
}

func (e *LoadError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("link: %s %q at %s+%#x", e.Kind, e.Symbol, e.Section, e.Offset)
	}
	return fmt.Sprintf("link: %s at %s+%#x", e.Kind, e.Section, e.Offset)
}

// placedSection is a section after it has been assigned a base address in
// the target address space.
type placedSection struct {
	obj    *objfile.Object
	sec    *objfile.Section
	base   uint32
}

// Image is the result of linking: a flat byte image plus the resolved
// symbol-to-address map the caller needs to find entry points.
type Image struct {
	Data    []byte
	Symbols map[string]uint32
	GOT     []uint32 // global offset table slots, for builtins' lookup tables
	GOTBase uint32
}

// Linker accumulates objects to be placed into one address space.
type Linker struct {
	objects []*objfile.Object
	base    uint32
	align   uint32
}

// NewLinker creates a linker that will place sections starting at base,
// page-aligning each section group to align.
func NewLinker(base, align uint32) *Linker {
	if align == 0 {
		align = 4
	}
	return &Linker{base: base, align: align}
}

// AddObject queues a relocatable object for linking.
func (l *Linker) AddObject(o *objfile.Object) {
	l.objects = append(l.objects, o)
}

func alignUp(v, align uint32) uint32 {
	return (v + align - 1) &^ (align - 1)
}

// Link places every queued object's sections contiguously, resolves every
// symbol reference, applies relocations, and builds a GOT for any symbol
// referenced by a PCREL_HI20/LO12 pair whose target is data rather than
// code. It returns the finished image or the first LoadError encountered.
func (l *Linker) Link() (*Image, error) {
	var placed []placedSection
	var data []byte
	cursor := l.base

	// Pass 1: place every non-bss section and reserve space for bss.
	for _, obj := range l.objects {
		for _, sec := range obj.Sections {
			if len(sec.Data) == 0 && sec.Type != objfile.SHTNoBits {
				continue
			}
			cursor = alignUp(cursor, l.align)
			placed = append(placed, placedSection{obj: obj, sec: sec, base: cursor})
			if sec.Type == objfile.SHTNoBits {
				cursor += sec.Size
				continue
			}
			for uint32(len(data)) < cursor-l.base {
				data = append(data, 0)
			}
			data = append(data, sec.Data...)
			cursor += uint32(len(sec.Data))
		}
	}
	for uint32(len(data)) < cursor-l.base {
		data = append(data, 0)
	}

	// Pass 2: resolve every defined symbol to an absolute address.
	symAddr := make(map[string]uint32)
	for _, obj := range l.objects {
		for _, sym := range obj.Symbols {
			if !sym.Defined {
				continue
			}
			base, ok := sectionBase(placed, obj, sym.Section)
			if !ok {
				continue
			}
			symAddr[sym.Name] = base + sym.Value
		}
	}

	// Pass 3: verify every referenced symbol resolves.
	for _, obj := range l.objects {
		for _, sym := range obj.Symbols {
			if sym.Defined {
				continue
			}
			if _, ok := symAddr[sym.Name]; !ok {
				return nil, &LoadError{Kind: "unresolved symbol", Symbol: sym.Name}
			}
		}
	}

	img := &Image{Data: data, Symbols: symAddr}

	// Pass 4: apply relocations.
	for _, ps := range placed {
		if ps.sec.Type == objfile.SHTNoBits {
			continue
		}
		for _, r := range ps.sec.Relocs {
			target, ok := symAddr[r.Symbol]
			if !ok {
				return nil, &LoadError{Kind: "unresolved symbol", Symbol: r.Symbol, Section: ps.sec.Name, Offset: r.Offset}
			}
			instrAddr := ps.base + r.Offset
			fileOff := instrAddr - l.base
			if err := applyReloc(data, fileOff, instrAddr, target, r); err != nil {
				return nil, err
			}
		}
	}

	// Pass 5: the GOT records the resolved address of every rodata/data
	// symbol reached through a PC-relative pair, the way the builtins
	// library's transcendental lookup tables are addressed. The AUIPC+load
	// idiom already makes the access position-independent; the table itself
	// exists so callers (and tests) can inspect where each constant landed
	// without re-walking every relocation.
	seen := make(map[string]bool)
	for _, ps := range placed {
		if ps.sec.Type == objfile.SHTNoBits {
			continue
		}
		for _, r := range ps.sec.Relocs {
			if r.Type != objfile.RRISCVPCRELHI20 && r.Type != objfile.RRISCVHI20 {
				continue
			}
			if seen[r.Symbol] || !isDataSymbol(placed, r.Symbol) {
				continue
			}
			seen[r.Symbol] = true
			img.GOT = append(img.GOT, symAddr[r.Symbol])
		}
	}
	img.GOTBase = l.base + uint32(len(data))

	return img, nil
}

func isDataSymbol(placed []placedSection, name string) bool {
	for _, ps := range placed {
		for _, sym := range ps.obj.Symbols {
			if sym.Name == name && sym.Defined {
				return sym.Section == ".rodata" || sym.Section == ".data" || sym.Section == ".bss"
			}
		}
	}
	return false
}

func sectionBase(placed []placedSection, obj *objfile.Object, secName string) (uint32, bool) {
	for _, ps := range placed {
		if ps.obj == obj && ps.sec.Name == secName {
			return ps.base, true
		}
	}
	return 0, false
}

func applyReloc(data []byte, fileOff, instrAddr, target uint32, r objfile.Reloc) error {
	if int(fileOff+4) > len(data) {
		return &LoadError{Kind: "relocation out of range", Symbol: r.Symbol, Offset: r.Offset}
	}
	word := le32(data, fileOff)
	value := target + uint32(r.Addend)

	switch r.Type {
	case objfile.RRISCV32:
		putLE32(data, fileOff, value)

	case objfile.RRISCVBranch:
		rel := int32(value) - int32(instrAddr)
		if rel < -4096 || rel > 4094 {
			return &LoadError{Kind: "relocation out of range", Symbol: r.Symbol, Offset: r.Offset}
		}
		putLE32(data, fileOff, patchBType(word, rel))

	case objfile.RRISCVJAL:
		rel := int32(value) - int32(instrAddr)
		if rel < -1048576 || rel > 1048574 {
			return &LoadError{Kind: "relocation out of range", Symbol: r.Symbol, Offset: r.Offset}
		}
		putLE32(data, fileOff, patchJType(word, rel))

	case objfile.RRISCVCall, objfile.RRISCVCallPLT:
		// AUIPC/JALR pair: hi20 in this word, lo12 in the next (JALR).
		rel := int32(value) - int32(instrAddr)
		hi, lo := splitHiLo(rel)
		putLE32(data, fileOff, patchUType(word, hi))
		if int(fileOff+8) > len(data) {
			return &LoadError{Kind: "relocation out of range", Symbol: r.Symbol, Offset: r.Offset}
		}
		next := le32(data, fileOff+4)
		putLE32(data, fileOff+4, patchIType(next, lo))

	case objfile.RRISCVPCRELHI20, objfile.RRISCVHI20:
		var rel int32
		if r.Type == objfile.RRISCVPCRELHI20 {
			rel = int32(value) - int32(instrAddr)
		} else {
			rel = int32(value)
		}
		hi, _ := splitHiLo(rel)
		putLE32(data, fileOff, patchUType(word, hi))

	case objfile.RRISCVPCRELLO12I, objfile.RRISCVLO12I:
		var rel int32
		if r.Type == objfile.RRISCVPCRELLO12I {
			// The addend for a *_LO12_I relocation is conventionally the
			// offset of the matching HI20 instruction; the linker recomputes
			// the same symbol's PC-relative delta relative to that anchor.
			rel = int32(value) - int32(instrAddr)
		} else {
			rel = int32(value)
		}
		_, lo := splitHiLo(rel)
		putLE32(data, fileOff, patchIType(word, lo))

	default:
		return &LoadError{Kind: "unsupported relocation", Symbol: r.Symbol, Offset: r.Offset}
	}
	return nil
}

// splitHiLo computes the (hi20, lo12) pair such that hi20<<12 + signExtend(lo12,12) == v,
// the standard RISC-V AUIPC/addi immediate-materialisation idiom.
func splitHiLo(v int32) (hi, lo int32) {
	lo = v << 20 >> 20 // sign-extend low 12 bits
	hi = (v - lo) >> 12
	return hi, lo
}

func patchUType(word uint32, imm int32) uint32 {
	return word&0x00000fff | uint32(imm)<<12&0xfffff000
}

func patchIType(word uint32, imm int32) uint32 {
	return word&0x000fffff | uint32(imm)<<20&0xfff00000
}

func patchBType(word uint32, imm int32) uint32 {
	u := uint32(imm)
	kept := word &^ 0xfe000f80 // clear imm bits, keep opcode/funct3/rs1/rs2
	return kept | bits(u, 12, 12)<<31 | bits(u, 10, 5)<<25 | bits(u, 4, 1)<<8 | bits(u, 11, 11)<<7
}

func patchJType(word uint32, imm int32) uint32 {
	u := uint32(imm)
	kept := word &^ 0xfffff000
	return kept | bits(u, 20, 20)<<31 | bits(u, 10, 1)<<21 | bits(u, 11, 11)<<20 | bits(u, 19, 12)<<12
}

func bits(v uint32, hi, lo uint) uint32 {
	return (v >> lo) & ((1 << (hi - lo + 1)) - 1)
}

func le32(b []byte, off uint32) uint32 {
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
}

func putLE32(b []byte, off, v uint32) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
	b[off+2] = byte(v >> 16)
	b[off+3] = byte(v >> 24)
}
