package linker

import (
	"testing"

	"github.com/lightplayer/lpxc/internal/objfile"
	"github.com/lightplayer/lpxc/internal/riscv"
)

func TestLinkResolvesCallAcrossObjects(t *testing.T) {
	callee := objfile.NewObject()
	text := callee.Section(".text", objfile.SHTProgBits, objfile.SHFAlloc|objfile.SHFExecInstr)
	text.Data = u32bytes(
		riscv.ADDI(riscv.A0, riscv.A0, 1),
		riscv.JALR(riscv.Zero, riscv.Ra, 0),
	)
	callee.AddSymbol(objfile.Symbol{Name: "inc", Value: 0, Defined: true, Section: ".text", Type: objfile.TypeFunc, Bind: objfile.BindGlobal})

	caller := objfile.NewObject()
	ctext := caller.Section(".text", objfile.SHTProgBits, objfile.SHFAlloc|objfile.SHFExecInstr)
	ctext.Data = u32bytes(
		riscv.JAL(riscv.Ra, 0), // placeholder, patched by R_RISCV_JAL
		riscv.JALR(riscv.Zero, riscv.Ra, 0),
	)
	ctext.Relocs = append(ctext.Relocs, objfile.Reloc{Offset: 0, Symbol: "inc", Type: objfile.RRISCVJAL})
	caller.AddSymbol(objfile.Symbol{Name: "main", Value: 0, Defined: true, Section: ".text", Type: objfile.TypeFunc, Bind: objfile.BindGlobal})

	l := NewLinker(0x1000, 4)
	l.AddObject(callee)
	l.AddObject(caller)
	img, err := l.Link()
	if err != nil {
		t.Fatalf("Link: %v", err)
	}

	mainAddr, ok := img.Symbols["main"]
	if !ok {
		t.Fatalf("main not resolved")
	}
	incAddr, ok := img.Symbols["inc"]
	if !ok {
		t.Fatalf("inc not resolved")
	}

	word := le32(img.Data, mainAddr-l.base)
	dec, err := riscv.Decode(word)
	if err != nil {
		t.Fatalf("decode patched jal: %v", err)
	}
	if dec.Mnemonic != riscv.MnJAL {
		t.Fatalf("expected jal, got %v", dec.Mnemonic)
	}
	gotTarget := int32(mainAddr) + dec.Imm
	if uint32(gotTarget) != incAddr {
		t.Fatalf("jal target = %#x, want %#x", gotTarget, incAddr)
	}
}

func TestLinkUnresolvedSymbolFails(t *testing.T) {
	obj := objfile.NewObject()
	obj.AddSymbol(objfile.Symbol{Name: "missing", Defined: false})
	text := obj.Section(".text", objfile.SHTProgBits, objfile.SHFAlloc|objfile.SHFExecInstr)
	text.Data = u32bytes(riscv.JAL(riscv.Ra, 0))
	text.Relocs = append(text.Relocs, objfile.Reloc{Offset: 0, Symbol: "missing", Type: objfile.RRISCVJAL})

	l := NewLinker(0, 4)
	l.AddObject(obj)
	_, err := l.Link()
	if err == nil {
		t.Fatalf("expected unresolved symbol error")
	}
	var loadErr *LoadError
	if le, ok := err.(*LoadError); !ok {
		t.Fatalf("expected *LoadError, got %T", err)
	} else {
		loadErr = le
	}
	if loadErr.Kind != "unresolved symbol" {
		t.Fatalf("kind = %q", loadErr.Kind)
	}
}

func TestLinkUnsupportedRelocationFails(t *testing.T) {
	obj := objfile.NewObject()
	obj.AddSymbol(objfile.Symbol{Name: "x", Defined: true, Section: ".text", Value: 0})
	text := obj.Section(".text", objfile.SHTProgBits, objfile.SHFAlloc|objfile.SHFExecInstr)
	text.Data = u32bytes(riscv.NOP())
	text.Relocs = append(text.Relocs, objfile.Reloc{Offset: 0, Symbol: "x", Type: objfile.RelType(200)})

	l := NewLinker(0, 4)
	l.AddObject(obj)
	_, err := l.Link()
	if err == nil {
		t.Fatalf("expected unsupported relocation error")
	}
}

func TestGOTCollectsDataSymbols(t *testing.T) {
	obj := objfile.NewObject()
	rodata := obj.Section(".rodata", objfile.SHTProgBits, objfile.SHFAlloc)
	rodata.Data = []byte{1, 2, 3, 4}
	obj.AddSymbol(objfile.Symbol{Name: "table", Defined: true, Section: ".rodata", Value: 0, Type: objfile.TypeObject})

	text := obj.Section(".text", objfile.SHTProgBits, objfile.SHFAlloc|objfile.SHFExecInstr)
	text.Data = u32bytes(riscv.AUIPC(riscv.T0, 0), riscv.LW(riscv.T0, riscv.T0, 0))
	text.Relocs = append(text.Relocs,
		objfile.Reloc{Offset: 0, Symbol: "table", Type: objfile.RRISCVPCRELHI20},
		objfile.Reloc{Offset: 4, Symbol: "table", Type: objfile.RRISCVPCRELLO12I},
	)

	l := NewLinker(0x2000, 4)
	l.AddObject(obj)
	img, err := l.Link()
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if len(img.GOT) != 1 {
		t.Fatalf("GOT has %d entries, want 1", len(img.GOT))
	}
	if img.GOT[0] != img.Symbols["table"] {
		t.Fatalf("GOT entry = %#x, want %#x", img.GOT[0], img.Symbols["table"])
	}
}

func u32bytes(words ...uint32) []byte {
	out := make([]byte, 0, len(words)*4)
	for _, w := range words {
		out = append(out, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	return out
}
