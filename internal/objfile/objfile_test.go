package objfile

import (
	"testing"
)

func buildSample() *Object {
	o := NewObject()
	text := o.Section(".text", SHTProgBits, SHFAlloc|SHFExecInstr)
	text.Data = []byte{0x13, 0x00, 0x00, 0x00, 0x67, 0x80, 0x00, 0x00} // nop; ret
	text.Relocs = append(text.Relocs, Reloc{Offset: 0, Symbol: "__lp_q32_sin", Type: RRISCVCall})

	rodata := o.Section(".rodata", SHTProgBits, SHFAlloc)
	rodata.Data = []byte{1, 2, 3, 4}

	bss := o.Section(".bss", SHTNoBits, SHFAlloc|SHFWrite)
	bss.Size = 16

	o.AddSymbol(Symbol{Name: "f", Section: ".text", Defined: true, Bind: BindGlobal, Type: TypeFunc, Value: 0, Size: 8})
	o.AddSymbol(Symbol{Name: "__lp_q32_sin", Defined: false})
	return o
}

func TestWriteReadRoundTrip(t *testing.T) {
	data := Write(buildSample())

	// ELF32 little-endian RISC-V relocatable.
	if data[0] != 0x7f || data[1] != 'E' || data[2] != 'L' || data[3] != 'F' {
		t.Fatalf("bad magic % x", data[:4])
	}
	if data[4] != 1 || data[5] != 1 {
		t.Fatalf("class/data = %d/%d, want 1/1", data[4], data[5])
	}

	got, err := Read(data)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	var text, rodata, bss *Section
	for _, s := range got.Sections {
		switch s.Name {
		case ".text":
			text = s
		case ".rodata":
			rodata = s
		case ".bss":
			bss = s
		}
	}
	if text == nil || len(text.Data) != 8 {
		t.Fatalf("text = %+v", text)
	}
	if text.Data[0] != 0x13 || text.Data[4] != 0x67 {
		t.Fatalf("text bytes = % x", text.Data)
	}
	if rodata == nil || len(rodata.Data) != 4 {
		t.Fatalf("rodata = %+v", rodata)
	}
	if bss == nil || bss.Size != 16 || bss.Data != nil {
		t.Fatalf("bss = %+v", bss)
	}

	if len(text.Relocs) != 1 {
		t.Fatalf("relocs = %+v", text.Relocs)
	}
	r := text.Relocs[0]
	if r.Symbol != "__lp_q32_sin" || r.Type != RRISCVCall || r.Offset != 0 {
		t.Fatalf("reloc = %+v", r)
	}

	f, ok := got.FindSymbol("f")
	if !ok || !f.Defined || f.Section != ".text" || f.Size != 8 || f.Bind != BindGlobal {
		t.Fatalf("symbol f = %+v, %v", f, ok)
	}
	und, ok := got.FindSymbol("__lp_q32_sin")
	if !ok || und.Defined {
		t.Fatalf("symbol sin = %+v, %v", und, ok)
	}
}
