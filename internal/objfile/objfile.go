// Package objfile reads and writes 32-bit little-endian RISC-V ELF
// relocatable object files: the exchange format between the back end, the
// builtins library, and the linker.
package objfile

import (
	"encoding/binary"
	"fmt"
)

// ELF identification and type constants (RISC-V 32-bit LE relocatable).
const (
	ELFMAG0     = 0x7f
	ELFMAG1     = 'E'
	ELFMAG2     = 'L'
	ELFMAG3     = 'F'
	ELFCLASS32  = 1
	ELFDATA2LSB = 1
	EVCurrent   = 1
	ELFOSABINone = 0

	ETRel    = 1
	EMRISCV  = 243

	// Section types.
	SHTNull     = 0
	SHTProgBits = 1
	SHTSymTab   = 2
	SHTStrTab   = 3
	SHTRel      = 9
	SHTNoBits   = 8

	// Section flags.
	SHFWrite     = 0x1
	SHFAlloc     = 0x2
	SHFExecInstr = 0x4

	ELF32HeaderSize = 52
	ELF32ShdrSize   = 40
	ELF32SymSize    = 16
	ELF32RelSize    = 8
)

// Relocation types supported end to end by the back end and linker.
type RelType uint8

const (
	RRISCV32          RelType = 1
	RRISCVBranch      RelType = 16
	RRISCVJAL         RelType = 17
	RRISCVCall        RelType = 18
	RRISCVCallPLT     RelType = 19
	RRISCVPCRELHI20   RelType = 23
	RRISCVPCRELLO12I  RelType = 24
	RRISCVHI20        RelType = 26
	RRISCVLO12I       RelType = 27
)

var relTypeNames = map[RelType]string{
	RRISCV32:         "R_RISCV_32",
	RRISCVBranch:     "R_RISCV_BRANCH",
	RRISCVJAL:        "R_RISCV_JAL",
	RRISCVCall:       "R_RISCV_CALL",
	RRISCVCallPLT:    "R_RISCV_CALL_PLT",
	RRISCVPCRELHI20:  "R_RISCV_PCREL_HI20",
	RRISCVPCRELLO12I: "R_RISCV_PCREL_LO12_I",
	RRISCVHI20:       "R_RISCV_HI20",
	RRISCVLO12I:      "R_RISCV_LO12_I",
}

func (r RelType) String() string {
	if s, ok := relTypeNames[r]; ok {
		return s
	}
	return fmt.Sprintf("R_RISCV_UNKNOWN(%d)", r)
}

// SymBinding and SymType mirror the ELF st_info sub-fields.
type SymBinding uint8
type SymType uint8

const (
	BindLocal  SymBinding = 0
	BindGlobal SymBinding = 1
)

const (
	TypeNoType SymType = 0
	TypeObject SymType = 1
	TypeFunc   SymType = 2
)

// Symbol is one entry of the object's symbol table.
type Symbol struct {
	Name    string
	Value   uint32 // section-relative offset
	Size    uint32
	Bind    SymBinding
	Type    SymType
	Section string // name of the defining section, "" if undefined
	Defined bool
}

// Reloc is a single relocation record against a section.
type Reloc struct {
	Offset uint32 // offset within the section being relocated
	Symbol string
	Type   RelType
	Addend int32
}

// Section is one named section of program data (or NOBITS for .bss).
type Section struct {
	Name    string
	Type    uint32
	Flags   uint32
	Data    []byte // nil for SHT_NOBITS
	Size    uint32 // for SHT_NOBITS, the reserved size
	Align   uint32
	Relocs  []Reloc
}

// Object is an in-memory relocatable object: the unit the back end
// produces and the linker consumes.
type Object struct {
	Entry    uint32
	Sections []*Section
	Symbols  []Symbol
}

// NewObject creates an empty object with the four standard sections the
// back end always produces, even when empty.
func NewObject() *Object {
	o := &Object{}
	o.Section(".text", SHTProgBits, SHFAlloc|SHFExecInstr)
	o.Section(".rodata", SHTProgBits, SHFAlloc)
	o.Section(".data", SHTProgBits, SHFAlloc|SHFWrite)
	o.Section(".bss", SHTNoBits, SHFAlloc|SHFWrite)
	return o
}

// Section returns the named section, creating it if absent.
func (o *Object) Section(name string, typ, flags uint32) *Section {
	for _, s := range o.Sections {
		if s.Name == name {
			return s
		}
	}
	s := &Section{Name: name, Type: typ, Flags: flags, Align: 4}
	o.Sections = append(o.Sections, s)
	return s
}

// AddSymbol appends a symbol definition or reference.
func (o *Object) AddSymbol(sym Symbol) {
	o.Symbols = append(o.Symbols, sym)
}

// FindSymbol looks up a symbol by name.
func (o *Object) FindSymbol(name string) (Symbol, bool) {
	for _, s := range o.Symbols {
		if s.Name == name {
			return s, true
		}
	}
	return Symbol{}, false
}

func alignUp(v, align uint32) uint32 {
	if align == 0 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

// Write serialises the object to an ET_REL ELF32 RISC-V file: the format
// both the back end's output and the builtins archive members share.
func Write(o *Object) []byte {
	strtab := newStringTable()
	shstrtab := newStringTable()

	type secLayout struct {
		sec      *Section
		nameOff  uint32
		dataOff  uint32
		relSec   bool
		relOf    *Section // the section this SHT_REL relocates, if relSec
	}

	var layouts []secLayout
	layouts = append(layouts, secLayout{}) // index 0: SHT_NULL placeholder

	offset := uint32(ELF32HeaderSize)
	for _, s := range o.Sections {
		nameOff := shstrtab.add(s.Name)
		l := secLayout{sec: s, nameOff: nameOff}
		if s.Type != SHTNoBits {
			offset = alignUp(offset, s.Align)
			l.dataOff = offset
			offset += uint32(len(s.Data))
		}
		layouts = append(layouts, l)
	}

	// Symbol table.
	symtabNameOff := shstrtab.add(".symtab")
	strtabNameOff := shstrtab.add(".strtab")
	var symBytes []byte
	symBytes = append(symBytes, make([]byte, ELF32SymSize)...) // null symbol
	sectionIndex := func(name string) uint32 {
		for i, l := range layouts {
			if l.sec != nil && l.sec.Name == name {
				return uint32(i)
			}
		}
		return 0
	}
	for _, sym := range o.Symbols {
		nameOff := strtab.add(sym.Name)
		info := uint8(sym.Bind)<<4 | uint8(sym.Type)
		shndx := uint16(0)
		if sym.Defined {
			shndx = uint16(sectionIndex(sym.Section))
		}
		var buf [ELF32SymSize]byte
		binary.LittleEndian.PutUint32(buf[0:4], nameOff)
		binary.LittleEndian.PutUint32(buf[4:8], sym.Value)
		binary.LittleEndian.PutUint32(buf[8:12], sym.Size)
		buf[12] = info
		buf[13] = 0
		binary.LittleEndian.PutUint16(buf[14:16], shndx)
		symBytes = append(symBytes, buf[:]...)
	}
	symtabOff := alignUp(offset, 4)
	offset = symtabOff + uint32(len(symBytes))

	strtabOff := offset
	offset += uint32(len(strtab.bytes))

	// Relocation sections, one SHT_REL per section that has relocs.
	type relLayout struct {
		name    string
		nameOff uint32
		off     uint32
		data    []byte
		target  string
	}
	var relLayouts []relLayout
	for _, s := range o.Sections {
		if len(s.Relocs) == 0 {
			continue
		}
		name := ".rel" + s.Name
		nameOff := shstrtab.add(name)
		var data []byte
		for _, r := range s.Relocs {
			symIdx := uint32(0)
			for i, sym := range o.Symbols {
				if sym.Name == r.Symbol {
					symIdx = uint32(i + 1) // +1 for null symbol
					break
				}
			}
			info := symIdx<<8 | uint32(r.Type)
			var buf [ELF32RelSize]byte
			binary.LittleEndian.PutUint32(buf[0:4], r.Offset)
			binary.LittleEndian.PutUint32(buf[4:8], info)
			data = append(data, buf[:]...)
		}
		off := alignUp(offset, 4)
		offset = off + uint32(len(data))
		relLayouts = append(relLayouts, relLayout{name: name, nameOff: nameOff, off: off, data: data, target: s.Name})
	}

	shstrtabNameOff := shstrtab.add(".shstrtab")
	shstrtabOff := offset
	offset += uint32(len(shstrtab.bytes))

	shoff := alignUp(offset, 4)
	numSections := uint16(len(layouts)) + 3 /* symtab, strtab, shstrtab */ + uint16(len(relLayouts))

	out := make([]byte, 0, shoff+uint32(numSections)*ELF32ShdrSize)
	out = appendHeader(out, o.Entry, shoff, numSections, uint16(len(layouts)+2+len(relLayouts)))

	for _, l := range layouts[1:] {
		if l.sec.Type == SHTNoBits {
			continue
		}
		for uint32(len(out)) < l.dataOff {
			out = append(out, 0)
		}
		out = append(out, l.sec.Data...)
	}
	for uint32(len(out)) < symtabOff {
		out = append(out, 0)
	}
	out = append(out, symBytes...)
	for uint32(len(out)) < strtabOff {
		out = append(out, 0)
	}
	out = append(out, strtab.bytes...)
	for _, rl := range relLayouts {
		for uint32(len(out)) < rl.off {
			out = append(out, 0)
		}
		out = append(out, rl.data...)
	}
	for uint32(len(out)) < shstrtabOff {
		out = append(out, 0)
	}
	out = append(out, shstrtab.bytes...)
	for uint32(len(out)) < shoff {
		out = append(out, 0)
	}

	// Section header table.
	out = appendShdr(out, shdr{}) // SHT_NULL
	for _, l := range layouts[1:] {
		sz := uint32(len(l.sec.Data))
		if l.sec.Type == SHTNoBits {
			sz = l.sec.Size
		}
		out = appendShdr(out, shdr{
			nameOff: l.nameOff, typ: l.sec.Type, flags: l.sec.Flags,
			offset: l.dataOff, size: sz, align: l.sec.Align,
		})
	}
	out = appendShdr(out, shdr{
		nameOff: symtabNameOff, typ: SHTSymTab, offset: symtabOff, size: uint32(len(symBytes)),
		link: uint32(len(layouts) + 1), entSize: ELF32SymSize, align: 4,
		info: uint32(1), // one local null symbol
	})
	out = appendShdr(out, shdr{
		nameOff: strtabNameOff, typ: SHTStrTab, offset: strtabOff, size: uint32(len(strtab.bytes)), align: 1,
	})
	for _, rl := range relLayouts {
		out = appendShdr(out, shdr{
			nameOff: rl.nameOff, typ: SHTRel, offset: rl.off, size: uint32(len(rl.data)),
			link: uint32(len(layouts)), info: sectionIndex(rl.target), entSize: ELF32RelSize, align: 4,
		})
	}
	out = appendShdr(out, shdr{
		nameOff: shstrtabNameOff, typ: SHTStrTab, offset: shstrtabOff, size: uint32(len(shstrtab.bytes)), align: 1,
	})

	return out
}

type shdr struct {
	nameOff, typ, flags, offset, size, link, info, align, entSize uint32
}

func appendShdr(out []byte, h shdr) []byte {
	var buf [ELF32ShdrSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], h.nameOff)
	binary.LittleEndian.PutUint32(buf[4:8], h.typ)
	binary.LittleEndian.PutUint32(buf[8:12], h.flags)
	binary.LittleEndian.PutUint32(buf[12:16], 0) // sh_addr
	binary.LittleEndian.PutUint32(buf[16:20], h.offset)
	binary.LittleEndian.PutUint32(buf[20:24], h.size)
	binary.LittleEndian.PutUint32(buf[24:28], h.link)
	binary.LittleEndian.PutUint32(buf[28:32], h.info)
	binary.LittleEndian.PutUint32(buf[32:36], h.align)
	binary.LittleEndian.PutUint32(buf[36:40], h.entSize)
	return append(out, buf[:]...)
}

func appendHeader(out []byte, entry, shoff uint32, shnum, shstrndx uint16) []byte {
	var ident [16]byte
	ident[0], ident[1], ident[2], ident[3] = ELFMAG0, ELFMAG1, ELFMAG2, ELFMAG3
	ident[4] = ELFCLASS32
	ident[5] = ELFDATA2LSB
	ident[6] = EVCurrent
	ident[7] = ELFOSABINone

	out = append(out, ident[:]...)
	out = appendLE16(out, ETRel)
	out = appendLE16(out, EMRISCV)
	out = appendLE32(out, EVCurrent)
	out = appendLE32(out, entry)
	out = appendLE32(out, 0) // e_phoff: no program headers in a relocatable object
	out = appendLE32(out, shoff)
	out = appendLE32(out, 0) // e_flags
	out = appendLE16(out, ELF32HeaderSize)
	out = appendLE16(out, 0) // e_phentsize
	out = appendLE16(out, 0) // e_phnum
	out = appendLE16(out, ELF32ShdrSize)
	out = appendLE16(out, shnum)
	out = appendLE16(out, shstrndx)
	return out
}

func appendLE16(out []byte, v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return append(out, b[:]...)
}

func appendLE32(out []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(out, b[:]...)
}

type stringTable struct {
	bytes []byte
	index map[string]uint32
}

func newStringTable() *stringTable {
	return &stringTable{bytes: []byte{0}, index: map[string]uint32{"": 0}}
}

func (t *stringTable) add(s string) uint32 {
	if off, ok := t.index[s]; ok {
		return off
	}
	off := uint32(len(t.bytes))
	t.bytes = append(t.bytes, []byte(s)...)
	t.bytes = append(t.bytes, 0)
	t.index[s] = off
	return off
}

// Read parses an ET_REL ELF32 RISC-V object previously produced by Write.
func Read(data []byte) (*Object, error) {
	if len(data) < ELF32HeaderSize {
		return nil, fmt.Errorf("objfile: truncated header")
	}
	if data[0] != ELFMAG0 || data[1] != ELFMAG1 || data[2] != ELFMAG2 || data[3] != ELFMAG3 {
		return nil, fmt.Errorf("objfile: not an ELF file")
	}
	if data[4] != ELFCLASS32 {
		return nil, fmt.Errorf("objfile: not a 32-bit object")
	}
	if data[5] != ELFDATA2LSB {
		return nil, fmt.Errorf("objfile: not little-endian")
	}
	machine := binary.LittleEndian.Uint16(data[18:20])
	if machine != EMRISCV {
		return nil, fmt.Errorf("objfile: unsupported machine %d, want EM_RISCV", machine)
	}
	entry := binary.LittleEndian.Uint32(data[24:28])
	shoff := binary.LittleEndian.Uint32(data[32:36])
	shentsize := binary.LittleEndian.Uint16(data[46:48])
	shnum := binary.LittleEndian.Uint16(data[48:50])
	shstrndx := binary.LittleEndian.Uint16(data[50:52])

	if shentsize != ELF32ShdrSize {
		return nil, fmt.Errorf("objfile: unexpected section header entry size %d", shentsize)
	}

	type rawShdr struct {
		nameOff, typ, flags, offset, size, link, info, align, entSize uint32
	}
	shdrs := make([]rawShdr, shnum)
	for i := range shdrs {
		base := shoff + uint32(i)*ELF32ShdrSize
		if int(base+ELF32ShdrSize) > len(data) {
			return nil, fmt.Errorf("objfile: truncated section header %d", i)
		}
		b := data[base:]
		shdrs[i] = rawShdr{
			nameOff: binary.LittleEndian.Uint32(b[0:4]),
			typ:     binary.LittleEndian.Uint32(b[4:8]),
			flags:   binary.LittleEndian.Uint32(b[8:12]),
			offset:  binary.LittleEndian.Uint32(b[16:20]),
			size:    binary.LittleEndian.Uint32(b[20:24]),
			link:    binary.LittleEndian.Uint32(b[24:28]),
			info:    binary.LittleEndian.Uint32(b[28:32]),
			align:   binary.LittleEndian.Uint32(b[32:36]),
			entSize: binary.LittleEndian.Uint32(b[36:40]),
		}
	}
	if int(shstrndx) >= len(shdrs) {
		return nil, fmt.Errorf("objfile: invalid shstrndx %d", shstrndx)
	}
	shstrtab := shdrs[shstrndx]
	secName := func(off uint32) string {
		return cString(data[shstrtab.offset:], off)
	}

	o := &Object{Entry: entry}
	sectionByIdx := make(map[int]*Section)
	var strtabData, symtabData []byte
	var symtabLink uint32

	for i, sh := range shdrs {
		switch sh.typ {
		case SHTProgBits, SHTNoBits:
			s := &Section{Name: secName(sh.nameOff), Type: sh.typ, Flags: sh.flags, Align: sh.align, Size: sh.size}
			if sh.typ == SHTProgBits {
				if int(sh.offset+sh.size) > len(data) {
					return nil, fmt.Errorf("objfile: section %q out of bounds", s.Name)
				}
				s.Data = data[sh.offset : sh.offset+sh.size]
			}
			o.Sections = append(o.Sections, s)
			sectionByIdx[i] = s
		case SHTStrTab:
			if secName(sh.nameOff) == ".strtab" {
				strtabData = data[sh.offset : sh.offset+sh.size]
			}
		case SHTSymTab:
			symtabData = data[sh.offset : sh.offset+sh.size]
			symtabLink = sh.link
		}
	}
	_ = symtabLink

	var rawSyms []Symbol
	var symSections []uint16
	for off := ELF32SymSize; off+ELF32SymSize <= len(symtabData); off += ELF32SymSize {
		b := symtabData[off:]
		nameOff := binary.LittleEndian.Uint32(b[0:4])
		value := binary.LittleEndian.Uint32(b[4:8])
		size := binary.LittleEndian.Uint32(b[8:12])
		info := b[12]
		shndx := binary.LittleEndian.Uint16(b[14:16])
		sym := Symbol{
			Name:  cString(strtabData, nameOff),
			Value: value,
			Size:  size,
			Bind:  SymBinding(info >> 4),
			Type:  SymType(info & 0xf),
		}
		if shndx != 0 {
			sym.Defined = true
			if sec, ok := sectionByIdx[int(shndx)]; ok {
				sym.Section = sec.Name
			}
		}
		rawSyms = append(rawSyms, sym)
		symSections = append(symSections, shndx)
	}
	o.Symbols = rawSyms

	for i, sh := range shdrs {
		if sh.typ != SHTRel {
			continue
		}
		target, ok := sectionByIdx[int(sh.info)]
		if !ok {
			return nil, fmt.Errorf("objfile: relocation section %d targets unknown section", i)
		}
		for off := uint32(0); off+ELF32RelSize <= sh.size; off += ELF32RelSize {
			b := data[sh.offset+off:]
			rOffset := binary.LittleEndian.Uint32(b[0:4])
			rInfo := binary.LittleEndian.Uint32(b[4:8])
			symIdx := rInfo >> 8
			relType := RelType(rInfo & 0xff)
			var symName string
			if int(symIdx) < len(rawSyms)+1 && symIdx > 0 {
				symName = rawSyms[symIdx-1].Name
			}
			target.Relocs = append(target.Relocs, Reloc{Offset: rOffset, Symbol: symName, Type: relType})
		}
	}

	return o, nil
}

func cString(b []byte, off uint32) string {
	if int(off) >= len(b) {
		return ""
	}
	end := off
	for end < uint32(len(b)) && b[end] != 0 {
		end++
	}
	return string(b[off:end])
}
