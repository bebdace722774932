package riscv

import "fmt"

// Mnemonic identifies a decoded instruction's operation.
type Mnemonic int

const (
	MnInvalid Mnemonic = iota
	MnADD
	MnSUB
	MnSLL
	MnSLT
	MnSLTU
	MnXOR
	MnSRL
	MnSRA
	MnOR
	MnAND
	MnMUL
	MnMULH
	MnMULHSU
	MnMULHU
	MnDIV
	MnDIVU
	MnREM
	MnREMU
	MnADDI
	MnSLTI
	MnSLTIU
	MnXORI
	MnORI
	MnANDI
	MnSLLI
	MnSRLI
	MnSRAI
	MnLB
	MnLH
	MnLW
	MnLBU
	MnLHU
	MnSB
	MnSH
	MnSW
	MnBEQ
	MnBNE
	MnBLT
	MnBGE
	MnBLTU
	MnBGEU
	MnJAL
	MnJALR
	MnLUI
	MnAUIPC
	MnECALL
	MnEBREAK
	MnFENCE
	MnLRW
	MnSCW
	MnAMOSWAPW
	MnAMOADDW
)

var mnemonicNames = map[Mnemonic]string{
	MnInvalid: "invalid", MnADD: "add", MnSUB: "sub", MnSLL: "sll", MnSLT: "slt",
	MnSLTU: "sltu", MnXOR: "xor", MnSRL: "srl", MnSRA: "sra", MnOR: "or", MnAND: "and",
	MnMUL: "mul", MnMULH: "mulh", MnMULHSU: "mulhsu", MnMULHU: "mulhu",
	MnDIV: "div", MnDIVU: "divu", MnREM: "rem", MnREMU: "remu",
	MnADDI: "addi", MnSLTI: "slti", MnSLTIU: "sltiu", MnXORI: "xori", MnORI: "ori", MnANDI: "andi",
	MnSLLI: "slli", MnSRLI: "srli", MnSRAI: "srai",
	MnLB: "lb", MnLH: "lh", MnLW: "lw", MnLBU: "lbu", MnLHU: "lhu",
	MnSB: "sb", MnSH: "sh", MnSW: "sw",
	MnBEQ: "beq", MnBNE: "bne", MnBLT: "blt", MnBGE: "bge", MnBLTU: "bltu", MnBGEU: "bgeu",
	MnJAL: "jal", MnJALR: "jalr", MnLUI: "lui", MnAUIPC: "auipc",
	MnECALL: "ecall", MnEBREAK: "ebreak", MnFENCE: "fence",
	MnLRW: "lr.w", MnSCW: "sc.w", MnAMOSWAPW: "amoswap.w", MnAMOADDW: "amoadd.w",
}

func (m Mnemonic) String() string {
	if s, ok := mnemonicNames[m]; ok {
		return s
	}
	return "unknown"
}

// Decoded is a single decoded RV32IMAC instruction.
type Decoded struct {
	Mnemonic Mnemonic
	Raw      uint32
	Rd       Reg
	Rs1      Reg
	Rs2      Reg
	Imm      int32
}

// String renders the decoded instruction in objdump-like textual form.
func (d Decoded) String() string {
	switch d.Mnemonic {
	case MnADD, MnSUB, MnSLL, MnSLT, MnSLTU, MnXOR, MnSRL, MnSRA, MnOR, MnAND,
		MnMUL, MnMULH, MnMULHSU, MnMULHU, MnDIV, MnDIVU, MnREM, MnREMU:
		return fmt.Sprintf("%s %s, %s, %s", d.Mnemonic, d.Rd, d.Rs1, d.Rs2)
	case MnADDI, MnSLTI, MnSLTIU, MnXORI, MnORI, MnANDI, MnSLLI, MnSRLI, MnSRAI,
		MnLB, MnLH, MnLW, MnLBU, MnLHU, MnJALR:
		return fmt.Sprintf("%s %s, %s, %d", d.Mnemonic, d.Rd, d.Rs1, d.Imm)
	case MnSB, MnSH, MnSW:
		return fmt.Sprintf("%s %s, %d(%s)", d.Mnemonic, d.Rs2, d.Imm, d.Rs1)
	case MnBEQ, MnBNE, MnBLT, MnBGE, MnBLTU, MnBGEU:
		return fmt.Sprintf("%s %s, %s, %d", d.Mnemonic, d.Rs1, d.Rs2, d.Imm)
	case MnJAL, MnLUI, MnAUIPC:
		return fmt.Sprintf("%s %s, %d", d.Mnemonic, d.Rd, d.Imm)
	case MnECALL, MnEBREAK, MnFENCE:
		return d.Mnemonic.String()
	case MnLRW:
		return fmt.Sprintf("%s %s, (%s)", d.Mnemonic, d.Rd, d.Rs1)
	case MnSCW, MnAMOSWAPW, MnAMOADDW:
		return fmt.Sprintf("%s %s, %s, (%s)", d.Mnemonic, d.Rd, d.Rs2, d.Rs1)
	default:
		return fmt.Sprintf("unknown(%#08x)", d.Raw)
	}
}

// rKey keys the R-type decode table by opcode, funct3 and funct7.
type rKey struct {
	opcode, funct3, funct7 uint32
}

var rTable = map[rKey]Mnemonic{
	{opOp, 0x0, 0x00}: MnADD,
	{opOp, 0x0, f7Alt}: MnSUB,
	{opOp, 0x1, 0x00}: MnSLL,
	{opOp, 0x2, 0x00}: MnSLT,
	{opOp, 0x3, 0x00}: MnSLTU,
	{opOp, 0x4, 0x00}: MnXOR,
	{opOp, 0x5, 0x00}: MnSRL,
	{opOp, 0x5, f7Alt}: MnSRA,
	{opOp, 0x6, 0x00}: MnOR,
	{opOp, 0x7, 0x00}: MnAND,
	{opOp, 0x0, f7M}: MnMUL,
	{opOp, 0x1, f7M}: MnMULH,
	{opOp, 0x2, f7M}: MnMULHSU,
	{opOp, 0x3, f7M}: MnMULHU,
	{opOp, 0x4, f7M}: MnDIV,
	{opOp, 0x5, f7M}: MnDIVU,
	{opOp, 0x6, f7M}: MnREM,
	{opOp, 0x7, f7M}: MnREMU,
}

var iOpTable = map[uint32]Mnemonic{
	0x0: MnADDI, 0x2: MnSLTI, 0x3: MnSLTIU, 0x4: MnXORI, 0x6: MnORI, 0x7: MnANDI,
}

var loadTable = map[uint32]Mnemonic{
	0x0: MnLB, 0x1: MnLH, 0x2: MnLW, 0x4: MnLBU, 0x5: MnLHU,
}

var storeTable = map[uint32]Mnemonic{
	0x0: MnSB, 0x1: MnSH, 0x2: MnSW,
}

var branchTable = map[uint32]Mnemonic{
	0x0: MnBEQ, 0x1: MnBNE, 0x4: MnBLT, 0x5: MnBGE, 0x6: MnBLTU, 0x7: MnBGEU,
}

var amoTable = map[uint32]Mnemonic{
	0x02: MnLRW, 0x03: MnSCW, 0x01: MnAMOSWAPW, 0x00: MnAMOADDW,
}

// Decode decodes one 32-bit RV32IMAC instruction word. Compressed (16-bit)
// encodings are out of scope: the back end never emits them and the
// emulator only ever loads 4-byte-aligned words produced by this compiler.
func Decode(word uint32) (Decoded, error) {
	opcode := bits(word, 6, 0)
	rd := Reg(bits(word, 11, 7))
	funct3 := bits(word, 14, 12)
	rs1 := Reg(bits(word, 19, 15))
	rs2 := Reg(bits(word, 24, 20))
	funct7 := bits(word, 31, 25)

	switch opcode {
	case opOp:
		mn, ok := rTable[rKey{opcode, funct3, funct7}]
		if !ok {
			return Decoded{}, fmt.Errorf("riscv: unrecognised R-type instruction %#08x", word)
		}
		return Decoded{Mnemonic: mn, Raw: word, Rd: rd, Rs1: rs1, Rs2: rs2}, nil

	case opOpImm:
		if funct3 == 0x1 {
			return Decoded{Mnemonic: MnSLLI, Raw: word, Rd: rd, Rs1: rs1, Imm: int32(bits(word, 24, 20))}, nil
		}
		if funct3 == 0x5 {
			if funct7 == f7Alt {
				return Decoded{Mnemonic: MnSRAI, Raw: word, Rd: rd, Rs1: rs1, Imm: int32(bits(word, 24, 20))}, nil
			}
			return Decoded{Mnemonic: MnSRLI, Raw: word, Rd: rd, Rs1: rs1, Imm: int32(bits(word, 24, 20))}, nil
		}
		mn, ok := iOpTable[funct3]
		if !ok {
			return Decoded{}, fmt.Errorf("riscv: unrecognised OP-IMM instruction %#08x", word)
		}
		return Decoded{Mnemonic: mn, Raw: word, Rd: rd, Rs1: rs1, Imm: signExtend(bits(word, 31, 20), 12)}, nil

	case opLoad:
		mn, ok := loadTable[funct3]
		if !ok {
			return Decoded{}, fmt.Errorf("riscv: unrecognised load instruction %#08x", word)
		}
		return Decoded{Mnemonic: mn, Raw: word, Rd: rd, Rs1: rs1, Imm: signExtend(bits(word, 31, 20), 12)}, nil

	case opStore:
		mn, ok := storeTable[funct3]
		if !ok {
			return Decoded{}, fmt.Errorf("riscv: unrecognised store instruction %#08x", word)
		}
		imm := bits(word, 31, 25)<<5 | bits(word, 11, 7)
		return Decoded{Mnemonic: mn, Raw: word, Rs1: rs1, Rs2: rs2, Imm: signExtend(imm, 12)}, nil

	case opBranch:
		mn, ok := branchTable[funct3]
		if !ok {
			return Decoded{}, fmt.Errorf("riscv: unrecognised branch instruction %#08x", word)
		}
		imm := bits(word, 31, 31)<<12 | bits(word, 7, 7)<<11 | bits(word, 30, 25)<<5 | bits(word, 11, 8)<<1
		return Decoded{Mnemonic: mn, Raw: word, Rs1: rs1, Rs2: rs2, Imm: signExtend(imm, 13)}, nil

	case opJAL:
		imm := bits(word, 31, 31)<<20 | bits(word, 19, 12)<<12 | bits(word, 20, 20)<<11 | bits(word, 30, 21)<<1
		return Decoded{Mnemonic: MnJAL, Raw: word, Rd: rd, Imm: signExtend(imm, 21)}, nil

	case opJALR:
		return Decoded{Mnemonic: MnJALR, Raw: word, Rd: rd, Rs1: rs1, Imm: signExtend(bits(word, 31, 20), 12)}, nil

	case opLUI:
		return Decoded{Mnemonic: MnLUI, Raw: word, Rd: rd, Imm: int32(word & 0xfffff000)}, nil

	case opAUIPC:
		return Decoded{Mnemonic: MnAUIPC, Raw: word, Rd: rd, Imm: int32(word & 0xfffff000)}, nil

	case opSystem:
		switch {
		case word>>20 == 0:
			return Decoded{Mnemonic: MnECALL, Raw: word}, nil
		case word>>20 == 1:
			return Decoded{Mnemonic: MnEBREAK, Raw: word}, nil
		default:
			return Decoded{}, fmt.Errorf("riscv: unsupported SYSTEM instruction %#08x", word)
		}

	case opMiscMem:
		return Decoded{Mnemonic: MnFENCE, Raw: word}, nil

	case opAMO:
		funct5 := bits(word, 31, 27)
		mn, ok := amoTable[funct5]
		if !ok {
			return Decoded{}, fmt.Errorf("riscv: unrecognised AMO instruction %#08x", word)
		}
		return Decoded{Mnemonic: mn, Raw: word, Rd: rd, Rs1: rs1, Rs2: rs2}, nil

	default:
		return Decoded{}, fmt.Errorf("riscv: unrecognised opcode %#02x in instruction %#08x", opcode, word)
	}
}

// IsFloatingPoint reports whether the base opcode belongs to the RV32F/D
// floating-point extensions; these are a hard error on this target.
func IsFloatingPoint(word uint32) bool {
	opcode := bits(word, 6, 0)
	switch opcode {
	case 0x01, 0x07, 0x09, 0x0a, 0x14, 0x10, 0x11, 0x12, 0x13: // load-fp/store-fp/op-fp/fused-madd family
		return true
	}
	return false
}
