// Package riscv provides RV32IMAC instruction encoding and decoding.
// This package has no dependency on the compiler internals and can be used
// standalone for generating or disassembling RV32IMAC machine code.
package riscv

import "fmt"

// Reg identifies one of the 32 general-purpose registers.
type Reg uint32

// ABI register names, following the standard RV32 integer calling
// convention: a0..a7 argument/return, s0..s11 callee-saved, t0..t6
// caller-saved.
const (
	Zero Reg = 0
	Ra   Reg = 1
	Sp   Reg = 2
	Gp   Reg = 3
	Tp   Reg = 4
	T0   Reg = 5
	T1   Reg = 6
	T2   Reg = 7
	S0   Reg = 8 // frame pointer
	S1   Reg = 9
	A0   Reg = 10
	A1   Reg = 11
	A2   Reg = 12
	A3   Reg = 13
	A4   Reg = 14
	A5   Reg = 15
	A6   Reg = 16
	A7   Reg = 17
	S2   Reg = 18
	S3   Reg = 19
	S4   Reg = 20
	S5   Reg = 21
	S6   Reg = 22
	S7   Reg = 23
	S8   Reg = 24
	S9   Reg = 25
	S10  Reg = 26
	S11  Reg = 27
	T3   Reg = 28
	T4   Reg = 29
	T5   Reg = 30
	T6   Reg = 31
)

var regNames = [...]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// String returns the ABI name of the register.
func (r Reg) String() string {
	if int(r) < len(regNames) {
		return regNames[r]
	}
	return fmt.Sprintf("x%d", r)
}

// ArgRegs lists the argument/return registers a0..a7 in order.
var ArgRegs = [8]Reg{A0, A1, A2, A3, A4, A5, A6, A7}

// CalleeSaved lists s0..s11 in order.
var CalleeSaved = [12]Reg{S0, S1, S2, S3, S4, S5, S6, S7, S8, S9, S10, S11}

// CallerSaved lists t0..t6 in order.
var CallerSaved = [7]Reg{T0, T1, T2, T3, T4, T5, T6}

// base opcodes (bits 6..2 of the instruction word), RV32I/M/A/C subset.
const (
	opLoad    = 0x00
	opMiscMem = 0x03
	opOpImm   = 0x04
	opAUIPC   = 0x05
	opStore   = 0x08
	opAMO     = 0x0b
	opOp      = 0x0c
	opLUI     = 0x0d
	opBranch  = 0x18
	opJALR    = 0x19
	opJAL     = 0x1b
	opSystem  = 0x1c
)

func bits(v uint32, hi, lo uint) uint32 {
	return (v >> lo) & ((1 << (hi - lo + 1)) - 1)
}

func signExtend(v uint32, width uint) int32 {
	shift := 32 - width
	return int32(v<<shift) >> shift
}

// rType encodes an R-type instruction: funct7 rs2 rs1 funct3 rd opcode.
func rType(opcode, rd, funct3, rs1, rs2, funct7 uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

// iType encodes an I-type instruction: imm[11:0] rs1 funct3 rd opcode.
func iType(opcode, rd, funct3, rs1 uint32, imm int32) uint32 {
	return uint32(imm)<<20&0xfff00000 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

// sType encodes an S-type instruction: imm[11:5] rs2 rs1 funct3 imm[4:0] opcode.
func sType(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return bits(u, 11, 5)<<25 | rs2<<20 | rs1<<15 | funct3<<12 | bits(u, 4, 0)<<7 | opcode
}

// bType encodes a B-type (branch) instruction.
func bType(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return bits(u, 12, 12)<<31 | bits(u, 10, 5)<<25 | rs2<<20 | rs1<<15 | funct3<<12 |
		bits(u, 4, 1)<<8 | bits(u, 11, 11)<<7 | opcode
}

// uType encodes a U-type instruction: imm[31:12] rd opcode.
func uType(opcode, rd uint32, imm int32) uint32 {
	return uint32(imm)&0xfffff000 | rd<<7 | opcode
}

// jType encodes a J-type (jal) instruction.
func jType(opcode, rd uint32, imm int32) uint32 {
	u := uint32(imm)
	return bits(u, 20, 20)<<31 | bits(u, 10, 1)<<21 | bits(u, 11, 11)<<20 |
		bits(u, 19, 12)<<12 | rd<<7 | opcode
}

// Integer-register-register ops (OP major opcode), funct3/funct7 pairs.
const (
	fnADD  = 0x0
	fnSUB  = 0x0
	fnSLL  = 0x1
	fnSLT  = 0x2
	fnSLTU = 0x3
	fnXOR  = 0x4
	fnSRL  = 0x5
	fnSRA  = 0x5
	fnOR   = 0x6
	fnAND  = 0x7
)

const f7Alt = 0x20 // SUB/SRA distinguish with funct7=0100000

// ADD rd, rs1, rs2
func ADD(rd, rs1, rs2 Reg) uint32 { return rType(opOp, uint32(rd), fnADD, uint32(rs1), uint32(rs2), 0) }

// SUB rd, rs1, rs2
func SUB(rd, rs1, rs2 Reg) uint32 { return rType(opOp, uint32(rd), fnSUB, uint32(rs1), uint32(rs2), f7Alt) }

// SLL/SLT/SLTU/XOR/SRL/SRA/OR/AND rd, rs1, rs2
func SLL(rd, rs1, rs2 Reg) uint32  { return rType(opOp, uint32(rd), fnSLL, uint32(rs1), uint32(rs2), 0) }
func SLT(rd, rs1, rs2 Reg) uint32  { return rType(opOp, uint32(rd), fnSLT, uint32(rs1), uint32(rs2), 0) }
func SLTU(rd, rs1, rs2 Reg) uint32 { return rType(opOp, uint32(rd), fnSLTU, uint32(rs1), uint32(rs2), 0) }
func XOR(rd, rs1, rs2 Reg) uint32  { return rType(opOp, uint32(rd), fnXOR, uint32(rs1), uint32(rs2), 0) }
func SRL(rd, rs1, rs2 Reg) uint32  { return rType(opOp, uint32(rd), fnSRL, uint32(rs1), uint32(rs2), 0) }
func SRA(rd, rs1, rs2 Reg) uint32  { return rType(opOp, uint32(rd), fnSRA, uint32(rs1), uint32(rs2), f7Alt) }
func OR(rd, rs1, rs2 Reg) uint32   { return rType(opOp, uint32(rd), fnOR, uint32(rs1), uint32(rs2), 0) }
func AND(rd, rs1, rs2 Reg) uint32  { return rType(opOp, uint32(rd), fnAND, uint32(rs1), uint32(rs2), 0) }

// M extension: MUL/MULH/MULHSU/MULHU/DIV/DIVU/REM/REMU, funct7=0000001.
const f7M = 0x01

func MUL(rd, rs1, rs2 Reg) uint32    { return rType(opOp, uint32(rd), 0x0, uint32(rs1), uint32(rs2), f7M) }
func MULH(rd, rs1, rs2 Reg) uint32   { return rType(opOp, uint32(rd), 0x1, uint32(rs1), uint32(rs2), f7M) }
func MULHSU(rd, rs1, rs2 Reg) uint32 { return rType(opOp, uint32(rd), 0x2, uint32(rs1), uint32(rs2), f7M) }
func MULHU(rd, rs1, rs2 Reg) uint32  { return rType(opOp, uint32(rd), 0x3, uint32(rs1), uint32(rs2), f7M) }
func DIV(rd, rs1, rs2 Reg) uint32    { return rType(opOp, uint32(rd), 0x4, uint32(rs1), uint32(rs2), f7M) }
func DIVU(rd, rs1, rs2 Reg) uint32   { return rType(opOp, uint32(rd), 0x5, uint32(rs1), uint32(rs2), f7M) }
func REM(rd, rs1, rs2 Reg) uint32    { return rType(opOp, uint32(rd), 0x6, uint32(rs1), uint32(rs2), f7M) }
func REMU(rd, rs1, rs2 Reg) uint32   { return rType(opOp, uint32(rd), 0x7, uint32(rs1), uint32(rs2), f7M) }

// Immediate ALU ops (OP-IMM major opcode).
func ADDI(rd, rs1 Reg, imm int32) uint32  { return iType(opOpImm, uint32(rd), 0x0, uint32(rs1), imm) }
func SLTI(rd, rs1 Reg, imm int32) uint32  { return iType(opOpImm, uint32(rd), 0x2, uint32(rs1), imm) }
func SLTIU(rd, rs1 Reg, imm int32) uint32 { return iType(opOpImm, uint32(rd), 0x3, uint32(rs1), imm) }
func XORI(rd, rs1 Reg, imm int32) uint32  { return iType(opOpImm, uint32(rd), 0x4, uint32(rs1), imm) }
func ORI(rd, rs1 Reg, imm int32) uint32   { return iType(opOpImm, uint32(rd), 0x6, uint32(rs1), imm) }
func ANDI(rd, rs1 Reg, imm int32) uint32  { return iType(opOpImm, uint32(rd), 0x7, uint32(rs1), imm) }

// SLLI/SRLI/SRAI rd, rs1, shamt (shamt in imm[4:0], funct7 in imm[11:5]).
func SLLI(rd, rs1 Reg, shamt uint32) uint32 {
	return iType(opOpImm, uint32(rd), 0x1, uint32(rs1), int32(shamt&0x1f))
}
func SRLI(rd, rs1 Reg, shamt uint32) uint32 {
	return iType(opOpImm, uint32(rd), 0x5, uint32(rs1), int32(shamt&0x1f))
}
func SRAI(rd, rs1 Reg, shamt uint32) uint32 {
	return iType(opOpImm, uint32(rd), 0x5, uint32(rs1), int32(shamt&0x1f|f7Alt<<5))
}

// Loads/stores.
func LB(rd, rs1 Reg, imm int32) uint32  { return iType(opLoad, uint32(rd), 0x0, uint32(rs1), imm) }
func LH(rd, rs1 Reg, imm int32) uint32  { return iType(opLoad, uint32(rd), 0x1, uint32(rs1), imm) }
func LW(rd, rs1 Reg, imm int32) uint32  { return iType(opLoad, uint32(rd), 0x2, uint32(rs1), imm) }
func LBU(rd, rs1 Reg, imm int32) uint32 { return iType(opLoad, uint32(rd), 0x4, uint32(rs1), imm) }
func LHU(rd, rs1 Reg, imm int32) uint32 { return iType(opLoad, uint32(rd), 0x5, uint32(rs1), imm) }

func SB(rs1, rs2 Reg, imm int32) uint32 { return sType(opStore, 0x0, uint32(rs1), uint32(rs2), imm) }
func SH(rs1, rs2 Reg, imm int32) uint32 { return sType(opStore, 0x1, uint32(rs1), uint32(rs2), imm) }
func SW(rs1, rs2 Reg, imm int32) uint32 { return sType(opStore, 0x2, uint32(rs1), uint32(rs2), imm) }

// Branches.
func BEQ(rs1, rs2 Reg, imm int32) uint32  { return bType(opBranch, 0x0, uint32(rs1), uint32(rs2), imm) }
func BNE(rs1, rs2 Reg, imm int32) uint32  { return bType(opBranch, 0x1, uint32(rs1), uint32(rs2), imm) }
func BLT(rs1, rs2 Reg, imm int32) uint32  { return bType(opBranch, 0x4, uint32(rs1), uint32(rs2), imm) }
func BGE(rs1, rs2 Reg, imm int32) uint32  { return bType(opBranch, 0x5, uint32(rs1), uint32(rs2), imm) }
func BLTU(rs1, rs2 Reg, imm int32) uint32 { return bType(opBranch, 0x6, uint32(rs1), uint32(rs2), imm) }
func BGEU(rs1, rs2 Reg, imm int32) uint32 { return bType(opBranch, 0x7, uint32(rs1), uint32(rs2), imm) }

// Jumps.
func JAL(rd Reg, imm int32) uint32         { return jType(opJAL, uint32(rd), imm) }
func JALR(rd, rs1 Reg, imm int32) uint32   { return iType(opJALR, uint32(rd), 0x0, uint32(rs1), imm) }

// LUI/AUIPC.
func LUI(rd Reg, imm int32) uint32   { return uType(opLUI, uint32(rd), imm) }
func AUIPC(rd Reg, imm int32) uint32 { return uType(opAUIPC, uint32(rd), imm) }

// System / misc-mem.
func ECALL() uint32  { return iType(opSystem, 0, 0, 0, 0) }
func EBREAK() uint32 { return iType(opSystem, 0, 0, 0, 1) }
func FENCE() uint32  { return iType(opMiscMem, 0, 0, 0, 0x0ff) }

// NOP is the canonical no-op encoding (addi x0, x0, 0).
func NOP() uint32 { return ADDI(Zero, Zero, 0) }

// A extension: LR.W / SC.W / AMO*.W. The compiler never emits these itself
// since execution is single-threaded, but the encoder covers the full
// RV32IMAC ISA.
func amoOp(rd, rs1, rs2 Reg, funct5 uint32, aq, rl bool) uint32 {
	funct7 := funct5<<2 | b2u(aq)<<1 | b2u(rl)
	return rType(opAMO, uint32(rd), 0x2, uint32(rs1), uint32(rs2), funct7)
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func LRW(rd, rs1 Reg, aq, rl bool) uint32       { return amoOp(rd, rs1, Zero, 0x02, aq, rl) }
func SCW(rd, rs1, rs2 Reg, aq, rl bool) uint32  { return amoOp(rd, rs1, rs2, 0x03, aq, rl) }
func AMOSWAPW(rd, rs1, rs2 Reg, aq, rl bool) uint32 { return amoOp(rd, rs1, rs2, 0x01, aq, rl) }
func AMOADDW(rd, rs1, rs2 Reg, aq, rl bool) uint32  { return amoOp(rd, rs1, rs2, 0x00, aq, rl) }
