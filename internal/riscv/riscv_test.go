package riscv

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		word uint32
		want Mnemonic
	}{
		{"add", ADD(A0, A1, A2), MnADD},
		{"sub", SUB(A0, A1, A2), MnSUB},
		{"sll", SLL(A0, A1, A2), MnSLL},
		{"slt", SLT(A0, A1, A2), MnSLT},
		{"sltu", SLTU(A0, A1, A2), MnSLTU},
		{"xor", XOR(A0, A1, A2), MnXOR},
		{"srl", SRL(A0, A1, A2), MnSRL},
		{"sra", SRA(A0, A1, A2), MnSRA},
		{"or", OR(A0, A1, A2), MnOR},
		{"and", AND(A0, A1, A2), MnAND},
		{"mul", MUL(A0, A1, A2), MnMUL},
		{"mulh", MULH(A0, A1, A2), MnMULH},
		{"mulhsu", MULHSU(A0, A1, A2), MnMULHSU},
		{"mulhu", MULHU(A0, A1, A2), MnMULHU},
		{"div", DIV(A0, A1, A2), MnDIV},
		{"divu", DIVU(A0, A1, A2), MnDIVU},
		{"rem", REM(A0, A1, A2), MnREM},
		{"remu", REMU(A0, A1, A2), MnREMU},
		{"addi", ADDI(A0, A1, -5), MnADDI},
		{"slti", SLTI(A0, A1, -5), MnSLTI},
		{"sltiu", SLTIU(A0, A1, 5), MnSLTIU},
		{"xori", XORI(A0, A1, 5), MnXORI},
		{"ori", ORI(A0, A1, 5), MnORI},
		{"andi", ANDI(A0, A1, 5), MnANDI},
		{"slli", SLLI(A0, A1, 3), MnSLLI},
		{"srli", SRLI(A0, A1, 3), MnSRLI},
		{"srai", SRAI(A0, A1, 3), MnSRAI},
		{"lb", LB(A0, A1, 4), MnLB},
		{"lh", LH(A0, A1, 4), MnLH},
		{"lw", LW(A0, A1, 4), MnLW},
		{"lbu", LBU(A0, A1, 4), MnLBU},
		{"lhu", LHU(A0, A1, 4), MnLHU},
		{"sb", SB(A0, A1, 4), MnSB},
		{"sh", SH(A0, A1, 4), MnSH},
		{"sw", SW(A0, A1, 4), MnSW},
		{"beq", BEQ(A0, A1, 16), MnBEQ},
		{"bne", BNE(A0, A1, 16), MnBNE},
		{"blt", BLT(A0, A1, 16), MnBLT},
		{"bge", BGE(A0, A1, 16), MnBGE},
		{"bltu", BLTU(A0, A1, 16), MnBLTU},
		{"bgeu", BGEU(A0, A1, 16), MnBGEU},
		{"jal", JAL(Ra, 1024), MnJAL},
		{"jalr", JALR(Ra, A0, 0), MnJALR},
		{"lui", LUI(A0, 0x12345000), MnLUI},
		{"auipc", AUIPC(A0, 0x12345000), MnAUIPC},
		{"ecall", ECALL(), MnECALL},
		{"ebreak", EBREAK(), MnEBREAK},
		{"fence", FENCE(), MnFENCE},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d, err := Decode(c.word)
			if err != nil {
				t.Fatalf("Decode(%#08x) error: %v", c.word, err)
			}
			if d.Mnemonic != c.want {
				t.Fatalf("Decode(%#08x) = %v, want %v", c.word, d.Mnemonic, c.want)
			}
		})
	}
}

func TestImmediateRoundTrip(t *testing.T) {
	cases := []int32{-2048, -1, 0, 1, 2047, -7, 42}
	for _, imm := range cases {
		d, err := Decode(ADDI(A0, A1, imm))
		if err != nil {
			t.Fatalf("Decode error: %v", err)
		}
		if d.Imm != imm {
			t.Errorf("ADDI imm round trip: got %d, want %d", d.Imm, imm)
		}
	}
}

func TestBranchImmediateRoundTrip(t *testing.T) {
	cases := []int32{-4096, -2, 0, 2, 4094}
	for _, imm := range cases {
		d, err := Decode(BEQ(A0, A1, imm))
		if err != nil {
			t.Fatalf("Decode error: %v", err)
		}
		if d.Imm != imm {
			t.Errorf("BEQ imm round trip: got %d, want %d", d.Imm, imm)
		}
	}
}

func TestJALImmediateRoundTrip(t *testing.T) {
	cases := []int32{-1048576, -2, 0, 2, 1048574}
	for _, imm := range cases {
		d, err := Decode(JAL(Ra, imm))
		if err != nil {
			t.Fatalf("Decode error: %v", err)
		}
		if d.Imm != imm {
			t.Errorf("JAL imm round trip: got %d, want %d", d.Imm, imm)
		}
	}
}

func TestNoFloatingPointOpcodes(t *testing.T) {
	// Every encoder in this package must produce an integer-only opcode.
	words := []uint32{
		ADD(A0, A1, A2), ADDI(A0, A1, 1), LW(A0, A1, 0), SW(A0, A1, 0),
		BEQ(A0, A1, 0), JAL(Ra, 0), LUI(A0, 0), ECALL(),
	}
	for _, w := range words {
		if IsFloatingPoint(w) {
			t.Errorf("word %#08x misclassified as floating point", w)
		}
	}
}

func TestDecodeRejectsUnknownOpcode(t *testing.T) {
	if _, err := Decode(0x7f); err == nil {
		t.Fatalf("expected error decoding invalid opcode")
	}
}
