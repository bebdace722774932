package emulator

import (
	"bytes"
	"testing"

	"github.com/lightplayer/lpxc/internal/riscv"
)

func assembleAndRun(t *testing.T, words []uint32, limit uint64) (*CPU, *Trap) {
	t.Helper()
	mem := NewMemory(4096)
	for i, w := range words {
		if err := mem.StoreWord(uint32(i*4), w); err != nil {
			t.Fatalf("store: %v", err)
		}
	}
	cpu := NewCPU(mem, Options{InstrLimit: limit, Output: &bytes.Buffer{}})
	tr := cpu.RunUntilTrap()
	return cpu, tr
}

func TestArithmeticAndBranch(t *testing.T) {
	// a0 = 2, a1 = 3, a2 = a0 + a1, loop until a2 == 10 by adding a0 each time.
	words := []uint32{
		riscv.ADDI(riscv.A0, riscv.Zero, 2),
		riscv.ADDI(riscv.A1, riscv.Zero, 0),
		riscv.ADDI(riscv.A2, riscv.Zero, 10),
		// loop: a1 += a0; if a1 < a2 branch back
		riscv.ADD(riscv.A1, riscv.A1, riscv.A0),
		riscv.BLT(riscv.A1, riscv.A2, -4),
		riscv.EBREAK(),
	}
	cpu, tr := assembleAndRun(t, words, 1000)
	if tr == nil || tr.Cause != TrapBreakpoint {
		t.Fatalf("expected breakpoint trap, got %v", tr)
	}
	if got := cpu.Reg(riscv.A1); got != 10 {
		t.Fatalf("a1 = %d, want 10", got)
	}
}

func TestDivisionByZeroSemantics(t *testing.T) {
	words := []uint32{
		riscv.ADDI(riscv.A0, riscv.Zero, 7),
		riscv.ADDI(riscv.A1, riscv.Zero, 0),
		riscv.DIV(riscv.A2, riscv.A0, riscv.A1),
		riscv.REM(riscv.A3, riscv.A0, riscv.A1),
		riscv.EBREAK(),
	}
	cpu, tr := assembleAndRun(t, words, 1000)
	if tr == nil || tr.Cause != TrapBreakpoint {
		t.Fatalf("unexpected trap: %v", tr)
	}
	if got := int32(cpu.Reg(riscv.A2)); got != -1 {
		t.Fatalf("div by zero = %d, want -1", got)
	}
	if got := cpu.Reg(riscv.A3); got != 7 {
		t.Fatalf("rem by zero = %d, want 7", got)
	}
}

func TestLoadStoreRoundTrip(t *testing.T) {
	words := []uint32{
		riscv.ADDI(riscv.A0, riscv.Zero, 100), // base address
		riscv.ADDI(riscv.A1, riscv.Zero, -5),
		riscv.SW(riscv.A0, riscv.A1, 0),
		riscv.LW(riscv.A2, riscv.A0, 0),
		riscv.EBREAK(),
	}
	cpu, tr := assembleAndRun(t, words, 1000)
	if tr == nil || tr.Cause != TrapBreakpoint {
		t.Fatalf("unexpected trap: %v", tr)
	}
	if got := int32(cpu.Reg(riscv.A2)); got != -5 {
		t.Fatalf("loaded %d, want -5", got)
	}
}

func TestMisalignedStoreTraps(t *testing.T) {
	words := []uint32{
		riscv.ADDI(riscv.A0, riscv.Zero, 101), // unaligned for a word store
		riscv.SW(riscv.A0, riscv.Zero, 0),
	}
	_, tr := assembleAndRun(t, words, 1000)
	if tr == nil || tr.Cause != TrapMisalignedAccess {
		t.Fatalf("expected misaligned trap, got %v", tr)
	}
}

func TestOutOfBoundsLoadTraps(t *testing.T) {
	words := []uint32{
		riscv.LW(riscv.A0, riscv.Zero, -4), // sign-extends to 0xfffffffc
	}
	_, tr := assembleAndRun(t, words, 1000)
	if tr == nil || tr.Cause != TrapOutOfBounds {
		t.Fatalf("expected out of bounds trap, got %v", tr)
	}
}

func TestInstructionLimitTraps(t *testing.T) {
	words := []uint32{
		riscv.ADDI(riscv.A0, riscv.A0, 1),
		riscv.BEQ(riscv.Zero, riscv.Zero, -4), // infinite loop
	}
	_, tr := assembleAndRun(t, words, 50)
	if tr == nil || tr.Cause != TrapInstructionLimit {
		t.Fatalf("expected instruction limit trap, got %v", tr)
	}
}

func TestSyscallLogAndGetCycles(t *testing.T) {
	mem := NewMemory(4096)
	msg := "hi"
	copy(mem.Bytes()[200:], msg)
	words := []uint32{
		riscv.ADDI(riscv.A0, riscv.Zero, 1), // level
		riscv.ADDI(riscv.A1, riscv.Zero, 200), // ptr
		riscv.ADDI(riscv.A2, riscv.Zero, int32(len(msg))), // length
		riscv.ADDI(riscv.A7, riscv.Zero, SysLog),
		riscv.ECALL(),
		riscv.ADDI(riscv.A7, riscv.Zero, SysGetCycles),
		riscv.ECALL(),
		riscv.EBREAK(),
	}
	for i, w := range words {
		mem.StoreWord(uint32(i*4), w)
	}
	var out bytes.Buffer
	cpu := NewCPU(mem, Options{InstrLimit: 1000, Output: &out})
	tr := cpu.RunUntilTrap()
	if tr == nil || tr.Cause != TrapBreakpoint {
		t.Fatalf("unexpected trap: %v", tr)
	}
	if out.String() != "[level 1] hi\n" {
		t.Fatalf("log output = %q", out.String())
	}
	if got := cpu.Reg(riscv.A0); got != 6 {
		t.Fatalf("get_cycles returned %d, want 6", got)
	}
}

func TestSyscallAbortTraps(t *testing.T) {
	words := []uint32{
		riscv.ADDI(riscv.A0, riscv.Zero, 42),
		riscv.ADDI(riscv.A7, riscv.Zero, SysAbort),
		riscv.ECALL(),
	}
	_, tr := assembleAndRun(t, words, 1000)
	if tr == nil || tr.Cause != TrapAbort {
		t.Fatalf("expected abort trap, got %v", tr)
	}
}

func TestHostCallback(t *testing.T) {
	mem := NewMemory(4096)
	words := []uint32{
		riscv.ADDI(riscv.A0, riscv.Zero, 7),
		riscv.ADDI(riscv.A1, riscv.Zero, 0),
		riscv.ADDI(riscv.A2, riscv.Zero, 0),
		riscv.ADDI(riscv.A7, riscv.Zero, SysHostCallback),
		riscv.ECALL(),
		riscv.EBREAK(),
	}
	for i, w := range words {
		mem.StoreWord(uint32(i*4), w)
	}
	var calledWith uint32
	cpu := NewCPU(mem, Options{
		InstrLimit: 1000,
		Output:     &bytes.Buffer{},
		HostCallback: func(id, ptr, length uint32, mem []byte) (uint32, error) {
			calledWith = id
			return 99, nil
		},
	})
	tr := cpu.RunUntilTrap()
	if tr == nil || tr.Cause != TrapBreakpoint {
		t.Fatalf("unexpected trap: %v", tr)
	}
	if calledWith != 7 {
		t.Fatalf("host callback id = %d, want 7", calledWith)
	}
	if got := cpu.Reg(riscv.A0); got != 99 {
		t.Fatalf("a0 after host callback = %d, want 99", got)
	}
}

func TestIllegalInstructionTraps(t *testing.T) {
	mem := NewMemory(16)
	mem.StoreWord(0, 0x7f) // invalid opcode
	cpu := NewCPU(mem, Options{InstrLimit: 10, Output: &bytes.Buffer{}})
	tr := cpu.RunUntilTrap()
	if tr == nil || tr.Cause != TrapIllegalInstruction {
		t.Fatalf("expected illegal instruction trap, got %v", tr)
	}
}

func TestRunUntilReturn(t *testing.T) {
	mem := NewMemory(4096)
	// function at address 0: a0 = a0 * 2; ret (jalr zero, ra, 0)
	words := []uint32{
		riscv.ADD(riscv.A0, riscv.A0, riscv.A0),
		riscv.JALR(riscv.Zero, riscv.Ra, 0),
	}
	for i, w := range words {
		mem.StoreWord(uint32(i*4), w)
	}
	cpu := NewCPU(mem, Options{InstrLimit: 1000, Output: &bytes.Buffer{}})
	cpu.SetReg(riscv.A0, 21)
	cpu.SetPC(0)
	const sentinel = 0xffff0000
	if tr := cpu.RunUntilReturn(sentinel); tr != nil {
		t.Fatalf("unexpected trap: %v", tr)
	}
	if got := cpu.Reg(riscv.A0); got != 42 {
		t.Fatalf("a0 = %d, want 42", got)
	}
}
